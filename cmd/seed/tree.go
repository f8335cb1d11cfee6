package main

import (
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/pelletier/go-toml/v2"

	domain "github.com/friperie/api/internal/domain"
	"github.com/friperie/api/internal/platform/textutil"
)

const maxCategoryLevel = 2

type seedFile struct {
	Categories []seedNode `toml:"category"`
}

type seedNode struct {
	Name     string     `toml:"name"`
	Slug     string     `toml:"slug"`
	SizeType string     `toml:"size_type"`
	Children []seedNode `toml:"children"`
}

// decodeCategories reads a nested category tree and flattens it parent first. Slugs double as
// ids; a missing slug is derived from the parent slug and the folded name.
func decodeCategories(r io.Reader) ([]domain.Category, error) {
	var file seedFile
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	if len(file.Categories) == 0 {
		return nil, fmt.Errorf("seed file declares no categories")
	}
	out := make([]domain.Category, 0, 32)
	seen := map[string]struct{}{}
	var walk func(nodes []seedNode, parent *domain.Category) error
	walk = func(nodes []seedNode, parent *domain.Category) error {
		for _, node := range nodes {
			name := strings.TrimSpace(node.Name)
			if name == "" {
				return fmt.Errorf("category without name under %q", parentSlug(parent))
			}
			slug := strings.TrimSpace(node.Slug)
			if slug == "" {
				slug = slugify(name)
				if parent != nil {
					slug = parent.Slug + "-" + slug
				}
			}
			if _, dup := seen[slug]; dup {
				return fmt.Errorf("duplicate category slug %q", slug)
			}
			seen[slug] = struct{}{}

			sizeType := domain.SizeType(strings.ToUpper(strings.TrimSpace(node.SizeType)))
			if sizeType == "" {
				sizeType = domain.SizeTypeNone
			}
			if !validSizeType(sizeType) {
				return fmt.Errorf("category %q: unknown size type %q", slug, node.SizeType)
			}
			category := domain.Category{ID: slug, Name: name, Slug: slug, SizeType: sizeType}
			if parent != nil {
				parentID := parent.ID
				category.ParentID = &parentID
				category.Level = parent.Level + 1
			}
			if category.Level > maxCategoryLevel {
				return fmt.Errorf("category %q: nested deeper than level %d", slug, maxCategoryLevel)
			}
			out = append(out, category)
			if err := walk(node.Children, &category); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(file.Categories, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func parentSlug(parent *domain.Category) string {
	if parent == nil {
		return "<root>"
	}
	return parent.Slug
}

func slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range textutil.Fold(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func validSizeType(t domain.SizeType) bool {
	switch t {
	case domain.SizeTypeAlpha, domain.SizeTypeNumericPants, domain.SizeTypeNumericShoes, domain.SizeTypeAge, domain.SizeTypeNone:
		return true
	}
	return false
}
