package services

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/friperie/api/internal/domain"
	"github.com/friperie/api/internal/repositories"
)

// CategoryServiceDeps bundles collaborators required to construct the category service.
type CategoryServiceDeps struct {
	Categories repositories.CategoryRepository
	Logger     Logger
}

type categoryService struct {
	categories repositories.CategoryRepository
	logger     Logger
}

// NewCategoryService wires dependencies into a CategoryService implementation.
func NewCategoryService(deps CategoryServiceDeps) (CategoryService, error) {
	if deps.Categories == nil {
		return nil, errors.New("category service: category repository is required")
	}
	return &categoryService{categories: deps.Categories, logger: loggerOrNoop(deps.Logger)}, nil
}

func (s *categoryService) ResolveTree(ctx context.Context) ([]CategoryNode, error) {
	all, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	forest, err := domain.BuildCategoryForest(all)
	if err != nil {
		s.logger(ctx, "category.tree.cyclic", map[string]any{"error": err.Error(), "count": len(all)})
		return nil, err
	}
	return forest, nil
}

func (s *categoryService) ResolveDescendants(ctx context.Context, categoryID string) ([]string, error) {
	id, err := requireID(categoryID, "category id")
	if err != nil {
		return nil, err
	}
	all, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	ids, err := domain.DescendantIDs(all, id)
	if err != nil {
		s.logger(ctx, "category.descendants.cyclic", map[string]any{"category": id, "error": err.Error()})
		return nil, err
	}
	return ids, nil
}

func (s *categoryService) Get(ctx context.Context, categoryID string) (Category, error) {
	id, err := requireID(categoryID, "category id")
	if err != nil {
		return Category{}, err
	}
	all, err := s.load(ctx)
	if err != nil {
		return Category{}, err
	}
	for _, category := range all {
		if category.ID == id {
			return category, nil
		}
	}
	return Category{}, fmt.Errorf("%w: %s", domain.ErrCategoryNotFound, id)
}

func (s *categoryService) load(ctx context.Context) ([]Category, error) {
	if ctx == nil {
		return nil, fmt.Errorf("category service: %w", errContextRequired)
	}
	all, err := s.categories.ListAll(ctx)
	if err != nil {
		return nil, mapRepositoryError(err, domain.ErrCategoryNotFound)
	}
	return all, nil
}
