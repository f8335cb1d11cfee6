package domain

import (
	"fmt"
	"sort"
)

// BuildCategoryForest assembles the flat category set into trees rooted at level 0.
// Siblings are ordered by name, then slug. A category reachable twice, or a parent chain
// that loops back on itself, fails with ErrCategoryCyclicHierarchy.
func BuildCategoryForest(categories []Category) ([]CategoryNode, error) {
	children := childIndex(categories)
	roots := make([]Category, 0)
	for _, category := range categories {
		if category.Level == 0 {
			roots = append(roots, category)
		}
	}
	sortCategories(roots)

	visited := make(map[string]struct{}, len(categories))
	var attach func(Category) (CategoryNode, error)
	attach = func(category Category) (CategoryNode, error) {
		if _, seen := visited[category.ID]; seen {
			return CategoryNode{}, fmt.Errorf("%w: %s visited twice", ErrCategoryCyclicHierarchy, category.ID)
		}
		visited[category.ID] = struct{}{}

		node := CategoryNode{Category: category, Children: []CategoryNode{}}
		for _, child := range children[category.ID] {
			childNode, err := attach(child)
			if err != nil {
				return CategoryNode{}, err
			}
			node.Children = append(node.Children, childNode)
		}
		return node, nil
	}

	forest := make([]CategoryNode, 0, len(roots))
	for _, root := range roots {
		node, err := attach(root)
		if err != nil {
			return nil, err
		}
		forest = append(forest, node)
	}

	if err := checkParentChains(categories, visited); err != nil {
		return nil, err
	}
	return forest, nil
}

// checkParentChains walks every category the root pass never reached up its parent links.
// Chains ending at a missing parent are orphans and are left out of the forest.
func checkParentChains(categories []Category, reached map[string]struct{}) error {
	byID := make(map[string]Category, len(categories))
	for _, category := range categories {
		byID[category.ID] = category
	}
	for _, category := range categories {
		if _, ok := reached[category.ID]; ok {
			continue
		}
		chain := map[string]struct{}{category.ID: {}}
		current := category
		for current.ParentID != nil && *current.ParentID != "" {
			parentID := *current.ParentID
			if _, seen := chain[parentID]; seen {
				return fmt.Errorf("%w: %s is its own ancestor", ErrCategoryCyclicHierarchy, parentID)
			}
			parent, ok := byID[parentID]
			if !ok {
				break
			}
			chain[parentID] = struct{}{}
			current = parent
		}
	}
	return nil
}

// DescendantIDs returns id followed by every category reachable through child links.
// Unknown ids yield a singleton so that filtering on them matches nothing else.
func DescendantIDs(categories []Category, id string) ([]string, error) {
	children := childIndex(categories)
	visited := map[string]struct{}{id: {}}
	ids := []string{id}

	stack := []string{id}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, child := range children[current] {
			if _, seen := visited[child.ID]; seen {
				return nil, fmt.Errorf("%w: %s reached twice below %s", ErrCategoryCyclicHierarchy, child.ID, id)
			}
			visited[child.ID] = struct{}{}
			ids = append(ids, child.ID)
			stack = append(stack, child.ID)
		}
	}
	return ids, nil
}

func childIndex(categories []Category) map[string][]Category {
	index := make(map[string][]Category)
	for _, category := range categories {
		if category.ParentID == nil || *category.ParentID == "" {
			continue
		}
		index[*category.ParentID] = append(index[*category.ParentID], category)
	}
	for parent := range index {
		sortCategories(index[parent])
	}
	return index
}

func sortCategories(categories []Category) {
	sort.SliceStable(categories, func(i, j int) bool {
		if categories[i].Name != categories[j].Name {
			return categories[i].Name < categories[j].Name
		}
		return categories[i].Slug < categories[j].Slug
	})
}
