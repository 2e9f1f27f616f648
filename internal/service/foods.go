package service

import (
	"context"
	"strings"

	"github.com/nibbleapp/nibble-server/internal/catalog"
	"github.com/nibbleapp/nibble-server/internal/domain"
	domainerrors "github.com/nibbleapp/nibble-server/internal/errors"
	"github.com/nibbleapp/nibble-server/internal/search"
)

// FoodService serves the read-only catalog and its ranked search.
type FoodService struct {
	catalog *catalog.Catalog
	index   *search.FoodIndex
}

// NewFoodService creates a new food service. index may be nil, in which
// case ranked search falls back to substring matching.
func NewFoodService(cat *catalog.Catalog, index *search.FoodIndex) *FoodService {
	return &FoodService{catalog: cat, index: index}
}

// List returns the foods matching every set filter field.
func (s *FoodService) List(f catalog.Filter) []domain.FoodRecord {
	return s.catalog.Find(f)
}

// Categories returns the distinct categories, sorted.
func (s *FoodService) Categories() []string {
	return s.catalog.Categories()
}

// AllergenFoods returns the foods carrying at least one allergen.
func (s *FoodService) AllergenFoods() []domain.FoodRecord {
	return s.catalog.AllergenFoods()
}

// Get returns one food.
func (s *FoodService) Get(foodID int) (domain.FoodRecord, error) {
	food, ok := s.catalog.Get(foodID)
	if !ok {
		return domain.FoodRecord{}, domainerrors.NotFoundf("food %d not found", foodID)
	}
	return food, nil
}

// SearchResult pairs ranked hits with their catalog records.
type SearchResult struct {
	Query string              `json:"query"`
	Total int                 `json:"total"`
	Foods []domain.FoodRecord `json:"foods"`
}

// Search ranks foods by relevance to query.
func (s *FoodService) Search(ctx context.Context, query string, limit int) (SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return SearchResult{}, domainerrors.ValidationWithDetails("validation failed", map[string]string{
			"q": "q is required",
		})
	}

	if s.index == nil {
		foods := s.catalog.Search(query)
		if limit > 0 && len(foods) > limit {
			foods = foods[:limit]
		}
		return SearchResult{Query: query, Total: len(foods), Foods: foods}, nil
	}

	res, err := s.index.Search(ctx, search.Params{Query: query, Limit: limit})
	if err != nil {
		return SearchResult{}, domainerrors.Wrap(err, domainerrors.CodeInternal, "search foods")
	}

	out := SearchResult{Query: query, Total: int(res.Total), Foods: make([]domain.FoodRecord, 0, len(res.Hits))}
	for _, hit := range res.Hits {
		if food, ok := s.catalog.Get(hit.FoodID); ok {
			out.Foods = append(out.Foods, food)
		}
	}
	return out, nil
}
