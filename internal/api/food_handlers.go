package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/nibbleapp/nibble-server/internal/catalog"
	"github.com/nibbleapp/nibble-server/internal/domain"
	domainerrors "github.com/nibbleapp/nibble-server/internal/errors"
)

func (s *Server) registerFoodRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listFoods",
		Method:      http.MethodGet,
		Path:        "/api/v1/foods",
		Summary:     "List foods",
		Description: "Returns catalog foods matching every given filter",
		Tags:        []string{"Foods"},
	}, s.handleListFoods)

	huma.Register(s.api, huma.Operation{
		OperationID: "listFoodCategories",
		Method:      http.MethodGet,
		Path:        "/api/v1/foods/categories",
		Summary:     "List categories",
		Description: "Returns the distinct food categories, sorted",
		Tags:        []string{"Foods"},
	}, s.handleListCategories)

	huma.Register(s.api, huma.Operation{
		OperationID: "listAllergenFoods",
		Method:      http.MethodGet,
		Path:        "/api/v1/foods/allergens",
		Summary:     "List allergen foods",
		Description: "Returns foods carrying at least one allergen",
		Tags:        []string{"Foods"},
	}, s.handleListAllergenFoods)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchFoods",
		Method:      http.MethodGet,
		Path:        "/api/v1/foods/search",
		Summary:     "Search foods",
		Description: "Ranked, typo-tolerant search over food names and descriptions",
		Tags:        []string{"Foods"},
	}, s.handleSearchFoods)

	huma.Register(s.api, huma.Operation{
		OperationID: "getFood",
		Method:      http.MethodGet,
		Path:        "/api/v1/foods/{id}",
		Summary:     "Get food",
		Description: "Returns one catalog food",
		Tags:        []string{"Foods"},
	}, s.handleGetFood)

	huma.Register(s.api, huma.Operation{
		OperationID: "listPreparations",
		Method:      http.MethodGet,
		Path:        "/api/v1/preparations",
		Summary:     "List form options",
		Description: "Returns preparation methods and baby reactions offered by the feeding form",
		Tags:        []string{"Foods"},
	}, s.handleListPreparations)
}

// === DTOs ===

// ListFoodsInput contains catalog filters.
type ListFoodsInput struct {
	Category string `query:"category" doc:"Exact category, case-insensitive"`
	Allergen string `query:"allergen" doc:"Allergen label or tag, e.g. eggs"`
	PetSafe  string `query:"petSafe" doc:"Filter by pet safety"`
	Query    string `query:"q" doc:"Substring over name, description and category"`
}

// FoodsResponse contains a list of foods.
type FoodsResponse struct {
	Foods []domain.FoodRecord `json:"foods" doc:"Matching foods"`
	Total int                 `json:"total" doc:"Number of foods returned"`
}

// FoodsOutput wraps a food list for Huma.
type FoodsOutput struct {
	Body FoodsResponse
}

// CategoriesOutput wraps the category list for Huma.
type CategoriesOutput struct {
	Body struct {
		Categories []string `json:"categories" doc:"Distinct categories"`
	}
}

// SearchFoodsInput contains search parameters.
type SearchFoodsInput struct {
	Query string `query:"q" doc:"Search text"`
	Limit int    `query:"limit" default:"20" minimum:"1" maximum:"100" doc:"Maximum results"`
}

// SearchFoodsOutput wraps ranked results for Huma.
type SearchFoodsOutput struct {
	Body FoodsResponse
}

// GetFoodInput identifies one food.
type GetFoodInput struct {
	ID int `path:"id" doc:"Food ID"`
}

// FoodOutput wraps one food for Huma.
type FoodOutput struct {
	Body domain.FoodRecord
}

// PreparationsResponse lists the feeding form choices.
type PreparationsResponse struct {
	Preparations []string          `json:"preparations" doc:"Preparation methods"`
	Reactions    []domain.Reaction `json:"reactions" doc:"Baby reactions, least to most enthusiastic"`
}

// PreparationsOutput wraps the form choices for Huma.
type PreparationsOutput struct {
	Body PreparationsResponse
}

// === Handlers ===

func (s *Server) handleListFoods(_ context.Context, input *ListFoodsInput) (*FoodsOutput, error) {
	filter := catalog.Filter{
		Category: strings.TrimSpace(input.Category),
		Allergen: strings.TrimSpace(input.Allergen),
		Query:    strings.TrimSpace(input.Query),
	}
	if input.PetSafe != "" {
		safe, err := strconv.ParseBool(input.PetSafe)
		if err != nil {
			return nil, domainerrors.Validationf("petSafe must be true or false, got %q", input.PetSafe)
		}
		filter.PetSafe = &safe
	}

	foods := s.services.Foods.List(filter)
	return &FoodsOutput{Body: FoodsResponse{Foods: foods, Total: len(foods)}}, nil
}

func (s *Server) handleListCategories(_ context.Context, _ *struct{}) (*CategoriesOutput, error) {
	out := &CategoriesOutput{}
	out.Body.Categories = s.services.Foods.Categories()
	return out, nil
}

func (s *Server) handleListAllergenFoods(_ context.Context, _ *struct{}) (*FoodsOutput, error) {
	foods := s.services.Foods.AllergenFoods()
	return &FoodsOutput{Body: FoodsResponse{Foods: foods, Total: len(foods)}}, nil
}

func (s *Server) handleSearchFoods(ctx context.Context, input *SearchFoodsInput) (*SearchFoodsOutput, error) {
	res, err := s.services.Foods.Search(ctx, input.Query, input.Limit)
	if err != nil {
		return nil, err
	}
	return &SearchFoodsOutput{Body: FoodsResponse{Foods: res.Foods, Total: res.Total}}, nil
}

func (s *Server) handleGetFood(_ context.Context, input *GetFoodInput) (*FoodOutput, error) {
	food, err := s.services.Foods.Get(input.ID)
	if err != nil {
		return nil, err
	}
	return &FoodOutput{Body: food}, nil
}

func (s *Server) handleListPreparations(_ context.Context, _ *struct{}) (*PreparationsOutput, error) {
	return &PreparationsOutput{Body: PreparationsResponse{
		Preparations: domain.PreparationMethods,
		Reactions:    domain.Reactions,
	}}, nil
}
