package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/nibbleapp/nibble-server/internal/allergen"
)

// Params configures a food search.
type Params struct {
	Query string

	// Filters
	Category string // Exact category, case-insensitive
	Allergen string // Any allergen label; normalized to its tag
	PetSafe  *bool

	// Pagination
	Limit  int
	Offset int

	IncludeFacets bool
}

// DefaultLimit is used when Params.Limit is not positive.
const DefaultLimit = 20

// MaxLimit caps Params.Limit.
const MaxLimit = 100

// Result holds ranked hits and optional facet counts.
type Result struct {
	Query  string  `json:"query"`
	Total  uint64  `json:"total"`
	TookMs int64   `json:"took_ms"`
	Hits   []Hit   `json:"hits"`
	Facets *Facets `json:"facets,omitempty"`
}

// Hit is one matching food.
type Hit struct {
	FoodID   int     `json:"food_id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Score    float64 `json:"score"`
}

// Facets contains counts over the matching foods.
type Facets struct {
	Categories []FacetCount `json:"categories,omitempty"`
	Allergens  []FacetCount `json:"allergens,omitempty"`
}

// FacetCount represents a facet value and its count.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Search executes a ranked query. An empty query with no filters matches
// every food.
func (s *FoodIndex) Search(ctx context.Context, params Params) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := params.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	req := bleve.NewSearchRequestOptions(buildSearchQuery(params), limit, max(params.Offset, 0), false)
	req.SortBy([]string{"-_score", "name"})
	req.Fields = []string{"name", "category"}

	if params.IncludeFacets {
		req.AddFacet("category", bleve.NewFacetRequest("category", 20))
		req.AddFacet("allergens", bleve.NewFacetRequest("allergens", 20))
	}

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &Result{
		Query:  params.Query,
		Total:  res.Total,
		TookMs: res.Took.Milliseconds(),
		Hits:   make([]Hit, 0, len(res.Hits)),
	}

	for _, h := range res.Hits {
		foodID, err := strconv.Atoi(h.ID)
		if err != nil {
			s.logger.Warn("skipping hit with non-numeric id", "id", h.ID)
			continue
		}
		hit := Hit{FoodID: foodID, Score: h.Score}
		if n, ok := h.Fields["name"].(string); ok {
			hit.Name = n
		}
		if c, ok := h.Fields["category"].(string); ok {
			hit.Category = c
		}
		result.Hits = append(result.Hits, hit)
	}

	if params.IncludeFacets {
		result.Facets = extractFacets(res)
	}

	return result, nil
}

// buildSearchQuery constructs the Bleve query from params.
func buildSearchQuery(params Params) query.Query {
	var queries []query.Query

	if q := strings.TrimSpace(params.Query); q != "" {
		lower := strings.ToLower(q)

		// Whole-name hit outranks everything else.
		exact := bleve.NewTermQuery(lower)
		exact.SetField("name_exact")
		exact.SetBoost(6.0)

		nameMatch := bleve.NewMatchQuery(q)
		nameMatch.SetField("name")
		nameMatch.SetBoost(3.0)

		descMatch := bleve.NewMatchQuery(q)
		descMatch.SetField("description")
		descMatch.SetBoost(0.3)

		fuzzy := bleve.NewFuzzyQuery(lower)
		fuzzy.SetFuzziness(1)
		fuzzy.SetField("name")
		fuzzy.SetBoost(0.8)

		text := []query.Query{exact, nameMatch, descMatch, fuzzy}

		// Autocomplete, minimum 2 chars
		if len(lower) >= 2 {
			prefix := bleve.NewPrefixQuery(lower)
			prefix.SetField("name")
			prefix.SetBoost(0.5)
			text = append(text, prefix)
		}

		queries = append(queries, bleve.NewDisjunctionQuery(text...))
	}

	if params.Category != "" {
		tq := bleve.NewTermQuery(strings.ToLower(params.Category))
		tq.SetField("category")
		queries = append(queries, tq)
	}

	if params.Allergen != "" {
		tq := bleve.NewTermQuery(allergen.Normalize(params.Allergen))
		tq.SetField("allergens")
		queries = append(queries, tq)
	}

	if params.PetSafe != nil {
		bq := bleve.NewBoolFieldQuery(*params.PetSafe)
		bq.SetField("pet_safe")
		queries = append(queries, bq)
	}

	switch len(queries) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return queries[0]
	default:
		return bleve.NewConjunctionQuery(queries...)
	}
}

// extractFacets converts Bleve facets to our format.
func extractFacets(res *bleve.SearchResult) *Facets {
	facets := &Facets{}
	if f, ok := res.Facets["category"]; ok && f.Terms != nil {
		for _, term := range f.Terms.Terms() {
			facets.Categories = append(facets.Categories, FacetCount{Value: term.Term, Count: term.Count})
		}
	}
	if f, ok := res.Facets["allergens"]; ok && f.Terms != nil {
		for _, term := range f.Terms.Terms() {
			facets.Allergens = append(facets.Allergens, FacetCount{Value: term.Term, Count: term.Count})
		}
	}
	return facets
}
