package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve index mapping for food documents.
//
// Names and descriptions are full-text with English stemming. Category and
// allergen tags are keywords so multi-word values like "tree nuts" stay one
// term for filtering and faceting.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	nameFieldMapping := bleve.NewTextFieldMapping()
	nameFieldMapping.Analyzer = en.AnalyzerName
	nameFieldMapping.Store = true
	nameFieldMapping.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("name", nameFieldMapping)

	exactFieldMapping := bleve.NewTextFieldMapping()
	exactFieldMapping.Analyzer = keyword.Name
	exactFieldMapping.Store = false
	exactFieldMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt("name_exact", exactFieldMapping)

	descFieldMapping := bleve.NewTextFieldMapping()
	descFieldMapping.Analyzer = en.AnalyzerName
	descFieldMapping.Store = false
	docMapping.AddFieldMappingsAt("description", descFieldMapping)

	categoryFieldMapping := bleve.NewTextFieldMapping()
	categoryFieldMapping.Analyzer = keyword.Name
	categoryFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("category", categoryFieldMapping)

	// Allergen tags - faceted
	allergensFieldMapping := bleve.NewTextFieldMapping()
	allergensFieldMapping.Analyzer = keyword.Name
	allergensFieldMapping.Store = true
	allergensFieldMapping.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("allergens", allergensFieldMapping)

	petSafeFieldMapping := bleve.NewBooleanFieldMapping()
	docMapping.AddFieldMappingsAt("pet_safe", petSafeFieldMapping)

	chokingFieldMapping := bleve.NewBooleanFieldMapping()
	docMapping.AddFieldMappingsAt("choking_hazard", chokingFieldMapping)

	idFieldMapping := bleve.NewTextFieldMapping()
	idFieldMapping.Analyzer = keyword.Name
	idFieldMapping.Store = true
	idFieldMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt("id", idFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}
