// Package search keeps a Bleve index over the food catalog for ranked,
// typo-tolerant lookups.
package search

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/nibbleapp/nibble-server/internal/domain"
)

// FoodIndex wraps a Bleve index with catalog-specific operations.
//
// All public methods are safe for concurrent use. The mutex guards the
// index handle during rebuilds.
type FoodIndex struct {
	index  bleve.Index
	path   string // Empty for in-memory indexes
	logger *slog.Logger
	mu     sync.RWMutex
}

// Options configures the food index.
type Options struct {
	DataPath string       // Directory for index storage; empty keeps the index in memory
	Logger   *slog.Logger // Uses a discard logger if nil
}

// mappingVersion is incremented whenever the index mapping changes.
// A mismatch on startup triggers a rebuild.
const mappingVersion = "1"

// NewFoodIndex creates or opens a food index.
// A corrupted or outdated on-disk index is removed and recreated empty.
func NewFoodIndex(opts Options) (*FoodIndex, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if opts.DataPath == "" {
		index, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create in-memory index: %w", err)
		}
		return &FoodIndex{index: index, logger: logger}, nil
	}

	if err := os.MkdirAll(opts.DataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	indexPath := filepath.Join(opts.DataPath, "foods.bleve")
	versionPath := filepath.Join(opts.DataPath, "foods.version")

	var index bleve.Index
	needsRebuild := false

	if _, statErr := os.Stat(indexPath); statErr == nil {
		existing, readErr := os.ReadFile(versionPath)
		switch {
		case readErr != nil:
			logger.Info("food index has no version file, will rebuild",
				"new_version", mappingVersion)
			needsRebuild = true
		case string(existing) != mappingVersion:
			logger.Info("food index mapping version changed, will rebuild",
				"old_version", string(existing),
				"new_version", mappingVersion)
			needsRebuild = true
		default:
			opened, err := bleve.Open(indexPath)
			if err != nil {
				logger.Warn("failed to open existing index, will recreate",
					"path", indexPath,
					"error", err)
				needsRebuild = true
			} else {
				index = opened
			}
		}
	}

	if needsRebuild {
		if err := os.RemoveAll(indexPath); err != nil {
			return nil, fmt.Errorf("remove old index: %w", err)
		}
	}

	if index == nil {
		created, err := bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		index = created
		if err := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); err != nil {
			logger.Warn("failed to write food index version file", "error", err)
		}
		logger.Info("created new food index", "path", indexPath, "mapping_version", mappingVersion)
	} else {
		logger.Info("opened existing food index", "path", indexPath)
	}

	return &FoodIndex{index: index, path: indexPath, logger: logger}, nil
}

// Close closes the index and releases resources.
func (s *FoodIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexFoods indexes catalog records in one batch.
func (s *FoodIndex) IndexFoods(foods []domain.FoodRecord) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	batch := s.index.NewBatch()
	for _, f := range foods {
		doc := FoodToDocument(f)
		if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
			return fmt.Errorf("batch index %s: %w", doc.ID, err)
		}
	}
	if err := s.index.Batch(batch); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Sync makes the index hold exactly the given catalog. A matching document
// count is taken as already in sync, since the catalog never changes at
// runtime.
func (s *FoodIndex) Sync(foods []domain.FoodRecord) error {
	count, err := s.DocumentCount()
	if err != nil {
		return fmt.Errorf("count documents: %w", err)
	}
	if count == uint64(len(foods)) {
		s.logger.Debug("food index up to date", "documents", count)
		return nil
	}
	if count > 0 {
		if err := s.Rebuild(); err != nil {
			return err
		}
	}
	if err := s.IndexFoods(foods); err != nil {
		return err
	}
	s.logger.Info("indexed food catalog", "documents", len(foods))
	return nil
}

// DocumentCount returns the total number of indexed documents.
func (s *FoodIndex) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Rebuild drops the existing index and creates an empty one.
// It blocks all other operations until done.
func (s *FoodIndex) Rebuild() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}

	var (
		index bleve.Index
		err   error
	)
	if s.path == "" {
		index, err = bleve.NewMemOnly(buildIndexMapping())
	} else {
		if err := os.RemoveAll(s.path); err != nil {
			return fmt.Errorf("remove index: %w", err)
		}
		index, err = bleve.New(s.path, buildIndexMapping())
	}
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	s.index = index
	s.logger.Info("rebuilt food index", "path", s.path)
	return nil
}
