package providers

import (
	"github.com/samber/do/v2"

	"github.com/nibbleapp/nibble-server/internal/catalog"
	"github.com/nibbleapp/nibble-server/internal/config"
	"github.com/nibbleapp/nibble-server/internal/logger"
	"github.com/nibbleapp/nibble-server/internal/search"
)

// ProvideCatalog provides the embedded food catalog.
func ProvideCatalog(i do.Injector) (*catalog.Catalog, error) {
	log := do.MustInvoke[*logger.Logger](i)

	cat := catalog.Default()
	log.Info("Food catalog loaded", "foods", cat.Len(), "categories", len(cat.Categories()))

	return cat, nil
}

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.FoodIndex
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex opens the catalog index and brings it in line with the
// embedded catalog.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	cat := do.MustInvoke[*catalog.Catalog](i)

	index, err := search.NewFoodIndex(search.Options{
		DataPath: cfg.SearchIndexPath(),
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}

	if err := index.Sync(cat.All()); err != nil {
		_ = index.Close()
		return nil, err
	}

	docCount, _ := index.DocumentCount()
	log.Info("Search index initialized", "documents", docCount)

	return &SearchIndexHandle{FoodIndex: index}, nil
}
