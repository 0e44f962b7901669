// Package seed imports favorites from a YAML file.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/tidy/internal/domain"
	"github.com/MrSnakeDoc/tidy/internal/logger"
	"github.com/MrSnakeDoc/tidy/internal/store/sqlstore"
)

// Store is the part of the favorites store the importer writes to.
type Store interface {
	FindByURL(ctx context.Context, url string) (*domain.Favorite, error)
	Create(ctx context.Context, f domain.Favorite) (*domain.Favorite, error)
}

// Result counts what an import did.
type Result struct {
	Created  int `json:"created"`
	Existing int `json:"existing"`
	NoURL    int `json:"no_url"`
}

// Importer creates favorites that are not stored yet.
type Importer struct {
	store  Store
	logger logger.Logger
}

func NewImporter(store Store, log logger.Logger) *Importer {
	return &Importer{store: store, logger: log.With(logger.Component("seed"))}
}

// ImportFile loads path and imports it.
func (i *Importer) ImportFile(ctx context.Context, path string) (Result, error) {
	file, err := NewLoader(path).Load()
	if err != nil {
		return Result{}, err
	}
	return i.Import(ctx, file)
}

// Import creates every entry whose URL is not stored yet. It stops on the
// first store error.
func (i *Importer) Import(ctx context.Context, file File) (Result, error) {
	favs, noURL := Map(file)
	res := Result{NoURL: noURL}

	for _, f := range favs {
		_, err := i.store.FindByURL(ctx, f.URL)
		switch {
		case err == nil:
			res.Existing++
			i.logger.Debug("favorite already exists", logger.String("url", f.URL))
			continue
		case !errors.Is(err, sqlstore.ErrNotFound):
			return res, fmt.Errorf("lookup %s: %w", f.URL, err)
		}

		created, err := i.store.Create(ctx, f)
		if err != nil {
			return res, fmt.Errorf("create %s: %w", f.Name, err)
		}
		res.Created++
		i.logger.Info("favorite imported",
			logger.Int64("id", created.ID),
			logger.String("name", created.Name),
			logger.String("category", created.Category))
	}
	return res, nil
}
