package catalog

import (
	"context"
	"errors"
	"fmt"

	domcatalog "github.com/mossleaf/bookmart/internal/domain/catalog"
	"github.com/mossleaf/bookmart/internal/observability"
	"github.com/mossleaf/bookmart/internal/observability/logctx"
)

type IDGenerator interface {
	NewID() string
}

// Service manages the sellable catalog: adding titles, restocking, listing.
// Stock decrements happen only in the settlement engine.
type Service struct {
	items domcatalog.Repository
	idGen IDGenerator
	log   observability.Logger
}

func NewService(items domcatalog.Repository, idGen IDGenerator, logger observability.Logger) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Service{
		items: items,
		idGen: idGen,
		log:   logger.With(observability.F("component", "catalog_service")),
	}
}

func (s *Service) Add(ctx context.Context, title string, unitPrice int64, quantity int) (*domcatalog.Item, error) {
	logger := logctx.FromOr(ctx, s.log)

	item, err := domcatalog.NewItem(s.idGen.NewID(), title, unitPrice, quantity)
	if err != nil {
		return nil, err
	}
	if err := s.items.Create(ctx, item); err != nil {
		logger.Error("item_create_failed",
			observability.F("title", title),
			observability.F("error", err.Error()),
		)
		return nil, fmt.Errorf("catalog: create: %w", err)
	}

	logger.Info("item_added",
		observability.F("item_id", item.ID),
		observability.F("title", title),
		observability.F("quantity", quantity),
	)
	return item, nil
}

// Restock adds quantity back to an item, retrying lost optimistic races.
func (s *Service) Restock(ctx context.Context, itemID string, quantity int) (*domcatalog.Item, error) {
	logger := logctx.FromOr(ctx, s.log)

	for attempt := 0; ; attempt++ {
		item, err := s.items.Get(ctx, itemID)
		if err != nil {
			return nil, err
		}
		if err := item.Release(quantity); err != nil {
			return nil, err
		}
		err = s.items.Save(ctx, item)
		if errors.Is(err, domcatalog.ErrConflict) && attempt < 2 {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("catalog: restock: %w", err)
		}

		logger.Info("item_restocked",
			observability.F("item_id", itemID),
			observability.F("quantity", quantity),
			observability.F("stock", item.Quantity),
		)
		return item, nil
	}
}

func (s *Service) Get(ctx context.Context, itemID string) (*domcatalog.Item, error) {
	return s.items.Get(ctx, itemID)
}

func (s *Service) List(ctx context.Context) ([]*domcatalog.Item, error) {
	return s.items.List(ctx)
}
