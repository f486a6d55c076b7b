// Package monitor implements the price-drop decision engine.
package monitor

import (
	"context"
	"fmt"
	"log"

	"dealwatch/internal/models"
	"dealwatch/internal/services/pricing"
	"dealwatch/internal/services/wishlist"

	"gorm.io/gorm"
)

// DropEvent signals that a tracked product's best market price fell to or
// below its target. ItemID pins the event to a specific wishlist row so the
// dispatcher confirms delivery on the right item even when a user tracks
// the same product twice.
type DropEvent struct {
	UserID    uint    `json:"user_id"`
	ItemID    uint    `json:"item_id"`
	ProductID string  `json:"product_id"`
	NewPrice  float64 `json:"new_price"`
	Retailer  string  `json:"retailer"`
}

type Monitor struct {
	db     *gorm.DB
	store  *wishlist.Store
	source pricing.Source
}

func New(db *gorm.DB, store *wishlist.Store, source pricing.Source) *Monitor {
	return &Monitor{
		db:     db,
		store:  store,
		source: source,
	}
}

// Evaluate compares the current best quote against the target price of each
// of the user's wishlist items and returns the drop events that warrant a
// notification.
//
// An event is emitted iff the minimum quoted price is at or below the target
// AND no notification was ever confirmed at that price or lower. Emission
// does not set last_notified_price; the dispatcher does that only after the
// gateway accepts the message, so a failed delivery is naturally retried on
// the next cycle.
//
// Items whose quotes cannot be fetched, or that have no quotes at all, are
// skipped; Evaluate only fails when the wishlist itself cannot be read.
func (m *Monitor) Evaluate(ctx context.Context, userID uint) ([]DropEvent, error) {
	items, err := m.store.Items(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("evaluate user %d: %w", userID, err)
	}

	var events []DropEvent
	for _, item := range items {
		quotes, err := m.source.FetchQuotes(ctx, item.ProductID)
		if err != nil {
			log.Printf("skipping item %d: quotes for %s unavailable: %v", item.ID, item.ProductID, err)
			continue
		}
		if len(quotes) == 0 {
			continue
		}

		m.recordQuotes(ctx, quotes)

		best := quotes[0]
		for _, q := range quotes[1:] {
			if q.Price < best.Price {
				best = q
			}
		}

		if err := m.store.SetLastKnownPrice(ctx, userID, item.ID, best.Price); err != nil {
			log.Printf("failed to record last known price for item %d: %v", item.ID, err)
		}

		if best.Price > item.TargetPrice {
			continue
		}
		if item.LastNotifiedPrice != nil && best.Price >= *item.LastNotifiedPrice {
			continue
		}

		events = append(events, DropEvent{
			UserID:    userID,
			ItemID:    item.ID,
			ProductID: item.ProductID,
			NewPrice:  best.Price,
			Retailer:  best.Retailer,
		})
	}
	return events, nil
}

// recordQuotes appends the observation batch to the price history. History
// is best-effort; a write failure never blocks the evaluation.
func (m *Monitor) recordQuotes(ctx context.Context, quotes []pricing.Quote) {
	rows := make([]models.PriceQuote, 0, len(quotes))
	for _, q := range quotes {
		rows = append(rows, models.PriceQuote{
			ProductID:  q.ProductID,
			Retailer:   q.Retailer,
			Price:      q.Price,
			URL:        q.URL,
			ObservedAt: q.ObservedAt,
		})
	}
	if err := m.db.WithContext(ctx).Create(&rows).Error; err != nil {
		log.Printf("failed to record %d price quotes: %v", len(rows), err)
	}
}
