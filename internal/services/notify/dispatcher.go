// Package notify delivers drop-event notifications through an external
// messaging gateway and keeps the append-only delivery audit trail.
package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"dealwatch/internal/apperrors"
	"dealwatch/internal/models"
	"dealwatch/internal/services/monitor"
	"dealwatch/internal/services/wishlist"

	"gorm.io/gorm"
)

// Gateway sends one message to one channel. A single call is a single
// delivery attempt; the gateway never retries internally.
type Gateway interface {
	Send(ctx context.Context, channel, message string) error
}

// Directory resolves a user's delivery channel (a phone number here). It
// reports ErrChannelUnavailable for users who opted out or have no contact
// on file.
type Directory interface {
	Contact(ctx context.Context, userID uint) (string, error)
}

type Dispatcher struct {
	db        *gorm.DB
	store     *wishlist.Store
	gateway   Gateway
	directory Directory
}

func NewDispatcher(db *gorm.DB, store *wishlist.Store, gateway Gateway, directory Directory) *Dispatcher {
	return &Dispatcher{
		db:        db,
		store:     store,
		gateway:   gateway,
		directory: directory,
	}
}

// Dispatch attempts to deliver one drop event and records the outcome.
// Every attempt produces a new NotificationRecord; records are never
// mutated afterwards.
//
// last_notified_price is confirmed on the wishlist item only after the
// gateway accepts the message. On any failure the item is left untouched,
// so the next evaluation cycle re-emits the event — at-least-once delivery
// with idempotent suppression once a send succeeds.
func (d *Dispatcher) Dispatch(ctx context.Context, event monitor.DropEvent) (*models.NotificationRecord, error) {
	channel, err := d.directory.Contact(ctx, event.UserID)
	if err != nil {
		rec := d.record(ctx, event, "", models.NotificationFailed)
		return rec, fmt.Errorf("%w: user %d: %v", apperrors.ErrChannelUnavailable, event.UserID, err)
	}

	message := fmt.Sprintf("Price drop: %s is now %.2f at %s (your target was met)",
		event.ProductID, event.NewPrice, event.Retailer)

	if err := d.gateway.Send(ctx, channel, message); err != nil {
		rec := d.record(ctx, event, channel, models.NotificationFailed)
		return rec, fmt.Errorf("%w: sending to %s: %v", apperrors.ErrUpstreamUnavailable, channel, err)
	}

	rec := d.record(ctx, event, channel, models.NotificationSent)
	if err := d.store.ConfirmNotified(ctx, event.UserID, event.ItemID, event.NewPrice); err != nil {
		log.Printf("notification sent but confirmation failed for item %d: %v", event.ItemID, err)
	}
	return rec, nil
}

func (d *Dispatcher) record(ctx context.Context, event monitor.DropEvent, channel, status string) *models.NotificationRecord {
	rec := models.NotificationRecord{
		UserID:      event.UserID,
		ProductID:   event.ProductID,
		Price:       event.NewPrice,
		Channel:     channel,
		Status:      status,
		AttemptedAt: time.Now(),
	}
	if err := d.db.WithContext(ctx).Create(&rec).Error; err != nil {
		log.Printf("failed to append notification record for user %d: %v", event.UserID, err)
	}
	return &rec
}
