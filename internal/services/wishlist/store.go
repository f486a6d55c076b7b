// Package wishlist owns the per-user collection of tracked products.
//
// Items are addressed by their stable primary key, not by list position, so
// a concurrent delete cannot shift which row an edit lands on. Mutations on
// a single user's list are additionally serialized through a per-user lock;
// operations on different users never contend.
package wishlist

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"dealwatch/internal/apperrors"
	"dealwatch/internal/models"

	"gorm.io/gorm"
)

type Store struct {
	db    *gorm.DB
	locks sync.Map // userID -> *sync.Mutex
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) userLock(userID uint) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// AddItem appends a tracked product to the user's wishlist and returns the
// stored item with its assigned id. Duplicate product ids per user are
// permitted: a user may track the same product with different targets.
func (s *Store) AddItem(ctx context.Context, userID uint, productID string, targetPrice float64) (*models.WishlistItem, error) {
	if productID == "" || targetPrice <= 0 {
		return nil, fmt.Errorf("%w: product_id and a positive target_price are required", apperrors.ErrInvalidInput)
	}

	mu := s.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	item := models.WishlistItem{
		UserID:      userID,
		ProductID:   productID,
		TargetPrice: targetPrice,
	}
	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, fmt.Errorf("failed to add wishlist item: %w", err)
	}
	return &item, nil
}

// UpdateItem replaces the tracked product and target price of an existing
// item. Changing the product clears the price history fields so stale state
// from the previous product cannot suppress notifications for the new one.
func (s *Store) UpdateItem(ctx context.Context, userID, itemID uint, productID string, targetPrice float64) (*models.WishlistItem, error) {
	if productID == "" || targetPrice <= 0 {
		return nil, fmt.Errorf("%w: product_id and a positive target_price are required", apperrors.ErrInvalidInput)
	}

	mu := s.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	var item models.WishlistItem
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", itemID, userID).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: wishlist item %d", apperrors.ErrNotFound, itemID)
		}
		return nil, fmt.Errorf("failed to load wishlist item: %w", err)
	}

	if item.ProductID != productID {
		item.LastKnownPrice = 0
		item.LastNotifiedPrice = nil
	}
	item.ProductID = productID
	item.TargetPrice = targetPrice

	if err := s.db.WithContext(ctx).Save(&item).Error; err != nil {
		return nil, fmt.Errorf("failed to update wishlist item: %w", err)
	}
	return &item, nil
}

// RemoveItem deletes the item if it exists and belongs to the user.
func (s *Store) RemoveItem(ctx context.Context, userID, itemID uint) error {
	mu := s.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", itemID, userID).Delete(&models.WishlistItem{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete wishlist item: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: wishlist item %d", apperrors.ErrNotFound, itemID)
	}
	return nil
}

// Items returns the user's wishlist in insertion order. A user with no
// wishlist gets an empty slice, never an error.
func (s *Store) Items(ctx context.Context, userID uint) ([]models.WishlistItem, error) {
	var items []models.WishlistItem
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id asc").Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load wishlist: %w", err)
	}
	return items, nil
}

// UserIDs lists every user that currently tracks at least one product.
// The monitor worker uses it to drive its evaluation cycles.
func (s *Store) UserIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.WishlistItem{}).Distinct("user_id").Order("user_id asc").Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list wishlist users: %w", err)
	}
	return ids, nil
}

// SetLastKnownPrice records the latest observed market price for the item.
// This is unconditional: it runs whether or not a drop event is emitted.
func (s *Store) SetLastKnownPrice(ctx context.Context, userID, itemID uint, price float64) error {
	res := s.db.WithContext(ctx).Model(&models.WishlistItem{}).
		Where("id = ? AND user_id = ?", itemID, userID).
		Update("last_known_price", price)
	if res.Error != nil {
		return fmt.Errorf("failed to update last known price: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: wishlist item %d", apperrors.ErrNotFound, itemID)
	}
	return nil
}

// ConfirmNotified records that a notification for the given price was
// delivered. The write is conditional: it only lands when the new price is
// strictly below any previously confirmed one, which keeps
// last_notified_price monotonically non-increasing even if the monitor and
// dispatcher race. A confirmation at an equal or higher price is a no-op.
func (s *Store) ConfirmNotified(ctx context.Context, userID, itemID uint, price float64) error {
	res := s.db.WithContext(ctx).Model(&models.WishlistItem{}).
		Where("id = ? AND user_id = ?", itemID, userID).
		Where("last_notified_price IS NULL OR last_notified_price > ?", price).
		Update("last_notified_price", price)
	if res.Error != nil {
		return fmt.Errorf("failed to confirm notification: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Either the item vanished or a lower price was already confirmed.
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.WishlistItem{}).
			Where("id = ? AND user_id = ?", itemID, userID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to confirm notification: %w", err)
		}
		if count == 0 {
			return fmt.Errorf("%w: wishlist item %d", apperrors.ErrNotFound, itemID)
		}
	}
	return nil
}
