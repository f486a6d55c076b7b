// Package referral manages invite codes and the cashback ledger.
package referral

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"math"
	"time"

	"dealwatch/internal/apperrors"
	"dealwatch/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultCashbackPercentage applies when a cashback request omits one.
const DefaultCashbackPercentage = 5.0

type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// GetOrCreateCode returns the user's referral code, minting one on first
// request. Repeated calls always return the same code: the unique index on
// user_id plus the conflict-ignoring insert make the lazy creation safe
// under concurrent requests, and the re-read returns whichever row won.
func (l *Ledger) GetOrCreateCode(ctx context.Context, userID uint) (*models.ReferralCode, error) {
	if userID == 0 {
		return nil, fmt.Errorf("%w: user id is required", apperrors.ErrInvalidInput)
	}

	var code models.ReferralCode
	err := l.db.WithContext(ctx).Where("user_id = ?", userID).First(&code).Error
	if err == nil {
		return &code, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up referral code: %w", err)
	}

	fresh := models.ReferralCode{
		UserID: userID,
		Code:   generateCode(userID),
	}
	err = l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&fresh).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create referral code: %w", err)
	}

	if err := l.db.WithContext(ctx).Where("user_id = ?", userID).First(&code).Error; err != nil {
		return nil, fmt.Errorf("failed to reload referral code: %w", err)
	}
	return &code, nil
}

// generateCode derives an unguessable code from the user id plus a
// time-based component so two users can never collide on the same digest
// input.
func generateCode(userID uint) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%d", userID, time.Now().UnixNano())))
	return fmt.Sprintf("DW-%X", sum[:5])
}

// CreditCashback records a referrer's credit for a completed purchase.
// Crediting is idempotent per purchase id: the first call inserts the
// entry, every later call (including concurrent retries) gets the original
// entry back. The duplicate check and the insert are a single atomic
// statement thanks to the unique index on purchase_id.
func (l *Ledger) CreditCashback(ctx context.Context, purchaseID string, referrerID, refereeID uint, purchaseAmount, cashbackPercentage float64) (*models.CashbackEntry, error) {
	if purchaseID == "" {
		return nil, fmt.Errorf("%w: purchase id is required", apperrors.ErrInvalidInput)
	}
	if referrerID == 0 || refereeID == 0 {
		return nil, fmt.Errorf("%w: referrer and referee ids are required", apperrors.ErrInvalidInput)
	}
	if purchaseAmount <= 0 {
		return nil, fmt.Errorf("%w: purchase amount must be positive", apperrors.ErrInvalidInput)
	}
	if cashbackPercentage < 0 || cashbackPercentage > 100 {
		return nil, fmt.Errorf("%w: cashback percentage must be between 0 and 100", apperrors.ErrInvalidInput)
	}

	entry := models.CashbackEntry{
		PurchaseID:         purchaseID,
		ReferrerID:         referrerID,
		RefereeID:          refereeID,
		PurchaseAmount:     purchaseAmount,
		CashbackPercentage: cashbackPercentage,
		CashbackAmount:     roundCurrency(purchaseAmount * cashbackPercentage / 100),
	}
	err := l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "purchase_id"}},
		DoNothing: true,
	}).Create(&entry).Error
	if err != nil {
		return nil, fmt.Errorf("failed to credit cashback: %w", err)
	}

	var out models.CashbackEntry
	if err := l.db.WithContext(ctx).Where("purchase_id = ?", purchaseID).First(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to reload cashback entry: %w", err)
	}
	return &out, nil
}

// Entries returns the full ledger, newest first.
func (l *Ledger) Entries(ctx context.Context) ([]models.CashbackEntry, error) {
	var entries []models.CashbackEntry
	if err := l.db.WithContext(ctx).Order("created_at desc").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load cashback entries: %w", err)
	}
	return entries, nil
}

// roundCurrency rounds to the ledger's currency precision (2 decimals).
func roundCurrency(v float64) float64 {
	return math.Round(v*100) / 100
}
