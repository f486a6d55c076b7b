package models

import (
	"time"

	"gorm.io/gorm"
)

// Notification delivery statuses
const (
	NotificationPending = "pending"
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
)

// User represents a user in the system
type User struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	Email         string         `json:"email" gorm:"unique;not null"`
	Username      string         `json:"username"`
	Phone         string         `json:"phone"`
	AlertsEnabled bool           `json:"alerts_enabled" gorm:"default:true"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index"`
}

// WishlistItem is a single tracked product on a user's wishlist. Items carry
// a stable primary key; all edit/delete operations address items by that key,
// never by list position, so concurrent mutations cannot shift targets.
type WishlistItem struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	UserID            uint      `json:"user_id" gorm:"index;not null"`
	User              User      `json:"-" gorm:"foreignKey:UserID"`
	ProductID         string    `json:"product_id" gorm:"index;not null"`
	TargetPrice       float64   `json:"target_price" gorm:"not null"`
	LastKnownPrice    float64   `json:"last_known_price"`
	LastNotifiedPrice *float64  `json:"last_notified_price,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// PriceQuote is one observed retailer price for a product. Rows are
// append-only snapshots; multiple retailers per observation cycle.
type PriceQuote struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	ProductID  string    `json:"product_id" gorm:"index;not null"`
	Retailer   string    `json:"retailer" gorm:"not null"`
	Price      float64   `json:"price"`
	URL        string    `json:"url"`
	ObservedAt time.Time `json:"observed_at" gorm:"index"`
	CreatedAt  time.Time `json:"created_at"`
}

// NotificationRecord is the audit trail of delivery attempts. Every attempt
// creates a new row; rows are never updated after creation.
type NotificationRecord struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	UserID      uint      `json:"user_id" gorm:"index;not null"`
	ProductID   string    `json:"product_id" gorm:"index;not null"`
	Price       float64   `json:"price"`
	Channel     string    `json:"channel"`
	Status      string    `json:"status" gorm:"default:'pending'"` // pending, sent, failed
	AttemptedAt time.Time `json:"attempted_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// ReferralCode maps a user to their invite code. One code per user,
// immutable once created.
type ReferralCode struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"uniqueIndex;not null"`
	Code      string    `json:"code" gorm:"uniqueIndex;not null"`
	CreatedAt time.Time `json:"created_at"`
}

// CashbackEntry credits a referrer for a referred purchase. The unique index
// on PurchaseID is what makes crediting idempotent: a retried request hits
// the constraint instead of inserting a second row.
type CashbackEntry struct {
	ID                 uint      `json:"id" gorm:"primaryKey"`
	PurchaseID         string    `json:"purchase_id" gorm:"uniqueIndex;not null"`
	ReferrerID         uint      `json:"referrer_id" gorm:"index;not null"`
	RefereeID          uint      `json:"referee_id" gorm:"index;not null"`
	PurchaseAmount     float64   `json:"purchase_amount"`
	CashbackPercentage float64   `json:"cashback_percentage"`
	CashbackAmount     float64   `json:"cashback_amount"`
	CreatedAt          time.Time `json:"created_at"`
}
