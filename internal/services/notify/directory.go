package notify

import (
	"context"
	"errors"
	"fmt"

	"dealwatch/internal/apperrors"
	"dealwatch/internal/models"

	"gorm.io/gorm"
)

// UserDirectory resolves delivery channels from the users table. It stands
// in for the identity collaborator: the dispatcher trusts whatever contact
// it returns and performs no authentication of its own.
type UserDirectory struct {
	db *gorm.DB
}

func NewUserDirectory(db *gorm.DB) *UserDirectory {
	return &UserDirectory{db: db}
}

func (d *UserDirectory) Contact(ctx context.Context, userID uint) (string, error) {
	var user models.User
	err := d.db.WithContext(ctx).First(&user, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: user %d", apperrors.ErrChannelUnavailable, userID)
		}
		return "", fmt.Errorf("failed to resolve contact: %w", err)
	}
	if !user.AlertsEnabled {
		return "", fmt.Errorf("%w: user %d opted out", apperrors.ErrChannelUnavailable, userID)
	}
	if user.Phone == "" {
		return "", fmt.Errorf("%w: user %d has no phone on file", apperrors.ErrChannelUnavailable, userID)
	}
	return user.Phone, nil
}
