package wishlist

import (
	"context"
	"testing"

	"dealwatch/internal/apperrors"
	"dealwatch/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

func TestAddAndListItems(t *testing.T) {
	store := NewStore(newTestDB(t))
	ctx := context.Background()

	first, err := store.AddItem(ctx, 1, "p1", 900)
	require.NoError(t, err)
	assert.NotZero(t, first.ID)

	second, err := store.AddItem(ctx, 1, "p2", 450)
	require.NoError(t, err)

	items, err := store.Items(ctx, 1)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, first.ID, items[0].ID)
	assert.Equal(t, second.ID, items[1].ID)
	assert.Equal(t, "p1", items[0].ProductID)
	assert.Nil(t, items[0].LastNotifiedPrice)
}

func TestItemsMissingWishlistIsEmpty(t *testing.T) {
	store := NewStore(newTestDB(t))

	items, err := store.Items(context.Background(), 42)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestDuplicateProductAllowed(t *testing.T) {
	store := NewStore(newTestDB(t))
	ctx := context.Background()

	_, err := store.AddItem(ctx, 1, "p1", 900)
	require.NoError(t, err)
	_, err = store.AddItem(ctx, 1, "p1", 850)
	require.NoError(t, err)

	items, err := store.Items(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestUpdateItem(t *testing.T) {
	store := NewStore(newTestDB(t))
	ctx := context.Background()

	item, err := store.AddItem(ctx, 1, "p1", 900)
	require.NoError(t, err)
	require.NoError(t, store.ConfirmNotified(ctx, 1, item.ID, 880))

	// Same product: target changes, notification state survives
	updated, err := store.UpdateItem(ctx, 1, item.ID, "p1", 850)
	require.NoError(t, err)
	assert.Equal(t, 850.0, updated.TargetPrice)
	require.NotNil(t, updated.LastNotifiedPrice)
	assert.Equal(t, 880.0, *updated.LastNotifiedPrice)

	// New product: stale notification state is cleared
	updated, err = store.UpdateItem(ctx, 1, item.ID, "p2", 500)
	require.NoError(t, err)
	assert.Equal(t, "p2", updated.ProductID)
	assert.Nil(t, updated.LastNotifiedPrice)
	assert.Zero(t, updated.LastKnownPrice)
}

func TestUpdateItemNotFound(t *testing.T) {
	store := NewStore(newTestDB(t))
	ctx := context.Background()

	_, err := store.UpdateItem(ctx, 1, 99, "p1", 100)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	// An item id belonging to another user is invisible
	item, err := store.AddItem(ctx, 2, "p1", 100)
	require.NoError(t, err)
	_, err = store.UpdateItem(ctx, 1, item.ID, "p1", 200)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRemoveItemIsolation(t *testing.T) {
	store := NewStore(newTestDB(t))
	ctx := context.Background()

	mine, err := store.AddItem(ctx, 1, "p1", 900)
	require.NoError(t, err)
	theirs, err := store.AddItem(ctx, 2, "p1", 800)
	require.NoError(t, err)

	err = store.RemoveItem(ctx, 1, theirs.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, store.RemoveItem(ctx, 1, mine.ID))
	err = store.RemoveItem(ctx, 1, mine.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	// The other user's list is untouched throughout
	items, err := store.Items(ctx, 2)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, theirs.ID, items[0].ID)
}

func TestConfirmNotifiedMonotonic(t *testing.T) {
	store := NewStore(newTestDB(t))
	ctx := context.Background()

	item, err := store.AddItem(ctx, 1, "p1", 900)
	require.NoError(t, err)

	require.NoError(t, store.ConfirmNotified(ctx, 1, item.ID, 880))

	// Equal or higher confirmations are no-ops
	require.NoError(t, store.ConfirmNotified(ctx, 1, item.ID, 880))
	require.NoError(t, store.ConfirmNotified(ctx, 1, item.ID, 895))

	items, err := store.Items(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, items[0].LastNotifiedPrice)
	assert.Equal(t, 880.0, *items[0].LastNotifiedPrice)

	// A strictly lower price moves the watermark down
	require.NoError(t, store.ConfirmNotified(ctx, 1, item.ID, 870))
	items, err = store.Items(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 870.0, *items[0].LastNotifiedPrice)
}

func TestConfirmNotifiedMissingItem(t *testing.T) {
	store := NewStore(newTestDB(t))

	err := store.ConfirmNotified(context.Background(), 1, 7, 100)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUserIDs(t *testing.T) {
	store := NewStore(newTestDB(t))
	ctx := context.Background()

	_, err := store.AddItem(ctx, 3, "p1", 10)
	require.NoError(t, err)
	_, err = store.AddItem(ctx, 1, "p2", 20)
	require.NoError(t, err)
	_, err = store.AddItem(ctx, 1, "p3", 30)
	require.NoError(t, err)

	ids, err := store.UserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 3}, ids)
}
