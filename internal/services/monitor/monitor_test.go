package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"dealwatch/internal/database"
	"dealwatch/internal/models"
	"dealwatch/internal/services/pricing"
	"dealwatch/internal/services/wishlist"

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

// fakeSource serves canned quotes per product id.
type fakeSource struct {
	quotes map[string][]pricing.Quote
	errs   map[string]error
}

func (f *fakeSource) FetchQuotes(_ context.Context, productID string) ([]pricing.Quote, error) {
	if err, ok := f.errs[productID]; ok {
		return nil, err
	}
	return f.quotes[productID], nil
}

func (f *fakeSource) set(productID string, prices map[string]float64) {
	var quotes []pricing.Quote
	for retailer, price := range prices {
		quotes = append(quotes, pricing.Quote{
			ProductID:  productID,
			Retailer:   retailer,
			Price:      price,
			ObservedAt: time.Now(),
		})
	}
	f.quotes[productID] = quotes
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		quotes: make(map[string][]pricing.Quote),
		errs:   make(map[string]error),
	}
}

func TestEvaluateDropScenario(t *testing.T) {
	db := newTestDB(t)
	store := wishlist.NewStore(db)
	source := newFakeSource()
	mon := New(db, store, source)
	ctx := context.Background()

	item, err := store.AddItem(ctx, 1, "p1", 900)
	require.NoError(t, err)

	// Minimum quote 950 is above the 900 target: no event
	source.set("p1", map[string]float64{"Amazon": 999, "Flipkart": 950})
	events, err := mon.Evaluate(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, events)

	items, err := store.Items(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 950.0, items[0].LastKnownPrice)

	// Price falls to 880: one event
	source.set("p1", map[string]float64{"Flipkart": 880})
	events, err = mon.Evaluate(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, DropEvent{
		UserID:    1,
		ItemID:    item.ID,
		ProductID: "p1",
		NewPrice:  880,
		Retailer:  "Flipkart",
	}, events[0])

	// Delivery confirmed at 880; 885 is still under target but not lower
	// than the notified price, so it stays quiet
	require.NoError(t, store.ConfirmNotified(ctx, 1, item.ID, 880))
	source.set("p1", map[string]float64{"Flipkart": 885})
	events, err = mon.Evaluate(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, events)

	items, err = store.Items(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 885.0, items[0].LastKnownPrice)
}

func TestEvaluateAtMostOncePerPricePoint(t *testing.T) {
	db := newTestDB(t)
	store := wishlist.NewStore(db)
	source := newFakeSource()
	mon := New(db, store, source)
	ctx := context.Background()

	item, err := store.AddItem(ctx, 1, "p1", 900)
	require.NoError(t, err)

	source.set("p1", map[string]float64{"Amazon": 880})
	events, err := mon.Evaluate(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NoError(t, store.ConfirmNotified(ctx, 1, item.ID, 880))

	// Same price again: suppressed
	events, err = mon.Evaluate(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, events)

	// Strictly lower price: a new event
	source.set("p1", map[string]float64{"Amazon": 870})
	events, err = mon.Evaluate(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 870.0, events[0].NewPrice)
}

func TestEvaluateUnconfirmedEventRecurs(t *testing.T) {
	db := newTestDB(t)
	store := wishlist.NewStore(db)
	source := newFakeSource()
	mon := New(db, store, source)
	ctx := context.Background()

	_, err := store.AddItem(ctx, 1, "p1", 900)
	require.NoError(t, err)

	// Without a delivery confirmation the same price keeps emitting,
	// which is what makes failed dispatches retry on the next cycle.
	source.set("p1", map[string]float64{"Amazon": 880})
	for i := 0; i < 3; i++ {
		events, err := mon.Evaluate(ctx, 1)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, 880.0, events[0].NewPrice)
	}
}

func TestEvaluateSkipsUnavailableItems(t *testing.T) {
	db := newTestDB(t)
	store := wishlist.NewStore(db)
	source := newFakeSource()
	mon := New(db, store, source)
	ctx := context.Background()

	_, err := store.AddItem(ctx, 1, "down", 100)
	require.NoError(t, err)
	_, err = store.AddItem(ctx, 1, "empty", 100)
	require.NoError(t, err)
	_, err = store.AddItem(ctx, 1, "up", 100)
	require.NoError(t, err)

	source.errs["down"] = errors.New("upstream timeout")
	source.set("up", map[string]float64{"Amazon": 90})

	events, err := mon.Evaluate(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "up", events[0].ProductID)
}

func TestEvaluateRecordsQuoteHistory(t *testing.T) {
	db := newTestDB(t)
	store := wishlist.NewStore(db)
	source := newFakeSource()
	mon := New(db, store, source)
	ctx := context.Background()

	_, err := store.AddItem(ctx, 1, "p1", 900)
	require.NoError(t, err)

	source.set("p1", map[string]float64{"Amazon": 999, "Flipkart": 950})
	_, err = mon.Evaluate(ctx, 1)
	require.NoError(t, err)

	var rows []models.PriceQuote
	require.NoError(t, db.Where("product_id = ?", "p1").Find(&rows).Error)
	assert.Len(t, rows, 2)
}

func TestEvaluateDuplicateProductsIndependent(t *testing.T) {
	db := newTestDB(t)
	store := wishlist.NewStore(db)
	source := newFakeSource()
	mon := New(db, store, source)
	ctx := context.Background()

	// Same product tracked twice with different targets
	strict, err := store.AddItem(ctx, 1, "p1", 800)
	require.NoError(t, err)
	loose, err := store.AddItem(ctx, 1, "p1", 900)
	require.NoError(t, err)

	source.set("p1", map[string]float64{"Amazon": 850})
	events, err := mon.Evaluate(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, loose.ID, events[0].ItemID)
	assert.NotEqual(t, strict.ID, events[0].ItemID)
}
