package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightledger/finance-analytics-core/internal/store"
	"github.com/brightledger/finance-analytics-core/internal/store/sqlite"
)

func openTestStore(t *testing.T) *sqlite.Store {
	dir, err := os.MkdirTemp("", "seed-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	s, err := sqlite.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSeed_InsertsOneItemPerRow(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, Seed(context.Background(), s, "demo-user"))

	items, err := s.ListItems(context.Background(), store.ListItemsParams{UserID: "demo-user", Limit: store.UnboundedLimit})
	require.NoError(t, err)
	assert.Len(t, items, len(rows()))
}

func TestSeed_ShapesAStarbucksHighFrequencyHabit(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, Seed(context.Background(), s, "demo-user"))

	items, err := s.ListItemsByCategory(context.Background(), "demo-user", "Coffee", nil, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(items), 4)
	for _, it := range items {
		assert.Equal(t, "Starbucks", it.Merchant)
	}
}

func TestSeed_TimestampsAreRecentRelativeToNow(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, Seed(context.Background(), s, "demo-user"))

	items, err := s.ListItems(context.Background(), store.ListItemsParams{UserID: "demo-user", Limit: store.UnboundedLimit})
	require.NoError(t, err)
	require.NotEmpty(t, items)
	for _, it := range items {
		assert.True(t, it.Ts.Before(time.Now().UTC().Add(time.Minute)))
	}
}
