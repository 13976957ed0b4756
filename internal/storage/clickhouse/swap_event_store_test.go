package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sonar/internal/domain"
)

func testEvent(signature string, slot, timestamp int64) *domain.SwapEvent {
	return &domain.SwapEvent{
		Pair:        "SOL/USDC",
		Pubkey:      "TOKEN1",
		Price:       10.5,
		MarketCap:   105000,
		BaseAmount:  2,
		QuoteAmount: 21,
		SwapAmount:  21,
		Owner:       "owner1",
		Signers:     []string{"signer1"},
		IsBuy:       true,
		IsPump:      true,
		PriceStale:  false,
		Slot:        slot,
		Signature:   signature,
		Timestamp:   timestamp,
	}
}

func TestSwapEventStore_InsertIfAbsent(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSwapEventStore(conn)

	inserted, err := store.InsertIfAbsent(ctx, testEvent("sig1", 100, 1000))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.InsertIfAbsent(ctx, testEvent("sig1", 100, 1000))
	require.NoError(t, err)
	assert.False(t, inserted, "duplicate insert must be a no-op")

	events, err := store.Query(ctx, "SOL/USDC", "TOKEN1", 0, 2000)
	require.NoError(t, err)
	require.Len(t, events, 1)

	e := events[0]
	assert.Equal(t, "sig1", e.Signature)
	assert.True(t, e.IsBuy)
	assert.True(t, e.IsPump)
	assert.False(t, e.PriceStale)
	assert.Equal(t, []string{"signer1"}, e.Signers)
}

func TestSwapEventStore_QueryOrderAndRange(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSwapEventStore(conn)

	for _, e := range []*domain.SwapEvent{
		testEvent("sigC", 7, 1200),
		testEvent("sigA", 7, 1100),
		testEvent("sigB", 5, 1100),
		testEvent("sigD", 9, 1300),
	} {
		_, err := store.InsertIfAbsent(ctx, e)
		require.NoError(t, err)
	}

	events, err := store.Query(ctx, "SOL/USDC", "TOKEN1", 0, 1300)
	require.NoError(t, err)
	require.Len(t, events, 3, "end bound must be exclusive")

	assert.Equal(t, "sigB", events[0].Signature, "lower slot first on equal timestamp")
	assert.Equal(t, "sigA", events[1].Signature)
	assert.Equal(t, "sigC", events[2].Signature)
}
