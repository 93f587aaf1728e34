package clickhouse

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xrpl-gateway/internal/domain"
	"xrpl-gateway/internal/storage"
)

func sampleTradeFill(txHash string, ledgerIndex int64) *domain.TradeFill {
	return &domain.TradeFill{
		TxHash:       txHash,
		LedgerIndex:  ledgerIndex,
		Account:      "r2XdzWFVoHGfGVmXugtKhxMu3bqhsYiWK",
		Sequence:     84437895,
		GetsCurrency: "XRP",
		GetsValue:    "333332",
		PaysCurrency: "534F4C4F00000000000000000000000000000000",
		PaysIssuer:   "rsoLo2S1kiGeCcn6hCUXVrCpGMWLrRrLZz",
		PaysValue:    "1.479516091976118",
		Quality:      ptr("0.00000443861590638"),
		ExecutedAt:   1704067200000,
	}
}

func TestTradeFillStore_InsertBulkAndGetByAccount(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTradeFillStore(conn)
	ctx := context.Background()

	fills := []*domain.TradeFill{
		sampleTradeFill("F2", 89003960),
		sampleTradeFill("F1", 89003950),
	}
	require.NoError(t, store.InsertBulk(ctx, fills))

	result, err := store.GetByAccount(ctx, "r2XdzWFVoHGfGVmXugtKhxMu3bqhsYiWK")
	require.NoError(t, err)
	require.Len(t, result, 2)

	assert.Equal(t, "F1", result[0].TxHash)
	assert.Equal(t, "F2", result[1].TxHash)
	assert.Equal(t, "333332", result[0].GetsValue)
	assert.Equal(t, "1.479516091976118", result[0].PaysValue)
	require.NotNil(t, result[0].Quality)
	assert.Equal(t, "0.00000443861590638", *result[0].Quality)
}

func TestTradeFillStore_DuplicateHashRejected(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTradeFillStore(conn)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.TradeFill{sampleTradeFill("F1", 89003950)}))

	err := store.InsertBulk(ctx, []*domain.TradeFill{sampleTradeFill("F1", 89003950)})
	assert.True(t, errors.Is(err, storage.ErrDuplicateKey), "expected ErrDuplicateKey, got %v", err)
}

func TestTradeFillStore_GetByLedgerRange(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTradeFillStore(conn)
	ctx := context.Background()

	fills := []*domain.TradeFill{
		sampleTradeFill("F1", 100),
		sampleTradeFill("F2", 105),
		sampleTradeFill("F3", 110),
	}
	require.NoError(t, store.InsertBulk(ctx, fills))

	result, err := store.GetByLedgerRange(ctx, 100, 105)
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, int64(100), result[0].LedgerIndex)
	assert.Equal(t, int64(105), result[1].LedgerIndex)
}
