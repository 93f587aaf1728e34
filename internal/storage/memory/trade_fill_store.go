package memory

import (
	"context"
	"sort"
	"sync"

	"xrpl-gateway/internal/domain"
	"xrpl-gateway/internal/storage"
)

// TradeFillStore is an in-memory implementation of storage.TradeFillStore.
type TradeFillStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TradeFill // keyed by tx hash
}

// NewTradeFillStore creates a new in-memory trade fill store.
func NewTradeFillStore() *TradeFillStore {
	return &TradeFillStore{
		data: make(map[string]*domain.TradeFill),
	}
}

// Compile-time interface check.
var _ storage.TradeFillStore = (*TradeFillStore)(nil)

// InsertBulk adds multiple fills. Fails entire batch on duplicate tx_hash.
func (s *TradeFillStore) InsertBulk(_ context.Context, fills []*domain.TradeFill) error {
	if len(fills) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(fills))

	for _, f := range fills {
		if f == nil || f.TxHash == "" || f.Account == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[f.TxHash]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[f.TxHash]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[f.TxHash] = struct{}{}
	}

	for _, f := range fills {
		copy := *f
		s.data[f.TxHash] = &copy
	}

	return nil
}

// GetByAccount retrieves all fills signed by an account, ordered by ledger index ASC.
func (s *TradeFillStore) GetByAccount(_ context.Context, account string) ([]*domain.TradeFill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeFill
	for _, f := range s.data {
		if f.Account == account {
			copy := *f
			result = append(result, &copy)
		}
	}

	sortTradeFills(result)
	return result, nil
}

// GetByLedgerRange retrieves fills within [start, end] (inclusive).
func (s *TradeFillStore) GetByLedgerRange(_ context.Context, start, end int64) ([]*domain.TradeFill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeFill
	for _, f := range s.data {
		if f.LedgerIndex >= start && f.LedgerIndex <= end {
			copy := *f
			result = append(result, &copy)
		}
	}

	sortTradeFills(result)
	return result, nil
}

func sortTradeFills(fills []*domain.TradeFill) {
	sort.Slice(fills, func(i, j int) bool {
		if fills[i].LedgerIndex != fills[j].LedgerIndex {
			return fills[i].LedgerIndex < fills[j].LedgerIndex
		}
		return fills[i].TxHash < fills[j].TxHash
	})
}
