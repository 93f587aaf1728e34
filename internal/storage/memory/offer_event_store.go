package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"xrpl-gateway/internal/domain"
	"xrpl-gateway/internal/storage"
)

// OfferEventStore is an in-memory implementation of storage.OfferEventStore.
type OfferEventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.OfferEvent // keyed by composite key
}

// NewOfferEventStore creates a new in-memory offer event store.
func NewOfferEventStore() *OfferEventStore {
	return &OfferEventStore{
		data: make(map[string]*domain.OfferEvent),
	}
}

// Compile-time interface check.
var _ storage.OfferEventStore = (*OfferEventStore)(nil)

// offerEventKey generates a unique key for an offer event.
func offerEventKey(txHash, maker string, offerSequence uint32) string {
	return fmt.Sprintf("%s|%s|%d", txHash, maker, offerSequence)
}

// Insert adds a new event. Returns ErrDuplicateKey if exists.
func (s *OfferEventStore) Insert(_ context.Context, e *domain.OfferEvent) error {
	if e == nil || e.TxHash == "" || e.Maker == "" {
		return storage.ErrInvalidInput
	}

	key := offerEventKey(e.TxHash, e.Maker, e.OfferSequence)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *e
	s.data[key] = &copy
	return nil
}

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *OfferEventStore) InsertBulk(_ context.Context, events []*domain.OfferEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(events))

	for _, e := range events {
		if e == nil || e.TxHash == "" || e.Maker == "" {
			return storage.ErrInvalidInput
		}
		key := offerEventKey(e.TxHash, e.Maker, e.OfferSequence)

		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, e := range events {
		key := offerEventKey(e.TxHash, e.Maker, e.OfferSequence)
		copy := *e
		s.data[key] = &copy
	}

	return nil
}

// Get retrieves one event by its (tx_hash, maker, offer_sequence) key.
func (s *OfferEventStore) Get(_ context.Context, txHash, maker string, offerSequence uint32) (*domain.OfferEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.data[offerEventKey(txHash, maker, offerSequence)]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *e
	return &copy, nil
}

// GetByMaker retrieves all events for a maker, ordered by ledger index ASC
// then transaction index ASC.
func (s *OfferEventStore) GetByMaker(_ context.Context, maker string) ([]*domain.OfferEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.OfferEvent
	for _, e := range s.data {
		if e.Maker == maker {
			copy := *e
			result = append(result, &copy)
		}
	}

	sortOfferEvents(result)
	return result, nil
}

// GetByLedgerRange retrieves events within [start, end] (inclusive).
func (s *OfferEventStore) GetByLedgerRange(_ context.Context, start, end int64) ([]*domain.OfferEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.OfferEvent
	for _, e := range s.data {
		if e.LedgerIndex >= start && e.LedgerIndex <= end {
			copy := *e
			result = append(result, &copy)
		}
	}

	sortOfferEvents(result)
	return result, nil
}

func sortOfferEvents(events []*domain.OfferEvent) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].LedgerIndex != events[j].LedgerIndex {
			return events[i].LedgerIndex < events[j].LedgerIndex
		}
		return events[i].TxIndex < events[j].TxIndex
	})
}
