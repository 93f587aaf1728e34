package storage

import (
	"context"

	"xrpl-gateway/internal/domain"
)

// OfferEventStore provides access to offer_events storage.
type OfferEventStore interface {
	// Insert adds a new event. Returns ErrDuplicateKey if
	// (tx_hash, maker, offer_sequence) exists.
	Insert(ctx context.Context, e *domain.OfferEvent) error

	// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, events []*domain.OfferEvent) error

	// Get retrieves one event by its (tx_hash, maker, offer_sequence) key.
	// Returns ErrNotFound when no such event exists.
	Get(ctx context.Context, txHash, maker string, offerSequence uint32) (*domain.OfferEvent, error)

	// GetByMaker retrieves all events for a maker account, ordered by
	// ledger index ASC then transaction index ASC.
	GetByMaker(ctx context.Context, maker string) ([]*domain.OfferEvent, error)

	// GetByLedgerRange retrieves events within [start, end] (inclusive).
	GetByLedgerRange(ctx context.Context, start, end int64) ([]*domain.OfferEvent, error)
}

// TradeFillStore provides access to trade_fills storage.
type TradeFillStore interface {
	// InsertBulk adds multiple fills. Fails entire batch on duplicate tx_hash.
	InsertBulk(ctx context.Context, fills []*domain.TradeFill) error

	// GetByAccount retrieves all fills signed by an account, ordered by
	// ledger index ASC.
	GetByAccount(ctx context.Context, account string) ([]*domain.TradeFill, error)

	// GetByLedgerRange retrieves fills within [start, end] (inclusive).
	GetByLedgerRange(ctx context.Context, start, end int64) ([]*domain.TradeFill, error)
}
