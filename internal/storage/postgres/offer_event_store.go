package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"xrpl-gateway/internal/domain"
	"xrpl-gateway/internal/storage"
)

// OfferEventStore implements storage.OfferEventStore using PostgreSQL.
type OfferEventStore struct {
	pool *Pool
}

// NewOfferEventStore creates a new OfferEventStore.
func NewOfferEventStore(pool *Pool) *OfferEventStore {
	return &OfferEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OfferEventStore = (*OfferEventStore)(nil)

const offerEventColumns = `
	ledger_index, tx_hash, tx_index, maker, offer_sequence, status,
	gets_currency, gets_issuer, gets_delta,
	pays_currency, pays_issuer, pays_delta,
	quality, expiration, observed_at
`

// Insert adds a new event. Returns ErrDuplicateKey if
// (tx_hash, maker, offer_sequence) exists.
func (s *OfferEventStore) Insert(ctx context.Context, e *domain.OfferEvent) error {
	query := `
		INSERT INTO offer_events (` + offerEventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := s.pool.Exec(ctx, query,
		e.LedgerIndex,
		e.TxHash,
		e.TxIndex,
		e.Maker,
		e.OfferSequence,
		e.Status,
		e.GetsCurrency,
		e.GetsIssuer,
		e.GetsDelta,
		e.PaysCurrency,
		e.PaysIssuer,
		e.PaysDelta,
		e.Quality,
		e.Expiration,
		e.ObservedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert offer event: %w", err)
	}
	return nil
}

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *OfferEventStore) InsertBulk(ctx context.Context, events []*domain.OfferEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO offer_events (` + offerEventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	for _, e := range events {
		_, err := tx.Exec(ctx, query,
			e.LedgerIndex,
			e.TxHash,
			e.TxIndex,
			e.Maker,
			e.OfferSequence,
			e.Status,
			e.GetsCurrency,
			e.GetsIssuer,
			e.GetsDelta,
			e.PaysCurrency,
			e.PaysIssuer,
			e.PaysDelta,
			e.Quality,
			e.Expiration,
			e.ObservedAt,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert offer event in batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Get retrieves one event by its (tx_hash, maker, offer_sequence) key.
// Returns ErrNotFound when no such event exists.
func (s *OfferEventStore) Get(ctx context.Context, txHash, maker string, offerSequence uint32) (*domain.OfferEvent, error) {
	query := `
		SELECT ` + offerEventColumns + `
		FROM offer_events
		WHERE tx_hash = $1 AND maker = $2 AND offer_sequence = $3
	`

	var e domain.OfferEvent
	err := s.pool.QueryRow(ctx, query, txHash, maker, offerSequence).Scan(
		&e.LedgerIndex,
		&e.TxHash,
		&e.TxIndex,
		&e.Maker,
		&e.OfferSequence,
		&e.Status,
		&e.GetsCurrency,
		&e.GetsIssuer,
		&e.GetsDelta,
		&e.PaysCurrency,
		&e.PaysIssuer,
		&e.PaysDelta,
		&e.Quality,
		&e.Expiration,
		&e.ObservedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get offer event: %w", err)
	}
	return &e, nil
}

// GetByMaker retrieves all events for a maker, ordered by ledger index ASC
// then transaction index ASC.
func (s *OfferEventStore) GetByMaker(ctx context.Context, maker string) ([]*domain.OfferEvent, error) {
	query := `
		SELECT ` + offerEventColumns + `
		FROM offer_events
		WHERE maker = $1
		ORDER BY ledger_index ASC, tx_index ASC
	`

	rows, err := s.pool.Query(ctx, query, maker)
	if err != nil {
		return nil, fmt.Errorf("get offer events by maker: %w", err)
	}
	defer rows.Close()

	return scanOfferEvents(rows)
}

// GetByLedgerRange retrieves events within [start, end] (inclusive).
func (s *OfferEventStore) GetByLedgerRange(ctx context.Context, start, end int64) ([]*domain.OfferEvent, error) {
	query := `
		SELECT ` + offerEventColumns + `
		FROM offer_events
		WHERE ledger_index >= $1 AND ledger_index <= $2
		ORDER BY ledger_index ASC, tx_index ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get offer events by ledger range: %w", err)
	}
	defer rows.Close()

	return scanOfferEvents(rows)
}

func scanOfferEvents(rows pgx.Rows) ([]*domain.OfferEvent, error) {
	var result []*domain.OfferEvent
	for rows.Next() {
		var e domain.OfferEvent
		err := rows.Scan(
			&e.LedgerIndex,
			&e.TxHash,
			&e.TxIndex,
			&e.Maker,
			&e.OfferSequence,
			&e.Status,
			&e.GetsCurrency,
			&e.GetsIssuer,
			&e.GetsDelta,
			&e.PaysCurrency,
			&e.PaysIssuer,
			&e.PaysDelta,
			&e.Quality,
			&e.Expiration,
			&e.ObservedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan offer event: %w", err)
		}
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate offer events: %w", err)
	}
	return result, nil
}
