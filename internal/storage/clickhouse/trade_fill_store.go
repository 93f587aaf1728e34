package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"xrpl-gateway/internal/domain"
	"xrpl-gateway/internal/storage"
)

// TradeFillStore implements storage.TradeFillStore using ClickHouse.
type TradeFillStore struct {
	conn *Conn
}

// NewTradeFillStore creates a new TradeFillStore.
func NewTradeFillStore(conn *Conn) *TradeFillStore {
	return &TradeFillStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TradeFillStore = (*TradeFillStore)(nil)

// InsertBulk adds multiple fills. Fails entire batch on duplicate tx_hash.
// MergeTree does not enforce uniqueness, so duplicates are checked explicitly
// before the batch is sent.
func (s *TradeFillStore) InsertBulk(ctx context.Context, fills []*domain.TradeFill) error {
	if len(fills) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(fills))
	for _, f := range fills {
		if f == nil || f.TxHash == "" || f.Account == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[f.TxHash]; exists {
			return storage.ErrDuplicateKey
		}
		seen[f.TxHash] = struct{}{}
	}

	for _, f := range fills {
		exists, err := s.exists(ctx, f.TxHash)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trade_fills (
			tx_hash, ledger_index, account, sequence,
			gets_currency, gets_issuer, gets_value,
			pays_currency, pays_issuer, pays_value,
			quality, executed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, f := range fills {
		err = batch.Append(
			f.TxHash, uint64(f.LedgerIndex), f.Account, f.Sequence,
			f.GetsCurrency, f.GetsIssuer, f.GetsValue,
			f.PaysCurrency, f.PaysIssuer, f.PaysValue,
			f.Quality, uint64(f.ExecutedAt),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByAccount retrieves all fills signed by an account, ordered by ledger index ASC.
func (s *TradeFillStore) GetByAccount(ctx context.Context, account string) ([]*domain.TradeFill, error) {
	query := `
		SELECT tx_hash, ledger_index, account, sequence,
		       gets_currency, gets_issuer, gets_value,
		       pays_currency, pays_issuer, pays_value,
		       quality, executed_at
		FROM trade_fills
		WHERE account = ?
		ORDER BY ledger_index ASC, tx_hash ASC
	`

	rows, err := s.conn.Query(ctx, query, account)
	if err != nil {
		return nil, fmt.Errorf("get fills by account: %w", err)
	}
	defer rows.Close()

	return scanTradeFills(rows)
}

// GetByLedgerRange retrieves fills within [start, end] (inclusive).
func (s *TradeFillStore) GetByLedgerRange(ctx context.Context, start, end int64) ([]*domain.TradeFill, error) {
	query := `
		SELECT tx_hash, ledger_index, account, sequence,
		       gets_currency, gets_issuer, gets_value,
		       pays_currency, pays_issuer, pays_value,
		       quality, executed_at
		FROM trade_fills
		WHERE ledger_index >= ? AND ledger_index <= ?
		ORDER BY ledger_index ASC, tx_hash ASC
	`

	rows, err := s.conn.Query(ctx, query, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("get fills by ledger range: %w", err)
	}
	defer rows.Close()

	return scanTradeFills(rows)
}

func (s *TradeFillStore) exists(ctx context.Context, txHash string) (bool, error) {
	var count uint64
	row := s.conn.QueryRow(ctx, `SELECT count() FROM trade_fills WHERE tx_hash = ?`, txHash)
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanTradeFills(rows driver.Rows) ([]*domain.TradeFill, error) {
	var result []*domain.TradeFill
	for rows.Next() {
		var (
			f           domain.TradeFill
			ledgerIndex uint64
			executedAt  uint64
		)
		err := rows.Scan(
			&f.TxHash, &ledgerIndex, &f.Account, &f.Sequence,
			&f.GetsCurrency, &f.GetsIssuer, &f.GetsValue,
			&f.PaysCurrency, &f.PaysIssuer, &f.PaysValue,
			&f.Quality, &executedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade fill: %w", err)
		}
		f.LedgerIndex = int64(ledgerIndex)
		f.ExecutedAt = int64(executedAt)
		result = append(result, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade fills: %w", err)
	}
	return result, nil
}
