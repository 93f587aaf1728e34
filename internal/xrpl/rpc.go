package xrpl

import "context"

// RPC defines the rippled WebSocket interface the gateway consumes.
type RPC interface {
	// ServerInfo fetches node build, network and validated-ledger information.
	ServerInfo(ctx context.Context) (*ServerInfo, error)

	// Fee fetches the current fee levels in drops.
	Fee(ctx context.Context) (*FeeInfo, error)

	// AccountInfo fetches an account root entry from the validated ledger.
	AccountInfo(ctx context.Context, account string) (*AccountInfo, error)

	// LedgerCurrent fetches the in-progress ledger index.
	LedgerCurrent(ctx context.Context) (int64, error)

	// Submit sends a signed transaction blob.
	Submit(ctx context.Context, txBlob string) (*SubmitResult, error)

	// Tx looks a transaction up by hash; (nil, nil) when not found yet.
	Tx(ctx context.Context, hash string) (*TransactionResult, error)

	// BookOffers fetches one side of an order book.
	BookOffers(ctx context.Context, takerGets, takerPays Amount, limit int) ([]Offer, error)

	// Subscribe opens ledger / account / book streams.
	Subscribe(ctx context.Context, req SubscribeRequest) (<-chan StreamMessage, error)

	// Ping issues a protocol-level ping round trip.
	Ping(ctx context.Context) error

	// Close closes the connection.
	Close() error
}

// Compile-time interface check.
var _ RPC = (*Client)(nil)
