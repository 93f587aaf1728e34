package domain

// Offer event status codes, matching the normalized ledger delta output.
const (
	OfferStatusCreated         = "created"
	OfferStatusPartiallyFilled = "partially-filled"
	OfferStatusFilled          = "filled"
	OfferStatusCancelled       = "cancelled"
)

// OfferEvent is one normalized offer change observed in a validated ledger.
// Amount deltas are decimal strings; float64 loses precision on issued
// currency values.
type OfferEvent struct {
	LedgerIndex   int64  // validated ledger the change landed in
	TxHash        string // transaction that caused the change
	TxIndex       uint32 // position within the ledger
	Maker         string // offer owner account
	OfferSequence uint32 // sequence that created the offer
	Status        string // one of the OfferStatus constants

	GetsCurrency string // "XRP" for native
	GetsIssuer   string // empty for native
	GetsDelta    string // decimal string, signed
	PaysCurrency string
	PaysIssuer   string
	PaysDelta    string

	Quality    *string // pays/gets execution price (nullable)
	Expiration *int64  // ripple epoch seconds (nullable)
	ObservedAt int64   // Unix timestamp in milliseconds
}
