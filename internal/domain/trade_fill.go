package domain

// TradeFill is the aggregate amount an OfferCreate transaction moved through
// the book, from the signer's perspective. One row per validated transaction.
type TradeFill struct {
	TxHash      string
	LedgerIndex int64
	Account     string // transaction signer
	Sequence    uint32 // transaction sequence

	GetsCurrency string // what the signer sold; "XRP" for native
	GetsIssuer   string
	GetsValue    string // decimal string, absolute
	PaysCurrency string // what the signer bought
	PaysIssuer   string
	PaysValue    string

	Quality    *string // pays/gets average execution price (nullable)
	ExecutedAt int64   // Unix timestamp in milliseconds
}
