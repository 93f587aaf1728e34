package pipeline

import (
	"xrpl-gateway/internal/xrpl"
)

// Transaction is an unsigned transaction intent plus the common fields
// autofill resolves. Type-specific fields live in Fields.
type Transaction struct {
	TransactionType string
	Account         string
	Fields          map[string]interface{}

	// Set by autofill.
	Fee                string // drops
	Sequence           uint32
	LastLedgerSequence int64
	NetworkID          uint32
}

// NewOfferCreate builds an OfferCreate intent.
func NewOfferCreate(account string, takerGets, takerPays xrpl.Amount, flags int64) *Transaction {
	fields := map[string]interface{}{
		"TakerGets": takerGets,
		"TakerPays": takerPays,
	}
	if flags != 0 {
		fields["Flags"] = flags
	}
	return &Transaction{
		TransactionType: "OfferCreate",
		Account:         account,
		Fields:          fields,
	}
}

// NewOfferCancel builds an OfferCancel intent for a resting offer.
func NewOfferCancel(account string, offerSequence uint32) *Transaction {
	return &Transaction{
		TransactionType: "OfferCancel",
		Account:         account,
		Fields: map[string]interface{}{
			"OfferSequence": offerSequence,
		},
	}
}

// WireJSON renders the transaction for signing.
func (t *Transaction) WireJSON() map[string]interface{} {
	out := make(map[string]interface{}, len(t.Fields)+6)
	for k, v := range t.Fields {
		out[k] = v
	}
	out["TransactionType"] = t.TransactionType
	out["Account"] = t.Account
	if t.Fee != "" {
		out["Fee"] = t.Fee
	}
	out["Sequence"] = t.Sequence
	if t.LastLedgerSequence > 0 {
		out["LastLedgerSequence"] = t.LastLedgerSequence
	}
	if t.NetworkID > 0 {
		out["NetworkID"] = t.NetworkID
	}
	return out
}
