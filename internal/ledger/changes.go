// Package ledger turns transaction metadata into normalized order-book and
// fill events. All functions are pure and never fail on malformed input;
// unusable fields degrade to nil, not zero.
package ledger

import (
	"github.com/shopspring/decimal"

	"xrpl-gateway/internal/xrpl"
)

// OfferStatus classifies what happened to one resting offer.
type OfferStatus string

const (
	StatusCreated         OfferStatus = "created"
	StatusPartiallyFilled OfferStatus = "partially-filled"
	StatusFilled          OfferStatus = "filled"
	StatusCancelled       OfferStatus = "cancelled"
)

// OfferChange is the normalized delta of one offer within one transaction.
// Deltas are before minus after, so a positive TakerGetsDelta is the amount
// the maker gave up. Quality is nil when no tradable price signal exists:
// zero TakerGetsDelta or an unparseable amount. Nil quality must never be
// read as a zero price.
type OfferChange struct {
	MakerAccount   string
	Sequence       uint32
	Flags          int64
	TakerGetsDelta xrpl.Amount
	TakerPaysDelta xrpl.Amount
	Status         OfferStatus
	Quality        *decimal.Decimal
	// Expiration is the offer's expiration in ripple epoch seconds, when set.
	Expiration *int64
}

// AccountOfferChanges groups one maker's offer changes within a transaction.
type AccountOfferChanges struct {
	Account string
	Changes []OfferChange
}

// ComputeOrderBookChanges extracts the offer deltas from one transaction's
// metadata, grouped by maker account in metadata order. A malformed node is
// skipped without aborting the rest.
func ComputeOrderBookChanges(meta *xrpl.TransactionMetadata) []AccountOfferChanges {
	if meta == nil {
		return nil
	}

	var order []string
	byAccount := make(map[string]*AccountOfferChanges)

	for _, node := range meta.AffectedNodes {
		if node.LedgerEntryType != "Offer" {
			continue
		}

		change, ok := normalizeOfferNode(node)
		if !ok {
			continue
		}

		group, exists := byAccount[change.MakerAccount]
		if !exists {
			group = &AccountOfferChanges{Account: change.MakerAccount}
			byAccount[change.MakerAccount] = group
			order = append(order, change.MakerAccount)
		}
		group.Changes = append(group.Changes, change)
	}

	result := make([]AccountOfferChanges, 0, len(order))
	for _, account := range order {
		result = append(result, *byAccount[account])
	}
	return result
}

// normalizeOfferNode derives one OfferChange from an affected Offer node.
// ok is false when the node lacks the fields needed for any usable delta.
func normalizeOfferNode(node xrpl.AffectedNode) (OfferChange, bool) {
	var before, after map[string]interface{}

	switch node.NodeType {
	case "CreatedNode":
		before = nil
		after = node.NewFields
	case "ModifiedNode":
		// Only offers whose size actually changed carry a trade signal;
		// bookkeeping-only modifications are skipped.
		if node.PreviousFields == nil {
			return OfferChange{}, false
		}
		if _, gets := node.PreviousFields["TakerGets"]; !gets {
			if _, pays := node.PreviousFields["TakerPays"]; !pays {
				return OfferChange{}, false
			}
		}
		before = node.PreviousFields
		after = node.FinalFields
	case "DeletedNode":
		// No PreviousFields means nothing traded before removal: a plain
		// cancellation, so before and after coincide.
		before = node.PreviousFields
		if before == nil {
			before = node.FinalFields
		}
		after = node.FinalFields
	default:
		return OfferChange{}, false
	}

	if after == nil {
		return OfferChange{}, false
	}

	account, _ := after["Account"].(string)
	if account == "" {
		return OfferChange{}, false
	}

	getsBefore, getsAfter, ok := sideAmounts(before, after, "TakerGets")
	if !ok {
		return OfferChange{}, false
	}
	paysBefore, paysAfter, ok := sideAmounts(before, after, "TakerPays")
	if !ok {
		return OfferChange{}, false
	}

	change := OfferChange{
		MakerAccount:   account,
		Sequence:       fieldUint32(after, "Sequence"),
		Flags:          fieldInt64(after, "Flags"),
		TakerGetsDelta: getsBefore.WithValue(getsBefore.Value.Sub(getsAfter.Value)),
		TakerPaysDelta: paysBefore.WithValue(paysBefore.Value.Sub(paysAfter.Value)),
	}

	if exp, ok := fieldOptInt64(after, "Expiration"); ok {
		change.Expiration = &exp
	}

	switch node.NodeType {
	case "CreatedNode":
		change.Status = StatusCreated
	case "DeletedNode":
		if change.TakerGetsDelta.IsZero() && change.TakerPaysDelta.IsZero() {
			change.Status = StatusCancelled
		} else {
			change.Status = StatusFilled
		}
	default:
		if getsAfter.IsZero() {
			change.Status = StatusFilled
		} else {
			change.Status = StatusPartiallyFilled
		}
	}

	if !change.TakerGetsDelta.IsZero() {
		q := change.TakerPaysDelta.Value.Abs().Div(change.TakerGetsDelta.Value.Abs())
		change.Quality = &q
	}

	return change, true
}

// sideAmounts resolves the before/after amounts of one side. A field absent
// from the before map means the side did not change, so the after value is
// used for both. For created nodes the before value is zero.
func sideAmounts(before, after map[string]interface{}, field string) (xrpl.Amount, xrpl.Amount, bool) {
	afterRaw, ok := after[field]
	if !ok {
		return xrpl.Amount{}, xrpl.Amount{}, false
	}
	afterAmount, err := xrpl.AmountFromField(afterRaw)
	if err != nil {
		return xrpl.Amount{}, xrpl.Amount{}, false
	}

	if before == nil {
		return afterAmount.WithValue(decimal.Zero), afterAmount, true
	}

	beforeRaw, ok := before[field]
	if !ok {
		return afterAmount, afterAmount, true
	}
	beforeAmount, err := xrpl.AmountFromField(beforeRaw)
	if err != nil {
		return xrpl.Amount{}, xrpl.Amount{}, false
	}
	return beforeAmount, afterAmount, true
}

func fieldUint32(fields map[string]interface{}, key string) uint32 {
	v, ok := fieldOptInt64(fields, key)
	if !ok || v < 0 {
		return 0
	}
	return uint32(v)
}

func fieldInt64(fields map[string]interface{}, key string) int64 {
	v, _ := fieldOptInt64(fields, key)
	return v
}

// fieldOptInt64 reads a numeric metadata field. JSON decoding yields float64
// for numbers; json.Number appears when decoders opt into it.
func fieldOptInt64(fields map[string]interface{}, key string) (int64, bool) {
	switch v := fields[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}
