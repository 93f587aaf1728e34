package ledger

import (
	"github.com/shopspring/decimal"

	"xrpl-gateway/internal/xrpl"
)

// OfferFill is the total amount transferred through a transaction's offer
// and the resulting price. All fields are nil when the transaction carries
// no metadata, touches no offer, an amount fails to parse, or either side's
// transferred amount is zero.
type OfferFill struct {
	TakerGetsTransferred *xrpl.Amount
	TakerPaysTransferred *xrpl.Amount
	Quality              *decimal.Decimal
}

// ParseOfferCreateTransaction reduces a transaction's offer deltas to the
// fill attributable to its signer. The offer node matching the signer's
// (account, sequence) is preferred; when no exact match exists the first
// offer node is used instead, since some transaction types do not preserve
// the signer's sequence on the affected offer. That fallback can attribute
// a trade to the wrong order when a transaction touches several unrelated
// offers, so callers should disambiguate from context where they can.
func ParseOfferCreateTransaction(tx *xrpl.TransactionResult) OfferFill {
	if tx == nil || tx.Meta == nil {
		return OfferFill{}
	}

	groups := ComputeOrderBookChanges(tx.Meta)
	if len(groups) == 0 {
		return OfferFill{}
	}

	var match *OfferChange
	for gi := range groups {
		for ci := range groups[gi].Changes {
			change := &groups[gi].Changes[ci]
			if change.MakerAccount == tx.Account && change.Sequence == tx.Sequence {
				match = change
				break
			}
			if match == nil {
				match = change
			}
		}
		if match != nil && match.MakerAccount == tx.Account && match.Sequence == tx.Sequence {
			break
		}
	}
	if match == nil {
		return OfferFill{}
	}

	gets := match.TakerGetsDelta.WithValue(match.TakerGetsDelta.Value.Abs())
	pays := match.TakerPaysDelta.WithValue(match.TakerPaysDelta.Value.Abs())
	if gets.IsZero() || pays.IsZero() {
		return OfferFill{}
	}

	quality := pays.Value.Div(gets.Value)
	return OfferFill{
		TakerGetsTransferred: &gets,
		TakerPaysTransferred: &pays,
		Quality:              &quality,
	}
}
