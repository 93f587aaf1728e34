package ledger

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"

	"xrpl-gateway/internal/xrpl"
)

func txFromMeta(t *testing.T, account string, sequence uint32, rawMeta string) *xrpl.TransactionResult {
	t.Helper()
	var meta xrpl.TransactionMetadata
	if err := json.Unmarshal([]byte(rawMeta), &meta); err != nil {
		t.Fatalf("unmarshal metadata fixture: %v", err)
	}
	return &xrpl.TransactionResult{
		Account:         account,
		Sequence:        sequence,
		TransactionType: "OfferCreate",
		Meta:            &meta,
	}
}

func TestParseOfferCreateTransaction_NoMetadata(t *testing.T) {
	fill := ParseOfferCreateTransaction(&xrpl.TransactionResult{Account: "rX", Sequence: 1})
	if fill.TakerGetsTransferred != nil || fill.TakerPaysTransferred != nil || fill.Quality != nil {
		t.Errorf("expected all fields undefined without metadata, got %+v", fill)
	}

	fill = ParseOfferCreateTransaction(nil)
	if fill.TakerGetsTransferred != nil || fill.TakerPaysTransferred != nil || fill.Quality != nil {
		t.Errorf("expected all fields undefined for nil transaction, got %+v", fill)
	}
}

func TestParseOfferCreateTransaction_SignerMatch(t *testing.T) {
	tx := txFromMeta(t, "r2XdzWFVoHGfGVmXugtKhxMu3bqhsYiWK", 84437895, filledOfferMeta)

	fill := ParseOfferCreateTransaction(tx)
	if fill.TakerGetsTransferred == nil || fill.TakerPaysTransferred == nil || fill.Quality == nil {
		t.Fatalf("expected a defined fill, got %+v", fill)
	}

	if !fill.TakerGetsTransferred.Value.Equal(decimal.NewFromInt(333332)) {
		t.Errorf("expected TakerGets transferred 333332, got %s", fill.TakerGetsTransferred.Value)
	}
	if !fill.TakerPaysTransferred.Value.Equal(decimal.RequireFromString("1.479516091976118")) {
		t.Errorf("expected TakerPays transferred 1.479516091976118, got %s", fill.TakerPaysTransferred.Value)
	}

	want := decimal.RequireFromString("1.479516091976118").Div(decimal.NewFromInt(333332))
	if !fill.Quality.Equal(want) {
		t.Errorf("expected quality %s, got %s", want, fill.Quality)
	}
}

func TestParseOfferCreateTransaction_FallbackToFirstOffer(t *testing.T) {
	// Signer (account, sequence) matches no offer node; the first offer
	// node is used instead.
	tx := txFromMeta(t, "rSomeoneElse", 1, partialOfferMeta)

	fill := ParseOfferCreateTransaction(tx)
	if fill.TakerGetsTransferred == nil {
		t.Fatal("expected fallback fill from first offer node")
	}
	if !fill.TakerGetsTransferred.Value.Equal(decimal.NewFromInt(333299)) {
		t.Errorf("expected TakerGets transferred 333299, got %s", fill.TakerGetsTransferred.Value)
	}
}

func TestParseOfferCreateTransaction_ZeroTransferUndefined(t *testing.T) {
	// A pure cancellation has zero deltas on both sides; everything stays
	// undefined to avoid a zero price signal.
	tx := txFromMeta(t, "rMaker", 101, `{
		"AffectedNodes": [
			{
				"DeletedNode": {
					"LedgerEntryType": "Offer",
					"LedgerIndex": "BBBB",
					"FinalFields": {
						"Account": "rMaker",
						"Sequence": 101,
						"TakerGets": "7000000",
						"TakerPays": {"currency": "USD", "issuer": "rIssuer", "value": "3.5"}
					}
				}
			}
		],
		"TransactionResult": "tesSUCCESS"
	}`)

	fill := ParseOfferCreateTransaction(tx)
	if fill.TakerGetsTransferred != nil || fill.TakerPaysTransferred != nil || fill.Quality != nil {
		t.Errorf("expected undefined fill for zero transfer, got %+v", fill)
	}
}

func TestParseOfferCreateTransaction_NoOfferNodes(t *testing.T) {
	tx := txFromMeta(t, "rMaker", 1, `{
		"AffectedNodes": [
			{
				"ModifiedNode": {
					"LedgerEntryType": "AccountRoot",
					"LedgerIndex": "AAAA",
					"FinalFields": {"Account": "rMaker", "Balance": "1000"}
				}
			}
		],
		"TransactionResult": "tesSUCCESS"
	}`)

	fill := ParseOfferCreateTransaction(tx)
	if fill.TakerGetsTransferred != nil {
		t.Errorf("expected undefined fill without offer nodes, got %+v", fill)
	}
}

func TestParseOfferCreateTransaction_PrefersExactMatchOverFirst(t *testing.T) {
	tx := txFromMeta(t, "rSigner", 42, `{
		"AffectedNodes": [
			{
				"ModifiedNode": {
					"LedgerEntryType": "Offer",
					"LedgerIndex": "0001",
					"FinalFields": {"Account": "rOther", "Sequence": 9, "TakerGets": "10", "TakerPays": "5"},
					"PreviousFields": {"TakerGets": "20", "TakerPays": "10"}
				}
			},
			{
				"ModifiedNode": {
					"LedgerEntryType": "Offer",
					"LedgerIndex": "0002",
					"FinalFields": {"Account": "rSigner", "Sequence": 42, "TakerGets": "0", "TakerPays": "0"},
					"PreviousFields": {"TakerGets": "400", "TakerPays": "100"}
				}
			}
		],
		"TransactionResult": "tesSUCCESS"
	}`)

	fill := ParseOfferCreateTransaction(tx)
	if fill.TakerGetsTransferred == nil {
		t.Fatal("expected a defined fill")
	}
	if !fill.TakerGetsTransferred.Value.Equal(decimal.NewFromInt(400)) {
		t.Errorf("expected the signer's own offer delta 400, got %s", fill.TakerGetsTransferred.Value)
	}
}
