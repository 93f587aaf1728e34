package xrpl

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmountNativeDrops(t *testing.T) {
	a, err := ParseAmount(json.RawMessage(`"333332"`))
	if err != nil {
		t.Fatalf("ParseAmount: %v", err)
	}
	if !a.Native {
		t.Error("drops string should parse as native")
	}
	if !a.Value.Equal(decimal.NewFromInt(333332)) {
		t.Errorf("value mismatch: %s", a.Value)
	}
}

func TestParseAmountIssued(t *testing.T) {
	raw := json.RawMessage(`{
		"currency": "534F4C4F00000000000000000000000000000000",
		"issuer": "rsoLo2S1kiGeCcn6hCUXVrCpGMWLrRrLZz",
		"value": "1.479516091976118"
	}`)

	a, err := ParseAmount(raw)
	if err != nil {
		t.Fatalf("ParseAmount: %v", err)
	}
	if a.Native {
		t.Error("issued object should not parse as native")
	}
	if a.Issuer != "rsoLo2S1kiGeCcn6hCUXVrCpGMWLrRrLZz" {
		t.Errorf("issuer mismatch: %s", a.Issuer)
	}
	// The value must survive exactly; float64 would round it.
	if a.Value.String() != "1.479516091976118" {
		t.Errorf("value mismatch: %s", a.Value)
	}
}

func TestParseAmountRejectsMalformed(t *testing.T) {
	cases := []string{
		`{"issuer": "rsoLo2S1kiGeCcn6hCUXVrCpGMWLrRrLZz"}`,
		`{"currency": "USD"}`,
		`"not-a-number"`,
		`42`,
	}
	for _, raw := range cases {
		if _, err := ParseAmount(json.RawMessage(raw)); err == nil {
			t.Errorf("ParseAmount(%s): expected error", raw)
		}
	}
}

func TestAmountMarshalRoundTrip(t *testing.T) {
	native := NativeAmount(decimal.NewFromInt(5_000_000))
	data, err := json.Marshal(native)
	if err != nil {
		t.Fatalf("Marshal native: %v", err)
	}
	if string(data) != `"5000000"` {
		t.Errorf("native wire form mismatch: %s", data)
	}

	issued := IssuedAmount("USD", "rsoLo2S1kiGeCcn6hCUXVrCpGMWLrRrLZz", decimal.RequireFromString("1.5"))
	data, err = json.Marshal(issued)
	if err != nil {
		t.Fatalf("Marshal issued: %v", err)
	}

	var back Amount
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal issued: %v", err)
	}
	if back.Native || back.Currency != "USD" || !back.Value.Equal(issued.Value) {
		t.Errorf("round trip mismatch: %+v", back)
	}
}

func TestSameAsset(t *testing.T) {
	xrp1 := NativeAmount(decimal.NewFromInt(1))
	xrp2 := NativeAmount(decimal.NewFromInt(2))
	usd := IssuedAmount("USD", "rIssuer1", decimal.NewFromInt(1))
	usdOther := IssuedAmount("USD", "rIssuer2", decimal.NewFromInt(1))

	if !xrp1.SameAsset(xrp2) {
		t.Error("two native amounts share an asset")
	}
	if xrp1.SameAsset(usd) {
		t.Error("native and issued are different assets")
	}
	if usd.SameAsset(usdOther) {
		t.Error("same currency from different issuers are different assets")
	}
}
