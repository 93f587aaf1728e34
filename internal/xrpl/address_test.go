package xrpl

import "testing"

func TestDecodeClassicAddress(t *testing.T) {
	valid := []string{
		"r2XdzWFVoHGfGVmXugtKhxMu3bqhsYiWK",
		"rsoLo2S1kiGeCcn6hCUXVrCpGMWLrRrLZz",
	}

	for _, addr := range valid {
		accountID, err := DecodeClassicAddress(addr)
		if err != nil {
			t.Errorf("DecodeClassicAddress(%s): %v", addr, err)
			continue
		}
		if len(accountID) != 20 {
			t.Errorf("DecodeClassicAddress(%s): account id length %d, want 20", addr, len(accountID))
		}
	}
}

func TestDecodeClassicAddressRejectsInvalid(t *testing.T) {
	invalid := map[string]string{
		"empty":          "",
		"too short":      "rXr",
		"bad checksum":   "r2XdzWFVoHGfGVmXugtKhxMu3bqhsYiWL",
		"bad alphabet":   "r0OIl2S1kiGeCcn6hCUXVrCpGMWLrRrLZz",
		"not an address": "not-an-address",
	}

	for name, addr := range invalid {
		if _, err := DecodeClassicAddress(addr); err == nil {
			t.Errorf("DecodeClassicAddress(%q) [%s]: expected error", addr, name)
		}
	}
}

func TestIsValidClassicAddress(t *testing.T) {
	if !IsValidClassicAddress("rsoLo2S1kiGeCcn6hCUXVrCpGMWLrRrLZz") {
		t.Error("issuer address should validate")
	}
	if IsValidClassicAddress("rsoLo2S1kiGeCcn6hCUXVrCpGMWLrRrLZ") {
		t.Error("truncated address should not validate")
	}
}
