package xrpl

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

// rippleAlphabet is the base58 dictionary used for classic addresses.
const rippleAlphabet = "rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz"

// accountPrefix is the type byte for account IDs.
const accountPrefix = 0x00

var addressAlphabet = base58.NewAlphabet(rippleAlphabet)

// DecodeClassicAddress decodes a classic address into its 20-byte account ID.
func DecodeClassicAddress(address string) ([]byte, error) {
	raw, err := base58.DecodeAlphabet(address, addressAlphabet)
	if err != nil {
		return nil, fmt.Errorf("decode address: %w", err)
	}
	if len(raw) != 25 {
		return nil, fmt.Errorf("decoded address has %d bytes, want 25", len(raw))
	}

	payload, checksum := raw[:21], raw[21:]
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	for i := 0; i < 4; i++ {
		if checksum[i] != second[i] {
			return nil, fmt.Errorf("address checksum mismatch")
		}
	}

	if payload[0] != accountPrefix {
		return nil, fmt.Errorf("unexpected address prefix 0x%02x", payload[0])
	}

	return payload[1:], nil
}

// IsValidClassicAddress reports whether address is a well-formed classic address.
func IsValidClassicAddress(address string) bool {
	_, err := DecodeClassicAddress(address)
	return err == nil
}
