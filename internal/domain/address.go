package domain

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// Address identifies an account, a token ledger, or the exchange itself.
// Addresses are rendered as 0x followed by 40 lowercase hex digits.
type Address string

// NullAddress is the reserved "no account" value.
const NullAddress Address = "0x0000000000000000000000000000000000000000"

var addressRegex = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ParseAddress validates s and returns it in canonical lowercase form.
func ParseAddress(s string) (Address, error) {
	if !addressRegex.MatchString(s) {
		return "", fmt.Errorf("address must match ^0x[0-9a-fA-F]{40}$, got %q", s)
	}
	return Address(strings.ToLower(s)), nil
}

// IsNull reports whether a is the null address. The empty string is
// treated as null too, so zero-valued fields never name a real account.
func (a Address) IsNull() bool {
	return a == NullAddress || a == ""
}

func (a Address) String() string {
	return string(a)
}

// DeriveAddress hashes seed with BLAKE3 and keeps the trailing 20 bytes.
// The same seed always yields the same address.
func DeriveAddress(seed []byte) Address {
	sum := blake3.Sum256(seed)
	return Address("0x" + hex.EncodeToString(sum[12:]))
}

// NewAddress returns a fresh address derived from a random UUID.
func NewAddress() Address {
	id := uuid.New()
	return DeriveAddress(id[:])
}
