// Package identity models caller identity for the camp engine.
//
// The engine treats wallets as an external collaborator: everything it needs
// is a stable caller address for authorization checks, plus an optional
// signed caller token for processes that relay calls on a wallet's behalf.
package identity

import (
	"strings"

	"github.com/louisbranch/summit.camp/internal/platform/errors"
)

// Address identifies a wallet-backed caller.
//
// Addresses are normalized to lowercase hex with a 0x prefix and 40 hex
// digits, matching the account format of the upstream chain.
type Address string

const addressHexLen = 40

// ParseAddress normalizes and validates a raw address string.
func ParseAddress(raw string) (Address, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if !strings.HasPrefix(value, "0x") {
		return "", errors.New(errors.CodeInvalidAddress, "address must start with 0x")
	}
	digits := value[2:]
	if len(digits) != addressHexLen {
		return "", errors.WithMetadata(errors.CodeInvalidAddress, "address must contain 40 hex digits", map[string]string{
			"address": raw,
		})
	}
	for _, r := range digits {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return "", errors.WithMetadata(errors.CodeInvalidAddress, "address contains non-hex characters", map[string]string{
				"address": raw,
			})
		}
	}
	return Address(value), nil
}

// String returns the normalized address text.
func (a Address) String() string {
	return string(a)
}

// IsZero reports whether the address is empty.
func (a Address) IsZero() bool {
	return strings.TrimSpace(string(a)) == ""
}

// Equal reports whether two addresses identify the same caller.
func (a Address) Equal(other Address) bool {
	return strings.EqualFold(string(a), string(other))
}
