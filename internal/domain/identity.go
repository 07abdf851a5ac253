package domain

import "strings"

// Identity is the principal used for accounting and authorization: a holder,
// an operator, the owning authority, the strategy authority, or the relayer.
// The zero value means "no identity" and disables whatever it gates.
type Identity string

// NormalizeIdentity trims and lowercases an externally supplied identity so
// map lookups and comparisons are case-insensitive.
func NormalizeIdentity(raw string) Identity {
	return Identity(strings.ToLower(strings.TrimSpace(raw)))
}

func (i Identity) IsZero() bool { return i == "" }

func (i Identity) String() string { return string(i) }
