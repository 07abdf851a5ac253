package domain

import (
	"fmt"
	"math/big"
)

// Amounts are arbitrary-precision non-negative integers in the underlying
// asset's smallest unit. They travel over the wire as decimal strings.

// unlimited is 2^256-1, the allowance sentinel that is never decremented.
var unlimited = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Unlimited returns a copy of the unlimited-allowance sentinel.
func Unlimited() *big.Int { return new(big.Int).Set(unlimited) }

// IsUnlimited reports whether amount equals the unlimited sentinel.
func IsUnlimited(amount *big.Int) bool {
	return amount != nil && amount.Cmp(unlimited) == 0
}

// ParseAmount parses a decimal string into a non-negative amount.
func ParseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("malformed amount %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", s)
	}
	return v, nil
}

// FormatAmount renders an amount as a decimal string; nil renders as "0".
func FormatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}
