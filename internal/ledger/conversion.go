package ledger

import "math/big"

// Share/asset conversion. With S = total shares outstanding and A = total
// assets under management, conversions are 1:1 while S == 0 (bootstrap) and
// floor-divided otherwise. Flooring on both directions means rounding always
// favors the vault: a depositor may receive one share less than exact, a
// redeemer one asset unit less.

// SharesFor returns the shares minted for depositing `assets`.
func SharesFor(assets, totalShares, totalAssets *big.Int) *big.Int {
	if totalShares.Sign() == 0 {
		return new(big.Int).Set(assets)
	}
	if totalAssets.Sign() == 0 {
		// Shares exist but no assets back them; issuing anything here
		// would dilute holders against thin air.
		return new(big.Int)
	}
	out := new(big.Int).Mul(assets, totalShares)
	return out.Quo(out, totalAssets)
}

// AssetsFor returns the assets paid for redeeming `shares`.
func AssetsFor(shares, totalShares, totalAssets *big.Int) *big.Int {
	if totalShares.Sign() == 0 {
		return new(big.Int).Set(shares)
	}
	out := new(big.Int).Mul(shares, totalAssets)
	return out.Quo(out, totalShares)
}
