package handler

import (
	"vaultd/internal/domain"
	"vaultd/internal/ledger"
)

// TotalsResponse is the per-asset financial snapshot.
type TotalsResponse struct {
	AssetID     uint64 `json:"asset_id"`
	TotalSupply string `json:"total_supply"`
	TotalAssets string `json:"total_assets"`
	Cash        string `json:"cash"`
	Allocated   string `json:"allocated"`
}

// FromTotals converts a domain totals snapshot to its HTTP response.
func FromTotals(t ledger.Totals) TotalsResponse {
	return TotalsResponse{
		AssetID:     t.AssetID,
		TotalSupply: domain.FormatAmount(t.TotalSupply),
		TotalAssets: domain.FormatAmount(t.TotalAssets),
		Cash:        domain.FormatAmount(t.Cash),
		Allocated:   domain.FormatAmount(t.Allocated),
	}
}

// IssueResponse reports both legs of a completed issuance or redemption.
type IssueResponse struct {
	Assets string `json:"assets"`
	Shares string `json:"shares"`
}

// AmountResponse carries a single decimal amount.
type AmountResponse struct {
	Amount string `json:"amount"`
}

// OperatorResponse reports an operator approval flag.
type OperatorResponse struct {
	Approved bool `json:"approved"`
}
