package audit

import (
	"time"

	"vaultd/internal/domain"
)

// Action names a vault event kind.
type Action string

const (
	ActionAssetRegistered    Action = "asset.registered"
	ActionDeposit            Action = "vault.deposit"
	ActionMint               Action = "vault.mint"
	ActionWithdraw           Action = "vault.withdraw"
	ActionRedeem             Action = "vault.redeem"
	ActionTransfer           Action = "vault.transfer"
	ActionApproval           Action = "vault.approval"
	ActionOperatorSet        Action = "vault.operator"
	ActionAllocationProvided Action = "allocation.provided"
	ActionAllocationReceived Action = "allocation.received"
	ActionRoleUpdated        Action = "role.updated"
)

// Event is one observable state change. Amount-like fields are decimal
// strings so consumers never lose precision.
type Event struct {
	ID        string          `json:"id"`
	Action    Action          `json:"action"`
	Actor     domain.Identity `json:"actor"`
	AssetID   uint64          `json:"asset_id,omitempty"`
	Assets    string          `json:"assets,omitempty"`
	Shares    string          `json:"shares,omitempty"`
	Receiver  domain.Identity `json:"receiver,omitempty"`
	Owner     domain.Identity `json:"owner,omitempty"`
	Detail    string          `json:"detail,omitempty"`
	Batch     *BatchDetail    `json:"batch,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// BatchDetail carries the original request arrays of a batch allocation call
// alongside the per-index resolved underlying assets and results. Failed
// indices keep a zero-value placeholder in Underlyings.
type BatchDetail struct {
	AssetIDs    []uint64          `json:"asset_ids"`
	Amounts     []string          `json:"amounts"`
	Underlyings []domain.Identity `json:"underlyings"`
	Results     []bool            `json:"results"`
}
