package handler

import (
	"math/big"

	"vaultd/internal/domain"
	dErrors "vaultd/pkg/domain-errors"
)

const maxBatchItems = 256

// BatchRequest is the HTTP request body for POST /allocations/provide and
// POST /allocations/receive. Array length agreement is checked by the
// service so that the mismatch rejection is uniform across transports.
type BatchRequest struct {
	AssetIDs       []uint64 `json:"asset_ids"`
	Amounts        []string `json:"amounts"`
	IdempotencyKey string   `json:"idempotency_key,omitempty"`

	parsedAmounts []*big.Int
}

func (r *BatchRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.AssetIDs) == 0 && len(r.Amounts) == 0 {
		return dErrors.New(dErrors.CodeValidation, "batch must contain at least one item")
	}
	if len(r.AssetIDs) > maxBatchItems || len(r.Amounts) > maxBatchItems {
		return dErrors.Newf(dErrors.CodeValidation, "batch must contain at most %d items", maxBatchItems)
	}
	parsed := make([]*big.Int, len(r.Amounts))
	for i, raw := range r.Amounts {
		amount, err := domain.ParseAmount(raw)
		if err != nil {
			return dErrors.Newf(dErrors.CodeValidation, "amounts[%d] must be a non-negative decimal integer", i)
		}
		parsed[i] = amount
	}
	r.parsedAmounts = parsed
	return nil
}

func (r *BatchRequest) ParsedAmounts() []*big.Int { return r.parsedAmounts }

// BatchResponse carries the per-index outcomes of a batch call.
type BatchResponse struct {
	Results []bool `json:"results"`
}
