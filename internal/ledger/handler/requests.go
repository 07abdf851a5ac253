package handler

import (
	"math/big"
	"strings"

	"vaultd/internal/domain"
	dErrors "vaultd/pkg/domain-errors"
)

// parseAmount parses a required positive decimal amount field.
func parseAmount(field, raw string) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, dErrors.Newf(dErrors.CodeValidation, "%s is required", field)
	}
	amount, err := domain.ParseAmount(raw)
	if err != nil {
		return nil, dErrors.Newf(dErrors.CodeValidation, "%s must be a non-negative decimal integer", field)
	}
	if amount.Sign() == 0 {
		return nil, dErrors.Newf(dErrors.CodeValidation, "%s must be positive", field)
	}
	return amount, nil
}

// DepositRequest is the HTTP request body for POST /assets/{id}/deposit.
// Receiver defaults to the effective caller when omitted.
type DepositRequest struct {
	Assets   string `json:"assets"`
	Receiver string `json:"receiver"`

	parsedAssets *big.Int
}

func (r *DepositRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	assets, err := parseAmount("assets", r.Assets)
	if err != nil {
		return err
	}
	r.parsedAssets = assets
	return nil
}

func (r *DepositRequest) ParsedAssets() *big.Int { return r.parsedAssets }

func (r *DepositRequest) ParsedReceiver() domain.Identity {
	return domain.NormalizeIdentity(r.Receiver)
}

// MintRequest is the HTTP request body for POST /assets/{id}/mint.
type MintRequest struct {
	Shares   string `json:"shares"`
	Receiver string `json:"receiver"`

	parsedShares *big.Int
}

func (r *MintRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	shares, err := parseAmount("shares", r.Shares)
	if err != nil {
		return err
	}
	r.parsedShares = shares
	return nil
}

func (r *MintRequest) ParsedShares() *big.Int { return r.parsedShares }

func (r *MintRequest) ParsedReceiver() domain.Identity {
	return domain.NormalizeIdentity(r.Receiver)
}

// WithdrawRequest is the HTTP request body for POST /assets/{id}/withdraw.
// Receiver and owner default to the effective caller when omitted.
type WithdrawRequest struct {
	Assets   string `json:"assets"`
	Receiver string `json:"receiver"`
	Owner    string `json:"owner"`

	parsedAssets *big.Int
}

func (r *WithdrawRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	assets, err := parseAmount("assets", r.Assets)
	if err != nil {
		return err
	}
	r.parsedAssets = assets
	return nil
}

func (r *WithdrawRequest) ParsedAssets() *big.Int { return r.parsedAssets }

func (r *WithdrawRequest) ParsedReceiver() domain.Identity {
	return domain.NormalizeIdentity(r.Receiver)
}

func (r *WithdrawRequest) ParsedOwner() domain.Identity {
	return domain.NormalizeIdentity(r.Owner)
}

// RedeemRequest is the HTTP request body for POST /assets/{id}/redeem.
type RedeemRequest struct {
	Shares   string `json:"shares"`
	Receiver string `json:"receiver"`
	Owner    string `json:"owner"`

	parsedShares *big.Int
}

func (r *RedeemRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	shares, err := parseAmount("shares", r.Shares)
	if err != nil {
		return err
	}
	r.parsedShares = shares
	return nil
}

func (r *RedeemRequest) ParsedShares() *big.Int { return r.parsedShares }

func (r *RedeemRequest) ParsedReceiver() domain.Identity {
	return domain.NormalizeIdentity(r.Receiver)
}

func (r *RedeemRequest) ParsedOwner() domain.Identity {
	return domain.NormalizeIdentity(r.Owner)
}

// TransferRequest is the HTTP request body for POST /assets/{id}/transfer
// and /assets/{id}/transfer-from. From is only honored on transfer-from.
type TransferRequest struct {
	From   string `json:"from,omitempty"`
	To     string `json:"to"`
	Shares string `json:"shares"`

	parsedShares *big.Int
}

func (r *TransferRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if strings.TrimSpace(r.To) == "" {
		return dErrors.New(dErrors.CodeValidation, "to is required")
	}
	shares, err := parseAmount("shares", r.Shares)
	if err != nil {
		return err
	}
	r.parsedShares = shares
	return nil
}

func (r *TransferRequest) ParsedShares() *big.Int { return r.parsedShares }

func (r *TransferRequest) ParsedFrom() domain.Identity {
	return domain.NormalizeIdentity(r.From)
}

func (r *TransferRequest) ParsedTo() domain.Identity {
	return domain.NormalizeIdentity(r.To)
}

// ApproveRequest is the HTTP request body for POST /assets/{id}/approve.
// Shares accepts any non-negative amount; zero revokes the allowance.
type ApproveRequest struct {
	Spender string `json:"spender"`
	Shares  string `json:"shares"`

	parsedShares *big.Int
}

func (r *ApproveRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if strings.TrimSpace(r.Spender) == "" {
		return dErrors.New(dErrors.CodeValidation, "spender is required")
	}
	raw := strings.TrimSpace(r.Shares)
	if raw == "" {
		return dErrors.New(dErrors.CodeValidation, "shares is required")
	}
	shares, err := domain.ParseAmount(raw)
	if err != nil {
		return dErrors.New(dErrors.CodeValidation, "shares must be a non-negative decimal integer")
	}
	r.parsedShares = shares
	return nil
}

func (r *ApproveRequest) ParsedShares() *big.Int { return r.parsedShares }

func (r *ApproveRequest) ParsedSpender() domain.Identity {
	return domain.NormalizeIdentity(r.Spender)
}

// SetOperatorRequest is the HTTP request body for POST /operators.
type SetOperatorRequest struct {
	Operator string `json:"operator"`
	Approved bool   `json:"approved"`
}

func (r *SetOperatorRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if strings.TrimSpace(r.Operator) == "" {
		return dErrors.New(dErrors.CodeValidation, "operator is required")
	}
	return nil
}

func (r *SetOperatorRequest) ParsedOperator() domain.Identity {
	return domain.NormalizeIdentity(r.Operator)
}
