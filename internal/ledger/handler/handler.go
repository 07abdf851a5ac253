package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"vaultd/internal/domain"
	"vaultd/internal/ledger"
	registryhandler "vaultd/internal/registry/handler"
	dErrors "vaultd/pkg/domain-errors"
	"vaultd/pkg/platform/httputil"
	"vaultd/pkg/requestcontext"
)

// Service defines the interface for share ledger operations.
type Service interface {
	Totals(ctx context.Context, assetID uint64) (ledger.Totals, error)
	ConvertToShares(ctx context.Context, assetID uint64, assets *big.Int) (*big.Int, error)
	ConvertToAssets(ctx context.Context, assetID uint64, shares *big.Int) (*big.Int, error)
	Deposit(ctx context.Context, caller domain.Identity, assetID uint64, assets *big.Int, receiver domain.Identity) (*big.Int, error)
	Mint(ctx context.Context, caller domain.Identity, assetID uint64, shares *big.Int, receiver domain.Identity) (*big.Int, error)
	Withdraw(ctx context.Context, caller domain.Identity, assetID uint64, assets *big.Int, receiver, owner domain.Identity) (*big.Int, error)
	Redeem(ctx context.Context, caller domain.Identity, assetID uint64, shares *big.Int, receiver, owner domain.Identity) (*big.Int, error)
	Transfer(ctx context.Context, caller domain.Identity, assetID uint64, to domain.Identity, shares *big.Int) error
	TransferFrom(ctx context.Context, caller domain.Identity, assetID uint64, from, to domain.Identity, shares *big.Int) error
	Approve(ctx context.Context, caller domain.Identity, assetID uint64, spender domain.Identity, amount *big.Int) error
	SetOperator(ctx context.Context, caller domain.Identity, operator domain.Identity, approved bool) error
	BalanceOf(ctx context.Context, assetID uint64, holder domain.Identity) (*big.Int, error)
	AllowanceOf(ctx context.Context, assetID uint64, owner, spender domain.Identity) (*big.Int, error)
	IsOperator(ctx context.Context, owner, operator domain.Identity) (bool, error)
}

var _ Service = (*ledger.Service)(nil)

// Handler wires share ledger endpoints to the ledger service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a ledger handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts ledger endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/assets/{assetID}/totals", h.HandleTotals)
	r.Get("/assets/{assetID}/convert/shares", h.HandleConvertToShares)
	r.Get("/assets/{assetID}/convert/assets", h.HandleConvertToAssets)
	r.Post("/assets/{assetID}/deposit", h.HandleDeposit)
	r.Post("/assets/{assetID}/mint", h.HandleMint)
	r.Post("/assets/{assetID}/withdraw", h.HandleWithdraw)
	r.Post("/assets/{assetID}/redeem", h.HandleRedeem)
	r.Post("/assets/{assetID}/transfer", h.HandleTransfer)
	r.Post("/assets/{assetID}/transfer-from", h.HandleTransferFrom)
	r.Post("/assets/{assetID}/approve", h.HandleApprove)
	r.Get("/assets/{assetID}/balances/{holder}", h.HandleBalance)
	r.Get("/assets/{assetID}/allowance", h.HandleAllowance)
	r.Post("/operators", h.HandleSetOperator)
	r.Get("/operators", h.HandleIsOperator)
}

// HandleTotals handles GET /assets/{assetID}/totals requests.
func (h *Handler) HandleTotals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	assetID, err := registryhandler.ParseAssetID(chi.URLParam(r, "assetID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	totals, err := h.service.Totals(ctx, assetID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromTotals(totals))
}

// HandleConvertToShares handles GET /assets/{assetID}/convert/shares?assets=.
func (h *Handler) HandleConvertToShares(w http.ResponseWriter, r *http.Request) {
	h.handleConvert(w, r, "assets", h.service.ConvertToShares)
}

// HandleConvertToAssets handles GET /assets/{assetID}/convert/assets?shares=.
func (h *Handler) HandleConvertToAssets(w http.ResponseWriter, r *http.Request) {
	h.handleConvert(w, r, "shares", h.service.ConvertToAssets)
}

func (h *Handler) handleConvert(w http.ResponseWriter, r *http.Request, param string, convert func(context.Context, uint64, *big.Int) (*big.Int, error)) {
	ctx := r.Context()

	assetID, err := registryhandler.ParseAssetID(chi.URLParam(r, "assetID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	raw := strings.TrimSpace(r.URL.Query().Get(param))
	if raw == "" {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "%s query parameter is required", param))
		return
	}
	amount, err := domain.ParseAmount(raw)
	if err != nil {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "%s must be a non-negative decimal integer", param))
		return
	}
	converted, err := convert(ctx, assetID, amount)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AmountResponse{Amount: domain.FormatAmount(converted)})
}

// HandleDeposit handles POST /assets/{assetID}/deposit requests.
func (h *Handler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)
	start := time.Now()

	assetID, err := registryhandler.ParseAssetID(chi.URLParam(r, "assetID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[DepositRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	shares, err := h.service.Deposit(ctx, caller, assetID, req.ParsedAssets(), req.ParsedReceiver())
	if err != nil {
		h.logger.ErrorContext(ctx, "deposit failed",
			"request_id", requestID,
			"asset_id", assetID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "deposit completed",
		"request_id", requestID,
		"asset_id", assetID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, IssueResponse{
		Assets: req.Assets,
		Shares: domain.FormatAmount(shares),
	})
}

// HandleMint handles POST /assets/{assetID}/mint requests.
func (h *Handler) HandleMint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	assetID, err := registryhandler.ParseAssetID(chi.URLParam(r, "assetID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[MintRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	assets, err := h.service.Mint(ctx, caller, assetID, req.ParsedShares(), req.ParsedReceiver())
	if err != nil {
		h.logger.ErrorContext(ctx, "mint failed",
			"request_id", requestID,
			"asset_id", assetID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, IssueResponse{
		Assets: domain.FormatAmount(assets),
		Shares: req.Shares,
	})
}

// HandleWithdraw handles POST /assets/{assetID}/withdraw requests.
func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	assetID, err := registryhandler.ParseAssetID(chi.URLParam(r, "assetID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[WithdrawRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	shares, err := h.service.Withdraw(ctx, caller, assetID, req.ParsedAssets(), req.ParsedReceiver(), req.ParsedOwner())
	if err != nil {
		h.logger.ErrorContext(ctx, "withdrawal failed",
			"request_id", requestID,
			"asset_id", assetID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, IssueResponse{
		Assets: req.Assets,
		Shares: domain.FormatAmount(shares),
	})
}

// HandleRedeem handles POST /assets/{assetID}/redeem requests.
func (h *Handler) HandleRedeem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	assetID, err := registryhandler.ParseAssetID(chi.URLParam(r, "assetID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[RedeemRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	assets, err := h.service.Redeem(ctx, caller, assetID, req.ParsedShares(), req.ParsedReceiver(), req.ParsedOwner())
	if err != nil {
		h.logger.ErrorContext(ctx, "redemption failed",
			"request_id", requestID,
			"asset_id", assetID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, IssueResponse{
		Assets: domain.FormatAmount(assets),
		Shares: req.Shares,
	})
}

// HandleTransfer handles POST /assets/{assetID}/transfer requests.
func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	assetID, err := registryhandler.ParseAssetID(chi.URLParam(r, "assetID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[TransferRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.Transfer(ctx, caller, assetID, req.ParsedTo(), req.ParsedShares()); err != nil {
		h.logger.ErrorContext(ctx, "transfer failed",
			"request_id", requestID,
			"asset_id", assetID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleTransferFrom handles POST /assets/{assetID}/transfer-from requests.
func (h *Handler) HandleTransferFrom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	assetID, err := registryhandler.ParseAssetID(chi.URLParam(r, "assetID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[TransferRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if req.ParsedFrom().IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "from is required"))
		return
	}

	if err := h.service.TransferFrom(ctx, caller, assetID, req.ParsedFrom(), req.ParsedTo(), req.ParsedShares()); err != nil {
		h.logger.ErrorContext(ctx, "delegated transfer failed",
			"request_id", requestID,
			"asset_id", assetID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleApprove handles POST /assets/{assetID}/approve requests.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	assetID, err := registryhandler.ParseAssetID(chi.URLParam(r, "assetID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[ApproveRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.Approve(ctx, caller, assetID, req.ParsedSpender(), req.ParsedShares()); err != nil {
		h.logger.ErrorContext(ctx, "approval failed",
			"request_id", requestID,
			"asset_id", assetID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSetOperator handles POST /operators requests.
func (h *Handler) HandleSetOperator(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	req, ok := httputil.DecodeAndPrepare[SetOperatorRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.SetOperator(ctx, caller, req.ParsedOperator(), req.Approved); err != nil {
		h.logger.ErrorContext(ctx, "operator update failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleBalance handles GET /assets/{assetID}/balances/{holder} requests.
func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	assetID, err := registryhandler.ParseAssetID(chi.URLParam(r, "assetID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	holder := domain.NormalizeIdentity(chi.URLParam(r, "holder"))
	if holder.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "holder is required"))
		return
	}
	balance, err := h.service.BalanceOf(ctx, assetID, holder)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AmountResponse{Amount: domain.FormatAmount(balance)})
}

// HandleAllowance handles GET /assets/{assetID}/allowance?owner=&spender=.
func (h *Handler) HandleAllowance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	assetID, err := registryhandler.ParseAssetID(chi.URLParam(r, "assetID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	owner := domain.NormalizeIdentity(r.URL.Query().Get("owner"))
	spender := domain.NormalizeIdentity(r.URL.Query().Get("spender"))
	if owner.IsZero() || spender.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "owner and spender query parameters are required"))
		return
	}
	allowance, err := h.service.AllowanceOf(ctx, assetID, owner, spender)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AmountResponse{Amount: domain.FormatAmount(allowance)})
}

// HandleIsOperator handles GET /operators?owner=&operator= requests.
func (h *Handler) HandleIsOperator(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	owner := domain.NormalizeIdentity(r.URL.Query().Get("owner"))
	operator := domain.NormalizeIdentity(r.URL.Query().Get("operator"))
	if owner.IsZero() || operator.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "owner and operator query parameters are required"))
		return
	}
	approved, err := h.service.IsOperator(ctx, owner, operator)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, OperatorResponse{Approved: approved})
}
