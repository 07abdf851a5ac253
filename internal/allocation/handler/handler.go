package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vaultd/internal/allocation"
	"vaultd/internal/domain"
	registryhandler "vaultd/internal/registry/handler"
	"vaultd/pkg/platform/httputil"
	"vaultd/pkg/requestcontext"
)

// Service defines the interface for allocation operations.
type Service interface {
	ProvideBatch(ctx context.Context, caller domain.Identity, assetIDs []uint64, amounts []*big.Int, idempotencyKey string) ([]bool, error)
	ReceiveBatch(ctx context.Context, caller domain.Identity, assetIDs []uint64, amounts []*big.Int, idempotencyKey string) ([]bool, error)
	Allocated(ctx context.Context, assetID uint64) (*big.Int, error)
}

var _ Service = (*allocation.Service)(nil)

// Handler wires allocation endpoints to the allocation service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an allocation handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts allocation endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/allocations/provide", h.HandleProvide)
	r.Post("/allocations/receive", h.HandleReceive)
	r.Get("/assets/{assetID}/allocated", h.HandleAllocated)
}

// HandleProvide handles POST /allocations/provide requests.
func (h *Handler) HandleProvide(w http.ResponseWriter, r *http.Request) {
	h.handleBatch(w, r, "provide", h.service.ProvideBatch)
}

// HandleReceive handles POST /allocations/receive requests.
func (h *Handler) HandleReceive(w http.ResponseWriter, r *http.Request) {
	h.handleBatch(w, r, "receive", h.service.ReceiveBatch)
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request, direction string, call func(context.Context, domain.Identity, []uint64, []*big.Int, string) ([]bool, error)) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	req, ok := httputil.DecodeAndPrepare[BatchRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	results, err := call(ctx, caller, req.AssetIDs, req.ParsedAmounts(), req.IdempotencyKey)
	if err != nil {
		h.logger.ErrorContext(ctx, "allocation batch rejected",
			"request_id", requestID,
			"direction", direction,
			"items", len(req.AssetIDs),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, BatchResponse{Results: results})
}

// HandleAllocated handles GET /assets/{assetID}/allocated requests.
func (h *Handler) HandleAllocated(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	assetID, err := registryhandler.ParseAssetID(chi.URLParam(r, "assetID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	allocated, err := h.service.Allocated(ctx, assetID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"amount": domain.FormatAmount(allocated)})
}
