package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"vaultd/internal/domain"
	"vaultd/internal/registry"
	dErrors "vaultd/pkg/domain-errors"
	"vaultd/pkg/platform/httputil"
	"vaultd/pkg/requestcontext"
)

// Service defines the interface for asset registry operations.
type Service interface {
	Register(ctx context.Context, caller domain.Identity, underlying domain.Identity, name, symbol string) (domain.Asset, error)
	Lookup(ctx context.Context, assetID uint64) (domain.Asset, error)
	Resolve(ctx context.Context, underlying domain.Identity) (domain.Asset, error)
	Enumerate(ctx context.Context) ([]domain.Asset, error)
}

var _ Service = (*registry.Service)(nil)

// Handler wires asset registry endpoints to the registry service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a registry handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts registry endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/assets", h.HandleRegisterAsset)
	r.Get("/assets", h.HandleListAssets)
	r.Get("/assets/resolve", h.HandleResolve)
	r.Get("/assets/{assetID}", h.HandleGetAsset)
}

// HandleRegisterAsset handles POST /assets requests.
func (h *Handler) HandleRegisterAsset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	req, ok := httputil.DecodeAndPrepare[RegisterAssetRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	asset, err := h.service.Register(ctx, caller, req.ParsedUnderlying(), req.Name, req.Symbol)
	if err != nil {
		h.logger.ErrorContext(ctx, "asset registration failed",
			"request_id", requestID,
			"underlying", req.Underlying,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, FromAsset(asset))
}

// HandleListAssets handles GET /assets requests.
func (h *Handler) HandleListAssets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	assets, err := h.service.Enumerate(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]AssetResponse, 0, len(assets))
	for _, asset := range assets {
		out = append(out, FromAsset(asset))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// HandleGetAsset handles GET /assets/{assetID} requests.
func (h *Handler) HandleGetAsset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	assetID, err := ParseAssetID(chi.URLParam(r, "assetID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	asset, err := h.service.Lookup(ctx, assetID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromAsset(asset))
}

// HandleResolve handles GET /assets/resolve?underlying= requests. An
// unregistered underlying resolves to id zero rather than an error.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	underlying := strings.TrimSpace(r.URL.Query().Get("underlying"))
	if underlying == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "underlying query parameter is required"))
		return
	}
	asset, err := h.service.Resolve(ctx, domain.NormalizeIdentity(underlying))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			httputil.WriteJSON(w, http.StatusOK, ResolveResponse{ID: 0})
			return
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ResolveResponse{ID: asset.ID})
}

// ParseAssetID parses a positive decimal asset id from a path segment.
func ParseAssetID(raw string) (uint64, error) {
	assetID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || assetID == 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "asset id must be a positive integer")
	}
	return assetID, nil
}
