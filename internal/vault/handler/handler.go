package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"vaultd/internal/domain"
	"vaultd/internal/vault"
	dErrors "vaultd/pkg/domain-errors"
	"vaultd/pkg/platform/httputil"
	"vaultd/pkg/requestcontext"
)

// Service defines the interface for role administration.
type Service interface {
	TransferOwnership(ctx context.Context, caller, newOwner domain.Identity) error
	SetStrategyAuthority(ctx context.Context, caller, strategy domain.Identity) error
	SetRelayer(ctx context.Context, caller, candidate domain.Identity) error
	Roles() vault.Roles
}

var _ Service = (*vault.Authority)(nil)

// Handler wires role administration endpoints to the authority.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a roles handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts role endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/roles", h.HandleGetRoles)
	r.Put("/roles/owner", h.HandleTransferOwnership)
	r.Put("/roles/strategy", h.HandleSetStrategy)
	r.Put("/roles/relayer", h.HandleSetRelayer)
}

// RoleRequest is the HTTP request body for the role setters. An empty
// identity is only meaningful for the relayer, where it disables
// indirection.
type RoleRequest struct {
	Identity string `json:"identity"`
}

func (r *RoleRequest) ParsedIdentity() domain.Identity {
	return domain.NormalizeIdentity(r.Identity)
}

// RolesResponse is the HTTP shape of the role snapshot.
type RolesResponse struct {
	Owner             string `json:"owner"`
	StrategyAuthority string `json:"strategy_authority,omitempty"`
	Relayer           string `json:"relayer,omitempty"`
}

// HandleGetRoles handles GET /roles requests.
func (h *Handler) HandleGetRoles(w http.ResponseWriter, r *http.Request) {
	roles := h.service.Roles()
	httputil.WriteJSON(w, http.StatusOK, RolesResponse{
		Owner:             roles.Owner.String(),
		StrategyAuthority: roles.StrategyAuthority.String(),
		Relayer:           roles.Relayer.String(),
	})
}

// HandleTransferOwnership handles PUT /roles/owner requests.
func (h *Handler) HandleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	h.handleRoleUpdate(w, r, "owner", true, h.service.TransferOwnership)
}

// HandleSetStrategy handles PUT /roles/strategy requests.
func (h *Handler) HandleSetStrategy(w http.ResponseWriter, r *http.Request) {
	h.handleRoleUpdate(w, r, "strategy_authority", false, h.service.SetStrategyAuthority)
}

// HandleSetRelayer handles PUT /roles/relayer requests.
func (h *Handler) HandleSetRelayer(w http.ResponseWriter, r *http.Request) {
	h.handleRoleUpdate(w, r, "relayer", false, h.service.SetRelayer)
}

func (h *Handler) handleRoleUpdate(w http.ResponseWriter, r *http.Request, role string, required bool, update func(context.Context, domain.Identity, domain.Identity) error) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)

	req, ok := httputil.DecodeAndPrepare[RoleRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if required && strings.TrimSpace(req.Identity) == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "identity is required"))
		return
	}

	if err := update(ctx, caller, req.ParsedIdentity()); err != nil {
		h.logger.ErrorContext(ctx, "role update failed",
			"request_id", requestID,
			"role", role,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
