// Package handler is the HTTP surface for bracelet operations: the anonymous
// scan endpoint, the owner lifecycle actions, and the admin fleet routes.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"guardtag/internal/bracelet/models"
	"guardtag/internal/bracelet/service"
	id "guardtag/pkg/domain"
	dErrors "guardtag/pkg/domain-errors"
	"guardtag/pkg/platform/httputil"
	"guardtag/pkg/platform/middleware/auth"
	"guardtag/pkg/platform/middleware/request"
)

// Service is the bracelet operation set the handler delegates to.
type Service interface {
	Route(ctx context.Context, cmd service.ScanCommand) (*models.ViewDecision, error)
	Claim(ctx context.Context, cmd service.ClaimCommand) (*models.Bracelet, error)
	ReportLost(ctx context.Context, braceletID id.BraceletID, callerID id.UserID) (*models.Bracelet, error)
	Reactivate(ctx context.Context, braceletID id.BraceletID, callerID id.UserID) (*models.Bracelet, error)
	MarkStolen(ctx context.Context, braceletID id.BraceletID, callerID id.UserID) (*models.Bracelet, error)
	Deactivate(ctx context.Context, braceletID id.BraceletID, adminOverride bool) (*models.Bracelet, error)
	Unlock(ctx context.Context, braceletID id.BraceletID) (*models.Bracelet, error)
	Provision(ctx context.Context, cmd service.ProvisionCommand) (*service.Provisioned, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the scan endpoint and the owner actions.
func (h *Handler) Register(r chi.Router) {
	r.Post("/scan/{braceletID}", h.HandleScan)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireCaller)
		r.Post("/bracelets/{braceletID}/claim", h.HandleClaim)
		r.Post("/bracelets/{braceletID}/report-lost", h.ownerAction(h.service.ReportLost))
		r.Post("/bracelets/{braceletID}/reactivate", h.ownerAction(h.service.Reactivate))
		r.Post("/bracelets/{braceletID}/mark-stolen", h.ownerAction(h.service.MarkStolen))
	})
}

// RegisterAdmin mounts the fleet routes; the caller wraps them in the admin
// token middleware.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/bracelets", h.HandleProvision)
	r.Post("/admin/bracelets/{braceletID}/unlock", h.HandleUnlock)
	r.Post("/admin/bracelets/{braceletID}/deactivate", h.HandleDeactivate)
}

type scanRequest struct {
	Token string   `json:"token"`
	Lat   *float64 `json:"lat,omitempty"`
	Lon   *float64 `json:"lon,omitempty"`
}

// HandleScan routes one anonymous scan. The bracelet ID is taken as an opaque
// string: a malformed ID gets the same rejection as a wrong token, so the
// handler never confirms which IDs are real.
func (h *Handler) HandleScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeJSON[scanRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	decision, err := h.service.Route(ctx, service.ScanCommand{
		BraceletID: chi.URLParam(r, "braceletID"),
		Token:      req.Token,
		Lat:        req.Lat,
		Lon:        req.Lon,
		UserAgent:  r.UserAgent(),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "scan routing failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, decision)
}

type claimRequest struct {
	Token     string `json:"token"`
	ProfileID string `json:"profile_id"`
}

type braceletResponse struct {
	ID              string  `json:"id"`
	Status          string  `json:"status"`
	LinkedProfileID *string `json:"linked_profile_id,omitempty"`
}

func toBraceletResponse(b *models.Bracelet) braceletResponse {
	resp := braceletResponse{ID: b.ID.String(), Status: string(b.Status)}
	if b.LinkedProfileID != nil {
		pid := b.LinkedProfileID.String()
		resp.LinkedProfileID = &pid
	}
	return resp
}

func (h *Handler) HandleClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeJSON[claimRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	profileID, err := id.ParseProfileID(req.ProfileID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid profile id"))
		return
	}

	b, err := h.service.Claim(ctx, service.ClaimCommand{
		BraceletID: chi.URLParam(r, "braceletID"),
		Token:      req.Token,
		ProfileID:  profileID,
		CallerID:   auth.GetCallerID(ctx),
	})
	if err != nil {
		h.logger.WarnContext(ctx, "claim refused", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toBraceletResponse(b))
}

// ownerAction adapts the shared owner transition shape into a handler.
func (h *Handler) ownerAction(action func(ctx context.Context, braceletID id.BraceletID, callerID id.UserID) (*models.Bracelet, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		braceletID, err := id.ParseBraceletID(chi.URLParam(r, "braceletID"))
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid bracelet id"))
			return
		}
		b, err := action(ctx, braceletID, auth.GetCallerID(ctx))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, toBraceletResponse(b))
	}
}

type provisionRequest struct {
	BraceletID string `json:"bracelet_id"`
	Initial    string `json:"initial_status"`
	BatchID    string `json:"batch_id,omitempty"`
}

func (h *Handler) HandleProvision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeJSON[provisionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	p, err := h.service.Provision(ctx, service.ProvisionCommand{
		BraceletID: req.BraceletID,
		Initial:    models.Status(req.Initial),
		BatchID:    id.BatchID(req.BatchID),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	// The secret token appears in this response and nowhere else.
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"bracelet": toBraceletResponse(p.Bracelet),
		"token":    p.Token,
	})
}

func (h *Handler) HandleUnlock(w http.ResponseWriter, r *http.Request) {
	h.adminTransition(w, r, func(ctx context.Context, braceletID id.BraceletID) (*models.Bracelet, error) {
		return h.service.Unlock(ctx, braceletID)
	})
}

type deactivateRequest struct {
	Override bool `json:"override"`
}

func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeJSON[deactivateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	h.adminTransition(w, r, func(ctx context.Context, braceletID id.BraceletID) (*models.Bracelet, error) {
		return h.service.Deactivate(ctx, braceletID, req.Override)
	})
}

func (h *Handler) adminTransition(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, braceletID id.BraceletID) (*models.Bracelet, error)) {
	ctx := r.Context()
	braceletID, err := id.ParseBraceletID(chi.URLParam(r, "braceletID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid bracelet id"))
		return
	}
	b, err := action(ctx, braceletID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toBraceletResponse(b))
}
