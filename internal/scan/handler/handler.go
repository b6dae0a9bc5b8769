// Package handler exposes the guardian's scan inbox.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"guardtag/internal/scan/models"
	id "guardtag/pkg/domain"
	dErrors "guardtag/pkg/domain-errors"
	"guardtag/pkg/platform/httputil"
	"guardtag/pkg/platform/middleware/auth"
)

// Service is the inbox operation set the handler delegates to.
type Service interface {
	List(ctx context.Context, callerID id.UserID, limit int) ([]*models.ScanEvent, error)
	MarkRead(ctx context.Context, scanID id.ScanID, callerID id.UserID) error
	UnreadCount(ctx context.Context, callerID id.UserID) (int, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireCaller)
		r.Get("/scans", h.HandleList)
		r.Get("/scans/unread-count", h.HandleUnreadCount)
		r.Post("/scans/{scanID}/read", h.HandleMarkRead)
	})
}

type listResponse struct {
	Scans []*models.ScanEvent `json:"scans"`
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	scans, err := h.service.List(ctx, auth.GetCallerID(ctx), limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if scans == nil {
		scans = []*models.ScanEvent{}
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Scans: scans})
}

func (h *Handler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	scanID, err := id.ParseScanID(chi.URLParam(r, "scanID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid scan id"))
		return
	}
	if err := h.service.MarkRead(ctx, scanID, auth.GetCallerID(ctx)); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

func (h *Handler) HandleUnreadCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	count, err := h.service.UnreadCount(ctx, auth.GetCallerID(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"unread": count})
}
