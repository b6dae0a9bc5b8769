// Package handler exposes the PIN gate over HTTP. The verify endpoint is
// anonymous on purpose: doctors and school staff have no account, only a PIN
// the guardian gave them. The reads behind it accept the issued grant as a
// bearer token.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"guardtag/internal/pinaccess/grant"
	"guardtag/internal/pinaccess/pin"
	"guardtag/internal/profile/models"
	id "guardtag/pkg/domain"
	dErrors "guardtag/pkg/domain-errors"
	"guardtag/pkg/platform/httputil"
	"guardtag/pkg/platform/middleware/request"
	"guardtag/internal/sentinel"
)

// Gate verifies a presented PIN and mints a grant.
type Gate interface {
	VerifyPIN(ctx context.Context, profileID id.ProfileID, scope pin.Scope, presented string) (*grant.Grant, error)
}

// GrantAuthorizer checks that a bearer token covers a profile and scope.
type GrantAuthorizer interface {
	Authorize(tokenString string, profileID id.ProfileID, scope pin.Scope) error
}

// ProfileReader fetches the gated documents.
type ProfileReader interface {
	FindByID(ctx context.Context, profileID id.ProfileID) (*models.Profile, error)
}

type Handler struct {
	gate     Gate
	grants   GrantAuthorizer
	profiles ProfileReader
	logger   *slog.Logger
}

func New(gate Gate, grants GrantAuthorizer, profiles ProfileReader, logger *slog.Logger) *Handler {
	return &Handler{gate: gate, grants: grants, profiles: profiles, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/access/verify-pin", h.HandleVerifyPIN)
	r.Get("/access/profiles/{profileID}/medical", h.HandleMedical)
	r.Get("/access/profiles/{profileID}/pickups", h.HandlePickups)
}

type verifyRequest struct {
	ProfileID string `json:"profile_id"`
	Scope     string `json:"scope"`
	PIN       string `json:"pin"`
}

func (h *Handler) HandleVerifyPIN(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeJSON[verifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	profileID, err := id.ParseProfileID(req.ProfileID)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid profile id"))
		return
	}
	g, err := h.gate.VerifyPIN(ctx, profileID, pin.Scope(req.Scope), req.PIN)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, g)
}

// medicalDocument is the doctor-facing slice of a profile. It deliberately
// omits contacts, zones and the pickup roster.
type medicalDocument struct {
	ProfileID id.ProfileID       `json:"profile_id"`
	FullName  string             `json:"full_name"`
	Medical   models.MedicalInfo `json:"medical"`
}

func (h *Handler) HandleMedical(w http.ResponseWriter, r *http.Request) {
	p, ok := h.gatedProfile(w, r, pin.ScopeDoctor)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, medicalDocument{
		ProfileID: p.ID,
		FullName:  p.FullName,
		Medical:   p.Medical,
	})
}

type pickupRoster struct {
	ProfileID id.ProfileID          `json:"profile_id"`
	FullName  string                `json:"full_name"`
	Pickups   []models.PickupPerson `json:"pickups"`
}

func (h *Handler) HandlePickups(w http.ResponseWriter, r *http.Request) {
	p, ok := h.gatedProfile(w, r, pin.ScopeSchool)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pickupRoster{
		ProfileID: p.ID,
		FullName:  p.FullName,
		Pickups:   p.PickupPersons,
	})
}

// gatedProfile authorizes the bearer grant for the scope and loads the
// profile. It writes the error response itself when authorization or the
// lookup fails.
func (h *Handler) gatedProfile(w http.ResponseWriter, r *http.Request, scope pin.Scope) (*models.Profile, bool) {
	ctx := r.Context()

	profileID, err := id.ParseProfileID(chi.URLParam(r, "profileID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid profile id"))
		return nil, false
	}

	token, ok := bearerToken(r)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "missing access grant"))
		return nil, false
	}
	if err := h.grants.Authorize(token, profileID, scope); err != nil {
		httputil.WriteError(w, err)
		return nil, false
	}

	p, err := h.profiles.FindByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "profile not found"))
			return nil, false
		}
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "profile lookup failed"))
		return nil, false
	}
	return p, true
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}
