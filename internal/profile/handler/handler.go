// Package handler is the HTTP surface for child profiles and their
// sub-resources. Every route requires an authenticated caller; ownership is
// enforced in the service layer.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"guardtag/internal/pinaccess/pin"
	"guardtag/internal/profile/models"
	"guardtag/internal/profile/service"
	id "guardtag/pkg/domain"
	dErrors "guardtag/pkg/domain-errors"
	"guardtag/pkg/platform/httputil"
	"guardtag/pkg/platform/middleware/auth"
	"guardtag/pkg/platform/middleware/request"
)

// Service is the profile operation set the handler delegates to.
type Service interface {
	CreateProfile(ctx context.Context, callerID id.UserID, fullName string) (*models.Profile, error)
	GetOwned(ctx context.Context, profileID id.ProfileID, callerID id.UserID) (*models.Profile, error)
	UpdateDetails(ctx context.Context, profileID id.ProfileID, callerID id.UserID, cmd *service.UpdateDetailsCommand) (*models.Profile, error)
	UpdateMedical(ctx context.Context, profileID id.ProfileID, callerID id.UserID, medical models.MedicalInfo) (*models.Profile, error)
	ReplaceContacts(ctx context.Context, profileID id.ProfileID, callerID id.UserID, contacts []models.EmergencyContact) (*models.Profile, error)
	UpdatePIN(ctx context.Context, profileID id.ProfileID, callerID id.UserID, scope pin.Scope, plaintext string) error
	Archive(ctx context.Context, profileID id.ProfileID, callerID id.UserID) error
	AddSafeZone(ctx context.Context, profileID id.ProfileID, callerID id.UserID, zone models.SafeZone) (*models.SafeZone, error)
	UpdateSafeZone(ctx context.Context, profileID id.ProfileID, callerID id.UserID, zone models.SafeZone) error
	RemoveSafeZone(ctx context.Context, profileID id.ProfileID, callerID id.UserID, zoneID id.ZoneID) error
	AddPickupPerson(ctx context.Context, profileID id.ProfileID, callerID id.UserID, person models.PickupPerson) (*models.PickupPerson, error)
	RemovePickupPerson(ctx context.Context, profileID id.ProfileID, callerID id.UserID, pickupID id.PickupID) error
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
		r.Post("/profiles", h.HandleCreate)
		r.Get("/profiles/{profileID}", h.HandleGet)
		r.Patch("/profiles/{profileID}", h.HandleUpdateDetails)
		r.Put("/profiles/{profileID}/medical", h.HandleUpdateMedical)
		r.Put("/profiles/{profileID}/contacts", h.HandleReplaceContacts)
		r.Put("/profiles/{profileID}/pin", h.HandleUpdatePIN)
		r.Post("/profiles/{profileID}/archive", h.HandleArchive)

		r.Post("/profiles/{profileID}/safe-zones", h.HandleAddSafeZone)
		r.Put("/profiles/{profileID}/safe-zones/{zoneID}", h.HandleUpdateSafeZone)
		r.Delete("/profiles/{profileID}/safe-zones/{zoneID}", h.HandleRemoveSafeZone)

		r.Post("/profiles/{profileID}/pickups", h.HandleAddPickup)
		r.Delete("/profiles/{profileID}/pickups/{pickupID}", h.HandleRemovePickup)
	})
}

func profileIDParam(r *http.Request) (id.ProfileID, error) {
	return id.ParseProfileID(chi.URLParam(r, "profileID"))
}

type createRequest struct {
	FullName string `json:"full_name"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeJSON[createRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	p, err := h.service.CreateProfile(ctx, auth.GetCallerID(ctx), req.FullName)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profileID, err := profileIDParam(r)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid profile id"))
		return
	}
	p, err := h.service.GetOwned(ctx, profileID, auth.GetCallerID(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

type updateDetailsRequest struct {
	FullName  *string `json:"full_name,omitempty"`
	BirthDate *string `json:"birth_date,omitempty"`
	PhotoURL  *string `json:"photo_url,omitempty"`
}

func (h *Handler) HandleUpdateDetails(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	profileID, err := profileIDParam(r)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid profile id"))
		return
	}
	req, ok := httputil.DecodeJSON[updateDetailsRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	cmd := &service.UpdateDetailsCommand{FullName: req.FullName, PhotoURL: req.PhotoURL}
	if req.BirthDate != nil {
		birth, err := time.Parse("2006-01-02", *req.BirthDate)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "birth_date must be YYYY-MM-DD"))
			return
		}
		cmd.BirthDate = &birth
	}

	p, err := h.service.UpdateDetails(ctx, profileID, auth.GetCallerID(ctx), cmd)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) HandleUpdateMedical(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	profileID, err := profileIDParam(r)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid profile id"))
		return
	}
	req, ok := httputil.DecodeJSON[models.MedicalInfo](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	p, err := h.service.UpdateMedical(ctx, profileID, auth.GetCallerID(ctx), *req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

type contactsRequest struct {
	Contacts []models.EmergencyContact `json:"contacts"`
}

func (h *Handler) HandleReplaceContacts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	profileID, err := profileIDParam(r)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid profile id"))
		return
	}
	req, ok := httputil.DecodeJSON[contactsRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	p, err := h.service.ReplaceContacts(ctx, profileID, auth.GetCallerID(ctx), req.Contacts)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

type updatePINRequest struct {
	Scope string `json:"scope"`
	PIN   string `json:"pin"`
}

func (h *Handler) HandleUpdatePIN(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	profileID, err := profileIDParam(r)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid profile id"))
		return
	}
	req, ok := httputil.DecodeJSON[updatePINRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.UpdatePIN(ctx, profileID, auth.GetCallerID(ctx), pin.Scope(req.Scope), req.PIN); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profileID, err := profileIDParam(r)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid profile id"))
		return
	}
	if err := h.service.Archive(ctx, profileID, auth.GetCallerID(ctx)); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "archived"})
}

func (h *Handler) HandleAddSafeZone(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	profileID, err := profileIDParam(r)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid profile id"))
		return
	}
	req, ok := httputil.DecodeJSON[models.SafeZone](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	zone, err := h.service.AddSafeZone(ctx, profileID, auth.GetCallerID(ctx), *req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, zone)
}

func (h *Handler) HandleUpdateSafeZone(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	profileID, err := profileIDParam(r)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid profile id"))
		return
	}
	zoneID, err := id.ParseZoneID(chi.URLParam(r, "zoneID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid zone id"))
		return
	}
	req, ok := httputil.DecodeJSON[models.SafeZone](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	zone := *req
	zone.ID = zoneID
	if err := h.service.UpdateSafeZone(ctx, profileID, auth.GetCallerID(ctx), zone); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, zone)
}

func (h *Handler) HandleRemoveSafeZone(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profileID, err := profileIDParam(r)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid profile id"))
		return
	}
	zoneID, err := id.ParseZoneID(chi.URLParam(r, "zoneID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid zone id"))
		return
	}
	if err := h.service.RemoveSafeZone(ctx, profileID, auth.GetCallerID(ctx), zoneID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleAddPickup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	profileID, err := profileIDParam(r)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid profile id"))
		return
	}
	req, ok := httputil.DecodeJSON[models.PickupPerson](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	person, err := h.service.AddPickupPerson(ctx, profileID, auth.GetCallerID(ctx), *req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, person)
}

func (h *Handler) HandleRemovePickup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profileID, err := profileIDParam(r)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid profile id"))
		return
	}
	pickupID, err := id.ParsePickupID(chi.URLParam(r, "pickupID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid pickup id"))
		return
	}
	if err := h.service.RemovePickupPerson(ctx, profileID, auth.GetCallerID(ctx), pickupID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
