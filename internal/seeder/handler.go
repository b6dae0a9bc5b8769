package seeder

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	id "guardtag/pkg/domain"
	"guardtag/pkg/platform/httputil"
	"guardtag/pkg/platform/middleware/request"
)

// Handler exposes batch seeding on the admin surface.
type Handler struct {
	seeder *Seeder
	logger *slog.Logger
}

func NewHandler(seeder *Seeder, logger *slog.Logger) *Handler {
	return &Handler{seeder: seeder, logger: logger}
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/batches", h.HandleSeedBatch)
}

type seedRequest struct {
	BatchID string `json:"batch_id"`
	Count   int    `json:"count"`
}

type seedResponse struct {
	BatchID  id.BatchID      `json:"batch_id"`
	Count    int             `json:"count"`
	Manifest []ManifestEntry `json:"manifest"`
}

func (h *Handler) HandleSeedBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeJSON[seedRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	manifest, err := h.seeder.SeedBatch(ctx, id.BatchID(req.BatchID), req.Count)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, seedResponse{
		BatchID:  id.BatchID(req.BatchID),
		Count:    len(manifest),
		Manifest: manifest,
	})
}
