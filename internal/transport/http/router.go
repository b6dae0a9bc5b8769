// Package httptransport assembles the chi router from the per-domain
// handlers. Transport concerns only; business logic stays in the services.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	braceleth "guardtag/internal/bracelet/handler"
	"guardtag/internal/platform/health"
	pinaccessh "guardtag/internal/pinaccess/handler"
	profileh "guardtag/internal/profile/handler"
	scanh "guardtag/internal/scan/handler"
	"guardtag/internal/seeder"
	"guardtag/pkg/platform/middleware/auth"
	"guardtag/pkg/platform/middleware/request"
	"guardtag/pkg/platform/middleware/requesttime"
)

// Handlers groups the domain handlers the router mounts.
type Handlers struct {
	Bracelet  *braceleth.Handler
	Profile   *profileh.Handler
	PinAccess *pinaccessh.Handler
	Scan      *scanh.Handler
	Seeder    *seeder.Handler
	Health    *health.Handler
}

// NewRouter wires all endpoints with the shared middleware stack. An empty
// adminToken leaves the admin surface unmounted.
func NewRouter(h Handlers, adminToken string, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(request.Recovery(logger))
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(chimw.RealIP)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(auth.CallerID)

	h.Health.Register(r)
	r.Handle("/metrics", promhttp.Handler())

	h.Bracelet.Register(r)
	h.Profile.Register(r)
	h.PinAccess.Register(r)
	h.Scan.Register(r)

	if adminToken != "" {
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin(adminToken))
			h.Bracelet.RegisterAdmin(r)
			h.Seeder.RegisterAdmin(r)
		})
	}

	return r
}
