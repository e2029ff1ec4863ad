// Package api exposes the passport ledger over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"

	"emirates-passport/internal/location"
	"emirates-passport/internal/metrics"
	"emirates-passport/internal/model"
	"emirates-passport/internal/notify"
	"emirates-passport/internal/service"
)

// LedgerReader is the read side of the ledger the API needs.
type LedgerReader interface {
	GetStamps(ctx context.Context, user model.UserKey) (model.StampBook, error)
	GetBalance(ctx context.Context, user model.UserKey) (int64, error)
	GetRedemptions(ctx context.Context, user model.UserKey) (model.Redemptions, error)
	Summary(ctx context.Context, user model.UserKey) (*service.Summary, error)
}

// Redeemer exchanges points for rewards.
type Redeemer interface {
	Rewards() []model.Reward
	RedeemByID(ctx context.Context, user model.UserKey, rewardID int) (service.RedeemResult, error)
}

// Scanner records scanned payloads.
type Scanner interface {
	Scan(ctx context.Context, user model.UserKey, raw string) (service.ScanResult, error)
}

// Profiles reads and writes traveller profiles.
type Profiles interface {
	GetProfile(ctx context.Context, user model.UserKey) (model.Profile, error)
	SaveProfile(ctx context.Context, user model.UserKey, p model.Profile) (service.ProfileResult, error)
}

// HealthChecker reports whether a backing store is reachable.
type HealthChecker func(ctx context.Context) error

// RouterDeps holds everything NewRouter wires together.
type RouterDeps struct {
	Ledger   LedgerReader
	Redeemer Redeemer
	Scanner  Scanner
	Registry *location.Registry

	// Profiles serves the profile routes when set.
	Profiles Profiles
	// Metrics records request counts and latency. Optional.
	Metrics metrics.Recorder
	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer
	// Notifier feeds the per-user event stream when set.
	Notifier *notify.Notifier
	// Health is consulted by /healthz when set.
	Health HealthChecker
}

// NewRouter builds the chi router with all API routes and middleware.
func NewRouter(deps *RouterDeps) http.Handler {
	rec := deps.Metrics
	if rec == nil {
		rec = metrics.Nop{}
	}
	registry := deps.Registry
	if registry == nil {
		registry = location.Default()
	}

	h := &Handler{
		ledger:   deps.Ledger,
		redeemer: deps.Redeemer,
		scanner:  deps.Scanner,
		profiles: deps.Profiles,
		registry: registry,
		notifier: deps.Notifier,
		health:   deps.Health,
		validate: validator.New(),
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(Recoverer)
	r.Use(RequestLog)
	r.Use(Instrument(rec))

	r.Get("/healthz", h.Health)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/rewards", h.ListRewards)
		r.Get("/locations", h.ListLocations)

		r.Route("/passport/{userKey}", func(r chi.Router) {
			r.Use(h.RequireUserKey)

			r.Post("/scans", h.Scan)
			r.Get("/stamps", h.GetStamps)
			r.Get("/points", h.GetPoints)
			r.Get("/summary", h.GetSummary)
			r.Get("/redemptions", h.ListRedemptions)
			r.Post("/redemptions", h.Redeem)
			if h.profiles != nil {
				r.Get("/profile", h.GetProfile)
				r.Put("/profile", h.PutProfile)
			}
			if h.notifier != nil {
				r.Get("/events", h.Events)
			}
		})
	})

	return r
}
