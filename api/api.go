// Package api exposes a vault over a local JSON HTTP interface. One session
// cookie carries the single unlocked session; every other surface of the
// vault (records, TOTP, breach audits) hangs off it.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jmcleod/lockbox/breach"
	"github.com/jmcleod/lockbox/vault"
)

// DefaultIdleTimeout locks a session nobody has touched for this long.
const DefaultIdleTimeout = 5 * time.Minute

// API holds the dependencies needed by the REST handlers.
type API struct {
	vault       *vault.Vault
	breach      *breach.Client
	sessions    *sessionStore
	recoveries  *recoveryStore
	rateLimiter *loginRateLimiter
	auditLimit  int
}

// Option configures the API instance.
type Option func(*API)

// WithIdleTimeout sets how long an untouched session stays unlocked. Zero
// disables the idle lock.
func WithIdleTimeout(d time.Duration) Option {
	return func(a *API) {
		a.sessions.idleTimeout = d
	}
}

// WithBreachClient sets the client used by the breach endpoints. Without one
// those endpoints report 503.
func WithBreachClient(c *breach.Client) Option {
	return func(a *API) {
		a.breach = c
	}
}

// WithAuditLimit caps how many records one breach audit will check. Larger
// vaults are refused rather than partially audited.
func WithAuditLimit(n int) Option {
	return func(a *API) {
		a.auditLimit = n
	}
}

// New creates a new API instance.
func New(v *vault.Vault, opts ...Option) *API {
	a := &API{
		vault:       v,
		sessions:    newSessionStore(DefaultIdleTimeout),
		recoveries:  newRecoveryStore(),
		rateLimiter: newLoginRateLimiter(),
		auditLimit:  maxAuditEntries,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(a.CSRFMiddleware)

	r.Get("/state", a.GetState)
	r.Post("/unlock", a.Unlock)
	r.Post("/lock", a.Lock)
	r.Post("/recovery", a.BeginRecovery)
	r.Post("/recovery/reset", a.CompleteRecovery)
	r.Get("/generate", a.Generate)

	r.Group(func(r chi.Router) {
		r.Use(a.SessionMiddleware)
		r.Get("/recovery-key", a.GetRecoveryKey)
		r.Post("/recovery/confirm", a.ConfirmRecovery)
		r.Post("/passphrase", a.ChangePassphrase)
		r.Post("/orphaned/reclaim", a.ReclaimOrphaned)
		r.Post("/reset", a.ResetVault)

		r.Get("/records", a.ListRecords)
		r.Post("/records", a.AddRecord)
		r.Route("/records/{id}", func(r chi.Router) {
			r.Get("/", a.GetRecord)
			r.Put("/", a.UpdateRecord)
			r.Delete("/", a.DeleteRecord)
			r.Get("/totp", a.GetTOTPCode)
			r.Post("/totp", a.AttachTOTP)
		})

		r.Post("/totp/secret", a.NewTOTPSecret)
		r.Post("/breach/check", a.CheckBreach)
		r.Post("/breach/audit", a.AuditBreaches)
	})

	return r
}

// StartJanitor locks idle sessions and drops stale rate-limit and recovery
// state every interval until ctx is done. Sessions still open when ctx ends
// are locked.
func (a *API) StartJanitor(ctx context.Context, every time.Duration) {
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				a.sessions.lockAll()
				return
			case <-t.C:
				if n := a.sessions.sweep(); n > 0 {
					slog.Info("idle sessions locked", slog.Int("count", n))
				}
				a.rateLimiter.sweep()
				a.recoveries.sweep()
			}
		}
	}()
}

// Shutdown locks every open session.
func (a *API) Shutdown() {
	a.sessions.lockAll()
}

func (a *API) breachAvailable(w http.ResponseWriter) bool {
	if a.breach == nil {
		writeError(w, http.StatusServiceUnavailable, "breach checking is not configured")
		return false
	}
	return true
}
