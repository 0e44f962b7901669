package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/tidy/internal/httpserver/deps"
	"github.com/MrSnakeDoc/tidy/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/tidy/internal/httpserver/mw"
)

func init() { Register("cron", registerCron) }

// The trigger sits outside the login gate; the allow-list and shared secret
// guard it instead. No request timeout: a cycle may outlive it.
func registerCron(r chi.Router, d deps.Deps) {
	r.Route("/api/cron", func(r chi.Router) {
		r.With(
			mw.AllowOnlyCIDRS(d.CronAllowedCIDRS, d.TrustProxy, d.Logger),
			mw.CronSecret(d.CronSecret, d.TrustProxy, d.Logger),
		).Get("/refresh-stars", handlers.RefreshStars(d))

		r.With(
			mw.EnforceHost(d.AllowedHosts, d.Logger),
			mw.Session(d.Sessions, d.Logger),
			mw.RequireAuth,
		).Get("/last-refresh", handlers.LastRefresh(d))
	})
}
