package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/tidy/internal/httpserver/deps"
	"github.com/MrSnakeDoc/tidy/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/tidy/internal/httpserver/mw"
)

func init() { Register("auth", registerAuth) }

func registerAuth(r chi.Router, d deps.Deps) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Use(mw.EnforceHost(d.AllowedHosts, d.Logger))
		r.Use(mw.Session(d.Sessions, d.Logger))

		r.With(mw.RateLimit(mw.RateLimitConfig{
			Burst:             d.LoginBurst,
			RefillPerIPPerMin: d.LoginRefillRate,
			MaxEntries:        10000,
			TrustProxy:        d.TrustProxy,
		})).Post("/login", handlers.Login(d))
		r.Get("/check", handlers.Check(d))
		r.Post("/logout", handlers.Logout(d))
	})
}
