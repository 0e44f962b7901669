package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/tidy/internal/httpserver/deps"
	"github.com/MrSnakeDoc/tidy/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/tidy/internal/httpserver/mw"
)

func init() { Register("favorites", registerFavorites) }

func registerFavorites(r chi.Router, d deps.Deps) {
	r.Route("/api/favorites", func(r chi.Router) {
		r.Use(mw.EnforceHost(d.AllowedHosts, d.Logger))
		r.Use(middleware.Timeout(d.RequestTimeout))
		r.Use(mw.Session(d.Sessions, d.Logger))

		r.Get("/", handlers.ListFavorites(d))
		r.Get("/categories", handlers.Categories(d))
		r.Options("/", handlers.Categories(d))
		r.Get("/{id}", handlers.GetFavorite(d))

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireAuth)
			r.Post("/", handlers.CreateFavorite(d))
			r.Put("/", handlers.UpdateFavorite(d))
			r.Put("/{id}", handlers.UpdateFavorite(d))
			r.Delete("/", handlers.DeleteFavorite(d))
			r.Delete("/{id}", handlers.DeleteFavorite(d))
		})
	})
}
