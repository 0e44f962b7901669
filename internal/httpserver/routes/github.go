package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/tidy/internal/httpserver/deps"
	"github.com/MrSnakeDoc/tidy/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/tidy/internal/httpserver/mw"
)

func init() {
	Register("github", registerGitHub)
}

func registerGitHub(r chi.Router, d deps.Deps) {
	r.With(
		mw.EnforceHost(d.AllowedHosts, d.Logger),
		mw.Session(d.Sessions, d.Logger),
		mw.RequireAuth,
	).Get("/api/github/repo", handlers.RepoLookup(d))
}
