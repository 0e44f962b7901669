package handlers

import (
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/tidy/internal/domain"
	"github.com/MrSnakeDoc/tidy/internal/gateway"
	"github.com/MrSnakeDoc/tidy/internal/httpserver/deps"
	"github.com/MrSnakeDoc/tidy/internal/httpserver/respond"
	"github.com/MrSnakeDoc/tidy/internal/logger"
)

// RepoLookup fetches repository metadata to prefill the favorite form.
func RepoLookup(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref, ok := domain.ParseRepositoryRef(r.URL.Query().Get("url"))
		if !ok {
			respond.Fail(w, http.StatusBadRequest, "url must point to a GitHub repository", "")
			return
		}

		info, err := d.GitHub.LookupRepository(r.Context(), ref)
		switch {
		case errors.Is(err, gateway.ErrRepositoryNotFound):
			respond.Fail(w, http.StatusNotFound, "repository not found", "")
			return
		case err != nil:
			d.Logger.Warn("GitHub lookup failed",
				logger.String("repo", ref.String()),
				logger.Error(err))
			respond.Fail(w, http.StatusBadGateway, "GitHub lookup failed", err.Error())
			return
		}
		respond.OK(w, http.StatusOK, "", info)
	}
}
