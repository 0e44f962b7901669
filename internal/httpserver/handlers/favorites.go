package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/tidy/internal/auth"
	"github.com/MrSnakeDoc/tidy/internal/domain"
	"github.com/MrSnakeDoc/tidy/internal/httpserver/deps"
	"github.com/MrSnakeDoc/tidy/internal/httpserver/respond"
	"github.com/MrSnakeDoc/tidy/internal/logger"
	"github.com/MrSnakeDoc/tidy/internal/store/sqlstore"
)

const maxBodyBytes = 1 << 20

// readOnlyFields may be echoed back by clients but are never written.
var readOnlyFields = []string{"id", "search_tokens", "created_at", "updated_at"}

type pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type searchEcho struct {
	Keyword  string `json:"keyword"`
	Category string `json:"category"`
}

type listResponse struct {
	List       []domain.Favorite `json:"list"`
	Pagination pagination        `json:"pagination"`
	Search     searchEcho        `json:"search"`
}

// ListFavorites serves one page of favorites. Anonymous callers only see
// public rows.
func ListFavorites(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page, err1 := intParam(q.Get("page"), 1)
		size, err2 := intParam(q.Get("pageSize"), domain.DefaultPageSize)
		if err1 != nil || err2 != nil {
			respond.Fail(w, http.StatusBadRequest, domain.ErrInvalidPage.Error(), "")
			return
		}

		filter := domain.Filter{
			Page:           page,
			PageSize:       size,
			Search:         strings.TrimSpace(q.Get("search")),
			Category:       strings.TrimSpace(q.Get("category")),
			IncludePrivate: auth.Authenticated(r.Context()),
		}
		if err := filter.Validate(); err != nil {
			respond.Fail(w, http.StatusBadRequest, err.Error(), "")
			return
		}

		list, total, err := d.Favorites.List(r.Context(), filter)
		if err != nil {
			internalError(w, d, "failed to list favorites", err)
			return
		}
		if list == nil {
			list = []domain.Favorite{}
		}

		respond.OK(w, http.StatusOK, "", listResponse{
			List: list,
			Pagination: pagination{
				Page:       page,
				PageSize:   size,
				Total:      total,
				TotalPages: domain.TotalPages(total, size),
			},
			Search: searchEcho{Keyword: filter.Search, Category: filter.Category},
		})
	}
}

// Categories lists the distinct categories visible to the caller.
func Categories(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cats, err := d.Favorites.Categories(r.Context(), auth.Authenticated(r.Context()))
		if err != nil {
			internalError(w, d, "failed to list categories", err)
			return
		}
		if cats == nil {
			cats = []string{}
		}
		respond.OK(w, http.StatusOK, "", cats)
	}
}

// GetFavorite serves one favorite. Private rows look missing to anonymous callers.
func GetFavorite(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		f, err := d.Favorites.Get(r.Context(), id)
		switch {
		case errors.Is(err, sqlstore.ErrNotFound):
			respond.Fail(w, http.StatusNotFound, "favorite not found", "")
			return
		case err != nil:
			internalError(w, d, "failed to load favorite", err)
			return
		}
		if !f.IsPublic && !auth.Authenticated(r.Context()) {
			respond.Fail(w, http.StatusNotFound, "favorite not found", "")
			return
		}
		respond.OK(w, http.StatusOK, "", f)
	}
}

// CreateFavorite stores a new favorite from a JSON body.
func CreateFavorite(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := decodeObject(w, r)
		if !ok {
			return
		}
		patch, err := domain.NewPatch(raw, readOnlyFields...)
		if errors.Is(err, domain.ErrEmptyPatch) {
			err = domain.ErrMissingRequired
		}
		if err != nil {
			badPatch(w, err)
			return
		}

		var f domain.Favorite
		patch.Apply(&f)
		created, err := d.Favorites.Create(r.Context(), f)
		switch {
		case errors.Is(err, domain.ErrMissingRequired):
			respond.Fail(w, http.StatusBadRequest, err.Error(), "")
			return
		case err != nil:
			internalError(w, d, "failed to create favorite", err)
			return
		}

		d.Logger.Info("favorite created",
			logger.Int64("id", created.ID),
			logger.String("user", username(r)))
		respond.OK(w, http.StatusCreated, "favorite created", created)
	}
}

// UpdateFavorite applies a partial update. The id comes from the path, the
// query string or the body, in that order.
func UpdateFavorite(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := decodeObject(w, r)
		if !ok {
			return
		}
		id, ok := resolveID(r, raw)
		if !ok {
			respond.Fail(w, http.StatusBadRequest, "invalid favorite id", "")
			return
		}
		patch, err := domain.NewPatch(raw, readOnlyFields...)
		if err != nil {
			badPatch(w, err)
			return
		}

		updated, err := d.Favorites.Update(r.Context(), id, patch)
		switch {
		case errors.Is(err, sqlstore.ErrNotFound):
			respond.Fail(w, http.StatusNotFound, "favorite not found", "")
			return
		case err != nil:
			internalError(w, d, "failed to update favorite", err)
			return
		}

		d.Logger.Info("favorite updated",
			logger.Int64("id", id),
			logger.Int("fields", len(patch)),
			logger.String("user", username(r)))
		respond.OK(w, http.StatusOK, "favorite updated", updated)
	}
}

// DeleteFavorite removes a favorite by path or query id.
func DeleteFavorite(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := resolveID(r, nil)
		if !ok {
			respond.Fail(w, http.StatusBadRequest, "invalid favorite id", "")
			return
		}
		err := d.Favorites.Delete(r.Context(), id)
		switch {
		case errors.Is(err, sqlstore.ErrNotFound):
			respond.Fail(w, http.StatusNotFound, "favorite not found", "")
			return
		case err != nil:
			internalError(w, d, "failed to delete favorite", err)
			return
		}

		d.Logger.Info("favorite deleted",
			logger.Int64("id", id),
			logger.String("user", username(r)))
		respond.OK(w, http.StatusOK, "favorite deleted", nil)
	}
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil && id > 0
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		respond.Fail(w, http.StatusBadRequest, "invalid favorite id", "")
	}
	return id, ok
}

func resolveID(r *http.Request, body map[string]any) (int64, bool) {
	if s := chi.URLParam(r, "id"); s != "" {
		return parseID(s)
	}
	if s := r.URL.Query().Get("id"); s != "" {
		return parseID(s)
	}
	switch v := body["id"].(type) {
	case float64:
		return int64(v), v > 0 && v == float64(int64(v))
	case string:
		return parseID(v)
	}
	return 0, false
}

func decodeObject(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var raw map[string]any
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&raw); err != nil || raw == nil {
		respond.Fail(w, http.StatusBadRequest, "request body must be a JSON object", "")
		return nil, false
	}
	return raw, true
}

func badPatch(w http.ResponseWriter, err error) {
	respond.Fail(w, http.StatusBadRequest, err.Error(), "")
}

func internalError(w http.ResponseWriter, d deps.Deps, what string, err error) {
	d.Logger.Error(what, logger.Error(err))
	respond.Fail(w, http.StatusInternalServerError, "internal server error", "")
}

func username(r *http.Request) string {
	if c := auth.ClaimsFrom(r.Context()); c != nil {
		return c.Username
	}
	return ""
}
