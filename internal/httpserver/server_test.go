package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/tidy/internal/auth"
	"github.com/MrSnakeDoc/tidy/internal/connect"
	"github.com/MrSnakeDoc/tidy/internal/database"
	"github.com/MrSnakeDoc/tidy/internal/domain"
	"github.com/MrSnakeDoc/tidy/internal/gateway"
	"github.com/MrSnakeDoc/tidy/internal/httpserver/deps"
	"github.com/MrSnakeDoc/tidy/internal/logger"
	"github.com/MrSnakeDoc/tidy/internal/refresh"
	"github.com/MrSnakeDoc/tidy/internal/store/sqlstore"
)

type runnerFunc func(ctx context.Context) (*refresh.Report, error)

func (f runnerFunc) Run(ctx context.Context) (*refresh.Report, error) { return f(ctx) }

type fakeLookup struct {
	info *gateway.RepositoryInfo
	err  error
}

func (f fakeLookup) LookupRepository(context.Context, domain.RepositoryRef) (*gateway.RepositoryInfo, error) {
	return f.info, f.err
}

type fakeHistory struct{ reports []*refresh.Report }

func (f fakeHistory) LastRefreshReport(context.Context) (*refresh.Report, error) {
	if len(f.reports) == 0 {
		return nil, nil
	}
	return f.reports[0], nil
}

func (f fakeHistory) RefreshHistory(_ context.Context, limit int) ([]*refresh.Report, error) {
	if limit > len(f.reports) {
		limit = len(f.reports)
	}
	return f.reports[:limit], nil
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type failingCandidates struct{}

func (failingCandidates) ListByURLPrefix(context.Context, string) ([]domain.Favorite, error) {
	return nil, errors.New("dial tcp 10.0.0.5:3306: connect: connection refused")
}

func (failingCandidates) UpdateRating(context.Context, int64, int) (int64, error) {
	return 0, errors.New("unreachable")
}

type testEnv struct {
	router http.Handler
	favs   *sqlstore.FavoriteStore
	token  string
}

func newTestEnv(t *testing.T, mutate func(d *deps.Deps)) *testEnv {
	t.Helper()
	ctx := context.Background()
	log := logger.NewNop()

	db, err := database.Open(database.ConnectOptions{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "tidy.db"),
		Retry: connect.Options{
			ConnectTimeout: 2 * time.Second,
			RetryInterval:  10 * time.Millisecond,
			MaxWait:        50 * time.Millisecond,
			PingTimeout:    time.Second,
		},
	}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlstore.Migrate(ctx, db, sqlstore.DialectSQLite))

	users := sqlstore.NewUserStore(db)
	hash, err := auth.HashPassword("hunter2")
	require.NoError(t, err)
	_, err = users.CreateUser(ctx, "admin", hash, "")
	require.NoError(t, err)

	keys, err := auth.NewKeyStore("v2", "test-secret", nil)
	require.NoError(t, err)
	sessions := auth.NewManager(keys, time.Hour, nil, log)
	favs := sqlstore.NewFavoriteStore(db)

	d := deps.Deps{
		Logger:          log,
		StartTime:       time.Now(),
		Version:         "test",
		RequestTimeout:  5 * time.Second,
		LoginBurst:      100,
		LoginRefillRate: 100,
		Favorites:       favs,
		Auth:            auth.NewAuthenticator(users, sessions),
		Sessions:        sessions,
		Refresher: runnerFunc(func(context.Context) (*refresh.Report, error) {
			return &refresh.Report{Success: true, Message: refresh.MessageNoCandidates}, nil
		}),
		GitHub:   fakeLookup{err: errors.New("unused")},
		Database: favs,
	}
	if mutate != nil {
		mutate(&d)
	}

	env := &testEnv{router: NewRouter(d), favs: favs}
	rec, body := env.do(t, http.MethodPost, "/api/auth/login", `{"username":"admin","password":"hunter2"}`, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	env.token = body["user"].(map[string]any)["token"].(string)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string, authed bool) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	if authed {
		r.Header.Set("Authorization", "Bearer "+e.token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, r)

	out := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, body := env.do(t, http.MethodGet, "/healthz", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	rec, body = env.do(t, http.MethodGet, "/readyz", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ready"])

	down := newTestEnv(t, func(d *deps.Deps) {
		d.Database = pingFunc(func(context.Context) error { return errors.New("db down") })
	})
	rec, body = down.do(t, http.MethodGet, "/readyz", "", false)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, false, body["ready"])
}

func TestFavoritesCRUD(t *testing.T) {
	env := newTestEnv(t, nil)

	// writes need a session
	rec, _ := env.do(t, http.MethodPost, "/api/favorites", `{"project_name":"chi","project_url":"https://github.com/go-chi/chi"}`, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body := env.do(t, http.MethodPost, "/api/favorites", `{"project_name":"chi","project_url":"https://github.com/go-chi/chi","keywords":"router"}`, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := body["data"].(map[string]any)
	assert.Equal(t, "Other", created["category"])
	assert.Equal(t, float64(0), created["rating"])
	assert.Equal(t, false, created["is_public"])
	assert.Equal(t, "chi router", created["search_tokens"])
	id := int64(created["id"].(float64))

	rec, _ = env.do(t, http.MethodPost, "/api/favorites", `{"project_name":"no url"}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = env.do(t, http.MethodPost, "/api/favorites", `{"project_name":"x","project_url":"y","rating":"1; DROP TABLE"}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	path := "/api/favorites/" + itoa(id)

	t.Run("private row hidden from anonymous callers", func(t *testing.T) {
		rec, _ := env.do(t, http.MethodGet, path, "", false)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		rec, _ = env.do(t, http.MethodGet, path, "", true)
		assert.Equal(t, http.StatusOK, rec.Code)

		_, body := env.do(t, http.MethodGet, "/api/favorites", "", false)
		data := body["data"].(map[string]any)
		assert.Empty(t, data["list"])
	})

	t.Run("update", func(t *testing.T) {
		rec, body := env.do(t, http.MethodPut, path, `{"is_public":1,"category":"Web"}`, true)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, true, body["data"].(map[string]any)["is_public"])

		rec, _ = env.do(t, http.MethodPut, "/api/favorites", `{"id":`+itoa(id)+`,"rating":4}`, true)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec, _ = env.do(t, http.MethodPut, path, `{"project_name = 'x' --":"y"}`, true)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		rec, _ = env.do(t, http.MethodPut, path, `{}`, true)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		rec, _ = env.do(t, http.MethodPut, "/api/favorites/9999", `{"rating":1}`, true)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("list and categories", func(t *testing.T) {
		rec, body := env.do(t, http.MethodGet, "/api/favorites?page=1&pageSize=5&search=chi", "", false)
		require.Equal(t, http.StatusOK, rec.Code)
		data := body["data"].(map[string]any)
		assert.Len(t, data["list"], 1)
		assert.Equal(t, map[string]any{"page": float64(1), "pageSize": float64(5), "total": float64(1), "totalPages": float64(1)}, data["pagination"])
		assert.Equal(t, map[string]any{"keyword": "chi", "category": ""}, data["search"])

		for _, q := range []string{"page=0", "pageSize=101", "page=abc"} {
			rec, _ := env.do(t, http.MethodGet, "/api/favorites?"+q, "", false)
			assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		}

		_, body = env.do(t, http.MethodGet, "/api/favorites/categories", "", false)
		assert.Equal(t, []any{"Web"}, body["data"])
		_, body = env.do(t, http.MethodOptions, "/api/favorites", "", false)
		assert.Equal(t, []any{"Web"}, body["data"])
	})

	t.Run("delete", func(t *testing.T) {
		rec, _ := env.do(t, http.MethodDelete, "/api/favorites?id="+itoa(id), "", true)
		assert.Equal(t, http.StatusOK, rec.Code)
		rec, _ = env.do(t, http.MethodDelete, path, "", true)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		rec, _ = env.do(t, http.MethodDelete, "/api/favorites/abc", "", true)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t, nil)

	rec, _ := env.do(t, http.MethodPost, "/api/auth/login", `{"username":"admin"}`, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = env.do(t, http.MethodPost, "/api/auth/login", `{"username":"admin","password":"nope"}`, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, _ = env.do(t, http.MethodPost, "/api/auth/login", `{"username":"ghost","password":"nope"}`, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = env.do(t, http.MethodPost, "/api/auth/login", `{"username":"admin","password":"hunter2"}`, false)
	require.Equal(t, http.StatusOK, rec.Code)
	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, 3600, cookie.MaxAge)

	rec, _ = env.do(t, http.MethodGet, "/api/auth/check", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, body := env.do(t, http.MethodGet, "/api/auth/check", "", true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", body["user"].(map[string]any)["username"])

	rec, _ = env.do(t, http.MethodPost, "/api/auth/logout", "", true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "Max-Age=0")
}

func TestRefreshStarsTrigger(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		env := newTestEnv(t, nil)
		rec, body := env.do(t, http.MethodGet, "/api/cron/refresh-stars", "", false)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, refresh.MessageNoCandidates, body["message"])
		assert.Equal(t, "no-store, no-cache, must-revalidate, proxy-revalidate", rec.Header().Get("Cache-Control"))
		assert.Equal(t, "no-cache", rec.Header().Get("Pragma"))
		assert.Equal(t, "0", rec.Header().Get("Expires"))
	})

	t.Run("candidate read failure is a 500 with the original message", func(t *testing.T) {
		env := newTestEnv(t, func(d *deps.Deps) {
			d.Refresher = refresh.New(failingCandidates{}, nil, nil, refresh.Options{
				Schedule: refresh.Schedule{Any: true},
			}, d.Logger)
		})
		rec, body := env.do(t, http.MethodGet, "/api/cron/refresh-stars", "", false)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "internal server error", body["message"])
		assert.Equal(t, "dial tcp 10.0.0.5:3306: connect: connection refused", body["error"])
	})

	t.Run("detached from request cancellation", func(t *testing.T) {
		var cancelled bool
		env := newTestEnv(t, func(d *deps.Deps) {
			d.Refresher = runnerFunc(func(ctx context.Context) (*refresh.Report, error) {
				cancelled = ctx.Err() != nil
				return &refresh.Report{Success: true, Message: "ok"}, nil
			})
		})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		r := httptest.NewRequest(http.MethodGet, "/api/cron/refresh-stars", nil).WithContext(ctx)
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, cancelled)
	})

	t.Run("shared secret", func(t *testing.T) {
		env := newTestEnv(t, func(d *deps.Deps) { d.CronSecret = "s3cret" })
		rec, _ := env.do(t, http.MethodGet, "/api/cron/refresh-stars", "", false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		r := httptest.NewRequest(http.MethodGet, "/api/cron/refresh-stars", nil)
		r.Header.Set("Authorization", "Bearer s3cret")
		rec = httptest.NewRecorder()
		env.router.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestLastRefresh(t *testing.T) {
	env := newTestEnv(t, nil)
	rec, _ := env.do(t, http.MethodGet, "/api/cron/last-refresh", "", true)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	env = newTestEnv(t, func(d *deps.Deps) {
		d.Reports = fakeHistory{reports: []*refresh.Report{
			{Success: true, Message: "rating refresh complete, updated 3 projects", Updated: 3},
			{Success: true, Message: "older"},
		}}
	})
	rec, _ = env.do(t, http.MethodGet, "/api/cron/last-refresh", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body := env.do(t, http.MethodGet, "/api/cron/last-refresh?limit=2", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["data"], 2)

	rec, body = env.do(t, http.MethodGet, "/api/cron/last-refresh", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	latest, ok := body["data"].([]any)
	require.True(t, ok)
	require.Len(t, latest, 1)
	assert.Equal(t, "rating refresh complete, updated 3 projects", latest[0].(map[string]any)["message"])

	env = newTestEnv(t, func(d *deps.Deps) { d.Reports = fakeHistory{} })
	rec, body = env.do(t, http.MethodGet, "/api/cron/last-refresh", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, body["data"])

	rec, _ = env.do(t, http.MethodGet, "/api/cron/last-refresh?limit=99", "", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRepoLookup(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		lookup fakeLookup
		want   int
	}{
		{name: "found", url: "https://github.com/go-chi/chi", lookup: fakeLookup{info: &gateway.RepositoryInfo{FullName: "go-chi/chi", Stars: 1}}, want: http.StatusOK},
		{name: "not a repository url", url: "https://example.com", want: http.StatusBadRequest},
		{name: "missing repository", url: "https://github.com/gone/missing", lookup: fakeLookup{err: gateway.ErrRepositoryNotFound}, want: http.StatusNotFound},
		{name: "upstream failure", url: "https://github.com/go-chi/chi", lookup: fakeLookup{err: errors.New("rate limited")}, want: http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, func(d *deps.Deps) { d.GitHub = tt.lookup })
			rec, _ := env.do(t, http.MethodGet, "/api/github/repo?url="+tt.url, "", true)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, nil)
	rec, body := env.do(t, http.MethodGet, "/api/nope", "", false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, body["success"])
}

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
