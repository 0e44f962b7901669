package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/tidy/internal/httpserver/deps"
	"github.com/MrSnakeDoc/tidy/internal/httpserver/respond"
	"github.com/MrSnakeDoc/tidy/internal/logger"
)

const readyzPingTimeout = 2 * time.Second

type componentStatus struct {
	OK      bool   `json:"ok"`
	Enabled bool   `json:"enabled"`
	Error   string `json:"error,omitempty"`
}

type readyzResponse struct {
	Ready      bool                       `json:"ready"`
	Components map[string]componentStatus `json:"components"`
}

// Readyz pings the database and, when configured, Redis. Only the database
// decides readiness; Redis down means degraded sessions and report history.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		db := check(r.Context(), d.Database)
		components := map[string]componentStatus{
			"database": db,
			"redis":    check(r.Context(), d.RedisCheck),
		}

		status := http.StatusOK
		if !db.OK {
			status = http.StatusServiceUnavailable
			d.Logger.Warn("readiness check failed", logger.String("database", db.Error))
		}

		w.Header().Set("Cache-Control", "no-store")
		respond.JSON(w, status, readyzResponse{Ready: db.OK, Components: components})
	}
}

func check(ctx context.Context, p deps.Pinger) componentStatus {
	if p == nil {
		return componentStatus{OK: false, Enabled: false}
	}
	ctx, cancel := context.WithTimeout(ctx, readyzPingTimeout)
	defer cancel()

	if err := p.Ping(ctx); err != nil {
		return componentStatus{OK: false, Enabled: true, Error: err.Error()}
	}
	return componentStatus{OK: true, Enabled: true}
}
