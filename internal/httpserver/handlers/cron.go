package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/MrSnakeDoc/tidy/internal/httpserver/deps"
	"github.com/MrSnakeDoc/tidy/internal/httpserver/respond"
	"github.com/MrSnakeDoc/tidy/internal/logger"
	"github.com/MrSnakeDoc/tidy/internal/refresh"
	redisstore "github.com/MrSnakeDoc/tidy/internal/store/redis"
)

type refreshResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Errors  []string        `json:"errors,omitempty"`
	Report  *refresh.Report `json:"report,omitempty"`
}

// RefreshStars runs one weekday-gated star refresh. The cycle is detached
// from the request, so a client hanging up does not abort it.
func RefreshStars(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respond.NoCache(w)

		rep, err := d.Refresher.Run(context.WithoutCancel(r.Context()))
		if err != nil {
			detail := err.Error()
			if rep != nil && len(rep.Errors) > 0 {
				detail = rep.Errors[0]
			}
			d.Logger.Error("star refresh failed", logger.Error(err))
			respond.Fail(w, http.StatusInternalServerError, "internal server error", detail)
			return
		}

		respond.JSON(w, http.StatusOK, refreshResponse{
			Success: rep.Success,
			Message: rep.Message,
			Errors:  rep.Errors,
			Report:  rep,
		})
	}
}

// LastRefresh returns the most recent persisted refresh reports, newest first.
func LastRefresh(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Reports == nil {
			respond.Fail(w, http.StatusServiceUnavailable, "refresh history requires Redis", "")
			return
		}

		limit := 1
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 || n > redisstore.RefreshHistorySize {
				respond.Fail(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(redisstore.RefreshHistorySize), "")
				return
			}
			limit = n
		}

		reports, err := readReports(r.Context(), d.Reports, limit)
		if err != nil {
			internalError(w, d, "failed to read refresh history", err)
			return
		}
		respond.OK(w, http.StatusOK, "", reports)
	}
}

// readReports serves limit=1 from the latest-report key, which survives a
// trimmed or missing history list.
func readReports(ctx context.Context, h deps.ReportHistory, limit int) ([]*refresh.Report, error) {
	if limit == 1 {
		rep, err := h.LastRefreshReport(ctx)
		if err != nil || rep == nil {
			return []*refresh.Report{}, err
		}
		return []*refresh.Report{rep}, nil
	}
	reports, err := h.RefreshHistory(ctx, limit)
	if reports == nil {
		reports = []*refresh.Report{}
	}
	return reports, err
}
