package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/tidy/internal/refresh"
	"github.com/redis/go-redis/v9"
)

// RefreshHistorySize caps the number of reports kept in the history list
const RefreshHistorySize = 20

// SaveRefreshReport stores a report as the latest one and pushes it onto
// the capped history list
func (s *Store) SaveRefreshReport(ctx context.Context, rep *refresh.Report) error {
	data, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("failed to marshal refresh report: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, KeyLastRefresh, data, 0)
	pipe.LPush(ctx, KeyRefreshHistory, data)
	pipe.LTrim(ctx, KeyRefreshHistory, 0, RefreshHistorySize-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save refresh report: %w", err)
	}
	return nil
}

// LastRefreshReport returns the latest report, or nil when none was saved
func (s *Store) LastRefreshReport(ctx context.Context) (*refresh.Report, error) {
	data, err := s.client.Get(ctx, KeyLastRefresh).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last refresh report: %w", err)
	}

	var rep refresh.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("failed to unmarshal refresh report: %w", err)
	}
	return &rep, nil
}

// RefreshHistory returns up to limit reports, newest first
func (s *Store) RefreshHistory(ctx context.Context, limit int) ([]*refresh.Report, error) {
	if limit <= 0 || limit > RefreshHistorySize {
		limit = RefreshHistorySize
	}
	raw, err := s.client.LRange(ctx, KeyRefreshHistory, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get refresh history: %w", err)
	}

	reports := make([]*refresh.Report, 0, len(raw))
	for _, item := range raw {
		var rep refresh.Report
		if err := json.Unmarshal([]byte(item), &rep); err != nil {
			// Skip entries that couldn't be decoded
			continue
		}
		reports = append(reports, &rep)
	}
	return reports, nil
}
