package redis

import (
	"context"
	"testing"
	"time"

	"github.com/MrSnakeDoc/tidy/internal/refresh"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client), mr
}

func TestSaveRefreshReport_HistoryIsCappedNewestFirst(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 25; i++ {
		require.NoError(t, s.SaveRefreshReport(ctx, &refresh.Report{Success: true, Updated: i}))
	}

	raw, err := mr.List(KeyRefreshHistory)
	require.NoError(t, err)
	assert.Len(t, raw, RefreshHistorySize)

	history, err := s.RefreshHistory(ctx, RefreshHistorySize)
	require.NoError(t, err)
	require.Len(t, history, RefreshHistorySize)
	assert.Equal(t, 25, history[0].Updated)
	assert.Equal(t, 6, history[RefreshHistorySize-1].Updated)

	last, err := s.LastRefreshReport(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, 25, last.Updated)
}

func TestRefreshHistory_Limit(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		require.NoError(t, s.SaveRefreshReport(ctx, &refresh.Report{Updated: i}))
	}

	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{name: "within history", limit: 2, want: 2},
		{name: "zero means all", limit: 0, want: 3},
		{name: "above cap is clamped", limit: 500, want: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.RefreshHistory(ctx, tt.limit)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
			assert.Equal(t, 3, got[0].Updated)
		})
	}
}

func TestRefreshHistory_SkipsUndecodableEntries(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveRefreshReport(ctx, &refresh.Report{Updated: 1}))
	_, err := mr.Lpush(KeyRefreshHistory, "{not json")
	require.NoError(t, err)

	got, err := s.RefreshHistory(ctx, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Updated)
}

func TestLastRefreshReport_Empty(t *testing.T) {
	s, _ := newTestStore(t)

	rep, err := s.LastRefreshReport(context.Background())
	require.NoError(t, err)
	assert.Nil(t, rep)

	history, err := s.RefreshHistory(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRevokeSession_ExpiresWithToken(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RevokeSession(ctx, "jti-1", time.Minute))
	assert.Equal(t, time.Minute, mr.TTL(RevokedSessionKey("jti-1")))

	revoked, err := s.IsSessionRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	mr.FastForward(time.Minute + time.Second)
	revoked, err = s.IsSessionRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRevokeSession_ExpiredTokenIsNotStored(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RevokeSession(ctx, "jti-2", 0))
	require.NoError(t, s.RevokeSession(ctx, "jti-3", -time.Second))
	assert.False(t, mr.Exists(RevokedSessionKey("jti-2")))
	assert.False(t, mr.Exists(RevokedSessionKey("jti-3")))
}

func TestStore_ServerErrors(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	mr.SetError("ERR server misbehaving")

	_, err := s.IsSessionRevoked(ctx, "jti")
	assert.Error(t, err)
	assert.Error(t, s.SaveRefreshReport(ctx, &refresh.Report{}))
	assert.Error(t, s.Ping(ctx))

	_, err = s.LastRefreshReport(ctx)
	assert.Error(t, err)
}
