package refresh

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/MrSnakeDoc/tidy/internal/domain"
	"github.com/MrSnakeDoc/tidy/internal/gateway"
	"github.com/MrSnakeDoc/tidy/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2026-03-06 is a Friday.
var (
	friday   = time.Date(2026, 3, 6, 9, 0, 0, 0, time.UTC)
	thursday = friday.AddDate(0, 0, -1)
)

type fakeStore struct {
	mu         sync.Mutex
	favs       []domain.Favorite
	ratings    map[int64]int
	listErr    error
	failWrite  map[int64]error
	listCalls  int
	writeCalls int
}

func newFakeStore(favs ...domain.Favorite) *fakeStore {
	s := &fakeStore{favs: favs, ratings: map[int64]int{}, failWrite: map[int64]error{}}
	for _, f := range favs {
		s.ratings[f.ID] = f.Rating
	}
	return s
}

func (s *fakeStore) ListByURLPrefix(_ context.Context, prefix string) ([]domain.Favorite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]domain.Favorite, 0, len(s.favs))
	for _, f := range s.favs {
		if len(f.URL) >= len(prefix) && f.URL[:len(prefix)] == prefix {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateRating(_ context.Context, id int64, value int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeCalls++
	if err := s.failWrite[id]; err != nil {
		return 0, err
	}
	s.ratings[id] = value
	return 1, nil
}

// fakeFetcher answers from a table of remote star counts; ids missing from
// the table resolve to null.
type fakeFetcher struct {
	mu      sync.Mutex
	stars   map[int64]int
	failOn  map[int]error // call number (1-based) -> error
	batches [][]domain.Candidate
}

func (f *fakeFetcher) FetchStars(_ context.Context, batch []domain.Candidate) (*gateway.StarBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, batch)
	if err := f.failOn[len(f.batches)]; err != nil {
		return nil, err
	}
	out := &gateway.StarBatch{Stars: map[int64]int{}}
	for _, c := range batch {
		if n, ok := f.stars[c.FavoriteID]; ok {
			out.Stars[c.FavoriteID] = n
		} else {
			out.FieldErrors = errors.New("NOT_FOUND")
		}
	}
	return out, nil
}

type fakeSink struct {
	reports []*Report
	err     error
}

func (s *fakeSink) SaveRefreshReport(_ context.Context, r *Report) error {
	s.reports = append(s.reports, r)
	return s.err
}

func githubFavs(n int) []domain.Favorite {
	favs := make([]domain.Favorite, n)
	for i := range favs {
		id := int64(i + 1)
		favs[i] = domain.Favorite{ID: id, URL: fmt.Sprintf("https://github.com/owner%d/repo%d", id, id), Rating: 3}
	}
	return favs
}

func starsFor(favs []domain.Favorite) map[int64]int {
	out := make(map[int64]int, len(favs))
	for _, f := range favs {
		out[f.ID] = int(f.ID) * 100
	}
	return out
}

func newRefresher(store Store, fetcher StarFetcher, sink ReportSink, now time.Time) *Refresher {
	return New(store, fetcher, sink, Options{
		Schedule: Schedule{Day: time.Friday, Location: time.UTC},
		Now:      func() time.Time { return now },
	}, logger.NewNop())
}

func TestRun_WrongWeekdayHasNoSideEffects(t *testing.T) {
	store := newFakeStore(githubFavs(3)...)
	fetcher := &fakeFetcher{stars: starsFor(store.favs)}
	sink := &fakeSink{}

	rep, err := newRefresher(store, fetcher, sink, thursday).Run(context.Background())

	require.NoError(t, err)
	assert.True(t, rep.Success)
	assert.True(t, rep.Skipped)
	assert.Contains(t, rep.Message, "Thursday")
	assert.Zero(t, store.listCalls)
	assert.Zero(t, store.writeCalls)
	assert.Empty(t, fetcher.batches)
	assert.Empty(t, sink.reports)
}

func TestRun_TimezoneDecidesTheDay(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)

	// Thursday 20:00 UTC is already Friday in Tokyo.
	now := time.Date(2026, 3, 5, 20, 0, 0, 0, time.UTC)
	store := newFakeStore()
	r := New(store, &fakeFetcher{}, nil, Options{
		Schedule: Schedule{Day: time.Friday, Location: tokyo},
		Now:      func() time.Time { return now },
	}, logger.NewNop())

	rep, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, rep.Skipped)
	assert.Equal(t, 1, store.listCalls)
}

func TestRunNow_BypassesWeekday(t *testing.T) {
	store := newFakeStore(githubFavs(2)...)
	fetcher := &fakeFetcher{stars: starsFor(store.favs)}

	rep, err := newRefresher(store, fetcher, nil, thursday).RunNow(context.Background())

	require.NoError(t, err)
	assert.True(t, rep.Forced)
	assert.Equal(t, 2, rep.Updated)
}

func TestRun_NonRepositoryURLsAreNeverBatched(t *testing.T) {
	favs := []domain.Favorite{
		{ID: 1, URL: "https://github.com/go-chi/chi"},
		{ID: 2, URL: "https://github.com/just-an-owner"},
		{ID: 3, URL: "https://example.com/a/b"},
		{ID: 4, URL: "https://github.com/uber-go/zap/"},
	}
	store := newFakeStore(favs...)
	fetcher := &fakeFetcher{stars: map[int64]int{1: 10, 2: 20, 3: 30, 4: 40}}

	rep, err := newRefresher(store, fetcher, nil, friday).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, fetcher.batches, 1)
	ids := make([]int64, 0)
	for _, c := range fetcher.batches[0] {
		ids = append(ids, c.FavoriteID)
	}
	assert.Equal(t, []int64{1, 4}, ids)
	assert.Equal(t, "zap", fetcher.batches[0][1].Repo.Name)
	assert.Equal(t, 2, rep.Candidates)
	assert.Equal(t, 0, store.ratings[2])
	assert.Equal(t, 0, store.ratings[3])
}

func TestRun_BatchSizes(t *testing.T) {
	tests := []struct {
		n     int
		sizes []int
	}{
		{n: 1, sizes: []int{1}},
		{n: 50, sizes: []int{50}},
		{n: 51, sizes: []int{50, 1}},
		{n: 120, sizes: []int{50, 50, 20}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d candidates", tt.n), func(t *testing.T) {
			store := newFakeStore(githubFavs(tt.n)...)
			fetcher := &fakeFetcher{stars: starsFor(store.favs)}

			rep, err := newRefresher(store, fetcher, nil, friday).Run(context.Background())
			require.NoError(t, err)

			got := make([]int, 0, len(fetcher.batches))
			for _, b := range fetcher.batches {
				got = append(got, len(b))
			}
			assert.Equal(t, tt.sizes, got)
			assert.Equal(t, len(tt.sizes), rep.Batches)
			assert.Equal(t, tt.n, rep.Updated)
			assert.Equal(t, tt.n, store.writeCalls)
		})
	}
}

func TestRun_Idempotent(t *testing.T) {
	store := newFakeStore(githubFavs(5)...)
	fetcher := &fakeFetcher{stars: starsFor(store.favs)}
	r := newRefresher(store, fetcher, nil, friday)

	_, err := r.Run(context.Background())
	require.NoError(t, err)
	first := make(map[int64]int, len(store.ratings))
	for k, v := range store.ratings {
		first[k] = v
	}

	_, err = r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, store.ratings)
	assert.Equal(t, 300, store.ratings[3])
}

func TestRun_NotFoundLeavesRatingAndIsNotCounted(t *testing.T) {
	store := newFakeStore(githubFavs(3)...)
	stars := starsFor(store.favs)
	delete(stars, 2)
	fetcher := &fakeFetcher{stars: stars}

	rep, err := newRefresher(store, fetcher, nil, friday).Run(context.Background())

	require.NoError(t, err)
	assert.True(t, rep.Success)
	assert.Equal(t, 2, rep.Updated)
	assert.Empty(t, rep.Errors)
	assert.Equal(t, 3, store.ratings[2])
	assert.Equal(t, 2, store.writeCalls)
}

func TestRun_FailedBatchDoesNotStopOthers(t *testing.T) {
	store := newFakeStore(githubFavs(120)...)
	fetcher := &fakeFetcher{
		stars:  starsFor(store.favs),
		failOn: map[int]error{2: errors.New("dial tcp: connection reset by peer")},
	}

	rep, err := newRefresher(store, fetcher, nil, friday).Run(context.Background())

	require.NoError(t, err)
	assert.True(t, rep.Success)
	require.Len(t, rep.Errors, 1)
	assert.Contains(t, rep.Errors[0], "batch 2/3")
	assert.Contains(t, rep.Errors[0], "connection reset by peer")
	assert.Equal(t, 1, rep.FailedBatches)
	assert.Equal(t, 70, rep.Updated)

	// batch 1 is ids 1..50, batch 2 is 51..100, batch 3 is 101..120
	assert.Equal(t, 100, store.ratings[1])
	assert.Equal(t, 3, store.ratings[75])
	assert.Equal(t, 12000, store.ratings[120])
}

func TestRunNow_GitHubRejectsQuery(t *testing.T) {
	testCases := []struct {
		name          string
		body          string
		wantUpdated   int
		wantFailed    int
		wantErrSubstr string
	}{
		{
			name:          "complexity limit with null data",
			body:          `{"data":null,"errors":[{"message":"Query has complexity of 60000, which exceeds max complexity of 50000"}]}`,
			wantFailed:    1,
			wantErrSubstr: "complexity",
		},
		{
			name:        "unknown repository is a field error",
			body:        `{"data":{"repo_1":{"stargazerCount":42},"repo_2":null},"errors":[{"type":"NOT_FOUND","path":["repo_2"],"message":"Could not resolve"}]}`,
			wantUpdated: 1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, tc.body)
			}))
			t.Cleanup(server.Close)

			gw, err := gateway.NewGitHubGateway("test-token", server.URL, logger.NewNop())
			require.NoError(t, err)
			store := newFakeStore(githubFavs(2)...)

			rep, err := newRefresher(store, gw, nil, thursday).RunNow(context.Background())

			require.NoError(t, err)
			assert.True(t, rep.Success)
			assert.Equal(t, tc.wantUpdated, rep.Updated)
			assert.Equal(t, tc.wantFailed, rep.FailedBatches)
			if tc.wantErrSubstr != "" {
				require.Len(t, rep.Errors, 1)
				assert.Contains(t, rep.Errors[0], "batch 1/1")
				assert.Contains(t, rep.Errors[0], tc.wantErrSubstr)
				assert.Equal(t, 3, store.ratings[1])
			} else {
				assert.Empty(t, rep.Errors)
				assert.Equal(t, 42, store.ratings[1])
				assert.Equal(t, 3, store.ratings[2])
			}
		})
	}
}

func TestRun_WriteFailuresAreIsolated(t *testing.T) {
	store := newFakeStore(githubFavs(10)...)
	store.failWrite[4] = errors.New("deadlock found")
	store.failWrite[7] = errors.New("deadlock found")
	fetcher := &fakeFetcher{stars: starsFor(store.favs)}

	rep, err := newRefresher(store, fetcher, nil, friday).Run(context.Background())

	require.NoError(t, err)
	assert.True(t, rep.Success)
	assert.Equal(t, 8, rep.Updated)
	assert.Equal(t, 2, rep.FailedWrites)
	require.Len(t, rep.Errors, 1)
	assert.Contains(t, rep.Errors[0], "2 of 10 rating updates failed")
	assert.Equal(t, 10, store.writeCalls)
	assert.Equal(t, 500, store.ratings[5])
	assert.Equal(t, 3, store.ratings[4])
}

func TestRun_NoCandidates(t *testing.T) {
	store := newFakeStore(domain.Favorite{ID: 1, URL: "https://example.com"})
	fetcher := &fakeFetcher{}

	rep, err := newRefresher(store, fetcher, nil, friday).Run(context.Background())

	require.NoError(t, err)
	assert.True(t, rep.Success)
	assert.Equal(t, MessageNoCandidates, rep.Message)
	assert.Empty(t, fetcher.batches)
}

func TestRun_CandidateReadFailureIsFatal(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("Too many connections")
	fetcher := &fakeFetcher{}
	sink := &fakeSink{}

	rep, err := newRefresher(store, fetcher, sink, friday).Run(context.Background())

	require.Error(t, err)
	assert.False(t, rep.Success)
	assert.Equal(t, []string{"Too many connections"}, rep.Errors)
	assert.Empty(t, fetcher.batches)
	require.Len(t, sink.reports, 1)
	assert.False(t, sink.reports[0].Success)
}

func TestRun_ReportSinkFailureIsNotFatal(t *testing.T) {
	store := newFakeStore(githubFavs(2)...)
	sink := &fakeSink{err: errors.New("redis down")}

	rep, err := newRefresher(store, &fakeFetcher{stars: starsFor(store.favs)}, sink, friday).Run(context.Background())

	require.NoError(t, err)
	assert.True(t, rep.Success)
	assert.Len(t, sink.reports, 1)
	assert.Contains(t, rep.Summary(), "updated=2")
}

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		weekday string
		tz      string
		want    Schedule
		wantErr bool
	}{
		{weekday: "friday", tz: "UTC", want: Schedule{Day: time.Friday}},
		{weekday: "Mon", tz: "", want: Schedule{Day: time.Monday}},
		{weekday: "any", tz: "UTC", want: Schedule{Any: true}},
		{weekday: "someday", tz: "UTC", wantErr: true},
		{weekday: "friday", tz: "Mars/Olympus", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.weekday+"/"+tt.tz, func(t *testing.T) {
			got, err := ParseSchedule(tt.weekday, tt.tz)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Any, got.Any)
			assert.Equal(t, tt.want.Day, got.Day)
			assert.NotNil(t, got.Location)
		})
	}

	anyDay, err := ParseSchedule("any", "UTC")
	require.NoError(t, err)
	assert.True(t, anyDay.Due(thursday))
}
