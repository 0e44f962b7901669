// Package refresh copies GitHub stargazer counts into the rating column of
// bookmarked repositories.
package refresh

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/MrSnakeDoc/tidy/internal/domain"
	"github.com/MrSnakeDoc/tidy/internal/gateway"
	"github.com/MrSnakeDoc/tidy/internal/logger"
	"golang.org/x/sync/errgroup"
)

const (
	MessageNoCandidates = "no GitHub projects found"

	DefaultWriteConcurrency = 10
)

// Store is the slice of the favorites store the refresher needs.
type Store interface {
	ListByURLPrefix(ctx context.Context, prefix string) ([]domain.Favorite, error)
	UpdateRating(ctx context.Context, id int64, value int) (int64, error)
}

// StarFetcher resolves stargazer counts for one batch.
type StarFetcher interface {
	FetchStars(ctx context.Context, batch []domain.Candidate) (*gateway.StarBatch, error)
}

// ReportSink keeps finished reports. Optional.
type ReportSink interface {
	SaveRefreshReport(ctx context.Context, r *Report) error
}

// Options configure a Refresher.
type Options struct {
	Schedule         Schedule
	BatchSize        int // clamped to 1..domain.MaxBatchSize
	WriteConcurrency int // concurrent rating writes inside one batch

	// Now is overridable for tests.
	Now func() time.Time
}

// Refresher runs star refresh cycles. It holds no state between runs and is
// safe to call concurrently; overlapping runs are last-write-wins per row.
type Refresher struct {
	store   Store
	fetcher StarFetcher
	sink    ReportSink
	opts    Options
	logger  logger.Logger
}

// New creates a Refresher. sink may be nil.
func New(store Store, fetcher StarFetcher, sink ReportSink, opts Options, log logger.Logger) *Refresher {
	if opts.BatchSize <= 0 || opts.BatchSize > domain.MaxBatchSize {
		opts.BatchSize = domain.MaxBatchSize
	}
	if opts.WriteConcurrency <= 0 {
		opts.WriteConcurrency = DefaultWriteConcurrency
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Schedule.Location == nil {
		opts.Schedule.Location = time.UTC
	}
	return &Refresher{
		store:   store,
		fetcher: fetcher,
		sink:    sink,
		opts:    opts,
		logger:  log.With(logger.Component("refresh")),
	}
}

// Run performs a cycle if today is the scheduled day, otherwise returns a
// successful skip report without touching the store or GitHub.
func (r *Refresher) Run(ctx context.Context) (*Report, error) {
	now := r.opts.Now()
	if !r.opts.Schedule.Due(now) {
		day := now.In(r.opts.Schedule.Location).Weekday()
		r.logger.Debug("star refresh skipped", logger.String("today", day.String()))
		return &Report{
			Success:    true,
			Skipped:    true,
			Message:    fmt.Sprintf("not a scheduled run day (%s, runs on %s), skipping", day, r.opts.Schedule),
			StartedAt:  now,
			FinishedAt: now,
		}, nil
	}
	return r.run(ctx, false)
}

// RunNow performs a cycle regardless of the weekday.
func (r *Refresher) RunNow(ctx context.Context) (*Report, error) {
	return r.run(ctx, true)
}

func (r *Refresher) run(ctx context.Context, forced bool) (*Report, error) {
	rep := &Report{StartedAt: r.opts.Now(), Forced: forced}
	defer r.persist(ctx, rep)

	favs, err := r.store.ListByURLPrefix(ctx, domain.GitHubURLPrefix)
	if err != nil {
		rep.Message = "failed to load candidates"
		rep.Errors = []string{err.Error()}
		rep.FinishedAt = r.opts.Now()
		r.logger.Error("star refresh aborted: cannot load candidates", logger.Error(err))
		return rep, fmt.Errorf("failed to load refresh candidates: %w", err)
	}

	cands := domain.Candidates(favs)
	rep.Candidates = len(cands)
	rep.Success = true

	if len(cands) == 0 {
		rep.Message = MessageNoCandidates
		rep.FinishedAt = r.opts.Now()
		r.logger.Info(MessageNoCandidates, logger.Int("rows", len(favs)))
		return rep, nil
	}

	batches := domain.Chunk(cands, r.opts.BatchSize)
	rep.Batches = len(batches)
	r.logger.Info("star refresh started",
		logger.Int("candidates", len(cands)),
		logger.Int("batches", len(batches)),
		logger.Bool("forced", forced))

	for i, batch := range batches {
		r.processBatch(ctx, rep, i+1, len(batches), batch)
	}

	rep.Message = fmt.Sprintf("rating refresh complete, updated %d projects", rep.Updated)
	rep.FinishedAt = r.opts.Now()
	r.logger.Info("star refresh finished",
		logger.Int("updated", rep.Updated),
		logger.Int("failed_batches", rep.FailedBatches),
		logger.Int("failed_writes", rep.FailedWrites),
		logger.Duration("took", rep.FinishedAt.Sub(rep.StartedAt)))
	return rep, nil
}

func (r *Refresher) processBatch(ctx context.Context, rep *Report, n, total int, batch []domain.Candidate) {
	res, err := r.fetcher.FetchStars(ctx, batch)
	if err != nil {
		rep.FailedBatches++
		rep.Errors = append(rep.Errors, fmt.Sprintf("batch %d/%d: %v", n, total, err))
		r.logger.Error("star batch failed",
			logger.Int("batch", n),
			logger.Int("size", len(batch)),
			logger.Error(err))
		return
	}
	if res.FieldErrors != nil {
		r.logger.Warn("GraphQL partial errors",
			logger.Int("batch", n),
			logger.Error(res.FieldErrors))
	}

	updated, failures := r.writeRatings(ctx, batch, res.Stars)
	rep.Updated += updated
	if len(failures) > 0 {
		rep.FailedWrites += len(failures)
		rep.Errors = append(rep.Errors, fmt.Sprintf("batch %d/%d: %d of %d rating updates failed: %v",
			n, total, len(failures), len(failures)+updated, failures[0]))
	}
}

// writeRatings issues one UPDATE per resolved candidate, bounded by
// WriteConcurrency, and waits for all of them. Failures never cancel siblings.
func (r *Refresher) writeRatings(ctx context.Context, batch []domain.Candidate, stars map[int64]int) (int, []error) {
	var (
		g       errgroup.Group
		updated atomic.Int64
	)
	g.SetLimit(r.opts.WriteConcurrency)

	errs := make([]error, len(batch))
	for i, c := range batch {
		i, c := i, c
		count, ok := stars[c.FavoriteID]
		if !ok {
			continue
		}
		g.Go(func() error {
			if _, err := r.store.UpdateRating(ctx, c.FavoriteID, count); err != nil {
				errs[i] = err
				r.logger.Error("rating update failed",
					logger.Int64("favorite_id", c.FavoriteID),
					logger.String("repo", c.Repo.String()),
					logger.Error(err))
				return nil
			}
			updated.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	failures := make([]error, 0)
	for _, err := range errs {
		if err != nil {
			failures = append(failures, err)
		}
	}
	return int(updated.Load()), failures
}

func (r *Refresher) persist(ctx context.Context, rep *Report) {
	if r.sink == nil {
		return
	}
	if err := r.sink.SaveRefreshReport(ctx, rep); err != nil {
		r.logger.Warn("failed to persist refresh report", logger.Error(err))
	}
}
