// Package service wires the matching engine together and orchestrates the
// weekly cycle: ingest, bucketize, fan out to workers, fall back, report.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	bucketqueue "github.com/iimb-synergy/synapse/internal/adapters/mq/queue"
	workerpool "github.com/iimb-synergy/synapse/internal/adapters/mq/worker"
	"github.com/iimb-synergy/synapse/internal/adapters/notify"
	"github.com/iimb-synergy/synapse/internal/adapters/repository"
	"github.com/iimb-synergy/synapse/internal/domain/bucket"
	"github.com/iimb-synergy/synapse/internal/domain/ingest"
	"github.com/iimb-synergy/synapse/internal/domain/model"
	"github.com/iimb-synergy/synapse/internal/domain/runguard"
	"github.com/iimb-synergy/synapse/internal/domain/scoring"
	"github.com/iimb-synergy/synapse/pkg/logger"
	"github.com/iimb-synergy/synapse/pkg/metrics"
)

// Defaults applied when options leave fields unset.
const (
	defaultQueueSize     = 1024
	defaultStoreTimeout  = 5 * time.Second
	defaultCycleInterval = 7 * 24 * time.Hour
	defaultCooldown      = 4
)

// Service implements the matching engine's scheduled-job entry point.
type Service struct {
	mu sync.RWMutex

	// Core components.
	store    repository.Store
	scorer   *scoring.Scorer
	notifier notify.Notifier
	ingestor *ingest.Ingestor
	guard    runguard.Guard

	// Configuration.
	workerCount    int
	queueSize      int
	storeTimeout   time.Duration
	cycleInterval  time.Duration
	cooldownCycles int

	// State.
	started    bool
	lastReport *model.CycleReport

	now func() time.Time
	log logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the slot/match store. Defaults to an in-memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithScorer sets the compatibility scorer.
func WithScorer(scorer *scoring.Scorer) Option {
	return func(s *Service) {
		if scorer != nil {
			s.scorer = scorer
		}
	}
}

// WithNotifier sets the match-created hook.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithWorkerCount sets the number of bucket workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize bounds the bucket queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithStoreTimeout bounds every store call made during a cycle.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.storeTimeout = d
		}
	}
}

// WithCycleInterval sets the cycle period used for cooldown arithmetic and
// by the scheduler.
func WithCycleInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.cycleInterval = d
		}
	}
}

// WithCooldownCycles sets how many prior cycles the repeat penalty spans.
func WithCooldownCycles(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.cooldownCycles = n
		}
	}
}

// WithClock overrides the service clock; tests pin it for determinism.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:    runtime.NumCPU(),
		queueSize:      defaultQueueSize,
		storeTimeout:   defaultStoreTimeout,
		cycleInterval:  defaultCycleInterval,
		cooldownCycles: defaultCooldown,
		guard:          runguard.New(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes the remaining components. Idempotent.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.log == nil {
		s.log = logger.Get().Named("service")
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
		s.log.Info(ctx, "using in-memory store")
	}
	if s.scorer == nil {
		s.scorer = scoring.NewScorer()
	}
	if s.notifier == nil {
		s.notifier = notify.NewLogNotifier()
	}
	s.ingestor = ingest.New(s.store, ingest.WithLogger(s.log.Named("ingest")))

	s.started = true
	s.log.Info(ctx, "matching service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("cooldownCycles", s.cooldownCycles),
	)
	return nil
}

// Stop shuts the service down. Running cycles are expected to be cancelled
// through their contexts.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if closer, ok := s.store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	s.started = false
	s.log.Info(context.Background(), "matching service stopped")
}

// Store exposes the backing store to collaborators (seeder, HTTP stats).
func (s *Service) Store() repository.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store
}

// CurrentCycleID returns the cycle id for the service clock's current week.
func (s *Service) CurrentCycleID() string {
	return model.CycleIDForTime(s.now())
}

// RunCycle executes one full matching cycle. Safe to re-invoke for a cycle
// that already ran: commits are guarded on slot status and per-cycle user
// uniqueness, so a re-run creates no duplicate matches. Only one run per
// cycle id may be in flight.
func (s *Service) RunCycle(ctx context.Context, cycleID string) (model.CycleReport, error) {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return model.CycleReport{}, ErrNotStarted
	}

	now := s.now()
	if cycleID == "" {
		cycleID = model.CycleIDForTime(now)
	}
	report := model.CycleReport{CycleID: cycleID}

	if !s.guard.TryAcquire(ctx, cycleID) {
		return report, fmt.Errorf("cycle %s: %w", cycleID, ErrCycleInFlight)
	}
	defer s.guard.Release(ctx, cycleID)

	metrics.RecordCycleRun()
	start := time.Now()
	defer func() {
		report.Duration = time.Since(start)
		metrics.RecordCycleDuration(float64(report.Duration.Milliseconds()))
		s.mu.Lock()
		snapshot := report
		s.lastReport = &snapshot
		s.mu.Unlock()
	}()

	s.log.Info(ctx, "cycle starting", logger.String("cycleID", cycleID))

	// Ingestion. A store outage here aborts before any write happens.
	candidates, skips, err := s.ingestor.Load(ctx, cycleID)
	if err != nil {
		metrics.RecordCycleFailed()
		return report, err
	}
	report.SlotsIngested = len(candidates)
	report.SlotsSkipped = len(skips)
	metrics.RecordSlotsIngested(len(candidates))
	for _, skip := range skips {
		metrics.RecordValidationSkip()
		report.Errors = append(report.Errors, fmt.Sprintf("slot %s: %v", skip.SlotID, skip.Err))
	}

	// Cooldown-window history, one pure query against persisted matches.
	since := now.Add(-time.Duration(s.cooldownCycles) * s.cycleInterval)
	histCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	pairs, err := s.store.RecentPairs(histCtx, since)
	cancel()
	if err != nil {
		metrics.RecordCycleFailed()
		return report, fmt.Errorf("loading pairing history: %w", err)
	}

	run := workerpool.Run{
		CycleID: cycleID,
		Now:     now,
		Recent:  scoring.NewPairSet(pairs),
		Claims:  workerpool.NewClaims(),
	}

	// Exact pass over (day, time, activity) pools.
	consumed := make(map[string]struct{})
	matched := make(map[string]struct{})
	exactRes := s.runPass(ctx, run, bucket.Exact(candidates))
	s.mergePass(&report, exactRes, consumed, matched, false)

	if err := ctx.Err(); err != nil {
		metrics.RecordCycleFailed()
		return report, err
	}

	// Fallback pass: leftovers re-pooled on (day, activity) only. A matched
	// user's remaining slots stay Open and never re-enter the pool.
	var leftovers []ingest.Candidate
	for _, c := range candidates {
		if _, ok := consumed[c.Slot.ID]; ok {
			continue
		}
		if _, ok := matched[c.User.ID]; ok {
			continue
		}
		leftovers = append(leftovers, c)
	}
	fallbackRes := s.runPass(ctx, run, bucket.Fallback(leftovers))
	s.mergePass(&report, fallbackRes, consumed, matched, true)

	if err := ctx.Err(); err != nil {
		metrics.RecordCycleFailed()
		return report, err
	}

	s.finishReport(ctx, &report)

	s.log.Info(ctx, "cycle finished",
		logger.String("cycleID", cycleID),
		logger.Int("matches", report.MatchesCreated),
		logger.Int("slotsLeftOpen", report.SlotsLeftOpen),
		logger.Int("skippedPairs", report.SkippedPairs),
		logger.Duration("duration", report.Duration),
	)
	return report, nil
}

// passResult aggregates one pass over a set of buckets.
type passResult struct {
	matches []model.Match
	skipped int
	buckets int
	errs    []string
}

// runPass fans buckets out to a fresh worker pool and drains the reports.
// Buckets that fail on a transient store error are retried exactly once.
func (s *Service) runPass(ctx context.Context, run workerpool.Run, buckets []bucket.Bucket) passResult {
	var res passResult
	if len(buckets) == 0 {
		return res
	}

	failed := s.dispatch(ctx, run, buckets, &res)
	if len(failed) > 0 && ctx.Err() == nil {
		s.log.Warn(ctx, "retrying failed buckets", logger.Int("count", len(failed)))
		stillFailed := s.dispatch(ctx, run, failed, &res)
		for _, b := range stillFailed {
			res.errs = append(res.errs, fmt.Sprintf("bucket %s failed after retry", b.Key.String()))
		}
	}
	return res
}

// dispatch runs one queue/pool round over buckets and returns the buckets
// that failed transiently.
func (s *Service) dispatch(ctx context.Context, run workerpool.Run, buckets []bucket.Bucket, res *passResult) []bucket.Bucket {
	capacity := s.queueSize
	if len(buckets) > capacity {
		capacity = len(buckets)
	}
	q := bucketqueue.NewInMemoryQueue(bucketqueue.WithCapacity(capacity))
	byKey := make(map[bucket.Key]bucket.Bucket, len(buckets))
	for _, b := range buckets {
		byKey[b.Key] = b
		if !q.Enqueue(ctx, b) {
			res.errs = append(res.errs, fmt.Sprintf("bucket %s not enqueued", b.Key.String()))
		}
	}
	_ = q.Close()

	proc := workerpool.NewProcessor(s.store, s.scorer, s.notifier,
		workerpool.WithStoreTimeout(s.storeTimeout),
		workerpool.WithLogger(s.log.Named("worker")),
	)
	pool := workerpool.NewPool(s.workerCount, q, proc)
	pool.Start(ctx, run)

	var failed []bucket.Bucket
	for rep := range pool.Results() {
		res.buckets++
		res.matches = append(res.matches, rep.Matches...)
		res.skipped += rep.SkippedPairs
		if rep.Err != nil {
			failed = append(failed, byKey[rep.Key])
		}
	}
	return failed
}

func (s *Service) mergePass(report *model.CycleReport, res passResult, consumed, matched map[string]struct{}, fallback bool) {
	report.BucketsMatched += res.buckets
	report.MatchesCreated += len(res.matches)
	report.SkippedPairs += res.skipped
	report.Errors = append(report.Errors, res.errs...)
	if fallback {
		report.FallbackMatches += len(res.matches)
	}
	for _, m := range res.matches {
		consumed[m.Slot1ID] = struct{}{}
		consumed[m.Slot2ID] = struct{}{}
		matched[m.User1ID] = struct{}{}
		matched[m.User2ID] = struct{}{}
	}
}

// finishReport fills the store-derived tail of the report.
func (s *Service) finishReport(ctx context.Context, report *model.CycleReport) {
	listCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	open, err := s.store.ListOpenSlots(listCtx)
	if err != nil {
		s.log.Warn(ctx, "could not count remaining open slots", logger.Error(err))
		report.Errors = append(report.Errors, fmt.Sprintf("counting open slots: %v", err))
		return
	}
	report.SlotsLeftOpen = len(open)
	metrics.UpdateOpenSlots(len(open))
	metrics.UpdateLastCycleMatches(report.MatchesCreated)
}

// LastReport returns the most recent cycle report, or nil before any run.
func (s *Service) LastReport() *model.CycleReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastReport
}

// Stats returns service statistics for monitoring. The store queries run
// outside the service lock so a slow store cannot stall a finishing cycle's
// report snapshot.
func (s *Service) Stats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	stats := map[string]interface{}{
		"started":        s.started,
		"workerCount":    s.workerCount,
		"cooldownCycles": s.cooldownCycles,
		"runningCycles":  s.guard.Running(),
	}
	started := s.started
	store := s.store
	if s.lastReport != nil {
		stats["lastCycleID"] = s.lastReport.CycleID
		stats["lastCycleMatches"] = s.lastReport.MatchesCreated
	}
	s.mu.RUnlock()

	if !started {
		return stats
	}

	if open, err := store.ListOpenSlots(ctx); err == nil {
		stats["openSlots"] = len(open)
		metrics.UpdateOpenSlots(len(open))
	}
	if users, err := store.ListUsers(ctx); err == nil {
		stats["totalUsers"] = len(users)
		metrics.UpdateTotalUsers(len(users))
	}
	return stats
}
