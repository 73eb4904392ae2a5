// Package worker runs the per-bucket pipeline: score the pool, select the
// maximum-weight pairing, and commit each pair. Buckets never share slots,
// but a user free on several tuples appears in several buckets, so workers
// claim users through the run's cycle-level claim set before committing and
// the store enforces the same uniqueness inside the commit transaction.
package worker

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/iimb-synergy/synapse/internal/adapters/mq/queue"
	"github.com/iimb-synergy/synapse/internal/adapters/notify"
	"github.com/iimb-synergy/synapse/internal/adapters/repository"
	"github.com/iimb-synergy/synapse/internal/domain/bucket"
	"github.com/iimb-synergy/synapse/internal/domain/ingest"
	"github.com/iimb-synergy/synapse/internal/domain/matching"
	"github.com/iimb-synergy/synapse/internal/domain/model"
	"github.com/iimb-synergy/synapse/internal/domain/scoring"
	"github.com/iimb-synergy/synapse/pkg/logger"
	"github.com/iimb-synergy/synapse/pkg/metrics"
)

const defaultStoreTimeout = 5 * time.Second

// Queue defines how workers receive pools.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Task
}

// Report summarizes one processed pool.
type Report struct {
	Key          bucket.Key
	Fallback     bool
	Matches      []model.Match
	SkippedPairs int

	// Err is set on a transient store failure. The pool's uncommitted slots
	// stay Open and the cycle retries the pool once at the end of the run.
	Err error
}

// Run identifies one cycle's execution: everything a processed pool needs
// beyond the pool itself.
type Run struct {
	CycleID string
	Now     time.Time
	Recent  scoring.PairSet

	// Claims is the cycle's matched-user set, shared by every pool of the
	// run. Nil disables the claim step (single-bucket callers).
	Claims *Claims
}

// Claims tracks the users already matched in a running cycle. A user free on
// several tuples sits in several pools at once; the first pool to claim the
// user wins, later pools drop their slots for that user.
type Claims struct {
	mu    sync.Mutex
	users map[string]struct{}
}

// NewClaims creates an empty claim set for one cycle run.
func NewClaims() *Claims {
	return &Claims{users: make(map[string]struct{})}
}

// Claim reserves both users atomically. False means at least one of them is
// already matched this cycle.
func (c *Claims) Claim(u1, u2 string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.users[u1]; ok {
		return false
	}
	if _, ok := c.users[u2]; ok {
		return false
	}
	c.users[u1] = struct{}{}
	c.users[u2] = struct{}{}
	return true
}

// Release frees both users after a commit that did not go through.
func (c *Claims) Release(u1, u2 string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.users, u1)
	delete(c.users, u2)
}

// Has reports whether user is already matched this cycle.
func (c *Claims) Has(user string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.users[user]
	return ok
}

// Processor turns one bucket into committed matches.
type Processor struct {
	store        repository.Store
	scorer       *scoring.Scorer
	notifier     notify.Notifier
	storeTimeout time.Duration
	log          logger.Logger
}

// Option applies a configuration option to the Processor.
type Option func(*Processor)

// WithStoreTimeout bounds each store call made while committing.
func WithStoreTimeout(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.storeTimeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(p *Processor) {
		if log != nil {
			p.log = log
		}
	}
}

// NewProcessor creates a bucket processor.
func NewProcessor(store repository.Store, scorer *scoring.Scorer, notifier notify.Notifier, opts ...Option) *Processor {
	p := &Processor{
		store:        store,
		scorer:       scorer,
		notifier:     notifier,
		storeTimeout: defaultStoreTimeout,
		log:          logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process scores a pool, selects pairs and commits them. Cancellation is
// honored between pair commits; pairs already committed stay committed.
func (p *Processor) Process(ctx context.Context, run Run, b bucket.Bucket) Report {
	start := time.Now()
	pass := passLabel(b.Fallback)
	defer func() {
		metrics.RecordBucketProcessed(pass)
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	rep := Report{Key: b.Key, Fallback: b.Fallback}

	pool := make([]ingest.Candidate, 0, len(b.Candidates))
	for _, c := range b.Candidates {
		if c.User.ID == "" {
			// Malformed reference data drops the slot, never the cycle.
			p.log.Warn(ctx, "dropping candidate with missing user record",
				logger.String("slotID", c.Slot.ID))
			continue
		}
		if run.Claims != nil && run.Claims.Has(c.User.ID) {
			// Another pool already matched this user in the cycle.
			continue
		}
		pool = append(pool, c)
	}
	if len(pool) < 2 {
		// A lone candidate has no feasible match; its slot stays Open.
		return rep
	}
	// Canonical user-id order makes the matcher's lexicographic tie-break
	// mean "smallest user-id pairing".
	sort.Slice(pool, func(i, j int) bool { return pool[i].User.ID < pool[j].User.ID })

	candidates := make([]matching.Candidate, len(pool))
	for i, c := range pool {
		candidates[i] = matching.Candidate{SlotID: c.Slot.ID, UserID: c.User.ID}
	}

	matchStart := time.Now()
	result := matching.Select(candidates, func(i, j int) float64 {
		score, err := p.scorer.Score(pool[i].User, pool[j].User, run.Recent)
		if err != nil {
			// Unreachable after the pre-validation above; make the pair
			// unselectable rather than guess a score.
			return math.Inf(-1)
		}
		return score
	})
	metrics.RecordMatcherLatency(float64(time.Since(matchStart).Milliseconds()))

	for _, pair := range result.Pairs {
		if err := ctx.Err(); err != nil {
			rep.Err = err
			return rep
		}

		a, c := pool[pair.A], pool[pair.B]
		m := p.buildMatch(run, b, a, c, pair.Score)

		if run.Claims != nil && !run.Claims.Claim(m.User1ID, m.User2ID) {
			// A concurrent pool matched one of the users first.
			rep.SkippedPairs++
			p.log.Warn(ctx, "user already matched this cycle, skipping pair",
				logger.String("bucket", b.Key.String()),
				logger.String("user1", m.User1ID),
				logger.String("user2", m.User2ID),
			)
			continue
		}

		commitCtx, cancel := context.WithTimeout(ctx, p.storeTimeout)
		err := p.store.CommitMatch(commitCtx, m)
		cancel()
		if err != nil && run.Claims != nil {
			run.Claims.Release(m.User1ID, m.User2ID)
		}

		switch {
		case err == nil:
			rep.Matches = append(rep.Matches, m)
			metrics.RecordMatchCommitted(pass)
			p.notifier.MatchCreated(ctx, m)
		case errors.Is(err, repository.ErrConflict), errors.Is(err, repository.ErrNotFound):
			// A slot was consumed or cancelled under us. Skip the pair; the
			// partner's slot stays Open. Not retried: the guard losing once
			// means the pairing decision is stale.
			rep.SkippedPairs++
			metrics.RecordCommitConflict()
			p.log.Warn(ctx, "pair commit lost slot guard, skipping",
				logger.String("bucket", b.Key.String()),
				logger.String("user1", m.User1ID),
				logger.String("user2", m.User2ID),
				logger.Error(err),
			)
		default:
			metrics.RecordStoreError()
			metrics.RecordWorkerError()
			metrics.RecordErrorByComponent("worker", "store_error")
			p.log.Error(ctx, "pair commit failed",
				logger.String("bucket", b.Key.String()),
				logger.Error(err),
			)
			rep.Err = err
			return rep
		}
	}

	return rep
}

// buildMatch assembles the match record for a selected pair. User and slot
// ids are ordered so user_1 < user_2, keeping records canonical.
func (p *Processor) buildMatch(run Run, b bucket.Bucket, a, c ingest.Candidate, score float64) model.Match {
	if a.User.ID > c.User.ID {
		a, c = c, a
	}
	return model.Match{
		ID:          model.NewMatchID(),
		CycleID:     run.CycleID,
		User1ID:     a.User.ID,
		User2ID:     c.User.ID,
		Activity:    b.Key.Activity,
		Location:    model.DefaultLocation(b.Key.Activity),
		ScheduledAt: model.NextOccurrence(run.Now, b.Key.Day, earlierClock(a.Slot.Time, c.Slot.Time)),
		Slot1ID:     a.Slot.ID,
		Slot2ID:     c.Slot.ID,
		Score:       score,
		CreatedAt:   run.Now.UTC(),
	}
}

// earlierClock picks the earlier of two "HH:MM" values. On exact buckets
// both are equal; on fallback buckets the pair meets at the earlier offer.
func earlierClock(a, b string) string {
	if b < a {
		return b
	}
	return a
}

func passLabel(fallback bool) string {
	if fallback {
		return "fallback"
	}
	return "exact"
}

// Pool fans one cycle's buckets out over count workers and streams their
// reports back.
type Pool struct {
	count   int
	queue   Queue
	proc    *Processor
	results chan Report
	log     logger.Logger
}

// NewPool creates a worker pool reading from q.
func NewPool(count int, q Queue, proc *Processor) *Pool {
	if count < 1 {
		count = 1
	}
	return &Pool{
		count:   count,
		queue:   q,
		proc:    proc,
		results: make(chan Report),
		log:     logger.Get().Named("worker-pool"),
	}
}

// Start launches the workers. Results closes once the queue is drained (or
// the context is cancelled) and every worker has finished.
func (p *Pool) Start(ctx context.Context, run Run) {
	metrics.UpdateWorkerActiveCount(p.count)

	var wg sync.WaitGroup
	tasks := p.queue.Dequeue(ctx)
	for i := 0; i < p.count; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range tasks {
				rep := p.proc.Process(ctx, run, b)
				select {
				case p.results <- rep:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		metrics.UpdateWorkerActiveCount(0)
		close(p.results)
	}()
}

// Results streams per-bucket reports.
func (p *Pool) Results() <-chan Report {
	return p.results
}
