package worker

import (
	"context"
	"os"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/iimb-synergy/synapse/internal/adapters/mq/queue"
	"github.com/iimb-synergy/synapse/internal/adapters/notify"
	"github.com/iimb-synergy/synapse/internal/adapters/repository"
	"github.com/iimb-synergy/synapse/internal/domain/bucket"
	"github.com/iimb-synergy/synapse/internal/domain/ingest"
	"github.com/iimb-synergy/synapse/internal/domain/model"
	"github.com/iimb-synergy/synapse/internal/domain/scoring"
	"github.com/iimb-synergy/synapse/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		os.Exit(1)
	}
	os.Exit(m.Run())
}

var testRunTime = time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

func seedPair(ctx context.Context, store repository.Store, program1, program2 string) bucket.Bucket {
	u1 := model.User{ID: "u1", FullName: "A", Program: program1, Intent: model.IntentCasualChat}
	u2 := model.User{ID: "u2", FullName: "B", Program: program2, Intent: model.IntentCasualChat}
	_ = store.PutUser(ctx, u1)
	_ = store.PutUser(ctx, u2)

	s1 := model.AvailabilitySlot{ID: "s1", UserID: "u1", Day: model.Monday, Time: "12:30", Activity: model.Lunch, Status: model.StatusOpen}
	s2 := model.AvailabilitySlot{ID: "s2", UserID: "u2", Day: model.Monday, Time: "12:30", Activity: model.Lunch, Status: model.StatusOpen}
	_ = store.PutSlot(ctx, s1)
	_ = store.PutSlot(ctx, s2)

	return bucket.Bucket{
		Key: bucket.Key{Day: model.Monday, Time: "12:30", Activity: model.Lunch},
		Candidates: []ingest.Candidate{
			{Slot: s1, User: u1},
			{Slot: s2, User: u2},
		},
	}
}

func TestProcessCommitsPairs(t *testing.T) {
	Convey("Given a bucket with two compatible candidates", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		b := seedPair(ctx, store, "PGP", "EPGP")

		proc := NewProcessor(store, scoring.NewScorer(), notify.NopNotifier{})
		run := Run{CycleID: "2026-W35", Now: testRunTime, Recent: scoring.NewPairSet(nil)}

		Convey("When processing", func() {
			rep := proc.Process(ctx, run, b)

			Convey("Then one match is committed with canonical fields", func() {
				So(rep.Err, ShouldBeNil)
				So(rep.SkippedPairs, ShouldEqual, 0)
				So(rep.Matches, ShouldHaveLength, 1)

				m := rep.Matches[0]
				So(m.User1ID, ShouldEqual, "u1")
				So(m.User2ID, ShouldEqual, "u2")
				So(m.CycleID, ShouldEqual, "2026-W35")
				So(m.Activity, ShouldEqual, model.Lunch)
				So(m.Location, ShouldEqual, "Mess")
				// Next Monday 12:30 after a Friday-morning run.
				So(m.ScheduledAt.Equal(time.Date(2026, 8, 31, 12, 30, 0, 0, time.UTC)), ShouldBeTrue)
				// Different program + same intent + novelty.
				So(m.Score, ShouldEqual, 50+25+30)
			})

			Convey("And both slots are flipped in the store", func() {
				s1, _ := store.GetSlot(ctx, "s1")
				s2, _ := store.GetSlot(ctx, "s2")
				So(s1.Status, ShouldEqual, model.StatusMatched)
				So(s2.Status, ShouldEqual, model.StatusMatched)
			})
		})
	})
}

func TestProcessThinPools(t *testing.T) {
	Convey("Given degenerate pools", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		proc := NewProcessor(store, scoring.NewScorer(), notify.NopNotifier{})
		run := Run{CycleID: "2026-W35", Now: testRunTime, Recent: scoring.NewPairSet(nil)}

		Convey("When the pool has a single candidate", func() {
			b := bucket.Bucket{
				Key: bucket.Key{Day: model.Monday, Time: "12:30", Activity: model.Lunch},
				Candidates: []ingest.Candidate{{
					Slot: model.AvailabilitySlot{ID: "s1", UserID: "u1"},
					User: model.User{ID: "u1"},
				}},
			}
			rep := proc.Process(ctx, run, b)
			So(rep.Err, ShouldBeNil)
			So(rep.Matches, ShouldBeEmpty)
		})

		Convey("When a candidate carries no user record", func() {
			b := seedPair(ctx, store, "PGP", "PGP")
			b.Candidates[1].User = model.User{}

			rep := proc.Process(ctx, run, b)

			Convey("Then the malformed candidate is dropped and no pair forms", func() {
				So(rep.Err, ShouldBeNil)
				So(rep.Matches, ShouldBeEmpty)
				s1, _ := store.GetSlot(ctx, "s1")
				So(s1.Status, ShouldEqual, model.StatusOpen)
			})
		})
	})
}

func TestProcessUserMatchedOncePerCycle(t *testing.T) {
	Convey("Given one user free on two tuples in the same cycle", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		b1 := seedPair(ctx, store, "PGP", "EPGP")

		u3 := model.User{ID: "u3", FullName: "C", Program: "FPM", Intent: model.IntentCasualChat}
		_ = store.PutUser(ctx, u3)
		u1, _ := store.GetUser(ctx, "u1")
		s3 := model.AvailabilitySlot{ID: "s3", UserID: "u1", Day: model.Tuesday, Time: "08:00", Activity: model.Coffee, Status: model.StatusOpen}
		s4 := model.AvailabilitySlot{ID: "s4", UserID: "u3", Day: model.Tuesday, Time: "08:00", Activity: model.Coffee, Status: model.StatusOpen}
		_ = store.PutSlot(ctx, s3)
		_ = store.PutSlot(ctx, s4)
		b2 := bucket.Bucket{
			Key: bucket.Key{Day: model.Tuesday, Time: "08:00", Activity: model.Coffee},
			Candidates: []ingest.Candidate{
				{Slot: s3, User: u1},
				{Slot: s4, User: u3},
			},
		}

		proc := NewProcessor(store, scoring.NewScorer(), notify.NopNotifier{})
		run := Run{CycleID: "2026-W35", Now: testRunTime, Recent: scoring.NewPairSet(nil), Claims: NewClaims()}

		Convey("When both pools are processed", func() {
			rep1 := proc.Process(ctx, run, b1)
			rep2 := proc.Process(ctx, run, b2)

			Convey("Then only the first pool matches the shared user", func() {
				So(rep1.Err, ShouldBeNil)
				So(rep1.Matches, ShouldHaveLength, 1)
				So(rep2.Err, ShouldBeNil)
				So(rep2.Matches, ShouldBeEmpty)

				s3After, _ := store.GetSlot(ctx, "s3")
				s4After, _ := store.GetSlot(ctx, "s4")
				So(s3After.Status, ShouldEqual, model.StatusOpen)
				So(s4After.Status, ShouldEqual, model.StatusOpen)
			})
		})
	})
}

func TestClaims(t *testing.T) {
	Convey("Given a cycle claim set", t, func() {
		claims := NewClaims()

		Convey("When claiming a fresh pair", func() {
			So(claims.Claim("u1", "u2"), ShouldBeTrue)
			So(claims.Has("u1"), ShouldBeTrue)
			So(claims.Has("u2"), ShouldBeTrue)

			Convey("Then overlapping pairs are refused", func() {
				So(claims.Claim("u2", "u3"), ShouldBeFalse)
				So(claims.Has("u3"), ShouldBeFalse)
			})

			Convey("And a release frees both users", func() {
				claims.Release("u1", "u2")
				So(claims.Claim("u2", "u3"), ShouldBeTrue)
			})
		})
	})
}

func TestProcessConflictSkips(t *testing.T) {
	Convey("Given a slot consumed between selection and commit", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		b := seedPair(ctx, store, "PGP", "EPGP")

		// User cancels while the bucket is in flight.
		ok, err := store.UpdateSlotStatus(ctx, "s2", model.StatusOpen, model.StatusCancelled)
		So(err, ShouldBeNil)
		So(ok, ShouldBeTrue)

		proc := NewProcessor(store, scoring.NewScorer(), notify.NopNotifier{})
		run := Run{CycleID: "2026-W35", Now: testRunTime, Recent: scoring.NewPairSet(nil)}

		Convey("When processing", func() {
			rep := proc.Process(ctx, run, b)

			Convey("Then the pair is skipped, not failed", func() {
				So(rep.Err, ShouldBeNil)
				So(rep.Matches, ShouldBeEmpty)
				So(rep.SkippedPairs, ShouldEqual, 1)

				Convey("And the partner slot stays open", func() {
					s1, _ := store.GetSlot(ctx, "s1")
					So(s1.Status, ShouldEqual, model.StatusOpen)
				})
			})
		})
	})
}

func TestProcessFallbackBucket(t *testing.T) {
	Convey("Given a fallback pool with differing slot times", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()

		u1 := model.User{ID: "u1", FullName: "A", Program: "PGP"}
		u2 := model.User{ID: "u2", FullName: "B", Program: "EPGP"}
		_ = store.PutUser(ctx, u1)
		_ = store.PutUser(ctx, u2)
		s1 := model.AvailabilitySlot{ID: "s1", UserID: "u1", Day: model.Friday, Time: "13:00", Activity: model.Coffee, Status: model.StatusOpen}
		s2 := model.AvailabilitySlot{ID: "s2", UserID: "u2", Day: model.Friday, Time: "12:30", Activity: model.Coffee, Status: model.StatusOpen}
		_ = store.PutSlot(ctx, s1)
		_ = store.PutSlot(ctx, s2)

		b := bucket.Bucket{
			Key:      bucket.Key{Day: model.Friday, Activity: model.Coffee},
			Fallback: true,
			Candidates: []ingest.Candidate{
				{Slot: s1, User: u1},
				{Slot: s2, User: u2},
			},
		}

		proc := NewProcessor(store, scoring.NewScorer(), notify.NopNotifier{})
		run := Run{CycleID: "2026-W35", Now: testRunTime, Recent: scoring.NewPairSet(nil)}

		Convey("When processing", func() {
			rep := proc.Process(ctx, run, b)

			Convey("Then the pair meets at the earlier offered time", func() {
				So(rep.Err, ShouldBeNil)
				So(rep.Matches, ShouldHaveLength, 1)
				m := rep.Matches[0]
				So(m.Location, ShouldEqual, "CCD")
				So(m.ScheduledAt.Equal(time.Date(2026, 8, 28, 12, 30, 0, 0, time.UTC)), ShouldBeTrue)
			})
		})
	})
}

func TestPoolDrainsQueue(t *testing.T) {
	Convey("Given several independent buckets on a queue", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		run := Run{CycleID: "2026-W35", Now: testRunTime, Recent: scoring.NewPairSet(nil)}

		var buckets []bucket.Bucket
		days := []model.Day{model.Monday, model.Tuesday, model.Wednesday}
		for i, day := range days {
			u1 := model.User{ID: userID(i, 0), Program: "PGP"}
			u2 := model.User{ID: userID(i, 1), Program: "EPGP"}
			_ = store.PutUser(ctx, u1)
			_ = store.PutUser(ctx, u2)
			s1 := model.AvailabilitySlot{ID: slotID(i, 0), UserID: u1.ID, Day: day, Time: "08:00", Activity: model.Coffee, Status: model.StatusOpen}
			s2 := model.AvailabilitySlot{ID: slotID(i, 1), UserID: u2.ID, Day: day, Time: "08:00", Activity: model.Coffee, Status: model.StatusOpen}
			_ = store.PutSlot(ctx, s1)
			_ = store.PutSlot(ctx, s2)
			buckets = append(buckets, bucket.Bucket{
				Key: bucket.Key{Day: day, Time: "08:00", Activity: model.Coffee},
				Candidates: []ingest.Candidate{
					{Slot: s1, User: u1},
					{Slot: s2, User: u2},
				},
			})
		}

		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		for _, b := range buckets {
			So(q.Enqueue(ctx, b), ShouldBeTrue)
		}
		So(q.Close(), ShouldBeNil)

		proc := NewProcessor(store, scoring.NewScorer(), notify.NopNotifier{})
		pool := NewPool(2, q, proc)

		Convey("When the pool runs", func() {
			pool.Start(ctx, run)

			var reports []Report
			for rep := range pool.Results() {
				reports = append(reports, rep)
			}

			Convey("Then every bucket yields a report and a match", func() {
				So(reports, ShouldHaveLength, 3)
				total := 0
				for _, rep := range reports {
					So(rep.Err, ShouldBeNil)
					total += len(rep.Matches)
				}
				So(total, ShouldEqual, 3)

				open, err := store.ListOpenSlots(ctx)
				So(err, ShouldBeNil)
				So(open, ShouldBeEmpty)
			})
		})
	})
}

func userID(i, j int) string { return "u" + string(rune('a'+i)) + string(rune('0'+j)) }
func slotID(i, j int) string { return "s" + string(rune('a'+i)) + string(rune('0'+j)) }
