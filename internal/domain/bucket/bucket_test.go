package bucket

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/iimb-synergy/synapse/internal/domain/ingest"
	"github.com/iimb-synergy/synapse/internal/domain/model"
)

func cand(slotID, userID string, day model.Day, clock string, activity model.Activity) ingest.Candidate {
	return ingest.Candidate{
		Slot: model.AvailabilitySlot{
			ID:       slotID,
			UserID:   userID,
			Day:      day,
			Time:     clock,
			Activity: activity,
			Status:   model.StatusOpen,
		},
		User: model.User{ID: userID},
	}
}

func TestExactPartition(t *testing.T) {
	Convey("Given candidates across several tuples", t, func() {
		pool := []ingest.Candidate{
			cand("s4", "u4", model.Tuesday, "08:00", model.Coffee),
			cand("s1", "u1", model.Monday, "12:30", model.Lunch),
			cand("s3", "u3", model.Tuesday, "08:00", model.Coffee),
			cand("s2", "u2", model.Monday, "12:30", model.Lunch),
			cand("s5", "u5", model.Monday, "12:30", model.Chat),
		}

		buckets := Exact(pool)

		Convey("Then pools group by the full (day, time, activity) key", func() {
			So(buckets, ShouldHaveLength, 2)

			So(buckets[0].Key, ShouldResemble, Key{Day: model.Monday, Time: "12:30", Activity: model.Lunch})
			So(buckets[0].Fallback, ShouldBeFalse)
			So(buckets[0].Candidates[0].Slot.ID, ShouldEqual, "s1")
			So(buckets[0].Candidates[1].Slot.ID, ShouldEqual, "s2")

			So(buckets[1].Key, ShouldResemble, Key{Day: model.Tuesday, Time: "08:00", Activity: model.Coffee})
			So(buckets[1].Candidates[0].Slot.ID, ShouldEqual, "s3")
			So(buckets[1].Candidates[1].Slot.ID, ShouldEqual, "s4")
		})

		Convey("And the lone Chat candidate is dropped", func() {
			for _, b := range buckets {
				So(b.Key.Activity, ShouldNotEqual, model.Chat)
			}
		})
	})

	Convey("Given an empty candidate list", t, func() {
		So(Exact(nil), ShouldBeEmpty)
	})
}

func TestExactOrdering(t *testing.T) {
	Convey("Given keys across days, times and activities", t, func() {
		pool := []ingest.Candidate{
			cand("s1", "u1", model.Sunday, "07:30", model.Coffee),
			cand("s2", "u2", model.Sunday, "07:30", model.Coffee),
			cand("s3", "u3", model.Monday, "18:30", model.Sports),
			cand("s4", "u4", model.Monday, "18:30", model.Sports),
			cand("s5", "u5", model.Monday, "07:30", model.Study),
			cand("s6", "u6", model.Monday, "07:30", model.Study),
		}

		buckets := Exact(pool)

		Convey("Then buckets come out Monday-first, then by time", func() {
			So(buckets, ShouldHaveLength, 3)
			So(buckets[0].Key.Day, ShouldEqual, model.Monday)
			So(buckets[0].Key.Time, ShouldEqual, "07:30")
			So(buckets[1].Key.Day, ShouldEqual, model.Monday)
			So(buckets[1].Key.Time, ShouldEqual, "18:30")
			So(buckets[2].Key.Day, ShouldEqual, model.Sunday)
		})
	})
}

func TestFallbackPartition(t *testing.T) {
	Convey("Given leftovers at different times of the same day and activity", t, func() {
		pool := []ingest.Candidate{
			cand("s1", "u1", model.Friday, "12:30", model.Lunch),
			cand("s2", "u2", model.Friday, "13:00", model.Lunch),
		}

		buckets := Fallback(pool)

		Convey("Then the relaxed key merges them into one pool", func() {
			So(buckets, ShouldHaveLength, 1)
			So(buckets[0].Key, ShouldResemble, Key{Day: model.Friday, Activity: model.Lunch})
			So(buckets[0].Key.Time, ShouldBeEmpty)
			So(buckets[0].Fallback, ShouldBeTrue)
			So(buckets[0].Candidates, ShouldHaveLength, 2)
		})
	})

	Convey("Given a user holding several leftovers under one relaxed key", t, func() {
		pool := []ingest.Candidate{
			cand("s1", "u1", model.Friday, "12:30", model.Lunch),
			cand("s2", "u1", model.Friday, "13:00", model.Lunch),
			cand("s3", "u2", model.Friday, "13:00", model.Lunch),
			cand("s4", "u3", model.Friday, "12:30", model.Lunch),
		}

		buckets := Fallback(pool)

		Convey("Then every slot of the repeated user is excluded", func() {
			So(buckets, ShouldHaveLength, 1)
			So(buckets[0].Candidates, ShouldHaveLength, 2)
			for _, c := range buckets[0].Candidates {
				So(c.Slot.UserID, ShouldNotEqual, "u1")
			}
		})
	})

	Convey("Given a pool reduced below two by the exclusion", t, func() {
		pool := []ingest.Candidate{
			cand("s1", "u1", model.Friday, "12:30", model.Lunch),
			cand("s2", "u1", model.Friday, "13:00", model.Lunch),
			cand("s3", "u2", model.Friday, "13:00", model.Lunch),
		}

		Convey("Then the pool is dropped entirely", func() {
			So(Fallback(pool), ShouldBeEmpty)
		})
	})
}

func TestKeyString(t *testing.T) {
	Convey("Given exact and fallback keys", t, func() {
		exact := Key{Day: model.Monday, Time: "12:30", Activity: model.Lunch}
		relaxed := Key{Day: model.Monday, Activity: model.Lunch}

		So(exact.String(), ShouldEqual, "Monday 12:30/Lunch")
		So(relaxed.String(), ShouldEqual, "Monday/Lunch")
	})
}
