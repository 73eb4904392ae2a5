package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/iimb-synergy/synapse/internal/domain/model"
)

func openSlot(id, userID string) model.AvailabilitySlot {
	return model.AvailabilitySlot{
		ID:       id,
		UserID:   userID,
		Day:      model.Monday,
		Time:     "12:30",
		Activity: model.Lunch,
		Status:   model.StatusOpen,
	}
}

func TestMemoryStoreSlots(t *testing.T) {
	Convey("Given an in-memory store with slots", t, func() {
		ctx := context.Background()
		store := NewMemoryStore()
		So(store.PutSlot(ctx, openSlot("s2", "u2")), ShouldBeNil)
		So(store.PutSlot(ctx, openSlot("s1", "u1")), ShouldBeNil)
		cancelled := openSlot("s3", "u3")
		cancelled.Status = model.StatusCancelled
		So(store.PutSlot(ctx, cancelled), ShouldBeNil)

		Convey("When listing open slots", func() {
			slots, err := store.ListOpenSlots(ctx)

			Convey("Then only Open slots come back, sorted by id", func() {
				So(err, ShouldBeNil)
				So(slots, ShouldHaveLength, 2)
				So(slots[0].ID, ShouldEqual, "s1")
				So(slots[1].ID, ShouldEqual, "s2")
			})
		})

		Convey("When fetching a slot by id", func() {
			slot, err := store.GetSlot(ctx, "s1")
			So(err, ShouldBeNil)
			So(slot.UserID, ShouldEqual, "u1")

			_, err = store.GetSlot(ctx, "missing")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("When flipping a slot status with the right guard", func() {
			ok, err := store.UpdateSlotStatus(ctx, "s1", model.StatusOpen, model.StatusMatched)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)

			slot, _ := store.GetSlot(ctx, "s1")
			So(slot.Status, ShouldEqual, model.StatusMatched)
		})

		Convey("When the guard does not hold", func() {
			ok, err := store.UpdateSlotStatus(ctx, "s3", model.StatusOpen, model.StatusMatched)

			Convey("Then the flip is refused without an error", func() {
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
				slot, _ := store.GetSlot(ctx, "s3")
				So(slot.Status, ShouldEqual, model.StatusCancelled)
			})
		})

		Convey("When the slot does not exist", func() {
			_, err := store.UpdateSlotStatus(ctx, "missing", model.StatusOpen, model.StatusMatched)
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestMemoryStoreUsers(t *testing.T) {
	Convey("Given an in-memory store with users", t, func() {
		ctx := context.Background()
		store := NewMemoryStore()
		So(store.PutUser(ctx, model.User{ID: "u2", FullName: "B"}), ShouldBeNil)
		So(store.PutUser(ctx, model.User{ID: "u1", FullName: "A"}), ShouldBeNil)

		Convey("When fetching by id", func() {
			u, err := store.GetUser(ctx, "u1")
			So(err, ShouldBeNil)
			So(u.FullName, ShouldEqual, "A")

			_, err = store.GetUser(ctx, "ghost")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("When listing users", func() {
			users, err := store.ListUsers(ctx)
			So(err, ShouldBeNil)
			So(users, ShouldHaveLength, 2)
			So(users[0].ID, ShouldEqual, "u1")
		})
	})
}

func TestMemoryStoreCommitMatch(t *testing.T) {
	Convey("Given two open slots", t, func() {
		ctx := context.Background()
		store := NewMemoryStore()
		So(store.PutSlot(ctx, openSlot("s1", "u1")), ShouldBeNil)
		So(store.PutSlot(ctx, openSlot("s2", "u2")), ShouldBeNil)

		match := model.Match{
			ID:        model.NewMatchID(),
			CycleID:   "2026-W35",
			User1ID:   "u1",
			User2ID:   "u2",
			Activity:  model.Lunch,
			Location:  "Mess",
			Slot1ID:   "s1",
			Slot2ID:   "s2",
			Score:     80,
			CreatedAt: time.Now().UTC(),
		}

		Convey("When committing the match", func() {
			So(store.CommitMatch(ctx, match), ShouldBeNil)

			Convey("Then both slots are Matched and the record exists", func() {
				s1, _ := store.GetSlot(ctx, "s1")
				s2, _ := store.GetSlot(ctx, "s2")
				So(s1.Status, ShouldEqual, model.StatusMatched)
				So(s2.Status, ShouldEqual, model.StatusMatched)

				matches, err := store.ListMatches(ctx, "2026-W35")
				So(err, ShouldBeNil)
				So(matches, ShouldHaveLength, 1)
				So(matches[0].ID, ShouldEqual, match.ID)
			})

			Convey("And committing again conflicts without a second record", func() {
				err := store.CommitMatch(ctx, match)
				So(errors.Is(err, ErrConflict), ShouldBeTrue)

				matches, _ := store.ListMatches(ctx, "2026-W35")
				So(matches, ShouldHaveLength, 1)
			})
		})

		Convey("When a user already matched this cycle pairs again on other slots", func() {
			So(store.PutSlot(ctx, openSlot("s3", "u1")), ShouldBeNil)
			So(store.PutSlot(ctx, openSlot("s4", "u3")), ShouldBeNil)
			So(store.CommitMatch(ctx, match), ShouldBeNil)

			second := model.Match{
				ID:      model.NewMatchID(),
				CycleID: "2026-W35",
				User1ID: "u1", User2ID: "u3",
				Activity: model.Lunch, Location: "Mess",
				Slot1ID: "s3", Slot2ID: "s4",
				CreatedAt: time.Now().UTC(),
			}
			err := store.CommitMatch(ctx, second)

			Convey("Then the commit conflicts and the new slots stay Open", func() {
				So(errors.Is(err, ErrConflict), ShouldBeTrue)

				s3, _ := store.GetSlot(ctx, "s3")
				s4, _ := store.GetSlot(ctx, "s4")
				So(s3.Status, ShouldEqual, model.StatusOpen)
				So(s4.Status, ShouldEqual, model.StatusOpen)

				matches, _ := store.ListMatches(ctx, "2026-W35")
				So(matches, ShouldHaveLength, 1)
			})

			Convey("But the same pairing in a later cycle is allowed", func() {
				next := second
				next.CycleID = "2026-W36"
				So(store.CommitMatch(ctx, next), ShouldBeNil)
			})
		})

		Convey("When one slot was cancelled under us", func() {
			_, err := store.UpdateSlotStatus(ctx, "s2", model.StatusOpen, model.StatusCancelled)
			So(err, ShouldBeNil)

			err = store.CommitMatch(ctx, match)

			Convey("Then nothing is applied", func() {
				So(errors.Is(err, ErrConflict), ShouldBeTrue)
				s1, _ := store.GetSlot(ctx, "s1")
				So(s1.Status, ShouldEqual, model.StatusOpen)
				matches, _ := store.ListMatches(ctx, "2026-W35")
				So(matches, ShouldBeEmpty)
			})
		})

		Convey("When a slot reference is missing", func() {
			bad := match
			bad.Slot2ID = "missing"
			err := store.CommitMatch(ctx, bad)
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)

			s1, _ := store.GetSlot(ctx, "s1")
			So(s1.Status, ShouldEqual, model.StatusOpen)
		})

		Convey("When the match pairs a user with themselves", func() {
			bad := match
			bad.User2ID = "u1"
			So(store.CommitMatch(ctx, bad), ShouldNotBeNil)
		})
	})
}

func TestMemoryStoreRecentPairs(t *testing.T) {
	Convey("Given matches committed at different times", t, func() {
		ctx := context.Background()
		store := NewMemoryStore()
		now := time.Now().UTC()

		old := model.Match{CycleID: "2026-W30", User1ID: "u1", User2ID: "u2", CreatedAt: now.Add(-6 * 7 * 24 * time.Hour)}
		fresh := model.Match{CycleID: "2026-W34", User1ID: "u3", User2ID: "u4", CreatedAt: now.Add(-7 * 24 * time.Hour)}
		_, err := store.InsertMatch(ctx, old)
		So(err, ShouldBeNil)
		_, err = store.InsertMatch(ctx, fresh)
		So(err, ShouldBeNil)

		Convey("When querying the cooldown window", func() {
			since := now.Add(-4 * 7 * 24 * time.Hour)
			pairs, err := store.RecentPairs(ctx, since)

			Convey("Then only matches inside the window count", func() {
				So(err, ShouldBeNil)
				So(pairs, ShouldHaveLength, 1)
				So(pairs[0], ShouldResemble, model.PairOf("u3", "u4"))
			})
		})

		Convey("When the window covers everything", func() {
			pairs, err := store.RecentPairs(ctx, now.Add(-365*24*time.Hour))
			So(err, ShouldBeNil)
			So(pairs, ShouldHaveLength, 2)
		})
	})
}
