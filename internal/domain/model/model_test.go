package model

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestParseDay(t *testing.T) {
	Convey("Given day strings", t, func() {
		Convey("When the day is recognized", func() {
			d, err := ParseDay("Wednesday")
			So(err, ShouldBeNil)
			So(d, ShouldEqual, Wednesday)
		})

		Convey("When the day carries whitespace", func() {
			d, err := ParseDay("  Friday ")
			So(err, ShouldBeNil)
			So(d, ShouldEqual, Friday)
		})

		Convey("When the day is unknown", func() {
			_, err := ParseDay("Funday")
			So(err, ShouldNotBeNil)
		})

		Convey("When the casing is wrong", func() {
			_, err := ParseDay("monday")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestDayWeekday(t *testing.T) {
	Convey("Given the Monday-based day order", t, func() {
		So(Monday.Weekday(), ShouldEqual, time.Monday)
		So(Thursday.Weekday(), ShouldEqual, time.Thursday)
		So(Sunday.Weekday(), ShouldEqual, time.Sunday)
	})
}

func TestParseActivity(t *testing.T) {
	Convey("Given activity strings", t, func() {
		Convey("When the activity is recognized", func() {
			a, err := ParseActivity("Coffee")
			So(err, ShouldBeNil)
			So(a, ShouldEqual, Coffee)
		})

		Convey("When the activity is unknown", func() {
			_, err := ParseActivity("Karaoke")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestDefaultLocation(t *testing.T) {
	Convey("Given the campus location table", t, func() {
		So(DefaultLocation(Lunch), ShouldEqual, "Mess")
		So(DefaultLocation(Sports), ShouldEqual, "Sports Complex")
		So(DefaultLocation(Study), ShouldEqual, "Library")
		So(DefaultLocation(Coffee), ShouldEqual, "CCD")
		So(DefaultLocation(Chat), ShouldEqual, "CCD")
	})
}

func TestParseClock(t *testing.T) {
	Convey("Given clock strings", t, func() {
		Convey("When the value is well-formed", func() {
			h, m, err := ParseClock("07:30")
			So(err, ShouldBeNil)
			So(h, ShouldEqual, 7)
			So(m, ShouldEqual, 30)
		})

		Convey("When the boundary values are used", func() {
			h, m, err := ParseClock("23:59")
			So(err, ShouldBeNil)
			So(h, ShouldEqual, 23)
			So(m, ShouldEqual, 59)

			h, m, err = ParseClock("00:00")
			So(err, ShouldBeNil)
			So(h, ShouldEqual, 0)
			So(m, ShouldEqual, 0)
		})

		Convey("When the value is out of range or malformed", func() {
			for _, bad := range []string{"24:00", "12:60", "noon", "12", "-1:30", "aa:bb", ""} {
				_, _, err := ParseClock(bad)
				So(err, ShouldNotBeNil)
			}
		})
	})
}

func TestTupleKey(t *testing.T) {
	Convey("Given slots on the uniqueness tuple", t, func() {
		a := AvailabilitySlot{ID: "s1", UserID: "u1", Day: Monday, Time: "12:30", Activity: Lunch}
		b := AvailabilitySlot{ID: "s2", UserID: "u1", Day: Monday, Time: "12:30", Activity: Lunch}
		c := AvailabilitySlot{ID: "s3", UserID: "u1", Day: Monday, Time: "13:00", Activity: Lunch}

		Convey("Then the key ignores the slot id but not the tuple", func() {
			So(a.TupleKey(), ShouldEqual, b.TupleKey())
			So(a.TupleKey(), ShouldNotEqual, c.TupleKey())
		})
	})
}

func TestPairOf(t *testing.T) {
	Convey("Given user id pairs", t, func() {
		Convey("Then the pair is canonical regardless of order", func() {
			So(PairOf("u2", "u1"), ShouldResemble, UserPair{Low: "u1", High: "u2"})
			So(PairOf("u1", "u2"), ShouldResemble, UserPair{Low: "u1", High: "u2"})
		})
	})
}

func TestCycleIDForTime(t *testing.T) {
	Convey("Given points in time", t, func() {
		Convey("Then the id is the ISO week", func() {
			So(CycleIDForTime(time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)), ShouldEqual, "2026-W35")
		})

		Convey("And year boundaries follow ISO week numbering", func() {
			// 2027-01-01 is a Friday, still ISO week 53 of 2026.
			So(CycleIDForTime(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)), ShouldEqual, "2026-W53")
			// 2024-12-30 is a Monday, already ISO week 1 of 2025.
			So(CycleIDForTime(time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC)), ShouldEqual, "2025-W01")
		})
	})
}

func TestNextOccurrence(t *testing.T) {
	// Friday 2026-08-28 10:00 UTC.
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

	Convey("Given a reference instant on a Friday morning", t, func() {
		Convey("When the slot is later the same day", func() {
			at := NextOccurrence(now, Friday, "12:30")
			So(at.Equal(time.Date(2026, 8, 28, 12, 30, 0, 0, time.UTC)), ShouldBeTrue)
		})

		Convey("When the slot time already passed today", func() {
			at := NextOccurrence(now, Friday, "08:00")
			So(at.Equal(time.Date(2026, 9, 4, 8, 0, 0, 0, time.UTC)), ShouldBeTrue)
		})

		Convey("When the slot is earlier in the week", func() {
			at := NextOccurrence(now, Monday, "12:30")
			So(at.Equal(time.Date(2026, 8, 31, 12, 30, 0, 0, time.UTC)), ShouldBeTrue)
		})

		Convey("When the slot is later in the week", func() {
			at := NextOccurrence(now, Sunday, "07:30")
			So(at.Equal(time.Date(2026, 8, 30, 7, 30, 0, 0, time.UTC)), ShouldBeTrue)
		})

		Convey("When the clock value is malformed", func() {
			at := NextOccurrence(now, Saturday, "garbage")
			So(at.Hour(), ShouldEqual, 12)
			So(at.Minute(), ShouldEqual, 0)
			So(at.Weekday(), ShouldEqual, time.Saturday)
		})
	})
}

func TestNewMatchID(t *testing.T) {
	Convey("Given fresh match ids", t, func() {
		a := NewMatchID()
		b := NewMatchID()
		So(a, ShouldNotBeEmpty)
		So(a, ShouldNotEqual, b)
	})
}
