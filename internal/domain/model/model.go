// Package model contains domain entities passed between layers.
package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Day is a day-of-week as submitted on availability slots.
type Day string

// Days of the week recognized on slots.
const (
	Monday    Day = "Monday"
	Tuesday   Day = "Tuesday"
	Wednesday Day = "Wednesday"
	Thursday  Day = "Thursday"
	Friday    Day = "Friday"
	Saturday  Day = "Saturday"
	Sunday    Day = "Sunday"
)

var dayOrder = map[Day]int{
	Monday:    0,
	Tuesday:   1,
	Wednesday: 2,
	Thursday:  3,
	Friday:    4,
	Saturday:  5,
	Sunday:    6,
}

// ParseDay validates a day-of-week string.
func ParseDay(s string) (Day, error) {
	d := Day(strings.TrimSpace(s))
	if _, ok := dayOrder[d]; !ok {
		return "", fmt.Errorf("unknown day: %q", s)
	}
	return d, nil
}

// Weekday maps a Day to time.Weekday.
func (d Day) Weekday() time.Weekday {
	// dayOrder is Monday-based; time.Weekday is Sunday-based.
	return time.Weekday((dayOrder[d] + 1) % 7)
}

// Activity is the kind of meetup a slot is offered for.
type Activity string

// Activities users can offer availability for.
const (
	Coffee Activity = "Coffee"
	Lunch  Activity = "Lunch"
	Sports Activity = "Sports"
	Study  Activity = "Study"
	Chat   Activity = "Chat"
)

var activities = map[Activity]struct{}{
	Coffee: {},
	Lunch:  {},
	Sports: {},
	Study:  {},
	Chat:   {},
}

// ParseActivity validates an activity string.
func ParseActivity(s string) (Activity, error) {
	a := Activity(strings.TrimSpace(s))
	if _, ok := activities[a]; !ok {
		return "", fmt.Errorf("unknown activity: %q", s)
	}
	return a, nil
}

// DefaultLocation returns the campus location suggested for an activity.
func DefaultLocation(a Activity) string {
	switch a {
	case Lunch:
		return "Mess"
	case Sports:
		return "Sports Complex"
	case Study:
		return "Library"
	default:
		return "CCD"
	}
}

// SlotStatus is the lifecycle state of an availability slot.
type SlotStatus string

// Slot lifecycle states. Transitions are monotone: Open -> Matched by the
// engine, Open -> Cancelled by the user. Matched and Cancelled are terminal.
const (
	StatusOpen      SlotStatus = "Open"
	StatusMatched   SlotStatus = "Matched"
	StatusCancelled SlotStatus = "Cancelled"
)

// Intent is the single declared intent tag on a profile.
type Intent string

// Intent categories offered at onboarding.
const (
	IntentCoFounder    Intent = "co-founder"
	IntentStudyPartner Intent = "study-partner"
	IntentCasualChat   Intent = "casual-chat"
	IntentSportsBuddy  Intent = "sports-buddy"
)

// User is read-only profile reference data keyed by user id. The engine never
// creates or mutates users; the identity collaborator owns them.
type User struct {
	ID        string
	FullName  string
	Email     string
	Program   string
	Year      int
	Section   string
	Interests []string
	Intent    Intent
	Bio       string
}

// AvailabilitySlot is a user-declared (day, time, activity) availability.
type AvailabilitySlot struct {
	ID        string
	UserID    string
	Day       Day
	Time      string // 24h "HH:MM"
	Activity  Activity
	Status    SlotStatus
	CreatedAt time.Time
}

// TupleKey identifies the (user, day, time, activity) tuple on which the
// at-most-one-Open-slot invariant holds.
func (s AvailabilitySlot) TupleKey() string {
	return s.UserID + "|" + string(s.Day) + "|" + s.Time + "|" + string(s.Activity)
}

// ParseClock validates a 24h "HH:MM" time-slot value and returns its parts.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time slot: %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid time slot: %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid time slot: %q", s)
	}
	return hour, minute, nil
}

// Match records one committed one-on-one meetup. Created exclusively by the
// commit writer and immutable afterwards.
type Match struct {
	ID          string
	CycleID     string
	User1ID     string
	User2ID     string
	Activity    Activity
	Location    string
	ScheduledAt time.Time
	Slot1ID     string
	Slot2ID     string
	Score       float64
	CreatedAt   time.Time
}

// NewMatchID returns a fresh match identifier.
func NewMatchID() string {
	return uuid.New().String()
}

// UserPair is an unordered pair of user ids in canonical order.
type UserPair struct {
	Low  string
	High string
}

// PairOf canonicalizes two user ids into a UserPair.
func PairOf(a, b string) UserPair {
	if a > b {
		a, b = b, a
	}
	return UserPair{Low: a, High: b}
}

// CycleReport summarizes one matching cycle run.
type CycleReport struct {
	CycleID         string
	SlotsIngested   int
	SlotsSkipped    int
	BucketsMatched  int
	MatchesCreated  int
	FallbackMatches int
	SlotsLeftOpen   int
	SkippedPairs    int
	Errors          []string
	Duration        time.Duration
}

// CycleIDForTime derives the weekly cycle id (ISO week) for a point in time.
func CycleIDForTime(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// NextOccurrence returns the first instant at or after now that falls on the
// given day at the given "HH:MM" clock time, in now's location. Malformed
// clock values fall back to noon.
func NextOccurrence(now time.Time, d Day, clock string) time.Time {
	hour, minute, err := ParseClock(clock)
	if err != nil {
		hour, minute = 12, 0
	}
	days := (int(d.Weekday()) - int(now.Weekday()) + 7) % 7
	candidate := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location()).AddDate(0, 0, days)
	if candidate.Before(now) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}
