// Package bucket partitions validated candidates into the pools the matcher
// works on. Only users free at the same day/time/activity can meet, so the
// exact key is that triple; the fallback key relaxes the time component to
// raise match yield for slots left over by the exact pass.
package bucket

import (
	"sort"

	"github.com/iimb-synergy/synapse/internal/domain/ingest"
	"github.com/iimb-synergy/synapse/internal/domain/model"
)

// Key identifies a pool. Time is empty on fallback pools.
type Key struct {
	Day      model.Day
	Time     string
	Activity model.Activity
}

// String renders the key for logs and reports.
func (k Key) String() string {
	if k.Time == "" {
		return string(k.Day) + "/" + string(k.Activity)
	}
	return string(k.Day) + " " + k.Time + "/" + string(k.Activity)
}

// Bucket is one independent matching pool. No two buckets from the same
// partition share a slot or a user, which is what makes parallel bucket
// processing safe.
type Bucket struct {
	Key        Key
	Candidates []ingest.Candidate
	// Fallback marks pools built with the relaxed (day, activity) key.
	Fallback bool
}

// Exact partitions candidates by (day, time, activity). Pools with fewer
// than two candidates are dropped; their slots simply stay Open. Buckets
// and candidates come out in deterministic order (key asc, slot id asc).
func Exact(candidates []ingest.Candidate) []Bucket {
	return partition(candidates, false)
}

// Fallback partitions candidates by (day, activity) only. It runs after all
// exact pools have completed, over slots still Open. Because the key is
// relaxed, one user can show up with several slots in a pool; a user cannot
// meet themselves, so all of that user's slots are excluded from the pool.
func Fallback(candidates []ingest.Candidate) []Bucket {
	return partition(candidates, true)
}

func partition(candidates []ingest.Candidate, fallback bool) []Bucket {
	groups := make(map[Key][]ingest.Candidate)
	for _, c := range candidates {
		k := Key{Day: c.Slot.Day, Activity: c.Slot.Activity}
		if !fallback {
			k.Time = c.Slot.Time
		}
		groups[k] = append(groups[k], c)
	}

	keys := make([]Key, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return less(keys[i], keys[j]) })

	var out []Bucket
	for _, k := range keys {
		pool := excludeRepeatedUsers(groups[k])
		if len(pool) < 2 {
			continue
		}
		sort.Slice(pool, func(i, j int) bool { return pool[i].Slot.ID < pool[j].Slot.ID })
		out = append(out, Bucket{Key: k, Candidates: pool, Fallback: fallback})
	}
	return out
}

// excludeRepeatedUsers drops every slot of any user holding more than one
// slot in the pool. Impossible under the exact key (the ingestor rejects
// duplicate tuples) but routine under the relaxed fallback key.
func excludeRepeatedUsers(pool []ingest.Candidate) []ingest.Candidate {
	count := make(map[string]int, len(pool))
	for _, c := range pool {
		count[c.Slot.UserID]++
	}
	out := make([]ingest.Candidate, 0, len(pool))
	for _, c := range pool {
		if count[c.Slot.UserID] == 1 {
			out = append(out, c)
		}
	}
	return out
}

func less(a, b Key) bool {
	if a.Day != b.Day {
		return dayRank(a.Day) < dayRank(b.Day)
	}
	if a.Time != b.Time {
		return a.Time < b.Time
	}
	return a.Activity < b.Activity
}

func dayRank(d model.Day) int {
	// Monday-first ordering, matching how members read a week.
	order := [...]model.Day{model.Monday, model.Tuesday, model.Wednesday, model.Thursday, model.Friday, model.Saturday, model.Sunday}
	for i, v := range order {
		if v == d {
			return i
		}
	}
	return len(order)
}
