package tracker

import (
	"fmt"
	"sort"
	"sync"

	"github.com/joshharrison/loomplan/internal/project"
)

type slot struct {
	time, resource int
}

// Ledger is the append-only record of completed work. Writes are serialized;
// reads may run concurrently with each other.
type Ledger struct {
	mu       sync.RWMutex
	capacity map[int]int // resource id -> units per time unit
	plans    map[int]Plan
	entries  []Entry
	used     map[slot]int // (time, resource) -> units recorded
	done     map[int]int  // activity id -> units recorded
}

// NewLedger creates an empty ledger for the given resources and activity plans.
func NewLedger(resources []project.Resource, plans []Plan) *Ledger {
	l := &Ledger{
		capacity: make(map[int]int, len(resources)),
		plans:    make(map[int]Plan, len(plans)),
		used:     make(map[slot]int),
		done:     make(map[int]int),
	}
	for _, r := range resources {
		l.capacity[r.ID] = r.Capacity()
	}
	for _, p := range plans {
		l.plans[p.ActivityID] = p
	}
	return l
}

// PlansFor derives unscheduled plans from activity durations.
func PlansFor(activities []project.Activity) []Plan {
	out := make([]Plan, len(activities))
	for i, a := range activities {
		out[i] = Plan{ActivityID: a.ID, Duration: a.Duration}
	}
	return out
}

// FromTrackers rebuilds a ledger from snapshot trackers. Entries are restored
// as history: capacity is re-checked, completion is not.
func FromTrackers(resources []project.Resource, plans []Plan, trackers []project.ResourceTracker) (*Ledger, error) {
	var entries []Entry
	for _, rt := range trackers {
		for _, at := range rt.ActivityTrackers {
			entries = append(entries, Entry{Time: rt.Time, ResourceID: rt.ResourceID, ActivityID: at.ActivityID, Units: at.Units})
		}
	}
	return Restore(resources, plans, entries)
}

// Restore rebuilds a ledger from previously recorded entries, re-checking
// capacity but not completion.
func Restore(resources []project.Resource, plans []Plan, entries []Entry) (*Ledger, error) {
	l := NewLedger(resources, plans)
	for _, e := range entries {
		if err := l.record(e, false); err != nil {
			return nil, fmt.Errorf("restore entry: %w", err)
		}
	}
	return l, nil
}

// Record appends an entry. The insertion is all-or-nothing: on error the
// ledger is unchanged.
func (l *Ledger) Record(e Entry) error {
	return l.record(e, true)
}

func (l *Ledger) record(e Entry, checkCompletion bool) error {
	if e.Time < 0 || e.Units <= 0 {
		return fmt.Errorf("%w: %+v", ErrInvalidEntry, e)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	capacity, ok := l.capacity[e.ResourceID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownResource, e.ResourceID)
	}
	plan, ok := l.plans[e.ActivityID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownActivity, e.ActivityID)
	}

	key := slot{e.Time, e.ResourceID}
	if used := l.used[key]; used+e.Units > capacity {
		return &CapacityExceededError{
			Time:       e.Time,
			ResourceID: e.ResourceID,
			ActivityID: e.ActivityID,
			Requested:  e.Units,
			Used:       used,
			Capacity:   capacity,
		}
	}

	completed := l.done[e.ActivityID] + e.Units
	if checkCompletion && completed > plan.Duration {
		if plan.ScheduledFinish == nil || e.Time < *plan.ScheduledFinish {
			return &OverCompletionError{
				ActivityID:      e.ActivityID,
				Time:            e.Time,
				Duration:        plan.Duration,
				Completed:       completed,
				ScheduledFinish: plan.ScheduledFinish,
			}
		}
	}

	l.used[key] += e.Units
	l.done[e.ActivityID] = completed
	l.entries = append(l.entries, e)
	return nil
}

// Remaining returns the activity's duration minus units recorded before asOf,
// floored at zero.
func (l *Ledger) Remaining(activityID, asOf int) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	plan, ok := l.plans[activityID]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownActivity, activityID)
	}
	return max(plan.Duration-l.completedLocked(activityID, asOf), 0), nil
}

// Completed returns the units recorded for the activity before asOf.
func (l *Ledger) Completed(activityID, asOf int) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.completedLocked(activityID, asOf)
}

func (l *Ledger) completedLocked(activityID, asOf int) int {
	total := 0
	for _, e := range l.entries {
		if e.ActivityID == activityID && e.Time < asOf {
			total += e.Units
		}
	}
	return total
}

// Usage returns the units recorded for a resource in one time unit.
func (l *Ledger) Usage(time, resourceID int) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.used[slot{time, resourceID}]
}

// Entries returns a copy of the ledger ordered by time, resource, activity.
func (l *Ledger) Entries() []Entry {
	return l.EntriesBefore(-1)
}

// EntriesBefore returns the ordered entries with Time < t. A negative t
// returns every entry.
func (l *Ledger) EntriesBefore(t int) []Entry {
	l.mu.RLock()
	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		if t < 0 || e.Time < t {
			out = append(out, e)
		}
	}
	l.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		if a.ResourceID != b.ResourceID {
			return a.ResourceID < b.ResourceID
		}
		return a.ActivityID < b.ActivityID
	})
	return out
}

// Trackers groups the ledger into snapshot form, one tracker per
// (time, resource), with per-activity units summed.
func (l *Ledger) Trackers() []project.ResourceTracker {
	var out []project.ResourceTracker
	for _, e := range l.Entries() {
		n := len(out)
		if n == 0 || out[n-1].Time != e.Time || out[n-1].ResourceID != e.ResourceID {
			out = append(out, project.ResourceTracker{Time: e.Time, ResourceID: e.ResourceID})
			n++
		}
		rt := &out[n-1]
		if k := len(rt.ActivityTrackers); k > 0 && rt.ActivityTrackers[k-1].ActivityID == e.ActivityID {
			rt.ActivityTrackers[k-1].Units += e.Units
			continue
		}
		rt.ActivityTrackers = append(rt.ActivityTrackers, project.ActivityTracker{ActivityID: e.ActivityID, Units: e.Units})
	}
	return out
}

// Rebase replaces the activity plans, typically with scheduled finishes from
// the latest computation. Recorded entries are kept.
func (l *Ledger) Rebase(plans []Plan) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range plans {
		l.plans[p.ActivityID] = p
	}
}

// Len returns the number of recorded entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
