package allocator

import (
	"math"
	"slices"
	"sort"

	"github.com/joshharrison/loomplan/internal/cpm"
	"github.com/joshharrison/loomplan/internal/graph"
	"github.com/joshharrison/loomplan/internal/project"
	"github.com/joshharrison/loomplan/internal/tracker"
	"github.com/joshharrison/loomplan/internal/workstream"
)

// history is the pinned past of one activity, rebuilt from tracker entries.
type history struct {
	units     int
	first     int
	last      int // last time unit worked
	intervals []Interval
}

// Allocate assigns resources to every activity in the network, delaying starts
// where resources are contended. It never mutates its inputs. Failures for one
// activity do not stop independent activities; dependents of a failed
// activity fail with a BlockedError.
func Allocate(
	g *graph.Network,
	schedule *cpm.Result,
	activities []project.Activity,
	resources []project.Resource,
	classifier *workstream.Classifier,
	opts Options,
) *Allocation {
	if opts.MaxDeferral < 1 {
		opts.MaxDeferral = DefaultMaxDeferral
	}

	alloc := &Allocation{
		Assignments: make(map[int]*Assignment),
		usage:       make(map[cell]int),
		capacity:    make(map[int]int, len(resources)),
		noCost:      make(map[int]bool),
	}
	for _, r := range resources {
		alloc.capacity[r.ID] = r.Capacity()
	}

	byID := make(map[int]project.Activity, len(activities))
	for _, a := range activities {
		byID[a.ID] = a
		if a.HasNoCost {
			alloc.noCost[a.ID] = true
		}
	}

	past := replayHistory(alloc, opts)

	live := slices.DeleteFunc(slices.Clone(resources), func(r project.Resource) bool { return r.IsInactive })
	eligible := make(map[int][]project.Resource, len(activities))
	eligErr := make(map[int]error)
	for _, a := range activities {
		rs, err := eligibleResources(a, live, classifier)
		if err != nil {
			eligErr[a.ID] = err
			continue
		}
		eligible[a.ID] = rs
	}

	failed := make(map[int]error)
	for _, id := range processingOrder(g, eligible) {
		alloc.Order = append(alloc.Order, id)
		if err := eligErr[id]; err != nil {
			failed[id] = err
			continue
		}
		asg, err := place(alloc, g, schedule, byID, id, eligible[id], past[id], len(live) == 0, failed, opts)
		if err != nil {
			failed[id] = err
			continue
		}
		alloc.Assignments[id] = asg
	}

	for id, err := range failed {
		alloc.Failures = append(alloc.Failures, Failure{ActivityID: id, Err: err})
	}
	sort.Slice(alloc.Failures, func(i, j int) bool { return alloc.Failures[i].ActivityID < alloc.Failures[j].ActivityID })
	alloc.Incomplete = len(alloc.Failures) > 0
	return alloc
}

// replayHistory pins tracker entries before opts.Now onto the grid and groups
// them per activity into contiguous per-resource intervals.
func replayHistory(alloc *Allocation, opts Options) map[int]*history {
	entries := slices.Clone(opts.History)
	entries = slices.DeleteFunc(entries, func(e tracker.Entry) bool { return e.Time >= opts.Now })
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.ActivityID != b.ActivityID {
			return a.ActivityID < b.ActivityID
		}
		if a.ResourceID != b.ResourceID {
			return a.ResourceID < b.ResourceID
		}
		return a.Time < b.Time
	})

	past := make(map[int]*history)
	for _, e := range entries {
		alloc.reserve(e.ResourceID, e.Time, e.Time+1, e.Units)

		h := past[e.ActivityID]
		if h == nil {
			h = &history{first: e.Time, last: e.Time}
			past[e.ActivityID] = h
		}
		h.units += e.Units
		h.first = min(h.first, e.Time)
		h.last = max(h.last, e.Time)

		if n := len(h.intervals); n > 0 && h.intervals[n-1].ResourceID == e.ResourceID && h.intervals[n-1].End >= e.Time {
			h.intervals[n-1].End = max(h.intervals[n-1].End, e.Time+1)
			h.intervals[n-1].Units += e.Units
			continue
		}
		h.intervals = append(h.intervals, Interval{ResourceID: e.ResourceID, Start: e.Time, End: e.Time + 1, Units: e.Units, Historic: true})
	}
	return past
}

// eligibleResources applies the eligibility rules in order: explicit targets
// if any are named, otherwise every resource not reserved for explicit
// targeting; inactive resources are already gone; phase restrictions last.
// An AND requirement fails if any named target did not survive. The result is
// sorted by allocation order, then id.
func eligibleResources(a project.Activity, live []project.Resource, classifier *workstream.Classifier) ([]project.Resource, error) {
	var candidates []project.Resource
	for _, r := range live {
		if len(a.TargetResources) > 0 {
			if slices.Contains(a.TargetResources, r.ID) {
				candidates = append(candidates, r)
			}
		} else if !r.IsExplicitTarget {
			candidates = append(candidates, r)
		}
	}

	if classifier != nil {
		var err error
		if candidates, err = classifier.EligibleResources(a, candidates); err != nil {
			return nil, err
		}
	}

	// AND needs every named target; losing one makes the requirement
	// unsatisfiable rather than smaller.
	if a.TargetResourceOperator == project.AND && len(a.TargetResources) > 0 {
		var missing []int
		for _, id := range a.TargetResources {
			if !slices.ContainsFunc(candidates, func(r project.Resource) bool { return r.ID == id }) {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			slices.Sort(missing)
			return nil, &NoEligibleResourceError{
				ActivityID: a.ID,
				Targets:    slices.Clone(a.TargetResources),
				Operator:   project.AND,
				Missing:    slices.Compact(missing),
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].AllocationOrder != candidates[j].AllocationOrder {
			return candidates[i].AllocationOrder < candidates[j].AllocationOrder
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates, nil
}

// processingOrder is a Kahn traversal of the network whose ready set is
// ordered by the allocation order of each activity's most-preferred eligible
// resource, then by activity id.
func processingOrder(g *graph.Network, eligible map[int][]project.Resource) []int {
	preferred := func(id int) int {
		if rs := eligible[id]; len(rs) > 0 {
			return rs[0].AllocationOrder
		}
		return math.MaxInt
	}
	less := func(a, b int) bool {
		pa, pb := preferred(a), preferred(b)
		if pa != pb {
			return pa < pb
		}
		return a < b
	}

	inDegree := make(map[int]int, g.Len())
	var ready []int
	for _, id := range g.Order() {
		inDegree[id] = len(g.Predecessors(id))
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return less(ready[i], ready[j]) })

	order := make([]int, 0, g.Len())
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		for _, s := range g.Successors(id) {
			inDegree[s]--
			if inDegree[s] == 0 {
				ready = append(ready, s)
			}
		}
		sort.Slice(ready, func(i, j int) bool { return less(ready[i], ready[j]) })
	}
	return order
}

// place computes one activity's assignment and reserves its capacity.
func place(
	alloc *Allocation,
	g *graph.Network,
	schedule *cpm.Result,
	byID map[int]project.Activity,
	id int,
	eligible []project.Resource,
	past *history,
	unresourced bool,
	failed map[int]error,
	opts Options,
) (*Assignment, error) {
	a := byID[id]
	es := 0
	if ts := schedule.Activities[id]; ts != nil {
		es = ts.ES
	}

	done := 0
	if past != nil {
		done = past.units
	}
	remaining := max(a.Duration-done, 0)

	// Finished: history is the whole story.
	if past != nil && remaining == 0 {
		return newAssignment(id, past.first, past.last+1, es, 0, past.intervals), nil
	}

	start, err := precedenceStart(g, alloc, byID, id, failed)
	if err != nil {
		return nil, err
	}
	// Deferral is bounded from the earliest start the activity could have
	// had without contention, not from where precedence pushed it.
	base := es
	if remaining > 0 {
		base = max(base, opts.Now)
	}
	start = max(start, base)

	var planned []Interval
	switch {
	case remaining == 0:
		// Milestone: no work, no resources.
	case unresourced && len(a.TargetResources) == 0:
		// Nothing to allocate from; schedule on precedence alone.
	case len(eligible) == 0:
		return nil, &NoEligibleResourceError{ActivityID: id, Targets: slices.Clone(a.TargetResources), Operator: a.TargetResourceOperator}
	default:
		// The resource operator combines named targets; without targets any
		// single eligible resource will do.
		op := a.TargetResourceOperator
		if len(a.TargetResources) == 0 {
			op = project.OR
		}
		var chosen []int
		start, chosen, err = search(alloc, id, base, start, remaining, eligible, op, opts.MaxDeferral)
		if err != nil {
			return nil, err
		}
		for _, r := range chosen {
			alloc.reserve(r, start, start+remaining, 1)
			planned = append(planned, Interval{ResourceID: r, Start: start, End: start + remaining})
		}
	}

	first := start
	var intervals []Interval
	if past != nil {
		first = min(first, past.first)
		intervals = append(intervals, past.intervals...)
	}
	intervals = append(intervals, planned...)
	return newAssignment(id, first, start+remaining, es, remaining, intervals), nil
}

// precedenceStart combines the release times of allocated predecessors with
// the activity's operator. AND-nodes need every predecessor; OR-nodes need at
// least one.
func precedenceStart(g *graph.Network, alloc *Allocation, byID map[int]project.Activity, id int, failed map[int]error) (int, error) {
	preds := g.Predecessors(id)
	op := g.Operator(id)

	var finishes []int
	var blocker int
	var cause error
	for _, p := range preds {
		asg, ok := alloc.Assignments[p]
		if !ok {
			if cause == nil {
				blocker, cause = p, failed[p]
			}
			continue
		}
		release := asg.Finish
		if m := byID[p].MinimumFreeSlack; m != nil && *m > 0 {
			release += *m
		}
		finishes = append(finishes, release)
	}

	if cause != nil && (op == project.AND || len(finishes) == 0) {
		return 0, &BlockedError{ActivityID: id, Predecessor: blocker, Cause: cause}
	}
	start, _ := op.Combine(finishes)
	return start, nil
}

// search finds the first time unit in [start, base+limit) at which the
// requirement holds for the full duration. AND needs every eligible resource;
// OR takes the first free one in allocation order.
func search(alloc *Allocation, id, base, start, duration int, eligible []project.Resource, op project.LogicalOperator, limit int) (int, []int, error) {
	for t := start; t < base+limit; t++ {
		if op == project.OR {
			for _, r := range eligible {
				if alloc.free(r.ID, t, t+duration) {
					return t, []int{r.ID}, nil
				}
			}
			continue
		}

		all := true
		for _, r := range eligible {
			if !alloc.free(r.ID, t, t+duration) {
				all = false
				break
			}
		}
		if all {
			ids := make([]int, len(eligible))
			for i, r := range eligible {
				ids[i] = r.ID
			}
			return t, ids, nil
		}
	}
	return 0, nil, &UnboundedDeferralError{ActivityID: id, From: base, Limit: limit}
}

func newAssignment(id, start, finish, es, remaining int, intervals []Interval) *Assignment {
	var rs []int
	for _, iv := range intervals {
		rs = append(rs, iv.ResourceID)
	}
	sort.Ints(rs)
	return &Assignment{
		ActivityID: id,
		Start:      start,
		Finish:     finish,
		Resources:  slices.Compact(rs),
		Intervals:  intervals,
		Remaining:  remaining,
		Deferral:   start - es,
	}
}
