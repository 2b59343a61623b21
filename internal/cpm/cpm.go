package cpm

import (
	"fmt"
	"sort"

	"github.com/joshharrison/loomplan/internal/graph"
	"github.com/joshharrison/loomplan/internal/project"
)

// Analyze performs critical path analysis on an activity network. Activities
// supply durations and constraints; any network node without a matching
// activity is treated as a zero-duration milestone.
func Analyze(g *graph.Network, activities []project.Activity, opts Options) (*Result, error) {
	byID := make(map[int]*project.Activity, len(activities))
	for i := range activities {
		byID[activities[i].ID] = &activities[i]
	}

	order := g.Order()
	result := &Result{
		Activities: make(map[int]*Schedule, len(order)),
		TopoOrder:  order,
	}

	// Initialize schedules
	buffer := make(map[int]int, len(order))
	for _, id := range order {
		ts := &Schedule{ActivityID: id}
		if a := byID[id]; a != nil {
			ts.Duration = a.Duration
			if a.ElapsedDuration != nil {
				ts.Duration = *a.ElapsedDuration
			}
			if a.MinimumFreeSlack != nil && *a.MinimumFreeSlack > 0 {
				buffer[id] = *a.MinimumFreeSlack
			}
		}
		result.Activities[id] = ts
	}

	// released is the time successors see an activity as finished.
	released := func(id int) int { return result.Activities[id].EF + buffer[id] }

	// Forward pass: compute ES and EF. combined keeps the precedence-only start
	// so the backward pass can tell which predecessors drive an OR-node.
	combined := make(map[int]int, len(order))
	for _, id := range order {
		ts := result.Activities[id]
		preds := g.Predecessors(id)
		finishes := make([]int, len(preds))
		for i, p := range preds {
			finishes[i] = released(p)
		}
		es, _ := g.Operator(id).Combine(finishes)
		combined[id] = es

		if a := byID[id]; a != nil {
			floor, ok, err := minimumStart(a, opts)
			if err != nil {
				return nil, err
			}
			if ok {
				es = max(es, floor)
			}
		}
		ts.ES = es
		ts.EF = es + ts.Duration
	}

	// Project horizon. Sinks decide it in AND-only networks; a predecessor an
	// OR-node does not wait for can finish later than every sink.
	horizon := 0
	for _, id := range order {
		horizon = max(horizon, released(id))
	}
	switch {
	case opts.Horizon != nil:
		horizon = *opts.Horizon
	case opts.MaxDate != nil:
		if opts.Calendar == nil {
			return nil, fmt.Errorf("project max date: %w", ErrNoCalendar)
		}
		horizon = opts.Calendar.ToUnit(*opts.MaxDate)
	}
	result.TotalDuration = horizon

	// Backward pass: compute LS and LF in reverse topological order.
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		ts := result.Activities[id]

		lf, bound := horizon, false
		for _, succ := range g.Successors(id) {
			s := result.Activities[succ]
			if g.Operator(succ) == project.OR && released(id) != combined[succ] {
				// Another predecessor satisfies this OR-node first.
				continue
			}
			if !bound || s.LS < lf {
				lf = s.LS
				bound = true
			}
		}

		if a := byID[id]; a != nil {
			ceiling, ok, err := maximumFinish(a, opts)
			if err != nil {
				return nil, err
			}
			if ok {
				lf = min(lf, ceiling)
			}
		}

		ts.LF = lf
		ts.LS = lf - ts.Duration
		ts.FreeSlack = ts.LF - ts.EF
		if ts.FreeSlack < 0 {
			return nil, &InfeasibleConstraintError{ActivityID: id, EarliestFinish: ts.EF, LatestFinish: ts.LF}
		}
	}

	// Critical activities carry the least slack in the network.
	if len(order) > 0 {
		result.MinSlack = result.Activities[order[0]].FreeSlack
		for _, id := range order {
			result.MinSlack = min(result.MinSlack, result.Activities[id].FreeSlack)
		}
	}
	for _, id := range order {
		ts := result.Activities[id]
		ts.IsCritical = ts.FreeSlack == result.MinSlack
		if ts.IsCritical {
			result.CriticalPath = append(result.CriticalPath, id)
		}
	}
	result.CriticalChain = criticalChain(g, result, released)

	if opts.Calendar != nil {
		for _, ts := range result.Activities {
			es := opts.Calendar.ToDate(ts.ES)
			lf := opts.Calendar.ToDate(ts.LF)
			ts.EarliestStartDate = &es
			ts.LatestFinishDate = &lf
		}
	}

	// Compute waves: group activities by earliest start time
	result.Waves = computeWaves(result)

	return result, nil
}

// minimumStart combines the time and date forms of the minimum earliest start;
// the later one wins.
func minimumStart(a *project.Activity, opts Options) (int, bool, error) {
	v, ok := 0, false
	if a.MinimumEarliestStartTime != nil {
		v, ok = *a.MinimumEarliestStartTime, true
	}
	if a.MinimumEarliestStartDateTime != nil {
		if opts.Calendar == nil {
			return 0, false, fmt.Errorf("activity %d minimum earliest start date: %w", a.ID, ErrNoCalendar)
		}
		d := opts.Calendar.ToUnit(*a.MinimumEarliestStartDateTime)
		if !ok || d > v {
			v = d
		}
		ok = true
	}
	return v, ok, nil
}

// maximumFinish combines the time and date forms of the maximum latest finish;
// the earlier one wins.
func maximumFinish(a *project.Activity, opts Options) (int, bool, error) {
	v, ok := 0, false
	if a.MaximumLatestFinishTime != nil {
		v, ok = *a.MaximumLatestFinishTime, true
	}
	if a.MaximumLatestFinishDateTime != nil {
		if opts.Calendar == nil {
			return 0, false, fmt.Errorf("activity %d maximum latest finish date: %w", a.ID, ErrNoCalendar)
		}
		d := opts.Calendar.ToUnit(*a.MaximumLatestFinishDateTime)
		if !ok || d < v {
			v = d
		}
		ok = true
	}
	return v, ok, nil
}

// criticalChain follows critical activities whose start is driven by the
// previous link, beginning at the first critical activity (in topological
// order) that no critical predecessor drives.
func criticalChain(g *graph.Network, result *Result, released func(int) int) []int {
	drives := func(from, to int) bool {
		return result.Activities[from].IsCritical && result.Activities[to].IsCritical &&
			released(from) == result.Activities[to].ES
	}

	start := -1
	found := false
	for _, id := range result.CriticalPath {
		driven := false
		for _, p := range g.Predecessors(id) {
			if drives(p, id) {
				driven = true
				break
			}
		}
		if !driven {
			start, found = id, true
			break
		}
	}
	if !found {
		return nil
	}

	chain := []int{start}
	for cur := start; ; {
		next, ok := 0, false
		for _, s := range g.Successors(cur) {
			if drives(cur, s) {
				next, ok = s, true
				break
			}
		}
		if !ok {
			return chain
		}
		chain = append(chain, next)
		cur = next
	}
}

// computeWaves groups activities by their earliest start time.
func computeWaves(result *Result) []Wave {
	// Group activities by ES
	esGroups := make(map[int][]int)
	for _, id := range result.TopoOrder {
		es := result.Activities[id].ES
		esGroups[es] = append(esGroups[es], id)
	}

	// Sort ES values
	esValues := make([]int, 0, len(esGroups))
	for es := range esGroups {
		esValues = append(esValues, es)
	}
	sort.Ints(esValues)

	waves := make([]Wave, len(esValues))
	for i, es := range esValues {
		ids := esGroups[es]
		sort.Ints(ids)

		hasCritical := false
		for _, id := range ids {
			result.Activities[id].Wave = i
			if result.Activities[id].IsCritical {
				hasCritical = true
			}
		}

		// Critical activities first within a wave
		sort.SliceStable(ids, func(a, b int) bool {
			return result.Activities[ids[a]].IsCritical && !result.Activities[ids[b]].IsCritical
		})

		waves[i] = Wave{
			Index:       i,
			ActivityIDs: ids,
			IsCritical:  hasCritical,
		}
	}

	return waves
}
