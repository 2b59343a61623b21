package allocator

import (
	"fmt"
	"sort"

	"github.com/joshharrison/loomplan/internal/project"
)

type cell struct {
	resource, time int
}

// free reports whether resource r has a spare unit at every time in [from, to).
func (a *Allocation) free(r, from, to int) bool {
	c := a.capacity[r]
	for t := from; t < to; t++ {
		if a.usage[cell{r, t}] >= c {
			return false
		}
	}
	return true
}

func (a *Allocation) reserve(r, from, to, units int) {
	for t := from; t < to; t++ {
		a.usage[cell{r, t}] += units
	}
}

// Usage returns the units of resource r committed at time t, history included.
func (a *Allocation) Usage(r, t int) int {
	return a.usage[cell{r, t}]
}

// Capacity returns the per-time-unit capacity of resource r.
func (a *Allocation) Capacity(r int) int {
	return a.capacity[r]
}

// Verify checks that no resource is committed beyond its capacity at any
// time unit. Over-commitment can only come from inconsistent history.
func (a *Allocation) Verify() error {
	cells := make([]cell, 0, len(a.usage))
	for c := range a.usage {
		cells = append(cells, c)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].resource != cells[j].resource {
			return cells[i].resource < cells[j].resource
		}
		return cells[i].time < cells[j].time
	})
	for _, c := range cells {
		if used := a.usage[c]; used > a.capacity[c.resource] {
			return fmt.Errorf("resource %d at time %d: %d units committed, capacity %d",
				c.resource, c.time, used, a.capacity[c.resource])
		}
	}
	return nil
}

// Cost totals unit cost over the work units of every assigned interval,
// skipping activities flagged HasNoCost.
func (a *Allocation) Cost(resources []project.Resource) float64 {
	unit := make(map[int]float64, len(resources))
	for _, r := range resources {
		unit[r.ID] = r.UnitCost
	}
	total := 0.0
	for id, asg := range a.Assignments {
		if a.noCost[id] {
			continue
		}
		for _, iv := range asg.Intervals {
			total += float64(iv.WorkUnits()) * unit[iv.ResourceID]
		}
	}
	return total
}

// Pinned converts the assignments into the form project.Pin expects, ordered
// by activity id.
func (a *Allocation) Pinned() []project.Assignment {
	out := make([]project.Assignment, 0, len(a.Assignments))
	for _, asg := range a.Assignments {
		out = append(out, project.Assignment{ActivityID: asg.ActivityID, Start: asg.Start, Finish: asg.Finish, Resources: asg.Resources})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ActivityID < out[j].ActivityID })
	return out
}
