// Package workstream groups activities into work streams and phases and
// narrows the resources an activity may use to those serving its phases.
package workstream

import (
	"fmt"
	"slices"
	"sort"

	"github.com/joshharrison/loomplan/internal/project"
)

// UnknownWorkStreamError reports an activity targeting an undefined work stream.
type UnknownWorkStreamError struct {
	ActivityID   int
	WorkStreamID int
}

func (e *UnknownWorkStreamError) Error() string {
	return fmt.Sprintf("activity %d targets unknown work stream %d", e.ActivityID, e.WorkStreamID)
}

// Classifier is an immutable lookup over the defined work streams.
type Classifier struct {
	streams map[int]project.WorkStream
}

// NewClassifier indexes the given work streams.
func NewClassifier(streams []project.WorkStream) *Classifier {
	c := &Classifier{streams: make(map[int]project.WorkStream, len(streams))}
	for _, ws := range streams {
		c.streams[ws.ID] = ws
	}
	return c
}

// Classify returns the activity's work-stream ids in ascending order.
func (c *Classifier) Classify(a project.Activity) ([]int, error) {
	out := make([]int, 0, len(a.TargetWorkStreams))
	for _, id := range a.TargetWorkStreams {
		if _, ok := c.streams[id]; !ok {
			return nil, &UnknownWorkStreamError{ActivityID: a.ID, WorkStreamID: id}
		}
		out = append(out, id)
	}
	sort.Ints(out)
	return slices.Compact(out), nil
}

// Phases returns the subset of the activity's work streams that are phases.
func (c *Classifier) Phases(a project.Activity) ([]int, error) {
	ids, err := c.Classify(a)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(ids, func(id int) bool { return !c.streams[id].IsPhase }), nil
}

// Validate classifies every activity and returns the first failure.
func (c *Classifier) Validate(activities []project.Activity) error {
	for _, a := range activities {
		if _, err := c.Classify(a); err != nil {
			return err
		}
	}
	return nil
}

// ClassifyAll groups activity ids by work stream for reporting. Every defined
// stream gets an entry, possibly empty.
func (c *Classifier) ClassifyAll(activities []project.Activity) (map[int][]int, error) {
	groups := make(map[int][]int, len(c.streams))
	for id := range c.streams {
		groups[id] = []int{}
	}
	for _, a := range activities {
		ids, err := c.Classify(a)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			groups[id] = append(groups[id], a.ID)
		}
	}
	for id := range groups {
		sort.Ints(groups[id])
	}
	return groups, nil
}

// EligibleResources filters resources by the activity's phase targets. With no
// phase targets every resource passes. A resource with no phase restriction
// serves every phase; otherwise the activity's work-stream operator decides
// whether the resource must serve all targeted phases (AND) or any one (OR).
func (c *Classifier) EligibleResources(a project.Activity, resources []project.Resource) ([]project.Resource, error) {
	phases, err := c.Phases(a)
	if err != nil {
		return nil, err
	}
	if len(phases) == 0 {
		return slices.Clone(resources), nil
	}

	var out []project.Resource
	for _, r := range resources {
		if servesPhases(r, phases, a.TargetWorkStreamOperator) {
			out = append(out, r)
		}
	}
	return out, nil
}

func servesPhases(r project.Resource, phases []int, op project.LogicalOperator) bool {
	if len(r.Phases) == 0 {
		return true
	}
	for _, p := range phases {
		has := slices.Contains(r.Phases, p)
		if op == project.OR && has {
			return true
		}
		if op == project.AND && !has {
			return false
		}
	}
	return op == project.AND
}
