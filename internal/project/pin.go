package project

import "slices"

// Assignment is the minimal view of an allocation needed to pin an activity.
type Assignment struct {
	ActivityID int
	Start      int
	Finish     int
	Resources  []int
}

// Pin returns a copy of activities fixed to the given assignments: each
// assigned activity's minimum earliest start becomes its allocated start and
// its targets become exactly the allocated resources. When history stretched
// an activity so that Finish-Start differs from its duration, the span is
// kept in ElapsedDuration. Computed fields are cleared. Activities without an
// assignment are copied unchanged.
func Pin(activities []Activity, assignments []Assignment) []Activity {
	byID := make(map[int]Assignment, len(assignments))
	for _, a := range assignments {
		byID[a.ActivityID] = a
	}

	out := make([]Activity, len(activities))
	for i, act := range activities {
		c := Clone(act)
		c.FreeSlack = nil
		c.EarliestStartTime = nil
		c.LatestFinishTime = nil
		if asg, ok := byID[act.ID]; ok {
			c.MinimumEarliestStartTime = IntPtr(asg.Start)
			c.MinimumEarliestStartDateTime = nil
			c.TargetResources = slices.Clone(asg.Resources)
			c.TargetResourceOperator = AND
			c.AllocatedToResources = slices.Clone(asg.Resources)
			c.ElapsedDuration = nil
			if span := asg.Finish - asg.Start; span != act.Duration {
				c.ElapsedDuration = IntPtr(span)
			}
		}
		out[i] = c
	}
	return out
}

// Clone deep-copies an activity's slices and pointers.
func Clone(a Activity) Activity {
	c := a
	c.Dependencies = slices.Clone(a.Dependencies)
	c.TargetResources = slices.Clone(a.TargetResources)
	c.TargetWorkStreams = slices.Clone(a.TargetWorkStreams)
	c.AllocatedToResources = slices.Clone(a.AllocatedToResources)
	c.FreeSlack = clonePtr(a.FreeSlack)
	c.EarliestStartTime = clonePtr(a.EarliestStartTime)
	c.LatestFinishTime = clonePtr(a.LatestFinishTime)
	c.MinimumFreeSlack = clonePtr(a.MinimumFreeSlack)
	c.MinimumEarliestStartTime = clonePtr(a.MinimumEarliestStartTime)
	c.MinimumEarliestStartDateTime = clonePtr(a.MinimumEarliestStartDateTime)
	c.MaximumLatestFinishTime = clonePtr(a.MaximumLatestFinishTime)
	c.MaximumLatestFinishDateTime = clonePtr(a.MaximumLatestFinishDateTime)
	c.ElapsedDuration = clonePtr(a.ElapsedDuration)
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
