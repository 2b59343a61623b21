package tracker

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownActivity indicates an entry or query for an activity the ledger has no plan for.
	ErrUnknownActivity = errors.New("unknown activity")
	// ErrUnknownResource indicates an entry for a resource the ledger does not know.
	ErrUnknownResource = errors.New("unknown resource")
	// ErrInvalidEntry indicates an entry with a negative time or non-positive units.
	ErrInvalidEntry = errors.New("invalid tracker entry")
)

// Entry records work units a resource completed on an activity in one time unit.
type Entry struct {
	Time       int `json:"time"`
	ResourceID int `json:"resource_id"`
	ActivityID int `json:"activity_id"`
	Units      int `json:"units"`
}

// Plan is what the ledger needs to know about an activity to validate progress.
type Plan struct {
	ActivityID      int  `json:"activity_id"`
	Duration        int  `json:"duration"`
	ScheduledFinish *int `json:"scheduled_finish,omitempty"`
}

// CapacityExceededError reports an entry that would push a resource past its
// capacity in one time unit.
type CapacityExceededError struct {
	Time       int
	ResourceID int
	ActivityID int
	Requested  int
	Used       int
	Capacity   int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("resource %d at time %d: %d units for activity %d on top of %d exceeds capacity %d",
		e.ResourceID, e.Time, e.Requested, e.ActivityID, e.Used, e.Capacity)
}

// OverCompletionError reports progress beyond an activity's duration recorded
// before the activity was scheduled to finish.
type OverCompletionError struct {
	ActivityID      int
	Time            int
	Duration        int
	Completed       int // total units including the rejected entry
	ScheduledFinish *int
}

func (e *OverCompletionError) Error() string {
	finish := "unscheduled"
	if e.ScheduledFinish != nil {
		finish = fmt.Sprintf("scheduled to finish at %d", *e.ScheduledFinish)
	}
	return fmt.Sprintf("activity %d at time %d: %d units completed exceeds duration %d (%s)",
		e.ActivityID, e.Time, e.Completed, e.Duration, finish)
}
