package allocator

import (
	"fmt"

	"github.com/joshharrison/loomplan/internal/project"
	"github.com/joshharrison/loomplan/internal/tracker"
)

// DefaultMaxDeferral bounds how far past its earliest start an activity's
// start may be searched for.
const DefaultMaxDeferral = 10000

// Options tunes an allocation run.
type Options struct {
	// Now is the first time unit that may be re-planned. Earlier units are
	// history and come only from the tracker entries.
	Now int
	// History holds tracker entries; only those before Now are used.
	History []tracker.Entry
	// MaxDeferral caps how far past the later of its critical-path earliest
	// start and Now an activity may start; values < 1 use DefaultMaxDeferral.
	MaxDeferral int
}

// Interval is one resource working on an activity over [Start, End). Planned
// intervals use one unit per time unit; historic ones carry the recorded
// total in Units.
type Interval struct {
	ResourceID int  `json:"resource_id"`
	Start      int  `json:"start"`
	End        int  `json:"end"`
	Units      int  `json:"units,omitempty"`
	Historic   bool `json:"historic,omitempty"`
}

// WorkUnits is the work the interval stands for.
func (iv Interval) WorkUnits() int {
	if iv.Historic {
		return iv.Units
	}
	return iv.End - iv.Start
}

// Assignment is the resource-feasible placement of one activity.
type Assignment struct {
	ActivityID int        `json:"activity_id"`
	Start      int        `json:"start"`
	Finish     int        `json:"finish"`
	Resources  []int      `json:"resources"`
	Intervals  []Interval `json:"intervals"`
	Remaining  int        `json:"remaining"` // units planned from Now on
	Deferral   int        `json:"deferral"`  // Start minus the unconstrained earliest start
}

// Failure pairs an activity with the reason it could not be allocated.
type Failure struct {
	ActivityID int
	Err        error
}

// Allocation is the outcome of one allocator run.
type Allocation struct {
	Assignments map[int]*Assignment
	Order       []int // processing order
	Failures    []Failure
	Incomplete  bool

	usage    map[cell]int
	capacity map[int]int
	noCost   map[int]bool
}

// NoEligibleResourceError reports an activity whose resource requirement no
// live resource can meet.
type NoEligibleResourceError struct {
	ActivityID int
	Targets    []int
	Operator   project.LogicalOperator
	Missing    []int // AND targets that are unknown, inactive or filtered out
}

func (e *NoEligibleResourceError) Error() string {
	if len(e.Targets) == 0 {
		return fmt.Sprintf("activity %d: no eligible resource", e.ActivityID)
	}
	if len(e.Missing) > 0 {
		return fmt.Sprintf("activity %d: targets %v unavailable for AND requirement %v", e.ActivityID, e.Missing, e.Targets)
	}
	return fmt.Sprintf("activity %d: no eligible resource among targets %v (%s)", e.ActivityID, e.Targets, e.Operator)
}

// UnboundedDeferralError reports an activity that found no feasible start
// within Limit units of From, its uncontended earliest start.
type UnboundedDeferralError struct {
	ActivityID int
	From       int
	Limit      int
}

func (e *UnboundedDeferralError) Error() string {
	return fmt.Sprintf("activity %d: no feasible start in [%d, %d)", e.ActivityID, e.From, e.From+e.Limit)
}

// BlockedError reports an activity left unallocated because a predecessor it
// waits for could not be allocated.
type BlockedError struct {
	ActivityID  int
	Predecessor int
	Cause       error
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("activity %d: predecessor %d unallocated: %v", e.ActivityID, e.Predecessor, e.Cause)
}

func (e *BlockedError) Unwrap() error { return e.Cause }
