package cpm

import (
	"errors"
	"fmt"
	"time"

	"github.com/joshharrison/loomplan/internal/calendar"
)

// ErrNoCalendar is returned when a date constraint is set but no calendar was
// supplied to convert it.
var ErrNoCalendar = errors.New("date constraint requires a calendar")

// Options tunes an analysis.
type Options struct {
	// Calendar converts date constraints to time units. Optional unless
	// activities carry date constraints or MaxDate is set.
	Calendar calendar.Converter
	// Horizon overrides the computed project finish.
	Horizon *int
	// MaxDate overrides the computed project finish via Calendar.
	MaxDate *time.Time
}

// Result holds the complete critical path analysis.
type Result struct {
	Activities    map[int]*Schedule
	CriticalPath  []int // critical activity ids in topological order
	CriticalChain []int // one contiguous critical chain, start to end
	TotalDuration int   // project horizon
	MinSlack      int
	Waves         []Wave // parallelizable groups
	TopoOrder     []int
}

// Schedule holds the computed times for a single activity.
type Schedule struct {
	ActivityID int
	Duration   int
	ES, EF     int // earliest start/finish
	LS, LF     int // latest start/finish
	FreeSlack  int
	IsCritical bool
	Wave       int // which parallel wave this belongs to

	EarliestStartDate *time.Time
	LatestFinishDate  *time.Time
}

// Wave represents a group of activities sharing an earliest start.
type Wave struct {
	Index       int
	ActivityIDs []int
	IsCritical  bool // true if wave contains critical path activities
}

// InfeasibleConstraintError reports an activity whose constraints leave it
// less time than its duration requires.
type InfeasibleConstraintError struct {
	ActivityID     int
	EarliestFinish int
	LatestFinish   int
}

func (e *InfeasibleConstraintError) Error() string {
	return fmt.Sprintf("activity %d: earliest finish %d exceeds latest finish %d",
		e.ActivityID, e.EarliestFinish, e.LatestFinish)
}
