package project

import (
	"fmt"
	"strings"
	"time"
)

// LogicalOperator combines a set of inputs: precedence edges, target
// resources or target work streams.
type LogicalOperator int

const (
	AND LogicalOperator = iota
	OR
)

// String implements fmt.Stringer.
func (op LogicalOperator) String() string {
	if op == OR {
		return "OR"
	}
	return "AND"
}

// Combine folds values with the operator: AND takes the maximum (all inputs
// must be satisfied), OR the minimum (any input suffices). ok is false when
// values is empty.
func (op LogicalOperator) Combine(values []int) (v int, ok bool) {
	for i, x := range values {
		if i == 0 {
			v = x
			continue
		}
		if op == OR {
			v = min(v, x)
		} else {
			v = max(v, x)
		}
	}
	return v, len(values) > 0
}

// MarshalText implements encoding.TextMarshaler so snapshots carry "AND"/"OR".
func (op LogicalOperator) MarshalText() ([]byte, error) {
	return []byte(op.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (op *LogicalOperator) UnmarshalText(b []byte) error {
	switch strings.ToUpper(strings.TrimSpace(string(b))) {
	case "", "AND":
		*op = AND
	case "OR":
		*op = OR
	default:
		return fmt.Errorf("unknown logical operator %q", string(b))
	}
	return nil
}

// InterActivityAllocationType controls whether one resource can serve several
// concurrently running activities.
type InterActivityAllocationType int

const (
	AllocationNone InterActivityAllocationType = iota // exclusive
	AllocationShared
)

// String implements fmt.Stringer.
func (t InterActivityAllocationType) String() string {
	if t == AllocationShared {
		return "Shared"
	}
	return "None"
}

// MarshalText implements encoding.TextMarshaler.
func (t InterActivityAllocationType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *InterActivityAllocationType) UnmarshalText(b []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(b))) {
	case "", "none", "exclusive":
		*t = AllocationNone
	case "shared", "indirect":
		*t = AllocationShared
	default:
		return fmt.Errorf("unknown inter-activity allocation type %q", string(b))
	}
	return nil
}

// ColorFormat is display-only metadata carried through untouched.
type ColorFormat struct {
	A uint8 `json:"a" yaml:"a"`
	R uint8 `json:"r" yaml:"r"`
	G uint8 `json:"g" yaml:"g"`
	B uint8 `json:"b" yaml:"b"`
}

// Activity is a schedulable unit of work. The pointer fields below Duration
// are either caller-supplied constraints (Minimum*/Maximum*) or computed
// output (FreeSlack, EarliestStartTime, LatestFinishTime); computed fields are
// nil until the engine has run.
type Activity struct {
	ID                       int             `json:"id" yaml:"id"`
	Name                     string          `json:"name" yaml:"name"`
	Notes                    string          `json:"notes,omitempty" yaml:"notes,omitempty"`
	Dependencies             []int           `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	DependencyOperator       LogicalOperator `json:"dependency_operator" yaml:"dependency_operator"`
	TargetResources          []int           `json:"target_resources,omitempty" yaml:"target_resources,omitempty"`
	TargetResourceOperator   LogicalOperator `json:"target_resource_operator" yaml:"target_resource_operator"`
	TargetWorkStreams        []int           `json:"target_work_streams,omitempty" yaml:"target_work_streams,omitempty"`
	TargetWorkStreamOperator LogicalOperator `json:"target_work_stream_operator" yaml:"target_work_stream_operator"`
	AllocatedToResources     []int           `json:"allocated_to_resources,omitempty" yaml:"allocated_to_resources,omitempty"`
	CanBeRemoved             bool            `json:"can_be_removed" yaml:"can_be_removed"`
	HasNoCost                bool            `json:"has_no_cost" yaml:"has_no_cost"`
	Duration                 int             `json:"duration" yaml:"duration"`

	FreeSlack                    *int       `json:"free_slack,omitempty" yaml:"free_slack,omitempty"`
	EarliestStartTime            *int       `json:"earliest_start_time,omitempty" yaml:"earliest_start_time,omitempty"`
	LatestFinishTime             *int       `json:"latest_finish_time,omitempty" yaml:"latest_finish_time,omitempty"`
	MinimumFreeSlack             *int       `json:"minimum_free_slack,omitempty" yaml:"minimum_free_slack,omitempty"`
	MinimumEarliestStartTime     *int       `json:"minimum_earliest_start_time,omitempty" yaml:"minimum_earliest_start_time,omitempty"`
	MinimumEarliestStartDateTime *time.Time `json:"minimum_earliest_start_date_time,omitempty" yaml:"minimum_earliest_start_date_time,omitempty"`
	MaximumLatestFinishTime      *int       `json:"maximum_latest_finish_time,omitempty" yaml:"maximum_latest_finish_time,omitempty"`
	MaximumLatestFinishDateTime  *time.Time `json:"maximum_latest_finish_date_time,omitempty" yaml:"maximum_latest_finish_date_time,omitempty"`

	// ElapsedDuration is the span from start to finish of a pinned activity
	// whose recorded work did not run back to back. When set, the critical
	// path uses it in place of Duration; remaining work still comes from
	// Duration.
	ElapsedDuration *int `json:"elapsed_duration,omitempty" yaml:"elapsed_duration,omitempty"`
}

// Resource is a capacity-limited performer of activities.
type Resource struct {
	ID                          int                         `json:"id" yaml:"id"`
	Name                        string                      `json:"name" yaml:"name"`
	IsExplicitTarget            bool                        `json:"is_explicit_target" yaml:"is_explicit_target"`
	IsInactive                  bool                        `json:"is_inactive" yaml:"is_inactive"`
	InterActivityAllocationType InterActivityAllocationType `json:"inter_activity_allocation_type" yaml:"inter_activity_allocation_type"`
	ConcurrencyLimit            int                         `json:"concurrency_limit,omitempty" yaml:"concurrency_limit,omitempty"`
	Phases                      []int                       `json:"phases,omitempty" yaml:"phases,omitempty"`
	UnitCost                    float64                     `json:"unit_cost" yaml:"unit_cost"`
	AllocationOrder             int                         `json:"allocation_order" yaml:"allocation_order"`
	DisplayOrder                int                         `json:"display_order" yaml:"display_order"`
	ColorFormat                 *ColorFormat                `json:"color_format,omitempty" yaml:"color_format,omitempty"`
}

// Capacity is the number of work units the resource can deliver per time unit.
func (r Resource) Capacity() int {
	if r.InterActivityAllocationType == AllocationShared && r.ConcurrencyLimit > 1 {
		return r.ConcurrencyLimit
	}
	return 1
}

// WorkStream is a named grouping of activities; phases also restrict which
// resources may serve an activity.
type WorkStream struct {
	ID          int          `json:"id" yaml:"id"`
	Name        string       `json:"name" yaml:"name"`
	IsPhase     bool         `json:"is_phase" yaml:"is_phase"`
	ColorFormat *ColorFormat `json:"color_format,omitempty" yaml:"color_format,omitempty"`
}

// ActivityTracker records work units a resource completed on one activity.
type ActivityTracker struct {
	ActivityID int `json:"activity_id" yaml:"activity_id"`
	Units      int `json:"units" yaml:"units"`
}

// ResourceTracker holds everything a resource completed in one time unit.
type ResourceTracker struct {
	Time             int               `json:"time" yaml:"time"`
	ResourceID       int               `json:"resource_id" yaml:"resource_id"`
	ActivityTrackers []ActivityTracker `json:"activity_trackers" yaml:"activity_trackers"`
}

// Snapshot is the complete engine input handed over by the persistence layer.
type Snapshot struct {
	Version      string            `json:"version" yaml:"version"`
	Name         string            `json:"name,omitempty" yaml:"name,omitempty"`
	ProjectStart *time.Time        `json:"project_start,omitempty" yaml:"project_start,omitempty"`
	Horizon      *int              `json:"horizon,omitempty" yaml:"horizon,omitempty"`
	MaxDate      *time.Time        `json:"max_date,omitempty" yaml:"max_date,omitempty"`
	Activities   []Activity        `json:"activities" yaml:"activities"`
	Resources    []Resource        `json:"resources,omitempty" yaml:"resources,omitempty"`
	WorkStreams  []WorkStream      `json:"work_streams,omitempty" yaml:"work_streams,omitempty"`
	Trackers     []ResourceTracker `json:"trackers,omitempty" yaml:"trackers,omitempty"`
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }
