// Package engine runs the scheduling pipeline over one project snapshot:
// classification, graph construction, critical path analysis and resource
// allocation, with recorded progress replayed as history.
package engine

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/joshharrison/loomplan/internal/allocator"
	"github.com/joshharrison/loomplan/internal/calendar"
	"github.com/joshharrison/loomplan/internal/cpm"
	"github.com/joshharrison/loomplan/internal/graph"
	"github.com/joshharrison/loomplan/internal/project"
	"github.com/joshharrison/loomplan/internal/tracker"
	"github.com/joshharrison/loomplan/internal/workstream"
)

// Options configures an Engine.
type Options struct {
	Logger *zap.Logger
	// Calendar converts date constraints. When nil and the snapshot has a
	// project start, a day calendar is built from it.
	Calendar     calendar.Converter
	SkipWeekends bool
	MaxDeferral  int
	// Now is the first re-plannable time unit; recorded work before it is
	// pinned.
	Now int
}

// Engine recomputes schedules. It holds no mutable state, so one Engine may
// serve concurrent Compute calls on distinct inputs.
type Engine struct {
	opts Options
	log  *zap.Logger
}

// New returns an Engine. A nil logger discards output.
func New(opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{opts: opts, log: log}
}

// Result is one complete recomputation.
type Result struct {
	Activities  []project.Activity // input activities, unchanged
	Schedule    *cpm.Result
	Allocation  *allocator.Allocation
	WorkStreams map[int][]int // work stream id -> activity ids
	Calendar    calendar.Converter
	Now         int
	Incomplete  bool
}

// Compute runs the full pipeline. Classification, graph and critical path
// failures abort with no result. Allocation failures yield a result flagged
// Incomplete; Result.Err reports them. When ledger is nil the snapshot's
// trackers are replayed instead.
func (e *Engine) Compute(s *project.Snapshot, ledger *tracker.Ledger) (*Result, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	started := time.Now()

	classifier := workstream.NewClassifier(s.WorkStreams)
	streams, err := classifier.ClassifyAll(s.Activities)
	if err != nil {
		return nil, fmt.Errorf("classify work streams: %w", err)
	}

	g, err := graph.FromActivities(s.Activities)
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}
	e.log.Debug("graph built", zap.Int("activities", g.Len()), zap.Ints("sources", g.Sources()))

	cal := e.opts.Calendar
	if cal == nil && s.ProjectStart != nil {
		cal = calendar.New(*s.ProjectStart, e.opts.SkipWeekends)
	}

	schedule, err := cpm.Analyze(g, s.Activities, cpm.Options{Calendar: cal, Horizon: s.Horizon, MaxDate: s.MaxDate})
	if err != nil {
		return nil, fmt.Errorf("critical path: %w", err)
	}
	e.log.Debug("critical path computed",
		zap.Int("horizon", schedule.TotalDuration),
		zap.Ints("critical_chain", schedule.CriticalChain))

	history, err := e.history(s, ledger)
	if err != nil {
		return nil, err
	}

	alloc := allocator.Allocate(g, schedule, s.Activities, s.Resources, classifier, allocator.Options{
		Now:         e.opts.Now,
		History:     history,
		MaxDeferral: e.opts.MaxDeferral,
	})
	for _, f := range alloc.Failures {
		e.log.Warn("activity not allocated", zap.Int("activity", f.ActivityID), zap.Error(f.Err))
	}
	e.log.Debug("allocation done",
		zap.Int("assigned", len(alloc.Assignments)),
		zap.Int("failed", len(alloc.Failures)),
		zap.Duration("elapsed", time.Since(started)))

	return &Result{
		Activities:  s.Activities,
		Schedule:    schedule,
		Allocation:  alloc,
		WorkStreams: streams,
		Calendar:    cal,
		Now:         e.opts.Now,
		Incomplete:  alloc.Incomplete,
	}, nil
}

func (e *Engine) history(s *project.Snapshot, ledger *tracker.Ledger) ([]tracker.Entry, error) {
	if ledger != nil {
		return ledger.EntriesBefore(e.opts.Now), nil
	}
	if len(s.Trackers) == 0 {
		return nil, nil
	}
	restored, err := tracker.FromTrackers(s.Resources, tracker.PlansFor(s.Activities), s.Trackers)
	if err != nil {
		return nil, err
	}
	return restored.EntriesBefore(e.opts.Now), nil
}

// Err joins every allocation failure, or returns nil for a complete result.
func (r *Result) Err() error {
	if r == nil || r.Allocation == nil {
		return nil
	}
	errs := make([]error, len(r.Allocation.Failures))
	for i, f := range r.Allocation.Failures {
		errs[i] = f.Err
	}
	return errors.Join(errs...)
}

// Apply returns copies of activities with the computed fields filled in.
// Earliest start is the allocated start where one exists, otherwise the
// critical path earliest start.
func (r *Result) Apply(activities []project.Activity) []project.Activity {
	out := make([]project.Activity, len(activities))
	for i, a := range activities {
		c := project.Clone(a)
		if sched := r.Schedule.Activities[a.ID]; sched != nil {
			c.FreeSlack = project.IntPtr(sched.FreeSlack)
			c.EarliestStartTime = project.IntPtr(sched.ES)
			c.LatestFinishTime = project.IntPtr(sched.LF)
		}
		if asg := r.Allocation.Assignments[a.ID]; asg != nil {
			c.EarliestStartTime = project.IntPtr(asg.Start)
			c.AllocatedToResources = append([]int(nil), asg.Resources...)
		}
		out[i] = c
	}
	return out
}

// Plans returns tracker plans carrying each allocated activity's scheduled
// finish, for tracker.Ledger.Rebase.
func (r *Result) Plans() []tracker.Plan {
	plans := tracker.PlansFor(r.Activities)
	for i := range plans {
		if asg := r.Allocation.Assignments[plans[i].ActivityID]; asg != nil {
			plans[i].ScheduledFinish = project.IntPtr(asg.Finish)
		}
	}
	return plans
}

// Finish returns the latest allocated finish, or the critical path horizon
// when nothing was allocated.
func (r *Result) Finish() int {
	if len(r.Allocation.Assignments) == 0 {
		return r.Schedule.TotalDuration
	}
	finish := 0
	for _, asg := range r.Allocation.Assignments {
		finish = max(finish, asg.Finish)
	}
	return finish
}
