package cpm

import (
	"errors"
	"math/rand"
	"slices"
	"testing"
	"time"

	"github.com/joshharrison/loomplan/internal/calendar"
	"github.com/joshharrison/loomplan/internal/graph"
	"github.com/joshharrison/loomplan/internal/project"
)

func analyze(t *testing.T, activities []project.Activity, opts Options) *Result {
	t.Helper()
	g, err := graph.FromActivities(activities)
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}
	result, err := Analyze(g, activities, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return result
}

func TestAnalyze_LinearChain(t *testing.T) {
	// 1 -> 2 -> 3 (each duration 1)
	result := analyze(t, []project.Activity{
		{ID: 1, Duration: 1},
		{ID: 2, Duration: 1, Dependencies: []int{1}},
		{ID: 3, Duration: 1, Dependencies: []int{2}},
	}, Options{})

	if result.TotalDuration != 3 {
		t.Errorf("expected total duration 3, got %d", result.TotalDuration)
	}
	if len(result.CriticalPath) != 3 {
		t.Errorf("expected 3 activities on critical path, got %v", result.CriticalPath)
	}
	if !slices.Equal(result.CriticalChain, []int{1, 2, 3}) {
		t.Errorf("expected chain [1 2 3], got %v", result.CriticalChain)
	}
	if len(result.Waves) != 3 {
		t.Errorf("expected 3 waves, got %d", len(result.Waves))
	}

	assertSchedule(t, result.Activities[1], 0, 1, 0, 1, 0, true)
	assertSchedule(t, result.Activities[2], 1, 2, 1, 2, 0, true)
	assertSchedule(t, result.Activities[3], 2, 3, 2, 3, 0, true)
}

func TestAnalyze_DiamondWithDurations(t *testing.T) {
	// 1(5) -> 2(1) -> 4(1)
	// 1(5) -> 3(10) -> 4(1)
	result := analyze(t, []project.Activity{
		{ID: 1, Duration: 5},
		{ID: 2, Duration: 1, Dependencies: []int{1}},
		{ID: 3, Duration: 10, Dependencies: []int{1}},
		{ID: 4, Duration: 1, Dependencies: []int{2, 3}},
	}, Options{})

	if result.TotalDuration != 16 {
		t.Errorf("expected total duration 16, got %d", result.TotalDuration)
	}
	assertSchedule(t, result.Activities[2], 5, 6, 14, 15, 9, false)
	if !slices.Equal(result.CriticalPath, []int{1, 3, 4}) {
		t.Errorf("expected critical path [1 3 4], got %v", result.CriticalPath)
	}
	if !slices.Equal(result.CriticalChain, []int{1, 3, 4}) {
		t.Errorf("expected chain [1 3 4], got %v", result.CriticalChain)
	}
}

func TestAnalyze_ParallelIndependent(t *testing.T) {
	result := analyze(t, []project.Activity{
		{ID: 1, Duration: 1},
		{ID: 2, Duration: 1},
		{ID: 3, Duration: 1},
	}, Options{})

	if len(result.Waves) != 1 || len(result.Waves[0].ActivityIDs) != 3 {
		t.Errorf("expected one wave of 3, got %+v", result.Waves)
	}
	if result.TotalDuration != 1 {
		t.Errorf("expected total duration 1, got %d", result.TotalDuration)
	}
}

func TestAnalyze_ORNodeStartsOnFirstPredecessor(t *testing.T) {
	// 1(2) and 2(6) both precede 3(1); 3 is an OR-node.
	result := analyze(t, []project.Activity{
		{ID: 1, Duration: 2},
		{ID: 2, Duration: 6},
		{ID: 3, Duration: 1, Dependencies: []int{1, 2}, DependencyOperator: project.OR},
	}, Options{})

	assertSchedule(t, result.Activities[3], 2, 3, 5, 6, 3, false)
	// 1 drives 3, so it is bound by 3's latest start.
	assertSchedule(t, result.Activities[1], 0, 2, 3, 5, 3, false)
	// 2 does not drive 3 and decides the horizon.
	assertSchedule(t, result.Activities[2], 0, 6, 0, 6, 0, true)
}

func TestAnalyze_ANDNodeWaitsForAll(t *testing.T) {
	result := analyze(t, []project.Activity{
		{ID: 1, Duration: 2},
		{ID: 2, Duration: 6},
		{ID: 3, Duration: 1, Dependencies: []int{1, 2}},
	}, Options{})
	assertSchedule(t, result.Activities[3], 6, 7, 6, 7, 0, true)
	assertSchedule(t, result.Activities[1], 0, 2, 4, 6, 4, false)
}

func TestAnalyze_MinimumEarliestStart(t *testing.T) {
	// Natural start of 2 is 2; the constraint moves it to 5.
	base := []project.Activity{
		{ID: 1, Duration: 2},
		{ID: 2, Duration: 3, Dependencies: []int{1}},
		{ID: 3, Duration: 10},
	}
	natural := analyze(t, base, Options{})

	constrained := slices.Clone(base)
	constrained[1].MinimumEarliestStartTime = project.IntPtr(5)
	result := analyze(t, constrained, Options{})

	assertSchedule(t, natural.Activities[2], 2, 5, 7, 10, 5, false)
	assertSchedule(t, result.Activities[2], 5, 8, 7, 10, 2, false)
	if got := natural.Activities[2].FreeSlack - result.Activities[2].FreeSlack; got != 3 {
		t.Errorf("expected slack reduced by 3, got %d", got)
	}
}

func TestAnalyze_MinimumFreeSlackBuffer(t *testing.T) {
	result := analyze(t, []project.Activity{
		{ID: 1, Duration: 2, MinimumFreeSlack: project.IntPtr(3)},
		{ID: 2, Duration: 1, Dependencies: []int{1}},
	}, Options{})

	assertSchedule(t, result.Activities[2], 5, 6, 5, 6, 0, true)
	if result.Activities[1].FreeSlack != 3 {
		t.Errorf("expected slack 3 on buffered activity, got %d", result.Activities[1].FreeSlack)
	}
}

func TestAnalyze_MaximumLatestFinishInfeasible(t *testing.T) {
	activities := []project.Activity{
		{ID: 1, Duration: 2, MinimumEarliestStartTime: project.IntPtr(4), MaximumLatestFinishTime: project.IntPtr(5)},
	}
	g, err := graph.FromActivities(activities)
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}
	_, err = Analyze(g, activities, Options{})
	var infeasible *InfeasibleConstraintError
	if !errors.As(err, &infeasible) {
		t.Fatalf("expected InfeasibleConstraintError, got %v", err)
	}
	if infeasible.ActivityID != 1 || infeasible.EarliestFinish != 6 || infeasible.LatestFinish != 5 {
		t.Errorf("unexpected error fields %+v", infeasible)
	}
}

func TestAnalyze_MaximumLatestFinishTightensPredecessors(t *testing.T) {
	result := analyze(t, []project.Activity{
		{ID: 1, Duration: 2},
		{ID: 2, Duration: 2, Dependencies: []int{1}, MaximumLatestFinishTime: project.IntPtr(4)},
		{ID: 3, Duration: 8},
	}, Options{})
	assertSchedule(t, result.Activities[2], 2, 4, 2, 4, 0, true)
	assertSchedule(t, result.Activities[1], 0, 2, 0, 2, 0, true)
}

func TestAnalyze_ExternalHorizon(t *testing.T) {
	activities := []project.Activity{
		{ID: 1, Duration: 1},
		{ID: 2, Duration: 2, Dependencies: []int{1}},
	}
	result := analyze(t, activities, Options{Horizon: project.IntPtr(10)})
	if result.TotalDuration != 10 || result.MinSlack != 7 {
		t.Errorf("expected horizon 10 and min slack 7, got %d/%d", result.TotalDuration, result.MinSlack)
	}
	if len(result.CriticalPath) != 2 {
		t.Errorf("expected both activities critical, got %v", result.CriticalPath)
	}

	g, _ := graph.FromActivities(activities)
	_, err := Analyze(g, activities, Options{Horizon: project.IntPtr(2)})
	var infeasible *InfeasibleConstraintError
	if !errors.As(err, &infeasible) {
		t.Fatalf("expected InfeasibleConstraintError for short horizon, got %v", err)
	}
}

func TestAnalyze_DateConstraints(t *testing.T) {
	cal := calendar.New(time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC), false)
	start := time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)
	activities := []project.Activity{
		{ID: 1, Duration: 2, MinimumEarliestStartTime: project.IntPtr(1), MinimumEarliestStartDateTime: &start},
	}
	result := analyze(t, activities, Options{Calendar: cal})

	if result.Activities[1].ES != 3 {
		t.Errorf("expected the later date constraint (unit 3) to win, got %d", result.Activities[1].ES)
	}
	if d := result.Activities[1].EarliestStartDate; d == nil || !d.Equal(start) {
		t.Errorf("expected earliest start date %v, got %v", start, d)
	}

	g, _ := graph.FromActivities(activities)
	if _, err := Analyze(g, activities, Options{}); !errors.Is(err, ErrNoCalendar) {
		t.Errorf("expected ErrNoCalendar, got %v", err)
	}
}

func TestAnalyze_ElapsedDurationReplacesDuration(t *testing.T) {
	// 1 did 5 units of work over 7 elapsed units.
	result := analyze(t, []project.Activity{
		{ID: 1, Duration: 5, ElapsedDuration: project.IntPtr(7)},
		{ID: 2, Duration: 2, Dependencies: []int{1}},
	}, Options{})

	first, second := result.Activities[1], result.Activities[2]
	if first.EF != 7 || first.Duration != 7 {
		t.Errorf("expected activity 1 to span [0, 7), got EF=%d duration=%d", first.EF, first.Duration)
	}
	if second.ES != 7 || second.EF != 9 {
		t.Errorf("expected activity 2 at [7, 9), got [%d, %d)", second.ES, second.EF)
	}
	if result.TotalDuration != 9 {
		t.Errorf("expected total duration 9, got %d", result.TotalDuration)
	}
}

func TestAnalyze_ZeroDurationMilestone(t *testing.T) {
	result := analyze(t, []project.Activity{
		{ID: 1, Duration: 3},
		{ID: 2, Duration: 0, Dependencies: []int{1}},
	}, Options{})
	assertSchedule(t, result.Activities[2], 3, 3, 3, 3, 0, true)
}

// Randomized acyclic networks: forward pass terminates, EF >= ES + duration,
// slack is never negative and the critical chain is contiguous.
func TestAnalyze_RandomNetworks(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for iter := 0; iter < 50; iter++ {
		n := 2 + rng.Intn(15)
		activities := make([]project.Activity, n)
		for i := range activities {
			activities[i] = project.Activity{ID: i + 1, Duration: rng.Intn(6)}
			if rng.Intn(4) == 0 {
				activities[i].DependencyOperator = project.OR
			}
			for j := 0; j < i; j++ {
				if rng.Intn(3) == 0 {
					activities[i].Dependencies = append(activities[i].Dependencies, j+1)
				}
			}
		}
		result := analyze(t, activities, Options{})

		for _, a := range activities {
			ts := result.Activities[a.ID]
			if ts.EF < ts.ES+a.Duration {
				t.Fatalf("iter %d: activity %d EF %d < ES %d + %d", iter, a.ID, ts.EF, ts.ES, a.Duration)
			}
			if ts.FreeSlack < 0 {
				t.Fatalf("iter %d: activity %d has negative slack %d", iter, a.ID, ts.FreeSlack)
			}
		}
		if len(result.CriticalChain) == 0 {
			t.Fatalf("iter %d: empty critical chain", iter)
		}
		for i := 1; i < len(result.CriticalChain); i++ {
			prev, cur := result.CriticalChain[i-1], result.CriticalChain[i]
			if result.Activities[prev].EF != result.Activities[cur].ES {
				t.Fatalf("iter %d: chain broken between %d and %d", iter, prev, cur)
			}
		}
	}
}

func assertSchedule(t *testing.T, ts *Schedule, es, ef, ls, lf, slack int, critical bool) {
	t.Helper()
	if ts.ES != es {
		t.Errorf("activity %d: expected ES=%d, got %d", ts.ActivityID, es, ts.ES)
	}
	if ts.EF != ef {
		t.Errorf("activity %d: expected EF=%d, got %d", ts.ActivityID, ef, ts.EF)
	}
	if ts.LS != ls {
		t.Errorf("activity %d: expected LS=%d, got %d", ts.ActivityID, ls, ts.LS)
	}
	if ts.LF != lf {
		t.Errorf("activity %d: expected LF=%d, got %d", ts.ActivityID, lf, ts.LF)
	}
	if ts.FreeSlack != slack {
		t.Errorf("activity %d: expected slack=%d, got %d", ts.ActivityID, slack, ts.FreeSlack)
	}
	if ts.IsCritical != critical {
		t.Errorf("activity %d: expected critical=%v, got %v", ts.ActivityID, critical, ts.IsCritical)
	}
}
