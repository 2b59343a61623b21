package reporter

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/joshharrison/loomplan/internal/engine"
	"github.com/joshharrison/loomplan/internal/project"
	"github.com/joshharrison/loomplan/internal/tracker"
	"github.com/joshharrison/loomplan/internal/ui"
)

func makeSnapshot() *project.Snapshot {
	return &project.Snapshot{
		Name: "test-project",
		Activities: []project.Activity{
			{ID: 1, Name: "Activity A", Duration: 2},
			{ID: 2, Name: "Activity B", Duration: 1},
			{ID: 3, Name: "Activity C", Duration: 3, Dependencies: []int{1, 2}},
		},
		Resources: []project.Resource{{ID: 1, Name: "Ana", UnitCost: 2}},
	}
}

func makeReporter(t *testing.T, s *project.Snapshot, ledger *tracker.Ledger, now int) *Reporter {
	t.Helper()
	result, err := engine.New(engine.Options{Now: now}).Compute(s, ledger)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	return New(s, result, ledger)
}

func TestPrintSchedule(t *testing.T) {
	rpt := makeReporter(t, makeSnapshot(), nil, 0)

	var buf bytes.Buffer
	rpt.PrintSchedule(&buf)
	output := buf.String()

	for _, want := range []string{"test-project", "WAVE 1", "WAVE 2", "Activity A", "⚡", "[3-6]", "Ana", "12.00"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q:\n%s", want, output)
		}
	}
}

func TestPrintStatus(t *testing.T) {
	s := makeSnapshot()
	first, err := engine.New(engine.Options{}).Compute(s, nil)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	ledger := tracker.NewLedger(s.Resources, first.Plans())
	for _, e := range []tracker.Entry{
		{Time: 0, ResourceID: 1, ActivityID: 1, Units: 1},
		{Time: 1, ResourceID: 1, ActivityID: 1, Units: 1},
		{Time: 2, ResourceID: 1, ActivityID: 2, Units: 1},
		{Time: 3, ResourceID: 1, ActivityID: 3, Units: 1},
	} {
		if err := ledger.Record(e); err != nil {
			t.Fatalf("record %+v: %v", e, err)
		}
	}

	rpt := makeReporter(t, s, ledger, 4)
	if got := rpt.ActivityState(1); got != ui.StateDone {
		t.Errorf("activity 1: expected %s, got %s", ui.StateDone, got)
	}
	if got := rpt.ActivityState(3); got != ui.StateInProgress {
		t.Errorf("activity 3: expected %s, got %s", ui.StateInProgress, got)
	}

	var buf bytes.Buffer
	rpt.PrintStatus(&buf)
	output := buf.String()
	if !strings.Contains(output, "2 of 3 activities done") {
		t.Errorf("expected progress count in:\n%s", output)
	}
	if !strings.Contains(output, "[1/3, 2 remaining]") {
		t.Errorf("expected remaining work for activity 3 in:\n%s", output)
	}
}

func TestJSON(t *testing.T) {
	rpt := makeReporter(t, makeSnapshot(), nil, 0)

	data, err := rpt.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}

	var out struct {
		Name          string `json:"name"`
		Finish        int    `json:"finish"`
		CriticalChain []int  `json:"critical_chain"`
		Activities    []struct {
			ID       int  `json:"id"`
			Start    *int `json:"start"`
			Deferral int  `json:"deferral"`
		} `json:"activities"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Name != "test-project" {
		t.Errorf("expected name test-project, got %q", out.Name)
	}
	if out.Finish != 6 {
		t.Errorf("expected finish 6, got %d", out.Finish)
	}
	if len(out.Activities) != 3 {
		t.Fatalf("expected 3 activities, got %d", len(out.Activities))
	}
	if b := out.Activities[1]; b.Start == nil || *b.Start != 2 || b.Deferral != 2 {
		t.Errorf("activity 2: expected start 2 deferral 2, got %+v", b)
	}
}

func TestSummary_WithFailures(t *testing.T) {
	s := makeSnapshot()
	s.Activities[1].TargetResources = []int{42}
	rpt := makeReporter(t, s, nil, 0)

	summary := rpt.Summary()
	if !strings.Contains(summary, "incomplete") {
		t.Error("summary should report an incomplete schedule")
	}
	if !strings.Contains(summary, "Unallocated activities") {
		t.Error("summary should list unallocated activities")
	}
	if got := rpt.ActivityState(3); got != ui.StateFailed {
		t.Errorf("blocked activity: expected %s, got %s", ui.StateFailed, got)
	}
}

func TestWriteDOT(t *testing.T) {
	s := makeSnapshot()
	s.Activities[2].DependencyOperator = project.OR
	rpt := makeReporter(t, s, nil, 0)

	var buf bytes.Buffer
	rpt.WriteDOT(&buf)
	output := buf.String()

	for _, want := range []string{"digraph loomplan {", "1 -> 3", "2 -> 3", "shape=diamond"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected DOT to contain %q:\n%s", want, output)
		}
	}
}

func TestGraph(t *testing.T) {
	rpt := makeReporter(t, makeSnapshot(), nil, 0)
	g := rpt.Graph()

	if len(g.Nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(g.Nodes))
	}
	if len(g.Edges) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(g.Edges))
	}
	if !g.Nodes[0].IsCritical || g.Nodes[1].IsCritical {
		t.Errorf("expected only activity 1 of the sources critical, got %+v", g.Nodes[:2])
	}

	var buf bytes.Buffer
	rpt.WriteASCII(&buf)
	if !strings.Contains(buf.String(), "Activity Network") {
		t.Error("expected ASCII header")
	}
}
