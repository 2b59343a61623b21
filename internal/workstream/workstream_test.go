package workstream

import (
	"errors"
	"slices"
	"testing"

	"github.com/joshharrison/loomplan/internal/project"
)

var streams = []project.WorkStream{
	{ID: 1, Name: "Design", IsPhase: true},
	{ID: 2, Name: "Build", IsPhase: true},
	{ID: 3, Name: "Backend"},
}

func resourceIDs(rs []project.Resource) []int {
	out := make([]int, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func TestClassify(t *testing.T) {
	c := NewClassifier(streams)

	ids, err := c.Classify(project.Activity{ID: 10, TargetWorkStreams: []int{3, 1, 3}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(ids, []int{1, 3}) {
		t.Errorf("expected [1 3], got %v", ids)
	}

	phases, err := c.Phases(project.Activity{ID: 10, TargetWorkStreams: []int{3, 1}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(phases, []int{1}) {
		t.Errorf("expected phases [1], got %v", phases)
	}
}

func TestClassify_UnknownWorkStream(t *testing.T) {
	c := NewClassifier(streams)
	_, err := c.Classify(project.Activity{ID: 4, TargetWorkStreams: []int{1, 99}})
	var unknown *UnknownWorkStreamError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownWorkStreamError, got %v", err)
	}
	if unknown.ActivityID != 4 || unknown.WorkStreamID != 99 {
		t.Errorf("unexpected error fields %+v", unknown)
	}
}

func TestClassifyAll(t *testing.T) {
	c := NewClassifier(streams)
	groups, err := c.ClassifyAll([]project.Activity{
		{ID: 2, TargetWorkStreams: []int{1}},
		{ID: 1, TargetWorkStreams: []int{1, 3}},
		{ID: 3},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(groups[1], []int{1, 2}) {
		t.Errorf("expected stream 1 -> [1 2], got %v", groups[1])
	}
	if len(groups[2]) != 0 {
		t.Errorf("expected stream 2 empty, got %v", groups[2])
	}
}

func TestEligibleResources(t *testing.T) {
	c := NewClassifier(streams)
	resources := []project.Resource{
		{ID: 1},                      // unrestricted
		{ID: 2, Phases: []int{1}},    // design only
		{ID: 3, Phases: []int{2}},    // build only
		{ID: 4, Phases: []int{1, 2}}, // both
	}

	tests := []struct {
		name     string
		activity project.Activity
		want     []int
	}{
		{"no phases", project.Activity{ID: 1}, []int{1, 2, 3, 4}},
		{"non-phase stream", project.Activity{ID: 1, TargetWorkStreams: []int{3}}, []int{1, 2, 3, 4}},
		{"design", project.Activity{ID: 1, TargetWorkStreams: []int{1}}, []int{1, 2, 4}},
		{"design AND build", project.Activity{ID: 1, TargetWorkStreams: []int{1, 2}}, []int{1, 4}},
		{"design OR build", project.Activity{ID: 1, TargetWorkStreams: []int{1, 2}, TargetWorkStreamOperator: project.OR}, []int{1, 2, 3, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.EligibleResources(tt.activity, resources)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ids := resourceIDs(got); !slices.Equal(ids, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, ids)
			}
		})
	}
}
