package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/joshharrison/loomplan/internal/engine"
	"github.com/joshharrison/loomplan/internal/project"
	"github.com/joshharrison/loomplan/internal/tracker"
	"github.com/joshharrison/loomplan/internal/ui"
)

// Reporter renders an engine result for terminals and machines.
type Reporter struct {
	Name      string
	Result    *engine.Result
	Resources []project.Resource
	Ledger    *tracker.Ledger // optional; enables progress columns

	activities map[int]project.Activity
	failed     map[int]error
}

// New creates a Reporter for one computed snapshot.
func New(s *project.Snapshot, result *engine.Result, ledger *tracker.Ledger) *Reporter {
	r := &Reporter{
		Name:       s.Name,
		Result:     result,
		Resources:  s.Resources,
		Ledger:     ledger,
		activities: make(map[int]project.Activity, len(s.Activities)),
		failed:     make(map[int]error),
	}
	for _, a := range s.Activities {
		r.activities[a.ID] = a
	}
	for _, f := range result.Allocation.Failures {
		r.failed[f.ActivityID] = f.Err
	}
	if r.Name == "" {
		r.Name = "untitled project"
	}
	return r
}

// ActivityState classifies an activity as done, in progress, planned or failed.
func (r *Reporter) ActivityState(id int) string {
	if _, ok := r.failed[id]; ok {
		return ui.StateFailed
	}
	a := r.activities[id]
	completed := r.completed(id)
	switch {
	case a.Duration > 0 && completed >= a.Duration:
		return ui.StateDone
	case a.Duration == 0 && r.finishedBy(id, r.Result.Now):
		return ui.StateDone
	case completed > 0:
		return ui.StateInProgress
	default:
		return ui.StatePlanned
	}
}

func (r *Reporter) completed(id int) int {
	if r.Ledger == nil {
		return 0
	}
	return r.Ledger.Completed(id, math.MaxInt)
}

func (r *Reporter) finishedBy(id, t int) bool {
	asg := r.Result.Allocation.Assignments[id]
	return asg != nil && asg.Finish <= t && t > 0
}

// PrintSchedule writes the wave-by-wave schedule table.
func (r *Reporter) PrintSchedule(w io.Writer) {
	res := r.Result
	fmt.Fprintf(w, "🎯 %s %s\n", ui.BoldCyan("Schedule:"), ui.Bold(r.Name))
	fmt.Fprintln(w, ui.Cyan("═══════════════════════════"))
	fmt.Fprintf(w, "Activities: %s\n", ui.Bold(len(r.activities)))
	fmt.Fprintf(w, "Finish:     %s %s\n", ui.Bold(res.Finish()), ui.Dim(fmt.Sprintf("(unconstrained %d)", res.Schedule.TotalDuration)))
	if len(res.Schedule.CriticalChain) > 0 {
		fmt.Fprintf(w, "⚡ Critical: %s\n", ui.BoldYellow(joinIDs(res.Schedule.CriticalChain, " → ")))
	}
	if len(r.Resources) > 0 {
		fmt.Fprintf(w, "Cost:       %s\n", ui.Bold(fmt.Sprintf("%.2f", res.Allocation.Cost(r.Resources))))
	}
	fmt.Fprintln(w)

	for _, wave := range res.Schedule.Waves {
		fmt.Fprintf(w, "  🌊 %s %d\n", ui.BoldWhite("WAVE"), wave.Index+1)
		for _, id := range wave.ActivityIDs {
			r.printActivity(w, id)
		}
		fmt.Fprintln(w)
	}

	r.printFailures(w)
}

// PrintStatus writes progress per activity: completed and remaining units.
func (r *Reporter) PrintStatus(w io.Writer) {
	counts := make(map[string]int)
	ids := r.sortedIDs()
	for _, id := range ids {
		counts[r.ActivityState(id)]++
	}

	fmt.Fprintf(w, "🧵 %s %s · %d of %d activities done", ui.BoldCyan("Progress:"), ui.Bold(r.Name), counts[ui.StateDone], len(ids))
	if n := counts[ui.StateFailed]; n > 0 {
		fmt.Fprintf(w, " %s", ui.Red(fmt.Sprintf("(%d unallocated)", n)))
	}
	fmt.Fprintf(w, " %s\n\n", ui.Dim(fmt.Sprintf("[now %d]", r.Result.Now)))

	for _, id := range ids {
		a := r.activities[id]
		done := r.completed(id)
		fmt.Fprintf(w, "    %s %-6s %-40s %s  %s\n",
			ui.StatusIcon(r.ActivityState(id)),
			ui.BoldMagenta(id),
			truncate(a.Name, 40),
			ui.CriticalMark(r.isCritical(id)),
			ui.Dim(fmt.Sprintf("[%d/%d, %d remaining]", done, a.Duration, max(a.Duration-done, 0))))
	}
}

func (r *Reporter) printActivity(w io.Writer, id int) {
	a := r.activities[id]
	timing := ui.Red("[unallocated]")
	labels := ""
	if asg := r.Result.Allocation.Assignments[id]; asg != nil {
		timing = ui.Dim(fmt.Sprintf("[%d-%d]", asg.Start, asg.Finish))
		if asg.Deferral > 0 {
			timing += " " + ui.Yellow(fmt.Sprintf("+%d", asg.Deferral))
		}
		for _, rid := range asg.Resources {
			labels += " " + ui.ResourceLabel(rid, r.resourceName(rid))
		}
	}
	fmt.Fprintf(w, "    %s %-6s %-40s %s  %s%s\n",
		ui.StatusIcon(r.ActivityState(id)), ui.BoldMagenta(id), truncate(a.Name, 40),
		ui.CriticalMark(r.isCritical(id)), timing, labels)
}

func (r *Reporter) printFailures(w io.Writer) {
	if len(r.Result.Allocation.Failures) == 0 {
		return
	}
	fmt.Fprintf(w, "%s\n", ui.BoldRed("Unallocated activities:"))
	for _, f := range r.Result.Allocation.Failures {
		fmt.Fprintf(w, "  %s %s  %s\n", ui.Red("✗"), ui.BoldMagenta(f.ActivityID), ui.Dim(f.Err.Error()))
	}
}

// Summary returns a short multi-line summary of the result.
func (r *Reporter) Summary() string {
	var b strings.Builder
	res := r.Result

	statusText := ui.BoldGreen("complete")
	statusEmoji := "✅"
	if res.Incomplete {
		statusText = ui.BoldRed("incomplete")
		statusEmoji = "❌"
	}

	fmt.Fprintf(&b, "\n%s %s\n", statusEmoji, ui.BoldCyan("Schedule Computed"))
	fmt.Fprintf(&b, "%s\n", ui.Cyan("═════════════════════════"))
	fmt.Fprintf(&b, "Project:   %s\n", ui.Dim(r.Name))
	fmt.Fprintf(&b, "Finish:    %s\n", ui.Bold(res.Finish()))
	fmt.Fprintf(&b, "Allocated: %s, %s, %d total\n",
		ui.Green(fmt.Sprintf("%d placed", len(res.Allocation.Assignments))),
		ui.Red(fmt.Sprintf("%d failed", len(res.Allocation.Failures))),
		len(r.activities))
	fmt.Fprintf(&b, "Status:    %s\n", statusText)
	if res.Incomplete {
		var sb strings.Builder
		r.printFailures(&sb)
		b.WriteString("\n" + sb.String())
	}
	return b.String()
}

// JSON returns the machine-readable schedule.
func (r *Reporter) JSON() ([]byte, error) {
	type resourceJSON struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	type activityJSON struct {
		ID         int            `json:"id"`
		Name       string         `json:"name"`
		State      string         `json:"state"`
		Duration   int            `json:"duration"`
		ES         int            `json:"earliest_start"`
		LF         int            `json:"latest_finish"`
		FreeSlack  int            `json:"free_slack"`
		IsCritical bool           `json:"is_critical"`
		Start      *int           `json:"start,omitempty"`
		Finish     *int           `json:"finish,omitempty"`
		Deferral   int            `json:"deferral"`
		Resources  []resourceJSON `json:"resources,omitempty"`
		Completed  int            `json:"completed"`
		Error      string         `json:"error,omitempty"`
	}
	type output struct {
		Name          string         `json:"name"`
		Now           int            `json:"now"`
		Horizon       int            `json:"horizon"`
		Finish        int            `json:"finish"`
		Incomplete    bool           `json:"incomplete"`
		CriticalPath  []int          `json:"critical_path"`
		CriticalChain []int          `json:"critical_chain"`
		Cost          float64        `json:"cost"`
		WorkStreams   map[int][]int  `json:"work_streams,omitempty"`
		Activities    []activityJSON `json:"activities"`
	}

	res := r.Result
	o := output{
		Name:          r.Name,
		Now:           res.Now,
		Horizon:       res.Schedule.TotalDuration,
		Finish:        res.Finish(),
		Incomplete:    res.Incomplete,
		CriticalPath:  res.Schedule.CriticalPath,
		CriticalChain: res.Schedule.CriticalChain,
		Cost:          res.Allocation.Cost(r.Resources),
		WorkStreams:   res.WorkStreams,
	}

	for _, id := range r.sortedIDs() {
		a := r.activities[id]
		aj := activityJSON{ID: id, Name: a.Name, State: r.ActivityState(id), Duration: a.Duration, Completed: r.completed(id)}
		if sched := res.Schedule.Activities[id]; sched != nil {
			aj.ES, aj.LF, aj.FreeSlack, aj.IsCritical = sched.ES, sched.LF, sched.FreeSlack, sched.IsCritical
		}
		if asg := res.Allocation.Assignments[id]; asg != nil {
			start, finish := asg.Start, asg.Finish
			aj.Start, aj.Finish, aj.Deferral = &start, &finish, asg.Deferral
			for _, rid := range asg.Resources {
				aj.Resources = append(aj.Resources, resourceJSON{ID: rid, Name: r.resourceName(rid)})
			}
		}
		if err, ok := r.failed[id]; ok {
			aj.Error = err.Error()
		}
		o.Activities = append(o.Activities, aj)
	}

	return json.MarshalIndent(o, "", "  ")
}

func (r *Reporter) isCritical(id int) bool {
	sched := r.Result.Schedule.Activities[id]
	return sched != nil && sched.IsCritical
}

func (r *Reporter) resourceName(id int) string {
	for _, res := range r.Resources {
		if res.ID == id {
			return res.Name
		}
	}
	return ""
}

func (r *Reporter) sortedIDs() []int {
	ids := make([]int, 0, len(r.activities))
	for id := range r.activities {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

func joinIDs(ids []int, sep string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, sep)
}
