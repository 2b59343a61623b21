package reporter

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/joshharrison/loomplan/internal/project"
	"github.com/joshharrison/loomplan/internal/ui"
)

// GraphNode is one activity in the exported network.
type GraphNode struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	State      string `json:"state"`
	Operator   string `json:"operator"`
	IsCritical bool   `json:"is_critical"`
	WaveIndex  int    `json:"wave_index"`
	Start      *int   `json:"start,omitempty"`
	Finish     *int   `json:"finish,omitempty"`
}

// GraphEdge is one precedence relation.
type GraphEdge struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Graph is the activity network in a form external renderers can consume.
type Graph struct {
	Nodes         []GraphNode `json:"nodes"`
	Edges         []GraphEdge `json:"edges"`
	CriticalChain []int       `json:"critical_chain"`
}

// Graph exports the network with each node's state and placement.
func (r *Reporter) Graph() *Graph {
	g := &Graph{CriticalChain: r.Result.Schedule.CriticalChain}
	for _, id := range r.sortedIDs() {
		a := r.activities[id]
		node := GraphNode{
			ID:         id,
			Name:       a.Name,
			State:      r.ActivityState(id),
			Operator:   a.DependencyOperator.String(),
			IsCritical: r.isCritical(id),
		}
		if sched := r.Result.Schedule.Activities[id]; sched != nil {
			node.WaveIndex = sched.Wave
		}
		if asg := r.Result.Allocation.Assignments[id]; asg != nil {
			start, finish := asg.Start, asg.Finish
			node.Start, node.Finish = &start, &finish
		}
		g.Nodes = append(g.Nodes, node)
		for _, p := range a.Dependencies {
			g.Edges = append(g.Edges, GraphEdge{From: p, To: id})
		}
	}
	return g
}

// GraphJSON returns Graph as indented JSON.
func (r *Reporter) GraphJSON() ([]byte, error) {
	return json.MarshalIndent(r.Graph(), "", "  ")
}

// WriteASCII prints the network wave by wave with each activity's successors.
func (r *Reporter) WriteASCII(w io.Writer) {
	succ := r.successors()

	fmt.Fprintf(w, "🔗 %s\n", ui.BoldCyan("Activity Network"))
	fmt.Fprintln(w, ui.Cyan("═══════════════════════"))
	fmt.Fprintln(w)

	for _, wave := range r.Result.Schedule.Waves {
		fmt.Fprintf(w, "%s 🌊 Wave %d %s\n", ui.Cyan("──"), wave.Index+1, ui.Cyan("──────────────────────────────"))
		for _, id := range wave.ActivityIDs {
			a := r.activities[id]
			op := ""
			if len(a.Dependencies) > 1 {
				op = ui.Dim(" (" + a.DependencyOperator.String() + ")")
			}
			fmt.Fprintf(w, "  %s [%s] %s%s\n", ui.CriticalMark(r.isCritical(id)), ui.BoldMagenta(id), a.Name, op)
			for _, s := range succ[id] {
				fmt.Fprintf(w, "      %s %s\n", ui.Dim("└──→"), ui.BoldMagenta(s))
			}
		}
		fmt.Fprintln(w)
	}
}

// WriteDOT prints the network in Graphviz DOT format, critical links in red.
func (r *Reporter) WriteDOT(w io.Writer) {
	fmt.Fprintln(w, "digraph loomplan {")
	fmt.Fprintln(w, "  rankdir=LR;")
	fmt.Fprintln(w, "  node [shape=box, style=rounded];")
	fmt.Fprintln(w)

	for _, id := range r.sortedIDs() {
		a := r.activities[id]
		attrs := fmt.Sprintf(`label="%d\n%s (%d)"`, id, a.Name, a.Duration)
		if a.DependencyOperator == project.OR {
			attrs += `, shape=diamond`
		}
		if r.isCritical(id) {
			attrs += `, style="rounded,bold", color=red`
		}
		fmt.Fprintf(w, "  %d [%s];\n", id, attrs)
	}

	fmt.Fprintln(w)

	succ := r.successors()
	for _, from := range r.sortedIDs() {
		for _, to := range succ[from] {
			style := ""
			if r.isCritical(from) && r.isCritical(to) {
				style = ` [color=red, penwidth=2]`
			}
			fmt.Fprintf(w, "  %d -> %d%s;\n", from, to, style)
		}
	}

	fmt.Fprintln(w, "}")
}

func (r *Reporter) successors() map[int][]int {
	succ := make(map[int][]int)
	for _, id := range r.sortedIDs() {
		for _, p := range r.activities[id].Dependencies {
			succ[p] = append(succ[p], id)
		}
	}
	return succ
}
