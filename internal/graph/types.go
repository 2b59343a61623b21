package graph

import (
	"fmt"
	"strings"

	"github.com/joshharrison/loomplan/internal/project"
)

// Node is an activity as seen by the graph: its id and the combinator over its
// incoming edges.
type Node struct {
	ID       int
	Operator project.LogicalOperator
}

// Edge is a precedence relation: To cannot start before From finishes.
type Edge struct {
	From int
	To   int
}

// Network is a directed acyclic graph of activities stored as an arena.
// Adjacency lists hold arena indices, not ids.
type Network struct {
	nodes []Node
	index map[int]int // activity id -> arena index
	succ  [][]int     // index -> indices it precedes
	pred  [][]int     // index -> indices that precede it
	order []int       // topological order of indices
}

// CyclicGraphError reports a precedence cycle.
type CyclicGraphError struct {
	Cycle []int // activity ids, first id repeated at the end
}

func (e *CyclicGraphError) Error() string {
	parts := make([]string, len(e.Cycle))
	for i, id := range e.Cycle {
		parts[i] = fmt.Sprint(id)
	}
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(parts, " -> "))
}

// DanglingReferenceError reports an edge to an activity that does not exist.
type DanglingReferenceError struct {
	From    int
	To      int
	Missing int
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("precedence %d -> %d references unknown activity %d", e.From, e.To, e.Missing)
}

// DuplicateActivityError reports an activity id used more than once.
type DuplicateActivityError struct {
	ID int
}

func (e *DuplicateActivityError) Error() string {
	return fmt.Sprintf("duplicate activity id %d", e.ID)
}
