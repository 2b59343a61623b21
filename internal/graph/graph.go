package graph

import (
	"slices"
	"sort"

	"github.com/joshharrison/loomplan/internal/project"
)

// FromActivities builds a Network from activities, deriving edges from each
// activity's Dependencies.
func FromActivities(activities []project.Activity) (*Network, error) {
	nodes := make([]Node, len(activities))
	var edges []Edge
	for i, a := range activities {
		nodes[i] = Node{ID: a.ID, Operator: a.DependencyOperator}
		for _, dep := range a.Dependencies {
			edges = append(edges, Edge{From: dep, To: a.ID})
		}
	}
	return Build(nodes, edges)
}

// Build constructs a Network from nodes and precedence edges. Duplicate edges
// are collapsed. The graph must be acyclic and every edge must reference
// known nodes.
func Build(nodes []Node, edges []Edge) (*Network, error) {
	n := &Network{
		nodes: make([]Node, 0, len(nodes)),
		index: make(map[int]int, len(nodes)),
	}

	// Arena in ascending id order so index order and id order agree.
	sorted := slices.Clone(nodes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for _, node := range sorted {
		if _, dup := n.index[node.ID]; dup {
			return nil, &DuplicateActivityError{ID: node.ID}
		}
		n.index[node.ID] = len(n.nodes)
		n.nodes = append(n.nodes, node)
	}
	n.succ = make([][]int, len(n.nodes))
	n.pred = make([][]int, len(n.nodes))

	edgeSet := make(map[[2]int]bool)
	for _, e := range edges {
		from, ok := n.index[e.From]
		if !ok {
			return nil, &DanglingReferenceError{From: e.From, To: e.To, Missing: e.From}
		}
		to, ok := n.index[e.To]
		if !ok {
			return nil, &DanglingReferenceError{From: e.From, To: e.To, Missing: e.To}
		}
		key := [2]int{from, to}
		if edgeSet[key] {
			continue
		}
		edgeSet[key] = true
		n.succ[from] = append(n.succ[from], to)
		n.pred[to] = append(n.pred[to], from)
	}

	// Sort adjacency lists for deterministic ordering
	for i := range n.nodes {
		sort.Ints(n.succ[i])
		sort.Ints(n.pred[i])
	}

	order, ok := n.topoSort()
	if !ok {
		return nil, &CyclicGraphError{Cycle: n.DetectCycle()}
	}
	n.order = order
	return n, nil
}

// topoSort performs Kahn's algorithm. The ready queue is kept sorted so ties
// resolve to the lowest activity id.
func (n *Network) topoSort() ([]int, bool) {
	inDegree := make([]int, len(n.nodes))
	var queue []int
	for i := range n.nodes {
		inDegree[i] = len(n.pred[i])
		if inDegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	order := make([]int, 0, len(n.nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		grew := false
		for _, s := range n.succ[node] {
			inDegree[s]--
			if inDegree[s] == 0 {
				queue = append(queue, s)
				grew = true
			}
		}
		if grew {
			sort.Ints(queue)
		}
	}
	return order, len(order) == len(n.nodes)
}

// DetectCycle returns a cycle as activity ids (first id repeated at the end),
// or nil if the graph is acyclic.
// Uses DFS with coloring: white (unvisited), gray (in progress), black (done).
func (n *Network) DetectCycle() []int {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make([]int, len(n.nodes))
	parent := make([]int, len(n.nodes))

	var dfs func(node int) []int
	dfs = func(node int) []int {
		color[node] = gray
		for _, next := range n.succ[node] {
			if color[next] == gray {
				// Walk parents back from node to next, then reverse.
				cycle := []int{n.nodes[next].ID, n.nodes[node].ID}
				for cur := node; cur != next; {
					cur = parent[cur]
					cycle = append(cycle, n.nodes[cur].ID)
				}
				slices.Reverse(cycle)
				return cycle
			}
			if color[next] == white {
				parent[next] = node
				if cycle := dfs(next); cycle != nil {
					return cycle
				}
			}
		}
		color[node] = black
		return nil
	}

	// Arena indices are already in ascending id order.
	for i := range n.nodes {
		if color[i] == white {
			if cycle := dfs(i); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// Len returns the number of activities in the network.
func (n *Network) Len() int {
	return len(n.nodes)
}

// Order returns activity ids in topological order.
func (n *Network) Order() []int {
	return n.ids(n.order)
}

// Predecessors returns the ids of activities that must finish before id.
func (n *Network) Predecessors(id int) []int {
	i, ok := n.index[id]
	if !ok {
		return nil
	}
	return n.ids(n.pred[i])
}

// Successors returns the ids of activities that wait on id.
func (n *Network) Successors(id int) []int {
	i, ok := n.index[id]
	if !ok {
		return nil
	}
	return n.ids(n.succ[i])
}

// Operator returns the combinator over id's incoming edges.
func (n *Network) Operator(id int) project.LogicalOperator {
	if i, ok := n.index[id]; ok {
		return n.nodes[i].Operator
	}
	return project.AND
}

// Sources returns activities without predecessors, ascending by id.
func (n *Network) Sources() []int {
	var out []int
	for i, node := range n.nodes {
		if len(n.pred[i]) == 0 {
			out = append(out, node.ID)
		}
	}
	return out
}

// Sinks returns activities without successors, ascending by id.
func (n *Network) Sinks() []int {
	var out []int
	for i, node := range n.nodes {
		if len(n.succ[i]) == 0 {
			out = append(out, node.ID)
		}
	}
	return out
}

func (n *Network) ids(idx []int) []int {
	out := make([]int, len(idx))
	for i, x := range idx {
		out[i] = n.nodes[x].ID
	}
	return out
}
