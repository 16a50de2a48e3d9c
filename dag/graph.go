package dag

import (
	"fmt"
	"sort"
)

// Graph declares nodes and the directed edges between them.
type Graph struct {
	Nodes []string
	Edges []Edge
}

// Edge is a directed link: data flows From -> To.
type Edge struct {
	From string
	To   string
}

func (g *Graph) nodeSet() map[string]bool {
	set := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		set[n] = true
	}
	return set
}

// Validate checks that every edge references a declared node and that no
// node is declared twice.
func (g *Graph) Validate() error {
	set := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if set[n] {
			return fmt.Errorf("dag: node %q declared twice", n)
		}
		set[n] = true
	}
	for _, e := range g.Edges {
		if !set[e.From] {
			return fmt.Errorf("dag: edge references unknown node %q", e.From)
		}
		if !set[e.To] {
			return fmt.Errorf("dag: edge references unknown node %q", e.To)
		}
		if e.From == e.To {
			return fmt.Errorf("dag: node %q links to itself", e.From)
		}
	}
	return nil
}

// BuildLevels groups nodes with Kahn's algorithm: level 0 holds nodes
// without parents, and every node sits in a later level than all of its
// parents. Names are sorted within a level. A cycle is an error.
func BuildLevels(g *Graph) ([][]string, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}

	inDegree := make(map[string]int, len(g.Nodes))
	children := make(map[string][]string)
	for _, n := range g.Nodes {
		inDegree[n] = 0
	}
	for _, e := range g.Edges {
		inDegree[e.To]++
		children[e.From] = append(children[e.From], e.To)
	}

	var queue []string
	for _, n := range g.Nodes {
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}

	var levels [][]string
	visited := 0
	for len(queue) > 0 {
		sort.Strings(queue)
		levels = append(levels, queue)
		visited += len(queue)

		var next []string
		for _, n := range queue {
			for _, c := range children[n] {
				inDegree[c]--
				if inDegree[c] == 0 {
					next = append(next, c)
				}
			}
		}
		queue = next
	}

	if visited != len(g.Nodes) {
		return nil, fmt.Errorf("dag: cycle detected, processed %d of %d nodes", visited, len(g.Nodes))
	}
	return levels, nil
}

// Order flattens BuildLevels into a single topological order.
func Order(g *Graph) ([]string, error) {
	levels, err := BuildLevels(g)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(g.Nodes))
	for _, l := range levels {
		out = append(out, l...)
	}
	return out, nil
}

// Parents returns the sorted direct predecessors of node.
func Parents(g *Graph, node string) []string {
	var out []string
	for _, e := range g.Edges {
		if e.To == node {
			out = append(out, e.From)
		}
	}
	return dedupSorted(out)
}

// Children returns the sorted direct successors of node.
func Children(g *Graph, node string) []string {
	var out []string
	for _, e := range g.Edges {
		if e.From == node {
			out = append(out, e.To)
		}
	}
	return dedupSorted(out)
}

// Roots returns the sorted nodes without parents.
func Roots(g *Graph) []string {
	hasParent := make(map[string]bool)
	for _, e := range g.Edges {
		hasParent[e.To] = true
	}
	var out []string
	for _, n := range g.Nodes {
		if !hasParent[n] {
			out = append(out, n)
		}
	}
	return dedupSorted(out)
}

// Leaves returns the sorted nodes without children.
func Leaves(g *Graph) []string {
	hasChild := make(map[string]bool)
	for _, e := range g.Edges {
		hasChild[e.From] = true
	}
	var out []string
	for _, n := range g.Nodes {
		if !hasChild[n] {
			out = append(out, n)
		}
	}
	return dedupSorted(out)
}

// Isolated returns the sorted nodes with neither parents nor children.
func Isolated(g *Graph) []string {
	linked := make(map[string]bool)
	for _, e := range g.Edges {
		linked[e.From] = true
		linked[e.To] = true
	}
	var out []string
	for _, n := range g.Nodes {
		if !linked[n] {
			out = append(out, n)
		}
	}
	return dedupSorted(out)
}

// Reachable returns every node reachable from start, start included.
func Reachable(g *Graph, start string) map[string]bool {
	if !g.nodeSet()[start] {
		return map[string]bool{}
	}
	children := make(map[string][]string)
	for _, e := range g.Edges {
		children[e.From] = append(children[e.From], e.To)
	}
	seen := map[string]bool{start: true}
	stack := []string{start}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range children[n] {
			if !seen[c] {
				seen[c] = true
				stack = append(stack, c)
			}
		}
	}
	return seen
}

func dedupSorted(in []string) []string {
	sort.Strings(in)
	out := in[:0]
	for i, s := range in {
		if i == 0 || s != in[i-1] {
			out = append(out, s)
		}
	}
	return out
}
