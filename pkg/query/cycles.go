package query

import (
	"sort"

	"github.com/plaenen/graphstore/pkg/projection"
)

// HasCycle reports whether a directed view contains a cycle, by three-color
// depth-first search.
func HasCycle(v projection.View) bool {
	return FindCycle(v) != nil
}

// FindCycle returns one directed cycle as a node sequence (first node
// repeated at the end), or nil when the view is acyclic.
func FindCycle(v projection.View) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int)
	parent := make(map[string]string)

	var cycle []string
	var walk func(node string) bool
	walk = func(node string) bool {
		color[node] = gray
		for _, e := range v.Out(node) {
			switch color[e.To] {
			case white:
				parent[e.To] = node
				if walk(e.To) {
					return true
				}
			case gray:
				// Back edge closes a cycle; unwind through parents.
				cycle = []string{e.To}
				for n := node; n != e.To; n = parent[n] {
					cycle = append([]string{n}, cycle...)
				}
				cycle = append([]string{e.To}, cycle...)
				return true
			}
		}
		color[node] = black
		return false
	}

	for _, node := range v.NodeIDs() {
		if color[node] == white {
			if walk(node) {
				return cycle
			}
		}
	}
	return nil
}

// WouldCycle reports whether adding the directed edge from->to would create
// a cycle: true iff from is reachable from to (or the edge is a self loop).
func WouldCycle(v projection.View, from, to string) bool {
	if from == to {
		return true
	}
	return Reachable(v, to, from)
}

// EnumerateCycles returns all simple cycles up to maxLen nodes, each as a
// node sequence without the closing repeat. Cycles are canonicalized to
// start at their smallest node so each is reported once.
func EnumerateCycles(v projection.View, maxLen int, budget Budget) ([][]string, error) {
	nodes := v.NodeIDs()
	if err := budget.checkNodes("enumerate_cycles", len(nodes)); err != nil {
		return nil, err
	}
	cost := int64(len(nodes))
	for i := 0; i < maxLen && cost < 1<<40; i++ {
		cost *= 4
	}
	if err := budget.checkCost("enumerate_cycles", cost); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var cycles [][]string
	var path []string
	onPath := make(map[string]bool)

	var walk func(start, node string)
	walk = func(start, node string) {
		path = append(path, node)
		onPath[node] = true
		for _, e := range v.Out(node) {
			if e.To == start && len(path) >= 2 {
				recordCycle(&cycles, seen, path)
				continue
			}
			// Only extend to nodes greater than start, so each cycle is
			// discovered from its smallest node exactly once.
			if e.To > start && !onPath[e.To] && len(path) < maxLen {
				walk(start, e.To)
			}
		}
		path = path[:len(path)-1]
		onPath[node] = false
	}

	for _, start := range nodes {
		walk(start, start)
	}
	return cycles, nil
}

func recordCycle(cycles *[][]string, seen map[string]struct{}, path []string) {
	cycle := append([]string(nil), path...)
	key := ""
	for _, n := range cycle {
		key += n + "\x00"
	}
	if _, dup := seen[key]; dup {
		return
	}
	seen[key] = struct{}{}
	*cycles = append(*cycles, cycle)
}

// StronglyConnectedComponents returns the SCCs of a directed view via
// Tarjan's algorithm, each component sorted, components ordered by their
// smallest member.
func StronglyConnectedComponents(v projection.View) [][]string {
	index := make(map[string]int)
	lowlink := make(map[string]int)
	onStack := make(map[string]bool)
	var stack []string
	counter := 0
	var components [][]string

	var strongconnect func(node string)
	strongconnect = func(node string) {
		index[node] = counter
		lowlink[node] = counter
		counter++
		stack = append(stack, node)
		onStack[node] = true

		for _, e := range v.Out(node) {
			if _, visited := index[e.To]; !visited {
				strongconnect(e.To)
				if lowlink[e.To] < lowlink[node] {
					lowlink[node] = lowlink[e.To]
				}
			} else if onStack[e.To] && index[e.To] < lowlink[node] {
				lowlink[node] = index[e.To]
			}
		}

		if lowlink[node] == index[node] {
			var component []string
			for {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[top] = false
				component = append(component, top)
				if top == node {
					break
				}
			}
			sort.Strings(component)
			components = append(components, component)
		}
	}

	for _, node := range v.NodeIDs() {
		if _, visited := index[node]; !visited {
			strongconnect(node)
		}
	}
	sort.Slice(components, func(i, j int) bool {
		return components[i][0] < components[j][0]
	})
	return components
}
