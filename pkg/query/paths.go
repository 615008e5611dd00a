package query

import (
	"container/heap"
	"fmt"
	"math"

	"github.com/plaenen/graphstore/pkg/graph"
	"github.com/plaenen/graphstore/pkg/projection"
)

// Path is a shortest-path result: total distance and the node sequence.
type Path struct {
	Distance float64
	Nodes    []string
}

type pqItem struct {
	node string
	dist float64
}

type priorityQueue []pqItem

func (q priorityQueue) Len() int            { return len(q) }
func (q priorityQueue) Less(i, j int) bool  { return q[i].dist < q[j].dist }
func (q priorityQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *priorityQueue) Push(x any)         { *q = append(*q, x.(pqItem)) }
func (q *priorityQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// ShortestPath runs Dijkstra from one node to another over non-negative
// edge weights in O((V+E) log V). A negative weight is rejected; an
// unreachable target returns ErrPathUnresolved.
func ShortestPath(v projection.View, from, to string, budget Budget) (*Path, error) {
	nodes := v.NodeIDs()
	if err := budget.checkNodes("shortest_path", len(nodes)); err != nil {
		return nil, err
	}
	if !v.HasNode(from) || !v.HasNode(to) {
		return nil, fmt.Errorf("%w: endpoint missing", graph.ErrUnknownEntity)
	}

	dist := map[string]float64{from: 0}
	prev := make(map[string]string)
	pq := &priorityQueue{{node: from, dist: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		item := heap.Pop(pq).(pqItem)
		if item.dist > dist[item.node] {
			continue
		}
		if item.node == to {
			break
		}
		for _, e := range v.Out(item.node) {
			w := e.Weight
			if w < 0 {
				return nil, fmt.Errorf("%w: negative edge weight %f on %s->%s",
					graph.ErrConstraintViolation, w, e.From, e.To)
			}
			if w == 0 {
				w = 1
			}
			next := item.dist + w
			if current, seen := dist[e.To]; !seen || next < current {
				dist[e.To] = next
				prev[e.To] = item.node
				heap.Push(pq, pqItem{node: e.To, dist: next})
			}
		}
	}

	d, ok := dist[to]
	if !ok {
		return nil, fmt.Errorf("%w: no path from %s to %s", graph.ErrPathUnresolved, from, to)
	}

	var path []string
	for node := to; ; node = prev[node] {
		path = append([]string{node}, path...)
		if node == from {
			break
		}
	}
	return &Path{Distance: d, Nodes: path}, nil
}

// Eccentricity returns the greatest shortest-path distance from a node to
// any reachable node, or +Inf when the node is unknown.
func Eccentricity(v projection.View, from string, budget Budget) (float64, error) {
	nodes := v.NodeIDs()
	if err := budget.checkNodes("eccentricity", len(nodes)); err != nil {
		return 0, err
	}
	if !v.HasNode(from) {
		return math.Inf(1), fmt.Errorf("%w: %s", graph.ErrUnknownEntity, from)
	}
	max := 0.0
	for _, to := range nodes {
		if to == from {
			continue
		}
		p, err := ShortestPath(v, from, to, budget)
		if err != nil {
			continue
		}
		if p.Distance > max {
			max = p.Distance
		}
	}
	return max, nil
}
