package covertree

import (
	"container/heap"
	"math"
)

// Node is a cover-tree node.
type Node struct {
	level    int32
	point    *Point
	children []Node
	radius   float32
}

func newNode(point *Point, level int32) Node {
	return Node{level: level, point: point}
}

// Tree is a cover tree. Build it with Insert, call Freeze, then query.
type Tree struct {
	root *Node
	base float32
	size int
}

// New constructs a Euclidean cover tree with the provided base. A base <= 1
// defaults to 1.3.
func New(base float32) *Tree {
	if base <= 1 {
		base = 1.3
	}
	return &Tree{base: base}
}

// Base returns the level base.
func (t *Tree) Base() float32 { return t.base }

// Len returns the number of inserted points.
func (t *Tree) Len() int { return t.size }

// Insert adds a point. Radii are stale until the next Freeze.
func (t *Tree) Insert(point *Point) {
	t.size++
	if t.root == nil {
		node := newNode(point, 0)
		t.root = &node
		return
	}
	t.insert(t.root, point, t.root.level)
}

func (t *Tree) insert(node *Node, point *Point, level int32) {
	for {
		baseLevel := float32(math.Pow(float64(t.base), float64(level)))
		d := distance(point, node.point)
		if d < baseLevel {
			descended := false
			for i := range node.children {
				child := &node.children[i]
				if distance(point, child.point) < baseLevel {
					node = child
					level--
					descended = true
					break
				}
			}
			if !descended {
				node.children = append(node.children, newNode(point, level-1))
				return
			}
			continue
		}
		level++
		if level > node.level {
			newRoot := newNode(point, level)
			newRoot.children = append(newRoot.children, *t.root)
			t.root = &newRoot
			return
		}
	}
}

// Freeze computes every subtree radius. Queries require a frozen tree.
func (t *Tree) Freeze() {
	if t.root != nil {
		t.computeRadius(t.root)
	}
}

// computeRadius bounds the distance from n to any descendant using the
// triangle inequality.
func (t *Tree) computeRadius(n *Node) float32 {
	maxR := float32(0)
	for i := range n.children {
		child := &n.children[i]
		d := distance(n.point, child.point) + t.computeRadius(child)
		if d > maxR {
			maxR = d
		}
	}
	n.radius = maxR
	return maxR
}

// KNearestNeighbors performs a best-first search with a node priority
// queue and returns up to k neighbours ordered by ascending distance, ties
// by ascending position.
func (t *Tree) KNearestNeighbors(query *Point, k int) []Neighbor {
	if t.root == nil || k <= 0 {
		return nil
	}
	nh := &Neighbors{}
	pq := &nodeQueue{}
	rootDist := distance(query, t.root.point)
	heap.Push(pq, nodeItem{node: t.root, lb: rootDist - t.root.radius, centerDist: rootDist})

	for pq.Len() > 0 {
		top := heap.Pop(pq).(nodeItem)
		if nh.Len() == k && prunable(top.lb, (*nh)[0].Distance) {
			break
		}
		cand := Neighbor{Point: top.node.point, Distance: top.centerDist}
		if nh.Len() < k {
			heap.Push(nh, cand)
		} else if (*nh)[0].worse(cand) {
			(*nh)[0] = cand
			heap.Fix(nh, 0)
		}
		for i := range top.node.children {
			child := &top.node.children[i]
			cd := distance(query, child.point)
			lb := cd - child.radius
			if nh.Len() == k && prunable(lb, (*nh)[0].Distance) {
				continue
			}
			heap.Push(pq, nodeItem{node: child, lb: lb, centerDist: cd})
		}
	}
	result := make([]Neighbor, nh.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(nh).(Neighbor)
	}
	return result
}

// pruneSlack absorbs float32 rounding in radius sums so that ties at the
// current worst distance are still visited.
const pruneSlack = 1e-5

func prunable(lb, worst float32) bool { return lb > worst+pruneSlack*(1+worst) }

type nodeItem struct {
	node       *Node
	lb         float32
	centerDist float32
}

type nodeQueue []nodeItem

func (q nodeQueue) Len() int            { return len(q) }
func (q nodeQueue) Less(i, j int) bool  { return q[i].lb < q[j].lb }
func (q nodeQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *nodeQueue) Push(x interface{}) { *q = append(*q, x.(nodeItem)) }
func (q *nodeQueue) Pop() interface{} {
	old := *q
	n := len(old)
	x := old[n-1]
	*q = old[:n-1]
	return x
}
