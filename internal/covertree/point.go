package covertree

// Point is a vector stored in the tree together with its caller-assigned
// position.
type Point struct {
	Pos    int32
	Vector []float32
}

// NewPoint constructs a point for the given position and vector.
func NewPoint(pos int32, vector []float32) *Point {
	return &Point{Pos: pos, Vector: vector}
}

// Neighbor describes a candidate returned by a kNN search.
type Neighbor struct {
	Point    *Point
	Distance float32
}

// worse orders neighbours so that larger distances, then larger positions,
// rank behind.
func (n Neighbor) worse(o Neighbor) bool {
	if n.Distance != o.Distance {
		return n.Distance > o.Distance
	}
	return n.Point.Pos > o.Point.Pos
}

// Neighbors implements heap.Interface as a max-heap: the root is the worst
// neighbour kept so far.
type Neighbors []Neighbor

func (h Neighbors) Len() int           { return len(h) }
func (h Neighbors) Less(i, j int) bool { return h[i].worse(h[j]) }
func (h Neighbors) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *Neighbors) Push(x interface{}) {
	*h = append(*h, x.(Neighbor))
}

func (h *Neighbors) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
