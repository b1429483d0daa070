package planner

import "voxel-planner/internal/grid"

// Vertex is a node of the sampling tree.
type Vertex struct {
	Pos      grid.Point
	Parent   int     // Index of the parent vertex, -1 for the root
	Cost     float64 // Path length from the root
	Children []int
}

// Tree is a rooted tree of collision-free vertices.
type Tree struct {
	Vertices []Vertex
}

// NewTree creates a tree holding only the root.
func NewTree(root grid.Point) *Tree {
	return &Tree{Vertices: []Vertex{{Pos: root, Parent: -1}}}
}

// Len returns the number of vertices.
func (t *Tree) Len() int { return len(t.Vertices) }

// Add appends a vertex under parent and returns its index.
func (t *Tree) Add(pos grid.Point, parent int, cost float64) int {
	id := len(t.Vertices)
	t.Vertices = append(t.Vertices, Vertex{Pos: pos, Parent: parent, Cost: cost})
	t.Vertices[parent].Children = append(t.Vertices[parent].Children, id)
	return id
}

// Rewire moves v under newParent with the given cost and shifts the cost of
// every descendant of v by the same amount.
func (t *Tree) Rewire(v, newParent int, cost float64) {
	old := t.Vertices[v].Parent
	if old >= 0 {
		siblings := t.Vertices[old].Children
		for i, c := range siblings {
			if c == v {
				t.Vertices[old].Children = append(siblings[:i], siblings[i+1:]...)
				break
			}
		}
	}
	t.Vertices[v].Parent = newParent
	t.Vertices[newParent].Children = append(t.Vertices[newParent].Children, v)

	delta := cost - t.Vertices[v].Cost
	queue := []int{v}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		t.Vertices[cur].Cost += delta
		queue = append(queue, t.Vertices[cur].Children...)
	}
}

// PathTo returns the vertex positions from the root to v.
func (t *Tree) PathTo(v int) []grid.Point {
	var rev []grid.Point
	for cur := v; cur >= 0; cur = t.Vertices[cur].Parent {
		rev = append(rev, t.Vertices[cur].Pos)
	}
	out := make([]grid.Point, len(rev))
	for i, p := range rev {
		out[len(rev)-1-i] = p
	}
	return out
}

// Edges returns every parent-child edge as a line segment for visualization.
func (t *Tree) Edges() [][2]grid.Point {
	lines := make([][2]grid.Point, 0, len(t.Vertices))
	for _, v := range t.Vertices {
		if v.Parent < 0 {
			continue
		}
		lines = append(lines, [2]grid.Point{t.Vertices[v.Parent].Pos, v.Pos})
	}
	return lines
}
