// Package mesh holds the shape geometry: the built-in triangle, square and star, OBJ
// import, and the packing of every shape into one vertex and one index buffer.
package mesh

import (
	"math"
	"strconv"

	"github.com/cockroachdb/errors"
)

type Type int

const (
	Triangle Type = iota
	Square
	Star
)

// Count is the number of mesh types.
const Count = 3

// Types lists every mesh type in draw order.
var Types = [Count]Type{Triangle, Square, Star}

var typeNames = [Count]string{"triangle", "square", "star"}

func (t Type) String() string {
	if t < 0 || int(t) >= Count {
		return "Type(" + strconv.Itoa(int(t)) + ")"
	}
	return typeNames[t]
}

// ParseType maps a lower-case name back to its Type.
func ParseType(name string) (Type, error) {
	for i, n := range typeNames {
		if n == name {
			return Type(i), nil
		}
	}
	return 0, errors.Newf("unknown mesh type %q", name)
}

// Vertex is a 2D position, an RGB color and a texture coordinate.
type Vertex struct {
	X, Y    float32
	R, G, B float32
	U, V    float32
}

// VertexSize is the packed size of a Vertex in bytes.
const VertexSize = 7 * 4

// Shape is a mesh's vertices and the triangle-list indices into them.
type Shape struct {
	Vertices []Vertex
	Indices  []uint32
}

// Builtin returns the geometry used for t when no OBJ file replaces it.
func Builtin(t Type) Shape {
	switch t {
	case Triangle:
		return Shape{
			Vertices: []Vertex{
				{X: 0, Y: -0.05, R: 0, G: 1, B: 0, U: 0.5, V: 0},
				{X: 0.05, Y: 0.05, R: 0, G: 1, B: 0, U: 1, V: 1},
				{X: -0.05, Y: 0.05, R: 0, G: 1, B: 0, U: 0, V: 1},
			},
			Indices: []uint32{0, 1, 2},
		}
	case Square:
		return Shape{
			Vertices: []Vertex{
				{X: -0.05, Y: 0.05, R: 1, G: 0, B: 0, U: 0, V: 1},
				{X: -0.05, Y: -0.05, R: 1, G: 0, B: 0, U: 0, V: 0},
				{X: 0.05, Y: -0.05, R: 1, G: 0, B: 0, U: 1, V: 0},
				{X: 0.05, Y: 0.05, R: 1, G: 0, B: 0, U: 1, V: 1},
			},
			Indices: []uint32{0, 1, 2, 2, 3, 0},
		}
	case Star:
		return star(0.08, 0.03)
	}
	return Shape{}
}

// star is a five-pointed star fanned around its center: vertex 0 is the center, the ring
// alternates outer and inner points starting straight up.
func star(outer, inner float32) Shape {
	const points = 5
	const ring = 2 * points

	s := Shape{Vertices: []Vertex{{X: 0, Y: 0, R: 0, G: 0, B: 1, U: 0.5, V: 0.5}}}
	for i := 0; i < ring; i++ {
		radius := outer
		if i%2 == 1 {
			radius = inner
		}
		angle := float64(i)*math.Pi/points - math.Pi/2
		x := radius * float32(math.Cos(angle))
		y := radius * float32(math.Sin(angle))
		s.Vertices = append(s.Vertices, Vertex{
			X: x, Y: y,
			R: 0, G: 0, B: 1,
			U: 0.5 + x/(2*outer), V: 0.5 + y/(2*outer),
		})
	}

	for i := 0; i < ring; i++ {
		next := (i+1)%ring + 1
		s.Indices = append(s.Indices, 0, uint32(i+1), uint32(next))
	}
	return s
}

// Validate checks that every index refers to a vertex and that the indices form whole
// triangles.
func (s Shape) Validate() error {
	if len(s.Vertices) == 0 || len(s.Indices) == 0 {
		return errors.New("shape has no geometry")
	}
	if len(s.Indices)%3 != 0 {
		return errors.Newf("index count %d is not a multiple of 3", len(s.Indices))
	}
	for i, idx := range s.Indices {
		if int(idx) >= len(s.Vertices) {
			return errors.Newf("index %d refers to vertex %d of %d", i, idx, len(s.Vertices))
		}
	}
	return nil
}
