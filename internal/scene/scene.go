// Package scene holds what is drawn each frame and turns it into the bytes the shaders
// read.
package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/vkngwrapper/menagerie/internal/mesh"
	"github.com/vkngwrapper/menagerie/internal/record"
)

// Scene is an ordered list of instance positions per mesh type.
type Scene struct {
	Positions [mesh.Count][]mgl32.Vec3
}

// Default lays each mesh type out on its own row: triangles above, squares through the
// middle, stars below.
func Default() *Scene {
	s := &Scene{}
	rows := [mesh.Count]float32{-0.3, 0, 0.3}
	for _, t := range mesh.Types {
		for i := 0; i < 10; i++ {
			y := -1 + 0.2*float32(i)
			s.Add(t, mgl32.Vec3{0, y, rows[t]})
		}
	}
	return s
}

func (s *Scene) Add(t mesh.Type, position mgl32.Vec3) {
	s.Positions[t] = append(s.Positions[t], position)
}

// Count is the number of instances of t.
func (s *Scene) Count(t mesh.Type) int {
	return len(s.Positions[t])
}

// Total is the number of instances of every type.
func (s *Scene) Total() int {
	total := 0
	for _, t := range mesh.Types {
		total += s.Count(t)
	}
	return total
}

// Draws returns one draw per mesh type in the order the model matrices are written.
func (s *Scene) Draws() []record.Draw {
	draws := make([]record.Draw, 0, mesh.Count)
	for _, t := range mesh.Types {
		draws = append(draws, record.Draw{Mesh: t, Instances: s.Count(t)})
	}
	return draws
}
