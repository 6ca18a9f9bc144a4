package mesh

import (
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/g3n/engine/loader/obj"
)

// DecodeOBJ reads a Wavefront OBJ model and flattens it into a Shape. Only the x and y
// of each position are kept; faces are fanned into triangles and vertices shared between
// faces are emitted once. Vertex colors are white so the texture shows unmodified. mtl
// may be nil.
func DecodeOBJ(r io.Reader, mtl io.Reader) (Shape, error) {
	if mtl == nil {
		mtl = strings.NewReader("")
	}

	decoder, err := obj.DecodeReader(r, mtl)
	if err != nil {
		return Shape{}, errors.Wrap(err, "decode obj")
	}

	var s Shape
	unique := make(map[[2]int]uint32)

	addVertex := func(face obj.Face, corner int) {
		vertInd := face.Vertices[corner]
		uvInd := -1
		if corner < len(face.Uvs) {
			uvInd = face.Uvs[corner]
		}

		key := [2]int{vertInd, uvInd}
		index, exists := unique[key]
		if !exists {
			vert := Vertex{
				X: decoder.Vertices[vertInd*3],
				Y: decoder.Vertices[vertInd*3+1],
				R: 1, G: 1, B: 1,
			}
			if uvInd >= 0 && uvInd*2+1 < len(decoder.Uvs) {
				vert.U = decoder.Uvs[uvInd*2]
				vert.V = 1.0 - decoder.Uvs[uvInd*2+1]
			}

			index = uint32(len(s.Vertices))
			s.Vertices = append(s.Vertices, vert)
			unique[key] = index
		}

		s.Indices = append(s.Indices, index)
	}

	for _, decodedObj := range decoder.Objects {
		for _, face := range decodedObj.Faces {
			for i := 2; i < len(face.Vertices); i++ {
				addVertex(face, 0)
				addVertex(face, i-1)
				addVertex(face, i)
			}
		}
	}

	if err := s.Validate(); err != nil {
		return Shape{}, errors.Wrap(err, "obj model")
	}
	return s, nil
}

// LoadOBJ reads an OBJ file. A material library next to it with the same base name is
// used when present.
func LoadOBJ(path string) (Shape, error) {
	meshFile, err := os.Open(path)
	if err != nil {
		return Shape{}, errors.Wrap(err, "open mesh")
	}
	defer meshFile.Close()

	var mtl io.Reader
	mtlPath := strings.TrimSuffix(path, ".obj") + ".mtl"
	if mtlPath != path {
		matFile, err := os.Open(mtlPath)
		if err == nil {
			defer matFile.Close()
			mtl = matFile
		}
	}

	s, err := DecodeOBJ(meshFile, mtl)
	if err != nil {
		return Shape{}, errors.Wrapf(err, "load %s", path)
	}
	return s, nil
}
