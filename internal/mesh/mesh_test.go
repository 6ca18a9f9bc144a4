package mesh

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkngwrapper/menagerie/internal/gpu"
	"github.com/vkngwrapper/menagerie/internal/gpu/gputest"
)

func TestBuiltinShapesAreValid(t *testing.T) {
	for _, typ := range Types {
		t.Run(typ.String(), func(t *testing.T) {
			assert.NoError(t, Builtin(typ).Validate())
		})
	}

	star := Builtin(Star)
	assert.Len(t, star.Vertices, 11)
	assert.Len(t, star.Indices, 30)
}

func TestParseType(t *testing.T) {
	typ, err := ParseType("square")
	require.NoError(t, err)
	assert.Equal(t, Square, typ)

	_, err = ParseType("hexagon")
	assert.Error(t, err)
	assert.Equal(t, "Type(7)", Type(7).String())
}

func TestConsumeRebasesIndices(t *testing.T) {
	var m Menagerie
	require.NoError(t, m.Consume(Triangle, Builtin(Triangle)))
	require.NoError(t, m.Consume(Square, Builtin(Square)))
	require.NoError(t, m.Consume(Star, Builtin(Star)))

	ranges := m.Ranges()
	assert.Equal(t, Range{FirstIndex: 0, IndexCount: 3}, ranges[Triangle])
	assert.Equal(t, Range{FirstIndex: 3, IndexCount: 6}, ranges[Square])
	assert.Equal(t, Range{FirstIndex: 9, IndexCount: 30}, ranges[Star])

	// The square's indices now start after the triangle's three vertices.
	assert.Equal(t, []uint32{3, 4, 5, 5, 6, 3}, m.Indices()[3:9])
	// The star's center is vertex 7.
	assert.Equal(t, uint32(7), m.Indices()[9])

	vertexData, err := m.VertexData()
	require.NoError(t, err)
	assert.Len(t, vertexData, (3+4+11)*VertexSize)

	indexData, err := m.IndexData()
	require.NoError(t, err)
	assert.Len(t, indexData, 39*4)
}

func TestConsumeRejectsBadInput(t *testing.T) {
	var m Menagerie
	require.NoError(t, m.Consume(Triangle, Builtin(Triangle)))

	assert.Error(t, m.Consume(Triangle, Builtin(Triangle)))
	assert.Error(t, m.Consume(Type(5), Builtin(Square)))
	assert.Error(t, m.Consume(Square, Shape{Vertices: []Vertex{{}}, Indices: []uint32{0, 1, 0}}))
	assert.Error(t, m.Consume(Square, Shape{Vertices: []Vertex{{}}, Indices: []uint32{0, 0}}))
}

func TestFinalizeUploadsBothLumps(t *testing.T) {
	dev := gputest.NewDevice()

	var m Menagerie
	require.NoError(t, m.Consume(Triangle, Builtin(Triangle)))
	_, err := m.Finalize(dev)
	assert.Error(t, err)

	require.NoError(t, m.Consume(Square, Builtin(Square)))
	require.NoError(t, m.Consume(Star, Builtin(Star)))

	g, err := m.Finalize(dev)
	require.NoError(t, err)

	assert.Equal(t, gpu.BufferUsageVertex, g.Vertices.(*gputest.Buffer).Usage)
	assert.Equal(t, gpu.BufferUsageIndex, g.Indices.(*gputest.Buffer).Usage)
	assert.Equal(t, 18*VertexSize, g.Vertices.Size())
	assert.Equal(t, Range{FirstIndex: 3, IndexCount: 6}, g.Range(Square))

	g.Destroy()
	g.Destroy()
	assert.Zero(t, dev.LiveTotal())
}

const quadOBJ = `
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
f 1/1 2/2 3/3 4/4
`

func TestDecodeOBJFansFaces(t *testing.T) {
	s, err := DecodeOBJ(strings.NewReader(quadOBJ), nil)
	require.NoError(t, err)

	assert.Len(t, s.Vertices, 4)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, s.Indices)

	first := s.Vertices[0]
	assert.Equal(t, Vertex{X: 0, Y: 0, R: 1, G: 1, B: 1, U: 0, V: 1}, first)
	assert.Equal(t, float32(1), s.Vertices[2].X)
	assert.Equal(t, float32(0), s.Vertices[2].V)
}

func TestLoadOBJMissingFile(t *testing.T) {
	_, err := LoadOBJ("testdata/does-not-exist.obj")
	assert.Error(t, err)
}
