package scene

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/common"

	"github.com/vkngwrapper/menagerie/internal/gpu"
	"github.com/vkngwrapper/menagerie/internal/mesh"
	"github.com/vkngwrapper/menagerie/internal/record"
)

func readMatrix(src []byte) mgl32.Mat4 {
	var m mgl32.Mat4
	for i := range m {
		m[i] = math.Float32frombits(common.ByteOrder.Uint32(src[i*4:]))
	}
	return m
}

func TestDefaultSceneRows(t *testing.T) {
	s := Default()

	for _, typ := range mesh.Types {
		assert.Equal(t, 10, s.Count(typ))
	}
	assert.Equal(t, 30, s.Total())
	assert.Equal(t, []record.Draw{
		{Mesh: mesh.Triangle, Instances: 10},
		{Mesh: mesh.Square, Instances: 10},
		{Mesh: mesh.Star, Instances: 10},
	}, s.Draws())
}

func TestWriteInstancesOrdersByMeshType(t *testing.T) {
	s := &Scene{}
	s.Add(mesh.Star, mgl32.Vec3{3, 0, 0})
	s.Add(mesh.Triangle, mgl32.Vec3{1, 0, 0})
	s.Add(mesh.Square, mgl32.Vec3{2, 0, 0})
	s.Add(mesh.Triangle, mgl32.Vec3{1, 1, 0})

	dst := make([]byte, 8*matrixSize)
	n, err := s.WriteInstances(dst)
	require.NoError(t, err)
	require.Equal(t, 4, n)

	// Translation lives in the last column.
	wantX := []float32{1, 1, 2, 3}
	for i, x := range wantX {
		m := readMatrix(dst[i*matrixSize:])
		assert.Equal(t, x, m[12], "instance %d", i)
	}
	assert.Equal(t, float32(1), readMatrix(dst[matrixSize:])[13])
}

func TestWriteInstancesRejectsOverflow(t *testing.T) {
	s := Default()
	dst := make([]byte, 29*matrixSize)

	n, err := s.WriteInstances(dst)
	assert.Error(t, err)
	assert.Zero(t, n)
	assert.Equal(t, make([]byte, len(dst)), dst)
}

func TestCameraFlipsY(t *testing.T) {
	c := DefaultCamera()
	extent := gpu.Extent2D{Width: 800, Height: 600}

	view, projection, viewProjection := c.Matrices(extent)

	expected := mgl32.Perspective(mgl32.DegToRad(45), 800.0/600.0, 0.1, 10)
	assert.InDelta(t, -expected[5], projection[5], 1e-6)
	assert.InDelta(t, expected[0], projection[0], 1e-6)
	assert.True(t, viewProjection.ApproxEqual(projection.Mul4(view)))

	// The center of the scene projects to the middle of the screen.
	center := viewProjection.Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.InDelta(t, 0, center.X()/center.W(), 1e-5)
	assert.InDelta(t, 0, center.Y()/center.W(), 1e-5)
}

func TestWriteCamera(t *testing.T) {
	c := DefaultCamera()
	extent := gpu.Extent2D{Width: 640, Height: 480}

	assert.Error(t, c.WriteCamera(make([]byte, CameraSize-1), extent))

	dst := make([]byte, CameraSize)
	require.NoError(t, c.WriteCamera(dst, extent))

	view, projection, viewProjection := c.Matrices(extent)
	assert.Equal(t, view, readMatrix(dst))
	assert.Equal(t, projection, readMatrix(dst[matrixSize:]))
	assert.Equal(t, viewProjection, readMatrix(dst[2*matrixSize:]))
}

func TestCameraHandlesEmptyExtent(t *testing.T) {
	_, projection, _ := DefaultCamera().Matrices(gpu.Extent2D{})
	assert.False(t, math.IsNaN(float64(projection[0])))
}
