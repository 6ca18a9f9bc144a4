package scene

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/core/v3/common"

	"github.com/vkngwrapper/menagerie/internal/gpu"
	"github.com/vkngwrapper/menagerie/internal/mesh"
)

const matrixSize = 16 * 4

// CameraSize is the packed size of the camera block.
const CameraSize = 3 * matrixSize

// Camera is a perspective camera looking from Eye at Center.
type Camera struct {
	Eye    mgl32.Vec3
	Center mgl32.Vec3
	Up     mgl32.Vec3
	// FovY is the vertical field of view in radians.
	FovY      float32
	Near, Far float32
}

func DefaultCamera() Camera {
	return Camera{
		Eye:    mgl32.Vec3{1, 0, -1},
		Center: mgl32.Vec3{0, 0, 0},
		Up:     mgl32.Vec3{0, 0, -1},
		FovY:   mgl32.DegToRad(45),
		Near:   0.1,
		Far:    10,
	}
}

// Matrices returns view, projection and their product for a target of the given size.
// The projection's Y axis is flipped because Vulkan's clip space points Y down.
func (c Camera) Matrices(extent gpu.Extent2D) (view, projection, viewProjection mgl32.Mat4) {
	aspect := float32(1)
	if !extent.Empty() {
		aspect = float32(extent.Width) / float32(extent.Height)
	}

	view = mgl32.LookAtV(c.Eye, c.Center, c.Up)
	projection = mgl32.Perspective(c.FovY, aspect, c.Near, c.Far)
	projection[5] *= -1
	viewProjection = projection.Mul4(view)
	return view, projection, viewProjection
}

// WriteCamera packs the camera block into dst.
func (c Camera) WriteCamera(dst []byte, extent gpu.Extent2D) error {
	if len(dst) < CameraSize {
		return errors.Newf("camera buffer holds %d bytes, need %d", len(dst), CameraSize)
	}

	view, projection, viewProjection := c.Matrices(extent)
	putMatrix(dst[0:], view)
	putMatrix(dst[matrixSize:], projection)
	putMatrix(dst[2*matrixSize:], viewProjection)
	return nil
}

// WriteInstances packs one model matrix per instance into dst: every triangle, then every
// square, then every star. It returns the number of matrices written, and writes nothing
// when dst cannot hold them all.
func (s *Scene) WriteInstances(dst []byte) (int, error) {
	total := s.Total()
	if total*matrixSize > len(dst) {
		return 0, errors.Newf("scene has %d instances, instance buffer holds %d", total, len(dst)/matrixSize)
	}

	offset := 0
	for _, t := range mesh.Types {
		for _, position := range s.Positions[t] {
			putMatrix(dst[offset:], mgl32.Translate3D(position.X(), position.Y(), position.Z()))
			offset += matrixSize
		}
	}
	return total, nil
}

func putMatrix(dst []byte, m mgl32.Mat4) {
	for i, v := range m {
		common.ByteOrder.PutUint32(dst[i*4:], math.Float32bits(v))
	}
}
