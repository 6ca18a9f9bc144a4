package mesh

import (
	"bytes"
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"

	"github.com/vkngwrapper/menagerie/internal/gpu"
)

// Range locates one mesh type inside the shared index buffer.
type Range struct {
	FirstIndex int
	IndexCount int
}

// Geometry is the uploaded result of a Menagerie.
type Geometry struct {
	Vertices gpu.Buffer
	Indices  gpu.Buffer
	Ranges   [Count]Range
}

func (g *Geometry) Range(t Type) Range {
	return g.Ranges[t]
}

func (g *Geometry) Destroy() {
	if g == nil {
		return
	}
	if g.Vertices != nil {
		g.Vertices.Destroy()
		g.Vertices = nil
	}
	if g.Indices != nil {
		g.Indices.Destroy()
		g.Indices = nil
	}
}

// Menagerie gathers every mesh type into one vertex lump and one index lump. Indices are
// rebased as they are consumed so each shape can be drawn with a zero vertex offset.
type Menagerie struct {
	vertices []Vertex
	indices  []uint32
	ranges   [Count]Range
	consumed [Count]bool
}

// Consume appends s as the geometry for t. Each type may be consumed once.
func (m *Menagerie) Consume(t Type, s Shape) error {
	if t < 0 || int(t) >= Count {
		return errors.Newf("unknown mesh type %d", int(t))
	}
	if m.consumed[t] {
		return errors.Newf("mesh %s consumed twice", t)
	}
	if err := s.Validate(); err != nil {
		return errors.Wrapf(err, "mesh %s", t)
	}

	offset := uint32(len(m.vertices))
	m.ranges[t] = Range{FirstIndex: len(m.indices), IndexCount: len(s.Indices)}
	m.consumed[t] = true

	m.vertices = append(m.vertices, s.Vertices...)
	for _, idx := range s.Indices {
		m.indices = append(m.indices, idx+offset)
	}
	return nil
}

// Ranges returns the per-type index ranges consumed so far.
func (m *Menagerie) Ranges() [Count]Range {
	return m.ranges
}

// Indices returns the rebased index lump.
func (m *Menagerie) Indices() []uint32 {
	return m.indices
}

// VertexData packs the vertex lump in the device's byte order.
func (m *Menagerie) VertexData() ([]byte, error) {
	return pack(m.vertices)
}

// IndexData packs the index lump in the device's byte order.
func (m *Menagerie) IndexData() ([]byte, error) {
	return pack(m.indices)
}

func pack(data any) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, common.ByteOrder, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Finalize uploads both lumps into device-local buffers. Every mesh type must have been
// consumed.
func (m *Menagerie) Finalize(dev gpu.Device) (*Geometry, error) {
	for _, t := range Types {
		if !m.consumed[t] {
			return nil, errors.Newf("mesh %s was never consumed", t)
		}
	}

	vertexData, err := m.VertexData()
	if err != nil {
		return nil, errors.Wrap(err, "pack vertices")
	}
	indexData, err := m.IndexData()
	if err != nil {
		return nil, errors.Wrap(err, "pack indices")
	}

	g := &Geometry{Ranges: m.ranges}

	g.Vertices, err = dev.NewDeviceBuffer(vertexData, gpu.BufferUsageVertex)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "upload vertex buffer"), gpu.ErrDeviceCreation)
	}

	g.Indices, err = dev.NewDeviceBuffer(indexData, gpu.BufferUsageIndex)
	if err != nil {
		g.Destroy()
		return nil, errors.Mark(errors.Wrap(err, "upload index buffer"), gpu.ErrDeviceCreation)
	}

	return g, nil
}
