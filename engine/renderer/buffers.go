package renderer

import (
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/kestrel/engine/containers"
	"github.com/spaghettifunk/kestrel/engine/core"
	kmath "github.com/spaghettifunk/kestrel/engine/math"
	"github.com/spaghettifunk/kestrel/engine/renderer/metadata"
	"github.com/spaghettifunk/kestrel/engine/renderer/vulkan"
)

// VertexBuffer is a host-visible vertex stream created through a ResourceFactory.
type VertexBuffer struct {
	factory  vulkan.ResourceFactory
	handle   containers.Handle
	elements []metadata.VertexElement
	stride   uint32
	count    uint32
}

var _ metadata.VertexBuffer = (*VertexBuffer)(nil)

// NewVertexBuffer creates a buffer for count vertices laid out as elements,
// assigning consecutive offsets in declaration order.
func NewVertexBuffer(factory vulkan.ResourceFactory, elements []metadata.VertexElement, count uint32) (*VertexBuffer, error) {
	if count == 0 || len(elements) == 0 {
		return nil, errors.New("vertex buffer needs elements and a vertex count")
	}
	vb := &VertexBuffer{factory: factory, count: count}
	vb.elements = make([]metadata.VertexElement, len(elements))
	for i, e := range elements {
		e.Offset = vb.stride
		vb.elements[i] = e
		vb.stride += metadata.VertexElementTypeSize[e.Type]
	}
	h, err := factory.CreateBuffer(vulkan.BufferVertex, uint64(vb.stride)*uint64(count))
	if err != nil {
		return nil, errors.Wrap(err, "creating vertex buffer")
	}
	vb.handle = h
	return vb, nil
}

// SetData uploads float vertex data starting at vertex start.
func (vb *VertexBuffer) SetData(start uint32, data []float32) error {
	return vb.factory.UpdateBuffer(vb.handle, uint64(start)*uint64(vb.stride), float32Bytes(data))
}

func (vb *VertexBuffer) GPUObject() containers.Handle       { return vb.handle }
func (vb *VertexBuffer) VertexCount() uint32                { return vb.count }
func (vb *VertexBuffer) VertexSize() uint32                 { return vb.stride }
func (vb *VertexBuffer) Elements() []metadata.VertexElement { return vb.elements }

func (vb *VertexBuffer) Destroy() {
	vb.factory.DestroyBuffer(vb.handle)
	vb.handle = containers.NullHandle
}

// IndexBuffer holds 16 or 32 bit indices.
type IndexBuffer struct {
	factory vulkan.ResourceFactory
	handle  containers.Handle
	size    uint32
	count   uint32
}

var _ metadata.IndexBuffer = (*IndexBuffer)(nil)

func NewIndexBuffer(factory vulkan.ResourceFactory, count uint32, large bool) (*IndexBuffer, error) {
	if count == 0 {
		return nil, errors.New("index buffer needs an index count")
	}
	ib := &IndexBuffer{factory: factory, count: count, size: 2}
	if large {
		ib.size = 4
	}
	h, err := factory.CreateBuffer(vulkan.BufferIndex, uint64(ib.size)*uint64(count))
	if err != nil {
		return nil, errors.Wrap(err, "creating index buffer")
	}
	ib.handle = h
	return ib, nil
}

// SetData uploads indices starting at index start, narrowing to 16 bits when
// the buffer is not large.
func (ib *IndexBuffer) SetData(start uint32, indices []uint32) error {
	buf := make([]byte, len(indices)*int(ib.size))
	for i, v := range indices {
		if ib.size == 2 {
			binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
		} else {
			binary.LittleEndian.PutUint32(buf[i*4:], v)
		}
	}
	return ib.factory.UpdateBuffer(ib.handle, uint64(start)*uint64(ib.size), buf)
}

func (ib *IndexBuffer) GPUObject() containers.Handle { return ib.handle }
func (ib *IndexBuffer) IndexCount() uint32           { return ib.count }
func (ib *IndexBuffer) IndexSize() uint32            { return ib.size }

func (ib *IndexBuffer) Destroy() {
	ib.factory.DestroyBuffer(ib.handle)
	ib.handle = containers.NullHandle
}

// ConstantBuffer keeps a shadow copy of uniform data for one or more objects.
// Objects are laid out at the device's uniform offset alignment so the object
// index can be addressed through a dynamic offset. The GPU copy is a ring of
// regions, one more than the frames that can be in flight; the first upload
// of a frame moves to the next region so earlier frames keep their data.
type ConstantBuffer struct {
	factory  vulkan.ResourceFactory
	regions  []containers.Handle
	region   int
	uploaded bool
	frame    uint64
	size     uint32
	stride   uint32
	shadow   []byte
	object   uint32
	dirty    bool
}

var _ metadata.ConstantBuffer = (*ConstantBuffer)(nil)

func NewConstantBuffer(factory vulkan.ResourceFactory, size, objects uint32) (*ConstantBuffer, error) {
	if size == 0 || objects == 0 {
		return nil, errors.New("constant buffer needs a size and an object count")
	}
	limits := factory.Limits()
	stride := uint32(kmath.AlignUp(uint64(size), limits.MinUniformBufferOffsetAlignment))
	cb := &ConstantBuffer{
		factory: factory,
		regions: make([]containers.Handle, 0, max(limits.MaxFramesInFlight, 1)+1),
		size:    size,
		stride:  stride,
		shadow:  make([]byte, int(stride)*int(objects)),
		dirty:   true,
	}
	for len(cb.regions) < cap(cb.regions) {
		h, err := factory.CreateBuffer(vulkan.BufferUniform, uint64(stride)*uint64(objects))
		if err != nil {
			cb.Destroy()
			return nil, errors.Wrap(err, "creating constant buffer")
		}
		cb.regions = append(cb.regions, h)
	}
	return cb, nil
}

// SetObjectIndex selects the object that following parameter writes and the
// next draw address.
func (cb *ConstantBuffer) SetObjectIndex(index uint32) {
	if int(index)*int(cb.stride) >= len(cb.shadow) {
		core.LogWarn("constant buffer object %d out of range", index)
		return
	}
	cb.object = index
}

// SetParameter copies data at offset inside the current object.
func (cb *ConstantBuffer) SetParameter(offset uint32, data []byte) {
	if offset+uint32(len(data)) > cb.size {
		core.LogWarn("constant buffer write of %d bytes at %d overflows size %d", len(data), offset, cb.size)
		return
	}
	copy(cb.shadow[cb.object*cb.stride+offset:], data)
	cb.dirty = true
}

func (cb *ConstantBuffer) SetFloats(offset uint32, values ...float32) {
	cb.SetParameter(offset, float32Bytes(values))
}

func (cb *ConstantBuffer) SetMat4(offset uint32, m mgl32.Mat4) {
	cb.SetParameter(offset, float32Bytes(m[:]))
}

func (cb *ConstantBuffer) GPUObject() containers.Handle {
	if len(cb.regions) == 0 {
		return containers.NullHandle
	}
	return cb.regions[cb.region]
}

func (cb *ConstantBuffer) Size() uint32        { return cb.size }
func (cb *ConstantBuffer) IsDirty() bool       { return cb.dirty }
func (cb *ConstantBuffer) ObjectIndex() uint32 { return cb.object }

// Apply uploads the shadow copy for frame. Uploads within one frame rewrite
// the same region. A failed upload stays dirty and is retried on the next draw.
func (cb *ConstantBuffer) Apply(frame uint64) {
	if !cb.dirty || len(cb.regions) == 0 {
		return
	}
	region := cb.region
	if cb.uploaded && frame != cb.frame {
		region = (region + 1) % len(cb.regions)
	}
	if err := cb.factory.UpdateBuffer(cb.regions[region], 0, cb.shadow); err != nil {
		core.LogError("constant buffer upload failed: %s", err)
		return
	}
	cb.region = region
	cb.frame = frame
	cb.uploaded = true
	cb.dirty = false
}

func (cb *ConstantBuffer) Destroy() {
	for _, h := range cb.regions {
		cb.factory.DestroyBuffer(h)
	}
	cb.regions = nil
	cb.region = 0
}

func float32Bytes(values []float32) []byte {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}
