//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// bufferPool caches device buffers by label. A request with a different
// size or usage under the same label destroys and recreates the buffer,
// so resident stage outputs follow frame-size changes automatically.
type bufferPool struct {
	device hal.Device
	bufs   map[string]pooledBuffer
}

type pooledBuffer struct {
	buf   hal.Buffer
	size  uint64
	usage gputypes.BufferUsage
}

func newBufferPool(device hal.Device) *bufferPool {
	return &bufferPool{device: device, bufs: make(map[string]pooledBuffer)}
}

func (p *bufferPool) get(label string, size uint64, usage gputypes.BufferUsage) (hal.Buffer, error) {
	if pb, ok := p.bufs[label]; ok {
		if pb.size == size && pb.usage == usage {
			return pb.buf, nil
		}
		p.device.DestroyBuffer(pb.buf)
		delete(p.bufs, label)
	}
	buf, err := p.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("create buffer %s (%d bytes): %w", label, size, err)
	}
	p.bufs[label] = pooledBuffer{buf: buf, size: size, usage: usage}
	return buf, nil
}

// storage returns a storage-usage image buffer.
func (p *bufferPool) storage(label string, size uint64) (hal.Buffer, error) {
	return p.get(label, size, gputypes.BufferUsageStorage|gputypes.BufferUsageCopySrc|gputypes.BufferUsageCopyDst)
}

// staging returns a CPU-readable readback buffer.
func (p *bufferPool) staging(label string, size uint64) (hal.Buffer, error) {
	return p.get(label, size, gputypes.BufferUsageMapRead|gputypes.BufferUsageCopyDst)
}

// uniform returns a uniform buffer.
func (p *bufferPool) uniform(label string, size uint64) (hal.Buffer, error) {
	return p.get(label, size, gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
}

// release destroys a single labeled buffer if present.
func (p *bufferPool) release(label string) {
	if pb, ok := p.bufs[label]; ok {
		p.device.DestroyBuffer(pb.buf)
		delete(p.bufs, label)
	}
}

func (p *bufferPool) destroy() {
	for label, pb := range p.bufs {
		p.device.DestroyBuffer(pb.buf)
		delete(p.bufs, label)
	}
}
