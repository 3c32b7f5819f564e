package wgpu

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/flare-ml/flare/internal/tensor"
)

// workgroupSize is the number of threads per 1D workgroup.
const workgroupSize = 256

// params accumulates the little-endian contents of a uniform block.
type params struct {
	buf []byte
}

func (p *params) putU32(v uint32) {
	p.buf = binary.LittleEndian.AppendUint32(p.buf, v)
}

func (p *params) putI32(v int32) {
	p.putU32(uint32(v)) //nolint:gosec // G115: two's complement reinterpretation
}

func (p *params) putF32(v float32) {
	p.putU32(math.Float32bits(v))
}

// bytes returns the block padded to the 16-byte uniform alignment.
func (p *params) bytes() []byte {
	for len(p.buf)%16 != 0 {
		p.buf = append(p.buf, 0)
	}
	return p.buf
}

// grid1D is the workgroup grid covering n elements with 1D dispatch.
func grid1D(n int) [3]uint32 {
	return [3]uint32{uint32((n + workgroupSize - 1) / workgroupSize), 1, 1} //nolint:gosec // G115: counts are non-negative
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// programDesc describes one program dispatch over registered arrays.
type programDesc struct {
	kind     string
	inputs   []*tensor.NDArray
	outShape tensor.Shape
	outDType tensor.DataType
	source   func() string
	params   *params
	groups   [3]uint32
}

// runProgram is the common dispatch path: it resolves input residency,
// compiles (or reuses) the pipeline keyed by the canonical signature,
// allocates the output, and submits one compute pass.
func (b *Backend) runProgram(desc programDesc) (*tensor.NDArray, error) {
	bufs := make([]*wgpu.Buffer, 0, len(desc.inputs)+1)
	ops := make([]operand, 0, len(desc.inputs))
	for _, in := range desc.inputs {
		rec, err := b.ensureDevice(in.DataID())
		if err != nil {
			return nil, err
		}
		bufs = append(bufs, rec.device)
		ops = append(ops, operand{shape: in.Shape(), dtype: in.DType()})
	}

	out, outRec, err := b.newOutput(desc.outShape, desc.outDType)
	if err != nil {
		return nil, err
	}
	bufs = append(bufs, outRec.device)

	sig := Signature(desc.kind, ops, operand{shape: desc.outShape, dtype: desc.outDType})
	if err := b.dispatch(sig, desc.source, bufs, desc.params, desc.groups); err != nil {
		_ = b.DisposeData(out.DataID())
		return nil, err
	}
	return out, nil
}

// dispatch submits one compute pass of the program keyed by sig over raw
// device blocks. bufs bind in order starting at binding 0; the uniform
// block, when present, binds last.
func (b *Backend) dispatch(sig string, source func() string, bufs []*wgpu.Buffer, pb *params, groups [3]uint32) error {
	pipeline, err := b.programs.GetOrCompile(sig, source)
	if err != nil {
		return err
	}

	timed := len(b.timers) > 0 && b.ctx.flags.DisjointTimer > 0
	hwTimed := timed && b.ctx.TimestampsEnabled()
	var start time.Time
	if timed && !hwTimed {
		b.ctx.RunBarrier()
		start = time.Now()
	}

	entries := make([]wgpu.BindGroupEntry, 0, len(bufs)+1)
	for i, buf := range bufs {
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: uint32(i), //nolint:gosec // G115: binding counts are tiny
			Buffer:  buf,
			Offset:  0,
			Size:    wgpu.WholeSize,
		})
	}

	var uniform *wgpu.Buffer
	if pb != nil {
		data := pb.bytes()
		uniform, err = b.ctx.device.CreateBuffer(&wgpu.BufferDescriptor{
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
			Size:  uint64(len(data)),
		})
		if err != nil {
			return err
		}
		defer uniform.Release()
		if err := b.ctx.Upload(uniform, data); err != nil {
			return err
		}
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: uint32(len(bufs)), //nolint:gosec // G115: binding counts are tiny
			Buffer:  uniform,
			Offset:  0,
			Size:    wgpu.WholeSize,
		})
	}

	bindGroup, err := b.ctx.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   sig,
		Layout:  pipeline.GetBindGroupLayout(0),
		Entries: entries,
	})
	if err != nil {
		return err
	}
	defer bindGroup.Release()

	encoder, err := b.ctx.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()

	var passDesc *wgpu.ComputePassDescriptor
	if hwTimed {
		writes, err := b.ctx.PassTimestamps()
		if err != nil {
			return err
		}
		passDesc = &wgpu.ComputePassDescriptor{TimestampWrites: writes}
	}

	pass := encoder.BeginComputePass(passDesc)
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(groups[0], groups[1], groups[2])
	pass.End()

	if hwTimed {
		if err := b.ctx.ResolveTimestamps(encoder); err != nil {
			return err
		}
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	b.ctx.queue.Submit(cmd)
	cmd.Release()

	switch {
	case hwTimed:
		elapsed, err := b.ctx.ReadTimestamps()
		if err != nil {
			return err
		}
		b.timers[len(b.timers)-1].total += elapsed
	case timed:
		b.ctx.RunBarrier()
		b.timers[len(b.timers)-1].total += time.Since(start)
	}
	return nil
}
