package wgpu

import (
	"fmt"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/flare-ml/flare/internal/tensor"
)

// operand describes one participant of an operation for signature purposes.
type operand struct {
	shape tensor.Shape
	dtype tensor.DataType
}

// Signature builds the canonical key for a compiled program: operation kind
// plus every operand shape/encoding and the output shape/encoding. Two
// logically different operations must never collide, so everything that
// affects generated source is folded in.
func Signature(kind string, inputs []operand, out operand) string {
	var sb strings.Builder
	sb.WriteString(kind)
	for _, in := range inputs {
		fmt.Fprintf(&sb, "|%s:%s", in.shape, in.dtype)
	}
	fmt.Fprintf(&sb, "->%s:%s", out.shape, out.dtype)
	return sb.String()
}

// ProgramCache maps program signatures to compiled compute pipelines.
// Compilation is deterministic per signature within one device context, so
// entries are never invalidated before full teardown.
type ProgramCache struct {
	ctx *Context

	// No lock: the cache is only touched from the dispatcher's single
	// logical thread.
	shaders   map[string]*wgpu.ShaderModule
	pipelines map[string]*wgpu.ComputePipeline
	disposed  bool
}

// NewProgramCache creates an empty cache compiling through ctx.
func NewProgramCache(ctx *Context) *ProgramCache {
	return &ProgramCache{
		ctx:       ctx,
		shaders:   make(map[string]*wgpu.ShaderModule),
		pipelines: make(map[string]*wgpu.ComputePipeline),
	}
}

// GetOrCompile returns the cached pipeline for sig, invoking factory to
// produce WGSL source and compiling it only on a miss.
func (pc *ProgramCache) GetOrCompile(sig string, factory func() string) (*wgpu.ComputePipeline, error) {
	if pc.disposed {
		return nil, fmt.Errorf("wgpu: program cache is disposed")
	}
	if pipeline, ok := pc.pipelines[sig]; ok {
		return pipeline, nil
	}

	code := factory()
	shader, err := pc.ctx.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          sig,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: code},
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: shader compilation for %q: %w", sig, err)
	}

	pipeline, err := pc.ctx.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: sig,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     shader,
			EntryPoint: "main",
		},
	})
	if err != nil {
		shader.Release()
		return nil, fmt.Errorf("wgpu: pipeline creation for %q: %w", sig, err)
	}

	pc.shaders[sig] = shader
	pc.pipelines[sig] = pipeline
	programsCompiled.Inc()
	pc.ctx.log.Debug().Str("signature", sig).Msg("compiled device program")
	return pipeline, nil
}

// Size returns the number of cached programs.
func (pc *ProgramCache) Size() int {
	return len(pc.pipelines)
}

// Dispose releases every cached artifact. Only called on full context
// teardown.
func (pc *ProgramCache) Dispose() {
	if pc.disposed {
		return
	}
	pc.disposed = true

	for _, p := range pc.pipelines {
		p.Release()
	}
	pc.pipelines = nil
	for _, s := range pc.shaders {
		s.Release()
	}
	pc.shaders = nil
}
