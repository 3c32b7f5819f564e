package wgpu

import (
	"fmt"

	"github.com/flare-ml/flare/internal/tensor"
)

// Multinomial draws numSamples outcome indices per batch row from the
// probability distribution in probs ([batch, numOutcomes]). Sampling is
// deterministic for a given seed; the device stream differs from the CPU
// backend's generator but is stable across runs.
func (b *Backend) Multinomial(probs *tensor.NDArray, numSamples int, seed int64) (*tensor.NDArray, error) {
	shape := probs.Shape()
	if len(shape) != 2 {
		return nil, fmt.Errorf("wgpu: multinomial requires [batch, numOutcomes] probabilities, got %v", shape)
	}
	if numSamples <= 0 {
		return nil, fmt.Errorf("wgpu: multinomial numSamples must be > 0, got %d", numSamples)
	}
	batch, numOutcomes := shape[0], shape[1]

	outShape := tensor.Shape{batch, numSamples}
	n := outShape.NumElements()
	pb := &params{}
	pb.putU32(uint32(n))    //nolint:gosec // G115: element counts are non-negative
	pb.putU32(uint32(seed)) //nolint:gosec // G115: seed is an opaque stream selector
	return b.runProgram(programDesc{
		kind:     "multinomial",
		inputs:   []*tensor.NDArray{probs},
		outShape: outShape,
		outDType: tensor.Int32,
		source:   func() string { return multinomialShader(numOutcomes, numSamples) },
		params:   pb,
		groups:   grid1D(n),
	})
}
