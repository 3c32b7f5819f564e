package cpu

import (
	"fmt"

	"github.com/flare-ml/flare/internal/tensor"
	"golang.org/x/exp/rand"
)

// Multinomial draws numSamples outcome indices per batch row from the
// probability distribution in probs ([batch, numOutcomes]). Sampling is
// deterministic for a given seed.
func (b *Backend) Multinomial(probs *tensor.NDArray, numSamples int, seed int64) (*tensor.NDArray, error) {
	shape := probs.Shape()
	if len(shape) != 2 {
		return nil, fmt.Errorf("cpu: multinomial requires [batch, numOutcomes] probabilities, got %v", shape)
	}
	if numSamples <= 0 {
		return nil, fmt.Errorf("cpu: multinomial numSamples must be > 0, got %d", numSamples)
	}
	batch, numOutcomes := shape[0], shape[1]

	pv, err := b.valuesOf(probs)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(uint64(seed))) //nolint:gosec // G115: seed is an opaque stream selector
	out := make([]float32, batch*numSamples)
	cdf := make([]float32, numOutcomes)

	for row := 0; row < batch; row++ {
		var total float32
		for i := 0; i < numOutcomes; i++ {
			total += pv[row*numOutcomes+i]
			cdf[i] = total
		}
		if total <= 0 {
			return nil, fmt.Errorf("cpu: multinomial row %d has non-positive probability mass", row)
		}
		for s := 0; s < numSamples; s++ {
			r := float32(rng.Float64()) * total
			idx := numOutcomes - 1
			for i, c := range cdf {
				if r < c {
					idx = i
					break
				}
			}
			out[row*numSamples+s] = float32(idx)
		}
	}
	return b.newOutput(tensor.Shape{batch, numSamples}, tensor.Int32, out)
}
