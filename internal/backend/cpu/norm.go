package cpu

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/flare-ml/flare/internal/tensor"
)

// BatchNorm normalizes x against per-channel mean and variance:
// (x - mean) / sqrt(variance + epsilon) * scale + offset.
// mean/variance/scale/offset broadcast over the trailing dimension; scale
// and offset may be nil.
func (b *Backend) BatchNorm(x, mean, variance, scale, offset *tensor.NDArray, epsilon float32) (*tensor.NDArray, error) {
	shape := x.Shape()
	channels := shape[len(shape)-1]
	for _, p := range []*tensor.NDArray{mean, variance} {
		if p == nil {
			return nil, fmt.Errorf("cpu: batchnorm requires mean and variance")
		}
		if p.NumElements() != channels {
			return nil, fmt.Errorf("cpu: batchnorm parameter shape %v does not broadcast over %v", p.Shape(), shape)
		}
	}

	xv, err := b.valuesOf(x)
	if err != nil {
		return nil, err
	}
	mv, err := b.valuesOf(mean)
	if err != nil {
		return nil, err
	}
	vv, err := b.valuesOf(variance)
	if err != nil {
		return nil, err
	}
	var sv, ov []float32
	if scale != nil {
		if scale.NumElements() != channels {
			return nil, fmt.Errorf("cpu: batchnorm scale shape %v does not broadcast over %v", scale.Shape(), shape)
		}
		if sv, err = b.valuesOf(scale); err != nil {
			return nil, err
		}
	}
	if offset != nil {
		if offset.NumElements() != channels {
			return nil, fmt.Errorf("cpu: batchnorm offset shape %v does not broadcast over %v", offset.Shape(), shape)
		}
		if ov, err = b.valuesOf(offset); err != nil {
			return nil, err
		}
	}

	out := make([]float32, len(xv))
	for i, v := range xv {
		c := i % channels
		norm := (v - mv[c]) / math32.Sqrt(vv[c]+epsilon)
		if sv != nil {
			norm *= sv[c]
		}
		if ov != nil {
			norm += ov[c]
		}
		out[i] = norm
	}
	return b.newOutput(shape, tensor.Float32, out)
}
