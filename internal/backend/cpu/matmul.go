package cpu

import (
	"fmt"

	"github.com/flare-ml/flare/internal/tensor"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// MatMul computes C = A @ B for 2D operands via BLAS sgemm.
func (b *Backend) MatMul(a, other *tensor.NDArray) (*tensor.NDArray, error) {
	if len(a.Shape()) != 2 || len(other.Shape()) != 2 {
		return nil, fmt.Errorf("cpu: matmul requires 2D tensors, got %v and %v", a.Shape(), other.Shape())
	}
	m, k := a.Shape()[0], a.Shape()[1]
	k2, n := other.Shape()[0], other.Shape()[1]
	if k != k2 {
		return nil, fmt.Errorf("cpu: matmul shape mismatch: [%d,%d] @ [%d,%d]", m, k, k2, n)
	}

	av, err := b.valuesOf(a)
	if err != nil {
		return nil, err
	}
	bv, err := b.valuesOf(other)
	if err != nil {
		return nil, err
	}

	out := make([]float32, m*n)
	blas32.Implementation().Sgemm(blas.NoTrans, blas.NoTrans,
		m, n, k,
		1, av, k,
		bv, n,
		0, out, n)

	return b.newOutput(tensor.Shape{m, n}, tensor.Float32, out)
}
