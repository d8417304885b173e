package nn

import (
	"gonum.org/v1/gonum/mat"
)

// Pass holds every intermediate of one forward pass
type Pass struct {
	Z1 *mat.Dense // m x 2, X_b . W1
	A1 *mat.Dense // m x 2, act1(Z1)
	Z2 *mat.Dense // m x 1, A1_b . W2
	A2 *mat.Dense // m x 1, act2(Z2), the prediction
}

// Forward runs one mini-batch x (m x 2) through the network and returns the
// hidden activations (m x 2) and the output (m x 1)
func Forward(x, w1 mat.Matrix, act1 Activation, w2 mat.Matrix, act2 Activation) (a1, a2 *mat.Dense) {
	p := ForwardPass(x, w1, act1, w2, act2)
	return p.A1, p.A2
}

// ForwardPass is Forward keeping the pre-activations
func ForwardPass(x, w1 mat.Matrix, act1 Activation, w2 mat.Matrix, act2 Activation) Pass {
	// (m, 3) . (3, 2) = (m, 2)
	z1 := &mat.Dense{}
	z1.Mul(withBias(x), w1)
	a1 := applyFn(z1, act1.Value)

	// (m, 3) . (3, 1) = (m, 1)
	z2 := &mat.Dense{}
	z2.Mul(withBias(a1), w2)
	a2 := applyFn(z2, act2.Value)

	return Pass{Z1: z1, A1: a1, Z2: z2, A2: a2}
}

// withBias appends a column of ones to m
func withBias(m mat.Matrix) *mat.Dense {
	r, _ := m.Dims()
	ones := make([]float64, r)
	for i := range ones {
		ones[i] = 1
	}
	b := &mat.Dense{}
	b.Augment(m, mat.NewDense(r, 1, ones))
	return b
}

func applyFn(m mat.Matrix, f func(float64) float64) *mat.Dense {
	out := &mat.Dense{}
	out.Apply(func(_, _ int, v float64) float64 { return f(v) }, m)
	return out
}
