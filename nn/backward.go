package nn

import (
	"gonum.org/v1/gonum/mat"
)

// Backward computes the loss gradients w.r.t. W1 (3x2) and W2 (3x1), bias
// rows included, averaged over the m rows of the batch.
//
// a1 and a2 must come from Forward on the same x, w1 and w2. y is the m x 1
// label column.
func Backward(x mat.Matrix, act1 Activation, a1 mat.Matrix,
	w2 mat.Matrix, act2 Activation, a2 mat.Matrix,
	y mat.Matrix, loss LossFunc) (dw1, dw2 *mat.Dense) {

	m, _ := a1.Dims()
	avg := func(_, _ int, v float64) float64 { return v / float64(m) }

	// dL/dZ2 = dL/dA2 * dA2/dZ2, shape (m, 1)
	delta2 := &mat.Dense{}
	delta2.Apply(func(i, j int, a float64) float64 {
		return loss.Derivative(a, y.At(i, j)) * act2.Derivative(a)
	}, a2)

	// dZ2/dW2 = A1_b, so dL/dW2 = A1_b^T . delta2 / m, shape (3, 1)
	dw2 = &mat.Dense{}
	dw2.Mul(withBias(a1).T(), delta2)
	dw2.Apply(avg, dw2)

	// dZ2/dA1 = W2 without the bias row, shape (2, 1)
	r, c := w2.Dims()
	w2h := mat.DenseCopyOf(w2).Slice(0, r-1, 0, c)

	// dL/dA1 = delta2 . W2h^T, shape (m, 2)
	dA1 := &mat.Dense{}
	dA1.Mul(delta2, w2h.T())

	// dL/dZ1 = dL/dA1 * dA1/dZ1
	delta1 := &mat.Dense{}
	delta1.Apply(func(i, j int, v float64) float64 {
		return v * act1.Derivative(a1.At(i, j))
	}, dA1)

	// dZ1/dW1 = X_b, so dL/dW1 = X_b^T . delta1 / m, shape (3, 2)
	dw1 = &mat.Dense{}
	dw1.Mul(withBias(x).T(), delta1)
	dw1.Apply(avg, dw1)

	return dw1, dw2
}
