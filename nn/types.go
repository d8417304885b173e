package nn

import (
	"gonum.org/v1/gonum/mat"
)

// Topology of the XOR network. Fixed, not configurable.
const (
	NumInputs  = 2
	NumHidden  = 2
	NumOutputs = 1
	NumClasses = 4 // exhaustive input combinations: 00, 01, 10, 11
)

// Numeric constants shared by the function library
const (
	Epsilon  = 1e-7 // clipping margin for sigmoid derivative and log cross-entropy
	LeakyEps = 0.1  // negative slope of LeakyReLU
)

// HiddenWeights is W1 with the bias as the last row
type HiddenWeights [NumInputs + 1][NumHidden]float64

// OutputWeights is W2 with the bias as the last row
type OutputWeights [NumHidden + 1][NumOutputs]float64

// Dense returns a fresh 3x2 matrix holding the weights
func (w HiddenWeights) Dense() *mat.Dense {
	d := mat.NewDense(NumInputs+1, NumHidden, nil)
	for i := range w {
		for j := range w[i] {
			d.Set(i, j, w[i][j])
		}
	}
	return d
}

// HiddenWeightsFrom copies a 3x2 matrix into a HiddenWeights value.
// Panics on shape mismatch, like gonum itself.
func HiddenWeightsFrom(m mat.Matrix) HiddenWeights {
	r, c := m.Dims()
	if r != NumInputs+1 || c != NumHidden {
		panic(mat.ErrShape)
	}
	var w HiddenWeights
	for i := range w {
		for j := range w[i] {
			w[i][j] = m.At(i, j)
		}
	}
	return w
}

// Dense returns a fresh 3x1 matrix holding the weights
func (w OutputWeights) Dense() *mat.Dense {
	d := mat.NewDense(NumHidden+1, NumOutputs, nil)
	for i := range w {
		for j := range w[i] {
			d.Set(i, j, w[i][j])
		}
	}
	return d
}

// OutputWeightsFrom copies a 3x1 matrix into an OutputWeights value
func OutputWeightsFrom(m mat.Matrix) OutputWeights {
	r, c := m.Dims()
	if r != NumHidden+1 || c != NumOutputs {
		panic(mat.ErrShape)
	}
	var w OutputWeights
	for i := range w {
		for j := range w[i] {
			w[i][j] = m.At(i, j)
		}
	}
	return w
}

// Clip returns a copy with every entry clipped into [lo, hi]
func (w HiddenWeights) Clip(lo, hi float64) HiddenWeights {
	for i := range w {
		for j := range w[i] {
			w[i][j] = clip(w[i][j], lo, hi)
		}
	}
	return w
}

// Clip returns a copy with every entry clipped into [lo, hi]
func (w OutputWeights) Clip(lo, hi float64) OutputWeights {
	for i := range w {
		for j := range w[i] {
			w[i][j] = clip(w[i][j], lo, hi)
		}
	}
	return w
}

// EvalInputs is the exhaustive evaluation batch, one row per class
var EvalInputs = [NumClasses][NumInputs]float64{
	{0, 0},
	{0, 1},
	{1, 0},
	{1, 1},
}

// XORLabels are the true XOR outputs for EvalInputs
var XORLabels = [NumClasses]int{0, 1, 1, 0}

// EvalInputsDense returns EvalInputs as a fresh 4x2 matrix
func EvalInputsDense() *mat.Dense {
	return InputsFor([]int{0, 1, 2, 3})
}

// InputsFor builds an m x 2 input batch from class indices
func InputsFor(classes []int) *mat.Dense {
	x := mat.NewDense(len(classes), NumInputs, nil)
	for r, c := range classes {
		x.SetRow(r, EvalInputs[c][:])
	}
	return x
}

// LabelsFor builds an m x 1 label column from class indices
func LabelsFor(classes []int, labels [NumClasses]int) *mat.Dense {
	y := mat.NewDense(len(classes), 1, nil)
	for r, c := range classes {
		y.Set(r, 0, float64(labels[c]))
	}
	return y
}
