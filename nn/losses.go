package nn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// LossFunc is a per-sample loss with its derivative dLoss/da.
// a is the network output, y the ground-truth label in {0, 1}.
type LossFunc interface {
	Function
	Value(a, y float64) float64
	Derivative(a, y float64) float64
}

// Values applies the loss to every sample
func Values(l LossFunc, a, y []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = l.Value(a[i], y[i])
	}
	return out
}

// Cost is the mean loss over the samples
func Cost(l LossFunc, a, y []float64) float64 {
	if len(a) == 0 {
		return 0
	}
	return floats.Sum(Values(l, a, y)) / float64(len(a))
}

// Derivatives applies dLoss/da to every sample
func Derivatives(l LossFunc, a, y []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = l.Derivative(a[i], y[i])
	}
	return out
}

// signedLabel maps {0, 1} -> {-1, 1}
func signedLabel(y float64) float64 {
	if y == 0 {
		return -1
	}
	return y
}

// =============================================================================
// Log cross-entropy
// =============================================================================

type lceLoss struct{}

func (lceLoss) Name() string { return "LCE_Loss" }
func (lceLoss) Roles() Role  { return RoleLoss }
func (lceLoss) Description() string {
	return fmt.Sprintf("LCE (Log cross-entropy)\nto avoid log(0) clip(0 + EPSILON, 1 - EPSILON)\n(EPSILON = %g)", Epsilon)
}

func (lceLoss) Value(a, y float64) float64 {
	a = clip(a, Epsilon, 1-Epsilon)
	return -(y*math.Log(a) + (1-y)*math.Log(1-a))
}

func (lceLoss) Derivative(a, y float64) float64 {
	a = clip(a, Epsilon, 1-Epsilon)
	return -(y/a + (y-1)/(1-a))
}

// =============================================================================
// Hinge losses, labels mapped {0, 1} -> {-1, 1}
// =============================================================================

type hingeLoss struct{}

func (hingeLoss) Name() string { return "Hinge_Loss" }
func (hingeLoss) Roles() Role  { return RoleLoss }
func (hingeLoss) Description() string {
	return "Hinge Loss input [-1, 1]\nmapping y_true {0, 1}->{-1, 1}\nusing after:\nHidden Layer = ReLU / tanh\nOutput Layer = linear"
}

func (hingeLoss) Value(a, y float64) float64 {
	return math.Max(0, 1-signedLabel(y)*a)
}

func (hingeLoss) Derivative(a, y float64) float64 {
	s := signedLabel(y)
	if s*a < 1 {
		return -s
	}
	return 0
}

type squaredHingeLoss struct{}

func (squaredHingeLoss) Name() string { return "Squared_Hinge_Loss" }
func (squaredHingeLoss) Roles() Role  { return RoleLoss }
func (squaredHingeLoss) Description() string {
	return "Squared Hinge Loss input [-1, 1]\nmapping y_true {0, 1}->{-1, 1}\nusing after:\nHidden Layer = ReLU / tanh\nOutput Layer = linear"
}

func (squaredHingeLoss) Value(a, y float64) float64 {
	m := math.Max(0, 1-signedLabel(y)*a)
	return m * m
}

func (squaredHingeLoss) Derivative(a, y float64) float64 {
	s := signedLabel(y)
	return -2 * s * math.Max(0, 1-s*a)
}

// hingeLoss01 rescales a prediction in [0, 1] to [-1, 1] before the hinge.
// The derivative is taken w.r.t. the rescaled value, without the factor 2.
type hingeLoss01 struct{ hingeLoss }

func (hingeLoss01) Name() string { return "Hinge_Loss_0_1" }
func (hingeLoss01) Description() string {
	return "Hinge Loss input [0-1]\nmapping [0, 1]->[-1, 1]\nand y_true {0, 1}->{-1, 1}"
}

func (h hingeLoss01) Value(a, y float64) float64      { return h.hingeLoss.Value(2*a-1, y) }
func (h hingeLoss01) Derivative(a, y float64) float64 { return h.hingeLoss.Derivative(2*a-1, y) }

type squaredHingeLoss01 struct{ squaredHingeLoss }

func (squaredHingeLoss01) Name() string { return "Squared_Hinge_Loss_0_1" }
func (squaredHingeLoss01) Description() string {
	return "Squared Hinge Loss input [0, 1]\nmapping [0, 1]->[-1, 1]\nand y_true {0, 1}->{-1, 1}"
}

func (h squaredHingeLoss01) Value(a, y float64) float64 {
	return h.squaredHingeLoss.Value(2*a-1, y)
}

func (h squaredHingeLoss01) Derivative(a, y float64) float64 {
	return h.squaredHingeLoss.Derivative(2*a-1, y)
}
