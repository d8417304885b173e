package nn

import (
	"fmt"
	"math"
)

// Role flags the layers a function may be used for
type Role uint8

const (
	RoleHidden Role = 1 << iota // hidden layer activation
	RoleOutput                  // output layer activation
	RoleLoss                    // loss function
)

// Has reports whether every flag in f is set
func (r Role) Has(f Role) bool { return r&f == f }

func (r Role) String() string {
	switch r {
	case RoleHidden:
		return "hidden"
	case RoleOutput:
		return "output"
	case RoleLoss:
		return "loss"
	case RoleHidden | RoleOutput:
		return "hidden|output"
	default:
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
}

// Function is the part shared by activations and losses
type Function interface {
	Name() string
	Roles() Role
	Description() string
}

// Activation is an element-wise activation function.
// Derivative takes the activated value a = Value(x), not x.
type Activation interface {
	Function
	Value(x float64) float64
	Derivative(a float64) float64
}

// =============================================================================
// Activations
// =============================================================================

type sigmoid struct{}

func (sigmoid) Name() string { return "sigmoid" }
func (sigmoid) Roles() Role  { return RoleHidden | RoleOutput }
func (sigmoid) Description() string {
	return fmt.Sprintf("Logistic (Sigmoid)\non derivative: clip(0 + EPSILON, 1 - EPSILON) to fit with LCE\n(EPSILON = %g)", Epsilon)
}

// Value uses exp(min(x,0)) / (1 + exp(-|x|)) so neither exp overflows
func (sigmoid) Value(x float64) float64 {
	return math.Exp(math.Min(x, 0)) / (1 + math.Exp(-math.Abs(x)))
}

func (sigmoid) Derivative(a float64) float64 {
	a = clip(a, Epsilon, 1-Epsilon)
	return a * (1 - a)
}

type relu struct{}

func (relu) Name() string        { return "ReLU" }
func (relu) Roles() Role         { return RoleHidden | RoleOutput }
func (relu) Description() string { return "Rectified Linear Unit (ReLU)" }

func (relu) Value(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

// Derivative at exactly 0 is 0, as in TensorFlow
func (relu) Derivative(a float64) float64 {
	if a > 0 {
		return 1
	}
	return 0
}

type leakyReLU struct{}

func (leakyReLU) Name() string { return "LeakyReLU" }
func (leakyReLU) Roles() Role  { return RoleHidden }
func (leakyReLU) Description() string {
	return fmt.Sprintf("Leaky Rectified Linear Unit\n(LEAKY_eps = %g)", LeakyEps)
}

func (leakyReLU) Value(x float64) float64 {
	switch {
	case x > 0:
		return x
	case x < 0:
		return LeakyEps * x
	default:
		return 0
	}
}

func (leakyReLU) Derivative(a float64) float64 {
	switch {
	case a > 0:
		return 1
	case a < 0:
		return LeakyEps
	default:
		return 0
	}
}

type tanh struct{}

func (tanh) Name() string                 { return "tanh" }
func (tanh) Roles() Role                  { return RoleHidden | RoleOutput }
func (tanh) Description() string          { return "Hyperbolic Tangent (Tanh)" }
func (tanh) Value(x float64) float64      { return math.Tanh(x) }
func (tanh) Derivative(a float64) float64 { return 1 - a*a }

type linear struct{}

func (linear) Name() string               { return "linear" }
func (linear) Roles() Role                { return RoleHidden | RoleOutput }
func (linear) Description() string        { return "linear" }
func (linear) Value(x float64) float64    { return x }
func (linear) Derivative(float64) float64 { return 1 }

// binaryStop is the binary step: 1 for x > 0, else 0. Its zero derivative
// stops the gradient, so it only makes sense on the output layer.
type binaryStop struct{}

func (binaryStop) Name() string        { return "BinaryStop" }
func (binaryStop) Roles() Role         { return RoleOutput }
func (binaryStop) Description() string { return "BinaryStop" }

func (binaryStop) Value(x float64) float64 {
	if x > 0 {
		return 1
	}
	return 0
}

func (binaryStop) Derivative(float64) float64 { return 0 }

func clip(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
