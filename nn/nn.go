// Package nn provides the numeric core of the XOR study network: a fixed
// 2-2-1 feed-forward topology with a bias row on each weight matrix.
//
// The package has three parts:
//   - Activation and loss functions with analytic derivatives
//   - A static registry partitioning those functions by role (hidden, output, loss)
//   - A stateless forward/backward pass over one mini-batch
//
// Weight shapes include the bias as the last row:
//
//	W1: 3x2  (x0, x1, bias) -> (h0, h1)
//	W2: 3x1  (h0, h1, bias) -> (y)
//
// Derivatives of activations are expressed in terms of the activated value
// a = f(x), which is what the backward pass has at hand.
//
// Example usage:
//
//	act1, _ := nn.HiddenActivation("ReLU")
//	act2, _ := nn.OutputActivation("sigmoid")
//	loss, _ := nn.Loss("LCE_Loss")
//
//	a1, a2 := nn.Forward(x, w1.Dense(), act1, w2.Dense(), act2)
//	dw1, dw2 := nn.Backward(x, act1, a1, w2.Dense(), act2, a2, y, loss)
package nn
