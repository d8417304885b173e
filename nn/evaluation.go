package nn

import (
	"gonum.org/v1/gonum/mat"
)

// Evaluation is the network state on the exhaustive 4-row batch
type Evaluation struct {
	Z1           [NumClasses][NumHidden]float64
	A1           [NumClasses][NumHidden]float64
	Z2           [NumClasses][NumOutputs]float64
	A2           [NumClasses][NumOutputs]float64
	LossPerClass [NumClasses]float64
	LossAvg      float64
}

// Evaluate runs EvalInputs through the network and scores the output
// against labels, which may differ from XORLabels
func Evaluate(w1 HiddenWeights, w2 OutputWeights, act1, act2 Activation, loss LossFunc, labels [NumClasses]int) Evaluation {
	return evaluate(EvalInputsDense(), w1, w2, act1, act2, loss, labels)
}

// EvaluateAll evaluates a sequence of weight pairs, one per training step
func EvaluateAll(w1s []HiddenWeights, w2s []OutputWeights, act1, act2 Activation, loss LossFunc, labels [NumClasses]int) []Evaluation {
	x := EvalInputsDense()
	out := make([]Evaluation, len(w1s))
	for i := range w1s {
		out[i] = evaluate(x, w1s[i], w2s[i], act1, act2, loss, labels)
	}
	return out
}

func evaluate(x *mat.Dense, w1 HiddenWeights, w2 OutputWeights, act1, act2 Activation, loss LossFunc, labels [NumClasses]int) Evaluation {
	p := ForwardPass(x, w1.Dense(), act1, w2.Dense(), act2)

	var ev Evaluation
	pred := make([]float64, NumClasses)
	truth := make([]float64, NumClasses)
	for i := 0; i < NumClasses; i++ {
		for j := 0; j < NumHidden; j++ {
			ev.Z1[i][j] = p.Z1.At(i, j)
			ev.A1[i][j] = p.A1.At(i, j)
		}
		ev.Z2[i][0] = p.Z2.At(i, 0)
		ev.A2[i][0] = p.A2.At(i, 0)
		pred[i] = ev.A2[i][0]
		truth[i] = float64(labels[i])
	}
	copy(ev.LossPerClass[:], Values(loss, pred, truth))
	ev.LossAvg = Cost(loss, pred, truth)
	return ev
}
