package timeline

import (
	"slices"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/Dani-Luk/NN-XOR/nn"
)

// Step is the network state at one timeline position
type Step struct {
	W1   nn.HiddenWeights
	W2   nn.OutputWeights
	Hits [nn.NumClasses]int
	nn.Evaluation
}

// ArrayStore holds the per-step training history. All slices share one
// length and every mutation produces fresh backing arrays, so a slice handed
// out earlier is never written again.
type ArrayStore struct {
	w1   []nn.HiddenWeights
	w2   []nn.OutputWeights
	hits [][nn.NumClasses]int
	eval []nn.Evaluation
}

// Generate trains from tp for tp.EpochSize steps. Step 0 holds the clipped
// starting weights and each later step runs CyclesPerStep mini-batch updates
// on the previous one. progress, if set, is called after every step.
// tp.Percents must be non-negative.
func Generate(tp *TurningPoint, progress func(step int)) *ArrayStore {
	n := max(tp.EpochSize, 1)
	batch := max(tp.BatchSize, 1)
	cycles := max(tp.CyclesPerStep, 1)
	lr := tp.LearningRate
	lo, hi := float64(tp.ClipMin), float64(tp.ClipMax)
	act1, act2, loss := tp.functions()

	s := &ArrayStore{
		w1:   make([]nn.HiddenWeights, n),
		w2:   make([]nn.OutputWeights, n),
		hits: make([][nn.NumClasses]int, n),
	}
	s.w1[0] = tp.W1.Clip(lo, hi)
	s.w2[0] = tp.W2.Clip(lo, hi)

	sampler := distuv.NewCategorical(classWeights(tp.Percents), newSource(trainingSeed(tp)))
	for range max(tp.SkipSteps, 0) * cycles * batch {
		sampler.Rand()
	}
	classes := make([]int, batch)
	for i := 1; i < n; i++ {
		w1, w2, hits := s.w1[i-1], s.w2[i-1], s.hits[i-1]
		for c := 0; c < cycles; c++ {
			for b := range classes {
				k := int(sampler.Rand())
				classes[b] = k
				hits[k]++
			}
			x := nn.InputsFor(classes)
			y := nn.LabelsFor(classes, tp.Labels)
			w2d := w2.Dense()
			a1, a2 := nn.Forward(x, w1.Dense(), act1, w2d, act2)
			dw1, dw2 := nn.Backward(x, act1, a1, w2d, act2, a2, y, loss)

			for r := range w2 {
				for k := range w2[r] {
					if !tp.W2Lock[r][k] {
						w2[r][k] = clip(w2[r][k]-dw2.At(r, k)*lr, lo, hi)
					}
				}
			}
			for r := range w1 {
				for k := range w1[r] {
					if !tp.W1Lock[r][k] {
						w1[r][k] = clip(w1[r][k]-dw1.At(r, k)*lr, lo, hi)
					}
				}
			}
		}
		s.w1[i], s.w2[i], s.hits[i] = w1, w2, hits
		if progress != nil {
			progress(i)
		}
	}
	s.eval = nn.EvaluateAll(s.w1, s.w2, act1, act2, loss, tp.Labels)
	return s
}

// trainingSeed ties a segment's sampling to the position it was first
// generated at
func trainingSeed(tp *TurningPoint) int {
	return tp.Index + tp.SeedShift + max(tp.Seed, 0)
}

// classWeights turns percentages into sampling probabilities; the last class
// takes whatever the others leave
func classWeights(pc [nn.NumClasses]int) []float64 {
	w := make([]float64, nn.NumClasses)
	sum := 0.0
	for i := 0; i < nn.NumClasses-1; i++ {
		w[i] = float64(pc[i]) / 100
		sum += w[i]
	}
	w[nn.NumClasses-1] = max(1-sum, 0)
	return w
}

func clip(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}

// Len returns the number of steps
func (s *ArrayStore) Len() int { return len(s.w1) }

// Step returns the state at ix; ix must be in [0, Len)
func (s *ArrayStore) Step(ix int) Step {
	return Step{W1: s.w1[ix], W2: s.w2[ix], Hits: s.hits[ix], Evaluation: s.eval[ix]}
}

// LossAvgs returns the average loss of every step
func (s *ArrayStore) LossAvgs() []float64 {
	out := make([]float64, len(s.eval))
	for i, e := range s.eval {
		out[i] = e.LossAvg
	}
	return out
}

// DeleteBefore drops the steps before ix and rebases hits so that step ix
// becomes a zero-hit start. ix is clamped to [0, Len-1].
func (s *ArrayStore) DeleteBefore(ix int) {
	if s.Len() == 0 {
		return
	}
	ix = min(max(ix, 0), s.Len()-1)
	base := s.hits[ix]
	s.w1 = slices.Clone(s.w1[ix:])
	s.w2 = slices.Clone(s.w2[ix:])
	s.eval = slices.Clone(s.eval[ix:])
	s.hits = slices.Clone(s.hits[ix:])
	for i := range s.hits {
		for k := range s.hits[i] {
			s.hits[i][k] -= base[k]
		}
	}
}

// DeleteAfter keeps the steps up to and including ix and returns how many
// were dropped. ix = -1 empties the store.
func (s *ArrayStore) DeleteAfter(ix int) int {
	ix = min(max(ix, -1), s.Len()-1)
	n := s.Len() - (ix + 1)
	s.w1 = slices.Clone(s.w1[:ix+1])
	s.w2 = slices.Clone(s.w2[:ix+1])
	s.eval = slices.Clone(s.eval[:ix+1])
	s.hits = slices.Clone(s.hits[:ix+1])
	return n
}

// Append adds seg to the end, offsetting its hits by the current running
// total.
func (s *ArrayStore) Append(seg *ArrayStore) {
	var base [nn.NumClasses]int
	if s.Len() > 0 {
		base = s.hits[s.Len()-1]
	}
	hits := slices.Clone(seg.hits)
	for i := range hits {
		for k := range hits[i] {
			hits[i][k] += base[k]
		}
	}
	s.w1 = slices.Concat(s.w1, seg.w1)
	s.w2 = slices.Concat(s.w2, seg.w2)
	s.eval = slices.Concat(s.eval, seg.eval)
	s.hits = slices.Concat(s.hits, hits)
}

// Clone returns an independent copy
func (s *ArrayStore) Clone() *ArrayStore {
	return &ArrayStore{
		w1:   slices.Clone(s.w1),
		w2:   slices.Clone(s.w2),
		hits: slices.Clone(s.hits),
		eval: slices.Clone(s.eval),
	}
}
