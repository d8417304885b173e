package timeline

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/Dani-Luk/NN-XOR/nn"
)

// HiddenLocks marks w1 entries that training and reseeding leave untouched
type HiddenLocks [nn.NumInputs + 1][nn.NumHidden]bool

// OutputLocks marks w2 entries that training and reseeding leave untouched
type OutputLocks [nn.NumHidden + 1][nn.NumOutputs]bool

// TurningPoint is a configuration boundary on the timeline. Every field is a
// value, so assigning a TurningPoint copies it completely.
type TurningPoint struct {
	Index         int
	Seed          int
	// SeedShift and SkipSteps keep a segment's mini-batch stream when
	// DeleteBefore renumbers it: sampling is seeded with
	// Index+SeedShift+Seed and the first SkipSteps steps are drawn and dropped.
	SeedShift     int
	SkipSteps     int
	BatchSize     int
	EpochSize     int
	CyclesPerStep int
	LearningRate  float64
	ClipMin       int
	ClipMax       int

	Labels   [nn.NumClasses]int
	Percents [nn.NumClasses]int
	Hits     [nn.NumClasses]int

	W1     nn.HiddenWeights
	W1Lock HiddenLocks
	Hidden string
	W2     nn.OutputWeights
	W2Lock OutputLocks
	Output string
	Loss   string

	// z, a and loss of W1/W2 on the 4-row batch
	nn.Evaluation

	// weights when editing began; SetClipRange clips from these
	baseW1 nn.HiddenWeights
	baseW2 nn.OutputWeights
	edited bool
}

// NewTurningPoint returns the index 0 turning point generated from seed
func NewTurningPoint(seed int) TurningPoint {
	tp := TurningPoint{
		BatchSize:     1,
		EpochSize:     1,
		CyclesPerStep: 1,
		LearningRate:  0.1,
		ClipMin:       -1,
		ClipMax:       1,
		Labels:        nn.XORLabels,
		Percents:      [nn.NumClasses]int{25, 25, 25, 25},
		Hidden:        "ReLU",
		Output:        "sigmoid",
		Loss:          "LCE_Loss",
	}
	tp.FeedFromSeed(seed, 0)
	return tp
}

// FeedFromSeed regenerates the unlocked configuration from seed. The draws
// happen in a fixed order and all of them are consumed, so a locked field
// never shifts the values drawn for the others.
//
// Only the first turning point draws class percentages and weights; later
// ones keep their current weights and clip them into the new range. Locked
// weights of the first turning point are kept as they are, even outside the
// drawn range; training clips them at step 0.
func (tp *TurningPoint) FeedFromSeed(seed int, locks ParamMask) {
	tp.Seed = seed
	tp.SeedShift, tp.SkipSteps = 0, 0
	src := newSource(seed)
	rng := rand.New(src)

	batch := pick(rng, BatchSizeChoices)
	epoch := pick(rng, EpochSizeChoices)
	cycles := pick(rng, CyclesPerStepChoices)
	lr := math.Round((rng.Float64()*0.98+0.01)*100) / 100
	lo := ClipRangeLow + rng.IntN(ClipRangeHigh-ClipRangeLow)
	hi := lo + 1 + rng.IntN(ClipRangeHigh-lo)
	hidden := pick(rng, nn.HiddenNames())
	output := pick(rng, nn.OutputNames())
	loss := pick(rng, nn.LossNames())

	if !locks.Has(LockBatchSize) {
		tp.BatchSize = batch
	}
	if !locks.Has(LockEpochSize) {
		tp.EpochSize = epoch
	}
	if !locks.Has(LockCyclesPerStep) {
		tp.CyclesPerStep = cycles
	}
	if !locks.Has(LockLearningRate) {
		tp.LearningRate = lr
	}
	if !locks.Has(LockClipRange) {
		tp.ClipMin, tp.ClipMax = lo, hi
	}
	if !locks.Has(LockHidden) {
		tp.Hidden = hidden
	}
	if !locks.Has(LockOutput) {
		tp.Output = output
	}
	if !locks.Has(LockLoss) {
		tp.Loss = loss
	}

	if tp.Index == 0 {
		tp.Percents = drawPercents(src)
		tp.Labels = nn.XORLabels
		tp.Hits = [nn.NumClasses]int{}

		u := distuv.Uniform{Min: float64(tp.ClipMin), Max: float64(tp.ClipMax), Src: src}
		for i := range tp.W1 {
			for j := range tp.W1[i] {
				v := u.Rand()
				if !tp.W1Lock[i][j] {
					tp.W1[i][j] = v
				}
			}
		}
		for i := range tp.W2 {
			for j := range tp.W2[i] {
				v := u.Rand()
				if !tp.W2Lock[i][j] {
					tp.W2[i][j] = v
				}
			}
		}
		tp.MarkEdited()
	} else {
		lo, hi := float64(tp.ClipMin), float64(tp.ClipMax)
		tp.W1 = tp.W1.Clip(lo, hi)
		tp.W2 = tp.W2.Clip(lo, hi)
	}
	tp.Recompute()
}

// drawPercents splits 100 into four non-negative integer buckets
func drawPercents(src rand.Source) [nn.NumClasses]int {
	alpha := make([]float64, nn.NumClasses)
	for i := range alpha {
		alpha[i] = 1
	}
	p := distmv.NewDirichlet(alpha, src).Rand(nil)

	var pc [nn.NumClasses]int
	sum := 0
	for i := 0; i < nn.NumClasses-1; i++ {
		pc[i] = int(p[i] * 100)
		sum += pc[i]
	}
	pc[nn.NumClasses-1] = 100 - sum
	return pc
}

// Recompute refreshes the evaluation of the current weights against the
// current labels and functions.
func (tp *TurningPoint) Recompute() {
	act1, act2, loss := tp.functions()
	tp.Evaluation = nn.Evaluate(tp.W1, tp.W2, act1, act2, loss, tp.Labels)
}

func (tp *TurningPoint) functions() (nn.Activation, nn.Activation, nn.LossFunc) {
	act1, _ := nn.HiddenActivation(tp.Hidden)
	act2, _ := nn.OutputActivation(tp.Output)
	loss, _ := nn.Loss(tp.Loss)
	return act1, act2, loss
}

// MarkEdited records the current weights as the ones SetClipRange clips
// from. Call it when an editing session on this turning point begins.
func (tp *TurningPoint) MarkEdited() {
	tp.baseW1, tp.baseW2 = tp.W1, tp.W2
	tp.edited = true
}

func (tp *TurningPoint) clipFromBase() {
	if !tp.edited {
		tp.MarkEdited()
	}
	lo, hi := float64(tp.ClipMin), float64(tp.ClipMax)
	tp.W1 = tp.baseW1.Clip(lo, hi)
	tp.W2 = tp.baseW2.Clip(lo, hi)
}

// SetClipRange sets the clip range and re-clips the weights recorded by
// MarkEdited, so widening the range restores values an earlier narrowing cut.
// A turning point never marked records its current weights first.
func (tp *TurningPoint) SetClipRange(lo, hi int) error {
	if lo > hi {
		return fmt.Errorf("clip range [%d, %d] is empty", lo, hi)
	}
	tp.ClipMin, tp.ClipMax = lo, hi
	tp.clipFromBase()
	tp.Recompute()
	return nil
}

// SetWeight sets a w1 (layer 1) or w2 (layer 2) entry, both the current and the
// recorded value.
func (tp *TurningPoint) SetWeight(layer, row, col int, v float64) error {
	if !tp.edited {
		tp.MarkEdited()
	}
	switch {
	case layer == 1 && row >= 0 && row < len(tp.W1) && col >= 0 && col < nn.NumHidden:
		tp.W1[row][col], tp.baseW1[row][col] = v, v
	case layer == 2 && row >= 0 && row < len(tp.W2) && col >= 0 && col < nn.NumOutputs:
		tp.W2[row][col], tp.baseW2[row][col] = v, v
	default:
		return fmt.Errorf("no weight w%d[%d][%d]", layer, row, col)
	}
	tp.Recompute()
	return nil
}

// SetClassPercent sets the sampling percentage of class row and spreads the
// rest evenly over the following classes, the last one taking the rounding.
// The last class is derived and cannot be set directly.
func (tp *TurningPoint) SetClassPercent(row, v int) error {
	last := nn.NumClasses - 1
	if row < 0 || row >= last {
		return fmt.Errorf("class %d percentage is not editable", row)
	}
	before := 0
	for _, p := range tp.Percents[:row] {
		before += p
	}
	v = min(max(v, 0), 100-before)

	rest := 100 - before - v
	share := rest / (last - row)
	tp.Percents[row] = v
	for r := row + 1; r < last; r++ {
		tp.Percents[r] = share
	}
	tp.Percents[last] = rest - share*(last-row-1)
	return nil
}

// SetLabel sets the expected output for class row to 0 or 1
func (tp *TurningPoint) SetLabel(row, v int) error {
	if row < 0 || row >= nn.NumClasses {
		return fmt.Errorf("no class %d", row)
	}
	if v != 0 && v != 1 {
		return fmt.Errorf("label %d must be 0 or 1", v)
	}
	tp.Labels[row] = v
	tp.Recompute()
	return nil
}

// normalize makes a turning point safe to generate from. Percentages are
// clamped to what is left of 100, the last class taking the remainder, and
// labels to 0 or 1.
func (tp *TurningPoint) normalize() {
	tp.BatchSize = max(tp.BatchSize, 1)
	tp.EpochSize = max(tp.EpochSize, 1)
	tp.CyclesPerStep = max(tp.CyclesPerStep, 1)
	tp.SeedShift = max(tp.SeedShift, 0)
	tp.SkipSteps = max(tp.SkipSteps, 0)
	if tp.ClipMax < tp.ClipMin {
		tp.ClipMax = tp.ClipMin
	}

	last := nn.NumClasses - 1
	left := 100
	for i := 0; i < last; i++ {
		tp.Percents[i] = min(max(tp.Percents[i], 0), left)
		left -= tp.Percents[i]
	}
	tp.Percents[last] = left
	for i, y := range tp.Labels {
		tp.Labels[i] = min(max(y, 0), 1)
	}

	act1, act2, loss := tp.functions()
	tp.Hidden, tp.Output, tp.Loss = act1.Name(), act2.Name(), loss.Name()
}

// Equal reports whether a and b share the same configuration. Position,
// seed and evaluation are not compared; weights compare at three decimals.
func Equal(a, b *TurningPoint) bool {
	return len(changes(a, b)) == 0
}
