package timeline

import (
	"math/rand/v2"
)

// Choice lists the seed draws pick from
var (
	BatchSizeChoices     = []int{1, 2, 4, 10}
	EpochSizeChoices     = []int{100, 200, 500, 1000, 2000, 5000}
	CyclesPerStepChoices = []int{1, 2, 5, 10}
)

// Clip range bounds for seed draws: min in [-20, 20), max in (min, 20]
const (
	ClipRangeLow  = -20
	ClipRangeHigh = 20
)

// ParamMask is the bitmask of configuration fields protected from reseeding
type ParamMask uint8

const (
	LockBatchSize ParamMask = 1 << iota
	LockEpochSize
	LockCyclesPerStep
	LockLearningRate
	LockClipRange // min and max lock together
	LockHidden
	LockOutput
	LockLoss
)

// Has reports whether any bit of f is set
func (m ParamMask) Has(f ParamMask) bool { return m&f != 0 }

// With returns m with the bits of f set or cleared
func (m ParamMask) With(f ParamMask, locked bool) ParamMask {
	if locked {
		return m | f
	}
	return m &^ f
}

// pcgStream is the fixed PCG increment; only the seed varies
const pcgStream = 0x5851f42d4c957f2d

func newSource(seed int) *rand.PCG {
	return rand.NewPCG(uint64(seed), pcgStream)
}

func pick[T any](rng *rand.Rand, choices []T) T {
	return choices[rng.IntN(len(choices))]
}
