package timeline

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/Dani-Luk/NN-XOR/nn"
)

// mark is the header line of a diff text. The brackets keep "[TP = 1]" from
// matching inside "[TP = 12]" when indices are renumbered.
func mark(index int) string {
	return fmt.Sprintf("[TP = %d]", index)
}

// Diff describes what a changes relative to b, the configuration in effect
// just before it. A nil b yields the mark line alone.
func Diff(a, b *TurningPoint) string {
	var sb strings.Builder
	sb.WriteString(mark(a.Index))
	if b == nil {
		return sb.String()
	}
	sb.WriteString("\nChanges:")
	items := changes(a, b)
	if len(items) == 0 {
		items = []string{"No changes"}
	}
	for _, it := range items {
		sb.WriteString("\n· ")
		sb.WriteString(it)
	}
	return sb.String()
}

// LossText is the loss line appended to diff texts
func LossText(v float64) string {
	return "\nepoch Loss: " + FormatLoss(v)
}

// FormatLoss formats a loss for final-loss texts
func FormatLoss(v float64) string {
	return fmt.Sprintf("%0.3f", v)
}

// LossHue maps a loss to an HSV hue, 120 (green) at 0 down to 0 (red) at 1
func LossHue(v float64) int {
	return int(120 * (1 - min(max(v, 0), 1)))
}

// changes lists the configuration items that differ between a and b
func changes(a, b *TurningPoint) []string {
	var out []string
	add := func(differs bool, item string) {
		if differs {
			out = append(out, item)
		}
	}

	add(a.Percents != b.Percents, "% distribution")
	add(a.Labels != b.Labels, "'=' yTrue")

	a1, b1 := a.W1[:], b.W1[:]
	l1, m1 := a.W1Lock[:], b.W1Lock[:]
	bias1 := len(a1) - 1
	add(!sameHidden(a1[:bias1], b1[:bias1]), "W1 weights")
	add(!slices.Equal(l1[:bias1], m1[:bias1]), "W1 lock")
	add(!sameHidden(a1[bias1:], b1[bias1:]), "bias 1")
	add(!slices.Equal(l1[bias1:], m1[bias1:]), "bias 1 lock")
	add(a.Hidden != b.Hidden, "Activation 1(hidden)")

	a2, b2 := a.W2[:], b.W2[:]
	l2, m2 := a.W2Lock[:], b.W2Lock[:]
	bias2 := len(a2) - 1
	add(!sameOutput(a2[:bias2], b2[:bias2]), "W2 weights")
	add(!slices.Equal(l2[:bias2], m2[:bias2]), "W2 lock")
	add(!sameOutput(a2[bias2:], b2[bias2:]), "bias 2")
	add(!slices.Equal(l2[bias2:], m2[bias2:]), "bias 2 lock")
	add(a.Output != b.Output, "Activation 2(output)")

	add(a.Loss != b.Loss, "Loss")
	add(a.BatchSize != b.BatchSize, "Batch size")
	add(a.EpochSize != b.EpochSize, "Epoch size")
	add(a.CyclesPerStep != b.CyclesPerStep, "Cycles / Epoch")
	add(a.LearningRate != b.LearningRate, "Learning Rate")
	add(a.ClipMin != b.ClipMin || a.ClipMax != b.ClipMax, "Clip values")
	return out
}

// sameHidden compares w1 rows at three decimals
func sameHidden(a, b [][nn.NumHidden]float64) bool {
	for i := range a {
		for j := range a[i] {
			if round3(a[i][j]) != round3(b[i][j]) {
				return false
			}
		}
	}
	return true
}

// sameOutput compares w2 rows at three decimals
func sameOutput(a, b [][nn.NumOutputs]float64) bool {
	for i := range a {
		for j := range a[i] {
			if round3(a[i][j]) != round3(b[i][j]) {
				return false
			}
		}
	}
	return true
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
