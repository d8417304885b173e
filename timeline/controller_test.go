package timeline

import (
	"io"
	"log"
	"strings"
	"sync"
	"testing"

	"github.com/Dani-Luk/NN-XOR/nn"
)

func quietOptions() Options {
	opts := DefaultOptions()
	opts.Logger = log.New(io.Discard, "", 0)
	return opts
}

// buildTimeline returns turning points at [0, 5, 12] over 20 positions
func buildTimeline(t *testing.T) *Controller {
	t.Helper()
	c := NewFromTurningPoint(testTP(11, 20), quietOptions())

	d := c.EffectiveStateAt(4).TurningPoint
	d.EpochSize = 7
	if pos := c.FillFrom(d); pos != 5 {
		t.Fatalf("fill at 4 landed on %d, expected 5", pos)
	}
	d = c.EffectiveStateAt(11).TurningPoint
	d.EpochSize = 8
	if pos := c.FillFrom(d); pos != 12 {
		t.Fatalf("fill at 11 landed on %d, expected 12", pos)
	}
	if c.Len() != 20 {
		t.Fatalf("Len = %d, expected 20", c.Len())
	}
	checkConsistent(t, c)
	return c
}

// checkConsistent verifies the list invariants: increasing indices from 0,
// segments covering the timeline, one diff and final loss per turning point
func checkConsistent(t *testing.T, c *Controller) {
	t.Helper()
	tps := c.TurningPoints()
	if len(tps) == 0 || tps[0].Index != 0 {
		t.Fatalf("first turning point missing or not at 0")
	}
	total := 0
	for i, tp := range tps {
		if i > 0 && tp.Index <= tps[i-1].Index {
			t.Fatalf("indices not increasing: %v", indices(tps))
		}
		if tp.Index != total {
			t.Fatalf("turning point %d at %d, segments end at %d", i, tp.Index, total)
		}
		total += tp.EpochSize
	}
	if total != c.Len() {
		t.Fatalf("segments cover %d positions, timeline has %d", total, c.Len())
	}
	if len(c.DiffTexts()) != len(tps) || len(c.FinalLosses()) != len(tps) {
		t.Fatalf("%d turning points, %d diffs, %d final losses", len(tps), len(c.DiffTexts()), len(c.FinalLosses()))
	}
	for i, d := range c.DiffTexts() {
		if !strings.HasPrefix(d, mark(tps[i].Index)) {
			t.Fatalf("diff %d starts %q, expected %s", i, d, mark(tps[i].Index))
		}
	}
}

func indices(tps []TurningPoint) []int {
	out := make([]int, len(tps))
	for i, tp := range tps {
		out[i] = tp.Index
	}
	return out
}

func TestNewController(t *testing.T) {
	tp := testTP(5, 25)
	c := NewFromTurningPoint(tp, quietOptions())
	if c.Len() != 25 || c.Pos() != 0 || c.Name() != DefaultName {
		t.Errorf("Len %d Pos %d Name %q", c.Len(), c.Pos(), c.Name())
	}
	checkConsistent(t, c)

	if got := c.DiffTexts()[0]; !strings.HasPrefix(got, "[TP = 0]\nepoch Loss: ") {
		t.Errorf("first diff = %q", got)
	}
	losses := c.LossAvgs()
	if got := c.FinalLosses()[0]; got != FormatLoss(losses[len(losses)-1]) {
		t.Errorf("final loss %q, last lossAvg %v", got, losses[len(losses)-1])
	}
}

func TestFillPreservesStep(t *testing.T) {
	c := NewFromTurningPoint(testTP(11, 20), quietOptions())
	before := c.EffectiveStateAt(4)

	d := before.TurningPoint
	d.EpochSize = 7
	c.FillFrom(d)

	after := c.EffectiveStateAt(4)
	if after.W1 != before.W1 || after.Hits != before.Hits || after.LossAvg != before.LossAvg {
		t.Error("the step at the fill position changed")
	}
	next := c.EffectiveStateAt(5)
	if next.W1 != before.W1 || next.W2 != before.W2 {
		t.Error("the new segment should start from the weights at the fill position")
	}
	if next.Hits != before.Hits {
		t.Errorf("hits jumped from %v to %v", before.Hits, next.Hits)
	}
	if next.Owner != 1 || after.Owner != 0 {
		t.Errorf("owners %d and %d, expected 0 and 1", after.Owner, next.Owner)
	}
}

func TestFillOnBoundaryReplaces(t *testing.T) {
	c := buildTimeline(t)
	d := c.EffectiveStateAt(5).TurningPoint
	d.EpochSize = 3
	d.BatchSize = 2
	if pos := c.FillFrom(d); pos != 5 {
		t.Errorf("pos = %d, expected 5", pos)
	}
	if c.Len() != 8 {
		t.Errorf("Len = %d, expected 8", c.Len())
	}
	tps := c.TurningPoints()
	if len(tps) != 2 || tps[1].BatchSize != 2 {
		t.Errorf("turning points %v, expected [0 5] with the new batch size", indices(tps))
	}
	checkConsistent(t, c)
}

func TestFillMovesToEnd(t *testing.T) {
	opts := quietOptions()
	opts.StayOnFill = false
	c := NewFromTurningPoint(testTP(11, 20), opts)
	d := c.EffectiveStateAt(9).TurningPoint
	d.EpochSize = 6
	if pos := c.FillFrom(d); pos != 15 || c.Pos() != 15 {
		t.Errorf("pos = %d, expected the last position 15", pos)
	}
}

func TestDeleteAfterTruncation(t *testing.T) {
	c := buildTimeline(t)
	if n := c.DeleteAfter(12); n != 7 {
		t.Errorf("dropped %d, expected 7", n)
	}
	if c.Len() != 13 {
		t.Errorf("Len = %d, expected 13", c.Len())
	}
	tps := c.TurningPoints()
	if got := indices(tps); len(got) != 3 || got[2] != 12 {
		t.Fatalf("turning points %v, expected [0 5 12]", got)
	}
	if tps[2].EpochSize != 1 {
		t.Errorf("last epoch size %d, expected 1", tps[2].EpochSize)
	}
	if c.Pos() != 12 {
		t.Errorf("pos = %d, expected 12", c.Pos())
	}
	losses := c.LossAvgs()
	if c.FinalLosses()[2] != FormatLoss(losses[12]) {
		t.Error("final loss text not refreshed")
	}
	checkConsistent(t, c)

	c.DeleteAfter(3)
	if got := indices(c.TurningPoints()); len(got) != 1 || c.Len() != 4 {
		t.Errorf("after DeleteAfter(3): turning points %v, Len %d", got, c.Len())
	}
	checkConsistent(t, c)
}

func TestDeleteFrom(t *testing.T) {
	c := buildTimeline(t)
	c.DeleteFrom(12)
	if c.Len() != 12 {
		t.Errorf("Len = %d, expected 12", c.Len())
	}
	if got := indices(c.TurningPoints()); len(got) != 2 {
		t.Errorf("turning points %v, expected [0 5]", got)
	}
	checkConsistent(t, c)

	c.DeleteFrom(0)
	if c.Len() != 1 {
		t.Errorf("Len = %d, expected position 0 to survive", c.Len())
	}
	checkConsistent(t, c)
}

func TestDeleteBefore(t *testing.T) {
	c := buildTimeline(t)
	ref := c.EffectiveStateAt(7)
	lastDiff := c.DiffTexts()[2]

	c.DeleteBefore(7)

	if c.Len() != 13 || c.Pos() != 0 {
		t.Fatalf("Len %d Pos %d, expected 13 and 0", c.Len(), c.Pos())
	}
	tps := c.TurningPoints()
	if got := indices(tps); len(got) != 2 || got[1] != 5 {
		t.Fatalf("turning points %v, expected [0 5]", got)
	}
	if tps[0].EpochSize != 5 {
		t.Errorf("first epoch size %d, expected 5", tps[0].EpochSize)
	}
	if tps[0].W1 != ref.W1 || tps[0].W2 != ref.W2 {
		t.Error("first turning point should start from the weights stored at 7")
	}
	if tps[0].SkipSteps != 2 || tps[0].SeedShift != 5 || tps[1].SeedShift != 7 {
		t.Errorf("skip %d, shifts %d and %d, expected 2, 5 and 7", tps[0].SkipSteps, tps[0].SeedShift, tps[1].SeedShift)
	}

	first := c.EffectiveStateAt(0)
	if first.W1 != ref.W1 || first.LossAvg != ref.LossAvg {
		t.Error("position 0 should hold what position 7 held")
	}
	if first.Hits != [nn.NumClasses]int{} {
		t.Errorf("hits not rebased: %v", first.Hits)
	}

	diffs := c.DiffTexts()
	if diffs[1] != strings.Replace(lastDiff, "[TP = 12]", "[TP = 5]", 1) {
		t.Errorf("diff not renumbered: %q", diffs[1])
	}
	if strings.Contains(diffs[0], "Changes") {
		t.Errorf("first diff should have no change list: %q", diffs[0])
	}
	checkConsistent(t, c)
}

func TestSetPosClamps(t *testing.T) {
	c := buildTimeline(t)
	if s := c.SetPos(-3); s.Index != 0 || c.Pos() != 0 {
		t.Errorf("SetPos(-3) -> %d", s.Index)
	}
	if s := c.SetPos(500); s.Index != 19 || c.Pos() != 19 || s.Owner != 2 {
		t.Errorf("SetPos(500) -> %d owner %d", s.Index, s.Owner)
	}
	s := c.SetPos(8)
	tps := c.TurningPoints()
	if s.Owner != 1 || s.BatchSize != tps[1].BatchSize || s.Seed != tps[1].Seed {
		t.Error("position 8 should carry the configuration of the turning point at 5")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	c := buildTimeline(t)
	s := c.Snapshot()
	s.W1[0][0] = 99
	s.EpochSize = 1
	tps := c.TurningPoints()
	tps[0].BatchSize = 77

	if c.Snapshot().W1[0][0] == 99 || c.TurningPoints()[0].BatchSize == 77 {
		t.Error("mutating a returned value changed the controller")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	c := buildTimeline(t)
	cl := c.Clone()
	if cl.ID() == c.ID() {
		t.Error("clone kept the model id")
	}
	cl.DeleteAfter(2)
	if c.Len() != 20 || len(c.TurningPoints()) != 3 {
		t.Error("deleting on the clone changed the original")
	}
	if cl.Len() != 3 {
		t.Errorf("clone Len = %d, expected 3", cl.Len())
	}
}

func TestObservers(t *testing.T) {
	c := NewFromTurningPoint(testTP(2, 10), quietOptions())
	ch := NewChannelObserver(64)
	unsubscribe := c.Subscribe(ch)

	d := c.EffectiveStateAt(3).TurningPoint
	d.EpochSize = 6
	c.FillFrom(d)

	progress := 0
	var last Event
	for len(ch.Events) > 0 {
		last = <-ch.Events
		if last.Kind == EventRegenerationProgress {
			progress++
		}
	}
	if progress != 5 {
		t.Errorf("%d progress events, expected 5", progress)
	}
	if last.Kind != EventTimelineChanged || last.Pos != 4 {
		t.Errorf("last event %+v, expected a timeline change at 4", last)
	}

	c.SetName("xor-study")
	if e := <-ch.Events; e.Kind != EventDisplayNameChanged || e.Name != "xor-study" {
		t.Errorf("event %+v", e)
	}

	tp := c.Snapshot().TurningPoint
	c.Reseed(&tp, 99)
	if e := <-ch.Events; e.Kind != EventSeedChanged {
		t.Errorf("event %+v", e)
	}

	unsubscribe()
	unsubscribe()
	c.DeleteAfter(2)
	if len(ch.Events) != 0 {
		t.Error("events delivered after unsubscribe")
	}
}

func TestReseedHonoursLocks(t *testing.T) {
	c := NewFromTurningPoint(testTP(2, 10), quietOptions())
	c.SetParamLocks(LockBatchSize.With(LockLoss, true))
	tp := c.Snapshot().TurningPoint
	batch, loss := tp.BatchSize, tp.Loss

	c.Reseed(&tp, 1234)
	if tp.BatchSize != batch || tp.Loss != loss || tp.Seed != 1234 {
		t.Errorf("locked fields changed: batch %d->%d loss %s->%s", batch, tp.BatchSize, loss, tp.Loss)
	}
}

// TestReadDuringRegeneration reads the controller from a progress callback
func TestReadDuringRegeneration(t *testing.T) {
	c := NewFromTurningPoint(testTP(6, 10), quietOptions())
	var mu sync.Mutex
	seen := map[int]bool{}
	c.Subscribe(ObserverFuncs{RegenerationProgress: func(int) {
		mu.Lock()
		seen[c.Len()] = true
		mu.Unlock()
	}})

	d := c.EffectiveStateAt(9).TurningPoint
	d.EpochSize = 30
	c.FillFrom(d)

	if len(seen) != 1 || !seen[10] {
		t.Errorf("readers saw lengths %v, expected only the old length 10", seen)
	}
	if c.Len() != 40 {
		t.Errorf("Len = %d, expected 40", c.Len())
	}
}

// TestLossTrend trains the LeakyReLU/sigmoid/LCE setup over 100 steps and
// expects the loss to end below where it started for most seeds. The share
// of decreasing steps is logged, not asserted: with one-sample batches the
// four-class average rises about as often as it falls step to step (seed 3
// decreases on 42 of 99), so a 60% threshold would fail for most seeds.
func TestLossTrend(t *testing.T) {
	improved := 0
	for seed := 3; seed <= 7; seed++ {
		tp := NewTurningPoint(seed)
		tp.BatchSize, tp.EpochSize, tp.CyclesPerStep, tp.LearningRate = 1, 100, 3, 0.1
		tp.ClipMin, tp.ClipMax = -1, 11
		tp.Hidden, tp.Output, tp.Loss = "LeakyReLU", "sigmoid", "LCE_Loss"
		tp.FeedFromSeed(seed, allParams)

		c := NewFromTurningPoint(tp, quietOptions())
		losses := c.LossAvgs()
		decreasing := 0
		for i := 1; i < len(losses); i++ {
			if losses[i] < losses[i-1] {
				decreasing++
			}
		}
		t.Logf("seed %d: loss %.4f -> %.4f, %d/%d steps decreasing",
			seed, losses[0], losses[len(losses)-1], decreasing, len(losses)-1)
		if losses[len(losses)-1] < losses[0] {
			improved++
		}
	}
	if improved < 4 {
		t.Errorf("loss improved for %d of 5 seeds, expected at least 4", improved)
	}
}

func TestDeleteBeforeBoundary(t *testing.T) {
	c := buildTimeline(t)
	ref := c.EffectiveStateAt(5)

	c.DeleteBefore(5)

	got := c.EffectiveStateAt(0)
	if got.W1 != ref.W1 || got.W2 != ref.W2 {
		t.Error("position 0 should hold the weights position 5 held")
	}
	if got.BatchSize != ref.BatchSize || got.Seed != ref.Seed {
		t.Error("the turning point at 5 should now be the first one")
	}
	if got := indices(c.TurningPoints()); len(got) != 2 || got[1] != 7 || c.Len() != 15 {
		t.Errorf("turning points %v over %d positions, expected [0 7] over 15", got, c.Len())
	}
	checkConsistent(t, c)
}

func TestLogObserver(t *testing.T) {
	c := New(3, quietOptions())
	var out strings.Builder
	c.Subscribe(&LogObserver{Logger: log.New(&out, "", 0)})

	c.SetName("xor study")
	tp := NewTurningPoint(3)
	c.Reseed(&tp, 9)

	got := out.String()
	if !strings.Contains(got, "[NAME] xor study") {
		t.Errorf("Expected name event in log, got %q", got)
	}
	if !strings.Contains(got, "[SEED] changed") {
		t.Errorf("Expected seed event in log, got %q", got)
	}
	if strings.Contains(got, "[REGEN]") {
		t.Errorf("Progress lines should be off by default, got %q", got)
	}
}

func TestFillClampsPercents(t *testing.T) {
	c := NewFromTurningPoint(testTP(4, 10), quietOptions())
	d := c.EffectiveStateAt(0).TurningPoint
	d.Percents = [4]int{-10, 60, 30, 20}
	d.EpochSize = 30

	c.FillFrom(d)

	if got := c.TurningPoints()[0].Percents; got != [4]int{0, 60, 30, 10} {
		t.Errorf("percents = %v, expected [0 60 30 10]", got)
	}
	if c.Len() != 30 {
		t.Fatalf("Len = %d, expected 30", c.Len())
	}
	if h := c.EffectiveStateAt(29).Hits; h[0] != 0 {
		t.Errorf("class 0 sampled %d times at 0%%", h[0])
	}
	checkConsistent(t, c)
}
