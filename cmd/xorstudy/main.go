package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/Dani-Luk/NN-XOR/nn"
	"github.com/Dani-Luk/NN-XOR/timeline"
)

// progressBar prints regeneration progress on one terminal line
type progressBar struct {
	label string
	total int
}

func (p *progressBar) Begin(label string, total int) {
	p.label, p.total = label, total
	fmt.Printf("%s\n", label)
}

func (p *progressBar) Advance(step int) {
	if p.total < 2 || (step%50 != 0 && step != p.total-1) {
		return
	}
	const width = 40
	done := width * (step + 1) / p.total
	fmt.Printf("\r   [%s%s] %d/%d", strings.Repeat("#", done), strings.Repeat(".", width-done), step+1, p.total)
}

func (p *progressBar) End() {
	fmt.Println()
}

func main() {
	load := flag.String("load", "", "Model file to load (JSON)")
	seed := flag.Int("seed", 1, "Seed of the first turning point when not loading")
	epoch := flag.Int("epoch", 0, "Epoch size override for a new or filled turning point")
	fillAt := flag.Int("fill", -1, "Position to fill from with a reseeded turning point")
	fillSeed := flag.Int("fill-seed", 0, "Seed for -fill (default: position + 1)")
	lockFlags := flag.String("lock", "", "Comma separated params kept on reseed: batch,epoch,cycles,lr,clip,act1,act2,loss")
	deleteBefore := flag.Int("delete-before", -1, "Drop every position before this one")
	deleteAfter := flag.Int("delete-after", -1, "Drop every position after this one")
	show := flag.Int("show", 5, "Number of evenly spaced positions to print")
	save := flag.String("save", "", "Model file to write (JSON)")
	toEnd := flag.Bool("to-end", false, "Move to the end of the timeline after a fill")
	verbose := flag.Bool("v", false, "Log timeline events")
	flag.Parse()

	opts := timeline.DefaultOptions()
	opts.StayOnFill = !*toEnd
	opts.Progress = &progressBar{}
	nn.SetLogger(opts.Logger)

	locks, err := parseLocks(*lockFlags)
	if err != nil {
		log.Fatalf("Invalid -lock: %v", err)
	}

	fmt.Printf("🧠 XOR 2-2-1 training timeline\n")
	fmt.Printf("==============================\n\n")

	var c *timeline.Controller
	if *load != "" {
		c, err = timeline.LoadFile(*load, opts)
		if err != nil {
			log.Fatalf("Failed to load model: %v", err)
		}
		fmt.Printf("✓ Loaded %s (%d positions)\n", c.Name(), c.Len())
	} else {
		tp := timeline.NewTurningPoint(*seed)
		if *epoch > 0 {
			tp.EpochSize = *epoch
		}
		c = timeline.NewFromTurningPoint(tp, opts)
		fmt.Printf("✓ Created model %s from seed %d (%d positions)\n", c.ID(), *seed, c.Len())
	}
	c.SetParamLocks(locks)
	if *verbose {
		c.Subscribe(&timeline.LogObserver{})
	}

	if *fillAt >= 0 {
		tp := c.EffectiveStateAt(*fillAt).TurningPoint
		s := *fillSeed
		if s == 0 {
			s = tp.Index + 1
		}
		c.Reseed(&tp, s)
		if *epoch > 0 {
			tp.EpochSize = *epoch
		}
		pos := c.FillFrom(tp)
		fmt.Printf("✓ Filled from %d, now at %d (%d positions)\n", *fillAt, pos, c.Len())
	}
	if *deleteAfter >= 0 {
		n := c.DeleteAfter(*deleteAfter)
		fmt.Printf("✓ Dropped %d positions after %d\n", n, *deleteAfter)
	}
	if *deleteBefore >= 0 {
		c.DeleteBefore(*deleteBefore)
		fmt.Printf("✓ Dropped positions before %d (%d left)\n", *deleteBefore, c.Len())
	}

	printTurningPoints(c)
	printPositions(c, *show)

	if *save != "" {
		res := c.SaveFile(*save)
		switch res.Status {
		case timeline.SaveOK:
			fmt.Printf("\n💾 Saved %s as %q\n", *save, res.Name)
		case timeline.SaveDeclinedNameTooLong:
			fmt.Fprintf(os.Stderr, "\nNot saved: %v\n", res.Err)
			os.Exit(2)
		default:
			log.Fatalf("Failed to save model: %v", res.Err)
		}
	}
}

var lockNames = map[string]timeline.ParamMask{
	"batch":  timeline.LockBatchSize,
	"epoch":  timeline.LockEpochSize,
	"cycles": timeline.LockCyclesPerStep,
	"lr":     timeline.LockLearningRate,
	"clip":   timeline.LockClipRange,
	"act1":   timeline.LockHidden,
	"act2":   timeline.LockOutput,
	"loss":   timeline.LockLoss,
}

func parseLocks(s string) (timeline.ParamMask, error) {
	var m timeline.ParamMask
	if s == "" {
		return m, nil
	}
	for _, name := range strings.Split(s, ",") {
		bit, ok := lockNames[strings.TrimSpace(name)]
		if !ok {
			return 0, fmt.Errorf("unknown param %q", name)
		}
		m = m.With(bit, true)
	}
	return m, nil
}

func printTurningPoints(c *timeline.Controller) {
	fmt.Printf("\n📍 Turning points:\n")
	finals := c.FinalLosses()
	for i, tp := range c.TurningPoints() {
		fmt.Printf("   %4d  seed=%-5d batch=%-2d epoch=%-4d cycles=%-2d lr=%.2f clip=[%d,%d] %s/%s/%s  final loss %s\n",
			tp.Index, tp.Seed, tp.BatchSize, tp.EpochSize, tp.CyclesPerStep, tp.LearningRate,
			tp.ClipMin, tp.ClipMax, tp.Hidden, tp.Output, tp.Loss, finals[i])
	}
}

func printPositions(c *timeline.Controller, n int) {
	if n <= 0 {
		return
	}
	fmt.Printf("\n📊 Positions:\n")
	last := c.Len() - 1
	for k := 0; k < n; k++ {
		ix := 0
		if n > 1 {
			ix = last * k / (n - 1)
		}
		s := c.EffectiveStateAt(ix)
		fmt.Printf("   %5d  loss=%.4f  a2=[%.3f %.3f %.3f %.3f]  hits=%v\n",
			ix, s.LossAvg, s.A2[0][0], s.A2[1][0], s.A2[2][0], s.A2[3][0], s.Hits)
		if n == 1 || last == 0 {
			break
		}
	}
}
