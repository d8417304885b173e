package timeline

import (
	"log"
	"os"
)

// ProgressHost shows progress of long regenerations. Begin is called once
// per regenerated segment, Advance after each step.
type ProgressHost interface {
	Begin(label string, total int)
	Advance(step int)
	End()
}

// Options configures a Controller
type Options struct {
	// StayOnFill keeps the position on the new turning point after a fill;
	// otherwise the position moves to the end of the timeline.
	StayOnFill bool

	// StrictFunctions makes Load fail on unknown function names instead of
	// falling back to the first registered function.
	StrictFunctions bool

	Logger   *log.Logger
	Progress ProgressHost
}

// DefaultOptions returns the options a new controller uses when none are given
func DefaultOptions() Options {
	return Options{
		StayOnFill: true,
		Logger:     log.New(os.Stderr, "", log.LstdFlags),
	}
}

func (o Options) warnf(format string, args ...any) {
	if o.Logger == nil {
		return
	}
	o.Logger.Printf("Warning: "+format, args...)
}
