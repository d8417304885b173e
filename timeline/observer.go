package timeline

import (
	"log"
)

// Observer receives controller notifications. Structural events arrive after
// the change is complete. OnRegenerationProgress is called from inside a
// fill or load and must not call back into the controller's mutating
// methods.
type Observer interface {
	OnTimelineChanged(pos int)
	OnSeedChanged()
	OnDisplayNameChanged(name string)
	OnRegenerationProgress(step int)
}

// ObserverFuncs adapts plain functions to Observer; nil fields are skipped
type ObserverFuncs struct {
	TimelineChanged      func(pos int)
	SeedChanged          func()
	DisplayNameChanged   func(name string)
	RegenerationProgress func(step int)
}

func (f ObserverFuncs) OnTimelineChanged(pos int) {
	if f.TimelineChanged != nil {
		f.TimelineChanged(pos)
	}
}

func (f ObserverFuncs) OnSeedChanged() {
	if f.SeedChanged != nil {
		f.SeedChanged()
	}
}

func (f ObserverFuncs) OnDisplayNameChanged(name string) {
	if f.DisplayNameChanged != nil {
		f.DisplayNameChanged(name)
	}
}

func (f ObserverFuncs) OnRegenerationProgress(step int) {
	if f.RegenerationProgress != nil {
		f.RegenerationProgress(step)
	}
}

// =============================================================================
// Example Observer Implementations
// =============================================================================

// LogObserver writes events through a logger
type LogObserver struct {
	Logger   *log.Logger
	Progress bool // If true, log every regenerated step (can be a lot!)
}

func (o *LogObserver) printf(format string, args ...any) {
	if o.Logger != nil {
		o.Logger.Printf(format, args...)
	} else {
		log.Printf(format, args...)
	}
}

func (o *LogObserver) OnTimelineChanged(pos int) {
	o.printf("[TIMELINE] position %d", pos)
}

func (o *LogObserver) OnSeedChanged() {
	o.printf("[SEED] changed")
}

func (o *LogObserver) OnDisplayNameChanged(name string) {
	o.printf("[NAME] %s", name)
}

func (o *LogObserver) OnRegenerationProgress(step int) {
	if o.Progress {
		o.printf("[REGEN] step %d", step)
	}
}

// EventKind identifies a notification carried by Event
type EventKind int

const (
	EventTimelineChanged EventKind = iota
	EventSeedChanged
	EventDisplayNameChanged
	EventRegenerationProgress
)

// Event is one notification as delivered to a ChannelObserver
type Event struct {
	Kind EventKind
	Pos  int
	Name string
	Step int
}

// ChannelObserver sends events to a Go channel (for internal processing)
type ChannelObserver struct {
	Events chan Event
}

func NewChannelObserver(bufferSize int) *ChannelObserver {
	return &ChannelObserver{
		Events: make(chan Event, bufferSize),
	}
}

func (o *ChannelObserver) send(e Event) {
	select {
	case o.Events <- e:
	default:
		// Channel full, drop event to avoid blocking
	}
}

func (o *ChannelObserver) OnTimelineChanged(pos int) {
	o.send(Event{Kind: EventTimelineChanged, Pos: pos})
}

func (o *ChannelObserver) OnSeedChanged() {
	o.send(Event{Kind: EventSeedChanged})
}

func (o *ChannelObserver) OnDisplayNameChanged(name string) {
	o.send(Event{Kind: EventDisplayNameChanged, Name: name})
}

func (o *ChannelObserver) OnRegenerationProgress(step int) {
	o.send(Event{Kind: EventRegenerationProgress, Step: step})
}
