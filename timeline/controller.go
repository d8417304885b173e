package timeline

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// DefaultName is the display name of a model that was never saved
const DefaultName = "untitled"

// Controller owns one training timeline: the turning points, the per-step
// arrays they generated, and the current position.
//
// Mutating calls are serialized. Regeneration runs outside the state lock,
// so readers polling from a progress callback see the timeline as it was
// before the call.
type Controller struct {
	writeMu sync.Mutex
	mu      sync.RWMutex

	id    uuid.UUID
	name  string
	opts  Options
	locks ParamMask

	tps       []TurningPoint
	diffs     []string
	finalLoss []string
	store     *ArrayStore
	pos       int
	owner     int

	obsMu  sync.Mutex
	obs    map[int]Observer
	nextID int
}

// Snapshot is the effective state at one position: the configuration of the
// turning point in effect there with the step's weights, hits and
// evaluation overlaid. Index is the position itself.
type Snapshot struct {
	TurningPoint
	Owner int // list index of the turning point in effect
}

// New creates a timeline whose first segment is generated from seed
func New(seed int, opts Options) *Controller {
	return NewFromTurningPoint(NewTurningPoint(seed), opts)
}

// NewFromTurningPoint creates a timeline whose first segment is generated
// from tp; tp.Index is ignored.
func NewFromTurningPoint(tp TurningPoint, opts Options) *Controller {
	c := newController(opts)
	tp.Index = 0
	c.fill(tp, 0, 0, fillLabel(&tp))
	c.pos = 0
	c.owner = 0
	return c
}

func newController(opts Options) *Controller {
	return &Controller{
		id:    uuid.New(),
		name:  DefaultName,
		opts:  opts,
		store: &ArrayStore{},
		obs:   make(map[int]Observer),
	}
}

// ID returns the model id, unique per controller and per clone
func (c *Controller) ID() uuid.UUID { return c.id }

func (c *Controller) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// SetName sets the display name and notifies observers
func (c *Controller) SetName(name string) {
	c.mu.Lock()
	c.name = name
	c.mu.Unlock()
	c.notify(func(o Observer) { o.OnDisplayNameChanged(name) })
}

// Len returns the number of timeline positions
func (c *Controller) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.Len()
}

// Pos returns the current position
func (c *Controller) Pos() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pos
}

// ParamLocks returns the fields Reseed leaves alone
func (c *Controller) ParamLocks() ParamMask {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.locks
}

func (c *Controller) SetParamLocks(m ParamMask) {
	c.mu.Lock()
	c.locks = m
	c.mu.Unlock()
}

// TurningPoints returns a copy of the turning point list
func (c *Controller) TurningPoints() []TurningPoint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.tps)
}

// DiffTexts returns one change description per turning point
func (c *Controller) DiffTexts() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.diffs)
}

// FinalLosses returns the formatted last loss of each turning point's
// segment
func (c *Controller) FinalLosses() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.finalLoss)
}

// LossAvgs returns the average loss at every position
func (c *Controller) LossAvgs() []float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.LossAvgs()
}

// Subscribe registers o and returns a function that removes it
func (c *Controller) Subscribe(o Observer) (unsubscribe func()) {
	c.obsMu.Lock()
	id := c.nextID
	c.nextID++
	c.obs[id] = o
	c.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.obsMu.Lock()
			delete(c.obs, id)
			c.obsMu.Unlock()
		})
	}
}

func (c *Controller) notify(fn func(Observer)) {
	c.obsMu.Lock()
	ids := make([]int, 0, len(c.obs))
	for id := range c.obs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	list := make([]Observer, len(ids))
	for i, id := range ids {
		list[i] = c.obs[id]
	}
	c.obsMu.Unlock()

	for _, o := range list {
		fn(o)
	}
}

// ownerAt returns the list index of the last turning point at or before ix
func (c *Controller) ownerAt(ix int) int {
	for i := len(c.tps) - 1; i > 0; i-- {
		if c.tps[i].Index <= ix {
			return i
		}
	}
	return 0
}

func (c *Controller) clampPos(ix int) int {
	return min(max(ix, 0), max(c.store.Len()-1, 0))
}

func (c *Controller) snapshotAt(ix int) Snapshot {
	if len(c.tps) == 0 {
		return Snapshot{}
	}
	ix = c.clampPos(ix)
	owner := c.ownerAt(ix)
	tp := c.tps[owner]
	if ix != tp.Index {
		tp.SeedShift, tp.SkipSteps = 0, 0
	}
	tp.Index = ix
	if ix < c.store.Len() {
		st := c.store.Step(ix)
		tp.W1, tp.W2, tp.Hits, tp.Evaluation = st.W1, st.W2, st.Hits, st.Evaluation
	}
	tp.MarkEdited()
	return Snapshot{TurningPoint: tp, Owner: owner}
}

// EffectiveStateAt returns the state at ix without moving the position
func (c *Controller) EffectiveStateAt(ix int) Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotAt(ix)
}

// Snapshot returns the state at the current position
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotAt(c.pos)
}

// SetPos moves the current position, clamped to the timeline, and returns
// the state there.
func (c *Controller) SetPos(ix int) Snapshot {
	c.mu.Lock()
	c.pos = c.clampPos(ix)
	snap := c.snapshotAt(c.pos)
	c.owner = snap.Owner
	c.mu.Unlock()
	return snap
}

// Reseed regenerates tp from seed, honouring the controller's param locks
func (c *Controller) Reseed(tp *TurningPoint, seed int) {
	tp.FeedFromSeed(seed, c.ParamLocks())
	c.notify(func(o Observer) { o.OnSeedChanged() })
}

// FillFrom makes tp a turning point at tp.Index and regenerates the
// timeline after it. Everything past tp.Index is discarded. A turning point
// already at tp.Index is replaced; otherwise the step at tp.Index is kept
// and the new segment starts one step later. It returns the new position.
func (c *Controller) FillFrom(tp TurningPoint) int {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.RLock()
	n := c.store.Len()
	ix := c.clampPos(tp.Index)
	keep := 0
	for keep < len(c.tps) && c.tps[keep].Index <= ix {
		keep++
	}
	start := ix + 1
	if n == 0 {
		start, keep = 0, 0
	} else if keep > 0 && c.tps[keep-1].Index == ix {
		start = ix
		keep--
	}
	c.mu.RUnlock()

	pos := c.fill(tp, start, keep, fillLabel(&tp))
	c.notify(func(o Observer) { o.OnTimelineChanged(pos) })
	return pos
}

func fillLabel(tp *TurningPoint) string {
	return fmt.Sprintf("Filling model (epoch=%d x cycles=%d)", tp.EpochSize, tp.CyclesPerStep)
}

// fill generates a segment from tp starting at position start, keeping the
// first keep turning points and the steps before start. Callers hold
// writeMu (or own c exclusively).
func (c *Controller) fill(tp TurningPoint, start, keep int, label string) int {
	tp.normalize()
	tp.Index = start
	seg := c.generate(&tp, label)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.tps = slices.Clone(c.tps[:keep])
	c.diffs = slices.Clone(c.diffs[:keep])
	c.finalLoss = slices.Clone(c.finalLoss[:keep])
	c.store.DeleteAfter(start - 1)

	diff := Diff(&tp, nil)
	if keep > 0 {
		last := &c.tps[keep-1]
		last.EpochSize = c.store.Len() - last.Index
		prev := *last
		if c.store.Len() > 0 {
			st := c.store.Step(c.store.Len() - 1)
			prev.W1, prev.W2 = st.W1, st.W2
		}
		diff = Diff(&tp, &prev)
	}
	lossAvgs := seg.LossAvgs()
	diff += LossText(lossAvgs[len(lossAvgs)-1])

	c.store.Append(seg)
	c.tps = append(c.tps, tp)
	c.diffs = append(c.diffs, diff)
	c.finalLoss = append(c.finalLoss, FormatLoss(lossAvgs[len(lossAvgs)-1]))

	c.pos = c.store.Len() - 1
	if c.opts.StayOnFill {
		c.pos = tp.Index
	}
	c.owner = c.ownerAt(c.pos)
	return c.pos
}

func (c *Controller) generate(tp *TurningPoint, label string) *ArrayStore {
	ph := c.opts.Progress
	if ph != nil {
		ph.Begin(label, tp.EpochSize)
		defer ph.End()
	}
	return Generate(tp, func(step int) {
		if ph != nil {
			ph.Advance(step)
		}
		c.notify(func(o Observer) { o.OnRegenerationProgress(step) })
	})
}

// DeleteBefore drops every position before ix, which becomes position 0.
// The turning point in effect at ix becomes the first one and starts from
// the weights stored at ix. Remaining indices and diff marks are renumbered
// and hits restart from zero; regenerating the timeline reproduces it.
func (c *Controller) DeleteBefore(ix int) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	ix = c.clampPos(ix)
	c.store.DeleteBefore(ix)

	first := c.ownerAt(ix)
	c.tps = slices.Clone(c.tps[first:])
	c.diffs = slices.Clone(c.diffs[first:])
	c.finalLoss = slices.Clone(c.finalLoss[first:])
	skipped := ix - c.tps[0].Index
	for i := range c.tps {
		tp := &c.tps[i]
		old := tp.Index
		tp.Index = max(old-ix, 0)
		tp.SeedShift += old - tp.Index
		c.diffs[i] = strings.Replace(c.diffs[i], mark(old), mark(tp.Index), 1)
	}

	// the head restarts from the stored weights of its first kept step
	head := &c.tps[0]
	head.SkipSteps += skipped
	st := c.store.Step(0)
	head.W1, head.W2 = st.W1, st.W2
	head.MarkEdited()
	head.Recompute()
	if len(c.tps) == 1 {
		head.EpochSize = c.store.Len()
	} else {
		head.EpochSize = c.tps[1].Index
	}
	c.diffs[0] = Diff(head, nil) + LossText(c.store.Step(head.EpochSize-1).LossAvg)

	c.pos, c.owner = 0, 0
	c.mu.Unlock()

	c.notify(func(o Observer) { o.OnTimelineChanged(0) })
}

// DeleteAfter drops every position after ix and every turning point that
// started there. The turning point at ix, if any, stays with a one-step
// segment. It returns the number of positions dropped.
func (c *Controller) DeleteAfter(ix int) int {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	ix = c.clampPos(ix)
	n := c.truncate(ix)
	c.mu.Unlock()

	c.notify(func(o Observer) { o.OnTimelineChanged(ix) })
	return n
}

// DeleteFrom drops position ix and everything after it, keeping position 0
// at minimum. It returns the number of positions dropped.
func (c *Controller) DeleteFrom(ix int) int {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	ix = c.clampPos(ix)
	if ix > 0 {
		ix--
	}
	n := c.truncate(ix)
	c.mu.Unlock()

	c.notify(func(o Observer) { o.OnTimelineChanged(ix) })
	return n
}

func (c *Controller) truncate(ix int) int {
	n := c.store.DeleteAfter(ix)
	keep := c.ownerAt(ix) + 1
	c.tps = slices.Clone(c.tps[:keep])
	c.diffs = slices.Clone(c.diffs[:keep])
	c.finalLoss = slices.Clone(c.finalLoss[:keep])

	last := &c.tps[keep-1]
	last.EpochSize = c.store.Len() - last.Index
	c.finalLoss[keep-1] = FormatLoss(c.store.Step(c.store.Len() - 1).LossAvg)

	c.pos = ix
	c.owner = keep - 1
	return n
}

// Clone returns an independent deep copy with a new id and no observers
func (c *Controller) Clone() *Controller {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return &Controller{
		id:        uuid.New(),
		name:      c.name,
		opts:      c.opts,
		locks:     c.locks,
		tps:       slices.Clone(c.tps),
		diffs:     slices.Clone(c.diffs),
		finalLoss: slices.Clone(c.finalLoss),
		store:     c.store.Clone(),
		pos:       c.pos,
		owner:     c.owner,
		obs:       make(map[int]Observer),
	}
}
