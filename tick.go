package kizami

// CheckTickThreshold is the minimum number of world tick increments between
// two CheckChangeTicks scans. The scan only runs while no systems are
// executing, so with a threshold of N a tick can age at most 2N-1 increments
// between scans: the world ticks N-1 times, then N times.
//
// (518,400,000 = 1000 ticks per frame * 144 frames per second * 3600 seconds per hour)
const CheckTickThreshold uint32 = 518_400_000

// MaxChangeAge is the maximum tick age that cannot overflow before the next
// scan. Changes stop being detected once they become this old; the scan clamps
// every stored tick to this age so wraparound can never produce a false
// positive.
const MaxChangeAge uint32 = ^uint32(0) - (2*CheckTickThreshold - 1)

// Tick is a point in world-mutation time: the value of the world's wrapping
// 32-bit change counter when something happened. Two arbitrary ticks have no
// meaningful order on their own; ordering is only defined relative to a
// (lastRun, thisRun) reference pair via IsNewerThan. The raw counter is kept
// unexported so callers cannot accidentally compare ticks with `<`.
type Tick struct {
	tick uint32
}

// NewTick creates a Tick from a raw counter value.
func NewTick(t uint32) Tick {
	return Tick{tick: t}
}

// Get returns the raw counter value.
func (t Tick) Get() uint32 {
	return t.tick
}

// IsNewerThan reports whether this tick occurred after the system's lastRun,
// relative to thisRun. The comparison is done with wrapping subtraction and
// both ages are clamped to MaxChangeAge, so the result stays correct across
// counter wraparound as long as the overflow scan runs at least every
// CheckTickThreshold increments.
func (t Tick) IsNewerThan(lastRun, thisRun Tick) bool {
	ticksSinceChange := min(thisRun.tick-t.tick, MaxChangeAge)
	ticksSinceSystem := min(thisRun.tick-lastRun.tick, MaxChangeAge)
	return ticksSinceSystem > ticksSinceChange
}

// RelativeTo returns the wrapping difference between this tick and other,
// i.e. the age of other as seen from this tick.
func (t Tick) RelativeTo(other Tick) uint32 {
	return t.tick - other.tick
}

// CheckTick clamps the tick in place so that its age relative to thisRun is
// at most MaxChangeAge. Reports whether clamping occurred.
func (t *Tick) CheckTick(thisRun Tick) bool {
	if thisRun.RelativeTo(*t) > MaxChangeAge {
		t.tick = thisRun.tick - MaxChangeAge
		return true
	}
	return false
}

// ComponentTicks is the change-cell pair stored alongside every
// (entity, component) slot and every resource entry: the tick the value was
// inserted and the tick it was last mutated. Added is stamped exactly once at
// insertion; Changed is stamped at insertion and on every subsequent mutation.
type ComponentTicks struct {
	Added   Tick
	Changed Tick
}

// newComponentTicks returns a cell pair freshly stamped at t, as written when
// a component or resource is inserted.
func newComponentTicks(t Tick) ComponentTicks {
	return ComponentTicks{Added: t, Changed: t}
}

// IsAdded reports whether the value was inserted after lastRun.
func (c *ComponentTicks) IsAdded(lastRun, thisRun Tick) bool {
	return c.Added.IsNewerThan(lastRun, thisRun)
}

// IsChanged reports whether the value was inserted or mutated after lastRun.
func (c *ComponentTicks) IsChanged(lastRun, thisRun Tick) bool {
	return c.Changed.IsNewerThan(lastRun, thisRun)
}

// SetChanged stamps the changed tick.
func (c *ComponentTicks) SetChanged(t Tick) {
	c.Changed = t
}
