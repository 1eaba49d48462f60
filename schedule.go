package kizami

// SystemContext is what a running system sees: the world plus the reference
// tick pair its change queries compare against. LastRun is the tick the same
// system last finished at; ThisRun is the world tick for the current run, and
// every mutation the system makes is stamped with it.
type SystemContext struct {
	World   *World
	LastRun Tick
	ThisRun Tick
}

// SystemFunc is the body of a system.
type SystemFunc func(ctx *SystemContext)

// System pairs a system function with its persistent last-run tick.
type System struct {
	name       string
	fn         SystemFunc
	lastRun    Tick
	registered bool
}

// Name returns the system's registered name.
func (s *System) Name() string {
	return s.name
}

// Schedule runs systems in registration order. It owns only the tick
// bookkeeping a scheduler must respect: each run advances the world change
// tick once, hands the system its (lastRun, thisRun) pair and stores thisRun
// as the system's new lastRun afterwards. There is no dependency graph here;
// a parallel scheduler layered on top keeps the same per-system contract.
type Schedule struct {
	systems []*System
}

// NewSchedule creates an empty schedule.
func NewSchedule() *Schedule {
	return &Schedule{}
}

// AddSystem appends a system to the schedule and returns the schedule for
// chaining.
func (s *Schedule) AddSystem(name string, fn SystemFunc) *Schedule {
	s.systems = append(s.systems, &System{name: name, fn: fn})
	return s
}

// Run executes every system once, in order. A system's lastRun tick persists
// across frames, so on its first run the system is registered with the
// world's overflow scan.
func (s *Schedule) Run(w *World) {
	for _, sys := range s.systems {
		if !sys.registered {
			w.registerCheckTick(&sys.lastRun)
			sys.registered = true
		}
		thisRun := w.IncrementChangeTick()
		sys.fn(&SystemContext{World: w, LastRun: sys.lastRun, ThisRun: thisRun})
		sys.lastRun = thisRun
	}
}

// RunSystem executes fn once as an anonymous system with the supplied lastRun
// tick and returns the run's tick, which the caller stores as the next
// lastRun. Callers holding the returned tick across frames should register it
// with the world via a Schedule instead.
func RunSystem(w *World, lastRun Tick, fn SystemFunc) Tick {
	thisRun := w.IncrementChangeTick()
	fn(&SystemContext{World: w, LastRun: lastRun, ThisRun: thisRun})
	return thisRun
}

// ResourceChanged reports whether the world's resource of type T was inserted
// or mutated since the running system's last run. Absent resources report
// false.
func ResourceChanged[T any](ctx *SystemContext) bool {
	ref, ok := GetResourceRef[T](ctx.World, ctx.LastRun, ctx.ThisRun)
	if !ok {
		return false
	}
	return ref.IsChanged()
}

// ResourceAdded reports whether the world's resource of type T was inserted
// since the running system's last run.
func ResourceAdded[T any](ctx *SystemContext) bool {
	ref, ok := GetResourceRef[T](ctx.World, ctx.LastRun, ctx.ThisRun)
	if !ok {
		return false
	}
	return ref.IsAdded()
}
