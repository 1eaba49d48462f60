package kizami

// Ref is a read-only view over a component or resource value together with
// its change-cell pair and the (lastRun, thisRun) reference ticks of the
// system observing it. It answers is-added/is-changed queries without ever
// stamping the cell.
//
// A Ref borrows the value and its cells for the duration of one system
// invocation. It carries no synchronization; the scheduler's access-conflict
// analysis is what prevents it from coexisting with a Mut over the same cell.
// Mutating the value through the returned pointer is a contract violation:
// the mutation would go unreported.
type Ref[T any] struct {
	value   *T
	cells   *ComponentTicks
	lastRun Tick
	thisRun Tick
}

// NewRef builds a Ref from its parts. Intended for storage-layer code; end
// users normally obtain a Ref from a Filter or a resource accessor.
func NewRef[T any](value *T, cells *ComponentTicks, lastRun, thisRun Tick) Ref[T] {
	return Ref[T]{value: value, cells: cells, lastRun: lastRun, thisRun: thisRun}
}

// Value returns the wrapped value for reading.
func (r Ref[T]) Value() *T {
	return r.value
}

// IsAdded reports whether the value was inserted after the observing system
// last ran.
func (r Ref[T]) IsAdded() bool {
	return r.cells.IsAdded(r.lastRun, r.thisRun)
}

// IsChanged reports whether the value was inserted or mutated after the
// observing system last ran.
func (r Ref[T]) IsChanged() bool {
	return r.cells.IsChanged(r.lastRun, r.thisRun)
}

// LastChanged returns the tick the value was most recently changed.
// Insertion counts as a change.
func (r Ref[T]) LastChanged() Tick {
	return r.cells.Changed
}

// Mut is a read-write view over a value plus its change-cell pair. Every
// mutable access through Get stamps the changed tick, which is the one
// type-enforced channel through which safe mutation reports itself; Bypass is
// the sanctioned escape hatch for mutating without marking dirty.
//
// The caller must guarantee that no other live Mut aliases the same cell.
// That precondition is documented, not checked: enforcing it is the job of
// the scheduler's declared-access analysis, and checking it here would put a
// branch on every hot-path access.
type Mut[T any] struct {
	value   *T
	cells   *ComponentTicks
	lastRun Tick
	thisRun Tick
}

// NewMut builds a Mut from its parts. Intended for storage-layer code.
func NewMut[T any](value *T, cells *ComponentTicks, lastRun, thisRun Tick) Mut[T] {
	return Mut[T]{value: value, cells: cells, lastRun: lastRun, thisRun: thisRun}
}

// IsAdded reports whether the value was inserted after the observing system
// last ran.
func (m *Mut[T]) IsAdded() bool {
	return m.cells.IsAdded(m.lastRun, m.thisRun)
}

// IsChanged reports whether the value was inserted or mutated after the
// observing system last ran.
func (m *Mut[T]) IsChanged() bool {
	return m.cells.IsChanged(m.lastRun, m.thisRun)
}

// LastChanged returns the tick the value was most recently changed.
func (m *Mut[T]) LastChanged() Tick {
	return m.cells.Changed
}

// Get returns the wrapped value for mutation and stamps the changed tick.
// Call Bypass instead if the access is read-only or must stay unreported.
func (m *Mut[T]) Get() *T {
	m.SetChanged()
	return m.value
}

// Set overwrites the wrapped value and stamps the changed tick.
func (m *Mut[T]) Set(value T) {
	*m.value = value
	m.SetChanged()
}

// SetChanged force-stamps the changed tick to thisRun. Idempotent within a
// run; cannot be undone.
func (m *Mut[T]) SetChanged() {
	m.cells.Changed = m.thisRun
}

// SetLastChanged overwrites the changed tick with an arbitrary value.
//
// This rewrites history and is easy to misuse; it exists for rollback and
// netcode-style use cases. To flag the value as changed use SetChanged, and
// to mutate without flagging use Bypass.
func (m *Mut[T]) SetLastChanged(t Tick) {
	m.cells.Changed = t
}

// Bypass returns the wrapped value WITHOUT stamping the changed tick. This is
// the one sanctioned way to mutate without marking the value dirty, e.g. when
// synchronizing two representations and a change-mark would recurse.
func (m *Mut[T]) Bypass() *T {
	return m.value
}

// IntoInner stamps the changed tick once and returns the wrapped value. The
// proxy must not be used afterwards.
func (m *Mut[T]) IntoInner() *T {
	m.SetChanged()
	return m.value
}

// Downgrade converts the proxy into a read-only Ref over the same value and
// cells. One-way: the Mut must not be used after downgrading.
func (m *Mut[T]) Downgrade() Ref[T] {
	return Ref[T]{value: m.value, cells: m.cells, lastRun: m.lastRun, thisRun: m.thisRun}
}

// SetIfNeq overwrites the value if and only if it differs from the current
// one, stamping the changed tick only when a write happened. Reports whether
// the value changed. This is the idempotent-write helper: setting a value to
// itself never produces a spurious change-mark.
func SetIfNeq[T comparable](m *Mut[T], value T) bool {
	old := m.Bypass()
	if *old != value {
		*old = value
		m.SetChanged()
		return true
	}
	return false
}

// ReplaceIfNeq is SetIfNeq returning the displaced value when a write
// happened, and ok=false otherwise.
func ReplaceIfNeq[T comparable](m *Mut[T], value T) (T, bool) {
	old := m.Bypass()
	if *old != value {
		previous := *old
		*old = value
		m.SetChanged()
		return previous, true
	}
	var zero T
	return zero, false
}

// MapUnchanged narrows a Mut to a sub-field of its value without stamping the
// changed tick. The projected proxy keeps the original change-cell pair, so a
// later mutation through it marks the whole component changed, not a
// fictitious sub-cell. The projection function must not mutate its argument;
// use Bypass to make unreported mutation explicit.
func MapUnchanged[T, U any](m Mut[T], f func(*T) *U) Mut[U] {
	return Mut[U]{value: f(m.value), cells: m.cells, lastRun: m.lastRun, thisRun: m.thisRun}
}

// MapRef narrows a Ref to a sub-field, keeping the original cell pair.
func MapRef[T, U any](r Ref[T], f func(*T) *U) Ref[U] {
	return Ref[U]{value: f(r.value), cells: r.cells, lastRun: r.lastRun, thisRun: r.thisRun}
}
