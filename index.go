package kizami

import (
	"math/bits"
	"reflect"
)

// Indexer computes the index key for a component value. The transform must be
// pure: equal components must map to equal keys. Supplying a coarser key type
// lets callers index by, for example, a region grid cell instead of an exact
// position.
type Indexer[T any, K comparable] interface {
	Key(comp *T) K
}

// SimpleIndexer is the identity transform: the component value is its own
// key. It is the default for comparable component types.
type SimpleIndexer[T comparable] struct{}

func (SimpleIndexer[T]) Key(comp *T) T {
	return *comp
}

// IndexState is the world-resident state of one value index: the forward map
// (key to entity set), the reverse map (entity to key) and the routing
// bookkeeping. It lives in the world's resource store and is only mutated by
// its own refresh, which holds exclusive access by the scheduler's rules.
//
// Forward and reverse are kept mutual inverses: an entity sits in exactly the
// forward bucket the reverse map names for it, and a bucket that loses its
// last entity is deleted.
type IndexState[T any, K comparable] struct {
	indexer Indexer[T, K]
	forward map[K]map[Entity]struct{}
	reverse map[Entity]K

	// Each distinct key is assigned an ordinal starting at 1; the ordinal's
	// binary digits are the key's routing bits. Bit i maps to markers[i], a
	// zero-size marker component, so an indexed entity's archetype mask
	// encodes its key's routing pattern. Ordinal 0 is reserved for "not
	// routed", which is why assignment starts at 1.
	ordinals    map[K]uint32
	nextOrdinal uint32
	markers     []ComponentID

	lastRefreshed Tick
	compID        ComponentID

	// Cursor into the world's removal buffer for compID. The buffer is only
	// truncated at frame boundaries, so the cursor keeps each refresh from
	// re-consuming removals it already processed; removedEpoch detects the
	// truncation and rewinds it.
	removalCursor int
	removalEpoch  uint32
}

// Index is a handle over one registered value index. Handles are cheap and
// per-caller; the state they point at is shared through the world's resource
// store. Every read operation refreshes the state first, so readers never see
// data stale relative to the current world tick.
type Index[T any, K comparable] struct {
	world   *World
	state   *IndexState[T, K]
	changed *Filter[T]
}

// AddIndex opts component type T into value indexing with the identity key
// transform. Calling it again for the same T returns a handle to the existing
// index.
func AddIndex[T comparable](w *World) *Index[T, T] {
	return AddIndexWith[T, T](w, SimpleIndexer[T]{})
}

// AddIndexWith opts component type T into value indexing under a custom key
// transform. The transform is fixed at registration; a second registration
// for the same T and K reuses the existing state and keeps its original
// indexer.
func AddIndexWith[T any, K comparable](w *World, indexer Indexer[T, K]) *Index[T, K] {
	if ix, ok := IndexForWith[T, K](w); ok {
		return ix
	}
	s := &IndexState[T, K]{
		indexer:     indexer,
		forward:     make(map[K]map[Entity]struct{}),
		reverse:     make(map[Entity]K),
		ordinals:    make(map[K]uint32),
		nextOrdinal: 1,
		compID:      w.getCompTypeID(reflect.TypeOf((*T)(nil)).Elem()),
	}
	// The freshness tick survives across frames, so the overflow scan must
	// clamp it like any system's last-run marker.
	w.registerCheckTick(&s.lastRefreshed)
	InsertResource(w, s)
	return &Index[T, K]{
		world:   w,
		state:   s,
		changed: NewFilter[T](w),
	}
}

// IndexFor returns a handle to the identity index registered for T, if any.
func IndexFor[T comparable](w *World) (*Index[T, T], bool) {
	return IndexForWith[T, T](w)
}

// IndexForWith returns a handle to the index registered for T under key type
// K, if any.
func IndexForWith[T any, K comparable](w *World) (*Index[T, K], bool) {
	s, id := GetResource[IndexState[T, K]](w.resources)
	if id < 0 {
		return nil, false
	}
	return &Index[T, K]{
		world:   w,
		state:   s,
		changed: NewFilter[T](w),
	}, true
}

// ensureUpdated runs the refresh unless it already ran at the current world
// tick. Re-invoking within one run is a no-op, so the first reader in a run
// pays the refresh cost and later readers get it for free. The world's change
// tick starts at 1, so the zero freshness tick of a new index is always
// stale.
func (ix *Index[T, K]) ensureUpdated() {
	thisRun := ix.world.ChangeTick()
	if ix.state.lastRefreshed == thisRun {
		return
	}
	ix.refresh(thisRun)
}

// keyUpdate is one pending routing change collected during the refresh walk.
// Bucket and marker moves mutate archetypes, which would invalidate the walk,
// so they are applied after it finishes.
type keyUpdate[K comparable] struct {
	entity Entity
	key    K
}

func (ix *Index[T, K]) refresh(thisRun Tick) {
	s := ix.state
	w := ix.world

	// Pass 1: drain the removals recorded for T since the last refresh.
	// Entities may appear more than once or have been re-spawned since; the
	// reverse-map check makes stale entries harmless.
	if s.removalEpoch != w.removedEpoch {
		s.removalCursor = 0
		s.removalEpoch = w.removedEpoch
	}
	buf := w.removedEntities(s.compID)
	for _, e := range buf[s.removalCursor:] {
		key, ok := s.reverse[e]
		if !ok {
			continue
		}
		delete(s.reverse, e)
		ix.dropFromBucket(key, e)
		ix.applyMarkers(e, s.ordinals[key], 0)
	}
	s.removalCursor = len(buf)

	// Pass 2: collect every entity whose T changed since the last refresh and
	// whose key actually moved. The reference tick sits one before
	// lastRefreshed so mutations stamped at the refresh tick itself are
	// re-examined next run instead of lost; re-examining an unmoved key is a
	// no-op.
	since := NewTick(s.lastRefreshed.Get() - 1)
	var updates []keyUpdate[K]
	ix.changed.Reset()
	for ix.changed.Next() {
		if !ix.changed.Cells().Changed.IsNewerThan(since, thisRun) {
			continue
		}
		e := ix.changed.Entity()
		key := s.indexer.Key(ix.changed.Get())
		if old, ok := s.reverse[e]; ok && old == key {
			continue
		}
		updates = append(updates, keyUpdate[K]{entity: e, key: key})
	}

	// Pass 3: apply the collected moves. Routing markers are physically added
	// and removed here, after iteration, because each move relocates the
	// entity to a different archetype.
	for _, u := range updates {
		var oldBits uint32
		if old, ok := s.reverse[u.entity]; ok {
			ix.dropFromBucket(old, u.entity)
			oldBits = s.ordinals[old]
		}
		s.reverse[u.entity] = u.key
		bucket, ok := s.forward[u.key]
		if !ok {
			bucket = make(map[Entity]struct{})
			s.forward[u.key] = bucket
		}
		bucket[u.entity] = struct{}{}
		ix.applyMarkers(u.entity, oldBits, ix.ordinalFor(u.key))
	}

	s.lastRefreshed = thisRun
}

// dropFromBucket removes the entity from its forward bucket, deleting the
// bucket when it empties. The key's ordinal stays assigned so the key keeps
// its routing pattern if it reappears.
func (ix *Index[T, K]) dropFromBucket(key K, e Entity) {
	bucket, ok := ix.state.forward[key]
	if !ok {
		return
	}
	delete(bucket, e)
	if len(bucket) == 0 {
		delete(ix.state.forward, key)
	}
}

// ordinalFor returns the key's routing ordinal, assigning the next one and
// registering any marker components its bits require.
func (ix *Index[T, K]) ordinalFor(key K) uint32 {
	s := ix.state
	if ord, ok := s.ordinals[key]; ok {
		return ord
	}
	ord := s.nextOrdinal
	s.nextOrdinal++
	s.ordinals[key] = ord
	for len(s.markers) < bits.Len32(ord) {
		s.markers = append(s.markers, ix.world.registerMarker())
	}
	return ord
}

// applyMarkers moves the entity's routing markers from the oldBits pattern to
// the newBits pattern. No-ops on dead entities, which covers removals that
// came from a despawn.
func (ix *Index[T, K]) applyMarkers(e Entity, oldBits, newBits uint32) {
	if oldBits == newBits {
		return
	}
	s := ix.state
	for i, m := range s.markers {
		bit := uint32(1) << i
		switch {
		case newBits&bit != 0 && oldBits&bit == 0:
			ix.world.addComponentRaw(e, m)
		case newBits&bit == 0 && oldBits&bit != 0:
			ix.world.removeComponentRaw(e, m)
		}
	}
}

// Get returns the entities whose indexed component maps to the same key as
// value, as of the current world tick. Unknown values yield an empty slice,
// never an error. The slice is freshly allocated and owned by the caller.
func (ix *Index[T, K]) Get(value T) []Entity {
	ix.ensureUpdated()
	bucket, ok := ix.state.forward[ix.state.indexer.Key(&value)]
	if !ok {
		return nil
	}
	out := make([]Entity, 0, len(bucket))
	for e := range bucket {
		out = append(out, e)
	}
	return out
}

// Lookup is Get for callers that already hold a key rather than a component
// value.
func (ix *Index[T, K]) Lookup(key K) []Entity {
	ix.ensureUpdated()
	bucket, ok := ix.state.forward[key]
	if !ok {
		return nil
	}
	out := make([]Entity, 0, len(bucket))
	for e := range bucket {
		out = append(out, e)
	}
	return out
}

// Iter calls fn once per forward bucket. The entity slice passed to fn is
// reused between calls; copy it to retain. Enumeration order is unspecified.
func (ix *Index[T, K]) Iter(fn func(key K, entities []Entity)) {
	ix.ensureUpdated()
	var buf []Entity
	for key, bucket := range ix.state.forward {
		buf = buf[:0]
		for e := range bucket {
			buf = append(buf, e)
		}
		fn(key, buf)
	}
}

// Refresh forces the index current at the world's tick without reading it.
func (ix *Index[T, K]) Refresh() {
	ix.ensureUpdated()
}
