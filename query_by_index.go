package kizami

import "reflect"

// QueryByIndex restricts queries over component type T to entities whose
// indexed value matches a requested lookup value. It builds on the routing
// markers the index maintains: for each distinct key ordinal it composes an
// include mask (T plus the markers for the ordinal's set bits) and an exclude
// mask (the markers for its clear bits), then reuses the archetype cache
// machinery ordinary filters run on. One cache is kept per ordinal actually
// queried.
type QueryByIndex[T any, K comparable] struct {
	world       *World
	index       *Index[T, K]
	compID      ComponentID
	views       map[uint32]*queryCache
	markerCount int
}

// NewQueryByIndex creates an index-backed query for component type T under
// the identity index. Panics if T was never registered with AddIndex.
func NewQueryByIndex[T comparable](w *World) *QueryByIndex[T, T] {
	return NewQueryByIndexWith[T, T](w)
}

// NewQueryByIndexWith creates an index-backed query for component type T
// under the index registered with key type K. Panics if no such index exists.
func NewQueryByIndexWith[T any, K comparable](w *World) *QueryByIndex[T, K] {
	ix, ok := IndexForWith[T, K](w)
	if !ok {
		panic("ecs: component type is not indexed")
	}
	return &QueryByIndex[T, K]{
		world:  w,
		index:  ix,
		compID: w.getCompTypeID(reflect.TypeOf((*T)(nil)).Elem()),
		views:  make(map[uint32]*queryCache),
	}
}

// At returns a view over exactly the entities whose indexed component maps to
// the same key as value, as of the current world tick. A value the index has
// never seen yields an empty view; it never panics and never matches
// everything.
func (q *QueryByIndex[T, K]) At(value T) IndexedView {
	q.index.ensureUpdated()
	s := q.index.state

	// A new marker bit widens the exclude mask of every existing pattern, so
	// cached views are invalid whenever the index grew a marker.
	if q.markerCount != len(s.markers) {
		clear(q.views)
		q.markerCount = len(s.markers)
	}

	ord, ok := s.ordinals[s.indexer.Key(&value)]
	if !ok {
		return IndexedView{pos: -1}
	}
	view, ok := q.views[ord]
	if !ok {
		view = q.buildView(ord)
		q.views[ord] = view
	}
	return IndexedView{entities: view.Entities(), pos: -1}
}

// buildView composes the archetype masks for one routing ordinal: entities
// must carry T plus the markers of the ordinal's set bits, and must not carry
// any tracked marker outside the pattern.
func (q *QueryByIndex[T, K]) buildView(ord uint32) *queryCache {
	var include, exclude bitmask256
	include.set(q.compID)
	for i, m := range q.index.state.markers {
		if ord&(uint32(1)<<i) != 0 {
			include.set(m)
		} else {
			exclude.set(m)
		}
	}
	qc := newQueryCache(q.world, include, exclude)
	return &qc
}

// IndexedView iterates the result of one At lookup. The underlying entity
// slice is owned by the query's cache and stays valid until the next world
// mutation; copy Entities() to retain results longer.
type IndexedView struct {
	entities []Entity
	pos      int
}

// Next advances to the next entity, reporting whether one exists.
func (v *IndexedView) Next() bool {
	v.pos++
	return v.pos < len(v.entities)
}

// Entity returns the current entity. Only valid after Next returned true.
func (v *IndexedView) Entity() Entity {
	return v.entities[v.pos]
}

// Count returns the number of matching entities.
func (v IndexedView) Count() int {
	return len(v.entities)
}

// Entities returns the matching entities.
func (v IndexedView) Entities() []Entity {
	return v.entities
}
