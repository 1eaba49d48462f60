package kizami

import (
	"reflect"
	"unsafe"
)

// Filter provides a fast, cache-friendly iterator over all entities that have
// a specific set of components. It is the primary mechanism for implementing
// game logic (systems). The filter iterates directly over the component and
// change-cell arrays within matching archetype chunks.
//
// This is the filter for entities with one component; Filter2 follows the
// same pattern for pairs.
type Filter[T any] struct {
	queryCache
	curChunk     *chunk
	curBase      unsafe.Pointer
	curCells     []ComponentTicks
	compSize     uintptr
	curMatchIdx  int // index into matchingArches
	curChunkIdx  int // index into the current archetype's chunks
	curIdx       int // position inside the current chunk
	curEnt       Entity
	compID       ComponentID
}

// NewFilter creates a new `Filter` that iterates over all entities possessing
// at least the component of type `T`, excluding entities that carry any of
// the optional exclude components. The filter automatically discovers and
// caches the archetypes that match this signature.
//
// Parameters:
//   - w: The World to query.
//   - excludes: Optional component IDs that disqualify an entity.
//
// Returns:
//   - A pointer to the newly created `Filter[T]`.
func NewFilter[T any](w *World, excludes ...ComponentID) *Filter[T] {
	id := w.getCompTypeID(reflect.TypeOf((*T)(nil)).Elem())
	var include bitmask256
	include.set(id)
	var exclude bitmask256
	for _, ex := range excludes {
		exclude.set(ex)
	}
	f := &Filter[T]{
		queryCache: newQueryCache(w, include, exclude),
		compID:     id,
	}
	f.compSize = w.components.compIDToSize[id]
	f.updateMatching()
	f.Reset()
	return f
}

// New is a convenience function that creates a new filter instance.
func (f *Filter[T]) New(w *World) *Filter[T] {
	return NewFilter[T](w)
}

// Reset rewinds the filter's iterator to the beginning. It should be called
// if you need to iterate over the same set of entities multiple times. The
// filter will also automatically detect if new archetypes have been created
// since the last iteration and update its internal list accordingly.
func (f *Filter[T]) Reset() {
	if f.IsStale() {
		f.updateMatching()
	}
	f.curMatchIdx = 0
	f.curChunkIdx = 0
	f.curIdx = -1
	f.curChunk = nil
	f.advanceChunk()
}

// advanceChunk positions the cursor on the next non-empty chunk, walking
// archetypes as needed. Leaves curChunk nil at end of iteration.
func (f *Filter[T]) advanceChunk() {
	for f.curMatchIdx < len(f.matchingArches) {
		a := f.matchingArches[f.curMatchIdx]
		for f.curChunkIdx < len(a.chunks) {
			c := a.chunks[f.curChunkIdx]
			if c.size > 0 {
				f.curChunk = c
				f.curBase = c.compPointers[f.compID]
				f.curCells = c.cells[f.compID]
				return
			}
			f.curChunkIdx++
		}
		f.curMatchIdx++
		f.curChunkIdx = 0
	}
	f.curChunk = nil
}

// Next advances the filter to the next matching entity. It returns true if an
// entity was found, and false if the iteration is complete. This method must
// be called before accessing the entity or its components.
//
// Example:
//
//	query := kizami.NewFilter[Position](world)
//	for query.Next() {
//	    // ... process entity
//	}
//
// Returns:
//   - true if another matching entity was found, false otherwise.
func (f *Filter[T]) Next() bool {
	if f.curChunk == nil {
		return false
	}
	f.curIdx++
	if f.curIdx < f.curChunk.size {
		f.curEnt = f.curChunk.entityIDs[f.curIdx]
		return true
	}
	f.curChunkIdx++
	f.curIdx = 0
	f.advanceChunk()
	if f.curChunk == nil {
		return false
	}
	f.curEnt = f.curChunk.entityIDs[0]
	return true
}

// Entity returns the current `Entity` in the iteration. This should only be
// called after `Next()` has returned true.
//
// Returns:
//   - The current Entity.
func (f *Filter[T]) Entity() Entity {
	return f.curEnt
}

// Get returns a pointer to the component of type `T` for the current entity
// in the iteration. This should only be called after `Next()` has returned
// true. The pointer is a raw view: writing through it bypasses change
// detection. Use Mut for tracked mutation.
//
// Returns:
//   - A pointer to the component data (*T).
func (f *Filter[T]) Get() *T {
	ptr := unsafe.Pointer(uintptr(f.curBase) + uintptr(f.curIdx)*f.compSize)
	return (*T)(ptr)
}

// Cells returns the change-cell pair of the current entity's component.
func (f *Filter[T]) Cells() *ComponentTicks {
	return &f.curCells[f.curIdx]
}

// Ref returns a read-only access proxy over the current entity's component,
// bound to the caller's (lastRun, thisRun) reference ticks.
func (f *Filter[T]) Ref(lastRun, thisRun Tick) Ref[T] {
	return NewRef(f.Get(), f.Cells(), lastRun, thisRun)
}

// Mut returns a read-write access proxy over the current entity's component.
// The caller must hold the sole mutable access to this component, per the
// scheduler's declared-access rules.
func (f *Filter[T]) Mut(lastRun, thisRun Tick) Mut[T] {
	ptr := unsafe.Pointer(uintptr(f.curBase) + uintptr(f.curIdx)*f.compSize)
	return NewMut((*T)(ptr), f.Cells(), lastRun, thisRun)
}

// Added reports whether the current entity's component was inserted after
// lastRun.
func (f *Filter[T]) Added(lastRun, thisRun Tick) bool {
	return f.curCells[f.curIdx].IsAdded(lastRun, thisRun)
}

// Changed reports whether the current entity's component was inserted or
// mutated after lastRun.
func (f *Filter[T]) Changed(lastRun, thisRun Tick) bool {
	return f.curCells[f.curIdx].IsChanged(lastRun, thisRun)
}

// RemoveEntities efficiently removes all entities that match the filter's
// query. Removal events are recorded for every component of every removed
// entity so that value indexes stay consistent.
//
// After this operation, the filter will be empty.
func (f *Filter[T]) RemoveEntities() {
	if f.IsStale() {
		f.updateMatching()
	}
	for _, a := range f.matchingArches {
		for _, c := range a.chunks {
			for i := 0; i < c.size; i++ {
				ent := c.entityIDs[i]
				for _, cid := range a.compOrder {
					f.world.recordRemoval(cid, ent)
				}
				meta := &f.world.entities.metas[ent.ID]
				meta.archetypeIndex = -1
				meta.chunkIndex = -1
				meta.index = -1
				meta.version = 0
				f.world.entities.freeIDs = append(f.world.entities.freeIDs, ent.ID)
				Publish(f.world.events, EntityDespawned{Entity: ent})
			}
		}
		a.chunks = a.chunks[:0]
		a.size = 0
	}
	f.world.mutationVersion++
	f.Reset()
}

// Entities returns all entities that match the filter.
// Note: The returned slice is owned by the Filter and may be invalidated on
// next Entities call or world mutation. Copy if needed for long-term use.
func (f *Filter[T]) Entities() []Entity {
	return f.queryCache.Entities()
}
