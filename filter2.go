package kizami

import (
	"reflect"
	"unsafe"
)

// Filter2 iterates over all entities possessing both component `T` and
// component `U`. Same iteration mechanics as Filter.
type Filter2[T, U any] struct {
	queryCache
	curChunk    *chunk
	curBase1    unsafe.Pointer
	curBase2    unsafe.Pointer
	curCells1   []ComponentTicks
	curCells2   []ComponentTicks
	compSize1   uintptr
	compSize2   uintptr
	curMatchIdx int
	curChunkIdx int
	curIdx      int
	curEnt      Entity
	compID1     ComponentID
	compID2     ComponentID
}

// NewFilter2 creates a filter over entities that have at least the two
// component types `T` and `U`.
func NewFilter2[T, U any](w *World, excludes ...ComponentID) *Filter2[T, U] {
	id1 := w.getCompTypeID(reflect.TypeOf((*T)(nil)).Elem())
	id2 := w.getCompTypeID(reflect.TypeOf((*U)(nil)).Elem())
	var include bitmask256
	include.set(id1)
	include.set(id2)
	var exclude bitmask256
	for _, ex := range excludes {
		exclude.set(ex)
	}
	f := &Filter2[T, U]{
		queryCache: newQueryCache(w, include, exclude),
		compID1:    id1,
		compID2:    id2,
	}
	f.compSize1 = w.components.compIDToSize[id1]
	f.compSize2 = w.components.compIDToSize[id2]
	f.updateMatching()
	f.Reset()
	return f
}

// New is a convenience function that creates a new filter instance.
func (f *Filter2[T, U]) New(w *World) *Filter2[T, U] {
	return NewFilter2[T, U](w)
}

// Reset rewinds the filter's iterator to the beginning, refreshing archetype
// coverage if the world grew new archetypes.
func (f *Filter2[T, U]) Reset() {
	if f.IsStale() {
		f.updateMatching()
	}
	f.curMatchIdx = 0
	f.curChunkIdx = 0
	f.curIdx = -1
	f.curChunk = nil
	f.advanceChunk()
}

func (f *Filter2[T, U]) advanceChunk() {
	for f.curMatchIdx < len(f.matchingArches) {
		a := f.matchingArches[f.curMatchIdx]
		for f.curChunkIdx < len(a.chunks) {
			c := a.chunks[f.curChunkIdx]
			if c.size > 0 {
				f.curChunk = c
				f.curBase1 = c.compPointers[f.compID1]
				f.curBase2 = c.compPointers[f.compID2]
				f.curCells1 = c.cells[f.compID1]
				f.curCells2 = c.cells[f.compID2]
				return
			}
			f.curChunkIdx++
		}
		f.curMatchIdx++
		f.curChunkIdx = 0
	}
	f.curChunk = nil
}

// Next advances the filter to the next matching entity.
func (f *Filter2[T, U]) Next() bool {
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

// Entity returns the current `Entity` in the iteration.
func (f *Filter2[T, U]) Entity() Entity {
	return f.curEnt
}

// Get returns raw pointers to both components for the current entity.
// Writing through them bypasses change detection; use Mut1/Mut2 for tracked
// mutation.
func (f *Filter2[T, U]) Get() (*T, *U) {
	p1 := unsafe.Pointer(uintptr(f.curBase1) + uintptr(f.curIdx)*f.compSize1)
	p2 := unsafe.Pointer(uintptr(f.curBase2) + uintptr(f.curIdx)*f.compSize2)
	return (*T)(p1), (*U)(p2)
}

// Mut1 returns a read-write proxy over the current entity's `T` component.
func (f *Filter2[T, U]) Mut1(lastRun, thisRun Tick) Mut[T] {
	p1 := unsafe.Pointer(uintptr(f.curBase1) + uintptr(f.curIdx)*f.compSize1)
	return NewMut((*T)(p1), &f.curCells1[f.curIdx], lastRun, thisRun)
}

// Mut2 returns a read-write proxy over the current entity's `U` component.
func (f *Filter2[T, U]) Mut2(lastRun, thisRun Tick) Mut[U] {
	p2 := unsafe.Pointer(uintptr(f.curBase2) + uintptr(f.curIdx)*f.compSize2)
	return NewMut((*U)(p2), &f.curCells2[f.curIdx], lastRun, thisRun)
}

// Entities returns all entities that match the filter.
func (f *Filter2[T, U]) Entities() []Entity {
	return f.queryCache.Entities()
}
