package kizami

import (
	"reflect"
	"unsafe"
)

// ComponentIDFor registers (if needed) and returns the component ID for T.
func ComponentIDFor[T any](w *World) ComponentID {
	return w.getCompTypeID(reflect.TypeOf((*T)(nil)).Elem())
}

// GetComponent retrieves a pointer to the component of type `T` for the given
// entity. It provides a direct, type-safe way to access component data.
//
// If the entity is invalid, does not have the component, or if the entity ID
// is out of bounds, this function returns nil. The pointer is a raw view:
// writing through it bypasses change detection. Use GetComponentMut when the
// mutation must be reported.
//
// Parameters:
//   - w: The World containing the entity.
//   - e: The Entity from which to retrieve the component.
//
// Returns:
//   - A pointer to the component data (*T), or nil if not found.
func GetComponent[T any](w *World, e Entity) *T {
	if !w.IsValid(e) {
		return nil
	}
	meta := w.entities.metas[e.ID]
	id := w.getCompTypeID(reflect.TypeOf((*T)(nil)).Elem())
	a := w.archetypes.archetypes[meta.archetypeIndex]
	if !a.mask.containsBit(id) {
		return nil
	}
	chunk := a.chunks[meta.chunkIndex]
	ptr := unsafe.Pointer(uintptr(chunk.compPointers[id]) + uintptr(meta.index)*a.compSizes[id])
	return (*T)(ptr)
}

// GetComponentRef returns a read-only access proxy over the entity's `T`
// component, bound to the caller's reference ticks. ok is false if the entity
// is invalid or lacks the component.
func GetComponentRef[T any](w *World, e Entity, lastRun, thisRun Tick) (Ref[T], bool) {
	if !w.IsValid(e) {
		return Ref[T]{}, false
	}
	meta := w.entities.metas[e.ID]
	id := w.getCompTypeID(reflect.TypeOf((*T)(nil)).Elem())
	a := w.archetypes.archetypes[meta.archetypeIndex]
	if !a.mask.containsBit(id) {
		return Ref[T]{}, false
	}
	chunk := a.chunks[meta.chunkIndex]
	ptr := unsafe.Pointer(uintptr(chunk.compPointers[id]) + uintptr(meta.index)*a.compSizes[id])
	return NewRef((*T)(ptr), &chunk.cells[id][meta.index], lastRun, thisRun), true
}

// GetComponentMut returns a read-write access proxy over the entity's `T`
// component. Mutating through the proxy stamps the changed tick. The caller
// must hold the sole mutable access to this component; constructing two live
// Muts over the same cell is a contract violation the runtime does not check.
func GetComponentMut[T any](w *World, e Entity, lastRun, thisRun Tick) (Mut[T], bool) {
	if !w.IsValid(e) {
		return Mut[T]{}, false
	}
	meta := w.entities.metas[e.ID]
	id := w.getCompTypeID(reflect.TypeOf((*T)(nil)).Elem())
	a := w.archetypes.archetypes[meta.archetypeIndex]
	if !a.mask.containsBit(id) {
		return Mut[T]{}, false
	}
	chunk := a.chunks[meta.chunkIndex]
	ptr := unsafe.Pointer(uintptr(chunk.compPointers[id]) + uintptr(meta.index)*a.compSizes[id])
	return NewMut((*T)(ptr), &chunk.cells[id][meta.index], lastRun, thisRun), true
}

// HasComponent reports whether the entity currently carries a `T` component.
func HasComponent[T any](w *World, e Entity) bool {
	if !w.IsValid(e) {
		return false
	}
	meta := w.entities.metas[e.ID]
	id := w.getCompTypeID(reflect.TypeOf((*T)(nil)).Elem())
	return w.archetypes.archetypes[meta.archetypeIndex].mask.containsBit(id)
}

// SetComponent adds a component of type `T` with the given value to an
// entity, or updates it if the component already exists.
//
// An update stamps the slot's changed tick; a fresh add stamps both cells and
// moves the entity to a wider archetype, which is relatively expensive. If
// the entity is invalid, this function does nothing.
//
// Parameters:
//   - w: The World where the entity resides.
//   - e: The Entity to modify.
//   - val: The component data of type `T` to set.
func SetComponent[T any](w *World, e Entity, val T) {
	if !w.IsValid(e) {
		return
	}
	meta := &w.entities.metas[e.ID]
	t := reflect.TypeOf((*T)(nil)).Elem()
	id := w.getCompTypeID(t)
	a := w.archetypes.archetypes[meta.archetypeIndex]
	if a.mask.containsBit(id) {
		oldChunk := a.chunks[meta.chunkIndex]
		ptr := unsafe.Pointer(uintptr(oldChunk.compPointers[id]) + uintptr(meta.index)*a.compSizes[id])
		*(*T)(ptr) = val
		oldChunk.cells[id][meta.index].SetChanged(w.ChangeTick())
		return
	}
	newMask := a.mask
	newMask.set(id)
	var targetA *archetype
	if idx, ok := w.archetypes.maskToArcIndex[newMask]; ok {
		targetA = w.archetypes.archetypes[idx]
	} else {
		extra := []compSpec{{id: id, typ: t, size: w.components.compIDToSize[id]}}
		targetA = w.getOrCreateArchetype(newMask, w.specsForMask(a, 0, false, extra))
	}
	newChunk, newIdx := w.moveToArchetype(e, meta, a, targetA)
	dst := unsafe.Pointer(uintptr(newChunk.compPointers[id]) + uintptr(newIdx)*targetA.compSizes[id])
	*(*T)(dst) = val
	newChunk.cells[id][newIdx] = newComponentTicks(w.ChangeTick())
	Publish(w.events, ComponentInserted{Entity: e, Component: id})
}

// RemoveComponent removes the component of type `T` from the specified
// entity, recording a removal event for index consumers.
//
// This operation will cause the entity to move to a new archetype that does
// not include the removed component. This can be an expensive operation. If
// the entity is invalid or does not have the component, this function does
// nothing.
//
// Parameters:
//   - w: The World where the entity resides.
//   - e: The Entity to modify.
func RemoveComponent[T any](w *World, e Entity) {
	if !w.IsValid(e) {
		return
	}
	meta := &w.entities.metas[e.ID]
	t := reflect.TypeOf((*T)(nil)).Elem()
	id := w.getCompTypeID(t)
	a := w.archetypes.archetypes[meta.archetypeIndex]
	if !a.mask.containsBit(id) {
		return
	}
	newMask := a.mask
	newMask.unset(id)
	var targetA *archetype
	if idx, ok := w.archetypes.maskToArcIndex[newMask]; ok {
		targetA = w.archetypes.archetypes[idx]
	} else {
		targetA = w.getOrCreateArchetype(newMask, w.specsForMask(a, id, true, nil))
	}
	w.moveToArchetype(e, meta, a, targetA)
	w.recordRemoval(id, e)
}
