package kizami

import (
	"reflect"
	"unsafe"
)

// Builder spawns entities directly into the archetype for component set {T},
// skipping the per-entity archetype lookup. Every spawned slot gets a fresh
// change-cell pair stamped at the world's current change tick, so newly
// created components report both is-added and is-changed on the next run.
type Builder[T any] struct {
	world  *World
	arch   *archetype
	compID ComponentID
}

// NewBuilder creates a Builder for the single-component archetype {T}.
func NewBuilder[T any](w *World) *Builder[T] {
	t := reflect.TypeOf((*T)(nil)).Elem()
	id := w.getCompTypeID(t)
	var mask bitmask256
	mask.set(id)
	sp := compSpec{id: id, typ: t, size: w.components.compIDToSize[id]}
	arch := w.getOrCreateArchetype(mask, []compSpec{sp})
	return &Builder[T]{world: w, arch: arch, compID: id}
}

// New is a convenience function that creates a new builder instance.
func (b *Builder[T]) New(w *World) *Builder[T] {
	return NewBuilder[T](w)
}

// NewEntity spawns one entity with a zero-valued T.
func (b *Builder[T]) NewEntity() Entity {
	return b.world.createEntity(b.arch)
}

// NewEntities spawns count entities with zero-valued components.
func (b *Builder[T]) NewEntities(count int) {
	b.spawn(count, nil)
}

// NewEntitiesWithValueSet spawns count entities, each initialized with comp.
func (b *Builder[T]) NewEntitiesWithValueSet(count int, comp T) {
	b.spawn(count, &comp)
}

// spawn is the shared batch path; comp nil means zero-valued.
func (b *Builder[T]) spawn(count int, comp *T) {
	if count == 0 {
		return
	}
	w := b.world
	a := b.arch
	tick := newComponentTicks(w.ChangeTick())
	remaining := count
	for remaining > 0 {
		if len(a.chunks) == 0 || a.chunks[len(a.chunks)-1].size == ChunkSize {
			a.chunks = append(a.chunks, w.newChunk(a))
		}
		lastC := a.chunks[len(a.chunks)-1]
		avail := ChunkSize - lastC.size
		batch := min(avail, remaining)
		if len(w.entities.freeIDs) < batch {
			w.expand(batch - len(w.entities.freeIDs) + 1)
		}
		startIdx := lastC.size
		popped := w.entities.freeIDs[len(w.entities.freeIDs)-batch:]
		w.entities.freeIDs = w.entities.freeIDs[:len(w.entities.freeIDs)-batch]
		cells := lastC.cells[b.compID]
		for k := 0; k < batch; k++ {
			id := popped[k]
			meta := &w.entities.metas[id]
			meta.archetypeIndex = a.index
			meta.chunkIndex = len(a.chunks) - 1
			meta.index = startIdx + k
			meta.version = w.entities.nextEntityVer
			ent := Entity{ID: id, Version: meta.version}
			lastC.entityIDs[startIdx+k] = ent
			if comp != nil {
				ptr := unsafe.Pointer(uintptr(lastC.compPointers[b.compID]) + uintptr(startIdx+k)*a.compSizes[b.compID])
				*(*T)(ptr) = *comp
			}
			cells[startIdx+k] = tick
			Publish(w.events, ComponentInserted{Entity: ent, Component: b.compID})
			w.entities.nextEntityVer++
		}
		lastC.size += batch
		a.size += batch
		remaining -= batch
	}
	w.mutationVersion++
}

// Get returns a raw pointer to the entity's T component, or nil if the
// entity is invalid or lacks it. Writing through the pointer bypasses change
// detection; use GetComponentMut for tracked mutation.
func (b *Builder[T]) Get(e Entity) *T {
	w := b.world
	if !w.IsValid(e) {
		return nil
	}
	meta := w.entities.metas[e.ID]
	a := w.archetypes.archetypes[meta.archetypeIndex]
	id := b.compID
	if !a.mask.containsBit(id) {
		return nil
	}
	chunk := a.chunks[meta.chunkIndex]
	ptr := unsafe.Pointer(uintptr(chunk.compPointers[id]) + uintptr(meta.index)*a.compSizes[id])
	return (*T)(ptr)
}

// Set overwrites the entity's T component and stamps its changed tick, adding
// the component (with an archetype move) if the entity lacks it.
func (b *Builder[T]) Set(e Entity, comp T) {
	SetComponent(b.world, e, comp)
}

// SetBatch applies Set to every entity in the slice.
func (b *Builder[T]) SetBatch(entities []Entity, comp T) {
	for _, e := range entities {
		b.Set(e, comp)
	}
}

// Builder2 spawns entities directly into the archetype {T, U}.
type Builder2[T, U any] struct {
	world   *World
	arch    *archetype
	compID1 ComponentID
	compID2 ComponentID
}

// NewBuilder2 creates a Builder2 for the two-component archetype {T, U}.
func NewBuilder2[T, U any](w *World) *Builder2[T, U] {
	t1 := reflect.TypeOf((*T)(nil)).Elem()
	t2 := reflect.TypeOf((*U)(nil)).Elem()
	id1 := w.getCompTypeID(t1)
	id2 := w.getCompTypeID(t2)
	var mask bitmask256
	mask.set(id1)
	mask.set(id2)
	specs := []compSpec{
		{id: id1, typ: t1, size: w.components.compIDToSize[id1]},
		{id: id2, typ: t2, size: w.components.compIDToSize[id2]},
	}
	arch := w.getOrCreateArchetype(mask, specs)
	return &Builder2[T, U]{world: w, arch: arch, compID1: id1, compID2: id2}
}

// NewEntity spawns one entity with zero-valued components.
func (b *Builder2[T, U]) NewEntity() Entity {
	return b.world.createEntity(b.arch)
}

// NewEntities spawns count entities with zero-valued components.
func (b *Builder2[T, U]) NewEntities(count int) {
	w := b.world
	a := b.arch
	tick := newComponentTicks(w.ChangeTick())
	remaining := count
	for remaining > 0 {
		if len(a.chunks) == 0 || a.chunks[len(a.chunks)-1].size == ChunkSize {
			a.chunks = append(a.chunks, w.newChunk(a))
		}
		lastC := a.chunks[len(a.chunks)-1]
		avail := ChunkSize - lastC.size
		batch := min(avail, remaining)
		if len(w.entities.freeIDs) < batch {
			w.expand(batch - len(w.entities.freeIDs) + 1)
		}
		startIdx := lastC.size
		popped := w.entities.freeIDs[len(w.entities.freeIDs)-batch:]
		w.entities.freeIDs = w.entities.freeIDs[:len(w.entities.freeIDs)-batch]
		for k := 0; k < batch; k++ {
			id := popped[k]
			meta := &w.entities.metas[id]
			meta.archetypeIndex = a.index
			meta.chunkIndex = len(a.chunks) - 1
			meta.index = startIdx + k
			meta.version = w.entities.nextEntityVer
			ent := Entity{ID: id, Version: meta.version}
			lastC.entityIDs[startIdx+k] = ent
			lastC.cells[b.compID1][startIdx+k] = tick
			lastC.cells[b.compID2][startIdx+k] = tick
			Publish(w.events, ComponentInserted{Entity: ent, Component: b.compID1})
			Publish(w.events, ComponentInserted{Entity: ent, Component: b.compID2})
			w.entities.nextEntityVer++
		}
		lastC.size += batch
		a.size += batch
		remaining -= batch
	}
	w.mutationVersion++
}
