// Package kizami implements an archetype-based Entity Component System with
// per-component change detection and component-value indexing.
//
// Features:
// - Archetype-based chunked storage with max 256 component types.
// - Bitmask for fast archetype lookup.
// - Unsafe pointers for zero-GC overhead on component access.
// - Wraparound-safe change ticks on every (entity, component) slot and resource.
// - Ref/Mut access proxies that auto-report mutation.
// - Opt-in component value indexes with index-routed query filters.
package kizami

import (
	"reflect"
	"unsafe"
)

// MaxComponentTypes defines the maximum number of unique component types that
// can be registered in a World, marker components included. Fixed at 256.
const MaxComponentTypes = 256

const ChunkSize = 1024

// ComponentID is a unique identifier for a registered component type.
type ComponentID = uint8

// Entity represents a unique identifier for an object in the World. It combines
// a 32-bit ID with a 32-bit version to ensure that recycled IDs are not confused
// with new entities.
type Entity struct {
	// ID is the unique, recyclable identifier for the entity.
	ID uint32
	// Version is a generation counter to protect against stale entity references.
	// It is incremented each time an entity ID is reused.
	Version uint32
}

// entityMeta holds the internal location and state of an entity.
type entityMeta struct {
	archetypeIndex int    // index in World.archetypes
	chunkIndex     int    // index in archetype.chunks
	index          int    // position inside the chunk's component array
	version        uint32 // current version, 0 if the entity is dead
}

// compSpec bundles a component type's ID and reflect.Type. Marker components
// carry a nil type and zero size: they exist only as mask bits.
type compSpec struct {
	typ  reflect.Type
	size uintptr
	id   ComponentID
}

// chunk holds fixed-size storage for ChunkSize entities. The cells table is
// parallel to compPointers: cells[id][i] is the change-cell pair for the
// component id of the entity at position i.
type chunk struct {
	entityIDs    [ChunkSize]Entity
	compPointers [MaxComponentTypes]unsafe.Pointer
	cells        [MaxComponentTypes][]ComponentTicks
	size         int // number of entities in this chunk, 0 to ChunkSize
}

// archetype holds storage for one unique component-set mask.
type archetype struct {
	chunks    []*chunk
	compOrder []ComponentID // list of component IDs in this arch
	compSizes [MaxComponentTypes]uintptr
	mask      bitmask256 // which component bits this arch uses
	index     int        // position in world.archetypes
	size      int        // total entity count across chunks
}

// componentRegistry assigns stable IDs to component types. Marker IDs have a
// nil entry in compIDToType.
type componentRegistry struct {
	compIDToType   [MaxComponentTypes]reflect.Type
	compTypeMap    map[reflect.Type]ComponentID
	compIDToSize   [MaxComponentTypes]uintptr
	nextCompTypeID uint16 // counter for assigning new component type IDs
}

// entityRegistry ...
type entityRegistry struct {
	freeIDs         []uint32     // stack of recycled entity IDs
	metas           []entityMeta // stores metadata for each entity, indexed by entity ID
	capacity        int          // current maximum number of entities
	initialCapacity int          // initial capacity, used for expansion
	nextEntityVer   uint32       // version for the next created entity
}

// archetypeRegistry ...
type archetypeRegistry struct {
	maskToArcIndex   map[bitmask256]int // lookup mask→archetype index
	archetypes       []*archetype       // list of all archetypes in the world
	archetypeVersion uint32             // incremented when a new archetype is created
}

// World owns all entity, component and resource storage plus the single
// change-tick counter every change-cell pair is stamped from. The counter is
// advanced once per system run boundary by IncrementChangeTick; it is never a
// hidden global, components that need it receive it explicitly.
type World struct {
	resources       *Resources
	events          *EventBus
	archetypes      archetypeRegistry
	entities        entityRegistry
	components      componentRegistry
	removed         [MaxComponentTypes][]Entity // per-frame removal buffers, drained by indexes
	removedEpoch    uint32                      // bumped when the buffers reset, so index cursors rewind
	checkTicks      []*Tick                     // registered external ticks visited by the overflow scan
	changeTick      uint32
	lastChangeTick  Tick
	lastCheckTick   Tick
	ticksSinceCheck uint32
	mutationVersion uint32 // incremented on entity mutations
}

// NewWorld creates and initializes a new World with a specified initial
// capacity for entities. It pre-allocates memory for the entity metadata and
// free ID list to optimize performance.
//
// Parameters:
//   - initialCapacity: The number of entities to pre-allocate memory for.
//     Choosing a suitable capacity can prevent re-allocations during runtime.
//
// Returns:
//   - A pointer to the newly created World.
func NewWorld(initialCapacity int) *World {
	w := &World{
		resources: &Resources{},
		events:    &EventBus{},
		components: componentRegistry{
			compTypeMap: make(map[reflect.Type]ComponentID, 16),
		},
		entities: entityRegistry{
			capacity:        initialCapacity,
			initialCapacity: initialCapacity,
			freeIDs:         make([]uint32, initialCapacity),
			metas:           make([]entityMeta, initialCapacity),
			nextEntityVer:   1,
		},
		archetypes: archetypeRegistry{
			maskToArcIndex: make(map[bitmask256]int),
			archetypes:     make([]*archetype, 0, 16),
		},
		// The first stamp must be detectable against a last-run of zero.
		changeTick: 1,
	}
	for i := range w.entities.freeIDs {
		w.entities.freeIDs[i] = uint32(initialCapacity - 1 - i)
	}
	for i := range w.entities.metas {
		w.entities.metas[i].archetypeIndex = -1
		w.entities.metas[i].chunkIndex = -1
		w.entities.metas[i].index = -1
		w.entities.metas[i].version = 0
	}
	// Pre-create the empty archetype
	var emptyMask bitmask256
	w.getOrCreateArchetype(emptyMask, []compSpec{})
	return w
}

// ChangeTick returns the world's current change tick. Every insertion and
// every mutation through a Mut proxy is stamped with the value current at
// that moment.
func (w *World) ChangeTick() Tick {
	return NewTick(w.changeTick)
}

// LastChangeTick returns the reference tick direct world access compares
// against; it is advanced by ClearTrackers at the end of a logical frame.
func (w *World) LastChangeTick() Tick {
	return w.lastChangeTick
}

// IncrementChangeTick advances the change tick by one and returns the new
// value. Called once per system-run boundary by the schedule. When
// CheckTickThreshold increments have accumulated since the last overflow
// scan, the scan runs before returning; callers therefore need the same
// exclusive world access here that CheckChangeTicks requires.
func (w *World) IncrementChangeTick() Tick {
	w.changeTick++
	w.ticksSinceCheck++
	if w.ticksSinceCheck >= CheckTickThreshold {
		w.CheckChangeTicks()
	}
	return NewTick(w.changeTick)
}

// ClearTrackers ends a logical frame: it empties the per-component removal
// buffers and advances the world's last-change reference tick.
func (w *World) ClearTrackers() {
	for i := range w.removed {
		w.removed[i] = w.removed[i][:0]
	}
	w.removedEpoch++
	w.lastChangeTick = w.ChangeTick()
}

// registerCheckTick adds an externally owned tick (a system's last-run
// marker, an index's freshness tick) to the set the overflow scan clamps.
// Missing one reintroduces wraparound risk, so anything that stores a Tick
// across frames must register it.
func (w *World) registerCheckTick(t *Tick) {
	w.checkTicks = append(w.checkTicks, t)
}

// recordRemoval appends the entity to the component's removal buffer and
// publishes the removal hook event. The buffer is drained by value indexes
// and cleared by ClearTrackers.
func (w *World) recordRemoval(id ComponentID, e Entity) {
	w.removed[id] = append(w.removed[id], e)
	Publish(w.events, ComponentRemoved{Entity: e, Component: id})
}

// removedEntities returns the removal buffer for a component ID. The slice is
// owned by the world and valid until the next ClearTrackers.
func (w *World) removedEntities(id ComponentID) []Entity {
	return w.removed[id]
}

// ClearEntities removes all entities from the world, recycling their IDs and
// resetting archetypes. This is an efficient way to reset the world state
// without deallocating memory. Removal buffers are populated so that value
// indexes prune the cleared entities on their next refresh.
func (w *World) ClearEntities() {
	for _, a := range w.archetypes.archetypes {
		for _, c := range a.chunks {
			for i := 0; i < c.size; i++ {
				for _, cid := range a.compOrder {
					w.removed[cid] = append(w.removed[cid], c.entityIDs[i])
				}
			}
		}
	}
	for i := range w.entities.metas {
		w.entities.metas[i].archetypeIndex = -1
		w.entities.metas[i].chunkIndex = -1
		w.entities.metas[i].index = -1
		w.entities.metas[i].version = 0
	}
	w.entities.freeIDs = w.entities.freeIDs[:0]
	for i := uint32(0); i < uint32(w.entities.capacity); i++ {
		w.entities.freeIDs = append(w.entities.freeIDs, i)
	}
	for _, a := range w.archetypes.archetypes {
		a.chunks = a.chunks[:0]
		a.size = 0
	}
	w.mutationVersion++
}

// IsValid checks if the entity is currently alive in the world. An entity is
// valid if its ID is within bounds and its version matches the world's current
// version for that ID. This prevents "stale" entity references from accessing
// incorrect data after an entity has been deleted and its ID recycled.
//
// Parameters:
//   - e: The Entity to validate.
//
// Returns:
//   - true if the entity is valid, false otherwise.
func (w *World) IsValid(e Entity) bool {
	if int(e.ID) >= len(w.entities.metas) {
		return false
	}
	meta := w.entities.metas[e.ID]
	return meta.version != 0 && meta.version == e.Version
}

// Resources returns the world's resource store: a type-keyed container for
// global data such as index states or configuration. Each entry carries its
// own change-cell pair.
//
// Returns:
//   - A pointer to the Resources object.
func (w *World) Resources() *Resources {
	return w.resources
}

// Events returns the world's event bus. The world publishes
// ComponentInserted, ComponentRemoved and EntityDespawned hook events on it
// for every structural mutation.
func (w *World) Events() *EventBus {
	return w.events
}

// getCompTypeID register or fetch a component type ID for T.
func (w *World) getCompTypeID(t reflect.Type) ComponentID {
	if id, ok := w.components.compTypeMap[t]; ok {
		return id
	}
	if w.components.nextCompTypeID >= MaxComponentTypes {
		panic("ecs: too many component types")
	}
	id := ComponentID(w.components.nextCompTypeID)
	w.components.compTypeMap[t] = id
	w.components.compIDToType[id] = t
	w.components.compIDToSize[id] = t.Size()
	w.components.nextCompTypeID++
	return id
}

// registerMarker allocates a fresh zero-size marker component ID. Markers
// have no value storage; they exist purely as archetype mask bits used by
// index routing.
func (w *World) registerMarker() ComponentID {
	if w.components.nextCompTypeID >= MaxComponentTypes {
		panic("ecs: too many component types")
	}
	id := ComponentID(w.components.nextCompTypeID)
	w.components.nextCompTypeID++
	return id
}

// getOrCreateArchetype returns an archetype for the given mask;
// if missing, allocates component storage arrays of length cap.
func (w *World) getOrCreateArchetype(mask bitmask256, specs []compSpec) *archetype {
	if idx, ok := w.archetypes.maskToArcIndex[mask]; ok {
		return w.archetypes.archetypes[idx]
	}
	// build new archetype
	a := &archetype{
		index:     len(w.archetypes.archetypes),
		mask:      mask,
		size:      0,
		chunks:    make([]*chunk, 0, 4),
		compOrder: make([]ComponentID, len(specs)),
	}
	for i, sp := range specs {
		a.compOrder[i] = sp.id
		a.compSizes[sp.id] = sp.size
	}
	w.archetypes.archetypes = append(w.archetypes.archetypes, a)
	w.archetypes.maskToArcIndex[mask] = a.index
	w.archetypes.archetypeVersion++
	return a
}

// newChunk creates a new chunk for the archetype, allocating value storage
// for sized components and a change-cell table for every component bit,
// markers included; the overflow scan walks those cells too.
func (w *World) newChunk(a *archetype) *chunk {
	c := &chunk{}
	for _, cid := range a.compOrder {
		typ := w.components.compIDToType[cid]
		if typ != nil && a.compSizes[cid] > 0 {
			slice := reflect.MakeSlice(reflect.SliceOf(typ), ChunkSize, ChunkSize)
			c.compPointers[cid] = slice.UnsafePointer()
		}
		c.cells[cid] = make([]ComponentTicks, ChunkSize)
	}
	return c
}

// specsForMask builds the compSpec list for an existing archetype, optionally
// excluding one component and appending extras. Used when deriving target
// archetypes for component add/remove moves.
func (w *World) specsForMask(a *archetype, exclude ComponentID, hasExclude bool, extra []compSpec) []compSpec {
	var tempSpecs [MaxComponentTypes]compSpec
	count := 0
	for _, cid := range a.compOrder {
		if hasExclude && cid == exclude {
			continue
		}
		tempSpecs[count] = compSpec{
			id:   cid,
			typ:  w.components.compIDToType[cid],
			size: w.components.compIDToSize[cid],
		}
		count++
	}
	for _, sp := range extra {
		tempSpecs[count] = sp
		count++
	}
	out := make([]compSpec, count)
	copy(out, tempSpecs[:count])
	return out
}

// expand automatically increases capacity when full.
func (w *World) expand(additional int) {
	oldCap := w.entities.capacity
	newCap := oldCap * 2
	if newCap == 0 {
		newCap = 1
	}
	if newCap < oldCap+additional {
		newCap = oldCap + additional
	}
	delta := newCap - oldCap
	newMetas := make([]entityMeta, delta)
	for i := range newMetas {
		newMetas[i].archetypeIndex = -1
		newMetas[i].chunkIndex = -1
		newMetas[i].index = -1
		newMetas[i].version = 0
	}
	w.entities.metas = append(w.entities.metas, newMetas...)
	newFree := make([]uint32, delta)
	for i := 0; i < delta; i++ {
		newFree[i] = uint32(newCap - 1 - i)
	}
	w.entities.freeIDs = append(w.entities.freeIDs, newFree...)
	w.entities.capacity = newCap
}

// createEntity bumps an entity into the given archetype, stamping a fresh
// change-cell pair for every component slot. Zero allocations on hot path.
func (w *World) createEntity(a *archetype) Entity {
	if len(w.entities.freeIDs) == 0 {
		w.expand(1)
	}
	// pop an ID
	last := len(w.entities.freeIDs) - 1
	id := w.entities.freeIDs[last]
	w.entities.freeIDs = w.entities.freeIDs[:last]
	if len(a.chunks) == 0 || a.chunks[len(a.chunks)-1].size == ChunkSize {
		a.chunks = append(a.chunks, w.newChunk(a))
	}
	lastC := a.chunks[len(a.chunks)-1]
	idx := lastC.size
	meta := &w.entities.metas[id]
	meta.archetypeIndex = a.index
	meta.chunkIndex = len(a.chunks) - 1
	meta.index = idx
	meta.version = w.entities.nextEntityVer
	ent := Entity{ID: id, Version: meta.version}
	// place into archetype
	lastC.entityIDs[idx] = ent
	tick := newComponentTicks(w.ChangeTick())
	for _, cid := range a.compOrder {
		lastC.cells[cid][idx] = tick
		Publish(w.events, ComponentInserted{Entity: ent, Component: cid})
	}
	lastC.size++
	a.size++
	w.entities.nextEntityVer++
	w.mutationVersion++
	return ent
}

// CreateEntity creates a new entity with no components.
func (w *World) CreateEntity() Entity {
	emptyMask := bitmask256{}
	idx, ok := w.archetypes.maskToArcIndex[emptyMask]
	if !ok {
		panic("ecs: empty archetype not found")
	}
	a := w.archetypes.archetypes[idx]
	return w.createEntity(a)
}

// CreateEntities creates a batch of entities with no components and returns their IDs.
func (w *World) CreateEntities(count int) []Entity {
	if count == 0 {
		return nil
	}
	emptyMask := bitmask256{}
	idx, ok := w.archetypes.maskToArcIndex[emptyMask]
	if !ok {
		panic("ecs: empty archetype not found")
	}
	a := w.archetypes.archetypes[idx]
	ents := make([]Entity, count)
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
			ents[count-remaining+k] = ent
			w.entities.nextEntityVer++
		}
		lastC.size += batch
		a.size += batch
		remaining -= batch
	}
	w.mutationVersion++
	return ents
}

// RemoveEntity removes a single entity, recording a removal for each of its
// components and publishing the despawn hook event.
func (w *World) RemoveEntity(e Entity) {
	if !w.IsValid(e) {
		return
	}
	meta := &w.entities.metas[e.ID]
	a := w.archetypes.archetypes[meta.archetypeIndex]
	for _, cid := range a.compOrder {
		w.recordRemoval(cid, e)
	}
	w.removeFromArchetype(a, meta)
	meta.archetypeIndex = -1
	meta.chunkIndex = -1
	meta.index = -1
	meta.version = 0
	w.entities.freeIDs = append(w.entities.freeIDs, e.ID)
	Publish(w.events, EntityDespawned{Entity: e})
	w.mutationVersion++
}

// RemoveEntities removes a batch of entities.
func (w *World) RemoveEntities(ents []Entity) {
	for _, e := range ents {
		w.RemoveEntity(e)
	}
}

// removeFromArchetype removes the entity from the archetype without freeing the ID or invalidating version.
func (w *World) removeFromArchetype(a *archetype, meta *entityMeta) {
	chunkIdx := meta.chunkIndex
	chunk := a.chunks[chunkIdx]
	idx := meta.index
	lastIdx := chunk.size - 1
	if idx < lastIdx {
		lastEnt := chunk.entityIDs[lastIdx]
		chunk.entityIDs[idx] = lastEnt
		for _, cid := range a.compOrder {
			size := a.compSizes[cid]
			if size > 0 {
				src := unsafe.Pointer(uintptr(chunk.compPointers[cid]) + uintptr(lastIdx)*size)
				dst := unsafe.Pointer(uintptr(chunk.compPointers[cid]) + uintptr(idx)*size)
				memCopy(dst, src, size)
			}
			chunk.cells[cid][idx] = chunk.cells[cid][lastIdx]
		}
		w.entities.metas[lastEnt.ID].index = idx
	}
	chunk.size--
	a.size--
	if chunk.size == 0 {
		lastChunkIdx := len(a.chunks) - 1
		if chunkIdx < lastChunkIdx {
			a.chunks[chunkIdx] = a.chunks[lastChunkIdx]
			swappedChunk := a.chunks[chunkIdx]
			for j := 0; j < swappedChunk.size; j++ {
				ent := swappedChunk.entityIDs[j]
				w.entities.metas[ent.ID].chunkIndex = chunkIdx
			}
		}
		a.chunks = a.chunks[:lastChunkIdx]
	}
	w.mutationVersion++
}

// moveToArchetype transfers an entity to the target archetype, carrying the
// component data and change cells of every component both archetypes share.
// The entity's meta is updated in place; the old slot is swap-removed.
func (w *World) moveToArchetype(e Entity, meta *entityMeta, a, targetA *archetype) (*chunk, int) {
	if len(targetA.chunks) == 0 || targetA.chunks[len(targetA.chunks)-1].size == ChunkSize {
		targetA.chunks = append(targetA.chunks, w.newChunk(targetA))
	}
	newChunk := targetA.chunks[len(targetA.chunks)-1]
	newIdx := newChunk.size
	newChunk.entityIDs[newIdx] = e
	newChunk.size++
	targetA.size++
	oldChunk := a.chunks[meta.chunkIndex]
	for _, cid := range a.compOrder {
		if !targetA.mask.containsBit(cid) {
			continue
		}
		size := a.compSizes[cid]
		if size > 0 {
			src := unsafe.Pointer(uintptr(oldChunk.compPointers[cid]) + uintptr(meta.index)*size)
			dst := unsafe.Pointer(uintptr(newChunk.compPointers[cid]) + uintptr(newIdx)*targetA.compSizes[cid])
			memCopy(dst, src, size)
		}
		newChunk.cells[cid][newIdx] = oldChunk.cells[cid][meta.index]
	}
	w.removeFromArchetype(a, meta)
	meta.archetypeIndex = targetA.index
	meta.chunkIndex = len(targetA.chunks) - 1
	meta.index = newIdx
	return newChunk, newIdx
}

// addComponentRaw adds a component bit to an entity by ID, moving it to the
// widened archetype and stamping a fresh cell pair for the new slot. Used by
// index marker routing; does not publish hook events.
func (w *World) addComponentRaw(e Entity, id ComponentID) {
	if !w.IsValid(e) {
		return
	}
	meta := &w.entities.metas[e.ID]
	a := w.archetypes.archetypes[meta.archetypeIndex]
	if a.mask.containsBit(id) {
		return
	}
	newMask := a.mask
	newMask.set(id)
	var targetA *archetype
	if idx, ok := w.archetypes.maskToArcIndex[newMask]; ok {
		targetA = w.archetypes.archetypes[idx]
	} else {
		extra := []compSpec{{id: id, typ: w.components.compIDToType[id], size: w.components.compIDToSize[id]}}
		targetA = w.getOrCreateArchetype(newMask, w.specsForMask(a, 0, false, extra))
	}
	newChunk, newIdx := w.moveToArchetype(e, meta, a, targetA)
	newChunk.cells[id][newIdx] = newComponentTicks(w.ChangeTick())
}

// removeComponentRaw removes a component bit from an entity by ID. Used by
// index marker routing; does not publish hook events or record removals.
func (w *World) removeComponentRaw(e Entity, id ComponentID) {
	if !w.IsValid(e) {
		return
	}
	meta := &w.entities.metas[e.ID]
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
}

// memCopy copies size bytes from src to dst using built-in copy for performance.
func memCopy(dst, src unsafe.Pointer, size uintptr) {
	if size == 0 {
		return
	}
	dstBytes := unsafe.Slice((*byte)(dst), size)
	srcBytes := unsafe.Slice((*byte)(src), size)
	copy(dstBytes, srcBytes)
}
