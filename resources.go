package kizami

import "reflect"

// Resources manages a collection of resources, ensuring no duplicate types
// are present at the same time. It uses a slice for storage, a map for quick
// type to ID mapping, and a free list for ID reuse. Every entry carries a
// change-cell pair so resources participate in change detection exactly like
// component slots: insertion stamps both cells, mutation through a Mut proxy
// stamps the changed tick.
type Resources struct {
	items   []any
	cells   []ComponentTicks
	types   map[reflect.Type]int
	freeIds []int
}

// add stores a resource stamped at tick and returns its ID. Panics if a
// resource of the same type already exists.
func (r *Resources) add(res any, tick Tick) int {
	if res == nil {
		panic("cannot add nil resource")
	}
	t := reflect.TypeOf(res)
	if r.types == nil {
		r.types = make(map[reflect.Type]int)
	}
	if _, ok := r.types[t]; ok {
		panic("resource of the same type already exists")
	}
	var id int
	if len(r.freeIds) > 0 {
		id = r.freeIds[len(r.freeIds)-1]
		r.freeIds = r.freeIds[:len(r.freeIds)-1]
		r.items[id] = res
		r.cells[id] = newComponentTicks(tick)
	} else {
		r.items = append(r.items, res)
		r.cells = append(r.cells, newComponentTicks(tick))
		id = len(r.items) - 1
	}
	r.types[t] = id
	return id
}

// Has checks if a resource with the given ID exists.
func (r *Resources) Has(id int) bool {
	return id >= 0 && id < len(r.items) && r.items[id] != nil
}

// Get retrieves the resource by ID, or nil if it doesn't exist.
func (r *Resources) Get(id int) any {
	if !r.Has(id) {
		return nil
	}
	return r.items[id]
}

// Remove removes the resource by ID if it exists, marking the ID as free for reuse.
func (r *Resources) Remove(id int) {
	if !r.Has(id) {
		return
	}
	res := r.items[id]
	t := reflect.TypeOf(res)
	delete(r.types, t)
	r.items[id] = nil
	r.freeIds = append(r.freeIds, id)
}

// Clear removes all resources, resetting the free list.
func (r *Resources) Clear() {
	for i := range r.items {
		r.items[i] = nil
	}
	r.items = r.items[:0]
	r.cells = r.cells[:0]
	clear(r.types)
	r.freeIds = r.freeIds[:0]
}

// checkTicks clamps every live entry's cell pair; the overflow scan calls
// this as part of its whole-world sweep.
func (r *Resources) checkTicks(thisRun Tick) {
	for i := range r.cells {
		if r.items[i] == nil {
			continue
		}
		r.cells[i].Added.CheckTick(thisRun)
		r.cells[i].Changed.CheckTick(thisRun)
	}
}

// HasResource checks if a resource of type T exists, returning true and its ID, or false and -1.
func HasResource[T any](r *Resources) (bool, int) {
	t := reflect.TypeOf((*T)(nil))
	if id, ok := r.types[t]; ok {
		return true, id
	}
	return false, -1
}

// GetResource retrieves the resource of type T if it exists, returning it as *T and its ID, or nil and -1.
func GetResource[T any](r *Resources) (*T, int) {
	t := reflect.TypeOf((*T)(nil))
	if id, ok := r.types[t]; ok {
		res := r.items[id].(*T)
		return res, id
	}
	return nil, -1
}

// InsertResource adds the resource to the world, stamping its change cells at
// the current change tick so insertion counts as a change. Panics if a
// resource of the same type already exists.
func InsertResource[T any](w *World, res *T) {
	w.resources.add(res, w.ChangeTick())
}

// RemoveResource deletes the world's resource of type T, if present.
func RemoveResource[T any](w *World) {
	if ok, id := HasResource[T](w.resources); ok {
		w.resources.Remove(id)
	}
}

// GetResourceRef returns a read-only access proxy over the world's resource
// of type T bound to the caller's reference ticks. ok is false if no such
// resource exists.
func GetResourceRef[T any](w *World, lastRun, thisRun Tick) (Ref[T], bool) {
	res, id := GetResource[T](w.resources)
	if res == nil {
		return Ref[T]{}, false
	}
	return NewRef(res, &w.resources.cells[id], lastRun, thisRun), true
}

// GetResourceMut returns a read-write access proxy over the world's resource
// of type T. Mutation through the proxy stamps the resource's changed tick.
// ok is false if no such resource exists.
func GetResourceMut[T any](w *World, lastRun, thisRun Tick) (Mut[T], bool) {
	res, id := GetResource[T](w.resources)
	if res == nil {
		return Mut[T]{}, false
	}
	return NewMut(res, &w.resources.cells[id], lastRun, thisRun), true
}
