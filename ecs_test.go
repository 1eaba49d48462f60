package kizami_test

import (
	"testing"

	"github.com/hiromell/kizami"
)

// --- Test Components ---
type Position struct{ X, Y float32 }
type Velocity struct{ VX, VY float32 }
type Health struct{ Current, Max int }

// go test -run ^TestCreateEntity$ . -count 1
func TestCreateEntity(t *testing.T) {
	world := kizami.NewWorld(16)
	e1 := world.CreateEntity()
	e2 := world.CreateEntity()

	if !world.IsValid(e1) || !world.IsValid(e2) {
		t.Fatal("freshly created entities should be valid")
	}
	if e1 == e2 {
		t.Error("entities should be distinct")
	}
}

// go test -run ^TestEntityRecycling$ . -count 1
func TestEntityRecycling(t *testing.T) {
	world := kizami.NewWorld(4)
	e1 := world.CreateEntity()
	world.RemoveEntity(e1)

	if world.IsValid(e1) {
		t.Error("removed entity should be invalid")
	}

	e2 := world.CreateEntity()
	if e2.ID == e1.ID && e2.Version == e1.Version {
		t.Error("recycled ID must carry a new version")
	}
	if world.IsValid(e1) {
		t.Error("stale reference must stay invalid after ID reuse")
	}
}

// go test -run ^TestSetAndGetComponent$ . -count 1
func TestSetAndGetComponent(t *testing.T) {
	world := kizami.NewWorld(16)
	e := world.CreateEntity()

	kizami.SetComponent(world, e, Position{X: 10, Y: 20})

	p := kizami.GetComponent[Position](world, e)
	if p == nil {
		t.Fatal("GetComponent failed to find the component")
	}
	if p.X != 10 || p.Y != 20 {
		t.Errorf("component data is incorrect, got %+v", p)
	}
	if !kizami.HasComponent[Position](world, e) {
		t.Error("HasComponent should report the component")
	}
	if kizami.HasComponent[Velocity](world, e) {
		t.Error("HasComponent should not report an absent component")
	}
}

// go test -run ^TestRemoveComponent$ . -count 1
func TestRemoveComponent(t *testing.T) {
	world := kizami.NewWorld(16)
	e := world.CreateEntity()
	kizami.SetComponent(world, e, Position{X: 1})
	kizami.SetComponent(world, e, Velocity{VX: 2})

	kizami.RemoveComponent[Position](world, e)

	if kizami.HasComponent[Position](world, e) {
		t.Error("removed component still reported")
	}
	v := kizami.GetComponent[Velocity](world, e)
	if v == nil || v.VX != 2 {
		t.Error("unrelated component lost during archetype move")
	}
}

// go test -run ^TestChangeStampLifecycle$ . -count 1
func TestChangeStampLifecycle(t *testing.T) {
	world := kizami.NewWorld(16)
	e := world.CreateEntity()

	lastRun := world.ChangeTick()
	world.IncrementChangeTick()
	kizami.SetComponent(world, e, Health{Current: 10, Max: 10})
	thisRun := world.ChangeTick()

	// Run immediately following the insertion sees both flags.
	ref, ok := kizami.GetComponentRef[Health](world, e, lastRun, thisRun)
	if !ok {
		t.Fatal("component missing")
	}
	if !ref.IsAdded() {
		t.Error("insert should read as added in the following run")
	}
	if !ref.IsChanged() {
		t.Error("insert should read as changed in the following run")
	}

	// The next run has seen the insert already.
	lastRun = thisRun
	thisRun = world.IncrementChangeTick()
	ref, _ = kizami.GetComponentRef[Health](world, e, lastRun, thisRun)
	if ref.IsAdded() {
		t.Error("added must go false once the insert has been observed")
	}
	if ref.IsChanged() {
		t.Error("changed must go false without further mutation")
	}

	// Mutation through a proxy stamps changed but not added. The observer
	// keeps its lastRun from before the mutating run, as a second system
	// watching the first would.
	mut, _ := kizami.GetComponentMut[Health](world, e, lastRun, thisRun)
	mut.Get().Current = 5

	thisRun = world.IncrementChangeTick()
	ref, _ = kizami.GetComponentRef[Health](world, e, lastRun, thisRun)
	if ref.IsAdded() {
		t.Error("mutation must not resurrect added")
	}
	if !ref.IsChanged() {
		t.Error("mutation should read as changed in the following run")
	}
}

// go test -run ^TestSetComponentStampsExisting$ . -count 1
func TestSetComponentStampsExisting(t *testing.T) {
	world := kizami.NewWorld(16)
	e := world.CreateEntity()
	kizami.SetComponent(world, e, Position{X: 1})

	lastRun := world.ChangeTick()
	thisRun := world.IncrementChangeTick()
	kizami.SetComponent(world, e, Position{X: 2})

	ref, _ := kizami.GetComponentRef[Position](world, e, lastRun, thisRun)
	if ref.IsAdded() {
		t.Error("overwriting must not read as a fresh insert")
	}
	if !ref.IsChanged() {
		t.Error("overwriting should stamp changed")
	}
}

// go test -run ^TestFilterIteration$ . -count 1
func TestFilterIteration(t *testing.T) {
	world := kizami.NewWorld(64)
	builder := kizami.NewBuilder2[Position, Velocity](world)
	builder.NewEntities(10)
	solo := kizami.NewBuilder[Position](world)
	solo.NewEntities(5)

	both := kizami.NewFilter2[Position, Velocity](world)
	count := 0
	for both.Next() {
		p, v := both.Get()
		p.X += v.VX
		count++
	}
	if count != 10 {
		t.Errorf("expected 10 entities with both components, got %d", count)
	}

	all := kizami.NewFilter[Position](world)
	count = 0
	for all.Next() {
		count++
	}
	if count != 15 {
		t.Errorf("expected 15 entities with Position, got %d", count)
	}

	velID := kizami.ComponentIDFor[Velocity](world)
	only := kizami.NewFilter[Position](world, velID)
	count = 0
	for only.Next() {
		count++
	}
	if count != 5 {
		t.Errorf("expected 5 entities excluded by Velocity, got %d", count)
	}
}

// go test -run ^TestFilterChanged$ . -count 1
func TestFilterChanged(t *testing.T) {
	world := kizami.NewWorld(64)
	builder := kizami.NewBuilder[Position](world)
	builder.NewEntities(4)

	lastRun := world.ChangeTick()
	thisRun := world.IncrementChangeTick()

	// Mutate half of them through the tracked path.
	f := kizami.NewFilter[Position](world)
	i := 0
	for f.Next() {
		if i%2 == 0 {
			mut := f.Mut(lastRun, thisRun)
			mut.Get().X = 99
		}
		i++
	}

	// Observe from before the mutating run so the stamps read as foreign.
	thisRun = world.IncrementChangeTick()
	changed := 0
	f.Reset()
	for f.Next() {
		if f.Changed(lastRun, thisRun) {
			changed++
		}
	}
	if changed != 2 {
		t.Errorf("expected 2 changed entities, got %d", changed)
	}
}

// go test -run ^TestFilterDiscoversNewArchetypes$ . -count 1
func TestFilterDiscoversNewArchetypes(t *testing.T) {
	world := kizami.NewWorld(16)
	f := kizami.NewFilter[Position](world)

	e := world.CreateEntity()
	kizami.SetComponent(world, e, Position{X: 1})
	kizami.SetComponent(world, e, Velocity{VX: 1})

	f.Reset()
	count := 0
	for f.Next() {
		count++
	}
	if count != 1 {
		t.Errorf("filter should discover archetypes created after it, got %d", count)
	}
}

// go test -run ^TestClearEntities$ . -count 1
func TestClearEntities(t *testing.T) {
	world := kizami.NewWorld(16)
	builder := kizami.NewBuilder[Position](world)
	builder.NewEntities(8)
	e := world.CreateEntity()

	world.ClearEntities()

	if world.IsValid(e) {
		t.Error("cleared entity should be invalid")
	}
	f := kizami.NewFilter[Position](world)
	if f.Next() {
		t.Error("no entity should survive ClearEntities")
	}
}

// go test -run ^TestBuilderValues$ . -count 1
func TestBuilderValues(t *testing.T) {
	world := kizami.NewWorld(32)
	builder := kizami.NewBuilder[Health](world)
	builder.NewEntitiesWithValueSet(6, Health{Current: 3, Max: 9})

	f := kizami.NewFilter[Health](world)
	for f.Next() {
		h := f.Get()
		if h.Current != 3 || h.Max != 9 {
			t.Fatalf("builder value not applied, got %+v", h)
		}
	}
}
