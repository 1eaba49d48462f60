package kizami

import "testing"

type scanPos struct{ X int }
type scanCfg struct{ Level int }

// collectTicks snapshots every tick the scan is responsible for.
func collectTicks(w *World) []Tick {
	var out []Tick
	for _, a := range w.archetypes.archetypes {
		for _, c := range a.chunks {
			for _, cid := range a.compOrder {
				for i := 0; i < c.size; i++ {
					out = append(out, c.cells[cid][i].Added, c.cells[cid][i].Changed)
				}
			}
		}
	}
	for i := range w.resources.cells {
		if w.resources.items[i] == nil {
			continue
		}
		out = append(out, w.resources.cells[i].Added, w.resources.cells[i].Changed)
	}
	for _, st := range w.checkTicks {
		out = append(out, *st)
	}
	out = append(out, w.lastChangeTick)
	return out
}

// go test -run ^TestCheckChangeTicks$ . -count 1
func TestCheckChangeTicks(t *testing.T) {
	w := NewWorld(8)
	e := w.CreateEntity()
	SetComponent(w, e, scanPos{X: 1})
	InsertResource(w, &scanCfg{Level: 3})
	var sysLastRun Tick
	w.registerCheckTick(&sysLastRun)

	// Age everything past the clamp boundary.
	w.changeTick += MaxChangeAge + CheckTickThreshold

	w.CheckChangeTicks()

	now := w.ChangeTick()
	for _, tick := range collectTicks(w) {
		if age := now.RelativeTo(tick); age > MaxChangeAge {
			t.Fatalf("tick age %d exceeds MaxChangeAge after scan", age)
		}
	}
	if age := now.RelativeTo(sysLastRun); age != MaxChangeAge {
		t.Errorf("over-age registered tick should clamp to exactly MaxChangeAge, got %d", age)
	}
	if w.LastCheckTick() != now {
		t.Error("scan should record the tick it ran at")
	}

	// Convergence: a second scan without intervening mutation is a no-op.
	before := collectTicks(w)
	w.CheckChangeTicks()
	after := collectTicks(w)
	if len(before) != len(after) {
		t.Fatal("scan changed the set of reachable ticks")
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("second scan modified tick %d: %d -> %d", i, before[i].Get(), after[i].Get())
		}
	}
}

// go test -run ^TestIncrementChangeTickAutoScan$ . -count 1
func TestIncrementChangeTickAutoScan(t *testing.T) {
	w := NewWorld(8)
	w.CreateEntity()

	w.ticksSinceCheck = CheckTickThreshold - 1
	thisRun := w.IncrementChangeTick()

	if w.LastCheckTick() != thisRun {
		t.Error("increment at the threshold should trigger the scan")
	}
	if w.ticksSinceCheck != 0 {
		t.Error("scan should reset the increment counter")
	}
}

// go test -run ^TestScanPreservesDetection$ . -count 1
func TestScanPreservesDetection(t *testing.T) {
	w := NewWorld(8)
	e := w.CreateEntity()

	lastRun := w.ChangeTick()
	w.IncrementChangeTick()
	SetComponent(w, e, scanPos{X: 1})

	// A scan between the mutation and the observation must not eat a young
	// change.
	w.CheckChangeTicks()
	thisRun := w.ChangeTick()
	ref, _ := GetComponentRef[scanPos](w, e, lastRun, thisRun)
	if !ref.IsChanged() {
		t.Error("scan must not clear detection of a young change")
	}
}
