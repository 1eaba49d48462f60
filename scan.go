package kizami

// CheckChangeTicks scans every tick stored in the world and clamps it so its
// age relative to the current change tick is at most MaxChangeAge. Additions
// and changes older than that permanently stop being reported; that precision
// loss is the documented price for guaranteeing the wrapping counter can
// never produce a false positive.
//
// The scan must visit every reachable tick: all component change cells,
// resource cells, registered system last-run markers and the world's own
// reference ticks. It mutates ticks in place across the whole world and thus
// requires exclusive, world-stopped access; it is a hard synchronization
// point, never a background task.
//
// Running the scan twice without intervening mutation leaves all ticks
// unchanged. IncrementChangeTick triggers it automatically every
// CheckTickThreshold increments.
func (w *World) CheckChangeTicks() {
	t := w.ChangeTick()
	for _, a := range w.archetypes.archetypes {
		for _, c := range a.chunks {
			for _, cid := range a.compOrder {
				cells := c.cells[cid]
				for i := 0; i < c.size; i++ {
					cells[i].Added.CheckTick(t)
					cells[i].Changed.CheckTick(t)
				}
			}
		}
	}
	w.resources.checkTicks(t)
	for _, st := range w.checkTicks {
		st.CheckTick(t)
	}
	w.lastChangeTick.CheckTick(t)
	w.lastCheckTick = t
	w.ticksSinceCheck = 0
}

// LastCheckTick returns the tick at which the overflow scan last ran.
func (w *World) LastCheckTick() Tick {
	return w.lastCheckTick
}
