// Profiling:
// go build ./profile/changedetect
// go tool pprof -http=":8000" -nodefraction=0.001 ./changedetect mem.pprof

package main

import (
	"github.com/hiromell/kizami"
	"github.com/pkg/profile"
)

type position struct {
	X float64
	Y float64
}

type velocity struct {
	X float64
	Y float64
}

func main() {
	count := 50
	iters := 10000
	entities := 1000
	p := profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook)
	run(count, iters, entities)
	p.Stop()
}

func run(rounds, iters, numEntities int) {
	for _i := 0; _i < rounds; _i++ {
		w := kizami.NewWorld(numEntities)
		batch := kizami.NewBuilder2[position, velocity](w)
		batch.NewEntities(numEntities)
		query := kizami.NewFilter2[position, velocity](w)

		var lastRun kizami.Tick
		for _i := 0; _i < iters; _i++ {
			thisRun := w.IncrementChangeTick()
			query.Reset()
			for query.Next() {
				mp := query.Mut1(lastRun, thisRun)
				_, vel := query.Get()
				p := mp.Get()
				p.X += vel.X
				p.Y += vel.Y
			}
			moved := kizami.NewFilter[position](w)
			for moved.Next() {
				if !moved.Changed(lastRun, thisRun) {
					panic("profile: expected every position to be stamped")
				}
			}
			lastRun = thisRun
		}
	}
}
