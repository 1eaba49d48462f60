// Profiling:
// go build ./profile/index
// go tool pprof -http=":8000" -nodefraction=0.001 ./index cpu.pprof

package main

import (
	"github.com/hiromell/kizami"
	"github.com/pkg/profile"
)

type team struct {
	ID int
}

type health struct {
	HP int
}

func main() {
	count := 50
	iters := 10000
	entities := 10000
	teams := 16
	p := profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook)
	run(count, iters, entities, teams)
	p.Stop()
}

func run(rounds, iters, numEntities, numTeams int) {
	for _i := 0; _i < rounds; _i++ {
		w := kizami.NewWorld(numEntities)
		kizami.AddIndex[team](w)
		batch := kizami.NewBuilder2[team, health](w)
		batch.NewEntities(numEntities)

		assign := kizami.NewFilter[team](w)
		i := 0
		for assign.Next() {
			assign.Get().ID = i % numTeams
			i++
		}

		lookup := kizami.NewQueryByIndex[team](w)
		for _i := 0; _i < iters; _i++ {
			w.IncrementChangeTick()
			total := 0
			for t := 0; t < numTeams; t++ {
				view := lookup.At(team{ID: t})
				for view.Next() {
					total += kizami.GetComponent[health](w, view.Entity()).HP
				}
			}
			_ = total
		}
	}
}
