package kizami

import (
	"fmt"
	"testing"
)

type benchPos struct {
	X, Y float64
}

type benchVel struct {
	X, Y float64
}

type benchTeam struct {
	ID int
}

func BenchmarkCreateEntities(b *testing.B) {
	sizes := []int{1000, 10000, 100000}
	for _, size := range sizes {
		b.Run(fmt.Sprintf("%dK", size/1000), func(b *testing.B) {
			for _i := 0; _i < b.N; _i++ {
				b.StopTimer()
				w := NewWorld(size)
				builder := NewBuilder2[benchPos, benchVel](w)
				b.StartTimer()
				builder.NewEntities(size)
			}
			b.ReportAllocs()
		})
	}
}

func BenchmarkFilterIterRaw(b *testing.B) {
	sizes := []int{1000, 10000, 100000}
	for _, size := range sizes {
		b.Run(fmt.Sprintf("%dK", size/1000), func(b *testing.B) {
			w := NewWorld(size)
			builder := NewBuilder2[benchPos, benchVel](w)
			builder.NewEntities(size)
			f := NewFilter2[benchPos, benchVel](w)
			b.ReportAllocs()
			b.ResetTimer()
			for _i := 0; _i < b.N; _i++ {
				f.Reset()
				for f.Next() {
					pos, vel := f.Get()
					pos.X += vel.X
					pos.Y += vel.Y
				}
			}
		})
	}
}

func BenchmarkFilterIterTracked(b *testing.B) {
	sizes := []int{1000, 10000, 100000}
	for _, size := range sizes {
		b.Run(fmt.Sprintf("%dK", size/1000), func(b *testing.B) {
			w := NewWorld(size)
			builder := NewBuilder2[benchPos, benchVel](w)
			builder.NewEntities(size)
			f := NewFilter2[benchPos, benchVel](w)
			var lastRun Tick
			b.ReportAllocs()
			b.ResetTimer()
			for _i := 0; _i < b.N; _i++ {
				thisRun := w.IncrementChangeTick()
				f.Reset()
				for f.Next() {
					mut := f.Mut1(lastRun, thisRun)
					_, vel := f.Get()
					pos := mut.Get()
					pos.X += vel.X
					pos.Y += vel.Y
				}
				lastRun = thisRun
			}
		})
	}
}

func BenchmarkFilterChangedCheck(b *testing.B) {
	size := 10000
	w := NewWorld(size)
	builder := NewBuilder[benchPos](w)
	builder.NewEntities(size)
	f := NewFilter[benchPos](w)
	lastRun := w.ChangeTick()
	thisRun := w.IncrementChangeTick()
	b.ReportAllocs()
	b.ResetTimer()
	for _i := 0; _i < b.N; _i++ {
		f.Reset()
		for f.Next() {
			_ = f.Changed(lastRun, thisRun)
		}
	}
}

func BenchmarkIndexRefresh(b *testing.B) {
	sizes := []int{1000, 10000}
	for _, size := range sizes {
		b.Run(fmt.Sprintf("%dK", size/1000), func(b *testing.B) {
			w := NewWorld(size)
			idx := AddIndex[benchTeam](w)
			builder := NewBuilder[benchTeam](w)
			builder.NewEntities(size)
			f := NewFilter[benchTeam](w)
			i := 0
			for f.Next() {
				f.Get().ID = i % 16
				i++
			}
			b.ReportAllocs()
			b.ResetTimer()
			for _i := 0; _i < b.N; _i++ {
				thisRun := w.IncrementChangeTick()
				// Restamp a slice of entities so each refresh has work.
				f.Reset()
				j := 0
				for f.Next() {
					if j%64 == 0 {
						mut := NewMut(f.Get(), f.Cells(), Tick{}, thisRun)
						mut.Get().ID = (mut.Bypass().ID + 1) % 16
					}
					j++
				}
				idx.Refresh()
			}
		})
	}
}

func BenchmarkQueryByIndexAt(b *testing.B) {
	size := 10000
	w := NewWorld(size)
	AddIndex[benchTeam](w)
	builder := NewBuilder[benchTeam](w)
	builder.NewEntities(size)
	f := NewFilter[benchTeam](w)
	i := 0
	for f.Next() {
		f.Get().ID = i % 16
		i++
	}
	w.IncrementChangeTick()
	q := NewQueryByIndex[benchTeam](w)
	b.ReportAllocs()
	b.ResetTimer()
	for _i := 0; _i < b.N; _i++ {
		view := q.At(benchTeam{ID: 3})
		for view.Next() {
			_ = view.Entity()
		}
	}
}

func BenchmarkCheckChangeTicks(b *testing.B) {
	sizes := []int{1000, 10000, 100000}
	for _, size := range sizes {
		b.Run(fmt.Sprintf("%dK", size/1000), func(b *testing.B) {
			w := NewWorld(size)
			builder := NewBuilder2[benchPos, benchVel](w)
			builder.NewEntities(size)
			b.ReportAllocs()
			b.ResetTimer()
			for _i := 0; _i < b.N; _i++ {
				w.CheckChangeTicks()
			}
		})
	}
}
