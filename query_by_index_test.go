package kizami_test

import (
	"testing"

	"github.com/hiromell/kizami"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Player struct {
	Number int
}

// TestQueryByIndexAt spawns i+1 entities for each player number i and checks
// every lookup routes to exactly its own group, across enough distinct values
// to need several routing markers.
func TestQueryByIndexAt(t *testing.T) {
	w := kizami.NewWorld(64)
	kizami.AddIndex[Player](w)

	want := map[int][]kizami.Entity{}
	for i := 0; i < 6; i++ {
		for _j := 0; _j < i+1; _j++ {
			e := w.CreateEntity()
			kizami.SetComponent(w, e, Player{Number: i})
			want[i] = append(want[i], e)
		}
	}
	w.IncrementChangeTick()

	q := kizami.NewQueryByIndex[Player](w)
	for i := 0; i < 6; i++ {
		view := q.At(Player{Number: i})
		assert.Equal(t, i+1, view.Count(), "player %d group size", i)
		assert.ElementsMatch(t, want[i], view.Entities())
	}
}

// TestQueryByIndexUnknownValue verifies a value the index never saw yields an
// empty view, not a panic and not a match-everything.
func TestQueryByIndexUnknownValue(t *testing.T) {
	w := kizami.NewWorld(16)
	kizami.AddIndex[Player](w)

	e := w.CreateEntity()
	kizami.SetComponent(w, e, Player{Number: 1})
	w.IncrementChangeTick()

	q := kizami.NewQueryByIndex[Player](w)
	view := q.At(Player{Number: 42})
	assert.Zero(t, view.Count())
	assert.False(t, view.Next())
}

// TestQueryByIndexUnregistered verifies constructing the query for a type
// without an index panics.
func TestQueryByIndexUnregistered(t *testing.T) {
	w := kizami.NewWorld(16)
	assert.Panics(t, func() {
		kizami.NewQueryByIndex[Player](w)
	})
}

// TestQueryByIndexFollowsValueChanges verifies lookups track an entity that
// changes its value between runs.
func TestQueryByIndexFollowsValueChanges(t *testing.T) {
	w := kizami.NewWorld(16)
	kizami.AddIndex[Player](w)

	e := w.CreateEntity()
	kizami.SetComponent(w, e, Player{Number: 1})
	w.IncrementChangeTick()

	q := kizami.NewQueryByIndex[Player](w)
	require.Equal(t, 1, q.At(Player{Number: 1}).Count())

	kizami.SetComponent(w, e, Player{Number: 2})
	w.IncrementChangeTick()

	assert.Zero(t, q.At(Player{Number: 1}).Count())
	view := q.At(Player{Number: 2})
	require.True(t, view.Next())
	assert.Equal(t, e, view.Entity())
}

// TestQueryByIndexNewValuesAfterBuild verifies values and markers that appear
// only after the query was constructed are still routed correctly, including
// the widening of already-cached patterns.
func TestQueryByIndexNewValuesAfterBuild(t *testing.T) {
	w := kizami.NewWorld(64)
	kizami.AddIndex[Player](w)

	e1 := w.CreateEntity()
	kizami.SetComponent(w, e1, Player{Number: 1})
	w.IncrementChangeTick()

	q := kizami.NewQueryByIndex[Player](w)
	require.Equal(t, 1, q.At(Player{Number: 1}).Count())

	// Enough new values to grow the marker set past what the cached pattern
	// for value 1 was built against.
	for i := 2; i <= 9; i++ {
		e := w.CreateEntity()
		kizami.SetComponent(w, e, Player{Number: i})
	}
	w.IncrementChangeTick()

	assert.Equal(t, 1, q.At(Player{Number: 1}).Count(),
		"old pattern must not leak entities carrying newer markers")
	for i := 2; i <= 9; i++ {
		assert.Equal(t, 1, q.At(Player{Number: i}).Count(), "value %d", i)
	}
}

// TestQueryByIndexExtraComponents verifies routing is independent of the rest
// of the entity's archetype.
func TestQueryByIndexExtraComponents(t *testing.T) {
	w := kizami.NewWorld(16)
	kizami.AddIndex[Player](w)

	plain := w.CreateEntity()
	kizami.SetComponent(w, plain, Player{Number: 1})

	loaded := w.CreateEntity()
	kizami.SetComponent(w, loaded, Player{Number: 1})
	kizami.SetComponent(w, loaded, Position{X: 5})
	w.IncrementChangeTick()

	q := kizami.NewQueryByIndex[Player](w)
	assert.ElementsMatch(t, []kizami.Entity{plain, loaded}, q.At(Player{Number: 1}).Entities())
}
