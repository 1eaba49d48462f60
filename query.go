package kizami

// queryCache caches the set of archetypes matching an include/exclude mask
// pair. Filters embed it; the index-backed query keeps one per routing
// pattern. Staleness is detected through the world's archetypeVersion
// counter, so archetypes created after the cache was built are discovered on
// the next Reset/IsStale check and coverage never silently lags.
type queryCache struct {
	world            *World
	matchingArches   []*archetype
	cachedEntities   []Entity
	include          bitmask256
	exclude          bitmask256
	archetypeVersion uint32
	entitiesVersion  uint32
}

func newQueryCache(w *World, include, exclude bitmask256) queryCache {
	return queryCache{
		world:   w,
		include: include,
		exclude: exclude,
	}
}

// IsStale reports whether archetypes were created since the last
// updateMatching.
func (q *queryCache) IsStale() bool {
	return q.archetypeVersion != q.world.archetypes.archetypeVersion
}

// updateMatching rebuilds the matching-archetype list from the world's
// archetype registry.
func (q *queryCache) updateMatching() {
	q.matchingArches = q.matchingArches[:0]
	for _, a := range q.world.archetypes.archetypes {
		if a.mask.contains(q.include) && !a.mask.intersects(q.exclude) {
			q.matchingArches = append(q.matchingArches, a)
		}
	}
	q.archetypeVersion = q.world.archetypes.archetypeVersion
}

// updateCachedEntities regenerates the flat entity list for Entities.
func (q *queryCache) updateCachedEntities() {
	q.cachedEntities = q.cachedEntities[:0]
	for _, a := range q.matchingArches {
		for _, c := range a.chunks {
			q.cachedEntities = append(q.cachedEntities, c.entityIDs[:c.size]...)
		}
	}
	q.entitiesVersion = q.world.mutationVersion
}

// Entities returns all entities currently matching the cache's masks.
// Note: The returned slice is owned by the cache and may be invalidated on
// the next Entities call or world mutation. Copy if needed for long-term use.
func (q *queryCache) Entities() []Entity {
	if q.IsStale() {
		q.updateMatching()
		q.updateCachedEntities()
	} else if q.entitiesVersion != q.world.mutationVersion {
		q.updateCachedEntities()
	}
	return q.cachedEntities
}

// Count returns the number of matching entities without materializing them.
func (q *queryCache) Count() int {
	if q.IsStale() {
		q.updateMatching()
	}
	n := 0
	for _, a := range q.matchingArches {
		n += a.size
	}
	return n
}
