package world

import (
	"context"

	"geocoin-carrier/server/internal/grid"
	logginglifecycle "geocoin-carrier/server/logging/lifecycle"
)

// refreshNeighborhood reconciles the live cache set against the square
// visibility window around the player. Caches that fell out of view are
// snapshotted and destroyed; cells that entered view are materialized,
// preferring a stored snapshot over fresh generation. The window is the
// only admission policy: a cache exists as an object exactly while its
// cell is inside it.
func (w *World) refreshNeighborhood() {
	cells := w.grid.Neighborhood(w.player.Position, w.config.VisibilityRadius)

	visible := make(map[grid.CellKey]struct{}, len(cells))
	for _, cell := range cells {
		visible[cell.Key()] = struct{}{}
	}

	for key, cache := range w.live {
		if _, ok := visible[key]; ok {
			continue
		}
		w.evictCache(key, cache)
	}

	for _, cell := range cells {
		if _, ok := w.live[cell.Key()]; ok {
			continue
		}
		w.materializeCell(cell)
	}
}

// evictCache snapshots a cache and removes it from the live set.
// Snapshot write happens before removal so an encode failure never
// loses coin state.
func (w *World) evictCache(key grid.CellKey, cache *Geocache) {
	if err := w.snapshots.Save(key, cache.ID, cache.Coins); err != nil {
		logginglifecycle.SnapshotRejected(context.Background(), w.publisher, w.eventSeq,
			w.cacheRef(cache.ID), logginglifecycle.SnapshotRejectedPayload{
				I:      key.I,
				J:      key.J,
				Reason: err.Error(),
			})
		return
	}
	delete(w.live, key)
	delete(w.byID, cache.ID)
	logginglifecycle.CacheEvicted(context.Background(), w.publisher, w.eventSeq,
		w.cacheRef(cache.ID), logginglifecycle.CachePayload{
			I:     key.I,
			J:     key.J,
			Coins: len(cache.Coins),
		})
}

// materializeCell brings one visible cell into the live set. A stored
// snapshot wins over generation; a malformed snapshot is dropped, logged,
// and the cell falls through to the deterministic generation path, so
// one corrupt entry degrades a single cell rather than the session.
// A valid snapshot stays in the store after restore; it goes stale until
// the next eviction overwrites it, so the store records every cell that
// was ever evicted.
func (w *World) materializeCell(cell *grid.Cell) {
	key := cell.Key()

	cacheID, coins, ok, err := w.snapshots.TryRestore(key)
	if err != nil {
		logginglifecycle.SnapshotRejected(context.Background(), w.publisher, w.eventSeq,
			w.cacheRef(CacheIDFor(cell)), logginglifecycle.SnapshotRejectedPayload{
				I:      key.I,
				J:      key.J,
				Reason: err.Error(),
			})
		w.snapshots.Delete(key)
	} else if ok {
		cache := &Geocache{ID: cacheID, Cell: cell, Coins: coins}
		w.admitCache(key, cache)
		logginglifecycle.CacheRestored(context.Background(), w.publisher, w.eventSeq,
			w.cacheRef(cache.ID), logginglifecycle.CachePayload{
				I:     key.I,
				J:     key.J,
				Coins: len(cache.Coins),
			})
		return
	}

	if !w.hostsCache(cell) {
		return
	}
	cache := w.newGeocache(cell)
	w.admitCache(key, cache)
	logginglifecycle.CacheGenerated(context.Background(), w.publisher, w.eventSeq,
		w.cacheRef(cache.ID), logginglifecycle.CachePayload{
			I:     key.I,
			J:     key.J,
			Coins: len(cache.Coins),
		})
}

func (w *World) admitCache(key grid.CellKey, cache *Geocache) {
	w.live[key] = cache
	w.byID[cache.ID] = cache
}
