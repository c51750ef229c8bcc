package world

import (
	"fmt"

	"geocoin-carrier/server/internal/grid"
	"geocoin-carrier/server/internal/save"
	"geocoin-carrier/server/internal/state"
)

// ExportSave captures the full session as a durable document: seed,
// player record, the materialized neighborhood, and the snapshot table.
// A snapshot may be stale for a cell whose cache is currently live; on
// import the materialized-cache entries win over snapshots for the same
// cell.
func (w *World) ExportSave() save.Document {
	if w == nil {
		return save.Document{}
	}

	player := w.player.Snapshot()
	doc := save.Document{
		Seed: w.config.Seed,
		Player: save.Player{
			Lat:   player.Position.Lat,
			Lng:   player.Position.Lng,
			Coins: coinsToSave(player.Holdings),
			Trail: pointsToSave(player.Trail),
		},
	}

	for _, cache := range w.MaterializedCaches() {
		doc.Caches = append(doc.Caches, save.Cache{
			ID:    cache.ID,
			I:     cache.I,
			J:     cache.J,
			Coins: coinsToSave(cache.Coins),
		})
	}

	for key, payload := range w.snapshots.Export() {
		doc.Snapshots = append(doc.Snapshots, save.Snapshot{
			I:       key.I,
			J:       key.J,
			Payload: append([]byte(nil), payload...),
		})
	}

	return doc
}

// ImportSave restores a session from a durable document. The document's
// seed must match the world's: cache generation for unvisited cells
// depends on it, so loading a save under a different seed would splice
// two incompatible worlds together.
func (w *World) ImportSave(doc save.Document) error {
	if w == nil {
		return fmt.Errorf("import save: world not initialized")
	}
	if doc.Seed != w.config.Seed {
		return fmt.Errorf("import save: seed mismatch: save %q, world %q", doc.Seed, w.config.Seed)
	}

	entries := make(map[grid.CellKey][]byte, len(doc.Snapshots)+len(doc.Caches))
	for _, snap := range doc.Snapshots {
		entries[grid.CellKey{I: snap.I, J: snap.J}] = append([]byte(nil), snap.Payload...)
	}
	w.snapshots.Import(entries)

	// Saved live caches re-enter through the snapshot path so a
	// position change between save and load evicts or restores them
	// consistently.
	for _, cache := range doc.Caches {
		key := grid.CellKey{I: cache.I, J: cache.J}
		if err := w.snapshots.Save(key, cache.ID, coinsFromSave(cache.Coins)); err != nil {
			return fmt.Errorf("import save: %w", err)
		}
	}

	w.live = make(map[grid.CellKey]*Geocache)
	w.byID = make(map[string]*Geocache)

	w.player.Reset(grid.LatLng{Lat: doc.Player.Lat, Lng: doc.Player.Lng})
	w.player.Holdings = coinsFromSave(doc.Player.Coins)
	if trail := pointsFromSave(doc.Player.Trail); len(trail) > 0 {
		w.player.Trail = trail
	}

	w.refreshNeighborhood()
	return nil
}

func coinsToSave(coins []state.Coin) []save.Coin {
	out := make([]save.Coin, 0, len(coins))
	for _, coin := range coins {
		out = append(out, save.Coin{ID: coin.ID, Origin: coin.OriginCacheID})
	}
	return out
}

func coinsFromSave(coins []save.Coin) []state.Coin {
	out := make([]state.Coin, 0, len(coins))
	for _, coin := range coins {
		out = append(out, state.Coin{ID: coin.ID, OriginCacheID: coin.Origin})
	}
	return out
}

func pointsToSave(points []grid.LatLng) []save.Point {
	out := make([]save.Point, 0, len(points))
	for _, p := range points {
		out = append(out, save.Point{Lat: p.Lat, Lng: p.Lng})
	}
	return out
}

func pointsFromSave(points []save.Point) []grid.LatLng {
	out := make([]grid.LatLng, 0, len(points))
	for _, p := range points {
		out = append(out, grid.LatLng{Lat: p.Lat, Lng: p.Lng})
	}
	return out
}
