// Package world implements the game core: the spatial grid, the
// deterministic cache generator, the lifecycle manager that shuttles
// caches between live objects and snapshots, and the player's purse.
//
// The world is event-driven and single-threaded: it mutates only in
// response to discrete triggers (player move, collect, deposit, reset)
// and every operation runs to completion before the next. Callers that
// introduce concurrency must serialize access.
package world

import (
	"context"
	"errors"
	"sort"

	"geocoin-carrier/server/internal/grid"
	"geocoin-carrier/server/internal/snapshot"
	"geocoin-carrier/server/internal/state"
	"geocoin-carrier/server/logging"
	loggingeconomy "geocoin-carrier/server/logging/economy"
)

var (
	// ErrEmptyCache reports a collect attempt on a cache with no coins.
	ErrEmptyCache = errors.New("empty_cache")
	// ErrNoCoinsHeld reports a deposit attempt while the player holds no coins.
	ErrNoCoinsHeld = errors.New("no_coins_held")
	// ErrUnknownCache reports an operation against a cache that is not
	// currently materialized.
	ErrUnknownCache = errors.New("unknown_cache")
)

// Deps bundles runtime dependencies required to construct a World.
type Deps struct {
	Publisher logging.Publisher
	Luck      *Luck
}

// World owns the grid registry, the snapshot store, the live cache set,
// and the player state for one game session.
type World struct {
	config    Config
	publisher logging.Publisher
	gen       *Luck
	grid      *grid.Grid
	snapshots *snapshot.Store
	player    *state.PlayerState

	live map[grid.CellKey]*Geocache
	byID map[string]*Geocache

	// eventSeq advances once per processed trigger; it stamps log events.
	eventSeq uint64
}

// New constructs a world with normalized configuration and runs the
// initial lifecycle pass around the origin.
func New(cfg Config, deps Deps) *World {
	normalized := cfg.normalized()

	publisher := deps.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}

	gen := deps.Luck
	if gen == nil {
		gen = NewLuck(normalized.Seed)
	}

	w := &World{
		config:    normalized,
		publisher: publisher,
		gen:       gen,
		grid:      grid.New(normalized.CellWidth),
		snapshots: snapshot.NewStore(),
		player:    state.NewPlayerState(normalized.Origin),
		live:      make(map[grid.CellKey]*Geocache),
		byID:      make(map[string]*Geocache),
	}
	w.refreshNeighborhood()
	return w
}

// Config returns the normalized configuration captured at construction.
func (w *World) Config() Config {
	if w == nil {
		return Config{}
	}
	return w.config
}

// Seed reports the deterministic generation seed.
func (w *World) Seed() string {
	if w == nil {
		return ""
	}
	return w.config.Seed
}

func (w *World) luck() *Luck {
	if w == nil {
		return nil
	}
	return w.gen
}

// CellAt resolves the flyweight cell record containing p.
func (w *World) CellAt(p grid.LatLng) *grid.Cell {
	if w == nil {
		return nil
	}
	return w.grid.CellAt(p)
}

// BoundsOf returns the bounding rectangle of a cell.
func (w *World) BoundsOf(c *grid.Cell) grid.Rect {
	if w == nil {
		return grid.Rect{}
	}
	return w.grid.BoundsOf(c)
}

// Neighborhood enumerates the square window of cells around p.
func (w *World) Neighborhood(p grid.LatLng, radius int) []*grid.Cell {
	if w == nil {
		return nil
	}
	return w.grid.Neighborhood(p, radius)
}

// Player returns the broadcast view of the player state.
func (w *World) Player() state.Player {
	if w == nil {
		return state.Player{}
	}
	return w.player.Snapshot()
}

// MaterializedCaches returns the live caches in row-major cell order.
func (w *World) MaterializedCaches() []CacheSnapshot {
	if w == nil || len(w.live) == 0 {
		return nil
	}
	snapshots := make([]CacheSnapshot, 0, len(w.live))
	for _, cache := range w.live {
		snapshots = append(snapshots, cache.snapshotView(w.grid.BoundsOf(cache.Cell)))
	}
	sort.Slice(snapshots, func(a, b int) bool {
		if snapshots[a].I != snapshots[b].I {
			return snapshots[a].I < snapshots[b].I
		}
		return snapshots[a].J < snapshots[b].J
	})
	return snapshots
}

// CachesWithin filters the materialized caches by equirectangular
// distance from p. This is a presentation query only; lifecycle
// admission always uses the grid neighborhood.
func (w *World) CachesWithin(p grid.LatLng, meters float64) []CacheSnapshot {
	if w == nil || meters < 0 {
		return nil
	}
	all := w.MaterializedCaches()
	filtered := all[:0]
	for _, cache := range all {
		if grid.DistanceMeters(p, cache.Bounds.Center()) <= meters {
			filtered = append(filtered, cache)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	return filtered
}

// Collect moves one coin from the cache to the player's purse. The
// most recently added coin moves first. Returns ErrUnknownCache when
// the cache is not materialized and ErrEmptyCache when it has no
// coins; in both cases no state changes.
func (w *World) Collect(cacheID string) (Coin, error) {
	if w == nil {
		return Coin{}, ErrUnknownCache
	}
	w.eventSeq++
	cache, ok := w.byID[cacheID]
	if !ok {
		loggingeconomy.CollectFailed(context.Background(), w.publisher, w.eventSeq,
			w.cacheRef(cacheID), loggingeconomy.TransferFailedPayload{Reason: ErrUnknownCache.Error()})
		return Coin{}, ErrUnknownCache
	}
	coin, ok := cache.takeCoin()
	if !ok {
		loggingeconomy.CollectFailed(context.Background(), w.publisher, w.eventSeq,
			w.cacheRef(cacheID), loggingeconomy.TransferFailedPayload{Reason: ErrEmptyCache.Error()})
		return Coin{}, ErrEmptyCache
	}
	w.player.AddCoin(coin)
	loggingeconomy.CoinCollected(context.Background(), w.publisher, w.eventSeq,
		w.cacheRef(cacheID), loggingeconomy.CoinMovedPayload{
			CoinID:    coin.ID,
			Origin:    coin.OriginCacheID,
			Remaining: len(cache.Coins),
		})
	return coin, nil
}

// Deposit moves the player's most recently held coin into the cache.
// Returns ErrUnknownCache when the cache is not materialized and
// ErrNoCoinsHeld when the purse is empty; in both cases no state
// changes.
func (w *World) Deposit(cacheID string) (Coin, error) {
	if w == nil {
		return Coin{}, ErrUnknownCache
	}
	w.eventSeq++
	cache, ok := w.byID[cacheID]
	if !ok {
		loggingeconomy.DepositFailed(context.Background(), w.publisher, w.eventSeq,
			w.cacheRef(cacheID), loggingeconomy.TransferFailedPayload{Reason: ErrUnknownCache.Error()})
		return Coin{}, ErrUnknownCache
	}
	coin, ok := w.player.TakeCoin()
	if !ok {
		loggingeconomy.DepositFailed(context.Background(), w.publisher, w.eventSeq,
			w.cacheRef(cacheID), loggingeconomy.TransferFailedPayload{Reason: ErrNoCoinsHeld.Error()})
		return Coin{}, ErrNoCoinsHeld
	}
	cache.putCoin(coin)
	loggingeconomy.CoinDeposited(context.Background(), w.publisher, w.eventSeq,
		w.cacheRef(cacheID), loggingeconomy.CoinMovedPayload{
			CoinID:    coin.ID,
			Origin:    coin.OriginCacheID,
			Remaining: len(cache.Coins),
		})
	return coin, nil
}

// MovePlayer records the new position in the movement trail and runs
// the lifecycle pass for the new neighborhood.
func (w *World) MovePlayer(p grid.LatLng) {
	if w == nil {
		return
	}
	w.eventSeq++
	w.player.MoveTo(p)
	w.refreshNeighborhood()
}

// MoveBy steps the player by whole cells, matching the prototype's
// directional buttons.
func (w *World) MoveBy(di, dj int) {
	if w == nil {
		return
	}
	width := w.grid.CellWidth()
	pos := w.player.Position
	w.MovePlayer(grid.LatLng{
		Lat: pos.Lat + float64(di)*width,
		Lng: pos.Lng + float64(dj)*width,
	})
}

// Reset wipes holdings, trail, and every snapshot, then regenerates
// the neighborhood around the origin from cell identity alone.
func (w *World) Reset() {
	if w == nil {
		return
	}
	w.eventSeq++
	w.player.Reset(w.config.Origin)
	w.snapshots.Clear()
	w.live = make(map[grid.CellKey]*Geocache)
	w.byID = make(map[string]*Geocache)
	w.refreshNeighborhood()
}

// EventSeq reports the world's event counter.
func (w *World) EventSeq() uint64 {
	if w == nil {
		return 0
	}
	return w.eventSeq
}

// SnapshotCount reports how many cells hold a stored snapshot, for
// diagnostics. Snapshots persist across restore, so this counts every
// cell that was ever evicted since the last reset.
func (w *World) SnapshotCount() int {
	if w == nil {
		return 0
	}
	return w.snapshots.Len()
}

func (w *World) cacheRef(cacheID string) logging.EntityRef {
	return logging.EntityRef{ID: cacheID, Kind: logging.EntityKindCache}
}
