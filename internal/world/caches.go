package world

import (
	"fmt"

	"geocoin-carrier/server/internal/grid"
	"geocoin-carrier/server/internal/state"
)

// Coin is re-exported from the state package for callers of the world API.
type Coin = state.Coin

// Geocache holds the live coin contents of one grid cell. Coin order is
// collection order; it carries no gameplay meaning but is preserved
// across snapshot and restore so regenerated state matches exactly.
type Geocache struct {
	ID    string
	Cell  *grid.Cell
	Coins []Coin
}

// takeCoin removes and returns the most recently added coin.
func (c *Geocache) takeCoin() (Coin, bool) {
	if c == nil || len(c.Coins) == 0 {
		return Coin{}, false
	}
	last := len(c.Coins) - 1
	coin := c.Coins[last]
	c.Coins = c.Coins[:last]
	return coin, true
}

// putCoin appends a coin to the cache.
func (c *Geocache) putCoin(coin Coin) {
	if c == nil {
		return
	}
	c.Coins = append(c.Coins, coin)
}

// CacheSnapshot is the immutable view of a materialized cache handed to
// the transport layer.
type CacheSnapshot struct {
	ID     string    `json:"id"`
	I      int       `json:"i"`
	J      int       `json:"j"`
	Bounds grid.Rect `json:"bounds"`
	Coins  []Coin    `json:"coins"`
}

// CacheIDFor derives the canonical cache identifier for a cell.
func CacheIDFor(cell *grid.Cell) string {
	return "cache-" + cell.String()
}

// coinCount maps a luck value in [0,1) to a coin count in [1, 10].
// The fractional part truncates: 0.37 yields 4, never 5.
func coinCount(v float64) int {
	return int(v*10) + 1
}

// CoinCountFor derives the initial coin count for a cache identifier,
// an integer in [1, 10].
func (w *World) CoinCountFor(cacheID string) int {
	return coinCount(w.luck().Value(cacheID))
}

// hostsCache reports whether a cell deterministically hosts a cache.
func (w *World) hostsCache(cell *grid.Cell) bool {
	if w == nil || cell == nil {
		return false
	}
	return w.luck().Value(cell.String()) < w.config.SpawnProbability
}

// newGeocache mints a cache with its deterministic initial coin set.
// Coin ids embed the origin cell and a per-cache serial, so identities
// are stable across regeneration.
func (w *World) newGeocache(cell *grid.Cell) *Geocache {
	id := CacheIDFor(cell)
	count := w.CoinCountFor(id)
	coins := make([]Coin, 0, count)
	for serial := 0; serial < count; serial++ {
		coins = append(coins, Coin{
			ID:            fmt.Sprintf("%s#%d", cell.String(), serial),
			OriginCacheID: id,
		})
	}
	return &Geocache{ID: id, Cell: cell, Coins: coins}
}

func (c *Geocache) snapshotView(bounds grid.Rect) CacheSnapshot {
	coins := make([]Coin, len(c.Coins))
	copy(coins, c.Coins)
	return CacheSnapshot{
		ID:     c.ID,
		I:      c.Cell.I,
		J:      c.Cell.J,
		Bounds: bounds,
		Coins:  coins,
	}
}
