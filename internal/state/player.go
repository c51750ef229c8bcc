// Package state holds the mutable actor records shared by the world
// core and the transport layer.
package state

import "geocoin-carrier/server/internal/grid"

// Coin is a unit of value. Identity and provenance are immutable: a
// coin keeps its ID and OriginCacheID when moved between a cache and
// the player's holdings.
type Coin struct {
	ID            string `json:"id"`
	OriginCacheID string `json:"originCacheId"`
}

// PlayerState tracks the player's position, held coins, and movement
// trail. Holdings order is collection order; TakeCoin pops the most
// recently collected coin.
type PlayerState struct {
	Position grid.LatLng
	Holdings []Coin
	Trail    []grid.LatLng
}

// Player is the immutable view broadcast to clients.
type Player struct {
	Position  grid.LatLng   `json:"position"`
	CoinCount int           `json:"coinCount"`
	Holdings  []Coin        `json:"holdings"`
	Trail     []grid.LatLng `json:"trail"`
}

// NewPlayerState places a player at the origin position with an empty
// purse and a trail seeded with the starting point.
func NewPlayerState(origin grid.LatLng) *PlayerState {
	return &PlayerState{
		Position: origin,
		Holdings: make([]Coin, 0),
		Trail:    []grid.LatLng{origin},
	}
}

// MoveTo updates the position and appends it to the movement trail.
func (s *PlayerState) MoveTo(p grid.LatLng) {
	if s == nil {
		return
	}
	s.Position = p
	s.Trail = append(s.Trail, p)
}

// AddCoin appends a coin to the player's holdings.
func (s *PlayerState) AddCoin(coin Coin) {
	if s == nil {
		return
	}
	s.Holdings = append(s.Holdings, coin)
}

// TakeCoin removes and returns the most recently held coin. The
// boolean reports whether a coin was available.
func (s *PlayerState) TakeCoin() (Coin, bool) {
	if s == nil || len(s.Holdings) == 0 {
		return Coin{}, false
	}
	last := len(s.Holdings) - 1
	coin := s.Holdings[last]
	s.Holdings = s.Holdings[:last]
	return coin, true
}

// Reset returns the player to the origin and clears holdings and trail.
func (s *PlayerState) Reset(origin grid.LatLng) {
	if s == nil {
		return
	}
	s.Position = origin
	s.Holdings = s.Holdings[:0]
	s.Trail = append(s.Trail[:0], origin)
}

// Snapshot copies the player state into the broadcast view.
func (s *PlayerState) Snapshot() Player {
	if s == nil {
		return Player{}
	}
	holdings := make([]Coin, len(s.Holdings))
	copy(holdings, s.Holdings)
	trail := make([]grid.LatLng, len(s.Trail))
	copy(trail, s.Trail)
	return Player{
		Position:  s.Position,
		CoinCount: len(s.Holdings),
		Holdings:  holdings,
		Trail:     trail,
	}
}
