// Package save defines the serializable game-state document exchanged
// with the storage layer. The jsonschema tags feed the schema generator
// in cmd/schema, which produces the machine-readable contract consumed
// by client tooling.
package save

import "encoding/json"

// Document is a full game-state save: everything needed to restore a
// session bit-for-bit, including snapshots of caches currently out of
// view.
type Document struct {
	Seed      string     `json:"seed" jsonschema:"title=World seed,description=Deterministic generation seed the save was produced under"`
	Player    Player     `json:"player" jsonschema:"description=Player position and purse at save time"`
	Caches    []Cache    `json:"caches" jsonschema:"description=Caches materialized in the visible neighborhood at save time"`
	Snapshots []Snapshot `json:"snapshots,omitempty" jsonschema:"description=Serialized coin state of evicted caches keyed by cell"`
}

// Player captures the player record.
type Player struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Coins []Coin  `json:"coins"`
	Trail []Point `json:"trail" jsonschema:"description=Ordered movement history"`
}

// Point is a lat/lng pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Coin carries a coin's immutable identity and provenance.
type Coin struct {
	ID     string `json:"id"`
	Origin string `json:"origin" jsonschema:"description=Identifier of the cache that first generated the coin"`
}

// Cache is one materialized geocache.
type Cache struct {
	ID    string `json:"id"`
	I     int    `json:"i"`
	J     int    `json:"j"`
	Coins []Coin `json:"coins"`
}

// Snapshot is the opaque serialized state of an evicted cache.
type Snapshot struct {
	I       int             `json:"i"`
	J       int             `json:"j"`
	Payload json.RawMessage `json:"payload"`
}
