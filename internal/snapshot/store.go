// Package snapshot implements the memento registry that preserves a
// cache's coin state across eviction and rematerialization. Snapshots
// are opaque serialized payloads keyed by the structured cell key, so
// a cache's logical existence is decoupled from whether it is
// currently materialized.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"

	"geocoin-carrier/server/internal/grid"
	"geocoin-carrier/server/internal/state"
)

// ErrMalformed reports a stored snapshot that failed schema validation
// during decoding. Callers fall back to fresh generation for the
// affected cell; other cells are unaffected.
var ErrMalformed = errors.New("snapshot: malformed payload")

// record is the serialized snapshot schema. Coin order is preserved
// verbatim so a restore reproduces the cache bit-for-bit.
type record struct {
	CacheID string       `json:"cacheId"`
	Coins   []state.Coin `json:"coins"`
}

func (r record) validate() error {
	if r.CacheID == "" {
		return fmt.Errorf("%w: missing cache id", ErrMalformed)
	}
	for _, coin := range r.Coins {
		if coin.ID == "" || coin.OriginCacheID == "" {
			return fmt.Errorf("%w: incomplete coin record", ErrMalformed)
		}
	}
	return nil
}

// Store maps cell keys to serialized cache snapshots. Absence is an
// expected signal, not an error. The table grows for the life of the
// session; it has no eviction policy of its own. Not safe for
// concurrent mutation; callers serialize access.
type Store struct {
	table map[grid.CellKey][]byte
}

// NewStore constructs an empty snapshot store.
func NewStore() *Store {
	return &Store{table: make(map[grid.CellKey][]byte)}
}

// Save serializes the coin state under the cell key, overwriting any
// prior snapshot for that key.
func (s *Store) Save(key grid.CellKey, cacheID string, coins []state.Coin) error {
	if s == nil {
		return nil
	}
	data, err := json.Marshal(record{CacheID: cacheID, Coins: coins})
	if err != nil {
		return fmt.Errorf("encode snapshot for %d:%d: %w", key.I, key.J, err)
	}
	if s.table == nil {
		s.table = make(map[grid.CellKey][]byte)
	}
	s.table[key] = data
	return nil
}

// TryRestore decodes the snapshot stored for key. The boolean reports
// presence: ok=false with a nil error means no snapshot exists, which
// is the common case for unvisited cells. A non-nil error wraps
// ErrMalformed; the stored bytes are left in place for diagnosis.
func (s *Store) TryRestore(key grid.CellKey) (string, []state.Coin, bool, error) {
	if s == nil {
		return "", nil, false, nil
	}
	data, ok := s.table[key]
	if !ok {
		return "", nil, false, nil
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", nil, false, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := rec.validate(); err != nil {
		return "", nil, false, err
	}
	coins := make([]state.Coin, len(rec.Coins))
	copy(coins, rec.Coins)
	return rec.CacheID, coins, true, nil
}

// Has reports whether a snapshot exists for the cell key.
func (s *Store) Has(key grid.CellKey) bool {
	if s == nil {
		return false
	}
	_, ok := s.table[key]
	return ok
}

// Delete drops the snapshot for key, if any.
func (s *Store) Delete(key grid.CellKey) {
	if s == nil {
		return
	}
	delete(s.table, key)
}

// Clear empties the table.
func (s *Store) Clear() {
	if s == nil {
		return
	}
	s.table = make(map[grid.CellKey][]byte)
}

// Len reports the number of stored snapshots.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.table)
}

// Export copies the raw snapshot table for durable saves. Payloads are
// opaque to the caller.
func (s *Store) Export() map[grid.CellKey][]byte {
	if s == nil || len(s.table) == 0 {
		return nil
	}
	exported := make(map[grid.CellKey][]byte, len(s.table))
	for key, data := range s.table {
		exported[key] = append([]byte(nil), data...)
	}
	return exported
}

// Import replaces the table contents with the provided entries. Raw
// payloads are validated lazily on restore, so one corrupt entry never
// blocks loading the rest of a persisted session.
func (s *Store) Import(entries map[grid.CellKey][]byte) {
	if s == nil {
		return
	}
	s.table = make(map[grid.CellKey][]byte, len(entries))
	for key, data := range entries {
		s.table[key] = append([]byte(nil), data...)
	}
}
