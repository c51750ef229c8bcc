package world

import (
	"hash/fnv"

	lru "github.com/hashicorp/golang-lru/v2"
)

const luckMemoSize = 4096

// Luck derives reproducible pseudo-random values in [0,1) from string
// keys. The same key yields the same value within a run and across
// runs: there is no hidden time- or call-order-dependent seed, so
// visibility scans and direct generation always agree on a cell's
// content. Repeated keys are served from an LRU memo since
// neighborhood scans revisit the same cells constantly.
type Luck struct {
	salt string
	memo *lru.Cache[string, float64]
}

// NewLuck constructs a generator salted with the world seed.
func NewLuck(salt string) *Luck {
	memo, err := lru.New[string, float64](luckMemoSize)
	if err != nil {
		memo = nil
	}
	return &Luck{salt: salt, memo: memo}
}

// Value returns the deterministic value in [0,1) for key.
func (l *Luck) Value(key string) float64 {
	if l == nil {
		return luckValue("", key)
	}
	if l.memo != nil {
		if v, ok := l.memo.Get(key); ok {
			return v
		}
	}
	v := luckValue(l.salt, key)
	if l.memo != nil {
		l.memo.Add(key, v)
	}
	return v
}

func luckValue(salt, key string) float64 {
	hasher := fnv.New64a()
	hasher.Write([]byte(salt))
	hasher.Write([]byte{0})
	hasher.Write([]byte(key))
	// Top 53 bits of the hash give a uniform double in [0,1).
	return float64(hasher.Sum64()>>11) / float64(uint64(1)<<53)
}
