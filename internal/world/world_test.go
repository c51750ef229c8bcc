package world

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"geocoin-carrier/server/internal/grid"
	"geocoin-carrier/server/internal/save"
)

// testConfig guarantees a cache in every visible cell so transfer and
// lifecycle paths are exercised without depending on spawn odds.
func testConfig() Config {
	return Config{
		Seed:             "test-seed",
		CellWidth:        grid.DefaultCellWidth,
		VisibilityRadius: 1,
		SpawnProbability: 1,
		Origin:           DefaultOrigin,
	}
}

func TestNewMaterializesNeighborhood(t *testing.T) {
	w := New(testConfig(), Deps{})

	caches := w.MaterializedCaches()
	if len(caches) != 9 {
		t.Fatalf("materialized %d caches, want 9 for radius 1 with spawn probability 1", len(caches))
	}

	for _, cache := range caches {
		cell := w.grid.Lookup(grid.CellKey{I: cache.I, J: cache.J})
		if want := CacheIDFor(cell); cache.ID != want {
			t.Fatalf("cache id %q, want %q", cache.ID, want)
		}
		if len(cache.Coins) < 1 || len(cache.Coins) > 10 {
			t.Fatalf("cache %s has %d coins, want [1,10]", cache.ID, len(cache.Coins))
		}
		for _, coin := range cache.Coins {
			if coin.OriginCacheID != cache.ID {
				t.Fatalf("coin %s has origin %q, want %q", coin.ID, coin.OriginCacheID, cache.ID)
			}
		}
	}
}

func TestGenerationIsDeterministicAcrossWorlds(t *testing.T) {
	a := New(testConfig(), Deps{})
	b := New(testConfig(), Deps{})

	if !reflect.DeepEqual(a.MaterializedCaches(), b.MaterializedCaches()) {
		t.Fatalf("two worlds with the same seed generated different caches")
	}
}

func TestCollectAndDepositRoundTrip(t *testing.T) {
	w := New(testConfig(), Deps{})
	caches := w.MaterializedCaches()
	target := caches[0]

	coin, err := w.Collect(target.ID)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if coin.OriginCacheID != target.ID {
		t.Fatalf("collected coin origin %q, want %q", coin.OriginCacheID, target.ID)
	}
	if got := w.Player().CoinCount; got != 1 {
		t.Fatalf("player holds %d coins after collect, want 1", got)
	}

	other := caches[1]
	deposited, err := w.Deposit(other.ID)
	if err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if deposited.ID != coin.ID || deposited.OriginCacheID != target.ID {
		t.Fatalf("deposited coin %+v lost its identity, collected %+v", deposited, coin)
	}
	if got := w.Player().CoinCount; got != 0 {
		t.Fatalf("player holds %d coins after deposit, want 0", got)
	}

	for _, cache := range w.MaterializedCaches() {
		if cache.ID != other.ID {
			continue
		}
		last := cache.Coins[len(cache.Coins)-1]
		if last.ID != coin.ID {
			t.Fatalf("deposited coin should be the cache's most recent, got %+v", last)
		}
	}
}

func TestCollectErrors(t *testing.T) {
	w := New(testConfig(), Deps{})
	target := w.MaterializedCaches()[0]

	if _, err := w.Collect("cache-999:999"); !errors.Is(err, ErrUnknownCache) {
		t.Fatalf("collect from unmaterialized cache: err = %v, want ErrUnknownCache", err)
	}

	for i := 0; i < len(target.Coins); i++ {
		if _, err := w.Collect(target.ID); err != nil {
			t.Fatalf("collect %d: %v", i, err)
		}
	}
	if _, err := w.Collect(target.ID); !errors.Is(err, ErrEmptyCache) {
		t.Fatalf("collect from drained cache: err = %v, want ErrEmptyCache", err)
	}
	if got := w.Player().CoinCount; got != len(target.Coins) {
		t.Fatalf("failed collect changed holdings: %d, want %d", got, len(target.Coins))
	}
}

func TestDepositErrors(t *testing.T) {
	w := New(testConfig(), Deps{})
	target := w.MaterializedCaches()[0]

	if _, err := w.Deposit(target.ID); !errors.Is(err, ErrNoCoinsHeld) {
		t.Fatalf("deposit with empty purse: err = %v, want ErrNoCoinsHeld", err)
	}
	if _, err := w.Deposit("cache-999:999"); !errors.Is(err, ErrUnknownCache) {
		t.Fatalf("deposit to unmaterialized cache: err = %v, want ErrUnknownCache", err)
	}
}

func TestEvictionPreservesMutatedState(t *testing.T) {
	w := New(testConfig(), Deps{})
	origin := w.Player().Position

	center := w.CellAt(origin)
	centerID := CacheIDFor(center)
	collected, err := w.Collect(centerID)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	remaining := -1
	for _, cache := range w.MaterializedCaches() {
		if cache.ID == centerID {
			remaining = len(cache.Coins)
		}
	}
	if remaining < 0 {
		t.Fatalf("center cache %s not materialized", centerID)
	}

	// Three cells of latitude leaves the radius-1 window entirely.
	w.MoveBy(3, 0)
	for _, cache := range w.MaterializedCaches() {
		if cache.ID == centerID {
			t.Fatalf("cache %s still materialized after leaving its neighborhood", centerID)
		}
	}
	if w.SnapshotCount() == 0 {
		t.Fatalf("eviction left no snapshots behind")
	}

	w.MovePlayer(origin)
	found := false
	for _, cache := range w.MaterializedCaches() {
		if cache.ID != centerID {
			continue
		}
		found = true
		if len(cache.Coins) != remaining {
			t.Fatalf("restored cache has %d coins, want %d", len(cache.Coins), remaining)
		}
		for _, coin := range cache.Coins {
			if coin.ID == collected.ID {
				t.Fatalf("collected coin %s reappeared in the restored cache", collected.ID)
			}
		}
	}
	if !found {
		t.Fatalf("cache %s not restored after returning", centerID)
	}
}

func TestSnapshotPersistsAfterRestore(t *testing.T) {
	w := New(testConfig(), Deps{})
	origin := w.Player().Position
	center := w.CellAt(origin)
	key := center.Key()
	centerID := CacheIDFor(center)

	initial := -1
	for _, cache := range w.MaterializedCaches() {
		if cache.ID == centerID {
			initial = len(cache.Coins)
		}
	}
	if initial < 0 {
		t.Fatalf("center cache %s not materialized", centerID)
	}

	w.MoveBy(3, 0)
	if !w.snapshots.Has(key) {
		t.Fatalf("eviction should store a snapshot for the center cell")
	}

	w.MovePlayer(origin)
	if !w.snapshots.Has(key) {
		t.Fatalf("restoring a cache must leave its snapshot in the store")
	}

	// The retained snapshot is stale until the next eviction overwrites
	// it with the mutated contents.
	if _, err := w.Collect(centerID); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	w.MoveBy(3, 0)

	cacheID, coins, ok, err := w.snapshots.TryRestore(key)
	if err != nil || !ok {
		t.Fatalf("TryRestore after re-eviction = %v, %v", ok, err)
	}
	if cacheID != centerID {
		t.Fatalf("snapshot cache id %q, want %q", cacheID, centerID)
	}
	if len(coins) != initial-1 {
		t.Fatalf("re-eviction stored %d coins, want %d; the snapshot must be overwritten", len(coins), initial-1)
	}
}

func TestResetRegeneratesInitialState(t *testing.T) {
	w := New(testConfig(), Deps{})
	pristine := New(testConfig(), Deps{})

	target := w.MaterializedCaches()[0]
	if _, err := w.Collect(target.ID); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	w.MoveBy(3, 0)
	w.MoveBy(0, 3)

	w.Reset()

	if got := w.Player(); got.CoinCount != 0 || got.Position != DefaultOrigin {
		t.Fatalf("player after reset = %+v, want empty purse at origin", got)
	}
	if w.SnapshotCount() != 0 {
		t.Fatalf("reset left %d snapshots behind", w.SnapshotCount())
	}
	if !reflect.DeepEqual(w.MaterializedCaches(), pristine.MaterializedCaches()) {
		t.Fatalf("caches after reset differ from a pristine world")
	}
}

func TestCachesWithin(t *testing.T) {
	w := New(testConfig(), Deps{})
	origin := w.Player().Position

	all := w.MaterializedCaches()
	wide := w.CachesWithin(origin, 10000)
	if !reflect.DeepEqual(wide, all) {
		t.Fatalf("a generous radius should return every materialized cache")
	}

	near := w.CachesWithin(origin, 15)
	if len(near) == 0 {
		t.Fatalf("the player's own cell center is within 15m, expected at least one cache")
	}
	if len(near) >= len(all) {
		t.Fatalf("a 15m radius should exclude the far row of the window, got %d of %d", len(near), len(all))
	}
	for _, cache := range near {
		if d := grid.DistanceMeters(origin, cache.Bounds.Center()); d > 15 {
			t.Fatalf("cache %s at %.1fm included in 15m query", cache.ID, d)
		}
	}

	if got := w.CachesWithin(origin, -1); got != nil {
		t.Fatalf("negative radius should yield nil, got %d caches", len(got))
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	a := New(testConfig(), Deps{})
	target := a.MaterializedCaches()[0]
	if _, err := a.Collect(target.ID); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	a.MoveBy(3, 0)

	doc := a.ExportSave()
	if doc.Seed != "test-seed" {
		t.Fatalf("exported seed %q, want test-seed", doc.Seed)
	}
	if len(doc.Snapshots) == 0 {
		t.Fatalf("export should carry the evicted-cache snapshots")
	}

	b := New(testConfig(), Deps{})
	if err := b.ImportSave(doc); err != nil {
		t.Fatalf("ImportSave: %v", err)
	}

	if !reflect.DeepEqual(a.Player(), b.Player()) {
		t.Fatalf("player state diverged: %+v vs %+v", a.Player(), b.Player())
	}
	if !reflect.DeepEqual(a.MaterializedCaches(), b.MaterializedCaches()) {
		t.Fatalf("materialized caches diverged after import")
	}
}

func TestImportSaveSeedMismatch(t *testing.T) {
	w := New(testConfig(), Deps{})
	doc := w.ExportSave()
	doc.Seed = "some-other-seed"

	fresh := New(testConfig(), Deps{})
	if err := fresh.ImportSave(doc); err == nil {
		t.Fatalf("importing a save with a mismatched seed should fail")
	}
}

func TestMalformedSnapshotFallsBackToGeneration(t *testing.T) {
	pristine := New(testConfig(), Deps{})
	originKey := pristine.CellAt(DefaultOrigin).Key()

	var pristineCenter CacheSnapshot
	for _, cache := range pristine.MaterializedCaches() {
		if cache.I == originKey.I && cache.J == originKey.J {
			pristineCenter = cache
		}
	}
	if pristineCenter.ID == "" {
		t.Fatalf("pristine world has no cache at the origin cell")
	}

	doc := save.Document{
		Seed:   "test-seed",
		Player: save.Player{Lat: DefaultOrigin.Lat, Lng: DefaultOrigin.Lng},
		Snapshots: []save.Snapshot{
			{I: originKey.I, J: originKey.J, Payload: json.RawMessage(`{"coins":[`)},
		},
	}

	w := New(testConfig(), Deps{})
	if err := w.ImportSave(doc); err != nil {
		t.Fatalf("ImportSave: %v", err)
	}

	var center CacheSnapshot
	for _, cache := range w.MaterializedCaches() {
		if cache.I == originKey.I && cache.J == originKey.J {
			center = cache
		}
	}
	if !reflect.DeepEqual(center, pristineCenter) {
		t.Fatalf("fallback generation diverged: %+v vs %+v", center, pristineCenter)
	}
	if w.snapshots.Has(originKey) {
		t.Fatalf("rejected snapshot should be dropped")
	}
}
