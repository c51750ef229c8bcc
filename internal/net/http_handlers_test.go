package net

import (
	"bytes"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	"geocoin-carrier/server/internal/grid"
	"geocoin-carrier/server/internal/world"
)

func newTestHandler(t *testing.T) (nethttp.Handler, *Hub) {
	t.Helper()
	w := world.New(world.Config{
		Seed:             "handler-seed",
		VisibilityRadius: 1,
		SpawnProbability: 1,
	}, world.Deps{})
	hub := NewHub(w, nil)
	return NewHTTPHandler(hub, HTTPHandlerConfig{}), hub
}

func TestHealthz(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/healthz", nil))

	if rec.Code != nethttp.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "ok" {
		t.Fatalf("body = %q, want ok", got)
	}
}

func TestJoinReturnsSnapshot(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodPost, "/join", bytes.NewReader(nil)))

	if rec.Code != nethttp.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var join struct {
		Ver   int    `json:"ver"`
		ID    string `json:"id"`
		Seed  string `json:"seed"`
		State struct {
			Type   string `json:"type"`
			Caches []struct {
				ID string `json:"id"`
			} `json:"caches"`
		} `json:"state"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &join); err != nil {
		t.Fatalf("decode join response: %v", err)
	}
	if join.ID == "" {
		t.Fatalf("join response missing subscriber id")
	}
	if join.Seed != "handler-seed" {
		t.Fatalf("seed = %q, want handler-seed", join.Seed)
	}
	if join.State.Type != "state" || len(join.State.Caches) != 9 {
		t.Fatalf("initial state = %+v, want 9 caches", join.State)
	}
}

func TestJoinRejectsGet(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/join", nil))

	if rec.Code != nethttp.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestCachesNearby(t *testing.T) {
	handler, _ := newTestHandler(t)
	origin := world.DefaultOrigin

	rec := httptest.NewRecorder()
	target := "/caches/nearby?lat=36.989495&lng=-122.062771&radius=10000"
	handler.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, target, nil))

	if rec.Code != nethttp.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var payload struct {
		Caches []world.CacheSnapshot `json:"caches"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Caches) != 9 {
		t.Fatalf("got %d caches, want the full window of 9", len(payload.Caches))
	}
	for _, cache := range payload.Caches {
		if !cache.Bounds.Contains(cache.Bounds.SouthWest) {
			t.Fatalf("cache %s bounds lost in transit: %+v", cache.ID, cache.Bounds)
		}
		if d := grid.DistanceMeters(origin, cache.Bounds.Center()); d > 10000 {
			t.Fatalf("cache %s at %.1fm outside requested radius", cache.ID, d)
		}
	}
}

func TestCachesNearbyRequiresParams(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/caches/nearby?lat=1", nil))

	if rec.Code != nethttp.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestWSRequiresKnownSubscriber(t *testing.T) {
	handler, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/ws", nil))

	if rec.Code != nethttp.StatusBadRequest {
		t.Fatalf("ws without id: status = %d, want 400", rec.Code)
	}
}

func TestHubCommandFlow(t *testing.T) {
	_, hub := newTestHandler(t)

	join := hub.Join()
	if !hub.Known(join.ID) {
		t.Fatalf("joined id not registered")
	}

	state, ok := hub.HandleStep(join.ID, 3, 0)
	if !ok {
		t.Fatalf("step rejected for a known subscriber")
	}
	if state.Seq == 0 {
		t.Fatalf("state seq should advance after a step")
	}

	target := state.Caches[0]
	state, reason := hub.HandleCollect(join.ID, target.ID)
	if reason != "" {
		t.Fatalf("collect rejected: %s", reason)
	}
	if state.Player.CoinCount != 1 {
		t.Fatalf("player holds %d coins after collect, want 1", state.Player.CoinCount)
	}

	if _, reason := hub.HandleCollect(join.ID, "cache-999:999"); reason != RejectUnknownCache {
		t.Fatalf("collect from unknown cache: reason = %q, want %q", reason, RejectUnknownCache)
	}
	if _, reason := hub.HandleCollect("not-joined", target.ID); reason != RejectUnknownActor {
		t.Fatalf("collect from unknown actor: reason = %q, want %q", reason, RejectUnknownActor)
	}

	state, ok = hub.HandleReset(join.ID)
	if !ok || state.Player.CoinCount != 0 {
		t.Fatalf("reset should empty the purse, got %+v", state.Player)
	}

	hub.Disconnect(join.ID)
	if hub.Known(join.ID) {
		t.Fatalf("disconnected id still registered")
	}
}
