package logging_test

import (
	"context"
	"testing"
	"time"

	"geocoin-carrier/server/logging"
	"geocoin-carrier/server/logging/sinks"
)

func newTestRouter(t *testing.T, cfg logging.Config, sink logging.Sink) *logging.Router {
	t.Helper()
	router, err := logging.NewRouter(logging.SystemClock{}, cfg, []logging.NamedSink{
		{Name: logging.SinkConsole, Sink: sink},
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return router
}

func closeRouter(t *testing.T, router *logging.Router) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := router.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestRouterDeliversToSink(t *testing.T) {
	sink := sinks.NewMemory()
	router := newTestRouter(t, logging.DefaultConfig(), sink)

	event := logging.Event{
		Type:     "economy.coin_collected",
		Seq:      7,
		Actor:    logging.EntityRef{ID: "player-1", Kind: logging.EntityKindPlayer},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryEconomy,
	}
	router.Publish(context.Background(), event)
	closeRouter(t, router)

	events := sink.Events()
	if len(events) != 1 {
		t.Fatalf("sink captured %d events, want 1", len(events))
	}
	got := events[0]
	if got.Type != event.Type || got.Seq != event.Seq || got.Actor != event.Actor {
		t.Fatalf("captured %+v, want %+v", got, event)
	}
	if got.Time.IsZero() {
		t.Fatalf("router should stamp the event time")
	}

	stats := router.Stats()
	if stats.EventsTotal != 1 || stats.DroppedTotal != 0 {
		t.Fatalf("stats = %+v, want one delivered and none dropped", stats)
	}
}

func TestRouterFiltersBelowMinimumSeverity(t *testing.T) {
	cfg := logging.DefaultConfig()
	cfg.MinimumSeverity = logging.SeverityWarn

	sink := sinks.NewMemory()
	router := newTestRouter(t, cfg, sink)

	router.Publish(context.Background(), logging.Event{
		Type:     "lifecycle.cache_generated",
		Severity: logging.SeverityDebug,
	})
	router.Publish(context.Background(), logging.Event{
		Type:     "lifecycle.snapshot_rejected",
		Severity: logging.SeverityWarn,
	})
	closeRouter(t, router)

	events := sink.Events()
	if len(events) != 1 {
		t.Fatalf("sink captured %d events, want only the warn event", len(events))
	}
	if events[0].Type != "lifecycle.snapshot_rejected" {
		t.Fatalf("captured %q, want the warn event", events[0].Type)
	}
}

func TestRouterAttachesStaticFields(t *testing.T) {
	cfg := logging.DefaultConfig()
	cfg.Fields = map[string]any{"session": "default"}

	sink := sinks.NewMemory()
	router := newTestRouter(t, cfg, sink)

	router.Publish(context.Background(), logging.Event{
		Type:     "economy.coin_deposited",
		Severity: logging.SeverityInfo,
	})
	closeRouter(t, router)

	events := sink.Events()
	if len(events) != 1 {
		t.Fatalf("sink captured %d events, want 1", len(events))
	}
	if got := events[0].Extra["session"]; got != "default" {
		t.Fatalf("extra session = %v, want default", got)
	}
}

func TestRouterIgnoresUntypedEvents(t *testing.T) {
	sink := sinks.NewMemory()
	router := newTestRouter(t, logging.DefaultConfig(), sink)

	router.Publish(context.Background(), logging.Event{Severity: logging.SeverityError})
	closeRouter(t, router)

	if events := sink.Events(); len(events) != 0 {
		t.Fatalf("untyped event should be discarded, captured %d", len(events))
	}
}

func TestRouterPublishAfterCloseIsSafe(t *testing.T) {
	sink := sinks.NewMemory()
	router := newTestRouter(t, logging.DefaultConfig(), sink)
	closeRouter(t, router)

	router.Publish(context.Background(), logging.Event{
		Type:     "economy.coin_collected",
		Severity: logging.SeverityInfo,
	})

	if events := sink.Events(); len(events) != 0 {
		t.Fatalf("events published after close should be discarded, captured %d", len(events))
	}
}
