package lifecycle

import (
	"context"

	"geocoin-carrier/server/logging"
)

const (
	// EventCacheGenerated is emitted when a cache is materialized from scratch.
	EventCacheGenerated logging.EventType = "lifecycle.cache_generated"
	// EventCacheRestored is emitted when a cache is rebuilt from its snapshot.
	EventCacheRestored logging.EventType = "lifecycle.cache_restored"
	// EventCacheEvicted is emitted when a cache leaves the visible neighborhood.
	EventCacheEvicted logging.EventType = "lifecycle.cache_evicted"
	// EventSnapshotRejected is emitted when a stored snapshot fails validation
	// and the cell falls back to fresh generation.
	EventSnapshotRejected logging.EventType = "lifecycle.snapshot_rejected"
)

// CachePayload describes a lifecycle transition for one cache.
type CachePayload struct {
	I     int `json:"i"`
	J     int `json:"j"`
	Coins int `json:"coins"`
}

// SnapshotRejectedPayload carries the validation failure for diagnostics.
type SnapshotRejectedPayload struct {
	I      int    `json:"i"`
	J      int    `json:"j"`
	Reason string `json:"reason"`
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, seq uint64, cache logging.EntityRef, severity logging.Severity, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Seq:      seq,
		Actor:    cache,
		Severity: severity,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
	})
}

// CacheGenerated publishes a fresh materialization.
func CacheGenerated(ctx context.Context, pub logging.Publisher, seq uint64, cache logging.EntityRef, payload CachePayload) {
	publish(ctx, pub, EventCacheGenerated, seq, cache, logging.SeverityDebug, payload)
}

// CacheRestored publishes a snapshot restoration.
func CacheRestored(ctx context.Context, pub logging.Publisher, seq uint64, cache logging.EntityRef, payload CachePayload) {
	publish(ctx, pub, EventCacheRestored, seq, cache, logging.SeverityDebug, payload)
}

// CacheEvicted publishes an eviction to the snapshot store.
func CacheEvicted(ctx context.Context, pub logging.Publisher, seq uint64, cache logging.EntityRef, payload CachePayload) {
	publish(ctx, pub, EventCacheEvicted, seq, cache, logging.SeverityDebug, payload)
}

// SnapshotRejected publishes a malformed-snapshot fallback.
func SnapshotRejected(ctx context.Context, pub logging.Publisher, seq uint64, cache logging.EntityRef, payload SnapshotRejectedPayload) {
	publish(ctx, pub, EventSnapshotRejected, seq, cache, logging.SeverityWarn, payload)
}
