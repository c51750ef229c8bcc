package economy

import (
	"context"

	"geocoin-carrier/server/logging"
)

const (
	// EventCoinCollected is emitted when a coin moves from a cache to the player.
	EventCoinCollected logging.EventType = "economy.coin_collected"
	// EventCoinDeposited is emitted when a coin moves from the player to a cache.
	EventCoinDeposited logging.EventType = "economy.coin_deposited"
	// EventCollectFailed is emitted when a collect attempt is rejected.
	EventCollectFailed logging.EventType = "economy.collect_failed"
	// EventDepositFailed is emitted when a deposit attempt is rejected.
	EventDepositFailed logging.EventType = "economy.deposit_failed"
)

// CoinMovedPayload describes a coin transfer between a cache and the player.
type CoinMovedPayload struct {
	CoinID    string `json:"coinId"`
	Origin    string `json:"origin"`
	Remaining int    `json:"remaining"`
}

// TransferFailedPayload describes why a transfer was rejected.
type TransferFailedPayload struct {
	Reason string `json:"reason"`
}

// CoinCollected publishes a successful collect.
func CoinCollected(ctx context.Context, pub logging.Publisher, seq uint64, cache logging.EntityRef, payload CoinMovedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCoinCollected,
		Seq:      seq,
		Actor:    logging.EntityRef{Kind: logging.EntityKindPlayer},
		Targets:  []logging.EntityRef{cache},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryEconomy,
		Payload:  payload,
	})
}

// CoinDeposited publishes a successful deposit.
func CoinDeposited(ctx context.Context, pub logging.Publisher, seq uint64, cache logging.EntityRef, payload CoinMovedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCoinDeposited,
		Seq:      seq,
		Actor:    logging.EntityRef{Kind: logging.EntityKindPlayer},
		Targets:  []logging.EntityRef{cache},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryEconomy,
		Payload:  payload,
	})
}

// CollectFailed publishes a rejected collect attempt.
func CollectFailed(ctx context.Context, pub logging.Publisher, seq uint64, cache logging.EntityRef, payload TransferFailedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCollectFailed,
		Seq:      seq,
		Actor:    logging.EntityRef{Kind: logging.EntityKindPlayer},
		Targets:  []logging.EntityRef{cache},
		Severity: logging.SeverityWarn,
		Category: logging.CategoryEconomy,
		Payload:  payload,
	})
}

// DepositFailed publishes a rejected deposit attempt.
func DepositFailed(ctx context.Context, pub logging.Publisher, seq uint64, cache logging.EntityRef, payload TransferFailedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventDepositFailed,
		Seq:      seq,
		Actor:    logging.EntityRef{Kind: logging.EntityKindPlayer},
		Targets:  []logging.EntityRef{cache},
		Severity: logging.SeverityWarn,
		Category: logging.CategoryEconomy,
		Payload:  payload,
	})
}
