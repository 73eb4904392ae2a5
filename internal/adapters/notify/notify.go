// Package notify declares the outbound match-created hook. Delivery (email,
// push) is an external collaborator's job; the engine only emits the event
// and never waits on or reacts to delivery.
package notify

import (
	"context"

	"github.com/iimb-synergy/synapse/internal/domain/model"
	"github.com/iimb-synergy/synapse/pkg/logger"
)

// Notifier receives one event per committed match, fire-and-forget.
type Notifier interface {
	MatchCreated(ctx context.Context, m model.Match)
}

// LogNotifier writes match events to the log. The default sink until a real
// delivery collaborator is plugged in.
type LogNotifier struct {
	log logger.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logger.Get().Named("notify")}
}

// MatchCreated logs the committed match.
func (n *LogNotifier) MatchCreated(ctx context.Context, m model.Match) {
	n.log.Info(ctx, "match created",
		logger.String("matchID", m.ID),
		logger.String("cycleID", m.CycleID),
		logger.String("user1", m.User1ID),
		logger.String("user2", m.User2ID),
		logger.String("activity", string(m.Activity)),
		logger.String("location", m.Location),
	)
}

// NopNotifier discards events; used in tests.
type NopNotifier struct{}

// MatchCreated does nothing.
func (NopNotifier) MatchCreated(context.Context, model.Match) {}
