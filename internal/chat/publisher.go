package chat

import (
	"encoding/json"

	"go.uber.org/zap"
)

// Publisher fans an event out to every live connection of one user.
//
// Delivery is best effort, full stop. No retry, no backpressure, no
// ordering promise against a concurrent poll of the same data. The
// message is already durable in Postgres before Publish is called; a
// recipient whose push is lost picks the message up on their next poll.
type Publisher struct {
	registry *Registry
	logger   *zap.Logger
}

func NewPublisher(registry *Registry, logger *zap.Logger) *Publisher {
	return &Publisher{registry: registry, logger: logger}
}

// Publish serializes payload once and hands it to every connection
// registered for the user. A user with no open connection is a silent
// no-op. A connection whose buffer is full has this event dropped — for
// that connection only — rather than blocking the sender's request or
// fan-out to the user's other connections.
func (p *Publisher) Publish(userID int64, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		// Payloads are our own structs; this only fires on a programming
		// error. Never propagated: a failed push must not fail the send.
		p.logger.Warn("publish: marshal payload",
			zap.String("event", event),
			zap.Error(err),
		)
		return
	}

	ev := Event{Name: event, Data: string(data)}
	for _, ch := range p.registry.channels(userID) {
		select {
		case ch <- ev:
		default:
			p.logger.Debug("dropped event for slow connection",
				zap.Int64("user_id", userID),
				zap.String("event", event),
			)
		}
	}
}
