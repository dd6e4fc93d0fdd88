package realtime

import (
	"context"
	"encoding/json"
	"fmt"
)

// Envelope is the wire form of every broadcast: an event name plus a plain
// JSON payload. Publishers marshal their payload through NewEnvelope so that
// only serializable state crosses the wire.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// NewEnvelope re-serializes payload to plain JSON and wraps it with the
// event name.
func NewEnvelope(event string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("realtime.NewEnvelope: marshal %s payload: %w", event, err)
	}
	return Envelope{Event: event, Payload: raw}, nil
}

// Bus is the transport for broadcast envelopes. Delivery is best-effort and
// at-most-once; ordering is guaranteed only among envelopes from a single
// publisher on a single topic. Publishers subscribed to their own topic
// receive their own envelopes, and the settlement flow relies on that
// self-delivery to update its pool view.
type Bus interface {
	// Publish sends an envelope to every current subscriber of topic.
	// Absence of subscribers is not an error.
	Publish(ctx context.Context, topic string, env Envelope) error

	// Subscribe returns a channel of envelopes published to topic after the
	// call. The channel closes when ctx is cancelled.
	Subscribe(ctx context.Context, topic string) (<-chan Envelope, error)
}
