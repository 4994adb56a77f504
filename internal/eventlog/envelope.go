// Package eventlog records the notifications returned by committed
// operations, in order, so readers can page through them, stream them,
// or have them relayed to Kafka.
package eventlog

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/efreitasn/custodex/internal/domain"
)

// Envelope wraps one notification with its position in the log.
type Envelope struct {
	Seq        uint64          `json:"seq"`
	Name       string          `json:"name"`
	RecordedAt time.Time       `json:"recorded_at"`
	Payload    json.RawMessage `json:"payload"`
}

func newEnvelope(seq uint64, ev domain.Event, at time.Time) (Envelope, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, fmt.Errorf("encoding %s event: %w", ev.EventName(), err)
	}
	return Envelope{
		Seq:        seq,
		Name:       ev.EventName(),
		RecordedAt: at.UTC(),
		Payload:    payload,
	}, nil
}
