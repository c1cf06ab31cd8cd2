package outbox

import (
	"encoding/json"
	"time"

	"github.com/angelmondragon/packfinderz-receiving/pkg/enums"
)

// PayloadEnvelope is the JSON stored in outbox_events.payload. It repeats the routing
// columns so a relay can publish the payload without the row.
type PayloadEnvelope struct {
	Version     int                   `json:"version"`
	EventID     string                `json:"eventId"`
	EventType   enums.OutboxEventType `json:"eventType"`
	AggregateID string                `json:"aggregateId"`
	OccurredAt  time.Time             `json:"occurredAt"`
	RequestID   string                `json:"requestId,omitempty"`
	Data        json.RawMessage       `json:"data"`
}
