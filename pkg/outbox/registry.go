package outbox

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/angelmondragon/packfinderz-receiving/pkg/db/models"
	"github.com/angelmondragon/packfinderz-receiving/pkg/enums"
	"github.com/angelmondragon/packfinderz-receiving/pkg/outbox/payloads"
)

type decoderFunc func(payload json.RawMessage) (any, error)

type registryKey struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry maps an event type and payload version to its data decoder.
type DecoderRegistry struct {
	mtx      sync.RWMutex
	registry map[registryKey]decoderFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{registry: make(map[registryKey]decoderFunc)}
}

// NewReceivingRegistry returns a registry preloaded with every event receiving emits.
func NewReceivingRegistry() *DecoderRegistry {
	r := NewDecoderRegistry()
	r.Register(enums.EventReceiptSessionSaved, 1, decodeAs[payloads.ReceiptSessionSavedEvent])
	r.Register(enums.EventReceiptSessionDeleted, 1, decodeAs[payloads.ReceiptSessionDeletedEvent])
	r.Register(enums.EventPurchaseOrderStatusAdvanced, 1, decodeAs[payloads.PurchaseOrderStatusAdvancedEvent])
	return r
}

func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decoder decoderFunc) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.registry[registryKey{eventType: eventType, version: version}] = decoder
}

func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error) {
	r.mtx.RLock()
	decoder, ok := r.registry[registryKey{eventType: eventType, version: version}]
	r.mtx.RUnlock()
	if !ok {
		return nil, fmt.Errorf("decoder not registered for %s@v%d", eventType, version)
	}
	return decoder(payload)
}

// DecodeEvent unwraps a stored outbox row into its envelope and typed data.
func (r *DecoderRegistry) DecodeEvent(row models.OutboxEvent) (*PayloadEnvelope, any, error) {
	var envelope PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &envelope); err != nil {
		return nil, nil, fmt.Errorf("decode envelope for %s: %w", row.EventType, err)
	}
	if envelope.EventType != "" && envelope.EventType != row.EventType {
		return nil, nil, fmt.Errorf("envelope event type %s does not match row %s", envelope.EventType, row.EventType)
	}
	data, err := r.Decode(row.EventType, envelope.Version, envelope.Data)
	if err != nil {
		return nil, nil, err
	}
	return &envelope, data, nil
}

func decodeAs[T any](payload json.RawMessage) (any, error) {
	var out T
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}
