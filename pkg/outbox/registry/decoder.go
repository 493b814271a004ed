package registry

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

type decoderFunc func(payload json.RawMessage) (any, error)

// jsonDecoder decodes into a fresh *T.
func jsonDecoder[T any](eventType enums.OutboxEventType, version int) decoderFunc {
	return func(payload json.RawMessage) (any, error) {
		target := new(T)
		if err := json.Unmarshal(payload, target); err != nil {
			return nil, fmt.Errorf("decode %s@v%d: %w", eventType, version, err)
		}
		return target, nil
	}
}

type versionedType struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry is the consumer-side lookup of payload decoders by event
// type and envelope version.
type DecoderRegistry struct {
	mu       sync.RWMutex
	decoders map[versionedType]decoderFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{decoders: map[versionedType]decoderFunc{}}
}

func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decoder decoderFunc) {
	r.mu.Lock()
	r.decoders[versionedType{eventType, version}] = decoder
	r.mu.Unlock()
}

func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error) {
	r.mu.RLock()
	decode, ok := r.decoders[versionedType{eventType, version}]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("decoder not registered for %s@v%d", eventType, version)
	}
	return decode(payload)
}

// NewOrderDecoders covers every event carried on the orders topic.
func NewOrderDecoders() *DecoderRegistry {
	reg := NewDecoderRegistry()
	for _, et := range []enums.OutboxEventType{
		enums.EventOrderCreated,
		enums.EventOrderCancelled,
		enums.EventOrderStatusChanged,
		enums.EventCheckoutNeedsAttention,
	} {
		reg.Register(et, 1, currentPayloads[et])
	}
	return reg
}
