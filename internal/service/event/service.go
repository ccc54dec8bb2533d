package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/medischedule-api/internal/model"
	"github.com/jwalitptl/medischedule-api/pkg/messaging"
	"github.com/jwalitptl/medischedule-api/pkg/metrics"
)

const publishTimeout = 2 * time.Second

// Emitter records that something happened. Delivery is best effort and never
// fails the caller.
type Emitter interface {
	Emit(ctx context.Context, eventType model.EventType, actorID string, payload interface{})
}

type Service struct {
	broker  messaging.Broker
	channel string
	metrics *metrics.Metrics
}

func NewService(broker messaging.Broker, channel string, m *metrics.Metrics) *Service {
	if broker == nil {
		broker = messaging.NopBroker{}
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Service{broker: broker, channel: channel, metrics: m}
}

func (s *Service) Emit(ctx context.Context, eventType model.EventType, actorID string, payload interface{}) {
	err := s.publish(ctx, eventType, actorID, payload)
	s.metrics.EventsPublished.WithLabelValues(string(eventType), metrics.Status(err)).Inc()
	if err != nil {
		log.Warn().Err(err).Str("event_type", string(eventType)).Msg("failed to publish event")
	}
}

func (s *Service) publish(ctx context.Context, eventType model.EventType, actorID string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	evt := model.DomainEvent{
		ID:         model.NewID(),
		Type:       eventType,
		ActorID:    actorID,
		Payload:    raw,
		OccurredAt: time.Now().UTC(),
	}
	msg, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// The state change is already stored; a cancelled request must not drop the event.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.broker.Publish(pubCtx, s.channel, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Decode parses a broker payload into an event envelope.
func Decode(data []byte) (*model.DomainEvent, error) {
	var evt model.DomainEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}
	return &evt, nil
}
