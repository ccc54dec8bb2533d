package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/medischedule-api/internal/email"
	"github.com/jwalitptl/medischedule-api/internal/model"
	"github.com/jwalitptl/medischedule-api/internal/repository"
	"github.com/jwalitptl/medischedule-api/internal/service/event"
	"github.com/jwalitptl/medischedule-api/pkg/messaging"
	"github.com/jwalitptl/medischedule-api/pkg/metrics"
)

// errSkipped marks events the notifier has nothing to send for.
var errSkipped = errors.New("event skipped")

type NotifierConfig struct {
	Channel       string
	RetryAttempts int
	RetryDelay    time.Duration
}

// Notifier consumes domain events and emails the people they concern.
type Notifier struct {
	broker  messaging.Broker
	users   repository.UserRepository
	mailer  email.Service
	config  NotifierConfig
	metrics *metrics.Metrics
}

func NewNotifier(broker messaging.Broker, users repository.UserRepository, mailer email.Service, config NotifierConfig, m *metrics.Metrics) *Notifier {
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = 3
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 2 * time.Second
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Notifier{
		broker:  broker,
		users:   users,
		mailer:  mailer,
		config:  config,
		metrics: m,
	}
}

// Start blocks until ctx is done or the subscription closes.
func (n *Notifier) Start(ctx context.Context) error {
	messages, err := n.broker.Subscribe(ctx, n.config.Channel)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", n.config.Channel, err)
	}

	log.Info().Str("channel", n.config.Channel).Msg("Starting notification worker")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Shutting down notification worker")
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			n.Handle(ctx, msg)
		}
	}
}

// Handle processes one broker message. Failures are logged and counted.
func (n *Notifier) Handle(ctx context.Context, msg []byte) {
	evt, err := event.Decode(msg)
	if err != nil {
		n.metrics.EventsHandled.WithLabelValues("unknown", "error").Inc()
		log.Warn().Err(err).Msg("Dropping malformed event")
		return
	}

	err = retry(ctx, n.config.RetryAttempts, n.config.RetryDelay, func() error {
		return n.dispatch(ctx, evt)
	})
	switch {
	case errors.Is(err, errSkipped):
		n.metrics.EventsHandled.WithLabelValues(string(evt.Type), "skipped").Inc()
	case err != nil:
		n.metrics.EventsHandled.WithLabelValues(string(evt.Type), "error").Inc()
		log.Error().Err(err).Str("event_id", evt.ID).Str("event_type", string(evt.Type)).Msg("Failed to handle event")
	default:
		n.metrics.EventsHandled.WithLabelValues(string(evt.Type), "ok").Inc()
	}
}

func (n *Notifier) dispatch(ctx context.Context, evt *model.DomainEvent) error {
	switch evt.Type {
	case model.EventAppointmentStatusChanged:
		var p model.AppointmentEventPayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return fmt.Errorf("%w: %v", errSkipped, err)
		}
		subject := fmt.Sprintf("Your appointment is %s", p.Status)
		body := fmt.Sprintf("Your appointment with %s on %s at %s is now %s.",
			p.DoctorName, p.AppointmentDate, p.AppointmentTime, p.Status)
		return n.notify(ctx, p.PatientID, subject, body)

	case model.EventAppointmentCreated:
		var p model.AppointmentEventPayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return fmt.Errorf("%w: %v", errSkipped, err)
		}
		body := fmt.Sprintf("A patient requested an appointment on %s at %s.", p.AppointmentDate, p.AppointmentTime)
		return n.notify(ctx, p.DoctorID, "New appointment request", body)

	case model.EventDoctorStatusChanged:
		var p model.DoctorStatusEventPayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil {
			return fmt.Errorf("%w: %v", errSkipped, err)
		}
		body := fmt.Sprintf("Your doctor profile is now %s.", p.Status)
		return n.notify(ctx, p.DoctorID, "Doctor profile review", body)
	}
	return errSkipped
}

func (n *Notifier) notify(ctx context.Context, userID, subject, body string) error {
	user, err := n.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: recipient %s no longer exists", errSkipped, userID)
		}
		return fmt.Errorf("failed to load recipient: %w", err)
	}
	greeting := fmt.Sprintf("Hello %s,\n\n%s\n", user.FullName, body)
	return n.mailer.SendCustom(ctx, user.Email, subject, greeting)
}

// retry runs fn up to attempts times. Skipped events are not retried.
func retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || errors.Is(err, errSkipped) {
			return err
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return err
}
