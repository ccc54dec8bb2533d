package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/medischedule-api/internal/model"
	"github.com/jwalitptl/medischedule-api/internal/testutil"
	"github.com/jwalitptl/medischedule-api/internal/worker"
	"github.com/jwalitptl/medischedule-api/pkg/metrics"
)

type chanBroker struct {
	ch chan []byte
}

func (b *chanBroker) Publish(_ context.Context, _ string, payload []byte) error {
	b.ch <- payload
	return nil
}

func (b *chanBroker) Subscribe(context.Context, string) (<-chan []byte, error) { return b.ch, nil }
func (b *chanBroker) Ping(context.Context) error                              { return nil }
func (b *chanBroker) Close() error                                            { close(b.ch); return nil }

func encode(t *testing.T, eventType model.EventType, payload interface{}) []byte {
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	msg, err := json.Marshal(model.DomainEvent{ID: model.NewID(), Type: eventType, Payload: raw})
	require.NoError(t, err)
	return msg
}

func newNotifier(f *testutil.Fixture, broker *chanBroker) (*worker.Notifier, *metrics.Metrics) {
	m := metrics.New(prometheus.NewRegistry(), "test")
	n := worker.NewNotifier(broker, f.Store.Users, f.Mail, worker.NotifierConfig{
		Channel:       "events",
		RetryAttempts: 2,
		RetryDelay:    time.Millisecond,
	}, m)
	return n, m
}

func TestNotifierEmailsPatientOnStatusChange(t *testing.T) {
	f := testutil.New(t)
	patient := f.Patient("p@example.com")
	n, m := newNotifier(f, &chanBroker{})

	n.Handle(f.Ctx, encode(t, model.EventAppointmentStatusChanged, model.AppointmentEventPayload{
		PatientID:       patient.ID,
		DoctorName:      "Dr. House",
		AppointmentDate: "2026-11-02",
		AppointmentTime: "10:00",
		Status:          model.AppointmentStatusConfirmed,
	}))

	msgs := f.Mail.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "p@example.com", msgs[0].To)
	assert.Equal(t, "Your appointment is confirmed", msgs[0].Subject)
	assert.Contains(t, msgs[0].Body, "Dr. House on 2026-11-02 at 10:00 is now confirmed")
	assert.Equal(t, 1.0, promtest.ToFloat64(m.EventsHandled.WithLabelValues(string(model.EventAppointmentStatusChanged), "ok")))
}

func TestNotifierEmailsDoctor(t *testing.T) {
	f := testutil.New(t)
	sp := f.Specialty("Cardiology")
	doc := f.Doctor("d@example.com", sp.ID, model.DoctorStatusPending)
	n, _ := newNotifier(f, &chanBroker{})

	n.Handle(f.Ctx, encode(t, model.EventAppointmentCreated, model.AppointmentEventPayload{DoctorID: doc.ID}))
	n.Handle(f.Ctx, encode(t, model.EventDoctorStatusChanged, model.DoctorStatusEventPayload{DoctorID: doc.ID, Status: model.DoctorStatusApproved}))

	msgs := f.Mail.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "New appointment request", msgs[0].Subject)
	assert.Equal(t, "Doctor profile review", msgs[1].Subject)
	assert.Contains(t, msgs[1].Body, "now approved")
}

func TestNotifierSkipsUnhandledAndMissingRecipients(t *testing.T) {
	f := testutil.New(t)
	n, m := newNotifier(f, &chanBroker{})

	n.Handle(f.Ctx, encode(t, model.EventChatMessageSent, model.ChatEventPayload{}))
	n.Handle(f.Ctx, encode(t, model.EventDoctorStatusChanged, model.DoctorStatusEventPayload{DoctorID: "gone"}))
	n.Handle(f.Ctx, []byte("not json"))

	assert.Empty(t, f.Mail.Messages())
	assert.Equal(t, 1.0, promtest.ToFloat64(m.EventsHandled.WithLabelValues(string(model.EventChatMessageSent), "skipped")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.EventsHandled.WithLabelValues(string(model.EventDoctorStatusChanged), "skipped")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.EventsHandled.WithLabelValues("unknown", "error")))
}

func TestNotifierCountsSendFailures(t *testing.T) {
	f := testutil.New(t)
	patient := f.Patient("p@example.com")
	f.Mail.Err = errors.New("smtp down")
	n, m := newNotifier(f, &chanBroker{})

	n.Handle(f.Ctx, encode(t, model.EventAppointmentStatusChanged, model.AppointmentEventPayload{
		PatientID: patient.ID,
		Status:    model.AppointmentStatusCancelled,
	}))

	assert.Equal(t, 1.0, promtest.ToFloat64(m.EventsHandled.WithLabelValues(string(model.EventAppointmentStatusChanged), "error")))
}

func TestNotifierStartConsumesUntilClosed(t *testing.T) {
	f := testutil.New(t)
	patient := f.Patient("p@example.com")
	broker := &chanBroker{ch: make(chan []byte, 1)}
	n, _ := newNotifier(f, broker)

	done := make(chan error, 1)
	go func() { done <- n.Start(context.Background()) }()

	require.NoError(t, broker.Publish(f.Ctx, "events", encode(t, model.EventAppointmentStatusChanged, model.AppointmentEventPayload{
		PatientID: patient.ID,
		Status:    model.AppointmentStatusCompleted,
	})))
	require.Eventually(t, func() bool { return len(f.Mail.Messages()) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, broker.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("notifier did not stop")
	}
}
