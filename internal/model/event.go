package model

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventAppointmentCreated       EventType = "appointment.created"
	EventAppointmentStatusChanged EventType = "appointment.status_changed"
	EventChatMessageSent          EventType = "chat.message_sent"
	EventDoctorStatusChanged      EventType = "doctor.status_changed"
	EventUserDeleted              EventType = "user.deleted"
)

// DomainEvent is the envelope published to the message broker.
type DomainEvent struct {
	ID         string          `json:"id"`
	Type       EventType       `json:"type"`
	ActorID    string          `json:"actor_id,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

type AppointmentEventPayload struct {
	AppointmentID   string            `json:"appointment_id"`
	PatientID       string            `json:"patient_id"`
	DoctorID        string            `json:"doctor_id"`
	DoctorName      string            `json:"doctor_name"`
	AppointmentDate string            `json:"appointment_date"`
	AppointmentTime string            `json:"appointment_time"`
	Status          AppointmentStatus `json:"status"`
	PreviousStatus  AppointmentStatus `json:"previous_status,omitempty"`
}

type ChatEventPayload struct {
	AppointmentID string `json:"appointment_id"`
	MessageID     string `json:"message_id"`
	SenderID      string `json:"sender_id"`
}

type DoctorStatusEventPayload struct {
	DoctorID string       `json:"doctor_id"`
	Status   DoctorStatus `json:"status"`
}

type UserDeletedEventPayload struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}
