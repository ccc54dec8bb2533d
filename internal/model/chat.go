package model

import "time"

type ChatMessage struct {
	ID            string    `json:"id"`
	AppointmentID string    `json:"appointment_id"`
	SenderID      string    `json:"sender_id"`
	SenderName    string    `json:"sender_name"`
	Message       string    `json:"message"`
	CreatedAt     time.Time `json:"created_at"`
}

type SendMessageRequest struct {
	AppointmentID string `json:"appointment_id" binding:"required"`
	Message       string `json:"message"`
}

// ConversationSummary is the structured result of summarizing a chat thread.
type ConversationSummary struct {
	Summary           string   `json:"summary"`
	KeyPoints         []string `json:"key_points"`
	SymptomsMentioned []string `json:"symptoms_mentioned"`
	Recommendations   []string `json:"recommendations"`
}
