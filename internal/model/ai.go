package model

import "time"

// AiChatRecord is one exchange with the assistant, grouped by session.
type AiChatRecord struct {
	ID          string    `json:"id"`
	PatientID   string    `json:"patient_id"`
	SessionID   string    `json:"session_id"`
	UserMessage string    `json:"user_message"`
	AIResponse  string    `json:"ai_response"`
	CreatedAt   time.Time `json:"created_at"`
}

type AIChatRequest struct {
	Message   string `json:"message" binding:"required,max=4000"`
	SessionID string `json:"session_id"`
}

type AIChatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

type RecommendDoctorRequest struct {
	Symptoms string `json:"symptoms" binding:"required,max=4000"`
}

type DoctorRecommendation struct {
	RecommendedSpecialty string       `json:"recommended_specialty"`
	SpecialtyID          string       `json:"specialty_id,omitempty"`
	Explanation          string       `json:"explanation"`
	UrgencyLevel         string       `json:"urgency_level"`
	RecommendedDoctors   []DoctorView `json:"recommended_doctors"`
}

type AIChatHistory struct {
	Sessions      map[string][]AiChatRecord `json:"sessions"`
	TotalMessages int                       `json:"total_messages"`
}
