package model

import "time"

type AppointmentType string

const (
	AppointmentTypeInPerson AppointmentType = "in_person"
	AppointmentTypeOnline   AppointmentType = "online"
)

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
)

var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusPending:   {AppointmentStatusConfirmed, AppointmentStatusCancelled},
	AppointmentStatusConfirmed: {AppointmentStatusCompleted, AppointmentStatusCancelled},
}

func (s AppointmentStatus) IsTerminal() bool {
	return s == AppointmentStatusCompleted || s == AppointmentStatusCancelled
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	for _, allowed := range appointmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Appointment struct {
	ID                  string            `json:"id"`
	PatientID           string            `json:"patient_id"`
	PatientName         string            `json:"patient_name"`
	DoctorID            string            `json:"doctor_id"`
	DoctorName          string            `json:"doctor_name"`
	AppointmentType     AppointmentType   `json:"appointment_type"`
	AppointmentDate     string            `json:"appointment_date"`
	AppointmentTime     string            `json:"appointment_time"`
	Symptoms            string            `json:"symptoms,omitempty"`
	Status              AppointmentStatus `json:"status"`
	ConversationSummary string            `json:"conversation_summary,omitempty"`
	SummaryCreatedAt    *time.Time        `json:"summary_created_at,omitempty"`
	SummaryCreatedBy    string            `json:"summary_created_by,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
}

// IsParticipant reports whether userID is the appointment's patient or doctor.
func (a *Appointment) IsParticipant(userID string) bool {
	return userID != "" && (a.PatientID == userID || a.DoctorID == userID)
}

// AppointmentFilter narrows appointment queries. Empty fields match
// everything; a non-nil empty DoctorIDs matches nothing.
type AppointmentFilter struct {
	PatientID string
	DoctorID  string
	DoctorIDs []string
	Type      AppointmentType
	Statuses  []AppointmentStatus
}

// SlotKey identifies the doctor time slot an active appointment occupies.
func (a *Appointment) SlotKey() string {
	return a.DoctorID + "|" + a.AppointmentDate + "|" + a.AppointmentTime
}

type CreateAppointmentRequest struct {
	DoctorID        string          `json:"doctor_id" binding:"required"`
	AppointmentType AppointmentType `json:"appointment_type" binding:"required,oneof=in_person online"`
	AppointmentDate string          `json:"appointment_date" binding:"required,isodate"`
	AppointmentTime string          `json:"appointment_time" binding:"required,clocktime"`
	Symptoms        string          `json:"symptoms" binding:"max=2000"`
}

type UpdateAppointmentStatusRequest struct {
	Status AppointmentStatus `json:"status" binding:"required"`
}
