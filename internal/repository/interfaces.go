package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jwalitptl/medischedule-api/internal/model"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	// ErrStale is returned by conditional updates whose precondition no longer holds.
	ErrStale = errors.New("record modified concurrently")
)

// All repository interfaces in one file
type (
	// UserRepository stores accounts. Email and username are unique after case folding.
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id string) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		GetByUsername(ctx context.Context, username string) (*model.User, error)
		List(ctx context.Context, filter model.UserFilter) ([]*model.User, error)
		CountByRole(ctx context.Context, role model.Role) (int64, error)
		UpdateRole(ctx context.Context, id string, role model.Role) error
		UpdatePermissions(ctx context.Context, id string, perms model.AdminPermissions) error
		Delete(ctx context.Context, id string) error
		Ping(ctx context.Context) error
	}

	DoctorProfileRepository interface {
		Create(ctx context.Context, profile *model.DoctorProfile) error
		Get(ctx context.Context, userID string) (*model.DoctorProfile, error)
		List(ctx context.Context, filter model.DoctorFilter) ([]*model.DoctorProfile, error)
		Count(ctx context.Context, filter model.DoctorFilter) (int64, error)
		Patch(ctx context.Context, userID string, patch model.DoctorProfilePatch) error
		UpdateSchedule(ctx context.Context, userID string, slots []model.TimeSlot) error
		UpdateStatus(ctx context.Context, userID string, status model.DoctorStatus) error
		SetDepartmentHead(ctx context.Context, userID string, isHead bool) error
		Delete(ctx context.Context, userID string) error
	}

	// SpecialtyRepository stores reference data. Names are unique case-insensitively.
	SpecialtyRepository interface {
		Create(ctx context.Context, specialty *model.Specialty) error
		Get(ctx context.Context, id string) (*model.Specialty, error)
		GetByName(ctx context.Context, name string) (*model.Specialty, error)
		List(ctx context.Context) ([]*model.Specialty, error)
	}

	// AppointmentRepository stores appointments. Active appointments occupy
	// their doctor slot uniquely; Create returns ErrDuplicate when taken.
	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id string) (*model.Appointment, error)
		// List returns matches sorted by (appointment_date, appointment_time) descending.
		List(ctx context.Context, filter model.AppointmentFilter) ([]*model.Appointment, error)
		Count(ctx context.Context, filter model.AppointmentFilter) (int64, error)
		// UpdateStatus moves the appointment from one status to another and
		// returns ErrStale when the stored status is no longer from.
		UpdateStatus(ctx context.Context, id string, from, to model.AppointmentStatus) error
		SetSummary(ctx context.Context, id, summary, createdBy string, at time.Time) error
		DeleteByPatient(ctx context.Context, patientID string) ([]string, error)
		DeleteByDoctor(ctx context.Context, doctorID string) ([]string, error)
	}

	ChatRepository interface {
		Create(ctx context.Context, msg *model.ChatMessage) error
		// ListByAppointment returns messages sorted by created_at ascending.
		ListByAppointment(ctx context.Context, appointmentID string) ([]*model.ChatMessage, error)
		DeleteByAppointments(ctx context.Context, appointmentIDs []string) (int64, error)
		DeleteBySender(ctx context.Context, senderID string) (int64, error)
	}

	AIChatRepository interface {
		Create(ctx context.Context, record *model.AiChatRecord) error
		// List returns a patient's records, optionally for one session, oldest first.
		List(ctx context.Context, patientID, sessionID string) ([]*model.AiChatRecord, error)
		// Recent returns the newest limit records of a session, oldest first.
		Recent(ctx context.Context, patientID, sessionID string, limit int) ([]*model.AiChatRecord, error)
		DeleteByPatient(ctx context.Context, patientID string) (int64, error)
	}
)

// Store bundles every repository behind one backend.
type Store struct {
	Users        UserRepository
	Doctors      DoctorProfileRepository
	Specialties  SpecialtyRepository
	Appointments AppointmentRepository
	Chats        ChatRepository
	AIChats      AIChatRepository
}
