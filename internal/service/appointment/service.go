package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/medischedule-api/internal/model"
	"github.com/jwalitptl/medischedule-api/internal/repository"
	"github.com/jwalitptl/medischedule-api/internal/service/event"
	"github.com/jwalitptl/medischedule-api/internal/service/rbac"
	apperrors "github.com/jwalitptl/medischedule-api/pkg/errors"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

type Service struct {
	repo    repository.AppointmentRepository
	doctors repository.DoctorProfileRepository
	users   repository.UserRepository
	events  event.Emitter
}

func NewService(store *repository.Store, events event.Emitter) *Service {
	return &Service{
		repo:    store.Appointments,
		doctors: store.Doctors,
		users:   store.Users,
		events:  events,
	}
}

// Create books an appointment with an approved doctor. Names are copied at
// booking time and never refreshed.
func (s *Service) Create(ctx context.Context, patient *model.User, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	if err := validateSlot(req.AppointmentDate, req.AppointmentTime); err != nil {
		return nil, err
	}
	if req.AppointmentType != model.AppointmentTypeInPerson && req.AppointmentType != model.AppointmentTypeOnline {
		return nil, apperrors.Validation("appointment_type must be in_person or online")
	}

	profile, err := s.doctors.Get(ctx, req.DoctorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("doctor")
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to get doctor profile: %w", err))
	}
	if profile.Status != model.DoctorStatusApproved {
		return nil, apperrors.NotFound("doctor")
	}
	doctor, err := s.users.Get(ctx, req.DoctorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("doctor")
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to get doctor: %w", err))
	}

	apt := &model.Appointment{
		ID:              model.NewID(),
		PatientID:       patient.ID,
		PatientName:     patient.FullName,
		DoctorID:        doctor.ID,
		DoctorName:      doctor.FullName,
		AppointmentType: req.AppointmentType,
		AppointmentDate: req.AppointmentDate,
		AppointmentTime: req.AppointmentTime,
		Symptoms:        strings.TrimSpace(req.Symptoms),
		Status:          model.AppointmentStatusPending,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, apt); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict("doctor already has an appointment at this time")
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to create appointment: %w", err))
	}

	s.events.Emit(ctx, model.EventAppointmentCreated, patient.ID, payloadOf(apt, ""))
	return apt, nil
}

// ListMine returns the caller's appointments, newest date and time first.
func (s *Service) ListMine(ctx context.Context, user *model.User) ([]*model.Appointment, error) {
	var filter model.AppointmentFilter
	switch {
	case user.Role == model.RolePatient:
		filter.PatientID = user.ID
	case user.Role.HasDoctorProfile():
		filter.DoctorID = user.ID
	default:
		return nil, apperrors.Forbidden("access denied for role " + string(user.Role))
	}
	return s.List(ctx, filter)
}

func (s *Service) List(ctx context.Context, filter model.AppointmentFilter) ([]*model.Appointment, error) {
	appointments, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list appointments: %w", err))
	}
	return appointments, nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.Appointment, error) {
	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("appointment")
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to get appointment: %w", err))
	}
	return apt, nil
}

// SetStatus moves an appointment one step along its lifecycle. Only the
// appointment's own doctor may do this.
func (s *Service) SetStatus(ctx context.Context, doctor *model.User, id string, status model.AppointmentStatus) (*model.Appointment, error) {
	apt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := rbac.RequireSelfOwner(doctor, apt.DoctorID); err != nil {
		return nil, err
	}
	if !apt.Status.CanTransitionTo(status) {
		return nil, apperrors.Validation(fmt.Sprintf("invalid status transition from %s to %s", apt.Status, status))
	}

	previous := apt.Status
	if err := s.repo.UpdateStatus(ctx, id, previous, status); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperrors.NotFound("appointment")
		case errors.Is(err, repository.ErrStale):
			return nil, apperrors.Conflict("appointment status changed concurrently")
		case errors.Is(err, repository.ErrDuplicate):
			return nil, apperrors.Conflict("doctor already has an appointment at this time")
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to update appointment status: %w", err))
	}
	apt.Status = status

	log.Info().
		Str("appointment_id", id).
		Str("doctor_id", doctor.ID).
		Str("from", string(previous)).
		Str("to", string(status)).
		Msg("appointment status changed")
	s.events.Emit(ctx, model.EventAppointmentStatusChanged, doctor.ID, payloadOf(apt, previous))

	return apt, nil
}

func validateSlot(date, clock string) error {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return apperrors.Validation("appointment_date must be YYYY-MM-DD")
	}
	if _, err := time.Parse(timeLayout, clock); err != nil || len(clock) != len(timeLayout) {
		return apperrors.Validation("appointment_time must be HH:MM")
	}
	return nil
}

func payloadOf(apt *model.Appointment, previous model.AppointmentStatus) model.AppointmentEventPayload {
	return model.AppointmentEventPayload{
		AppointmentID:   apt.ID,
		PatientID:       apt.PatientID,
		DoctorID:        apt.DoctorID,
		DoctorName:      apt.DoctorName,
		AppointmentDate: apt.AppointmentDate,
		AppointmentTime: apt.AppointmentTime,
		Status:          apt.Status,
		PreviousStatus:  previous,
	}
}
