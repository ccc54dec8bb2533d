package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/medischedule-api/internal/model"
	"github.com/jwalitptl/medischedule-api/internal/repository"
	"github.com/jwalitptl/medischedule-api/internal/service/event"
	"github.com/jwalitptl/medischedule-api/internal/service/rbac"
	apperrors "github.com/jwalitptl/medischedule-api/pkg/errors"
)

const (
	specialtyNameTTL     = 10 * time.Minute
	specialtyNameCleanup = 20 * time.Minute
)

var weekdays = map[string]bool{
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
}

type Service struct {
	doctors     repository.DoctorProfileRepository
	users       repository.UserRepository
	specialties repository.SpecialtyRepository
	authz       *rbac.Service
	events      event.Emitter
	names       *cache.Cache
}

func NewService(store *repository.Store, authz *rbac.Service, events event.Emitter) *Service {
	return &Service{
		doctors:     store.Doctors,
		users:       store.Users,
		specialties: store.Specialties,
		authz:       authz,
		events:      events,
		names:       cache.New(specialtyNameTTL, specialtyNameCleanup),
	}
}

func (s *Service) ListSpecialties(ctx context.Context) ([]*model.Specialty, error) {
	specialties, err := s.specialties.List(ctx)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list specialties: %w", err))
	}
	return specialties, nil
}

func (s *Service) GetSpecialty(ctx context.Context, id string) (*model.Specialty, error) {
	specialty, err := s.specialties.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("specialty")
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to get specialty: %w", err))
	}
	return specialty, nil
}

func (s *Service) CreateSpecialty(ctx context.Context, req *model.CreateSpecialtyRequest) (*model.Specialty, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperrors.Validation("name is required")
	}

	specialty := &model.Specialty{
		ID:          model.NewID(),
		Name:        name,
		Description: strings.TrimSpace(req.Description),
	}
	if err := s.specialties.Create(ctx, specialty); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict("specialty already exists")
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to create specialty: %w", err))
	}
	s.names.SetDefault(specialty.ID, specialty.Name)
	return specialty, nil
}

// ListApprovedDoctors is the patient-facing directory.
func (s *Service) ListApprovedDoctors(ctx context.Context, specialtyID string) ([]*model.DoctorView, error) {
	return s.ListDoctors(ctx, model.DoctorFilter{SpecialtyID: specialtyID, Status: model.DoctorStatusApproved})
}

func (s *Service) ListDoctors(ctx context.Context, filter model.DoctorFilter) ([]*model.DoctorView, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperrors.Validation("invalid doctor status")
	}
	profiles, err := s.doctors.List(ctx, filter)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list doctors: %w", err))
	}
	return s.Enrich(ctx, profiles)
}

func (s *Service) GetDoctor(ctx context.Context, userID string) (*model.DoctorView, error) {
	profile, err := s.profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	views, err := s.Enrich(ctx, []*model.DoctorProfile{profile})
	if err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, apperrors.NotFound("doctor")
	}
	return views[0], nil
}

// UpdateOwnProfile applies the non-nil fields of patch to the doctor's own profile.
func (s *Service) UpdateOwnProfile(ctx context.Context, doctor *model.User, patch *model.DoctorProfilePatch) (*model.DoctorView, error) {
	current, err := s.profile(ctx, doctor.ID)
	if err != nil {
		return nil, err
	}
	if patch.SpecialtyID != nil && *patch.SpecialtyID != current.SpecialtyID {
		// A department head's specialty is the scope of their powers.
		if doctor.Role == model.RoleDepartmentHead {
			return nil, apperrors.Forbidden("department heads cannot change their own specialty")
		}
		if _, err := s.GetSpecialty(ctx, *patch.SpecialtyID); err != nil {
			return nil, err
		}
	}

	if !patch.Empty() {
		if err := s.doctors.Patch(ctx, doctor.ID, *patch); err != nil {
			return nil, s.translate(err, "failed to update doctor profile")
		}
	}
	return s.GetDoctor(ctx, doctor.ID)
}

// UpdateOwnSchedule replaces the doctor's available slots.
func (s *Service) UpdateOwnSchedule(ctx context.Context, doctor *model.User, slots []model.TimeSlot) (*model.DoctorView, error) {
	if _, err := s.profile(ctx, doctor.ID); err != nil {
		return nil, err
	}

	normalized := make([]model.TimeSlot, 0, len(slots))
	for i, slot := range slots {
		day := strings.ToLower(strings.TrimSpace(slot.Day))
		if !weekdays[day] {
			return nil, apperrors.Validation(fmt.Sprintf("available_slots[%d]: invalid day %q", i, slot.Day))
		}
		// HH:MM strings order lexicographically.
		if slot.StartTime >= slot.EndTime {
			return nil, apperrors.Validation(fmt.Sprintf("available_slots[%d]: start_time must be before end_time", i))
		}
		normalized = append(normalized, model.TimeSlot{Day: day, StartTime: slot.StartTime, EndTime: slot.EndTime})
	}

	if err := s.doctors.UpdateSchedule(ctx, doctor.ID, normalized); err != nil {
		return nil, s.translate(err, "failed to update schedule")
	}
	return s.GetDoctor(ctx, doctor.ID)
}

// ApproveDoctor sets a doctor's approval status. Department heads are limited
// to doctors of their own specialty.
func (s *Service) ApproveDoctor(ctx context.Context, actor *model.User, doctorID string, status model.DoctorStatus) (*model.DoctorView, error) {
	if status == "" {
		status = model.DoctorStatusApproved
	}
	if !status.Valid() {
		return nil, apperrors.Validation("invalid doctor status")
	}

	if actor.Role == model.RoleDepartmentHead {
		if err := rbac.RejectSelf(actor, doctorID, "change the status of"); err != nil {
			return nil, err
		}
	}
	profile, err := s.profile(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if actor.Role == model.RoleDepartmentHead {
		if _, err := s.authz.RequireSameSpecialty(ctx, actor, profile.SpecialtyID); err != nil {
			return nil, err
		}
		target, err := s.users.Get(ctx, doctorID)
		if err != nil {
			return nil, s.translate(err, "failed to get doctor account")
		}
		if target.Role != model.RoleDoctor {
			return nil, apperrors.Forbidden("department heads can only change the status of doctors")
		}
	}

	if err := s.doctors.UpdateStatus(ctx, doctorID, status); err != nil {
		return nil, s.translate(err, "failed to update doctor status")
	}

	log.Info().
		Str("doctor_id", doctorID).
		Str("actor_id", actor.ID).
		Str("status", string(status)).
		Msg("doctor status updated")
	s.events.Emit(ctx, model.EventDoctorStatusChanged, actor.ID, model.DoctorStatusEventPayload{
		DoctorID: doctorID,
		Status:   status,
	})

	return s.GetDoctor(ctx, doctorID)
}

// Enrich joins profiles with their account and specialty names. Profiles whose
// account no longer exists are skipped.
func (s *Service) Enrich(ctx context.Context, profiles []*model.DoctorProfile) ([]*model.DoctorView, error) {
	views := make([]*model.DoctorView, 0, len(profiles))
	if len(profiles) == 0 {
		return views, nil
	}

	ids := make([]string, 0, len(profiles))
	for _, p := range profiles {
		ids = append(ids, p.UserID)
	}
	users, err := s.users.List(ctx, model.UserFilter{IDs: ids})
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to load doctor accounts: %w", err))
	}
	byID := make(map[string]*model.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	for _, p := range profiles {
		u, ok := byID[p.UserID]
		if !ok {
			log.Warn().Str("user_id", p.UserID).Msg("doctor profile without account")
			continue
		}
		views = append(views, &model.DoctorView{
			DoctorProfile: *p,
			FullName:      u.FullName,
			Email:         u.Email,
			Phone:         u.Phone,
			SpecialtyName: s.SpecialtyName(ctx, p.SpecialtyID),
		})
	}
	return views, nil
}

// SpecialtyName resolves a specialty id through the name cache. Unknown ids
// resolve to the empty string.
func (s *Service) SpecialtyName(ctx context.Context, id string) string {
	if id == "" {
		return ""
	}
	if name, ok := s.names.Get(id); ok {
		return name.(string)
	}

	specialty, err := s.specialties.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Warn().Err(err).Str("specialty_id", id).Msg("failed to resolve specialty name")
		}
		return ""
	}
	s.names.SetDefault(id, specialty.Name)
	return specialty.Name
}

func (s *Service) profile(ctx context.Context, userID string) (*model.DoctorProfile, error) {
	profile, err := s.doctors.Get(ctx, userID)
	if err != nil {
		return nil, s.translate(err, "failed to get doctor profile")
	}
	return profile, nil
}

func (s *Service) translate(err error, msg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("doctor")
	}
	return apperrors.Internal(fmt.Errorf("%s: %w", msg, err))
}
