package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/medischedule-api/internal/model"
	"github.com/jwalitptl/medischedule-api/internal/repository"
	"github.com/jwalitptl/medischedule-api/internal/service/auth"
	"github.com/jwalitptl/medischedule-api/internal/service/event"
	"github.com/jwalitptl/medischedule-api/internal/service/rbac"
	apperrors "github.com/jwalitptl/medischedule-api/pkg/errors"
)

// AccountCreator creates a user together with its doctor profile.
type AccountCreator interface {
	CreateAccount(ctx context.Context, params auth.AccountParams) (*model.User, error)
}

// Directory renders doctor profiles for listings.
type Directory interface {
	ListDoctors(ctx context.Context, filter model.DoctorFilter) ([]*model.DoctorView, error)
	SpecialtyName(ctx context.Context, id string) string
}

type Service struct {
	store     *repository.Store
	accounts  AccountCreator
	directory Directory
	authz     *rbac.Service
	events    event.Emitter
}

func NewService(store *repository.Store, accounts AccountCreator, directory Directory, authz *rbac.Service, events event.Emitter) *Service {
	return &Service{
		store:     store,
		accounts:  accounts,
		directory: directory,
		authz:     authz,
		events:    events,
	}
}

// CreateUser creates an account on behalf of an admin or department head.
// Doctors created this way skip the approval workflow.
func (s *Service) CreateUser(ctx context.Context, actor *model.User, req *model.CreateUserRequest) (*model.User, error) {
	if !req.Role.Valid() {
		return nil, apperrors.Validation("invalid role")
	}

	specialtyID := req.SpecialtyID
	switch actor.Role {
	case model.RoleAdmin:
		if err := s.authz.Authorize(actor, rbac.AdminWith(permissionForRole(req.Role))); err != nil {
			return nil, err
		}
		if req.Role.HasDoctorProfile() && specialtyID == "" {
			return nil, apperrors.Validation("specialty_id is required for doctors")
		}
	case model.RoleDepartmentHead:
		if req.Role != model.RoleDoctor && req.Role != model.RolePatient {
			return nil, apperrors.Forbidden("department heads may only create doctors and patients")
		}
		if err := s.authz.Authorize(actor, rbac.DepartmentHeadWith(permissionForRole(req.Role))); err != nil {
			return nil, err
		}
		head, err := s.authz.DepartmentProfile(ctx, actor)
		if err != nil {
			return nil, err
		}
		if req.Role == model.RoleDoctor {
			if specialtyID == "" {
				specialtyID = head.SpecialtyID
			}
			if specialtyID != head.SpecialtyID {
				return nil, apperrors.Forbidden("target is outside your specialty")
			}
		}
	default:
		return nil, apperrors.Forbidden("access denied for role " + string(actor.Role))
	}

	params := auth.AccountParams{
		Email:        req.Email,
		Password:     req.Password,
		FullName:     req.FullName,
		Username:     req.Username,
		Phone:        req.Phone,
		DateOfBirth:  req.DateOfBirth,
		Address:      req.Address,
		Role:         req.Role,
		DoctorStatus: model.DoctorStatusApproved,
	}
	if req.Role.HasDoctorProfile() {
		params.SpecialtyID = specialtyID
	}
	if req.Role == model.RoleAdmin || req.Role == model.RoleDepartmentHead {
		params.Permissions = req.AdminPermissions
	}

	user, err := s.accounts.CreateAccount(ctx, params)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("actor_id", actor.ID).
		Str("user_id", user.ID).
		Str("role", string(user.Role)).
		Msg("account created")
	return user, nil
}

func (s *Service) CreateAdmin(ctx context.Context, actor *model.User, req *model.CreateAdminRequest) (*model.User, error) {
	createReq := req.AsCreateUser()
	return s.CreateUser(ctx, actor, &createReq)
}

func (s *Service) ListAdmins(ctx context.Context) ([]*model.User, error) {
	return s.listUsers(ctx, model.UserFilter{Roles: []model.Role{model.RoleAdmin}})
}

func (s *Service) ListPatients(ctx context.Context) ([]*model.User, error) {
	return s.listUsers(ctx, model.UserFilter{Roles: []model.Role{model.RolePatient}})
}

func (s *Service) ListDoctors(ctx context.Context, status model.DoctorStatus) ([]*model.DoctorView, error) {
	return s.directory.ListDoctors(ctx, model.DoctorFilter{Status: status})
}

func (s *Service) ListAppointments(ctx context.Context) ([]*model.Appointment, error) {
	appointments, err := s.store.Appointments.List(ctx, model.AppointmentFilter{})
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list appointments: %w", err))
	}
	return appointments, nil
}

// UpdatePermissions replaces another admin's permission set.
func (s *Service) UpdatePermissions(ctx context.Context, actor *model.User, req *model.UpdatePermissionsRequest) (*model.User, error) {
	if err := rbac.RejectSelf(actor, req.AdminID, "change permissions of"); err != nil {
		return nil, err
	}
	if _, err := s.userWithRole(ctx, req.AdminID, "admin", model.RoleAdmin); err != nil {
		return nil, err
	}

	if err := s.store.Users.UpdatePermissions(ctx, req.AdminID, req.Permissions); err != nil {
		return nil, s.translate(err, "admin", "failed to update permissions")
	}
	log.Info().Str("actor_id", actor.ID).Str("admin_id", req.AdminID).Msg("admin permissions updated")
	return s.getUser(ctx, req.AdminID, "admin")
}

func (s *Service) DeleteAdmin(ctx context.Context, actor *model.User, id string) error {
	if err := rbac.RejectSelf(actor, id, "delete"); err != nil {
		return err
	}
	target, err := s.userWithRole(ctx, id, "admin", model.RoleAdmin)
	if err != nil {
		return err
	}
	return s.removeAccount(ctx, actor, target)
}

// DeleteUser removes any non-self account. The permission needed depends on
// the target's role.
func (s *Service) DeleteUser(ctx context.Context, actor *model.User, id string) error {
	if err := rbac.RejectSelf(actor, id, "delete"); err != nil {
		return err
	}
	target, err := s.getUser(ctx, id, "user")
	if err != nil {
		return err
	}
	if err := s.authz.Authorize(actor, rbac.AdminWith(permissionForRole(target.Role))); err != nil {
		return err
	}
	return s.removeAccount(ctx, actor, target)
}

// Promote turns a doctor into a department head. Department heads may only
// promote inside their own specialty.
func (s *Service) Promote(ctx context.Context, actor *model.User, doctorID string) (*model.User, error) {
	target, err := s.getUser(ctx, doctorID, "doctor")
	if err != nil {
		return nil, err
	}
	switch target.Role {
	case model.RoleDoctor:
	case model.RoleDepartmentHead:
		return nil, apperrors.Conflict("user is already a department head")
	default:
		return nil, apperrors.Validation("user is not a doctor")
	}

	profile, err := s.store.Doctors.Get(ctx, doctorID)
	if err != nil {
		return nil, s.translate(err, "doctor profile", "failed to get doctor profile")
	}
	if actor.Role == model.RoleDepartmentHead {
		if _, err := s.authz.RequireSameSpecialty(ctx, actor, profile.SpecialtyID); err != nil {
			return nil, err
		}
	}
	if profile.Status != model.DoctorStatusApproved {
		return nil, apperrors.Validation("only approved doctors can be promoted")
	}

	if err := s.store.Doctors.SetDepartmentHead(ctx, doctorID, true); err != nil {
		return nil, s.translate(err, "doctor profile", "failed to flag department head")
	}
	if err := s.store.Users.UpdateRole(ctx, doctorID, model.RoleDepartmentHead); err != nil {
		return nil, s.translate(err, "doctor", "failed to update role")
	}
	log.Info().Str("actor_id", actor.ID).Str("user_id", doctorID).Msg("doctor promoted to department head")
	return s.getUser(ctx, doctorID, "doctor")
}

// Demote returns a department head to the doctor role.
func (s *Service) Demote(ctx context.Context, actor *model.User, id string) (*model.User, error) {
	if err := rbac.RejectSelf(actor, id, "demote"); err != nil {
		return nil, err
	}
	target, err := s.getUser(ctx, id, "department head")
	if err != nil {
		return nil, err
	}
	if target.Role != model.RoleDepartmentHead {
		return nil, apperrors.Validation("user is not a department head")
	}

	if err := s.store.Users.UpdateRole(ctx, id, model.RoleDoctor); err != nil {
		return nil, s.translate(err, "department head", "failed to update role")
	}
	if err := s.store.Doctors.SetDepartmentHead(ctx, id, false); err != nil && !errors.Is(err, repository.ErrNotFound) {
		log.Warn().Err(err).Str("user_id", id).Msg("failed to clear department head flag")
	}
	log.Info().Str("actor_id", actor.ID).Str("user_id", id).Msg("department head demoted")
	return s.getUser(ctx, id, "department head")
}

// AddDoctor creates an approved doctor in the department head's specialty.
func (s *Service) AddDoctor(ctx context.Context, actor *model.User, req *model.CreateUserRequest) (*model.User, error) {
	req.Role = model.RoleDoctor
	req.AdminPermissions = nil
	return s.CreateUser(ctx, actor, req)
}

// DepartmentDoctors lists the doctors of the actor's specialty. Only approved
// ones are returned when approvedOnly is set.
func (s *Service) DepartmentDoctors(ctx context.Context, actor *model.User, approvedOnly bool) ([]*model.DoctorView, error) {
	head, err := s.authz.DepartmentProfile(ctx, actor)
	if err != nil {
		return nil, err
	}
	filter := model.DoctorFilter{SpecialtyID: head.SpecialtyID}
	if approvedOnly {
		filter.Status = model.DoctorStatusApproved
	}
	return s.directory.ListDoctors(ctx, filter)
}

// DepartmentPatients lists patients with at least one appointment in the
// actor's specialty.
func (s *Service) DepartmentPatients(ctx context.Context, actor *model.User) ([]*model.User, error) {
	head, err := s.authz.DepartmentProfile(ctx, actor)
	if err != nil {
		return nil, err
	}
	_, patientIDs, err := s.departmentActivity(ctx, head.SpecialtyID)
	if err != nil {
		return nil, err
	}
	return s.listUsers(ctx, model.UserFilter{Roles: []model.Role{model.RolePatient}, IDs: patientIDs})
}

// RemoveDoctor deletes a doctor of the actor's specialty.
func (s *Service) RemoveDoctor(ctx context.Context, actor *model.User, id string) error {
	if err := rbac.RejectSelf(actor, id, "delete"); err != nil {
		return err
	}
	profile, err := s.store.Doctors.Get(ctx, id)
	if err != nil {
		return s.translate(err, "doctor", "failed to get doctor profile")
	}
	if _, err := s.authz.RequireSameSpecialty(ctx, actor, profile.SpecialtyID); err != nil {
		return err
	}
	target, err := s.getUser(ctx, id, "doctor")
	if err != nil {
		return err
	}
	if target.Role != model.RoleDoctor {
		return apperrors.Forbidden("department heads can only remove doctors")
	}
	return s.removeAccount(ctx, actor, target)
}

// RemovePatient deletes a patient who has appointments in the actor's specialty.
func (s *Service) RemovePatient(ctx context.Context, actor *model.User, id string) error {
	if err := rbac.RejectSelf(actor, id, "delete"); err != nil {
		return err
	}
	head, err := s.authz.DepartmentProfile(ctx, actor)
	if err != nil {
		return err
	}
	target, err := s.userWithRole(ctx, id, "patient", model.RolePatient)
	if err != nil {
		return err
	}

	_, patientIDs, err := s.departmentActivity(ctx, head.SpecialtyID)
	if err != nil {
		return err
	}
	if !contains(patientIDs, id) {
		return apperrors.Forbidden("target is outside your specialty")
	}
	return s.removeAccount(ctx, actor, target)
}

func (s *Service) Stats(ctx context.Context) (*model.AdminStats, error) {
	var (
		out model.AdminStats
		err error
	)
	users := s.store.Users
	appointments := s.store.Appointments
	doctors := s.store.Doctors

	counters := []struct {
		dst *int64
		fn  func() (int64, error)
	}{
		{&out.TotalPatients, func() (int64, error) { return users.CountByRole(ctx, model.RolePatient) }},
		{&out.TotalDoctors, func() (int64, error) { return users.CountByRole(ctx, model.RoleDoctor) }},
		{&out.TotalDepartmentHeads, func() (int64, error) { return users.CountByRole(ctx, model.RoleDepartmentHead) }},
		{&out.TotalAdmins, func() (int64, error) { return users.CountByRole(ctx, model.RoleAdmin) }},
		{&out.TotalAppointments, func() (int64, error) { return appointments.Count(ctx, model.AppointmentFilter{}) }},
		{&out.PendingAppointments, countStatus(ctx, appointments, nil, model.AppointmentStatusPending)},
		{&out.ConfirmedAppointments, countStatus(ctx, appointments, nil, model.AppointmentStatusConfirmed)},
		{&out.CompletedAppointments, countStatus(ctx, appointments, nil, model.AppointmentStatusCompleted)},
		{&out.CancelledAppointments, countStatus(ctx, appointments, nil, model.AppointmentStatusCancelled)},
		{&out.OnlineConsultations, func() (int64, error) {
			return appointments.Count(ctx, model.AppointmentFilter{Type: model.AppointmentTypeOnline})
		}},
		{&out.InPersonConsultations, func() (int64, error) {
			return appointments.Count(ctx, model.AppointmentFilter{Type: model.AppointmentTypeInPerson})
		}},
		{&out.PendingDoctors, func() (int64, error) { return doctors.Count(ctx, model.DoctorFilter{Status: model.DoctorStatusPending}) }},
		{&out.ApprovedDoctors, func() (int64, error) { return doctors.Count(ctx, model.DoctorFilter{Status: model.DoctorStatusApproved}) }},
		{&out.RejectedDoctors, func() (int64, error) { return doctors.Count(ctx, model.DoctorFilter{Status: model.DoctorStatusRejected}) }},
	}
	for _, c := range counters {
		if *c.dst, err = c.fn(); err != nil {
			return nil, apperrors.Internal(fmt.Errorf("failed to compute stats: %w", err))
		}
	}
	return &out, nil
}

// DepartmentStats aggregates counts for the actor's specialty.
func (s *Service) DepartmentStats(ctx context.Context, actor *model.User) (*model.DepartmentHeadStats, error) {
	head, err := s.authz.DepartmentProfile(ctx, actor)
	if err != nil {
		return nil, err
	}
	out := &model.DepartmentHeadStats{
		SpecialtyID:   head.SpecialtyID,
		SpecialtyName: s.directory.SpecialtyName(ctx, head.SpecialtyID),
	}

	doctors := s.store.Doctors
	all := model.DoctorFilter{SpecialtyID: head.SpecialtyID}
	approved := model.DoctorFilter{SpecialtyID: head.SpecialtyID, Status: model.DoctorStatusApproved}
	pending := model.DoctorFilter{SpecialtyID: head.SpecialtyID, Status: model.DoctorStatusPending}
	if out.TotalDoctors, err = doctors.Count(ctx, all); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to count doctors: %w", err))
	}
	if out.ApprovedDoctors, err = doctors.Count(ctx, approved); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to count doctors: %w", err))
	}
	if out.PendingDoctors, err = doctors.Count(ctx, pending); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to count doctors: %w", err))
	}

	doctorIDs, patientIDs, err := s.departmentActivity(ctx, head.SpecialtyID)
	if err != nil {
		return nil, err
	}
	out.TotalPatients = int64(len(patientIDs))

	appointments := s.store.Appointments
	counters := []struct {
		dst *int64
		fn  func() (int64, error)
	}{
		{&out.TotalAppointments, func() (int64, error) {
			return appointments.Count(ctx, model.AppointmentFilter{DoctorIDs: doctorIDs})
		}},
		{&out.PendingAppointments, countStatus(ctx, appointments, doctorIDs, model.AppointmentStatusPending)},
		{&out.ConfirmedAppointments, countStatus(ctx, appointments, doctorIDs, model.AppointmentStatusConfirmed)},
		{&out.CompletedAppointments, countStatus(ctx, appointments, doctorIDs, model.AppointmentStatusCompleted)},
		{&out.CancelledAppointments, countStatus(ctx, appointments, doctorIDs, model.AppointmentStatusCancelled)},
	}
	for _, c := range counters {
		if *c.dst, err = c.fn(); err != nil {
			return nil, apperrors.Internal(fmt.Errorf("failed to compute stats: %w", err))
		}
	}
	return out, nil
}

// departmentActivity returns the doctor ids of a specialty and the distinct
// patients that booked any of them.
func (s *Service) departmentActivity(ctx context.Context, specialtyID string) ([]string, []string, error) {
	profiles, err := s.store.Doctors.List(ctx, model.DoctorFilter{SpecialtyID: specialtyID})
	if err != nil {
		return nil, nil, apperrors.Internal(fmt.Errorf("failed to list doctors: %w", err))
	}
	doctorIDs := make([]string, 0, len(profiles))
	for _, p := range profiles {
		doctorIDs = append(doctorIDs, p.UserID)
	}

	appointments, err := s.store.Appointments.List(ctx, model.AppointmentFilter{DoctorIDs: doctorIDs})
	if err != nil {
		return nil, nil, apperrors.Internal(fmt.Errorf("failed to list appointments: %w", err))
	}
	seen := make(map[string]bool)
	patientIDs := make([]string, 0)
	for _, a := range appointments {
		if !seen[a.PatientID] {
			seen[a.PatientID] = true
			patientIDs = append(patientIDs, a.PatientID)
		}
	}
	return doctorIDs, patientIDs, nil
}

// removeAccount deletes the account first, then its dependents. Failures
// after the account is gone are logged and leave the rest in place.
func (s *Service) removeAccount(ctx context.Context, actor, target *model.User) error {
	if err := s.store.Users.Delete(ctx, target.ID); err != nil {
		return s.translate(err, "user", "failed to delete user")
	}

	logger := log.With().Str("actor_id", actor.ID).Str("user_id", target.ID).Logger()
	var appointmentIDs []string
	var err error
	switch {
	case target.Role.HasDoctorProfile():
		if err := s.store.Doctors.Delete(ctx, target.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			logger.Warn().Err(err).Msg("cascade: failed to delete doctor profile")
		}
		if appointmentIDs, err = s.store.Appointments.DeleteByDoctor(ctx, target.ID); err != nil {
			logger.Warn().Err(err).Msg("cascade: failed to delete doctor appointments")
		}
	case target.Role == model.RolePatient:
		if appointmentIDs, err = s.store.Appointments.DeleteByPatient(ctx, target.ID); err != nil {
			logger.Warn().Err(err).Msg("cascade: failed to delete patient appointments")
		}
		if _, err := s.store.AIChats.DeleteByPatient(ctx, target.ID); err != nil {
			logger.Warn().Err(err).Msg("cascade: failed to delete ai chat history")
		}
	}

	if len(appointmentIDs) > 0 {
		if _, err := s.store.Chats.DeleteByAppointments(ctx, appointmentIDs); err != nil {
			logger.Warn().Err(err).Msg("cascade: failed to delete chat messages")
		}
	}
	if _, err := s.store.Chats.DeleteBySender(ctx, target.ID); err != nil {
		logger.Warn().Err(err).Msg("cascade: failed to delete sent messages")
	}

	logger.Info().Str("role", string(target.Role)).Int("appointments", len(appointmentIDs)).Msg("account removed")
	s.events.Emit(ctx, model.EventUserDeleted, actor.ID, model.UserDeletedEventPayload{
		UserID: target.ID,
		Role:   target.Role,
	})
	return nil
}

func (s *Service) listUsers(ctx context.Context, filter model.UserFilter) ([]*model.User, error) {
	users, err := s.store.Users.List(ctx, filter)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list users: %w", err))
	}
	return users, nil
}

func (s *Service) getUser(ctx context.Context, id, resource string) (*model.User, error) {
	user, err := s.store.Users.Get(ctx, id)
	if err != nil {
		return nil, s.translate(err, resource, "failed to get user")
	}
	return user, nil
}

// userWithRole loads id and reports NotFound unless it holds role.
func (s *Service) userWithRole(ctx context.Context, id, resource string, role model.Role) (*model.User, error) {
	user, err := s.getUser(ctx, id, resource)
	if err != nil {
		return nil, err
	}
	if user.Role != role {
		return nil, apperrors.NotFound(resource)
	}
	return user, nil
}

func (s *Service) translate(err error, resource, msg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound(resource)
	}
	return apperrors.Internal(fmt.Errorf("%s: %w", msg, err))
}

// permissionForRole is the admin permission that governs accounts of role.
func permissionForRole(role model.Role) model.Permission {
	switch role {
	case model.RoleAdmin:
		return model.PermCreateAdmins
	case model.RoleDoctor, model.RoleDepartmentHead:
		return model.PermManageDoctors
	default:
		return model.PermManagePatients
	}
}

func countStatus(ctx context.Context, repo repository.AppointmentRepository, doctorIDs []string, status model.AppointmentStatus) func() (int64, error) {
	return func() (int64, error) {
		return repo.Count(ctx, model.AppointmentFilter{DoctorIDs: doctorIDs, Statuses: []model.AppointmentStatus{status}})
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
