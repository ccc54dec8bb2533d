package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jwalitptl/medischedule-api/internal/model"
	"github.com/jwalitptl/medischedule-api/internal/repository"
	"github.com/jwalitptl/medischedule-api/pkg/auth"
	apperrors "github.com/jwalitptl/medischedule-api/pkg/errors"
)

// Requirement is what an operation demands of its caller: membership in a
// role set and, for admins and department heads, an optional permission flag.
type Requirement struct {
	Roles      []model.Role
	Permission model.Permission
}

// Roles requires the caller to hold one of roles.
func Roles(roles ...model.Role) Requirement {
	return Requirement{Roles: roles}
}

// AdminWith requires an admin holding perm.
func AdminWith(perm model.Permission) Requirement {
	return Requirement{Roles: []model.Role{model.RoleAdmin}, Permission: perm}
}

// DepartmentHeadWith requires a department head holding perm.
func DepartmentHeadWith(perm model.Permission) Requirement {
	return Requirement{Roles: []model.Role{model.RoleDepartmentHead}, Permission: perm}
}

type Service struct {
	users   repository.UserRepository
	doctors repository.DoctorProfileRepository
	tokens  auth.JWTService
}

func NewService(users repository.UserRepository, doctors repository.DoctorProfileRepository, tokens auth.JWTService) *Service {
	return &Service{
		users:   users,
		doctors: doctors,
		tokens:  tokens,
	}
}

// Authenticate resolves a bearer token to the current stored user. Tokens of
// deleted users are rejected here because tokens are never revoked.
func (s *Service) Authenticate(ctx context.Context, token string) (*model.User, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, apperrors.Unauthenticated("token expired")
		}
		return nil, apperrors.Unauthenticated("invalid token")
	}

	user, err := s.users.Get(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Unauthenticated("user not found")
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to load token subject: %w", err))
	}
	return user, nil
}

// Authorize checks user against req and fails closed.
func (s *Service) Authorize(user *model.User, req Requirement) error {
	if user == nil {
		return apperrors.Unauthenticated("not authenticated")
	}

	allowed := len(req.Roles) == 0
	for _, r := range req.Roles {
		if user.Role == r {
			allowed = true
			break
		}
	}
	if !allowed {
		return apperrors.Forbidden("access denied for role " + string(user.Role))
	}

	holdsFlags := user.Role == model.RoleAdmin || user.Role == model.RoleDepartmentHead
	if req.Permission != "" && holdsFlags && !user.Permissions().Has(req.Permission) {
		return apperrors.Forbidden(fmt.Sprintf("missing permission %s", req.Permission))
	}
	return nil
}

// RequireSelfOwner checks that user owns a resource attributed to ownerID.
func RequireSelfOwner(user *model.User, ownerID string) error {
	if user == nil || ownerID == "" || user.ID != ownerID {
		return apperrors.Forbidden("not the owner of this resource")
	}
	return nil
}

// RequireParticipant checks that user is the patient or doctor of appointment.
func RequireParticipant(user *model.User, appointment *model.Appointment) error {
	if user == nil || !appointment.IsParticipant(user.ID) {
		return apperrors.Forbidden("not a participant of this appointment")
	}
	return nil
}

// RejectSelf blocks operations an actor may never apply to their own account.
func RejectSelf(actor *model.User, targetID, action string) error {
	if actor.ID == targetID {
		return apperrors.Validation(fmt.Sprintf("cannot %s your own account", action))
	}
	return nil
}

// DepartmentProfile loads the approved profile that scopes a department head.
func (s *Service) DepartmentProfile(ctx context.Context, actor *model.User) (*model.DoctorProfile, error) {
	if actor.Role != model.RoleDepartmentHead {
		return nil, apperrors.Forbidden("department head access required")
	}

	profile, err := s.doctors.Get(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("department head profile")
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to load department head profile: %w", err))
	}
	if profile.Status != model.DoctorStatusApproved {
		return nil, apperrors.Forbidden("department head profile is not approved")
	}
	return profile, nil
}

// RequireSameSpecialty checks that a department head acts inside their own specialty.
func (s *Service) RequireSameSpecialty(ctx context.Context, actor *model.User, specialtyID string) (*model.DoctorProfile, error) {
	profile, err := s.DepartmentProfile(ctx, actor)
	if err != nil {
		return nil, err
	}
	if profile.SpecialtyID != specialtyID {
		return nil, apperrors.Forbidden("target is outside your specialty")
	}
	return profile, nil
}
