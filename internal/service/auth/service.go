package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/medischedule-api/internal/email"
	"github.com/jwalitptl/medischedule-api/internal/model"
	"github.com/jwalitptl/medischedule-api/internal/repository"
	"github.com/jwalitptl/medischedule-api/pkg/auth"
	apperrors "github.com/jwalitptl/medischedule-api/pkg/errors"
	"github.com/jwalitptl/medischedule-api/pkg/security"
)

const (
	msgInvalidCredentials = "invalid credentials"
	msgForgotPassword     = "If email exists, reset link will be sent"
)

// AccountParams describes an account to create, whoever creates it.
type AccountParams struct {
	Email        string
	Password     string
	FullName     string
	Username     string
	Phone        string
	DateOfBirth  string
	Address      string
	Role         model.Role
	SpecialtyID  string
	DoctorStatus model.DoctorStatus
	Permissions  *model.AdminPermissions
}

type Service struct {
	users       repository.UserRepository
	doctors     repository.DoctorProfileRepository
	specialties repository.SpecialtyRepository
	hasher      security.PasswordHasher
	tokens      auth.JWTService
	emailSvc    email.Service

	dummyOnce sync.Once
	dummyHash string
}

func NewService(store *repository.Store, hasher security.PasswordHasher, tokens auth.JWTService, emailSvc email.Service) *Service {
	return &Service{
		users:       store.Users,
		doctors:     store.Doctors,
		specialties: store.Specialties,
		hasher:      hasher,
		tokens:      tokens,
		emailSvc:    emailSvc,
	}
}

// Register creates a self-service account and signs it in.
func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (*model.AuthResponse, error) {
	role := req.Role
	if role == "" {
		role = model.RolePatient
	}
	if !role.Valid() {
		return nil, apperrors.Validation("invalid role")
	}
	if role == model.RoleAdmin {
		return nil, apperrors.Forbidden("admin accounts cannot be self-registered")
	}

	user, err := s.CreateAccount(ctx, AccountParams{
		Email:        req.Email,
		Password:     req.Password,
		FullName:     req.FullName,
		Username:     req.Username,
		Phone:        req.Phone,
		DateOfBirth:  req.DateOfBirth,
		Address:      req.Address,
		Role:         role,
		SpecialtyID:  req.SpecialtyID,
		DoctorStatus: model.DoctorStatusPending,
	})
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// CreateAccount stores a user and, for doctor roles, its profile. A failed
// profile insert removes the user again so no account is left without one.
func (s *Service) CreateAccount(ctx context.Context, params AccountParams) (*model.User, error) {
	if !params.Role.Valid() {
		return nil, apperrors.Validation("invalid role")
	}
	params.Email = model.FoldIdentifier(params.Email)
	params.Username = model.FoldIdentifier(params.Username)
	if strings.Contains(params.Username, "@") {
		return nil, apperrors.Validation("username must not contain @")
	}

	if _, err := s.users.GetByEmail(ctx, params.Email); err == nil {
		return nil, apperrors.Conflict("email already registered")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.Internal(fmt.Errorf("failed to check email: %w", err))
	}
	if params.Username != "" {
		if _, err := s.users.GetByUsername(ctx, params.Username); err == nil {
			return nil, apperrors.Conflict("username already taken")
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Internal(fmt.Errorf("failed to check username: %w", err))
		}
	}

	if params.Role.HasDoctorProfile() && params.SpecialtyID != "" {
		if _, err := s.specialties.Get(ctx, params.SpecialtyID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperrors.NotFound("specialty")
			}
			return nil, apperrors.Internal(fmt.Errorf("failed to load specialty: %w", err))
		}
	}

	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		if errors.Is(err, security.ErrWeakPassword) {
			return nil, apperrors.Validation(err.Error())
		}
		return nil, apperrors.Internal(err)
	}

	user := &model.User{
		ID:           model.NewID(),
		Email:        params.Email,
		Username:     params.Username,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(params.FullName),
		Phone:        params.Phone,
		DateOfBirth:  params.DateOfBirth,
		Address:      params.Address,
		Role:         params.Role,
		CreatedAt:    time.Now().UTC(),
	}
	switch params.Role {
	case model.RoleAdmin:
		perms := model.DefaultAdminPermissions()
		if params.Permissions != nil {
			perms = *params.Permissions
		}
		user.AdminPermissions = &perms
	case model.RoleDepartmentHead:
		perms := model.DepartmentHeadPermissions()
		if params.Permissions != nil {
			perms = *params.Permissions
		}
		user.AdminPermissions = &perms
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict("email or username already registered")
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to create user: %w", err))
	}

	if params.Role.HasDoctorProfile() {
		status := params.DoctorStatus
		if status == "" {
			status = model.DoctorStatusPending
		}
		profile := &model.DoctorProfile{
			UserID:           user.ID,
			SpecialtyID:      params.SpecialtyID,
			AvailableSlots:   []model.TimeSlot{},
			Status:           status,
			IsDepartmentHead: params.Role == model.RoleDepartmentHead,
			CreatedAt:        user.CreatedAt,
		}
		if err := s.doctors.Create(ctx, profile); err != nil {
			if delErr := s.users.Delete(ctx, user.ID); delErr != nil {
				log.Error().Err(delErr).Str("user_id", user.ID).Msg("failed to roll back user after profile error")
			}
			return nil, apperrors.Internal(fmt.Errorf("failed to create doctor profile: %w", err))
		}
	}

	return user, nil
}

// Login accepts an email or a username. Every failure yields the same error.
func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.AuthResponse, error) {
	identifier := model.FoldIdentifier(req.Identifier())

	var (
		user *model.User
		err  error
	)
	switch {
	case identifier == "":
		err = repository.ErrNotFound
	case strings.Contains(identifier, "@"):
		user, err = s.users.GetByEmail(ctx, identifier)
	default:
		user, err = s.users.GetByUsername(ctx, identifier)
	}
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Internal(fmt.Errorf("failed to load user: %w", err))
		}
		// Spend the same hashing time as a real comparison.
		_ = s.hasher.Compare(s.dummy(), req.Password)
		return nil, apperrors.Unauthenticated(msgInvalidCredentials)
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return nil, apperrors.Unauthenticated(msgInvalidCredentials)
	}
	return s.issue(user)
}

// ForgotPassword always answers the same way; a known address gets an email.
func (s *Service) ForgotPassword(ctx context.Context, address string) *model.MessageResponse {
	user, err := s.users.GetByEmail(ctx, model.FoldIdentifier(address))
	switch {
	case err == nil:
		if err := s.emailSvc.SendPasswordReset(ctx, user.Email, user.FullName); err != nil {
			log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to send password reset email")
		}
	case !errors.Is(err, repository.ErrNotFound):
		log.Error().Err(err).Msg("failed to look up account for password reset")
	}
	return &model.MessageResponse{Message: msgForgotPassword}
}

func (s *Service) issue(user *model.User) (*model.AuthResponse, error) {
	token, err := s.tokens.Issue(user.ID, string(user.Role))
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &model.AuthResponse{
		Token:       token,
		AccessToken: token,
		TokenType:   "bearer",
		User:        user,
	}, nil
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("dummy-password-1")
	})
	return s.dummyHash
}
