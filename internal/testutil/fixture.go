// Package testutil builds in-memory service fixtures for package tests.
package testutil

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/medischedule-api/internal/model"
	"github.com/jwalitptl/medischedule-api/internal/repository"
	"github.com/jwalitptl/medischedule-api/internal/repository/memory"
	authService "github.com/jwalitptl/medischedule-api/internal/service/auth"
	"github.com/jwalitptl/medischedule-api/internal/service/rbac"
	"github.com/jwalitptl/medischedule-api/pkg/auth"
	"github.com/jwalitptl/medischedule-api/pkg/security"
)

const Password = "secret123"

// Recorder is an event emitter that keeps what it was given.
type Recorder struct {
	mu     sync.Mutex
	Events []model.DomainEvent
}

func (r *Recorder) Emit(_ context.Context, eventType model.EventType, actorID string, payload interface{}) {
	raw, _ := json.Marshal(payload)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, model.DomainEvent{
		ID:         model.NewID(),
		Type:       eventType,
		ActorID:    actorID,
		Payload:    raw,
		OccurredAt: time.Now().UTC(),
	})
}

// Types lists the recorded event types in order.
func (r *Recorder) Types() []model.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.EventType, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.Type)
	}
	return out
}

type Fixture struct {
	T      *testing.T
	Ctx    context.Context
	Store  *repository.Store
	Tokens auth.JWTService
	Authz  *rbac.Service
	Auth   *authService.Service
	Events *Recorder
	Mail   *Mailer
}

func New(t *testing.T) *Fixture {
	store := memory.NewStore()
	tokens := auth.NewJWTService("test-secret", time.Hour)
	mail := &Mailer{}
	return &Fixture{
		T:      t,
		Ctx:    context.Background(),
		Store:  store,
		Tokens: tokens,
		Authz:  rbac.NewService(store.Users, store.Doctors, tokens),
		Auth:   authService.NewService(store, security.NewBcryptHasher(bcrypt.MinCost), tokens, mail),
		Events: &Recorder{},
		Mail:   mail,
	}
}

func (f *Fixture) Specialty(name string) *model.Specialty {
	sp := &model.Specialty{ID: model.NewID(), Name: name}
	require.NoError(f.T, f.Store.Specialties.Create(f.Ctx, sp))
	return sp
}

func (f *Fixture) account(params authService.AccountParams) *model.User {
	if params.Password == "" {
		params.Password = Password
	}
	if params.FullName == "" {
		params.FullName = params.Email
	}
	u, err := f.Auth.CreateAccount(f.Ctx, params)
	require.NoError(f.T, err)
	return u
}

func (f *Fixture) Patient(email string) *model.User {
	return f.account(authService.AccountParams{Email: email, Role: model.RolePatient})
}

// Doctor creates a doctor in specialtyID with the given approval status.
func (f *Fixture) Doctor(email, specialtyID string, status model.DoctorStatus) *model.User {
	return f.account(authService.AccountParams{
		Email:        email,
		Role:         model.RoleDoctor,
		SpecialtyID:  specialtyID,
		DoctorStatus: status,
	})
}

func (f *Fixture) DepartmentHead(email, specialtyID string) *model.User {
	return f.account(authService.AccountParams{
		Email:        email,
		Role:         model.RoleDepartmentHead,
		SpecialtyID:  specialtyID,
		DoctorStatus: model.DoctorStatusApproved,
	})
}

// Admin creates an admin; nil perms means full permissions.
func (f *Fixture) Admin(email string, perms *model.AdminPermissions) *model.User {
	if perms == nil {
		full := model.FullAdminPermissions()
		perms = &full
	}
	return f.account(authService.AccountParams{Email: email, Role: model.RoleAdmin, Permissions: perms})
}

// Token issues a session token for u.
func (f *Fixture) Token(u *model.User) string {
	token, err := f.Tokens.Issue(u.ID, string(u.Role))
	require.NoError(f.T, err)
	return token
}

// Reload fetches the stored version of u.
func (f *Fixture) Reload(u *model.User) *model.User {
	fresh, err := f.Store.Users.Get(f.Ctx, u.ID)
	require.NoError(f.T, err)
	return fresh
}

// Mail is a sent message captured by Mailer.
type Mail struct {
	Kind    string
	To      string
	Subject string
	Body    string
}

// Mailer records outgoing email instead of sending it.
type Mailer struct {
	mu   sync.Mutex
	Sent []Mail
	Err  error
}

func (m *Mailer) record(mail Mail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, mail)
	return nil
}

func (m *Mailer) SendPasswordReset(_ context.Context, to, name string) error {
	return m.record(Mail{Kind: "password_reset", To: to, Body: name})
}

func (m *Mailer) SendWelcome(_ context.Context, to, name string) error {
	return m.record(Mail{Kind: "welcome", To: to, Body: name})
}

func (m *Mailer) SendCustom(_ context.Context, to, subject, content string) error {
	return m.record(Mail{Kind: "custom", To: to, Subject: subject, Body: content})
}

// Messages returns a snapshot of the recorded mail.
func (m *Mailer) Messages() []Mail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Mail(nil), m.Sent...)
}
