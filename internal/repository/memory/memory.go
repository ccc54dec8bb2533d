// Package memory is an in-process repository backend for development and tests.
// It enforces the same uniqueness rules as the MongoDB indexes.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jwalitptl/medischedule-api/internal/model"
	"github.com/jwalitptl/medischedule-api/internal/repository"
)

type db struct {
	mu           sync.RWMutex
	users        map[string]*model.User
	profiles     map[string]*model.DoctorProfile
	specialties  map[string]*model.Specialty
	appointments map[string]*model.Appointment
	slots        map[string]string
	messages     []*model.ChatMessage
	aiChats      []*model.AiChatRecord
}

// NewStore returns a Store whose repositories share one in-memory database.
func NewStore() *repository.Store {
	d := &db{
		users:        make(map[string]*model.User),
		profiles:     make(map[string]*model.DoctorProfile),
		specialties:  make(map[string]*model.Specialty),
		appointments: make(map[string]*model.Appointment),
		slots:        make(map[string]string),
	}
	return &repository.Store{
		Users:        &userRepository{d},
		Doctors:      &doctorRepository{d},
		Specialties:  &specialtyRepository{d},
		Appointments: &appointmentRepository{d},
		Chats:        &chatRepository{d},
		AIChats:      &aiChatRepository{d},
	}
}

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

type userRepository struct{ *db }

func copyUser(u *model.User) *model.User {
	c := *u
	if u.AdminPermissions != nil {
		p := *u.AdminPermissions
		c.AdminPermissions = &p
	}
	return &c
}

func (r *userRepository) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; ok {
		return repository.ErrDuplicate
	}
	email := model.FoldIdentifier(user.Email)
	username := model.FoldIdentifier(user.Username)
	for _, u := range r.users {
		if u.Email == email {
			return repository.ErrDuplicate
		}
		if username != "" && u.Username == username {
			return repository.ErrDuplicate
		}
	}
	c := copyUser(user)
	c.Email = email
	c.Username = username
	r.users[user.ID] = c
	return nil
}

func (r *userRepository) Get(_ context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyUser(u), nil
}

func (r *userRepository) find(match func(*model.User) bool) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if match(u) {
			return copyUser(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepository) GetByEmail(_ context.Context, email string) (*model.User, error) {
	email = model.FoldIdentifier(email)
	return r.find(func(u *model.User) bool { return u.Email == email })
}

func (r *userRepository) GetByUsername(_ context.Context, username string) (*model.User, error) {
	username = model.FoldIdentifier(username)
	if username == "" {
		return nil, repository.ErrNotFound
	}
	return r.find(func(u *model.User) bool { return u.Username == username })
}

func (r *userRepository) List(_ context.Context, filter model.UserFilter) ([]*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.User, 0)
	for _, u := range r.users {
		if filter.Roles != nil && !contains(filter.Roles, u.Role) {
			continue
		}
		if filter.IDs != nil && !contains(filter.IDs, u.ID) {
			continue
		}
		out = append(out, copyUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *userRepository) CountByRole(_ context.Context, role model.Role) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, u := range r.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (r *userRepository) update(id string, fn func(*model.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(u)
	return nil
}

func (r *userRepository) UpdateRole(_ context.Context, id string, role model.Role) error {
	return r.update(id, func(u *model.User) { u.Role = role })
}

func (r *userRepository) UpdatePermissions(_ context.Context, id string, perms model.AdminPermissions) error {
	return r.update(id, func(u *model.User) { u.AdminPermissions = &perms })
}

func (r *userRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *userRepository) Ping(context.Context) error {
	return nil
}

type doctorRepository struct{ *db }

func copyProfile(p *model.DoctorProfile) *model.DoctorProfile {
	c := *p
	c.AvailableSlots = append([]model.TimeSlot{}, p.AvailableSlots...)
	return &c
}

func (r *doctorRepository) Create(_ context.Context, profile *model.DoctorProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.profiles[profile.UserID]; ok {
		return repository.ErrDuplicate
	}
	r.profiles[profile.UserID] = copyProfile(profile)
	return nil
}

func (r *doctorRepository) Get(_ context.Context, userID string) (*model.DoctorProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyProfile(p), nil
}

func matchDoctor(p *model.DoctorProfile, filter model.DoctorFilter) bool {
	if filter.SpecialtyID != "" && p.SpecialtyID != filter.SpecialtyID {
		return false
	}
	if filter.Status != "" && p.Status != filter.Status {
		return false
	}
	return true
}

func (r *doctorRepository) List(_ context.Context, filter model.DoctorFilter) ([]*model.DoctorProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.DoctorProfile, 0)
	for _, p := range r.profiles {
		if matchDoctor(p, filter) {
			out = append(out, copyProfile(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *doctorRepository) Count(_ context.Context, filter model.DoctorFilter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, p := range r.profiles {
		if matchDoctor(p, filter) {
			n++
		}
	}
	return n, nil
}

func (r *doctorRepository) update(userID string, fn func(*model.DoctorProfile)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[userID]
	if !ok {
		return repository.ErrNotFound
	}
	fn(p)
	return nil
}

func (r *doctorRepository) Patch(_ context.Context, userID string, patch model.DoctorProfilePatch) error {
	return r.update(userID, func(p *model.DoctorProfile) {
		if patch.SpecialtyID != nil {
			p.SpecialtyID = *patch.SpecialtyID
		}
		if patch.Bio != nil {
			p.Bio = *patch.Bio
		}
		if patch.ExperienceYears != nil {
			v := *patch.ExperienceYears
			p.ExperienceYears = &v
		}
		if patch.ConsultationFee != nil {
			v := *patch.ConsultationFee
			p.ConsultationFee = &v
		}
	})
}

func (r *doctorRepository) UpdateSchedule(_ context.Context, userID string, slots []model.TimeSlot) error {
	return r.update(userID, func(p *model.DoctorProfile) {
		p.AvailableSlots = append([]model.TimeSlot{}, slots...)
	})
}

func (r *doctorRepository) UpdateStatus(_ context.Context, userID string, status model.DoctorStatus) error {
	return r.update(userID, func(p *model.DoctorProfile) { p.Status = status })
}

func (r *doctorRepository) SetDepartmentHead(_ context.Context, userID string, isHead bool) error {
	return r.update(userID, func(p *model.DoctorProfile) { p.IsDepartmentHead = isHead })
}

func (r *doctorRepository) Delete(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.profiles[userID]; !ok {
		return repository.ErrNotFound
	}
	delete(r.profiles, userID)
	return nil
}

type specialtyRepository struct{ *db }

func (r *specialtyRepository) Create(_ context.Context, specialty *model.Specialty) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := model.FoldIdentifier(specialty.Name)
	for _, s := range r.specialties {
		if s.ID == specialty.ID || model.FoldIdentifier(s.Name) == name {
			return repository.ErrDuplicate
		}
	}
	c := *specialty
	r.specialties[specialty.ID] = &c
	return nil
}

func (r *specialtyRepository) Get(_ context.Context, id string) (*model.Specialty, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.specialties[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (r *specialtyRepository) GetByName(_ context.Context, name string) (*model.Specialty, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name = model.FoldIdentifier(name)
	for _, s := range r.specialties {
		if model.FoldIdentifier(s.Name) == name {
			c := *s
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *specialtyRepository) List(context.Context) ([]*model.Specialty, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Specialty, 0, len(r.specialties))
	for _, s := range r.specialties {
		c := *s
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type appointmentRepository struct{ *db }

func copyAppointment(a *model.Appointment) *model.Appointment {
	c := *a
	if a.SummaryCreatedAt != nil {
		t := *a.SummaryCreatedAt
		c.SummaryCreatedAt = &t
	}
	return &c
}

func (r *appointmentRepository) Create(_ context.Context, appointment *model.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.appointments[appointment.ID]; ok {
		return repository.ErrDuplicate
	}
	key := appointment.SlotKey()
	if appointment.Status != model.AppointmentStatusCancelled {
		if _, taken := r.slots[key]; taken {
			return repository.ErrDuplicate
		}
		r.slots[key] = appointment.ID
	}
	r.appointments[appointment.ID] = copyAppointment(appointment)
	return nil
}

func (r *appointmentRepository) Get(_ context.Context, id string) (*model.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyAppointment(a), nil
}

func matchAppointment(a *model.Appointment, f model.AppointmentFilter) bool {
	if f.PatientID != "" && a.PatientID != f.PatientID {
		return false
	}
	if f.DoctorID != "" && a.DoctorID != f.DoctorID {
		return false
	}
	if f.DoctorIDs != nil && !contains(f.DoctorIDs, a.DoctorID) {
		return false
	}
	if f.Type != "" && a.AppointmentType != f.Type {
		return false
	}
	if len(f.Statuses) > 0 && !contains(f.Statuses, a.Status) {
		return false
	}
	return true
}

func (r *appointmentRepository) List(_ context.Context, filter model.AppointmentFilter) ([]*model.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Appointment, 0)
	for _, a := range r.appointments {
		if matchAppointment(a, filter) {
			out = append(out, copyAppointment(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AppointmentDate != out[j].AppointmentDate {
			return out[i].AppointmentDate > out[j].AppointmentDate
		}
		return out[i].AppointmentTime > out[j].AppointmentTime
	})
	return out, nil
}

func (r *appointmentRepository) Count(_ context.Context, filter model.AppointmentFilter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, a := range r.appointments {
		if matchAppointment(a, filter) {
			n++
		}
	}
	return n, nil
}

func (r *appointmentRepository) UpdateStatus(_ context.Context, id string, from, to model.AppointmentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return repository.ErrNotFound
	}
	if a.Status != from {
		return repository.ErrStale
	}
	a.Status = to
	if to == model.AppointmentStatusCancelled {
		if r.slots[a.SlotKey()] == a.ID {
			delete(r.slots, a.SlotKey())
		}
	}
	return nil
}

func (r *appointmentRepository) SetSummary(_ context.Context, id, summary, createdBy string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.ConversationSummary = summary
	a.SummaryCreatedBy = createdBy
	a.SummaryCreatedAt = &at
	return nil
}

func (r *appointmentRepository) deleteWhere(match func(*model.Appointment) bool) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0)
	for id, a := range r.appointments {
		if !match(a) {
			continue
		}
		if r.slots[a.SlotKey()] == id {
			delete(r.slots, a.SlotKey())
		}
		delete(r.appointments, id)
		ids = append(ids, id)
	}
	return ids
}

func (r *appointmentRepository) DeleteByPatient(_ context.Context, patientID string) ([]string, error) {
	return r.deleteWhere(func(a *model.Appointment) bool { return a.PatientID == patientID }), nil
}

func (r *appointmentRepository) DeleteByDoctor(_ context.Context, doctorID string) ([]string, error) {
	return r.deleteWhere(func(a *model.Appointment) bool { return a.DoctorID == doctorID }), nil
}

type chatRepository struct{ *db }

func (r *chatRepository) Create(_ context.Context, msg *model.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *msg
	r.messages = append(r.messages, &c)
	return nil
}

func (r *chatRepository) ListByAppointment(_ context.Context, appointmentID string) ([]*model.ChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.ChatMessage, 0)
	for _, m := range r.messages {
		if m.AppointmentID == appointmentID {
			c := *m
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *chatRepository) deleteWhere(match func(*model.ChatMessage) bool) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.messages[:0]
	var n int64
	for _, m := range r.messages {
		if match(m) {
			n++
			continue
		}
		kept = append(kept, m)
	}
	r.messages = kept
	return n
}

func (r *chatRepository) DeleteByAppointments(_ context.Context, appointmentIDs []string) (int64, error) {
	if len(appointmentIDs) == 0 {
		return 0, nil
	}
	return r.deleteWhere(func(m *model.ChatMessage) bool { return contains(appointmentIDs, m.AppointmentID) }), nil
}

func (r *chatRepository) DeleteBySender(_ context.Context, senderID string) (int64, error) {
	return r.deleteWhere(func(m *model.ChatMessage) bool { return m.SenderID == senderID }), nil
}

type aiChatRepository struct{ *db }

func (r *aiChatRepository) Create(_ context.Context, record *model.AiChatRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *record
	r.aiChats = append(r.aiChats, &c)
	return nil
}

func (r *aiChatRepository) List(_ context.Context, patientID, sessionID string) ([]*model.AiChatRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.AiChatRecord, 0)
	for _, rec := range r.aiChats {
		if rec.PatientID != patientID {
			continue
		}
		if sessionID != "" && rec.SessionID != sessionID {
			continue
		}
		c := *rec
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *aiChatRepository) Recent(ctx context.Context, patientID, sessionID string, limit int) ([]*model.AiChatRecord, error) {
	all, err := r.List(ctx, patientID, sessionID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

func (r *aiChatRepository) DeleteByPatient(_ context.Context, patientID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.aiChats[:0]
	var n int64
	for _, rec := range r.aiChats {
		if rec.PatientID == patientID {
			n++
			continue
		}
		kept = append(kept, rec)
	}
	r.aiChats = kept
	return n, nil
}
