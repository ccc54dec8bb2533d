package admin_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/medischedule-api/internal/model"
	"github.com/jwalitptl/medischedule-api/internal/service/admin"
	"github.com/jwalitptl/medischedule-api/internal/service/appointment"
	"github.com/jwalitptl/medischedule-api/internal/service/directory"
	"github.com/jwalitptl/medischedule-api/internal/testutil"
	apperrors "github.com/jwalitptl/medischedule-api/pkg/errors"
)

type env struct {
	*testutil.Fixture
	svc          *admin.Service
	appointments *appointment.Service
	root         *model.User
	cardio       *model.Specialty
	neuro        *model.Specialty
}

func setup(t *testing.T) *env {
	f := testutil.New(t)
	dir := directory.NewService(f.Store, f.Authz, f.Events)
	return &env{
		Fixture:      f,
		svc:          admin.NewService(f.Store, f.Auth, dir, f.Authz, f.Events),
		appointments: appointment.NewService(f.Store, f.Events),
		root:         f.Admin("root@example.com", nil),
		cardio:       f.Specialty("Cardiology"),
		neuro:        f.Specialty("Neurology"),
	}
}

func (e *env) book(t *testing.T, patient, doctor *model.User, clock string) *model.Appointment {
	apt, err := e.appointments.Create(e.Ctx, patient, &model.CreateAppointmentRequest{
		DoctorID:        doctor.ID,
		AppointmentType: model.AppointmentTypeInPerson,
		AppointmentDate: "2025-06-01",
		AppointmentTime: clock,
	})
	require.NoError(t, err)
	return apt
}

func userReq(email string, role model.Role, specialtyID string) *model.CreateUserRequest {
	return &model.CreateUserRequest{
		Email:       email,
		Password:    testutil.Password,
		FullName:    email,
		Role:        role,
		SpecialtyID: specialtyID,
	}
}

func TestAdminCreatesApprovedDoctor(t *testing.T) {
	e := setup(t)

	doc, err := e.svc.CreateUser(e.Ctx, e.root, userReq("doc@example.com", model.RoleDoctor, e.cardio.ID))
	require.NoError(t, err)

	profile, err := e.Store.Doctors.Get(e.Ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DoctorStatusApproved, profile.Status)

	_, err = e.svc.CreateUser(e.Ctx, e.root, userReq("nospec@example.com", model.RoleDoctor, ""))
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestCreateUserRequiresPermissionForRole(t *testing.T) {
	e := setup(t)
	perms := model.AdminPermissions{CanManagePatients: true}
	limited := e.Admin("limited@example.com", &perms)

	_, err := e.svc.CreateUser(e.Ctx, limited, userReq("p@example.com", model.RolePatient, ""))
	assert.NoError(t, err)

	_, err = e.svc.CreateUser(e.Ctx, limited, userReq("d@example.com", model.RoleDoctor, e.cardio.ID))
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))

	_, err = e.svc.CreateAdmin(e.Ctx, limited, &model.CreateAdminRequest{Email: "a@example.com", Password: testutil.Password, FullName: "A"})
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))

	created, err := e.svc.CreateAdmin(e.Ctx, e.root, &model.CreateAdminRequest{Email: "a@example.com", Password: testutil.Password, FullName: "A"})
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, created.Role)
	assert.False(t, created.Permissions().CanCreateAdmins)
}

func TestDepartmentHeadCreateUserScope(t *testing.T) {
	e := setup(t)
	dh := e.DepartmentHead("dh@example.com", e.cardio.ID)

	doc, err := e.svc.CreateUser(e.Ctx, dh, userReq("doc@example.com", model.RoleDoctor, ""))
	require.NoError(t, err)
	profile, err := e.Store.Doctors.Get(e.Ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, e.cardio.ID, profile.SpecialtyID)

	_, err = e.svc.CreateUser(e.Ctx, dh, userReq("other@example.com", model.RoleDoctor, e.neuro.ID))
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))

	_, err = e.svc.CreateUser(e.Ctx, dh, userReq("admin2@example.com", model.RoleAdmin, ""))
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))

	_, err = e.svc.CreateUser(e.Ctx, dh, userReq("pat@example.com", model.RolePatient, ""))
	assert.NoError(t, err)

	_, err = e.svc.CreateUser(e.Ctx, e.Patient("x@example.com"), userReq("y@example.com", model.RolePatient, ""))
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))
}

func TestUpdatePermissions(t *testing.T) {
	e := setup(t)
	other := e.Admin("other@example.com", nil)

	updated, err := e.svc.UpdatePermissions(e.Ctx, e.root, &model.UpdatePermissionsRequest{
		AdminID:     other.ID,
		Permissions: model.AdminPermissions{CanViewStats: true},
	})
	require.NoError(t, err)
	assert.Equal(t, model.AdminPermissions{CanViewStats: true}, *updated.AdminPermissions)

	_, err = e.svc.UpdatePermissions(e.Ctx, e.root, &model.UpdatePermissionsRequest{AdminID: e.root.ID})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	patient := e.Patient("p@example.com")
	_, err = e.svc.UpdatePermissions(e.Ctx, e.root, &model.UpdatePermissionsRequest{AdminID: patient.ID})
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestDeleteAdmin(t *testing.T) {
	e := setup(t)
	other := e.Admin("other@example.com", nil)

	assert.True(t, apperrors.Is(e.svc.DeleteAdmin(e.Ctx, e.root, e.root.ID), apperrors.KindValidation))
	assert.True(t, apperrors.Is(e.svc.DeleteAdmin(e.Ctx, e.root, e.Patient("p@example.com").ID), apperrors.KindNotFound))
	require.NoError(t, e.svc.DeleteAdmin(e.Ctx, e.root, other.ID))

	admins, err := e.svc.ListAdmins(e.Ctx)
	require.NoError(t, err)
	assert.Len(t, admins, 1)
}

func TestDeletePatientCascades(t *testing.T) {
	e := setup(t)
	patient := e.Patient("p@example.com")
	doctor := e.Doctor("d@example.com", e.cardio.ID, model.DoctorStatusApproved)
	apt := e.book(t, patient, doctor, "10:00")
	require.NoError(t, e.Store.Chats.Create(e.Ctx, &model.ChatMessage{ID: "m1", AppointmentID: apt.ID, SenderID: doctor.ID, Message: "hi"}))
	require.NoError(t, e.Store.AIChats.Create(e.Ctx, &model.AiChatRecord{ID: "r1", PatientID: patient.ID, SessionID: "s"}))

	require.NoError(t, e.svc.DeleteUser(e.Ctx, e.root, patient.ID))

	_, err := e.Store.Users.Get(e.Ctx, patient.ID)
	assert.Error(t, err)
	_, err = e.Store.Appointments.Get(e.Ctx, apt.ID)
	assert.Error(t, err)
	msgs, _ := e.Store.Chats.ListByAppointment(e.Ctx, apt.ID)
	assert.Empty(t, msgs)
	records, _ := e.Store.AIChats.List(e.Ctx, patient.ID, "")
	assert.Empty(t, records)
	assert.Contains(t, e.Events.Types(), model.EventUserDeleted)

	e.book(t, e.Patient("p2@example.com"), doctor, "10:00")
}

func TestDeleteDoctorCascades(t *testing.T) {
	e := setup(t)
	patient := e.Patient("p@example.com")
	doctor := e.Doctor("d@example.com", e.cardio.ID, model.DoctorStatusApproved)
	apt := e.book(t, patient, doctor, "10:00")

	require.NoError(t, e.svc.DeleteUser(e.Ctx, e.root, doctor.ID))

	_, err := e.Store.Doctors.Get(e.Ctx, doctor.ID)
	assert.Error(t, err)
	_, err = e.Store.Appointments.Get(e.Ctx, apt.ID)
	assert.Error(t, err)
	_, err = e.Store.Users.Get(e.Ctx, patient.ID)
	assert.NoError(t, err)
}

func TestDeleteUserNeedsPermissionForTargetRole(t *testing.T) {
	e := setup(t)
	perms := model.AdminPermissions{CanManagePatients: true}
	limited := e.Admin("limited@example.com", &perms)
	doctor := e.Doctor("d@example.com", e.cardio.ID, model.DoctorStatusApproved)

	assert.True(t, apperrors.Is(e.svc.DeleteUser(e.Ctx, limited, doctor.ID), apperrors.KindForbidden))
	assert.True(t, apperrors.Is(e.svc.DeleteUser(e.Ctx, limited, "missing"), apperrors.KindNotFound))
	assert.True(t, apperrors.Is(e.svc.DeleteUser(e.Ctx, limited, limited.ID), apperrors.KindValidation))
}

func TestPromoteAndDemote(t *testing.T) {
	e := setup(t)
	doctor := e.Doctor("d@example.com", e.cardio.ID, model.DoctorStatusApproved)

	promoted, err := e.svc.Promote(e.Ctx, e.root, doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleDepartmentHead, promoted.Role)
	profile, err := e.Store.Doctors.Get(e.Ctx, doctor.ID)
	require.NoError(t, err)
	assert.True(t, profile.IsDepartmentHead)

	_, err = e.svc.Promote(e.Ctx, e.root, doctor.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))

	_, err = e.svc.Promote(e.Ctx, e.root, e.Patient("p@example.com").ID)
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	demoted, err := e.svc.Demote(e.Ctx, e.root, doctor.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleDoctor, demoted.Role)
	profile, err = e.Store.Doctors.Get(e.Ctx, doctor.ID)
	require.NoError(t, err)
	assert.False(t, profile.IsDepartmentHead)

	_, err = e.svc.Demote(e.Ctx, e.root, doctor.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestDepartmentHeadPromotesOnlyOwnSpecialty(t *testing.T) {
	e := setup(t)
	dh := e.DepartmentHead("dh@example.com", e.cardio.ID)
	own := e.Doctor("own@example.com", e.cardio.ID, model.DoctorStatusApproved)
	foreign := e.Doctor("foreign@example.com", e.neuro.ID, model.DoctorStatusApproved)

	_, err := e.svc.Promote(e.Ctx, dh, foreign.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))

	_, err = e.svc.Promote(e.Ctx, dh, own.ID)
	assert.NoError(t, err)
}

func TestPromoteRequiresApprovedDoctor(t *testing.T) {
	e := setup(t)
	pending := e.Doctor("pending@example.com", e.cardio.ID, model.DoctorStatusPending)
	rejected := e.Doctor("rejected@example.com", e.cardio.ID, model.DoctorStatusRejected)

	for _, doctor := range []*model.User{pending, rejected} {
		_, err := e.svc.Promote(e.Ctx, e.root, doctor.ID)
		assert.True(t, apperrors.Is(err, apperrors.KindValidation), doctor.Email)
		assert.Equal(t, model.RoleDoctor, e.Reload(doctor).Role)
	}
}

func TestDepartmentScope(t *testing.T) {
	e := setup(t)
	dh := e.DepartmentHead("dh@example.com", e.cardio.ID)
	cardioDoc := e.Doctor("c@example.com", e.cardio.ID, model.DoctorStatusApproved)
	e.Doctor("pending@example.com", e.cardio.ID, model.DoctorStatusPending)
	neuroDoc := e.Doctor("n@example.com", e.neuro.ID, model.DoctorStatusApproved)
	inDept := e.Patient("in@example.com")
	outDept := e.Patient("out@example.com")
	e.book(t, inDept, cardioDoc, "09:00")
	e.book(t, inDept, cardioDoc, "10:00")
	e.book(t, outDept, neuroDoc, "09:00")

	all, err := e.svc.DepartmentDoctors(e.Ctx, dh, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	approved, err := e.svc.DepartmentDoctors(e.Ctx, dh, true)
	require.NoError(t, err)
	assert.Len(t, approved, 2)

	patients, err := e.svc.DepartmentPatients(e.Ctx, dh)
	require.NoError(t, err)
	require.Len(t, patients, 1)
	assert.Equal(t, inDept.ID, patients[0].ID)

	stats, err := e.svc.DepartmentStats(e.Ctx, dh)
	require.NoError(t, err)
	assert.Equal(t, "Cardiology", stats.SpecialtyName)
	assert.Equal(t, int64(3), stats.TotalDoctors)
	assert.Equal(t, int64(1), stats.PendingDoctors)
	assert.Equal(t, int64(1), stats.TotalPatients)
	assert.Equal(t, int64(2), stats.TotalAppointments)
	assert.Equal(t, int64(2), stats.PendingAppointments)

	assert.True(t, apperrors.Is(e.svc.RemovePatient(e.Ctx, dh, outDept.ID), apperrors.KindForbidden))
	assert.True(t, apperrors.Is(e.svc.RemoveDoctor(e.Ctx, dh, neuroDoc.ID), apperrors.KindForbidden))
	assert.NoError(t, e.svc.RemovePatient(e.Ctx, dh, inDept.ID))
	assert.NoError(t, e.svc.RemoveDoctor(e.Ctx, dh, cardioDoc.ID))
	assert.True(t, apperrors.Is(e.svc.RemoveDoctor(e.Ctx, dh, dh.ID), apperrors.KindValidation))
}

func TestStats(t *testing.T) {
	e := setup(t)
	patient := e.Patient("p@example.com")
	doctor := e.Doctor("d@example.com", e.cardio.ID, model.DoctorStatusApproved)
	e.Doctor("pending@example.com", e.cardio.ID, model.DoctorStatusPending)
	apt := e.book(t, patient, doctor, "09:00")
	_, err := e.appointments.SetStatus(e.Ctx, doctor, apt.ID, model.AppointmentStatusConfirmed)
	require.NoError(t, err)

	stats, err := e.svc.Stats(e.Ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalPatients)
	assert.Equal(t, int64(2), stats.TotalDoctors)
	assert.Equal(t, int64(1), stats.TotalAdmins)
	assert.Equal(t, int64(1), stats.TotalAppointments)
	assert.Equal(t, int64(1), stats.ConfirmedAppointments)
	assert.Equal(t, int64(1), stats.InPersonConsultations)
	assert.Equal(t, int64(1), stats.PendingDoctors)
	assert.Equal(t, int64(1), stats.ApprovedDoctors)
}
