package directory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/medischedule-api/internal/model"
	"github.com/jwalitptl/medischedule-api/internal/service/directory"
	"github.com/jwalitptl/medischedule-api/internal/testutil"
	apperrors "github.com/jwalitptl/medischedule-api/pkg/errors"
)

func setup(t *testing.T) (*testutil.Fixture, *directory.Service) {
	f := testutil.New(t)
	return f, directory.NewService(f.Store, f.Authz, f.Events)
}

func TestCreateSpecialty(t *testing.T) {
	f, svc := setup(t)

	sp, err := svc.CreateSpecialty(f.Ctx, &model.CreateSpecialtyRequest{Name: "  Cardiology ", Description: "Heart"})
	require.NoError(t, err)
	assert.Equal(t, "Cardiology", sp.Name)

	_, err = svc.CreateSpecialty(f.Ctx, &model.CreateSpecialtyRequest{Name: "cardiology"})
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))

	_, err = svc.CreateSpecialty(f.Ctx, &model.CreateSpecialtyRequest{Name: "   "})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	list, err := svc.ListSpecialties(f.Ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, "Cardiology", svc.SpecialtyName(f.Ctx, sp.ID))
	assert.Empty(t, svc.SpecialtyName(f.Ctx, "unknown"))
}

func TestPublicDirectoryShowsApprovedOnly(t *testing.T) {
	f, svc := setup(t)
	cardio := f.Specialty("Cardiology")
	neuro := f.Specialty("Neurology")
	approved := f.Doctor("a@example.com", cardio.ID, model.DoctorStatusApproved)
	f.Doctor("p@example.com", cardio.ID, model.DoctorStatusPending)
	f.Doctor("n@example.com", neuro.ID, model.DoctorStatusApproved)

	all, err := svc.ListApprovedDoctors(f.Ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	cardiologists, err := svc.ListApprovedDoctors(f.Ctx, cardio.ID)
	require.NoError(t, err)
	require.Len(t, cardiologists, 1)
	assert.Equal(t, approved.ID, cardiologists[0].UserID)
	assert.Equal(t, "Cardiology", cardiologists[0].SpecialtyName)
	assert.Equal(t, approved.Email, cardiologists[0].Email)

	_, err = svc.ListDoctors(f.Ctx, model.DoctorFilter{Status: "retired"})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestEnrichSkipsOrphans(t *testing.T) {
	f, svc := setup(t)
	sp := f.Specialty("Cardiology")
	doc := f.Doctor("orphan@example.com", sp.ID, model.DoctorStatusApproved)
	require.NoError(t, f.Store.Users.Delete(f.Ctx, doc.ID))

	list, err := svc.ListApprovedDoctors(f.Ctx, "")
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = svc.GetDoctor(f.Ctx, doc.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestUpdateOwnProfile(t *testing.T) {
	f, svc := setup(t)
	cardio := f.Specialty("Cardiology")
	neuro := f.Specialty("Neurology")
	doc := f.Doctor("d@example.com", cardio.ID, model.DoctorStatusApproved)

	bio := "Ten years in practice"
	years := 10
	view, err := svc.UpdateOwnProfile(f.Ctx, doc, &model.DoctorProfilePatch{Bio: &bio, ExperienceYears: &years, SpecialtyID: &neuro.ID})
	require.NoError(t, err)
	assert.Equal(t, bio, view.Bio)
	assert.Equal(t, 10, *view.ExperienceYears)
	assert.Equal(t, "Neurology", view.SpecialtyName)
	assert.Equal(t, model.DoctorStatusApproved, view.Status)

	missing := "missing"
	_, err = svc.UpdateOwnProfile(f.Ctx, doc, &model.DoctorProfilePatch{SpecialtyID: &missing})
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	_, err = svc.UpdateOwnProfile(f.Ctx, f.Patient("p@example.com"), &model.DoctorProfilePatch{Bio: &bio})
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestDepartmentHeadCannotChangeOwnSpecialty(t *testing.T) {
	f, svc := setup(t)
	cardio := f.Specialty("Cardiology")
	neuro := f.Specialty("Neurology")
	dh := f.DepartmentHead("dh@example.com", cardio.ID)

	_, err := svc.UpdateOwnProfile(f.Ctx, dh, &model.DoctorProfilePatch{SpecialtyID: &neuro.ID})
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))

	profile, err := f.Store.Doctors.Get(f.Ctx, dh.ID)
	require.NoError(t, err)
	assert.Equal(t, cardio.ID, profile.SpecialtyID)

	bio := "Head of cardiology"
	view, err := svc.UpdateOwnProfile(f.Ctx, dh, &model.DoctorProfilePatch{Bio: &bio, SpecialtyID: &cardio.ID})
	require.NoError(t, err)
	assert.Equal(t, bio, view.Bio)
	assert.Equal(t, cardio.ID, view.SpecialtyID)
}

func TestUpdateOwnSchedule(t *testing.T) {
	f, svc := setup(t)
	sp := f.Specialty("Cardiology")
	doc := f.Doctor("d@example.com", sp.ID, model.DoctorStatusApproved)

	view, err := svc.UpdateOwnSchedule(f.Ctx, doc, []model.TimeSlot{{Day: "Monday", StartTime: "09:00", EndTime: "12:00"}})
	require.NoError(t, err)
	require.Len(t, view.AvailableSlots, 1)
	assert.Equal(t, "monday", view.AvailableSlots[0].Day)

	_, err = svc.UpdateOwnSchedule(f.Ctx, doc, []model.TimeSlot{{Day: "someday", StartTime: "09:00", EndTime: "12:00"}})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	_, err = svc.UpdateOwnSchedule(f.Ctx, doc, []model.TimeSlot{{Day: "friday", StartTime: "12:00", EndTime: "09:00"}})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	view, err = svc.UpdateOwnSchedule(f.Ctx, doc, nil)
	require.NoError(t, err)
	assert.Empty(t, view.AvailableSlots)
}

func TestApproveDoctor(t *testing.T) {
	f, svc := setup(t)
	cardio := f.Specialty("Cardiology")
	neuro := f.Specialty("Neurology")
	admin := f.Admin("admin@example.com", nil)
	doc := f.Doctor("d@example.com", cardio.ID, model.DoctorStatusPending)

	view, err := svc.ApproveDoctor(f.Ctx, admin, doc.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.DoctorStatusApproved, view.Status)
	assert.Equal(t, []model.EventType{model.EventDoctorStatusChanged}, f.Events.Types())

	view, err = svc.ApproveDoctor(f.Ctx, admin, doc.ID, model.DoctorStatusRejected)
	require.NoError(t, err)
	assert.Equal(t, model.DoctorStatusRejected, view.Status)

	_, err = svc.ApproveDoctor(f.Ctx, admin, doc.ID, "maybe")
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	_, err = svc.ApproveDoctor(f.Ctx, admin, "missing", "")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	neuroHead := f.DepartmentHead("dh@example.com", neuro.ID)
	_, err = svc.ApproveDoctor(f.Ctx, neuroHead, doc.ID, model.DoctorStatusApproved)
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))

	cardioHead := f.DepartmentHead("dh2@example.com", cardio.ID)
	_, err = svc.ApproveDoctor(f.Ctx, cardioHead, doc.ID, model.DoctorStatusApproved)
	assert.NoError(t, err)
}

func TestDepartmentHeadApprovesOnlyOtherDoctors(t *testing.T) {
	f, svc := setup(t)
	cardio := f.Specialty("Cardiology")
	dh := f.DepartmentHead("dh@example.com", cardio.ID)
	peer := f.DepartmentHead("dh2@example.com", cardio.ID)

	_, err := svc.ApproveDoctor(f.Ctx, dh, peer.ID, model.DoctorStatusRejected)
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))
	profile, err := f.Store.Doctors.Get(f.Ctx, peer.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DoctorStatusApproved, profile.Status)

	_, err = svc.ApproveDoctor(f.Ctx, dh, dh.ID, model.DoctorStatusRejected)
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
	profile, err = f.Store.Doctors.Get(f.Ctx, dh.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DoctorStatusApproved, profile.Status)

	admin := f.Admin("admin@example.com", nil)
	view, err := svc.ApproveDoctor(f.Ctx, admin, peer.ID, model.DoctorStatusRejected)
	require.NoError(t, err)
	assert.Equal(t, model.DoctorStatusRejected, view.Status)
}
