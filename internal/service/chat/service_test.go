package chat_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/medischedule-api/internal/model"
	"github.com/jwalitptl/medischedule-api/internal/service/appointment"
	"github.com/jwalitptl/medischedule-api/internal/service/chat"
	"github.com/jwalitptl/medischedule-api/internal/testutil"
	apperrors "github.com/jwalitptl/medischedule-api/pkg/errors"
	"github.com/jwalitptl/medischedule-api/pkg/llm"
	"github.com/jwalitptl/medischedule-api/pkg/llm/llmtest"
)

type env struct {
	*testutil.Fixture
	svc     *chat.Service
	advisor *llmtest.MockAdvisor
	patient *model.User
	doctor  *model.User
	apt     *model.Appointment
}

func setup(t *testing.T) *env {
	f := testutil.New(t)
	sp := f.Specialty("Cardiology")
	patient := f.Patient("patient@example.com")
	doctor := f.Doctor("doctor@example.com", sp.ID, model.DoctorStatusApproved)

	apt, err := appointment.NewService(f.Store, f.Events).Create(f.Ctx, patient, &model.CreateAppointmentRequest{
		DoctorID:        doctor.ID,
		AppointmentType: model.AppointmentTypeOnline,
		AppointmentDate: "2025-06-01",
		AppointmentTime: "10:00",
	})
	require.NoError(t, err)

	advisor := &llmtest.MockAdvisor{}
	return &env{
		Fixture: f,
		svc:     chat.NewService(f.Store, advisor, f.Events),
		advisor: advisor,
		patient: patient,
		doctor:  doctor,
		apt:     apt,
	}
}

func (e *env) send(t *testing.T, from *model.User, text string) {
	_, err := e.svc.Send(e.Ctx, from, &model.SendMessageRequest{AppointmentID: e.apt.ID, Message: text})
	require.NoError(t, err)
}

func TestSendAndList(t *testing.T) {
	e := setup(t)
	e.send(t, e.patient, "  I have chest pain  ")
	e.send(t, e.doctor, "Since when?")

	msgs, err := e.svc.List(e.Ctx, e.doctor, e.apt.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "I have chest pain", msgs[0].Message)
	assert.Equal(t, e.patient.FullName, msgs[0].SenderName)
	assert.Equal(t, e.doctor.ID, msgs[1].SenderID)
	assert.Contains(t, e.Events.Types(), model.EventChatMessageSent)
}

func TestSendRejections(t *testing.T) {
	e := setup(t)
	outsider := e.Patient("outsider@example.com")

	_, err := e.svc.Send(e.Ctx, outsider, &model.SendMessageRequest{AppointmentID: e.apt.ID, Message: "hi"})
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))

	_, err = e.svc.Send(e.Ctx, e.patient, &model.SendMessageRequest{AppointmentID: "missing", Message: "hi"})
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	_, err = e.svc.Send(e.Ctx, e.patient, &model.SendMessageRequest{AppointmentID: e.apt.ID, Message: "   "})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	long := strings.Repeat("x", chat.MaxMessageLength+1)
	_, err = e.svc.Send(e.Ctx, e.patient, &model.SendMessageRequest{AppointmentID: e.apt.ID, Message: long})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	_, err = e.svc.List(e.Ctx, outsider, e.apt.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))
}

func TestSendAuthorizesBeforeValidating(t *testing.T) {
	e := setup(t)
	outsider := e.Patient("outsider@example.com")

	_, err := e.svc.Send(e.Ctx, outsider, &model.SendMessageRequest{AppointmentID: e.apt.ID, Message: ""})
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))

	_, err = e.svc.Send(e.Ctx, outsider, &model.SendMessageRequest{AppointmentID: "missing", Message: ""})
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	long := strings.Repeat("x", chat.MaxMessageLength+1)
	_, err = e.svc.Send(e.Ctx, outsider, &model.SendMessageRequest{AppointmentID: e.apt.ID, Message: long})
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))
}

func TestSummarize(t *testing.T) {
	e := setup(t)
	e.send(t, e.patient, "I have chest pain")
	e.send(t, e.doctor, "Please come in tomorrow")

	e.advisor.On("Advise", mock.Anything, mock.MatchedBy(func(p llm.Prompt) bool {
		return p.Operation == "summarize" && p.JSON &&
			strings.Contains(p.Messages[0].Content, "patient@example.com: I have chest pain")
	})).Return(`{"summary":"Chest pain follow-up","key_points":["visit tomorrow"],"symptoms_mentioned":["chest pain"]}`, nil).Once()

	summary, err := e.svc.Summarize(e.Ctx, e.doctor, e.apt.ID)
	require.NoError(t, err)
	assert.Equal(t, "Chest pain follow-up", summary.Summary)
	assert.Equal(t, []string{"chest pain"}, summary.SymptomsMentioned)
	assert.Equal(t, []string{}, summary.Recommendations)

	stored, err := e.Store.Appointments.Get(e.Ctx, e.apt.ID)
	require.NoError(t, err)
	assert.Equal(t, "Chest pain follow-up", stored.ConversationSummary)
	assert.Equal(t, e.doctor.ID, stored.SummaryCreatedBy)
	assert.NotNil(t, stored.SummaryCreatedAt)
	e.advisor.AssertExpectations(t)
}

func TestSummarizePlainTextAnswer(t *testing.T) {
	e := setup(t)
	e.send(t, e.patient, "hello")
	e.advisor.On("Advise", mock.Anything, llmtest.Operation("summarize")).Return("Patient said hello.", nil)

	summary, err := e.svc.Summarize(e.Ctx, e.patient, e.apt.ID)
	require.NoError(t, err)
	assert.Equal(t, "Patient said hello.", summary.Summary)
	assert.Empty(t, summary.KeyPoints)
}

func TestSummarizeEmptyThread(t *testing.T) {
	e := setup(t)

	_, err := e.svc.Summarize(e.Ctx, e.patient, e.apt.ID)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindNoContent, appErr.Kind)
	assert.Equal(t, 400, appErr.StatusCode())
	e.advisor.AssertNotCalled(t, "Advise", mock.Anything, mock.Anything)
}

func TestSummarizeAdvisorDown(t *testing.T) {
	e := setup(t)
	e.send(t, e.patient, "hello")
	e.advisor.On("Advise", mock.Anything, mock.Anything).Return("", llm.ErrUnavailable)

	_, err := e.svc.Summarize(e.Ctx, e.patient, e.apt.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindUpstream))

	stored, err := e.Store.Appointments.Get(e.Ctx, e.apt.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.ConversationSummary)
}
