package router_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	adminhandler "github.com/jwalitptl/medischedule-api/internal/handler/admin"
	aihandler "github.com/jwalitptl/medischedule-api/internal/handler/ai"
	appointmenthandler "github.com/jwalitptl/medischedule-api/internal/handler/appointment"
	authhandler "github.com/jwalitptl/medischedule-api/internal/handler/auth"
	chathandler "github.com/jwalitptl/medischedule-api/internal/handler/chat"
	"github.com/jwalitptl/medischedule-api/internal/handler/departmenthead"
	directoryhandler "github.com/jwalitptl/medischedule-api/internal/handler/directory"
	"github.com/jwalitptl/medischedule-api/internal/handler/health"
	"github.com/jwalitptl/medischedule-api/internal/middleware"
	"github.com/jwalitptl/medischedule-api/internal/model"
	"github.com/jwalitptl/medischedule-api/internal/router"
	adminService "github.com/jwalitptl/medischedule-api/internal/service/admin"
	aiService "github.com/jwalitptl/medischedule-api/internal/service/ai"
	appointmentService "github.com/jwalitptl/medischedule-api/internal/service/appointment"
	chatService "github.com/jwalitptl/medischedule-api/internal/service/chat"
	directoryService "github.com/jwalitptl/medischedule-api/internal/service/directory"
	"github.com/jwalitptl/medischedule-api/internal/testutil"
	"github.com/jwalitptl/medischedule-api/pkg/llm/llmtest"
)

type testServer struct {
	*testutil.Fixture
	url     string
	advisor *llmtest.MockAdvisor
}

func newTestServer(t *testing.T) *testServer {
	gin.SetMode(gin.TestMode)
	f := testutil.New(t)
	advisor := &llmtest.MockAdvisor{}

	dir := directoryService.NewService(f.Store, f.Authz, f.Events)
	chatSvc := chatService.NewService(f.Store, advisor, f.Events)
	adminSvc := adminService.NewService(f.Store, f.Auth, dir, f.Authz, f.Events)

	r, err := router.NewRouter(
		middleware.NewAuthMiddleware(f.Authz),
		router.Handlers{
			Auth:           authhandler.NewHandler(f.Auth),
			Directory:      directoryhandler.NewHandler(dir),
			Appointment:    appointmenthandler.NewHandler(appointmentService.NewService(f.Store, f.Events)),
			Chat:           chathandler.NewHandler(chatSvc),
			Admin:          adminhandler.NewHandler(adminSvc, dir),
			DepartmentHead: departmenthead.NewHandler(adminSvc, dir),
			AI:             aihandler.NewHandler(aiService.NewService(f.Store.AIChats, advisor, dir, 0), chatSvc),
			Health:         health.NewHandler(f.Store.Users),
		},
		prometheus.NewRegistry(),
		router.RouterConfig{
			CORSConfig:       middleware.DefaultCORSConfig(),
			MetricsNamespace: "test",
		},
	)
	require.NoError(t, err)

	srv := httptest.NewServer(r.Engine())
	t.Cleanup(srv.Close)
	return &testServer{Fixture: f, url: srv.URL + router.APIPrefix, advisor: advisor}
}

type testResponse struct {
	Status int
	Body   []byte
}

func (r testResponse) Decode(t *testing.T, v interface{}) {
	require.NoError(t, json.Unmarshal(r.Body, v), string(r.Body))
}

func (r testResponse) Detail() string {
	var body struct {
		Detail string `json:"detail"`
	}
	_ = json.Unmarshal(r.Body, &body)
	return body.Detail
}

func (s *testServer) makeRequest(method, path string, body interface{}, token string) testResponse {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.T, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, s.url+path, reader)
	require.NoError(s.T, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(s.T, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(s.T, err)
	return testResponse{Status: resp.StatusCode, Body: raw}
}

func (s *testServer) register(email, role, specialtyID string) (string, *model.User) {
	resp := s.makeRequest(http.MethodPost, "/auth/register", map[string]interface{}{
		"email":        email,
		"password":     "Secret1!",
		"full_name":    email,
		"role":         role,
		"specialty_id": specialtyID,
	}, "")
	require.Equal(s.T, http.StatusOK, resp.Status, resp.Detail())

	var out model.AuthResponse
	resp.Decode(s.T, &out)
	require.NotEmpty(s.T, out.Token)
	return out.Token, out.User
}

func (s *testServer) login(identifier, password string) testResponse {
	return s.makeRequest(http.MethodPost, "/auth/login", map[string]string{
		"email":    identifier,
		"password": password,
	}, "")
}

func doctorIDs(t *testing.T, resp testResponse) []string {
	var doctors []model.DoctorView
	resp.Decode(t, &doctors)
	ids := make([]string, 0, len(doctors))
	for _, d := range doctors {
		ids = append(ids, d.UserID)
	}
	return ids
}

func TestHealthAndErrors(t *testing.T) {
	s := newTestServer(t)

	resp := s.makeRequest(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, resp.Status)

	resp = s.makeRequest(http.MethodGet, "/nowhere", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Equal(t, "not found", resp.Detail())

	resp = s.makeRequest(http.MethodGet, "/auth/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.Status)
	assert.NotEmpty(t, resp.Detail())
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	token, user := s.register("Patient@X.com", "", "")
	assert.Equal(t, "patient@x.com", user.Email)
	assert.Equal(t, model.RolePatient, user.Role)

	resp := s.makeRequest(http.MethodGet, "/auth/me", nil, token)
	require.Equal(t, http.StatusOK, resp.Status)
	var me model.User
	resp.Decode(t, &me)
	assert.Equal(t, user.ID, me.ID)

	resp = s.login("PATIENT@x.com", "Secret1!")
	require.Equal(t, http.StatusOK, resp.Status)
	var login model.AuthResponse
	resp.Decode(t, &login)
	claims, err := s.Tokens.Validate(login.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.Subject)

	wrongPassword := s.login("patient@x.com", "Wrong123")
	unknown := s.login("nobody@x.com", "Secret1!")
	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Status)
	assert.Equal(t, wrongPassword.Status, unknown.Status)
	assert.Equal(t, wrongPassword.Detail(), unknown.Detail())

	resp = s.makeRequest(http.MethodPost, "/auth/register", map[string]string{
		"email": "patient@x.com", "password": "Secret1!", "full_name": "Again",
	}, "")
	assert.Equal(t, http.StatusConflict, resp.Status)

	resp = s.makeRequest(http.MethodPost, "/auth/register", map[string]string{
		"email": "weak@x.com", "password": "short", "full_name": "Weak",
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Contains(t, resp.Detail(), "password")

	resp = s.makeRequest(http.MethodPost, "/auth/register", map[string]string{
		"email": "boss@x.com", "password": "Secret1!", "full_name": "Boss", "role": "admin",
	}, "")
	assert.Equal(t, http.StatusForbidden, resp.Status)
}

func TestDeletedUserTokenRejected(t *testing.T) {
	s := newTestServer(t)
	admin := s.Admin("admin@x.com", nil)
	token, user := s.register("patient@x.com", "patient", "")

	resp := s.makeRequest(http.MethodDelete, "/admin/delete-user/"+user.ID, nil, s.Token(admin))
	require.Equal(t, http.StatusOK, resp.Status, resp.Detail())

	resp = s.makeRequest(http.MethodGet, "/auth/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, resp.Status)
}

func TestDoctorApprovalFlow(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.Token(s.Admin("admin@x.com", nil))

	resp := s.makeRequest(http.MethodPost, "/specialties", map[string]string{"name": "Cardiology"}, adminToken)
	require.Equal(t, http.StatusOK, resp.Status, resp.Detail())
	var cardio model.Specialty
	resp.Decode(t, &cardio)

	patientToken, _ := s.register("patient@x.com", "patient", "")
	resp = s.makeRequest(http.MethodPost, "/specialties", map[string]string{"name": "Neurology"}, patientToken)
	assert.Equal(t, http.StatusForbidden, resp.Status)

	_, doctor := s.register("doctor@x.com", "doctor", cardio.ID)

	resp = s.makeRequest(http.MethodGet, "/doctors", nil, "")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.NotContains(t, doctorIDs(t, resp), doctor.ID)

	resp = s.makeRequest(http.MethodPut, "/admin/doctors/"+doctor.ID+"/approve?status=approved", nil, adminToken)
	require.Equal(t, http.StatusOK, resp.Status, resp.Detail())

	resp = s.makeRequest(http.MethodGet, "/doctors?specialty_id="+cardio.ID, nil, "")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Contains(t, doctorIDs(t, resp), doctor.ID)

	resp = s.makeRequest(http.MethodGet, "/doctors/"+doctor.ID, nil, "")
	require.Equal(t, http.StatusOK, resp.Status)
	var view model.DoctorView
	resp.Decode(t, &view)
	assert.Equal(t, "Cardiology", view.SpecialtyName)
}

func TestAppointmentFlow(t *testing.T) {
	s := newTestServer(t)
	cardio := s.Specialty("Cardiology")
	patient := s.Patient("patient@x.com")
	doctor := s.Doctor("doctor@x.com", cardio.ID, model.DoctorStatusApproved)
	other := s.Patient("q@x.com")
	patientToken, doctorToken, otherToken := s.Token(patient), s.Token(doctor), s.Token(other)

	book := map[string]string{
		"doctor_id":        doctor.ID,
		"appointment_type": "in_person",
		"appointment_date": "2025-06-01",
		"appointment_time": "09:00",
		"symptoms":         "chest pain",
	}
	resp := s.makeRequest(http.MethodPost, "/appointments", book, patientToken)
	require.Equal(t, http.StatusOK, resp.Status, resp.Detail())
	var apt model.Appointment
	resp.Decode(t, &apt)
	assert.Equal(t, model.AppointmentStatusPending, apt.Status)

	resp = s.makeRequest(http.MethodPost, "/appointments", book, s.Token(other))
	assert.Equal(t, http.StatusConflict, resp.Status)

	resp = s.makeRequest(http.MethodPost, "/appointments", book, doctorToken)
	assert.Equal(t, http.StatusForbidden, resp.Status)

	status := func(token, value string) testResponse {
		return s.makeRequest(http.MethodPut, "/appointments/"+apt.ID+"/status", map[string]string{"status": value}, token)
	}

	resp = status(doctorToken, "confirmed")
	require.Equal(t, http.StatusOK, resp.Status, resp.Detail())
	assert.Equal(t, http.StatusForbidden, status(otherToken, "completed").Status)

	resp = status(doctorToken, "completed")
	require.Equal(t, http.StatusOK, resp.Status, resp.Detail())
	assert.Equal(t, http.StatusBadRequest, status(doctorToken, "cancelled").Status)

	for _, token := range []string{patientToken, doctorToken} {
		resp = s.makeRequest(http.MethodGet, "/appointments/my", nil, token)
		require.Equal(t, http.StatusOK, resp.Status)
		var mine []model.Appointment
		resp.Decode(t, &mine)
		require.Len(t, mine, 1)
		assert.Equal(t, model.AppointmentStatusCompleted, mine[0].Status)
	}
}

func TestChatFlow(t *testing.T) {
	s := newTestServer(t)
	cardio := s.Specialty("Cardiology")
	patient := s.Patient("patient@x.com")
	doctor := s.Doctor("doctor@x.com", cardio.ID, model.DoctorStatusApproved)
	patientToken, doctorToken := s.Token(patient), s.Token(doctor)
	outsiderToken := s.Token(s.Patient("q@x.com"))

	resp := s.makeRequest(http.MethodPost, "/appointments", map[string]string{
		"doctor_id":        doctor.ID,
		"appointment_type": "online",
		"appointment_date": "2025-06-01",
		"appointment_time": "09:00",
	}, patientToken)
	require.Equal(t, http.StatusOK, resp.Status, resp.Detail())
	var apt model.Appointment
	resp.Decode(t, &apt)

	resp = s.makeRequest(http.MethodPost, "/ai/summarize-conversation/"+apt.ID, nil, patientToken)
	assert.Equal(t, http.StatusBadRequest, resp.Status)

	for i := 0; i < 4; i++ {
		token := patientToken
		if i%2 == 1 {
			token = doctorToken
		}
		resp = s.makeRequest(http.MethodPost, "/chat/send", map[string]string{
			"appointment_id": apt.ID,
			"message":        fmt.Sprintf("message %d", i),
		}, token)
		require.Equal(t, http.StatusOK, resp.Status, resp.Detail())
	}

	resp = s.makeRequest(http.MethodGet, "/chat/"+apt.ID, nil, doctorToken)
	require.Equal(t, http.StatusOK, resp.Status)
	var thread []model.ChatMessage
	resp.Decode(t, &thread)
	require.Len(t, thread, 4)
	assert.Equal(t, "message 0", thread[0].Message)

	s.advisor.On("Advise", mock.Anything, llmtest.Operation("summarize")).
		Return(`{"summary":"Patient reports chest pain.","key_points":["pain"]}`, nil).Once()
	resp = s.makeRequest(http.MethodPost, "/ai/summarize-conversation/"+apt.ID, nil, doctorToken)
	require.Equal(t, http.StatusOK, resp.Status, resp.Detail())
	var summary model.ConversationSummary
	resp.Decode(t, &summary)
	assert.Equal(t, "Patient reports chest pain.", summary.Summary)

	resp = s.makeRequest(http.MethodGet, "/appointments/my", nil, patientToken)
	var mine []model.Appointment
	resp.Decode(t, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, "Patient reports chest pain.", mine[0].ConversationSummary)

	assert.Equal(t, http.StatusForbidden, s.makeRequest(http.MethodGet, "/chat/"+apt.ID, nil, outsiderToken).Status)
	resp = s.makeRequest(http.MethodPost, "/ai/summarize-conversation/"+apt.ID, nil, outsiderToken)
	assert.Equal(t, http.StatusForbidden, resp.Status)
	resp = s.makeRequest(http.MethodPost, "/chat/send", map[string]string{"appointment_id": apt.ID, "message": "hi"}, outsiderToken)
	assert.Equal(t, http.StatusForbidden, resp.Status)
	resp = s.makeRequest(http.MethodPost, "/chat/send", map[string]string{"appointment_id": apt.ID, "message": ""}, outsiderToken)
	assert.Equal(t, http.StatusForbidden, resp.Status)
	resp = s.makeRequest(http.MethodPost, "/chat/send", map[string]string{"appointment_id": apt.ID, "message": ""}, patientToken)
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	s.advisor.AssertExpectations(t)
}

func TestDepartmentHeadFlow(t *testing.T) {
	s := newTestServer(t)
	cardio := s.Specialty("Cardiology")
	neuro := s.Specialty("Neurology")
	adminToken := s.Token(s.Admin("admin@x.com", nil))

	resp := s.makeRequest(http.MethodPost, "/admin/create-user", map[string]interface{}{
		"email":        "head@x.com",
		"password":     "Secret1!",
		"full_name":    "Head",
		"role":         "department_head",
		"specialty_id": cardio.ID,
	}, adminToken)
	require.Equal(t, http.StatusOK, resp.Status, resp.Detail())

	login := s.login("head@x.com", "Secret1!")
	require.Equal(t, http.StatusOK, login.Status)
	var auth model.AuthResponse
	login.Decode(t, &auth)
	assert.Equal(t, model.RoleDepartmentHead, auth.User.Role)

	createDoctor := func(email, specialtyID string) testResponse {
		return s.makeRequest(http.MethodPost, "/department-head/create-user", map[string]interface{}{
			"email":        email,
			"password":     "Secret1!",
			"full_name":    email,
			"role":         "doctor",
			"specialty_id": specialtyID,
		}, auth.Token)
	}

	resp = createDoctor("cardio@x.com", cardio.ID)
	require.Equal(t, http.StatusOK, resp.Status, resp.Detail())
	var created model.UserCreatedResponse
	resp.Decode(t, &created)

	resp = s.makeRequest(http.MethodGet, "/doctors?specialty_id="+cardio.ID, nil, "")
	assert.Contains(t, doctorIDs(t, resp), created.User.ID)

	resp = createDoctor("neuro@x.com", neuro.ID)
	assert.Equal(t, http.StatusForbidden, resp.Status)

	foreign := s.Doctor("foreign@x.com", neuro.ID, model.DoctorStatusPending)
	resp = s.makeRequest(http.MethodPut, "/department-head/approve-doctor/"+foreign.ID, nil, auth.Token)
	assert.Equal(t, http.StatusForbidden, resp.Status)
	resp = s.makeRequest(http.MethodPost, "/department-head/promote", map[string]string{"doctor_id": foreign.ID}, auth.Token)
	assert.Equal(t, http.StatusForbidden, resp.Status)
	resp = s.makeRequest(http.MethodDelete, "/department-head/remove-doctor/"+foreign.ID, nil, auth.Token)
	assert.Equal(t, http.StatusForbidden, resp.Status)

	resp = s.makeRequest(http.MethodPut, "/doctors/profile", map[string]string{"specialty_id": neuro.ID}, auth.Token)
	assert.Equal(t, http.StatusForbidden, resp.Status)
	resp = s.makeRequest(http.MethodDelete, "/department-head/remove-doctor/"+foreign.ID, nil, auth.Token)
	assert.Equal(t, http.StatusForbidden, resp.Status)
	resp = s.makeRequest(http.MethodPut, "/department-head/approve-doctor/"+auth.User.ID, nil, auth.Token)
	assert.Equal(t, http.StatusBadRequest, resp.Status)

	resp = s.makeRequest(http.MethodGet, "/department-head/my-doctors", nil, auth.Token)
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Contains(t, doctorIDs(t, resp), created.User.ID)
	assert.NotContains(t, doctorIDs(t, resp), foreign.ID)
}

func TestAdminPermissionFlow(t *testing.T) {
	s := newTestServer(t)
	root := s.Admin("root@x.com", nil)
	rootToken := s.Token(root)

	resp := s.makeRequest(http.MethodPost, "/admin/create-admin", map[string]string{
		"email": "helper@x.com", "password": "Secret1!", "full_name": "Helper",
	}, rootToken)
	require.Equal(t, http.StatusOK, resp.Status, resp.Detail())
	var created model.UserCreatedResponse
	resp.Decode(t, &created)
	require.NotNil(t, created.User.AdminPermissions)
	assert.False(t, created.User.AdminPermissions.CanCreateAdmins)

	helper := s.login("helper@x.com", "Secret1!")
	require.Equal(t, http.StatusOK, helper.Status)
	var auth model.AuthResponse
	helper.Decode(t, &auth)

	assert.Equal(t, http.StatusForbidden, s.makeRequest(http.MethodGet, "/admin/admins", nil, auth.Token).Status)
	assert.Equal(t, http.StatusForbidden, s.makeRequest(http.MethodPost, "/admin/create-admin", map[string]string{
		"email": "another@x.com", "password": "Secret1!", "full_name": "Another",
	}, auth.Token).Status)
	assert.Equal(t, http.StatusForbidden, s.makeRequest(http.MethodDelete, "/admin/delete-admin/"+root.ID, nil, auth.Token).Status)
	assert.Equal(t, http.StatusForbidden, s.makeRequest(http.MethodPut, "/admin/update-permissions", map[string]interface{}{
		"admin_id":    auth.User.ID,
		"permissions": model.FullAdminPermissions(),
	}, auth.Token).Status)

	resp = s.makeRequest(http.MethodDelete, "/admin/delete-admin/"+root.ID, nil, rootToken)
	assert.Equal(t, http.StatusBadRequest, resp.Status)

	resp = s.makeRequest(http.MethodGet, "/admin/stats", nil, auth.Token)
	require.Equal(t, http.StatusOK, resp.Status)
	var stats model.AdminStats
	resp.Decode(t, &stats)
	assert.EqualValues(t, 2, stats.TotalAdmins)

	resp = s.makeRequest(http.MethodGet, "/admin/stats", nil, s.Token(s.Patient("p@x.com")))
	assert.Equal(t, http.StatusForbidden, resp.Status)
}

func TestAIFlow(t *testing.T) {
	s := newTestServer(t)
	cardio := s.Specialty("Cardiology")
	doctor := s.Doctor("doctor@x.com", cardio.ID, model.DoctorStatusApproved)
	patientToken := s.Token(s.Patient("patient@x.com"))

	s.advisor.On("Advise", mock.Anything, llmtest.Operation("chat")).Return("Drink water.", nil)
	s.advisor.On("Advise", mock.Anything, llmtest.Operation("recommend")).
		Return(`{"recommended_specialty":"Cardiology","explanation":"heart","urgency_level":"low"}`, nil)

	resp := s.makeRequest(http.MethodPost, "/ai/chat", map[string]string{"message": "I feel dizzy"}, patientToken)
	require.Equal(t, http.StatusOK, resp.Status, resp.Detail())
	var chat model.AIChatResponse
	resp.Decode(t, &chat)
	assert.Equal(t, "Drink water.", chat.Response)

	resp = s.makeRequest(http.MethodGet, "/ai/chat-history?session_id="+chat.SessionID, nil, patientToken)
	require.Equal(t, http.StatusOK, resp.Status)
	var history model.AIChatHistory
	resp.Decode(t, &history)
	assert.Equal(t, 1, history.TotalMessages)

	resp = s.makeRequest(http.MethodPost, "/ai/recommend-doctor", map[string]string{"symptoms": "palpitations"}, patientToken)
	require.Equal(t, http.StatusOK, resp.Status, resp.Detail())
	var rec model.DoctorRecommendation
	resp.Decode(t, &rec)
	require.Len(t, rec.RecommendedDoctors, 1)
	assert.Equal(t, doctor.ID, rec.RecommendedDoctors[0].UserID)

	resp = s.makeRequest(http.MethodPost, "/ai/chat", map[string]string{"message": "hi"}, s.Token(doctor))
	assert.Equal(t, http.StatusForbidden, resp.Status)
}
