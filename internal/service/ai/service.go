package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/medischedule-api/internal/model"
	"github.com/jwalitptl/medischedule-api/internal/repository"
	apperrors "github.com/jwalitptl/medischedule-api/pkg/errors"
	"github.com/jwalitptl/medischedule-api/pkg/llm"
)

const DefaultHistoryLimit = 10

const chatSystemPrompt = `You are a helpful medical assistant for a clinic appointment service.
Give general health information and help patients decide which kind of doctor to see.
You do not diagnose. Tell the patient to seek emergency care when symptoms sound serious.`

const recommendSystemPrompt = `You match patient symptoms to one medical specialty.
Choose exactly one specialty from this list: %s.
Answer with a JSON object with the keys "recommended_specialty" (one of the listed names),
"explanation" (string) and "urgency_level" (one of "low", "medium", "high", "emergency").`

var urgencyLevels = map[string]bool{"low": true, "medium": true, "high": true, "emergency": true}

// Directory is the doctor lookup the recommendation needs.
type Directory interface {
	ListSpecialties(ctx context.Context) ([]*model.Specialty, error)
	ListApprovedDoctors(ctx context.Context, specialtyID string) ([]*model.DoctorView, error)
}

type Service struct {
	history      repository.AIChatRepository
	advisor      llm.Advisor
	directory    Directory
	historyLimit int
}

func NewService(history repository.AIChatRepository, advisor llm.Advisor, directory Directory, historyLimit int) *Service {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Service{
		history:      history,
		advisor:      advisor,
		directory:    directory,
		historyLimit: historyLimit,
	}
}

// Chat answers a patient message, replaying the recent turns of the session.
func (s *Service) Chat(ctx context.Context, patient *model.User, req *model.AIChatRequest) (*model.AIChatResponse, error) {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return nil, apperrors.Validation("message must not be empty")
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = model.NewID()
	}

	recent, err := s.history.Recent(ctx, patient.ID, sessionID, s.historyLimit)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to load chat history: %w", err))
	}
	messages := make([]llm.Message, 0, 2*len(recent)+1)
	for _, r := range recent {
		messages = append(messages,
			llm.Message{Role: "user", Content: r.UserMessage},
			llm.Message{Role: "assistant", Content: r.AIResponse},
		)
	}
	messages = append(messages, llm.Message{Role: "user", Content: text})

	answer, err := s.advisor.Advise(ctx, llm.Prompt{
		Operation: "chat",
		System:    chatSystemPrompt,
		Messages:  messages,
	})
	if err != nil {
		log.Warn().Err(err).Str("patient_id", patient.ID).Msg("ai chat failed")
		return nil, llm.AsAppError(err)
	}

	record := &model.AiChatRecord{
		ID:          model.NewID(),
		PatientID:   patient.ID,
		SessionID:   sessionID,
		UserMessage: text,
		AIResponse:  answer,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.history.Create(ctx, record); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to store ai chat record")
	}

	return &model.AIChatResponse{Response: answer, SessionID: sessionID}, nil
}

type recommendation struct {
	RecommendedSpecialty string `json:"recommended_specialty"`
	Explanation          string `json:"explanation"`
	UrgencyLevel         string `json:"urgency_level"`
}

// RecommendDoctor maps symptoms to a specialty of the catalogue and lists its
// approved doctors.
func (s *Service) RecommendDoctor(ctx context.Context, patient *model.User, req *model.RecommendDoctorRequest) (*model.DoctorRecommendation, error) {
	symptoms := strings.TrimSpace(req.Symptoms)
	if symptoms == "" {
		return nil, apperrors.Validation("symptoms must not be empty")
	}

	specialties, err := s.directory.ListSpecialties(ctx)
	if err != nil {
		return nil, err
	}
	if len(specialties) == 0 {
		return nil, apperrors.NotFound("specialties")
	}
	names := make([]string, 0, len(specialties))
	for _, sp := range specialties {
		names = append(names, sp.Name)
	}

	answer, err := s.advisor.Advise(ctx, llm.Prompt{
		Operation: "recommend",
		System:    fmt.Sprintf(recommendSystemPrompt, strings.Join(names, ", ")),
		Messages:  []llm.Message{{Role: "user", Content: symptoms}},
		JSON:      true,
	})
	if err != nil {
		log.Warn().Err(err).Str("patient_id", patient.ID).Msg("doctor recommendation failed")
		return nil, llm.AsAppError(err)
	}

	var rec recommendation
	if err := llm.ExtractJSON(answer, &rec); err != nil {
		rec = recommendation{Explanation: strings.TrimSpace(answer)}
	}
	urgency := strings.ToLower(strings.TrimSpace(rec.UrgencyLevel))
	if !urgencyLevels[urgency] {
		urgency = "medium"
	}

	out := &model.DoctorRecommendation{
		RecommendedSpecialty: strings.TrimSpace(rec.RecommendedSpecialty),
		Explanation:          rec.Explanation,
		UrgencyLevel:         urgency,
		RecommendedDoctors:   []model.DoctorView{},
	}
	for _, sp := range specialties {
		if strings.EqualFold(sp.Name, out.RecommendedSpecialty) {
			out.SpecialtyID = sp.ID
			out.RecommendedSpecialty = sp.Name
			break
		}
	}
	if out.SpecialtyID == "" {
		return out, nil
	}

	doctors, err := s.directory.ListApprovedDoctors(ctx, out.SpecialtyID)
	if err != nil {
		return nil, err
	}
	for _, d := range doctors {
		out.RecommendedDoctors = append(out.RecommendedDoctors, *d)
	}
	return out, nil
}

// History groups a patient's assistant exchanges by session.
func (s *Service) History(ctx context.Context, patient *model.User, sessionID string) (*model.AIChatHistory, error) {
	records, err := s.history.List(ctx, patient.ID, strings.TrimSpace(sessionID))
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list chat history: %w", err))
	}

	out := &model.AIChatHistory{Sessions: make(map[string][]model.AiChatRecord)}
	for _, r := range records {
		out.Sessions[r.SessionID] = append(out.Sessions[r.SessionID], *r)
	}
	out.TotalMessages = len(records)
	return out, nil
}
