package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/medischedule-api/internal/model"
	"github.com/jwalitptl/medischedule-api/internal/repository"
	"github.com/jwalitptl/medischedule-api/internal/service/event"
	"github.com/jwalitptl/medischedule-api/internal/service/rbac"
	apperrors "github.com/jwalitptl/medischedule-api/pkg/errors"
	"github.com/jwalitptl/medischedule-api/pkg/llm"
)

const MaxMessageLength = 5000

const summarySystemPrompt = `You summarize conversations between a patient and a doctor.
Answer with a JSON object with the keys "summary" (string), "key_points" (array of strings),
"symptoms_mentioned" (array of strings) and "recommendations" (array of strings).
Do not invent facts that are not in the conversation.`

type Service struct {
	appointments repository.AppointmentRepository
	messages     repository.ChatRepository
	advisor      llm.Advisor
	events       event.Emitter
}

func NewService(store *repository.Store, advisor llm.Advisor, events event.Emitter) *Service {
	return &Service{
		appointments: store.Appointments,
		messages:     store.Chats,
		advisor:      advisor,
		events:       events,
	}
}

// Send appends a message to an appointment thread. Only its patient and doctor may write.
func (s *Service) Send(ctx context.Context, user *model.User, req *model.SendMessageRequest) (*model.ChatMessage, error) {
	if _, err := s.participantAppointment(ctx, user, req.AppointmentID); err != nil {
		return nil, err
	}

	text := strings.TrimSpace(req.Message)
	if text == "" {
		return nil, apperrors.Validation("message must not be empty")
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return nil, apperrors.Validation(fmt.Sprintf("message must be at most %d characters", MaxMessageLength))
	}

	msg := &model.ChatMessage{
		ID:            model.NewID(),
		AppointmentID: req.AppointmentID,
		SenderID:      user.ID,
		SenderName:    user.FullName,
		Message:       text,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to store chat message: %w", err))
	}

	s.events.Emit(ctx, model.EventChatMessageSent, user.ID, model.ChatEventPayload{
		AppointmentID: msg.AppointmentID,
		MessageID:     msg.ID,
		SenderID:      msg.SenderID,
	})
	return msg, nil
}

// List returns an appointment thread oldest first.
func (s *Service) List(ctx context.Context, user *model.User, appointmentID string) ([]*model.ChatMessage, error) {
	if _, err := s.participantAppointment(ctx, user, appointmentID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByAppointment(ctx, appointmentID)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list chat messages: %w", err))
	}
	return msgs, nil
}

// Summarize asks the advisor for a summary of the thread and stores it on the
// appointment. Every call is a new advisor request.
func (s *Service) Summarize(ctx context.Context, user *model.User, appointmentID string) (*model.ConversationSummary, error) {
	msgs, err := s.List(ctx, user, appointmentID)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, apperrors.NoContent("no messages to summarize")
	}

	var transcript strings.Builder
	for _, m := range msgs {
		fmt.Fprintf(&transcript, "%s: %s\n", m.SenderName, m.Message)
	}

	answer, err := s.advisor.Advise(ctx, llm.Prompt{
		Operation: "summarize",
		System:    summarySystemPrompt,
		Messages:  []llm.Message{{Role: "user", Content: transcript.String()}},
		JSON:      true,
	})
	if err != nil {
		log.Warn().Err(err).Str("appointment_id", appointmentID).Msg("conversation summary failed")
		return nil, llm.AsAppError(err)
	}

	summary := parseSummary(answer)
	if err := s.appointments.SetSummary(ctx, appointmentID, summary.Summary, user.ID, time.Now().UTC()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("appointment")
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to store summary: %w", err))
	}
	return summary, nil
}

func (s *Service) participantAppointment(ctx context.Context, user *model.User, appointmentID string) (*model.Appointment, error) {
	apt, err := s.appointments.Get(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("appointment")
		}
		return nil, apperrors.Internal(fmt.Errorf("failed to get appointment: %w", err))
	}
	if err := rbac.RequireParticipant(user, apt); err != nil {
		return nil, err
	}
	return apt, nil
}

// parseSummary falls back to the raw answer when it is not the requested JSON.
func parseSummary(answer string) *model.ConversationSummary {
	var out model.ConversationSummary
	if err := llm.ExtractJSON(answer, &out); err != nil || strings.TrimSpace(out.Summary) == "" {
		out = model.ConversationSummary{Summary: strings.TrimSpace(answer)}
	}
	if out.KeyPoints == nil {
		out.KeyPoints = []string{}
	}
	if out.SymptomsMentioned == nil {
		out.SymptomsMentioned = []string{}
	}
	if out.Recommendations == nil {
		out.Recommendations = []string{}
	}
	return &out
}
