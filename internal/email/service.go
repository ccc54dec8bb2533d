package email

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/medischedule-api/pkg/metrics"
)

type Service interface {
	SendPasswordReset(ctx context.Context, to, name string) error
	SendWelcome(ctx context.Context, to, name string) error
	SendCustom(ctx context.Context, to, subject, content string) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// NewService returns an SMTP sender, or a sender that only logs when no host is configured.
func NewService(cfg Config, m *metrics.Metrics) Service {
	if m == nil {
		m = metrics.NewNop()
	}
	if cfg.Host == "" {
		return &logSender{}
	}
	return &smtpSender{
		cfg:     cfg,
		dialer:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		metrics: m,
	}
}

type smtpSender struct {
	cfg     Config
	dialer  *gomail.Dialer
	metrics *metrics.Metrics
}

func (s *smtpSender) SendPasswordReset(ctx context.Context, to, name string) error {
	body := fmt.Sprintf("Hello %s,\n\nWe received a request to reset your MediSchedule password. "+
		"Please contact the clinic administrator to complete the reset. "+
		"If you did not ask for this, you can ignore this email.\n", name)
	return s.send(ctx, "password_reset", to, "MediSchedule password reset", body)
}

func (s *smtpSender) SendWelcome(ctx context.Context, to, name string) error {
	body := fmt.Sprintf("Hello %s,\n\nYour MediSchedule account is ready.\n", name)
	return s.send(ctx, "welcome", to, "Welcome to MediSchedule", body)
}

func (s *smtpSender) SendCustom(ctx context.Context, to, subject, content string) error {
	return s.send(ctx, "custom", to, subject, content)
}

func (s *smtpSender) send(ctx context.Context, kind, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	err := s.dialer.DialAndSend(m)
	s.metrics.EmailsSent.WithLabelValues(kind, metrics.Status(err)).Inc()
	if err != nil {
		return fmt.Errorf("failed to send %s email: %w", kind, err)
	}
	return nil
}

type logSender struct{}

func (l *logSender) SendPasswordReset(_ context.Context, to, _ string) error {
	log.Info().Str("to", to).Msg("smtp not configured, skipping password reset email")
	return nil
}

func (l *logSender) SendWelcome(_ context.Context, to, _ string) error {
	log.Info().Str("to", to).Msg("smtp not configured, skipping welcome email")
	return nil
}

func (l *logSender) SendCustom(_ context.Context, to, subject, _ string) error {
	log.Info().Str("to", to).Str("subject", subject).Msg("smtp not configured, skipping email")
	return nil
}
