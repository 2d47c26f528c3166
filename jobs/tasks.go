package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/edunirix/portal/internal/auth"
	"github.com/edunirix/portal/internal/observability"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	if strings.TrimSpace(payload.To) == "" {
		return nil, fmt.Errorf("jobs: email recipient required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data, asynq.MaxRetry(5)), nil
}

// FirstLoginEmail builds the guidance mail sent when an account signs in for
// the first time.
func FirstLoginEmail(user auth.User, passwordChangeURL string) SendEmailPayload {
	name := strings.TrimSpace(user.Name)
	if name == "" {
		name = user.Email
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", name)
	b.WriteString("You just signed in to EDUNIRIX for the first time.\n")
	b.WriteString("For security, please set a new password to continue")
	if passwordChangeURL != "" {
		fmt.Fprintf(&b, ": %s", passwordChangeURL)
	}
	b.WriteString(".\n\nIf this was not you, contact your administrator.\n")
	return SendEmailPayload{
		To:      user.Email,
		Subject: "Welcome to EDUNIRIX",
		Body:    b.String(),
	}
}

// Sender delivers a rendered email.
type Sender interface {
	Send(ctx context.Context, payload SendEmailPayload) error
}

// LogSender writes emails to the log instead of delivering them.
type LogSender struct {
	Logger *slog.Logger
}

// Send implements Sender.
func (s LogSender) Send(ctx context.Context, payload SendEmailPayload) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "email delivered",
		slog.String("to", payload.To),
		slog.String("subject", payload.Subject),
	)
	return nil
}

// EmailJob handles TaskTypeSendEmail tasks.
type EmailJob struct {
	sender  Sender
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewEmailJob constructs an EmailJob. A nil sender logs deliveries.
func NewEmailJob(sender Sender, logger *slog.Logger, metrics *observability.Metrics) *EmailJob {
	if logger == nil {
		logger = slog.Default()
	}
	if sender == nil {
		sender = LogSender{Logger: logger}
	}
	return &EmailJob{sender: sender, logger: logger, metrics: metrics}
}

// Handle processes one send-email task.
func (j *EmailJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		j.logger.Warn("drop malformed email task", slog.Any("error", err))
		j.metrics.ObserveJob(TaskTypeSendEmail, err)
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	err := j.sender.Send(ctx, payload)
	j.metrics.ObserveJob(TaskTypeSendEmail, err)
	if err != nil {
		return fmt.Errorf("jobs: send email to %s: %w", payload.To, err)
	}
	return nil
}
