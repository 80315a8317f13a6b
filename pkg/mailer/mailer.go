package mailer

import (
	"context"
	"fmt"
	"mime/quotedprintable"
	"net/smtp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/policyforge/policyforge-api/pkg/config"
	"github.com/policyforge/policyforge-api/pkg/jobs"
)

// Message describes one outbound HTML email.
type Message struct {
	Subject  string
	HTMLBody string
	To       []string
	Cc       []string
	Bcc      []string
}

// Sender delivers a message. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender delivers mail over plain SMTP with optional STARTTLS.
type SMTPSender struct {
	cfg config.MailConfig
}

// NewSMTPSender builds the sender from mail configuration.
func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// Send builds and transmits the message. A disabled mailer is a silent no-op
// so development environments never attempt delivery.
func (s *SMTPSender) Send(_ context.Context, msg Message) error {
	if !s.cfg.Enabled {
		return nil
	}

	to := dedupeRecipients(msg.To)
	if len(to) == 0 {
		return fmt.Errorf("at least one recipient required")
	}
	cc := dedupeRecipients(msg.Cc)
	bcc := dedupeRecipients(msg.Bcc)

	body, err := buildMIME(s.cfg.From, msg.Subject, msg.HTMLBody, to, cc)
	if err != nil {
		return err
	}

	rcpts := dedupeRecipients(append(append(append([]string{}, to...), cc...), bcc...))
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	var auth smtp.Auth
	if s.cfg.User != "" && s.cfg.Password != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, s.cfg.From, rcpts, body); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// Dispatcher pushes messages onto a background queue so callers never block
// on, or fail because of, SMTP delivery.
type Dispatcher struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewDispatcher wires a sender behind a worker queue.
func NewDispatcher(sender Sender, cfg config.MailConfig, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	handler := func(ctx context.Context, job jobs.Job) error {
		msg, ok := job.Payload.(Message)
		if !ok {
			return fmt.Errorf("unexpected payload type %T", job.Payload)
		}
		sendCtx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
		defer cancel()
		return sender.Send(sendCtx, msg)
	}
	queue := jobs.NewQueue("mail", handler, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return &Dispatcher{queue: queue, logger: logger}
}

// Start launches the delivery workers.
func (d *Dispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop drains the workers.
func (d *Dispatcher) Stop() {
	d.queue.Stop()
}

// Dispatch enqueues a message, logging instead of failing when the queue is
// unavailable. Delivery is fire-and-forget.
func (d *Dispatcher) Dispatch(msg Message) {
	if err := d.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: "email", Payload: msg}); err != nil {
		d.logger.Warn("failed to enqueue email", zap.String("subject", msg.Subject), zap.Error(err))
	}
}

func buildMIME(from, subject, html string, to, cc []string) ([]byte, error) {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("From: %s\r\n", from))
	b.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(to, ", ")))
	if len(cc) > 0 {
		b.WriteString(fmt.Sprintf("Cc: %s\r\n", strings.Join(cc, ", ")))
	}
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
	b.WriteString("\r\n")

	qp := quotedprintable.NewWriter(&b)
	if _, err := qp.Write([]byte(html)); err != nil {
		return nil, fmt.Errorf("encode mail body: %w", err)
	}
	if err := qp.Close(); err != nil {
		return nil, fmt.Errorf("encode mail body: %w", err)
	}
	return []byte(b.String()), nil
}

func dedupeRecipients(addrs []string) []string {
	seen := make(map[string]struct{}, len(addrs))
	result := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		trimmed := strings.TrimSpace(addr)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}
