package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/ferreexpress/ferreexpress/jobs"
)

// Enqueuer is the subset of jobs.Client used by QueueMailer.
type Enqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) error
}

// QueueMailer hands mail to the background worker.
type QueueMailer struct {
	queue Enqueuer
}

// NewQueueMailer constructs QueueMailer.
func NewQueueMailer(queue Enqueuer) *QueueMailer {
	return &QueueMailer{queue: queue}
}

// SendMail enqueues a mail:send task.
func (m *QueueMailer) SendMail(ctx context.Context, msg Mail) error {
	return m.queue.EnqueueSendEmail(ctx, jobs.SendEmailPayload{
		To:      msg.To,
		Subject: msg.Subject,
		Text:    msg.Text,
		HTML:    msg.HTML,
	})
}

// SMTPConfig addresses the relay used by the worker.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
}

// SMTPSender delivers queued mail through an SMTP relay.
type SMTPSender struct {
	cfg  SMTPConfig
	send func(ctx context.Context, msg *mail.Msg) error
}

// NewSMTPSender constructs SMTPSender.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	s := &SMTPSender{cfg: cfg}
	s.send = s.dial
	return s
}

// Send implements jobs.EmailSender.
func (s *SMTPSender) Send(ctx context.Context, payload jobs.SendEmailPayload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := buildMessage(s.cfg.From, payload, time.Now())
	if err != nil {
		return err
	}
	return s.send(ctx, msg)
}

func (s *SMTPSender) dial(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
		mail.WithPort(s.cfg.Port),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// buildMessage assembles a UTF-8 message; text and html become a
// multipart/alternative body when both are set.
func buildMessage(from string, p jobs.SendEmailPayload, now time.Time) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("mail from: %w", err)
	}
	if err := msg.To(p.To); err != nil {
		return nil, fmt.Errorf("mail to: %w", err)
	}
	msg.Subject(p.Subject)
	msg.SetDateWithValue(now)

	switch {
	case p.Text != "" && p.HTML != "":
		msg.SetBodyString(mail.TypeTextPlain, p.Text)
		msg.AddAlternativeString(mail.TypeTextHTML, p.HTML)
	case p.HTML != "":
		msg.SetBodyString(mail.TypeTextHTML, p.HTML)
	default:
		msg.SetBodyString(mail.TypeTextPlain, p.Text)
	}
	return msg, nil
}
