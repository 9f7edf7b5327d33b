package notifications

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"github.com/ferreexpress/ferreexpress/internal/shared"
	"github.com/ferreexpress/ferreexpress/jobs"
)

type failingNotifier struct{ calls int }

func (f *failingNotifier) Notify(ctx context.Context, n Notification) error {
	f.calls++
	return errors.New("db down")
}

type recordingQueue struct{ payloads []jobs.SendEmailPayload }

func (q *recordingQueue) EnqueueSendEmail(ctx context.Context, p jobs.SendEmailPayload) error {
	q.payloads = append(q.payloads, p)
	return nil
}

type failingAuditor struct{}

func (failingAuditor) Record(ctx context.Context, log shared.AuditLog) error {
	return errors.New("audit down")
}

func TestDispatcherSwallowsFailures(t *testing.T) {
	notifier := &failingNotifier{}
	d := NewDispatcher(notifier, nil, failingAuditor{}, nil)

	require.NotPanics(t, func() {
		d.Notify(context.Background(), Notification{UserID: 1, Title: "x", Category: CategoryOrder})
		d.Audit(context.Background(), shared.AuditLog{Action: "a", Entity: "e", EntityID: "1"})
		d.Mail(context.Background(), Mail{To: "a@b.c"})
	})
	require.Equal(t, 1, notifier.calls)

	var nilDispatcher *Dispatcher
	require.NotPanics(t, func() { nilDispatcher.Notify(context.Background(), Notification{}) })
}

func TestDispatcherQueuesMail(t *testing.T) {
	queue := &recordingQueue{}
	d := NewDispatcher(nil, NewQueueMailer(queue), nil, nil)

	d.Mail(context.Background(), Mail{To: "cliente@example.com", Subject: "Pedido #1", Text: "hola"})
	d.Mail(context.Background(), Mail{Subject: "sin destinatario"})

	require.Len(t, queue.payloads, 1)
	require.Equal(t, "cliente@example.com", queue.payloads[0].To)
}

func sentMessage(t *testing.T, payload jobs.SendEmailPayload) string {
	t.Helper()
	sender := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: 1025, From: "ventas@ferreexpress.co"})
	var got *mail.Msg
	sender.send = func(ctx context.Context, msg *mail.Msg) error {
		got = msg
		return nil
	}
	require.NoError(t, sender.Send(context.Background(), payload))
	require.NotNil(t, got)

	var buf bytes.Buffer
	_, err := got.WriteTo(&buf)
	require.NoError(t, err)
	return buf.String()
}

func TestSMTPSenderBuildsMultipartMessage(t *testing.T) {
	msg := sentMessage(t, jobs.SendEmailPayload{To: "cliente@example.com", Subject: "Pedido", Text: "texto", HTML: "<p>html</p>"})
	require.Contains(t, msg, "multipart/alternative")
	require.Contains(t, msg, "cliente@example.com")
	require.Contains(t, msg, "texto")
	require.Contains(t, msg, "<p>html</p>")
}

func TestSMTPSenderEncodesSpanishText(t *testing.T) {
	msg := sentMessage(t, jobs.SendEmailPayload{To: "cliente@example.com", Subject: "Cotización aceptada", Text: "envío $10.000"})

	require.NotContains(t, msg, "Cotización aceptada")
	require.Contains(t, msg, "=?UTF-8?q?Cotizaci=C3=B3n")
	require.Contains(t, msg, "Content-Transfer-Encoding: quoted-printable")
	require.Contains(t, msg, "env=C3=ADo $10.000")
	require.NotContains(t, msg, "envío")
}

func TestSMTPSenderRejectsBadRecipient(t *testing.T) {
	sender := NewSMTPSender(SMTPConfig{Host: "127.0.0.1", Port: 1025, From: "ventas@ferreexpress.co"})
	sender.send = func(ctx context.Context, msg *mail.Msg) error {
		t.Fatal("unexpected send")
		return nil
	}
	require.Error(t, sender.Send(context.Background(), jobs.SendEmailPayload{To: "no es correo", Subject: "x", Text: "y"}))
}
