// Package notifications delivers the best-effort side effects of sales
// operations: in-app notifications, transactional email and audit entries.
package notifications

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ferreexpress/ferreexpress/internal/shared"
)

// Category groups notifications in the storefront inbox.
type Category string

const (
	CategoryQuotation Category = "COTIZACION"
	CategoryOrder     Category = "PEDIDO"
	CategoryPayment   Category = "PAGO"
)

// Notification is an in-app message for one user.
type Notification struct {
	UserID   int64
	Title    string
	Message  string
	Category Category
}

// Mail is an outbound email.
type Mail struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Notifier stores in-app notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Mailer hands email to the delivery pipeline.
type Mailer interface {
	SendMail(ctx context.Context, m Mail) error
}

// Store persists notifications in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Notify inserts the notification as unread.
func (s *Store) Notify(ctx context.Context, n Notification) error {
	if s == nil || s.pool == nil {
		return errors.New("notification store not initialised")
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO notifications (user_id, title, message, category, read, created_at) VALUES ($1, $2, $3, $4, FALSE, NOW())`,
		n.UserID, n.Title, n.Message, n.Category)
	return err
}

const sideEffectTimeout = 5 * time.Second

// Dispatcher fans side effects out to the sinks. Failures are logged and
// swallowed; callers invoke it only after their transaction committed.
type Dispatcher struct {
	notifier Notifier
	mailer   Mailer
	auditor  shared.Auditor
	logger   *slog.Logger
}

// NewDispatcher constructs Dispatcher. Any sink may be nil.
func NewDispatcher(notifier Notifier, mailer Mailer, auditor shared.Auditor, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{notifier: notifier, mailer: mailer, auditor: auditor, logger: logger}
}

// Notify stores an in-app notification.
func (d *Dispatcher) Notify(ctx context.Context, n Notification) {
	if d == nil || d.notifier == nil {
		return
	}
	ctx, cancel := detach(ctx)
	defer cancel()
	if err := d.notifier.Notify(ctx, n); err != nil {
		d.logger.Warn("notify", slog.Int64("user_id", n.UserID), slog.String("category", string(n.Category)), slog.Any("error", err))
	}
}

// Mail queues an email. Empty recipients are skipped.
func (d *Dispatcher) Mail(ctx context.Context, m Mail) {
	if d == nil || d.mailer == nil || m.To == "" {
		return
	}
	ctx, cancel := detach(ctx)
	defer cancel()
	if err := d.mailer.SendMail(ctx, m); err != nil {
		d.logger.Warn("send mail", slog.String("subject", m.Subject), slog.Any("error", err))
	}
}

// Audit records an audit entry.
func (d *Dispatcher) Audit(ctx context.Context, log shared.AuditLog) {
	if d == nil || d.auditor == nil {
		return
	}
	ctx, cancel := detach(ctx)
	defer cancel()
	if err := d.auditor.Record(ctx, log); err != nil {
		d.logger.Warn("audit", slog.String("action", log.Action), slog.String("entity_id", log.EntityID), slog.Any("error", err))
	}
}

func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
}
