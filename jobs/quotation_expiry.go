package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/ferreexpress/ferreexpress/internal/jobs"
)

const (
	// TaskQuotationExpirySweep marks overdue quotations as expired.
	TaskQuotationExpirySweep = "quotations:expire"
)

// QuotationExpiryPayload carries scheduling metadata.
type QuotationExpiryPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// ExpirySweeper flips every overdue quotation whose stored validity is still
// current and returns the number of rows changed.
type ExpirySweeper interface {
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

// QuotationExpiryJob runs the sweep.
type QuotationExpiryJob struct {
	Sweeper ExpirySweeper
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewQuotationExpiryJob constructs the job handler.
func NewQuotationExpiryJob(sweeper ExpirySweeper, logger *slog.Logger, metrics *jobmetrics.Metrics) *QuotationExpiryJob {
	return &QuotationExpiryJob{
		Sweeper: sweeper,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// NewQuotationExpiryTask constructs an Asynq task for the sweep.
func NewQuotationExpiryTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(QuotationExpiryPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskQuotationExpirySweep, body, asynq.Queue(QueueDefault)), nil
}

// Handle executes the sweep.
func (j *QuotationExpiryJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Sweeper == nil {
		return errors.New("quotation expiry: sweeper not configured")
	}
	var payload QuotationExpiryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.Metrics.Track(TaskQuotationExpirySweep)
	expired, err := j.Sweeper.ExpireOverdue(ctx, j.clock())
	if err != nil {
		if j.Logger != nil {
			j.Logger.Error("quotation expiry sweep", slog.Any("error", err))
		}
		return tracker.End(err)
	}
	j.Metrics.AddSwept(TaskQuotationExpirySweep, expired)
	if j.Logger != nil && expired > 0 {
		j.Logger.Info("quotations expired", slog.Int64("count", expired))
	}
	return tracker.End(nil)
}
