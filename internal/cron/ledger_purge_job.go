package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/hauslist/hauslist-backend/internal/billing"
	"github.com/hauslist/hauslist-backend/pkg/logger"
)

const defaultLedgerRetention = 30 * 24 * time.Hour

// LedgerPurgeJobParams configures the processed-event retention job.
type LedgerPurgeJobParams struct {
	Logger    *logger.Logger
	Ledger    billing.Ledger
	Retention time.Duration
	Now       func() time.Time
}

// NewLedgerPurgeJob builds the job that trims old processed-event entries.
// Retention must stay longer than the provider's redelivery window or purged
// events could be applied twice.
func NewLedgerPurgeJob(params LedgerPurgeJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("event ledger required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultLedgerRetention
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &ledgerPurgeJob{
		logg:      params.Logger,
		ledger:    params.Ledger,
		retention: retention,
		now:       now,
	}, nil
}

type ledgerPurgeJob struct {
	logg      *logger.Logger
	ledger    billing.Ledger
	retention time.Duration
	now       func() time.Time
}

func (j *ledgerPurgeJob) Name() string { return "ledger-purge" }

func (j *ledgerPurgeJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.ledger.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge event ledger: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"job":          j.Name(),
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	})
	j.logg.Info(logCtx, "event ledger purge complete")
	return nil
}
