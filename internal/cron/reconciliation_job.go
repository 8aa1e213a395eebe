package cron

import (
	"context"
	"fmt"

	"github.com/ricolancheros/movie-reservation-system/pkg/logger"
)

type reconciliationProcessor interface {
	ProcessReconciliationItems(ctx context.Context) (int, error)
}

// ReconciliationJobParams configure the pending release retry job.
type ReconciliationJobParams struct {
	Logger      *logger.Logger
	Coordinator reconciliationProcessor
}

// NewReconciliationJob builds the job that retries seat releases which
// exhausted their inline retry budget.
func NewReconciliationJob(params ReconciliationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Coordinator == nil {
		return nil, fmt.Errorf("coordinator required")
	}
	return &reconciliationJob{
		logg:        params.Logger,
		coordinator: params.Coordinator,
	}, nil
}

type reconciliationJob struct {
	logg        *logger.Logger
	coordinator reconciliationProcessor
}

func (j *reconciliationJob) Name() string { return "reconciliation" }

func (j *reconciliationJob) Run(ctx context.Context) error {
	resolved, err := j.coordinator.ProcessReconciliationItems(ctx)
	if err != nil {
		return fmt.Errorf("reconciliation: %w", err)
	}
	if resolved > 0 {
		logCtx := j.logg.WithField(ctx, "items_resolved", resolved)
		j.logg.Info(logCtx, "reconciliation items resolved")
	}
	return nil
}
