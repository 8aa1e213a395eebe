package cron

import (
	"context"
	"fmt"

	"github.com/ricolancheros/movie-reservation-system/pkg/logger"
)

type sagaRecoverer interface {
	RecoverStalledAttempts(ctx context.Context) (int, error)
}

// SagaRecoveryJobParams configure the stalled saga recovery job.
type SagaRecoveryJobParams struct {
	Logger      *logger.Logger
	Coordinator sagaRecoverer
}

// NewSagaRecoveryJob builds the job that compensates saga attempts left
// hanging by a crashed coordinator.
func NewSagaRecoveryJob(params SagaRecoveryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Coordinator == nil {
		return nil, fmt.Errorf("coordinator required")
	}
	return &sagaRecoveryJob{
		logg:        params.Logger,
		coordinator: params.Coordinator,
	}, nil
}

type sagaRecoveryJob struct {
	logg        *logger.Logger
	coordinator sagaRecoverer
}

func (j *sagaRecoveryJob) Name() string { return "saga-recovery" }

func (j *sagaRecoveryJob) Run(ctx context.Context) error {
	recovered, err := j.coordinator.RecoverStalledAttempts(ctx)
	if err != nil {
		return fmt.Errorf("saga recovery: %w", err)
	}
	if recovered > 0 {
		logCtx := j.logg.WithField(ctx, "attempts_recovered", recovered)
		j.logg.Info(logCtx, "stalled saga attempts settled")
	}
	return nil
}
