package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/persiamall/storefront/pkg/logger"
)

const defaultOTPRetention = 7 * 24 * time.Hour

type OTPCleanupJobParams struct {
	Logger     *logger.Logger
	Repository otpCleanupRepo
	Retention  time.Duration
}

type otpCleanupRepo interface {
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

func NewOTPCleanupJob(params OTPCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("otp repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultOTPRetention
	}
	return &otpCleanupJob{
		logg:      params.Logger,
		repo:      params.Repository,
		retention: retention,
		now:       time.Now,
	}, nil
}

type otpCleanupJob struct {
	logg      *logger.Logger
	repo      otpCleanupRepo
	retention time.Duration
	now       func() time.Time
}

func (j *otpCleanupJob) Name() string { return "otp-cleanup" }

func (j *otpCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.repo.DeleteCreatedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("otp cleanup: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"retention":    j.retention.String(),
		"rows_deleted": deleted,
	})
	j.logg.Info(logCtx, "otp cleanup complete")
	return nil
}
