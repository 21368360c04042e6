package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/crewhub/crewhub/internal/authz"
	jobmetrics "github.com/crewhub/crewhub/internal/jobs"
	"github.com/crewhub/crewhub/internal/users"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// AuthzWarmupJob pre-computes effective permission sets so the first
// request after a cache bump does not pay the aggregation cost.
type AuthzWarmupJob struct {
	Authz   *authz.Service
	Staff   users.Repository
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewAuthzWarmupJob wires dependencies for the warmup handler.
func NewAuthzWarmupJob(authzSvc *authz.Service, staff users.Repository, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuthzWarmupJob {
	return &AuthzWarmupJob{
		Authz:   authzSvc,
		Staff:   staff,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes authz warmup tasks.
func (j *AuthzWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Authz == nil {
		return errors.New("authz warmup: handler not configured")
	}
	var payload AuthzWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskAuthzWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	if payload.Reason != "" {
		logger = logger.With(slog.String("reason", payload.Reason))
	}
	start := j.now()
	logger.Info("starting authz warmup")

	ids := payload.StaffIDs
	if len(ids) == 0 {
		if j.Staff == nil {
			resultErr = errors.New("authz warmup: staff repository not configured")
			return resultErr
		}
		var err error
		ids, err = j.Staff.ListActiveIDs(ctx)
		if err != nil {
			resultErr = err
			logger.Error("load active staff", slog.Any("error", err))
			return resultErr
		}
	}
	if len(ids) == 0 {
		logger.Info("no staff accounts to warm")
		return resultErr
	}

	warmed := 0
	for _, id := range ids {
		// Bound each lookup so one slow account cannot stall the run.
		staffCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		_, err := j.Authz.EffectivePermissions(staffCtx, id)
		cancel()
		if err != nil {
			resultErr = err
			logger.Error("warm staff permissions", slog.Int64("staff_id", id), slog.Any("error", err))
			return resultErr
		}
		warmed++
	}

	logger.Info("completed authz warmup", slog.Int("staff", warmed), slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *AuthzWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *AuthzWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAuthzWarmup))
	}
	return slog.Default().With(slog.String("job", TaskAuthzWarmup))
}

func (j *AuthzWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
