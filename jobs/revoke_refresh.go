package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-hr/gatekeeper/internal/cryptobox"
	"github.com/odyssey-hr/gatekeeper/internal/issuer"
	jobmetrics "github.com/odyssey-hr/gatekeeper/internal/jobs"
)

// Revoker is the identity provider call made by the job.
type Revoker interface {
	Revoke(ctx context.Context, refreshToken, tenantID string) error
}

// RevokeRefreshJob opens queued credentials and revokes them upstream.
type RevokeRefreshJob struct {
	box     cryptobox.Box
	revoker Revoker
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewRevokeRefreshJob constructs the job handler.
func NewRevokeRefreshJob(box cryptobox.Box, revoker Revoker, logger *slog.Logger, metrics *jobmetrics.Metrics) *RevokeRefreshJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &RevokeRefreshJob{box: box, revoker: revoker, logger: logger, metrics: metrics}
}

// Handle processes TaskRevokeRefresh tasks. Undecodable payloads and
// credentials the provider already rejects are not retried.
func (j *RevokeRefreshJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track(TaskRevokeRefresh)

	var payload RevokePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return tracker.End(fmt.Errorf("jobs: decode revoke payload: %v: %w", err, asynq.SkipRetry))
	}
	credential, err := j.box.Open(payload.Credential)
	if err != nil {
		j.logger.Warn("revoke credential cannot be opened; key rotated?")
		return tracker.End(fmt.Errorf("jobs: open credential: %v: %w", err, asynq.SkipRetry))
	}

	err = j.revoker.Revoke(ctx, string(credential), payload.TenantID)
	switch {
	case err == nil:
	case !issuer.IsTransient(err):
		j.logger.Info("refresh credential already invalid upstream", slog.Any("error", err))
		err = nil
	default:
		j.logger.Warn("revoke refresh credential", slog.Any("error", err))
	}
	return tracker.End(err)
}
