package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgconn"

	jobmetrics "github.com/odyssey-hr/gatekeeper/internal/jobs"
)

// Execer runs a statement; satisfied by *pgxpool.Pool.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PruneAuditJob deletes audit rows whose sessions ended or expired long ago.
type PruneAuditJob struct {
	db      Execer
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
	now     func() time.Time
}

// NewPruneAuditJob constructs the job handler.
func NewPruneAuditJob(db Execer, logger *slog.Logger, metrics *jobmetrics.Metrics) *PruneAuditJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &PruneAuditJob{db: db, logger: logger, metrics: metrics, now: time.Now}
}

const pruneAudit = `DELETE FROM session_audit WHERE COALESCE(ended_at, expires_at) < $1`

// Handle processes TaskPruneAudit tasks.
func (j *PruneAuditJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track(TaskPruneAudit)

	var payload PruneAuditPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.RetentionDays <= 0 {
		return tracker.End(fmt.Errorf("jobs: invalid prune payload: %w", asynq.SkipRetry))
	}
	cutoff := j.now().AddDate(0, 0, -payload.RetentionDays).UTC()
	tag, err := j.db.Exec(ctx, pruneAudit, cutoff)
	if err != nil {
		return tracker.End(fmt.Errorf("jobs: prune audit: %w", err))
	}
	j.logger.Info("session audit pruned", slog.Int64("rows", tag.RowsAffected()), slog.Time("cutoff", cutoff))
	return tracker.End(nil)
}
