package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-hr/gatekeeper/internal/cryptobox"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRevokeRefresh asks the identity provider to revoke a refresh credential.
	TaskRevokeRefresh = "auth:revoke_refresh"
	// TaskPruneAudit removes old rows from the session audit trail.
	TaskPruneAudit = "auth:prune_audit"

	revokeMaxRetry = 5
	revokeTimeout  = 10 * time.Second
)

// RevokePayload carries a refresh credential sealed with the session key so
// the raw credential never sits in Redis.
type RevokePayload struct {
	Credential  string    `json:"credential"`
	TenantID    string    `json:"tenantId,omitempty"`
	RequestedAt time.Time `json:"requestedAt"`
}

// NewRevokeRefreshTask seals refreshToken and builds the task.
func NewRevokeRefreshTask(box cryptobox.Box, refreshToken, tenantID string, now time.Time) (*asynq.Task, error) {
	sealed, err := box.Seal([]byte(refreshToken))
	if err != nil {
		return nil, fmt.Errorf("jobs: seal credential: %w", err)
	}
	data, err := json.Marshal(RevokePayload{Credential: sealed, TenantID: tenantID, RequestedAt: now.UTC()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRevokeRefresh, data, asynq.MaxRetry(revokeMaxRetry), asynq.Timeout(revokeTimeout)), nil
}

// PruneAuditPayload configures the audit retention sweep.
type PruneAuditPayload struct {
	RetentionDays int `json:"retentionDays"`
}

// NewPruneAuditTask builds the retention task.
func NewPruneAuditTask(retentionDays int) (*asynq.Task, error) {
	if retentionDays <= 0 {
		return nil, fmt.Errorf("jobs: retention must be positive, got %d", retentionDays)
	}
	data, err := json.Marshal(PruneAuditPayload{RetentionDays: retentionDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPruneAudit, data), nil
}
