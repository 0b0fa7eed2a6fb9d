package auth

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgxpool.Pool the repository needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository defines persistence operations for the session audit trail.
type Repository interface {
	RecordSignIn(ctx context.Context, entry AuditEntry) error
	EndSession(ctx context.Context, sessionID string, at time.Time) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db DBTX
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(db DBTX) *PGRepository {
	return &PGRepository{db: db}
}

const insertAudit = `INSERT INTO session_audit
	(id, user_id, tenant_id, flow, ip, user_agent, device, created_at, expires_at)
VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8, $9)
ON CONFLICT (id) DO NOTHING`

// RecordSignIn persists a new login session for auditing.
func (r *PGRepository) RecordSignIn(ctx context.Context, e AuditEntry) error {
	_, err := r.db.Exec(ctx, insertAudit,
		e.SessionID, e.UserID, e.TenantID, string(e.Flow),
		e.IP, e.UserAgent, e.Device,
		e.CreatedAt.UTC(), e.ExpiresAt.UTC(),
	)
	return err
}

const endAudit = `UPDATE session_audit SET ended_at = $2 WHERE id = $1 AND ended_at IS NULL`

// EndSession marks a session row as signed out.
func (r *PGRepository) EndSession(ctx context.Context, sessionID string, at time.Time) error {
	_, err := r.db.Exec(ctx, endAudit, sessionID, at.UTC())
	return err
}

var _ Repository = (*PGRepository)(nil)
