package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// LockRepository serialises enrollment writes per student with Postgres
// advisory locks. The uniqueness indexes reject a losing writer after the
// fact, but only the lock makes the schedule-conflict check race-free: no
// constraint can express "no two active sections with overlapping times".
type LockRepository struct {
	db *sqlx.DB
}

// NewLockRepository constructs the repository.
func NewLockRepository(db *sqlx.DB) *LockRepository {
	return &LockRepository{db: db}
}

// WithStudentLock runs fn while holding the advisory lock for the student.
// The lock lives on a dedicated connection and is released when fn returns.
func (r *LockRepository) WithStudentLock(ctx context.Context, studentID string, fn func(context.Context) error) error {
	conn, err := r.db.Connx(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close() //nolint:errcheck

	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock(hashtext($1))", studentID); err != nil {
		return fmt.Errorf("acquire student lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock(hashtext($1))", studentID)
	}()

	return fn(ctx)
}
