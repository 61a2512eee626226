package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/utn-records/enrollment-api/internal/models"
)

// OutcomeRepository handles persistence of subject outcomes, the durable
// "has the student passed this subject" record.
type OutcomeRepository struct {
	db *sqlx.DB
}

// NewOutcomeRepository constructs the repository.
func NewOutcomeRepository(db *sqlx.DB) *OutcomeRepository {
	return &OutcomeRepository{db: db}
}

// Upsert writes the outcome for (student, subject), replacing any previous
// record for the pair.
func (r *OutcomeRepository) Upsert(ctx context.Context, outcome *models.SubjectOutcome) error {
	if outcome.ID == "" {
		outcome.ID = uuid.NewString()
	}
	if outcome.DecidedAt.IsZero() {
		outcome.DecidedAt = time.Now().UTC()
	}
	const query = `INSERT INTO subject_outcomes (id, student_id, subject_id, condition, grade, decided_at)
        VALUES (:id, :student_id, :subject_id, :condition, :grade, :decided_at)
        ON CONFLICT (student_id, subject_id)
        DO UPDATE SET condition = EXCLUDED.condition, grade = EXCLUDED.grade, decided_at = EXCLUDED.decided_at`
	if _, err := r.db.NamedExecContext(ctx, query, outcome); err != nil {
		return fmt.Errorf("upsert subject outcome: %w", err)
	}
	return nil
}

// FindByStudentAndSubject returns the outcome for the pair, or nil without
// error when none has been recorded.
func (r *OutcomeRepository) FindByStudentAndSubject(ctx context.Context, studentID, subjectID string) (*models.SubjectOutcome, error) {
	const query = `SELECT id, student_id, subject_id, condition, grade, decided_at
        FROM subject_outcomes WHERE student_id = $1 AND subject_id = $2`
	var outcome models.SubjectOutcome
	if err := r.db.GetContext(ctx, &outcome, query, studentID, subjectID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find subject outcome: %w", err)
	}
	return &outcome, nil
}

// ListByStudent returns all outcomes for a student with subject context.
func (r *OutcomeRepository) ListByStudent(ctx context.Context, studentID string) ([]models.SubjectOutcomeDetail, error) {
	const query = `SELECT o.id, o.student_id, o.subject_id, o.condition, o.grade, o.decided_at,
        COALESCE(m.code, '') AS subject_code, COALESCE(m.name, '') AS subject_name
        FROM subject_outcomes o
        LEFT JOIN subjects m ON m.id = o.subject_id
        WHERE o.student_id = $1
        ORDER BY o.decided_at DESC`
	var outcomes []models.SubjectOutcomeDetail
	if err := r.db.SelectContext(ctx, &outcomes, query, studentID); err != nil {
		return nil, fmt.Errorf("list subject outcomes: %w", err)
	}
	return outcomes, nil
}
