package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/utn-records/enrollment-api/internal/models"
)

// ReportJobRepository handles persistence of transcript report jobs.
type ReportJobRepository struct {
	db *sqlx.DB
}

// NewReportJobRepository constructs the repository.
func NewReportJobRepository(db *sqlx.DB) *ReportJobRepository {
	return &ReportJobRepository{db: db}
}

// Create persists a new report job.
func (r *ReportJobRepository) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.Status == "" {
		job.Status = models.ReportStatusPending
	}
	const query = `INSERT INTO report_jobs (id, student_id, format, status, file_path, error_text, requested_by, created_at, completed_at)
        VALUES (:id, :student_id, :format, :status, :file_path, :error_text, :requested_by, :created_at, :completed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create report job: %w", err)
	}
	return nil
}

// FindByID returns a report job by its ID.
func (r *ReportJobRepository) FindByID(ctx context.Context, id string) (*models.ReportJob, error) {
	const query = `SELECT id, student_id, format, status, file_path, error_text, requested_by, created_at, completed_at
        FROM report_jobs WHERE id = $1`
	var job models.ReportJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, err
	}
	return &job, nil
}

// MarkRunning flips a job into the RUNNING state.
func (r *ReportJobRepository) MarkRunning(ctx context.Context, id string) error {
	const query = `UPDATE report_jobs SET status = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ReportStatusRunning); err != nil {
		return fmt.Errorf("mark report job running: %w", err)
	}
	return nil
}

// MarkDone records the produced file path and completion time.
func (r *ReportJobRepository) MarkDone(ctx context.Context, id, filePath string, completedAt time.Time) error {
	const query = `UPDATE report_jobs SET status = $2, file_path = $3, completed_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ReportStatusDone, filePath, completedAt); err != nil {
		return fmt.Errorf("mark report job done: %w", err)
	}
	return nil
}

// MarkFailed records the failure reason.
func (r *ReportJobRepository) MarkFailed(ctx context.Context, id, reason string, completedAt time.Time) error {
	const query = `UPDATE report_jobs SET status = $2, error_text = $3, completed_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.ReportStatusFailed, reason, completedAt); err != nil {
		return fmt.Errorf("mark report job failed: %w", err)
	}
	return nil
}

// TranscriptRows assembles a student's transcript: every graded enrollment
// merged with the durable subject outcomes.
func (r *ReportJobRepository) TranscriptRows(ctx context.Context, studentID string) ([]models.TranscriptRow, error) {
	const query = `SELECT COALESCE(m.code, '') AS subject_code, COALESCE(m.name, '') AS subject_name,
        COALESCE(m.catalog_year, 0) AS catalog_year,
        COALESCE(o.grade, e.grade) AS grade,
        COALESCE(o.condition, CASE WHEN e.passed THEN 'APPROVED' ELSE 'REGULAR' END) AS condition
        FROM subjects m
        LEFT JOIN enrollments e ON e.subject_id = m.id AND e.student_id = $1
        LEFT JOIN subject_outcomes o ON o.subject_id = m.id AND o.student_id = $1
        WHERE e.id IS NOT NULL OR o.id IS NOT NULL
        ORDER BY m.catalog_year ASC, m.name ASC`
	var rows []models.TranscriptRow
	if err := r.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, fmt.Errorf("transcript rows: %w", err)
	}
	return rows, nil
}
