package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/utn-records/enrollment-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments. The table carries
// two uniqueness backstops for the read-then-write race: a unique index on
// (student_id, section_id) and a partial unique index on (student_id,
// subject_id) for ACTIVE rows.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// IsUniqueViolation reports whether err is a Postgres unique constraint
// violation, the signal that a concurrent writer won the race.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
LEFT JOIN students s ON s.id = e.student_id
LEFT JOIN sections sec ON sec.id = e.section_id
LEFT JOIN subjects m ON m.id = e.subject_id
LEFT JOIN course_groups g ON g.id = sec.course_group_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.SectionID != "" {
		conditions = append(conditions, fmt.Sprintf("e.section_id = $%d", len(args)+1))
		args = append(args, filter.SectionID)
	}
	if filter.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("e.subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"enrolled_at":  "e.enrolled_at",
		"student_name": "s.last_name",
		"subject_name": "m.name",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "e.enrolled_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.section_id, e.subject_id, e.grade, e.passed, e.status,
        e.enrolled_at, e.graded_at,
        COALESCE(s.last_name || ', ' || s.first_name, '') AS student_name,
        COALESCE(m.code, '') AS subject_code, COALESCE(m.name, '') AS subject_name,
        COALESCE(g.name, '') AS group_name, COALESCE(sec.shift, '') AS shift,
        COALESCE(sec.schedule_text, '') AS schedule_text
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, section_id, subject_id, grade, passed, status, enrolled_at, graded_at
        FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment with contextual info.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.section_id, e.subject_id, e.grade, e.passed, e.status,
        e.enrolled_at, e.graded_at,
        COALESCE(s.last_name || ', ' || s.first_name, '') AS student_name,
        COALESCE(m.code, '') AS subject_code, COALESCE(m.name, '') AS subject_name,
        COALESCE(g.name, '') AS group_name, COALESCE(sec.shift, '') AS shift,
        COALESCE(sec.schedule_text, '') AS schedule_text
        FROM enrollments e
        LEFT JOIN students s ON s.id = e.student_id
        LEFT JOIN sections sec ON sec.id = e.section_id
        LEFT JOIN subjects m ON m.id = e.subject_id
        LEFT JOIN course_groups g ON g.id = sec.course_group_id
        WHERE e.id = $1`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindByStudentAndSection returns the enrollment linking a student to a
// section, or sql.ErrNoRows.
func (r *EnrollmentRepository) FindByStudentAndSection(ctx context.Context, studentID, sectionID string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, section_id, subject_id, grade, passed, status, enrolled_at, graded_at
        FROM enrollments WHERE student_id = $1 AND section_id = $2`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, sectionID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ListActiveByStudent returns the student's ACTIVE enrollments with section
// context, used for the schedule-conflict check.
func (r *EnrollmentRepository) ListActiveByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.section_id, e.subject_id, e.grade, e.passed, e.status,
        e.enrolled_at, e.graded_at,
        COALESCE(s.last_name || ', ' || s.first_name, '') AS student_name,
        COALESCE(m.code, '') AS subject_code, COALESCE(m.name, '') AS subject_name,
        COALESCE(g.name, '') AS group_name, COALESCE(sec.shift, '') AS shift,
        COALESCE(sec.schedule_text, '') AS schedule_text
        FROM enrollments e
        LEFT JOIN students s ON s.id = e.student_id
        LEFT JOIN sections sec ON sec.id = e.section_id
        LEFT JOIN subjects m ON m.id = e.subject_id
        LEFT JOIN course_groups g ON g.id = sec.course_group_id
        WHERE e.student_id = $1 AND e.status = $2`
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID, models.EnrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("list active enrollments: %w", err)
	}
	return enrollments, nil
}

// ExistsActiveForSubject reports whether the student already holds an ACTIVE
// enrollment in any section of the subject.
func (r *EnrollmentRepository) ExistsActiveForSubject(ctx context.Context, studentID, subjectID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE student_id = $1 AND subject_id = $2 AND status = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, subjectID, models.EnrollmentStatusActive); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active subject enrollment: %w", err)
	}
	return true, nil
}

// BestGrade returns the highest grade the student has received for the
// subject across all graded enrollments, or nil when none exists.
func (r *EnrollmentRepository) BestGrade(ctx context.Context, studentID, subjectID string) (*int, error) {
	const query = `SELECT MAX(grade) FROM enrollments WHERE student_id = $1 AND subject_id = $2 AND grade IS NOT NULL`
	var best *int
	if err := r.db.GetContext(ctx, &best, query, studentID, subjectID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("best grade: %w", err)
	}
	return best, nil
}

// Create persists a new enrollment record. Unique violations surface to the
// caller via IsUniqueViolation.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}
	const query = `INSERT INTO enrollments (id, student_id, section_id, subject_id, grade, passed, status, enrolled_at, graded_at)
        VALUES (:id, :student_id, :section_id, :subject_id, :grade, :passed, :status, :enrolled_at, :graded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Delete removes an enrollment by student and section. Returns the number of
// rows removed so withdrawals can be idempotent.
func (r *EnrollmentRepository) Delete(ctx context.Context, studentID, sectionID string) (int64, error) {
	const query = `DELETE FROM enrollments WHERE student_id = $1 AND section_id = $2`
	result, err := r.db.ExecContext(ctx, query, studentID, sectionID)
	if err != nil {
		return 0, fmt.Errorf("delete enrollment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete enrollment rows: %w", err)
	}
	return affected, nil
}

// RecordGrade sets the grade, derived passed flag and resulting status on an
// enrollment in a single statement.
func (r *EnrollmentRepository) RecordGrade(ctx context.Context, id string, grade *int, passed bool, status models.EnrollmentStatus, gradedAt *time.Time) error {
	const query = `UPDATE enrollments SET grade = $2, passed = $3, status = $4, graded_at = $5 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, grade, passed, status, gradedAt)
	if err != nil {
		return fmt.Errorf("record grade: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("record grade rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
