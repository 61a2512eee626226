package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/utn-records/enrollment-api/internal/models"
)

// CatalogRepository reads the program/subject catalog. The catalog is
// externally authored; the enrollment core never mutates it.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository constructs the repository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ListPrograms returns programs matching the filter.
func (r *CatalogRepository) ListPrograms(ctx context.Context, filter models.ProgramFilter) ([]models.Program, int, error) {
	base := "FROM programs p"
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("p.name ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
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

	query := fmt.Sprintf(`SELECT p.id, p.name, p.duration_years, p.description, p.created_at, p.updated_at
        %s ORDER BY p.name ASC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var programs []models.Program
	if err := r.db.SelectContext(ctx, &programs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list programs: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count programs: %w", err)
	}
	return programs, total, nil
}

// FindProgramByID returns a program by its ID.
func (r *CatalogRepository) FindProgramByID(ctx context.Context, id string) (*models.Program, error) {
	const query = `SELECT id, name, duration_years, description, created_at, updated_at FROM programs WHERE id = $1`
	var program models.Program
	if err := r.db.GetContext(ctx, &program, query, id); err != nil {
		return nil, err
	}
	return &program, nil
}

// ListSubjects returns subjects matching the filter. When ProgramID is set,
// only subjects linked through program_subjects are returned.
func (r *CatalogRepository) ListSubjects(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	base := "FROM subjects m"
	var conditions []string
	var args []interface{}

	if filter.ProgramID != "" {
		base += " JOIN program_subjects ps ON ps.subject_id = m.id"
		conditions = append(conditions, fmt.Sprintf("ps.program_id = $%d", len(args)+1))
		args = append(args, filter.ProgramID)
	}
	if filter.Year > 0 {
		conditions = append(conditions, fmt.Sprintf("m.catalog_year = $%d", len(args)+1))
		args = append(args, filter.Year)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(m.name ILIKE $%d OR m.code ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
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

	query := fmt.Sprintf(`SELECT m.id, m.code, m.name, m.catalog_year, m.created_at, m.updated_at
        %s ORDER BY m.catalog_year ASC, m.name ASC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list subjects: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count subjects: %w", err)
	}
	return subjects, total, nil
}

// FindSubjectByID returns a subject by its ID.
func (r *CatalogRepository) FindSubjectByID(ctx context.Context, id string) (*models.Subject, error) {
	const query = `SELECT id, code, name, catalog_year, created_at, updated_at FROM subjects WHERE id = $1`
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		return nil, err
	}
	return &subject, nil
}

// FindSubjectByName returns the subject whose name matches exactly, ignoring
// case. Used by the correlative resolver; nil without error when absent.
func (r *CatalogRepository) FindSubjectByName(ctx context.Context, name string) (*models.Subject, error) {
	const query = `SELECT id, code, name, catalog_year, created_at, updated_at FROM subjects WHERE LOWER(name) = LOWER($1)`
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, name); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find subject by name: %w", err)
	}
	return &subject, nil
}

// IsSubjectInProgram reports whether the subject belongs to the program's
// curriculum.
func (r *CatalogRepository) IsSubjectInProgram(ctx context.Context, programID, subjectID string) (bool, error) {
	const query = `SELECT 1 FROM program_subjects WHERE program_id = $1 AND subject_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, programID, subjectID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check program subject: %w", err)
	}
	return true, nil
}

// ListProgramSubjects returns all subjects in a program's curriculum ordered
// by catalog year.
func (r *CatalogRepository) ListProgramSubjects(ctx context.Context, programID string) ([]models.Subject, error) {
	const query = `SELECT m.id, m.code, m.name, m.catalog_year, m.created_at, m.updated_at
        FROM subjects m
        JOIN program_subjects ps ON ps.subject_id = m.id
        WHERE ps.program_id = $1
        ORDER BY m.catalog_year ASC, m.name ASC`
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, programID); err != nil {
		return nil, fmt.Errorf("list program subjects: %w", err)
	}
	return subjects, nil
}
