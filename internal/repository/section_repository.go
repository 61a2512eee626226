package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/utn-records/enrollment-api/internal/models"
)

// SectionRepository reads course sections. Sections and their schedule text
// are externally authored data.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs the repository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

// List returns sections filtered by the provided criteria.
func (r *SectionRepository) List(ctx context.Context, filter models.SectionFilter) ([]models.SectionDetail, int, error) {
	base := `FROM sections sec
LEFT JOIN subjects m ON m.id = sec.subject_id
LEFT JOIN course_groups g ON g.id = sec.course_group_id`
	var conditions []string
	var args []interface{}

	if filter.SubjectID != "" {
		conditions = append(conditions, fmt.Sprintf("sec.subject_id = $%d", len(args)+1))
		args = append(args, filter.SubjectID)
	}
	if filter.CourseGroupID != "" {
		conditions = append(conditions, fmt.Sprintf("sec.course_group_id = $%d", len(args)+1))
		args = append(args, filter.CourseGroupID)
	}
	if filter.Shift != "" {
		conditions = append(conditions, fmt.Sprintf("sec.shift = $%d", len(args)+1))
		args = append(args, filter.Shift)
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

	query := fmt.Sprintf(`SELECT sec.id, sec.subject_id, sec.course_group_id, sec.shift, sec.schedule_text, sec.module,
        sec.created_at, sec.updated_at,
        COALESCE(m.code, '') AS subject_code, COALESCE(m.name, '') AS subject_name, COALESCE(g.name, '') AS group_name
        %s ORDER BY m.name ASC, g.name ASC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var sections []models.SectionDetail
	if err := r.db.SelectContext(ctx, &sections, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sections: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sections: %w", err)
	}
	return sections, total, nil
}

// FindByID returns a section by its ID.
func (r *SectionRepository) FindByID(ctx context.Context, id string) (*models.Section, error) {
	const query = `SELECT id, subject_id, course_group_id, shift, schedule_text, module, created_at, updated_at
        FROM sections WHERE id = $1`
	var section models.Section
	if err := r.db.GetContext(ctx, &section, query, id); err != nil {
		return nil, err
	}
	return &section, nil
}

// FindDetailByID returns a section with subject and group context.
func (r *SectionRepository) FindDetailByID(ctx context.Context, id string) (*models.SectionDetail, error) {
	const query = `SELECT sec.id, sec.subject_id, sec.course_group_id, sec.shift, sec.schedule_text, sec.module,
        sec.created_at, sec.updated_at,
        COALESCE(m.code, '') AS subject_code, COALESCE(m.name, '') AS subject_name, COALESCE(g.name, '') AS group_name
        FROM sections sec
        LEFT JOIN subjects m ON m.id = sec.subject_id
        LEFT JOIN course_groups g ON g.id = sec.course_group_id
        WHERE sec.id = $1`
	var detail models.SectionDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListBySubject returns all sections offered for a subject.
func (r *SectionRepository) ListBySubject(ctx context.Context, subjectID string) ([]models.Section, error) {
	const query = `SELECT id, subject_id, course_group_id, shift, schedule_text, module, created_at, updated_at
        FROM sections WHERE subject_id = $1`
	var sections []models.Section
	if err := r.db.SelectContext(ctx, &sections, query, subjectID); err != nil {
		return nil, fmt.Errorf("list sections by subject: %w", err)
	}
	return sections, nil
}
