package models

import "time"

// Program is a degree program (carrera) offered by the institution.
type Program struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	DurationYears int       `db:"duration_years" json:"duration_years"`
	Description   string    `db:"description" json:"description,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// ProgramSubject links a subject into a program's curriculum.
// Unique per (program, subject) pair.
type ProgramSubject struct {
	ID        string `db:"id" json:"id"`
	ProgramID string `db:"program_id" json:"program_id"`
	SubjectID string `db:"subject_id" json:"subject_id"`
}

// ProgramFilter captures supported filters for listing programs.
type ProgramFilter struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
