package models

import "time"

// Student represents a learner registered in the institution.
// AcademicYear is the year of study the student has reached, 1 through 10;
// catalog availability checks compare subject catalog years against it.
type Student struct {
	ID           string    `db:"id" json:"id"`
	DNI          string    `db:"dni" json:"dni"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	Email        string    `db:"email" json:"email"`
	AcademicYear int       `db:"academic_year" json:"academic_year"`
	ProgramID    string    `db:"program_id" json:"program_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// StudentDetail enriches Student with program context.
type StudentDetail struct {
	Student
	ProgramName string `db:"program_name" json:"program_name"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	ProgramID string
	Year      int
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
