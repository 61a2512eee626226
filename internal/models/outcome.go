package models

import "time"

// FinalCondition is a student's durable disposition on a subject.
type FinalCondition string

// Possible final conditions (condición final).
const (
	ConditionRegular   FinalCondition = "REGULAR"
	ConditionWithdrawn FinalCondition = "WITHDRAWN"
	ConditionApproved  FinalCondition = "APPROVED"
	ConditionPromoted  FinalCondition = "PROMOTED"
)

// Passing reports whether the condition counts as having passed the subject
// for prerequisite purposes.
func (c FinalCondition) Passing() bool {
	return c == ConditionApproved || c == ConditionPromoted
}

// SubjectOutcome records a student's final disposition on a subject,
// independent of any section. One row per (student, subject); later
// decisions replace the record.
type SubjectOutcome struct {
	ID        string         `db:"id" json:"id"`
	StudentID string         `db:"student_id" json:"student_id"`
	SubjectID string         `db:"subject_id" json:"subject_id"`
	Condition FinalCondition `db:"condition" json:"condition"`
	Grade     *int           `db:"grade" json:"grade,omitempty"`
	DecidedAt time.Time      `db:"decided_at" json:"decided_at"`
}

// SubjectOutcomeDetail enriches SubjectOutcome with subject info.
type SubjectOutcomeDetail struct {
	SubjectOutcome
	SubjectCode string `db:"subject_code" json:"subject_code"`
	SubjectName string `db:"subject_name" json:"subject_name"`
}
