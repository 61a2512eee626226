package models

// EligibilityStatus classifies a subject on the reinscription screen.
type EligibilityStatus string

// Possible eligibility statuses.
const (
	EligibilityOK                 EligibilityStatus = "OK"
	EligibilityAlreadyPassed      EligibilityStatus = "ALREADY_PASSED"
	EligibilityPrerequisiteNotMet EligibilityStatus = "PREREQUISITE_NOT_MET"
)

// SubjectEligibility pairs a subject with the student's eligibility for it.
// BlockingSubject is set when the status is PREREQUISITE_NOT_MET.
type SubjectEligibility struct {
	Subject         Subject           `json:"subject"`
	Status          EligibilityStatus `json:"status"`
	BlockingSubject string            `json:"blocking_subject,omitempty"`
}
