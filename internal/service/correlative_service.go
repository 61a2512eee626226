package service

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/utn-records/enrollment-api/internal/models"
)

type subjectNameLookup interface {
	FindSubjectByName(ctx context.Context, name string) (*models.Subject, error)
}

type outcomeReader interface {
	FindByStudentAndSubject(ctx context.Context, studentID, subjectID string) (*models.SubjectOutcome, error)
}

type bestGradeReader interface {
	BestGrade(ctx context.Context, studentID, subjectID string) (*int, error)
}

// trailingNumeral matches a subject name ending in a positive integer:
// "Physics 2" splits into base "Physics" and sequence number 2.
var trailingNumeral = regexp.MustCompile(`^(.*\S)\s+(\d+)$`)

// CorrelativeService derives prerequisite ("correlativa") subjects from the
// name-numeral convention and answers whether a student has passed a subject.
// The convention is the institution's actual data model: there is no explicit
// prerequisite graph, only numbered course sequences.
type CorrelativeService struct {
	catalog      subjectNameLookup
	outcomes     outcomeReader
	enrollments  bestGradeReader
	passingGrade int
	logger       *zap.Logger
}

// NewCorrelativeService constructs CorrelativeService. passingGrade is the
// single threshold used for every "did the student pass" decision.
func NewCorrelativeService(catalog subjectNameLookup, outcomes outcomeReader, enrollments bestGradeReader, passingGrade int, logger *zap.Logger) *CorrelativeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if passingGrade <= 0 {
		passingGrade = 6
	}
	return &CorrelativeService{
		catalog:      catalog,
		outcomes:     outcomes,
		enrollments:  enrollments,
		passingGrade: passingGrade,
		logger:       logger,
	}
}

// PassingGrade returns the configured threshold.
func (s *CorrelativeService) PassingGrade() int {
	return s.passingGrade
}

// PreviousSubject resolves the prerequisite of a subject, or nil when the
// subject has none: no trailing numeral, sequence number 1, or no catalog
// subject matching the predecessor name. Absence of a correlative subject is
// not an error.
func (s *CorrelativeService) PreviousSubject(ctx context.Context, subject models.Subject) (*models.Subject, error) {
	match := trailingNumeral.FindStringSubmatch(strings.TrimSpace(subject.Name))
	if match == nil {
		return nil, nil
	}
	n, err := strconv.Atoi(match[2])
	if err != nil || n <= 1 {
		return nil, nil
	}

	previousName := match[1] + " " + strconv.Itoa(n-1)
	previous, err := s.catalog.FindSubjectByName(ctx, previousName)
	if err != nil {
		return nil, err
	}
	return previous, nil
}

// HasPassed reports whether the student passed the subject: either a durable
// subject outcome with a passing condition or grade, or any graded enrollment
// at or above the threshold.
func (s *CorrelativeService) HasPassed(ctx context.Context, studentID, subjectID string) (bool, error) {
	outcome, err := s.outcomes.FindByStudentAndSubject(ctx, studentID, subjectID)
	if err != nil {
		return false, err
	}
	if outcome != nil {
		if outcome.Condition.Passing() {
			return true, nil
		}
		if outcome.Grade != nil && *outcome.Grade >= s.passingGrade {
			return true, nil
		}
	}

	best, err := s.enrollments.BestGrade(ctx, studentID, subjectID)
	if err != nil {
		return false, err
	}
	return best != nil && *best >= s.passingGrade, nil
}
