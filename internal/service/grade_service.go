package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/utn-records/enrollment-api/internal/models"
	appErrors "github.com/utn-records/enrollment-api/pkg/errors"
)

type gradeEnrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	RecordGrade(ctx context.Context, id string, grade *int, passed bool, status models.EnrollmentStatus, gradedAt *time.Time) error
}

type outcomeRepository interface {
	Upsert(ctx context.Context, outcome *models.SubjectOutcome) error
	FindByStudentAndSubject(ctx context.Context, studentID, subjectID string) (*models.SubjectOutcome, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.SubjectOutcomeDetail, error)
}

// RecordGradeRequest carries a professor's grade for one enrollment. A nil
// grade clears the enrollment back to ungraded.
type RecordGradeRequest struct {
	EnrollmentID string `json:"enrollment_id" validate:"required"`
	Grade        *int   `json:"grade"`
}

// RecordOutcomeRequest sets a student's final condition on a subject directly,
// bypassing the grade pipeline. Used for promotions, equivalencies and
// administrative withdrawals.
type RecordOutcomeRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	SubjectID string `json:"subject_id" validate:"required"`
	Condition string `json:"condition" validate:"required,oneof=REGULAR WITHDRAWN APPROVED PROMOTED"`
	Grade     *int   `json:"grade,omitempty"`
}

// GradeService records grades on enrollments and maintains per-subject
// outcomes. Passing is derived from a single configured threshold, never
// stored policy.
type GradeService struct {
	enrollments  gradeEnrollmentRepository
	outcomes     outcomeRepository
	cache        *CacheService
	metrics      *MetricsService
	passingGrade int
	validator    *validator.Validate
	logger       *zap.Logger
	now          func() time.Time
}

// NewGradeService constructs GradeService.
func NewGradeService(
	enrollments gradeEnrollmentRepository,
	outcomes outcomeRepository,
	cache *CacheService,
	metrics *MetricsService,
	passingGrade int,
	validate *validator.Validate,
	logger *zap.Logger,
) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if passingGrade < 1 || passingGrade > 10 {
		passingGrade = 6
	}
	return &GradeService{
		enrollments:  enrollments,
		outcomes:     outcomes,
		cache:        cache,
		metrics:      metrics,
		passingGrade: passingGrade,
		validator:    validate,
		logger:       logger,
		now:          time.Now,
	}
}

// PassingGrade returns the configured passing threshold.
func (s *GradeService) PassingGrade() int {
	return s.passingGrade
}

// RecordGrade stores the grade on the enrollment, derives passed from the
// threshold, marks the enrollment completed and, when passed, upserts the
// student's outcome for the subject as APPROVED. A nil grade leaves the
// enrollment ungraded and active; an omitted grade is never read as 0.
func (s *GradeService) RecordGrade(ctx context.Context, req RecordGradeRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	if req.Grade != nil && (*req.Grade < 0 || *req.Grade > 10) {
		return nil, appErrors.Clone(appErrors.ErrGradeOutOfRange, fmt.Sprintf("grade %d is out of range 0-10", *req.Grade))
	}

	enrollment, err := s.enrollments.FindByID(ctx, req.EnrollmentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}

	passed := req.Grade != nil && *req.Grade >= s.passingGrade
	status := models.EnrollmentStatusActive
	var gradedAt *time.Time
	if req.Grade != nil {
		ts := s.now().UTC()
		gradedAt = &ts
		status = models.EnrollmentStatusCompleted
	}

	if err := s.enrollments.RecordGrade(ctx, enrollment.ID, req.Grade, passed, status, gradedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record grade")
	}

	if passed {
		outcome := &models.SubjectOutcome{
			StudentID: enrollment.StudentID,
			SubjectID: enrollment.SubjectID,
			Condition: models.ConditionApproved,
			Grade:     req.Grade,
			DecidedAt: *gradedAt,
		}
		if err := s.outcomes.Upsert(ctx, outcome); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record subject outcome")
		}
	}

	s.invalidateEligibility(ctx, enrollment.StudentID)
	if s.metrics != nil {
		s.metrics.RecordGrade()
	}
	s.logger.Info("grade recorded",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", enrollment.StudentID),
		zap.Intp("grade", req.Grade),
		zap.Bool("passed", passed),
	)

	detail, err := s.enrollments.FindDetailByID(ctx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
	}
	return detail, nil
}

// RecordOutcome upserts a student's final condition on a subject.
func (s *GradeService) RecordOutcome(ctx context.Context, req RecordOutcomeRequest) (*models.SubjectOutcome, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid outcome payload")
	}
	if req.Grade != nil && (*req.Grade < 0 || *req.Grade > 10) {
		return nil, appErrors.Clone(appErrors.ErrGradeOutOfRange, fmt.Sprintf("grade %d is out of range 0-10", *req.Grade))
	}

	outcome := &models.SubjectOutcome{
		StudentID: req.StudentID,
		SubjectID: req.SubjectID,
		Condition: models.FinalCondition(req.Condition),
		Grade:     req.Grade,
		DecidedAt: s.now().UTC(),
	}
	if err := s.outcomes.Upsert(ctx, outcome); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record subject outcome")
	}

	s.invalidateEligibility(ctx, req.StudentID)
	s.logger.Info("subject outcome recorded",
		zap.String("student_id", req.StudentID),
		zap.String("subject_id", req.SubjectID),
		zap.String("condition", req.Condition),
	)
	return outcome, nil
}

// ListOutcomes returns the student's recorded outcomes with subject info.
func (s *GradeService) ListOutcomes(ctx context.Context, studentID string) ([]models.SubjectOutcomeDetail, error) {
	outcomes, err := s.outcomes.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list outcomes")
	}
	return outcomes, nil
}

func (s *GradeService) invalidateEligibility(ctx context.Context, studentID string) {
	if s.cache.Enabled() {
		if err := s.cache.Delete(ctx, eligibilityCacheKey(studentID)); err != nil {
			s.logger.Warn("eligibility cache invalidation failed", zap.String("student_id", studentID), zap.Error(err))
		}
	}
}
