package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/utn-records/enrollment-api/internal/models"
	"github.com/utn-records/enrollment-api/internal/schedule"
	appErrors "github.com/utn-records/enrollment-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	FindByStudentAndSection(ctx context.Context, studentID, sectionID string) (*models.Enrollment, error)
	ListActiveByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
	ExistsActiveForSubject(ctx context.Context, studentID, subjectID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Delete(ctx context.Context, studentID, sectionID string) (int64, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type sectionReader interface {
	FindByID(ctx context.Context, id string) (*models.Section, error)
	FindDetailByID(ctx context.Context, id string) (*models.SectionDetail, error)
}

type curriculumReader interface {
	FindSubjectByID(ctx context.Context, id string) (*models.Subject, error)
	IsSubjectInProgram(ctx context.Context, programID, subjectID string) (bool, error)
	ListProgramSubjects(ctx context.Context, programID string) ([]models.Subject, error)
}

type correlativeResolver interface {
	PreviousSubject(ctx context.Context, subject models.Subject) (*models.Subject, error)
	HasPassed(ctx context.Context, studentID, subjectID string) (bool, error)
}

type studentLocker interface {
	WithStudentLock(ctx context.Context, studentID string, fn func(context.Context) error) error
}

type uniqueViolationChecker func(error) bool

// EnrollRequest describes an enrollment creation request.
type EnrollRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	SectionID string `json:"section_id" validate:"required"`
}

// EnrollmentPolicy captures configurable enrollment behaviour.
type EnrollmentPolicy struct {
	// AllowRetakes permits enrolling in a subject the student already
	// passed. The source institution never blocked retakes consistently,
	// so the default is permissive.
	AllowRetakes bool
}

// EnrollmentService orchestrates enrollment and withdrawal. Every validation
// runs against persisted state while holding the student's advisory lock;
// the unique indexes remain as a backstop for writers that bypass the lock.
type EnrollmentService struct {
	repo         enrollmentRepository
	students     studentReader
	sections     sectionReader
	curriculum   curriculumReader
	correlatives correlativeResolver
	locks        studentLocker
	cache        *CacheService
	metrics      *MetricsService
	policy       EnrollmentPolicy
	isUnique     uniqueViolationChecker
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(
	repo enrollmentRepository,
	students studentReader,
	sections sectionReader,
	curriculum curriculumReader,
	correlatives correlativeResolver,
	locks studentLocker,
	cache *CacheService,
	metrics *MetricsService,
	policy EnrollmentPolicy,
	isUnique uniqueViolationChecker,
	validate *validator.Validate,
	logger *zap.Logger,
) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if isUnique == nil {
		isUnique = func(error) bool { return false }
	}
	return &EnrollmentService{
		repo:         repo,
		students:     students,
		sections:     sections,
		curriculum:   curriculum,
		correlatives: correlatives,
		locks:        locks,
		cache:        cache,
		metrics:      metrics,
		policy:       policy,
		isUnique:     isUnique,
		validator:    validate,
		logger:       logger,
	}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return enrollments, paginationFor(filter.Page, filter.PageSize, total), nil
}

// Enroll registers a student into a section after running the full
// precondition chain: duplicate, curriculum, prerequisite, schedule conflict.
// The first failed check wins and nothing is persisted.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	section, err := s.sections.FindByID(ctx, req.SectionID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	subject, err := s.curriculum.FindSubjectByID(ctx, section.SubjectID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	// The detail read happens under the same lock as the insert, so a
	// concurrent withdraw cannot turn a successful enroll into a missing row.
	var detail *models.EnrollmentDetail
	err = s.locks.WithStudentLock(ctx, student.ID, func(ctx context.Context) error {
		id, lockErr := s.enrollLocked(ctx, student, section, subject)
		if lockErr != nil {
			return lockErr
		}
		loaded, loadErr := s.repo.FindDetailByID(ctx, id)
		if loadErr != nil {
			return appErrors.Wrap(loadErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment detail")
		}
		detail = loaded
		return nil
	})
	if err != nil {
		s.observeRejection(err)
		return nil, err
	}

	s.invalidateEligibility(ctx, student.ID)
	if s.metrics != nil {
		s.metrics.RecordEnrollment()
	}
	s.logger.Info("student enrolled",
		zap.String("student_id", student.ID),
		zap.String("section_id", section.ID),
		zap.String("subject_id", subject.ID),
	)
	return detail, nil
}

// enrollLocked runs the precondition chain and the insert while the
// student's advisory lock is held.
func (s *EnrollmentService) enrollLocked(ctx context.Context, student *models.Student, section *models.Section, subject *models.Subject) (string, error) {
	existing, err := s.repo.FindByStudentAndSection(ctx, student.ID, section.ID)
	if err != nil && err != sql.ErrNoRows {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if existing != nil {
		return "", appErrors.Clone(appErrors.ErrDuplicateEnrollment, "")
	}

	activeForSubject, err := s.repo.ExistsActiveForSubject(ctx, student.ID, subject.ID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check subject enrollment")
	}
	if activeForSubject {
		return "", appErrors.Clone(appErrors.ErrDuplicateEnrollment,
			fmt.Sprintf("already enrolled in another section of %s", subject.Name))
	}

	inProgram, err := s.curriculum.IsSubjectInProgram(ctx, student.ProgramID, subject.ID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check curriculum")
	}
	if !inProgram || subject.CatalogYear > student.AcademicYear {
		return "", appErrors.Clone(appErrors.ErrNotInCurriculum,
			fmt.Sprintf("%s is not available for this student", subject.Name))
	}

	if !s.policy.AllowRetakes {
		passed, err := s.correlatives.HasPassed(ctx, student.ID, subject.ID)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check prior approval")
		}
		if passed {
			return "", appErrors.Clone(appErrors.ErrPreconditionFailed,
				fmt.Sprintf("%s already passed, retakes disabled", subject.Name))
		}
	}

	previous, err := s.correlatives.PreviousSubject(ctx, *subject)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve prerequisite")
	}
	if previous != nil {
		passed, err := s.correlatives.HasPassed(ctx, student.ID, previous.ID)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check prerequisite")
		}
		if !passed {
			domainErr := &models.PrerequisiteError{SubjectName: previous.Name}
			return "", appErrors.Wrap(domainErr, appErrors.ErrPrerequisiteNotMet.Code, appErrors.ErrPrerequisiteNotMet.Status,
				fmt.Sprintf("must pass %s first", previous.Name))
		}
	}

	if err := s.checkScheduleConflict(ctx, student.ID, section); err != nil {
		return "", err
	}

	enrollment := &models.Enrollment{
		StudentID: student.ID,
		SectionID: section.ID,
		SubjectID: subject.ID,
		Status:    models.EnrollmentStatusActive,
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		if s.isUnique(err) {
			// A concurrent writer slipped past; the constraint is the backstop.
			return "", appErrors.Clone(appErrors.ErrDuplicateEnrollment, "")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	return enrollment.ID, nil
}

// checkScheduleConflict parses the candidate schedule and every active
// enrollment's schedule. A malformed schedule anywhere aborts the enrollment;
// it is never treated as "no conflict possible".
func (s *EnrollmentService) checkScheduleConflict(ctx context.Context, studentID string, section *models.Section) error {
	candidate, err := schedule.Parse(section.ScheduleText)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrScheduleFormat.Code, appErrors.ErrScheduleFormat.Status,
			"section schedule cannot be parsed")
	}

	active, err := s.repo.ListActiveByStudent(ctx, studentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load active enrollments")
	}

	for _, enrollment := range active {
		if enrollment.SectionID == section.ID {
			continue
		}
		existing, err := schedule.Parse(enrollment.ScheduleText)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrScheduleFormat.Code, appErrors.ErrScheduleFormat.Status,
				fmt.Sprintf("schedule of enrolled section %s cannot be parsed", enrollment.SectionID))
		}
		if day, ok := schedule.Overlap(candidate, existing); ok {
			domainErr := &models.ScheduleConflictError{Conflict: models.ScheduleConflict{
				EnrollmentID: enrollment.ID,
				SectionID:    enrollment.SectionID,
				SubjectName:  enrollment.SubjectName,
				Weekday:      day,
				StartsAt:     existing.Start.String(),
				EndsAt:       existing.End.String(),
			}}
			return appErrors.Wrap(domainErr, appErrors.ErrScheduleConflict.Code, appErrors.ErrScheduleConflict.Status,
				domainErr.Error())
		}
	}
	return nil
}

// Withdraw removes the student's enrollment in a section. Withdrawing an
// enrollment that does not exist is a no-op, not an error.
func (s *EnrollmentService) Withdraw(ctx context.Context, studentID, sectionID string) error {
	err := s.locks.WithStudentLock(ctx, studentID, func(ctx context.Context) error {
		affected, err := s.repo.Delete(ctx, studentID, sectionID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to withdraw enrollment")
		}
		if affected > 0 {
			if s.metrics != nil {
				s.metrics.RecordWithdrawal()
			}
			s.logger.Info("student withdrawn",
				zap.String("student_id", studentID),
				zap.String("section_id", sectionID),
			)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidateEligibility(ctx, studentID)
	return nil
}

// ListEligibleSubjects evaluates every subject in the student's curriculum
// for the reinscription screen. Results are cached per student until the
// next enrollment, withdrawal or grade write.
func (s *EnrollmentService) ListEligibleSubjects(ctx context.Context, studentID string) ([]models.SubjectEligibility, error) {
	cacheKey := eligibilityCacheKey(studentID)
	if s.cache.Enabled() {
		var cached []models.SubjectEligibility
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return cached, nil
		}
	}

	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	subjects, err := s.curriculum.ListProgramSubjects(ctx, student.ProgramID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load curriculum")
	}

	result := make([]models.SubjectEligibility, 0, len(subjects))
	for _, subject := range subjects {
		if subject.CatalogYear > student.AcademicYear {
			continue
		}

		passed, err := s.correlatives.HasPassed(ctx, student.ID, subject.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check approval")
		}
		if passed {
			result = append(result, models.SubjectEligibility{Subject: subject, Status: models.EligibilityAlreadyPassed})
			continue
		}

		previous, err := s.correlatives.PreviousSubject(ctx, subject)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve prerequisite")
		}
		if previous != nil {
			prevPassed, err := s.correlatives.HasPassed(ctx, student.ID, previous.ID)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check prerequisite")
			}
			if !prevPassed {
				result = append(result, models.SubjectEligibility{
					Subject:         subject,
					Status:          models.EligibilityPrerequisiteNotMet,
					BlockingSubject: previous.Name,
				})
				continue
			}
		}

		result = append(result, models.SubjectEligibility{Subject: subject, Status: models.EligibilityOK})
	}

	if s.cache.Enabled() {
		_ = s.cache.Set(ctx, cacheKey, result)
	}
	return result, nil
}

func (s *EnrollmentService) invalidateEligibility(ctx context.Context, studentID string) {
	if s.cache.Enabled() {
		if err := s.cache.Delete(ctx, eligibilityCacheKey(studentID)); err != nil {
			s.logger.Warn("eligibility cache invalidation failed", zap.String("student_id", studentID), zap.Error(err))
		}
	}
}

func (s *EnrollmentService) observeRejection(err error) {
	if s.metrics == nil {
		return
	}
	appErr := appErrors.FromError(err)
	switch appErr.Code {
	case appErrors.ErrDuplicateEnrollment.Code,
		appErrors.ErrNotInCurriculum.Code,
		appErrors.ErrPrerequisiteNotMet.Code,
		appErrors.ErrScheduleConflict.Code,
		appErrors.ErrScheduleFormat.Code:
		s.metrics.RecordEnrollmentRejection(appErr.Code)
	}
}

func eligibilityCacheKey(studentID string) string {
	return "eligibility:" + studentID
}
