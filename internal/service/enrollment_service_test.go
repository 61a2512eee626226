package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utn-records/enrollment-api/internal/models"
	appErrors "github.com/utn-records/enrollment-api/pkg/errors"
)

type fakeEnrollmentRepo struct {
	bySection   map[string]models.Enrollment
	active      []models.EnrollmentDetail
	activeSubj  map[string]bool
	created     *models.Enrollment
	createErr   error
	deletedRows int64
	deleted     []string
}

func (f *fakeEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return nil, 0, nil
}

func (f *fakeEnrollmentRepo) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if f.created != nil && f.created.ID == id {
		return &models.EnrollmentDetail{Enrollment: *f.created}, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeEnrollmentRepo) FindByStudentAndSection(ctx context.Context, studentID, sectionID string) (*models.Enrollment, error) {
	if e, ok := f.bySection[sectionID]; ok && e.StudentID == studentID {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeEnrollmentRepo) ListActiveByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	return f.active, nil
}

func (f *fakeEnrollmentRepo) ExistsActiveForSubject(ctx context.Context, studentID, subjectID string) (bool, error) {
	return f.activeSubj[subjectID], nil
}

func (f *fakeEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if f.createErr != nil {
		return f.createErr
	}
	if enrollment.ID == "" {
		enrollment.ID = "enroll-1"
	}
	f.created = enrollment
	return nil
}

func (f *fakeEnrollmentRepo) Delete(ctx context.Context, studentID, sectionID string) (int64, error) {
	f.deleted = append(f.deleted, sectionID)
	return f.deletedRows, nil
}

type fakeStudentReader struct {
	students map[string]models.Student
}

func (f *fakeStudentReader) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := f.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

type fakeSectionReader struct {
	sections map[string]models.Section
}

func (f *fakeSectionReader) FindByID(ctx context.Context, id string) (*models.Section, error) {
	if s, ok := f.sections[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSectionReader) FindDetailByID(ctx context.Context, id string) (*models.SectionDetail, error) {
	if s, ok := f.sections[id]; ok {
		return &models.SectionDetail{Section: s}, nil
	}
	return nil, sql.ErrNoRows
}

type fakeCurriculumReader struct {
	subjects  map[string]models.Subject
	inProgram map[string]bool
	catalog   []models.Subject
}

func (f *fakeCurriculumReader) FindSubjectByID(ctx context.Context, id string) (*models.Subject, error) {
	if s, ok := f.subjects[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeCurriculumReader) IsSubjectInProgram(ctx context.Context, programID, subjectID string) (bool, error) {
	return f.inProgram[subjectID], nil
}

func (f *fakeCurriculumReader) ListProgramSubjects(ctx context.Context, programID string) ([]models.Subject, error) {
	return f.catalog, nil
}

type fakeCorrelatives struct {
	previous map[string]*models.Subject
	passed   map[string]bool
}

func (f *fakeCorrelatives) PreviousSubject(ctx context.Context, subject models.Subject) (*models.Subject, error) {
	return f.previous[subject.ID], nil
}

func (f *fakeCorrelatives) HasPassed(ctx context.Context, studentID, subjectID string) (bool, error) {
	return f.passed[subjectID], nil
}

type passthroughLocker struct {
	calls int
}

func (l *passthroughLocker) WithStudentLock(ctx context.Context, studentID string, fn func(context.Context) error) error {
	l.calls++
	return fn(ctx)
}

// withdrawOnReleaseLocker simulates a withdraw that was queued on the
// student's lock and runs the instant it is released.
type withdrawOnReleaseLocker struct {
	repo *fakeEnrollmentRepo
}

func (l *withdrawOnReleaseLocker) WithStudentLock(ctx context.Context, studentID string, fn func(context.Context) error) error {
	err := fn(ctx)
	l.repo.created = nil
	return err
}

type enrollmentFixture struct {
	repo         *fakeEnrollmentRepo
	students     *fakeStudentReader
	sections     *fakeSectionReader
	curriculum   *fakeCurriculumReader
	correlatives *fakeCorrelatives
	locker       *passthroughLocker
	service      *EnrollmentService
}

func newEnrollmentFixture(t *testing.T) *enrollmentFixture {
	t.Helper()
	f := &enrollmentFixture{
		repo: &fakeEnrollmentRepo{activeSubj: map[string]bool{}},
		students: &fakeStudentReader{students: map[string]models.Student{
			"student-1": {ID: "student-1", AcademicYear: 2, ProgramID: "program-1"},
		}},
		sections: &fakeSectionReader{sections: map[string]models.Section{
			"section-1": {ID: "section-1", SubjectID: "subject-1", ScheduleText: "Monday and Wednesday 08:00-10:00"},
		}},
		curriculum: &fakeCurriculumReader{
			subjects: map[string]models.Subject{
				"subject-1": {ID: "subject-1", Name: "Physics 2", CatalogYear: 2},
			},
			inProgram: map[string]bool{"subject-1": true},
		},
		correlatives: &fakeCorrelatives{previous: map[string]*models.Subject{}, passed: map[string]bool{}},
		locker:       &passthroughLocker{},
	}
	f.service = NewEnrollmentService(
		f.repo, f.students, f.sections, f.curriculum, f.correlatives, f.locker,
		nil, nil, EnrollmentPolicy{AllowRetakes: true}, nil, nil, nil,
	)
	return f
}

func TestEnrollSuccess(t *testing.T) {
	f := newEnrollmentFixture(t)

	detail, err := f.service.Enroll(context.Background(), EnrollRequest{StudentID: "student-1", SectionID: "section-1"})
	require.NoError(t, err)
	require.NotNil(t, detail)

	assert.Equal(t, 1, f.locker.calls)
	require.NotNil(t, f.repo.created)
	assert.Equal(t, "student-1", f.repo.created.StudentID)
	assert.Equal(t, "subject-1", f.repo.created.SubjectID)
	assert.Equal(t, models.EnrollmentStatusActive, f.repo.created.Status)
}

func TestEnrollSurvivesImmediateWithdraw(t *testing.T) {
	f := newEnrollmentFixture(t)
	f.service = NewEnrollmentService(
		f.repo, f.students, f.sections, f.curriculum, f.correlatives,
		&withdrawOnReleaseLocker{repo: f.repo},
		nil, nil, EnrollmentPolicy{AllowRetakes: true}, nil, nil, nil,
	)

	// The enrollment is withdrawn the moment the lock is released; the
	// response must still carry the row that was created.
	detail, err := f.service.Enroll(context.Background(), EnrollRequest{StudentID: "student-1", SectionID: "section-1"})
	require.NoError(t, err)
	require.NotNil(t, detail)
	assert.Equal(t, "student-1", detail.StudentID)
	assert.Equal(t, "section-1", detail.SectionID)
}

func TestEnrollStudentNotFound(t *testing.T) {
	f := newEnrollmentFixture(t)

	_, err := f.service.Enroll(context.Background(), EnrollRequest{StudentID: "ghost", SectionID: "section-1"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestEnrollDuplicateSection(t *testing.T) {
	f := newEnrollmentFixture(t)
	f.repo.bySection = map[string]models.Enrollment{
		"section-1": {ID: "enroll-0", StudentID: "student-1", SectionID: "section-1"},
	}

	_, err := f.service.Enroll(context.Background(), EnrollRequest{StudentID: "student-1", SectionID: "section-1"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrDuplicateEnrollment))
	assert.Nil(t, f.repo.created)
}

func TestEnrollDuplicateSubjectOtherSection(t *testing.T) {
	f := newEnrollmentFixture(t)
	f.repo.activeSubj["subject-1"] = true

	_, err := f.service.Enroll(context.Background(), EnrollRequest{StudentID: "student-1", SectionID: "section-1"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrDuplicateEnrollment))
}

func TestEnrollSubjectNotInProgram(t *testing.T) {
	f := newEnrollmentFixture(t)
	f.curriculum.inProgram["subject-1"] = false

	_, err := f.service.Enroll(context.Background(), EnrollRequest{StudentID: "student-1", SectionID: "section-1"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotInCurriculum))
}

func TestEnrollSubjectAboveAcademicYear(t *testing.T) {
	f := newEnrollmentFixture(t)
	subject := f.curriculum.subjects["subject-1"]
	subject.CatalogYear = 3
	f.curriculum.subjects["subject-1"] = subject

	_, err := f.service.Enroll(context.Background(), EnrollRequest{StudentID: "student-1", SectionID: "section-1"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotInCurriculum))
}

func TestEnrollPrerequisiteNotMet(t *testing.T) {
	f := newEnrollmentFixture(t)
	f.correlatives.previous["subject-1"] = &models.Subject{ID: "subject-0", Name: "Physics 1"}

	_, err := f.service.Enroll(context.Background(), EnrollRequest{StudentID: "student-1", SectionID: "section-1"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrPrerequisiteNotMet))

	var prereqErr *models.PrerequisiteError
	require.True(t, errors.As(err, &prereqErr))
	assert.Equal(t, "Physics 1", prereqErr.SubjectName)
}

func TestEnrollPrerequisitePassed(t *testing.T) {
	f := newEnrollmentFixture(t)
	f.correlatives.previous["subject-1"] = &models.Subject{ID: "subject-0", Name: "Physics 1"}
	f.correlatives.passed["subject-0"] = true

	_, err := f.service.Enroll(context.Background(), EnrollRequest{StudentID: "student-1", SectionID: "section-1"})
	require.NoError(t, err)
}

func TestEnrollScheduleConflict(t *testing.T) {
	f := newEnrollmentFixture(t)
	f.repo.active = []models.EnrollmentDetail{{
		Enrollment:   models.Enrollment{ID: "enroll-9", SectionID: "section-9"},
		SubjectName:  "Algebra 1",
		ScheduleText: "Wednesday 09:00-11:00",
	}}

	_, err := f.service.Enroll(context.Background(), EnrollRequest{StudentID: "student-1", SectionID: "section-1"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrScheduleConflict))

	var conflictErr *models.ScheduleConflictError
	require.True(t, errors.As(err, &conflictErr))
	assert.Equal(t, "Algebra 1", conflictErr.Conflict.SubjectName)
	assert.Equal(t, "Wednesday", conflictErr.Conflict.Weekday)
}

func TestEnrollBackToBackIsNotConflict(t *testing.T) {
	f := newEnrollmentFixture(t)
	f.repo.active = []models.EnrollmentDetail{{
		Enrollment:   models.Enrollment{ID: "enroll-9", SectionID: "section-9"},
		SubjectName:  "Algebra 1",
		ScheduleText: "Monday 10:00-12:00",
	}}

	_, err := f.service.Enroll(context.Background(), EnrollRequest{StudentID: "student-1", SectionID: "section-1"})
	require.NoError(t, err)
}

func TestEnrollMalformedCandidateSchedule(t *testing.T) {
	f := newEnrollmentFixture(t)
	section := f.sections.sections["section-1"]
	section.ScheduleText = "whenever"
	f.sections.sections["section-1"] = section

	_, err := f.service.Enroll(context.Background(), EnrollRequest{StudentID: "student-1", SectionID: "section-1"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrScheduleFormat))
}

func TestEnrollMalformedExistingSchedule(t *testing.T) {
	f := newEnrollmentFixture(t)
	f.repo.active = []models.EnrollmentDetail{{
		Enrollment:   models.Enrollment{ID: "enroll-9", SectionID: "section-9"},
		ScheduleText: "Monday 25:00-26:00",
	}}

	_, err := f.service.Enroll(context.Background(), EnrollRequest{StudentID: "student-1", SectionID: "section-1"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrScheduleFormat))
	assert.Nil(t, f.repo.created)
}

func TestEnrollPrerequisiteCheckedBeforeSchedule(t *testing.T) {
	f := newEnrollmentFixture(t)
	f.correlatives.previous["subject-1"] = &models.Subject{ID: "subject-0", Name: "Physics 1"}
	f.repo.active = []models.EnrollmentDetail{{
		Enrollment:   models.Enrollment{ID: "enroll-9", SectionID: "section-9"},
		ScheduleText: "Monday 08:00-10:00",
	}}

	_, err := f.service.Enroll(context.Background(), EnrollRequest{StudentID: "student-1", SectionID: "section-1"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrPrerequisiteNotMet))
}

func TestEnrollRetakeBlockedWhenDisabled(t *testing.T) {
	f := newEnrollmentFixture(t)
	f.service = NewEnrollmentService(
		f.repo, f.students, f.sections, f.curriculum, f.correlatives, f.locker,
		nil, nil, EnrollmentPolicy{AllowRetakes: false}, nil, nil, nil,
	)
	f.correlatives.passed["subject-1"] = true

	_, err := f.service.Enroll(context.Background(), EnrollRequest{StudentID: "student-1", SectionID: "section-1"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrPreconditionFailed))
}

func TestEnrollUniqueViolationMapsToDuplicate(t *testing.T) {
	f := newEnrollmentFixture(t)
	f.repo.createErr = errors.New("duplicate key value violates unique constraint")
	f.service = NewEnrollmentService(
		f.repo, f.students, f.sections, f.curriculum, f.correlatives, f.locker,
		nil, nil, EnrollmentPolicy{AllowRetakes: true},
		func(error) bool { return true }, nil, nil,
	)

	_, err := f.service.Enroll(context.Background(), EnrollRequest{StudentID: "student-1", SectionID: "section-1"})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrDuplicateEnrollment))
}

func TestWithdrawIsIdempotent(t *testing.T) {
	f := newEnrollmentFixture(t)
	f.repo.deletedRows = 0

	err := f.service.Withdraw(context.Background(), "student-1", "section-1")
	require.NoError(t, err)

	f.repo.deletedRows = 1
	err = f.service.Withdraw(context.Background(), "student-1", "section-1")
	require.NoError(t, err)
	assert.Len(t, f.repo.deleted, 2)
}

func TestListEligibleSubjects(t *testing.T) {
	f := newEnrollmentFixture(t)
	f.curriculum.catalog = []models.Subject{
		{ID: "subject-0", Name: "Physics 1", CatalogYear: 1},
		{ID: "subject-1", Name: "Physics 2", CatalogYear: 2},
		{ID: "subject-2", Name: "Chemistry 2", CatalogYear: 2},
		{ID: "subject-3", Name: "Advanced Topics", CatalogYear: 3},
	}
	f.correlatives.passed["subject-0"] = true
	f.correlatives.previous["subject-1"] = &models.Subject{ID: "subject-0", Name: "Physics 1"}
	f.correlatives.previous["subject-2"] = &models.Subject{ID: "chem-1", Name: "Chemistry 1"}

	result, err := f.service.ListEligibleSubjects(context.Background(), "student-1")
	require.NoError(t, err)
	require.Len(t, result, 3)

	byID := map[string]models.SubjectEligibility{}
	for _, e := range result {
		byID[e.Subject.ID] = e
	}
	assert.Equal(t, models.EligibilityAlreadyPassed, byID["subject-0"].Status)
	assert.Equal(t, models.EligibilityOK, byID["subject-1"].Status)
	assert.Equal(t, models.EligibilityPrerequisiteNotMet, byID["subject-2"].Status)
	assert.Equal(t, "Chemistry 1", byID["subject-2"].BlockingSubject)
	assert.NotContains(t, byID, "subject-3")
}
