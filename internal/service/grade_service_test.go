package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utn-records/enrollment-api/internal/models"
	appErrors "github.com/utn-records/enrollment-api/pkg/errors"
)

func intPtr(n int) *int { return &n }

type fakeGradeEnrollmentRepo struct {
	enrollments map[string]models.Enrollment
	recorded    *struct {
		id       string
		grade    *int
		passed   bool
		status   models.EnrollmentStatus
		gradedAt *time.Time
	}
}

func (f *fakeGradeEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := f.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeGradeEnrollmentRepo) FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	if e, ok := f.enrollments[id]; ok {
		return &models.EnrollmentDetail{Enrollment: e}, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeGradeEnrollmentRepo) RecordGrade(ctx context.Context, id string, grade *int, passed bool, status models.EnrollmentStatus, gradedAt *time.Time) error {
	if _, ok := f.enrollments[id]; !ok {
		return sql.ErrNoRows
	}
	f.recorded = &struct {
		id       string
		grade    *int
		passed   bool
		status   models.EnrollmentStatus
		gradedAt *time.Time
	}{id: id, grade: grade, passed: passed, status: status, gradedAt: gradedAt}
	return nil
}

type fakeOutcomeRepo struct {
	upserted []models.SubjectOutcome
}

func (f *fakeOutcomeRepo) Upsert(ctx context.Context, outcome *models.SubjectOutcome) error {
	f.upserted = append(f.upserted, *outcome)
	return nil
}

func (f *fakeOutcomeRepo) FindByStudentAndSubject(ctx context.Context, studentID, subjectID string) (*models.SubjectOutcome, error) {
	return nil, nil
}

func (f *fakeOutcomeRepo) ListByStudent(ctx context.Context, studentID string) ([]models.SubjectOutcomeDetail, error) {
	return nil, nil
}

func newGradeFixture() (*fakeGradeEnrollmentRepo, *fakeOutcomeRepo, *GradeService) {
	enrollments := &fakeGradeEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"enroll-1": {ID: "enroll-1", StudentID: "student-1", SectionID: "section-1", SubjectID: "subject-1", Status: models.EnrollmentStatusActive},
	}}
	outcomes := &fakeOutcomeRepo{}
	svc := NewGradeService(enrollments, outcomes, nil, nil, 6, nil, nil)
	return enrollments, outcomes, svc
}

func TestRecordGradePassing(t *testing.T) {
	enrollments, outcomes, svc := newGradeFixture()

	detail, err := svc.RecordGrade(context.Background(), RecordGradeRequest{EnrollmentID: "enroll-1", Grade: intPtr(8)})
	require.NoError(t, err)
	require.NotNil(t, detail)

	require.NotNil(t, enrollments.recorded)
	require.NotNil(t, enrollments.recorded.grade)
	assert.Equal(t, 8, *enrollments.recorded.grade)
	assert.True(t, enrollments.recorded.passed)
	assert.Equal(t, models.EnrollmentStatusCompleted, enrollments.recorded.status)

	require.Len(t, outcomes.upserted, 1)
	assert.Equal(t, "student-1", outcomes.upserted[0].StudentID)
	assert.Equal(t, "subject-1", outcomes.upserted[0].SubjectID)
	assert.Equal(t, models.ConditionApproved, outcomes.upserted[0].Condition)
	require.NotNil(t, outcomes.upserted[0].Grade)
	assert.Equal(t, 8, *outcomes.upserted[0].Grade)
}

func TestRecordGradeFailing(t *testing.T) {
	enrollments, outcomes, svc := newGradeFixture()

	_, err := svc.RecordGrade(context.Background(), RecordGradeRequest{EnrollmentID: "enroll-1", Grade: intPtr(5)})
	require.NoError(t, err)

	require.NotNil(t, enrollments.recorded)
	assert.False(t, enrollments.recorded.passed)
	assert.Equal(t, models.EnrollmentStatusCompleted, enrollments.recorded.status)
	assert.Empty(t, outcomes.upserted)
}

func TestRecordGradeAtThreshold(t *testing.T) {
	enrollments, outcomes, svc := newGradeFixture()

	_, err := svc.RecordGrade(context.Background(), RecordGradeRequest{EnrollmentID: "enroll-1", Grade: intPtr(6)})
	require.NoError(t, err)
	assert.True(t, enrollments.recorded.passed)
	assert.Len(t, outcomes.upserted, 1)
}

func TestRecordGradeBounds(t *testing.T) {
	_, _, svc := newGradeFixture()

	for _, grade := range []int{0, 10} {
		_, err := svc.RecordGrade(context.Background(), RecordGradeRequest{EnrollmentID: "enroll-1", Grade: intPtr(grade)})
		require.NoError(t, err, "grade %d", grade)
	}
	for _, grade := range []int{-1, 11} {
		_, err := svc.RecordGrade(context.Background(), RecordGradeRequest{EnrollmentID: "enroll-1", Grade: intPtr(grade)})
		assert.True(t, appErrors.HasCode(err, appErrors.ErrGradeOutOfRange), "grade %d", grade)
	}
}

func TestRecordGradeOmittedLeavesUngraded(t *testing.T) {
	enrollments, outcomes, svc := newGradeFixture()

	// A payload without a grade must not collapse to grade 0.
	var req RecordGradeRequest
	require.NoError(t, json.Unmarshal([]byte(`{"enrollment_id":"enroll-1"}`), &req))
	require.Nil(t, req.Grade)

	_, err := svc.RecordGrade(context.Background(), req)
	require.NoError(t, err)

	require.NotNil(t, enrollments.recorded)
	assert.Nil(t, enrollments.recorded.grade)
	assert.Nil(t, enrollments.recorded.gradedAt)
	assert.False(t, enrollments.recorded.passed)
	assert.Equal(t, models.EnrollmentStatusActive, enrollments.recorded.status)
	assert.Empty(t, outcomes.upserted)
}

func TestRecordGradeEnrollmentNotFound(t *testing.T) {
	_, _, svc := newGradeFixture()

	_, err := svc.RecordGrade(context.Background(), RecordGradeRequest{EnrollmentID: "ghost", Grade: intPtr(7)})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrNotFound))
}

func TestRecordOutcomeUpserts(t *testing.T) {
	_, outcomes, svc := newGradeFixture()
	grade := 4

	outcome, err := svc.RecordOutcome(context.Background(), RecordOutcomeRequest{
		StudentID: "student-1",
		SubjectID: "subject-1",
		Condition: "PROMOTED",
		Grade:     &grade,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ConditionPromoted, outcome.Condition)
	require.Len(t, outcomes.upserted, 1)
}

func TestRecordOutcomeRejectsUnknownCondition(t *testing.T) {
	_, _, svc := newGradeFixture()

	_, err := svc.RecordOutcome(context.Background(), RecordOutcomeRequest{
		StudentID: "student-1",
		SubjectID: "subject-1",
		Condition: "MAYBE",
	})
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}
