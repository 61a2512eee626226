package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utn-records/enrollment-api/internal/models"
)

type fakeSubjectLookup struct {
	byName map[string]models.Subject
}

func (f *fakeSubjectLookup) FindSubjectByName(ctx context.Context, name string) (*models.Subject, error) {
	if s, ok := f.byName[name]; ok {
		return &s, nil
	}
	return nil, nil
}

type fakeOutcomeReader struct {
	outcomes map[string]models.SubjectOutcome
}

func (f *fakeOutcomeReader) FindByStudentAndSubject(ctx context.Context, studentID, subjectID string) (*models.SubjectOutcome, error) {
	if o, ok := f.outcomes[subjectID]; ok {
		return &o, nil
	}
	return nil, nil
}

type fakeBestGrade struct {
	grades map[string]int
}

func (f *fakeBestGrade) BestGrade(ctx context.Context, studentID, subjectID string) (*int, error) {
	if g, ok := f.grades[subjectID]; ok {
		return &g, nil
	}
	return nil, nil
}

func newCorrelativeFixture() (*fakeSubjectLookup, *fakeOutcomeReader, *fakeBestGrade, *CorrelativeService) {
	lookup := &fakeSubjectLookup{byName: map[string]models.Subject{}}
	outcomes := &fakeOutcomeReader{outcomes: map[string]models.SubjectOutcome{}}
	grades := &fakeBestGrade{grades: map[string]int{}}
	svc := NewCorrelativeService(lookup, outcomes, grades, 6, nil)
	return lookup, outcomes, grades, svc
}

func TestPreviousSubjectDerivedFromNumeral(t *testing.T) {
	lookup, _, _, svc := newCorrelativeFixture()
	lookup.byName["Physics 1"] = models.Subject{ID: "subject-0", Name: "Physics 1"}

	previous, err := svc.PreviousSubject(context.Background(), models.Subject{Name: "Physics 2"})
	require.NoError(t, err)
	require.NotNil(t, previous)
	assert.Equal(t, "subject-0", previous.ID)
}

func TestPreviousSubjectMultiDigit(t *testing.T) {
	lookup, _, _, svc := newCorrelativeFixture()
	lookup.byName["Seminar 9"] = models.Subject{ID: "subject-9", Name: "Seminar 9"}

	previous, err := svc.PreviousSubject(context.Background(), models.Subject{Name: "Seminar 10"})
	require.NoError(t, err)
	require.NotNil(t, previous)
	assert.Equal(t, "subject-9", previous.ID)
}

func TestPreviousSubjectNone(t *testing.T) {
	_, _, _, svc := newCorrelativeFixture()

	cases := []string{
		"Physics 1",
		"Algebra",
		"History of Science",
		"Lab 0",
	}
	for _, name := range cases {
		previous, err := svc.PreviousSubject(context.Background(), models.Subject{Name: name})
		require.NoError(t, err, name)
		assert.Nil(t, previous, name)
	}
}

func TestPreviousSubjectMissingFromCatalog(t *testing.T) {
	_, _, _, svc := newCorrelativeFixture()

	previous, err := svc.PreviousSubject(context.Background(), models.Subject{Name: "Physics 2"})
	require.NoError(t, err)
	assert.Nil(t, previous)
}

func TestHasPassedFromOutcomeCondition(t *testing.T) {
	_, outcomes, _, svc := newCorrelativeFixture()
	outcomes.outcomes["subject-1"] = models.SubjectOutcome{Condition: models.ConditionPromoted}

	passed, err := svc.HasPassed(context.Background(), "student-1", "subject-1")
	require.NoError(t, err)
	assert.True(t, passed)
}

func TestHasPassedFromOutcomeGrade(t *testing.T) {
	_, outcomes, _, svc := newCorrelativeFixture()
	grade := 7
	outcomes.outcomes["subject-1"] = models.SubjectOutcome{Condition: models.ConditionRegular, Grade: &grade}

	passed, err := svc.HasPassed(context.Background(), "student-1", "subject-1")
	require.NoError(t, err)
	assert.True(t, passed)
}

func TestHasPassedFromBestEnrollmentGrade(t *testing.T) {
	_, _, grades, svc := newCorrelativeFixture()
	grades.grades["subject-1"] = 6

	passed, err := svc.HasPassed(context.Background(), "student-1", "subject-1")
	require.NoError(t, err)
	assert.True(t, passed)
}

func TestHasPassedBelowThreshold(t *testing.T) {
	_, outcomes, grades, svc := newCorrelativeFixture()
	grade := 5
	outcomes.outcomes["subject-1"] = models.SubjectOutcome{Condition: models.ConditionRegular, Grade: &grade}
	grades.grades["subject-1"] = 5

	passed, err := svc.HasPassed(context.Background(), "student-1", "subject-1")
	require.NoError(t, err)
	assert.False(t, passed)
}

func TestHasPassedWithdrawnCondition(t *testing.T) {
	_, outcomes, _, svc := newCorrelativeFixture()
	outcomes.outcomes["subject-1"] = models.SubjectOutcome{Condition: models.ConditionWithdrawn}

	passed, err := svc.HasPassed(context.Background(), "student-1", "subject-1")
	require.NoError(t, err)
	assert.False(t, passed)
}
