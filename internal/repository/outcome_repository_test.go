package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/utn-records/enrollment-api/internal/models"
)

func TestOutcomeRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOutcomeRepository(db)

	mock.ExpectExec("INSERT INTO subject_outcomes").
		WillReturnResult(sqlmock.NewResult(0, 1))

	grade := 7
	outcome := &models.SubjectOutcome{StudentID: "stu-1", SubjectID: "sub-1", Condition: models.ConditionApproved, Grade: &grade}
	err := repo.Upsert(context.Background(), outcome)
	require.NoError(t, err)
	require.NotEmpty(t, outcome.ID)
	require.False(t, outcome.DecidedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutcomeRepositoryFindMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOutcomeRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, subject_id, condition, grade, decided_at")).
		WithArgs("stu-1", "sub-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "subject_id", "condition", "grade", "decided_at"}))

	outcome, err := repo.FindByStudentAndSubject(context.Background(), "stu-1", "sub-1")
	require.NoError(t, err)
	require.Nil(t, outcome, "missing outcome is not an error")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutcomeRepositoryFindByStudentAndSubject(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewOutcomeRepository(db)

	grade := 9
	rows := sqlmock.NewRows([]string{"id", "student_id", "subject_id", "condition", "grade", "decided_at"}).
		AddRow("out-1", "stu-1", "sub-1", models.ConditionPromoted, &grade, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, subject_id, condition, grade, decided_at")).
		WithArgs("stu-1", "sub-1").
		WillReturnRows(rows)

	outcome, err := repo.FindByStudentAndSubject(context.Background(), "stu-1", "sub-1")
	require.NoError(t, err)
	require.NotNil(t, outcome)
	require.Equal(t, models.ConditionPromoted, outcome.Condition)
	require.True(t, outcome.Condition.Passing())
	require.NoError(t, mock.ExpectationsWereMet())
}
