package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utn-records/enrollment-api/internal/models"
	"github.com/utn-records/enrollment-api/pkg/jobs"
	"github.com/utn-records/enrollment-api/pkg/storage"
)

type fakeTranscriptJobStore struct {
	jobs         map[string]*models.ReportJob
	rows         []models.TranscriptRow
	rowsErr      error
	markedDone   []string
	markedFailed []string
}

func (f *fakeTranscriptJobStore) Create(ctx context.Context, job *models.ReportJob) error {
	f.jobs[job.ID] = job
	return nil
}

func (f *fakeTranscriptJobStore) FindByID(ctx context.Context, id string) (*models.ReportJob, error) {
	if j, ok := f.jobs[id]; ok {
		copied := *j
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeTranscriptJobStore) MarkRunning(ctx context.Context, id string) error {
	f.jobs[id].Status = models.ReportStatusRunning
	return nil
}

func (f *fakeTranscriptJobStore) MarkDone(ctx context.Context, id, filePath string, completedAt time.Time) error {
	f.jobs[id].Status = models.ReportStatusDone
	f.jobs[id].FilePath = filePath
	f.markedDone = append(f.markedDone, id)
	return nil
}

func (f *fakeTranscriptJobStore) MarkFailed(ctx context.Context, id, reason string, completedAt time.Time) error {
	f.jobs[id].Status = models.ReportStatusFailed
	f.jobs[id].ErrorText = reason
	f.markedFailed = append(f.markedFailed, id)
	return nil
}

func (f *fakeTranscriptJobStore) TranscriptRows(ctx context.Context, studentID string) ([]models.TranscriptRow, error) {
	if f.rowsErr != nil {
		return nil, f.rowsErr
	}
	return f.rows, nil
}

func newReportFixture(t *testing.T) (*fakeTranscriptJobStore, *ReportService) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)

	repo := &fakeTranscriptJobStore{
		jobs: map[string]*models.ReportJob{
			"job-1": {ID: "job-1", StudentID: "student-1", Format: models.ReportFormatCSV, Status: models.ReportStatusPending},
		},
		rows: []models.TranscriptRow{
			{SubjectCode: "PHY2", SubjectName: "Physics 2", CatalogYear: 2, Grade: intPtr(8), Condition: "APPROVED"},
		},
	}
	students := &fakeStudentReader{students: map[string]models.Student{
		"student-1": {ID: "student-1", DNI: "30111222", FirstName: "Ana", LastName: "Perez"},
	}}
	svc := NewReportService(repo, students, store, signer, nil, nil, nil)
	return repo, svc
}

func TestProcessJobRendersAndMarksDone(t *testing.T) {
	repo, svc := newReportFixture(t)

	err := svc.ProcessJob(context.Background(), jobs.Job{ID: "job-1", Type: "transcript", LastAttempt: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"job-1"}, repo.markedDone)
	assert.Empty(t, repo.markedFailed)
	assert.NotEmpty(t, repo.jobs["job-1"].FilePath)
}

func TestProcessJobKeepsRunningWhileRetriesRemain(t *testing.T) {
	repo, svc := newReportFixture(t)
	repo.rowsErr = errors.New("transcript query timeout")

	err := svc.ProcessJob(context.Background(), jobs.Job{ID: "job-1", Type: "transcript"})
	require.Error(t, err)

	// Not terminal yet: a poller must not see FAILED for a job a retry may
	// still complete.
	assert.Empty(t, repo.markedFailed)
	assert.Equal(t, models.ReportStatusRunning, repo.jobs["job-1"].Status)

	err = svc.ProcessJob(context.Background(), jobs.Job{ID: "job-1", Type: "transcript", LastAttempt: true})
	require.Error(t, err)
	assert.Equal(t, []string{"job-1"}, repo.markedFailed)
	assert.Equal(t, models.ReportStatusFailed, repo.jobs["job-1"].Status)
}
