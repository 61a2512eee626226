package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/utn-records/enrollment-api/internal/models"
	appErrors "github.com/utn-records/enrollment-api/pkg/errors"
	"github.com/utn-records/enrollment-api/pkg/export"
	"github.com/utn-records/enrollment-api/pkg/jobs"
	"github.com/utn-records/enrollment-api/pkg/storage"
)

type transcriptJobStore interface {
	Create(ctx context.Context, job *models.ReportJob) error
	FindByID(ctx context.Context, id string) (*models.ReportJob, error)
	MarkRunning(ctx context.Context, id string) error
	MarkDone(ctx context.Context, id, filePath string, completedAt time.Time) error
	MarkFailed(ctx context.Context, id, reason string, completedAt time.Time) error
	TranscriptRows(ctx context.Context, studentID string) ([]models.TranscriptRow, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

// TranscriptRequest asks for a student's transcript in the given format.
type TranscriptRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Format    string `json:"format" validate:"required,oneof=csv pdf"`
}

// TranscriptDownload aggregates resolved download data.
type TranscriptDownload struct {
	File      *os.File
	Filename  string
	Format    models.ReportFormat
	ExpiresAt time.Time
}

// ReportService runs the asynchronous transcript pipeline: a request
// becomes a persisted job, a queue worker renders the transcript to disk
// and the client downloads it through a signed, expiring token.
type ReportService struct {
	repo      transcriptJobStore
	students  studentReader
	queue     jobDispatcher
	store     *storage.LocalStorage
	signer    *storage.SignedURLSigner
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewReportService constructs the report service. The queue is attached
// afterwards with SetQueue because the queue handler needs the service.
func NewReportService(
	repo transcriptJobStore,
	students studentReader,
	store *storage.LocalStorage,
	signer *storage.SignedURLSigner,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *ReportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		repo:      repo,
		students:  students,
		store:     store,
		signer:    signer,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetQueue attaches the dispatcher once the queue has been built around
// ProcessJob.
func (s *ReportService) SetQueue(queue jobDispatcher) {
	s.queue = queue
}

// RequestTranscript persists a transcript job and enqueues it.
func (s *ReportService) RequestTranscript(ctx context.Context, req TranscriptRequest, requestedBy string) (*models.ReportJob, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transcript request")
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transcript pipeline is not running")
	}

	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	job := &models.ReportJob{
		StudentID:   req.StudentID,
		Format:      models.ReportFormat(req.Format),
		Status:      models.ReportStatusPending,
		RequestedBy: requestedBy,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create transcript job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "transcript"}); err != nil {
		_ = s.repo.MarkFailed(ctx, job.ID, "failed to enqueue", time.Now().UTC())
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue transcript job")
	}

	s.logger.Info("transcript job queued",
		zap.String("job_id", job.ID),
		zap.String("student_id", job.StudentID),
		zap.String("format", string(job.Format)),
	)
	return job, nil
}

// GetJob returns job metadata. Students may only see jobs for their own
// record.
func (s *ReportService) GetJob(ctx context.Context, id string, role models.UserRole, ownStudentID *string) (*models.ReportJob, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "transcript job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load transcript job")
	}
	if role == models.RoleStudent && (ownStudentID == nil || job.StudentID != *ownStudentID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "")
	}
	return job, nil
}

// DownloadToken issues a signed download token for a finished job.
func (s *ReportService) DownloadToken(ctx context.Context, id string, role models.UserRole, ownStudentID *string) (string, time.Time, error) {
	job, err := s.GetJob(ctx, id, role, ownStudentID)
	if err != nil {
		return "", time.Time{}, err
	}
	if job.Status != models.ReportStatusDone || job.FilePath == "" {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrPreconditionFailed, "transcript is not ready")
	}
	token, expiresAt, err := s.signer.Generate(job.ID, job.FilePath)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download token")
	}
	return token, expiresAt, nil
}

// ResolveDownload validates the token and opens the stored transcript file.
func (s *ReportService) ResolveDownload(ctx context.Context, token string) (*TranscriptDownload, error) {
	jobID, relPath, expiresAt, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "download token expired")
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download token")
	}
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "transcript job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load transcript job")
	}
	if job.FilePath != relPath {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token does not match stored transcript")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open transcript file")
	}
	return &TranscriptDownload{
		File:      file,
		Filename:  fmt.Sprintf("transcript-%s.%s", job.StudentID, job.Format),
		Format:    job.Format,
		ExpiresAt: expiresAt,
	}, nil
}

// ProcessJob is the queue handler: it renders and stores the transcript.
func (s *ReportService) ProcessJob(ctx context.Context, job jobs.Job) error {
	stored, err := s.repo.FindByID(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("load transcript job %s: %w", job.ID, err)
	}
	if stored.Status == models.ReportStatusDone {
		return nil
	}

	if err := s.repo.MarkRunning(ctx, stored.ID); err != nil {
		return fmt.Errorf("mark transcript job running: %w", err)
	}

	filePath, err := s.render(ctx, stored)
	if err != nil {
		// FAILED is terminal; while retries remain the job stays RUNNING so
		// pollers never see a failure a later attempt may overturn.
		if job.LastAttempt {
			now := time.Now().UTC()
			if markErr := s.repo.MarkFailed(ctx, stored.ID, err.Error(), now); markErr != nil {
				s.logger.Error("failed to mark transcript job failed", zap.String("job_id", stored.ID), zap.Error(markErr))
			}
			if s.metrics != nil {
				s.metrics.RecordReportJob("failed")
			}
		}
		return err
	}

	if err := s.repo.MarkDone(ctx, stored.ID, filePath, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark transcript job done: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordReportJob("done")
	}
	s.logger.Info("transcript rendered", zap.String("job_id", stored.ID), zap.String("file", filePath))
	return nil
}

func (s *ReportService) render(ctx context.Context, job *models.ReportJob) (string, error) {
	rows, err := s.repo.TranscriptRows(ctx, job.StudentID)
	if err != nil {
		return "", fmt.Errorf("load transcript rows: %w", err)
	}
	student, err := s.students.FindByID(ctx, job.StudentID)
	if err != nil {
		return "", fmt.Errorf("load student: %w", err)
	}

	dataset := export.Dataset{
		Title: "Academic Transcript",
		Meta: []export.MetaEntry{
			{Label: "Student", Value: fmt.Sprintf("%s %s", student.LastName, student.FirstName)},
			{Label: "DNI", Value: student.DNI},
			{Label: "Generated", Value: s.now().Format("2006-01-02 15:04")},
		},
		Headers: []string{"Code", "Subject", "Year", "Grade", "Condition"},
		Rows:    make([]map[string]string, 0, len(rows)),
	}
	for _, row := range rows {
		grade := ""
		if row.Grade != nil {
			grade = fmt.Sprintf("%d", *row.Grade)
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Code":      row.SubjectCode,
			"Subject":   row.SubjectName,
			"Year":      fmt.Sprintf("%d", row.CatalogYear),
			"Grade":     grade,
			"Condition": row.Condition,
		})
	}

	var payload []byte
	switch job.Format {
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset)
	default:
		payload, err = s.csv.Render(dataset)
	}
	if err != nil {
		return "", fmt.Errorf("render transcript: %w", err)
	}

	filename := fmt.Sprintf("%s/%s.%s", job.StudentID, job.ID, job.Format)
	stored, err := s.store.Save(filename, payload)
	if err != nil {
		return "", fmt.Errorf("store transcript: %w", err)
	}
	return stored, nil
}
