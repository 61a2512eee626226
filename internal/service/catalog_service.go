package service

import (
	"context"
	"database/sql"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/utn-records/enrollment-api/internal/models"
	appErrors "github.com/utn-records/enrollment-api/pkg/errors"
)

type catalogRepository interface {
	ListPrograms(ctx context.Context, filter models.ProgramFilter) ([]models.Program, int, error)
	FindProgramByID(ctx context.Context, id string) (*models.Program, error)
	ListSubjects(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error)
	FindSubjectByID(ctx context.Context, id string) (*models.Subject, error)
	ListProgramSubjects(ctx context.Context, programID string) ([]models.Subject, error)
}

type sectionRepository interface {
	List(ctx context.Context, filter models.SectionFilter) ([]models.SectionDetail, int, error)
	FindDetailByID(ctx context.Context, id string) (*models.SectionDetail, error)
	ListBySubject(ctx context.Context, subjectID string) ([]models.Section, error)
}

// ProgramLink is a resolved external landing page for a program.
type ProgramLink struct {
	Slug string `json:"slug"`
	URL  string `json:"url"`
}

// CatalogService serves the read-mostly academic catalog: programs,
// subjects, course sections and the program slug map used to build links
// to the institution's public program pages.
type CatalogService struct {
	repo      catalogRepository
	sections  sectionRepository
	validator *validator.Validate
	logger    *zap.Logger

	mu    sync.RWMutex
	slugs map[string]ProgramLink
}

// NewCatalogService constructs CatalogService.
func NewCatalogService(repo catalogRepository, sections sectionRepository, validate *validator.Validate, logger *zap.Logger) *CatalogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{
		repo:      repo,
		sections:  sections,
		validator: validate,
		logger:    logger,
		slugs:     map[string]ProgramLink{},
	}
}

// LoadProgramLinks reads the program slug mapping from a YAML file of the
// form:
//
//	programs:
//	  - name: Ingeniería en Sistemas
//	    slug: sistemas
//	    url: https://example.edu/carreras/sistemas
//
// Missing files are not fatal; program links degrade to absent.
func (s *CatalogService) LoadProgramLinks(path string) error {
	if path == "" {
		return nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		s.logger.Warn("program slug file not loaded", zap.String("path", path), zap.Error(err))
		return err
	}

	type entry struct {
		Name string `mapstructure:"name"`
		Slug string `mapstructure:"slug"`
		URL  string `mapstructure:"url"`
	}
	var entries []entry
	if err := v.UnmarshalKey("programs", &entries); err != nil {
		return err
	}

	links := make(map[string]ProgramLink, len(entries))
	for _, e := range entries {
		if e.Name == "" || e.Slug == "" {
			continue
		}
		links[normalizeProgramName(e.Name)] = ProgramLink{Slug: e.Slug, URL: e.URL}
	}

	s.mu.Lock()
	s.slugs = links
	s.mu.Unlock()
	s.logger.Info("program slug map loaded", zap.String("path", path), zap.Int("entries", len(links)))
	return nil
}

// ProgramLink resolves the external link for a program name. The second
// return value reports whether a mapping exists.
func (s *CatalogService) ProgramLink(name string) (ProgramLink, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	link, ok := s.slugs[normalizeProgramName(name)]
	return link, ok
}

// ListPrograms returns programs with pagination metadata.
func (s *CatalogService) ListPrograms(ctx context.Context, filter models.ProgramFilter) ([]models.Program, *models.Pagination, error) {
	programs, total, err := s.repo.ListPrograms(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list programs")
	}
	return programs, paginationFor(filter.Page, filter.PageSize, total), nil
}

// GetProgram returns one program by id.
func (s *CatalogService) GetProgram(ctx context.Context, id string) (*models.Program, error) {
	program, err := s.repo.FindProgramByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
	}
	return program, nil
}

// ListProgramSubjects returns a program's curriculum ordered by catalog year.
func (s *CatalogService) ListProgramSubjects(ctx context.Context, programID string) ([]models.Subject, error) {
	if _, err := s.GetProgram(ctx, programID); err != nil {
		return nil, err
	}
	subjects, err := s.repo.ListProgramSubjects(ctx, programID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list curriculum")
	}
	return subjects, nil
}

// ListSubjects returns subjects with pagination metadata.
func (s *CatalogService) ListSubjects(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, *models.Pagination, error) {
	subjects, total, err := s.repo.ListSubjects(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	return subjects, paginationFor(filter.Page, filter.PageSize, total), nil
}

// GetSubject returns one subject by id.
func (s *CatalogService) GetSubject(ctx context.Context, id string) (*models.Subject, error) {
	subject, err := s.repo.FindSubjectByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	return subject, nil
}

// ListSections returns course sections with pagination metadata.
func (s *CatalogService) ListSections(ctx context.Context, filter models.SectionFilter) ([]models.SectionDetail, *models.Pagination, error) {
	sections, total, err := s.sections.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sections")
	}
	return sections, paginationFor(filter.Page, filter.PageSize, total), nil
}

// GetSection returns one section with subject and group info.
func (s *CatalogService) GetSection(ctx context.Context, id string) (*models.SectionDetail, error) {
	section, err := s.sections.FindDetailByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	return section, nil
}

// ListSubjectSections returns every section offered for a subject.
func (s *CatalogService) ListSubjectSections(ctx context.Context, subjectID string) ([]models.Section, error) {
	if _, err := s.GetSubject(ctx, subjectID); err != nil {
		return nil, err
	}
	sections, err := s.sections.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subject sections")
	}
	return sections, nil
}

func normalizeProgramName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func paginationFor(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}
