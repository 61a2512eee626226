package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/utn-records/enrollment-api/internal/middleware"
	"github.com/utn-records/enrollment-api/internal/models"
	"github.com/utn-records/enrollment-api/internal/service"
	appErrors "github.com/utn-records/enrollment-api/pkg/errors"
	"github.com/utn-records/enrollment-api/pkg/response"
)

// GradeHandler exposes grading and subject outcome endpoints.
type GradeHandler struct {
	grades *service.GradeService
}

// NewGradeHandler constructs GradeHandler.
func NewGradeHandler(grades *service.GradeService) *GradeHandler {
	return &GradeHandler{grades: grades}
}

// RecordGrade godoc
// @Summary Record a grade on an enrollment
// @Description Grades run 0-10; passing is derived from the configured
// @Description threshold. A passing grade completes the enrollment and
// @Description upserts the student's APPROVED outcome for the subject.
// @Tags Grades
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.RecordGradeRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /grades [post]
func (h *GradeHandler) RecordGrade(c *gin.Context) {
	var req service.RecordGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	detail, err := h.grades.RecordGrade(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// RecordOutcome godoc
// @Summary Record a student's final condition on a subject
// @Tags Grades
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.RecordOutcomeRequest true "Outcome payload"
// @Success 201 {object} response.Envelope
// @Router /outcomes [post]
func (h *GradeHandler) RecordOutcome(c *gin.Context) {
	var req service.RecordOutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	outcome, err := h.grades.RecordOutcome(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, outcome)
}

// ListOutcomes godoc
// @Summary List a student's subject outcomes
// @Tags Grades
// @Produce json
// @Security BearerAuth
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{studentId}/outcomes [get]
func (h *GradeHandler) ListOutcomes(c *gin.Context) {
	studentID := studentParam(c)
	if claims, ok := middleware.CurrentClaims(c); ok && claims.Role == models.RoleStudent {
		if claims.StudentID == nil || *claims.StudentID != studentID {
			response.Error(c, appErrors.ErrForbidden)
			return
		}
	}

	outcomes, err := h.grades.ListOutcomes(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcomes, nil)
}
