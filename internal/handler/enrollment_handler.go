package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/utn-records/enrollment-api/internal/middleware"
	"github.com/utn-records/enrollment-api/internal/models"
	"github.com/utn-records/enrollment-api/internal/service"
	appErrors "github.com/utn-records/enrollment-api/pkg/errors"
	"github.com/utn-records/enrollment-api/pkg/response"
)

// EnrollmentHandler exposes enrollment, withdrawal and eligibility endpoints.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param studentId query string false "Filter by student"
// @Param sectionId query string false "Filter by section"
// @Param subjectId query string false "Filter by subject"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	var filter models.EnrollmentFilter
	filter.StudentID = c.Query("studentId")
	filter.SectionID = c.Query("sectionId")
	filter.SubjectID = c.Query("subjectId")
	filter.Status = models.EnrollmentStatus(c.Query("status"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	// Students only ever see their own record.
	if claims, ok := middleware.CurrentClaims(c); ok && claims.Role == models.RoleStudent {
		if claims.StudentID == nil {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "account has no linked student record"))
			return
		}
		filter.StudentID = *claims.StudentID
	}

	enrollments, pagination, err := h.enrollments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// Enroll godoc
// @Summary Enroll a student into a course section
// @Description Runs the full precondition chain: duplicate enrollment,
// @Description curriculum membership, prerequisite approval and schedule
// @Description conflict against every active enrollment.
// @Tags Enrollments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	var req service.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	if err := h.restrictToOwnRecord(c, &req.StudentID); err != nil {
		response.Error(c, err)
		return
	}

	detail, err := h.enrollments.Enroll(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// Withdraw godoc
// @Summary Withdraw a student from a course section
// @Description Withdrawing a non-existent enrollment is a no-op.
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param studentId path string true "Student ID"
// @Param sectionId path string true "Section ID"
// @Success 204
// @Router /students/{studentId}/enrollments/{sectionId} [delete]
func (h *EnrollmentHandler) Withdraw(c *gin.Context) {
	studentID := studentParam(c)
	if err := h.restrictToOwnRecord(c, &studentID); err != nil {
		response.Error(c, err)
		return
	}

	if err := h.enrollments.Withdraw(c.Request.Context(), studentID, c.Param("sectionId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Eligibility godoc
// @Summary List subjects the student may enroll in
// @Description Every subject of the student's curriculum up to their
// @Description academic year, marked OK, ALREADY_PASSED or
// @Description PREREQUISITE_NOT_MET with the blocking subject named.
// @Tags Enrollments
// @Produce json
// @Security BearerAuth
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{studentId}/eligibility [get]
func (h *EnrollmentHandler) Eligibility(c *gin.Context) {
	result, err := h.enrollments.ListEligibleSubjects(c.Request.Context(), studentParam(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// restrictToOwnRecord pins student-role requests to their linked student
// record. An empty target is filled in from the claims.
func (h *EnrollmentHandler) restrictToOwnRecord(c *gin.Context, studentID *string) error {
	claims, ok := middleware.CurrentClaims(c)
	if !ok || claims.Role != models.RoleStudent {
		return nil
	}
	if claims.StudentID == nil {
		return appErrors.Clone(appErrors.ErrForbidden, "account has no linked student record")
	}
	if *studentID == "" {
		*studentID = *claims.StudentID
		return nil
	}
	if *studentID != *claims.StudentID {
		return appErrors.Clone(appErrors.ErrForbidden, "")
	}
	return nil
}
