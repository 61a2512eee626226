package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/utn-records/enrollment-api/internal/models"
)

func rbacContext(t *testing.T, claims *models.JWTClaims, params gin.Params) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/students/student-1", nil)
	c.Request = req
	c.Params = params
	if claims != nil {
		c.Set(ContextUserKey, claims)
	}
	return c, w
}

func TestRBACAllowsListedRole(t *testing.T) {
	c, w := rbacContext(t, &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin}, nil)

	RBAC(string(models.RoleAdmin))(c)

	require.False(t, c.IsAborted())
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRBACRejectsMissingClaims(t *testing.T) {
	c, w := rbacContext(t, nil, nil)

	RBAC(string(models.RoleAdmin))(c)

	require.True(t, c.IsAborted())
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRBACRejectsOtherRole(t *testing.T) {
	c, w := rbacContext(t, &models.JWTClaims{UserID: "u1", Role: models.RoleProfessor}, nil)

	RBAC(string(models.RoleAdmin))(c)

	require.True(t, c.IsAborted())
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestRBACSelfMatchesLinkedStudent(t *testing.T) {
	studentID := "student-1"
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleStudent, StudentID: &studentID}
	c, w := rbacContext(t, claims, gin.Params{{Key: "id", Value: "student-1"}})

	RBAC(string(models.RoleAdmin), SelfParam)(c)

	require.False(t, c.IsAborted())
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRBACSelfRejectsOtherStudent(t *testing.T) {
	studentID := "student-1"
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleStudent, StudentID: &studentID}
	c, w := rbacContext(t, claims, gin.Params{{Key: "id", Value: "student-2"}})

	RBAC(string(models.RoleAdmin), SelfParam)(c)

	require.True(t, c.IsAborted())
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestRBACSelfRequiresStudentLink(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleStudent}
	c, w := rbacContext(t, claims, gin.Params{{Key: "id", Value: "student-1"}})

	RBAC(string(models.RoleAdmin), SelfParam)(c)

	require.True(t, c.IsAborted())
	require.Equal(t, http.StatusForbidden, w.Code)
}
