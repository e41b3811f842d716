package errors

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/gin-gonic/gin"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stwalsh4118/taxappeal/internal/lifecycle"
	"github.com/stwalsh4118/taxappeal/internal/logger"
	"github.com/stwalsh4118/taxappeal/internal/middleware"
	"github.com/stwalsh4118/taxappeal/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// setupTestContext creates a test Gin context with logger and request ID in context.
func setupTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)
	c.Set(middleware.LoggerKey, logger.Nop())
	c.Set(middleware.RequestIDKey, "test-request-id")
	return c, w
}

// parseErrorResponse parses the JSON response into an ErrorResponse struct.
func parseErrorResponse(t *testing.T, body *bytes.Buffer) ErrorResponse {
	var response ErrorResponse
	err := json.Unmarshal(body.Bytes(), &response)
	require.NoError(t, err, "Failed to parse error response JSON")
	return response
}

func TestSimpleResponses(t *testing.T) {
	tests := []struct {
		name       string
		write      func(c *gin.Context)
		wantStatus int
		wantCode   string
	}{
		{"not found", func(c *gin.Context) { NotFound(c, "msg") }, http.StatusNotFound, ErrNotFound},
		{"bad request", func(c *gin.Context) { BadRequest(c, "msg", nil) }, http.StatusBadRequest, ErrBadRequest},
		{"unauthorized", func(c *gin.Context) { Unauthorized(c, "msg") }, http.StatusUnauthorized, ErrUnauthorized},
		{"conflict", func(c *gin.Context) { Conflict(c, "msg", nil) }, http.StatusConflict, ErrConflict},
		{"stage conflict", func(c *gin.Context) { StageConflict(c, "msg") }, http.StatusConflict, ErrStageConflict},
		{"unprocessable", func(c *gin.Context) { Unprocessable(c, "msg", nil) }, http.StatusUnprocessableEntity, ErrUnprocessable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := setupTestContext()

			tt.write(c)

			assert.Equal(t, tt.wantStatus, w.Code)
			response := parseErrorResponse(t, w.Body)
			assert.Equal(t, tt.wantCode, response.Error.Code)
			assert.Equal(t, "msg", response.Error.Message)
			assert.Equal(t, "test-request-id", response.Error.RequestID)
			assert.Nil(t, response.Error.Details)
		})
	}
}

func TestBadRequest_WithDetails(t *testing.T) {
	c, w := setupTestContext()

	BadRequest(c, "Invalid parcel id", map[string]interface{}{
		"parcel_id": "17-16",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	response := parseErrorResponse(t, w.Body)
	assert.Equal(t, ErrBadRequest, response.Error.Code)
	assert.Equal(t, "17-16", response.Error.Details["parcel_id"])
}

func TestGuardViolation(t *testing.T) {
	tests := []struct {
		name     string
		kind     error
		wantCode string
	}{
		{"not allowed yet", lifecycle.ErrNotAllowedYet, ErrNotAllowedYet},
		{"not allowed anymore", lifecycle.ErrNotAllowedAnymore, ErrNotAllowedAnymore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := setupTestContext()
			ge := &lifecycle.GuardError{
				Kind:   tt.kind,
				Cause:  lifecycle.ErrInvalidTransition,
				Action: "transition",
				Stage:  models.StageFiledCCAO,
				Reason: "filed_bor cannot be reached from filed_ccao",
			}

			GuardViolation(c, ge)

			assert.Equal(t, http.StatusConflict, w.Code)
			response := parseErrorResponse(t, w.Body)
			assert.Equal(t, tt.wantCode, response.Error.Code)
			assert.Equal(t, ge.Reason, response.Error.Message)
			assert.Equal(t, "transition", response.Error.Details["action"])
			assert.Equal(t, "filed_ccao", response.Error.Details["stage"])
			assert.Equal(t, lifecycle.ErrInvalidTransition.Error(), response.Error.Details["cause"])
		})
	}
}

func TestInternalServerError(t *testing.T) {
	c, w := setupTestContext()

	InternalServerError(c, "An unexpected error occurred", errors.New("database connection failed"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	response := parseErrorResponse(t, w.Body)
	assert.Equal(t, ErrInternalServer, response.Error.Code)
	assert.Equal(t, "An unexpected error occurred", response.Error.Message)
	assert.NotContains(t, w.Body.String(), "database connection failed", "internal details stay in the log")
}

func TestValidationError(t *testing.T) {
	c, w := setupTestContext()

	type transitionRequest struct {
		To                 string `validate:"required,oneof=filed_ccao filed_bor"`
		ConfirmationNumber string `validate:"max=4"`
	}

	err := validator.New().Struct(transitionRequest{To: "nowhere", ConfirmationNumber: "CCAO-12345"})
	var validationErrors validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrors)

	ValidationError(c, validationErrors)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	response := parseErrorResponse(t, w.Body)
	assert.Equal(t, ErrValidation, response.Error.Code)
	assert.Equal(t, "Validation failed for one or more fields", response.Error.Message)
	assert.Equal(t, "Must be one of: filed_ccao filed_bor", response.Error.Details["To"])
	assert.Equal(t, "Value is too long or large (maximum: 4)", response.Error.Details["ConfirmationNumber"])
}

func TestFormatValidationError(t *testing.T) {
	tests := []struct {
		tag      string
		param    string
		expected string
	}{
		{"required", "", "This field is required"},
		{"required_if", "To completed", "This field is required when To completed"},
		{"min", "5", "Value is too short or small (minimum: 5)"},
		{"max", "100", "Value is too long or large (maximum: 100)"},
		{"len", "14", "Must have length of 14"},
		{"gt", "0", "Must be greater than 0"},
		{"gte", "0", "Must be greater than or equal to 0"},
		{"lt", "100", "Must be less than 100"},
		{"lte", "100", "Must be less than or equal to 100"},
		{"oneof", "letter success_fee", "Must be one of: letter success_fee"},
		{"uuid", "", "Must be a valid UUID"},
		{"datetime", "2006-01-02", "Must be a date in the format 2006-01-02"},
		{"unknown_tag", "", "Validation failed for tag: unknown_tag"},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			result := formatValidationError(&mockFieldError{tag: tt.tag, param: tt.param})
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestErrorResponseWithoutContext(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)

	NotFound(c, "Resource not found")

	assert.Equal(t, http.StatusNotFound, w.Code, "Expected status 404 even without context")
	response := parseErrorResponse(t, w.Body)
	assert.Equal(t, ErrNotFound, response.Error.Code)
	assert.Empty(t, response.Error.RequestID, "Expected empty request ID when not in context")
}

// mockFieldError is a mock implementation of validator.FieldError for testing.
type mockFieldError struct {
	tag   string
	param string
}

func (m *mockFieldError) Tag() string                    { return m.tag }
func (m *mockFieldError) ActualTag() string              { return m.tag }
func (m *mockFieldError) Namespace() string              { return "" }
func (m *mockFieldError) StructNamespace() string        { return "" }
func (m *mockFieldError) Field() string                  { return "TestField" }
func (m *mockFieldError) StructField() string            { return "TestField" }
func (m *mockFieldError) Value() interface{}             { return nil }
func (m *mockFieldError) Param() string                  { return m.param }
func (m *mockFieldError) Kind() reflect.Kind             { return reflect.String }
func (m *mockFieldError) Type() reflect.Type             { return nil }
func (m *mockFieldError) Translate(ut.Translator) string { return "" }
func (m *mockFieldError) Error() string                  { return "" }
