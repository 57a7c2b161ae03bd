package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/placement-backend/internal/response"
	"github.com/stemsi/placement-backend/internal/service"
)

// serviceErrors maps specific service errors to response codes. Order
// matters: specific errors come before the base kind they wrap.
var serviceErrors = []struct {
	err    error
	status int
	code   response.ErrCode
}{
	{service.ErrUserNotFound, http.StatusNotFound, response.ErrUserNotFound},
	{service.ErrTestNotFound, http.StatusNotFound, response.ErrTestNotFound},
	{service.ErrQuestionNotFound, http.StatusNotFound, response.ErrQuestionNotFound},
	{service.ErrNoQuestions, http.StatusNotFound, response.ErrNoQuestions},
	{service.ErrNotFound, http.StatusNotFound, response.ErrNotFound},

	{service.ErrMCQNotFinished, http.StatusBadRequest, response.ErrMCQNotFinished},
	{service.ErrTestCompleted, http.StatusBadRequest, response.ErrTestCompleted},
	{service.ErrNotSATTest, http.StatusBadRequest, response.ErrNotSATTest},
	{service.ErrEssayNotAllowed, http.StatusBadRequest, response.ErrEssayNotAllowed},
	{service.ErrEssayTooShort, http.StatusBadRequest, response.ErrEssayTooShort},
	{service.ErrState, http.StatusBadRequest, response.ErrInvalidState},

	{service.ErrDuplicateEmail, http.StatusConflict, response.ErrEmailTaken},
	{service.ErrQuestionIDTaken, http.StatusConflict, response.ErrQuestionIDTaken},
	{service.ErrConflict, http.StatusConflict, response.ErrConflict},

	{service.ErrInvalidCredentials, http.StatusUnauthorized, response.ErrInvalidCredentials},
	{service.ErrAdminNotConfigured, http.StatusServiceUnavailable, response.ErrAdminNotConfigured},
}

// failFromError writes the error envelope for a service error. Unknown
// errors are logged and reported as internal.
func failFromError(c *gin.Context, log zerolog.Logger, err error) {
	var fe *service.FieldError
	if errors.As(err, &fe) {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{fe.Field: fe.Message})
		return
	}

	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			response.Fail(c, m.status, m.code)
			return
		}
	}

	log.Error().Err(err).
		Str("request_id", response.RequestID(c)).
		Str("method", c.Request.Method).
		Str("path", c.FullPath()).
		Msg("Request failed")
	response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
}

// paramID parses a positive integer path parameter, writing INVALID_ID otherwise.
func paramID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}
