package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Lllllllleong/ocrgrabber/internal/models"
)

// APIResponse is the standard envelope for all API responses.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

// APIError holds error details in the response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RespondOK sends a 200 success response.
func RespondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// RespondAccepted sends a 202 success response.
func RespondAccepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, APIResponse{Success: true, Data: data})
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg},
	})
}

// MapError translates pipeline errors to HTTP status codes and error codes.
func MapError(err error) (status int, code, msg string) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, models.ErrRunNotFound):
		return http.StatusNotFound, "RUN_NOT_FOUND", "run not found"
	case errors.Is(err, models.ErrNoInputs):
		return http.StatusBadRequest, "NO_INPUTS", "at least one file is required"
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE", "upload exceeds maximum allowed size"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
}

// HandleError maps err and writes the error response.
func HandleError(c *gin.Context, err error) {
	status, code, msg := MapError(err)
	if status == http.StatusInternalServerError {
		loggerFrom(c).Error("Request failed.", "error", err)
	}
	RespondError(c, status, code, msg)
}
