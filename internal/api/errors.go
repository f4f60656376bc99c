package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"finqa-agent/internal/common/errors"
)

const (
	codeBadRequest  = "BAD_REQUEST"
	codeUnavailable = "SERVICE_UNAVAILABLE"
)

type errorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type errorBody struct {
	Error     errorInfo `json:"error"`
	RequestID string    `json:"requestId,omitempty"`
	State     string    `json:"state,omitempty"`
}

func respondError(c *gin.Context, status int, code, message, details string) {
	c.JSON(status, errorBody{Error: errorInfo{Code: code, Message: message, Details: details}})
}

// statusFor maps a pipeline error code to an HTTP status.
func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeQuestionValidationFailed:
		return http.StatusBadRequest
	case errors.ErrCodeNoUsableContext:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeRequestCancelled:
		return http.StatusRequestTimeout
	case errors.ErrCodeCollaboratorTimeout:
		return http.StatusGatewayTimeout
	case errors.ErrCodeRetrievalFailed,
		errors.ErrCodeEmbeddingFailed,
		errors.ErrCodeStoreFailed,
		errors.ErrCodeGenerationFailed,
		errors.ErrCodeIndexNotFound:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
