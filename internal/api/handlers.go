package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"finqa-agent/internal/common/errors"
	"finqa-agent/internal/common/validation"
	"finqa-agent/internal/models"
	formatresponse "finqa-agent/internal/workers/infrastructure/format-response"
)

type answerRequest struct {
	Question string        `json:"question"`
	Hints    *models.Hints `json:"hints,omitempty"`
	Format   string        `json:"format,omitempty"`
	Pretty   *bool         `json:"pretty,omitempty"`
}

// answer handles POST /v1/answer.
func (s *Server) answer(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		respondError(c, http.StatusBadRequest, codeBadRequest, "could not read request body", err.Error())
		return
	}

	result, err := validation.AnswerRequest.ValidateJSON(raw)
	if err != nil {
		respondError(c, http.StatusBadRequest, codeBadRequest, "request body is not valid JSON", err.Error())
		return
	}
	if !result.Valid {
		respondError(c, http.StatusBadRequest, codeBadRequest, "invalid answer request",
			strings.Join(result.GetErrorMessages(), "; "))
		return
	}

	var req answerRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		respondError(c, http.StatusBadRequest, codeBadRequest, "invalid answer request", err.Error())
		return
	}
	if req.Format == "" {
		req.Format = c.Query("format")
	}
	format, ok := formatresponse.ParseFormat(req.Format)
	if !ok {
		respondError(c, http.StatusBadRequest, codeBadRequest, "unsupported format", req.Format)
		return
	}
	pretty := req.Pretty == nil || *req.Pretty

	answer, err := s.answerer.Answer(c.Request.Context(), req.Question, req.Hints)
	if err != nil {
		s.respondFailure(c, answer, err)
		return
	}

	out, err := s.formatter.Format(answer, format, pretty)
	if err != nil {
		s.respondFailure(c, answer, err)
		return
	}
	c.Data(http.StatusOK, out.ContentType, out.Body)
}

// listHistory handles GET /v1/history?limit=N.
func (s *Server) listHistory(c *gin.Context) {
	if s.history == nil {
		respondError(c, http.StatusServiceUnavailable, codeUnavailable, "answer history is not configured", "")
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(c, http.StatusBadRequest, codeBadRequest, "limit must be a non-negative integer", raw)
			return
		}
		limit = n
	}

	entries, err := s.history.History(c.Request.Context(), limit)
	if err != nil {
		s.respondFailure(c, nil, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"count":   len(entries),
	})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// ready runs every registered check; any failure answers 503.
func (s *Server) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.config.ReadyTimeout)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not ready"
	}
	c.JSON(status, gin.H{
		"status": state,
		"checks": results,
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) respondFailure(c *gin.Context, answer *models.SynthesizedAnswer, err error) {
	stdErr, ok := errors.AsStandardError(err)
	if !ok {
		stdErr = &errors.StandardError{Code: errors.ErrCodeInternal, Message: "Unexpected error", Details: err.Error()}
	}

	status := statusFor(stdErr.Code)
	fields := map[string]interface{}{
		"errorCode": stdErr.Code,
		"status":    status,
		"error":     err.Error(),
	}
	if answer != nil {
		fields["requestId"] = answer.RequestID
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", fields)
	} else {
		s.logger.Info("request rejected", fields)
	}

	body := errorBody{Error: errorInfo{
		Code:    string(stdErr.Code),
		Message: stdErr.Message,
		Details: stdErr.Details,
	}}
	if answer != nil {
		body.RequestID = answer.RequestID
		body.State = string(answer.State)
	}
	c.JSON(status, body)
}
