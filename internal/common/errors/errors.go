// Package errors provides standardized error handling for the answering pipeline
// and its BPMN workflow integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Pipeline stage errors
const (
	ErrCodeQuestionValidationFailed ErrorCode = "QUESTION_VALIDATION_FAILED"
	ErrCodeClassificationFailed     ErrorCode = "CLASSIFICATION_FAILED"
	ErrCodeDecompositionFailed      ErrorCode = "DECOMPOSITION_FAILED"
	ErrCodeRetrievalFailed          ErrorCode = "RETRIEVAL_FAILED"
	ErrCodeNoUsableContext          ErrorCode = "NO_USABLE_CONTEXT"
	ErrCodeSynthesisFailed          ErrorCode = "SYNTHESIS_FAILED"
	ErrCodeResponseValidationFailed ErrorCode = "RESPONSE_VALIDATION_FAILED"
)

// Collaborator errors
const (
	ErrCodeEmbeddingFailed      ErrorCode = "EMBEDDING_FAILED"
	ErrCodeStoreFailed          ErrorCode = "STORE_FAILED"
	ErrCodeGenerationFailed     ErrorCode = "GENERATION_FAILED"
	ErrCodeCollaboratorTimeout  ErrorCode = "COLLABORATOR_TIMEOUT"
	ErrCodeIndexNotFound        ErrorCode = "INDEX_NOT_FOUND"
	ErrCodeDatabaseInsertFailed ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeCacheFailed          ErrorCode = "CACHE_FAILED"
	ErrCodeEventPublishFailed   ErrorCode = "EVENT_PUBLISH_FAILED"
	ErrCodeJobBrokerFailed      ErrorCode = "JOB_BROKER_FAILED"
	ErrCodeRequestCancelled     ErrorCode = "REQUEST_CANCELLED"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Cause     error                  `json:"-"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.Cause
}

// Is matches any StandardError carrying the same code, so callers can write
// errors.Is(err, &StandardError{Code: ErrCodeStoreFailed}).
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message string, cause error, retryable bool) *StandardError {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		Cause:     cause,
	}
}

// NewQuestionValidationError creates a non-retryable input error.
func NewQuestionValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQuestionValidationFailed,
		Message:   "Question validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewClassificationError is raised when no query type can be determined.
// The orchestrator recovers from it with the SIMPLE_DIRECT fallback.
func NewClassificationError(cause error) *StandardError {
	return newError(ErrCodeClassificationFailed, "Query classification failed", cause, false)
}

// NewDecompositionError is raised when the model output cannot be turned into
// sub-queries that cover the extracted entities.
func NewDecompositionError(cause error) *StandardError {
	return newError(ErrCodeDecompositionFailed, "Query decomposition failed", cause, false)
}

// NewEmbeddingError creates a retryable embedder error.
func NewEmbeddingError(cause error) *StandardError {
	return newError(ErrCodeEmbeddingFailed, "Embedding request failed", cause, true)
}

// NewStoreError creates a retryable vector store error.
func NewStoreError(cause error) *StandardError {
	return newError(ErrCodeStoreFailed, "Vector store search failed", cause, true)
}

// NewGenerationError creates a retryable language model error.
func NewGenerationError(cause error) *StandardError {
	return newError(ErrCodeGenerationFailed, "Language model completion failed", cause, true)
}

// NewSynthesisError is raised when the completion cannot be turned into an answer.
func NewSynthesisError(cause error) *StandardError {
	return newError(ErrCodeSynthesisFailed, "Answer synthesis failed", cause, false)
}

// NewCollaboratorTimeoutError reports a collaborator call that exceeded its deadline.
func NewCollaboratorTimeoutError(collaborator string, cause error) *StandardError {
	err := newError(ErrCodeCollaboratorTimeout, fmt.Sprintf("Collaborator '%s' timeout", collaborator), cause, true)
	return err.WithMetadata("collaborator", collaborator)
}

// NewRetrievalFailedError reports that every sub-query failed.
func NewRetrievalFailedError(failed int) *StandardError {
	return &StandardError{
		Code:      ErrCodeRetrievalFailed,
		Message:   "All sub-query retrievals failed",
		Details:   fmt.Sprintf("failedSubQueries: %d", failed),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNoUsableContextError reports synthesis failure with nothing to fall back on.
func NewNoUsableContextError(cause error) *StandardError {
	return newError(ErrCodeNoUsableContext, "No usable context to answer from", cause, false)
}

// NewIndexNotFoundError creates a non-retryable index not found error.
func NewIndexNotFoundError(indexName string) *StandardError {
	return &StandardError{
		Code:      ErrCodeIndexNotFound,
		Message:   "Elasticsearch index not found",
		Details:   fmt.Sprintf("indexName: %s", indexName),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseInsertFailedError creates a retryable database insert error.
func NewDatabaseInsertFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseInsertFailed, "Database insert operation failed", err, true)
}

func NewCacheError(err error) *StandardError {
	return newError(ErrCodeCacheFailed, "Answer cache operation failed", err, true)
}

func NewEventPublishError(err error) *StandardError {
	return newError(ErrCodeEventPublishFailed, "Answer event publish failed", err, true)
}

func NewResponseValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeResponseValidationFailed,
		Message:   "Response failed schema validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewJobBrokerError wraps a failed Zeebe gateway command.
func NewJobBrokerError(operation string, cause error) *StandardError {
	err := newError(ErrCodeJobBrokerFailed, fmt.Sprintf("Zeebe operation '%s' failed", operation), cause, true)
	return err.WithMetadata("operation", operation)
}

func NewRequestCancelledError(cause error) *StandardError {
	return newError(ErrCodeRequestCancelled, "Request cancelled", cause, false)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeQuestionValidationFailed: "QUESTION_VALIDATION_FAILED",
	ErrCodeClassificationFailed:     "CLASSIFICATION_FAILED",
	ErrCodeDecompositionFailed:      "DECOMPOSITION_FAILED",
	ErrCodeRetrievalFailed:          "RETRIEVAL_FAILED",
	ErrCodeNoUsableContext:          "NO_USABLE_CONTEXT",
	ErrCodeSynthesisFailed:          "SYNTHESIS_FAILED",
	ErrCodeEmbeddingFailed:          "EMBEDDING_FAILED",
	ErrCodeStoreFailed:              "STORE_FAILED",
	ErrCodeGenerationFailed:         "GENERATION_FAILED",
	ErrCodeCollaboratorTimeout:      "COLLABORATOR_TIMEOUT",
	ErrCodeIndexNotFound:            "INDEX_NOT_FOUND",
	ErrCodeRequestCancelled:         "REQUEST_CANCELLED",
}

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeEmbeddingFailed,
		ErrCodeStoreFailed,
		ErrCodeGenerationFailed,
		ErrCodeRetrievalFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeCacheFailed,
		ErrCodeEventPublishFailed,
		ErrCodeJobBrokerFailed:
		return 3

	case ErrCodeCollaboratorTimeout:
		return 2

	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// AsStandardError finds the first StandardError in err's chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether any StandardError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	return stderrors.Is(err, &StandardError{Code: code})
}

// CodeOf returns the outermost StandardError code, or INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "CLASSIFICATION") || strings.Contains(codeStr, "DECOMPOSITION"):
		return "UNDERSTANDING"
	case strings.Contains(codeStr, "EMBEDDING") || strings.Contains(codeStr, "STORE") ||
		strings.Contains(codeStr, "RETRIEVAL") || strings.Contains(codeStr, "INDEX"):
		return "RETRIEVAL"
	case strings.Contains(codeStr, "GENERATION") || strings.Contains(codeStr, "SYNTHESIS") ||
		strings.Contains(codeStr, "CONTEXT"):
		return "AI"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "CACHE"):
		return "DATABASE"
	case strings.Contains(codeStr, "TIMEOUT") || strings.Contains(codeStr, "CANCELLED"):
		return "TIMEOUT"
	case strings.Contains(codeStr, "BROKER") || strings.Contains(codeStr, "EVENT"):
		return "INTEGRATION"
	default:
		return "OTHER"
	}
}
