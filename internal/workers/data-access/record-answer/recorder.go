// internal/workers/data-access/record-answer/recorder.go
package recordanswer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"finqa-agent/internal/common/errors"
	"finqa-agent/internal/common/logger"
	"finqa-agent/internal/models"
)

const Stage = "record-answer"

// Recorder writes finished answers to the answer_audit table.
type Recorder struct {
	config *Config
	db     *sql.DB
	logger logger.Logger
}

func NewRecorder(config *Config, db *sql.DB, log logger.Logger) *Recorder {
	return &Recorder{
		config: config,
		db:     db,
		logger: log.WithFields(map[string]interface{}{"stage": Stage}),
	}
}

// Record stores answer. failure, when set, supplies the error code.
// Recording the same request twice keeps the first row.
func (r *Recorder) Record(ctx context.Context, answer *models.SynthesizedAnswer, failure error) error {
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	subQueries, err := json.Marshal(answer.SubQueryTexts())
	if err != nil {
		return errors.NewDatabaseInsertFailedError(fmt.Errorf("encode sub-queries: %w", err))
	}

	var errorCode sql.NullString
	if failure != nil {
		errorCode = sql.NullString{String: string(errors.CodeOf(failure)), Valid: true}
	}
	var queryType sql.NullString
	if answer.QueryType != "" {
		queryType = sql.NullString{String: string(answer.QueryType), Valid: true}
	}

	created := answer.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, insertAnswerSQL,
		answer.RequestID,
		answer.Question,
		queryType,
		float64(answer.Complexity),
		string(subQueries),
		answer.Answer,
		answer.Confidence,
		answer.Degraded,
		string(answer.State),
		errorCode,
		created,
	)
	if err != nil {
		r.logger.Error("failed to record answer", map[string]interface{}{
			"requestId": answer.RequestID,
			"error":     err.Error(),
		})
		return errors.NewDatabaseInsertFailedError(err)
	}

	r.logger.Debug("answer recorded", map[string]interface{}{
		"requestId": answer.RequestID,
		"state":     answer.State,
	})
	return nil
}

// History returns the most recent answers first. limit is clamped to the
// configured maximum; zero or less uses the default.
func (r *Recorder) History(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = r.config.DefaultHistory
	}
	if limit > r.config.MaxHistoryLimit {
		limit = r.config.MaxHistoryLimit
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, selectHistorySQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query answer history: %w", err)
	}
	defer rows.Close()

	entries := make([]AuditEntry, 0, limit)
	for rows.Next() {
		var (
			e          AuditEntry
			queryType  sql.NullString
			answer     sql.NullString
			errorCode  sql.NullString
			complexity sql.NullFloat64
			confidence sql.NullFloat64
			subQueries []byte
		)
		if err := rows.Scan(&e.RequestID, &e.Question, &queryType, &complexity, &subQueries,
			&answer, &confidence, &e.Degraded, &e.State, &errorCode, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan answer history: %w", err)
		}
		e.QueryType = queryType.String
		e.Answer = answer.String
		e.ErrorCode = errorCode.String
		e.Complexity = complexity.Float64
		e.Confidence = confidence.Float64
		if len(subQueries) > 0 {
			if err := json.Unmarshal(subQueries, &e.SubQueries); err != nil {
				return nil, fmt.Errorf("decode sub-queries for %s: %w", e.RequestID, err)
			}
		}
		if e.SubQueries == nil {
			e.SubQueries = []string{}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate answer history: %w", err)
	}
	return entries, nil
}
