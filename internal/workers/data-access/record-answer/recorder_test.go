// internal/workers/data-access/record-answer/recorder_test.go
package recordanswer

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"testing"
	"time"

	"finqa-agent/internal/common/errors"
	"finqa-agent/internal/common/logger"
	"finqa-agent/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestRecorder(t *testing.T) (*Recorder, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRecorder(LoadConfig(), db, logger.NewTestLogger(t)), mock
}

var created = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func createTestAnswer() *models.SynthesizedAnswer {
	return &models.SynthesizedAnswer{
		RequestID:  "7f1c2a9e-9c7b-4c55-a7a4-3e2b1a0c9d11",
		Question:   "How did NVIDIA grow from 2022 to 2023?",
		QueryType:  models.QueryTypeComparativeYoY,
		Complexity: 0.22,
		SubQueries: []models.SubQuery{
			{Index: 0, Text: "NVDA revenue 2022"},
			{Index: 1, Text: "NVDA revenue 2023"},
		},
		Answer:     "Revenue grew 126% [S1] [S2].",
		Confidence: 0.91,
		State:      models.StateSynthesized,
		CreatedAt:  created,
	}
}

// ==========================
// Record
// ==========================

func TestRecorder_Record(t *testing.T) {
	recorder, mock := createTestRecorder(t)
	answer := createTestAnswer()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO answer_audit")).
		WithArgs(answer.RequestID, answer.Question, "COMPARATIVE_YOY", 0.22,
			`["NVDA revenue 2022","NVDA revenue 2023"]`, answer.Answer, 0.91, false, "SYNTHESIZED",
			sql.NullString{}, created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, recorder.Record(context.Background(), answer, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecorder_RecordFailure(t *testing.T) {
	recorder, mock := createTestRecorder(t)
	answer := &models.SynthesizedAnswer{
		RequestID: "0d8f7e8a-1b2c-4d5e-8f90-a1b2c3d4e5f6",
		Question:  "What was Microsoft's revenue in 2023?",
		State:     models.StateFailed,
		CreatedAt: created,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO answer_audit")).
		WithArgs(answer.RequestID, answer.Question, sql.NullString{}, 0.0, `[]`, "", 0.0, false, "FAILED",
			sql.NullString{String: "RETRIEVAL_FAILED", Valid: true}, created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := recorder.Record(context.Background(), answer, errors.NewRetrievalFailedError(2))

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecorder_RecordDatabaseError(t *testing.T) {
	recorder, mock := createTestRecorder(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO answer_audit")).
		WillReturnError(fmt.Errorf("connection refused"))

	err := recorder.Record(context.Background(), createTestAnswer(), nil)

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeDatabaseInsertFailed))
	assert.True(t, errors.IsRetryableErrorCode(errors.ErrCodeDatabaseInsertFailed))
}

// ==========================
// History
// ==========================

func historyColumns() []string {
	return []string{"request_id", "question", "query_type", "complexity", "sub_queries", "answer",
		"confidence", "degraded", "state", "error_code", "created_at"}
}

func TestRecorder_History(t *testing.T) {
	recorder, mock := createTestRecorder(t)

	rows := sqlmock.NewRows(historyColumns()).
		AddRow("id-2", "q2", "CROSS_COMPANY", 0.4, []byte(`["GOOGL revenue 2023","MSFT revenue 2023"]`),
			"Alphabet led", 0.8, false, "SYNTHESIZED", nil, created.Add(time.Minute)).
		AddRow("id-1", "q1", nil, nil, []byte(`[]`), nil, nil, false, "FAILED", "RETRIEVAL_FAILED", created)

	mock.ExpectQuery(regexp.QuoteMeta("FROM answer_audit")).WithArgs(2).WillReturnRows(rows)

	entries, err := recorder.History(context.Background(), 2)

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "id-2", entries[0].RequestID)
	assert.Equal(t, []string{"GOOGL revenue 2023", "MSFT revenue 2023"}, entries[0].SubQueries)
	assert.Equal(t, "CROSS_COMPANY", entries[0].QueryType)
	assert.Equal(t, "", entries[1].QueryType)
	assert.Equal(t, "RETRIEVAL_FAILED", entries[1].ErrorCode)
	assert.Equal(t, []string{}, entries[1].SubQueries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecorder_HistoryLimits(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		expected  int
	}{
		{"default", 0, 20},
		{"negative", -3, 20},
		{"clamped", 500, 100},
		{"kept", 7, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder, mock := createTestRecorder(t)
			mock.ExpectQuery(regexp.QuoteMeta("FROM answer_audit")).
				WithArgs(tt.expected).
				WillReturnRows(sqlmock.NewRows(historyColumns()))

			entries, err := recorder.History(context.Background(), tt.requested)

			require.NoError(t, err)
			assert.Empty(t, entries)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRecorder_HistoryQueryError(t *testing.T) {
	recorder, mock := createTestRecorder(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM answer_audit")).WillReturnError(fmt.Errorf("relation does not exist"))

	_, err := recorder.History(context.Background(), 5)

	assert.ErrorContains(t, err, "query answer history")
}
