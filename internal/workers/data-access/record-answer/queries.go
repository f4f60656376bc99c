// internal/workers/data-access/record-answer/queries.go
package recordanswer

const insertAnswerSQL = `INSERT INTO answer_audit
	(request_id, question, query_type, complexity, sub_queries, answer, confidence, degraded, state, error_code, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (request_id) DO NOTHING`

const selectHistorySQL = `SELECT request_id, question, query_type, complexity, sub_queries, answer, confidence, degraded, state, error_code, created_at
	FROM answer_audit
	ORDER BY created_at DESC
	LIMIT $1`
