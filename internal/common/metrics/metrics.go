// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	QuestionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finqa_questions_total",
			Help: "Questions answered, by query type and terminal state",
		},
		[]string{"query_type", "state"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finqa_stage_duration_seconds",
			Help:    "Duration of each pipeline stage",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)

	RetrievalOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finqa_retrieval_outcomes_total",
			Help: "Sub-query retrieval outcomes by strategy and status",
		},
		[]string{"strategy", "status"},
	)

	Fallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finqa_fallbacks_total",
			Help: "Fallbacks taken by the orchestrator",
		},
		[]string{"stage"},
	)

	CollaboratorRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finqa_collaborator_retries_total",
			Help: "Retries issued against embedder, vector store and LLM",
		},
		[]string{"collaborator"},
	)

	AnswerConfidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "finqa_answer_confidence",
			Help:    "Confidence of synthesized answers",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	AnswerCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finqa_answer_cache_lookups_total",
			Help: "Answer cache lookups by result",
		},
		[]string{"result"},
	)
)
