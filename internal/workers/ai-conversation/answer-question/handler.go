// internal/workers/ai-conversation/answer-question/handler.go
package answerquestion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"finqa-agent/internal/common/errors"
	"finqa-agent/internal/common/logger"
	"finqa-agent/internal/common/metrics"
	"finqa-agent/internal/models"
	formatresponse "finqa-agent/internal/workers/infrastructure/format-response"
)

const (
	TaskType = "answer-financial-question"
)

// Answerer is satisfied by *orchestrator.Agent.
type Answerer interface {
	Answer(ctx context.Context, question string, hints *models.Hints) (*models.SynthesizedAnswer, error)
}

type Handler struct {
	config       *Config
	answerer     Answerer
	formatter    *formatresponse.Formatter
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, answerer Answerer, formatter *formatresponse.Formatter, log logger.Logger) *Handler {
	log = log.With(map[string]interface{}{
		"taskType": TaskType,
	})
	return &Handler{
		config:       config,
		answerer:     answerer,
		formatter:    formatter,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()
	defer func() {
		metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	}()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return h.failJob(client, job, errors.NewQuestionValidationError(fmt.Sprintf("parse input: %v", err)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		return h.failJob(client, job, err)
	}

	return h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	format := h.config.Format
	if strings.TrimSpace(input.Format) != "" {
		f, ok := formatresponse.ParseFormat(input.Format)
		if !ok {
			return nil, errors.NewQuestionValidationError("unsupported format: " + input.Format)
		}
		format = f
	}

	answer, err := h.answerer.Answer(ctx, input.Question, input.Hints)
	if err != nil {
		return nil, err
	}

	rendered, err := h.formatter.Format(answer, format, false)
	if err != nil {
		return nil, err
	}

	h.logger.Info("question answered", map[string]interface{}{
		"requestId":  answer.RequestID,
		"queryType":  answer.QueryType,
		"confidence": answer.Confidence,
		"degraded":   answer.Degraded,
	})

	return &Output{
		Response:        h.formatter.BuildResponse(answer),
		FormattedAnswer: string(rendered.Body),
		Confidence:      answer.Confidence,
		Degraded:        answer.Degraded,
	}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return h.failJob(client, job, errors.NewJobBrokerError("complete", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.BrokerTimeout)
	defer cancel()
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.ErrCodeJobBrokerFailed)).Inc()
		return errors.NewJobBrokerError("complete", err)
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	h.logger.Info("job completed successfully", map[string]interface{}{
		"jobKey": job.Key,
	})
	return nil
}

// failJob reports err to the broker; retryable codes are retried by Zeebe,
// everything else is thrown as a BPMN error.
func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error) error {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.BrokerTimeout)
	defer cancel()
	h.errorHandler.HandleJobError(ctx, client, job, err)
	return err
}
