// internal/workers/retrieval/execute-retrieval/executor.go
package executeretrieval

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"finqa-agent/internal/common/errors"
	"finqa-agent/internal/common/logger"
	"finqa-agent/internal/common/metrics"
	"finqa-agent/internal/common/vectorstore"
	"finqa-agent/internal/models"
	"finqa-agent/internal/ports"
)

const Stage = "execute-retrieval"

var financialKeywords = []string{"revenue", "income", "profit", "margin", "earnings", "sales"}

type Executor struct {
	config   *Config
	embedder ports.Embedder
	store    ports.VectorStore
	logger   logger.Logger
}

func NewExecutor(config *Config, embedder ports.Embedder, store ports.VectorStore, log logger.Logger) *Executor {
	return &Executor{
		config:   config,
		embedder: embedder,
		store:    store,
		logger:   log.With(map[string]interface{}{"stage": Stage}),
	}
}

// Execute returns one result per sub-query in sub-query order. A failing
// sub-query never affects its siblings.
func (e *Executor) Execute(ctx context.Context, subQueries []models.SubQuery) []models.RetrievalResult {
	results := make([]models.RetrievalResult, len(subQueries))

	var g errgroup.Group
	if e.config.MaxConcurrency > 0 {
		g.SetLimit(e.config.MaxConcurrency)
	}

	for i := range subQueries {
		i := i
		g.Go(func() error {
			results[i] = e.retrieve(ctx, subQueries[i])
			return nil
		})
	}
	_ = g.Wait()

	counts := models.CountByStatus(results)
	e.logger.Info("retrieval completed", map[string]interface{}{
		"subQueries": len(subQueries),
		"ok":         counts[models.RetrievalOK],
		"empty":      counts[models.RetrievalEmpty],
		"failed":     counts[models.RetrievalFailed],
	})
	return results
}

func (e *Executor) retrieve(ctx context.Context, sq models.SubQuery) models.RetrievalResult {
	result := models.RetrievalResult{SubQuery: sq}
	strategy := string(sq.Strategy)
	if strategy == "" {
		strategy = string(models.StrategySemantic)
	}

	fail := func(err error) models.RetrievalResult {
		result.Status = models.RetrievalFailed
		result.Err = err
		result.Error = err.Error()
		metrics.RetrievalOutcomes.WithLabelValues(strategy, string(result.Status)).Inc()
		e.logger.Warn("sub-query retrieval failed", map[string]interface{}{
			"index": sq.Index,
			"text":  sq.Text,
			"error": err.Error(),
		})
		return result
	}

	vector, err := e.embedder.Embed(ctx, sq.Text, ports.EmbedModeQuery)
	if err != nil {
		if !isStandard(err) {
			err = errors.NewEmbeddingError(err)
		}
		return fail(err)
	}

	passages, err := e.store.Search(ctx, vector, sq.Filter, e.config.TopK)
	if err != nil {
		if !isStandard(err) {
			err = errors.NewStoreError(err)
		}
		return fail(err)
	}

	passages = append([]models.Passage(nil), passages...)
	if sq.Strategy == models.StrategyHybrid {
		e.boost(sq.Text, passages)
	}
	vectorstore.SortPassages(passages)
	if len(passages) > e.config.TopK && e.config.TopK > 0 {
		passages = passages[:e.config.TopK]
	}

	result.Passages = passages
	if len(passages) == 0 {
		result.Status = models.RetrievalEmpty
	} else {
		result.Status = models.RetrievalOK
	}
	metrics.RetrievalOutcomes.WithLabelValues(strategy, string(result.Status)).Inc()

	e.logger.Debug("sub-query retrieved", map[string]interface{}{
		"index":    sq.Index,
		"strategy": strategy,
		"filter":   sq.Filter.Key(),
		"passages": len(passages),
	})
	return result
}

// boost rescales scores by the financial keywords the query and passage share.
func (e *Executor) boost(query string, passages []models.Passage) {
	for i := range passages {
		if n := KeywordMatches(query, passages[i].Text); n > 0 {
			passages[i].Score *= 1 + e.config.KeywordBoost*float64(n)
		}
	}
}

// KeywordMatches counts financial keywords present in both texts.
func KeywordMatches(query, text string) int {
	q, t := strings.ToLower(query), strings.ToLower(text)
	n := 0
	for _, kw := range financialKeywords {
		if strings.Contains(q, kw) && strings.Contains(t, kw) {
			n++
		}
	}
	return n
}

func isStandard(err error) bool {
	_, ok := errors.AsStandardError(err)
	return ok
}
