// internal/workers/retrieval/execute-retrieval/executor_test.go
package executeretrieval

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"finqa-agent/internal/common/errors"
	"finqa-agent/internal/common/logger"
	"finqa-agent/internal/models"
	"finqa-agent/internal/ports/portstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passage(id, company string, year int, score float64, text string) models.Passage {
	return models.Passage{
		ID:     id,
		Text:   text,
		Score:  score,
		Source: models.SourceMetadata{Company: company, Year: year, Section: "mdna"},
	}
}

func corpus() []models.Passage {
	return []models.Passage{
		passage("NVDA_2022_mdna_0", "NVDA", 2022, 0.71, "Revenue for fiscal 2022 was $26.9 billion"),
		passage("NVDA_2023_mdna_1", "NVDA", 2023, 0.64, "Gaming revenue declined"),
		passage("NVDA_2023_mdna_0", "NVDA", 2023, 0.83, "Data Center revenue was a record"),
		passage("MSFT_2023_mdna_0", "MSFT", 2023, 0.77, "Microsoft Cloud revenue grew"),
	}
}

func subQuery(i int, text, company string, year int, strategy models.StrategyKind) models.SubQuery {
	filter := models.MetadataFilter{}
	if company != "" {
		filter[models.FilterCompany] = company
	}
	if year > 0 {
		filter[models.FilterYear] = year
	}
	return models.SubQuery{Index: i, Text: text, Company: company, Year: year, Strategy: strategy, Filter: filter}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestExecute_OrderedAndSorted(t *testing.T) {
	store := &portstest.Store{Passages: corpus()}
	embedder := &portstest.Embedder{}
	executor := NewExecutor(LoadConfig(), embedder, store, logger.NewTestLogger(t))

	results := executor.Execute(context.Background(), []models.SubQuery{
		subQuery(0, "NVDA revenue 2022", "", 2022, models.StrategyTemporal),
		subQuery(1, "NVDA revenue 2023", "", 2023, models.StrategyTemporal),
	})

	require.Len(t, results, 2)
	assert.Equal(t, 0, results[0].SubQuery.Index)
	assert.Equal(t, models.RetrievalOK, results[0].Status)
	assert.Len(t, results[0].Passages, 1)

	require.Len(t, results[1].Passages, 3)
	assert.Equal(t, "NVDA_2023_mdna_0", results[1].Passages[0].ID)
	assert.Equal(t, "MSFT_2023_mdna_0", results[1].Passages[1].ID)
	assert.Equal(t, "NVDA_2023_mdna_1", results[1].Passages[2].ID)

	for _, call := range store.Calls() {
		assert.Equal(t, 5, call.TopK)
	}
	assert.ElementsMatch(t, []string{"NVDA revenue 2022", "NVDA revenue 2023"}, embedder.Texts())
}

func TestExecute_EmptyResult(t *testing.T) {
	store := &portstest.Store{Passages: corpus()}
	executor := NewExecutor(LoadConfig(), &portstest.Embedder{}, store, logger.NewTestLogger(t))

	results := executor.Execute(context.Background(), []models.SubQuery{
		subQuery(0, "GOOGL revenue 2023", "GOOGL", 2023, models.StrategyCompanyFocused),
	})

	require.Len(t, results, 1)
	assert.Equal(t, models.RetrievalEmpty, results[0].Status)
	assert.Empty(t, results[0].Passages)
	assert.NoError(t, results[0].Err)
}

func TestExecute_PartialFailureIsIsolated(t *testing.T) {
	store := &portstest.Store{Passages: corpus()}
	embedder := &portstest.Embedder{Fail: map[string]error{"GOOGL": fmt.Errorf("embedding backend down")}}
	executor := NewExecutor(LoadConfig(), embedder, store, logger.NewTestLogger(t))

	results := executor.Execute(context.Background(), []models.SubQuery{
		subQuery(0, "NVDA revenue 2023", "NVDA", 2023, models.StrategyCompanyFocused),
		subQuery(1, "GOOGL revenue 2023", "GOOGL", 2023, models.StrategyCompanyFocused),
		subQuery(2, "MSFT revenue 2023", "MSFT", 2023, models.StrategyCompanyFocused),
	})

	require.Len(t, results, 3)
	assert.Equal(t, models.RetrievalOK, results[0].Status)
	assert.Equal(t, models.RetrievalFailed, results[1].Status)
	assert.True(t, errors.HasCode(results[1].Err, errors.ErrCodeEmbeddingFailed))
	assert.Contains(t, results[1].Error, "embedding backend down")
	assert.Equal(t, models.RetrievalOK, results[2].Status)
}

func TestExecute_StoreFailureKeepsStandardError(t *testing.T) {
	store := &portstest.Store{Err: errors.NewIndexNotFoundError("financial_filings")}
	executor := NewExecutor(LoadConfig(), &portstest.Embedder{}, store, logger.NewTestLogger(t))

	results := executor.Execute(context.Background(), []models.SubQuery{
		subQuery(0, "MSFT revenue 2023", "MSFT", 2023, models.StrategyHybrid),
	})

	assert.Equal(t, models.RetrievalFailed, results[0].Status)
	assert.True(t, errors.HasCode(results[0].Err, errors.ErrCodeIndexNotFound))
}

func TestExecute_StoreFailureIsWrapped(t *testing.T) {
	store := &portstest.Store{Err: fmt.Errorf("connection reset")}
	executor := NewExecutor(LoadConfig(), &portstest.Embedder{}, store, logger.NewTestLogger(t))

	results := executor.Execute(context.Background(), []models.SubQuery{
		subQuery(0, "MSFT revenue 2023", "MSFT", 2023, models.StrategyHybrid),
	})

	assert.True(t, errors.HasCode(results[0].Err, errors.ErrCodeStoreFailed))
}

func TestExecute_HybridKeywordBoost(t *testing.T) {
	passages := []models.Passage{
		passage("MSFT_2023_risk_0", "MSFT", 2023, 0.85, "Competition in cloud services is intense"),
		passage("MSFT_2023_mdna_0", "MSFT", 2023, 0.80, "Total revenue and operating income increased"),
	}
	store := &portstest.Store{Passages: passages}
	executor := NewExecutor(LoadConfig(), &portstest.Embedder{}, store, logger.NewTestLogger(t))

	results := executor.Execute(context.Background(), []models.SubQuery{
		subQuery(0, "MSFT revenue and operating income 2023", "MSFT", 2023, models.StrategyHybrid),
		subQuery(1, "MSFT revenue and operating income 2023", "MSFT", 2023, models.StrategyCompanyFocused),
	})

	hybrid := results[0].Passages
	require.Len(t, hybrid, 2)
	assert.Equal(t, "MSFT_2023_mdna_0", hybrid[0].ID)
	assert.InDelta(t, 0.80*1.2, hybrid[0].Score, 1e-9)

	plain := results[1].Passages
	assert.Equal(t, "MSFT_2023_risk_0", plain[0].ID, "only HYBRID is boosted")
	assert.Equal(t, 0.80, passages[1].Score, "store passages are not mutated")
}

// ==========================
// Concurrency
// ==========================

func TestExecute_BoundedConcurrency(t *testing.T) {
	var inFlight, peak int32
	store := &portstest.Store{Fn: func(ctx context.Context, _ models.MetadataFilter, _ int) ([]models.Passage, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return []models.Passage{passage("p", "NVDA", 2023, 0.5, "revenue")}, nil
	}}

	config := LoadConfig()
	config.MaxConcurrency = 2
	executor := NewExecutor(config, &portstest.Embedder{}, store, logger.NewTestLogger(t))

	var sqs []models.SubQuery
	for i := 0; i < 6; i++ {
		sqs = append(sqs, subQuery(i, fmt.Sprintf("query %d", i), "", 0, models.StrategySemantic))
	}
	results := executor.Execute(context.Background(), sqs)

	require.Len(t, results, 6)
	for i, r := range results {
		assert.Equal(t, i, r.SubQuery.Index)
		assert.Equal(t, models.RetrievalOK, r.Status)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestExecute_CancelledContextFailsEverySubQuery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	executor := NewExecutor(LoadConfig(), &portstest.Embedder{}, &portstest.Store{Passages: corpus()}, logger.NewTestLogger(t))

	results := executor.Execute(ctx, []models.SubQuery{
		subQuery(0, "a", "", 0, models.StrategySemantic),
		subQuery(1, "b", "", 0, models.StrategySemantic),
	})

	for _, r := range results {
		assert.Equal(t, models.RetrievalFailed, r.Status)
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestExecute_NoSubQueries(t *testing.T) {
	executor := NewExecutor(LoadConfig(), &portstest.Embedder{}, &portstest.Store{}, logger.NewTestLogger(t))
	assert.Empty(t, executor.Execute(context.Background(), nil))
}

func TestKeywordMatches(t *testing.T) {
	assert.Equal(t, 2, KeywordMatches("Revenue and profit", "profit rose as revenue grew"))
	assert.Equal(t, 0, KeywordMatches("headcount", "revenue"))
	assert.Equal(t, 1, KeywordMatches("operating margin", "Operating margin was 42%"))
}
