// cmd/finqa-agent/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"finqa-agent/internal/api"
	"finqa-agent/internal/common/aws"
	"finqa-agent/internal/common/cache"
	"finqa-agent/internal/common/camunda"
	"finqa-agent/internal/common/config"
	"finqa-agent/internal/common/database"
	"finqa-agent/internal/common/genai"
	"finqa-agent/internal/common/logger"
	"finqa-agent/internal/common/observability"
	"finqa-agent/internal/common/vectorstore"
	"finqa-agent/internal/orchestrator"
	"finqa-agent/internal/ports"
	"finqa-agent/pkg/registry"

	aq "finqa-agent/internal/workers/ai-conversation/answer-question"
	recordanswer "finqa-agent/internal/workers/data-access/record-answer"
	formatresponse "finqa-agent/internal/workers/infrastructure/format-response"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	bootLog := logger.New("info", "console")

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.NewWithOutput(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting finqa agent...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.String("envFile", config.EnvFile),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Warn("metric exporter unavailable", zap.Error(err))
	}
	if cfg.Tracing.Enabled {
		if err := obs.EnableTracing(observability.TracingConfig{
			ServiceName:    cfg.Tracing.ServiceName,
			Version:        cfg.App.Version,
			JaegerEndpoint: cfg.Tracing.JaegerEndpoint,
			SampleRatio:    cfg.Tracing.SampleRatio,
		}); err != nil {
			zapLog.Fatal("tracing setup failed", zap.Error(err))
		}
	}

	vocab, err := registry.LoadOrDefault(cfg.Vocabulary.Path)
	if err != nil {
		zapLog.Fatal("vocabulary load failed", zap.Error(err), zap.String("path", cfg.Vocabulary.Path))
	}

	// --- GenAI gateway: completion and embeddings ---
	genaiClient, err := genai.NewClient(&genai.Config{
		BaseURL:        cfg.APIs.GenAI.BaseURL,
		APIKey:         cfg.APIs.GenAI.APIKey,
		Model:          cfg.APIs.GenAI.Model,
		EmbeddingModel: cfg.APIs.GenAI.EmbeddingModel,
		Temperature:    cfg.APIs.GenAI.Temperature,
		MaxTokens:      cfg.APIs.GenAI.MaxTokens,
		Timeout:        config.GetDuration(cfg.APIs.GenAI.Timeout),
		CacheSize:      cfg.APIs.GenAI.EmbeddingCacheSz,
	})
	if err != nil {
		zapLog.Fatal("genai client setup failed", zap.Error(err))
	}

	checks := map[string]api.Check{}
	deps := orchestrator.Dependencies{
		Embedder:      genaiClient,
		LLM:           genaiClient,
		Observability: obs,
	}

	// --- Vector store ---
	store, err := openVectorStore(ctx, cfg, genaiClient, checks, zapLog)
	if err != nil {
		zapLog.Fatal("vector store setup failed", zap.Error(err))
	}
	deps.VectorStore = store

	// --- PostgreSQL audit trail with retry ---
	var history api.HistoryReader
	if cfg.Database.Postgres.Enabled {
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()

		if err := pg.Migrate(ctx); err != nil {
			zapLog.Fatal("postgres migration failed", zap.Error(err))
		}
		zapLog.Info("PostgreSQL connected successfully")

		recorder := recordanswer.NewRecorder(recordanswer.LoadConfig(), pg.GetDB(), log)
		deps.Recorder = recorder
		history = recorder
		checks["postgres"] = pg.Ping
	}

	// --- Redis answer cache with retry ---
	if cfg.Database.Redis.Enabled {
		var rdb *database.RedisClient
		err = retryWithBackoff(func() error {
			rdb = database.NewRedis(cfg.Database.Redis)
			return rdb.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()
		zapLog.Info("Redis connected successfully")

		deps.Cache = cache.NewAnswerCache(rdb.GetClient(), config.GetDuration(cfg.Cache.AnswerTTL), cfg.Cache.KeyPrefix)
		checks["redis"] = rdb.Ping
	}

	// --- SNS answer events ---
	if cfg.Events.Enabled {
		publisher, err := aws.NewAnswerPublisher(ctx, cfg.Events.Region, cfg.Events.TopicARN)
		if err != nil {
			zapLog.Fatal("sns publisher setup failed", zap.Error(err))
		}
		deps.Publisher = publisher
		zapLog.Info("Answer events enabled", zap.String("topicArn", cfg.Events.TopicARN))
	}

	agent, err := orchestrator.NewAgent(orchestrator.OptionsFromConfig(cfg.Agent, vocab), deps, log)
	if err != nil {
		zapLog.Fatal("agent setup failed", zap.Error(err))
	}

	formatter := formatresponse.NewFormatter(&formatresponse.Config{
		AppVersion:    cfg.App.Version,
		DefaultFormat: formatresponse.FormatJSON,
		Pretty:        true,
	}, log)

	g, gctx := errgroup.WithContext(ctx)

	// --- Zeebe worker ---
	if cfg.Camunda.Enabled {
		var zeebe *camunda.Client
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				ConnectionTimeout:      10 * time.Second,
				RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer zeebe.Close()
		zapLog.Info("Zeebe client connected successfully")
		checks["zeebe"] = zeebe.HealthCheck

		if wcfg := cfg.Workers[aq.TaskType]; wcfg.Enabled {
			handlerCfg := aq.LoadConfig()
			if wcfg.Timeout > 0 {
				handlerCfg.Timeout = config.GetDuration(wcfg.Timeout)
			}
			maxJobs := wcfg.MaxJobsActive
			if maxJobs == 0 {
				maxJobs = cfg.Camunda.MaxJobsActive
			}

			handler := aq.NewHandler(handlerCfg, agent, formatter, log)
			w := camunda.NewWorker(zeebe.GetClient(), aq.TaskType, maxJobs, handler, log)
			w.Start()
			g.Go(func() error {
				<-gctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				w.Stop(stopCtx)
				return nil
			})
		} else {
			zapLog.Info("worker disabled", zap.String("taskType", aq.TaskType))
		}
	}

	// --- HTTP API ---
	server := api.NewServer(api.Config{
		Address:         cfg.Server.Address,
		ReadTimeout:     config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout:    config.GetDuration(cfg.Server.WriteTimeout),
		ShutdownTimeout: config.GetDuration(cfg.Server.ShutdownTimeout),
	}, agent, history, formatter, checks, log)
	g.Go(func() error {
		return server.Run(gctx)
	})

	zapLog.Info("finqa agent started", zap.String("address", cfg.Server.Address))

	if err := g.Wait(); err != nil {
		zapLog.Error("agent stopped with error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	obs.Shutdown(shutdownCtx)

	zapLog.Info("Shutdown complete")
}

// openVectorStore returns the configured passage store. The memory provider
// is seeded from vector_store.seed_file when one is set.
func openVectorStore(
	ctx context.Context,
	cfg *config.Config,
	embedder ports.Embedder,
	checks map[string]api.Check,
	zapLog *zap.Logger,
) (ports.VectorStore, error) {
	switch cfg.VectorStore.Provider {
	case "memory":
		store := vectorstore.NewMemoryStore()
		if cfg.VectorStore.SeedFile != "" {
			n, err := vectorstore.LoadSeed(ctx, cfg.VectorStore.SeedFile, embedder, store)
			if err != nil {
				return nil, err
			}
			zapLog.Info("Seeded memory vector store", zap.Int("chunks", n), zap.String("file", cfg.VectorStore.SeedFile))
		}
		return store, nil

	case "elasticsearch", "":
		var esClient *database.ElasticsearchClient
		err := retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			return nil, err
		}
		zapLog.Info("Elasticsearch connected successfully")
		checks["elasticsearch"] = esClient.Ping

		return vectorstore.NewElasticsearchStore(&vectorstore.ElasticsearchConfig{
			Index:          cfg.VectorStore.Index,
			EmbeddingField: cfg.VectorStore.EmbeddingField,
			NumCandidates:  cfg.VectorStore.NumCandidates,
		}, esClient.Client), nil

	default:
		return nil, fmt.Errorf("unknown vector store provider %q", cfg.VectorStore.Provider)
	}
}
