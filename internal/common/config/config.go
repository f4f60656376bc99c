// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App         AppConfig               `mapstructure:"app"`
	Server      ServerConfig            `mapstructure:"server"`
	Camunda     CamundaConfig           `mapstructure:"camunda"`
	Database    DatabaseConfig          `mapstructure:"database"`
	Workers     map[string]WorkerConfig `mapstructure:"workers"`
	APIs        APIsConfig              `mapstructure:"apis"`
	Agent       AgentConfig             `mapstructure:"agent"`
	Cache       CacheConfig             `mapstructure:"cache"`
	VectorStore VectorStoreConfig       `mapstructure:"vector_store"`
	Events      EventsConfig            `mapstructure:"events"`
	Tracing     TracingConfig           `mapstructure:"tracing"`
	Logging     LoggingConfig           `mapstructure:"logging"`
	Vocabulary  VocabularyConfig        `mapstructure:"vocabulary"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
	URL        string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Specific Configuration Sections ---

// APIsConfig holds settings for the GenAI gateway serving completions and embeddings.
type APIsConfig struct {
	GenAI struct {
		BaseURL          string  `mapstructure:"base_url"`
		APIKey           string  `mapstructure:"api_key"`
		Model            string  `mapstructure:"model"`
		EmbeddingModel   string  `mapstructure:"embedding_model"`
		Temperature      float64 `mapstructure:"temperature"`
		MaxTokens        int     `mapstructure:"max_tokens"`
		Timeout          int     `mapstructure:"timeout"` // milliseconds
		EmbeddingCacheSz int     `mapstructure:"embedding_cache_size"`
	} `mapstructure:"genai"`
}

// AgentConfig tunes the answering pipeline. Zero values fall back to defaults.
type AgentConfig struct {
	TopK                        int     `mapstructure:"top_k"`
	MaxConcurrency              int     `mapstructure:"max_concurrency"`
	MaxRetries                  int     `mapstructure:"max_retries"`
	CallTimeout                 int     `mapstructure:"call_timeout"`    // milliseconds
	RequestTimeout              int     `mapstructure:"request_timeout"` // milliseconds
	ComplexityThreshold         float64 `mapstructure:"complexity_threshold"`
	ModelDecompositionThreshold float64 `mapstructure:"model_decomposition_threshold"`
	DefaultYear                 int     `mapstructure:"default_year"`
	MaxSubQueries               int     `mapstructure:"max_sub_queries"`
	ContextPassages             int     `mapstructure:"context_passages"`
	ExcerptChars                int     `mapstructure:"excerpt_chars"`
	MaxCitations                int     `mapstructure:"max_citations"`
	CoverageWeight              float64 `mapstructure:"coverage_weight"`
	RelevanceWeight             float64 `mapstructure:"relevance_weight"`
	CertaintyWeight             float64 `mapstructure:"certainty_weight"`
	DroppedCitationPenalty      float64 `mapstructure:"dropped_citation_penalty"`
	FallbackPenalty             float64 `mapstructure:"fallback_penalty"`
	// ValidateQuestions rejects short, long and non-financial questions
	// before the pipeline runs.
	ValidateQuestions bool `mapstructure:"validate_questions"`
}

type CacheConfig struct {
	AnswerTTL int    `mapstructure:"answer_ttl"` // milliseconds
	KeyPrefix string `mapstructure:"key_prefix"`
}

// VectorStoreConfig selects the passage store: "elasticsearch" or "memory".
type VectorStoreConfig struct {
	Provider       string `mapstructure:"provider"`
	Index          string `mapstructure:"index"`
	EmbeddingField string `mapstructure:"embedding_field"`
	NumCandidates  int    `mapstructure:"num_candidates"`
	SeedFile       string `mapstructure:"seed_file"`
}

// EventsConfig holds settings for answer events published to SNS.
type EventsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Region   string `mapstructure:"region"`
	TopicARN string `mapstructure:"topic_arn"`
}

type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	ServiceName    string  `mapstructure:"service_name"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type VocabularyConfig struct {
	Path string `mapstructure:"path"`
}
