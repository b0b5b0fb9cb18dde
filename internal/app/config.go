package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/surveytrends-backend/internal/data/partition"
	"github.com/yungbote/surveytrends-backend/internal/data/warehouse"
	"github.com/yungbote/surveytrends-backend/internal/observability"
	"github.com/yungbote/surveytrends-backend/internal/platform/envutil"
	"github.com/yungbote/surveytrends-backend/internal/platform/logger"
	"github.com/yungbote/surveytrends-backend/internal/services/gate"
	"github.com/yungbote/surveytrends-backend/internal/services/responses"
)

type Config struct {
	Port        string
	CORSOrigins []string
	AutoMigrate bool

	Partitions partition.Config
	Resolver   ResolverConfig
	Aggregate  AggregateConfig

	Warehouse        warehouse.Config
	WarehouseTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	IndexCacheTTL time.Duration
	MemoTTL       time.Duration

	Policy gate.Policy
	Otel   observability.OtelConfig
}

type ResolverConfig struct {
	BonusKeywords   map[string]float64 `yaml:"bonus_keywords"`
	SuggestionLimit int                `yaml:"suggestion_limit"`
}

type AggregateConfig struct {
	WeightPattern     string            `yaml:"weight_pattern"`
	DemographicFields []string          `yaml:"demographic_fields"`
	Options           responses.Options `yaml:"-"`
}

// fileSettings are the non-topology sections of the partitions file.
type fileSettings struct {
	Resolver    ResolverConfig  `yaml:"resolver"`
	Aggregation AggregateConfig `yaml:"aggregation"`
}

func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := Config{
		Port:        envutil.String("PORT", "8080", log),
		CORSOrigins: envutil.List("CORS_ALLOWED_ORIGINS", nil, log),
		AutoMigrate: envutil.Bool("DATABASE_AUTO_MIGRATE", true, log),

		WarehouseTimeout: envutil.Duration("WAREHOUSE_QUERY_TIMEOUT", 2*time.Minute, log),
		Warehouse: warehouse.Config{
			DSN:      envutil.String("WAREHOUSE_DSN", "", log),
			Table:    envutil.String("WAREHOUSE_TABLE", warehouse.DefaultTable, log),
			MaxConns: int32(envutil.Int("WAREHOUSE_MAX_CONNS", 8, log)),
		},

		RedisAddr:     envutil.String("REDIS_ADDR", "", log),
		RedisPassword: envutil.String("REDIS_PASSWORD", "", log),
		RedisDB:       envutil.Int("REDIS_DB", 0, log),
		IndexCacheTTL: envutil.Duration("QUESTION_INDEX_CACHE_TTL", 10*time.Minute, log),
		MemoTTL:       envutil.Duration("RESOLVE_MEMO_TTL", time.Hour, log),

		Otel: observability.OtelConfig{
			Enabled:     envutil.Bool("OTEL_ENABLED", false, log),
			ServiceName: envutil.String("OTEL_SERVICE_NAME", "surveytrends", log),
			Environment: envutil.String("APP_ENV", "development", log),
			Version:     envutil.String("APP_VERSION", "", log),
			Endpoint:    envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", "", log),
			Headers:     observability.ParseHeaders(envutil.String("OTEL_EXPORTER_OTLP_HEADERS", "", log)),
			Insecure:    envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", false, log),
			SampleRatio: envutil.Float("OTEL_SAMPLE_RATIO", 0.1, log),
		},
	}

	opts := responses.DefaultOptions()
	opts.QueryTimeout = envutil.Duration("AGGREGATE_QUERY_TIMEOUT", opts.QueryTimeout, log)
	opts.RetryAttempts = envutil.Int("PARTITION_RETRY_ATTEMPTS", opts.RetryAttempts, log)
	opts.RetryInitial = envutil.Duration("PARTITION_RETRY_INITIAL", opts.RetryInitial, log)
	opts.Strict = envutil.Bool("AGGREGATE_STRICT_PARTITIONS", opts.Strict, log)
	opts.Concurrency = envutil.Int("AGGREGATE_PARTITION_CONCURRENCY", 0, log)

	mode, err := gate.ParseMode(envutil.String("BACKEND_MODE", string(gate.ModeDefault), log))
	if err != nil {
		return Config{}, err
	}
	cfg.Policy = gate.Policy{
		Mode:        mode,
		Fallback:    envutil.Bool("BACKEND_FALLBACK", true, log),
		Speculative: envutil.Bool("BACKEND_SPECULATIVE", false, log),
	}

	if path := envutil.String("PARTITIONS_FILE", "", log); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read partitions file: %w", err)
		}
		if cfg.Partitions, err = partition.ParseConfig(raw); err != nil {
			return Config{}, err
		}
		var fs fileSettings
		if err := yaml.Unmarshal(raw, &fs); err != nil {
			return Config{}, fmt.Errorf("parse settings in partitions file: %w", err)
		}
		cfg.Resolver = fs.Resolver
		cfg.Aggregate = fs.Aggregation
	} else {
		driver := envutil.String("DATABASE_DRIVER", "sqlite", log)
		dsn := envutil.String("DATABASE_DSN", "file:surveytrends.db?_busy_timeout=5000", log)
		cfg.Partitions = partition.SingleConfig(driver, dsn)
	}

	if p := envutil.String("AGGREGATE_WEIGHT_PATTERN", "", log); p != "" {
		cfg.Aggregate.WeightPattern = p
	}
	if fields := envutil.List("AGGREGATE_DEMOGRAPHIC_FIELDS", nil, log); fields != nil {
		cfg.Aggregate.DemographicFields = fields
	}
	cfg.Aggregate.Options = opts

	if strings.TrimSpace(cfg.Port) == "" {
		cfg.Port = "8080"
	}
	return cfg, nil
}
