package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/surveytrends-backend/internal/cache"
	"github.com/yungbote/surveytrends-backend/internal/data/partition"
	"github.com/yungbote/surveytrends-backend/internal/data/warehouse"
	"github.com/yungbote/surveytrends-backend/internal/platform/logger"
	"github.com/yungbote/surveytrends-backend/internal/services/analytics"
	"github.com/yungbote/surveytrends-backend/internal/services/gate"
	"github.com/yungbote/surveytrends-backend/internal/services/questions"
	"github.com/yungbote/surveytrends-backend/internal/services/responses"
)

type Services struct {
	Index      *questions.Index
	Resolver   *questions.Resolver
	Grouper    *questions.Grouper
	Partitions *responses.PartitionAggregator
	Warehouse  *responses.WarehouseBackend
	Gate       *gate.Gate
	Analytics  *analytics.Service
}

// Caches are the index and memo stores, shared through redis when one is
// configured so an invalidation reaches every API process.
type Caches struct {
	Index cache.Store[*questions.Snapshot]
	Memo  cache.Store[questions.Resolution]
}

func wireCaches(ctx context.Context, log *logger.Logger, cfg Config) (Caches, *goredis.Client, error) {
	if cfg.RedisAddr == "" {
		log.Info("Using in-process caches (REDIS_ADDR not set)")
		return Caches{
			Index: cache.NewMemory[*questions.Snapshot](cfg.IndexCacheTTL),
			Memo:  cache.NewMemory[questions.Resolution](cfg.MemoTTL),
		}, nil, nil
	}
	rdb, err := cache.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return Caches{}, nil, fmt.Errorf("init redis: %w", err)
	}
	idx, err := cache.NewRedis[*questions.Snapshot](log, rdb, "surveytrends:index", cfg.IndexCacheTTL)
	if err != nil {
		_ = rdb.Close()
		return Caches{}, nil, err
	}
	memo, err := cache.NewRedis[questions.Resolution](log, rdb, "surveytrends:resolve", cfg.MemoTTL)
	if err != nil {
		_ = rdb.Close()
		return Caches{}, nil, err
	}
	log.Info("Using redis caches", "addr", cfg.RedisAddr)
	return Caches{Index: idx, Memo: memo}, rdb, nil
}

func wireServices(log *logger.Logger, cfg Config, router *partition.Router, repos Repos, caches Caches, wh *warehouse.Store) (Services, error) {
	log.Info("Wiring services...")

	extract, err := responses.NewExtractor(cfg.Aggregate.WeightPattern, cfg.Aggregate.DemographicFields)
	if err != nil {
		return Services{}, err
	}

	bonus := cfg.Resolver.BonusKeywords
	if len(bonus) == 0 {
		bonus = questions.DefaultBonusKeywords
	}

	index := questions.NewIndex(log, repos.QuestionInstance, router.Catalog().DB, caches.Index)
	resolver := questions.NewResolver(log, index, questions.NewKeywordStrategy(bonus),
		questions.WithMemo(caches.Memo),
		questions.WithSuggestionLimit(cfg.Resolver.SuggestionLimit),
	)
	grouper := questions.NewGrouper(log, index)
	partitions := responses.NewPartitionAggregator(log, router, repos.AnswerRecord, extract, cfg.Aggregate.Options)
	g := gate.New(log)

	out := Services{
		Index:      index,
		Resolver:   resolver,
		Grouper:    grouper,
		Partitions: partitions,
		Gate:       g,
	}

	deps := analytics.Deps{
		Resolver: resolver,
		Grouper:  grouper,
		Index:    index,
		Gate:     g,
		Primary:  partitions,
		Policy:   cfg.Policy,
	}
	// A nil *WarehouseBackend must not end up inside the interface.
	if wh != nil {
		out.Warehouse = responses.NewWarehouseBackend(log, wh, extract, cfg.WarehouseTimeout)
		deps.Secondary = out.Warehouse
	} else if cfg.Policy.Mode == gate.ModeActive {
		log.Warn("BACKEND_MODE=active without WAREHOUSE_DSN; every request will fall back to partitions")
	}
	out.Analytics = analytics.New(log, deps)
	return out, nil
}
