package partition

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/yungbote/surveytrends-backend/internal/data/db"
	"github.com/yungbote/surveytrends-backend/internal/domain/survey"
	"github.com/yungbote/surveytrends-backend/internal/platform/logger"
)

// EntityKind names a persisted shape a partition can hold.
type EntityKind string

const (
	EntityAnswerRecord     EntityKind = "answer_record"
	EntityQuestionInstance EntityKind = "question_instance"
)

// Partition is one independent storage slice with its own pool.
type Partition struct {
	Name string
	DB   *gorm.DB
}

// Router maps dataset keys to partitions. It is built once at start-up and
// injected; it holds no business logic.
type Router struct {
	log            *logger.Logger
	partitions     map[string]*Partition
	order          []string
	datasets       map[string][]string
	catalog        string
	defaultDataset string
}

// OpenFunc opens one partition pool; db.Open in production.
type OpenFunc func(db.ConnOptions, *logger.Logger) (*gorm.DB, error)

// Open connects every configured partition. Already-opened pools are closed
// again if a later partition fails.
func Open(cfg Config, log *logger.Logger, open OpenFunc) (*Router, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if open == nil {
		open = db.Open
	}
	parts := make([]*Partition, 0, len(cfg.Partitions))
	for _, pc := range cfg.Partitions {
		gdb, err := open(db.ConnOptions{
			Name:         pc.Name,
			Driver:       pc.Driver,
			DSN:          pc.DSN,
			MaxOpenConns: pc.MaxOpenConns,
			MaxIdleConns: pc.MaxIdleConns,
		}, log)
		if err != nil {
			for _, p := range parts {
				_ = db.Close(p.DB)
			}
			return nil, err
		}
		parts = append(parts, &Partition{Name: pc.Name, DB: gdb})
	}
	return New(log, parts, cfg.Datasets, cfg.Catalog, cfg.DefaultDataset)
}

// New builds a router over already-open partitions.
func New(log *logger.Logger, parts []*Partition, datasets map[string][]string, catalog, defaultDataset string) (*Router, error) {
	r := &Router{
		log:            log.With("service", "PartitionRouter"),
		partitions:     make(map[string]*Partition, len(parts)),
		datasets:       make(map[string][]string, len(datasets)),
		catalog:        catalog,
		defaultDataset: normalizeKey(defaultDataset),
	}
	for _, p := range parts {
		if p == nil || p.DB == nil {
			return nil, fmt.Errorf("partition router: nil partition")
		}
		r.partitions[p.Name] = p
		r.order = append(r.order, p.Name)
	}
	for key, names := range datasets {
		for _, n := range names {
			if _, ok := r.partitions[n]; !ok {
				return nil, fmt.Errorf("partition router: dataset %q references unknown partition %q", key, n)
			}
		}
		r.datasets[normalizeKey(key)] = append([]string(nil), names...)
	}
	if _, ok := r.partitions[catalog]; !ok {
		return nil, fmt.Errorf("partition router: catalog partition %q unknown", catalog)
	}
	return r, nil
}

// PartitionsFor returns the partitions holding respondents of datasetKey, in
// declaration order. An empty key selects the default dataset.
func (r *Router) PartitionsFor(datasetKey string) ([]*Partition, error) {
	key := normalizeKey(datasetKey)
	if key == "" {
		key = r.defaultDataset
	}
	names, ok := r.datasets[key]
	if !ok {
		return nil, survey.NotFound("partition.PartitionsFor", fmt.Sprintf("unknown dataset %q", datasetKey), nil)
	}
	out := make([]*Partition, 0, len(names))
	for _, n := range names {
		out = append(out, r.partitions[n])
	}
	return out, nil
}

// ModelFor returns a query handle scoped to the table of kind inside p.
func (r *Router) ModelFor(kind EntityKind, p *Partition) (*gorm.DB, error) {
	if p == nil || p.DB == nil {
		return nil, errors.New("partition router: nil partition")
	}
	switch kind {
	case EntityAnswerRecord:
		return p.DB.Model(&survey.AnswerRecord{}).Session(&gorm.Session{}), nil
	case EntityQuestionInstance:
		return p.DB.Model(&survey.QuestionInstance{}).Session(&gorm.Session{}), nil
	default:
		return nil, fmt.Errorf("partition router: unknown entity kind %q", kind)
	}
}

// All returns every partition in declaration order.
func (r *Router) All() []*Partition {
	out := make([]*Partition, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.partitions[n])
	}
	return out
}

// Catalog is the partition holding the question index.
func (r *Router) Catalog() *Partition {
	return r.partitions[r.catalog]
}

// Datasets lists the known dataset keys, sorted.
func (r *Router) Datasets() []string {
	out := make([]string, 0, len(r.datasets))
	for k := range r.datasets {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Close releases every partition pool.
func (r *Router) Close() error {
	var errs []error
	for _, n := range r.order {
		if err := db.Close(r.partitions[n].DB); err != nil {
			r.log.Warn("partition close failed", "partition", n, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}
