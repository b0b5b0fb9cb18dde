package questions

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/yungbote/surveytrends-backend/internal/cache"
	repos "github.com/yungbote/surveytrends-backend/internal/data/repos/survey"
	"github.com/yungbote/surveytrends-backend/internal/domain/survey"
	"github.com/yungbote/surveytrends-backend/internal/observability"
	"github.com/yungbote/surveytrends-backend/internal/platform/logger"
)

const snapshotKey = "question_index"

// Snapshot is an immutable copy of the question catalog. It is shared between
// requests and must never be modified after construction.
type Snapshot struct {
	Instances []survey.QuestionInstance `json:"instances"`
	LoadedAt  time.Time                 `json:"loaded_at"`
}

func NewSnapshot(instances []survey.QuestionInstance, loadedAt time.Time) *Snapshot {
	out := make([]survey.QuestionInstance, len(instances))
	copy(out, instances)
	for i := range out {
		out[i].Code = survey.NormalizeCode(out[i].Code)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := survey.CompareRounds(out[i].Round, out[j].Round); c != 0 {
			return c < 0
		}
		return out[i].Code < out[j].Code
	})
	return &Snapshot{Instances: out, LoadedAt: loadedAt}
}

func (s *Snapshot) ByID(id uuid.UUID) (survey.QuestionInstance, bool) {
	for _, q := range s.Instances {
		if q.ID == id {
			return q, true
		}
	}
	return survey.QuestionInstance{}, false
}

// Filter returns the instances keep accepts, in snapshot order.
func (s *Snapshot) Filter(keep func(survey.QuestionInstance) bool) []survey.QuestionInstance {
	var out []survey.QuestionInstance
	for _, q := range s.Instances {
		if keep(q) {
			out = append(out, q)
		}
	}
	return out
}

func (s *Snapshot) ByTheme(theme string) []survey.QuestionInstance {
	return s.Filter(func(q survey.QuestionInstance) bool { return sameTheme(q.Theme, theme) })
}

// Diagnostics lists the themes and rounds where code exists.
func (s *Snapshot) Diagnostics(code string) *survey.Diagnostics {
	code = survey.NormalizeCode(code)
	if code == "" {
		return nil
	}
	themes := map[string]struct{}{}
	rounds := map[string]struct{}{}
	for _, q := range s.Instances {
		if q.Code != code {
			continue
		}
		themes[q.Theme] = struct{}{}
		rounds[q.Round] = struct{}{}
	}
	d := &survey.Diagnostics{Code: code}
	for t := range themes {
		d.Themes = append(d.Themes, t)
	}
	for r := range rounds {
		d.Rounds = append(d.Rounds, r)
	}
	sort.Strings(d.Themes)
	sort.Slice(d.Rounds, func(i, j int) bool { return survey.CompareRounds(d.Rounds[i], d.Rounds[j]) < 0 })
	return d
}

// SnapshotSource is what the resolver and grouper read from.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// Index loads the catalog partition into a cached snapshot.
type Index struct {
	log     *logger.Logger
	repo    repos.QuestionInstanceRepo
	catalog *gorm.DB
	store   cache.Store[*Snapshot]
	flight  singleflight.Group
	now     func() time.Time
	// gen moves on every Invalidate; a load started under an older
	// generation is served to its callers but never cached.
	gen atomic.Uint64
}

func NewIndex(log *logger.Logger, repo repos.QuestionInstanceRepo, catalog *gorm.DB, store cache.Store[*Snapshot]) *Index {
	return &Index{
		log:     log.With("service", "QuestionIndex"),
		repo:    repo,
		catalog: catalog,
		store:   store,
		now:     time.Now,
	}
}

// Snapshot returns the cached catalog, loading it once per TTL window no matter
// how many requests miss at the same time.
func (ix *Index) Snapshot(ctx context.Context) (*Snapshot, error) {
	if snap, ok, err := ix.store.Get(ctx, snapshotKey); err != nil {
		ix.log.Warn("question index cache read failed, loading from catalog", "error", err)
	} else if ok && snap != nil {
		observability.ObserveIndexLookup(true)
		return snap, nil
	}
	observability.ObserveIndexLookup(false)

	v, err, _ := ix.flight.Do(snapshotKey, func() (interface{}, error) {
		// A cancelled first caller must not fail everyone sharing the load.
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		return ix.load(loadCtx, ix.gen.Load())
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

func (ix *Index) load(ctx context.Context, gen uint64) (*Snapshot, error) {
	rows, err := ix.repo.ListAll(ctx, ix.catalog)
	if err != nil {
		return nil, survey.Wrap(survey.CodeBackendFailure, "questions.Index.load", fmt.Errorf("load question catalog: %w", err))
	}
	instances := make([]survey.QuestionInstance, 0, len(rows))
	for _, r := range rows {
		if r != nil {
			instances = append(instances, *r)
		}
	}
	snap := NewSnapshot(instances, ix.now())
	if ix.gen.Load() != gen {
		ix.log.Info("question index invalidated during load, not caching", "instances", len(instances))
		return snap, nil
	}
	if err := ix.store.Put(ctx, snapshotKey, snap); err != nil {
		ix.log.Warn("question index cache write failed", "error", err)
	}
	ix.log.Debug("question index loaded", "instances", len(instances))
	return snap, nil
}

// Invalidate drops the cached snapshot. The import pipeline calls this when it
// finishes writing the catalog.
func (ix *Index) Invalidate(ctx context.Context) error {
	ix.gen.Add(1)
	ix.flight.Forget(snapshotKey)
	if err := ix.store.Invalidate(ctx, snapshotKey); err != nil {
		return fmt.Errorf("invalidate question index: %w", err)
	}
	ix.log.Info("question index invalidated")
	return nil
}

func sameTheme(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
