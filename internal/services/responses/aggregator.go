package responses

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/surveytrends-backend/internal/data/partition"
	repos "github.com/yungbote/surveytrends-backend/internal/data/repos/survey"
	"github.com/yungbote/surveytrends-backend/internal/domain/survey"
	"github.com/yungbote/surveytrends-backend/internal/observability"
	"github.com/yungbote/surveytrends-backend/internal/platform/ctxutil"
	"github.com/yungbote/surveytrends-backend/internal/platform/logger"
)

// Request is one logical aggregation.
type Request struct {
	Dataset      string
	Set          *survey.ResolvedQuestionSet
	Demographics []string
}

// Result is the finalized output. Partial is set when a partition was skipped
// after exhausting its retries.
type Result struct {
	Periods          []survey.PeriodBucket `json:"periods"`
	Partial          bool                  `json:"partial"`
	FailedPartitions []string              `json:"failed_partitions,omitempty"`
}

// Backend is anything able to turn a request into period buckets.
type Backend interface {
	Name() string
	Aggregate(ctx context.Context, req Request) (Result, error)
}

type Options struct {
	// QueryTimeout bounds every streamed query. Zero disables the bound.
	QueryTimeout time.Duration
	// RetryAttempts is the number of tries per partition, including the first.
	RetryAttempts int
	RetryInitial  time.Duration
	// Strict fails the request when any partition fails instead of returning
	// a partial result.
	Strict      bool
	Concurrency int
}

func DefaultOptions() Options {
	return Options{
		QueryTimeout:  2 * time.Minute,
		RetryAttempts: 3,
		RetryInitial:  200 * time.Millisecond,
		Strict:        true,
	}
}

// PartitionAggregator streams answer records from every partition of a
// dataset and folds them locally.
type PartitionAggregator struct {
	log     *logger.Logger
	router  *partition.Router
	repo    repos.AnswerRecordRepo
	extract *Extractor
	opts    Options
}

func NewPartitionAggregator(log *logger.Logger, router *partition.Router, repo repos.AnswerRecordRepo, extract *Extractor, opts Options) *PartitionAggregator {
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 1
	}
	if opts.RetryInitial <= 0 {
		opts.RetryInitial = 200 * time.Millisecond
	}
	return &PartitionAggregator{
		log:     log.With("service", "PartitionAggregator"),
		router:  router,
		repo:    repo,
		extract: extract,
		opts:    opts,
	}
}

func (a *PartitionAggregator) Name() string { return "partitions" }

func (a *PartitionAggregator) Aggregate(ctx context.Context, req Request) (res Result, err error) {
	const op = "responses.Aggregate"
	start := time.Now()
	ctx, span := observability.Tracer().Start(ctx, op)
	defer func() {
		observability.ObserveAggregate(a.Name(), err, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if req.Set == nil {
		return Result{}, survey.NewError(survey.CodeValidation, op, "no resolved question set", nil)
	}
	if err := req.Set.Validate(); err != nil {
		return Result{}, err
	}
	parts, err := a.router.PartitionsFor(req.Dataset)
	if err != nil {
		return Result{}, err
	}
	fields := a.extract.Fields(req.Demographics)
	span.SetAttributes(
		attribute.String("aggregate.dataset", req.Dataset),
		attribute.String("aggregate.mode", string(req.Set.Mode)),
		attribute.Int("aggregate.partitions", len(parts)),
		attribute.Int("aggregate.members", len(req.Set.Members)),
	)

	accs := make([]*Accumulator, len(parts))
	failures := make([]error, len(parts))
	g, gctx := errgroup.WithContext(ctx)
	if a.opts.Concurrency > 0 {
		g.SetLimit(a.opts.Concurrency)
	}
	for i, p := range parts {
		g.Go(func() error {
			acc, err := a.aggregatePartition(gctx, p, req.Set, fields)
			if err == nil {
				accs[i] = acc
				return nil
			}
			observability.ObservePartitionFailure(p.Name)
			a.log.Warn("partition aggregation failed", append([]any{"partition", p.Name, "error", err}, ctxutil.LogFields(ctx)...)...)
			if a.opts.Strict || survey.IsCode(err, survey.CodeTimeout) {
				return err
			}
			failures[i] = err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	total := NewAccumulator(req.Set.Mode)
	var failed []string
	var firstErr error
	for i, acc := range accs {
		if failures[i] != nil {
			failed = append(failed, parts[i].Name)
			if firstErr == nil {
				firstErr = failures[i]
			}
			continue
		}
		total.Merge(acc)
	}
	if len(parts) > 0 && len(failed) == len(parts) {
		return Result{}, firstErr
	}
	if len(failed) > 0 {
		a.log.Warn("returning partial aggregation", append([]any{"failed_partitions", failed}, ctxutil.LogFields(ctx)...)...)
	}
	return Result{
		Periods:          Finalize(total.Buckets()),
		Partial:          len(failed) > 0,
		FailedPartitions: failed,
	}, nil
}

// aggregatePartition folds one partition with retries. Each attempt starts
// from an empty accumulator so a retried stream never double counts.
func (a *PartitionAggregator) aggregatePartition(ctx context.Context, p *partition.Partition, set *survey.ResolvedQuestionSet, fields []string) (*Accumulator, error) {
	ctx, span := observability.Tracer().Start(ctx, "responses.AggregatePartition")
	defer span.End()
	span.SetAttributes(attribute.String("partition", p.Name))

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = a.opts.RetryInitial

	attempt := 0
	acc, err := backoff.Retry(ctx, func() (*Accumulator, error) {
		attempt++
		acc, err := a.streamPartition(ctx, p, set, fields)
		if err == nil {
			return acc, nil
		}
		if survey.CodeOf(err) != survey.CodeBackendFailure || ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	},
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(uint(a.opts.RetryAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			a.log.Warn("retrying partition", "partition", p.Name, "attempt", attempt, "next_in", next, "error", err)
		}),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !survey.IsCode(err, survey.CodeTimeout) {
			err = survey.NewError(survey.CodeTimeout, "responses.AggregatePartition", fmt.Sprintf("partition %s timed out", p.Name), err)
		}
		span.RecordError(err)
		return nil, err
	}
	return acc, nil
}

func (a *PartitionAggregator) streamPartition(ctx context.Context, p *partition.Partition, set *survey.ResolvedQuestionSet, fields []string) (*Accumulator, error) {
	const op = "responses.streamPartition"
	model, err := a.router.ModelFor(partition.EntityAnswerRecord, p)
	if err != nil {
		return nil, survey.Wrap(survey.CodeValidation, op, err)
	}
	acc := NewAccumulator(set.Mode)
	folded := 0
	for _, rc := range set.RoundCodes() {
		err := a.streamRound(ctx, model, rc, func(rec *survey.AnswerRecord) {
			if acc.Fold(rec, rc.Codes, a.extract.Weight(rec), a.extract.Demographics(rec, fields)) {
				folded++
			}
		})
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, survey.NewError(survey.CodeTimeout, op,
					fmt.Sprintf("partition %s round %s exceeded the query time budget", p.Name, rc.Round), err)
			}
			if errors.Is(err, context.Canceled) {
				return nil, err
			}
			return nil, survey.NewError(survey.CodeBackendFailure, op,
				fmt.Sprintf("partition %s round %s: %v", p.Name, rc.Round, err), err)
		}
	}
	observability.ObserveFolded(p.Name, folded)
	a.log.Debug("partition folded", "partition", p.Name, "records", folded)
	return acc, nil
}

func (a *PartitionAggregator) streamRound(ctx context.Context, model *gorm.DB, rc survey.RoundCodes, fold func(*survey.AnswerRecord)) error {
	if a.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.QueryTimeout)
		defer cancel()
	}
	err := a.repo.StreamByRoundCodes(ctx, model, rc.Round, rc.Codes, func(rec *survey.AnswerRecord) error {
		fold(rec)
		return nil
	})
	if err == nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
