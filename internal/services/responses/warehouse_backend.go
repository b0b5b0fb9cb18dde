package responses

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/surveytrends-backend/internal/data/warehouse"
	"github.com/yungbote/surveytrends-backend/internal/domain/survey"
	"github.com/yungbote/surveytrends-backend/internal/observability"
	"github.com/yungbote/surveytrends-backend/internal/platform/logger"
)

// WarehouseReader is the slice of the warehouse the backend needs.
type WarehouseReader interface {
	PeriodTotals(ctx context.Context, targets []survey.RoundCodes, perVariable bool) ([]warehouse.PeriodTotal, error)
	AnswerCounts(ctx context.Context, targets []survey.RoundCodes) ([]warehouse.AnswerCount, error)
	DemographicCounts(ctx context.Context, targets []survey.RoundCodes, fields []string) ([]warehouse.DemographicCount, error)
}

// WarehouseBackend answers aggregations with grouped SQL instead of streaming
// records. The counts land in the same accumulator, so finalization is shared.
type WarehouseBackend struct {
	log     *logger.Logger
	wh      WarehouseReader
	extract *Extractor
	timeout time.Duration
}

func NewWarehouseBackend(log *logger.Logger, wh WarehouseReader, extract *Extractor, timeout time.Duration) *WarehouseBackend {
	return &WarehouseBackend{
		log:     log.With("service", "WarehouseBackend"),
		wh:      wh,
		extract: extract,
		timeout: timeout,
	}
}

func (b *WarehouseBackend) Name() string { return "warehouse" }

func (b *WarehouseBackend) Aggregate(ctx context.Context, req Request) (res Result, err error) {
	const op = "responses.WarehouseAggregate"
	start := time.Now()
	ctx, span := observability.Tracer().Start(ctx, op)
	defer func() {
		observability.ObserveAggregate(b.Name(), err, time.Since(start))
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	if req.Set == nil {
		return Result{}, survey.NewError(survey.CodeValidation, op, "no resolved question set", nil)
	}
	if err := req.Set.Validate(); err != nil {
		return Result{}, err
	}
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	targets := req.Set.RoundCodes()
	fields := b.extract.Fields(req.Demographics)
	span.SetAttributes(attribute.Int("aggregate.rounds", len(targets)))

	acc := NewAccumulator(req.Set.Mode)

	totals, err := b.wh.PeriodTotals(ctx, targets, false)
	if err != nil {
		return Result{}, err
	}
	for _, t := range totals {
		acc.AddPeriod(t.Year, t.Round, int(t.Respondents), t.Weighted)
	}
	if req.Set.Mode == survey.ModePerVariable {
		perVar, err := b.wh.PeriodTotals(ctx, targets, true)
		if err != nil {
			return Result{}, err
		}
		for _, t := range perVar {
			acc.AddVariable(t.Year, t.Round, t.Code, int(t.Respondents), t.Weighted)
		}
	}

	answers, err := b.wh.AnswerCounts(ctx, targets)
	if err != nil {
		return Result{}, err
	}
	for _, a := range answers {
		acc.AddAnswer(a.Year, a.Round, a.Code, a.Response, int(a.Count), a.Weighted)
	}

	if len(fields) > 0 {
		demo, err := b.wh.DemographicCounts(ctx, targets, fields)
		if err != nil {
			return Result{}, err
		}
		for _, d := range demo {
			acc.AddDemographic(d.Year, d.Round, d.Code, d.Response, d.Field, d.Value, int(d.Count), d.Weighted)
		}
	}

	b.log.Debug("warehouse aggregation done", "periods", len(totals), "answers", len(answers))
	return Result{Periods: Finalize(acc.Buckets())}, nil
}
