package analytics

import (
	"context"
	"fmt"

	"github.com/yungbote/surveytrends-backend/internal/domain/survey"
	"github.com/yungbote/surveytrends-backend/internal/platform/logger"
	"github.com/yungbote/surveytrends-backend/internal/services/gate"
	"github.com/yungbote/surveytrends-backend/internal/services/questions"
	"github.com/yungbote/surveytrends-backend/internal/services/responses"
)

// Resolver is the part of questions.Resolver the facade uses.
type Resolver interface {
	Resolve(ctx context.Context, ref questions.Reference) (questions.Resolution, error)
	ForgetMemo(ctx context.Context) error
}

type Grouper interface {
	Group(ctx context.Context, theme string) ([]questions.QuestionGroup, error)
}

type IndexInvalidator interface {
	Invalidate(ctx context.Context) error
}

// AggregateRequest names the question either by reference or by an already
// resolved set (for example one built from a group).
type AggregateRequest struct {
	Dataset      string
	Question     questions.Reference
	Set          *survey.ResolvedQuestionSet
	Demographics []string
	Policy       *gate.Policy
}

type AggregateOutcome struct {
	Set              *survey.ResolvedQuestionSet `json:"set"`
	Periods          []survey.PeriodBucket       `json:"periods"`
	Partial          bool                        `json:"partial"`
	FailedPartitions []string                    `json:"failed_partitions,omitempty"`
	Source           gate.Source                 `json:"source"`
	FallbackReason   string                      `json:"fallback_reason,omitempty"`
}

type Service struct {
	log       *logger.Logger
	resolver  Resolver
	grouper   Grouper
	index     IndexInvalidator
	gate      *gate.Gate
	primary   responses.Backend
	secondary responses.Backend
	policy    gate.Policy
}

type Deps struct {
	Resolver  Resolver
	Grouper   Grouper
	Index     IndexInvalidator
	Gate      *gate.Gate
	Primary   responses.Backend
	Secondary responses.Backend
	Policy    gate.Policy
}

func New(log *logger.Logger, d Deps) *Service {
	return &Service{
		log:       log.With("service", "Analytics"),
		resolver:  d.Resolver,
		grouper:   d.Grouper,
		index:     d.Index,
		gate:      d.Gate,
		primary:   d.Primary,
		secondary: d.Secondary,
		policy:    d.Policy,
	}
}

func (s *Service) ResolveQuestion(ctx context.Context, ref questions.Reference) (questions.Resolution, error) {
	return s.resolver.Resolve(ctx, ref)
}

func (s *Service) GroupQuestionsByTheme(ctx context.Context, theme string) ([]questions.QuestionGroup, error) {
	return s.grouper.Group(ctx, theme)
}

// AggregateResponses resolves the question when needed and runs the
// aggregation through the backend gate.
func (s *Service) AggregateResponses(ctx context.Context, req AggregateRequest) (AggregateOutcome, error) {
	const op = "analytics.AggregateResponses"
	set := req.Set
	if set == nil {
		res, err := s.resolver.Resolve(ctx, req.Question)
		if err != nil {
			return AggregateOutcome{}, err
		}
		if res.Set == nil {
			return AggregateOutcome{}, survey.Ambiguous(op, "reference only produced suggestions; pick one", res.Candidates)
		}
		set = res.Set
	}

	policy := s.policy
	if req.Policy != nil {
		policy = *req.Policy
	}
	aggReq := responses.Request{Dataset: req.Dataset, Set: set, Demographics: req.Demographics}

	res, err := gate.Execute(ctx, s.gate, "aggregate", backendFunc(s.primary, aggReq), backendFunc(s.secondary, aggReq), policy)
	if err != nil {
		return AggregateOutcome{}, err
	}
	if res.FallbackReason != "" {
		s.log.Warn("aggregation served by fallback backend", "source", res.Source, "reason", res.FallbackReason)
	}
	return AggregateOutcome{
		Set:              set,
		Periods:          res.Value.Periods,
		Partial:          res.Value.Partial,
		FailedPartitions: res.Value.FailedPartitions,
		Source:           res.Source,
		FallbackReason:   res.FallbackReason,
	}, nil
}

// ExecuteWithFallback runs an arbitrary operation through the gate with the
// service's default policy unless one is given.
func ExecuteWithFallback[T any](ctx context.Context, s *Service, op string, primary, secondary gate.Func[T], policy *gate.Policy) (gate.Result[T], error) {
	p := s.policy
	if policy != nil {
		p = *policy
	}
	return gate.Execute(ctx, s.gate, op, primary, secondary, p)
}

// InvalidateIndex is the hook the import pipeline calls after writing the
// question catalog.
func (s *Service) InvalidateIndex(ctx context.Context) error {
	if err := s.index.Invalidate(ctx); err != nil {
		return err
	}
	if err := s.resolver.ForgetMemo(ctx); err != nil {
		return fmt.Errorf("forget memoised resolutions: %w", err)
	}
	return nil
}

func backendFunc(b responses.Backend, req responses.Request) gate.Func[responses.Result] {
	if b == nil {
		return nil
	}
	return func(ctx context.Context) (responses.Result, error) {
		return b.Aggregate(ctx, req)
	}
}
