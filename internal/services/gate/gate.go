package gate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/surveytrends-backend/internal/domain/survey"
	"github.com/yungbote/surveytrends-backend/internal/observability"
	"github.com/yungbote/surveytrends-backend/internal/platform/logger"
)

type Mode string

const (
	// ModeDefault runs the primary backend first.
	ModeDefault Mode = "default"
	// ModeActive runs the secondary backend first.
	ModeActive Mode = "active"
)

type Source string

const (
	SourcePrimary           Source = "primary"
	SourceSecondary         Source = "secondary"
	SourcePrimaryFallback   Source = "primary-fallback"
	SourceSecondaryFallback Source = "secondary-fallback"
)

type Policy struct {
	Mode     Mode `json:"mode"`
	Fallback bool `json:"fallback"`
	// Speculative starts both backends at once and keeps the preferred one's
	// answer when it succeeds. Only meaningful with Fallback.
	Speculative bool `json:"speculative"`
}

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeDefault:
		return ModeDefault, nil
	case ModeActive:
		return ModeActive, nil
	}
	return "", survey.NewError(survey.CodeValidation, "gate.ParseMode", fmt.Sprintf("unknown backend mode %q", s), nil)
}

// Result carries the value together with where it came from.
type Result[T any] struct {
	Value          T      `json:"value"`
	Source         Source `json:"source"`
	FallbackReason string `json:"fallback_reason,omitempty"`
}

// Func is one backend's implementation of an operation. A nil Func means the
// backend is not available and counts as a failed attempt.
type Func[T any] func(ctx context.Context) (T, error)

var errUnavailable = errors.New("backend not configured")

type Gate struct {
	log *logger.Logger
}

func New(log *logger.Logger) *Gate {
	return &Gate{log: log.With("service", "BackendGate")}
}

// Execute runs op on the preferred backend and, when the policy allows it,
// on the other one after a failure. When both fail the last error is
// returned as is.
func Execute[T any](ctx context.Context, g *Gate, op string, primary, secondary Func[T], policy Policy) (res Result[T], err error) {
	ctx, span := observability.Tracer().Start(ctx, "gate.Execute")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.String("gate.source", string(res.Source)))
			observability.ObserveGate(op, string(res.Source))
		}
		span.End()
	}()
	span.SetAttributes(
		attribute.String("gate.op", op),
		attribute.String("gate.mode", string(policy.Mode)),
		attribute.Bool("gate.fallback", policy.Fallback),
	)

	first, second := primary, secondary
	firstSrc, secondSrc := SourcePrimary, SourceSecondaryFallback
	if policy.Mode == ModeActive {
		first, second = secondary, primary
		firstSrc, secondSrc = SourceSecondary, SourcePrimaryFallback
	}

	if policy.Fallback && policy.Speculative && first != nil && second != nil {
		return speculate(ctx, g, op, first, second, firstSrc, secondSrc)
	}

	v, err := call(ctx, first)
	if err == nil {
		return Result[T]{Value: v, Source: firstSrc}, nil
	}
	if !policy.Fallback || ctx.Err() != nil {
		return Result[T]{}, err
	}
	g.log.Warn("backend failed, falling back", "op", op, "failed", firstSrc, "error", err)

	v, err2 := call(ctx, second)
	if err2 != nil {
		g.log.Error("fallback backend failed too", "op", op, "first_error", err, "error", err2)
		return Result[T]{}, err2
	}
	return Result[T]{Value: v, Source: secondSrc, FallbackReason: err.Error()}, nil
}

type outcome[T any] struct {
	v   T
	err error
}

// speculate runs both backends concurrently. The preferred backend's answer
// wins whenever it succeeds so provenance matches the sequential path.
func speculate[T any](ctx context.Context, g *Gate, op string, first, second Func[T], firstSrc, secondSrc Source) (Result[T], error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	firstCh := make(chan outcome[T], 1)
	secondCh := make(chan outcome[T], 1)
	go func() {
		v, err := call(ctx, first)
		firstCh <- outcome[T]{v, err}
	}()
	go func() {
		v, err := call(ctx, second)
		secondCh <- outcome[T]{v, err}
	}()

	a := <-firstCh
	if a.err == nil {
		return Result[T]{Value: a.v, Source: firstSrc}, nil
	}
	g.log.Warn("speculative preferred backend failed", "op", op, "failed", firstSrc, "error", a.err)
	b := <-secondCh
	if b.err != nil {
		return Result[T]{}, b.err
	}
	return Result[T]{Value: b.v, Source: secondSrc, FallbackReason: a.err.Error()}, nil
}

func call[T any](ctx context.Context, fn Func[T]) (T, error) {
	if fn == nil {
		var zero T
		return zero, survey.NewError(survey.CodeBackendFailure, "gate.call", errUnavailable.Error(), errUnavailable)
	}
	return fn(ctx)
}
