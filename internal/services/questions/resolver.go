package questions

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/surveytrends-backend/internal/cache"
	"github.com/yungbote/surveytrends-backend/internal/domain/survey"
	"github.com/yungbote/surveytrends-backend/internal/observability"
	"github.com/yungbote/surveytrends-backend/internal/platform/logger"
)

const DefaultSuggestionLimit = 5

// Reference is what a caller knows about the question it wants.
type Reference struct {
	Code       string    `json:"code,omitempty"`
	Theme      string    `json:"theme,omitempty"`
	Round      string    `json:"round,omitempty"`
	ExactText  string    `json:"exact_text,omitempty"`
	Hint       string    `json:"hint,omitempty"`
	InstanceID uuid.UUID `json:"instance_id,omitempty"`

	// IdempotencyKey makes repeated resolutions return the memoised result.
	IdempotencyKey string `json:"-"`
}

// Resolution carries either a resolved set or, on the hint path, candidates
// the caller must pick from.
type Resolution struct {
	Set        *survey.ResolvedQuestionSet `json:"set,omitempty"`
	Candidates []survey.Candidate          `json:"candidates,omitempty"`
}

type Resolver struct {
	log      *logger.Logger
	index    SnapshotSource
	strategy MatchStrategy
	memo     cache.Store[Resolution]
	limit    int
}

type ResolverOption func(*Resolver)

// WithMemo enables idempotency-key memoisation.
func WithMemo(store cache.Store[Resolution]) ResolverOption {
	return func(r *Resolver) { r.memo = store }
}

func WithSuggestionLimit(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.limit = n
		}
	}
}

func NewResolver(log *logger.Logger, index SnapshotSource, strategy MatchStrategy, opts ...ResolverOption) *Resolver {
	if strategy == nil {
		strategy = NewKeywordStrategy(DefaultBonusKeywords)
	}
	r := &Resolver{
		log:      log.With("service", "QuestionResolver"),
		index:    index,
		strategy: strategy,
		limit:    DefaultSuggestionLimit,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve maps a reference to the set of question instances it denotes.
// Paths are tried in order (identifier, exact text with substring fallback,
// code, hint) and the first success wins. Round and theme narrow the seed
// instances only; expansion always spans rounds.
func (r *Resolver) Resolve(ctx context.Context, ref Reference) (Resolution, error) {
	ctx, span := observability.Tracer().Start(ctx, "questions.Resolve")
	defer span.End()
	span.SetAttributes(
		attribute.String("question.code", survey.NormalizeCode(ref.Code)),
		attribute.String("question.theme", ref.Theme),
		attribute.Bool("question.has_text", ref.ExactText != ""),
	)

	memoKey := ""
	if r.memo != nil && strings.TrimSpace(ref.IdempotencyKey) != "" {
		memoKey = "resolve:" + strings.TrimSpace(ref.IdempotencyKey)
		if res, ok, err := r.memo.Get(ctx, memoKey); err != nil {
			r.log.Warn("resolution memo read failed", "error", err)
		} else if ok {
			span.SetAttributes(attribute.Bool("question.memoised", true))
			return res, nil
		}
	}

	res, strategy, err := r.resolve(ctx, ref)
	if err != nil {
		observability.ObserveResolution(string(strategy), string(survey.CodeOf(err)))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Resolution{}, err
	}
	observability.ObserveResolution(string(strategy), "ok")
	span.SetAttributes(attribute.String("question.strategy", string(strategy)))

	if memoKey != "" {
		if err := r.memo.Put(ctx, memoKey, res); err != nil {
			r.log.Warn("resolution memo write failed", "error", err)
		}
	}
	return res, nil
}

// ForgetMemo drops every memoised resolution. Called with index invalidation.
func (r *Resolver) ForgetMemo(ctx context.Context) error {
	if r.memo == nil {
		return nil
	}
	return r.memo.InvalidateAll(ctx)
}

func (r *Resolver) resolve(ctx context.Context, ref Reference) (Resolution, survey.Strategy, error) {
	const op = "questions.Resolve"
	snap, err := r.index.Snapshot(ctx)
	if err != nil {
		return Resolution{}, "", survey.Wrap(survey.CodeBackendFailure, op, err)
	}

	hasCode := strings.TrimSpace(ref.Code) != ""
	if ref.InstanceID == uuid.Nil && ref.ExactText == "" && !hasCode && strings.TrimSpace(ref.Hint) == "" {
		return Resolution{}, "", survey.NewError(survey.CodeValidation, op, "reference needs an instance id, text, code or hint", nil)
	}

	// Each path either resolves, stops with a definitive error, or reports
	// NotFound and hands over to the next one.
	var (
		miss     error
		strategy survey.Strategy
	)
	if ref.InstanceID != uuid.Nil {
		set, err := r.byIdentifier(snap, ref)
		if !survey.IsCode(err, survey.CodeNotFound) {
			return Resolution{Set: set}, survey.StrategyIdentifier, err
		}
		miss, strategy = err, survey.StrategyIdentifier
	}
	if ref.ExactText != "" {
		set, err := r.byExactText(snap, ref)
		if err == nil {
			return Resolution{Set: set}, set.Strategy, nil
		}
		if !survey.IsCode(err, survey.CodeNotFound) {
			return Resolution{}, survey.StrategyExactText, err
		}
		miss, strategy = err, survey.StrategyExactText
	}
	if hasCode {
		set, err := r.byCode(snap, ref)
		if !survey.IsCode(err, survey.CodeNotFound) {
			return Resolution{Set: set}, survey.StrategyCode, err
		}
		miss, strategy = err, survey.StrategyCode
	}
	if strings.TrimSpace(ref.Hint) != "" {
		cands, err := r.suggest(snap, ref)
		if !survey.IsCode(err, survey.CodeNotFound) {
			return Resolution{Candidates: cands}, "hint", err
		}
		miss, strategy = err, "hint"
	}
	return Resolution{}, strategy, miss
}

func (r *Resolver) byIdentifier(snap *Snapshot, ref Reference) (*survey.ResolvedQuestionSet, error) {
	const op = "questions.Resolve.identifier"
	inst, ok := snap.ByID(ref.InstanceID)
	if !ok {
		return nil, survey.NotFound(op, fmt.Sprintf("question instance %s not found", ref.InstanceID), snap.Diagnostics(ref.Code))
	}
	if strings.TrimSpace(ref.Code) != "" && !survey.SameCode(inst.Code, ref.Code) {
		return nil, survey.NewError(survey.CodeCodeMismatch, op,
			fmt.Sprintf("instance %s has code %s, not %s", inst.ID, inst.Code, survey.NormalizeCode(ref.Code)), nil)
	}
	members := expandByCode(snap, []survey.QuestionInstance{inst})
	set := survey.NewResolvedSet(inst.Code, inst.Theme, inst.Text, survey.StrategyIdentifier, survey.ModeMerge, members)
	return set, set.Validate()
}

func (r *Resolver) byExactText(snap *Snapshot, ref Reference) (*survey.ResolvedQuestionSet, error) {
	const op = "questions.Resolve.exact_text"
	matches := snap.Filter(func(q survey.QuestionInstance) bool {
		return q.Text == ref.ExactText && r.seed(q, ref)
	})
	if len(matches) > 0 {
		return r.textSet(snap, ref, matches, ref.ExactText, survey.StrategyExactText)
	}

	pattern, err := regexp.Compile("(?i)" + regexp.QuoteMeta(strings.TrimSpace(ref.ExactText)))
	if err != nil {
		return nil, survey.NewError(survey.CodeValidation, op, "unusable question text", err)
	}
	matches = snap.Filter(func(q survey.QuestionInstance) bool {
		return pattern.MatchString(q.Text) && r.seed(q, ref)
	})
	if len(matches) == 0 {
		return nil, survey.NotFound(op, "no question matches the given text", snap.Diagnostics(ref.Code))
	}
	texts := distinctTextThemes(matches)
	if len(texts) > 1 {
		return nil, survey.Ambiguous(op, "text matches more than one question", texts)
	}
	r.log.Warn("exact text not found, resolved by substring match",
		"requested_text", ref.ExactText,
		"matched_text", matches[0].Text,
		"theme", matches[0].Theme,
	)
	return r.textSet(snap, ref, matches, matches[0].Text, survey.StrategySubstring)
}

// textSet expands text matches to every instance carrying the same text in the
// same theme, across codes.
func (r *Resolver) textSet(snap *Snapshot, ref Reference, matches []survey.QuestionInstance, text string, strategy survey.Strategy) (*survey.ResolvedQuestionSet, error) {
	const op = "questions.Resolve.text"
	theme, err := singleTheme(op, matches)
	if err != nil {
		return nil, err
	}
	expanded := snap.Filter(func(q survey.QuestionInstance) bool {
		return q.Text == text && sameTheme(q.Theme, theme)
	})
	if variations := conflictingRounds(expanded); len(variations) > 0 {
		return nil, survey.Ambiguous(op, "question text maps to more than one code in a round", variations)
	}
	code := survey.NormalizeCode(ref.Code)
	if code == "" {
		code = expanded[len(expanded)-1].Code
	}
	set := survey.NewResolvedSet(code, theme, text, strategy, survey.ModeMerge, refs(expanded))
	return set, set.Validate()
}

func (r *Resolver) byCode(snap *Snapshot, ref Reference) (*survey.ResolvedQuestionSet, error) {
	const op = "questions.Resolve.code"
	matches := snap.Filter(func(q survey.QuestionInstance) bool {
		return survey.SameCode(q.Code, ref.Code) && r.scoped(q, ref)
	})
	if len(matches) == 0 {
		return nil, survey.NotFound(op, fmt.Sprintf("code %s not found in the requested scope", survey.NormalizeCode(ref.Code)), snap.Diagnostics(ref.Code))
	}
	theme, err := singleTheme(op, matches)
	if err != nil {
		return nil, err
	}
	members := expandByCode(snap, matches)
	latest := matches[len(matches)-1]
	set := survey.NewResolvedSet(latest.Code, theme, latest.Text, survey.StrategyCode, survey.ModeMerge, members)
	return set, set.Validate()
}

func (r *Resolver) suggest(snap *Snapshot, ref Reference) ([]survey.Candidate, error) {
	const op = "questions.Resolve.hint"
	pool := snap.Instances
	if strings.TrimSpace(ref.Theme) != "" {
		pool = snap.ByTheme(ref.Theme)
	}
	cands := r.strategy.Rank(ref.Hint, pool, r.limit)
	if len(cands) == 0 {
		return nil, survey.NotFound(op, "no question resembles the hint", nil)
	}
	return cands, nil
}

// seed reports whether q can start a text match: the optional code must match
// as well as the scope.
func (r *Resolver) seed(q survey.QuestionInstance, ref Reference) bool {
	if strings.TrimSpace(ref.Code) != "" && !survey.SameCode(q.Code, ref.Code) {
		return false
	}
	return r.scoped(q, ref)
}

// scoped applies the optional theme and round restrictions of a reference.
func (r *Resolver) scoped(q survey.QuestionInstance, ref Reference) bool {
	if strings.TrimSpace(ref.Theme) != "" && !sameTheme(q.Theme, ref.Theme) {
		return false
	}
	if strings.TrimSpace(ref.Round) != "" && q.Round != strings.TrimSpace(ref.Round) {
		return false
	}
	return true
}

// expandByCode adds every instance sharing (text, theme, code) with a seed.
func expandByCode(snap *Snapshot, seeds []survey.QuestionInstance) []survey.QuestionRef {
	type key struct{ text, theme, code string }
	want := make(map[key]struct{}, len(seeds))
	for _, s := range seeds {
		want[key{s.Text, strings.ToLower(strings.TrimSpace(s.Theme)), s.Code}] = struct{}{}
	}
	return refs(snap.Filter(func(q survey.QuestionInstance) bool {
		_, ok := want[key{q.Text, strings.ToLower(strings.TrimSpace(q.Theme)), q.Code}]
		return ok
	}))
}

func singleTheme(op string, matches []survey.QuestionInstance) (string, error) {
	themes := map[string]struct{}{}
	for _, m := range matches {
		themes[strings.ToLower(strings.TrimSpace(m.Theme))] = struct{}{}
	}
	if len(themes) > 1 {
		return "", survey.Ambiguous(op, "question exists in more than one theme", candidates(matches))
	}
	return matches[0].Theme, nil
}

// conflictingRounds returns the instances of rounds where one text carries
// more than one distinct code.
func conflictingRounds(instances []survey.QuestionInstance) []survey.Candidate {
	codesByRound := map[string]map[string]struct{}{}
	for _, q := range instances {
		if codesByRound[q.Round] == nil {
			codesByRound[q.Round] = map[string]struct{}{}
		}
		codesByRound[q.Round][q.Code] = struct{}{}
	}
	var out []survey.QuestionInstance
	for _, q := range instances {
		if len(codesByRound[q.Round]) > 1 {
			out = append(out, q)
		}
	}
	return candidates(out)
}

// distinctTextThemes returns one candidate per distinct (text, theme).
func distinctTextThemes(matches []survey.QuestionInstance) []survey.Candidate {
	seen := map[string]struct{}{}
	var out []survey.QuestionInstance
	for _, m := range matches {
		k := m.Text + "\x00" + strings.ToLower(strings.TrimSpace(m.Theme))
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, m)
	}
	return candidates(out)
}

func candidates(instances []survey.QuestionInstance) []survey.Candidate {
	out := make([]survey.Candidate, 0, len(instances))
	for _, q := range instances {
		out = append(out, survey.Candidate{QuestionRef: q.Ref()})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := survey.CompareRounds(out[i].Round, out[j].Round); c != 0 {
			return c < 0
		}
		return out[i].Code < out[j].Code
	})
	return out
}

func refs(instances []survey.QuestionInstance) []survey.QuestionRef {
	out := make([]survey.QuestionRef, 0, len(instances))
	for _, q := range instances {
		out = append(out, q.Ref())
	}
	return out
}
