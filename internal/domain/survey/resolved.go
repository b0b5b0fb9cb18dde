package survey

import (
	"sort"

	"github.com/google/uuid"
)

// AggregationMode says how the members of a set are folded together.
type AggregationMode string

const (
	// ModeMerge treats every member as the same question: values merge per period.
	ModeMerge AggregationMode = "merge"
	// ModePerVariable keeps one distribution per variable code (multi-part questions).
	ModePerVariable AggregationMode = "per_variable"
)

// Strategy records which resolution path produced a set.
type Strategy string

const (
	StrategyIdentifier Strategy = "identifier"
	StrategyExactText  Strategy = "exact_text"
	StrategySubstring  Strategy = "substring"
	StrategyCode       Strategy = "code"
	StrategyMultiPart  Strategy = "multi_part_group"
	StrategyTextGroup  Strategy = "text_group"
)

// QuestionRef is one (round, code) member of a resolved set.
type QuestionRef struct {
	ID    uuid.UUID `json:"id"`
	Round string    `json:"round"`
	Code  string    `json:"code"`
	Text  string    `json:"text"`
	Theme string    `json:"theme"`
}

// Candidate is a ranked suggestion the caller must choose from.
type Candidate struct {
	QuestionRef
	Score float64 `json:"score"`
}

// ResolvedQuestionSet is request-scoped and never persisted.
type ResolvedQuestionSet struct {
	Code     string          `json:"code"`
	Theme    string          `json:"theme"`
	Text     string          `json:"text"`
	Strategy Strategy        `json:"strategy"`
	Mode     AggregationMode `json:"mode"`
	Members  []QuestionRef   `json:"members"`
}

// NewResolvedSet sorts and de-duplicates members by (round, code).
func NewResolvedSet(code, theme, text string, strategy Strategy, mode AggregationMode, members []QuestionRef) *ResolvedQuestionSet {
	seen := make(map[string]struct{}, len(members))
	out := make([]QuestionRef, 0, len(members))
	for _, m := range members {
		m.Code = NormalizeCode(m.Code)
		k := m.Round + "\x00" + m.Code
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := CompareRounds(out[i].Round, out[j].Round); c != 0 {
			return c < 0
		}
		if si, sj := SubPartIndex(out[i].Code), SubPartIndex(out[j].Code); si != sj {
			return si < sj
		}
		return out[i].Code < out[j].Code
	})
	if mode == "" {
		mode = ModeMerge
	}
	return &ResolvedQuestionSet{
		Code:     NormalizeCode(code),
		Theme:    theme,
		Text:     text,
		Strategy: strategy,
		Mode:     mode,
		Members:  out,
	}
}

// Validate enforces that sets grouped by text carry exactly one distinct text.
func (s *ResolvedQuestionSet) Validate() error {
	const op = "survey.ResolvedQuestionSet.Validate"
	if s == nil || len(s.Members) == 0 {
		return NewError(CodeValidation, op, "resolved set is empty", nil)
	}
	switch s.Strategy {
	case StrategyExactText, StrategySubstring, StrategyTextGroup:
		if n := len(s.DistinctTexts()); n != 1 {
			return Inconsistent(op, "text-grouped set spans more than one distinct question text")
		}
	}
	return nil
}

func (s *ResolvedQuestionSet) DistinctTexts() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, m := range s.Members {
		if _, ok := seen[m.Text]; ok {
			continue
		}
		seen[m.Text] = struct{}{}
		out = append(out, m.Text)
	}
	return out
}

// RoundCodes groups target codes by round, preserving member order.
func (s *ResolvedQuestionSet) RoundCodes() []RoundCodes {
	var out []RoundCodes
	idx := map[string]int{}
	for _, m := range s.Members {
		i, ok := idx[m.Round]
		if !ok {
			i = len(out)
			idx[m.Round] = i
			out = append(out, RoundCodes{Round: m.Round})
		}
		out[i].Codes = append(out[i].Codes, m.Code)
	}
	return out
}

// RoundCodes is the unit of one partition query: one round, its target codes.
type RoundCodes struct {
	Round string
	Codes []string
}
