package questions

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/yungbote/surveytrends-backend/internal/domain/survey"
)

// MatchStrategy ranks instances against a free-text hint. Its output is only
// ever offered as suggestions; it never resolves a question on its own.
type MatchStrategy interface {
	Name() string
	Rank(hint string, instances []survey.QuestionInstance, limit int) []survey.Candidate
}

// DefaultBonusKeywords is the vocabulary used when none is configured.
var DefaultBonusKeywords = map[string]float64{
	"approve":    2,
	"aprova":     2,
	"government": 2,
	"governo":    2,
	"president":  2,
	"presidente": 2,
	"vote":       1.5,
	"voto":       1.5,
}

// KeywordStrategy counts hint tokens in the question text and adds a fixed
// bonus for domain keywords present in both.
type KeywordStrategy struct {
	bonus       map[string]float64
	minTokenLen int
}

func NewKeywordStrategy(bonus map[string]float64) *KeywordStrategy {
	b := make(map[string]float64, len(bonus))
	for k, w := range bonus {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			b[k] = w
		}
	}
	return &KeywordStrategy{bonus: b, minTokenLen: 3}
}

func (s *KeywordStrategy) Name() string { return "keyword" }

func (s *KeywordStrategy) Rank(hint string, instances []survey.QuestionInstance, limit int) []survey.Candidate {
	lowerHint := strings.ToLower(hint)
	tokens := s.tokens(lowerHint)
	if len(tokens) == 0 && len(s.bonus) == 0 {
		return nil
	}

	var out []survey.Candidate
	for _, q := range instances {
		score := s.score(lowerHint, tokens, strings.ToLower(q.Text))
		if score <= 0 {
			continue
		}
		out = append(out, survey.Candidate{QuestionRef: q.Ref(), Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *KeywordStrategy) score(lowerHint string, tokens []string, lowerText string) float64 {
	var score float64
	for _, tok := range tokens {
		score += float64(strings.Count(lowerText, tok))
	}
	for kw, w := range s.bonus {
		if strings.Contains(lowerHint, kw) && strings.Contains(lowerText, kw) {
			score += w
		}
	}
	return score
}

// tokens are the distinct words of the hint longer than two characters.
func (s *KeywordStrategy) tokens(lowerHint string) []string {
	fields := strings.FieldsFunc(lowerHint, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) < s.minTokenLen {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
