package questions

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/yungbote/surveytrends-backend/internal/domain/survey"
	"github.com/yungbote/surveytrends-backend/internal/platform/logger"
)

type GroupKind string

const (
	GroupMultiPart GroupKind = "multi_part"
	GroupText      GroupKind = "text"
)

// QuestionGroup is a theme-level bundle of instances analysed together.
type QuestionGroup struct {
	Kind     GroupKind            `json:"kind"`
	BaseCode string               `json:"base_code,omitempty"`
	Round    string               `json:"round,omitempty"`
	Text     string               `json:"text"`
	Theme    string               `json:"theme"`
	Members  []survey.QuestionRef `json:"members"`
}

type Grouper struct {
	log   *logger.Logger
	index SnapshotSource
}

func NewGrouper(log *logger.Logger, index SnapshotSource) *Grouper {
	return &Grouper{log: log.With("service", "QuestionGrouper"), index: index}
}

// Group returns the theme's multi-part groups followed by its text groups.
func (g *Grouper) Group(ctx context.Context, theme string) ([]QuestionGroup, error) {
	const op = "questions.Group"
	if strings.TrimSpace(theme) == "" {
		return nil, survey.NewError(survey.CodeValidation, op, "theme is required", nil)
	}
	snap, err := g.index.Snapshot(ctx)
	if err != nil {
		return nil, survey.Wrap(survey.CodeBackendFailure, op, err)
	}
	instances := snap.ByTheme(theme)
	if len(instances) == 0 {
		return nil, survey.NotFound(op, fmt.Sprintf("theme %q has no questions", theme), nil)
	}
	groups := GroupInstances(instances)
	g.log.Debug("grouped theme", "theme", theme, "instances", len(instances), "groups", len(groups))
	return groups, nil
}

// GroupInstances partitions one theme's instances. Instances sharing
// (base code, round) form a multi-part group when there is more than one of
// them and at least one carries a sub-part suffix; an unsuffixed base code
// joins its sub-parts at index 0. Everything left over groups by exact text
// across rounds.
func GroupInstances(instances []survey.QuestionInstance) []QuestionGroup {
	var (
		multi    []QuestionGroup
		multiAt  = map[string]int{}
		hasParts = map[int]bool{}
	)
	for _, q := range instances {
		base := survey.BaseCode(q.Code)
		k := base + "\x00" + q.Round
		i, ok := multiAt[k]
		if !ok {
			i = len(multi)
			multiAt[k] = i
			multi = append(multi, QuestionGroup{
				Kind:     GroupMultiPart,
				BaseCode: base,
				Round:    q.Round,
				Theme:    q.Theme,
			})
		}
		multi[i].Members = append(multi[i].Members, q.Ref())
		if survey.IsMultiPart(q.Code) {
			hasParts[i] = true
		}
	}

	claimed := map[string]struct{}{}
	groups := make([]QuestionGroup, 0, len(multi))
	for i, g := range multi {
		if len(g.Members) < 2 || !hasParts[i] {
			continue
		}
		members := g.Members
		sort.SliceStable(members, func(a, b int) bool {
			return survey.SubPartIndex(members[a].Code) < survey.SubPartIndex(members[b].Code)
		})
		g.Text = members[0].Text
		for _, m := range members {
			claimed[m.Round+"\x00"+m.Code] = struct{}{}
		}
		groups = append(groups, g)
	}
	sort.SliceStable(groups, func(a, b int) bool {
		if groups[a].BaseCode != groups[b].BaseCode {
			return groups[a].BaseCode < groups[b].BaseCode
		}
		return survey.CompareRounds(groups[a].Round, groups[b].Round) < 0
	})

	var texts []QuestionGroup
	textAt := map[string]int{}
	for _, q := range instances {
		ref := q.Ref()
		if _, ok := claimed[ref.Round+"\x00"+ref.Code]; ok {
			continue
		}
		i, ok := textAt[q.Text]
		if !ok {
			i = len(texts)
			textAt[q.Text] = i
			texts = append(texts, QuestionGroup{Kind: GroupText, Text: q.Text, Theme: q.Theme})
		}
		texts[i].Members = append(texts[i].Members, ref)
	}
	sort.SliceStable(texts, func(a, b int) bool { return texts[a].Text < texts[b].Text })
	return append(groups, texts...)
}

// SetFromGroup turns a group into the set the aggregator consumes.
func SetFromGroup(g QuestionGroup) (*survey.ResolvedQuestionSet, error) {
	var set *survey.ResolvedQuestionSet
	switch g.Kind {
	case GroupMultiPart:
		set = survey.NewResolvedSet(g.BaseCode, g.Theme, g.Text, survey.StrategyMultiPart, survey.ModePerVariable, g.Members)
	case GroupText:
		code := ""
		if n := len(g.Members); n > 0 {
			code = g.Members[n-1].Code
		}
		set = survey.NewResolvedSet(code, g.Theme, g.Text, survey.StrategyTextGroup, survey.ModeMerge, g.Members)
	default:
		return nil, survey.NewError(survey.CodeValidation, "questions.SetFromGroup", fmt.Sprintf("unknown group kind %q", g.Kind), nil)
	}
	return set, set.Validate()
}
