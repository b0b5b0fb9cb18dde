package questions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/surveytrends-backend/internal/domain/survey"
	"github.com/yungbote/surveytrends-backend/internal/platform/logger"
)

func TestGroupInstances_PartitionsEveryInstanceOnce(t *testing.T) {
	instances := []survey.QuestionInstance{
		q("1", "P5#2", "Rate: health", "Eco"),
		q("1", "P5#1", "Rate: education", "Eco"),
		q("2", "P5#1", "Rate: education", "Eco"),
		q("2", "P5#2", "Rate: health", "Eco"),
		q("1", "P7_1", "Which brands?", "Eco"),
		q("1", "P1", "Inflation worries you?", "Eco"),
		q("2", "P1", "Inflation worries you?", "Eco"),
		q("3", "P1B", "Inflation worries you?", "Eco"),
		q("3", "P8", "Unemployment worries you?", "Eco"),
	}
	groups := GroupInstances(NewSnapshot(instances, time.Now()).Instances)

	seen := map[string]int{}
	for _, g := range groups {
		for _, m := range g.Members {
			seen[m.Round+"/"+m.Code]++
		}
	}
	assert.Len(t, seen, len(instances))
	for k, n := range seen {
		assert.Equal(t, 1, n, k)
	}

	require.Len(t, groups, 5)
	assert.Equal(t, GroupMultiPart, groups[0].Kind)
	assert.Equal(t, "P5", groups[0].BaseCode)
	assert.Equal(t, "1", groups[0].Round)
	assert.Equal(t, []string{"P5#1", "P5#2"}, []string{groups[0].Members[0].Code, groups[0].Members[1].Code})
	assert.Equal(t, "2", groups[1].Round)
	assert.Equal(t, GroupText, groups[2].Kind)
	assert.Equal(t, "Inflation worries you?", groups[2].Text)
	assert.Len(t, groups[2].Members, 3)
	// A lone sub-variable is not a multi-part question.
	assert.Equal(t, "Which brands?", groups[4].Text)
	assert.Equal(t, GroupText, groups[4].Kind)
}

func TestGroupInstances_BaseCodeJoinsItsSubParts(t *testing.T) {
	groups := GroupInstances(NewSnapshot([]survey.QuestionInstance{
		q("3", "P3_2", "Rate: transport", "Eco"),
		q("3", "P3", "Rate: overall", "Eco"),
		q("3", "P3_1", "Rate: health", "Eco"),
		q("3", "P4", "Unrelated", "Eco"),
		q("4", "P4", "Unrelated", "Eco"),
	}, time.Now()).Instances)

	require.Len(t, groups, 2)
	assert.Equal(t, GroupMultiPart, groups[0].Kind)
	assert.Equal(t, "P3", groups[0].BaseCode)
	codes := make([]string, 0, len(groups[0].Members))
	for _, m := range groups[0].Members {
		codes = append(codes, m.Code)
	}
	assert.Equal(t, []string{"P3", "P3_1", "P3_2"}, codes)
	assert.Equal(t, "Rate: overall", groups[0].Text)

	// Two plain instances of one base code are not a multi-part question.
	assert.Equal(t, GroupText, groups[1].Kind)
	assert.Len(t, groups[1].Members, 2)
}

func TestSetFromGroup(t *testing.T) {
	groups := GroupInstances(NewSnapshot([]survey.QuestionInstance{
		q("1", "P5#1", "Rate: education", "Eco"),
		q("1", "P5#2", "Rate: health", "Eco"),
		q("1", "P1", "Inflation?", "Eco"),
	}, time.Now()).Instances)
	require.Len(t, groups, 2)

	multi, err := SetFromGroup(groups[0])
	require.NoError(t, err)
	assert.Equal(t, survey.ModePerVariable, multi.Mode)
	assert.Equal(t, "P5", multi.Code)

	text, err := SetFromGroup(groups[1])
	require.NoError(t, err)
	assert.Equal(t, survey.ModeMerge, text.Mode)
	assert.Equal(t, survey.StrategyTextGroup, text.Strategy)

	bad := groups[1]
	bad.Members = append(bad.Members, survey.QuestionRef{Round: "2", Code: "P1", Text: "Different"})
	_, err = SetFromGroup(bad)
	assert.True(t, survey.IsCode(err, survey.CodeDataConsistency))
}

func TestGrouper_UnknownTheme(t *testing.T) {
	src := &staticSource{snap: NewSnapshot([]survey.QuestionInstance{q("1", "P1", "x", "A")}, time.Now())}
	g := NewGrouper(logger.NewTest(t), src)
	_, err := g.Group(context.Background(), "B")
	assert.True(t, survey.IsCode(err, survey.CodeNotFound))

	groups, err := g.Group(context.Background(), " a ")
	require.NoError(t, err)
	assert.Len(t, groups, 1)
}
