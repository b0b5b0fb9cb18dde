package responses

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/surveytrends-backend/internal/domain/survey"
)

func rec(round string, year int, answers ...any) *survey.AnswerRecord {
	r := &survey.AnswerRecord{Round: round, Year: year}
	for i := 0; i+1 < len(answers); i += 2 {
		r.Answers = append(r.Answers, survey.Answer{Key: answers[i].(string), Value: answers[i+1]})
	}
	return r
}

func TestFinalize_RoundsAndSorts(t *testing.T) {
	acc := NewAccumulator(survey.ModeMerge)
	acc.Fold(rec("1", 2023, "P1", "Não"), []string{"P1"}, 12.3456, nil)
	acc.Fold(rec("1", 2023, "P1", "Sim"), []string{"P1"}, 20, nil)
	acc.Fold(rec("1", 2023, "P1", "Talvez"), []string{"P1"}, 20, nil)
	acc.Fold(rec("2", 2023, "P1", "Sim"), []string{"P1"}, 1, nil)
	acc.Fold(rec("10", 2023, "P1", "Sim"), []string{"P1"}, 1, nil)
	acc.Fold(rec("3", 2024, "P1", "Sim"), []string{"P1"}, 1, nil)
	assert.False(t, acc.Fold(rec("3", 2024, "P1", ""), []string{"P1"}, 1, nil))

	out := Finalize(acc.Buckets())
	require.Len(t, out, 4)
	assert.Equal(t, []string{"3", "10", "2", "1"}, []string{out[0].Round, out[1].Round, out[2].Round, out[3].Round})

	p := out[3]
	assert.Equal(t, 3, p.TotalResponses)
	assert.Equal(t, 52.35, p.TotalWeightedResponses)
	require.Len(t, p.Answers, 3)
	// Equal weights keep insertion order.
	assert.Equal(t, []string{"Sim", "Talvez", "Não"}, []string{p.Answers[0].Response, p.Answers[1].Response, p.Answers[2].Response})
	assert.Equal(t, 12.35, p.Answers[2].WeightedCount)
	for i := 1; i < len(p.Answers); i++ {
		assert.GreaterOrEqual(t, p.Answers[i-1].WeightedCount, p.Answers[i].WeightedCount)
	}

	assert.Equal(t, out, Finalize(out))
}

func TestFinalize_DoesNotMutateInput(t *testing.T) {
	in := []survey.PeriodBucket{{Year: 1, Round: "1", TotalWeightedResponses: 1.005, Answers: []survey.AnswerBucket{
		{Response: "a", WeightedCount: 0.5},
		{Response: "b", WeightedCount: 0.505},
	}}}
	out := Finalize(in)
	assert.Equal(t, "a", in[0].Answers[0].Response)
	assert.Equal(t, 1.005, in[0].TotalWeightedResponses)
	assert.Equal(t, "b", out[0].Answers[0].Response)
	assert.Equal(t, 0.51, out[0].Answers[0].WeightedCount)
}

func TestAccumulator_PerVariable(t *testing.T) {
	acc := NewAccumulator(survey.ModePerVariable)
	codes := []string{"P5#1", "P5#2"}
	acc.Fold(rec("1", 2024, "P5#2", "Bom", "P5#1", "Ruim"), codes, 2, map[string]string{"UF": "RJ"})
	acc.Fold(rec("1", 2024, "P5#1", "Bom"), codes, 1, nil)

	out := Finalize(acc.Buckets())
	require.Len(t, out, 1)
	p := out[0]
	assert.Equal(t, 2, p.TotalResponses)
	assert.Equal(t, 3.0, p.TotalWeightedResponses)
	assert.Empty(t, p.Answers)
	require.Len(t, p.Variables, 2)
	assert.Equal(t, "P5#1", p.Variables[0].Code)
	assert.Equal(t, 2, p.Variables[0].TotalResponses)
	assert.Equal(t, "Ruim", p.Variables[0].Answers[0].Response)
	assert.Equal(t, "P5#2", p.Variables[1].Code)
	assert.Equal(t, []survey.DemographicValueBucket{{Response: "RJ", Count: 1, WeightedCount: 2}}, p.Variables[1].Answers[0].Demographics["UF"])
}

func TestAccumulator_MergeMatchesSingleFold(t *testing.T) {
	all := NewAccumulator(survey.ModeMerge)
	a := NewAccumulator(survey.ModeMerge)
	b := NewAccumulator(survey.ModeMerge)
	records := []*survey.AnswerRecord{
		rec("1", 2024, "P1", "Sim", "UF", "SP"),
		rec("1", 2024, "P1", "Não", "UF", "RJ"),
		rec("2", 2024, "P1", "Sim", "UF", "SP"),
	}
	for i, r := range records {
		demo := map[string]string{"UF": r.Answers[1].Value.(string)}
		all.Fold(r, []string{"P1"}, 1.5, demo)
		if i%2 == 0 {
			a.Fold(r, []string{"P1"}, 1.5, demo)
		} else {
			b.Fold(r, []string{"P1"}, 1.5, demo)
		}
	}
	a.Merge(b)
	assert.Equal(t, Finalize(all.Buckets()), Finalize(a.Buckets()))
}
