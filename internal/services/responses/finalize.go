package responses

import (
	"sort"

	"github.com/yungbote/surveytrends-backend/internal/domain/survey"
)

// Finalize rounds weighted counts to two decimals and orders everything by
// weight, periods newest first. It copies its input and is idempotent.
func Finalize(periods []survey.PeriodBucket) []survey.PeriodBucket {
	out := make([]survey.PeriodBucket, len(periods))
	for i, p := range periods {
		p.TotalWeightedResponses = survey.Round2(p.TotalWeightedResponses)
		p.Answers = finalizeAnswers(p.Answers)
		if p.Variables != nil {
			vars := make([]survey.VariableDistribution, len(p.Variables))
			for j, v := range p.Variables {
				v.TotalWeightedResponses = survey.Round2(v.TotalWeightedResponses)
				v.Answers = finalizeAnswers(v.Answers)
				vars[j] = v
			}
			sort.SliceStable(vars, func(a, b int) bool {
				if sa, sb := survey.SubPartIndex(vars[a].Code), survey.SubPartIndex(vars[b].Code); sa != sb {
					return sa < sb
				}
				return vars[a].Code < vars[b].Code
			})
			p.Variables = vars
		}
		out[i] = p
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Year != out[b].Year {
			return out[a].Year > out[b].Year
		}
		return survey.CompareRounds(out[a].Round, out[b].Round) > 0
	})
	return out
}

func finalizeAnswers(in []survey.AnswerBucket) []survey.AnswerBucket {
	out := make([]survey.AnswerBucket, len(in))
	for i, a := range in {
		a.WeightedCount = survey.Round2(a.WeightedCount)
		if a.Demographics != nil {
			demo := make(map[string][]survey.DemographicValueBucket, len(a.Demographics))
			for field, vals := range a.Demographics {
				list := make([]survey.DemographicValueBucket, len(vals))
				for j, v := range vals {
					v.WeightedCount = survey.Round2(v.WeightedCount)
					list[j] = v
				}
				sort.SliceStable(list, func(x, y int) bool { return list[x].WeightedCount > list[y].WeightedCount })
				demo[field] = list
			}
			a.Demographics = demo
		}
		out[i] = a
	}
	sort.SliceStable(out, func(x, y int) bool { return out[x].WeightedCount > out[y].WeightedCount })
	return out
}
