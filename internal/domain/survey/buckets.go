package survey

import "math"

// PeriodBucket is the aggregation unit keyed by (year, round).
type PeriodBucket struct {
	Year                   int     `json:"year"`
	Round                  string  `json:"round"`
	TotalResponses         int     `json:"totalResponses"`
	TotalWeightedResponses float64 `json:"totalWeightedResponses"`

	// Answers is populated for merge-mode sets.
	Answers []AnswerBucket `json:"answers"`
	// Variables is populated for per-variable sets, one entry per code.
	Variables []VariableDistribution `json:"variables,omitempty"`
}

// VariableDistribution is one sub-variable's distribution inside a period.
type VariableDistribution struct {
	Code                   string         `json:"code"`
	TotalResponses         int            `json:"totalResponses"`
	TotalWeightedResponses float64        `json:"totalWeightedResponses"`
	Answers                []AnswerBucket `json:"answers"`
}

// AnswerBucket is one distinct answer value within a period.
type AnswerBucket struct {
	Response      string                              `json:"response"`
	Count         int                                 `json:"count"`
	WeightedCount float64                             `json:"weightedCount"`
	Demographics  map[string][]DemographicValueBucket `json:"demographics,omitempty"`
}

type DemographicValueBucket struct {
	Response      string  `json:"response"`
	Count         int     `json:"count"`
	WeightedCount float64 `json:"weightedCount"`
}

// Round2 rounds half-up to two decimal places. The nudge absorbs binary
// representation error so 1.005 rounds to 1.01.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	sign := 1.0
	if v < 0 {
		sign = -1
	}
	return sign * math.Floor(math.Abs(v)*100+0.5+1e-9) / 100
}
