package responses

import (
	"github.com/yungbote/surveytrends-backend/internal/domain/survey"
)

// Accumulator folds records into period buckets. Every level is an
// index-addressed slice so output keeps first-seen order until finalization.
// It is owned by one goroutine at a time.
type Accumulator struct {
	mode     survey.AggregationMode
	periods  []*periodAcc
	periodAt map[periodKey]int
}

type periodKey struct {
	year  int
	round string
}

type periodAcc struct {
	year     int
	round    string
	count    int
	weighted float64
	answers  answerTable
	vars     []*variableAcc
	varAt    map[string]int
}

type variableAcc struct {
	code     string
	count    int
	weighted float64
	answers  answerTable
}

type answerTable struct {
	buckets []*answerAcc
	at      map[string]int
}

type answerAcc struct {
	response  string
	count     int
	weighted  float64
	demoOrder []string
	demo      map[string]*valueTable
}

type valueTable struct {
	values []*valueAcc
	at     map[string]int
}

type valueAcc struct {
	response string
	count    int
	weighted float64
}

func NewAccumulator(mode survey.AggregationMode) *Accumulator {
	if mode == "" {
		mode = survey.ModeMerge
	}
	return &Accumulator{mode: mode, periodAt: map[periodKey]int{}}
}

func (a *Accumulator) Mode() survey.AggregationMode { return a.mode }

// Fold adds one record. codes are the target codes of the record's round.
// In merge mode the first target with a value is the answer; in per-variable
// mode every target with a value feeds its own distribution. Records with no
// usable value are skipped and Fold reports false.
func (a *Accumulator) Fold(rec *survey.AnswerRecord, codes []string, weight float64, demo map[string]string) bool {
	if a.mode == survey.ModePerVariable {
		folded := false
		for _, code := range codes {
			v, ok := rec.Lookup(code)
			if !ok || v == "" {
				continue
			}
			if !folded {
				a.AddPeriod(rec.Year, rec.Round, 1, weight)
				folded = true
			}
			a.AddVariable(rec.Year, rec.Round, code, 1, weight)
			a.addAnswer(rec.Year, rec.Round, code, v, 1, weight, demo)
		}
		return folded
	}
	for _, code := range codes {
		v, ok := rec.Lookup(code)
		if !ok || v == "" {
			continue
		}
		a.AddPeriod(rec.Year, rec.Round, 1, weight)
		a.addAnswer(rec.Year, rec.Round, code, v, 1, weight, demo)
		return true
	}
	return false
}

// AddPeriod adds pre-aggregated respondent totals to a period.
func (a *Accumulator) AddPeriod(year int, round string, count int, weighted float64) {
	p := a.period(year, round)
	p.count += count
	p.weighted += weighted
}

// AddVariable adds pre-aggregated totals to one code's distribution. It is a
// no-op in merge mode.
func (a *Accumulator) AddVariable(year int, round, code string, count int, weighted float64) {
	if a.mode != survey.ModePerVariable {
		return
	}
	v := a.period(year, round).variable(code)
	v.count += count
	v.weighted += weighted
}

// AddAnswer adds a pre-aggregated answer count. code is ignored in merge mode.
func (a *Accumulator) AddAnswer(year int, round, code, response string, count int, weighted float64) {
	a.answers(year, round, code).answer(response).add(count, weighted)
}

// AddDemographic adds a pre-aggregated demographic cell under an answer.
func (a *Accumulator) AddDemographic(year int, round, code, response, field, value string, count int, weighted float64) {
	if value == "" {
		return
	}
	a.answers(year, round, code).answer(response).demographic(field).value(value).add(count, weighted)
}

// Merge adds everything other accumulated, in other's order.
func (a *Accumulator) Merge(other *Accumulator) {
	if other == nil {
		return
	}
	for _, op := range other.periods {
		p := a.period(op.year, op.round)
		p.count += op.count
		p.weighted += op.weighted
		p.answers.merge(&op.answers)
		for _, ov := range op.vars {
			v := p.variable(ov.code)
			v.count += ov.count
			v.weighted += ov.weighted
			v.answers.merge(&ov.answers)
		}
	}
}

// Buckets returns the raw, unrounded and unsorted buckets.
func (a *Accumulator) Buckets() []survey.PeriodBucket {
	out := make([]survey.PeriodBucket, 0, len(a.periods))
	for _, p := range a.periods {
		pb := survey.PeriodBucket{
			Year:                   p.year,
			Round:                  p.round,
			TotalResponses:         p.count,
			TotalWeightedResponses: p.weighted,
			Answers:                p.answers.buckets(),
		}
		for _, v := range p.vars {
			pb.Variables = append(pb.Variables, survey.VariableDistribution{
				Code:                   v.code,
				TotalResponses:         v.count,
				TotalWeightedResponses: v.weighted,
				Answers:                v.answers.buckets(),
			})
		}
		out = append(out, pb)
	}
	return out
}

func (a *Accumulator) addAnswer(year int, round, code, response string, count int, weighted float64, demo map[string]string) {
	ans := a.answers(year, round, code).answer(response)
	ans.add(count, weighted)
	for field, value := range demo {
		if value != "" {
			ans.demographic(field).value(value).add(count, weighted)
		}
	}
}

func (a *Accumulator) answers(year int, round, code string) *answerTable {
	p := a.period(year, round)
	if a.mode == survey.ModePerVariable {
		return &p.variable(code).answers
	}
	return &p.answers
}

func (a *Accumulator) period(year int, round string) *periodAcc {
	k := periodKey{year: year, round: round}
	if i, ok := a.periodAt[k]; ok {
		return a.periods[i]
	}
	p := &periodAcc{year: year, round: round, varAt: map[string]int{}}
	a.periodAt[k] = len(a.periods)
	a.periods = append(a.periods, p)
	return p
}

func (p *periodAcc) variable(code string) *variableAcc {
	code = survey.NormalizeCode(code)
	if i, ok := p.varAt[code]; ok {
		return p.vars[i]
	}
	v := &variableAcc{code: code}
	p.varAt[code] = len(p.vars)
	p.vars = append(p.vars, v)
	return v
}

func (t *answerTable) answer(response string) *answerAcc {
	if t.at == nil {
		t.at = map[string]int{}
	}
	if i, ok := t.at[response]; ok {
		return t.buckets[i]
	}
	b := &answerAcc{response: response}
	t.at[response] = len(t.buckets)
	t.buckets = append(t.buckets, b)
	return b
}

func (t *answerTable) merge(o *answerTable) {
	for _, ob := range o.buckets {
		b := t.answer(ob.response)
		b.add(ob.count, ob.weighted)
		for _, field := range ob.demoOrder {
			vt := b.demographic(field)
			for _, ov := range ob.demo[field].values {
				vt.value(ov.response).add(ov.count, ov.weighted)
			}
		}
	}
}

func (t *answerTable) buckets() []survey.AnswerBucket {
	out := make([]survey.AnswerBucket, 0, len(t.buckets))
	for _, b := range t.buckets {
		ab := survey.AnswerBucket{Response: b.response, Count: b.count, WeightedCount: b.weighted}
		if len(b.demoOrder) > 0 {
			ab.Demographics = make(map[string][]survey.DemographicValueBucket, len(b.demoOrder))
			for _, field := range b.demoOrder {
				vals := b.demo[field].values
				list := make([]survey.DemographicValueBucket, 0, len(vals))
				for _, v := range vals {
					list = append(list, survey.DemographicValueBucket{Response: v.response, Count: v.count, WeightedCount: v.weighted})
				}
				ab.Demographics[field] = list
			}
		}
		out = append(out, ab)
	}
	return out
}

func (b *answerAcc) add(count int, weighted float64) {
	b.count += count
	b.weighted += weighted
}

func (b *answerAcc) demographic(field string) *valueTable {
	if b.demo == nil {
		b.demo = map[string]*valueTable{}
	}
	if vt, ok := b.demo[field]; ok {
		return vt
	}
	vt := &valueTable{at: map[string]int{}}
	b.demo[field] = vt
	b.demoOrder = append(b.demoOrder, field)
	return vt
}

func (t *valueTable) value(response string) *valueAcc {
	if i, ok := t.at[response]; ok {
		return t.values[i]
	}
	v := &valueAcc{response: response}
	t.at[response] = len(t.values)
	t.values = append(t.values, v)
	return v
}

func (v *valueAcc) add(count int, weighted float64) {
	v.count += count
	v.weighted += weighted
}
