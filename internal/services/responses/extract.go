package responses

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/yungbote/surveytrends-backend/internal/domain/survey"
)

const DefaultWeightPattern = `(?i)^(peso|weight)`

// DefaultDemographicFields is the allow-list used when none is configured.
var DefaultDemographicFields = []string{"UF", "REGIAO", "SEXO", "IDADE", "FAIXA_ETARIA", "ESCOLARIDADE", "RENDA", "RELIGIAO"}

// Extractor pulls the weight and demographic values out of a sparse record.
type Extractor struct {
	weightKey *regexp.Regexp
	allowed   map[string]string
}

func NewExtractor(weightPattern string, allowList []string) (*Extractor, error) {
	if strings.TrimSpace(weightPattern) == "" {
		weightPattern = DefaultWeightPattern
	}
	re, err := regexp.Compile(weightPattern)
	if err != nil {
		return nil, survey.NewError(survey.CodeValidation, "responses.NewExtractor", "invalid weight pattern", err)
	}
	if allowList == nil {
		allowList = DefaultDemographicFields
	}
	allowed := make(map[string]string, len(allowList))
	for _, f := range allowList {
		if f = strings.TrimSpace(f); f != "" {
			allowed[strings.ToUpper(f)] = f
		}
	}
	return &Extractor{weightKey: re, allowed: allowed}, nil
}

// Fields intersects the requested demographic fields with the allow-list,
// keeping request order and casing.
func (e *Extractor) Fields(requested []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, f := range requested {
		k := strings.ToUpper(strings.TrimSpace(f))
		if _, ok := e.allowed[k]; !ok {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, strings.TrimSpace(f))
	}
	return out
}

// Weight returns the first weight-like answer of the record, 1.0 when absent.
func (e *Extractor) Weight(rec *survey.AnswerRecord) float64 {
	for _, a := range rec.Answers {
		if e.weightKey.MatchString(strings.TrimSpace(a.Key)) {
			return ParseWeight(a.Value)
		}
	}
	return 1.0
}

// Demographics returns the non-empty values of fields present in the record.
func (e *Extractor) Demographics(rec *survey.AnswerRecord, fields []string) map[string]string {
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		if v, ok := rec.Lookup(f); ok && v != "" {
			out[f] = v
		}
	}
	return out
}

// ParseWeight reads numbers and locale decimals such as "1,25" or "1.234,5".
// Anything else, including NaN and infinities, weighs 1.0.
func ParseWeight(v any) float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 1.0
		}
		if strings.Contains(s, ",") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 1.0
		}
		f = parsed
	default:
		return 1.0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 1.0
	}
	return f
}
