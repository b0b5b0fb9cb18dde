package questions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/surveytrends-backend/internal/domain/survey"
)

func TestKeywordStrategy_RanksByTokenOccurrences(t *testing.T) {
	s := NewKeywordStrategy(nil)
	instances := []survey.QuestionInstance{
		q("1", "P1", "Rate the economy", "Eco"),
		q("1", "P2", "Rate the economy and the economy outlook", "Eco"),
		q("1", "P3", "Unrelated", "Eco"),
	}
	got := s.Rank("economy of it", instances, 5)
	require.Len(t, got, 2)
	assert.Equal(t, "P2", got[0].Code)
	assert.Equal(t, 2.0, got[0].Score)
	assert.Equal(t, 1.0, got[1].Score)
}

func TestKeywordStrategy_BonusAndLimit(t *testing.T) {
	s := NewKeywordStrategy(map[string]float64{"Governo": 2})
	var instances []survey.QuestionInstance
	for i := 0; i < 8; i++ {
		instances = append(instances, q("1", "P"+string(rune('A'+i)), "avaliação do governo", "Gov"))
	}
	got := s.Rank("governo", instances, 5)
	require.Len(t, got, 5)
	assert.Equal(t, 3.0, got[0].Score)
}

func TestKeywordStrategy_ShortTokensIgnored(t *testing.T) {
	s := NewKeywordStrategy(nil)
	got := s.Rank("do it", []survey.QuestionInstance{q("1", "P1", "do it now", "T")}, 5)
	assert.Empty(t, got)
}
