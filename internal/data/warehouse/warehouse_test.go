package warehouse

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/surveytrends-backend/internal/domain/survey"
	"github.com/yungbote/surveytrends-backend/internal/platform/logger"
)

func TestPairArgs(t *testing.T) {
	rounds, codes := pairArgs([]survey.RoundCodes{
		{Round: "5", Codes: []string{"p2"}},
		{Round: "7", Codes: []string{"P5#1", "P5#2"}},
	})
	assert.Equal(t, []string{"5", "7", "7"}, rounds)
	assert.Equal(t, []string{"P2", "P5#1", "P5#2"}, codes)
}

func TestQuoteTable(t *testing.T) {
	got, err := quoteTable("")
	require.NoError(t, err)
	assert.Equal(t, `"response_fact"`, got)

	got, err = quoteTable("analytics.response_fact")
	require.NoError(t, err)
	assert.Equal(t, `"analytics"."response_fact"`, got)

	got, err = quoteTable(`x"; DROP TABLE y; --`)
	require.NoError(t, err)
	assert.Equal(t, `"x""; DROP TABLE y; --"`, got)

	_, err = quoteTable("a..b")
	assert.Error(t, err)
}

func TestSQLBuilders(t *testing.T) {
	merged := periodTotalsSQL(`"response_fact"`, false)
	assert.Contains(t, merged, "DISTINCT ON (f.year, f.round, f.respondent_id)")
	assert.Contains(t, merged, pairFilter)

	perVar := periodTotalsSQL(`"response_fact"`, true)
	assert.Contains(t, perVar, "COUNT(DISTINCT f.respondent_id)")
	assert.Contains(t, perVar, "GROUP BY f.year, f.round, upper(f.code)")

	demo := demographicCountsSQL(`"response_fact"`)
	assert.Contains(t, demo, "jsonb_each_text(f.demographics)")
	assert.Contains(t, demo, "$3::text[]")
	assert.Equal(t, 1, strings.Count(answerCountsSQL(`"t"`), `"t"`))
}

func TestClassify(t *testing.T) {
	assert.True(t, survey.IsCode(classify("op", context.DeadlineExceeded), survey.CodeTimeout))
	assert.True(t, survey.IsCode(classify("op", fmt.Errorf("q: %w", &pgconn.PgError{Code: "57014"})), survey.CodeTimeout))
	assert.True(t, survey.IsCode(classify("op", errors.New("connection refused")), survey.CodeBackendFailure))
	assert.Nil(t, classify("op", nil))
}

func TestStore_Integration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("set TEST_POSTGRES_DSN to run warehouse integration tests")
	}
	ctx := context.Background()
	table := "response_fact_test"
	s, err := Open(ctx, logger.NewTest(t), Config{DSN: dsn, Table: table})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.pool.Exec(ctx, `DROP TABLE IF EXISTS `+table+`;
CREATE TABLE `+table+` (respondent_id text, year int, round text, code text, value text, weight double precision, demographics jsonb)`)
	require.NoError(t, err)
	defer func() { _, _ = s.pool.Exec(ctx, `DROP TABLE IF EXISTS `+table) }()

	_, err = s.pool.Exec(ctx, `INSERT INTO `+table+` VALUES
('r1', 2024, '10', 'P1', 'Sim', 1.25, '{"UF":"SP"}'),
('r2', 2024, '10', 'P1', 'Não', 1.0, '{"UF":""}'),
('r3', 2024, '11', 'P1', 'Sim', 2.0, '{}')`)
	require.NoError(t, err)

	targets := []survey.RoundCodes{{Round: "10", Codes: []string{"p1"}}}
	totals, err := s.PeriodTotals(ctx, targets, false)
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.EqualValues(t, 2, totals[0].Respondents)
	assert.InDelta(t, 2.25, totals[0].Weighted, 1e-9)

	answers, err := s.AnswerCounts(ctx, targets)
	require.NoError(t, err)
	assert.Len(t, answers, 2)

	demo, err := s.DemographicCounts(ctx, targets, []string{"uf"})
	require.NoError(t, err)
	require.Len(t, demo, 1)
	assert.Equal(t, "uf", demo[0].Field)
	assert.Equal(t, "SP", demo[0].Value)
}
