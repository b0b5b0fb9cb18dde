package responses

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/surveytrends-backend/internal/data/partition"
	repos "github.com/yungbote/surveytrends-backend/internal/data/repos/survey"
	"github.com/yungbote/surveytrends-backend/internal/data/repos/testutil"
	"github.com/yungbote/surveytrends-backend/internal/domain/survey"
)

func newAggregator(t *testing.T, opts Options, parts ...*partition.Partition) *PartitionAggregator {
	t.Helper()
	log := testutil.Logger(t)
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		names = append(names, p.Name)
	}
	router, err := partition.New(log, parts, map[string][]string{"survey": names}, parts[0].Name, "survey")
	require.NoError(t, err)
	extract, err := NewExtractor("", nil)
	require.NoError(t, err)
	return NewPartitionAggregator(log, router, repos.NewAnswerRecordRepo(parts[0].DB, log), extract, opts)
}

func codeSet(mode survey.AggregationMode, members ...survey.QuestionRef) *survey.ResolvedQuestionSet {
	return survey.NewResolvedSet(members[0].Code, "T", "", survey.StrategyCode, mode, members)
}

// unmigrated returns a partition whose queries always fail.
func unmigrated(t *testing.T, name string) *partition.Partition {
	t.Helper()
	dsn := fmt.Sprintf("file:broken_%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormLogger.Default.LogMode(gormLogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return &partition.Partition{Name: name, DB: gdb}
}

func TestAggregate_WeightedRecordWithDemographics(t *testing.T) {
	ctx := context.Background()
	db := testutil.SQLite(t, "main")
	testutil.SeedRecord(t, ctx, db, "r1", "10", 2024, "P1", "Sim", "PESO", "1,25", "UF", "SP")

	agg := newAggregator(t, DefaultOptions(), &partition.Partition{Name: "main", DB: db})
	res, err := agg.Aggregate(ctx, Request{
		Dataset:      "survey",
		Set:          codeSet(survey.ModeMerge, survey.QuestionRef{Round: "10", Code: "P1"}),
		Demographics: []string{"UF"},
	})
	require.NoError(t, err)
	assert.False(t, res.Partial)
	require.Len(t, res.Periods, 1)

	p := res.Periods[0]
	assert.Equal(t, 2024, p.Year)
	assert.Equal(t, "10", p.Round)
	assert.Equal(t, 1, p.TotalResponses)
	assert.Equal(t, 1.25, p.TotalWeightedResponses)
	assert.Equal(t, []survey.AnswerBucket{{
		Response:      "Sim",
		Count:         1,
		WeightedCount: 1.25,
		Demographics: map[string][]survey.DemographicValueBucket{
			"UF": {{Response: "SP", Count: 1, WeightedCount: 1.25}},
		},
	}}, p.Answers)
}

func TestAggregate_MergesPartitionsAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	phone := testutil.SQLite(t, "phone")
	web := testutil.SQLite(t, "web")
	testutil.SeedRecord(t, ctx, phone, "a1", "5", 2023, "P2", "Sim", "PESO", 2.0)
	testutil.SeedRecord(t, ctx, phone, "a2", "5", 2023, "P2", "Não")
	testutil.SeedRecord(t, ctx, phone, "a3", "5", 2023, "P2", "")
	testutil.SeedRecord(t, ctx, web, "b1", "5", 2023, "p2", "Sim", "peso", "0,5")
	testutil.SeedRecord(t, ctx, web, "b2", "7", 2024, "P2_NEW", "Não", "UF", "")
	testutil.SeedRecord(t, ctx, web, "b3", "7", 2024, "P9", "Sim")

	agg := newAggregator(t, DefaultOptions(),
		&partition.Partition{Name: "phone", DB: phone},
		&partition.Partition{Name: "web", DB: web},
	)
	req := Request{
		Dataset: "survey",
		Set: codeSet(survey.ModeMerge,
			survey.QuestionRef{Round: "5", Code: "P2"},
			survey.QuestionRef{Round: "7", Code: "P2_NEW"},
		),
		Demographics: []string{"UF"},
	}
	first, err := agg.Aggregate(ctx, req)
	require.NoError(t, err)
	second, err := agg.Aggregate(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	require.Len(t, first.Periods, 2)
	assert.Equal(t, "7", first.Periods[0].Round)
	assert.Equal(t, 1, first.Periods[0].TotalResponses)
	assert.Nil(t, first.Periods[0].Answers[0].Demographics)

	r5 := first.Periods[1]
	assert.Equal(t, 3, r5.TotalResponses)
	assert.Equal(t, 3.5, r5.TotalWeightedResponses)
	assert.Equal(t, "Sim", r5.Answers[0].Response)
	assert.Equal(t, 2, r5.Answers[0].Count)
	assert.Equal(t, 2.5, r5.Answers[0].WeightedCount)
}

func TestAggregate_LenientModeFlagsFailedPartition(t *testing.T) {
	ctx := context.Background()
	good := testutil.SQLite(t, "good")
	testutil.SeedRecord(t, ctx, good, "r1", "1", 2024, "P1", "Sim")

	opts := Options{RetryAttempts: 2, RetryInitial: time.Millisecond, Strict: false}
	agg := newAggregator(t, opts, &partition.Partition{Name: "good", DB: good}, unmigrated(t, "bad"))

	res, err := agg.Aggregate(ctx, Request{Set: codeSet(survey.ModeMerge, survey.QuestionRef{Round: "1", Code: "P1"})})
	require.NoError(t, err)
	assert.True(t, res.Partial)
	assert.Equal(t, []string{"bad"}, res.FailedPartitions)
	require.Len(t, res.Periods, 1)
	assert.Equal(t, 1, res.Periods[0].TotalResponses)
}

func TestAggregate_StrictModeFails(t *testing.T) {
	ctx := context.Background()
	good := testutil.SQLite(t, "good")
	opts := Options{RetryAttempts: 2, RetryInitial: time.Millisecond, Strict: true}
	agg := newAggregator(t, opts, &partition.Partition{Name: "good", DB: good}, unmigrated(t, "bad"))

	_, err := agg.Aggregate(ctx, Request{Set: codeSet(survey.ModeMerge, survey.QuestionRef{Round: "1", Code: "P1"})})
	require.Error(t, err)
	assert.True(t, survey.IsCode(err, survey.CodeBackendFailure))
}

func TestAggregate_UnknownDatasetAndMissingSet(t *testing.T) {
	db := testutil.SQLite(t, "main")
	agg := newAggregator(t, DefaultOptions(), &partition.Partition{Name: "main", DB: db})

	_, err := agg.Aggregate(context.Background(), Request{Dataset: "nope", Set: codeSet(survey.ModeMerge, survey.QuestionRef{Round: "1", Code: "P1"})})
	assert.True(t, survey.IsCode(err, survey.CodeNotFound))

	_, err = agg.Aggregate(context.Background(), Request{})
	assert.True(t, survey.IsCode(err, survey.CodeValidation))
}

func TestAggregate_PerVariable(t *testing.T) {
	ctx := context.Background()
	db := testutil.SQLite(t, "main")
	testutil.SeedRecord(t, ctx, db, "r1", "3", 2024, "P5#1", "Bom", "P5#2", "Ruim")
	testutil.SeedRecord(t, ctx, db, "r2", "3", 2024, "P5#2", "Bom")

	agg := newAggregator(t, DefaultOptions(), &partition.Partition{Name: "main", DB: db})
	res, err := agg.Aggregate(ctx, Request{Set: survey.NewResolvedSet("P5", "T", "", survey.StrategyMultiPart, survey.ModePerVariable, []survey.QuestionRef{
		{Round: "3", Code: "P5#1"},
		{Round: "3", Code: "P5#2"},
	})})
	require.NoError(t, err)
	require.Len(t, res.Periods, 1)
	p := res.Periods[0]
	assert.Equal(t, 2, p.TotalResponses)
	require.Len(t, p.Variables, 2)
	assert.Equal(t, "P5#1", p.Variables[0].Code)
	assert.Equal(t, 1, p.Variables[0].TotalResponses)
	assert.Equal(t, 2, p.Variables[1].TotalResponses)
}
