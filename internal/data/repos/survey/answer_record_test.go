package survey

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/surveytrends-backend/internal/data/repos/testutil"
	types "github.com/yungbote/surveytrends-backend/internal/domain/survey"
)

func TestAnswerRecordRepo_StreamByRoundCodes(t *testing.T) {
	db := testutil.SQLite(t, "answers")
	ctx := context.Background()
	repo := NewAnswerRecordRepo(db, testutil.Logger(t))

	testutil.SeedRecord(t, ctx, db, "r1", "10", 2024, "P1", "Sim", "PESO", "1,25", "UF", "SP")
	testutil.SeedRecord(t, ctx, db, "r2", "10", 2024, "p1", "Não")
	testutil.SeedRecord(t, ctx, db, "r3", "10", 2024, "P2", "Sim")
	testutil.SeedRecord(t, ctx, db, "r4", "11", 2024, "P1", "Sim")

	var got []string
	err := repo.StreamByRoundCodes(ctx, nil, "10", []string{"p1"}, func(rec *types.AnswerRecord) error {
		got = append(got, rec.RespondentID)
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"r1", "r2"}, got)

	n, err := repo.CountByRound(ctx, nil, "10")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestAnswerRecordRepo_StreamStopsOnCallbackError(t *testing.T) {
	db := testutil.SQLite(t, "answers")
	ctx := context.Background()
	repo := NewAnswerRecordRepo(db, testutil.Logger(t))

	testutil.SeedRecord(t, ctx, db, "r1", "1", 2023, "P1", "a")
	testutil.SeedRecord(t, ctx, db, "r2", "1", 2023, "P1", "b")

	stop := errors.New("stop")
	calls := 0
	err := repo.StreamByRoundCodes(ctx, nil, "1", []string{"P1"}, func(*types.AnswerRecord) error {
		calls++
		return stop
	})
	require.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestAnswerRecordRepo_DecodesAnswerValues(t *testing.T) {
	db := testutil.SQLite(t, "answers")
	ctx := context.Background()
	repo := NewAnswerRecordRepo(db, testutil.Logger(t))

	testutil.SeedRecord(t, ctx, db, "r1", "3", 2022, "P9", 4, "PESO", 0.5)

	var rec *types.AnswerRecord
	require.NoError(t, repo.StreamByRoundCodes(ctx, nil, "3", []string{"P9"}, func(r *types.AnswerRecord) error {
		rec = r
		return nil
	}))
	require.NotNil(t, rec)
	v, ok := rec.Lookup("p9")
	require.True(t, ok)
	assert.Equal(t, "4", v)
	w, ok := rec.Lookup("PESO")
	require.True(t, ok)
	assert.Equal(t, "0.5", w)
}
