package survey

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/surveytrends-backend/internal/data/repos/testutil"
	types "github.com/yungbote/surveytrends-backend/internal/domain/survey"
)

func TestQuestionInstanceRepo(t *testing.T) {
	db := testutil.SQLite(t, "catalog")
	ctx := context.Background()
	repo := NewQuestionInstanceRepo(db, testutil.Logger(t))

	q1 := testutil.SeedQuestion(t, ctx, db, "5", "p2", "Do you approve?", "Tracking")
	testutil.SeedQuestion(t, ctx, db, "7", "P2_NEW", "Do you approve?", "Tracking")
	testutil.SeedQuestion(t, ctx, db, "7", "P3", "Other", "Economy")

	assert.Equal(t, "P2", q1.Code)

	all, err := repo.ListAll(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byCode, err := repo.ListByCode(ctx, nil, "p2")
	require.NoError(t, err)
	require.Len(t, byCode, 1)
	assert.Equal(t, "5", byCode[0].Round)

	byTheme, err := repo.ListByTheme(ctx, nil, "Tracking")
	require.NoError(t, err)
	assert.Len(t, byTheme, 2)

	got, err := repo.GetByID(ctx, nil, q1.ID)
	require.NoError(t, err)
	assert.Equal(t, "Do you approve?", got.Text)
}

func TestQuestionInstanceRepo_UpsertKeepsRoundCodeIdentity(t *testing.T) {
	db := testutil.SQLite(t, "catalog")
	ctx := context.Background()
	repo := NewQuestionInstanceRepo(db, testutil.Logger(t))

	_, err := repo.Upsert(ctx, nil, []*types.QuestionInstance{{Round: "1", Code: "P1", Text: "old", Theme: "T"}})
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, nil, []*types.QuestionInstance{{Round: "1", Code: "p1", Text: "new", Theme: "T"}})
	require.NoError(t, err)

	all, err := repo.ListAll(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "new", all[0].Text)
}
