package testutil

import (
	"context"
	"testing"

	"gorm.io/gorm"

	types "github.com/yungbote/surveytrends-backend/internal/domain/survey"
)

func SeedQuestion(tb testing.TB, ctx context.Context, tx *gorm.DB, round, code, text, theme string) *types.QuestionInstance {
	tb.Helper()
	q := &types.QuestionInstance{
		Round: round,
		Code:  code,
		Text:  text,
		Theme: theme,
	}
	if err := tx.WithContext(ctx).Create(q).Error; err != nil {
		tb.Fatalf("seed question %s/%s: %v", round, code, err)
	}
	return q
}

// SeedRecord stores one interview; answers alternate key, value.
func SeedRecord(tb testing.TB, ctx context.Context, tx *gorm.DB, respondentID, round string, year int, answers ...any) *types.AnswerRecord {
	tb.Helper()
	if len(answers)%2 != 0 {
		tb.Fatalf("seed record %s: odd answer list", respondentID)
	}
	list := make([]types.Answer, 0, len(answers)/2)
	for i := 0; i < len(answers); i += 2 {
		key, _ := answers[i].(string)
		list = append(list, types.Answer{Key: key, Value: answers[i+1]})
	}
	rec := &types.AnswerRecord{
		RespondentID: respondentID,
		Round:        round,
		Year:         year,
		Answers:      list,
	}
	if err := tx.WithContext(ctx).Create(rec).Error; err != nil {
		tb.Fatalf("seed record %s: %v", respondentID, err)
	}
	return rec
}
