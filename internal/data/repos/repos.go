package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/surveytrends-backend/internal/data/repos/survey"
	"github.com/yungbote/surveytrends-backend/internal/platform/logger"
)

type QuestionInstanceRepo = survey.QuestionInstanceRepo
type AnswerRecordRepo = survey.AnswerRecordRepo

func NewQuestionInstanceRepo(db *gorm.DB, baseLog *logger.Logger) QuestionInstanceRepo {
	return survey.NewQuestionInstanceRepo(db, baseLog)
}

func NewAnswerRecordRepo(db *gorm.DB, baseLog *logger.Logger) AnswerRecordRepo {
	return survey.NewAnswerRecordRepo(db, baseLog)
}
