package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/surveytrends-backend/internal/data/repos"
	"github.com/yungbote/surveytrends-backend/internal/platform/logger"
)

type Repos struct {
	QuestionInstance repos.QuestionInstanceRepo
	AnswerRecord     repos.AnswerRecordRepo
}

// wireRepos binds the repos to the catalog pool. Partition queries pass their
// own handle per call.
func wireRepos(catalog *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		QuestionInstance: repos.NewQuestionInstanceRepo(catalog, log),
		AnswerRecord:     repos.NewAnswerRecordRepo(catalog, log),
	}
}
