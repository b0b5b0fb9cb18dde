package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/surveytrends-backend/internal/domain/survey"
)

// AutoMigrateAll creates the tables the core reads. In production the import
// pipeline owns the schema; this keeps local and test partitions usable.
func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&survey.QuestionInstance{},
		&survey.AnswerRecord{},
	); err != nil {
		return err
	}
	if db.Dialector.Name() != DriverPostgres {
		return nil
	}

	// Key containment lookups over the sparse answer list.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_answer_record_answers_gin
		ON answer_record
		USING GIN ((answers::jsonb) jsonb_path_ops);
	`).Error; err != nil {
		return fmt.Errorf("create idx_answer_record_answers_gin: %w", err)
	}

	// Theme browse and text expansion.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_question_instance_theme_text
		ON question_instance (theme, md5(text));
	`).Error; err != nil {
		return fmt.Errorf("create idx_question_instance_theme_text: %w", err)
	}
	return nil
}
