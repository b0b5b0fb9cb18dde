package survey

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/surveytrends-backend/internal/domain/survey"
	"github.com/yungbote/surveytrends-backend/internal/platform/logger"
)

type QuestionInstanceRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, questions []*types.QuestionInstance) ([]*types.QuestionInstance, error)
	ListAll(ctx context.Context, tx *gorm.DB) ([]*types.QuestionInstance, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.QuestionInstance, error)
	ListByCode(ctx context.Context, tx *gorm.DB, code string) ([]*types.QuestionInstance, error)
	ListByTheme(ctx context.Context, tx *gorm.DB, theme string) ([]*types.QuestionInstance, error)
}

type questionInstanceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQuestionInstanceRepo(db *gorm.DB, baseLog *logger.Logger) QuestionInstanceRepo {
	return &questionInstanceRepo{db: db, log: baseLog.With("repo", "QuestionInstanceRepo")}
}

// Upsert is the import pipeline's entry point; (round, code) is the identity.
func (r *questionInstanceRepo) Upsert(ctx context.Context, tx *gorm.DB, questions []*types.QuestionInstance) ([]*types.QuestionInstance, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if len(questions) == 0 {
		return []*types.QuestionInstance{}, nil
	}
	for _, q := range questions {
		q.Code = types.NormalizeCode(q.Code)
	}
	if err := t.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "round"}, {Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"text", "label", "theme", "possible_answers", "updated_at"}),
		}).
		Create(&questions).Error; err != nil {
		return nil, err
	}
	return questions, nil
}

func (r *questionInstanceRepo) ListAll(ctx context.Context, tx *gorm.DB) ([]*types.QuestionInstance, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var results []*types.QuestionInstance
	if err := t.WithContext(ctx).
		Order("round ASC, code ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *questionInstanceRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.QuestionInstance, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var q types.QuestionInstance
	if err := t.WithContext(ctx).Where("id = ?", id).First(&q).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *questionInstanceRepo) ListByCode(ctx context.Context, tx *gorm.DB, code string) ([]*types.QuestionInstance, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var results []*types.QuestionInstance
	code = types.NormalizeCode(code)
	if code == "" {
		return results, nil
	}
	if err := t.WithContext(ctx).
		Where("upper(code) = ?", code).
		Order("round ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *questionInstanceRepo) ListByTheme(ctx context.Context, tx *gorm.DB, theme string) ([]*types.QuestionInstance, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var results []*types.QuestionInstance
	theme = strings.TrimSpace(theme)
	if theme == "" {
		return results, nil
	}
	if err := t.WithContext(ctx).
		Where("theme = ?", theme).
		Order("round ASC, code ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
