package survey

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/surveytrends-backend/internal/domain/survey"
	"github.com/yungbote/surveytrends-backend/internal/platform/logger"
)

type AnswerRecordRepo interface {
	Create(ctx context.Context, tx *gorm.DB, records []*types.AnswerRecord) ([]*types.AnswerRecord, error)
	// StreamByRoundCodes calls fn for every record of round whose answer list
	// holds at least one of codes. Rows are read through a cursor, never
	// materialized as a slice.
	StreamByRoundCodes(ctx context.Context, tx *gorm.DB, round string, codes []string, fn func(*types.AnswerRecord) error) error
	CountByRound(ctx context.Context, tx *gorm.DB, round string) (int64, error)
}

type answerRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAnswerRecordRepo(db *gorm.DB, baseLog *logger.Logger) AnswerRecordRepo {
	return &answerRecordRepo{db: db, log: baseLog.With("repo", "AnswerRecordRepo")}
}

func (r *answerRecordRepo) Create(ctx context.Context, tx *gorm.DB, records []*types.AnswerRecord) ([]*types.AnswerRecord, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if len(records) == 0 {
		return []*types.AnswerRecord{}, nil
	}
	if err := t.WithContext(ctx).CreateInBatches(&records, 500).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *answerRecordRepo) StreamByRoundCodes(ctx context.Context, tx *gorm.DB, round string, codes []string, fn func(*types.AnswerRecord) error) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if len(codes) == 0 {
		return nil
	}
	upper := make([]string, 0, len(codes))
	for _, c := range codes {
		upper = append(upper, types.NormalizeCode(c))
	}

	pred, err := answerKeyPredicate(t.Dialector.Name())
	if err != nil {
		return err
	}

	rows, err := t.WithContext(ctx).
		Model(&types.AnswerRecord{}).
		Where("round = ?", round).
		Where(pred, upper).
		Order("created_at ASC, id ASC").
		Rows()
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var rec types.AnswerRecord
		if err := t.ScanRows(rows, &rec); err != nil {
			return fmt.Errorf("scan answer record: %w", err)
		}
		if err := fn(&rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *answerRecordRepo) CountByRound(ctx context.Context, tx *gorm.DB, round string) (int64, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var n int64
	if err := t.WithContext(ctx).
		Model(&types.AnswerRecord{}).
		Where("round = ?", round).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// answerKeyPredicate matches records whose answers contain any of the
// (upper-cased) codes bound to its single placeholder.
func answerKeyPredicate(dialect string) (string, error) {
	switch dialect {
	case "postgres":
		return `EXISTS (SELECT 1 FROM jsonb_array_elements(answer_record.answers::jsonb) AS a WHERE upper(a->>'key') IN ?)`, nil
	case "sqlite":
		return `EXISTS (SELECT 1 FROM json_each(answer_record.answers) AS a WHERE upper(json_extract(a.value, '$.key')) IN ?)`, nil
	default:
		return "", fmt.Errorf("answer records: unsupported dialect %q", dialect)
	}
}
