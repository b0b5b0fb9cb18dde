package survey

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Answer is one sparse (variable code, value) pair of an interview.
// Value is whatever the import wrote: string, number or nil.
type Answer struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// AnswerRecord is one interview. The core never writes these.
type AnswerRecord struct {
	ID           uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	RespondentID string                      `gorm:"column:respondent_id;not null;index" json:"respondent_id"`
	Round        string                      `gorm:"column:round;not null;index:idx_answer_record_round_year" json:"round"`
	Year         int                         `gorm:"column:year;not null;index:idx_answer_record_round_year" json:"year"`
	Answers      datatypes.JSONSlice[Answer] `gorm:"column:answers;not null" json:"answers"`
	CreatedAt    time.Time                   `gorm:"not null" json:"created_at"`
}

func (AnswerRecord) TableName() string { return "answer_record" }

func (r *AnswerRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Lookup returns the value of the first answer whose key equals code, ignoring case.
// Duplicated keys should not exist; when they do the first one wins.
func (r *AnswerRecord) Lookup(code string) (string, bool) {
	for _, a := range r.Answers {
		if strings.EqualFold(strings.TrimSpace(a.Key), code) {
			return ScalarString(a.Value), true
		}
	}
	return "", false
}

// ScalarString renders an answer value the way it is compared and displayed.
func ScalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
