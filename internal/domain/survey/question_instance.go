package survey

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// QuestionInstance is one question as fielded in one round.
type QuestionInstance struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	Round string `gorm:"column:round;not null;uniqueIndex:idx_question_round_code" json:"round"`
	Code  string `gorm:"column:code;not null;uniqueIndex:idx_question_round_code;index" json:"code"`

	Text  string `gorm:"column:text;type:text;not null" json:"text"`
	Label string `gorm:"column:label" json:"label,omitempty"`
	Theme string `gorm:"column:theme;not null;index" json:"theme"`

	PossibleAnswers datatypes.JSONSlice[string] `gorm:"column:possible_answers" json:"possible_answers,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (QuestionInstance) TableName() string { return "question_instance" }

func (q *QuestionInstance) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	q.Code = NormalizeCode(q.Code)
	return nil
}

// Ref is the (round, code) identity of the instance.
func (q QuestionInstance) Ref() QuestionRef {
	return QuestionRef{ID: q.ID, Round: q.Round, Code: NormalizeCode(q.Code), Text: q.Text, Theme: q.Theme}
}
