package model

import (
	"time"

	"gorm.io/datatypes"
)

// Question is authored outside the service and read-only to it.
type Question struct {
	ID          string                      `json:"id" gorm:"primaryKey;size:64"`
	Topic       Topic                       `json:"topic" gorm:"size:32;not null;index:idx_question_pool,priority:1"`
	Level       int                         `json:"level" gorm:"not null;index:idx_question_pool,priority:2"`
	Prompt      string                      `json:"prompt" gorm:"not null"`
	Choices     datatypes.JSONSlice[string] `json:"choices"`
	AnswerKey   string                      `json:"-" gorm:"not null"`
	Explanation string                      `json:"explanation,omitempty"`
	MediaURL    string                      `json:"media_url,omitempty"`
	Active      bool                        `json:"active" gorm:"not null;index:idx_question_pool,priority:3"`
	CreatedAt   time.Time                   `json:"created_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`
}

// UserProgress is the authoritative proficiency record of one user.
type UserProgress struct {
	UserID              string    `json:"user_id" gorm:"primaryKey;size:128"`
	Level               int       `json:"level" gorm:"not null"`
	Topic               Topic     `json:"topic" gorm:"size:32;not null"`
	AssessmentCompleted bool      `json:"assessment_completed" gorm:"not null"`
	Streak              int       `json:"streak" gorm:"not null"`
	PendingPromotion    bool      `json:"pending_promotion" gorm:"not null"`
	OfferedLevel        int       `json:"offered_level,omitempty" gorm:"not null"`
	Version             int64     `json:"-" gorm:"not null"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (UserProgress) TableName() string { return "user_progress" }

const (
	SourcePractice   = "practice"
	SourceAssessment = "assessment"
)

// Attempt rows are append-only.
type Attempt struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	UserID          string    `json:"user_id" gorm:"size:128;not null;index:idx_attempt_user_time,priority:1"`
	QuestionID      string    `json:"question_id" gorm:"size:64;not null;index"`
	Topic           Topic     `json:"topic" gorm:"size:32;not null"`
	Level           int       `json:"level" gorm:"not null"`
	IsCorrect       bool      `json:"is_correct" gorm:"not null"`
	CanonicalAnswer string    `json:"canonical_answer"`
	RawAnswer       string    `json:"raw_answer"`
	Signal          string    `json:"signal,omitempty" gorm:"size:16"`
	Source          string    `json:"source" gorm:"size:16;not null"`
	SessionID       string    `json:"session_id,omitempty" gorm:"size:64;index"`
	CreatedAt       time.Time `json:"created_at" gorm:"index:idx_attempt_user_time,priority:2"`
}

const (
	SessionActive   = "active"
	SessionFinished = "finished"
)

// AssessmentSession holds the working level of a placement run. It becomes
// immutable once Status is SessionFinished.
type AssessmentSession struct {
	ID               string                      `json:"session_id" gorm:"primaryKey;size:64"`
	UserID           string                      `json:"user_id" gorm:"size:128;not null;index"`
	Topic            Topic                       `json:"topic" gorm:"size:32;not null"`
	Asked            int                         `json:"asked" gorm:"not null"`
	Correct          int                         `json:"correct" gorm:"not null"`
	StartLevel       int                         `json:"start_level" gorm:"not null"`
	WorkingLevel     int                         `json:"working_level" gorm:"not null"`
	LastQuestionID   string                      `json:"last_question_id" gorm:"size:64"`
	AskedQuestionIDs datatypes.JSONSlice[string] `json:"asked_question_ids"`
	Status           string                      `json:"status" gorm:"size:16;not null"`
	Version          int64                       `json:"-" gorm:"not null"`
	CreatedAt        time.Time                   `json:"created_at"`
	UpdatedAt        time.Time                   `json:"updated_at"`
	FinishedAt       *time.Time                  `json:"finished_at,omitempty"`
}

func (s *AssessmentSession) Finished() bool { return s.Status == SessionFinished }

// SessionState is one entry of the database-backed session store.
type SessionState struct {
	Key       string         `gorm:"column:session_key;primaryKey;size:191"`
	Value     datatypes.JSON `gorm:"not null"`
	ExpiresAt *time.Time     `gorm:"index"`
	UpdatedAt time.Time
}

func (SessionState) TableName() string { return "session_states" }

// All lists every persisted model, in migration order.
func All() []interface{} {
	return []interface{}{
		&Question{},
		&UserProgress{},
		&Attempt{},
		&AssessmentSession{},
		&SessionState{},
	}
}
