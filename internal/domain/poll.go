package domain

import (
	"time"

	"github.com/google/uuid"
)

// PollStatus is the lifecycle state of a poll
type PollStatus string

const (
	PollStatusDraft     PollStatus = "DRAFT"
	PollStatusPublished PollStatus = "PUBLISHED"
	PollStatusClosed    PollStatus = "CLOSED"
	PollStatusEnded     PollStatus = "ENDED"
	PollStatusArchived  PollStatus = "ARCHIVED"
)

// Valid reports whether s is a known poll status
func (s PollStatus) Valid() bool {
	switch s {
	case PollStatusDraft, PollStatusPublished, PollStatusClosed, PollStatusEnded, PollStatusArchived:
		return true
	}
	return false
}

// AcceptsParticipants reports whether new sessions and responses are allowed
func (s PollStatus) AcceptsParticipants() bool {
	return s == PollStatusPublished
}

// Poll represents a survey owned by a user. The UUID is the only identifier
// ever exposed to anonymous respondents; the surrogate ID stays internal.
type Poll struct {
	ID              int        `json:"id"`
	UUID            uuid.UUID  `json:"uuid"`
	CreatedAt       time.Time  `json:"created_at"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	PollCover       *string    `json:"poll_cover,omitempty"`
	Status          PollStatus `json:"status"`
	PollURL         *string    `json:"poll_url,omitempty"`
	MaxParticipants *int       `json:"max_participants,omitempty"`
	ActiveDuration  *int       `json:"active_duration,omitempty"` // minutes a session stays valid
	UserID          int        `json:"user_id"`
	Questions       []Question `json:"questions,omitempty"`
}

// CreatePollRequest is the payload for creating a poll with nested questions
type CreatePollRequest struct {
	Title           string                  `json:"title"`
	Description     string                  `json:"description"`
	PollCover       *string                 `json:"poll_cover,omitempty"`
	MaxParticipants *int                    `json:"max_participants,omitempty"`
	ActiveDuration  *int                    `json:"active_duration,omitempty"`
	Questions       []CreateQuestionRequest `json:"questions"`
}

// UpdatePollRequest updates poll metadata; questions are replaced wholesale
// and only while the poll is still a draft.
type UpdatePollRequest struct {
	Title           *string                 `json:"title,omitempty"`
	Description     *string                 `json:"description,omitempty"`
	PollCover       *string                 `json:"poll_cover,omitempty"`
	MaxParticipants *int                    `json:"max_participants,omitempty"`
	ActiveDuration  *int                    `json:"active_duration,omitempty"`
	Questions       []CreateQuestionRequest `json:"questions,omitempty"`
}

// PollStatusUpdateRequest asks for a status transition
type PollStatusUpdateRequest struct {
	Status PollStatus `json:"status"`
}

// PollPage is one page of a user's poll listing
type PollPage struct {
	Polls      []Poll `json:"polls"`
	TotalPolls int    `json:"total_polls"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
}

// PollReport aggregates response statistics per question
type PollReport struct {
	PollID         int              `json:"poll_id"`
	Title          string           `json:"title"`
	TotalResponses int              `json:"total_responses"`
	Questions      []QuestionReport `json:"questions"`
}

// QuestionReport holds aggregate stats for one question
type QuestionReport struct {
	QuestionID   int            `json:"question_id"`
	Text         string         `json:"text"`
	Type         QuestionType   `json:"type"`
	AnswerCount  int            `json:"answer_count"`
	ChoiceCounts map[int]int    `json:"choice_counts,omitempty"` // choice id -> times picked
	TextAnswers  []string       `json:"text_answers,omitempty"`
}
