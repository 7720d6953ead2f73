package domain

import "time"

// Response is one answered question within one poll. The session token ties
// responses of the same respondent together for reporting without ever
// identifying the respondent.
type Response struct {
	ID           int       `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	PollID       int       `json:"poll_id"`
	QuestionID   int       `json:"question_id"`
	AnswerChoice []int     `json:"answer_choice,omitempty"`
	AnswerText   []string  `json:"answer_text,omitempty"`
	SessionToken string    `json:"-"`
}

// AnswerPayload is one submitted answer keyed by question id. Exactly one of
// the choice/text fields must be populated, matching the question's type.
type AnswerPayload struct {
	QuestionID int      `json:"question_id"`
	ChoiceID   *int     `json:"choice_id,omitempty"`
	ChoiceIDs  []int    `json:"choice_ids,omitempty"`
	AnswerText []string `json:"answer_text,omitempty"`
}

// SubmitResponsesRequest is the body of an anonymous response submission
type SubmitResponsesRequest struct {
	Responses []AnswerPayload `json:"responses"`
}
