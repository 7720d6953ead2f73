package domain

// QuestionType determines which answer shape a question accepts
type QuestionType string

const (
	QuestionTypeSingle   QuestionType = "SINGLE ANSWER"    // exactly one choice
	QuestionTypePlural   QuestionType = "PLURAL ANSWER"    // one or more choices
	QuestionTypeFree     QuestionType = "FREE ANSWER"      // multiple text fields
	QuestionTypeFreeText QuestionType = "FREE TEXT ANSWER" // single text field
)

// Valid reports whether t is a known question type
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionTypeSingle, QuestionTypePlural, QuestionTypeFree, QuestionTypeFreeText:
		return true
	}
	return false
}

// TakesChoices reports whether the question is answered by picking choices
func (t QuestionType) TakesChoices() bool {
	return t == QuestionTypeSingle || t == QuestionTypePlural
}

// Question is an ordered child of a poll
type Question struct {
	ID                int          `json:"id"`
	PollID            int          `json:"poll_id"`
	Type              QuestionType `json:"type"`
	Text              string       `json:"text"`
	QuestionCover     *string      `json:"question_cover,omitempty"`
	OptionPass        bool         `json:"option_pass"`
	OptionOtherAnswer bool         `json:"option_other_answer"`
	SortOrder         int          `json:"order"`
	Choices           []Choice     `json:"choices,omitempty"`
}

// ChoiceByID returns the question's choice with the given id, or nil
func (q *Question) ChoiceByID(choiceID int) *Choice {
	for i := range q.Choices {
		if q.Choices[i].ID == choiceID {
			return &q.Choices[i]
		}
	}
	return nil
}

// Choice is an ordered answer option of a question
type Choice struct {
	ID              int     `json:"id"`
	QuestionID      int     `json:"question_id"`
	Text            string  `json:"text"`
	ChoiceCover     *string `json:"choice_cover,omitempty"`
	TextFieldsCount *int    `json:"text_fields_count,omitempty"`
}

// CreateQuestionRequest is the nested question payload used at poll creation
type CreateQuestionRequest struct {
	Type              QuestionType          `json:"type"`
	Text              string                `json:"text"`
	QuestionCover     *string               `json:"question_cover,omitempty"`
	OptionPass        bool                  `json:"option_pass"`
	OptionOtherAnswer bool                  `json:"option_other_answer"`
	SortOrder         int                   `json:"order"`
	Choices           []CreateChoiceRequest `json:"choices"`
}

// CreateChoiceRequest is the nested choice payload used at poll creation
type CreateChoiceRequest struct {
	Text            string  `json:"text"`
	ChoiceCover     *string `json:"choice_cover,omitempty"`
	TextFieldsCount *int    `json:"text_fields_count,omitempty"`
}
