package model

// Answer is the latest response to one question within one test.
// Exactly one of SelectedIndex and TextAnswer is set.
type Answer struct {
	TestID        int     `json:"test_id"`
	QuestionID    int     `json:"question_id"`
	SelectedIndex *int    `json:"selected_index,omitempty"`
	TextAnswer    *string `json:"text_answer,omitempty"`
}

// AnswerInput is a single answer in a submission batch.
type AnswerInput struct {
	QuestionID    int     `json:"question_id"`
	SelectedIndex *int    `json:"selected_index"`
	TextAnswer    *string `json:"text_answer"`
}

// SubmitAnswersRequest is the payload for submitting a page of answers.
type SubmitAnswersRequest struct {
	Answers []AnswerInput `json:"answers" binding:"required"`
}
