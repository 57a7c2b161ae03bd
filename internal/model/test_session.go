package model

import "time"

// ExamType selects the question set and scoring scale of a test.
type ExamType string

const (
	ExamTypePlacement ExamType = "placement"
	ExamTypeSAT       ExamType = "sat"
)

// ParseExamType maps s to an exam type. Anything unrecognized is a placement test.
func ParseExamType(s string) ExamType {
	if ExamType(s) == ExamTypeSAT {
		return ExamTypeSAT
	}
	return ExamTypePlacement
}

// Banks returns the banks whose questions make up the exam, in display order.
func (e ExamType) Banks() []Bank {
	if e == ExamTypeSAT {
		return []Bank{BankSATVerbal, BankSATMath}
	}
	return []Bank{BankPlacement}
}

// TestStatus enumerates test session states.
type TestStatus string

const (
	TestStatusInProgress TestStatus = "in_progress"
	TestStatusCompleted  TestStatus = "completed"
)

// TestPhase is derived from the score and finish fields.
type TestPhase string

const (
	TestPhaseStarted     TestPhase = "started"
	TestPhaseMCQFinished TestPhase = "mcq_finished"
	TestPhaseCompleted   TestPhase = "completed"
)

// TestSession is one attempt at an exam.
type TestSession struct {
	ID              int        `json:"id"`
	UserID          int        `json:"user_id"`
	ExamType        ExamType   `json:"exam_type"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	RawScore        *int       `json:"raw_score,omitempty"`
	NormalizedScore *int       `json:"normalized_score,omitempty"`
	TotalQuestions  *int       `json:"total_questions,omitempty"`
	Level           *string    `json:"level,omitempty"`
	Essay1Text      string     `json:"essay1_text,omitempty"`
	Essay1Words     int        `json:"essay1_words"`
	Essay2Text      string     `json:"essay2_text,omitempty"`
	Essay2Words     int        `json:"essay2_words"`
	Status          TestStatus `json:"status"`
}

// Phase reports where the session is in its lifecycle.
func (t *TestSession) Phase() TestPhase {
	switch {
	case t.FinishedAt != nil:
		return TestPhaseCompleted
	case t.RawScore != nil:
		return TestPhaseMCQFinished
	default:
		return TestPhaseStarted
	}
}

// Score is the reported score: normalized for SAT, raw otherwise. Zero before scoring.
func (t *TestSession) Score() int {
	if t.ExamType == ExamTypeSAT && t.NormalizedScore != nil {
		return *t.NormalizedScore
	}
	if t.RawScore != nil {
		return *t.RawScore
	}
	return 0
}

// LevelOrEmpty dereferences Level.
func (t *TestSession) LevelOrEmpty() string {
	if t.Level == nil {
		return ""
	}
	return *t.Level
}

// ScoreUpdate is the frozen outcome of the multiple-choice phase.
type ScoreUpdate struct {
	RawScore        int
	NormalizedScore *int
	TotalQuestions  int
	Level           string
}

// StartTestRequest is the payload for starting a test.
type StartTestRequest struct {
	UserID   int    `json:"user_id" binding:"required,min=1"`
	ExamType string `json:"exam_type" binding:"max=32"`
}

// SaveEssayRequest is the payload for saving one essay.
type SaveEssayRequest struct {
	Text string `json:"text" binding:"max=50000"`
}
