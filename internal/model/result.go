package model

import "time"

// ScoreResult is returned when the multiple-choice phase or the whole test finishes.
type ScoreResult struct {
	Score int    `json:"score"`
	Level string `json:"level"`
}

// ModuleScore is a per-section count for SAT tests. It never exposes the answer key.
type ModuleScore struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// EssayResult is returned after an essay is saved.
type EssayResult struct {
	Words        int  `json:"words"`
	MinWords     int  `json:"min_words"`
	MeetsMinimum bool `json:"meets_minimum"`
}

// TestResult is the public projection of a test session.
type TestResult struct {
	Score          *int       `json:"score"`
	RawScore       *int       `json:"raw_score"`
	TotalQuestions *int       `json:"total_questions"`
	Level          *string    `json:"level"`
	ExamType       ExamType   `json:"exam_type"`
	Essay1Words    int        `json:"essay1_words"`
	Essay2Words    int        `json:"essay2_words"`
	Status         TestStatus `json:"status"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

// ResultEvent is published when a test is completed.
type ResultEvent struct {
	TestID         int       `json:"test_id"`
	UserID         int       `json:"user_id"`
	ExamType       ExamType  `json:"exam_type"`
	Score          int       `json:"score"`
	RawScore       int       `json:"raw_score"`
	TotalQuestions int       `json:"total_questions"`
	Level          string    `json:"level"`
	FinishedAt     time.Time `json:"finished_at"`
	// Attempts counts failed deliveries; only the notify worker sets it.
	Attempts       int       `json:"attempts,omitempty"`
}

// Stats summarizes completed tests for the admin dashboard.
type Stats struct {
	Total    int            `json:"total"`
	AvgScore float64        `json:"avg_score"`
	Levels   map[string]int `json:"levels"`
}
