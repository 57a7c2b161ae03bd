// Package scoring holds the pure grading rules: answer normalization,
// per-question correctness, raw and normalized scores, and level tables.
package scoring

import (
	"math"
	"strings"
	"unicode"

	"github.com/stemsi/placement-backend/internal/model"
)

// NormalizeText canonicalizes a free-text answer: trimmed, lower-cased,
// all whitespace removed, backslashes turned into slashes and decimal
// commas into dots.
func NormalizeText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			continue
		case r == '\\':
			b.WriteRune('/')
		case r == ',':
			b.WriteRune('.')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsCorrect grades one answer against its question.
// An empty normalized value on either side of a text question is never correct.
func IsCorrect(q model.Question, a model.Answer) bool {
	if q.Kind == model.QuestionKindText {
		if a.TextAnswer == nil {
			return false
		}
		given := NormalizeText(*a.TextAnswer)
		want := NormalizeText(q.Answer)
		return given != "" && want != "" && given == want
	}

	if q.CorrectIndex == nil || a.SelectedIndex == nil {
		return false
	}
	return *q.CorrectIndex == *a.SelectedIndex
}

// Tally is the outcome of grading a set of answers against a question set.
type Tally struct {
	Correct int
	Total   int
	// Skipped counts answers whose question is not in the set.
	Skipped int
}

// Grade counts correct answers over questions. Total is the size of the
// question set, so unanswered questions count as wrong. Answers for
// questions outside the set are skipped.
func Grade(questions []model.Question, answers []model.Answer) Tally {
	byID := make(map[int]model.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	t := Tally{Total: len(questions)}
	for _, a := range answers {
		q, ok := byID[a.QuestionID]
		if !ok {
			t.Skipped++
			continue
		}
		if IsCorrect(q, a) {
			t.Correct++
		}
	}
	return t
}

// NormalizeSAT maps a raw SAT score onto the 200-800 scale.
func NormalizeSAT(raw, total int) int {
	if total < 1 {
		total = 1
	}
	return int(math.Round(200 + float64(raw)/float64(total)*600))
}

type band struct {
	min   int
	level string
}

var placementBands = []band{
	{28, "C1"},
	{24, "B2"},
	{18, "B1"},
	{11, "A2"},
}

var satBands = []band{
	{800, "A+"},
	{750, "A"},
	{700, "A-"},
	{650, "B+"},
	{600, "B"},
	{550, "B-"},
	{500, "C+"},
	{450, "C"},
	{400, "C-"},
	{350, "D+"},
	{300, "D"},
	{250, "D-"},
}

func lookup(bands []band, score int, floor string) string {
	for _, b := range bands {
		if score >= b.min {
			return b.level
		}
	}
	return floor
}

// PlacementLevel maps a raw placement score to a CEFR level.
func PlacementLevel(score int) string {
	return lookup(placementBands, score, "A1")
}

// SATLevel maps a normalized SAT score to a letter grade.
func SATLevel(score int) string {
	return lookup(satBands, score, "F")
}

// Level picks the level table for the exam type.
func Level(examType model.ExamType, score int) string {
	if examType == model.ExamTypeSAT {
		return SATLevel(score)
	}
	return PlacementLevel(score)
}

// Outcome computes the frozen score of a test from its tally.
func Outcome(examType model.ExamType, t Tally) model.ScoreUpdate {
	u := model.ScoreUpdate{
		RawScore:       t.Correct,
		TotalQuestions: t.Total,
	}
	score := t.Correct
	if examType == model.ExamTypeSAT {
		n := NormalizeSAT(t.Correct, t.Total)
		u.NormalizedScore = &n
		score = n
	}
	u.Level = Level(examType, score)
	return u
}

// CountWords counts whitespace-separated tokens.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
