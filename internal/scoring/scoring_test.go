package scoring

import (
	"testing"

	"github.com/stemsi/placement-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func choice(id, correct int) model.Question {
	return model.Question{ID: id, Kind: model.QuestionKindChoice, Options: []string{"a", "b", "c", "d"}, CorrectIndex: intPtr(correct)}
}

func text(id int, answer string) model.Question {
	return model.Question{ID: id, Kind: model.QuestionKindText, Answer: answer}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  3,5 ", "3.5"},
		{"1\\2", "1/2"},
		{"1 / 2", "1/2"},
		{"Hello World", "helloworld"},
		{"\tA  B\nC ", "abc"},
		{"   ", ""},
		{"", ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, NormalizeText(tc.in), "input %q", tc.in)
	}
}

func TestIsCorrect(t *testing.T) {
	tests := []struct {
		name string
		q    model.Question
		a    model.Answer
		want bool
	}{
		{"choice match", choice(1, 2), model.Answer{SelectedIndex: intPtr(2)}, true},
		{"choice mismatch", choice(1, 2), model.Answer{SelectedIndex: intPtr(1)}, false},
		{"choice unanswered", choice(1, 2), model.Answer{}, false},
		{"choice given text", choice(1, 0), model.Answer{TextAnswer: strPtr("0")}, false},
		{"text decimal comma", text(1, "3.5"), model.Answer{TextAnswer: strPtr(" 3,5 ")}, true},
		{"text backslash", text(1, "1/2"), model.Answer{TextAnswer: strPtr("1\\2")}, true},
		{"text case and spaces", text(1, "New York"), model.Answer{TextAnswer: strPtr("new  york")}, true},
		{"text wrong", text(1, "4"), model.Answer{TextAnswer: strPtr("5")}, false},
		{"text empty answer", text(1, "4"), model.Answer{TextAnswer: strPtr("   ")}, false},
		{"text empty key", text(1, ""), model.Answer{TextAnswer: strPtr("")}, false},
		{"text given index", text(1, "4"), model.Answer{SelectedIndex: intPtr(4)}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsCorrect(tc.q, tc.a))
		})
	}
}

func TestGrade_UnansweredCountAsWrongAndUnknownSkipped(t *testing.T) {
	questions := []model.Question{choice(1, 0), choice(2, 1), choice(3, 2), text(4, "42")}
	answers := []model.Answer{
		{QuestionID: 1, SelectedIndex: intPtr(0)},
		{QuestionID: 2, SelectedIndex: intPtr(3)},
		{QuestionID: 4, TextAnswer: strPtr(" 42 ")},
		{QuestionID: 99, SelectedIndex: intPtr(0)},
	}

	got := Grade(questions, answers)
	assert.Equal(t, Tally{Correct: 2, Total: 4, Skipped: 1}, got)
}

func TestGrade_EmptySet(t *testing.T) {
	got := Grade(nil, []model.Answer{{QuestionID: 1, SelectedIndex: intPtr(0)}})
	assert.Equal(t, 0, got.Total)
	assert.Equal(t, 0, got.Correct)
	assert.Equal(t, 1, got.Skipped)
}

func TestNormalizeSAT(t *testing.T) {
	assert.Equal(t, 200, NormalizeSAT(0, 50))
	assert.Equal(t, 800, NormalizeSAT(50, 50))
	assert.Equal(t, 500, NormalizeSAT(25, 50))
	assert.Equal(t, 560, NormalizeSAT(3, 5))
	assert.Equal(t, 200, NormalizeSAT(0, 0))
	assert.Equal(t, 800, NormalizeSAT(1, 0))
}

func TestPlacementLevel(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{0, "A1"}, {10, "A1"}, {11, "A2"}, {17, "A2"}, {18, "B1"},
		{23, "B1"}, {24, "B2"}, {27, "B2"}, {28, "C1"}, {40, "C1"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, PlacementLevel(tc.score), "score %d", tc.score)
	}
}

func TestSATLevel(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{800, "A+"}, {799, "A"}, {750, "A"}, {749, "A-"}, {700, "A-"},
		{699, "B+"}, {650, "B+"}, {649, "B"}, {600, "B"}, {599, "B-"},
		{550, "B-"}, {549, "C+"}, {500, "C+"}, {499, "C"}, {450, "C"},
		{449, "C-"}, {400, "C-"}, {399, "D+"}, {350, "D+"}, {349, "D"},
		{300, "D"}, {299, "D-"}, {250, "D-"}, {249, "F"}, {200, "F"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, SATLevel(tc.score), "score %d", tc.score)
	}
}

func TestOutcome(t *testing.T) {
	t.Run("placement uses raw score", func(t *testing.T) {
		u := Outcome(model.ExamTypePlacement, Tally{Correct: 24, Total: 30})
		assert.Equal(t, 24, u.RawScore)
		assert.Nil(t, u.NormalizedScore)
		assert.Equal(t, 30, u.TotalQuestions)
		assert.Equal(t, "B2", u.Level)
	})

	t.Run("sat normalizes", func(t *testing.T) {
		u := Outcome(model.ExamTypeSAT, Tally{Correct: 3, Total: 5})
		assert.Equal(t, 3, u.RawScore)
		require.NotNil(t, u.NormalizedScore)
		assert.Equal(t, 560, *u.NormalizedScore)
		assert.Equal(t, "B-", u.Level)
	})
}

func TestCountWords(t *testing.T) {
	assert.Equal(t, 0, CountWords(""))
	assert.Equal(t, 0, CountWords("   \n\t"))
	assert.Equal(t, 3, CountWords(" one  two\nthree "))
}
