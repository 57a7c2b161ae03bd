package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stemsi/placement-backend/internal/config"
	"github.com/stemsi/placement-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuestionService_ForDisplayOrderAndNoKeys(t *testing.T) {
	env := newTestEnv(t, advisory())
	env.seedBanks(t)
	ctx := context.Background()

	qs, err := env.questions.ForDisplay(ctx, model.ExamTypeSAT)
	require.NoError(t, err)
	require.Len(t, qs, 5)

	var ids []int
	for _, q := range qs {
		ids = append(ids, q.ID)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, ids)
	assert.Equal(t, model.SectionVerbal, qs[0].Section)
	assert.Equal(t, model.SectionMath, qs[4].Section)

	raw, err := json.Marshal(qs)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "correct_index")
	assert.NotContains(t, string(raw), "\"answer\"")
}

func TestQuestionService_DisplayCacheInvalidatedOnUpsert(t *testing.T) {
	env := newTestEnv(t, advisory())
	env.seedBanks(t)
	ctx := context.Background()
	key := config.CacheKey.QuestionDisplayKey(string(model.ExamTypePlacement))

	_, err := env.questions.ForDisplay(ctx, model.ExamTypePlacement)
	require.NoError(t, err)
	assert.True(t, env.mr.Exists(key))

	_, err = env.questions.Upsert(ctx, model.BankPlacement, model.UpsertQuestionRequest{
		ID: 4, Text: "New one", Options: []string{"x", "y"}, CorrectIndex: intPtr(1),
	})
	require.NoError(t, err)
	assert.False(t, env.mr.Exists(key))

	qs, err := env.questions.ForDisplay(ctx, model.ExamTypePlacement)
	require.NoError(t, err)
	assert.Len(t, qs, 4)
}

func TestQuestionService_UpsertKeepsImageAndChart(t *testing.T) {
	env := newTestEnv(t, advisory())
	ctx := context.Background()

	_, err := env.questions.Upsert(ctx, model.BankSATMath, model.UpsertQuestionRequest{
		ID: 10, Text: "Read the chart", Image: strPtr("/img/a.png"),
		Chart: json.RawMessage(`{"type":"bar"}`), Kind: model.QuestionKindText, Answer: "4",
	})
	require.NoError(t, err)

	q, err := env.questions.Upsert(ctx, model.BankSATMath, model.UpsertQuestionRequest{
		ID: 10, Text: "Read the chart again", Kind: model.QuestionKindText, Answer: "5",
	})
	require.NoError(t, err)
	assert.Equal(t, "/img/a.png", q.Image)
	assert.JSONEq(t, `{"type":"bar"}`, string(q.Chart))
	assert.Equal(t, "5", q.Answer)

	q, err = env.questions.Upsert(ctx, model.BankSATMath, model.UpsertQuestionRequest{
		ID: 10, Text: "No chart", Image: strPtr(""), Chart: json.RawMessage(`null`),
		Kind: model.QuestionKindText, Answer: "5",
	})
	require.NoError(t, err)
	assert.Empty(t, q.Image)
	assert.Empty(t, q.Chart)
}

func TestQuestionService_UpsertValidation(t *testing.T) {
	env := newTestEnv(t, advisory())
	ctx := context.Background()

	cases := []struct {
		name string
		bank model.Bank
		req  model.UpsertQuestionRequest
	}{
		{"no options", model.BankPlacement, model.UpsertQuestionRequest{ID: 1, Text: "q", CorrectIndex: intPtr(0)}},
		{"index out of range", model.BankPlacement, model.UpsertQuestionRequest{ID: 1, Text: "q", Options: []string{"a"}, CorrectIndex: intPtr(1)}},
		{"missing index", model.BankSATVerbal, model.UpsertQuestionRequest{ID: 1, Text: "q", Options: []string{"a"}}},
		{"text without answer", model.BankSATMath, model.UpsertQuestionRequest{ID: 1, Text: "q", Kind: model.QuestionKindText}},
		{"text in placement", model.BankPlacement, model.UpsertQuestionRequest{ID: 1, Text: "q", Kind: model.QuestionKindText, Answer: "x"}},
		{"blank text", model.BankPlacement, model.UpsertQuestionRequest{ID: 1, Text: "  ", Options: []string{"a"}, CorrectIndex: intPtr(0)}},
		{"bad chart", model.BankSATMath, model.UpsertQuestionRequest{ID: 1, Text: "q", Kind: model.QuestionKindText, Answer: "1", Chart: json.RawMessage(`{`)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.questions.Upsert(ctx, tc.bank, tc.req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestQuestionService_SATIdsShareOneSpace(t *testing.T) {
	env := newTestEnv(t, advisory())
	env.seedBanks(t)
	ctx := context.Background()

	_, err := env.questions.Upsert(ctx, model.BankSATMath, model.UpsertQuestionRequest{
		ID: 2, Text: "clash", Kind: model.QuestionKindText, Answer: "1",
	})
	assert.ErrorIs(t, err, ErrQuestionIDTaken)

	_, err = env.questions.Upsert(ctx, model.BankPlacement, model.UpsertQuestionRequest{
		ID: 4, Text: "placement may reuse SAT ids", Options: []string{"a"}, CorrectIndex: intPtr(0),
	})
	assert.NoError(t, err)
}

func TestQuestionService_Delete(t *testing.T) {
	env := newTestEnv(t, advisory())
	env.seedBanks(t)
	ctx := context.Background()

	require.NoError(t, env.questions.Delete(ctx, model.BankSATMath, 5))
	assert.ErrorIs(t, env.questions.Delete(ctx, model.BankSATMath, 5), ErrQuestionNotFound)

	qs, err := env.questions.ListBank(ctx, model.BankSATMath)
	require.NoError(t, err)
	assert.Len(t, qs, 1)
}

func TestQuestionService_ForTest(t *testing.T) {
	env := newTestEnv(t, advisory())
	ctx := context.Background()
	u := env.newUser(t, "q@example.com")

	test, err := env.sessions.Start(ctx, u.ID, "sat")
	require.NoError(t, err)

	_, err = env.questions.ForTest(ctx, test.ID)
	assert.ErrorIs(t, err, ErrNoQuestions)

	_, err = env.questions.ForTest(ctx, 404)
	assert.ErrorIs(t, err, ErrTestNotFound)

	env.seedBanks(t)
	env.mr.FlushAll()
	qs, err := env.questions.ForTest(ctx, test.ID)
	require.NoError(t, err)
	assert.Len(t, qs, 5)
}

func TestQuestionService_SeedFromDir(t *testing.T) {
	env := newTestEnv(t, advisory())
	ctx := context.Background()
	dir := t.TempDir()

	placement := `[{"id":1,"text":"Pick","options":["a","b"],"correct_index":1}]`
	math := `[{"id":7,"text":"Solve","type":"text","answer":"12"},{"id":8,"text":"Pick","type":"mcq","options":["1","2"],"correct_index":0,"chart":{"kind":"line"}}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "placement.json"), []byte(placement), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sat_math.json"), []byte(math), 0o644))

	report, err := env.questions.SeedFromDir(ctx, dir, false)
	require.NoError(t, err)
	assert.Equal(t, SeedReport{model.BankPlacement: 1, model.BankSATMath: 2}, report)

	qs, err := env.questions.ListBank(ctx, model.BankSATMath)
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, model.QuestionKindText, qs[0].Kind)
	assert.Equal(t, model.QuestionKindChoice, qs[1].Kind)
	assert.Equal(t, model.SectionMath, qs[1].Section)

	report, err = env.questions.SeedFromDir(ctx, dir, false)
	require.NoError(t, err)
	assert.Empty(t, report)

	report, err = env.questions.SeedFromDir(ctx, dir, true)
	require.NoError(t, err)
	assert.Equal(t, 2, report[model.BankSATMath])
}
