package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stemsi/placement-backend/internal/config"
	"github.com/stemsi/placement-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestSession_StartValidation(t *testing.T) {
	env := newTestEnv(t, advisory())
	ctx := context.Background()

	_, err := env.sessions.Start(ctx, 0, "placement")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.sessions.Start(ctx, 42, "placement")
	assert.ErrorIs(t, err, ErrUserNotFound)

	u := env.newUser(t, "s@example.com")
	test, err := env.sessions.Start(ctx, u.ID, "toefl")
	require.NoError(t, err)
	assert.Equal(t, model.ExamTypePlacement, test.ExamType)
	assert.Equal(t, model.TestStatusInProgress, test.Status)
}

func TestTestSession_PlacementFlow(t *testing.T) {
	env := newTestEnv(t, advisory())
	env.seedBanks(t)
	ctx := context.Background()
	u := env.newUser(t, "p@example.com")

	test, err := env.sessions.Start(ctx, u.ID, "placement")
	require.NoError(t, err)

	require.NoError(t, env.sessions.SubmitAnswers(ctx, test.ID, []model.AnswerInput{pick(1, 0), pick(2, 0)}))
	// Resubmission overwrites the wrong answer to question 2.
	require.NoError(t, env.sessions.SubmitAnswers(ctx, test.ID, []model.AnswerInput{pick(2, 1), pick(99, 0)}))

	_, err = env.sessions.Finish(ctx, test.ID)
	assert.ErrorIs(t, err, ErrMCQNotFinished)

	score, err := env.sessions.FinishAnswers(ctx, test.ID)
	require.NoError(t, err)
	assert.Equal(t, &model.ScoreResult{Score: 2, Level: "A1"}, score)

	essay, err := env.sessions.SaveEssay(ctx, test.ID, 1, "one two  three\nfour")
	require.NoError(t, err)
	assert.Equal(t, &model.EssayResult{Words: 4, MinWords: 3, MeetsMinimum: true}, essay)

	_, err = env.sessions.SaveEssay(ctx, test.ID, 3, "x")
	assert.ErrorIs(t, err, ErrValidation)

	final, err := env.sessions.Finish(ctx, test.ID)
	require.NoError(t, err)
	assert.Equal(t, score, final)

	res, err := env.sessions.Result(ctx, test.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Score)
	assert.Equal(t, 2, *res.Score)
	assert.Equal(t, 3, *res.TotalQuestions)
	assert.Equal(t, 4, res.Essay1Words)
	assert.Equal(t, model.TestStatusCompleted, res.Status)
	assert.NotNil(t, res.FinishedAt)
}

func TestTestSession_SATFlow(t *testing.T) {
	env := newTestEnv(t, advisory())
	env.seedBanks(t)
	ctx := context.Background()
	u := env.newUser(t, "sat@example.com")

	test, err := env.sessions.Start(ctx, u.ID, "sat")
	require.NoError(t, err)

	require.NoError(t, env.sessions.SubmitAnswers(ctx, test.ID, []model.AnswerInput{
		pick(1, 0),
		pick(2, 3),
		write(3, " 1\\2 "),
		write(5, "3,5"),
	}))

	verbal, err := env.sessions.ModuleScore(ctx, test.ID, "")
	require.NoError(t, err)
	assert.Equal(t, &model.ModuleScore{Correct: 2, Total: 3}, verbal)

	math, err := env.sessions.ModuleScore(ctx, test.ID, "math")
	require.NoError(t, err)
	assert.Equal(t, &model.ModuleScore{Correct: 1, Total: 2}, math)

	_, err = env.sessions.ModuleScore(ctx, test.ID, "reading")
	assert.ErrorIs(t, err, ErrValidation)

	score, err := env.sessions.FinishAnswers(ctx, test.ID)
	require.NoError(t, err)
	assert.Equal(t, &model.ScoreResult{Score: 560, Level: "B-"}, score)

	_, err = env.sessions.SaveEssay(ctx, test.ID, 1, "essay")
	assert.ErrorIs(t, err, ErrEssayNotAllowed)

	final, err := env.sessions.Finish(ctx, test.ID)
	require.NoError(t, err)
	assert.Equal(t, score, final)

	res, err := env.sessions.Result(ctx, test.ID)
	require.NoError(t, err)
	assert.Equal(t, 560, *res.Score)
	assert.Equal(t, 3, *res.RawScore)
	assert.Equal(t, 5, *res.TotalQuestions)
}

func TestTestSession_SubmitAnswersValidatesWholeBatch(t *testing.T) {
	env := newTestEnv(t, advisory())
	env.seedBanks(t)
	ctx := context.Background()
	u := env.newUser(t, "v@example.com")
	test, err := env.sessions.Start(ctx, u.ID, "placement")
	require.NoError(t, err)

	cases := map[string][]model.AnswerInput{
		"empty":        {},
		"bad id":       {pick(1, 0), pick(0, 0)},
		"both answers": {{QuestionID: 1, SelectedIndex: intPtr(0), TextAnswer: strPtr("a")}},
		"no answer":    {{QuestionID: 1}},
	}
	for name, batch := range cases {
		t.Run(name, func(t *testing.T) {
			err := env.sessions.SubmitAnswers(ctx, test.ID, batch)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	answers, err := env.store.ListAnswers(ctx, test.ID)
	require.NoError(t, err)
	assert.Empty(t, answers)

	err = env.sessions.SubmitAnswers(ctx, 404, []model.AnswerInput{pick(1, 0)})
	assert.ErrorIs(t, err, ErrTestNotFound)
}

func TestTestSession_CompletedIsFrozen(t *testing.T) {
	env := newTestEnv(t, advisory())
	env.seedBanks(t)
	ctx := context.Background()
	u := env.newUser(t, "f@example.com")
	test, err := env.sessions.Start(ctx, u.ID, "placement")
	require.NoError(t, err)

	require.NoError(t, env.sessions.SubmitAnswers(ctx, test.ID, []model.AnswerInput{pick(1, 0)}))
	_, err = env.sessions.FinishAnswers(ctx, test.ID)
	require.NoError(t, err)
	_, err = env.sessions.Finish(ctx, test.ID)
	require.NoError(t, err)

	before, err := env.store.GetTest(ctx, test.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, env.sessions.SubmitAnswers(ctx, test.ID, []model.AnswerInput{pick(2, 1)}), ErrTestCompleted)
	_, err = env.sessions.FinishAnswers(ctx, test.ID)
	assert.ErrorIs(t, err, ErrTestCompleted)
	_, err = env.sessions.SaveEssay(ctx, test.ID, 1, "late")
	assert.ErrorIs(t, err, ErrTestCompleted)

	again, err := env.sessions.Finish(ctx, test.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Score)

	after, err := env.store.GetTest(ctx, test.ID)
	require.NoError(t, err)
	assert.True(t, before.FinishedAt.Equal(*after.FinishedAt))
}

func TestTestSession_FinishPublishesOnce(t *testing.T) {
	env := newTestEnv(t, advisory())
	env.seedBanks(t)
	ctx := context.Background()
	u := env.newUser(t, "n@example.com")
	test, err := env.sessions.Start(ctx, u.ID, "placement")
	require.NoError(t, err)

	_, err = env.sessions.FinishAnswers(ctx, test.ID)
	require.NoError(t, err)
	_, err = env.sessions.Finish(ctx, test.ID)
	require.NoError(t, err)
	_, err = env.sessions.Finish(ctx, test.ID)
	require.NoError(t, err)

	queued, err := env.mr.List(config.WorkerKey.NotifyResultsQueue)
	require.NoError(t, err)
	require.Len(t, queued, 1)

	var ev model.ResultEvent
	require.NoError(t, json.Unmarshal([]byte(queued[0]), &ev))
	assert.Equal(t, test.ID, ev.TestID)
	assert.Equal(t, u.ID, ev.UserID)
	assert.Equal(t, "A1", ev.Level)
	assert.Equal(t, 3, ev.TotalQuestions)
}

func TestTestSession_EnforcedEssayPolicy(t *testing.T) {
	env := newTestEnv(t, EssayRules{MinWords: 5, Policy: config.EssayPolicyEnforced})
	env.seedBanks(t)
	ctx := context.Background()
	u := env.newUser(t, "e@example.com")
	test, err := env.sessions.Start(ctx, u.ID, "placement")
	require.NoError(t, err)

	_, err = env.sessions.FinishAnswers(ctx, test.ID)
	require.NoError(t, err)

	_, err = env.sessions.SaveEssay(ctx, test.ID, 1, "one two three four five")
	require.NoError(t, err)
	res, err := env.sessions.SaveEssay(ctx, test.ID, 2, "too short")
	require.NoError(t, err)
	assert.False(t, res.MeetsMinimum)

	_, err = env.sessions.Finish(ctx, test.ID)
	assert.ErrorIs(t, err, ErrEssayTooShort)
	assert.ErrorIs(t, err, ErrState)

	_, err = env.sessions.SaveEssay(ctx, test.ID, 2, "now it is long enough")
	require.NoError(t, err)
	_, err = env.sessions.Finish(ctx, test.ID)
	assert.NoError(t, err)
}

func TestTestSession_ModuleScoreRequiresSAT(t *testing.T) {
	env := newTestEnv(t, advisory())
	ctx := context.Background()
	u := env.newUser(t, "m@example.com")
	test, err := env.sessions.Start(ctx, u.ID, "placement")
	require.NoError(t, err)

	_, err = env.sessions.ModuleScore(ctx, test.ID, "verbal")
	assert.ErrorIs(t, err, ErrNotSATTest)

	_, err = env.sessions.Result(ctx, 404)
	assert.ErrorIs(t, err, ErrTestNotFound)
}

func TestTestSession_WorksWithoutRedis(t *testing.T) {
	env := newTestEnv(t, advisory())
	env.seedBanks(t)
	ctx := context.Background()

	questions := NewQuestionService(env.store, nil, 0, zerolog.Nop())
	sessions := NewTestSessionService(env.store, questions, nil, advisory(), zerolog.Nop())

	u := env.newUser(t, "nr@example.com")
	test, err := sessions.Start(ctx, u.ID, "sat")
	require.NoError(t, err)
	_, err = sessions.FinishAnswers(ctx, test.ID)
	require.NoError(t, err)
	res, err := sessions.Finish(ctx, test.ID)
	require.NoError(t, err)
	assert.Equal(t, 200, res.Score)
	assert.Equal(t, "F", res.Level)
}

// fillBank stores n choice questions with ids from first onwards, all keyed to option 2.
func (e *testEnv) fillBank(t *testing.T, bank model.Bank, first, n int) {
	t.Helper()
	for id := first; id < first+n; id++ {
		q := choice(bank, id, 2)
		require.NoError(t, e.store.UpsertQuestion(context.Background(), &q))
	}
}

func TestTestSession_NoAnswersScoresZero(t *testing.T) {
	env := newTestEnv(t, advisory())
	env.fillBank(t, model.BankPlacement, 1, 10)
	ctx := context.Background()

	test, err := env.sessions.Start(ctx, env.newUser(t, "blank@example.com").ID, "placement")
	require.NoError(t, err)

	score, err := env.sessions.FinishAnswers(ctx, test.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScoreResult{Score: 0, Level: "A1"}, *score)

	res, err := env.sessions.Result(ctx, test.ID)
	require.NoError(t, err)
	require.NotNil(t, res.RawScore)
	require.NotNil(t, res.TotalQuestions)
	assert.Equal(t, 0, *res.RawScore)
	assert.Equal(t, 10, *res.TotalQuestions)
}

func TestTestSession_FullLengthPlacement(t *testing.T) {
	env := newTestEnv(t, advisory())
	env.fillBank(t, model.BankPlacement, 1, 30)
	ctx := context.Background()

	test, err := env.sessions.Start(ctx, env.newUser(t, "full@example.com").ID, "placement")
	require.NoError(t, err)

	// Two pages of 15; questions 29 and 30 are wrong.
	for page := 0; page < 2; page++ {
		var answers []model.AnswerInput
		for id := page*15 + 1; id <= page*15+15; id++ {
			idx := 2
			if id > 28 {
				idx = 0
			}
			answers = append(answers, pick(id, idx))
		}
		require.NoError(t, env.sessions.SubmitAnswers(ctx, test.ID, answers))
	}

	score, err := env.sessions.FinishAnswers(ctx, test.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScoreResult{Score: 28, Level: "C1"}, *score)

	res, err := env.sessions.Result(ctx, test.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, *res.TotalQuestions)
}

func TestTestSession_FullLengthSAT(t *testing.T) {
	env := newTestEnv(t, advisory())
	env.fillBank(t, model.BankSATVerbal, 1, 27)
	env.fillBank(t, model.BankSATMath, 28, 27)
	ctx := context.Background()

	test, err := env.sessions.Start(ctx, env.newUser(t, "sat-full@example.com").ID, "sat")
	require.NoError(t, err)

	// Every verbal answer right, every math answer wrong.
	var answers []model.AnswerInput
	for id := 1; id <= 54; id++ {
		idx := 2
		if id > 27 {
			idx = 1
		}
		answers = append(answers, pick(id, idx))
	}
	require.NoError(t, env.sessions.SubmitAnswers(ctx, test.ID, answers))

	score, err := env.sessions.FinishAnswers(ctx, test.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScoreResult{Score: 500, Level: "C+"}, *score)

	res, err := env.sessions.Result(ctx, test.ID)
	require.NoError(t, err)
	assert.Equal(t, 27, *res.RawScore)
	assert.Equal(t, 54, *res.TotalQuestions)

	verbal, err := env.sessions.ModuleScore(ctx, test.ID, "verbal")
	require.NoError(t, err)
	assert.Equal(t, model.ModuleScore{Correct: 27, Total: 27}, *verbal)
	math, err := env.sessions.ModuleScore(ctx, test.ID, "math")
	require.NoError(t, err)
	assert.Equal(t, model.ModuleScore{Correct: 0, Total: 27}, *math)
}
