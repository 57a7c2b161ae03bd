package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/placement-backend/internal/config"
	"github.com/stemsi/placement-backend/internal/model"
	"github.com/stemsi/placement-backend/internal/repository"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

type testEnv struct {
	store     repository.Store
	mr        *miniredis.Miniredis
	rdb       *redis.Client
	users     *UserService
	questions *QuestionService
	sessions  *TestSessionService
	stats     *StatsService
}

func newTestEnv(t *testing.T, essays EssayRules) *testEnv {
	t.Helper()

	store, err := repository.NewFileStore(filepath.Join(t.TempDir(), "db.json"))
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	log := zerolog.Nop()
	questions := NewQuestionService(store, rdb, time.Minute, log)
	return &testEnv{
		store:     store,
		mr:        mr,
		rdb:       rdb,
		users:     NewUserService(store),
		questions: questions,
		sessions:  NewTestSessionService(store, questions, rdb, essays, log),
		stats:     NewStatsService(store),
	}
}

func advisory() EssayRules {
	return EssayRules{MinWords: 3, Policy: config.EssayPolicyAdvisory}
}

func choice(bank model.Bank, id, correct int) model.Question {
	return model.Question{
		ID:           id,
		Bank:         bank,
		Section:      bank.Section(),
		Text:         "Question",
		Kind:         model.QuestionKindChoice,
		Options:      []string{"a", "b", "c", "d"},
		CorrectIndex: intPtr(correct),
	}
}

func text(bank model.Bank, id int, answer string) model.Question {
	return model.Question{
		ID:      id,
		Bank:    bank,
		Section: bank.Section(),
		Text:    "Question",
		Kind:    model.QuestionKindText,
		Answer:  answer,
	}
}

// seedBanks loads three placement questions, three verbal (one free text)
// and two math questions.
func (e *testEnv) seedBanks(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	qs := []model.Question{
		choice(model.BankPlacement, 1, 0),
		choice(model.BankPlacement, 2, 1),
		choice(model.BankPlacement, 3, 2),
		choice(model.BankSATVerbal, 1, 0),
		choice(model.BankSATVerbal, 2, 1),
		text(model.BankSATVerbal, 3, "1/2"),
		choice(model.BankSATMath, 4, 3),
		text(model.BankSATMath, 5, "3.5"),
	}
	for i := range qs {
		require.NoError(t, e.store.UpsertQuestion(ctx, &qs[i]))
	}
}

func (e *testEnv) newUser(t *testing.T, email string) *model.User {
	t.Helper()
	u, err := e.users.Upsert(context.Background(), model.UpsertUserRequest{
		Name: "Test Taker", Age: 21, Email: email, Phone: "0812",
	})
	require.NoError(t, err)
	return u
}

func pick(id, idx int) model.AnswerInput {
	return model.AnswerInput{QuestionID: id, SelectedIndex: intPtr(idx)}
}

func write(id int, s string) model.AnswerInput {
	return model.AnswerInput{QuestionID: id, TextAnswer: strPtr(s)}
}
