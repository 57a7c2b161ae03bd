package repository

import (
	"context"
	"errors"
	"time"

	"github.com/stemsi/placement-backend/internal/model"
)

// Backend names accepted in STORE_BACKENDS.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendFile     = "file"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEmail = errors.New("user with this email already exists")
)

// Store is the persistence contract shared by every backend.
// Lists are ordered by id ascending.
type Store interface {
	Backend() string
	Close() error

	// UpsertUserByEmail inserts u, or updates name, age and phone of the user
	// with the same lower-cased email. u receives the stored id, email and created_at.
	UpsertUserByEmail(ctx context.Context, u *model.User) error
	ListUsers(ctx context.Context) ([]model.User, error)
	GetUser(ctx context.Context, id int) (*model.User, error)
	UpdateUser(ctx context.Context, u *model.User) error
	DeleteUser(ctx context.Context, id int) error

	ListQuestions(ctx context.Context, bank model.Bank) ([]model.Question, error)
	GetQuestion(ctx context.Context, bank model.Bank, id int) (*model.Question, error)
	UpsertQuestion(ctx context.Context, q *model.Question) error
	DeleteQuestion(ctx context.Context, bank model.Bank, id int) error

	CreateTest(ctx context.Context, t *model.TestSession) error
	GetTest(ctx context.Context, id int) (*model.TestSession, error)
	ListTests(ctx context.Context) ([]model.TestSession, error)
	UpdateTestScore(ctx context.Context, id int, u model.ScoreUpdate) error
	SaveEssay(ctx context.Context, id, which int, text string, words int) error
	// CompleteTest stamps finishedAt and level once. It reports false when the
	// test was already completed, leaving the stored values untouched.
	CompleteTest(ctx context.Context, id int, level string, finishedAt time.Time) (bool, error)

	// SaveAnswers upserts the batch by (test, question) in one all-or-nothing write.
	SaveAnswers(ctx context.Context, testID int, answers []model.Answer) error
	ListAnswers(ctx context.Context, testID int) ([]model.Answer, error)
}
