package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/placement-backend/internal/model"
)

// postgresBootstrap mirrors migrations/000001_init_schema.up.sql so a fresh
// database works without running cmd/migrate first.
const postgresBootstrap = `
CREATE TABLE IF NOT EXISTS users (
    id          SERIAL PRIMARY KEY,
    name        TEXT NOT NULL,
    age         INT NOT NULL,
    email       TEXT NOT NULL,
    email_lower TEXT NOT NULL UNIQUE,
    phone       TEXT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS questions (
    bank          TEXT NOT NULL,
    id            INT NOT NULL,
    text          TEXT NOT NULL,
    image         TEXT NOT NULL DEFAULT '',
    chart         JSONB,
    kind          TEXT NOT NULL DEFAULT 'choice',
    options       JSONB NOT NULL DEFAULT '[]',
    correct_index INT,
    answer        TEXT NOT NULL DEFAULT '',
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (bank, id)
);
CREATE TABLE IF NOT EXISTS tests (
    id               SERIAL PRIMARY KEY,
    user_id          INT NOT NULL,
    exam_type        TEXT NOT NULL,
    started_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    finished_at      TIMESTAMPTZ,
    raw_score        INT,
    normalized_score INT,
    total_questions  INT,
    level            TEXT,
    essay1_text      TEXT NOT NULL DEFAULT '',
    essay1_words     INT NOT NULL DEFAULT 0,
    essay2_text      TEXT NOT NULL DEFAULT '',
    essay2_words     INT NOT NULL DEFAULT 0,
    status           TEXT NOT NULL DEFAULT 'in_progress'
);
CREATE INDEX IF NOT EXISTS idx_tests_status ON tests (status);
CREATE TABLE IF NOT EXISTS answers (
    test_id        INT NOT NULL REFERENCES tests (id) ON DELETE CASCADE,
    question_id    INT NOT NULL,
    selected_index INT,
    text_answer    TEXT,
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (test_id, question_id)
);
`

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

const testColumns = `id, user_id, exam_type, started_at, finished_at, raw_score, normalized_score,
	total_questions, level, essay1_text, essay1_words, essay2_text, essay2_words, status`

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps pool and makes sure the schema exists.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, postgresBootstrap); err != nil {
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Backend() string { return BackendPostgres }

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// ─── Users ──────────────────────────────────────────────────────────

func (s *PostgresStore) UpsertUserByEmail(ctx context.Context, u *model.User) error {
	return s.pool.QueryRow(ctx,
		`INSERT INTO users (name, age, email, email_lower, phone)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (email_lower) DO UPDATE
		 SET name = EXCLUDED.name, age = EXCLUDED.age, phone = EXCLUDED.phone
		 RETURNING id, email, created_at`,
		u.Name, u.Age, u.Email, strings.ToLower(u.Email), u.Phone,
	).Scan(&u.ID, &u.Email, &u.CreatedAt)
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, age, email, phone, created_at FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Age, &u.Email, &u.Phone, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *PostgresStore) GetUser(ctx context.Context, id int) (*model.User, error) {
	u := &model.User{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, age, email, phone, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Name, &u.Age, &u.Email, &u.Phone, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *PostgresStore) UpdateUser(ctx context.Context, u *model.User) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET name = $1, age = $2, email = $3, email_lower = $4, phone = $5
		 WHERE id = $6`,
		u.Name, u.Age, u.Email, strings.ToLower(u.Email), u.Phone, u.ID,
	)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return ErrDuplicateEmail
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteUser(ctx context.Context, id int) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ─── Questions ──────────────────────────────────────────────────────

func scanQuestion(row pgx.Row, q *model.Question) error {
	var chart []byte
	if err := row.Scan(&q.Bank, &q.ID, &q.Text, &q.Image, &chart, &q.Kind, &q.Options, &q.CorrectIndex, &q.Answer); err != nil {
		return err
	}
	if len(chart) > 0 {
		q.Chart = json.RawMessage(chart)
	}
	q.Section = q.Bank.Section()
	return nil
}

func (s *PostgresStore) ListQuestions(ctx context.Context, bank model.Bank) ([]model.Question, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT bank, id, text, image, chart, kind, options, correct_index, answer
		 FROM questions WHERE bank = $1 ORDER BY id`, bank,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := []model.Question{}
	for rows.Next() {
		var q model.Question
		if err := scanQuestion(rows, &q); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (s *PostgresStore) GetQuestion(ctx context.Context, bank model.Bank, id int) (*model.Question, error) {
	q := &model.Question{}
	err := scanQuestion(s.pool.QueryRow(ctx,
		`SELECT bank, id, text, image, chart, kind, options, correct_index, answer
		 FROM questions WHERE bank = $1 AND id = $2`, bank, id,
	), q)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (s *PostgresStore) UpsertQuestion(ctx context.Context, q *model.Question) error {
	options := q.Options
	if options == nil {
		options = []string{}
	}
	var chart []byte
	if len(q.Chart) > 0 {
		chart = q.Chart
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO questions (bank, id, text, image, chart, kind, options, correct_index, answer)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (bank, id) DO UPDATE
		 SET text = EXCLUDED.text, image = EXCLUDED.image, chart = EXCLUDED.chart,
		     kind = EXCLUDED.kind, options = EXCLUDED.options,
		     correct_index = EXCLUDED.correct_index, answer = EXCLUDED.answer,
		     updated_at = NOW()`,
		q.Bank, q.ID, q.Text, q.Image, chart, q.Kind, options, q.CorrectIndex, q.Answer,
	)
	return err
}

func (s *PostgresStore) DeleteQuestion(ctx context.Context, bank model.Bank, id int) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM questions WHERE bank = $1 AND id = $2`, bank, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ─── Tests ──────────────────────────────────────────────────────────

func scanTest(row pgx.Row, t *model.TestSession) error {
	return row.Scan(&t.ID, &t.UserID, &t.ExamType, &t.StartedAt, &t.FinishedAt, &t.RawScore,
		&t.NormalizedScore, &t.TotalQuestions, &t.Level, &t.Essay1Text, &t.Essay1Words,
		&t.Essay2Text, &t.Essay2Words, &t.Status)
}

func (s *PostgresStore) CreateTest(ctx context.Context, t *model.TestSession) error {
	t.Status = model.TestStatusInProgress
	return s.pool.QueryRow(ctx,
		`INSERT INTO tests (user_id, exam_type, status)
		 VALUES ($1, $2, $3)
		 RETURNING id, started_at`,
		t.UserID, t.ExamType, t.Status,
	).Scan(&t.ID, &t.StartedAt)
}

func (s *PostgresStore) GetTest(ctx context.Context, id int) (*model.TestSession, error) {
	t := &model.TestSession{}
	err := scanTest(s.pool.QueryRow(ctx, `SELECT `+testColumns+` FROM tests WHERE id = $1`, id), t)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *PostgresStore) ListTests(ctx context.Context) ([]model.TestSession, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+testColumns+` FROM tests ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tests := []model.TestSession{}
	for rows.Next() {
		var t model.TestSession
		if err := scanTest(rows, &t); err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

func (s *PostgresStore) UpdateTestScore(ctx context.Context, id int, u model.ScoreUpdate) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tests SET raw_score = $1, normalized_score = $2, total_questions = $3, level = $4
		 WHERE id = $5`,
		u.RawScore, u.NormalizedScore, u.TotalQuestions, u.Level, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SaveEssay(ctx context.Context, id, which int, text string, words int) error {
	query := `UPDATE tests SET essay1_text = $1, essay1_words = $2 WHERE id = $3`
	if which == 2 {
		query = `UPDATE tests SET essay2_text = $1, essay2_words = $2 WHERE id = $3`
	}
	tag, err := s.pool.Exec(ctx, query, text, words, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CompleteTest(ctx context.Context, id int, level string, finishedAt time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tests SET finished_at = $1, level = $2, status = $3
		 WHERE id = $4 AND finished_at IS NULL`,
		finishedAt, level, model.TestStatusCompleted, id,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	// Distinguish "already completed" from "missing".
	if _, err := s.GetTest(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// ─── Answers ────────────────────────────────────────────────────────

func (s *PostgresStore) SaveAnswers(ctx context.Context, testID int, answers []model.Answer) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, a := range answers {
		batch.Queue(
			`INSERT INTO answers (test_id, question_id, selected_index, text_answer)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (test_id, question_id) DO UPDATE
			 SET selected_index = EXCLUDED.selected_index, text_answer = EXCLUDED.text_answer,
			     updated_at = NOW()`,
			testID, a.QuestionID, a.SelectedIndex, a.TextAnswer,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range answers {
		if _, err := br.Exec(); err != nil {
			br.Close()
			if pgCode(err) == pgForeignKeyViolation {
				return ErrNotFound
			}
			return err
		}
	}
	if err := br.Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) ListAnswers(ctx context.Context, testID int) ([]model.Answer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT test_id, question_id, selected_index, text_answer
		 FROM answers WHERE test_id = $1 ORDER BY question_id`, testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := []model.Answer{}
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.TestID, &a.QuestionID, &a.SelectedIndex, &a.TextAnswer); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}
