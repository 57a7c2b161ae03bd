package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stemsi/placement-backend/internal/model"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
  id          INTEGER PRIMARY KEY AUTOINCREMENT,
  name        TEXT NOT NULL,
  age         INTEGER NOT NULL,
  email       TEXT NOT NULL,
  email_lower TEXT NOT NULL UNIQUE,
  phone       TEXT NOT NULL,
  created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
  bank          TEXT NOT NULL,
  id            INTEGER NOT NULL,
  text          TEXT NOT NULL,
  image         TEXT NOT NULL DEFAULT '',
  chart         TEXT,
  kind          TEXT NOT NULL DEFAULT 'choice',
  options       TEXT NOT NULL DEFAULT '[]',
  correct_index INTEGER,
  answer        TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (bank, id)
);

CREATE TABLE IF NOT EXISTS tests (
  id               INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id          INTEGER NOT NULL,
  exam_type        TEXT NOT NULL,
  started_at       TEXT NOT NULL,
  finished_at      TEXT,
  raw_score        INTEGER,
  normalized_score INTEGER,
  total_questions  INTEGER,
  level            TEXT,
  essay1_text      TEXT NOT NULL DEFAULT '',
  essay1_words     INTEGER NOT NULL DEFAULT 0,
  essay2_text      TEXT NOT NULL DEFAULT '',
  essay2_words     INTEGER NOT NULL DEFAULT 0,
  status           TEXT NOT NULL DEFAULT 'in_progress'
);

CREATE TABLE IF NOT EXISTS answers (
  test_id        INTEGER NOT NULL REFERENCES tests(id) ON DELETE CASCADE,
  question_id    INTEGER NOT NULL,
  selected_index INTEGER,
  text_answer    TEXT,
  PRIMARY KEY (test_id, question_id)
);
`

// SQLiteStore implements Store on an embedded SQLite database.
// Timestamps are stored as RFC 3339 text, JSON columns as text.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps db and makes sure the schema exists.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Backend() string { return BackendSQLite }

func (s *SQLiteStore) Close() error { return s.db.Close() }

// isSQLiteConstraint matches the extended constraint code, or the bare
// SQLITE_CONSTRAINT code when extended result codes are off.
func isSQLiteConstraint(err error, extended int) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == extended || se.Code() == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ─── Users ──────────────────────────────────────────────────────────

func (s *SQLiteStore) UpsertUserByEmail(ctx context.Context, u *model.User) error {
	var created string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO users (name, age, email, email_lower, phone, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (email_lower) DO UPDATE
		 SET name = excluded.name, age = excluded.age, phone = excluded.phone
		 RETURNING id, email, created_at`,
		u.Name, u.Age, u.Email, strings.ToLower(u.Email), u.Phone, formatTime(time.Now()),
	).Scan(&u.ID, &u.Email, &created)
	if err != nil {
		return err
	}
	u.CreatedAt, err = parseTime(created)
	return err
}

func scanUser(scan func(dest ...any) error, u *model.User) error {
	var created string
	if err := scan(&u.ID, &u.Name, &u.Age, &u.Email, &u.Phone, &created); err != nil {
		return err
	}
	var err error
	u.CreatedAt, err = parseTime(created)
	return err
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, age, email, phone, created_at FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var u model.User
		if err := scanUser(rows.Scan, &u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *SQLiteStore) GetUser(ctx context.Context, id int) (*model.User, error) {
	u := &model.User{}
	err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, name, age, email, phone, created_at FROM users WHERE id = ?`, id,
	).Scan, u)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *SQLiteStore) UpdateUser(ctx context.Context, u *model.User) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET name = ?, age = ?, email = ?, email_lower = ?, phone = ? WHERE id = ?`,
		u.Name, u.Age, u.Email, strings.ToLower(u.Email), u.Phone, u.ID,
	)
	if err != nil {
		if isSQLiteConstraint(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE) {
			return ErrDuplicateEmail
		}
		return err
	}
	return expectOne(res)
}

func (s *SQLiteStore) DeleteUser(ctx context.Context, id int) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// ─── Questions ──────────────────────────────────────────────────────

func scanSQLiteQuestion(scan func(dest ...any) error, q *model.Question) error {
	var (
		chart   sql.NullString
		options string
		correct sql.NullInt64
	)
	if err := scan(&q.Bank, &q.ID, &q.Text, &q.Image, &chart, &q.Kind, &options, &correct, &q.Answer); err != nil {
		return err
	}
	if chart.Valid && chart.String != "" {
		q.Chart = json.RawMessage(chart.String)
	}
	if err := json.Unmarshal([]byte(options), &q.Options); err != nil {
		return fmt.Errorf("decode options: %w", err)
	}
	if correct.Valid {
		v := int(correct.Int64)
		q.CorrectIndex = &v
	}
	q.Section = q.Bank.Section()
	return nil
}

func (s *SQLiteStore) ListQuestions(ctx context.Context, bank model.Bank) ([]model.Question, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT bank, id, text, image, chart, kind, options, correct_index, answer
		 FROM questions WHERE bank = ? ORDER BY id`, string(bank),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := []model.Question{}
	for rows.Next() {
		var q model.Question
		if err := scanSQLiteQuestion(rows.Scan, &q); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (s *SQLiteStore) GetQuestion(ctx context.Context, bank model.Bank, id int) (*model.Question, error) {
	q := &model.Question{}
	err := scanSQLiteQuestion(s.db.QueryRowContext(ctx,
		`SELECT bank, id, text, image, chart, kind, options, correct_index, answer
		 FROM questions WHERE bank = ? AND id = ?`, string(bank), id,
	).Scan, q)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (s *SQLiteStore) UpsertQuestion(ctx context.Context, q *model.Question) error {
	options := q.Options
	if options == nil {
		options = []string{}
	}
	optionsJSON, err := json.Marshal(options)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	var chart sql.NullString
	if len(q.Chart) > 0 {
		chart = sql.NullString{String: string(q.Chart), Valid: true}
	}
	var correct sql.NullInt64
	if q.CorrectIndex != nil {
		correct = sql.NullInt64{Int64: int64(*q.CorrectIndex), Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO questions (bank, id, text, image, chart, kind, options, correct_index, answer)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (bank, id) DO UPDATE
		 SET text = excluded.text, image = excluded.image, chart = excluded.chart,
		     kind = excluded.kind, options = excluded.options,
		     correct_index = excluded.correct_index, answer = excluded.answer`,
		string(q.Bank), q.ID, q.Text, q.Image, chart, string(q.Kind), string(optionsJSON), correct, q.Answer,
	)
	return err
}

func (s *SQLiteStore) DeleteQuestion(ctx context.Context, bank model.Bank, id int) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE bank = ? AND id = ?`, string(bank), id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// ─── Tests ──────────────────────────────────────────────────────────

func scanSQLiteTest(scan func(dest ...any) error, t *model.TestSession) error {
	var (
		started                     string
		finished, level             sql.NullString
		raw, normalized, totalCount sql.NullInt64
	)
	if err := scan(&t.ID, &t.UserID, &t.ExamType, &started, &finished, &raw, &normalized,
		&totalCount, &level, &t.Essay1Text, &t.Essay1Words, &t.Essay2Text, &t.Essay2Words, &t.Status); err != nil {
		return err
	}

	var err error
	if t.StartedAt, err = parseTime(started); err != nil {
		return err
	}
	if finished.Valid {
		ft, err := parseTime(finished.String)
		if err != nil {
			return err
		}
		t.FinishedAt = &ft
	}
	t.RawScore = nullIntPtr(raw)
	t.NormalizedScore = nullIntPtr(normalized)
	t.TotalQuestions = nullIntPtr(totalCount)
	if level.Valid {
		l := level.String
		t.Level = &l
	}
	return nil
}

func nullIntPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func (s *SQLiteStore) CreateTest(ctx context.Context, t *model.TestSession) error {
	t.Status = model.TestStatusInProgress
	t.StartedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tests (user_id, exam_type, started_at, status) VALUES (?, ?, ?, ?)`,
		t.UserID, string(t.ExamType), formatTime(t.StartedAt), string(t.Status),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = int(id)
	return nil
}

func (s *SQLiteStore) GetTest(ctx context.Context, id int) (*model.TestSession, error) {
	t := &model.TestSession{}
	err := scanSQLiteTest(s.db.QueryRowContext(ctx,
		`SELECT `+testColumns+` FROM tests WHERE id = ?`, id).Scan, t)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *SQLiteStore) ListTests(ctx context.Context) ([]model.TestSession, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+testColumns+` FROM tests ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tests := []model.TestSession{}
	for rows.Next() {
		var t model.TestSession
		if err := scanSQLiteTest(rows.Scan, &t); err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

func (s *SQLiteStore) UpdateTestScore(ctx context.Context, id int, u model.ScoreUpdate) error {
	var normalized sql.NullInt64
	if u.NormalizedScore != nil {
		normalized = sql.NullInt64{Int64: int64(*u.NormalizedScore), Valid: true}
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE tests SET raw_score = ?, normalized_score = ?, total_questions = ?, level = ? WHERE id = ?`,
		u.RawScore, normalized, u.TotalQuestions, u.Level, id,
	)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (s *SQLiteStore) SaveEssay(ctx context.Context, id, which int, text string, words int) error {
	query := `UPDATE tests SET essay1_text = ?, essay1_words = ? WHERE id = ?`
	if which == 2 {
		query = `UPDATE tests SET essay2_text = ?, essay2_words = ? WHERE id = ?`
	}
	res, err := s.db.ExecContext(ctx, query, text, words, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (s *SQLiteStore) CompleteTest(ctx context.Context, id int, level string, finishedAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tests SET finished_at = ?, level = ?, status = ? WHERE id = ? AND finished_at IS NULL`,
		formatTime(finishedAt), level, string(model.TestStatusCompleted), id,
	)
	if err != nil {
		return false, err
	}
	if err := expectOne(res); err == nil {
		return true, nil
	}
	if _, err := s.GetTest(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// ─── Answers ────────────────────────────────────────────────────────

func (s *SQLiteStore) SaveAnswers(ctx context.Context, testID int, answers []model.Answer) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO answers (test_id, question_id, selected_index, text_answer)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (test_id, question_id) DO UPDATE
		 SET selected_index = excluded.selected_index, text_answer = excluded.text_answer`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range answers {
		var (
			selected sql.NullInt64
			text     sql.NullString
		)
		if a.SelectedIndex != nil {
			selected = sql.NullInt64{Int64: int64(*a.SelectedIndex), Valid: true}
		}
		if a.TextAnswer != nil {
			text = sql.NullString{String: *a.TextAnswer, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, testID, a.QuestionID, selected, text); err != nil {
			if isSQLiteConstraint(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY) {
				return ErrNotFound
			}
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) ListAnswers(ctx context.Context, testID int) ([]model.Answer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT test_id, question_id, selected_index, text_answer
		 FROM answers WHERE test_id = ? ORDER BY question_id`, testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := []model.Answer{}
	for rows.Next() {
		var (
			a        model.Answer
			selected sql.NullInt64
			text     sql.NullString
		)
		if err := rows.Scan(&a.TestID, &a.QuestionID, &selected, &text); err != nil {
			return nil, err
		}
		a.SelectedIndex = nullIntPtr(selected)
		if text.Valid {
			v := text.String
			a.TextAnswer = &v
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}
