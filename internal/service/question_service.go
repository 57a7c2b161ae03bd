package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/placement-backend/internal/config"
	"github.com/stemsi/placement-backend/internal/model"
	"github.com/stemsi/placement-backend/internal/repository"
)

// QuestionService serves the three question banks. Display slices are
// cached in Redis when a client is configured; the answer key never is.
type QuestionService struct {
	store repository.Store
	rdb   *redis.Client
	ttl   time.Duration
	log   zerolog.Logger
}

// NewQuestionService creates a new QuestionService. rdb may be nil.
func NewQuestionService(store repository.Store, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *QuestionService {
	return &QuestionService{
		store: store,
		rdb:   rdb,
		ttl:   ttl,
		log:   log.With().Str("component", "question_service").Logger(),
	}
}

// QuestionSet returns the full question set of an exam type with answer
// keys: the placement bank, or the verbal bank followed by the math bank.
func (s *QuestionService) QuestionSet(ctx context.Context, examType model.ExamType) ([]model.Question, error) {
	var set []model.Question
	for _, bank := range examType.Banks() {
		qs, err := s.store.ListQuestions(ctx, bank)
		if err != nil {
			return nil, fmt.Errorf("list %s questions: %w", bank, err)
		}
		set = append(set, qs...)
	}
	return set, nil
}

// ForDisplay returns the exam's question set without answer keys.
func (s *QuestionService) ForDisplay(ctx context.Context, examType model.ExamType) ([]model.DisplayQuestion, error) {
	key := config.CacheKey.QuestionDisplayKey(string(examType))

	if s.rdb != nil {
		data, err := s.rdb.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var cached []model.DisplayQuestion
			if jsonErr := json.Unmarshal(data, &cached); jsonErr == nil {
				return cached, nil
			}
			s.log.Warn().Str("key", key).Msg("Dropping undecodable cache entry")
		case !errors.Is(err, redis.Nil):
			s.log.Warn().Err(err).Str("key", key).Msg("Question cache read failed")
		}
	}

	set, err := s.QuestionSet(ctx, examType)
	if err != nil {
		return nil, err
	}
	out := make([]model.DisplayQuestion, len(set))
	for i, q := range set {
		out[i] = q.Display()
	}

	if s.rdb != nil {
		if payload, err := json.Marshal(out); err == nil {
			if err := s.rdb.Set(ctx, key, payload, s.ttl).Err(); err != nil {
				s.log.Warn().Err(err).Str("key", key).Msg("Question cache write failed")
			}
		}
	}
	return out, nil
}

// ForTest returns the display slice for the exam type of a test session.
func (s *QuestionService) ForTest(ctx context.Context, testID int) ([]model.DisplayQuestion, error) {
	t, err := s.store.GetTest(ctx, testID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrTestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get test: %w", err)
	}

	qs, err := s.ForDisplay(ctx, t.ExamType)
	if err != nil {
		return nil, err
	}
	if len(qs) == 0 {
		return nil, ErrNoQuestions
	}
	return qs, nil
}

// ListBank returns a bank with answer keys, ordered by id.
func (s *QuestionService) ListBank(ctx context.Context, bank model.Bank) ([]model.Question, error) {
	qs, err := s.store.ListQuestions(ctx, bank)
	if err != nil {
		return nil, fmt.Errorf("list %s questions: %w", bank, err)
	}
	return qs, nil
}

func validateQuestion(q *model.Question) error {
	q.Text = strings.TrimSpace(q.Text)
	if q.ID <= 0 {
		return invalid("id", "id must be a positive integer")
	}
	if q.Text == "" {
		return invalid("text", "text is required")
	}
	if q.Kind == "" {
		q.Kind = model.QuestionKindChoice
	}

	switch q.Kind {
	case model.QuestionKindChoice:
		if len(q.Options) == 0 {
			return invalid("options", "choice questions need at least one option")
		}
		if q.CorrectIndex == nil || *q.CorrectIndex < 0 || *q.CorrectIndex >= len(q.Options) {
			return invalid("correct_index", "correct_index must point at one of the options")
		}
		q.Answer = ""
	case model.QuestionKindText:
		if q.Bank == model.BankPlacement {
			return invalid("kind", "placement questions must be multiple choice")
		}
		if strings.TrimSpace(q.Answer) == "" {
			return invalid("answer", "text questions need an answer")
		}
		q.Options = nil
		q.CorrectIndex = nil
	default:
		return invalid("kind", "kind must be choice or text")
	}

	if len(q.Chart) > 0 && !json.Valid(q.Chart) {
		return invalid("chart", "chart must be valid JSON")
	}
	return nil
}

// otherSATBank returns the SAT bank that shares the id space with b.
func otherSATBank(b model.Bank) (model.Bank, bool) {
	switch b {
	case model.BankSATVerbal:
		return model.BankSATMath, true
	case model.BankSATMath:
		return model.BankSATVerbal, true
	}
	return "", false
}

// Upsert creates or fully replaces a question. Image and chart keep their
// stored values when the request omits them.
func (s *QuestionService) Upsert(ctx context.Context, bank model.Bank, req model.UpsertQuestionRequest) (*model.Question, error) {
	q := &model.Question{
		ID:           req.ID,
		Bank:         bank,
		Section:      bank.Section(),
		Text:         req.Text,
		Chart:        req.Chart,
		Kind:         req.Kind,
		Options:      req.Options,
		CorrectIndex: req.CorrectIndex,
		Answer:       req.Answer,
	}
	if req.Image != nil {
		q.Image = *req.Image
	}
	if string(q.Chart) == "null" {
		q.Chart = nil
	}

	if err := validateQuestion(q); err != nil {
		return nil, err
	}

	existing, err := s.store.GetQuestion(ctx, bank, q.ID)
	switch {
	case err == nil:
		if req.Image == nil {
			q.Image = existing.Image
		}
		if req.Chart == nil {
			q.Chart = existing.Chart
		}
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("get question: %w", err)
	}

	if other, ok := otherSATBank(bank); ok {
		_, err := s.store.GetQuestion(ctx, other, q.ID)
		if err == nil {
			return nil, ErrQuestionIDTaken
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("check %s ids: %w", other, err)
		}
	}

	if err := s.store.UpsertQuestion(ctx, q); err != nil {
		return nil, fmt.Errorf("upsert question: %w", err)
	}
	s.invalidate(ctx, bank)
	return q, nil
}

// Delete removes a question from a bank.
func (s *QuestionService) Delete(ctx context.Context, bank model.Bank, id int) error {
	err := s.store.DeleteQuestion(ctx, bank, id)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrQuestionNotFound
	}
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	s.invalidate(ctx, bank)
	return nil
}

func (s *QuestionService) invalidate(ctx context.Context, bank model.Bank) {
	if s.rdb == nil {
		return
	}
	key := config.CacheKey.QuestionDisplayKey(string(bank.ExamType()))
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Question cache invalidation failed")
	}
}

// ─── Seeding ────────────────────────────────────────────────────────

// seedQuestion is the on-disk shape of a bank file entry. "type" is the
// older name of "kind"; any value other than "text" is multiple choice.
type seedQuestion struct {
	ID           int             `json:"id"`
	Text         string          `json:"text"`
	Image        string          `json:"image"`
	Chart        json.RawMessage `json:"chart"`
	Kind         string          `json:"kind"`
	Type         string          `json:"type"`
	Options      []string        `json:"options"`
	CorrectIndex *int            `json:"correct_index"`
	Answer       string          `json:"answer"`
}

func (sq seedQuestion) toQuestion(bank model.Bank) model.Question {
	kind := sq.Kind
	if kind == "" {
		kind = sq.Type
	}
	q := model.Question{
		ID:           sq.ID,
		Bank:         bank,
		Section:      bank.Section(),
		Text:         sq.Text,
		Image:        sq.Image,
		Kind:         model.QuestionKindChoice,
		Options:      sq.Options,
		CorrectIndex: sq.CorrectIndex,
		Answer:       sq.Answer,
	}
	if string(sq.Chart) != "null" {
		q.Chart = sq.Chart
	}
	if kind == string(model.QuestionKindText) {
		q.Kind = model.QuestionKindText
	}
	return q
}

// SeedReport counts what SeedFromDir loaded per bank.
type SeedReport map[model.Bank]int

// SeedFromDir loads <bank>.json files from dir. Banks that already hold
// questions are left alone unless overwrite is set. Missing files are skipped.
func (s *QuestionService) SeedFromDir(ctx context.Context, dir string, overwrite bool) (SeedReport, error) {
	report := SeedReport{}
	for _, bank := range model.AllBanks {
		path := filepath.Join(dir, string(bank)+".json")
		raw, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			s.log.Debug().Str("path", path).Msg("No seed file, skipping bank")
			continue
		}
		if err != nil {
			return report, fmt.Errorf("read %s: %w", path, err)
		}

		if !overwrite {
			existing, err := s.store.ListQuestions(ctx, bank)
			if err != nil {
				return report, fmt.Errorf("list %s questions: %w", bank, err)
			}
			if len(existing) > 0 {
				s.log.Debug().Str("bank", string(bank)).Int("existing", len(existing)).Msg("Bank not empty, skipping seed")
				continue
			}
		}

		var entries []seedQuestion
		if err := json.Unmarshal(raw, &entries); err != nil {
			return report, fmt.Errorf("decode %s: %w", path, err)
		}

		for _, e := range entries {
			q := e.toQuestion(bank)
			if err := validateQuestion(&q); err != nil {
				return report, fmt.Errorf("%s question %d: %w", bank, e.ID, err)
			}
			if err := s.store.UpsertQuestion(ctx, &q); err != nil {
				return report, fmt.Errorf("seed %s question %d: %w", bank, e.ID, err)
			}
			report[bank]++
		}
		s.invalidate(ctx, bank)

		s.log.Info().Str("bank", string(bank)).Int("count", report[bank]).Msg("Question bank seeded")
	}
	return report, nil
}
