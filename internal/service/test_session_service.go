package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/placement-backend/internal/config"
	"github.com/stemsi/placement-backend/internal/model"
	"github.com/stemsi/placement-backend/internal/repository"
	"github.com/stemsi/placement-backend/internal/scoring"
)

// EssayRules holds the essay word-count requirement.
type EssayRules struct {
	MinWords int
	Policy   config.EssayPolicy
}

// TestSessionService drives a test from start to result.
type TestSessionService struct {
	store     repository.Store
	questions *QuestionService
	rdb       *redis.Client
	essays    EssayRules
	log       zerolog.Logger
	now       func() time.Time
}

// NewTestSessionService creates a new TestSessionService. rdb may be nil,
// which disables result events.
func NewTestSessionService(
	store repository.Store,
	questions *QuestionService,
	rdb *redis.Client,
	essays EssayRules,
	log zerolog.Logger,
) *TestSessionService {
	return &TestSessionService{
		store:     store,
		questions: questions,
		rdb:       rdb,
		essays:    essays,
		log:       log.With().Str("component", "test_session_service").Logger(),
		now:       time.Now,
	}
}

func (s *TestSessionService) getTest(ctx context.Context, testID int) (*model.TestSession, error) {
	t, err := s.store.GetTest(ctx, testID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrTestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get test: %w", err)
	}
	return t, nil
}

// Start opens a new session for an existing user.
func (s *TestSessionService) Start(ctx context.Context, userID int, examType string) (*model.TestSession, error) {
	if userID <= 0 {
		return nil, invalid("user_id", "user_id is required")
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	t := &model.TestSession{UserID: userID, ExamType: model.ParseExamType(examType)}
	if err := s.store.CreateTest(ctx, t); err != nil {
		return nil, fmt.Errorf("create test: %w", err)
	}

	s.log.Info().Int("test_id", t.ID).Int("user_id", userID).Str("exam_type", string(t.ExamType)).Msg("Test started")
	return t, nil
}

func validateAnswers(inputs []model.AnswerInput) ([]model.Answer, error) {
	if len(inputs) == 0 {
		return nil, invalid("answers", "answers must not be empty")
	}
	out := make([]model.Answer, 0, len(inputs))
	for i, in := range inputs {
		field := fmt.Sprintf("answers[%d]", i)
		if in.QuestionID <= 0 {
			return nil, invalid(field+".question_id", "question_id must be a positive integer")
		}
		if (in.SelectedIndex == nil) == (in.TextAnswer == nil) {
			return nil, invalid(field, "exactly one of selected_index and text_answer is required")
		}
		out = append(out, model.Answer{
			QuestionID:    in.QuestionID,
			SelectedIndex: in.SelectedIndex,
			TextAnswer:    in.TextAnswer,
		})
	}
	return out, nil
}

// SubmitAnswers validates the whole batch and stores it in a single write.
// A later answer to the same question replaces the earlier one.
func (s *TestSessionService) SubmitAnswers(ctx context.Context, testID int, inputs []model.AnswerInput) error {
	answers, err := validateAnswers(inputs)
	if err != nil {
		return err
	}

	t, err := s.getTest(ctx, testID)
	if err != nil {
		return err
	}
	if t.Phase() == model.TestPhaseCompleted {
		return ErrTestCompleted
	}

	if err := s.store.SaveAnswers(ctx, testID, answers); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTestNotFound
		}
		return fmt.Errorf("save answers: %w", err)
	}
	return nil
}

// grade scores the stored answers of t against the live question set.
func (s *TestSessionService) grade(ctx context.Context, t *model.TestSession, section model.Section) (scoring.Tally, error) {
	var (
		set []model.Question
		err error
	)
	if section != "" {
		set, err = s.questions.ListBank(ctx, section.Bank())
	} else {
		set, err = s.questions.QuestionSet(ctx, t.ExamType)
	}
	if err != nil {
		return scoring.Tally{}, err
	}

	answers, err := s.store.ListAnswers(ctx, t.ID)
	if err != nil {
		return scoring.Tally{}, fmt.Errorf("list answers: %w", err)
	}

	tally := scoring.Grade(set, answers)
	if tally.Skipped > 0 && section == "" {
		s.log.Debug().Int("test_id", t.ID).Int("skipped", tally.Skipped).Msg("Ignored answers for unknown questions")
	}
	return tally, nil
}

// FinishAnswers scores the multiple-choice phase and freezes the result.
// It may be called again until the test is completed.
func (s *TestSessionService) FinishAnswers(ctx context.Context, testID int) (*model.ScoreResult, error) {
	t, err := s.getTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	if t.Phase() == model.TestPhaseCompleted {
		return nil, ErrTestCompleted
	}

	tally, err := s.grade(ctx, t, "")
	if err != nil {
		return nil, err
	}
	update := scoring.Outcome(t.ExamType, tally)
	if err := s.store.UpdateTestScore(ctx, testID, update); err != nil {
		return nil, fmt.Errorf("update score: %w", err)
	}

	score := update.RawScore
	if update.NormalizedScore != nil {
		score = *update.NormalizedScore
	}

	s.log.Info().Int("test_id", testID).Int("raw", update.RawScore).Int("total", update.TotalQuestions).Str("level", update.Level).Msg("MCQ phase scored")
	return &model.ScoreResult{Score: score, Level: update.Level}, nil
}

// SaveEssay stores essay 1 or 2 of a placement test.
func (s *TestSessionService) SaveEssay(ctx context.Context, testID, which int, text string) (*model.EssayResult, error) {
	if which != 1 && which != 2 {
		return nil, invalid("which", "essay must be 1 or 2")
	}

	t, err := s.getTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	if t.ExamType != model.ExamTypePlacement {
		return nil, ErrEssayNotAllowed
	}
	if t.Phase() == model.TestPhaseCompleted {
		return nil, ErrTestCompleted
	}

	words := scoring.CountWords(text)
	if err := s.store.SaveEssay(ctx, testID, which, text, words); err != nil {
		return nil, fmt.Errorf("save essay: %w", err)
	}
	return &model.EssayResult{
		Words:        words,
		MinWords:     s.essays.MinWords,
		MeetsMinimum: words >= s.essays.MinWords,
	}, nil
}

// Finish completes a test whose multiple-choice phase is scored. Finishing
// a completed test returns the frozen result again.
func (s *TestSessionService) Finish(ctx context.Context, testID int) (*model.ScoreResult, error) {
	t, err := s.getTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	if t.RawScore == nil {
		return nil, ErrMCQNotFinished
	}

	level := scoring.Level(t.ExamType, t.Score())
	if t.Phase() == model.TestPhaseCompleted {
		return &model.ScoreResult{Score: t.Score(), Level: level}, nil
	}

	if t.ExamType == model.ExamTypePlacement && s.essays.Policy == config.EssayPolicyEnforced {
		if t.Essay1Words < s.essays.MinWords || t.Essay2Words < s.essays.MinWords {
			return nil, ErrEssayTooShort
		}
	}

	finishedAt := s.now().UTC()
	changed, err := s.store.CompleteTest(ctx, testID, level, finishedAt)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTestNotFound
		}
		return nil, fmt.Errorf("complete test: %w", err)
	}

	if changed {
		s.log.Info().Int("test_id", testID).Int("score", t.Score()).Str("level", level).Msg("Test completed")
		s.publishResult(ctx, model.ResultEvent{
			TestID:         t.ID,
			UserID:         t.UserID,
			ExamType:       t.ExamType,
			Score:          t.Score(),
			RawScore:       *t.RawScore,
			TotalQuestions: derefInt(t.TotalQuestions),
			Level:          level,
			FinishedAt:     finishedAt,
		})
	}
	return &model.ScoreResult{Score: t.Score(), Level: level}, nil
}

// publishResult queues the notification and feeds the live monitor.
// Failures are logged only; the test is already completed.
func (s *TestSessionService) publishResult(ctx context.Context, ev model.ResultEvent) {
	if s.rdb == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		s.log.Error().Err(err).Int("test_id", ev.TestID).Msg("Failed to encode result event")
		return
	}

	pipe := s.rdb.Pipeline()
	pipe.RPush(ctx, config.WorkerKey.NotifyResultsQueue, payload)
	pipe.Publish(ctx, config.CacheKey.ResultsMonitorChannel(), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Int("test_id", ev.TestID).Msg("Failed to publish result event")
	}
}

// Result returns the public projection of a test.
func (s *TestSessionService) Result(ctx context.Context, testID int) (*model.TestResult, error) {
	t, err := s.getTest(ctx, testID)
	if err != nil {
		return nil, err
	}

	res := &model.TestResult{
		RawScore:       t.RawScore,
		TotalQuestions: t.TotalQuestions,
		Level:          t.Level,
		ExamType:       t.ExamType,
		Essay1Words:    t.Essay1Words,
		Essay2Words:    t.Essay2Words,
		Status:         t.Status,
		FinishedAt:     t.FinishedAt,
	}
	if t.RawScore != nil {
		score := t.Score()
		res.Score = &score
	}
	return res, nil
}

// ModuleScore recomputes one SAT section from the live answers.
func (s *TestSessionService) ModuleScore(ctx context.Context, testID int, section string) (*model.ModuleScore, error) {
	sec := model.Section(section)
	switch sec {
	case "":
		sec = model.SectionVerbal
	case model.SectionVerbal, model.SectionMath:
	default:
		return nil, invalid("section", "section must be verbal or math")
	}

	t, err := s.getTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	if t.ExamType != model.ExamTypeSAT {
		return nil, ErrNotSATTest
	}

	tally, err := s.grade(ctx, t, sec)
	if err != nil {
		return nil, err
	}
	return &model.ModuleScore{Correct: tally.Correct, Total: tally.Total}, nil
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
