package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stemsi/placement-backend/internal/model"
)

// fileData is the whole persisted document.
type fileData struct {
	NextUserID int                             `json:"next_user_id"`
	NextTestID int                             `json:"next_test_id"`
	Users      []model.User                    `json:"users"`
	Questions  map[model.Bank][]model.Question `json:"questions"`
	Tests      []model.TestSession             `json:"tests"`
	Answers    map[int][]model.Answer          `json:"answers"`
}

func newFileData() *fileData {
	return &fileData{
		NextUserID: 1,
		NextTestID: 1,
		Users:      []model.User{},
		Questions:  map[model.Bank][]model.Question{},
		Tests:      []model.TestSession{},
		Answers:    map[int][]model.Answer{},
	}
}

// FileStore implements Store on a single JSON document. Every mutation
// works on a copy that replaces the live data only after it reached disk,
// so a failed write leaves both memory and file unchanged.
type FileStore struct {
	mu   sync.RWMutex
	path string
	data *fileData
}

// NewFileStore loads path, or starts empty if it does not exist yet.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	data := newFileData()
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", path, err)
	default:
		if err := json.Unmarshal(raw, data); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	s := &FileStore{path: path, data: data}
	// Check writability now so the fallback chain can move on at boot.
	if err := s.write(data); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) Backend() string { return BackendFile }

func (s *FileStore) Close() error { return nil }

func (s *FileStore) write(d *fileData) error {
	raw, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".db-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

func cloneData(d *fileData) (*fileData, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	out := newFileData()
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}

// mutate applies fn to a copy of the data, persists it, then swaps it in.
func (s *FileStore) mutate(fn func(d *fileData) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := cloneData(s.data)
	if err != nil {
		return fmt.Errorf("clone: %w", err)
	}
	if err := fn(next); err != nil {
		return err
	}
	if err := s.write(next); err != nil {
		return err
	}
	s.data = next
	return nil
}

func (d *fileData) userIndex(id int) int {
	for i := range d.Users {
		if d.Users[i].ID == id {
			return i
		}
	}
	return -1
}

func (d *fileData) testIndex(id int) int {
	for i := range d.Tests {
		if d.Tests[i].ID == id {
			return i
		}
	}
	return -1
}

// ─── Users ──────────────────────────────────────────────────────────

func (s *FileStore) UpsertUserByEmail(_ context.Context, u *model.User) error {
	return s.mutate(func(d *fileData) error {
		key := strings.ToLower(u.Email)
		for i := range d.Users {
			if strings.ToLower(d.Users[i].Email) == key {
				d.Users[i].Name = u.Name
				d.Users[i].Age = u.Age
				d.Users[i].Phone = u.Phone
				*u = d.Users[i]
				return nil
			}
		}
		u.ID = d.NextUserID
		u.CreatedAt = time.Now().UTC()
		d.NextUserID++
		d.Users = append(d.Users, *u)
		return nil
	})
}

func (s *FileStore) ListUsers(_ context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.User{}, s.data.Users...), nil
}

func (s *FileStore) GetUser(_ context.Context, id int) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.data.userIndex(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	u := s.data.Users[i]
	return &u, nil
}

func (s *FileStore) UpdateUser(_ context.Context, u *model.User) error {
	return s.mutate(func(d *fileData) error {
		i := d.userIndex(u.ID)
		if i < 0 {
			return ErrNotFound
		}
		key := strings.ToLower(u.Email)
		for j := range d.Users {
			if j != i && strings.ToLower(d.Users[j].Email) == key {
				return ErrDuplicateEmail
			}
		}
		u.CreatedAt = d.Users[i].CreatedAt
		d.Users[i] = *u
		return nil
	})
}

func (s *FileStore) DeleteUser(_ context.Context, id int) error {
	return s.mutate(func(d *fileData) error {
		i := d.userIndex(id)
		if i < 0 {
			return ErrNotFound
		}
		d.Users = append(d.Users[:i], d.Users[i+1:]...)
		return nil
	})
}

// ─── Questions ──────────────────────────────────────────────────────

func (s *FileStore) ListQuestions(_ context.Context, bank model.Bank) ([]model.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Question{}, s.data.Questions[bank]...), nil
}

func (s *FileStore) GetQuestion(_ context.Context, bank model.Bank, id int) (*model.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, q := range s.data.Questions[bank] {
		if q.ID == id {
			return &q, nil
		}
	}
	return nil, ErrNotFound
}

func (s *FileStore) UpsertQuestion(_ context.Context, q *model.Question) error {
	return s.mutate(func(d *fileData) error {
		stored := *q
		stored.Section = q.Bank.Section()
		list := d.Questions[q.Bank]
		for i := range list {
			if list[i].ID == q.ID {
				list[i] = stored
				return nil
			}
		}
		list = append(list, stored)
		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
		d.Questions[q.Bank] = list
		return nil
	})
}

func (s *FileStore) DeleteQuestion(_ context.Context, bank model.Bank, id int) error {
	return s.mutate(func(d *fileData) error {
		list := d.Questions[bank]
		for i := range list {
			if list[i].ID == id {
				d.Questions[bank] = append(list[:i], list[i+1:]...)
				return nil
			}
		}
		return ErrNotFound
	})
}

// ─── Tests ──────────────────────────────────────────────────────────

func (s *FileStore) CreateTest(_ context.Context, t *model.TestSession) error {
	return s.mutate(func(d *fileData) error {
		t.ID = d.NextTestID
		t.StartedAt = time.Now().UTC()
		t.Status = model.TestStatusInProgress
		d.NextTestID++
		d.Tests = append(d.Tests, *t)
		return nil
	})
}

func (s *FileStore) GetTest(_ context.Context, id int) (*model.TestSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.data.testIndex(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	t := s.data.Tests[i]
	return &t, nil
}

func (s *FileStore) ListTests(_ context.Context) ([]model.TestSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.TestSession{}, s.data.Tests...), nil
}

func (s *FileStore) UpdateTestScore(_ context.Context, id int, u model.ScoreUpdate) error {
	return s.mutate(func(d *fileData) error {
		i := d.testIndex(id)
		if i < 0 {
			return ErrNotFound
		}
		raw, total, level := u.RawScore, u.TotalQuestions, u.Level
		t := &d.Tests[i]
		t.RawScore = &raw
		t.NormalizedScore = u.NormalizedScore
		t.TotalQuestions = &total
		t.Level = &level
		return nil
	})
}

func (s *FileStore) SaveEssay(_ context.Context, id, which int, text string, words int) error {
	return s.mutate(func(d *fileData) error {
		i := d.testIndex(id)
		if i < 0 {
			return ErrNotFound
		}
		if which == 2 {
			d.Tests[i].Essay2Text, d.Tests[i].Essay2Words = text, words
		} else {
			d.Tests[i].Essay1Text, d.Tests[i].Essay1Words = text, words
		}
		return nil
	})
}

func (s *FileStore) CompleteTest(_ context.Context, id int, level string, finishedAt time.Time) (bool, error) {
	changed := false
	err := s.mutate(func(d *fileData) error {
		i := d.testIndex(id)
		if i < 0 {
			return ErrNotFound
		}
		t := &d.Tests[i]
		if t.FinishedAt != nil {
			return nil
		}
		ft := finishedAt.UTC()
		t.FinishedAt = &ft
		t.Level = &level
		t.Status = model.TestStatusCompleted
		changed = true
		return nil
	})
	return changed, err
}

// ─── Answers ────────────────────────────────────────────────────────

func (s *FileStore) SaveAnswers(_ context.Context, testID int, answers []model.Answer) error {
	return s.mutate(func(d *fileData) error {
		if d.testIndex(testID) < 0 {
			return ErrNotFound
		}
		list := d.Answers[testID]
		for _, a := range answers {
			a.TestID = testID
			replaced := false
			for i := range list {
				if list[i].QuestionID == a.QuestionID {
					list[i] = a
					replaced = true
					break
				}
			}
			if !replaced {
				list = append(list, a)
			}
		}
		sort.Slice(list, func(i, j int) bool { return list[i].QuestionID < list[j].QuestionID })
		d.Answers[testID] = list
		return nil
	})
}

func (s *FileStore) ListAnswers(_ context.Context, testID int) ([]model.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Answer{}, s.data.Answers[testID]...), nil
}
