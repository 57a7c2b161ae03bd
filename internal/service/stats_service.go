package service

import (
	"context"
	"fmt"
	"math"

	"github.com/stemsi/placement-backend/internal/model"
	"github.com/stemsi/placement-backend/internal/repository"
)

// StatsService aggregates test sessions for the admin dashboard.
type StatsService struct {
	store repository.Store
}

// NewStatsService creates a new StatsService.
func NewStatsService(store repository.Store) *StatsService {
	return &StatsService{store: store}
}

// Stats summarizes completed tests. AvgScore is rounded to one decimal.
func (s *StatsService) Stats(ctx context.Context) (*model.Stats, error) {
	tests, err := s.store.ListTests(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tests: %w", err)
	}

	stats := &model.Stats{Levels: map[string]int{}}
	sum := 0
	for i := range tests {
		t := &tests[i]
		if t.FinishedAt == nil {
			continue
		}
		stats.Total++
		sum += t.Score()
		if lvl := t.LevelOrEmpty(); lvl != "" {
			stats.Levels[lvl]++
		}
	}
	if stats.Total > 0 {
		stats.AvgScore = math.Round(float64(sum)/float64(stats.Total)*10) / 10
	}
	return stats, nil
}

// ListTests returns every test session ordered by id.
func (s *StatsService) ListTests(ctx context.Context) ([]model.TestSession, error) {
	tests, err := s.store.ListTests(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tests: %w", err)
	}
	return tests, nil
}
