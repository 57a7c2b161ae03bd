package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/placement-backend/internal/config"
	"github.com/stemsi/placement-backend/internal/model"
	"github.com/stemsi/placement-backend/internal/repository"
)

const (
	NotifyPollTimeout = time.Second
	NotifyRetryDelay  = 5 * time.Second
	NotifyMaxAttempts = 5
)

// NotifyWorker consumes notify_results_queue and hands each result to a Notifier.
type NotifyWorker struct {
	store      repository.Store
	rdb        *redis.Client
	notifier   Notifier
	log        zerolog.Logger
	retryDelay time.Duration
}

// NewNotifyWorker creates a new NotifyWorker.
func NewNotifyWorker(store repository.Store, rdb *redis.Client, notifier Notifier, log zerolog.Logger) *NotifyWorker {
	return &NotifyWorker{
		store:      store,
		rdb:        rdb,
		notifier:   notifier,
		log:        log.With().Str("component", "notify_worker").Logger(),
		retryDelay: NotifyRetryDelay,
	}
}

// Start begins the worker loop. Call in a goroutine.
func (w *NotifyWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *NotifyWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, NotifyPollTimeout, config.WorkerKey.NotifyResultsQueue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}
	if len(result) < 2 {
		return
	}

	if err := w.handle(ctx, result[1]); err != nil {
		next, ok := w.retry(result[1], err)
		if !ok {
			return
		}
		w.log.Error().Err(err).Msg("Notify error, requeueing")
		w.rdb.RPush(context.Background(), config.WorkerKey.NotifyResultsQueue, next)

		select {
		case <-ctx.Done():
		case <-time.After(w.retryDelay):
		}
	}
}

// retry bumps the attempt count of a failed payload. It reports false
// once the event used up NotifyMaxAttempts and is dropped.
func (w *NotifyWorker) retry(raw string, cause error) (string, bool) {
	var ev model.ResultEvent
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		return "", false
	}

	ev.Attempts++
	if ev.Attempts >= NotifyMaxAttempts {
		w.log.Warn().Err(cause).
			Int("test_id", ev.TestID).
			Int("attempts", ev.Attempts).
			Msg("Notification keeps failing, dropping event")
		return "", false
	}

	next, err := json.Marshal(ev)
	if err != nil {
		return "", false
	}
	return string(next), true
}

// handle delivers one queued event. Malformed payloads and results of
// deleted users are dropped; only delivery errors are returned for retry.
func (w *NotifyWorker) handle(ctx context.Context, raw string) error {
	var ev model.ResultEvent
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error, dropping event")
		return nil
	}

	user, err := w.store.GetUser(ctx, ev.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		w.log.Warn().Int("test_id", ev.TestID).Int("user_id", ev.UserID).Msg("User gone, dropping notification")
		return nil
	}
	if err != nil {
		return err
	}

	if err := w.notifier.Notify(ctx, user, ev); err != nil {
		return err
	}
	w.log.Debug().Int("test_id", ev.TestID).Msg("Result delivered")
	return nil
}

// drain delivers what is left in the queue before shutdown. The first
// retryable failure puts the event back and stops.
func (w *NotifyWorker) drain(ctx context.Context) {
	drained := 0
	for {
		raw, err := w.rdb.LPop(ctx, config.WorkerKey.NotifyResultsQueue).Result()
		if err != nil {
			break
		}
		if err := w.handle(ctx, raw); err != nil {
			next, ok := w.retry(raw, err)
			if !ok {
				continue
			}
			w.log.Error().Err(err).Msg("Drain notify error")
			w.rdb.LPush(ctx, config.WorkerKey.NotifyResultsQueue, next)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
