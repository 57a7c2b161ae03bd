package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/smtp"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/placement-backend/internal/config"
	"github.com/stemsi/placement-backend/internal/model"
	"github.com/stemsi/placement-backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []model.ResultEvent
	fail   error
}

func (n *recordingNotifier) Notify(_ context.Context, _ *model.User, ev model.ResultEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	n.events = append(n.events, ev)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

func setup(t *testing.T, notifier Notifier) (*NotifyWorker, *miniredis.Miniredis, *model.User) {
	t.Helper()
	store, err := repository.NewFileStore(filepath.Join(t.TempDir(), "db.json"))
	require.NoError(t, err)

	user := &model.User{Name: "Rina", Age: 19, Email: "rina@example.com", Phone: "1"}
	require.NoError(t, store.UpsertUserByEmail(context.Background(), user))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	w := NewNotifyWorker(store, rdb, notifier, zerolog.Nop())
	w.retryDelay = time.Millisecond
	return w, mr, user
}

func push(t *testing.T, mr *miniredis.Miniredis, ev model.ResultEvent) {
	t.Helper()
	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	_, err = mr.Push(config.WorkerKey.NotifyResultsQueue, string(raw))
	require.NoError(t, err)
}

func TestNotifyWorker_DeliversEvent(t *testing.T) {
	n := &recordingNotifier{}
	w, mr, user := setup(t, n)
	push(t, mr, model.ResultEvent{TestID: 7, UserID: user.ID, Score: 25, Level: "B2"})

	w.processNext(context.Background())

	require.Equal(t, 1, n.count())
	assert.Equal(t, 7, n.events[0].TestID)
	assert.False(t, mr.Exists(config.WorkerKey.NotifyResultsQueue))
}

func TestNotifyWorker_RequeuesOnFailure(t *testing.T) {
	n := &recordingNotifier{fail: errors.New("smtp down")}
	w, mr, user := setup(t, n)
	push(t, mr, model.ResultEvent{TestID: 8, UserID: user.ID})

	w.processNext(context.Background())

	queued, err := mr.List(config.WorkerKey.NotifyResultsQueue)
	require.NoError(t, err)
	require.Len(t, queued, 1)

	var ev model.ResultEvent
	require.NoError(t, json.Unmarshal([]byte(queued[0]), &ev))
	assert.Equal(t, 8, ev.TestID)
	assert.Equal(t, 1, ev.Attempts)
}

func TestNotifyWorker_DropsAfterMaxAttempts(t *testing.T) {
	n := &recordingNotifier{fail: errors.New("550 mailbox unavailable")}
	w, mr, user := setup(t, n)
	push(t, mr, model.ResultEvent{TestID: 10, UserID: user.ID})

	for i := 0; i < NotifyMaxAttempts-1; i++ {
		w.processNext(context.Background())
		queued, err := mr.List(config.WorkerKey.NotifyResultsQueue)
		require.NoError(t, err)
		require.Len(t, queued, 1, "attempt %d", i+1)
	}

	w.processNext(context.Background())
	assert.False(t, mr.Exists(config.WorkerKey.NotifyResultsQueue))
	assert.Zero(t, n.count())
}

func TestNotifyWorker_DropsUnknownUserAndBadPayload(t *testing.T) {
	n := &recordingNotifier{}
	w, mr, _ := setup(t, n)
	push(t, mr, model.ResultEvent{TestID: 9, UserID: 404})
	_, err := mr.Push(config.WorkerKey.NotifyResultsQueue, "{not json")
	require.NoError(t, err)

	w.processNext(context.Background())
	w.processNext(context.Background())

	assert.Zero(t, n.count())
	assert.False(t, mr.Exists(config.WorkerKey.NotifyResultsQueue))
}

func TestNotifyWorker_DrainsOnShutdown(t *testing.T) {
	n := &recordingNotifier{}
	w, mr, user := setup(t, n)
	for i := 1; i <= 3; i++ {
		push(t, mr, model.ResultEvent{TestID: i, UserID: user.ID})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Start(ctx)

	assert.Equal(t, 3, n.count())
}

func TestSMTPNotifier_SendsResultMail(t *testing.T) {
	n := NewSMTPNotifier(&config.Config{SMTPHost: "mail.local", SMTPPort: 2525, SMTPFrom: "tests@placement.local"})

	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	n.send = func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	user := &model.User{Name: "Rina", Email: "rina@example.com"}
	ev := model.ResultEvent{ExamType: model.ExamTypeSAT, Score: 560, RawScore: 3, TotalQuestions: 5, Level: "B-", FinishedAt: time.Now()}
	require.NoError(t, n.Notify(context.Background(), user, ev))

	assert.Equal(t, "mail.local:2525", gotAddr)
	assert.Equal(t, []string{"rina@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: Your SAT Practice Test result")
	assert.Contains(t, gotMsg, "560 (200-800 scale, 3 of 5 correct)")
	assert.Contains(t, gotMsg, "Level: B-")
}

func TestNewNotifier(t *testing.T) {
	n, err := NewNotifier(&config.Config{Notifier: "log"}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &LogNotifier{}, n)

	_, err = NewNotifier(&config.Config{Notifier: "smtp"}, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewNotifier(&config.Config{Notifier: "pigeon"}, zerolog.Nop())
	assert.Error(t, err)
}
