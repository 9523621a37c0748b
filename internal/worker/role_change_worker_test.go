package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/elearning/internal/config"
	"github.com/stemsi/elearning/internal/service/servicetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type holdersFunc func(ctx context.Context, roleID string) ([]string, error)

func (f holdersFunc) IDsByRole(ctx context.Context, roleID string) ([]string, error) {
	return f(ctx, roleID)
}

type recordingNotifier struct {
	mu  sync.Mutex
	ids []string
}

func (n *recordingNotifier) PrincipalChanged(_ context.Context, userIDs ...string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ids = append(n.ids, userIDs...)
}

func (n *recordingNotifier) seen() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string{}, n.ids...)
}

func TestHandleNotifiesHolders(t *testing.T) {
	rdb, _ := servicetest.NewRedis(t)
	n := &recordingNotifier{}
	w := NewRoleChangeWorker(rdb, holdersFunc(func(_ context.Context, roleID string) ([]string, error) {
		assert.Equal(t, "r-1", roleID)
		return []string{"u-1", "u-2"}, nil
	}), n, zerolog.Nop())

	require.NoError(t, w.Handle(context.Background(), []byte(`{"role_id":"r-1"}`)))
	assert.Equal(t, []string{"u-1", "u-2"}, n.seen())
}

func TestHandleDropsMalformedJobs(t *testing.T) {
	rdb, _ := servicetest.NewRedis(t)
	w := NewRoleChangeWorker(rdb, holdersFunc(func(context.Context, string) ([]string, error) {
		t.Fatal("holders must not be queried")
		return nil, nil
	}), &recordingNotifier{}, zerolog.Nop())

	assert.NoError(t, w.Handle(context.Background(), []byte(`not json`)))
	assert.NoError(t, w.Handle(context.Background(), []byte(`{}`)))
}

func TestHandleReturnsLookupErrors(t *testing.T) {
	rdb, _ := servicetest.NewRedis(t)
	boom := errors.New("db down")
	w := NewRoleChangeWorker(rdb, holdersFunc(func(context.Context, string) ([]string, error) {
		return nil, boom
	}), &recordingNotifier{}, zerolog.Nop())

	assert.ErrorIs(t, w.Handle(context.Background(), []byte(`{"role_id":"r-1"}`)), boom)
}

func TestStartConsumesQueue(t *testing.T) {
	rdb, _ := servicetest.NewRedis(t)
	n := &recordingNotifier{}
	w := NewRoleChangeWorker(rdb, holdersFunc(func(context.Context, string) ([]string, error) {
		return []string{"u-9"}, nil
	}), n, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.NoError(t, rdb.RPush(ctx, config.WorkerKey.RoleChangedQueue, `{"role_id":"r-1"}`).Err())
	assert.Eventually(t, func() bool { return len(n.seen()) == 1 }, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestStartRequeuesFailedJobsAndStopsDuringBackoff(t *testing.T) {
	rdb, mr := servicetest.NewRedis(t)
	var calls sync.WaitGroup
	calls.Add(1)
	var once sync.Once
	w := NewRoleChangeWorker(rdb, holdersFunc(func(context.Context, string) ([]string, error) {
		once.Do(calls.Done)
		return nil, errors.New("db down")
	}), &recordingNotifier{}, zerolog.Nop())
	w.retryDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.NoError(t, rdb.RPush(ctx, config.WorkerKey.RoleChangedQueue, `{"role_id":"r-1"}`).Err())
	calls.Wait()

	assert.Eventually(t, func() bool {
		items, err := mr.List(config.WorkerKey.RoleChangedQueue)
		return err == nil && len(items) == 1
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("worker kept sleeping after shutdown")
	}

	items, err := mr.List(config.WorkerKey.RoleChangedQueue)
	require.NoError(t, err)
	assert.Equal(t, []string{`{"role_id":"r-1"}`}, items)
}
