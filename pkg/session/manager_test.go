package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slowFactory(calls *int32) func(context.Context, string) (*domain.Session, error) {
	return func(ctx context.Context, id string) (*domain.Session, error) {
		atomic.AddInt32(calls, 1)
		time.Sleep(10 * time.Millisecond) // widen the race window
		return domain.NewSession(id, nil), nil
	}
}

func TestManager_LookupOrCreate_Concurrent(t *testing.T) {
	mgr := session.NewManager()
	ctx := context.Background()

	var calls int32
	factory := slowFactory(&calls)

	const callers = 50
	results := make([]*domain.Session, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := mgr.LookupOrCreate(ctx, "atomic-init", factory)
			assert.NoError(t, err)
			results[i] = s
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "factory must run exactly once")
	for i := 1; i < callers; i++ {
		assert.Same(t, results[0], results[i])
	}
	assert.Equal(t, 1, mgr.Len())
}

func TestManager_LookupOrCreate_Existing(t *testing.T) {
	mgr := session.NewManager()
	ctx := context.Background()

	var calls int32
	first, err := mgr.LookupOrCreate(ctx, "c1", slowFactory(&calls))
	require.NoError(t, err)
	second, err := mgr.LookupOrCreate(ctx, "c1", slowFactory(&calls))
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), calls)
}

func TestManager_LookupOrCreate_FactoryError(t *testing.T) {
	mgr := session.NewManager()
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := mgr.LookupOrCreate(ctx, "c1", func(context.Context, string) (*domain.Session, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, mgr.Len())

	var calls int32
	s, err := mgr.LookupOrCreate(ctx, "c1", slowFactory(&calls))
	require.NoError(t, err, "a failed creation must not poison the id")
	assert.Equal(t, "c1", s.ConversationID)
}

func TestManager_LookupOrCreate_FirstCallerCancelled(t *testing.T) {
	mgr := session.NewManager()
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls int32

	type ctxKey struct{}
	factory := func(ctx context.Context, id string) (*domain.Session, error) {
		atomic.AddInt32(&calls, 1)
		close(entered)
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		assert.Equal(t, "kept", ctx.Value(ctxKey{}), "values still reach the factory")
		return domain.NewSession(id, nil), nil
	}

	first, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "kept"))
	firstDone := make(chan error, 1)
	go func() {
		_, err := mgr.LookupOrCreate(first, "c1", factory)
		firstDone <- err
	}()
	<-entered

	secondDone := make(chan error, 1)
	go func() {
		_, err := mgr.LookupOrCreate(context.Background(), "c1", factory)
		secondDone <- err
	}()
	time.Sleep(10 * time.Millisecond) // let the second caller join the flight

	cancel()
	close(release)

	assert.NoError(t, <-firstDone)
	assert.NoError(t, <-secondDone, "a waiter must not inherit another caller's cancellation")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, 1, mgr.Len())
}

func TestManager_CreateHook(t *testing.T) {
	var created []string
	mgr := session.NewManager(session.WithCreateHook(func(id string) { created = append(created, id) }))
	ctx := context.Background()

	var calls int32
	_, _ = mgr.LookupOrCreate(ctx, "a", slowFactory(&calls))
	_, _ = mgr.LookupOrCreate(ctx, "a", slowFactory(&calls))
	_, _ = mgr.LookupOrCreate(ctx, "b", slowFactory(&calls))

	assert.Equal(t, []string{"a", "b"}, created)
}

func TestManager_Replace(t *testing.T) {
	mgr := session.NewManager()
	ctx := context.Background()

	_, err := mgr.Get("c1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	s := domain.NewSession("c1", nil)
	mgr.Replace("c1", s)
	mgr.Replace("c1", s)

	got, err := mgr.Get("c1")
	require.NoError(t, err)
	assert.Same(t, s, got)

	// Replace from within the conversation lock must not deadlock.
	updated := s.Clone()
	updated.UserName = "Ada"
	err = mgr.WithLock(ctx, "c1", func(context.Context) error {
		mgr.Replace("c1", updated)
		return nil
	})
	require.NoError(t, err)
	got, _ = mgr.Get("c1")
	assert.Equal(t, "Ada", got.UserName)
	assert.Equal(t, []string{"c1"}, mgr.List())
}

func TestManager_WithLock_Serializes(t *testing.T) {
	mgr := session.NewManager()
	ctx := context.Background()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := mgr.WithLock(ctx, "race-test", func(context.Context) error {
				v := counter
				time.Sleep(time.Millisecond)
				counter = v + 1
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, counter, "read-modify-write under the lock must not lose updates")
}

func TestManager_WithLock_IndependentKeys(t *testing.T) {
	mgr := session.NewManager()
	ctx := context.Background()

	held := make(chan struct{})
	releaseA := make(chan struct{})
	go func() {
		_ = mgr.WithLock(ctx, "a", func(context.Context) error {
			close(held)
			<-releaseA
			return nil
		})
	}()
	<-held

	done := make(chan struct{})
	go func() {
		_ = mgr.WithLock(ctx, "b", func(context.Context) error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked behind a")
	}
	close(releaseA)
}

func TestManager_WithLock_CancelledContext(t *testing.T) {
	mgr := session.NewManager()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	err := mgr.WithLock(ctx, "c1", func(context.Context) error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)
}
