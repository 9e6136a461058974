package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNetwork = errors.New("network unreachable")

// recorder collects notifier and observer calls
type recorder struct {
	mu       sync.Mutex
	messages []string
	outcomes []string
}

func (r *recorder) Notify(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
}

func (r *recorder) RecordMutation(kind, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, kind+":"+outcome)
}

func (r *recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

func (r *recorder) Outcomes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.outcomes...)
}

func newTestReconciler() (*Reconciler, *recorder) {
	r := New()
	rec := &recorder{}
	r.SetNotifier(rec)
	r.SetObserver(rec)
	return r, rec
}

func TestSubmitCommit(t *testing.T) {
	r, rec := newTestReconciler()

	value := 1
	release := make(chan struct{})
	op := Submit(r, context.Background(), Mutation[int, int]{
		Kind:      "counter",
		ErrorText: "Could not count",
		Snapshot:  func() int { return value },
		Apply:     func() { value = 2 },
		Send: func(ctx context.Context) (int, error) {
			<-release
			return 42, nil
		},
		Commit:   func(v int) { value = v },
		Rollback: func(s int) { value = s },
	})

	// Optimistic value is visible before the send resolves
	assert.Equal(t, 2, value)
	assert.True(t, r.IsPending(op.TempID()))
	assert.Nil(t, op.Err())

	close(release)
	require.NoError(t, op.Wait(context.Background()))

	assert.Equal(t, 42, value)
	assert.False(t, r.IsPending(op.TempID()))
	assert.Empty(t, r.Pending())
	assert.Empty(t, rec.Messages())
	assert.Equal(t, []string{"counter:committed"}, rec.Outcomes())
}

func TestSubmitRollbackNotifiesOnce(t *testing.T) {
	r, rec := newTestReconciler()

	value := "before"
	op := Submit(r, context.Background(), Mutation[string, struct{}]{
		Kind:      "rename",
		ErrorText: "Could not rename",
		Snapshot:  func() string { return value },
		Apply:     func() { value = "after" },
		Send: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, errNetwork
		},
		Commit:   func(struct{}) { t.Error("commit must not run on failure") },
		Rollback: func(s string) { value = s },
	})

	err := op.Wait(context.Background())
	require.ErrorIs(t, err, errNetwork)
	assert.ErrorIs(t, op.Err(), errNetwork)

	assert.Equal(t, "before", value)
	assert.Equal(t, []string{"Could not rename"}, rec.Messages())
	assert.Equal(t, []string{"rename:rolled_back"}, rec.Outcomes())
	assert.False(t, r.IsPending(op.TempID()))
}

func TestSubmitDuplicateTempID(t *testing.T) {
	r, rec := newTestReconciler()

	release := make(chan struct{})
	first := Submit(r, context.Background(), Mutation[struct{}, struct{}]{
		Kind:   "create",
		TempID: "temp-fixed",
		Send: func(ctx context.Context) (struct{}, error) {
			<-release
			return struct{}{}, nil
		},
	})

	applied := false
	second := Submit(r, context.Background(), Mutation[struct{}, struct{}]{
		Kind:   "create",
		TempID: "temp-fixed",
		Apply:  func() { applied = true },
		Send: func(ctx context.Context) (struct{}, error) {
			t.Error("duplicate must not be sent")
			return struct{}{}, nil
		},
	})

	require.ErrorIs(t, second.Wait(context.Background()), ErrDuplicateTempID)
	assert.False(t, applied)
	assert.Equal(t, []string{"temp-fixed"}, r.Pending())

	close(release)
	require.NoError(t, first.Wait(context.Background()))
	assert.Contains(t, rec.Outcomes(), "create:rejected")
}

func TestSubmitWithoutSend(t *testing.T) {
	r := New()
	op := Submit(r, context.Background(), Mutation[struct{}, struct{}]{Kind: "noop"})
	assert.ErrorIs(t, op.Err(), ErrNoSend)
}

func TestSubmitSendPanicRollsBack(t *testing.T) {
	r, rec := newTestReconciler()

	value := 0
	op := Submit(r, context.Background(), Mutation[int, int]{
		Kind:      "explode",
		ErrorText: "Something broke",
		Snapshot:  func() int { return value },
		Apply:     func() { value = 1 },
		Send:      func(ctx context.Context) (int, error) { panic("boom") },
		Rollback:  func(s int) { value = s },
	})

	require.Error(t, op.Wait(context.Background()))
	assert.Equal(t, 0, value)
	assert.Equal(t, []string{"Something broke"}, rec.Messages())
}

func TestSameTargetSendsInOrder(t *testing.T) {
	r := New()

	var (
		mu    sync.Mutex
		order []int
	)
	releases := make([]chan struct{}, 3)
	ops := make([]*Op, 3)
	for i := range releases {
		i := i
		releases[i] = make(chan struct{})
		ops[i] = Submit(r, context.Background(), Mutation[struct{}, struct{}]{
			Kind:   "ordered",
			Target: "post-1",
			Send: func(ctx context.Context) (struct{}, error) {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				<-releases[i]
				return struct{}{}, nil
			},
		})
	}

	assert.Equal(t, 3, r.InFlight("post-1"))

	// Releasing out of order still sends in submission order
	close(releases[2])
	close(releases[1])
	time.Sleep(10 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, []int{0}, order)
	mu.Unlock()

	close(releases[0])
	r.Wait()

	assert.Equal(t, []int{0, 1, 2}, order)
	assert.Equal(t, 0, r.InFlight("post-1"))
	for _, op := range ops {
		assert.NoError(t, op.Err())
	}
}

func TestDifferentTargetsRunConcurrently(t *testing.T) {
	r := New()

	block := make(chan struct{})
	slow := Submit(r, context.Background(), Mutation[struct{}, struct{}]{
		Target: "a",
		Send: func(ctx context.Context) (struct{}, error) {
			<-block
			return struct{}{}, nil
		},
	})
	fast := Submit(r, context.Background(), Mutation[struct{}, struct{}]{
		Target: "b",
		Send: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, nil
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, fast.Wait(ctx))

	close(block)
	require.NoError(t, slow.Wait(context.Background()))
}

func TestCancelledWhileQueuedRollsBack(t *testing.T) {
	r, rec := newTestReconciler()

	block := make(chan struct{})
	defer close(block)
	Submit(r, context.Background(), Mutation[struct{}, struct{}]{
		Target: "t",
		Send: func(ctx context.Context) (struct{}, error) {
			<-block
			return struct{}{}, nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	value := 0
	queued := Submit(r, ctx, Mutation[int, struct{}]{
		Kind:      "queued",
		Target:    "t",
		ErrorText: "Cancelled",
		Snapshot:  func() int { return value },
		Apply:     func() { value = 1 },
		Send: func(ctx context.Context) (struct{}, error) {
			t.Error("cancelled mutation must not be sent")
			return struct{}{}, nil
		},
		Rollback: func(s int) { value = s },
	})
	cancel()

	require.ErrorIs(t, queued.Wait(context.Background()), context.Canceled)
	assert.Equal(t, 0, value)
	assert.Equal(t, []string{"Cancelled"}, rec.Messages())
}

func TestTempIDs(t *testing.T) {
	a, b := NewTempID(), NewTempID()
	assert.NotEqual(t, a, b)
	assert.True(t, IsTempID(a))
	assert.False(t, IsTempID("65f1c0ffee"))
}
