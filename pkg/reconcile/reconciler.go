// ABOUTME: Optimistic mutation reconciler: apply locally, send, then commit or roll back.
// ABOUTME: Mutations on the same target are sent strictly in submission order.

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
)

var (
	ErrDuplicateTempID = errors.New("temporary id already pending")
	ErrNoSend          = errors.New("mutation has no send function")
)

// Outcome labels passed to Observer.RecordMutation
const (
	OutcomeCommitted  = "committed"
	OutcomeRolledBack = "rolled_back"
	OutcomeRejected   = "rejected"
)

// State is the reconciliation state of an optimistic entity
type State int

const (
	Pending State = iota
	Committed
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Committed:
		return "committed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Entity is a locally visible value that may not be confirmed by the server
// yet. TempID is set only while the entity is pending.
type Entity[T any] struct {
	TempID  string
	State   State
	Payload T
	Server  *T
}

// Notifier surfaces a transient error message to the user
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(message string)

// Notify implements Notifier
func (f NotifierFunc) Notify(message string) { f(message) }

// Observer is told about every settled mutation
type Observer interface {
	RecordMutation(kind, outcome string)
}

// Mutation describes one optimistic change. S is the snapshot type taken
// before Apply, R is the server response type.
type Mutation[S, R any] struct {
	Kind   string // e.g. "like", "comment"; used for logs and metrics
	Target string // mutations sharing a non-empty Target are serialized
	TempID string // generated when empty

	// ErrorText is shown through the Notifier when the mutation fails
	ErrorText string

	Snapshot func() S
	Apply    func()
	Send     func(ctx context.Context) (R, error)
	Commit   func(R)
	Rollback func(S)
}

// Op tracks a submitted mutation
type Op struct {
	tempID string
	done   chan struct{}
	err    error
}

func newOp(tempID string) *Op {
	return &Op{tempID: tempID, done: make(chan struct{})}
}

func (o *Op) finish(err error) {
	o.err = err
	close(o.done)
}

// TempID returns the temporary id the mutation was registered under
func (o *Op) TempID() string { return o.tempID }

// Done is closed once the mutation has been committed or rolled back
func (o *Op) Done() <-chan struct{} { return o.done }

// Err returns the send error once Done is closed, nil before that
func (o *Op) Err() error {
	select {
	case <-o.done:
		return o.err
	default:
		return nil
	}
}

// Wait blocks until the mutation settles or ctx is done
func (o *Op) Wait(ctx context.Context) error {
	select {
	case <-o.done:
		return o.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reconciler owns the pending set and the per-target send order
type Reconciler struct {
	mu       sync.Mutex
	pending  map[string]string        // tempID -> kind
	tails    map[string]chan struct{} // target -> done channel of last submitted op
	inflight map[string]int           // target -> unsettled mutations

	notifier Notifier
	observer Observer
	logger   *log.Logger

	wg sync.WaitGroup
}

// New creates an empty reconciler
func New() *Reconciler {
	return &Reconciler{
		pending:  make(map[string]string),
		tails:    make(map[string]chan struct{}),
		inflight: make(map[string]int),
	}
}

// SetNotifier sets where failure messages go
func (r *Reconciler) SetNotifier(n Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifier = n
}

// SetObserver sets the metrics hook
func (r *Reconciler) SetObserver(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = o
}

// SetLogger sets a logger for debugging reconciliation
func (r *Reconciler) SetLogger(logger *log.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

func (r *Reconciler) logf(format string, args ...interface{}) {
	r.mu.Lock()
	logger := r.logger
	r.mu.Unlock()
	if logger != nil {
		logger.Printf(format, args...)
	}
}

// Submit applies m locally and sends it in the background. The optimistic
// state is visible when Submit returns. On failure the snapshot is handed to
// Rollback and the user is notified once.
func Submit[S, R any](r *Reconciler, ctx context.Context, m Mutation[S, R]) *Op {
	if m.TempID == "" {
		m.TempID = NewTempID()
	}
	op := newOp(m.TempID)

	if m.Send == nil {
		op.finish(ErrNoSend)
		return op
	}

	var snapshot S
	if m.Snapshot != nil {
		snapshot = m.Snapshot()
	}

	r.mu.Lock()
	if _, exists := r.pending[m.TempID]; exists {
		observer := r.observer
		r.mu.Unlock()
		if observer != nil {
			observer.RecordMutation(m.Kind, OutcomeRejected)
		}
		op.finish(fmt.Errorf("%w: %s", ErrDuplicateTempID, m.TempID))
		return op
	}
	r.pending[m.TempID] = m.Kind
	var prev chan struct{}
	if m.Target != "" {
		prev = r.tails[m.Target]
		r.tails[m.Target] = op.done
		r.inflight[m.Target]++
	}
	r.wg.Add(1)
	r.mu.Unlock()

	if m.Apply != nil {
		m.Apply()
	}

	var res R
	go r.settle(ctx, op, prev, m.Kind, m.Target, m.ErrorText,
		func(ctx context.Context) (err error) {
			res, err = send(ctx, m.Send)
			return err
		},
		func() {
			if m.Commit != nil {
				m.Commit(res)
			}
		},
		func() {
			if m.Rollback != nil {
				m.Rollback(snapshot)
			}
		},
	)

	return op
}

// send runs fn, turning a panic into an error
func send[R any](ctx context.Context, fn func(context.Context) (R, error)) (res R, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("send panicked: %v", p)
		}
	}()
	return fn(ctx)
}

// settle waits for the previous mutation on the same target, performs the
// send and runs commit or rollback before unregistering the temp id.
func (r *Reconciler) settle(ctx context.Context, op *Op, prev chan struct{}, kind, target, errorText string, run func(context.Context) error, commit, rollback func()) {
	defer r.wg.Done()

	var err error
	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			err = ctx.Err()
		}
	}
	if err == nil {
		err = run(ctx)
	}

	if err != nil {
		rollback()
	} else {
		commit()
	}

	r.mu.Lock()
	delete(r.pending, op.tempID)
	if target != "" {
		r.inflight[target]--
		if r.inflight[target] <= 0 {
			delete(r.inflight, target)
		}
		if r.tails[target] == op.done {
			delete(r.tails, target)
		}
	}
	notifier, observer := r.notifier, r.observer
	r.mu.Unlock()

	if err != nil {
		r.logf("Mutation %s (%s) rolled back: %v", kind, op.tempID, err)
		if notifier != nil && errorText != "" {
			notifier.Notify(errorText)
		}
		if observer != nil {
			observer.RecordMutation(kind, OutcomeRolledBack)
		}
	} else {
		r.logf("Mutation %s (%s) committed", kind, op.tempID)
		if observer != nil {
			observer.RecordMutation(kind, OutcomeCommitted)
		}
	}

	op.finish(err)
}

// InFlight returns how many unsettled mutations target has, including one
// currently committing or rolling back.
func (r *Reconciler) InFlight(target string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inflight[target]
}

// Pending returns the registered temp ids, sorted
func (r *Reconciler) Pending() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.pending))
	for id := range r.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsPending reports whether tempID is still awaiting its server response
func (r *Reconciler) IsPending(tempID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[tempID]
	return ok
}

// Wait blocks until every submitted mutation has settled
func (r *Reconciler) Wait() {
	r.wg.Wait()
}
