package reconcile

import (
	"context"
	"slices"
	"sync"
)

// ToggleState is a boolean flag with its public counter, e.g. liked and the
// like count. Both move together.
type ToggleState struct {
	On    bool
	Count int
}

// flipped returns s moved to on, adjusting the count by one. The count
// never goes below zero.
func (s ToggleState) flipped(on bool) ToggleState {
	if s.On == on {
		return s
	}
	s.On = on
	if on {
		s.Count++
	} else if s.Count > 0 {
		s.Count--
	}
	return s
}

// ToggleSpec describes one flip of a target's toggle
type ToggleSpec struct {
	Kind      string
	Target    string
	ErrorText string

	// Send performs the server call; on is the desired value. A non-nil
	// result is taken as the server's confirmed state.
	Send func(ctx context.Context, on bool) (*ToggleState, error)
}

type toggleIntent struct {
	seq uint64
	on  bool
}

// toggleTarget is the confirmed server state of one target plus the local
// intents not yet settled, in submission order.
type toggleTarget struct {
	confirmed ToggleState
	intents   []toggleIntent
}

// visible is the confirmed state moved to the latest pending intent
func (tt *toggleTarget) visible() ToggleState {
	if len(tt.intents) == 0 {
		return tt.confirmed
	}
	return tt.confirmed.flipped(tt.intents[len(tt.intents)-1].on)
}

func (tt *toggleTarget) drop(seq uint64) {
	tt.intents = slices.DeleteFunc(tt.intents, func(i toggleIntent) bool { return i.seq == seq })
}

// Toggles tracks per-target toggle state. The visible state always shows
// the latest local intent. A settled toggle only moves the confirmed state,
// so a failure never disturbs the intents submitted after it.
type Toggles struct {
	r *Reconciler

	mu      sync.RWMutex
	targets map[string]*toggleTarget
	seq     uint64
}

// NewToggles creates an empty toggle store backed by r
func NewToggles(r *Reconciler) *Toggles {
	return &Toggles{r: r, targets: make(map[string]*toggleTarget)}
}

// target returns the entry for id, creating it. Callers hold mu.
func (t *Toggles) target(id string) *toggleTarget {
	tt, ok := t.targets[id]
	if !ok {
		tt = &toggleTarget{}
		t.targets[id] = tt
	}
	return tt
}

// Seed sets the confirmed state of a target, e.g. after a feed fetch. It is
// ignored while mutations on the target are in flight.
func (t *Toggles) Seed(target string, state ToggleState) {
	if t.r.InFlight(target) > 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	tt := t.target(target)
	if len(tt.intents) == 0 {
		tt.confirmed = state
	}
}

// State returns the visible state of target
func (t *Toggles) State(target string) ToggleState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if tt, ok := t.targets[target]; ok {
		return tt.visible()
	}
	return ToggleState{}
}

// Toggle flips target optimistically. Sends run in submission order, and a
// send whose desired value the server already holds is skipped. When the
// last pending toggle fails the target falls back to the confirmed state,
// which for a lone toggle is exactly the state before it.
func (t *Toggles) Toggle(ctx context.Context, spec ToggleSpec) *Op {
	var intent toggleIntent

	return Submit(t.r, ctx, Mutation[ToggleState, *ToggleState]{
		Kind:      spec.Kind,
		Target:    spec.Target,
		ErrorText: spec.ErrorText,
		Snapshot: func() ToggleState {
			return t.State(spec.Target)
		},
		Apply: func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			tt := t.target(spec.Target)
			t.seq++
			intent = toggleIntent{seq: t.seq, on: !tt.visible().On}
			tt.intents = append(tt.intents, intent)
		},
		Send: func(ctx context.Context) (*ToggleState, error) {
			t.mu.RLock()
			already := t.targets[spec.Target].confirmed.On == intent.on
			t.mu.RUnlock()
			if already {
				return nil, nil
			}
			return spec.Send(ctx, intent.on)
		},
		Commit: func(server *ToggleState) {
			t.mu.Lock()
			defer t.mu.Unlock()
			tt := t.target(spec.Target)
			tt.drop(intent.seq)
			if server != nil {
				tt.confirmed = *server
			} else {
				tt.confirmed = tt.confirmed.flipped(intent.on)
			}
		},
		Rollback: func(ToggleState) {
			t.mu.Lock()
			defer t.mu.Unlock()
			t.target(spec.Target).drop(intent.seq)
		},
	})
}
