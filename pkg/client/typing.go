package client

import (
	"sync"
	"time"
)

// DefaultTypingIdle is how long after the last keystroke stop_typing is sent
const DefaultTypingIdle = 2 * time.Second

type typingKey struct {
	conversationID string
	recipientID    string
}

// TypingIndicator debounces typing announcements: one typing event per
// burst of keystrokes and a stop_typing once input has been idle.
type TypingIndicator struct {
	rt   RealtimeInterface
	idle time.Duration

	mu     sync.Mutex
	active map[typingKey]*time.Timer
}

// NewTypingIndicator wraps a realtime manager. idle <= 0 uses DefaultTypingIdle.
func NewTypingIndicator(rt RealtimeInterface, idle time.Duration) *TypingIndicator {
	if idle <= 0 {
		idle = DefaultTypingIdle
	}
	return &TypingIndicator{
		rt:     rt,
		idle:   idle,
		active: make(map[typingKey]*time.Timer),
	}
}

// Keystroke records input in a conversation
func (t *TypingIndicator) Keystroke(conversationID, recipientID string) {
	key := typingKey{conversationID, recipientID}

	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, ok := t.active[key]; ok {
		if timer.Stop() {
			timer.Reset(t.idle)
			return
		}
		// Already fired and waiting on mu; start a fresh burst.
		delete(t.active, key)
	}

	t.rt.SendTypingIndicator(conversationID, recipientID)

	var timer *time.Timer
	timer = time.AfterFunc(t.idle, func() {
		t.mu.Lock()
		if t.active[key] != timer {
			t.mu.Unlock()
			return
		}
		delete(t.active, key)
		t.mu.Unlock()
		t.rt.SendStopTypingIndicator(conversationID, recipientID)
	})
	t.active[key] = timer
}

// Stop ends typing in a conversation immediately, e.g. when the message is sent
func (t *TypingIndicator) Stop(conversationID, recipientID string) {
	key := typingKey{conversationID, recipientID}

	t.mu.Lock()
	timer, ok := t.active[key]
	if ok {
		timer.Stop()
		delete(t.active, key)
	}
	t.mu.Unlock()

	if ok {
		t.rt.SendStopTypingIndicator(conversationID, recipientID)
	}
}

// StopAll ends every active typing burst
func (t *TypingIndicator) StopAll() {
	t.mu.Lock()
	keys := make([]typingKey, 0, len(t.active))
	for key, timer := range t.active {
		timer.Stop()
		keys = append(keys, key)
	}
	t.active = make(map[typingKey]*time.Timer)
	t.mu.Unlock()

	for _, key := range keys {
		t.rt.SendStopTypingIndicator(key.conversationID, key.recipientID)
	}
}
