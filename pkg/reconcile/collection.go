package reconcile

import (
	"context"
	"sync"
)

// Collection is an ordered list of entities, keyed by an id function. It is
// safe for concurrent use.
type Collection[T any] struct {
	mu    sync.RWMutex
	key   func(T) string
	items []Entity[T]
}

// NewCollection creates an empty collection
func NewCollection[T any](key func(T) string) *Collection[T] {
	return &Collection[T]{key: key}
}

// Reset replaces the contents with confirmed server values
func (c *Collection[T]) Reset(values []T) {
	items := make([]Entity[T], len(values))
	for i, v := range values {
		v := v
		items[i] = Entity[T]{State: Committed, Payload: v, Server: &v}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = items
}

// Replace installs a fresh server listing while keeping pending entities
// the listing does not contain yet, in their previous order after it. It
// runs under one lock, so a mutation settling concurrently either sees the
// old contents or the new ones.
func (c *Collection[T]) Replace(values []T) {
	items := make([]Entity[T], 0, len(values))
	listed := make(map[string]struct{}, len(values))
	for _, v := range values {
		v := v
		items = append(items, Entity[T]{State: Committed, Payload: v, Server: &v})
		listed[c.key(v)] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.items {
		if e.State != Pending {
			continue
		}
		if _, ok := listed[c.key(e.Payload)]; ok {
			continue
		}
		items = append(items, e)
	}
	c.items = items
}

// Items returns a copy of the entities in display order
func (c *Collection[T]) Items() []Entity[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Entity[T](nil), c.items...)
}

// Values returns the payloads in display order
func (c *Collection[T]) Values() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	values := make([]T, len(c.items))
	for i, e := range c.items {
		values[i] = e.Payload
	}
	return values
}

// Len returns the number of visible entities
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Get returns the entity whose key is id
func (c *Collection[T]) Get(id string) (Entity[T], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.indexLocked(id); i >= 0 {
		return c.items[i], true
	}
	return Entity[T]{}, false
}

// HasTemporary reports whether any entity is still pending or carries a
// client-generated id
func (c *Collection[T]) HasTemporary() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.items {
		if e.State == Pending || e.TempID != "" || IsTempID(c.key(e.Payload)) {
			return true
		}
	}
	return false
}

// Remove takes the entity with key id out of the collection and reports its
// former index.
func (c *Collection[T]) Remove(id string) (Entity[T], int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(id)
	if i < 0 {
		return Entity[T]{}, -1, false
	}
	e := c.items[i]
	c.items = append(c.items[:i], c.items[i+1:]...)
	return e, i, true
}

// Insert puts e at index, clamped to the collection bounds
func (c *Collection[T]) Insert(index int, e Entity[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 {
		index = 0
	}
	if index > len(c.items) {
		index = len(c.items)
	}
	c.items = append(c.items, Entity[T]{})
	copy(c.items[index+1:], c.items[index:])
	c.items[index] = e
}

// Append adds e at the end
func (c *Collection[T]) Append(e Entity[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, e)
}

// Prepend adds e at the front
func (c *Collection[T]) Prepend(e Entity[T]) {
	c.Insert(0, e)
}

// Update replaces the payload of the entity with key id in place
func (c *Collection[T]) Update(id string, fn func(T) T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(id)
	if i < 0 {
		return false
	}
	c.items[i].Payload = fn(c.items[i].Payload)
	return true
}

// Settle marks the entity with key id as confirmed by the server
func (c *Collection[T]) Settle(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(id)
	if i < 0 {
		return false
	}
	v := c.items[i].Payload
	c.items[i].State = Committed
	c.items[i].TempID = ""
	c.items[i].Server = &v
	return true
}

// commitTemp swaps the pending entity registered under tempID for the
// server's value, keeping its position. When a listing already brought the
// server's entity in, that one is refreshed and the placeholder dropped.
func (c *Collection[T]) commitTemp(tempID string, server T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	at := -1
	for i, e := range c.items {
		if e.TempID == tempID {
			at = i
			break
		}
	}
	if at < 0 {
		return false
	}

	s := server
	committed := Entity[T]{State: Committed, Payload: server, Server: &s}
	if dup := c.indexLocked(c.key(server)); dup >= 0 && dup != at {
		c.items[dup] = committed
		c.items = append(c.items[:at], c.items[at+1:]...)
		return true
	}
	c.items[at] = committed
	return true
}

// dropTemp removes the pending entity registered under tempID
func (c *Collection[T]) dropTemp(tempID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, e := range c.items {
		if e.TempID == tempID {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Collection[T]) indexLocked(id string) int {
	for i, e := range c.items {
		if c.key(e.Payload) == id {
			return i
		}
	}
	return -1
}

// Creation describes an optimistic insert into a Collection
type Creation[T any] struct {
	Kind      string
	Target    string
	ErrorText string

	// Placeholder builds the value shown while the server call is running.
	// Its key should be tempID.
	Placeholder func(tempID string) T
	Prepend     bool

	Send func(ctx context.Context) (T, error)

	// OnCommit runs after the placeholder was replaced, e.g. to bump a counter
	OnCommit func(T)
	// OnRollback runs after the placeholder was removed
	OnRollback func()
}

// Create inserts a pending placeholder, sends, and then either replaces the
// placeholder in place with the server value or removes it entirely.
func Create[T any](r *Reconciler, ctx context.Context, c *Collection[T], spec Creation[T]) *Op {
	tempID := NewTempID()

	return Submit(r, ctx, Mutation[struct{}, T]{
		Kind:      spec.Kind,
		Target:    spec.Target,
		TempID:    tempID,
		ErrorText: spec.ErrorText,
		Apply: func() {
			e := Entity[T]{TempID: tempID, State: Pending, Payload: spec.Placeholder(tempID)}
			if spec.Prepend {
				c.Prepend(e)
			} else {
				c.Append(e)
			}
		},
		Send: spec.Send,
		Commit: func(v T) {
			c.commitTemp(tempID, v)
			if spec.OnCommit != nil {
				spec.OnCommit(v)
			}
		},
		Rollback: func(struct{}) {
			c.dropTemp(tempID)
			if spec.OnRollback != nil {
				spec.OnRollback()
			}
		},
	})
}
