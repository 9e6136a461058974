package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aeolun/socialite/pkg/model"
	"github.com/aeolun/socialite/pkg/protocol"
)

const (
	// DefaultMaxReconnectAttempts bounds automatic reconnection after a
	// transport failure.
	DefaultMaxReconnectAttempts = 5
	// DefaultReconnectDelay is the fixed backoff between attempts.
	DefaultReconnectDelay = 1 * time.Second

	defaultDialTimeout = 10 * time.Second
	outgoingQueueSize  = 100
)

var (
	ErrNotAuthenticated = errors.New("realtime connection is not authenticated")
	ErrAuthRejected     = errors.New("socket authentication rejected")
	ErrQueueFull        = errors.New("outgoing queue full")
	ErrNotConnected     = errors.New("realtime connection closed")
	ErrEmptyMessage     = errors.New("message needs a recipient and text or attachments")
)

// Status is the lifecycle of the realtime connection
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusAuthenticated
	StatusAuthFailed
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusAuthenticated:
		return "authenticated"
	case StatusAuthFailed:
		return "auth_failed"
	default:
		return "unknown"
	}
}

// canTransition allows forward steps along
// Disconnected→Connecting→Connected→Authenticated, and a fall to
// Disconnected or AuthFailed from anywhere.
func canTransition(from, to Status) bool {
	switch to {
	case StatusDisconnected, StatusAuthFailed:
		return true
	case StatusConnecting:
		return from == StatusDisconnected
	case StatusConnected:
		return from == StatusConnecting
	case StatusAuthenticated:
		return from == StatusConnected
	}
	return false
}

// StateUpdate represents a connection status change
type StateUpdate struct {
	Old     Status
	New     Status
	Attempt int
	Err     error
}

// ConnectionState is a point-in-time copy of everything the manager tracks
type ConnectionState struct {
	Status                  Status
	OnlineUsers             []string
	TypingUsers             map[string][]string
	UnreadNotificationCount int
	ReconnectAttempts       int
	LastError               error
}

// Handlers receive the events the manager does not own. Every callback is
// optional and runs on the connection's read goroutine.
type Handlers struct {
	OnMessage        func(model.Message)
	OnMessageStatus  func(protocol.MessageStatusUpdate)
	OnMessagesRead   func(protocol.MessagesRead)
	OnNotification   func(model.Notification)
	OnPresenceChange func(userID string, online bool)
	OnTypingChange   func(conversationID string, users []string)
	OnUnreadCount    func(count int)
	OnError          func(message string)

	// OnEvent sees every decoded event before it is applied
	OnEvent func(protocol.Event)
}

// link is one live transport connection with its outbound queue
type link struct {
	conn     Conn
	outgoing chan outboundFrame
	done     chan struct{}
	once     sync.Once
}

type outboundFrame struct {
	name string
	data []byte
}

func newLink(conn Conn) *link {
	return &link{
		conn:     conn,
		outgoing: make(chan outboundFrame, outgoingQueueSize),
		done:     make(chan struct{}),
	}
}

func (l *link) close() {
	l.once.Do(func() {
		close(l.done)
		l.conn.Close()
	})
}

// Manager owns the single realtime connection for a signed-in session
type Manager struct {
	dialer Dialer
	creds  CredentialProvider

	mu      sync.RWMutex
	status  Status
	epoch   uint64 // bumped on explicit teardown; stale attempts compare and bail
	link    *link
	lastErr error

	// Derived state
	online map[string]struct{}
	typing map[string]map[string]struct{}
	unread int

	// Reconnect policy
	autoReconnect        bool
	maxReconnectAttempts int
	reconnectDelay       time.Duration
	reconnectAttempts    int
	retryTimer           *time.Timer
	dialTimeout          time.Duration

	handlers      Handlers
	stateChange   chan StateUpdate
	updatesClosed bool
	metrics       *Metrics

	// Logging
	logger atomic.Pointer[log.Logger]

	// Shutdown
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a disconnected manager
func NewManager(dialer Dialer, creds CredentialProvider) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		dialer:               dialer,
		creds:                creds,
		status:               StatusDisconnected,
		online:               make(map[string]struct{}),
		typing:               make(map[string]map[string]struct{}),
		autoReconnect:        true,
		maxReconnectAttempts: DefaultMaxReconnectAttempts,
		reconnectDelay:       DefaultReconnectDelay,
		dialTimeout:          defaultDialTimeout,
		stateChange:          make(chan StateUpdate, 10),
		ctx:                  ctx,
		cancel:               cancel,
	}
}

// SetLogger sets a logger for debugging connection events
func (m *Manager) SetLogger(logger *log.Logger) {
	m.logger.Store(logger)
}

// SetHandlers installs the delegates for events the manager does not own
func (m *Manager) SetHandlers(h Handlers) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = h
}

// SetMetrics attaches Prometheus collectors
func (m *Manager) SetMetrics(metrics *Metrics) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = metrics
	metrics.RecordStatus(m.status)
}

// SetReconnectPolicy overrides the attempt bound and the fixed delay
func (m *Manager) SetReconnectPolicy(maxAttempts int, delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if maxAttempts < 0 {
		maxAttempts = 0
	}
	m.maxReconnectAttempts = maxAttempts
	m.reconnectDelay = delay
}

// SetDialTimeout bounds a single transport connect
func (m *Manager) SetDialTimeout(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dialTimeout = d
}

// DisableAutoReconnect disables automatic reconnection on connection loss
func (m *Manager) DisableAutoReconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoReconnect = false
}

// logf logs a message if a logger is set. Callers may or may not hold mu,
// so the logger lives outside it.
func (m *Manager) logf(format string, args ...interface{}) {
	if logger := m.logger.Load(); logger != nil {
		logger.Printf(format, args...)
	}
}

// Connect starts connecting in the background. It is a no-op while a
// connection is in progress or established, and after an authentication
// rejection until Disconnect is called. Without a credential it only logs.
func (m *Manager) Connect() {
	m.connect(true)
}

func (m *Manager) connect(explicit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	switch m.status {
	case StatusConnecting, StatusConnected, StatusAuthenticated:
		return
	case StatusAuthFailed:
		m.logf("Connect ignored: authentication was rejected, disconnect before retrying")
		return
	}

	token, ok := m.credential()
	if !ok {
		m.logf("Connect skipped: no credential available")
		return
	}

	m.stopRetryLocked()
	if explicit {
		m.reconnectAttempts = 0
	}
	m.setStatusLocked(StatusConnecting, nil)

	m.wg.Add(1)
	go m.establish(m.epoch, token)
}

func (m *Manager) credential() (string, bool) {
	if m.creds == nil {
		return "", false
	}
	token, ok := m.creds.Token()
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

// establish dials, installs the link and sends the credential
func (m *Manager) establish(epoch uint64, token string) {
	defer m.wg.Done()

	m.logf("Connecting to realtime server...")

	m.mu.RLock()
	timeout := m.dialTimeout
	m.mu.RUnlock()

	ctx, cancel := context.WithTimeout(m.ctx, timeout)
	conn, err := m.dialer.Dial(ctx)
	cancel()
	if err != nil {
		m.logf("Connection failed: %v", err)
		m.transportFailed(epoch, nil, fmt.Errorf("dial: %w", err))
		return
	}

	m.mu.Lock()
	if m.closed || m.epoch != epoch || m.status != StatusConnecting {
		m.mu.Unlock()
		conn.Close()
		return
	}
	l := newLink(conn)
	m.link = l
	m.reconnectAttempts = 0
	m.lastErr = nil
	m.setStatusLocked(StatusConnected, nil)
	m.wg.Add(2)
	go m.writeLoop(epoch, l)
	go m.readLoop(epoch, l)
	m.mu.Unlock()

	m.logf("Connected, authenticating")

	if err := m.enqueue(l, protocol.Authenticate{Token: token}); err != nil {
		m.transportFailed(epoch, l, fmt.Errorf("authenticate: %w", err))
	}
}

// readLoop decodes frames from the link and dispatches them in order
func (m *Manager) readLoop(epoch uint64, l *link) {
	defer m.wg.Done()

	for {
		data, err := l.conn.ReadMessage()
		if err != nil {
			select {
			case <-l.done:
				return
			default:
			}
			m.logf("Read error: %v", err)
			m.transportFailed(epoch, l, fmt.Errorf("read: %w", err))
			return
		}

		evt, err := protocol.Decode(data)
		if err != nil {
			m.logf("Dropping frame: %v", err)
			m.metrics.RecordEventDropped(dropReason(err))
			continue
		}

		m.logf("← RECV: %s", evt.EventName())
		m.metrics.RecordEventReceived(evt.EventName())
		m.dispatch(epoch, l, evt)
	}
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, protocol.ErrUnknownEvent):
		return "unknown_event"
	case errors.Is(err, protocol.ErrInvalidPayload):
		return "invalid_payload"
	default:
		return "malformed"
	}
}

// writeLoop drains the link's outbound queue onto the transport
func (m *Manager) writeLoop(epoch uint64, l *link) {
	defer m.wg.Done()

	for {
		select {
		case frame := <-l.outgoing:
			if err := l.conn.WriteMessage(frame.data); err != nil {
				m.logf("Write error: %v", err)
				m.transportFailed(epoch, l, fmt.Errorf("write: %w", err))
				return
			}
			m.logf("→ SEND: %s (%d bytes)", frame.name, len(frame.data))
			m.metrics.RecordEventSent(frame.name)
		case <-l.done:
			return
		}
	}
}

// enqueue encodes msg and hands it to the link's writer without blocking
func (m *Manager) enqueue(l *link, msg protocol.Outbound) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	select {
	case <-l.done:
		return ErrNotConnected
	default:
	}

	select {
	case l.outgoing <- outboundFrame{name: msg.EventName(), data: data}:
		return nil
	case <-l.done:
		return ErrNotConnected
	default:
		return ErrQueueFull
	}
}

// emit sends msg only when the session is authenticated
func (m *Manager) emit(msg protocol.Outbound) error {
	m.mu.RLock()
	status := m.status
	l := m.link
	m.mu.RUnlock()

	if status != StatusAuthenticated || l == nil {
		return ErrNotAuthenticated
	}
	return m.enqueue(l, msg)
}

// transportFailed handles a dial failure (l == nil) or the loss of link l
func (m *Manager) transportFailed(epoch uint64, l *link, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.epoch != epoch {
		return
	}
	if l != nil && m.link != l {
		return
	}
	if l == nil && m.status != StatusConnecting {
		return
	}
	if m.status == StatusAuthFailed {
		return
	}

	if m.link != nil {
		m.link.close()
		m.link = nil
	}
	m.online = make(map[string]struct{})
	m.typing = make(map[string]map[string]struct{})
	m.lastErr = err

	m.logf("Disconnected from realtime server: %v", err)
	m.setStatusLocked(StatusDisconnected, err)
	m.scheduleReconnectLocked(epoch)
}

func (m *Manager) scheduleReconnectLocked(epoch uint64) {
	if !m.autoReconnect {
		m.logf("Auto-reconnect disabled, staying disconnected")
		return
	}
	if m.reconnectAttempts >= m.maxReconnectAttempts {
		m.logf("Giving up after %d reconnect attempts", m.reconnectAttempts)
		return
	}

	m.reconnectAttempts++
	attempt := m.reconnectAttempts
	m.logf("Reconnect attempt %d/%d in %v", attempt, m.maxReconnectAttempts, m.reconnectDelay)

	m.stopRetryLocked()
	m.retryTimer = time.AfterFunc(m.reconnectDelay, func() {
		m.retry(epoch, attempt)
	})
}

func (m *Manager) retry(epoch uint64, attempt int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.epoch != epoch || m.status != StatusDisconnected || m.reconnectAttempts != attempt {
		return
	}
	m.retryTimer = nil

	token, ok := m.credential()
	if !ok {
		m.logf("Reconnect abandoned: credential no longer available")
		return
	}

	m.metrics.RecordReconnectAttempt()
	m.setStatusLocked(StatusConnecting, nil)

	m.wg.Add(1)
	go m.establish(epoch, token)
}

func (m *Manager) stopRetryLocked() {
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
}

// setStatusLocked validates and applies a transition and notifies observers
func (m *Manager) setStatusLocked(to Status, err error) {
	from := m.status
	if from == to {
		return
	}
	if !canTransition(from, to) {
		m.logf("Ignoring invalid transition %s -> %s", from, to)
		return
	}

	m.status = to
	m.metrics.RecordStatus(to)

	if m.updatesClosed {
		return
	}
	select {
	case m.stateChange <- StateUpdate{Old: from, New: to, Attempt: m.reconnectAttempts, Err: err}:
	default:
	}
}

// Disconnect tears the connection down and resets all derived state. It is
// safe to call in any state.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.epoch++
	m.stopRetryLocked()
	if m.link != nil {
		m.logf("Disconnecting from realtime server")
		m.link.close()
		m.link = nil
	}
	m.online = make(map[string]struct{})
	m.typing = make(map[string]map[string]struct{})
	m.unread = 0
	m.reconnectAttempts = 0
	m.lastErr = nil
	m.setStatusLocked(StatusDisconnected, nil)
}

// Close shuts the manager down permanently
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.Disconnect()
	m.cancel()
	m.wg.Wait()

	m.mu.Lock()
	m.updatesClosed = true
	close(m.stateChange)
	m.mu.Unlock()
}

// SendMessage emits a direct message. When the session is not authenticated
// it returns ErrNotAuthenticated, emits nothing and makes one reconnect
// attempt; messages are never queued for later delivery.
func (m *Manager) SendMessage(recipientID, text string, attachments []model.Attachment) error {
	if recipientID == "" || (text == "" && len(attachments) == 0) {
		return ErrEmptyMessage
	}

	m.mu.RLock()
	status := m.status
	m.mu.RUnlock()

	if status != StatusAuthenticated {
		m.logf("SendMessage rejected: status is %s", status)
		if status != StatusAuthFailed {
			m.connect(false)
		}
		return ErrNotAuthenticated
	}

	err := m.emit(protocol.SendMessage{
		RecipientID: recipientID,
		Text:        text,
		Attachments: attachments,
	})
	if err != nil {
		m.logf("SendMessage failed: %v", err)
	}
	return err
}

// MarkAsRead tells the server a conversation has been read
func (m *Manager) MarkAsRead(conversationID, senderID string) {
	m.fireAndForget(protocol.MarkRead{ConversationID: conversationID, SenderID: senderID})
}

// MarkNotificationAsRead marks a single notification read
func (m *Manager) MarkNotificationAsRead(notificationID string) {
	m.fireAndForget(protocol.MarkNotificationRead{NotificationID: notificationID})
}

// MarkAllNotificationsAsRead marks everything read and resets the local counter
func (m *Manager) MarkAllNotificationsAsRead() {
	if err := m.emit(protocol.MarkAllNotificationsRead{}); err != nil {
		m.logf("%s skipped: %v", protocol.EventMarkAllNotificationsRead, err)
		return
	}

	m.mu.Lock()
	m.unread = 0
	onUnread := m.handlers.OnUnreadCount
	m.mu.Unlock()

	if onUnread != nil {
		m.safely("unread count", func() { onUnread(0) })
	}
}

// SendTypingIndicator announces typing in a conversation. Callers debounce;
// see TypingIndicator.
func (m *Manager) SendTypingIndicator(conversationID, recipientID string) {
	m.fireAndForget(protocol.Typing{ConversationID: conversationID, RecipientID: recipientID})
}

// SendStopTypingIndicator clears a previous typing announcement
func (m *Manager) SendStopTypingIndicator(conversationID, recipientID string) {
	m.fireAndForget(protocol.StopTyping{ConversationID: conversationID, RecipientID: recipientID})
}

func (m *Manager) fireAndForget(msg protocol.Outbound) {
	if err := m.emit(msg); err != nil {
		m.logf("%s skipped: %v", msg.EventName(), err)
	}
}

// dispatch applies an inbound event to local state and calls delegates.
// It never panics past this point.
func (m *Manager) dispatch(epoch uint64, l *link, evt protocol.Event) {
	defer func() {
		if r := recover(); r != nil {
			m.logf("Recovered from panic handling %s: %v", evt.EventName(), r)
		}
	}()

	if h, ok := m.handlersFor(l); ok && h.OnEvent != nil {
		h.OnEvent(evt)
	}

	switch e := evt.(type) {
	case protocol.Authenticated:
		m.handleAuthenticated(l, e)

	case protocol.UserStatus:
		changed, h := m.applyPresence(l, e.UserID, e.Online())
		if changed && h.OnPresenceChange != nil {
			h.OnPresenceChange(e.UserID, e.Online())
		}

	case protocol.NotificationCount:
		count, ok, h := m.applyUnread(l, func(int) int { return e.Count })
		if ok && h.OnUnreadCount != nil {
			h.OnUnreadCount(count)
		}

	case protocol.NewNotification:
		count, ok, h := m.applyUnread(l, func(n int) int { return n + 1 })
		if !ok {
			return
		}
		if h.OnUnreadCount != nil {
			h.OnUnreadCount(count)
		}
		if h.OnNotification != nil {
			h.OnNotification(e.Notification)
		}

	case protocol.UserTyping:
		users, changed, h := m.applyTyping(l, e.ConversationID, e.UserID, true)
		if changed && h.OnTypingChange != nil {
			h.OnTypingChange(e.ConversationID, users)
		}

	case protocol.UserStopTyping:
		users, changed, h := m.applyTyping(l, e.ConversationID, e.UserID, false)
		if changed && h.OnTypingChange != nil {
			h.OnTypingChange(e.ConversationID, users)
		}

	case protocol.NewMessage:
		m.logf("New message %s in conversation %s", e.Message.ID, e.Message.ConversationID)
		if h, ok := m.handlersFor(l); ok && h.OnMessage != nil {
			h.OnMessage(e.Message)
		}

	case protocol.MessageStatusUpdate:
		m.logf("Message %s is now %s", e.MessageID, e.Status)
		if h, ok := m.handlersFor(l); ok && h.OnMessageStatus != nil {
			h.OnMessageStatus(e)
		}

	case protocol.MessagesRead:
		m.logf("Conversation %s read by %s", e.ConversationID, e.ReaderID)
		if h, ok := m.handlersFor(l); ok && h.OnMessagesRead != nil {
			h.OnMessagesRead(e)
		}

	case protocol.ServerError:
		m.logf("Server error: %s", e.Message)
		if h, ok := m.handlersFor(l); ok && h.OnError != nil {
			h.OnError(e.Message)
		}

	case protocol.Disconnect:
		m.transportFailed(epoch, l, fmt.Errorf("server closed the session: %s", e.Reason))
	}
}

func (m *Manager) handleAuthenticated(l *link, e protocol.Authenticated) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.link != l || m.status != StatusConnected {
		m.logf("Ignoring %s in state %s", protocol.EventAuthenticated, m.status)
		return
	}

	if e.Success {
		m.reconnectAttempts = 0
		m.setStatusLocked(StatusAuthenticated, nil)
		m.logf("Authenticated as %s", e.UserID)
		return
	}

	err := fmt.Errorf("%w: %s", ErrAuthRejected, e.Message)
	m.logf("Authentication rejected: %s", e.Message)
	m.link.close()
	m.link = nil
	m.online = make(map[string]struct{})
	m.typing = make(map[string]map[string]struct{})
	m.unread = 0
	m.lastErr = err
	m.stopRetryLocked()
	m.metrics.RecordAuthFailure()
	m.setStatusLocked(StatusAuthFailed, err)
}

// handlersFor returns the delegates if l is still the live link
func (m *Manager) handlersFor(l *link) (Handlers, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.handlers, m.link == l
}

func (m *Manager) applyPresence(l *link, userID string, online bool) (bool, Handlers) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.link != l {
		return false, m.handlers
	}

	_, present := m.online[userID]
	if online == present {
		return false, m.handlers
	}
	if online {
		m.online[userID] = struct{}{}
	} else {
		delete(m.online, userID)
	}
	return true, m.handlers
}

func (m *Manager) applyUnread(l *link, next func(int) int) (int, bool, Handlers) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.link != l {
		return m.unread, false, m.handlers
	}
	m.unread = next(m.unread)
	if m.unread < 0 {
		m.unread = 0
	}
	return m.unread, true, m.handlers
}

func (m *Manager) applyTyping(l *link, conversationID, userID string, typing bool) ([]string, bool, Handlers) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.link != l {
		return nil, false, m.handlers
	}

	users := m.typing[conversationID]
	_, present := users[userID]
	if typing == present {
		return sortedKeys(users), false, m.handlers
	}

	if typing {
		if users == nil {
			users = make(map[string]struct{})
			m.typing[conversationID] = users
		}
		users[userID] = struct{}{}
	} else {
		delete(users, userID)
		if len(users) == 0 {
			delete(m.typing, conversationID)
		}
	}
	return sortedKeys(users), true, m.handlers
}

// safely runs a delegate outside the dispatch path, recovering panics
func (m *Manager) safely(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logf("Recovered from panic in %s handler: %v", what, r)
		}
	}()
	fn()
}

// Status returns the current connection status
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// IsAuthenticated reports whether outbound actions are currently allowed
func (m *Manager) IsAuthenticated() bool {
	return m.Status() == StatusAuthenticated
}

// IsOnline reports whether a user is known to be online
func (m *Manager) IsOnline(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.online[userID]
	return ok
}

// OnlineUsers returns the online set, sorted
func (m *Manager) OnlineUsers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.online)
}

// TypingUsers returns who is typing in a conversation, sorted
func (m *Manager) TypingUsers(conversationID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.typing[conversationID])
}

// UnreadNotificationCount returns the unread notification counter
func (m *Manager) UnreadNotificationCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.unread
}

// ReconnectAttempts returns how many automatic reconnects the current
// failure cycle has used
func (m *Manager) ReconnectAttempts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reconnectAttempts
}

// State returns a copy of the full connection state
func (m *Manager) State() ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	typing := make(map[string][]string, len(m.typing))
	for conv, users := range m.typing {
		typing[conv] = sortedKeys(users)
	}

	return ConnectionState{
		Status:                  m.status,
		OnlineUsers:             sortedKeys(m.online),
		TypingUsers:             typing,
		UnreadNotificationCount: m.unread,
		ReconnectAttempts:       m.reconnectAttempts,
		LastError:               m.lastErr,
	}
}

// StateChanges returns the channel for connection status updates. Updates
// are dropped when the reader falls behind.
func (m *Manager) StateChanges() <-chan StateUpdate {
	return m.stateChange
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
