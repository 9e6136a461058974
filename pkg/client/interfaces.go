package client

import (
	"context"

	"github.com/aeolun/socialite/pkg/model"
)

// Dialer opens a transport connection to the realtime server.
// WebSocketDialer is the production implementation; tests substitute fakes.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// Conn is a message-oriented duplex connection. ReadMessage is only called
// from a single goroutine, as is WriteMessage.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// CredentialProvider supplies the bearer token used to authenticate the
// socket. It is called with the manager's lock held and must not call back
// into the Manager.
type CredentialProvider interface {
	Token() (string, bool)
}

// CredentialFunc adapts a function to CredentialProvider
type CredentialFunc func() (string, bool)

// Token implements CredentialProvider
func (f CredentialFunc) Token() (string, bool) {
	return f()
}

// RealtimeInterface is the action surface of the connection manager.
// This allows for mocking in tests while Manager implements all these methods.
type RealtimeInterface interface {
	// Connection management
	Connect()
	Disconnect()
	Status() Status
	State() ConnectionState

	// Outbound actions
	SendMessage(recipientID, text string, attachments []model.Attachment) error
	MarkAsRead(conversationID, senderID string)
	MarkNotificationAsRead(notificationID string)
	MarkAllNotificationsAsRead()
	SendTypingIndicator(conversationID, recipientID string)
	SendStopTypingIndicator(conversationID, recipientID string)

	StateChanges() <-chan StateUpdate
}

// StateInterface defines the persisted session store.
// This allows for mocking in tests while the real State implements all these methods
type StateInterface interface {
	// Session management
	LoadSession() (model.Session, error)
	SaveSession(session model.Session) error
	ClearSession() error

	// Configuration
	GetConfig(key string) (string, error)
	SetConfig(key, value string) error

	// Credential access for the REST and realtime layers
	Token() (string, bool)
	ClearCredentials() error

	// Close the state
	Close() error
}

var (
	_ RealtimeInterface = (*Manager)(nil)
	_ StateInterface    = (*State)(nil)
	_ StateInterface    = (*MemoryState)(nil)
)
