// ABOUTME: Realtime event vocabulary exchanged with the socket server.
// ABOUTME: Every frame is a JSON envelope {"event": name, "data": payload}.

package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aeolun/socialite/pkg/model"
)

var (
	ErrMalformedEnvelope = errors.New("malformed event envelope")
	ErrUnknownEvent      = errors.New("unknown event")
	ErrInvalidPayload    = errors.New("invalid event payload")
)

// Outbound event names
const (
	EventAuthenticate             = "authenticate"
	EventSendMessage              = "send_message"
	EventMarkRead                 = "mark_read"
	EventMarkNotificationRead     = "mark_notification_read"
	EventMarkAllNotificationsRead = "mark_all_notifications_read"
	EventTyping                   = "typing"
	EventStopTyping               = "stop_typing"
)

// Inbound event names
const (
	EventAuthenticated     = "authenticated"
	EventUserStatus        = "user_status"
	EventNotificationCount = "notification_count"
	EventNewMessage        = "new_message"
	EventMessageStatus     = "message_status"
	EventMessagesRead      = "messages_read"
	EventNewNotification   = "new_notification"
	EventUserTyping        = "user_typing"
	EventUserStopTyping    = "user_stop_typing"
	EventError             = "error"
	EventDisconnect        = "disconnect"
)

// Presence values carried by user_status.
const (
	PresenceOnline  = "online"
	PresenceOffline = "offline"
)

// Envelope is the outer JSON object of every frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Outbound is implemented by every client → server payload.
type Outbound interface {
	EventName() string
}

type Authenticate struct {
	Token string `json:"token"`
}

type SendMessage struct {
	RecipientID string             `json:"recipientId"`
	Text        string             `json:"text"`
	Attachments []model.Attachment `json:"attachments,omitempty"`
}

type MarkRead struct {
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
}

type MarkNotificationRead struct {
	NotificationID string `json:"notificationId"`
}

type MarkAllNotificationsRead struct{}

type Typing struct {
	ConversationID string `json:"conversationId"`
	RecipientID    string `json:"recipientId,omitempty"`
}

type StopTyping struct {
	ConversationID string `json:"conversationId"`
	RecipientID    string `json:"recipientId,omitempty"`
}

func (Authenticate) EventName() string             { return EventAuthenticate }
func (SendMessage) EventName() string              { return EventSendMessage }
func (MarkRead) EventName() string                 { return EventMarkRead }
func (MarkNotificationRead) EventName() string     { return EventMarkNotificationRead }
func (MarkAllNotificationsRead) EventName() string { return EventMarkAllNotificationsRead }
func (Typing) EventName() string                   { return EventTyping }
func (StopTyping) EventName() string               { return EventStopTyping }

// Encode wraps an outbound payload in an envelope.
func Encode(msg Outbound) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: nil message", ErrInvalidPayload)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.EventName(), err)
	}
	return json.Marshal(Envelope{Event: msg.EventName(), Data: data})
}

// Event is the closed set of server → client events. Only types in this
// package implement it.
type Event interface {
	EventName() string
	inbound()
}

type Authenticated struct {
	Success bool   `json:"success"`
	UserID  string `json:"userId,omitempty"`
	Message string `json:"message,omitempty"`
}

type UserStatus struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

// Online reports whether the push marks the user as present.
func (u UserStatus) Online() bool {
	return u.Status == PresenceOnline
}

type NotificationCount struct {
	Count int `json:"count"`
}

type NewMessage struct {
	Message model.Message `json:"message"`
}

type MessageStatusUpdate struct {
	MessageID string              `json:"messageId"`
	Status    model.MessageStatus `json:"status"`
}

type MessagesRead struct {
	ConversationID string `json:"conversationId"`
	ReaderID       string `json:"readerId"`
}

type NewNotification struct {
	Notification model.Notification `json:"notification"`
}

type UserTyping struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

type UserStopTyping struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

type ServerError struct {
	Message string `json:"message"`
}

type Disconnect struct {
	Reason string `json:"reason,omitempty"`
}

func (Authenticated) EventName() string       { return EventAuthenticated }
func (UserStatus) EventName() string          { return EventUserStatus }
func (NotificationCount) EventName() string   { return EventNotificationCount }
func (NewMessage) EventName() string          { return EventNewMessage }
func (MessageStatusUpdate) EventName() string { return EventMessageStatus }
func (MessagesRead) EventName() string        { return EventMessagesRead }
func (NewNotification) EventName() string     { return EventNewNotification }
func (UserTyping) EventName() string          { return EventUserTyping }
func (UserStopTyping) EventName() string      { return EventUserStopTyping }
func (ServerError) EventName() string         { return EventError }
func (Disconnect) EventName() string          { return EventDisconnect }

func (Authenticated) inbound()       {}
func (UserStatus) inbound()          {}
func (NotificationCount) inbound()   {}
func (NewMessage) inbound()          {}
func (MessageStatusUpdate) inbound() {}
func (MessagesRead) inbound()        {}
func (NewNotification) inbound()     {}
func (UserTyping) inbound()          {}
func (UserStopTyping) inbound()      {}
func (ServerError) inbound()         {}
func (Disconnect) inbound()          {}

// Decode parses a frame into one of the inbound event variants and validates
// its payload.
func Decode(raw []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("%w: missing event name", ErrMalformedEnvelope)
	}

	switch env.Event {
	case EventAuthenticated:
		var p struct {
			Success *bool  `json:"success"`
			UserID  string `json:"userId"`
			Message string `json:"message"`
		}
		if err := unmarshalData(env, &p); err != nil {
			return nil, err
		}
		if p.Success == nil {
			return nil, invalid(env.Event, "missing success flag")
		}
		return Authenticated{Success: *p.Success, UserID: p.UserID, Message: p.Message}, nil

	case EventUserStatus:
		var p UserStatus
		if err := unmarshalData(env, &p); err != nil {
			return nil, err
		}
		if p.UserID == "" {
			return nil, invalid(env.Event, "missing userId")
		}
		if p.Status != PresenceOnline && p.Status != PresenceOffline {
			return nil, invalid(env.Event, fmt.Sprintf("unknown status %q", p.Status))
		}
		return p, nil

	case EventNotificationCount:
		var p NotificationCount
		if err := unmarshalData(env, &p); err != nil {
			return nil, err
		}
		if p.Count < 0 {
			return nil, invalid(env.Event, "negative count")
		}
		return p, nil

	case EventNewMessage:
		var p NewMessage
		if err := unmarshalData(env, &p); err != nil {
			return nil, err
		}
		if p.Message.ID == "" {
			return nil, invalid(env.Event, "missing message id")
		}
		return p, nil

	case EventMessageStatus:
		var p MessageStatusUpdate
		if err := unmarshalData(env, &p); err != nil {
			return nil, err
		}
		if p.MessageID == "" {
			return nil, invalid(env.Event, "missing messageId")
		}
		return p, nil

	case EventMessagesRead:
		var p MessagesRead
		if err := unmarshalData(env, &p); err != nil {
			return nil, err
		}
		if p.ConversationID == "" {
			return nil, invalid(env.Event, "missing conversationId")
		}
		return p, nil

	case EventNewNotification:
		var p NewNotification
		if err := unmarshalData(env, &p); err != nil {
			return nil, err
		}
		return p, nil

	case EventUserTyping:
		var p UserTyping
		if err := unmarshalData(env, &p); err != nil {
			return nil, err
		}
		if p.ConversationID == "" || p.UserID == "" {
			return nil, invalid(env.Event, "missing conversationId or userId")
		}
		return p, nil

	case EventUserStopTyping:
		var p UserStopTyping
		if err := unmarshalData(env, &p); err != nil {
			return nil, err
		}
		if p.ConversationID == "" || p.UserID == "" {
			return nil, invalid(env.Event, "missing conversationId or userId")
		}
		return p, nil

	case EventError:
		var p ServerError
		if err := unmarshalData(env, &p); err != nil {
			return nil, err
		}
		return p, nil

	case EventDisconnect:
		var p Disconnect
		if err := unmarshalData(env, &p); err != nil {
			return nil, err
		}
		return p, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}

// unmarshalData decodes the envelope payload; an absent payload leaves the
// zero value so per-event validation decides whether that is acceptable.
func unmarshalData(env Envelope, v any) error {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidPayload, env.Event, err)
	}
	return nil
}

func invalid(event, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidPayload, event, reason)
}
