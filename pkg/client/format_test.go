package client

import (
	"errors"
	"testing"
	"time"

	"github.com/aeolun/socialite/pkg/model"
	"github.com/aeolun/socialite/pkg/protocol"
	"github.com/stretchr/testify/assert"
)

func TestFormatEvent(t *testing.T) {
	tests := []struct {
		evt  protocol.Event
		want string
	}{
		{protocol.Authenticated{Success: true, UserID: "u1"}, "authenticated as u1"},
		{protocol.Authenticated{Message: "bad token"}, "authentication rejected: bad token"},
		{protocol.UserStatus{UserID: "u2", Status: protocol.PresenceOffline}, "u2 is offline"},
		{protocol.NotificationCount{Count: 3}, "3 unread notifications"},
		{protocol.NewMessage{Message: model.Message{ID: "m1", SenderID: "u2", Text: "hi\nthere"}}, "message from u2: hi there"},
		{protocol.NewMessage{Message: model.Message{ID: "m2", SenderID: "u2", Attachments: []model.Attachment{{URL: "x"}}}}, "message from u2: [1 attachment(s)]"},
		{protocol.NewNotification{Notification: model.Notification{Message: "liked your post", From: &model.User{Username: "ada"}}}, "notification from ada: liked your post"},
		{protocol.UserTyping{ConversationID: "c1", UserID: "u2"}, "u2 is typing in c1"},
		{protocol.Disconnect{}, "server closed the session"},
	}

	for _, tt := range tests {
		t.Run(tt.evt.EventName(), func(t *testing.T) {
			assert.Equal(t, tt.want, FormatEvent(tt.evt))
		})
	}
}

func TestFormatStateUpdate(t *testing.T) {
	assert.Equal(t, "disconnected -> connecting (attempt 2)",
		FormatStateUpdate(StateUpdate{Old: StatusDisconnected, New: StatusConnecting, Attempt: 2}))
	assert.Equal(t, "connected -> disconnected: read: EOF",
		FormatStateUpdate(StateUpdate{Old: StatusConnected, New: StatusDisconnected, Err: errors.New("read: EOF")}))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", Preview("short", 10))
	assert.Equal(t, "a long...", Preview("a long message body", 9))
	assert.Equal(t, "héllo wörld", Preview("  héllo\n\twörld ", 20))
}

func TestFormatRelative(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "just now", formatRelative(now.Add(-10*time.Second), now))
	assert.Equal(t, "5m ago", formatRelative(now.Add(-5*time.Minute), now))
	assert.Equal(t, "2h ago", formatRelative(now.Add(-2*time.Hour), now))
	assert.Equal(t, "3d ago", formatRelative(now.Add(-72*time.Hour), now))
}
