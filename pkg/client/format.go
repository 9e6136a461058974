// ABOUTME: Formatting utilities for headless client output
// ABOUTME: Shared functions for displaying events, status changes and previews.
package client

import (
	"fmt"
	"strings"
	"time"

	"github.com/aeolun/socialite/pkg/protocol"
)

// FormatEvent renders an inbound event as a single line
func FormatEvent(evt protocol.Event) string {
	switch e := evt.(type) {
	case protocol.Authenticated:
		if e.Success {
			return fmt.Sprintf("authenticated as %s", e.UserID)
		}
		return fmt.Sprintf("authentication rejected: %s", e.Message)
	case protocol.UserStatus:
		return fmt.Sprintf("%s is %s", e.UserID, e.Status)
	case protocol.NotificationCount:
		return fmt.Sprintf("%d unread notifications", e.Count)
	case protocol.NewMessage:
		msg := e.Message
		body := Preview(msg.Text, 60)
		if len(msg.Attachments) > 0 {
			body = strings.TrimSpace(fmt.Sprintf("%s [%d attachment(s)]", body, len(msg.Attachments)))
		}
		return fmt.Sprintf("message from %s: %s", msg.SenderID, body)
	case protocol.MessageStatusUpdate:
		return fmt.Sprintf("message %s %s", e.MessageID, e.Status)
	case protocol.MessagesRead:
		return fmt.Sprintf("%s read conversation %s", e.ReaderID, e.ConversationID)
	case protocol.NewNotification:
		n := e.Notification
		if n.From != nil {
			return fmt.Sprintf("notification from %s: %s", n.From.Username, Preview(n.Message, 60))
		}
		return fmt.Sprintf("notification: %s", Preview(n.Message, 60))
	case protocol.UserTyping:
		return fmt.Sprintf("%s is typing in %s", e.UserID, e.ConversationID)
	case protocol.UserStopTyping:
		return fmt.Sprintf("%s stopped typing in %s", e.UserID, e.ConversationID)
	case protocol.ServerError:
		return fmt.Sprintf("server error: %s", e.Message)
	case protocol.Disconnect:
		if e.Reason == "" {
			return "server closed the session"
		}
		return fmt.Sprintf("server closed the session: %s", e.Reason)
	default:
		return evt.EventName()
	}
}

// FormatStateUpdate renders a status transition, e.g.
// "disconnected -> connecting (attempt 2)"
func FormatStateUpdate(u StateUpdate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s -> %s", u.Old, u.New)
	if u.Attempt > 0 && u.New == StatusConnecting {
		fmt.Fprintf(&b, " (attempt %d)", u.Attempt)
	}
	if u.Err != nil {
		fmt.Fprintf(&b, ": %v", u.Err)
	}
	return b.String()
}

// Preview flattens text to one line and cuts it at maxChars runes
func Preview(text string, maxChars int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if maxChars <= 0 || len(runes) <= maxChars {
		return text
	}
	if maxChars <= 3 {
		return string(runes[:maxChars])
	}
	return string(runes[:maxChars-3]) + "..."
}

// FormatRelativeTime formats a timestamp relative to now
// Returns strings like "just now", "5m ago", "2h ago", "3d ago"
func FormatRelativeTime(t time.Time) string {
	return formatRelative(t, time.Now())
}

func formatRelative(t, now time.Time) string {
	diff := now.Sub(t)

	if diff < time.Minute {
		return "just now"
	}
	if diff < time.Hour {
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	}
	if diff < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	}
	return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
}
