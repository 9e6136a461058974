// ABOUTME: Domain types shared by the REST client, the realtime layer and the stores.
// ABOUTME: JSON tags follow the backend's camelCase field names.

package model

import "time"

// User is the public profile snapshot the backend returns for any account.
type User struct {
	ID        string `json:"_id"`
	Username  string `json:"username"`
	FullName  string `json:"fullName,omitempty"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatar,omitempty"`
	Bio       string `json:"bio,omitempty"`
}

// Post is a feed entry.
type Post struct {
	ID            string    `json:"_id"`
	Author        User      `json:"author"`
	Content       string    `json:"content"`
	Images        []string  `json:"images,omitempty"`
	LikesCount    int       `json:"likesCount"`
	CommentsCount int       `json:"commentsCount"`
	LikedByMe     bool      `json:"isLiked"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Comment belongs to a post.
type Comment struct {
	ID        string    `json:"_id"`
	PostID    string    `json:"postId"`
	Author    User      `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// FriendRequestStatus is the lifecycle of a request on the server.
type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestRejected FriendRequestStatus = "rejected"
)

// FriendRequest links a sender and a receiver.
type FriendRequest struct {
	ID        string              `json:"_id"`
	Sender    User                `json:"sender"`
	Receiver  User                `json:"receiver"`
	Status    FriendRequestStatus `json:"status"`
	CreatedAt time.Time           `json:"createdAt"`
}

// Attachment is an already-uploaded file referenced by URL.
type Attachment struct {
	URL  string `json:"url"`
	Type string `json:"type,omitempty"`
	Name string `json:"name,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// MessageStatus is the delivery state reported by message_status pushes.
type MessageStatus string

const (
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageRead      MessageStatus = "read"
)

// Message is a direct message inside a conversation.
type Message struct {
	ID             string        `json:"_id"`
	ConversationID string        `json:"conversationId"`
	SenderID       string        `json:"senderId"`
	RecipientID    string        `json:"recipientId"`
	Text           string        `json:"text"`
	Attachments    []Attachment  `json:"attachments,omitempty"`
	Status         MessageStatus `json:"status,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// Conversation is a one-to-one thread summary.
type Conversation struct {
	ID          string    `json:"_id"`
	Participant User      `json:"participant"`
	LastMessage *Message  `json:"lastMessage,omitempty"`
	UnreadCount int       `json:"unreadCount"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Notification is a single activity item (like, comment, friend request...).
type Notification struct {
	ID        string    `json:"_id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	From      *User     `json:"from,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// Session is the persisted credential: token, profile snapshot and the
// authenticated flag read at process start.
type Session struct {
	Token         string `json:"token"`
	User          *User  `json:"user,omitempty"`
	Authenticated bool   `json:"isAuthenticated"`
}

// Valid reports whether the session carries a usable credential.
func (s Session) Valid() bool {
	return s.Authenticated && s.Token != ""
}
