package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/aeolun/socialite/pkg/auth"
	"github.com/aeolun/socialite/pkg/model"
)

var ErrMissingID = errors.New("id cannot be empty")

// AuthResponse is returned by sign-in and sign-up
type AuthResponse struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// SignUpRequest carries the fields of a new account
type SignUpRequest struct {
	Username string `json:"username"`
	FullName string `json:"fullName,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LikeResult is the server's view of a post's like state after a toggle
type LikeResult struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likesCount"`
}

// FriendsResponse lists friends and pending requests in both directions
type FriendsResponse struct {
	Friends  []model.User          `json:"friends"`
	Incoming []model.FriendRequest `json:"friendRequests"`
	Sent     []model.FriendRequest `json:"sentRequests"`
}

// SignIn exchanges credentials for a token. Input is validated locally first.
func (c *Client) SignIn(ctx context.Context, email, password string) (AuthResponse, error) {
	if err := auth.ValidateEmail(email); err != nil {
		return AuthResponse{}, err
	}
	if password == "" {
		return AuthResponse{}, auth.ValidatePasswordFormat(password)
	}

	var resp AuthResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/signin", body, &resp, requestOptions{public: true}); err != nil {
		return AuthResponse{}, err
	}
	return resp, nil
}

// SignUp creates an account and returns its token
func (c *Client) SignUp(ctx context.Context, req SignUpRequest) (AuthResponse, error) {
	if err := auth.ValidateUsername(req.Username); err != nil {
		return AuthResponse{}, err
	}
	if err := auth.ValidateEmail(req.Email); err != nil {
		return AuthResponse{}, err
	}
	if err := auth.ValidatePasswordFormat(req.Password); err != nil {
		return AuthResponse{}, err
	}

	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/signup", req, &resp, requestOptions{public: true}); err != nil {
		return AuthResponse{}, err
	}
	return resp, nil
}

// Me returns the signed-in user's profile
func (c *Client) Me(ctx context.Context) (model.User, error) {
	var user model.User
	err := c.do(ctx, http.MethodGet, "/me", nil, &user, requestOptions{})
	return user, err
}

// Posts returns the feed
func (c *Client) Posts(ctx context.Context) ([]model.Post, error) {
	var posts []model.Post
	err := c.do(ctx, http.MethodGet, "/posts", nil, &posts, requestOptions{})
	return posts, err
}

// ToggleLike flips the current user's like on a post
func (c *Client) ToggleLike(ctx context.Context, postID string) (LikeResult, error) {
	if postID == "" {
		return LikeResult{}, ErrMissingID
	}
	var res LikeResult
	err := c.do(ctx, http.MethodPost, "/posts/"+escape(postID)+"/like", nil, &res, requestOptions{})
	return res, err
}

// Comments lists a post's comments, oldest first
func (c *Client) Comments(ctx context.Context, postID string) ([]model.Comment, error) {
	if postID == "" {
		return nil, ErrMissingID
	}
	var comments []model.Comment
	err := c.do(ctx, http.MethodGet, "/comments/"+escape(postID), nil, &comments, requestOptions{})
	return comments, err
}

// AddComment posts a comment
func (c *Client) AddComment(ctx context.Context, postID, content string) (model.Comment, error) {
	if postID == "" {
		return model.Comment{}, ErrMissingID
	}
	var comment model.Comment
	body := map[string]string{"content": content}
	err := c.do(ctx, http.MethodPost, "/comments/"+escape(postID), body, &comment, requestOptions{})
	return comment, err
}

// Friends lists friends and pending requests
func (c *Client) Friends(ctx context.Context) (FriendsResponse, error) {
	var resp FriendsResponse
	err := c.do(ctx, http.MethodGet, "/friends", nil, &resp, requestOptions{})
	return resp, err
}

// SendFriendRequest asks userID to become a friend
func (c *Client) SendFriendRequest(ctx context.Context, userID string) (model.FriendRequest, error) {
	if userID == "" {
		return model.FriendRequest{}, ErrMissingID
	}
	var req model.FriendRequest
	body := map[string]string{"receiverId": userID}
	err := c.do(ctx, http.MethodPost, "/request", body, &req, requestOptions{})
	return req, err
}

// AcceptFriendRequest accepts an incoming request
func (c *Client) AcceptFriendRequest(ctx context.Context, requestID string) (model.FriendRequest, error) {
	if requestID == "" {
		return model.FriendRequest{}, ErrMissingID
	}
	var req model.FriendRequest
	body := map[string]string{"requestId": requestID}
	err := c.do(ctx, http.MethodPost, "/request/accept", body, &req, requestOptions{})
	return req, err
}

// Conversations lists conversation summaries
func (c *Client) Conversations(ctx context.Context) ([]model.Conversation, error) {
	var convs []model.Conversation
	err := c.do(ctx, http.MethodGet, "/messages/conversations", nil, &convs, requestOptions{})
	return convs, err
}

// SendMessage stores a direct message over REST, for use when the realtime
// channel is down
func (c *Client) SendMessage(ctx context.Context, recipientID, text string, attachments []model.Attachment) (model.Message, error) {
	if recipientID == "" {
		return model.Message{}, ErrMissingID
	}
	var msg model.Message
	body := struct {
		RecipientID string             `json:"recipientId"`
		Text        string             `json:"text"`
		Attachments []model.Attachment `json:"attachments,omitempty"`
	}{recipientID, text, attachments}
	err := c.do(ctx, http.MethodPost, "/messages", body, &msg, requestOptions{})
	return msg, err
}

// Notifications lists the user's notifications, newest first
func (c *Client) Notifications(ctx context.Context) ([]model.Notification, error) {
	var notes []model.Notification
	err := c.do(ctx, http.MethodGet, "/notifications", nil, &notes, requestOptions{})
	return notes, err
}

// MarkNotificationRead marks one notification read
func (c *Client) MarkNotificationRead(ctx context.Context, notificationID string) error {
	if notificationID == "" {
		return ErrMissingID
	}
	return c.do(ctx, http.MethodPatch, "/notifications/"+escape(notificationID)+"/read", nil, nil, requestOptions{})
}
