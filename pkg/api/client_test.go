package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/aeolun/socialite/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCreds struct {
	mu      sync.Mutex
	token   string
	cleared int
}

func (f *fakeCreds) Token() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, f.token != ""
}

func (f *fakeCreds) ClearCredentials() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = ""
	f.cleared++
	return nil
}

type recordedRequest struct {
	Method string
	Path   string
	Auth   string
	Body   map[string]any
}

// newTestServer replies with status and body for every request and records
// what it saw
func newTestServer(t *testing.T, status int, body string) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []recordedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{Method: r.Method, Path: r.URL.EscapedPath(), Auth: r.Header.Get("Authorization")}
		_ = json.NewDecoder(r.Body).Decode(&rec.Body)
		mu.Lock()
		reqs = append(reqs, rec)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func TestBearerTokenIsAttached(t *testing.T) {
	srv, reqs := newTestServer(t, http.StatusOK, `[{"_id":"p1","content":"hello","likesCount":2,"isLiked":true}]`)
	creds := &fakeCreds{token: "tok-1"}
	c := New(srv.URL+"/api/", creds, 0)

	posts, err := c.Posts(context.Background())
	require.NoError(t, err)

	require.Len(t, posts, 1)
	assert.Equal(t, "p1", posts[0].ID)
	assert.True(t, posts[0].LikedByMe)
	assert.Equal(t, 2, posts[0].LikesCount)

	require.Len(t, *reqs, 1)
	assert.Equal(t, "/api/posts", (*reqs)[0].Path)
	assert.Equal(t, "Bearer tok-1", (*reqs)[0].Auth)
}

func TestRejectedTokenClearsCredentials(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"message":"Unauthorized"}`},
		{"forbidden", http.StatusForbidden, `{"message":"Forbidden"}`},
		{"expired message", http.StatusBadRequest, `{"error":"Token expired, please sign in again"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, tt.status, tt.body)
			creds := &fakeCreds{token: "tok-1"}
			c := New(srv.URL, creds, 0)

			_, err := c.Me(context.Background())

			require.ErrorIs(t, err, ErrUnauthorized)
			var apiErr *Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, 1, creds.cleared)
			_, ok := creds.Token()
			assert.False(t, ok)
		})
	}
}

func TestOtherErrorsKeepCredentials(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusInternalServerError, `{"message":"database down"}`)
	creds := &fakeCreds{token: "tok-1"}
	c := New(srv.URL, creds, 0)

	_, err := c.Friends(context.Background())

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "http 500: database down", apiErr.Error())
	assert.NotErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 0, creds.cleared)
}

func TestSignInFailureDoesNotClearCredentials(t *testing.T) {
	srv, reqs := newTestServer(t, http.StatusUnauthorized, `{"message":"Invalid email or password"}`)
	creds := &fakeCreds{token: "old-token"}
	c := New(srv.URL, creds, 0)

	_, err := c.SignIn(context.Background(), "ada@example.com", "wrong-password")

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Invalid email or password", apiErr.Message)
	assert.Equal(t, 0, creds.cleared)
	assert.Empty(t, (*reqs)[0].Auth)
}

func TestSignIn(t *testing.T) {
	srv, reqs := newTestServer(t, http.StatusOK, `{"token":"new-token","user":{"_id":"u1","username":"ada"}}`)
	c := New(srv.URL, nil, 0)

	resp, err := c.SignIn(context.Background(), "ada@example.com", "secret-pw")
	require.NoError(t, err)

	assert.Equal(t, "new-token", resp.Token)
	assert.Equal(t, "ada", resp.User.Username)
	assert.Equal(t, "/auth/signin", (*reqs)[0].Path)
	assert.Equal(t, "ada@example.com", (*reqs)[0].Body["email"])
}

func TestInvalidInputIsRejectedLocally(t *testing.T) {
	srv, reqs := newTestServer(t, http.StatusOK, `{}`)
	c := New(srv.URL, nil, 0)

	_, err := c.SignIn(context.Background(), "not-an-email", "secret-pw")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = c.SignUp(context.Background(), SignUpRequest{Username: "ada", Email: "ada@example.com", Password: "123"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = c.ToggleLike(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingID)

	assert.Empty(t, *reqs)
}

func TestEndpointsUseExpectedRoutes(t *testing.T) {
	srv, reqs := newTestServer(t, http.StatusOK, `{}`)
	c := New(srv.URL, &fakeCreds{token: "t"}, 0)
	ctx := context.Background()

	_, _ = c.ToggleLike(ctx, "p1")
	_, _ = c.AddComment(ctx, "p1", "nice")
	_, _ = c.SendFriendRequest(ctx, "u2")
	_, _ = c.AcceptFriendRequest(ctx, "r1")
	_, _ = c.SendMessage(ctx, "u2", "hi", nil)
	_ = c.MarkNotificationRead(ctx, "n 1")

	var got []string
	for _, r := range *reqs {
		got = append(got, r.Method+" "+r.Path)
	}
	assert.Equal(t, []string{
		"POST /posts/p1/like",
		"POST /comments/p1",
		"POST /request",
		"POST /request/accept",
		"POST /messages",
		"PATCH /notifications/n%201/read",
	}, got)

	assert.Equal(t, "nice", (*reqs)[1].Body["content"])
	assert.Equal(t, "u2", (*reqs)[2].Body["receiverId"])
	assert.Equal(t, "r1", (*reqs)[3].Body["requestId"])
	assert.Equal(t, "u2", (*reqs)[4].Body["recipientId"])
}
