package social

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aeolun/socialite/pkg/api"
	"github.com/aeolun/socialite/pkg/model"
	"github.com/aeolun/socialite/pkg/reconcile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errServer = errors.New("server unavailable")

type toasts struct {
	mu   sync.Mutex
	msgs []string
}

func (t *toasts) Notify(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.msgs = append(t.msgs, msg)
}

func (t *toasts) Messages() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.msgs...)
}

func newReconciler() (*reconcile.Reconciler, *toasts) {
	r := reconcile.New()
	n := &toasts{}
	r.SetNotifier(n)
	return r, n
}

var ada = model.User{ID: "u1", Username: "ada"}

func signedIn() *model.User {
	u := ada
	return &u
}

// fakeAPI implements every store's API interface. Calls block on gate when
// it is set.
type fakeAPI struct {
	mu   sync.Mutex
	gate chan struct{}
	err  error
	// addGate blocks AddComment only
	addGate chan struct{}

	like     api.LikeResult
	comments []model.Comment
	friends  api.FriendsResponse
	calls    []string
}

func (f *fakeAPI) enter(call string) error {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	gate, err := f.gate, f.err
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return err
}

func (f *fakeAPI) ToggleLike(ctx context.Context, postID string) (api.LikeResult, error) {
	if err := f.enter("like " + postID); err != nil {
		return api.LikeResult{}, err
	}
	return f.like, nil
}

func (f *fakeAPI) Comments(ctx context.Context, postID string) ([]model.Comment, error) {
	if err := f.enter("comments " + postID); err != nil {
		return nil, err
	}
	return f.comments, nil
}

func (f *fakeAPI) AddComment(ctx context.Context, postID, content string) (model.Comment, error) {
	if err := f.enter("comment " + postID); err != nil {
		return model.Comment{}, err
	}
	if f.addGate != nil {
		<-f.addGate
	}
	return model.Comment{ID: "c-server", PostID: postID, Author: ada, Content: content}, nil
}

func (f *fakeAPI) Friends(ctx context.Context) (api.FriendsResponse, error) {
	if err := f.enter("friends"); err != nil {
		return api.FriendsResponse{}, err
	}
	return f.friends, nil
}

func (f *fakeAPI) SendFriendRequest(ctx context.Context, userID string) (model.FriendRequest, error) {
	if err := f.enter("request " + userID); err != nil {
		return model.FriendRequest{}, err
	}
	return model.FriendRequest{ID: "r-server", Sender: ada, Receiver: model.User{ID: userID}, Status: model.FriendRequestPending}, nil
}

func (f *fakeAPI) AcceptFriendRequest(ctx context.Context, requestID string) (model.FriendRequest, error) {
	if err := f.enter("accept " + requestID); err != nil {
		return model.FriendRequest{}, err
	}
	return model.FriendRequest{ID: requestID, Status: model.FriendRequestAccepted}, nil
}

func TestLikeTogglesOptimistically(t *testing.T) {
	r, n := newReconciler()
	fake := &fakeAPI{gate: make(chan struct{}), like: api.LikeResult{Liked: true, LikesCount: 6}}
	likes := NewLikes(r, fake)
	likes.SeedPosts([]model.Post{{ID: "p1", LikesCount: 5}})

	op := likes.Toggle(context.Background(), "p1")
	assert.Equal(t, reconcile.ToggleState{On: true, Count: 6}, likes.State("p1"))

	close(fake.gate)
	require.NoError(t, op.Wait(context.Background()))
	assert.Equal(t, reconcile.ToggleState{On: true, Count: 6}, likes.State("p1"))
	assert.Empty(t, n.Messages())
}

func TestLikeFailureRestoresState(t *testing.T) {
	r, n := newReconciler()
	fake := &fakeAPI{err: errServer}
	likes := NewLikes(r, fake)
	likes.Seed("p1", false, 5)

	op := likes.Toggle(context.Background(), "p1")
	require.ErrorIs(t, op.Wait(context.Background()), errServer)

	assert.Equal(t, reconcile.ToggleState{On: false, Count: 5}, likes.State("p1"))
	assert.Equal(t, []string{"Could not like post"}, n.Messages())
}

// Scenario C: the comment is visible as pending before the server answers
// and is swapped in place for the stored one.
func TestAddCommentReplacesPlaceholder(t *testing.T) {
	r, n := newReconciler()
	fake := &fakeAPI{gate: make(chan struct{})}
	comments := NewComments(r, fake, signedIn)

	op, err := comments.Add(context.Background(), "p1", "  first!  ")
	require.NoError(t, err)

	list := comments.List("p1")
	require.Len(t, list, 1)
	assert.Equal(t, reconcile.Pending, list[0].State)
	assert.True(t, reconcile.IsTempID(list[0].Payload.ID))
	assert.Equal(t, "ada", list[0].Payload.Author.Username)
	assert.Equal(t, "first!", list[0].Payload.Content)

	close(fake.gate)
	require.NoError(t, op.Wait(context.Background()))

	list = comments.List("p1")
	require.Len(t, list, 1)
	assert.Equal(t, reconcile.Committed, list[0].State)
	assert.Equal(t, "c-server", list[0].Payload.ID)
	assert.Empty(t, n.Messages())
}

func TestAddCommentFailureRemovesPlaceholder(t *testing.T) {
	r, n := newReconciler()
	fake := &fakeAPI{err: errServer}
	comments := NewComments(r, fake, signedIn)

	op, err := comments.Add(context.Background(), "p1", "hello")
	require.NoError(t, err)
	require.Error(t, op.Wait(context.Background()))

	assert.Empty(t, comments.List("p1"))
	assert.Equal(t, []string{"Could not post comment"}, n.Messages())
}

func TestAddCommentPreconditions(t *testing.T) {
	r, _ := newReconciler()
	fake := &fakeAPI{}

	_, err := NewComments(r, fake, signedIn).Add(context.Background(), "p1", "   ")
	assert.ErrorIs(t, err, ErrEmptyComment)

	_, err = NewComments(r, fake, func() *model.User { return nil }).Add(context.Background(), "p1", "hi")
	assert.ErrorIs(t, err, ErrNotSignedIn)

	assert.Empty(t, fake.calls)
}

func TestLoadCommentsKeepsPendingPlaceholders(t *testing.T) {
	r, _ := newReconciler()
	gate := make(chan struct{})
	fake := &fakeAPI{comments: []model.Comment{{ID: "c1", Content: "old"}}}
	comments := NewComments(r, fake, signedIn)

	fake.addGate = gate
	op, err := comments.Add(context.Background(), "p1", "new")
	require.NoError(t, err)

	require.NoError(t, comments.Load(context.Background(), "p1"))

	list := comments.List("p1")
	require.Len(t, list, 2)
	assert.Equal(t, "c1", list[0].Payload.ID)
	assert.Equal(t, reconcile.Pending, list[1].State)

	close(gate)
	require.NoError(t, op.Wait(context.Background()))
}

// The listing can already contain the comment whose POST is still running;
// the placeholder must then collapse into the listed comment.
func TestLoadDuringAddDoesNotDuplicate(t *testing.T) {
	r, _ := newReconciler()
	gate := make(chan struct{})
	fake := &fakeAPI{comments: []model.Comment{
		{ID: "c1", Content: "old"},
		{ID: "c-server", Content: "new"},
	}}
	comments := NewComments(r, fake, signedIn)

	fake.addGate = gate
	op, err := comments.Add(context.Background(), "p1", "new")
	require.NoError(t, err)
	require.NoError(t, comments.Load(context.Background(), "p1"))
	require.Len(t, comments.List("p1"), 3)

	close(gate)
	require.NoError(t, op.Wait(context.Background()))

	var ids []string
	for _, e := range comments.List("p1") {
		ids = append(ids, e.Payload.ID)
		assert.Equal(t, reconcile.Committed, e.State)
	}
	assert.Equal(t, []string{"c1", "c-server"}, ids)
	assert.Equal(t, ada, comments.List("p1")[1].Payload.Author)
}

func TestLoadAfterAddSettledKeepsNoPlaceholder(t *testing.T) {
	r, _ := newReconciler()
	fake := &fakeAPI{comments: []model.Comment{{ID: "c1"}, {ID: "c-server"}}}
	comments := NewComments(r, fake, signedIn)

	op, err := comments.Add(context.Background(), "p1", "new")
	require.NoError(t, err)
	require.NoError(t, op.Wait(context.Background()))
	require.NoError(t, comments.Load(context.Background(), "p1"))

	list := comments.List("p1")
	require.Len(t, list, 2)
	for _, e := range list {
		assert.False(t, reconcile.IsTempID(e.Payload.ID))
		assert.Empty(t, e.TempID)
	}
}

func TestSendFriendRequest(t *testing.T) {
	r, _ := newReconciler()
	fake := &fakeAPI{gate: make(chan struct{})}
	friends := NewFriends(r, fake, signedIn)

	op, err := friends.SendRequest(context.Background(), "u2")
	require.NoError(t, err)

	sent := friends.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, reconcile.Pending, sent[0].State)
	assert.Equal(t, "u2", sent[0].Payload.Receiver.ID)

	_, err = friends.SendRequest(context.Background(), "u2")
	assert.ErrorIs(t, err, ErrAlreadyRequested)

	close(fake.gate)
	require.NoError(t, op.Wait(context.Background()))
	assert.Equal(t, "r-server", friends.Sent()[0].Payload.ID)
}

func TestSendFriendRequestFailure(t *testing.T) {
	r, n := newReconciler()
	friends := NewFriends(r, &fakeAPI{err: errServer}, signedIn)

	op, err := friends.SendRequest(context.Background(), "u2")
	require.NoError(t, err)
	require.Error(t, op.Wait(context.Background()))

	assert.Empty(t, friends.Sent())
	assert.Equal(t, []string{"Could not send friend request"}, n.Messages())
}

func loadedFriends(t *testing.T, fake *fakeAPI) (*Friends, *toasts) {
	t.Helper()
	r, n := newReconciler()
	fake.friends = api.FriendsResponse{
		Friends: []model.User{{ID: "u9", Username: "grace"}},
		Incoming: []model.FriendRequest{
			{ID: "r1", Sender: model.User{ID: "u2", Username: "alan"}},
			{ID: "r2", Sender: model.User{ID: "u3", Username: "edsger"}},
			{ID: "r3", Sender: model.User{ID: "u4", Username: "barbara"}},
		},
	}
	friends := NewFriends(r, fake, signedIn)
	require.NoError(t, friends.Load(context.Background()))
	return friends, n
}

func requestIDs(entities []reconcile.Entity[model.FriendRequest]) []string {
	var ids []string
	for _, e := range entities {
		ids = append(ids, e.Payload.ID)
	}
	return ids
}

func friendIDs(entities []reconcile.Entity[model.User]) []string {
	var ids []string
	for _, e := range entities {
		ids = append(ids, e.Payload.ID)
	}
	return ids
}

func TestAcceptMovesRequestToFriends(t *testing.T) {
	fake := &fakeAPI{}
	friends, n := loadedFriends(t, fake)

	fake.gate = make(chan struct{})
	op, err := friends.Accept(context.Background(), "r2")
	require.NoError(t, err)

	assert.Equal(t, []string{"r1", "r3"}, requestIDs(friends.Incoming()))
	assert.Equal(t, []string{"u9", "u3"}, friendIDs(friends.List()))
	assert.Equal(t, reconcile.Pending, friends.List()[1].State)

	close(fake.gate)
	require.NoError(t, op.Wait(context.Background()))
	assert.Equal(t, reconcile.Committed, friends.List()[1].State)
	assert.Equal(t, "edsger", friends.List()[1].Payload.Username)
	assert.Empty(t, n.Messages())
}

func TestAcceptFailureRestoresOriginalIndex(t *testing.T) {
	fake := &fakeAPI{}
	friends, n := loadedFriends(t, fake)

	fake.err = errServer
	op, err := friends.Accept(context.Background(), "r2")
	require.NoError(t, err)
	require.Error(t, op.Wait(context.Background()))

	assert.Equal(t, []string{"r1", "r2", "r3"}, requestIDs(friends.Incoming()))
	assert.Equal(t, []string{"u9"}, friendIDs(friends.List()))
	assert.Equal(t, []string{"Could not accept friend request"}, n.Messages())
}

func TestAcceptUnknownRequest(t *testing.T) {
	fake := &fakeAPI{}
	friends, _ := loadedFriends(t, fake)

	_, err := friends.Accept(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownTarget)
}

func TestAcceptTwiceIsRejectedWhilePending(t *testing.T) {
	fake := &fakeAPI{}
	friends, _ := loadedFriends(t, fake)

	fake.gate = make(chan struct{})
	op, err := friends.Accept(context.Background(), "r1")
	require.NoError(t, err)

	_, err = friends.Accept(context.Background(), "r1")
	assert.ErrorIs(t, err, ErrUnknownTarget)

	close(fake.gate)
	require.NoError(t, op.Wait(context.Background()))
}

func TestCommentTimestampUsesClock(t *testing.T) {
	r, _ := newReconciler()
	fake := &fakeAPI{gate: make(chan struct{})}
	comments := NewComments(r, fake, signedIn)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	comments.now = func() time.Time { return fixed }

	op, err := comments.Add(context.Background(), "p1", "hi")
	require.NoError(t, err)
	assert.Equal(t, fixed, comments.List("p1")[0].Payload.CreatedAt)

	close(fake.gate)
	require.NoError(t, op.Wait(context.Background()))
}
