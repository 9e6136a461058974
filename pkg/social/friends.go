package social

import (
	"context"
	"errors"
	"time"

	"github.com/aeolun/socialite/pkg/api"
	"github.com/aeolun/socialite/pkg/model"
	"github.com/aeolun/socialite/pkg/reconcile"
)

var ErrAlreadyRequested = errors.New("friend request already sent")

// FriendAPI is the part of the REST client the friend store needs
type FriendAPI interface {
	Friends(ctx context.Context) (api.FriendsResponse, error)
	SendFriendRequest(ctx context.Context, userID string) (model.FriendRequest, error)
	AcceptFriendRequest(ctx context.Context, requestID string) (model.FriendRequest, error)
}

// Friends holds the friend list and pending requests in both directions
type Friends struct {
	r   *reconcile.Reconciler
	api FriendAPI
	me  CurrentUser
	now func() time.Time

	friends  *reconcile.Collection[model.User]
	incoming *reconcile.Collection[model.FriendRequest]
	sent     *reconcile.Collection[model.FriendRequest]
}

// NewFriends creates a friend store
func NewFriends(r *reconcile.Reconciler, client FriendAPI, me CurrentUser) *Friends {
	requestKey := func(fr model.FriendRequest) string { return fr.ID }
	return &Friends{
		r:        r,
		api:      client,
		me:       me,
		now:      time.Now,
		friends:  reconcile.NewCollection(func(u model.User) string { return u.ID }),
		incoming: reconcile.NewCollection(requestKey),
		sent:     reconcile.NewCollection(requestKey),
	}
}

// Load replaces all three lists with the server's view
func (f *Friends) Load(ctx context.Context) error {
	resp, err := f.api.Friends(ctx)
	if err != nil {
		return err
	}
	f.friends.Replace(resp.Friends)
	f.incoming.Replace(resp.Incoming)
	f.sent.Replace(resp.Sent)
	return nil
}

// List returns the friend list
func (f *Friends) List() []reconcile.Entity[model.User] { return f.friends.Items() }

// Incoming returns requests waiting for the current user
func (f *Friends) Incoming() []reconcile.Entity[model.FriendRequest] { return f.incoming.Items() }

// Sent returns requests the current user sent
func (f *Friends) Sent() []reconcile.Entity[model.FriendRequest] { return f.sent.Items() }

// SendRequest shows a pending outgoing request to userID straight away
func (f *Friends) SendRequest(ctx context.Context, userID string) (*reconcile.Op, error) {
	if userID == "" {
		return nil, ErrUnknownTarget
	}
	me := f.me()
	if me == nil {
		return nil, ErrNotSignedIn
	}
	for _, e := range f.sent.Items() {
		if e.Payload.Receiver.ID == userID {
			return nil, ErrAlreadyRequested
		}
	}
	sender := *me
	created := f.now()

	op := reconcile.Create(f.r, ctx, f.sent, reconcile.Creation[model.FriendRequest]{
		Kind:      "friend_request",
		Target:    "friend:" + userID,
		ErrorText: friendRequestFailedText,
		Placeholder: func(tempID string) model.FriendRequest {
			return model.FriendRequest{
				ID:        tempID,
				Sender:    sender,
				Receiver:  model.User{ID: userID},
				Status:    model.FriendRequestPending,
				CreatedAt: created,
			}
		},
		Send: func(ctx context.Context) (model.FriendRequest, error) {
			return f.api.SendFriendRequest(ctx, userID)
		},
	})
	return op, nil
}

type acceptSnapshot struct {
	index int
}

// Accept moves an incoming request into the friend list. On failure the
// request goes back to its original position and the friend is removed.
func (f *Friends) Accept(ctx context.Context, requestID string) (*reconcile.Op, error) {
	req, ok := f.incoming.Get(requestID)
	if !ok {
		return nil, ErrUnknownTarget
	}
	friendID := req.Payload.Sender.ID
	var added bool

	op := reconcile.Submit(f.r, ctx, reconcile.Mutation[acceptSnapshot, model.FriendRequest]{
		Kind:      "friend_accept",
		Target:    "friend-request:" + requestID,
		ErrorText: acceptFailedText,
		Snapshot: func() acceptSnapshot {
			for i, e := range f.incoming.Items() {
				if e.Payload.ID == requestID {
					return acceptSnapshot{index: i}
				}
			}
			return acceptSnapshot{index: -1}
		},
		Apply: func() {
			if _, _, ok := f.incoming.Remove(requestID); !ok {
				return
			}
			if _, exists := f.friends.Get(friendID); !exists {
				f.friends.Append(reconcile.Entity[model.User]{State: reconcile.Pending, Payload: req.Payload.Sender})
				added = true
			}
		},
		Send: func(ctx context.Context) (model.FriendRequest, error) {
			return f.api.AcceptFriendRequest(ctx, requestID)
		},
		Commit: func(accepted model.FriendRequest) {
			friend := req.Payload.Sender
			if accepted.Sender.ID == friendID {
				friend = accepted.Sender
			}
			f.friends.Update(friendID, func(model.User) model.User { return friend })
			f.friends.Settle(friendID)
		},
		Rollback: func(snap acceptSnapshot) {
			if added {
				f.friends.Remove(friendID)
			}
			if snap.index < 0 {
				return
			}
			if _, exists := f.incoming.Get(requestID); !exists {
				f.incoming.Insert(snap.index, req)
			}
		},
	})
	return op, nil
}
