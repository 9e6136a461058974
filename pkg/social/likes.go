// ABOUTME: Feature stores built on the reconciler: likes, comments and friends.
// ABOUTME: Each store talks to the backend through a narrow API interface.

package social

import (
	"context"

	"github.com/aeolun/socialite/pkg/api"
	"github.com/aeolun/socialite/pkg/model"
	"github.com/aeolun/socialite/pkg/reconcile"
)

const (
	likeFailedText          = "Could not like post"
	commentFailedText       = "Could not post comment"
	friendRequestFailedText = "Could not send friend request"
	acceptFailedText        = "Could not accept friend request"
)

// LikeAPI is the part of the REST client the like store needs
type LikeAPI interface {
	ToggleLike(ctx context.Context, postID string) (api.LikeResult, error)
}

// Likes holds the liked flag and like count of each post
type Likes struct {
	api     LikeAPI
	toggles *reconcile.Toggles
}

// NewLikes creates a like store
func NewLikes(r *reconcile.Reconciler, client LikeAPI) *Likes {
	return &Likes{api: client, toggles: reconcile.NewToggles(r)}
}

// Seed records the server's view of a post, e.g. from a feed fetch
func (l *Likes) Seed(postID string, liked bool, count int) {
	l.toggles.Seed(postID, reconcile.ToggleState{On: liked, Count: count})
}

// SeedPosts seeds every post of a feed page
func (l *Likes) SeedPosts(posts []model.Post) {
	for _, p := range posts {
		l.Seed(p.ID, p.LikedByMe, p.LikesCount)
	}
}

// State returns the visible liked flag and count of a post
func (l *Likes) State(postID string) reconcile.ToggleState {
	return l.toggles.State(postID)
}

// Toggle likes or unlikes a post. The endpoint is a toggle, so a request is
// only made while the server's last known state differs from the intent.
func (l *Likes) Toggle(ctx context.Context, postID string) *reconcile.Op {
	return l.toggles.Toggle(ctx, reconcile.ToggleSpec{
		Kind:      "like",
		Target:    postID,
		ErrorText: likeFailedText,
		Send: func(ctx context.Context, _ bool) (*reconcile.ToggleState, error) {
			res, err := l.api.ToggleLike(ctx, postID)
			if err != nil {
				return nil, err
			}
			return &reconcile.ToggleState{On: res.Liked, Count: res.LikesCount}, nil
		},
	})
}
