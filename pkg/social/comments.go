package social

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/aeolun/socialite/pkg/model"
	"github.com/aeolun/socialite/pkg/reconcile"
)

var (
	ErrEmptyComment  = errors.New("comment cannot be empty")
	ErrNotSignedIn   = errors.New("not signed in")
	ErrUnknownTarget = errors.New("unknown id")
)

// CommentAPI is the part of the REST client the comment store needs
type CommentAPI interface {
	Comments(ctx context.Context, postID string) ([]model.Comment, error)
	AddComment(ctx context.Context, postID, content string) (model.Comment, error)
}

// CurrentUser returns the signed-in user's profile snapshot, or nil
type CurrentUser func() *model.User

// Comments keeps one ordered comment list per post
type Comments struct {
	r   *reconcile.Reconciler
	api CommentAPI
	me  CurrentUser
	now func() time.Time

	mu    sync.Mutex
	posts map[string]*reconcile.Collection[model.Comment]
}

// NewComments creates a comment store
func NewComments(r *reconcile.Reconciler, client CommentAPI, me CurrentUser) *Comments {
	return &Comments{
		r:     r,
		api:   client,
		me:    me,
		now:   time.Now,
		posts: make(map[string]*reconcile.Collection[model.Comment]),
	}
}

func commentKey(c model.Comment) string { return c.ID }

func commentTarget(postID string) string { return "comments:" + postID }

func (c *Comments) collection(postID string) *reconcile.Collection[model.Comment] {
	c.mu.Lock()
	defer c.mu.Unlock()
	col, ok := c.posts[postID]
	if !ok {
		col = reconcile.NewCollection(commentKey)
		c.posts[postID] = col
	}
	return col
}

// Load fetches a post's comments. Placeholders of comments still being sent
// are kept after the listing.
func (c *Comments) Load(ctx context.Context, postID string) error {
	comments, err := c.api.Comments(ctx, postID)
	if err != nil {
		return err
	}

	c.collection(postID).Replace(comments)
	return nil
}

// List returns a post's comments in display order
func (c *Comments) List(postID string) []reconcile.Entity[model.Comment] {
	return c.collection(postID).Items()
}

// Add shows the comment immediately, authored by the current user, and
// replaces it with the stored comment once the server confirms it
func (c *Comments) Add(ctx context.Context, postID, content string) (*reconcile.Op, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyComment
	}
	me := c.me()
	if me == nil {
		return nil, ErrNotSignedIn
	}
	author := *me
	created := c.now()

	op := reconcile.Create(c.r, ctx, c.collection(postID), reconcile.Creation[model.Comment]{
		Kind:      "comment",
		Target:    commentTarget(postID),
		ErrorText: commentFailedText,
		Placeholder: func(tempID string) model.Comment {
			return model.Comment{
				ID:        tempID,
				PostID:    postID,
				Author:    author,
				Content:   content,
				CreatedAt: created,
			}
		},
		Send: func(ctx context.Context) (model.Comment, error) {
			return c.api.AddComment(ctx, postID, content)
		},
	})
	return op, nil
}
