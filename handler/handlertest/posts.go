// Package handlertest provides in-memory stores that satisfy the handler
// interfaces, for tests that drive the HTTP API without MongoDB.
package handlertest

import (
	"context"
	"sort"
	"sync"
	"time"

	"opencanvas-service/apperror"
	"opencanvas-service/feed"
	"opencanvas-service/handler"
	"opencanvas-service/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	_ handler.PostStore       = (*Posts)(nil)
	_ feed.Ranker             = (*Posts)(nil)
	_ handler.UserStore       = (*Users)(nil)
	_ handler.CommentStore    = (*Comments)(nil)
	_ handler.CollectionStore = (*Collections)(nil)
	_ handler.ViewGate        = (*Views)(nil)
)

// Posts is an in-memory handler.PostStore and feed.Ranker.
type Posts struct {
	mu    sync.Mutex
	posts map[primitive.ObjectID]*model.Post
	err   error
}

func NewPosts() *Posts {
	return &Posts{posts: map[primitive.ObjectID]*model.Post{}}
}

// SetErr makes every read and save fail with err until cleared with nil.
func (f *Posts) SetErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *Posts) Put(p model.Post) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts[p.ID] = &p
}

// Get returns a copy of a stored post and whether it exists.
func (f *Posts) Get(id primitive.ObjectID) (model.Post, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return model.Post{}, false
	}
	return clonePost(p), true
}

func (f *Posts) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.posts)
}

func (f *Posts) Ranked(_ context.Context, kind feed.Kind, after *feed.Cursor, n int) ([]model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []model.Post
	for _, p := range f.posts {
		if !p.IsPublic || (kind == feed.KindSocial && p.Type != model.TypeSocial) {
			continue
		}
		if feed.After(after, p.AnonymousEngagementScore, p.ID) {
			out = append(out, clonePost(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return feed.Less(out[i].AnonymousEngagementScore, out[i].ID, out[j].AnonymousEngagementScore, out[j].ID)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (f *Posts) FindByID(_ context.Context, id primitive.ObjectID) (*model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.posts[id]
	if !ok {
		return nil, apperror.NotFound("Post not found")
	}
	cp := clonePost(p)
	return &cp, nil
}

func (f *Posts) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := []model.Post{}
	seen := map[primitive.ObjectID]bool{}
	for _, id := range ids {
		if p, ok := f.posts[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, clonePost(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID) })
	return out, nil
}

func (f *Posts) Save(_ context.Context, author *model.User, in model.SavePostRequest) (*model.Post, bool, error) {
	id, err := primitive.ObjectIDFromHex(in.ID)
	if err != nil {
		return nil, false, apperror.Validation("Invalid post ID")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, false, f.err
	}
	now := time.Now().UTC()
	if p, ok := f.posts[id]; ok {
		if !p.OwnedBy(author.ID) {
			return nil, false, apperror.Forbidden("Unauthorized to update this post")
		}
		p.Title, p.Content, p.Tags, p.IsEdited, p.ModifiedAt = in.Title, in.Content, in.Tags, true, now
		p.IsPublic = in.IsPublic == nil || *in.IsPublic
		cp := clonePost(p)
		return &cp, false, nil
	}
	p := &model.Post{
		ID:         id,
		Title:      in.Title,
		Content:    in.Content,
		AuthorID:   author.ID,
		Author:     author.AuthorCard(),
		Tags:       in.Tags,
		Type:       model.TypeArticle,
		IsPublic:   in.IsPublic == nil || *in.IsPublic,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	f.posts[id] = p
	cp := clonePost(p)
	return &cp, true, nil
}

func (f *Posts) Delete(_ context.Context, authorID, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok || !p.OwnedBy(authorID) {
		return apperror.NotFound("Post not found or unauthorized to delete")
	}
	delete(f.posts, id)
	return nil
}

func (f *Posts) SetVisibility(_ context.Context, authorID, id primitive.ObjectID, public bool) error {
	return f.setOwned(authorID, id, "Not authorised to change post visibility", func(p *model.Post) { p.IsPublic = public })
}

func (f *Posts) SetFeatured(_ context.Context, authorID, id primitive.ObjectID, featured bool) error {
	return f.setOwned(authorID, id, "Not authorised to feature this post", func(p *model.Post) { p.IsFeatured = featured })
}

func (f *Posts) setOwned(authorID, id primitive.ObjectID, denied string, set func(*model.Post)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return apperror.NotFound("Post not found")
	}
	if !p.OwnedBy(authorID) {
		return apperror.Forbidden("%s", denied)
	}
	set(p)
	return nil
}

// Increment never takes a counter below zero, like the MongoDB store.
func (f *Posts) Increment(_ context.Context, id primitive.ObjectID, counter model.Counter, delta int64) (*model.Post, error) {
	if !counter.Valid() {
		return nil, apperror.Validation("unknown counter %q", counter)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[id]
	if !ok {
		return nil, apperror.NotFound("Post not found")
	}
	c := counterOf(p, counter)
	if *c+delta >= 0 {
		*c += delta
	}
	cp := clonePost(p)
	return &cp, nil
}

func (f *Posts) AttachComment(_ context.Context, postID, commentID primitive.ObjectID, listed bool) (*model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[postID]
	if !ok {
		return nil, apperror.NotFound("Post not found")
	}
	p.TotalComments++
	if listed {
		p.Comments = append(p.Comments, commentID)
	}
	cp := clonePost(p)
	return &cp, nil
}

func (f *Posts) DetachComment(ctx context.Context, postID, commentID primitive.ObjectID, unlist bool) (*model.Post, error) {
	if unlist {
		f.mu.Lock()
		if p, ok := f.posts[postID]; ok {
			p.Comments = without(p.Comments, commentID)
		}
		f.mu.Unlock()
	}
	return f.Increment(ctx, postID, model.CounterComments, -1)
}

func counterOf(p *model.Post, counter model.Counter) *int64 {
	switch counter {
	case model.CounterViews:
		return &p.TotalViews
	case model.CounterCompleteReads:
		return &p.TotalCompleteReads
	case model.CounterShares:
		return &p.TotalShares
	case model.CounterLikes:
		return &p.TotalLikes
	case model.CounterDislikes:
		return &p.TotalDislikes
	default:
		return &p.TotalComments
	}
}

func clonePost(p *model.Post) model.Post {
	cp := *p
	cp.Tags = append([]string(nil), p.Tags...)
	cp.Comments = append([]primitive.ObjectID(nil), p.Comments...)
	return cp
}

// newer orders by creation time, newest first, then by id.
func newer(a time.Time, aID primitive.ObjectID, b time.Time, bID primitive.ObjectID) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return aID.Hex() > bID.Hex()
}

func contains(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func without(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}
