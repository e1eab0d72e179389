package handlertest

import (
	"context"
	"sort"
	"sync"
	"time"

	"opencanvas-service/apperror"
	"opencanvas-service/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Comments is an in-memory handler.CommentStore.
type Comments struct {
	mu       sync.Mutex
	comments map[primitive.ObjectID]*model.Comment
}

func NewComments() *Comments {
	return &Comments{comments: map[primitive.ObjectID]*model.Comment{}}
}

// Get returns a copy of a stored comment and whether it exists.
func (f *Comments) Get(id primitive.ObjectID) (model.Comment, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.comments[id]
	if !ok {
		return model.Comment{}, false
	}
	return cloneComment(c), true
}

func (f *Comments) Create(_ context.Context, c *model.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.ModifiedAt = now, now
	if c.Replies == nil {
		c.Replies = []primitive.ObjectID{}
	}
	cp := cloneComment(c)
	f.comments[c.ID] = &cp
	return nil
}

func (f *Comments) FindByID(_ context.Context, id primitive.ObjectID) (*model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.comments[id]
	if !ok {
		return nil, apperror.NotFound("comment not found")
	}
	cp := cloneComment(c)
	return &cp, nil
}

func (f *Comments) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Comment{}
	seen := map[primitive.ObjectID]bool{}
	for _, id := range ids {
		if c, ok := f.comments[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, cloneComment(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID) })
	return out, nil
}

func (f *Comments) Edit(_ context.Context, authorID, id primitive.ObjectID, content string) (*model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.comments[id]
	if !ok {
		return nil, apperror.NotFound("comment not found")
	}
	if !c.OwnedBy(authorID) {
		return nil, apperror.Forbidden("unauthorised to edit comment")
	}
	c.Content, c.IsEdited, c.ModifiedAt = content, true, time.Now().UTC()
	cp := cloneComment(c)
	return &cp, nil
}

func (f *Comments) AddReply(_ context.Context, parentID, replyID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	parent, ok := f.comments[parentID]
	if !ok {
		return apperror.NotFound("parent comment not found")
	}
	if !contains(parent.Replies, replyID) {
		parent.Replies = append(parent.Replies, replyID)
	}
	return nil
}

// Delete blanks a comment that has replies and removes it otherwise, like
// the MongoDB store.
func (f *Comments) Delete(_ context.Context, authorID, id primitive.ObjectID) (*model.Comment, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.comments[id]
	if !ok {
		return nil, false, apperror.NotFound("comment not found")
	}
	if !c.OwnedBy(authorID) {
		return nil, false, apperror.Forbidden("unauthorised to delete comment")
	}
	before := cloneComment(c)

	if len(c.Replies) > 0 {
		c.Content = model.DeletedCommentContent
		c.AuthorID = primitive.NilObjectID
		c.Deleted = true
		return &before, false, nil
	}
	delete(f.comments, id)
	if c.IsReply() {
		if parent, ok := f.comments[*c.ParentID]; ok {
			parent.Replies = without(parent.Replies, id)
		}
	}
	return &before, true, nil
}

func cloneComment(c *model.Comment) model.Comment {
	cp := *c
	cp.Replies = append([]primitive.ObjectID{}, c.Replies...)
	if c.ParentID != nil {
		parent := *c.ParentID
		cp.ParentID = &parent
	}
	return cp
}
