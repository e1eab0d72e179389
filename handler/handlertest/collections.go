package handlertest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"opencanvas-service/apperror"
	"opencanvas-service/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Collections is an in-memory handler.CollectionStore.
type Collections struct {
	mu   sync.Mutex
	cols map[primitive.ObjectID]*model.Collection
}

func NewCollections() *Collections {
	return &Collections{cols: map[primitive.ObjectID]*model.Collection{}}
}

// Get returns a copy of a stored collection and whether it exists.
func (f *Collections) Get(id primitive.ObjectID) (model.Collection, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cols[id]
	if !ok {
		return model.Collection{}, false
	}
	return cloneCollection(c), true
}

func (f *Collections) Create(_ context.Context, authorID primitive.ObjectID, in model.CollectionRequest) (*model.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	c := &model.Collection{
		ID:         primitive.NewObjectID(),
		AuthorID:   authorID,
		Tags:       []string{},
		Posts:      []primitive.ObjectID{},
		CreatedAt:  now,
		ModifiedAt: now,
	}
	apply(c, in)
	f.cols[c.ID] = c
	cp := cloneCollection(c)
	return &cp, nil
}

func (f *Collections) FindByID(_ context.Context, id primitive.ObjectID) (*model.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cols[id]
	if !ok {
		return nil, apperror.NotFound("Collection not found")
	}
	cp := cloneCollection(c)
	return &cp, nil
}

func (f *Collections) ListByAuthor(_ context.Context, authorID primitive.ObjectID, includePrivate bool) ([]model.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Collection{}
	for _, c := range f.cols {
		if c.AuthorID == authorID && (includePrivate || !c.IsPrivate) {
			out = append(out, cloneCollection(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID) })
	return out, nil
}

func (f *Collections) Browse(_ context.Context, q model.CollectionQuery) ([]model.Collection, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []model.Collection
	for _, c := range f.cols {
		if !c.IsPrivate && matchesSearch(c, q.Search) && hasAnyTag(c, q.Tags) {
			matched = append(matched, cloneCollection(c))
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].TotalUpvotes != matched[j].TotalUpvotes {
			return matched[i].TotalUpvotes > matched[j].TotalUpvotes
		}
		return newer(matched[i].CreatedAt, matched[i].ID, matched[j].CreatedAt, matched[j].ID)
	})

	total := int64(len(matched))
	start := (q.Page - 1) * q.Limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return append([]model.Collection{}, matched[start:end]...), total, nil
}

func (f *Collections) Update(_ context.Context, authorID, id primitive.ObjectID, in model.CollectionRequest) (*model.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cols[id]
	if !ok || c.AuthorID != authorID {
		return nil, apperror.NotFound("Collection not found")
	}
	apply(c, in)
	c.ModifiedAt = time.Now().UTC()
	cp := cloneCollection(c)
	return &cp, nil
}

func (f *Collections) AddPost(_ context.Context, authorID, id, postID primitive.ObjectID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cols[id]
	if !ok || c.AuthorID != authorID {
		return false, apperror.NotFound("Collection not found")
	}
	if contains(c.Posts, postID) {
		return false, nil
	}
	c.Posts = append(c.Posts, postID)
	return true, nil
}

func (f *Collections) RemovePost(_ context.Context, authorID, id, postID primitive.ObjectID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cols[id]
	if !ok || c.AuthorID != authorID {
		return false, apperror.NotFound("Collection not found")
	}
	if !contains(c.Posts, postID) {
		return false, nil
	}
	c.Posts = without(c.Posts, postID)
	return true, nil
}

func (f *Collections) Vote(_ context.Context, id primitive.ObjectID, up bool) (*model.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cols[id]
	if !ok {
		return nil, apperror.NotFound("Collection not found")
	}
	if up {
		c.TotalUpvotes++
	} else {
		c.TotalDownvotes++
	}
	cp := cloneCollection(c)
	return &cp, nil
}

func (f *Collections) Delete(_ context.Context, authorID, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cols[id]
	if !ok || c.AuthorID != authorID {
		return apperror.NotFound("Collection not found")
	}
	delete(f.cols, id)
	return nil
}

func apply(c *model.Collection, in model.CollectionRequest) {
	if in.Title != nil {
		c.Title = *in.Title
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.ThumbnailURL != nil {
		c.ThumbnailURL = *in.ThumbnailURL
	}
	if in.Tags != nil {
		c.Tags = append([]string{}, in.Tags...)
	}
	if in.IsPrivate != nil {
		c.IsPrivate = *in.IsPrivate
	}
}

func matchesSearch(c *model.Collection, search string) bool {
	if search == "" {
		return true
	}
	search = strings.ToLower(search)
	if strings.Contains(strings.ToLower(c.Title), search) || strings.Contains(strings.ToLower(c.Description), search) {
		return true
	}
	for _, tag := range c.Tags {
		if strings.Contains(strings.ToLower(tag), search) {
			return true
		}
	}
	return false
}

func hasAnyTag(c *model.Collection, tags []string) bool {
	if len(tags) == 0 {
		return true
	}
	for _, want := range tags {
		for _, tag := range c.Tags {
			if tag == want {
				return true
			}
		}
	}
	return false
}

func cloneCollection(c *model.Collection) model.Collection {
	cp := *c
	cp.Tags = append([]string{}, c.Tags...)
	cp.Posts = append([]primitive.ObjectID{}, c.Posts...)
	return cp
}
