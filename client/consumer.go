package client

import (
	"context"
	"errors"
	"sync"

	"opencanvas-service/feed"
	"opencanvas-service/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrFetchInFlight is returned when Next is called while a page is
	// still loading.
	ErrFetchInFlight = errors.New("feed page already loading")
	// ErrSuperseded is returned by a fetch whose result was dropped because
	// Reset was called while it ran.
	ErrSuperseded = errors.New("feed page superseded")
)

// FeedConsumer walks a feed page by page, strictly one request at a time,
// and accumulates the posts it has seen.
type FeedConsumer struct {
	client *Client
	kind   feed.Kind
	limit  int

	mu       sync.Mutex
	items    []model.PublicPost
	seen     map[primitive.ObjectID]struct{}
	cursor   string
	hasMore  bool
	inFlight bool
	gen      uint64
}

func NewFeedConsumer(c *Client, kind feed.Kind, limit int) *FeedConsumer {
	if limit <= 0 {
		limit = feed.DefaultLimit
	}
	return &FeedConsumer{
		client:  c,
		kind:    kind,
		limit:   limit,
		seen:    make(map[primitive.ObjectID]struct{}),
		hasMore: true,
	}
}

// Next loads the next page and returns how many new posts it added. It is
// a no-op once the feed is exhausted.
func (f *FeedConsumer) Next(ctx context.Context) (int, error) {
	f.mu.Lock()
	if f.inFlight {
		f.mu.Unlock()
		return 0, ErrFetchInFlight
	}
	if !f.hasMore {
		f.mu.Unlock()
		return 0, nil
	}
	f.inFlight = true
	gen, cursor := f.gen, f.cursor
	f.mu.Unlock()

	resp, err := f.client.FeedPage(ctx, f.kind, cursor, f.limit)

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen {
		return 0, ErrSuperseded
	}
	f.inFlight = false
	if err != nil {
		return 0, err
	}

	added := 0
	for _, p := range resp.Posts {
		if _, dup := f.seen[p.ID]; dup {
			continue
		}
		f.seen[p.ID] = struct{}{}
		f.items = append(f.items, p)
		added++
	}
	f.hasMore = resp.HasMore && resp.NextCursor != nil
	if resp.NextCursor != nil {
		f.cursor = *resp.NextCursor
	}
	return added, nil
}

// Reset drops everything loaded so far. A fetch still running is
// abandoned and its result will not be merged.
func (f *FeedConsumer) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	f.items = nil
	f.seen = make(map[primitive.ObjectID]struct{})
	f.cursor = ""
	f.hasMore = true
	f.inFlight = false
}

func (f *FeedConsumer) Items() []model.PublicPost {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.PublicPost(nil), f.items...)
}

func (f *FeedConsumer) HasMore() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasMore
}
