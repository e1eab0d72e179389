package feed

import (
	"context"
	"fmt"
	"strings"

	"opencanvas-service/apperror"
	"opencanvas-service/model"
)

const (
	MinLimit     = 1
	MaxLimit     = 50
	DefaultLimit = 16
)

// Kind selects which public posts a feed serves.
type Kind string

const (
	KindSocial   Kind = "social"
	KindArticles Kind = "articles"
)

// ParseKind maps a route segment to a feed kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindSocial:
		return KindSocial, nil
	case KindArticles:
		return KindArticles, nil
	}
	return "", apperror.NotFound("unknown feed %q", s)
}

// Ranker returns up to n public posts of the given kind that come strictly
// after the cursor, ordered by (score DESC, id DESC).
type Ranker interface {
	Ranked(ctx context.Context, kind Kind, after *Cursor, n int) ([]model.Post, error)
}

// Page is one slice of the feed.
type Page struct {
	Items      []model.Post
	HasMore    bool
	NextCursor *string
}

type Service struct {
	ranker Ranker
}

func NewService(r Ranker) *Service {
	return &Service{ranker: r}
}

// Page validates the request and returns the next page after rawCursor.
// Validation happens before any store access.
func (s *Service) Page(ctx context.Context, kind Kind, rawCursor string, limit int) (*Page, error) {
	if limit < MinLimit || limit > MaxLimit {
		return nil, apperror.Validation("Invalid limit parameter. Limit must be between %d-%d.", MinLimit, MaxLimit)
	}

	cursor, err := DecodeCursor(rawCursor)
	if err != nil {
		return nil, err
	}

	rows, err := s.ranker.Ranked(ctx, kind, cursor, limit+1)
	if err != nil {
		return nil, fmt.Errorf("rank %s feed: %w", kind, err)
	}

	return paginate(rows, limit), nil
}

// paginate trims the look-ahead row and derives the next cursor from the
// last row actually returned.
func paginate(rows []model.Post, limit int) *Page {
	page := &Page{Items: rows}
	if len(rows) > limit {
		page.HasMore = true
		page.Items = rows[:limit]
	}
	if page.HasMore && len(page.Items) > 0 {
		last := page.Items[len(page.Items)-1]
		next := EncodeCursor(Cursor{Score: last.AnonymousEngagementScore, LastID: last.ID})
		page.NextCursor = &next
	}
	if page.Items == nil {
		page.Items = []model.Post{}
	}
	return page
}
