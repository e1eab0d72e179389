package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"opencanvas-service/apperror"
	"opencanvas-service/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memRanker serves a fixed set of posts in feed order.
type memRanker struct {
	posts []model.Post
	calls int
	err   error
}

func (m *memRanker) Ranked(_ context.Context, kind Kind, after *Cursor, n int) ([]model.Post, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	sorted := append([]model.Post(nil), m.posts...)
	sort.Slice(sorted, func(i, j int) bool {
		return Less(sorted[i].AnonymousEngagementScore, sorted[i].ID, sorted[j].AnonymousEngagementScore, sorted[j].ID)
	})
	var out []model.Post
	for _, p := range sorted {
		if kind == KindSocial && p.Type != model.TypeSocial {
			continue
		}
		if !p.IsPublic || !After(after, p.AnonymousEngagementScore, p.ID) {
			continue
		}
		out = append(out, p)
		if len(out) == n {
			break
		}
	}
	return out, nil
}

func seedPosts(n int) []model.Post {
	posts := make([]model.Post, 0, n)
	for i := 0; i < n; i++ {
		id, _ := primitive.ObjectIDFromHex(fmt.Sprintf("65f0000000000000%08x", i+1))
		posts = append(posts, model.Post{
			ID:       id,
			Type:     model.TypeSocial,
			IsPublic: true,
			// groups of three share a score to exercise the id tie-break
			AnonymousEngagementScore: float64(100 - i/3),
		})
	}
	return posts
}

func TestPageWalksWholeFeedOnce(t *testing.T) {
	ranker := &memRanker{posts: seedPosts(37)}
	svc := NewService(ranker)

	seen := map[primitive.ObjectID]bool{}
	cursor := ""
	pages := 0
	for {
		page, err := svc.Page(context.Background(), KindSocial, cursor, 5)
		if err != nil {
			t.Fatalf("Page error: %v", err)
		}
		pages++
		for _, p := range page.Items {
			if seen[p.ID] {
				t.Fatalf("post %s returned twice", p.ID.Hex())
			}
			seen[p.ID] = true
		}
		if !page.HasMore {
			if page.NextCursor != nil {
				t.Errorf("last page must not carry a cursor")
			}
			break
		}
		if page.NextCursor == nil {
			t.Fatalf("HasMore without NextCursor")
		}
		cursor = *page.NextCursor
		if pages > 20 {
			t.Fatalf("pagination did not terminate")
		}
	}

	if len(seen) != 37 {
		t.Fatalf("saw %d posts, want 37", len(seen))
	}
	if pages != 8 {
		t.Errorf("pages = %d, want 8", pages)
	}
}

func TestPageExactMultipleEndsWithoutEmptyPage(t *testing.T) {
	svc := NewService(&memRanker{posts: seedPosts(10)})

	first, err := svc.Page(context.Background(), KindSocial, "", 5)
	if err != nil {
		t.Fatalf("Page error: %v", err)
	}
	if !first.HasMore || len(first.Items) != 5 {
		t.Fatalf("first page = %d items, hasMore %v", len(first.Items), first.HasMore)
	}

	second, err := svc.Page(context.Background(), KindSocial, *first.NextCursor, 5)
	if err != nil {
		t.Fatalf("Page error: %v", err)
	}
	if second.HasMore || len(second.Items) != 5 || second.NextCursor != nil {
		t.Fatalf("second page = %d items, hasMore %v", len(second.Items), second.HasMore)
	}
}

func TestPageEmptyFeed(t *testing.T) {
	svc := NewService(&memRanker{})
	page, err := svc.Page(context.Background(), KindArticles, "", DefaultLimit)
	if err != nil {
		t.Fatalf("Page error: %v", err)
	}
	if page.Items == nil || len(page.Items) != 0 || page.HasMore || page.NextCursor != nil {
		t.Fatalf("empty feed page = %+v", page)
	}
}

func TestPageRejectsBadLimitBeforeStoreAccess(t *testing.T) {
	ranker := &memRanker{posts: seedPosts(3)}
	svc := NewService(ranker)

	for _, limit := range []int{0, -1, 51, 1000} {
		_, err := svc.Page(context.Background(), KindSocial, "", limit)
		if !apperror.Is(err, apperror.KindValidation) {
			t.Errorf("limit %d: error = %v, want validation", limit, err)
		}
		if err != nil && apperror.MessageOf(err) != "Invalid limit parameter. Limit must be between 1-50." {
			t.Errorf("limit %d: message = %q", limit, apperror.MessageOf(err))
		}
	}
	if _, err := svc.Page(context.Background(), KindSocial, "garbage", 10); !apperror.Is(err, apperror.KindValidation) {
		t.Errorf("bad cursor: error = %v, want validation", err)
	}
	if ranker.calls != 0 {
		t.Fatalf("ranker called %d times for invalid requests", ranker.calls)
	}
}

func TestPageBoundaryLimits(t *testing.T) {
	svc := NewService(&memRanker{posts: seedPosts(60)})
	for _, limit := range []int{MinLimit, MaxLimit} {
		page, err := svc.Page(context.Background(), KindSocial, "", limit)
		if err != nil {
			t.Fatalf("limit %d: %v", limit, err)
		}
		if len(page.Items) != limit || !page.HasMore {
			t.Errorf("limit %d: got %d items hasMore %v", limit, len(page.Items), page.HasMore)
		}
	}
}

func TestPageStoreFailure(t *testing.T) {
	cause := errors.New("server selection timeout")
	svc := NewService(&memRanker{err: cause})
	if _, err := svc.Page(context.Background(), KindSocial, "", 5); !errors.Is(err, cause) {
		t.Fatalf("error = %v, want wrapped store error", err)
	}
}

func TestParseKind(t *testing.T) {
	if k, err := ParseKind("Social"); err != nil || k != KindSocial {
		t.Errorf("ParseKind(Social) = %v, %v", k, err)
	}
	if _, err := ParseKind("videos"); !apperror.Is(err, apperror.KindNotFound) {
		t.Errorf("ParseKind(videos) error = %v", err)
	}
}
