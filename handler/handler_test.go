package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"opencanvas-service/feed"
	"opencanvas-service/handler"
	"opencanvas-service/handler/handlertest"
	"opencanvas-service/middleware"
	"opencanvas-service/model"
	"opencanvas-service/router"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var secret = []byte("handler-test-secret")

type env struct {
	t           *testing.T
	posts       *handlertest.Posts
	users       *handlertest.Users
	comments    *handlertest.Comments
	collections *handlertest.Collections
	views       *handlertest.Views
	events      *handlertest.Events
	h           *handler.Handler
	engine      *gin.Engine
	me          model.User
	other       model.User
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	me := model.User{ID: primitive.NewObjectID(), Username: "me", FullName: "Me Writer"}
	other := model.User{ID: primitive.NewObjectID(), Username: "other", DisplayName: "Other"}

	e := &env{
		t:           t,
		posts:       handlertest.NewPosts(),
		users:       handlertest.NewUsers(me, other),
		comments:    handlertest.NewComments(),
		collections: handlertest.NewCollections(),
		views:       &handlertest.Views{OK: true},
		events:      &handlertest.Events{},
		me:          me,
		other:       other,
	}
	e.h = &handler.Handler{
		Service:     "opencanvas-test",
		Feed:        feed.NewService(e.posts),
		Posts:       e.posts,
		Users:       e.users,
		Comments:    e.comments,
		Collections: e.collections,
		Views:       e.views,
		Events:      e.events,
	}
	e.engine = router.Setup(e.h, router.Options{JWTSecret: secret})
	return e
}

func (e *env) token(id primitive.ObjectID) string {
	tok, err := middleware.NewToken(secret, id.Hex(), time.Hour)
	if err != nil {
		e.t.Fatalf("NewToken: %v", err)
	}
	return tok
}

// do sends a request as user (nil for anonymous) and decodes the JSON body.
func (e *env) do(method, path string, body any, user *model.User, headers ...string) (int, map[string]any) {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			e.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req.Header.Set("Authorization", "Bearer "+e.token(user.ID))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		e.t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
	}
	return w.Code, out
}

// post returns the stored copy of a post, failing the test if it is gone.
func (e *env) post(id primitive.ObjectID) model.Post {
	e.t.Helper()
	p, ok := e.posts.Get(id)
	if !ok {
		e.t.Fatalf("post %s not stored", id.Hex())
	}
	return p
}

func (e *env) seedPost(author model.User, mutate func(*model.Post)) model.Post {
	p := model.Post{
		ID:        primitive.NewObjectID(),
		Title:     "t",
		AuthorID:  author.ID,
		Type:      model.TypeSocial,
		IsPublic:  true,
		CreatedAt: time.Now(),
	}
	if mutate != nil {
		mutate(&p)
	}
	e.posts.Put(p)
	return p
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	code, body := e.do(http.MethodGet, "/health", nil, nil)
	if code != http.StatusOK || body["status"] != "healthy" || body["service"] != "opencanvas-test" {
		t.Fatalf("health = %d %v", code, body)
	}
}

func TestReady(t *testing.T) {
	e := newEnv(t)
	e.h.Checks = map[string]handler.Check{
		"mongo": func(context.Context) error { return nil },
	}
	code, body := e.do(http.MethodGet, "/ready", nil, nil)
	if code != http.StatusOK || body["ready"] != true {
		t.Fatalf("ready = %d %v", code, body)
	}

	e.h.Checks["nats"] = func(context.Context) error { return errors.New("disconnected") }
	code, body = e.do(http.MethodGet, "/ready", nil, nil)
	if code != http.StatusServiceUnavailable || body["ready"] != false {
		t.Fatalf("ready with failing check = %d %v", code, body)
	}
	checks := body["checks"].(map[string]any)
	if checks["nats"] != "unavailable" || checks["mongo"] != "ok" {
		t.Errorf("checks = %v", checks)
	}
}

func TestAnonymousFeedWalk(t *testing.T) {
	e := newEnv(t)
	for i := 0; i < 7; i++ {
		e.seedPost(e.me, func(p *model.Post) { p.AnonymousEngagementScore = float64(i % 3) })
	}
	e.seedPost(e.me, func(p *model.Post) { p.IsPublic = false })
	e.seedPost(e.me, func(p *model.Post) { p.Type = model.TypeArticle })

	seen := map[string]bool{}
	var cursor any
	for page := 0; ; page++ {
		if page > 5 {
			t.Fatal("feed did not terminate")
		}
		code, body := e.do(http.MethodPost, "/feed/social/anonymous-user", map[string]any{"limit": 3, "cursor": cursor}, nil)
		if code != http.StatusOK || body["success"] != true {
			t.Fatalf("page %d: %d %v", page, code, body)
		}
		for _, raw := range body["posts"].([]any) {
			p := raw.(map[string]any)
			id := p["_id"].(string)
			if seen[id] {
				t.Fatalf("post %s served twice", id)
			}
			seen[id] = true
			if _, leaked := p["totalDislikes"]; leaked {
				t.Errorf("feed item exposes totalDislikes")
			}
		}
		if body["hasMore"] != true {
			if body["nextCursor"] != nil {
				t.Errorf("last page carries cursor %v", body["nextCursor"])
			}
			break
		}
		cursor = body["nextCursor"]
	}
	if len(seen) != 7 {
		t.Errorf("served %d social posts, want 7", len(seen))
	}

	code, body := e.do(http.MethodPost, "/feed/articles/anonymous-user", nil, nil)
	if code != http.StatusOK || len(body["posts"].([]any)) != 8 {
		t.Errorf("articles feed = %d, %d posts; want all 8 public posts", code, len(body["posts"].([]any)))
	}
}

func TestAnonymousFeedCarriesContent(t *testing.T) {
	e := newEnv(t)
	e.seedPost(e.me, func(p *model.Post) { p.Content = "hello social world" })

	code, body := e.do(http.MethodPost, "/feed/social/anonymous-user", map[string]any{"limit": 5}, nil)
	if code != http.StatusOK {
		t.Fatalf("feed = %d %v", code, body)
	}
	posts := body["posts"].([]any)
	if len(posts) != 1 {
		t.Fatalf("got %d posts, want 1", len(posts))
	}
	if got := posts[0].(map[string]any)["content"]; got != "hello social world" {
		t.Errorf("content = %v", got)
	}
}

func TestAnonymousFeedRejects(t *testing.T) {
	e := newEnv(t)
	cases := []struct {
		name    string
		body    any
		message string
	}{
		{"zero limit", map[string]any{"limit": 0}, "Invalid limit parameter. Limit must be between 1-50."},
		{"large limit", map[string]any{"limit": 51}, "Invalid limit parameter. Limit must be between 1-50."},
		{"bad cursor", map[string]any{"cursor": "%%%"}, "Invalid cursor format"},
		{"wrong type", map[string]any{"limit": "ten"}, "Invalid request body"},
	}
	for _, tc := range cases {
		code, body := e.do(http.MethodPost, "/feed/social/anonymous-user", tc.body, nil)
		if code != http.StatusBadRequest || body["success"] != false || body["message"] != tc.message {
			t.Errorf("%s: %d %v", tc.name, code, body)
		}
		if _, ok := body["error"]; ok {
			t.Errorf("%s: error detail leaked outside development", tc.name)
		}
	}
}

func TestInternalErrorDetailOnlyInDevelopment(t *testing.T) {
	e := newEnv(t)
	e.posts.SetErr(errors.New("socket closed"))

	code, body := e.do(http.MethodPost, "/feed/social/anonymous-user", nil, nil)
	if code != http.StatusInternalServerError || body["message"] != "Failed to fetch feed" {
		t.Fatalf("got %d %v", code, body)
	}
	if _, ok := body["error"]; ok {
		t.Errorf("production response exposes error detail")
	}

	e.h.Development = true
	_, body = e.do(http.MethodPost, "/feed/social/anonymous-user", nil, nil)
	if detail, _ := body["error"].(string); detail == "" {
		t.Errorf("development response lacks error detail: %v", body)
	}
}

func TestSavePostCreateThenUpdate(t *testing.T) {
	e := newEnv(t)

	code, body := e.do(http.MethodPost, "/newpost/written/getId", nil, &e.me)
	if code != http.StatusOK {
		t.Fatalf("getId = %d %v", code, body)
	}
	id := body["newPostId"].(string)

	req := map[string]any{"id": id, "title": "Hello", "content": "some words here"}
	code, body = e.do(http.MethodPost, "/savepost/written", req, &e.me)
	if code != http.StatusOK || body["postId"] != id || body["message"] != "posted successfully" {
		t.Fatalf("create = %d %v", code, body)
	}

	req["title"] = "Hello again"
	if code, body = e.do(http.MethodPost, "/savepost/written", req, &e.me); code != http.StatusOK {
		t.Fatalf("update = %d %v", code, body)
	}

	code, body = e.do(http.MethodPost, "/savepost/written", req, &e.other)
	if code != http.StatusForbidden || body["message"] != "Unauthorized to update this post" {
		t.Fatalf("foreign update = %d %v", code, body)
	}

	oid, _ := primitive.ObjectIDFromHex(id)
	if p := e.post(oid); p.Title != "Hello again" || !p.IsEdited {
		t.Errorf("stored post = %+v", p)
	}
	u, _ := e.users.FindByID(context.Background(), e.me.ID)
	if len(u.Posts) != 1 || u.Posts[0] != oid {
		t.Errorf("author posts = %v", u.Posts)
	}
	if got := fmt.Sprint(e.events.Kinds()); got != "[create edit]" {
		t.Errorf("events = %s", got)
	}
}

func TestSavePostRequiresAuthAndFields(t *testing.T) {
	e := newEnv(t)

	code, body := e.do(http.MethodPost, "/savepost/written", map[string]any{}, nil)
	if code != http.StatusUnauthorized || body["message"] != "Access token required" {
		t.Fatalf("anonymous = %d %v", code, body)
	}

	code, _ = e.do(http.MethodPost, "/savepost/written", map[string]any{"title": "x"}, &e.me)
	if code != http.StatusBadRequest {
		t.Fatalf("missing fields = %d", code)
	}
}

func TestGetPostVisibility(t *testing.T) {
	e := newEnv(t)
	public := e.seedPost(e.me, nil)
	private := e.seedPost(e.me, func(p *model.Post) { p.IsPublic = false })

	if code, _ := e.do(http.MethodGet, "/p/"+public.ID.Hex(), nil, nil); code != http.StatusOK {
		t.Errorf("public post = %d", code)
	}
	if code, _ := e.do(http.MethodGet, "/p/"+private.ID.Hex(), nil, nil); code != http.StatusNotFound {
		t.Errorf("private post anonymous = %d, want 404", code)
	}
	if code, _ := e.do(http.MethodGet, "/p/"+private.ID.Hex(), nil, &e.other); code != http.StatusNotFound {
		t.Errorf("private post other user = %d, want 404", code)
	}
	if code, _ := e.do(http.MethodGet, "/p/"+private.ID.Hex(), nil, &e.me); code != http.StatusOK {
		t.Errorf("private post owner = %d, want 200", code)
	}
	if code, _ := e.do(http.MethodGet, "/p/nope", nil, nil); code != http.StatusBadRequest {
		t.Errorf("bad id = %d, want 400", code)
	}
}

func TestPostsByIDs(t *testing.T) {
	e := newEnv(t)
	older := e.seedPost(e.me, func(p *model.Post) { p.CreatedAt = time.Now().Add(-time.Hour) })
	newer := e.seedPost(e.me, nil)
	hidden := e.seedPost(e.other, func(p *model.Post) { p.IsPublic = false })

	ids := older.ID.Hex() + ",junk," + newer.ID.Hex() + "," + hidden.ID.Hex()
	code, body := e.do(http.MethodPost, "/u/posts/byids", map[string]any{"postIds": ids}, &e.me)
	if code != http.StatusOK {
		t.Fatalf("byids = %d %v", code, body)
	}
	posts := body["posts"].([]any)
	if len(posts) != 2 {
		t.Fatalf("got %d posts, want 2", len(posts))
	}
	if posts[0].(map[string]any)["_id"] != newer.ID.Hex() {
		t.Errorf("posts not newest first")
	}

	code, body = e.do(http.MethodPost, "/u/posts/byids", map[string]any{"postIds": "a,b"}, &e.me)
	if code != http.StatusBadRequest || body["message"] != "No valid post IDs provided" {
		t.Errorf("invalid ids = %d %v", code, body)
	}
}

func TestOwnerOnlyPostChanges(t *testing.T) {
	e := newEnv(t)
	p := e.seedPost(e.me, nil)
	q := "?postId=" + p.ID.Hex()

	code, body := e.do(http.MethodPut, "/post-visibility-change"+q, map[string]any{"isPublic": false}, &e.other)
	if code != http.StatusForbidden || body["message"] != "Not authorised to change post visibility" {
		t.Fatalf("foreign visibility = %d %v", code, body)
	}
	if code, _ = e.do(http.MethodPut, "/post-visibility-change"+q, map[string]any{}, &e.me); code != http.StatusBadRequest {
		t.Errorf("missing isPublic = %d", code)
	}
	if code, _ = e.do(http.MethodPut, "/post-visibility-change"+q, map[string]any{"isPublic": false}, &e.me); code != http.StatusOK {
		t.Fatalf("visibility = %d", code)
	}
	if code, _ = e.do(http.MethodPut, "/post-featured-change"+q, map[string]any{"isFeatured": true}, &e.me); code != http.StatusOK {
		t.Fatalf("featured = %d", code)
	}
	if got := e.post(p.ID); got.IsPublic || !got.IsFeatured {
		t.Errorf("post flags = public %t featured %t", got.IsPublic, got.IsFeatured)
	}

	code, body = e.do(http.MethodDelete, "/delete-post"+q, nil, &e.other)
	if code != http.StatusNotFound || body["message"] != "Post not found or unauthorized to delete" {
		t.Fatalf("foreign delete = %d %v", code, body)
	}
	if code, _ = e.do(http.MethodDelete, "/delete-post"+q, nil, &e.me); code != http.StatusOK {
		t.Fatalf("delete = %d", code)
	}
	if code, _ = e.do(http.MethodDelete, "/delete-post?postId=zzz", nil, &e.me); code != http.StatusBadRequest {
		t.Errorf("bad id delete = %d", code)
	}
}

func TestUpdateViews(t *testing.T) {
	e := newEnv(t)
	p := e.seedPost(e.me, nil)
	path := "/update-post-views/" + p.ID.Hex()

	code, body := e.do(http.MethodPut, path, nil, nil, handler.VisitorHeader, "fp-1")
	if code != http.StatusOK || body["counted"] != true || body["totalViews"] != float64(1) {
		t.Fatalf("first view = %d %v", code, body)
	}

	e.views.OK, e.views.Reason = false, "recent"
	_, body = e.do(http.MethodPut, path, nil, nil, handler.VisitorHeader, "fp-1")
	if body["counted"] != false || body["message"] != "View already counted recently" {
		t.Errorf("recent view = %v", body)
	}

	e.views.Reason = "max_reached"
	_, body = e.do(http.MethodPut, path, nil, nil, handler.VisitorHeader, "fp-1")
	if body["message"] != "Max views reached for this visitor" {
		t.Errorf("max view = %v", body)
	}

	e.views.OK, e.views.Err = false, errors.New("redis down")
	_, body = e.do(http.MethodPut, path, nil, nil)
	if body["counted"] != true {
		t.Errorf("limiter failure should still count: %v", body)
	}
	if got := e.post(p.ID).TotalViews; got != 2 {
		t.Errorf("totalViews = %d, want 2", got)
	}
}

func TestUpdateViewsPrivatePost(t *testing.T) {
	e := newEnv(t)
	p := e.seedPost(e.me, func(p *model.Post) { p.IsPublic = false })

	code, body := e.do(http.MethodPut, "/update-post-views/"+p.ID.Hex(), nil, nil)
	if code != http.StatusOK || body["success"] != false || body["message"] != "Post is private" {
		t.Fatalf("private view = %d %v", code, body)
	}
	if e.views.Calls() != 0 || e.post(p.ID).TotalViews != 0 {
		t.Errorf("private post view touched the limiter or counter")
	}
}

func TestCompleteReadAndShare(t *testing.T) {
	e := newEnv(t)
	p := e.seedPost(e.me, nil)

	_, body := e.do(http.MethodPut, "/complete-read/"+p.ID.Hex(), nil, nil)
	if body["totalCompleteReads"] != float64(1) {
		t.Errorf("complete read = %v", body)
	}
	_, body = e.do(http.MethodPut, "/share-post/"+p.ID.Hex(), nil, nil)
	if body["totalShares"] != float64(1) {
		t.Errorf("share = %v", body)
	}
	if code, _ := e.do(http.MethodPut, "/share-post/"+primitive.NewObjectID().Hex(), nil, nil); code != http.StatusNotFound {
		t.Errorf("missing post share = %d", code)
	}
	if got := fmt.Sprint(e.events.Kinds()); got != "[read share]" {
		t.Errorf("events = %s", got)
	}
}

func TestLikeToggle(t *testing.T) {
	e := newEnv(t)
	p := e.seedPost(e.other, nil)
	path := "/like-post?postId=" + p.ID.Hex()

	_, body := e.do(http.MethodPut, path, nil, &e.me)
	if body["message"] != "liked" || body["totalLikes"] != float64(1) || body["active"] != true {
		t.Fatalf("like = %v", body)
	}
	_, body = e.do(http.MethodPut, path, nil, &e.me)
	if body["message"] != "removed like" || body["totalLikes"] != float64(0) {
		t.Fatalf("unlike = %v", body)
	}


	if code, _ := e.do(http.MethodPut, "/like-post", nil, &e.me); code != http.StatusNotFound {
		t.Errorf("missing postId = %d", code)
	}
	if code, _ := e.do(http.MethodPut, path, nil, nil); code != http.StatusUnauthorized {
		t.Errorf("anonymous like = %d", code)
	}
	if got := fmt.Sprint(e.events.Kinds()); got != "[like unlike]" {
		t.Errorf("events = %s", got)
	}
}

func TestDislikeToggle(t *testing.T) {
	cases := []struct {
		name       string
		disliked   bool
		dislikes   int64
		message    string
		active     bool
		total      int64
		eventKinds string
	}{
		{"on", false, 2, "disliked", true, 3, "[dislike]"},
		{"off", true, 3, "removed dislike", false, 2, "[undislike]"},
		{"off at zero stays zero", true, 0, "removed dislike", false, 0, "[undislike]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t)
			p := e.seedPost(e.other, func(p *model.Post) { p.TotalDislikes = tc.dislikes })
			if tc.disliked {
				e.users.Update(e.me.ID, func(u *model.User) { u.DislikedPosts = []primitive.ObjectID{p.ID} })
			}

			code, body := e.do(http.MethodPut, "/dislike-post?postId="+p.ID.Hex(), nil, &e.me)
			if code != http.StatusOK || body["message"] != tc.message || body["active"] != tc.active {
				t.Fatalf("dislike = %d %v", code, body)
			}
			if body["totalDislikes"] != float64(tc.total) {
				t.Errorf("totalDislikes = %v, want %d", body["totalDislikes"], tc.total)
			}
			if got := e.post(p.ID).TotalDislikes; got != tc.total {
				t.Errorf("stored dislikes = %d, want %d", got, tc.total)
			}
			if got := fmt.Sprint(e.events.Kinds()); got != tc.eventKinds {
				t.Errorf("events = %s, want %s", got, tc.eventKinds)
			}
		})
	}
}

func TestFollowToggle(t *testing.T) {
	e := newEnv(t)
	path := "/follow-user?followId=" + e.other.ID.Hex()

	if _, body := e.do(http.MethodPut, path, nil, &e.me); body["message"] != "followed" {
		t.Fatalf("follow = %v", body)
	}
	if _, body := e.do(http.MethodPut, path, nil, &e.me); body["message"] != "unfollowed" {
		t.Fatalf("unfollow = %v", body)
	}

	code, body := e.do(http.MethodPut, "/follow-user?followId="+e.me.ID.Hex(), nil, &e.me)
	if code != http.StatusBadRequest || body["message"] != "You cannot follow your account" {
		t.Errorf("self follow = %d %v", code, body)
	}
	code, body = e.do(http.MethodPut, "/follow-user?followId="+primitive.NewObjectID().Hex(), nil, &e.me)
	if code != http.StatusNotFound || body["message"] != "User to follow not found" {
		t.Errorf("missing target = %d %v", code, body)
	}
	if code, _ = e.do(http.MethodPut, "/follow-user?followId=bad", nil, &e.me); code != http.StatusBadRequest {
		t.Errorf("bad id = %d", code)
	}
}

func TestUsersByIDs(t *testing.T) {
	e := newEnv(t)
	ids := e.me.ID.Hex() + "," + e.other.ID.Hex() + ",x"

	code, body := e.do(http.MethodPost, "/u/followers/byids", map[string]any{"userIds": ids}, nil)
	if code != http.StatusOK || len(body["users"].([]any)) != 2 {
		t.Fatalf("byids = %d %v", code, body)
	}
	card := body["users"].([]any)[0].(map[string]any)
	if _, leaked := card["likedPosts"]; leaked {
		t.Errorf("user card exposes liked posts")
	}
}
