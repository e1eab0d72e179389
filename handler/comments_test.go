package handler_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"opencanvas-service/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCommentLifecycle(t *testing.T) {
	e := newEnv(t)
	p := e.seedPost(e.other, nil)

	code, body := e.do(http.MethodPost, "/new-comment", map[string]any{"postId": p.ID.Hex(), "content": "  nice post  "}, &e.me)
	if code != http.StatusOK || body["message"] != "comment added." || body["totalComments"] != float64(1) {
		t.Fatalf("new comment = %d %v", code, body)
	}
	comment := body["comment"].(map[string]any)
	if comment["content"] != "nice post" || comment["author"].(map[string]any)["username"] != "me" {
		t.Errorf("comment = %v", comment)
	}
	parentID := comment["_id"].(string)
	if got := e.post(p.ID); got.TotalComments != 1 || len(got.Comments) != 1 || got.Comments[0].Hex() != parentID {
		t.Errorf("post after comment = %d comments %v", got.TotalComments, got.Comments)
	}

	code, body = e.do(http.MethodPost, "/reply-to-a-comment", map[string]any{
		"postId": p.ID.Hex(), "parentId": parentID, "content": "thanks",
	}, &e.other)
	if code != http.StatusOK || body["message"] != "reply added." || body["totalComments"] != float64(2) {
		t.Fatalf("reply = %d %v", code, body)
	}
	replyID := body["comment"].(map[string]any)["_id"].(string)
	if got := e.post(p.ID); len(got.Comments) != 1 {
		t.Errorf("reply was listed on the post: %v", got.Comments)
	}

	code, body = e.do(http.MethodGet, "/p/comments/"+parentID, nil, &e.other)
	if code != http.StatusOK || len(body["replies"].([]any)) != 1 {
		t.Fatalf("get comment = %d %v", code, body)
	}

	edit := map[string]any{"commentId": parentID, "content": "very nice post"}
	code, body = e.do(http.MethodPut, "/edit-comment", edit, &e.other)
	if code != http.StatusForbidden || body["message"] != "unauthorised to edit comment" {
		t.Errorf("foreign edit = %d %v", code, body)
	}
	code, body = e.do(http.MethodPut, "/edit-comment", edit, &e.me)
	if code != http.StatusOK || body["comment"].(map[string]any)["isEdited"] != true {
		t.Fatalf("edit = %d %v", code, body)
	}

	// a comment with replies is blanked, not removed
	code, body = e.do(http.MethodDelete, "/delete-comment?commentId="+parentID, nil, &e.me)
	if code != http.StatusOK || body["totalComments"] != float64(1) {
		t.Fatalf("delete parent = %d %v", code, body)
	}
	_, body = e.do(http.MethodGet, "/p/comments/"+parentID, nil, &e.other)
	parent := body["comment"].(map[string]any)
	if parent["content"] != model.DeletedCommentContent || parent["author"] != nil {
		t.Errorf("blanked comment = %v", parent)
	}
	if code, _ = e.do(http.MethodDelete, "/delete-comment?commentId="+parentID, nil, &e.me); code != http.StatusForbidden {
		t.Errorf("second delete of blanked comment = %d", code)
	}

	code, body = e.do(http.MethodDelete, "/delete-comment?commentId="+replyID, nil, &e.other)
	if code != http.StatusOK || body["totalComments"] != float64(0) {
		t.Fatalf("delete reply = %d %v", code, body)
	}
	pid, _ := primitive.ObjectIDFromHex(parentID)
	if got, _ := e.comments.Get(pid); len(got.Replies) != 0 {
		t.Errorf("parent still links deleted reply: %v", got.Replies)
	}

	if got := fmt.Sprint(e.events.Kinds()); got != "[comment comment uncomment uncomment]" {
		t.Errorf("events = %s", got)
	}
}

func TestCommentRejects(t *testing.T) {
	e := newEnv(t)
	public := e.seedPost(e.other, nil)
	private := e.seedPost(e.other, func(p *model.Post) { p.IsPublic = false })
	elsewhere := e.seedPost(e.other, nil)

	root := &model.Comment{Content: "root", AuthorID: e.other.ID, PostID: elsewhere.ID}
	if err := e.comments.Create(context.Background(), root); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name    string
		method  string
		path    string
		body    any
		user    *model.User
		code    int
		message string
	}{
		{"anonymous", http.MethodPost, "/new-comment", map[string]any{"postId": public.ID.Hex(), "content": "x"}, nil, http.StatusUnauthorized, "Access token required"},
		{"missing fields", http.MethodPost, "/new-comment", map[string]any{"postId": public.ID.Hex()}, &e.me, http.StatusBadRequest, "comment information not found"},
		{"blank content", http.MethodPost, "/new-comment", map[string]any{"postId": public.ID.Hex(), "content": "   "}, &e.me, http.StatusBadRequest, "Comment content is required"},
		{"bad post id", http.MethodPost, "/new-comment", map[string]any{"postId": "nope", "content": "x"}, &e.me, http.StatusBadRequest, "Invalid post ID"},
		{"missing post", http.MethodPost, "/new-comment", map[string]any{"postId": primitive.NewObjectID().Hex(), "content": "x"}, &e.me, http.StatusNotFound, "Post not found"},
		{"private post", http.MethodPost, "/new-comment", map[string]any{"postId": private.ID.Hex(), "content": "x"}, &e.me, http.StatusNotFound, "Post not found"},
		{"reply to missing parent", http.MethodPost, "/reply-to-a-comment", map[string]any{
			"postId": public.ID.Hex(), "parentId": primitive.NewObjectID().Hex(), "content": "x",
		}, &e.me, http.StatusNotFound, "parent comment not found"},
		{"reply across posts", http.MethodPost, "/reply-to-a-comment", map[string]any{
			"postId": public.ID.Hex(), "parentId": root.ID.Hex(), "content": "x",
		}, &e.me, http.StatusBadRequest, "Parent comment belongs to another post"},
		{"delete without id", http.MethodDelete, "/delete-comment", nil, &e.me, http.StatusBadRequest, "No comment ID provided"},
		{"edit missing comment", http.MethodPut, "/edit-comment", map[string]any{
			"commentId": primitive.NewObjectID().Hex(), "content": "x",
		}, &e.me, http.StatusNotFound, "comment not found"},
	}
	for _, tc := range cases {
		code, body := e.do(tc.method, tc.path, tc.body, tc.user)
		if code != tc.code || body["message"] != tc.message {
			t.Errorf("%s: %d %v", tc.name, code, body)
		}
	}
	if got := e.post(public.ID).TotalComments; got != 0 {
		t.Errorf("rejected comments changed the count to %d", got)
	}
}

func TestCommentsByIDs(t *testing.T) {
	e := newEnv(t)
	public := e.seedPost(e.other, nil)
	private := e.seedPost(e.other, func(p *model.Post) { p.IsPublic = false })

	var ids []string
	for _, c := range []*model.Comment{
		{Content: "first", AuthorID: e.me.ID, PostID: public.ID},
		{Content: "second", AuthorID: e.other.ID, PostID: public.ID},
		{Content: "hidden", AuthorID: e.other.ID, PostID: private.ID},
	} {
		if err := e.comments.Create(context.Background(), c); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, c.ID.Hex())
	}

	code, body := e.do(http.MethodPost, "/get-comments-byids", map[string]any{
		"commentIds": ids[0] + "," + ids[1] + "," + ids[2] + ",junk",
	}, &e.me)
	if code != http.StatusOK {
		t.Fatalf("byids = %d %v", code, body)
	}
	comments := body["comments"].([]any)
	if len(comments) != 2 {
		t.Fatalf("got %d comments, want the 2 on the public post", len(comments))
	}
	first := comments[0].(map[string]any)
	if first["content"] != "second" || first["author"].(map[string]any)["username"] != "other" {
		t.Errorf("newest comment = %v", first)
	}

	code, body = e.do(http.MethodPost, "/get-comments-byids", map[string]any{"commentIds": "x,y"}, &e.me)
	if code != http.StatusBadRequest || body["message"] != "No valid comment IDs provided" {
		t.Errorf("invalid ids = %d %v", code, body)
	}
}

func TestPublicProfile(t *testing.T) {
	e := newEnv(t)
	e.users.Update(e.me.ID, func(u *model.User) {
		u.AboutMe = "writes things"
		u.LikedPosts = []primitive.ObjectID{primitive.NewObjectID()}
	})

	code, body := e.do(http.MethodGet, "/u/me", nil, nil)
	if code != http.StatusOK {
		t.Fatalf("profile = %d %v", code, body)
	}
	user := body["user"].(map[string]any)
	if user["username"] != "me" || user["aboutMe"] != "writes things" {
		t.Errorf("profile = %v", user)
	}
	if _, leaked := user["likedPosts"]; leaked {
		t.Errorf("profile exposes liked posts")
	}

	if code, body = e.do(http.MethodGet, "/u/nobody", nil, nil); code != http.StatusNotFound || body["message"] != "User not found" {
		t.Errorf("missing profile = %d %v", code, body)
	}

	for _, prefix := range []string{"/author/", "/follower/", "/following/"} {
		code, body = e.do(http.MethodGet, prefix+e.other.ID.Hex(), nil, nil)
		if code != http.StatusOK || body["author"].(map[string]any)["username"] != "other" {
			t.Errorf("%s = %d %v", prefix, code, body)
		}
	}
	if code, _ = e.do(http.MethodGet, "/author/bad", nil, nil); code != http.StatusBadRequest {
		t.Errorf("bad author id = %d", code)
	}
}
