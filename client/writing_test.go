package client_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"opencanvas-service/apperror"
	"opencanvas-service/client"
	"opencanvas-service/draftstore"
	"opencanvas-service/editor"
	"opencanvas-service/feed"
	"opencanvas-service/handler"
	"opencanvas-service/handler/handlertest"
	"opencanvas-service/middleware"
	"opencanvas-service/model"
	"opencanvas-service/router"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// writingServer runs the real router over in-memory stores and returns a
// token for its only user.
func writingServer(t *testing.T) (*httptest.Server, *handlertest.Posts, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	secret := []byte("writing-test-secret")
	me := model.User{ID: primitive.NewObjectID(), Username: "writer", FullName: "Some Writer"}
	posts := handlertest.NewPosts()
	h := &handler.Handler{
		Service:     "opencanvas-test",
		Feed:        feed.NewService(posts),
		Posts:       posts,
		Users:       handlertest.NewUsers(me),
		Comments:    handlertest.NewComments(),
		Collections: handlertest.NewCollections(),
		Views:       &handlertest.Views{OK: true},
		Events:      &handlertest.Events{},
	}
	srv := httptest.NewServer(router.Setup(h, router.Options{JWTSecret: secret}))
	t.Cleanup(srv.Close)

	tok, err := middleware.NewToken(secret, me.ID.Hex(), time.Hour)
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	return srv, posts, tok
}

func TestWritingSessionSyncsThroughServer(t *testing.T) {
	srv, posts, tok := writingServer(t)
	ctx := context.Background()

	local, err := draftstore.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	sess := editor.NewSession("", editor.Options{})
	saver := &editor.Autosaver{
		Session: sess,
		Local:   local,
		Remote:  &client.PostSyncer{Client: client.New(srv.URL, 5*time.Second), Token: tok, IDs: local},
	}

	sess.SetTitle("Field notes")
	sess.Type("first draft")
	if err := saver.SaveNow(ctx); err != nil {
		t.Fatalf("first SaveNow: %v", err)
	}
	reserved, err := local.NewPostID()
	if err != nil || reserved == "" {
		t.Fatalf("reserved id = %q, %v", reserved, err)
	}
	postID, err := primitive.ObjectIDFromHex(reserved)
	if err != nil {
		t.Fatalf("reserved id %q is not an object id: %v", reserved, err)
	}

	sess.Type("second draft")
	if err := saver.SaveNow(ctx); err != nil {
		t.Fatalf("second SaveNow: %v", err)
	}
	if again, _ := local.NewPostID(); again != reserved {
		t.Errorf("reserved id changed from %s to %s", reserved, again)
	}
	if n := posts.Len(); n != 1 {
		t.Fatalf("stored %d posts, want 1", n)
	}
	p, ok := posts.Get(postID)
	if !ok || p.Content != "second draft" || p.Title != "Field notes" {
		t.Fatalf("stored post = %+v, found %t", p, ok)
	}
	if got := sess.SyncStatus(); got != editor.StatusSynced {
		t.Errorf("status = %s, want %s", got, editor.StatusSynced)
	}

	// the database goes away: the server answers 503
	posts.SetErr(apperror.Transient(errors.New("no primary"), "Database unavailable"))
	sess.Type("third draft")
	err = saver.SaveNow(ctx)
	if !apperror.Is(err, apperror.KindTransient) {
		t.Fatalf("SaveNow during outage = %v, want transient", err)
	}
	if got := sess.SyncStatus(); got != editor.StatusOffline {
		t.Errorf("status = %s, want %s", got, editor.StatusOffline)
	}
	d, err := local.LoadDraft()
	if err != nil || d == nil {
		t.Fatalf("LoadDraft = %v, %v", d, err)
	}
	if d.Content != "third draft" || d.SyncedWithServer {
		t.Errorf("local draft = %q synced=%t, want unsynced third draft", d.Content, d.SyncedWithServer)
	}
	if p, _ := posts.Get(postID); p.Content != "second draft" {
		t.Errorf("server copy changed during outage: %q", p.Content)
	}

	posts.SetErr(nil)
	if err := saver.Reconnected(ctx); err != nil {
		t.Fatalf("Reconnected: %v", err)
	}
	if n := posts.Len(); n != 1 {
		t.Fatalf("stored %d posts after reconnect, want 1", n)
	}
	if p, _ := posts.Get(postID); p.Content != "third draft" {
		t.Errorf("server content after reconnect = %q, want third draft", p.Content)
	}
	if got := sess.SyncStatus(); got != editor.StatusSynced {
		t.Errorf("status after reconnect = %s, want %s", got, editor.StatusSynced)
	}
	if d, _ := local.LoadDraft(); d == nil || !d.SyncedWithServer {
		t.Errorf("local draft not marked synced after reconnect: %+v", d)
	}
}

func TestRestoredDraftKeepsReservedID(t *testing.T) {
	srv, posts, tok := writingServer(t)
	ctx := context.Background()
	dir := t.TempDir()

	local, err := draftstore.NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	sess := editor.NewSession("", editor.Options{})
	sess.Type("before restart")
	saver := &editor.Autosaver{
		Session: sess,
		Local:   local,
		Remote:  &client.PostSyncer{Client: client.New(srv.URL, 5*time.Second), Token: tok, IDs: local},
	}
	if err := saver.SaveNow(ctx); err != nil {
		t.Fatalf("SaveNow: %v", err)
	}

	// a new process picks up the files left on disk
	reopened, err := draftstore.NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	d, err := reopened.LoadDraft()
	if err != nil || d == nil {
		t.Fatalf("LoadDraft = %v, %v", d, err)
	}
	restored := editor.Restore(*d, editor.Options{})
	restored.Type("after restart")
	resumed := &editor.Autosaver{
		Session: restored,
		Local:   reopened,
		Remote:  &client.PostSyncer{Client: client.New(srv.URL, 5*time.Second), Token: tok, IDs: reopened},
	}
	if err := resumed.SaveNow(ctx); err != nil {
		t.Fatalf("SaveNow after restart: %v", err)
	}

	if n := posts.Len(); n != 1 {
		t.Fatalf("stored %d posts, want 1", n)
	}
	id, _ := reopened.NewPostID()
	oid, _ := primitive.ObjectIDFromHex(id)
	if p, ok := posts.Get(oid); !ok || p.Content != "after restart" || p.Title != "Untitled" {
		t.Errorf("stored post = %+v, found %t", p, ok)
	}
}
