package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"opencanvas-service/apperror"
	"opencanvas-service/feed"
	"opencanvas-service/model"
)

func TestFeedPageSendsLimitAndCursor(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/feed/social/anonymous-user" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"posts":[],"hasMore":false,"nextCursor":null}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	resp, err := c.FeedPage(context.Background(), feed.KindSocial, "abc", 7)
	if err != nil {
		t.Fatalf("FeedPage error: %v", err)
	}
	if resp.HasMore || resp.NextCursor != nil || resp.Posts == nil {
		t.Errorf("response = %+v", resp)
	}
	if got["limit"] != float64(7) || got["cursor"] != "abc" {
		t.Errorf("request body = %v", got)
	}

	if _, err := c.FeedPage(context.Background(), feed.KindSocial, "", 7); err != nil {
		t.Fatalf("FeedPage error: %v", err)
	}
	if v, ok := got["cursor"]; !ok || v != nil {
		t.Errorf("first page must send a null cursor, body = %v", got)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		body   string
		kind   apperror.Kind
		msg    string
	}{
		{http.StatusBadRequest, `{"success":false,"message":"Invalid cursor format"}`, apperror.KindValidation, "Invalid cursor format"},
		{http.StatusNotFound, `{"success":false,"message":"Post not found"}`, apperror.KindNotFound, "Post not found"},
		{http.StatusUnauthorized, `{"success":false,"message":"Access denied"}`, apperror.KindUnauthenticated, "Access denied"},
		{http.StatusForbidden, `{"success":false,"message":"Unauthorized to update this post"}`, apperror.KindForbidden, "Unauthorized to update this post"},
		{http.StatusServiceUnavailable, ``, apperror.KindTransient, "Service Unavailable"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := New(srv.URL, time.Second).SavePost(context.Background(), "tok", model.SavePostRequest{ID: "x"})
			if apperror.KindOf(err) != tt.kind {
				t.Fatalf("KindOf(%v) = %v, want %v", err, apperror.KindOf(err), tt.kind)
			}
			if apperror.MessageOf(err) != tt.msg {
				t.Errorf("message = %q, want %q", apperror.MessageOf(err), tt.msg)
			}
		})
	}
}

func TestNetworkFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, time.Second).NewPostID(context.Background(), "tok")
	if !apperror.Is(err, apperror.KindTransient) {
		t.Fatalf("error = %v, want transient", err)
	}
}

func TestAuthHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"newPostId":"65f000000000000000000042"}`))
	}))
	defer srv.Close()

	id, err := New(srv.URL, time.Second).NewPostID(context.Background(), "secret")
	if err != nil || id != "65f000000000000000000042" {
		t.Fatalf("NewPostID = %q, %v", id, err)
	}
}
