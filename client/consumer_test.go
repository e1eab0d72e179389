package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"opencanvas-service/feed"
	"opencanvas-service/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// pagedServer serves n posts using the offset as cursor. When repeat is
// set each page also repeats the last post of the previous page.
func pagedServer(t *testing.T, n int, repeat bool) *httptest.Server {
	t.Helper()
	ids := make([]primitive.ObjectID, n)
	for i := range ids {
		ids[i], _ = primitive.ObjectIDFromHex(fmt.Sprintf("65f0000000000000%08x", i+1))
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req model.FeedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		offset := 0
		if req.Cursor != nil {
			offset, _ = strconv.Atoi(*req.Cursor)
		}
		limit := *req.Limit

		from := offset
		if repeat && offset > 0 {
			from--
		}
		end := offset + limit
		if end > n {
			end = n
		}
		resp := model.FeedResponse{Success: true, Posts: []model.PublicPost{}}
		for _, id := range ids[from:end] {
			resp.Posts = append(resp.Posts, model.PublicPost{ID: id})
		}
		if end < n {
			next := strconv.Itoa(end)
			resp.HasMore = true
			resp.NextCursor = &next
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestConsumerWalksAndDedups(t *testing.T) {
	srv := pagedServer(t, 11, true)
	defer srv.Close()

	fc := NewFeedConsumer(New(srv.URL, time.Second), feed.KindSocial, 4)
	total := 0
	for i := 0; fc.HasMore(); i++ {
		if i > 10 {
			t.Fatalf("consumer did not stop")
		}
		added, err := fc.Next(context.Background())
		if err != nil {
			t.Fatalf("Next error: %v", err)
		}
		total += added
	}
	if total != 11 || len(fc.Items()) != 11 {
		t.Fatalf("added %d, items %d, want 11", total, len(fc.Items()))
	}

	if added, err := fc.Next(context.Background()); added != 0 || err != nil {
		t.Errorf("Next after end = %d, %v", added, err)
	}
}

func TestConsumerInFlightAndReset(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entered <- struct{}{}
		<-release
		id := primitive.NewObjectID()
		_ = json.NewEncoder(w).Encode(model.FeedResponse{
			Success: true,
			Posts:   []model.PublicPost{{ID: id}},
		})
	}))
	defer srv.Close()

	fc := NewFeedConsumer(New(srv.URL, 5*time.Second), feed.KindArticles, 2)

	errc := make(chan error, 1)
	go func() {
		_, err := fc.Next(context.Background())
		errc <- err
	}()
	<-entered

	if _, err := fc.Next(context.Background()); !errors.Is(err, ErrFetchInFlight) {
		t.Fatalf("overlapping Next error = %v, want ErrFetchInFlight", err)
	}

	fc.Reset()
	close(release)

	if err := <-errc; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("abandoned fetch error = %v, want ErrSuperseded", err)
	}
	if len(fc.Items()) != 0 {
		t.Fatalf("abandoned page was merged: %d items", len(fc.Items()))
	}

	go func() { <-entered }()
	if added, err := fc.Next(context.Background()); err != nil || added != 1 {
		t.Fatalf("Next after reset = %d, %v", added, err)
	}
}
