// Package handler implements the HTTP endpoints of the service.
package handler

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"opencanvas-service/events"
	"opencanvas-service/feed"
	"opencanvas-service/model"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PostStore is the post persistence the handlers need.
type PostStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*model.Post, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]model.Post, error)
	Save(ctx context.Context, author *model.User, in model.SavePostRequest) (*model.Post, bool, error)
	Delete(ctx context.Context, authorID, id primitive.ObjectID) error
	SetVisibility(ctx context.Context, authorID, id primitive.ObjectID, public bool) error
	SetFeatured(ctx context.Context, authorID, id primitive.ObjectID, featured bool) error
	Increment(ctx context.Context, id primitive.ObjectID, counter model.Counter, delta int64) (*model.Post, error)
	AttachComment(ctx context.Context, postID, commentID primitive.ObjectID, listed bool) (*model.Post, error)
	DetachComment(ctx context.Context, postID, commentID primitive.ObjectID, unlist bool) (*model.Post, error)
}

// UserStore is the user persistence the handlers need.
type UserStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]model.User, error)
	AddPost(ctx context.Context, userID, postID primitive.ObjectID) error
	RemovePost(ctx context.Context, userID, postID primitive.ObjectID) error
	ToggleLike(ctx context.Context, userID, postID primitive.ObjectID) (bool, error)
	ToggleDislike(ctx context.Context, userID, postID primitive.ObjectID) (bool, error)
	ToggleFollow(ctx context.Context, userID, targetID primitive.ObjectID) (bool, error)
}

// CommentStore is the comment persistence the handlers need.
type CommentStore interface {
	Create(ctx context.Context, c *model.Comment) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*model.Comment, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]model.Comment, error)
	Edit(ctx context.Context, authorID, id primitive.ObjectID, content string) (*model.Comment, error)
	AddReply(ctx context.Context, parentID, replyID primitive.ObjectID) error
	Delete(ctx context.Context, authorID, id primitive.ObjectID) (*model.Comment, bool, error)
}

// CollectionStore is the collection persistence the handlers need.
type CollectionStore interface {
	Create(ctx context.Context, authorID primitive.ObjectID, in model.CollectionRequest) (*model.Collection, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*model.Collection, error)
	ListByAuthor(ctx context.Context, authorID primitive.ObjectID, includePrivate bool) ([]model.Collection, error)
	Browse(ctx context.Context, q model.CollectionQuery) ([]model.Collection, int64, error)
	Update(ctx context.Context, authorID, id primitive.ObjectID, in model.CollectionRequest) (*model.Collection, error)
	AddPost(ctx context.Context, authorID, id, postID primitive.ObjectID) (bool, error)
	RemovePost(ctx context.Context, authorID, id, postID primitive.ObjectID) (bool, error)
	Vote(ctx context.Context, id primitive.ObjectID, up bool) (*model.Collection, error)
	Delete(ctx context.Context, authorID, id primitive.ObjectID) error
}

// ViewGate decides whether a visitor's view is counted.
type ViewGate interface {
	Allow(ctx context.Context, postID, visitor string) (bool, string, error)
}

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

// Handler carries the dependencies of every endpoint.
type Handler struct {
	Service      string
	Feed         *feed.Service
	Posts        PostStore
	Users        UserStore
	Comments     CommentStore
	Collections  CollectionStore
	Views        ViewGate
	Events       events.Publisher
	DefaultLimit int
	Development  bool
	Checks       map[string]Check
}

// VisitorHeader carries the client's anonymous fingerprint.
const VisitorHeader = "X-Visitor-Id"

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": h.Service})
}

// Ready runs every dependency check and reports 503 if any fails.
func (h *Handler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := gin.H{}
	ready := true
	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			log.Printf("[WARN] Readiness check %s failed: %v", name, err)
			status[name] = "unavailable"
			ready = false
			continue
		}
		status[name] = "ok"
	}

	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"ready": ready, "service": h.Service, "checks": status})
}

// publish emits an engagement event. Failures are logged; the score is
// still refreshed by the next scheduled rescore.
func (h *Handler) publish(ctx context.Context, postID primitive.ObjectID, kind string) {
	if h.Events == nil {
		return
	}
	if err := h.Events.Publish(ctx, model.NewEngagementEvent(postID.Hex(), kind)); err != nil {
		log.Printf("[WARN] Failed to publish %s event for post %s: %v", kind, postID.Hex(), err)
	}
}

// splitIDs parses a comma separated id list, dropping invalid entries.
func splitIDs(raw string) []primitive.ObjectID {
	var ids []primitive.ObjectID
	for _, part := range strings.Split(raw, ",") {
		id, err := primitive.ObjectIDFromHex(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
