package handler

import (
	"context"
	"log"
	"net/http"

	"opencanvas-service/cache"
	"opencanvas-service/metrics"
	"opencanvas-service/middleware"
	"opencanvas-service/model"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var skipMessages = map[string]string{
	cache.ReasonRecent: "View already counted recently",
	cache.ReasonMax:    "Max views reached for this visitor",
}

// visitor identifies an anonymous reader by the client fingerprint header,
// falling back to the remote address.
func visitor(c *gin.Context) string {
	if v := c.GetHeader(VisitorHeader); v != "" {
		return v
	}
	return c.ClientIP()
}

// publicPost loads a post for an anonymous counter update. It writes the
// response itself and returns nil when the update must not happen.
func (h *Handler) publicPost(c *gin.Context) *model.Post {
	id, err := primitive.ObjectIDFromHex(c.Param("postId"))
	if err != nil {
		h.badRequest(c, "Invalid post ID")
		return nil
	}
	post, err := h.Posts.FindByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "Failed to load post")
		return nil
	}
	if !post.IsPublic {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Post is private"})
		return nil
	}
	return post
}

// UpdateViews counts a view subject to the per-visitor limits.
func (h *Handler) UpdateViews(c *gin.Context) {
	who := visitor(c)
	if who == "" {
		h.badRequest(c, "Could not identify visitor")
		return
	}

	post := h.publicPost(c)
	if post == nil {
		return
	}
	ctx := c.Request.Context()

	if h.Views != nil {
		ok, reason, err := h.Views.Allow(ctx, post.ID.Hex(), who)
		switch {
		case err != nil:
			log.Printf("[WARN] View limiter unavailable, counting view on %s: %v", post.ID.Hex(), err)
		case !ok:
			metrics.ViewsSkipped.WithLabelValues(reason).Inc()
			c.JSON(http.StatusOK, gin.H{
				"success": true,
				"message": skipMessages[reason],
				"counted": false,
			})
			return
		}
	}

	updated, err := h.Posts.Increment(ctx, post.ID, model.CounterViews, 1)
	if err != nil {
		h.fail(c, err, "Server error while updating views")
		return
	}
	metrics.EngagementRecorded.WithLabelValues(model.EventView).Inc()
	h.publish(ctx, post.ID, model.EventView)

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "View counted successfully",
		"counted":    true,
		"totalViews": updated.TotalViews,
	})
}

func (h *Handler) CompleteRead(c *gin.Context) {
	post := h.publicPost(c)
	if post == nil {
		return
	}
	ctx := c.Request.Context()

	updated, err := h.Posts.Increment(ctx, post.ID, model.CounterCompleteReads, 1)
	if err != nil {
		h.fail(c, err, "Failed to record read")
		return
	}
	metrics.EngagementRecorded.WithLabelValues(model.EventRead).Inc()
	h.publish(ctx, post.ID, model.EventRead)

	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"message":            "Read recorded",
		"totalCompleteReads": updated.TotalCompleteReads,
	})
}

func (h *Handler) SharePost(c *gin.Context) {
	post := h.publicPost(c)
	if post == nil {
		return
	}
	ctx := c.Request.Context()

	updated, err := h.Posts.Increment(ctx, post.ID, model.CounterShares, 1)
	if err != nil {
		h.fail(c, err, "Failed to record share")
		return
	}
	metrics.EngagementRecorded.WithLabelValues(model.EventShare).Inc()
	h.publish(ctx, post.ID, model.EventShare)

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     "Share recorded",
		"totalShares": updated.TotalShares,
	})
}

// LikePost toggles the caller's like on a post.
func (h *Handler) LikePost(c *gin.Context) {
	h.toggleReaction(c, reaction{
		toggle:  h.Users.ToggleLike,
		counter: model.CounterLikes,
		on:      model.EventLike,
		off:     model.EventUnlike,
		onMsg:   "liked",
		offMsg:  "removed like",
		total:   "totalLikes",
	})
}

// DislikePost toggles the caller's dislike on a post.
func (h *Handler) DislikePost(c *gin.Context) {
	h.toggleReaction(c, reaction{
		toggle:  h.Users.ToggleDislike,
		counter: model.CounterDislikes,
		on:      model.EventDislike,
		off:     model.EventUndislike,
		onMsg:   "disliked",
		offMsg:  "removed dislike",
		total:   "totalDislikes",
	})
}

type reaction struct {
	toggle  func(ctx context.Context, userID, postID primitive.ObjectID) (bool, error)
	counter model.Counter
	on      string
	off     string
	onMsg   string
	offMsg  string
	total   string
}

func (h *Handler) toggleReaction(c *gin.Context, r reaction) {
	id, ok := h.queryID(c, "postId", "Invalid post ID")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	callerID, _ := middleware.UserID(c)

	if _, err := h.Posts.FindByID(ctx, id); err != nil {
		h.fail(c, err, "Internal server error")
		return
	}

	added, err := r.toggle(ctx, callerID, id)
	if err != nil {
		h.fail(c, err, "Internal server error")
		return
	}

	delta, kind, message := int64(1), r.on, r.onMsg
	if !added {
		delta, kind, message = -1, r.off, r.offMsg
	}

	updated, err := h.Posts.Increment(ctx, id, r.counter, delta)
	if err != nil {
		h.fail(c, err, "Internal server error")
		return
	}
	metrics.EngagementRecorded.WithLabelValues(kind).Inc()
	h.publish(ctx, id, kind)

	total := updated.TotalLikes
	if r.counter == model.CounterDislikes {
		total = updated.TotalDislikes
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": message,
		"active":  added,
		r.total:   total,
	})
}
