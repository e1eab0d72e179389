package handler

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"opencanvas-service/apperror"
	"opencanvas-service/feed"
	"opencanvas-service/metrics"
	"opencanvas-service/model"

	"github.com/gin-gonic/gin"
)

// AnonymousFeed serves one page of a ranked public feed. The feed kind is
// bound at route registration.
func (h *Handler) AnonymousFeed(kind feed.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req model.FeedRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			metrics.FeedRequestsRejected.WithLabelValues(string(kind), "body").Inc()
			h.badRequest(c, "Invalid request body")
			return
		}

		limit := h.DefaultLimit
		if limit <= 0 {
			limit = feed.DefaultLimit
		}
		if req.Limit != nil {
			limit = *req.Limit
		}
		cursor := ""
		if req.Cursor != nil {
			cursor = *req.Cursor
		}

		log.Printf("[INFO] %s feed requested with limit=%d, cursor=%t", kind, limit, cursor != "")

		page, err := h.Feed.Page(c.Request.Context(), kind, cursor, limit)
		if err != nil {
			if apperror.Is(err, apperror.KindValidation) {
				metrics.FeedRequestsRejected.WithLabelValues(string(kind), "invalid_request").Inc()
			}
			h.fail(c, err, "Failed to fetch feed")
			return
		}

		posts := make([]model.PublicPost, 0, len(page.Items))
		for i := range page.Items {
			posts = append(posts, page.Items[i].Public())
		}

		metrics.FeedPagesServed.WithLabelValues(string(kind), strconv.FormatBool(cursor == "")).Inc()
		metrics.FeedItemsServed.WithLabelValues(string(kind)).Add(float64(len(posts)))

		c.JSON(http.StatusOK, model.FeedResponse{
			Success:    true,
			Posts:      posts,
			HasMore:    page.HasMore,
			NextCursor: page.NextCursor,
		})
	}
}
