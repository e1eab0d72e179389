package handler

import (
	"log"
	"net/http"

	"opencanvas-service/apperror"
	"opencanvas-service/middleware"
	"opencanvas-service/model"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NewPostID hands out an id the editor uses for its first save.
func (h *Handler) NewPostID(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"newPostId": primitive.NewObjectID().Hex(),
	})
}

// SavePost creates or updates a written post.
func (h *Handler) SavePost(c *gin.Context) {
	ctx := c.Request.Context()
	callerID, _ := middleware.UserID(c)

	var req model.SavePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Post id, title and content are required")
		return
	}

	author, err := h.Users.FindByID(ctx, callerID)
	if err != nil {
		h.fail(c, err, "Failed to upload post")
		return
	}

	post, created, err := h.Posts.Save(ctx, author, req)
	if err != nil {
		h.fail(c, err, "Failed to upload post")
		return
	}

	if err := h.Users.AddPost(ctx, author.ID, post.ID); err != nil {
		h.fail(c, err, "Failed to upload post")
		return
	}

	kind := model.EventEdit
	if created {
		kind = model.EventCreate
	}
	h.publish(ctx, post.ID, kind)

	log.Printf("[INFO] Post %s saved by %s (created=%t)", post.ID.Hex(), author.ID.Hex(), created)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "posted successfully",
		"postId":  post.ID.Hex(),
	})
}

// GetPost returns a full post. Private posts are only visible to their
// author.
func (h *Handler) GetPost(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("postId"))
	if err != nil {
		h.badRequest(c, "Invalid post ID")
		return
	}

	post, err := h.Posts.FindByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "Failed to get post")
		return
	}

	callerID, _ := middleware.UserID(c)
	if !post.IsPublic && !post.OwnedBy(callerID) {
		h.fail(c, apperror.NotFound("Post not found"), "")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "post": post})
}

type postIDsRequest struct {
	PostIDs string `json:"postIds"`
}

// PostsByIDs returns the requested posts newest first. Other authors'
// private posts are left out.
func (h *Handler) PostsByIDs(c *gin.Context) {
	var req postIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "No post IDs provided")
		return
	}

	ids := splitIDs(req.PostIDs)
	if len(ids) == 0 {
		h.badRequest(c, "No valid post IDs provided")
		return
	}

	posts, err := h.Posts.FindByIDs(c.Request.Context(), ids)
	if err != nil {
		h.fail(c, err, "Failed to fetch posts")
		return
	}

	callerID, _ := middleware.UserID(c)
	visible := make([]model.Post, 0, len(posts))
	for _, p := range posts {
		if p.IsPublic || p.OwnedBy(callerID) {
			visible = append(visible, p)
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "posts": visible})
}

type visibilityRequest struct {
	IsPublic *bool `json:"isPublic"`
}

type featuredRequest struct {
	IsFeatured *bool `json:"isFeatured"`
}

func (h *Handler) ChangeVisibility(c *gin.Context) {
	id, ok := h.queryID(c, "postId", "Invalid post ID")
	if !ok {
		return
	}
	var req visibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsPublic == nil {
		h.badRequest(c, "isPublic must be a boolean")
		return
	}

	callerID, _ := middleware.UserID(c)
	if err := h.Posts.SetVisibility(c.Request.Context(), callerID, id, *req.IsPublic); err != nil {
		h.fail(c, err, "Failed to change post visibility")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "Post visibility updated",
		"isPublic": *req.IsPublic,
	})
}

func (h *Handler) ChangeFeatured(c *gin.Context) {
	id, ok := h.queryID(c, "postId", "Invalid post ID")
	if !ok {
		return
	}
	var req featuredRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsFeatured == nil {
		h.badRequest(c, "isFeatured must be a boolean")
		return
	}

	callerID, _ := middleware.UserID(c)
	if err := h.Posts.SetFeatured(c.Request.Context(), callerID, id, *req.IsFeatured); err != nil {
		h.fail(c, err, "Failed to change featured flag")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Post featured flag updated",
		"isFeatured": *req.IsFeatured,
	})
}

func (h *Handler) DeletePost(c *gin.Context) {
	id, ok := h.queryID(c, "postId", "Invalid post ID")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	callerID, _ := middleware.UserID(c)

	if err := h.Posts.Delete(ctx, callerID, id); err != nil {
		h.fail(c, err, "Failed to delete post")
		return
	}
	if err := h.Users.RemovePost(ctx, callerID, id); err != nil {
		log.Printf("[WARN] Post %s deleted but not unlinked from %s: %v", id.Hex(), callerID.Hex(), err)
	}

	log.Printf("[INFO] Post %s deleted by %s", id.Hex(), callerID.Hex())
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Post deleted successfully"})
}

// queryID reads an ObjectID from the query string, writing the error
// response itself when the value is missing or malformed.
func (h *Handler) queryID(c *gin.Context, name, invalid string) (primitive.ObjectID, bool) {
	raw := c.Query(name)
	if raw == "" {
		h.fail(c, apperror.NotFound("%s not found", name), "")
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		h.badRequest(c, invalid)
		return primitive.NilObjectID, false
	}
	return id, true
}
