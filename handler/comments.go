package handler

import (
	"context"
	"log"
	"net/http"
	"strings"

	"opencanvas-service/apperror"
	"opencanvas-service/metrics"
	"opencanvas-service/middleware"
	"opencanvas-service/model"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	msgCommentMissing = "comment information not found"
	msgCommentEmpty   = "Comment content is required"
)

// NewComment adds a top-level comment to a post.
func (h *Handler) NewComment(c *gin.Context) {
	var req model.NewCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PostID == "" || req.Content == "" {
		h.badRequest(c, msgCommentMissing)
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		h.badRequest(c, msgCommentEmpty)
		return
	}
	postID, err := primitive.ObjectIDFromHex(req.PostID)
	if err != nil {
		h.badRequest(c, "Invalid post ID")
		return
	}

	ctx := c.Request.Context()
	author, ok := h.caller(c)
	if !ok {
		return
	}
	post, err := h.visiblePost(ctx, postID, author.ID)
	if err != nil {
		h.fail(c, err, "Server error")
		return
	}

	comment := &model.Comment{Content: content, AuthorID: author.ID, PostID: post.ID}
	if err := h.Comments.Create(ctx, comment); err != nil {
		h.fail(c, err, "Server error")
		return
	}
	updated, err := h.Posts.AttachComment(ctx, post.ID, comment.ID, true)
	if err != nil {
		h.fail(c, err, "Server error")
		return
	}
	h.recordComment(ctx, post.ID, model.EventComment)

	card := author.Card()
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"message":       "comment added.",
		"comment":       model.CommentView{Comment: *comment, Author: &card},
		"totalComments": updated.TotalComments,
	})
}

// ReplyToComment adds a reply under an existing comment of the same post.
func (h *Handler) ReplyToComment(c *gin.Context) {
	var req model.ReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PostID == "" || req.ParentID == "" || req.Content == "" {
		h.badRequest(c, msgCommentMissing)
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		h.badRequest(c, msgCommentEmpty)
		return
	}
	postID, err := primitive.ObjectIDFromHex(req.PostID)
	if err != nil {
		h.badRequest(c, "Invalid post ID")
		return
	}
	parentID, err := primitive.ObjectIDFromHex(req.ParentID)
	if err != nil {
		h.badRequest(c, "Invalid parent comment ID")
		return
	}

	ctx := c.Request.Context()
	author, ok := h.caller(c)
	if !ok {
		return
	}
	parent, err := h.Comments.FindByID(ctx, parentID)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			err = apperror.NotFound("parent comment not found")
		}
		h.fail(c, err, "Server error")
		return
	}
	if parent.PostID != postID {
		h.badRequest(c, "Parent comment belongs to another post")
		return
	}
	if _, err := h.visiblePost(ctx, postID, author.ID); err != nil {
		h.fail(c, err, "Server error")
		return
	}

	reply := &model.Comment{Content: content, AuthorID: author.ID, PostID: postID, ParentID: &parent.ID}
	if err := h.Comments.Create(ctx, reply); err != nil {
		h.fail(c, err, "Server error")
		return
	}
	if err := h.Comments.AddReply(ctx, parent.ID, reply.ID); err != nil {
		h.fail(c, err, "Server error")
		return
	}
	updated, err := h.Posts.AttachComment(ctx, postID, reply.ID, false)
	if err != nil {
		h.fail(c, err, "Server error")
		return
	}
	h.recordComment(ctx, postID, model.EventComment)

	card := author.Card()
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"message":       "reply added.",
		"comment":       model.CommentView{Comment: *reply, Author: &card},
		"totalComments": updated.TotalComments,
	})
}

func (h *Handler) EditComment(c *gin.Context) {
	var req model.EditCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CommentID == "" || req.Content == "" {
		h.badRequest(c, msgCommentMissing)
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		h.badRequest(c, msgCommentEmpty)
		return
	}
	id, err := primitive.ObjectIDFromHex(req.CommentID)
	if err != nil {
		h.badRequest(c, "Invalid comment ID")
		return
	}

	author, ok := h.caller(c)
	if !ok {
		return
	}
	comment, err := h.Comments.Edit(c.Request.Context(), author.ID, id, content)
	if err != nil {
		h.fail(c, err, "Server error")
		return
	}

	card := author.Card()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "comment updated.",
		"comment": model.CommentView{Comment: *comment, Author: &card},
	})
}

// DeleteComment removes the caller's comment and takes it off the post's
// count.
func (h *Handler) DeleteComment(c *gin.Context) {
	raw := c.Query("commentId")
	if raw == "" {
		h.badRequest(c, "No comment ID provided")
		return
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		h.badRequest(c, "Invalid comment ID")
		return
	}

	ctx := c.Request.Context()
	callerID, _ := middleware.UserID(c)
	comment, removed, err := h.Comments.Delete(ctx, callerID, id)
	if err != nil {
		h.fail(c, err, "Server error")
		return
	}

	body := gin.H{"success": true, "message": "comment deleted."}
	updated, err := h.Posts.DetachComment(ctx, comment.PostID, comment.ID, removed && !comment.IsReply())
	if err != nil {
		log.Printf("[WARN] Comment %s deleted but post %s not updated: %v", id.Hex(), comment.PostID.Hex(), err)
	} else {
		body["totalComments"] = updated.TotalComments
		h.recordComment(ctx, comment.PostID, model.EventUncomment)
	}
	c.JSON(http.StatusOK, body)
}

// GetComment returns one comment with its replies.
func (h *Handler) GetComment(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("commentId"))
	if err != nil {
		h.badRequest(c, "Invalid comment ID")
		return
	}

	ctx := c.Request.Context()
	callerID, _ := middleware.UserID(c)
	comment, err := h.Comments.FindByID(ctx, id)
	if err != nil {
		h.fail(c, err, "Failed to get comment")
		return
	}
	if _, err := h.visiblePost(ctx, comment.PostID, callerID); err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			err = apperror.NotFound("comment not found")
		}
		h.fail(c, err, "Failed to get comment")
		return
	}
	replies, err := h.Comments.FindByIDs(ctx, comment.Replies)
	if err != nil {
		h.fail(c, err, "Failed to get comment")
		return
	}

	views, err := h.commentViews(ctx, append([]model.Comment{*comment}, replies...))
	if err != nil {
		h.fail(c, err, "Failed to get comment")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "comment": views[0], "replies": views[1:]})
}

type commentIDsRequest struct {
	CommentIDs string `json:"commentIds"`
}

// CommentsByIDs returns the requested comments newest first, leaving out
// those on posts the caller cannot see.
func (h *Handler) CommentsByIDs(c *gin.Context) {
	var req commentIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CommentIDs == "" {
		h.badRequest(c, "No comment IDs provided")
		return
	}
	ids := splitIDs(req.CommentIDs)
	if len(ids) == 0 {
		h.badRequest(c, "No valid comment IDs provided")
		return
	}

	ctx := c.Request.Context()
	callerID, _ := middleware.UserID(c)
	comments, err := h.Comments.FindByIDs(ctx, ids)
	if err != nil {
		h.fail(c, err, "Failed to get comments")
		return
	}

	visible, err := h.visiblePosts(ctx, comments, callerID)
	if err != nil {
		h.fail(c, err, "Failed to get comments")
		return
	}
	kept := comments[:0]
	for _, cm := range comments {
		if visible[cm.PostID] {
			kept = append(kept, cm)
		}
	}

	views, err := h.commentViews(ctx, kept)
	if err != nil {
		h.fail(c, err, "Failed to get comments")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "comments": views})
}

// caller loads the authenticated user, writing the error response itself
// when that fails.
func (h *Handler) caller(c *gin.Context) (*model.User, bool) {
	callerID, _ := middleware.UserID(c)
	u, err := h.Users.FindByID(c.Request.Context(), callerID)
	if err != nil {
		h.fail(c, err, "Server error")
		return nil, false
	}
	return u, true
}

// visiblePost loads a post the viewer may see. Other authors' private
// posts are reported as missing.
func (h *Handler) visiblePost(ctx context.Context, id, viewerID primitive.ObjectID) (*model.Post, error) {
	post, err := h.Posts.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !post.IsPublic && !post.OwnedBy(viewerID) {
		return nil, apperror.NotFound("Post not found")
	}
	return post, nil
}

func (h *Handler) visiblePosts(ctx context.Context, comments []model.Comment, viewerID primitive.ObjectID) (map[primitive.ObjectID]bool, error) {
	seen := map[primitive.ObjectID]bool{}
	var ids []primitive.ObjectID
	for _, cm := range comments {
		if !seen[cm.PostID] {
			seen[cm.PostID] = true
			ids = append(ids, cm.PostID)
		}
	}
	posts, err := h.Posts.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	visible := make(map[primitive.ObjectID]bool, len(posts))
	for i := range posts {
		if posts[i].IsPublic || posts[i].OwnedBy(viewerID) {
			visible[posts[i].ID] = true
		}
	}
	return visible, nil
}

// commentViews attaches author cards. Deleted comments get none.
func (h *Handler) commentViews(ctx context.Context, comments []model.Comment) ([]model.CommentView, error) {
	var ids []primitive.ObjectID
	for _, cm := range comments {
		if !cm.Deleted {
			ids = append(ids, cm.AuthorID)
		}
	}
	cards, err := h.userCards(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]model.CommentView, 0, len(comments))
	for _, cm := range comments {
		v := model.CommentView{Comment: cm}
		if card, ok := cards[cm.AuthorID]; ok && !cm.Deleted {
			v.Author = &card
		}
		views = append(views, v)
	}
	return views, nil
}

func (h *Handler) userCards(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]model.UserCard, error) {
	cards := map[primitive.ObjectID]model.UserCard{}
	if len(ids) == 0 {
		return cards, nil
	}
	users, err := h.Users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range users {
		cards[users[i].ID] = users[i].Card()
	}
	return cards, nil
}

func (h *Handler) recordComment(ctx context.Context, postID primitive.ObjectID, kind string) {
	metrics.EngagementRecorded.WithLabelValues(kind).Inc()
	h.publish(ctx, postID, kind)
}
