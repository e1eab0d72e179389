package handler

import (
	"context"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"opencanvas-service/apperror"
	"opencanvas-service/middleware"
	"opencanvas-service/model"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	maxCollectionTags      = 5
	defaultCollectionLimit = 20
	maxCollectionLimit     = 50
	msgPrivateCollection   = "Access denied to private collection"
)

var collectionTitle = regexp.MustCompile(`^[a-zA-Z0-9 ]+$`)

// normalizeCollection trims and validates a create or update request in
// place.
func normalizeCollection(in *model.CollectionRequest, create bool) error {
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		in.Title = &title
	}
	switch {
	case in.Title == nil || *in.Title == "":
		if create {
			return apperror.Validation("Title is required")
		}
		if in.Title != nil {
			return apperror.Validation("Title cannot be empty")
		}
	case !collectionTitle.MatchString(*in.Title):
		return apperror.Validation("Title can only contain letters, numbers, and spaces")
	}

	if len(in.Tags) > maxCollectionTags {
		return apperror.Validation("Maximum %d tags are allowed", maxCollectionTags)
	}
	if in.Tags != nil {
		tags := make([]string, 0, len(in.Tags))
		for _, tag := range in.Tags {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
		in.Tags = tags
	}
	for _, field := range []*string{in.Description, in.ThumbnailURL} {
		if field != nil {
			*field = strings.TrimSpace(*field)
		}
	}
	return nil
}

func (h *Handler) CreateCollection(c *gin.Context) {
	var req model.CollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request body")
		return
	}
	if err := normalizeCollection(&req, true); err != nil {
		h.fail(c, err, "")
		return
	}

	ctx := c.Request.Context()
	author, ok := h.caller(c)
	if !ok {
		return
	}
	col, err := h.Collections.Create(ctx, author.ID, req)
	if err != nil {
		h.fail(c, err, "Failed to create collection")
		return
	}

	card := author.Card()
	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"message":    "Collection created successfully",
		"collection": col.View(&card, nil, false),
	})
}

// UserCollections lists a user's collections. Private ones are only
// listed for their owner.
func (h *Handler) UserCollections(c *gin.Context) {
	userID, err := primitive.ObjectIDFromHex(c.Param("user"))
	if err != nil {
		h.badRequest(c, "Invalid user ID")
		return
	}
	ctx := c.Request.Context()
	callerID, _ := middleware.UserID(c)

	cols, err := h.Collections.ListByAuthor(ctx, userID, userID == callerID)
	if err != nil {
		h.fail(c, err, "Failed to fetch collections")
		return
	}
	views, err := h.collectionViews(ctx, cols, callerID, false)
	if err != nil {
		h.fail(c, err, "Failed to fetch collections")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "collections": views})
}

// GetCollection is the shareable view of a public collection.
func (h *Handler) GetCollection(c *gin.Context) {
	h.showCollection(c, func(col *model.Collection, _ primitive.ObjectID) bool {
		return !col.IsPrivate
	})
}

// GetPrivateCollection shows any collection to its owner.
func (h *Handler) GetPrivateCollection(c *gin.Context) {
	h.showCollection(c, func(col *model.Collection, viewerID primitive.ObjectID) bool {
		return col.OwnedBy(viewerID)
	})
}

func (h *Handler) showCollection(c *gin.Context, allowed func(*model.Collection, primitive.ObjectID) bool) {
	id, ok := h.paramID(c, "collectionId", "Invalid collection ID")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	viewerID, _ := middleware.UserID(c)

	col, err := h.Collections.FindByID(ctx, id)
	if err != nil {
		h.fail(c, err, "Failed to fetch collection")
		return
	}
	if !allowed(col, viewerID) {
		h.fail(c, apperror.Forbidden(msgPrivateCollection), "")
		return
	}

	views, err := h.collectionViews(ctx, []model.Collection{*col}, viewerID, true)
	if err != nil {
		h.fail(c, err, "Failed to fetch collection")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "collection": views[0]})
}

// BrowseCollections pages through public collections, most upvoted first.
func (h *Handler) BrowseCollections(c *gin.Context) {
	q := model.CollectionQuery{Page: 1, Limit: defaultCollectionLimit, Search: strings.TrimSpace(c.Query("search"))}

	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			h.badRequest(c, "Invalid page parameter")
			return
		}
		q.Page = page
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxCollectionLimit {
			h.badRequest(c, "Invalid limit parameter. Limit must be between 1-50.")
			return
		}
		q.Limit = limit
	}
	for _, tag := range strings.Split(c.Query("tags"), ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			q.Tags = append(q.Tags, tag)
		}
	}

	ctx := c.Request.Context()
	cols, total, err := h.Collections.Browse(ctx, q)
	if err != nil {
		h.fail(c, err, "Failed to fetch collections")
		return
	}
	views, err := h.collectionViews(ctx, cols, primitive.NilObjectID, false)
	if err != nil {
		h.fail(c, err, "Failed to fetch collections")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"collections": views,
		"totalPages":  (total + int64(q.Limit) - 1) / int64(q.Limit),
		"currentPage": q.Page,
		"total":       total,
	})
}

func (h *Handler) UpdateCollection(c *gin.Context) {
	id, ok := h.paramID(c, "collectionId", "Invalid collection ID")
	if !ok {
		return
	}
	var req model.CollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request body")
		return
	}

	ctx := c.Request.Context()
	callerID, _ := middleware.UserID(c)
	if !h.ownedCollection(c, id, callerID, "Not authorized to update this collection") {
		return
	}
	if err := normalizeCollection(&req, false); err != nil {
		h.fail(c, err, "")
		return
	}

	col, err := h.Collections.Update(ctx, callerID, id, req)
	if err != nil {
		h.fail(c, err, "Failed to update collection")
		return
	}
	views, err := h.collectionViews(ctx, []model.Collection{*col}, callerID, false)
	if err != nil {
		h.fail(c, err, "Failed to update collection")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Collection updated successfully",
		"collection": views[0],
	})
}

func (h *Handler) AddToCollection(c *gin.Context) {
	postID, ok := h.paramID(c, "postId", "Invalid post ID")
	if !ok {
		return
	}
	id, ok := h.paramID(c, "collectionId", "Invalid collection ID")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	callerID, _ := middleware.UserID(c)
	if !h.ownedCollection(c, id, callerID, "Not authorized to modify this collection") {
		return
	}
	if _, err := h.visiblePost(ctx, postID, callerID); err != nil {
		h.fail(c, err, "Failed to add post to collection")
		return
	}

	added, err := h.Collections.AddPost(ctx, callerID, id, postID)
	if err != nil {
		h.fail(c, err, "Failed to add post to collection")
		return
	}
	if !added {
		h.badRequest(c, "Post already exists in this collection")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Post added to collection successfully"})
}

func (h *Handler) RemoveFromCollection(c *gin.Context) {
	postID, ok := h.paramID(c, "postId", "Invalid post ID")
	if !ok {
		return
	}
	id, ok := h.paramID(c, "collectionId", "Invalid collection ID")
	if !ok {
		return
	}

	callerID, _ := middleware.UserID(c)
	if !h.ownedCollection(c, id, callerID, "Not authorized to modify this collection") {
		return
	}

	removed, err := h.Collections.RemovePost(c.Request.Context(), callerID, id, postID)
	if err != nil {
		h.fail(c, err, "Failed to remove post from collection")
		return
	}
	if !removed {
		h.badRequest(c, "Post not found in this collection")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Post removed from collection successfully"})
}

type voteRequest struct {
	VoteType string `json:"voteType"`
}

func (h *Handler) VoteCollection(c *gin.Context) {
	id, ok := h.paramID(c, "collectionId", "Invalid collection ID")
	if !ok {
		return
	}
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil || (req.VoteType != "upvote" && req.VoteType != "downvote") {
		h.badRequest(c, "Invalid vote type. Use 'upvote' or 'downvote'")
		return
	}

	col, err := h.Collections.Vote(c.Request.Context(), id, req.VoteType == "upvote")
	if err != nil {
		h.fail(c, err, "Failed to vote on collection")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"message":        "Collection " + req.VoteType + "d successfully",
		"totalUpvotes":   col.TotalUpvotes,
		"totalDownvotes": col.TotalDownvotes,
	})
}

func (h *Handler) DeleteCollection(c *gin.Context) {
	id, ok := h.paramID(c, "collectionId", "Invalid collection ID")
	if !ok {
		return
	}
	callerID, _ := middleware.UserID(c)
	if !h.ownedCollection(c, id, callerID, "Not authorized to delete this collection") {
		return
	}

	if err := h.Collections.Delete(c.Request.Context(), callerID, id); err != nil {
		h.fail(c, err, "Failed to delete collection")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Collection deleted successfully"})
}

// ownedCollection loads a collection and checks the caller owns it,
// writing the error response itself otherwise.
func (h *Handler) ownedCollection(c *gin.Context, id, callerID primitive.ObjectID, denied string) bool {
	col, err := h.Collections.FindByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "Failed to load collection")
		return false
	}
	if !col.OwnedBy(callerID) {
		h.fail(c, apperror.Forbidden("%s", denied), "")
		return false
	}
	return true
}

// collectionViews resolves authors and the posts viewerID may see.
func (h *Handler) collectionViews(ctx context.Context, cols []model.Collection, viewerID primitive.ObjectID, full bool) ([]model.CollectionView, error) {
	var authorIDs, postIDs []primitive.ObjectID
	for _, col := range cols {
		authorIDs = append(authorIDs, col.AuthorID)
		postIDs = append(postIDs, col.Posts...)
	}

	cards, err := h.userCards(ctx, authorIDs)
	if err != nil {
		return nil, err
	}
	posts := map[primitive.ObjectID]*model.Post{}
	if len(postIDs) > 0 {
		found, err := h.Posts.FindByIDs(ctx, postIDs)
		if err != nil {
			return nil, err
		}
		for i := range found {
			if found[i].IsPublic || found[i].OwnedBy(viewerID) {
				posts[found[i].ID] = &found[i]
			}
		}
	}

	views := make([]model.CollectionView, 0, len(cols))
	for i := range cols {
		var author *model.UserCard
		if card, ok := cards[cols[i].AuthorID]; ok {
			author = &card
		}
		views = append(views, cols[i].View(author, posts, full))
	}
	return views, nil
}

// paramID reads an ObjectID path parameter, writing the error response
// itself when it is malformed.
func (h *Handler) paramID(c *gin.Context, name, invalid string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		h.badRequest(c, invalid)
		return primitive.NilObjectID, false
	}
	return id, true
}
