package handler

import (
	"log"
	"net/http"

	"opencanvas-service/middleware"
	"opencanvas-service/model"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FollowUser toggles whether the caller follows followId.
func (h *Handler) FollowUser(c *gin.Context) {
	targetID, ok := h.queryID(c, "followId", "Invalid follow ID")
	if !ok {
		return
	}
	callerID, _ := middleware.UserID(c)

	following, err := h.Users.ToggleFollow(c.Request.Context(), callerID, targetID)
	if err != nil {
		h.fail(c, err, "Failed to update user data")
		return
	}

	message := "unfollowed"
	if following {
		message = "followed"
	}
	log.Printf("[INFO] User %s %s %s", callerID.Hex(), message, targetID.Hex())
	c.JSON(http.StatusOK, gin.H{"success": true, "message": message})
}

type userIDsRequest struct {
	UserIDs string `json:"userIds"`
}

// UsersByIDs returns public profile cards for a comma separated id list.
func (h *Handler) UsersByIDs(c *gin.Context) {
	var req userIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "No user IDs provided")
		return
	}

	ids := splitIDs(req.UserIDs)
	if len(ids) == 0 {
		h.badRequest(c, "No valid user IDs provided")
		return
	}

	users, err := h.Users.FindByIDs(c.Request.Context(), ids)
	if err != nil {
		h.fail(c, err, "Failed to fetch users")
		return
	}

	cards := make([]model.PublicUser, 0, len(users))
	for i := range users {
		cards = append(cards, users[i].Public())
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "users": cards})
}

// GetProfile returns the public profile behind a username.
func (h *Handler) GetProfile(c *gin.Context) {
	username := c.Param("user")
	if username == "" {
		h.badRequest(c, "Username is required")
		return
	}
	user, err := h.Users.FindByUsername(c.Request.Context(), username)
	if err != nil {
		h.fail(c, err, "Failed to retrieve user data")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

// GetAuthor returns the same public profile looked up by id.
func (h *Handler) GetAuthor(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		h.badRequest(c, "Invalid user ID")
		return
	}
	author, err := h.Users.FindByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "Failed to retrieve author data")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "author": author})
}
