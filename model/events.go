package model

import (
	"time"

	"github.com/google/uuid"
)

// Engagement event kinds, also the last token of the NATS subject.
const (
	EventView      = "view"
	EventRead      = "read"
	EventShare     = "share"
	EventLike      = "like"
	EventUnlike    = "unlike"
	EventDislike   = "dislike"
	EventUndislike = "undislike"
	EventComment   = "comment"
	EventUncomment = "uncomment"
	EventCreate    = "create"
	EventEdit      = "edit"
)

// EngagementEvent is published whenever an input of a post's score changes.
type EngagementEvent struct {
	ID        uuid.UUID `json:"id"`
	PostID    string    `json:"postId"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// NewEngagementEvent stamps an event with a fresh id and the current time.
func NewEngagementEvent(postID, kind string) EngagementEvent {
	return EngagementEvent{
		ID:        uuid.New(),
		PostID:    postID,
		Kind:      kind,
		Timestamp: time.Now().UTC(),
		Source:    "opencanvas-service",
	}
}
