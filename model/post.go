package model

import (
	"time"

	"opencanvas-service/scoring"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post types
const (
	TypeArticle = "article"
	TypeStory   = "story"
	TypePoem    = "poem"
	TypeSocial  = "social"
	TypeImage   = "image"
)

// Author is the denormalized author card stored on each post.
type Author struct {
	Name           string `bson:"name" json:"name"`
	ProfilePicture string `bson:"profilePicture" json:"profilePicture"`
	Role           string `bson:"role,omitempty" json:"role,omitempty"`
}

// Post represents a published or draft piece of writing stored in MongoDB
type Post struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Title        string             `bson:"title" json:"title"`
	Content      string             `bson:"content" json:"content"`
	AuthorID     primitive.ObjectID `bson:"authorId" json:"authorId"`
	Author       Author             `bson:"author" json:"author"`
	Tags         []string           `bson:"tags" json:"tags"`
	Type         string             `bson:"type" json:"type"`
	ThumbnailURL string             `bson:"thumbnailUrl" json:"thumbnailUrl"`
	ReadTime     int                `bson:"readTime" json:"readTime"`
	IsPublic     bool               `bson:"isPublic" json:"isPublic"`
	IsFeatured   bool               `bson:"isFeatured" json:"isFeatured"`
	IsEdited     bool               `bson:"isEdited" json:"isEdited"`

	TotalViews         int64 `bson:"totalViews" json:"totalViews"`
	TotalCompleteReads int64 `bson:"totalCompleteReads" json:"totalCompleteReads"`
	TotalShares        int64 `bson:"totalShares" json:"totalShares"`
	TotalLikes         int64 `bson:"totalLikes" json:"totalLikes"`
	TotalDislikes      int64 `bson:"totalDislikes" json:"totalDislikes"`
	TotalComments      int64 `bson:"totalComments" json:"totalComments"`

	// Top-level comments, oldest first. Replies hang off their parent.
	Comments []primitive.ObjectID `bson:"comments,omitempty" json:"comments"`

	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
	ModifiedAt time.Time `bson:"modifiedAt" json:"modifiedAt"`

	// Cached ranking value, refreshed by the rescore worker.
	AnonymousEngagementScore float64   `bson:"anonymousEngagementScore" json:"anonymousEngagementScore"`
	ScoredAt                 time.Time `bson:"scoredAt,omitempty" json:"-"`
}

// Counters extracts the score inputs.
func (p *Post) Counters() scoring.Counters {
	return scoring.Counters{
		Views:         p.TotalViews,
		CompleteReads: p.TotalCompleteReads,
		Shares:        p.TotalShares,
		Likes:         p.TotalLikes,
		Dislikes:      p.TotalDislikes,
	}
}

// Score evaluates the engagement score at now from the post's own inputs.
func (p *Post) Score(now time.Time) float64 {
	return scoring.Compute(p.Counters(), p.CreatedAt, p.ModifiedAt, now)
}

// OwnedBy reports whether userID authored the post.
func (p *Post) OwnedBy(userID primitive.ObjectID) bool {
	return !userID.IsZero() && p.AuthorID == userID
}

// PublicPost is the feed projection of a post. Dislikes and complete reads
// are not exposed to anonymous readers.
type PublicPost struct {
	ID            primitive.ObjectID `json:"_id"`
	Title         string             `json:"title"`
	Content       string             `json:"content"`
	AuthorID      primitive.ObjectID `json:"authorId"`
	Author        Author             `json:"author"`
	Tags          []string           `json:"tags"`
	Type          string             `json:"type"`
	ThumbnailURL  string             `json:"thumbnailUrl"`
	ReadTime      int                `json:"readTime"`
	IsFeatured    bool               `json:"isFeatured"`
	TotalViews    int64              `json:"totalViews"`
	TotalLikes    int64              `json:"totalLikes"`
	TotalShares   int64              `json:"totalShares"`
	TotalComments int64              `json:"totalComments"`
	CreatedAt     time.Time          `json:"createdAt"`
	ModifiedAt    time.Time          `json:"modifiedAt"`
	Score         float64            `json:"anonymousEngagementScore"`
}

// Public returns the feed projection of p.
func (p *Post) Public() PublicPost {
	return PublicPost{
		ID:            p.ID,
		Title:         p.Title,
		Content:       p.Content,
		AuthorID:      p.AuthorID,
		Author:        p.Author,
		Tags:          p.Tags,
		Type:          p.Type,
		ThumbnailURL:  p.ThumbnailURL,
		ReadTime:      p.ReadTime,
		IsFeatured:    p.IsFeatured,
		TotalViews:    p.TotalViews,
		TotalLikes:    p.TotalLikes,
		TotalShares:   p.TotalShares,
		TotalComments: p.TotalComments,
		CreatedAt:     p.CreatedAt,
		ModifiedAt:    p.ModifiedAt,
		Score:         p.AnonymousEngagementScore,
	}
}

// SavePostRequest is the body of the save/update written post endpoint.
type SavePostRequest struct {
	ID           string   `json:"id" binding:"required"`
	Title        string   `json:"title" binding:"required"`
	Content      string   `json:"content" binding:"required"`
	Tags         []string `json:"tags"`
	IsPublic     *bool    `json:"isPublic"`
	ArtType      string   `json:"artType"`
	ThumbnailURL string   `json:"thumbnailUrl"`
}

// Counter names accepted by the store's increment operation.
type Counter string

const (
	CounterViews         Counter = "totalViews"
	CounterCompleteReads Counter = "totalCompleteReads"
	CounterShares        Counter = "totalShares"
	CounterLikes         Counter = "totalLikes"
	CounterDislikes      Counter = "totalDislikes"
	CounterComments      Counter = "totalComments"
)

// Valid reports whether c names an engagement counter.
func (c Counter) Valid() bool {
	switch c {
	case CounterViews, CounterCompleteReads, CounterShares, CounterLikes, CounterDislikes, CounterComments:
		return true
	}
	return false
}
