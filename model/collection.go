package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Collection is a named, ordered list of posts curated by one user.
type Collection struct {
	ID             primitive.ObjectID   `bson:"_id,omitempty" json:"_id"`
	Title          string               `bson:"title" json:"title"`
	Description    string               `bson:"description" json:"description"`
	ThumbnailURL   string               `bson:"thumbnailUrl" json:"thumbnailUrl"`
	AuthorID       primitive.ObjectID   `bson:"authorId" json:"authorId"`
	Tags           []string             `bson:"tags" json:"tags"`
	Posts          []primitive.ObjectID `bson:"posts" json:"posts"`
	IsPrivate      bool                 `bson:"isPrivate" json:"isPrivate"`
	TotalUpvotes   int64                `bson:"totalUpvotes" json:"totalUpvotes"`
	TotalDownvotes int64                `bson:"totalDownvotes" json:"totalDownvotes"`
	CreatedAt      time.Time            `bson:"createdAt" json:"createdAt"`
	ModifiedAt     time.Time            `bson:"modifiedAt" json:"modifiedAt"`
}

func (c *Collection) OwnedBy(userID primitive.ObjectID) bool {
	return !userID.IsZero() && c.AuthorID == userID
}

func (c *Collection) Contains(postID primitive.ObjectID) bool {
	for _, id := range c.Posts {
		if id == postID {
			return true
		}
	}
	return false
}

// CollectionRequest creates or updates a collection. On update a nil field
// is left as it is.
type CollectionRequest struct {
	Title        *string  `json:"title"`
	Description  *string  `json:"description"`
	ThumbnailURL *string  `json:"thumbnailUrl"`
	Tags         []string `json:"tags"`
	IsPrivate    *bool    `json:"isPrivate"`
}

// CollectionQuery filters the public collection listing.
type CollectionQuery struct {
	Page   int
	Limit  int
	Tags   []string
	Search string
}

// CollectionPost is the post summary shown inside a collection. Content,
// author and tags are only filled when a single collection is opened.
type CollectionPost struct {
	ID           primitive.ObjectID  `json:"_id"`
	Title        string              `json:"title"`
	ThumbnailURL string              `json:"thumbnailUrl"`
	CreatedAt    time.Time           `json:"createdAt"`
	Content      string              `json:"content,omitempty"`
	AuthorID     *primitive.ObjectID `json:"authorId,omitempty"`
	Tags         []string            `json:"tags,omitempty"`
}

// CollectionView is a collection with its author and posts resolved.
type CollectionView struct {
	ID             primitive.ObjectID `json:"_id"`
	Title          string             `json:"title"`
	Description    string             `json:"description"`
	ThumbnailURL   string             `json:"thumbnailUrl"`
	Author         *UserCard          `json:"author"`
	Tags           []string           `json:"tags"`
	Posts          []CollectionPost   `json:"posts"`
	IsPrivate      bool               `json:"isPrivate"`
	TotalUpvotes   int64              `json:"totalUpvotes"`
	TotalDownvotes int64              `json:"totalDownvotes"`
	CreatedAt      time.Time          `json:"createdAt"`
	ModifiedAt     time.Time          `json:"modifiedAt"`
}

// View resolves c against its author and the visible posts it lists.
// Posts missing from posts are skipped.
func (c *Collection) View(author *UserCard, posts map[primitive.ObjectID]*Post, full bool) CollectionView {
	v := CollectionView{
		ID:             c.ID,
		Title:          c.Title,
		Description:    c.Description,
		ThumbnailURL:   c.ThumbnailURL,
		Author:         author,
		Tags:           c.Tags,
		Posts:          []CollectionPost{},
		IsPrivate:      c.IsPrivate,
		TotalUpvotes:   c.TotalUpvotes,
		TotalDownvotes: c.TotalDownvotes,
		CreatedAt:      c.CreatedAt,
		ModifiedAt:     c.ModifiedAt,
	}
	for _, id := range c.Posts {
		p, ok := posts[id]
		if !ok {
			continue
		}
		item := CollectionPost{
			ID:           p.ID,
			Title:        p.Title,
			ThumbnailURL: p.ThumbnailURL,
			CreatedAt:    p.CreatedAt,
		}
		if full {
			authorID := p.AuthorID
			item.Content = p.Content
			item.AuthorID = &authorID
			item.Tags = p.Tags
		}
		v.Posts = append(v.Posts, item)
	}
	return v
}
