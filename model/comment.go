package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DeletedCommentContent replaces the text of a deleted comment that still
// has replies.
const DeletedCommentContent = "deleted"

// Comment is a comment on a post or a reply to another comment.
type Comment struct {
	ID         primitive.ObjectID   `bson:"_id,omitempty" json:"_id"`
	Content    string               `bson:"content" json:"content"`
	AuthorID   primitive.ObjectID   `bson:"authorId" json:"authorId"`
	PostID     primitive.ObjectID   `bson:"postId" json:"postId"`
	ParentID   *primitive.ObjectID  `bson:"parentId,omitempty" json:"parentId,omitempty"`
	Replies    []primitive.ObjectID `bson:"replies" json:"replies"`
	IsEdited   bool                 `bson:"isEdited" json:"isEdited"`
	Deleted    bool                 `bson:"deleted" json:"deleted"`
	CreatedAt  time.Time            `bson:"createdAt" json:"createdAt"`
	ModifiedAt time.Time            `bson:"modifiedAt" json:"modifiedAt"`
}

func (c *Comment) IsReply() bool { return c.ParentID != nil }

// OwnedBy reports whether userID wrote the comment. Deleted comments have
// no owner.
func (c *Comment) OwnedBy(userID primitive.ObjectID) bool {
	return !userID.IsZero() && !c.Deleted && c.AuthorID == userID
}

// CommentView is a comment with its author's card, as returned to clients.
// Author is nil for deleted comments.
type CommentView struct {
	Comment
	Author *UserCard `json:"author"`
}

type NewCommentRequest struct {
	PostID  string `json:"postId"`
	Content string `json:"content"`
}

type ReplyRequest struct {
	PostID   string `json:"postId"`
	ParentID string `json:"parentId"`
	Content  string `json:"content"`
}

type EditCommentRequest struct {
	CommentID string `json:"commentId"`
	Content   string `json:"content"`
}
