package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"opencanvas-service/apperror"
	"opencanvas-service/metrics"
	"opencanvas-service/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CommentStore reads and writes the comments collection.
type CommentStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewCommentStore(db *mongo.Database) *CommentStore {
	return &CommentStore{coll: db.Collection(CommentsCollection), now: time.Now}
}

// Create stores c, assigning its id and timestamps.
func (s *CommentStore) Create(ctx context.Context, c *model.Comment) error {
	now := s.now().UTC()
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	c.CreatedAt, c.ModifiedAt = now, now
	if c.Replies == nil {
		c.Replies = []primitive.ObjectID{}
	}

	start := time.Now()
	_, err := s.coll.InsertOne(ctx, c)
	metrics.ObserveMongo("insert_one", CommentsCollection, start, err)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *CommentStore) FindByID(ctx context.Context, id primitive.ObjectID) (*model.Comment, error) {
	start := time.Now()
	var c model.Comment
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	metrics.ObserveMongo("find_one", CommentsCollection, start, err)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperror.NotFound("comment not found")
	}
	if err != nil {
		return nil, fmt.Errorf("find comment %s: %w", id.Hex(), err)
	}
	return &c, nil
}

// FindByIDs returns the comments that exist among ids, newest first.
func (s *CommentStore) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]model.Comment, error) {
	comments := []model.Comment{}
	if len(ids) == 0 {
		return comments, nil
	}

	start := time.Now()
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	metrics.ObserveMongo("find_many", CommentsCollection, start, err)
	if err != nil {
		return nil, fmt.Errorf("find comments by ids: %w", err)
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, &comments); err != nil {
		return nil, fmt.Errorf("decode comments: %w", err)
	}
	return comments, nil
}

// Edit replaces the text of a comment written by authorID.
func (s *CommentStore) Edit(ctx context.Context, authorID, id primitive.ObjectID, content string) (*model.Comment, error) {
	c, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.OwnedBy(authorID) {
		return nil, apperror.Forbidden("unauthorised to edit comment")
	}

	c.Content = content
	c.IsEdited = true
	c.ModifiedAt = s.now().UTC()

	start := time.Now()
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id, "authorId": authorID, "deleted": false},
		bson.M{"$set": bson.M{"content": c.Content, "isEdited": true, "modifiedAt": c.ModifiedAt}},
	)
	metrics.ObserveMongo("update_one", CommentsCollection, start, err)
	if err != nil {
		return nil, fmt.Errorf("edit comment %s: %w", id.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return nil, apperror.NotFound("comment not found")
	}
	return c, nil
}

// AddReply links replyID under parentID.
func (s *CommentStore) AddReply(ctx context.Context, parentID, replyID primitive.ObjectID) error {
	start := time.Now()
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": parentID}, bson.M{"$addToSet": bson.M{"replies": replyID}})
	metrics.ObserveMongo("update_one", CommentsCollection, start, err)
	if err != nil {
		return fmt.Errorf("add reply to %s: %w", parentID.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("parent comment not found")
	}
	return nil
}

// Delete removes a comment written by authorID. A comment with replies is
// blanked instead so the thread stays intact; removed reports which
// happened. The deleted comment is returned either way.
func (s *CommentStore) Delete(ctx context.Context, authorID, id primitive.ObjectID) (_ *model.Comment, removed bool, err error) {
	c, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if !c.OwnedBy(authorID) {
		return nil, false, apperror.Forbidden("unauthorised to delete comment")
	}
	defer func(start time.Time) {
		metrics.ObserveMongo("delete_comment", CommentsCollection, start, err)
	}(time.Now())

	if len(c.Replies) > 0 {
		_, err = s.coll.UpdateOne(ctx,
			bson.M{"_id": id, "authorId": authorID},
			bson.M{"$set": bson.M{
				"content":    model.DeletedCommentContent,
				"authorId":   primitive.NilObjectID,
				"deleted":    true,
				"modifiedAt": s.now().UTC(),
			}},
		)
		if err != nil {
			return nil, false, fmt.Errorf("blank comment %s: %w", id.Hex(), err)
		}
		return c, false, nil
	}

	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id, "authorId": authorID})
	if err != nil {
		return nil, false, fmt.Errorf("delete comment %s: %w", id.Hex(), err)
	}
	if res.DeletedCount == 0 {
		return nil, false, apperror.NotFound("comment not found")
	}
	if c.IsReply() {
		_, err = s.coll.UpdateOne(ctx, bson.M{"_id": *c.ParentID}, bson.M{"$pull": bson.M{"replies": id}})
		if err != nil {
			return nil, false, fmt.Errorf("unlink reply %s: %w", id.Hex(), err)
		}
	}
	return c, true, nil
}
