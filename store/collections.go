package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"opencanvas-service/apperror"
	"opencanvas-service/metrics"
	"opencanvas-service/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionStore reads and writes the collections collection.
type CollectionStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewCollectionStore(db *mongo.Database) *CollectionStore {
	return &CollectionStore{coll: db.Collection(CollectionsCollection), now: time.Now}
}

// Create stores a collection for authorID. in must already be validated.
func (s *CollectionStore) Create(ctx context.Context, authorID primitive.ObjectID, in model.CollectionRequest) (*model.Collection, error) {
	now := s.now().UTC()
	c := &model.Collection{
		ID:         primitive.NewObjectID(),
		AuthorID:   authorID,
		Tags:       []string{},
		Posts:      []primitive.ObjectID{},
		CreatedAt:  now,
		ModifiedAt: now,
	}
	applyCollection(c, in)

	start := time.Now()
	_, err := s.coll.InsertOne(ctx, c)
	metrics.ObserveMongo("insert_one", CollectionsCollection, start, err)
	if err != nil {
		return nil, fmt.Errorf("insert collection: %w", err)
	}
	return c, nil
}

func (s *CollectionStore) FindByID(ctx context.Context, id primitive.ObjectID) (*model.Collection, error) {
	start := time.Now()
	var c model.Collection
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	metrics.ObserveMongo("find_one", CollectionsCollection, start, err)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperror.NotFound("Collection not found")
	}
	if err != nil {
		return nil, fmt.Errorf("find collection %s: %w", id.Hex(), err)
	}
	return &c, nil
}

// ListByAuthor returns authorID's collections, newest first.
func (s *CollectionStore) ListByAuthor(ctx context.Context, authorID primitive.ObjectID, includePrivate bool) ([]model.Collection, error) {
	filter := bson.M{"authorId": authorID}
	if !includePrivate {
		filter["isPrivate"] = false
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return s.find(ctx, filter, opts)
}

// Browse lists public collections, most upvoted first, and reports how
// many match in total.
func (s *CollectionStore) Browse(ctx context.Context, q model.CollectionQuery) ([]model.Collection, int64, error) {
	filter := BrowseFilter(q)

	start := time.Now()
	total, err := s.coll.CountDocuments(ctx, filter)
	metrics.ObserveMongo("count", CollectionsCollection, start, err)
	if err != nil {
		return nil, 0, fmt.Errorf("count collections: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "totalUpvotes", Value: -1}, {Key: "createdAt", Value: -1}}).
		SetSkip(int64((q.Page - 1) * q.Limit)).
		SetLimit(int64(q.Limit))
	collections, err := s.find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return collections, total, nil
}

// BrowseFilter selects the public collections matching q. Search is a
// case-insensitive literal match on title, description or tags.
func BrowseFilter(q model.CollectionQuery) bson.M {
	filter := bson.M{"isPrivate": false}
	if q.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(q.Search), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"title": pattern},
			bson.M{"description": pattern},
			bson.M{"tags": pattern},
		}
	}
	if len(q.Tags) > 0 {
		filter["tags"] = bson.M{"$in": q.Tags}
	}
	return filter
}

// Update applies in to a collection owned by authorID.
func (s *CollectionStore) Update(ctx context.Context, authorID, id primitive.ObjectID, in model.CollectionRequest) (*model.Collection, error) {
	set := bson.M{"modifiedAt": s.now().UTC()}
	if in.Title != nil {
		set["title"] = *in.Title
	}
	if in.Description != nil {
		set["description"] = *in.Description
	}
	if in.ThumbnailURL != nil {
		set["thumbnailUrl"] = *in.ThumbnailURL
	}
	if in.Tags != nil {
		set["tags"] = in.Tags
	}
	if in.IsPrivate != nil {
		set["isPrivate"] = *in.IsPrivate
	}
	return s.findAndUpdate(ctx, bson.M{"_id": id, "authorId": authorID}, bson.M{"$set": set})
}

// AddPost appends postID to a collection owned by authorID. added is false
// when the post was already listed.
func (s *CollectionStore) AddPost(ctx context.Context, authorID, id, postID primitive.ObjectID) (added bool, err error) {
	return s.changePosts(ctx, authorID, id, bson.M{"$addToSet": bson.M{"posts": postID}})
}

// RemovePost drops postID from a collection owned by authorID. removed is
// false when the post was not listed.
func (s *CollectionStore) RemovePost(ctx context.Context, authorID, id, postID primitive.ObjectID) (removed bool, err error) {
	return s.changePosts(ctx, authorID, id, bson.M{"$pull": bson.M{"posts": postID}})
}

func (s *CollectionStore) changePosts(ctx context.Context, authorID, id primitive.ObjectID, update bson.M) (bool, error) {
	update["$set"] = bson.M{"modifiedAt": s.now().UTC()}

	start := time.Now()
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id, "authorId": authorID}, update)
	metrics.ObserveMongo("update_one", CollectionsCollection, start, err)
	if err != nil {
		return false, fmt.Errorf("update collection %s: %w", id.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return false, apperror.NotFound("Collection not found")
	}
	return res.ModifiedCount == 1, nil
}

// Vote counts an upvote or a downvote.
func (s *CollectionStore) Vote(ctx context.Context, id primitive.ObjectID, up bool) (*model.Collection, error) {
	field := "totalDownvotes"
	if up {
		field = "totalUpvotes"
	}
	return s.findAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{field: 1}})
}

func (s *CollectionStore) Delete(ctx context.Context, authorID, id primitive.ObjectID) error {
	start := time.Now()
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id, "authorId": authorID})
	metrics.ObserveMongo("delete_one", CollectionsCollection, start, err)
	if err != nil {
		return fmt.Errorf("delete collection %s: %w", id.Hex(), err)
	}
	if res.DeletedCount == 0 {
		return apperror.NotFound("Collection not found")
	}
	return nil
}

func (s *CollectionStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]model.Collection, error) {
	start := time.Now()
	cursor, err := s.coll.Find(ctx, filter, opts)
	metrics.ObserveMongo("find_many", CollectionsCollection, start, err)
	if err != nil {
		return nil, fmt.Errorf("find collections: %w", err)
	}
	defer cursor.Close(ctx)

	collections := []model.Collection{}
	if err := cursor.All(ctx, &collections); err != nil {
		return nil, fmt.Errorf("decode collections: %w", err)
	}
	return collections, nil
}

func (s *CollectionStore) findAndUpdate(ctx context.Context, filter, update bson.M) (*model.Collection, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	start := time.Now()
	var c model.Collection
	err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&c)
	metrics.ObserveMongo("find_one_and_update", CollectionsCollection, start, err)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperror.NotFound("Collection not found")
	}
	if err != nil {
		return nil, fmt.Errorf("update collection: %w", err)
	}
	return &c, nil
}

func applyCollection(c *model.Collection, in model.CollectionRequest) {
	if in.Title != nil {
		c.Title = *in.Title
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.ThumbnailURL != nil {
		c.ThumbnailURL = *in.ThumbnailURL
	}
	if in.Tags != nil {
		c.Tags = in.Tags
	}
	if in.IsPrivate != nil {
		c.IsPrivate = *in.IsPrivate
	}
}
