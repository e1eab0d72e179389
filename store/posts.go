package store

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"opencanvas-service/apperror"
	"opencanvas-service/feed"
	"opencanvas-service/metrics"
	"opencanvas-service/model"
	"opencanvas-service/readtime"
	"opencanvas-service/scoring"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ScoreUpdate is a recomputed cached score for one post.
type ScoreUpdate struct {
	ID    primitive.ObjectID
	Score float64
	At    time.Time
}

// PostStore reads and writes the posts collection.
type PostStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewPostStore(db *mongo.Database) *PostStore {
	return &PostStore{coll: db.Collection(PostsCollection), now: time.Now}
}

// Ranked implements feed.Ranker.
func (s *PostStore) Ranked(ctx context.Context, kind feed.Kind, after *feed.Cursor, n int) (posts []model.Post, err error) {
	defer observe("find_ranked", time.Now(), &err)

	opts := options.Find().
		SetSort(rankSort).
		SetLimit(int64(n)).
		SetProjection(feedProjection)

	cursor, err := s.coll.Find(ctx, RankFilter(kind, after), opts)
	if err != nil {
		return nil, fmt.Errorf("find ranked posts: %w", err)
	}
	defer cursor.Close(ctx)

	posts = []model.Post{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, fmt.Errorf("decode ranked posts: %w", err)
	}
	return posts, nil
}

func (s *PostStore) FindByID(ctx context.Context, id primitive.ObjectID) (post *model.Post, err error) {
	defer observe("find_one", time.Now(), &err)

	var p model.Post
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("Post not found")
		}
		return nil, fmt.Errorf("find post %s: %w", id.Hex(), err)
	}
	return &p, nil
}

// FindByIDs returns the posts that exist among ids, newest first.
func (s *PostStore) FindByIDs(ctx context.Context, ids []primitive.ObjectID) (posts []model.Post, err error) {
	defer observe("find_many", time.Now(), &err)

	posts = []model.Post{}
	if len(ids) == 0 {
		return posts, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, fmt.Errorf("find posts by ids: %w", err)
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, &posts); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}
	return posts, nil
}

// Save creates the post or, when it already exists, updates it on behalf
// of its author. created reports which of the two happened.
func (s *PostStore) Save(ctx context.Context, author *model.User, in model.SavePostRequest) (post *model.Post, created bool, err error) {
	id, err := primitive.ObjectIDFromHex(in.ID)
	if err != nil {
		return nil, false, apperror.Validation("Invalid post ID")
	}

	existing, err := s.FindByID(ctx, id)
	switch {
	case err == nil:
		post, err = s.update(ctx, author, existing, in)
		return post, false, err
	case apperror.Is(err, apperror.KindNotFound):
		post, err = s.insert(ctx, author, id, in)
		return post, true, err
	default:
		return nil, false, err
	}
}

func (s *PostStore) update(ctx context.Context, author *model.User, p *model.Post, in model.SavePostRequest) (_ *model.Post, err error) {
	if !p.OwnedBy(author.ID) {
		return nil, apperror.Forbidden("Unauthorized to update this post")
	}
	defer observe("update_one", time.Now(), &err)

	now := s.now().UTC()
	p.Title = in.Title
	p.Content = in.Content
	p.Tags = normalizeTags(in.Tags)
	p.ModifiedAt = now
	p.IsEdited = true
	p.IsPublic = in.IsPublic == nil || *in.IsPublic
	if in.ThumbnailURL != "" {
		p.ThumbnailURL = in.ThumbnailURL
	}
	p.ReadTime = readtime.Estimate(p.Content)
	// modifiedAt feeds the decay, so the cached score moves with the edit
	p.AnonymousEngagementScore = p.Score(now)
	p.ScoredAt = now

	update := bson.M{"$set": bson.M{
		"title":        p.Title,
		"content":      p.Content,
		"tags":         p.Tags,
		"modifiedAt":   p.ModifiedAt,
		"isEdited":     p.IsEdited,
		"isPublic":     p.IsPublic,
		"thumbnailUrl": p.ThumbnailURL,
		"readTime":     p.ReadTime,
		scoreField:     p.AnonymousEngagementScore,
		"scoredAt":     p.ScoredAt,
	}}
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": p.ID, "authorId": author.ID}, update)
	if err != nil {
		return nil, fmt.Errorf("update post %s: %w", p.ID.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return nil, apperror.NotFound("Post not found")
	}
	return p, nil
}

func (s *PostStore) insert(ctx context.Context, author *model.User, id primitive.ObjectID, in model.SavePostRequest) (_ *model.Post, err error) {
	artType, err := normalizeType(in.ArtType)
	if err != nil {
		return nil, err
	}
	defer observe("insert_one", time.Now(), &err)

	now := s.now().UTC()
	p := &model.Post{
		ID:           id,
		Title:        in.Title,
		Content:      in.Content,
		AuthorID:     author.ID,
		Author:       author.AuthorCard(),
		Tags:         normalizeTags(in.Tags),
		Type:         artType,
		ThumbnailURL: in.ThumbnailURL,
		ReadTime:     readtime.Estimate(in.Content),
		IsPublic:     in.IsPublic == nil || *in.IsPublic,
		CreatedAt:    now,
		ModifiedAt:   now,
		ScoredAt:     now,
	}
	if p.ThumbnailURL == "" {
		p.ThumbnailURL = DefaultThumbnail(artType)
	}
	p.AnonymousEngagementScore = p.Score(now)

	if _, err := s.coll.InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, apperror.Forbidden("Unauthorized to update this post")
		}
		return nil, fmt.Errorf("insert post: %w", err)
	}
	return p, nil
}

// Delete removes a post owned by authorID.
func (s *PostStore) Delete(ctx context.Context, authorID, id primitive.ObjectID) (err error) {
	defer observe("delete_one", time.Now(), &err)

	err = s.coll.FindOneAndDelete(ctx, bson.M{"_id": id, "authorId": authorID}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperror.NotFound("Post not found or unauthorized to delete")
	}
	if err != nil {
		return fmt.Errorf("delete post %s: %w", id.Hex(), err)
	}
	return nil
}

func (s *PostStore) SetVisibility(ctx context.Context, authorID, id primitive.ObjectID, public bool) error {
	return s.setOwnedFlag(ctx, authorID, id, "isPublic", public, "Not authorised to change post visibility")
}

func (s *PostStore) SetFeatured(ctx context.Context, authorID, id primitive.ObjectID, featured bool) error {
	return s.setOwnedFlag(ctx, authorID, id, "isFeatured", featured, "Not authorised to feature this post")
}

func (s *PostStore) setOwnedFlag(ctx context.Context, authorID, id primitive.ObjectID, field string, value bool, denied string) error {
	p, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !p.OwnedBy(authorID) {
		return apperror.Forbidden("%s", denied)
	}

	start := time.Now()
	_, err = s.coll.UpdateOne(ctx, bson.M{"_id": id, "authorId": authorID}, bson.M{"$set": bson.M{field: value}})
	metrics.ObserveMongo("update_one", PostsCollection, start, err)
	if err != nil {
		return fmt.Errorf("set %s on post %s: %w", field, id.Hex(), err)
	}
	return nil
}

// Increment moves one engagement counter by delta and returns the updated
// post. A negative delta never takes the counter below zero.
func (s *PostStore) Increment(ctx context.Context, id primitive.ObjectID, counter model.Counter, delta int64) (post *model.Post, err error) {
	if !counter.Valid() {
		return nil, apperror.Validation("unknown counter %q", counter)
	}
	if delta == 0 {
		return s.FindByID(ctx, id)
	}

	filter := bson.M{"_id": id}
	if delta < 0 {
		filter[string(counter)] = bson.M{"$gte": -delta}
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	start := time.Now()
	var p model.Post
	err = s.coll.FindOneAndUpdate(ctx, filter, bson.M{"$inc": bson.M{string(counter): delta}}, opts).Decode(&p)
	metrics.ObserveMongo("increment", PostsCollection, start, err)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// either missing or already at zero
		return s.FindByID(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("increment %s on post %s: %w", counter, id.Hex(), err)
	}
	return &p, nil
}

// AttachComment counts a new comment on a post. Top-level comments are
// also listed on the post.
func (s *PostStore) AttachComment(ctx context.Context, postID, commentID primitive.ObjectID, listed bool) (post *model.Post, err error) {
	defer observe("attach_comment", time.Now(), &err)

	update := bson.M{"$inc": bson.M{string(model.CounterComments): 1}}
	if listed {
		update["$push"] = bson.M{"comments": commentID}
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var p model.Post
	err = s.coll.FindOneAndUpdate(ctx, bson.M{"_id": postID}, update, opts).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperror.NotFound("Post not found")
	}
	if err != nil {
		return nil, fmt.Errorf("attach comment to post %s: %w", postID.Hex(), err)
	}
	return &p, nil
}

// DetachComment reverses AttachComment. unlist also drops the comment from
// the post's list.
func (s *PostStore) DetachComment(ctx context.Context, postID, commentID primitive.ObjectID, unlist bool) (*model.Post, error) {
	if unlist {
		start := time.Now()
		_, err := s.coll.UpdateOne(ctx, bson.M{"_id": postID}, bson.M{"$pull": bson.M{"comments": commentID}})
		metrics.ObserveMongo("detach_comment", PostsCollection, start, err)
		if err != nil {
			return nil, fmt.Errorf("detach comment from post %s: %w", postID.Hex(), err)
		}
	}
	return s.Increment(ctx, postID, model.CounterComments, -1)
}

// ScanForRescore streams the score inputs of every post to fn in batches.
func (s *PostStore) ScanForRescore(ctx context.Context, batch int, fn func([]model.Post) error) (err error) {
	defer observe("scan", time.Now(), &err)

	opts := options.Find().
		SetProjection(rescoreProjection).
		SetBatchSize(int32(batch))
	cursor, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return fmt.Errorf("scan posts: %w", err)
	}
	defer cursor.Close(ctx)

	buf := make([]model.Post, 0, batch)
	for cursor.Next(ctx) {
		var p model.Post
		if err := cursor.Decode(&p); err != nil {
			return fmt.Errorf("decode post: %w", err)
		}
		buf = append(buf, p)
		if len(buf) == batch {
			if err := fn(buf); err != nil {
				return err
			}
			buf = buf[:0]
		}
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("scan posts: %w", err)
	}
	if len(buf) > 0 {
		return fn(buf)
	}
	return nil
}

// UpdateScores writes recomputed scores in one unordered bulk write.
func (s *PostStore) UpdateScores(ctx context.Context, updates []ScoreUpdate) (modified int64, err error) {
	if len(updates) == 0 {
		return 0, nil
	}
	defer observe("bulk_write", time.Now(), &err)

	operations := make([]mongo.WriteModel, 0, len(updates))
	for _, u := range updates {
		operations = append(operations, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": u.ID}).
			SetUpdate(bson.M{"$set": bson.M{scoreField: u.Score, "scoredAt": u.At}}))
	}

	result, err := s.coll.BulkWrite(ctx, operations, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, fmt.Errorf("update scores: %w", err)
	}
	return result.ModifiedCount, nil
}

// Rescore computes the score update for p at now.
func Rescore(p model.Post, now time.Time) ScoreUpdate {
	return ScoreUpdate{
		ID:    p.ID,
		Score: scoring.Compute(p.Counters(), p.CreatedAt, p.ModifiedAt, now),
		At:    now,
	}
}

// DefaultThumbnail picks the stock cover image for a post type.
func DefaultThumbnail(artType string) string {
	switch artType {
	case model.TypePoem, model.TypeStory:
		return "/defaults/" + artType + ".jpeg"
	case model.TypeArticle:
		return fmt.Sprintf("/defaults/%s_%d.jpeg", artType, rand.IntN(3)+1)
	default:
		return "https://picsum.photos/400"
	}
}

func normalizeType(t string) (string, error) {
	t = strings.ToLower(strings.TrimSpace(t))
	switch t {
	case "", "written":
		return model.TypeArticle, nil
	case model.TypeArticle, model.TypeStory, model.TypePoem, model.TypeSocial, model.TypeImage:
		return t, nil
	}
	return "", apperror.Validation("unknown post type %q", t)
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

func observe(op string, start time.Time, err *error) {
	metrics.ObserveMongo(op, PostsCollection, start, *err)
}
