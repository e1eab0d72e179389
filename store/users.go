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
)

// UserStore reads and writes the users collection.
type UserStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewUserStore(db *mongo.Database) *UserStore {
	return &UserStore{coll: db.Collection(UsersCollection), now: time.Now}
}

func (s *UserStore) FindByID(ctx context.Context, id primitive.ObjectID) (*model.User, error) {
	start := time.Now()
	var u model.User
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	metrics.ObserveMongo("find_one", UsersCollection, start, err)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperror.NotFound("User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", id.Hex(), err)
	}
	return &u, nil
}

// FindByUsername looks up a public profile by its handle.
func (s *UserStore) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	start := time.Now()
	var u model.User
	err := s.coll.FindOne(ctx, bson.M{"username": username}).Decode(&u)
	metrics.ObserveMongo("find_one", UsersCollection, start, err)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperror.NotFound("User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("find user %q: %w", username, err)
	}
	return &u, nil
}

func (s *UserStore) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]model.User, error) {
	users := []model.User{}
	if len(ids) == 0 {
		return users, nil
	}

	start := time.Now()
	cursor, err := s.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	metrics.ObserveMongo("find_many", UsersCollection, start, err)
	if err != nil {
		return nil, fmt.Errorf("find users by ids: %w", err)
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}

func (s *UserStore) AddPost(ctx context.Context, userID, postID primitive.ObjectID) error {
	return s.update(ctx, userID, bson.M{"$addToSet": bson.M{"posts": postID}})
}

func (s *UserStore) RemovePost(ctx context.Context, userID, postID primitive.ObjectID) error {
	return s.update(ctx, userID, bson.M{"$pull": bson.M{
		"posts":         postID,
		"likedPosts":    postID,
		"dislikedPosts": postID,
	}})
}

// ToggleLike flips whether userID likes postID and reports the new state.
func (s *UserStore) ToggleLike(ctx context.Context, userID, postID primitive.ObjectID) (bool, error) {
	return s.toggle(ctx, userID, "likedPosts", postID)
}

// ToggleDislike flips whether userID dislikes postID.
func (s *UserStore) ToggleDislike(ctx context.Context, userID, postID primitive.ObjectID) (bool, error) {
	return s.toggle(ctx, userID, "dislikedPosts", postID)
}

// toggle adds id to the set field when absent and removes it otherwise.
// Each step is a single conditional update, so concurrent toggles from the
// same user cannot both add.
func (s *UserStore) toggle(ctx context.Context, userID primitive.ObjectID, field string, id primitive.ObjectID) (bool, error) {
	start := time.Now()
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": userID, field: bson.M{"$ne": id}},
		bson.M{"$addToSet": bson.M{field: id}},
	)
	metrics.ObserveMongo("toggle_add", UsersCollection, start, err)
	if err != nil {
		return false, fmt.Errorf("update %s: %w", field, err)
	}
	if res.ModifiedCount == 1 {
		return true, nil
	}

	start = time.Now()
	res, err = s.coll.UpdateOne(ctx,
		bson.M{"_id": userID, field: id},
		bson.M{"$pull": bson.M{field: id}},
	)
	metrics.ObserveMongo("toggle_remove", UsersCollection, start, err)
	if err != nil {
		return false, fmt.Errorf("update %s: %w", field, err)
	}
	if res.MatchedCount == 0 {
		return false, apperror.NotFound("User not found")
	}
	return false, nil
}

// ToggleFollow follows targetID, or unfollows it when already followed,
// keeping both users' edge lists in step.
func (s *UserStore) ToggleFollow(ctx context.Context, userID, targetID primitive.ObjectID) (following bool, err error) {
	if userID == targetID {
		return false, apperror.Validation("You cannot follow your account")
	}
	if _, err := s.FindByID(ctx, targetID); err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			return false, apperror.NotFound("User to follow not found")
		}
		return false, err
	}
	defer func(start time.Time) {
		metrics.ObserveMongo("toggle_follow", UsersCollection, start, err)
	}(time.Now())

	now := s.now().UTC()
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": userID, "following.userId": bson.M{"$ne": targetID}},
		bson.M{"$push": bson.M{"following": model.FollowEdge{UserID: targetID, Since: now}}},
	)
	if err != nil {
		return false, fmt.Errorf("follow user: %w", err)
	}

	if res.ModifiedCount == 1 {
		_, err = s.coll.UpdateOne(ctx,
			bson.M{"_id": targetID, "followers.userId": bson.M{"$ne": userID}},
			bson.M{"$push": bson.M{"followers": model.FollowEdge{UserID: userID, Since: now}}},
		)
		if err != nil {
			return false, fmt.Errorf("add follower: %w", err)
		}
		return true, nil
	}

	res, err = s.coll.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$pull": bson.M{"following": bson.M{"userId": targetID}}},
	)
	if err != nil {
		return false, fmt.Errorf("unfollow user: %w", err)
	}
	if res.MatchedCount == 0 {
		return false, apperror.NotFound("User not found")
	}
	_, err = s.coll.UpdateOne(ctx,
		bson.M{"_id": targetID},
		bson.M{"$pull": bson.M{"followers": bson.M{"userId": userID}}},
	)
	if err != nil {
		return false, fmt.Errorf("remove follower: %w", err)
	}
	return false, nil
}

func (s *UserStore) update(ctx context.Context, userID primitive.ObjectID, update bson.M) error {
	start := time.Now()
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": userID}, update)
	metrics.ObserveMongo("update_one", UsersCollection, start, err)
	if err != nil {
		return fmt.Errorf("update user %s: %w", userID.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("User not found")
	}
	return nil
}
