// Package store persists posts, users, comments and collections in
// MongoDB.
package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	PostsCollection       = "posts"
	UsersCollection       = "users"
	CommentsCollection    = "comments"
	CollectionsCollection = "collections"
)

// Connect opens a client and verifies the server answers.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the indexes the feed and profile queries rely on.
// Failures are logged and do not stop startup.
func EnsureIndexes(ctx context.Context, db *mongo.Database) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	indexes := map[string][]mongo.IndexModel{
		PostsCollection: {
			{
				Keys: bson.D{
					{Key: "isPublic", Value: 1},
					{Key: "type", Value: 1},
					{Key: scoreField, Value: -1},
					{Key: "_id", Value: -1},
				},
			},
			{
				Keys: bson.D{
					{Key: "isPublic", Value: 1},
					{Key: scoreField, Value: -1},
					{Key: "_id", Value: -1},
				},
			},
			{
				Keys: bson.D{{Key: "authorId", Value: 1}},
			},
		},
		UsersCollection: {
			{
				Keys: bson.D{{Key: "followers.userId", Value: 1}},
			},
			{
				Keys: bson.D{{Key: "username", Value: 1}},
			},
		},
		CommentsCollection: {
			{
				Keys: bson.D{{Key: "postId", Value: 1}, {Key: "createdAt", Value: -1}},
			},
		},
		CollectionsCollection: {
			{
				Keys: bson.D{{Key: "authorId", Value: 1}, {Key: "createdAt", Value: -1}},
			},
			{
				Keys: bson.D{
					{Key: "isPrivate", Value: 1},
					{Key: "totalUpvotes", Value: -1},
					{Key: "createdAt", Value: -1},
				},
			},
		},
	}

	for name, models := range indexes {
		for _, index := range models {
			if _, err := db.Collection(name).Indexes().CreateOne(ctx, index); err != nil {
				log.Printf("[WARN] Failed to create index on %s: %v", name, err)
			}
		}
	}
}
