package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FollowEdge records one side of a follow relationship.
type FollowEdge struct {
	UserID primitive.ObjectID `bson:"userId" json:"userId"`
	Since  time.Time          `bson:"since" json:"since"`
}

// User represents an account stored in MongoDB
type User struct {
	ID             primitive.ObjectID   `bson:"_id,omitempty" json:"_id"`
	Username       string               `bson:"username" json:"username"`
	DisplayName    string               `bson:"displayName" json:"displayName"`
	FullName       string               `bson:"fullName" json:"fullName"`
	ProfilePicture string               `bson:"profilePicture" json:"profilePicture"`
	Role           string               `bson:"role" json:"role"`
	AboutMe        string               `bson:"aboutMe" json:"aboutMe"`
	Posts          []primitive.ObjectID `bson:"posts" json:"posts"`
	LikedPosts     []primitive.ObjectID `bson:"likedPosts" json:"-"`
	DislikedPosts  []primitive.ObjectID `bson:"dislikedPosts" json:"-"`
	Followers      []FollowEdge         `bson:"followers" json:"followers"`
	Following      []FollowEdge         `bson:"following" json:"following"`
	CreatedAt      time.Time            `bson:"createdAt" json:"createdAt"`
}

// AuthorCard returns the denormalized author block stored on posts.
func (u *User) AuthorCard() Author {
	name := u.FullName
	if name == "" {
		name = u.DisplayName
	}
	return Author{Name: name, ProfilePicture: u.ProfilePicture, Role: u.Role}
}

// PublicUser is the profile card returned by follower/following lookups.
type PublicUser struct {
	ID             primitive.ObjectID `json:"_id"`
	Username       string             `json:"username"`
	DisplayName    string             `json:"displayName"`
	ProfilePicture string             `json:"profilePicture"`
	Followers      int                `json:"followers"`
	Following      int                `json:"following"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:             u.ID,
		Username:       u.Username,
		DisplayName:    u.DisplayName,
		ProfilePicture: u.ProfilePicture,
		Followers:      len(u.Followers),
		Following:      len(u.Following),
	}
}

// UserCard is the small author block attached to comments and
// collections.
type UserCard struct {
	ID             primitive.ObjectID `json:"_id"`
	FullName       string             `json:"fullName"`
	Username       string             `json:"username"`
	ProfilePicture string             `json:"profilePicture"`
	Role           string             `json:"role"`
}

func (u *User) Card() UserCard {
	return UserCard{
		ID:             u.ID,
		FullName:       u.FullName,
		Username:       u.Username,
		ProfilePicture: u.ProfilePicture,
		Role:           u.Role,
	}
}
