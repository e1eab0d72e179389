package handlertest

import (
	"context"
	"sync"
	"time"

	"opencanvas-service/apperror"
	"opencanvas-service/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Users is an in-memory handler.UserStore.
type Users struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*model.User
}

func NewUsers(users ...model.User) *Users {
	f := &Users{users: map[primitive.ObjectID]*model.User{}}
	for i := range users {
		u := users[i]
		f.users[u.ID] = &u
	}
	return f
}

// Update changes a stored user in place.
func (f *Users) Update(id primitive.ObjectID, fn func(*model.User)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		fn(u)
	}
}

func (f *Users) FindByID(_ context.Context, id primitive.ObjectID) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("User not found")
	}
	cp := *u
	return &cp, nil
}

func (f *Users) FindByUsername(_ context.Context, username string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("User not found")
}

func (f *Users) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.User{}
	seen := map[primitive.ObjectID]bool{}
	for _, id := range ids {
		if u, ok := f.users[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *Users) AddPost(_ context.Context, userID, postID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return apperror.NotFound("User not found")
	}
	if !contains(u.Posts, postID) {
		u.Posts = append(u.Posts, postID)
	}
	return nil
}

func (f *Users) RemovePost(_ context.Context, userID, postID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return apperror.NotFound("User not found")
	}
	u.Posts = without(u.Posts, postID)
	u.LikedPosts = without(u.LikedPosts, postID)
	u.DislikedPosts = without(u.DislikedPosts, postID)
	return nil
}

func (f *Users) ToggleLike(_ context.Context, userID, postID primitive.ObjectID) (bool, error) {
	return f.toggle(userID, postID, func(u *model.User) *[]primitive.ObjectID { return &u.LikedPosts })
}

func (f *Users) ToggleDislike(_ context.Context, userID, postID primitive.ObjectID) (bool, error) {
	return f.toggle(userID, postID, func(u *model.User) *[]primitive.ObjectID { return &u.DislikedPosts })
}

func (f *Users) toggle(userID, postID primitive.ObjectID, field func(*model.User) *[]primitive.ObjectID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return false, apperror.NotFound("User not found")
	}
	set := field(u)
	if contains(*set, postID) {
		*set = without(*set, postID)
		return false, nil
	}
	*set = append(*set, postID)
	return true, nil
}

func (f *Users) ToggleFollow(_ context.Context, userID, targetID primitive.ObjectID) (bool, error) {
	if userID == targetID {
		return false, apperror.Validation("You cannot follow your account")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	target, ok := f.users[targetID]
	if !ok {
		return false, apperror.NotFound("User to follow not found")
	}
	u, ok := f.users[userID]
	if !ok {
		return false, apperror.NotFound("User not found")
	}
	for i, e := range u.Following {
		if e.UserID == targetID {
			u.Following = append(u.Following[:i], u.Following[i+1:]...)
			for j, fe := range target.Followers {
				if fe.UserID == userID {
					target.Followers = append(target.Followers[:j], target.Followers[j+1:]...)
					break
				}
			}
			return false, nil
		}
	}
	now := time.Now().UTC()
	u.Following = append(u.Following, model.FollowEdge{UserID: targetID, Since: now})
	target.Followers = append(target.Followers, model.FollowEdge{UserID: userID, Since: now})
	return true, nil
}
