package client

import (
	"context"
	"fmt"
	"strings"

	"opencanvas-service/editor"
	"opencanvas-service/model"
)

const untitled = "Untitled"

var _ editor.Syncer = (*PostSyncer)(nil)

// PostIDStore remembers the server id reserved for the draft being
// written.
type PostIDStore interface {
	NewPostID() (string, error)
	SetNewPostID(id string) error
}

// PostSyncer pushes editor drafts to the server as written posts.
type PostSyncer struct {
	Client *Client
	Token  string
	IDs    PostIDStore
	Tags   []string
}

// Sync implements editor.Syncer. The first sync of a fresh draft reserves
// a post id and keeps it so later syncs update the same post.
func (s *PostSyncer) Sync(ctx context.Context, d model.Draft) error {
	if strings.TrimSpace(d.Content) == "" {
		// the server refuses empty posts; nothing worth syncing yet
		return nil
	}
	title := strings.TrimSpace(d.Title)
	if title == "" {
		title = untitled
	}

	postID, err := s.postID(ctx)
	if err != nil {
		return err
	}

	_, err = s.Client.SavePost(ctx, s.Token, model.SavePostRequest{
		ID:      postID,
		Title:   title,
		Content: d.Content,
		Tags:    s.Tags,
		ArtType: model.TypeArticle,
	})
	return err
}

func (s *PostSyncer) postID(ctx context.Context) (string, error) {
	id, err := s.IDs.NewPostID()
	if err != nil {
		return "", fmt.Errorf("load reserved post id: %w", err)
	}
	if id != "" {
		return id, nil
	}

	id, err = s.Client.NewPostID(ctx, s.Token)
	if err != nil {
		return "", err
	}
	if err := s.IDs.SetNewPostID(id); err != nil {
		return "", fmt.Errorf("store reserved post id: %w", err)
	}
	return id, nil
}
