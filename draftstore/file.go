// Package draftstore keeps the editor's local state on disk: the current
// draft and the id reserved for a post that does not exist on the server
// yet.
package draftstore

import (
	"fmt"
	"os"
	"path/filepath"

	"opencanvas-service/client"
	"opencanvas-service/editor"
	"opencanvas-service/model"

	"gopkg.in/yaml.v3"
)

var (
	_ editor.DraftWriter = (*FileStore)(nil)
	_ client.PostIDStore = (*FileStore)(nil)
)

// Fixed keys, one file each.
const (
	DraftKey     = "blogPost"
	NewPostIDKey = "newPostId"
)

type newPostMarker struct {
	ID string `yaml:"id"`
}

// FileStore stores each key as a YAML file in Dir.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create draft dir: %w", err)
	}
	return &FileStore{Dir: dir}, nil
}

// SaveDraft implements editor.DraftWriter.
func (s *FileStore) SaveDraft(d model.Draft) error {
	return s.write(DraftKey, d)
}

// LoadDraft returns nil, nil when no draft has been saved.
func (s *FileStore) LoadDraft() (*model.Draft, error) {
	var d model.Draft
	found, err := s.read(DraftKey, &d)
	if err != nil || !found {
		return nil, err
	}
	return &d, nil
}

func (s *FileStore) ClearDraft() error {
	return s.remove(DraftKey)
}

func (s *FileStore) SetNewPostID(id string) error {
	return s.write(NewPostIDKey, newPostMarker{ID: id})
}

// NewPostID returns "" when no id is reserved.
func (s *FileStore) NewPostID() (string, error) {
	var m newPostMarker
	if _, err := s.read(NewPostIDKey, &m); err != nil {
		return "", err
	}
	return m.ID, nil
}

func (s *FileStore) ClearNewPostID() error {
	return s.remove(NewPostIDKey)
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.Dir, key+".yaml")
}

// write replaces the key's file atomically so a crash never leaves a
// half-written draft behind.
func (s *FileStore) write(key string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(s.Dir, "."+key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *FileStore) read(key string, v any) (bool, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *FileStore) remove(key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}
