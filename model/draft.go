package model

import "time"

// Draft is the locally persisted copy of an in-progress document.
type Draft struct {
	ID               string    `json:"id" yaml:"id"`
	Title            string    `json:"title" yaml:"title"`
	Content          string    `json:"content" yaml:"content"`
	LastSaved        time.Time `json:"lastSaved" yaml:"last_saved"`
	SyncedWithServer bool      `json:"syncedWithServer" yaml:"synced_with_server"`
}
