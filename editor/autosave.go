package editor

import (
	"context"
	"log"
	"time"

	"opencanvas-service/apperror"
	"opencanvas-service/model"
)

const (
	DefaultLocalEvery  = 5 * time.Second
	DefaultRemoteEvery = 30 * time.Second
)

// DraftWriter persists drafts on the local machine.
type DraftWriter interface {
	SaveDraft(d model.Draft) error
}

// Syncer pushes a draft to the server.
type Syncer interface {
	Sync(ctx context.Context, d model.Draft) error
}

// Autosaver runs the two autosave timers of a session: a frequent local
// snapshot and a slower server sync. Remote may be nil for offline use.
type Autosaver struct {
	Session     *Session
	Local       DraftWriter
	Remote      Syncer
	LocalEvery  time.Duration
	RemoteEvery time.Duration
}

// Run drives both timers until ctx is done. Both are stopped before Run
// returns, so no write happens after teardown.
func (a *Autosaver) Run(ctx context.Context) {
	localEvery := a.LocalEvery
	if localEvery <= 0 {
		localEvery = DefaultLocalEvery
	}
	localTicker := time.NewTicker(localEvery)
	defer localTicker.Stop()

	var remoteC <-chan time.Time
	if a.Remote != nil {
		remoteEvery := a.RemoteEvery
		if remoteEvery <= 0 {
			remoteEvery = DefaultRemoteEvery
		}
		remoteTicker := time.NewTicker(remoteEvery)
		defer remoteTicker.Stop()
		remoteC = remoteTicker.C
	}

	log.Printf("[INFO] Autosave started for draft %s (local every %v)", a.Session.ID(), localEvery)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[INFO] Autosave stopped for draft %s", a.Session.ID())
			return
		case <-localTicker.C:
			if err := a.saveLocal(); err != nil {
				log.Printf("[ERROR] Local autosave failed for draft %s: %v", a.Session.ID(), err)
			}
		case <-remoteC:
			if err := a.syncRemote(ctx); err != nil {
				log.Printf("[WARN] Draft %s not synced: %v", a.Session.ID(), err)
			}
		}
	}
}

// SaveNow is the explicit save and publish path: write locally, then sync.
// A failed sync leaves the local draft in place.
func (a *Autosaver) SaveNow(ctx context.Context) error {
	if err := a.writeLocal(); err != nil {
		return err
	}
	if a.Remote == nil {
		return nil
	}
	return a.syncRemote(ctx)
}

// Reconnected is called when connectivity returns and pushes any pending
// changes.
func (a *Autosaver) Reconnected(ctx context.Context) error {
	a.Session.setStatus(StatusSynced)
	if a.Remote == nil || !a.Session.pendingSync() {
		return nil
	}
	return a.syncRemote(ctx)
}

// saveLocal writes the draft only when there are unsaved edits.
func (a *Autosaver) saveLocal() error {
	if a.Session.Saved() {
		return nil
	}
	return a.writeLocal()
}

func (a *Autosaver) writeLocal() error {
	d, rev := a.Session.capture()
	if err := a.Local.SaveDraft(d); err != nil {
		return err
	}
	a.Session.savedAt(rev, d.LastSaved)
	return nil
}

func (a *Autosaver) syncRemote(ctx context.Context) error {
	if !a.Session.pendingSync() {
		return nil
	}

	d, rev := a.Session.capture()
	a.Session.setStatus(StatusSaving)

	if err := a.Remote.Sync(ctx, d); err != nil {
		a.Session.setStatus(StatusOffline)
		if !apperror.Is(err, apperror.KindTransient) {
			log.Printf("[ERROR] Server rejected draft %s: %v", d.ID, err)
		}
		return err
	}
	a.Session.syncedAt(rev)

	// keep the local copy in step so a reload does not resync
	d.SyncedWithServer = true
	if err := a.Local.SaveDraft(d); err != nil {
		log.Printf("[WARN] Could not mark draft %s as synced locally: %v", d.ID, err)
	} else {
		a.Session.savedAt(rev, d.LastSaved)
	}
	return nil
}
