package editor

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"opencanvas-service/apperror"
	"opencanvas-service/model"

	"github.com/google/uuid"
)

type Alignment string

const (
	AlignLeft    Alignment = "left"
	AlignCenter  Alignment = "center"
	AlignRight   Alignment = "right"
	AlignJustify Alignment = "justify"
)

// SyncStatus mirrors the badge shown next to the title.
type SyncStatus string

const (
	StatusSynced  SyncStatus = "synced"
	StatusSaving  SyncStatus = "saving"
	StatusOffline SyncStatus = "offline"
)

// ErrUnsavedChanges is returned by ConfirmLeave while edits have not been
// written to the local draft.
var ErrUnsavedChanges = apperror.Validation("you have unsaved changes")

type Options struct {
	HistoryLimit int
	Clock        func() time.Time
}

// Session is one editing session over a single draft. It is safe for the
// autosave loop and the input handlers to use concurrently.
type Session struct {
	mu sync.Mutex

	id        string
	title     string
	content   string
	selStart  int
	selEnd    int
	alignment Alignment
	history   *History

	rev        uint64 // bumped on every change to title or content
	savedRev   uint64 // last revision written locally
	syncedRev  uint64 // last revision accepted by the server
	status     SyncStatus
	lastSaved  time.Time
	lastSynced time.Time

	now func() time.Time
}

// NewSession starts an empty session. An empty id gets a fresh UUID, the
// same way a new draft is keyed on the writing pad.
func NewSession(id string, opts Options) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Session{
		id:        id,
		alignment: AlignLeft,
		history:   NewHistory(opts.HistoryLimit),
		status:    StatusSynced,
		now:       now,
	}
}

// Restore resumes a session from a locally persisted draft.
func Restore(d model.Draft, opts Options) *Session {
	s := NewSession(d.ID, opts)
	s.title = d.Title
	s.content = d.Content
	s.lastSaved = d.LastSaved
	if !d.SyncedWithServer {
		// pending sync survives a reload
		s.rev = 1
		s.savedRev = 1
	}
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

func (s *Session) Content() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content
}

func (s *Session) Selection() (start, end int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selStart, s.selEnd
}

func (s *Session) Alignment() Alignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alignment
}

func (s *Session) SetTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if title == s.title {
		return
	}
	s.title = title
	s.rev++
}

// Type replaces the content with what the user typed. The previous content
// goes onto the undo stack.
func (s *Session) Type(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if content == s.content {
		return
	}
	s.commit(content)
	s.clampSelection()
}

// Select sets the selection, clamped to the content and normalised so
// start <= end.
func (s *Session) Select(start, end int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if start > end {
		start, end = end, start
	}
	s.selStart, s.selEnd = start, end
	s.clampSelection()
}

// Format applies f to the current selection. On success the selection
// covers the transformed text.
func (s *Session) Format(f Format) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := ApplyFormat(s.content, s.selStart, s.selEnd, f)
	if err != nil {
		return err
	}
	grown := utf8.RuneCountInString(out) - utf8.RuneCountInString(s.content)
	s.commit(out)
	s.selEnd += grown
	return nil
}

// FormatNamed applies a format chosen by toolbar name.
func (s *Session) FormatNamed(name string) error {
	f, err := ParseFormat(name)
	if err != nil {
		return err
	}
	return s.Format(f)
}

// Replace substitutes every occurrence of find and returns how many were
// replaced. Nothing is recorded when there is no match.
func (s *Session) Replace(find, replacement string) (int, error) {
	if find == "" {
		return 0, apperror.Validation("nothing to find")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := strings.Count(s.content, find)
	if n == 0 || find == replacement {
		return n, nil
	}
	s.commit(strings.ReplaceAll(s.content, find, replacement))
	s.clampSelection()
	return n, nil
}

func (s *Session) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.history.Undo(s.content)
	if ok {
		s.content = prev
		s.rev++
		s.clampSelection()
	}
	return ok
}

func (s *Session) Redo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, ok := s.history.Redo(s.content)
	if ok {
		s.content = next
		s.rev++
		s.clampSelection()
	}
	return ok
}

// HistoryDepths reports the undo and redo stack sizes.
func (s *Session) HistoryDepths() (undo, redo int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Depths()
}

func (s *Session) SetAlignment(a Alignment) error {
	switch a {
	case AlignLeft, AlignCenter, AlignRight, AlignJustify:
	default:
		return apperror.Validation("unknown alignment %q", a)
	}
	s.mu.Lock()
	s.alignment = a
	s.mu.Unlock()
	return nil
}

// Snapshot returns the draft as it would be persisted now.
func (s *Session) Snapshot() model.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, _ := s.snapshotLocked()
	return d
}

// Saved reports whether every edit has reached the local draft.
func (s *Session) Saved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.savedRev == s.rev
}

func (s *Session) SyncStatus() SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) LastSynced() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSynced
}

// MarkSaved records that the current state was written locally.
func (s *Session) MarkSaved() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.savedRev = s.rev
	s.lastSaved = s.now()
}

// ConfirmLeave returns ErrUnsavedChanges if closing now would lose edits.
func (s *Session) ConfirmLeave() error {
	if !s.Saved() {
		return ErrUnsavedChanges
	}
	return nil
}

func (s *Session) commit(content string) {
	s.history.Record(s.content)
	s.content = content
	s.rev++
}

func (s *Session) clampSelection() {
	n := utf8.RuneCountInString(s.content)
	s.selStart = clamp(s.selStart, 0, n)
	s.selEnd = clamp(s.selEnd, s.selStart, n)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (s *Session) snapshotLocked() (model.Draft, uint64) {
	return model.Draft{
		ID:               s.id,
		Title:            s.title,
		Content:          s.content,
		LastSaved:        s.lastSaved,
		SyncedWithServer: s.syncedRev == s.rev,
	}, s.rev
}

// capture returns the draft to persist, stamped with the current time,
// and the revision it represents.
func (s *Session) capture() (model.Draft, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, rev := s.snapshotLocked()
	d.LastSaved = s.now()
	return d, rev
}

func (s *Session) savedAt(rev uint64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rev > s.savedRev {
		s.savedRev = rev
		s.lastSaved = at
	}
}

func (s *Session) pendingSync() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncedRev != s.rev
}

func (s *Session) setStatus(st SyncStatus) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

func (s *Session) syncedAt(rev uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rev > s.syncedRev {
		s.syncedRev = rev
	}
	s.lastSynced = s.now()
	s.status = StatusSynced
}
