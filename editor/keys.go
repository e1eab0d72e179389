package editor

import "strings"

// KeyChord is a key press together with its modifiers.
type KeyChord struct {
	Key   string
	Ctrl  bool
	Meta  bool
	Shift bool
	Alt   bool
}

// Action tells the caller what a key press did.
type Action int

const (
	ActionNone Action = iota
	ActionFormatted
	ActionPublish
)

func (a Action) String() string {
	switch a {
	case ActionFormatted:
		return "formatted"
	case ActionPublish:
		return "publish"
	default:
		return "none"
	}
}

var shortcutFormats = map[string]Format{
	"b": FormatBold,
	"i": FormatItalic,
	"u": FormatUnderline,
	"h": FormatHighlight,
}

// HandleKey handles the editor shortcuts. Ctrl or Cmd with B, I, U or H
// formats the selection and with S asks the caller to publish. Anything
// else passes through as ActionNone.
func (s *Session) HandleKey(k KeyChord) (Action, error) {
	if !(k.Ctrl || k.Meta) || k.Alt {
		return ActionNone, nil
	}

	key := strings.ToLower(k.Key)
	if key == "s" {
		return ActionPublish, nil
	}
	f, ok := shortcutFormats[key]
	if !ok {
		return ActionNone, nil
	}
	if err := s.Format(f); err != nil {
		return ActionNone, err
	}
	return ActionFormatted, nil
}
