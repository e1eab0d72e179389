// Package editor holds the writing pad: format transforms over a selection,
// bounded undo/redo history, the per-session document state and the
// autosave loop that persists drafts locally and to the server.
package editor

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"opencanvas-service/apperror"
)

// Format names one of the selection transforms offered by the toolbar.
type Format int

const (
	FormatBold Format = iota + 1
	FormatItalic
	FormatUnderline
	FormatStrikethrough
	FormatHighlight
	FormatInlineCode
	FormatQuote
	FormatHeading
	FormatList
	FormatLink
	FormatSubscript
	FormatLine
	FormatDropCap
	FormatPageBreak
	FormatCode
)

var formatNames = map[Format]string{
	FormatBold:          "bold",
	FormatItalic:        "italic",
	FormatUnderline:     "underline",
	FormatStrikethrough: "strikethrough",
	FormatHighlight:     "highlight",
	FormatInlineCode:    "inlineCode",
	FormatQuote:         "quote",
	FormatHeading:       "heading",
	FormatList:          "list",
	FormatLink:          "link",
	FormatSubscript:     "subscript",
	FormatLine:          "line",
	FormatDropCap:       "dropCap",
	FormatPageBreak:     "pageBreak",
	FormatCode:          "code",
}

const (
	linkPlaceholder = "http://example.com"
	pageBreakMarker = "<span className=html2pdf__page-break></span>"
)

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ParseFormat resolves a toolbar name. Matching ignores case so "dropcap"
// and "dropCap" are the same format.
func ParseFormat(name string) (Format, error) {
	for f, n := range formatNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", apperror.ErrUnknownFormat, name)
}

// ApplyFormat replaces content[start:end] with its transformed form.
// Offsets count characters (runes), not bytes. Bytes outside the selection
// are copied through untouched, even when they are not valid UTF-8. The
// content is returned unchanged alongside any error.
func ApplyFormat(content string, start, end int, f Format) (string, error) {
	from, to, n := runeSpan(content, start, end)
	if start < 0 || end < start || end > n {
		return content, apperror.Validation("selection [%d,%d) out of range for %d characters", start, end, n)
	}
	if start == end {
		return content, apperror.ErrNoSelection
	}

	out, ok := transform(content[from:to], f)
	if !ok {
		return content, fmt.Errorf("%w: %s", apperror.ErrUnknownFormat, f)
	}

	var b strings.Builder
	b.Grow(len(content) + len(out))
	b.WriteString(content[:from])
	b.WriteString(out)
	b.WriteString(content[to:])
	return b.String(), nil
}

// runeSpan maps the rune offsets start and end to byte offsets in s and
// returns the rune count of s. An invalid byte counts as one rune.
func runeSpan(s string, start, end int) (from, to, n int) {
	from, to = len(s), len(s)
	for i := 0; i < len(s); n++ {
		if n == start {
			from = i
		}
		if n == end {
			to = i
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return from, to, n
}

func transform(s string, f Format) (string, bool) {
	switch f {
	case FormatBold:
		return "**" + s + "**", true
	case FormatItalic:
		return "*" + s + "*", true
	case FormatUnderline:
		return "<u>" + s + "</u>", true
	case FormatStrikethrough:
		return "~~" + s + "~~", true
	case FormatHighlight:
		return "<mark>" + s + "</mark>", true
	case FormatInlineCode:
		return "`" + s + "`", true
	case FormatQuote:
		return "> " + s, true
	case FormatHeading:
		return "## " + s, true
	case FormatList:
		return "- " + s, true
	case FormatLink:
		return "[" + s + "](" + linkPlaceholder + ")", true
	case FormatSubscript:
		return "~" + s + "~", true
	case FormatLine:
		return "\n---\n" + s, true
	case FormatDropCap:
		return dropCap(s), true
	case FormatPageBreak:
		return s + "\n" + pageBreakMarker, true
	case FormatCode:
		return "```c\n" + s + "\n```", true
	}
	return "", false
}

// dropCap enlarges the first character of a paragraph. s is never empty here.
func dropCap(s string) string {
	r := []rune(s)
	return `<p style="font-size: 18px; line-height: 1.5;">` +
		`<span style="float: left; font-size: 3em; font-weight: bold; line-height: 1; margin-right: 8px;">` +
		string(r[0]) + `</span>` + string(r[1:]) + "</p>\n"
}
