// Package readtime estimates how long a markdown post takes to read.
package readtime

import (
	"math"
	"regexp"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// WordsPerMinute is the assumed reading speed.
const WordsPerMinute = 200

var (
	parserOnce sync.Once
	markdown   goldmark.Markdown
	htmlTag    = regexp.MustCompile(`<[^>]*>`)
)

func parser() goldmark.Markdown {
	parserOnce.Do(func() {
		markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return markdown
}

// Words counts the words a reader sees. Markdown syntax and HTML tags
// (underline, highlight, drop caps) are not words.
func Words(src string) int {
	if strings.TrimSpace(src) == "" {
		return 0
	}
	source := []byte(src)
	doc := parser().Parser().Parse(text.NewReader(source))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				b.WriteByte(' ')
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Text:
			b.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(node.Value)
		case *ast.AutoLink:
			b.Write(node.Label(source))
			return ast.WalkSkipChildren, nil
		case *ast.CodeBlock, *ast.FencedCodeBlock, *ast.HTMLBlock:
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.WriteString(htmlTag.ReplaceAllString(string(seg.Value(source)), " "))
				b.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})

	return len(strings.Fields(b.String()))
}

// Estimate returns whole minutes, never less than one.
func Estimate(src string) int {
	minutes := int(math.Ceil(float64(Words(src)) / WordsPerMinute))
	if minutes < 1 {
		return 1
	}
	return minutes
}
