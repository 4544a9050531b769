package plugin

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTMLText strips markup from row text, keeping only the visible text.
// Entities are decoded and script/style contents are dropped. Adjacent text
// nodes are separated by a single space so tags never glue words together.
type HTMLText struct{}

func (HTMLText) Name() string { return "htmltext" }

func (HTMLText) Transform(text string) string {
	if !strings.ContainsAny(text, "<&") {
		return text
	}

	z := html.NewTokenizer(strings.NewReader(text))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or a malformed tail; either way the text so far is all we get
			return strings.TrimSpace(b.String())
		case html.StartTagToken:
			if a := z.Token().DataAtom; a == atom.Script || a == atom.Style {
				skip++
			}
		case html.EndTagToken:
			if a := z.Token().DataAtom; (a == atom.Script || a == atom.Style) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip > 0 {
				continue
			}
			chunk := strings.TrimSpace(string(z.Text()))
			if chunk == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(chunk)
		}
	}
}
