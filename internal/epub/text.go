package epub

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Text concatenates the visible text of the spine documents in reading
// order, stopping once maxRunes runes have been collected. A non-positive
// maxRunes means no limit.
func (b *Book) Text(maxRunes int) (string, error) {
	var out strings.Builder
	for _, name := range b.Spine {
		if maxRunes > 0 && utf8.RuneCountInString(out.String()) >= maxRunes {
			break
		}
		rc, err := b.OpenEntry(name)
		if err != nil {
			continue
		}
		doc, err := html.Parse(rc)
		rc.Close()
		if err != nil {
			continue
		}
		body := findElement(doc, atom.Body)
		if body == nil {
			body = doc
		}
		appendText(&out, body)
		out.WriteByte('\n')
	}
	text := collapseBlankLines(out.String())
	if maxRunes > 0 {
		text = truncateRunes(text, maxRunes)
	}
	return text, nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func appendText(out *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		out.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Head:
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		appendText(out, c)
	}
	if n.Type == html.ElementNode && isBlock(n.DataAtom) {
		out.WriteByte('\n')
	}
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Br, atom.Li, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Tr, atom.Blockquote, atom.Section, atom.Article, atom.Pre:
		return true
	}
	return false
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
