package scrape

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/sells-group/leadgen/internal/model"
)

// Document is the readable form of an HTML page.
type Document struct {
	Title string
	Text  string
	Links []model.Link
}

// ParseHTML converts markup into markdown-flavored text and the list of
// anchors in document order. Relative hrefs are resolved against pageURL.
// Anchors are rendered inline as [text](href) so contact links survive in
// the text.
func ParseHTML(pageURL string, body []byte) (Document, error) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return Document{}, eris.Wrap(err, "scrape: parse html")
	}

	w := &htmlWriter{}
	if base, err := url.Parse(pageURL); err == nil {
		w.base = base
	}
	w.walk(root)

	return Document{
		Title: w.title,
		Text:  CollapseWhitespace(w.sb.String()),
		Links: w.links,
	}, nil
}

var skipAtoms = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Noscript: true,
	atom.Template: true, atom.Svg: true, atom.Iframe: true,
	atom.Select: true, atom.Button: true,
}

var blockAtoms = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true,
	atom.Header: true, atom.Footer: true, atom.Nav: true, atom.Aside: true,
	atom.Main: true, atom.Ul: true, atom.Ol: true, atom.Table: true,
	atom.Tr: true, atom.Address: true, atom.Blockquote: true,
	atom.Form: true, atom.Dl: true, atom.Dt: true, atom.Dd: true,
}

var headingLevel = map[atom.Atom]int{
	atom.H1: 1, atom.H2: 2, atom.H3: 3, atom.H4: 4, atom.H5: 5, atom.H6: 6,
}

type htmlWriter struct {
	base  *url.URL
	sb    strings.Builder
	title string
	links []model.Link
}

func (w *htmlWriter) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.sb.WriteString(n.Data)
		return
	case html.ElementNode:
		if skipAtoms[n.DataAtom] {
			return
		}
		switch n.DataAtom {
		case atom.Head:
			if t := findFirst(n, atom.Title); t != nil && w.title == "" {
				w.title = strings.TrimSpace(textContent(t))
			}
			return
		case atom.A:
			w.anchor(n)
			return
		case atom.Br:
			w.sb.WriteByte('\n')
			return
		case atom.Li:
			w.sb.WriteString("\n- ")
		case atom.Td, atom.Th:
			w.sb.WriteString(" | ")
		}
		if lvl, ok := headingLevel[n.DataAtom]; ok {
			w.sb.WriteString("\n\n" + strings.Repeat("#", lvl) + " ")
			w.children(n)
			w.sb.WriteString("\n\n")
			return
		}
		if blockAtoms[n.DataAtom] {
			w.sb.WriteByte('\n')
			w.children(n)
			w.sb.WriteByte('\n')
			return
		}
	}
	w.children(n)
}

func (w *htmlWriter) children(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
}

func (w *htmlWriter) anchor(n *html.Node) {
	text := strings.Join(strings.Fields(textContent(n)), " ")
	if text == "" {
		text = attr(n, "aria-label")
	}
	if text == "" {
		text = attr(n, "title")
	}

	href := w.resolve(attr(n, "href"))
	if href == "" {
		w.sb.WriteString(text)
		return
	}
	w.links = append(w.links, model.Link{Href: href, Text: text})
	w.sb.WriteString(" [" + text + "](" + href + ") ")
}

func (w *htmlWriter) resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") && !strings.HasPrefix(href, "#/") {
		return ""
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if w.base == nil || ref.IsAbs() {
		return ref.String()
	}
	return w.base.ResolveReference(ref).String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
			return
		}
		if n.Type == html.ElementNode && skipAtoms[n.DataAtom] {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return sb.String()
}

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, a); found != nil {
			return found
		}
	}
	return nil
}

// CollapseWhitespace trims every line, squeezes runs of spaces and keeps at
// most one blank line between paragraphs.
func CollapseWhitespace(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blank := true
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
