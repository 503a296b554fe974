// Package normalize converts raw publisher markup into clean readable
// text. Extraction is heuristic: strip chrome and boilerplate, prefer
// the largest coherent article-like region, and render what remains as
// lightweight markdown. The whole pipeline is deterministic: no
// network calls, no randomness, same bytes in means same text out.
package normalize

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Result is the outcome of normalizing one document.
type Result struct {
	Markdown string
	Title    string
	// Fallback is set when no main-content region scored high enough
	// and the whole body was converted instead. Degraded, not failed.
	Fallback bool
}

// Document normalizes raw markup fetched from src. It never fails on
// malformed markup; the html parser is lenient by design.
func Document(raw []byte, src *url.URL) Result {
	root, err := html.Parse(strings.NewReader(string(raw)))
	if err != nil {
		// html.Parse only errors on reader failure; a string reader
		// cannot fail, but keep the degenerate path total anyway.
		return Result{Markdown: "", Fallback: true}
	}

	title := documentTitle(root)
	prune(root)

	body := findElement(root, atom.Body)
	if body == nil {
		body = root
	}

	content, fallback := mainContent(body)

	md := render(content, src)
	md = collapseBlankLines(md)

	return Result{Markdown: md, Title: title, Fallback: fallback}
}

// documentTitle returns the trimmed <title> text, or "".
func documentTitle(root *html.Node) string {
	node := findElement(root, atom.Title)
	if node == nil {
		return ""
	}
	return strings.TrimSpace(textContent(node))
}

// strippedTags are removed outright before extraction: scripts,
// styling, embeds, and page chrome.
var strippedTags = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Iframe:   true,
	atom.Svg:      true,
	atom.Canvas:   true,
	atom.Template: true,
	atom.Nav:      true,
	atom.Aside:    true,
	atom.Header:   true,
	atom.Footer:   true,
	atom.Form:     true,
	atom.Button:   true,
	atom.Select:   true,
	atom.Input:    true,
}

// prune removes stripped tags, comments, and hidden nodes in place.
func prune(n *html.Node) {
	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling
		if shouldStrip(c) {
			n.RemoveChild(c)
			continue
		}
		prune(c)
	}
}

func shouldStrip(n *html.Node) bool {
	switch n.Type {
	case html.CommentNode:
		return true
	case html.ElementNode:
	default:
		return false
	}

	if strippedTags[n.DataAtom] {
		return true
	}

	for _, attr := range n.Attr {
		switch attr.Key {
		case "hidden":
			return true
		case "aria-hidden":
			if attr.Val == "true" {
				return true
			}
		case "style":
			if hiddenStyle.MatchString(attr.Val) {
				return true
			}
		}
	}
	return false
}

var hiddenStyle = regexp.MustCompile(`display\s*:\s*none|visibility\s*:\s*hidden`)

// findElement returns the first element with the given tag, depth-first.
func findElement(n *html.Node, tag atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// textContent concatenates all text nodes under n.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// collapseBlankLines trims the document and reduces runs of blank
// lines to a single one.
func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := true // swallow leading blanks
	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		if strings.TrimSpace(trimmed) == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, trimmed)
		blank = false
	}
	// Drop a trailing blank.
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
