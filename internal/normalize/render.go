package normalize

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// render converts a pruned node tree to lightweight markdown.
func render(n *html.Node, src *url.URL) string {
	var sb strings.Builder
	r := renderer{src: src}
	r.block(&sb, n)
	return sb.String()
}

type renderer struct {
	src *url.URL
}

// block walks children emitting block-level markdown separated by
// blank lines.
func (r *renderer) block(sb *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		r.node(sb, c)
	}
}

func (r *renderer) node(sb *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		if text := normalizeSpace(n.Data); text != "" {
			sb.WriteString(text)
			sb.WriteString("\n\n")
		}
		return
	case html.ElementNode:
	default:
		return
	}

	switch n.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		level := int(n.Data[1] - '0')
		text := normalizeSpace(r.inline(n))
		if text != "" {
			sb.WriteString(strings.Repeat("#", level) + " " + text + "\n\n")
		}
	case atom.P:
		if text := strings.TrimSpace(r.inline(n)); text != "" {
			sb.WriteString(text + "\n\n")
		}
	case atom.Ul:
		r.list(sb, n, false)
		sb.WriteString("\n")
	case atom.Ol:
		r.list(sb, n, true)
		sb.WriteString("\n")
	case atom.Blockquote:
		var inner strings.Builder
		r.block(&inner, n)
		for _, line := range strings.Split(strings.TrimSpace(inner.String()), "\n") {
			sb.WriteString("> " + line + "\n")
		}
		sb.WriteString("\n")
	case atom.Pre:
		code := strings.TrimRight(textContent(n), "\n")
		sb.WriteString("```\n" + code + "\n```\n\n")
	case atom.Hr:
		sb.WriteString("---\n\n")
	case atom.Br:
		sb.WriteString("\n")
	case atom.Table:
		// Tables degrade to their row text, one line per row.
		r.table(sb, n)
	case atom.Img:
		if line := r.image(n); line != "" {
			sb.WriteString(line + "\n\n")
		}
	default:
		if hasBlockChildren(n) {
			r.block(sb, n)
			return
		}
		// Pure inline content without a <p> wrapper still reads as a
		// paragraph.
		if text := normalizeSpace(r.inline(n)); text != "" {
			sb.WriteString(text + "\n\n")
		}
	}
}

var blockTags = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true,
	atom.Main: true, atom.H1: true, atom.H2: true, atom.H3: true,
	atom.H4: true, atom.H5: true, atom.H6: true, atom.Ul: true,
	atom.Ol: true, atom.Li: true, atom.Blockquote: true, atom.Pre: true,
	atom.Table: true, atom.Hr: true, atom.Figure: true,
}

func hasBlockChildren(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && blockTags[c.DataAtom] {
			return true
		}
	}
	return false
}

func (r *renderer) list(sb *strings.Builder, n *html.Node, ordered bool) {
	index := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.DataAtom != atom.Li {
			continue
		}
		index++
		text := normalizeSpace(r.inline(c))
		if text == "" {
			continue
		}
		if ordered {
			sb.WriteString(strconv.Itoa(index) + ". " + text + "\n")
		} else {
			sb.WriteString("- " + text + "\n")
		}
	}
}

func (r *renderer) table(sb *strings.Builder, n *html.Node) {
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Tr {
			var cells []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
					if text := normalizeSpace(r.inline(c)); text != "" {
						cells = append(cells, text)
					}
				}
			}
			if len(cells) > 0 {
				sb.WriteString(strings.Join(cells, " | ") + "\n")
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	sb.WriteString("\n")
}

// inline renders the children of n as a single line of markdown.
func (r *renderer) inline(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		r.inlineNode(&sb, c)
	}
	return sb.String()
}

func (r *renderer) inlineNode(sb *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.ElementNode:
	default:
		return
	}

	switch n.DataAtom {
	case atom.Strong, atom.B:
		if text := normalizeSpace(r.inline(n)); text != "" {
			sb.WriteString("**" + text + "**")
		}
	case atom.Em, atom.I:
		if text := normalizeSpace(r.inline(n)); text != "" {
			sb.WriteString("*" + text + "*")
		}
	case atom.Code:
		if text := strings.TrimSpace(textContent(n)); text != "" {
			sb.WriteString("`" + text + "`")
		}
	case atom.A:
		text := normalizeSpace(r.inline(n))
		href := r.absoluteHref(n)
		switch {
		case text == "":
		case href == "":
			sb.WriteString(text)
		default:
			sb.WriteString("[" + text + "](" + href + ")")
		}
	case atom.Img:
		sb.WriteString(r.image(n))
	case atom.Br:
		sb.WriteString(" ")
	default:
		sb.WriteString(r.inline(n))
	}
}

func (r *renderer) image(n *html.Node) string {
	src := attr(n, "src")
	if src == "" {
		return ""
	}
	if resolved := r.resolve(src); resolved != "" {
		src = resolved
	}
	return "![" + normalizeSpace(attr(n, "alt")) + "](" + src + ")"
}

func (r *renderer) absoluteHref(n *html.Node) string {
	href := attr(n, "href")
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	if resolved := r.resolve(href); resolved != "" {
		return resolved
	}
	return href
}

// resolve makes a reference absolute against the source URL.
func (r *renderer) resolve(ref string) string {
	if r.src == nil {
		return ""
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return r.src.ResolveReference(parsed).String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

var spaceRun = regexp.MustCompile(`\s+`)

// normalizeSpace collapses whitespace runs to single spaces.
func normalizeSpace(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}
