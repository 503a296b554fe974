package normalize

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// minContentScore is the minimum score a candidate region must reach.
// Below it the document has no clear main content and the whole body
// is converted instead.
const minContentScore = 100.0

// mainContent picks the best article-like region under body. The
// second return is true when extraction fell back to the whole body.
func mainContent(body *html.Node) (*html.Node, bool) {
	// An explicit <article> or <main> wins outright when present and
	// non-trivial.
	for _, tag := range []atom.Atom{atom.Article, atom.Main} {
		if n := findElement(body, tag); n != nil && scoreNode(n) >= minContentScore {
			return n, false
		}
	}

	var best *html.Node
	var bestScore float64

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && isCandidate(n.DataAtom) {
			if s := scoreNode(n); s > bestScore {
				best, bestScore = n, s
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(body)

	if best != nil && bestScore >= minContentScore {
		return best, false
	}
	return body, true
}

func isCandidate(tag atom.Atom) bool {
	switch tag {
	case atom.Article, atom.Main, atom.Section, atom.Div:
		return true
	}
	return false
}

// scoreNode rates a region by how much running prose it holds:
// paragraph text length discounted by link density, plus a bonus per
// paragraph. Navigation blocks score near zero because their text
// lives inside links.
func scoreNode(n *html.Node) float64 {
	var textLen, linkLen, paragraphs float64

	var walk func(n *html.Node, inLink bool)
	walk = func(n *html.Node, inLink bool) {
		switch n.Type {
		case html.TextNode:
			l := float64(len(strings.TrimSpace(n.Data)))
			textLen += l
			if inLink {
				linkLen += l
			}
			return
		case html.ElementNode:
			if n.DataAtom == atom.A {
				inLink = true
			}
			if n.DataAtom == atom.P {
				paragraphs++
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inLink)
		}
	}
	walk(n, false)

	if textLen == 0 {
		return 0
	}
	linkDensity := linkLen / textLen
	return textLen*(1-linkDensity) + 25*paragraphs
}
