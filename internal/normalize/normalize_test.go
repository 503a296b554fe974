package normalize

import (
	"net/url"
	"strings"
	"testing"
)

func src(t *testing.T) *url.URL {
	t.Helper()
	u, err := url.Parse("https://news.example/news/articles/42")
	if err != nil {
		t.Fatal(err)
	}
	return u
}

// article builds a page whose <article> holds enough prose to win
// extraction over the surrounding chrome.
const articlePage = `<!DOCTYPE html>
<html>
<head><title>  The Article Title  </title><style>p{color:red}</style></head>
<body>
<header><h1>Site Name</h1></header>
<nav><a href="/">Home</a> <a href="/about">About</a> <a href="/contact">Contact</a></nav>
<article>
<h1>Deep Dive</h1>
<p>This opening paragraph carries a good amount of running prose so the
scoring heuristic sees genuine article text rather than navigation.</p>
<p>A second paragraph with a <a href="/related">related piece</a> and
<strong>bold words</strong> plus <em>emphasis</em> and <code>inline code</code>.</p>
<ul><li>First point</li><li>Second point</li></ul>
<blockquote><p>Quoted wisdom.</p></blockquote>
<pre>fmt.Println("hello")</pre>
</article>
<aside>Subscribe to our newsletter for more!</aside>
<footer>Copyright 2026</footer>
<script>track()</script>
</body>
</html>`

func TestDocument_Extraction(t *testing.T) {
	t.Parallel()

	res := Document([]byte(articlePage), src(t))

	if res.Fallback {
		t.Fatal("article page should not fall back")
	}
	if res.Title != "The Article Title" {
		t.Errorf("title = %q", res.Title)
	}

	md := res.Markdown
	for _, want := range []string{
		"# Deep Dive",
		"running prose",
		"**bold words**",
		"*emphasis*",
		"`inline code`",
		"- First point",
		"- Second point",
		"> Quoted wisdom.",
		"```\nfmt.Println(\"hello\")\n```",
		"[related piece](https://news.example/related)",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q\n---\n%s", want, md)
		}
	}

	for _, banned := range []string{
		"Home",
		"Subscribe to our newsletter",
		"Copyright 2026",
		"track()",
		"color:red",
	} {
		if strings.Contains(md, banned) {
			t.Errorf("markdown should not contain %q\n---\n%s", banned, md)
		}
	}
}

func TestDocument_Fallback(t *testing.T) {
	t.Parallel()

	// Too little prose anywhere: extraction gives up and converts the
	// whole body.
	page := `<html><head><title>Tiny</title></head><body><p>Short.</p></body></html>`
	res := Document([]byte(page), src(t))

	if !res.Fallback {
		t.Fatal("sparse page should fall back to whole-body conversion")
	}
	if !strings.Contains(res.Markdown, "Short.") {
		t.Errorf("fallback should keep body text, got %q", res.Markdown)
	}
}

func TestDocument_Deterministic(t *testing.T) {
	t.Parallel()

	first := Document([]byte(articlePage), src(t))
	for i := 0; i < 5; i++ {
		again := Document([]byte(articlePage), src(t))
		if again != first {
			t.Fatal("same input must produce the same result")
		}
	}
}

func TestDocument_HiddenNodesStripped(t *testing.T) {
	t.Parallel()

	page := `<html><body><div>
<p>Visible paragraph with plenty of words to make the extraction
heuristic comfortable scoring this region as the main content area.</p>
<p>Another visible paragraph keeps the score comfortably high enough.</p>
<p hidden>Hidden attribute text.</p>
<p aria-hidden="true">Aria hidden text.</p>
<p style="display: none">Styled away text.</p>
<p style="visibility:hidden">Invisible text.</p>
</div></body></html>`

	res := Document([]byte(page), src(t))
	for _, banned := range []string{"Hidden attribute", "Aria hidden", "Styled away", "Invisible text"} {
		if strings.Contains(res.Markdown, banned) {
			t.Errorf("hidden content %q leaked into output", banned)
		}
	}
	if !strings.Contains(res.Markdown, "Visible paragraph") {
		t.Error("visible content missing")
	}
}

func TestDocument_OrderedList(t *testing.T) {
	t.Parallel()

	page := `<html><body><article>
<p>Enough surrounding prose that the article region scores above the
extraction threshold and the list below survives into the output.</p>
<p>More words here to pad the score past the minimum requirement.</p>
<ol><li>Alpha</li><li>Beta</li><li>Gamma</li></ol>
</article></body></html>`

	res := Document([]byte(page), src(t))
	for _, want := range []string{"1. Alpha", "2. Beta", "3. Gamma"} {
		if !strings.Contains(res.Markdown, want) {
			t.Errorf("markdown missing %q\n---\n%s", want, res.Markdown)
		}
	}
}

func TestDocument_MalformedMarkup(t *testing.T) {
	t.Parallel()

	page := `<p>Unclosed paragraph <b>bold run on <div>stray div</p></b>`
	res := Document([]byte(page), src(t))
	if res.Markdown == "" {
		t.Error("malformed markup should still produce output")
	}
}

func TestCollapseBlankLines(t *testing.T) {
	t.Parallel()

	in := "\n\n\nfirst\n\n\n\nsecond\n\n \t\nthird\n\n\n"
	want := "first\n\nsecond\n\nthird"
	if got := collapseBlankLines(in); got != want {
		t.Errorf("collapseBlankLines = %q, want %q", got, want)
	}
}

func TestDocument_RelativeImageResolved(t *testing.T) {
	t.Parallel()

	page := `<html><body><article>
<p>Sufficient prose in this paragraph so the scoring pass treats the
article element as the page's true main content region for rendering.</p>
<p>Second paragraph to push the region score past the threshold.</p>
<img src="/img/chart.png" alt="chart">
</article></body></html>`

	res := Document([]byte(page), src(t))
	if !strings.Contains(res.Markdown, "![chart](https://news.example/img/chart.png)") {
		t.Errorf("image not resolved: %s", res.Markdown)
	}
}
