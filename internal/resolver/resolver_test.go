package resolver

import (
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/tessera/tessera/internal/model"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestNormalizeOrigin(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want string
	}{
		{"https://News.Example/path", "https://news.example"},
		{"https://www.news.example/path", "https://news.example"},
		{"https://news.example:443/", "https://news.example"},
		{"http://news.example:80/", "http://news.example"},
		{"http://news.example:8080/", "http://news.example:8080"},
		{"HTTPS://WWW.NEWS.EXAMPLE", "https://news.example"},
	}

	for _, tc := range cases {
		got := NormalizeOrigin(mustParse(t, tc.raw))
		if got != tc.want {
			t.Errorf("NormalizeOrigin(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestNormalizeSlug(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want string
	}{
		{"news", "/news"},
		{"/news/", "/news"},
		{"  news  ", "/news"},
		{"", ""},
		{"/", ""},
	}

	for _, tc := range cases {
		if got := NormalizeSlug(tc.raw); got != tc.want {
			t.Errorf("NormalizeSlug(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func testSnapshot() *Snapshot {
	now := time.Now().UTC()
	pub := &model.Publisher{
		ID:        "pub-1",
		Name:      "Example News",
		Slug:      "news",
		Website:   "https://news.example",
		Active:    true,
		CreatedAt: now,
	}
	inactive := &model.Publisher{
		ID:      "pub-2",
		Name:    "Gone Press",
		Slug:    "gone",
		Website: "https://gone.example",
		Active:  false,
	}
	rootPub := &model.Publisher{
		ID:      "pub-3",
		Name:    "Whole Site",
		Slug:    "",
		Website: "https://docs.example",
		Active:  true,
	}

	return &Snapshot{
		Publishers: []*model.Publisher{pub, inactive, rootPub},
		Endpoints: map[string][]*model.Endpoint{
			"pub-1": {
				{ID: "ep-1", PublisherID: "pub-1", PathTemplate: "/articles/:id", PriceUSD: 0.10, Active: true},
				{ID: "ep-2", PublisherID: "pub-1", PathTemplate: "/archive", PriceUSD: 0.05, Active: true},
				{ID: "ep-3", PublisherID: "pub-1", PathTemplate: "/drafts/:id", PriceUSD: 0.10, Active: false},
			},
			"pub-2": {
				{ID: "ep-4", PublisherID: "pub-2", PathTemplate: "/articles/:id", PriceUSD: 0.10, Active: true},
			},
			"pub-3": {
				{ID: "ep-5", PublisherID: "pub-3", PathTemplate: "/guides/:section/:page", PriceUSD: 0.25, Active: true},
			},
		},
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	r := New()
	r.Swap(testSnapshot())

	cases := []struct {
		name         string
		url          string
		wantEndpoint string
		wantUpstream string
		wantReason   Reason
		wantOK       bool
	}{
		{
			name:         "template_match",
			url:          "https://news.example/news/articles/42",
			wantEndpoint: "ep-1",
			wantUpstream: "/articles/42",
			wantOK:       true,
		},
		{
			name:         "literal_match",
			url:          "https://news.example/news/archive",
			wantEndpoint: "ep-2",
			wantUpstream: "/archive",
			wantOK:       true,
		},
		{
			name:         "www_and_case_normalized",
			url:          "https://WWW.News.Example/news/articles/7",
			wantEndpoint: "ep-1",
			wantUpstream: "/articles/7",
			wantOK:       true,
		},
		{
			name:         "trailing_slash",
			url:          "https://news.example/news/articles/42/",
			wantEndpoint: "ep-1",
			wantUpstream: "/articles/42",
			wantOK:       true,
		},
		{
			name:         "empty_slug_multi_capture",
			url:          "https://docs.example/guides/http/status-codes",
			wantEndpoint: "ep-5",
			wantUpstream: "/guides/http/status-codes",
			wantOK:       true,
		},
		{
			name:       "unknown_host",
			url:        "https://unknown.example/news/articles/42",
			wantReason: ReasonNoPublisher,
		},
		{
			name:       "wrong_slug",
			url:        "https://news.example/blog/articles/42",
			wantReason: ReasonNoPublisher,
		},
		{
			name:       "slug_not_on_boundary",
			url:        "https://news.example/newsletter/articles/42",
			wantReason: ReasonNoPublisher,
		},
		{
			name:       "no_matching_template",
			url:        "https://news.example/news/videos/42",
			wantReason: ReasonNoEndpoint,
		},
		{
			name:       "inactive_endpoint",
			url:        "https://news.example/news/drafts/42",
			wantReason: ReasonNoEndpoint,
		},
		{
			name:       "inactive_publisher",
			url:        "https://gone.example/gone/articles/42",
			wantReason: ReasonNoPublisher,
		},
		{
			name:       "segment_count_mismatch",
			url:        "https://news.example/news/articles/42/comments",
			wantReason: ReasonNoEndpoint,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			match, reason, ok := r.Resolve(mustParse(t, tc.url))
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v (reason %q)", ok, tc.wantOK, reason)
			}
			if !tc.wantOK {
				if reason != tc.wantReason {
					t.Errorf("reason = %q, want %q", reason, tc.wantReason)
				}
				return
			}
			if match.Endpoint.ID != tc.wantEndpoint {
				t.Errorf("endpoint = %s, want %s", match.Endpoint.ID, tc.wantEndpoint)
			}
			if match.UpstreamPath != tc.wantUpstream {
				t.Errorf("upstream path = %q, want %q", match.UpstreamPath, tc.wantUpstream)
			}
		})
	}
}

func TestResolve_EmptySnapshot(t *testing.T) {
	t.Parallel()

	r := New()
	_, reason, ok := r.Resolve(mustParse(t, "https://news.example/news/articles/42"))
	if ok {
		t.Fatal("empty snapshot should not resolve anything")
	}
	if reason != ReasonNoPublisher {
		t.Errorf("reason = %q, want %q", reason, ReasonNoPublisher)
	}
}

func TestResolve_ConcurrentSwap(t *testing.T) {
	t.Parallel()

	r := New()
	r.Swap(testSnapshot())
	target := mustParse(t, "https://news.example/news/articles/42")

	stop := make(chan struct{})
	swapperDone := make(chan struct{})
	go func() {
		defer close(swapperDone)
		for {
			select {
			case <-stop:
				return
			default:
				r.Swap(testSnapshot())
			}
		}
	}()

	var readers sync.WaitGroup
	for i := 0; i < 4; i++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for j := 0; j < 1000; j++ {
				match, _, ok := r.Resolve(target)
				if !ok || match.Endpoint.ID != "ep-1" {
					t.Errorf("resolution changed under concurrent swap")
					return
				}
			}
		}()
	}

	readers.Wait()
	close(stop)
	<-swapperDone
}
