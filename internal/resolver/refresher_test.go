package resolver

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"testing"

	"github.com/tessera/tessera/internal/model"
)

type fakeSource struct {
	publishers []*model.Publisher
	endpoints  []*model.Endpoint
	err        error
}

func (s *fakeSource) ListActivePublishers(context.Context) ([]*model.Publisher, error) {
	return s.publishers, s.err
}

func (s *fakeSource) ListActiveEndpoints(context.Context) ([]*model.Endpoint, error) {
	return s.endpoints, s.err
}

func TestRefresher_Refresh(t *testing.T) {
	t.Parallel()

	source := &fakeSource{
		publishers: []*model.Publisher{
			{ID: "pub-1", Name: "Example News", Slug: "news", Website: "https://news.example", Active: true},
		},
		endpoints: []*model.Endpoint{
			{ID: "ep-1", PublisherID: "pub-1", PathTemplate: "/articles/:id", PriceUSD: 0.10, Active: true},
		},
	}

	r := New()
	refresher := NewRefresher(r, source, slog.Default(), nil, 0)

	if err := refresher.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if r.Size() != 1 {
		t.Fatalf("snapshot size = %d, want 1", r.Size())
	}

	target, _ := url.Parse("https://news.example/news/articles/9")
	match, _, ok := r.Resolve(target)
	if !ok || match.Endpoint.ID != "ep-1" {
		t.Fatal("refreshed snapshot should resolve the registered endpoint")
	}
}

func TestRefresher_FailureKeepsSnapshot(t *testing.T) {
	t.Parallel()

	source := &fakeSource{
		publishers: []*model.Publisher{
			{ID: "pub-1", Name: "Example News", Slug: "news", Website: "https://news.example", Active: true},
		},
		endpoints: []*model.Endpoint{
			{ID: "ep-1", PublisherID: "pub-1", PathTemplate: "/articles/:id", PriceUSD: 0.10, Active: true},
		},
	}

	r := New()
	refresher := NewRefresher(r, source, slog.Default(), nil, 0)
	if err := refresher.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	source.err = errors.New("store down")
	if err := refresher.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}

	// The previous snapshot keeps serving.
	target, _ := url.Parse("https://news.example/news/articles/9")
	if _, _, ok := r.Resolve(target); !ok {
		t.Fatal("failed refresh must not clear the previous snapshot")
	}
}
