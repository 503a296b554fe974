package resolver

import (
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/tessera/tessera/internal/model"
)

// Reason explains a failed resolution. Callers surface the same 404
// either way; the split exists for operator diagnostics.
type Reason string

const (
	ReasonNoPublisher Reason = "no_publisher"
	ReasonNoEndpoint  Reason = "no_endpoint"
)

// Match is a successful resolution: the owning publisher, the priced
// endpoint, and the endpoint's path template with the target URL's
// captured segments substituted in.
type Match struct {
	Publisher    *model.Publisher
	Endpoint     *model.Endpoint
	UpstreamPath string
}

// Snapshot is an immutable view of the active publishers and their
// endpoints. Snapshots are replaced whole; a reader sees old or new,
// never a mix.
type Snapshot struct {
	Publishers []*model.Publisher
	Endpoints  map[string][]*model.Endpoint // keyed by publisher ID
}

// Resolver resolves target URLs against the current snapshot.
type Resolver struct {
	snapshot atomic.Pointer[Snapshot]
}

// New returns a Resolver primed with an empty snapshot.
func New() *Resolver {
	r := &Resolver{}
	r.snapshot.Store(&Snapshot{Endpoints: map[string][]*model.Endpoint{}})
	return r
}

// Swap atomically replaces the snapshot.
func (r *Resolver) Swap(s *Snapshot) {
	r.snapshot.Store(s)
}

// Size returns the publisher count of the current snapshot.
func (r *Resolver) Size() int {
	return len(r.snapshot.Load().Publishers)
}

// Resolve maps a target URL to a (publisher, endpoint) pair. It never
// errors: a false second return means the content is not integrated,
// and the Reason says whether the publisher or its endpoint was the
// missing piece.
func (r *Resolver) Resolve(target *url.URL) (*Match, Reason, bool) {
	snap := r.snapshot.Load()

	origin := NormalizeOrigin(target)
	path := cleanPath(target.Path)

	for _, pub := range snap.Publishers {
		if !pub.Active {
			continue
		}

		site, err := url.Parse(pub.Website)
		if err != nil {
			continue
		}
		if NormalizeOrigin(site) != origin {
			continue
		}

		slug := NormalizeSlug(pub.Slug)
		rest, ok := stripSlug(path, slug)
		if !ok {
			continue
		}

		for _, ep := range snap.Endpoints[pub.ID] {
			if !ep.Active {
				continue
			}
			upstream, ok := matchTemplate(ep.PathTemplate, rest)
			if !ok {
				continue
			}
			return &Match{Publisher: pub, Endpoint: ep, UpstreamPath: upstream}, "", true
		}

		// Publisher claimed the URL but prices nothing under it.
		return nil, ReasonNoEndpoint, false
	}

	return nil, ReasonNoPublisher, false
}

// cleanPath canonicalizes a request path: ensure a leading slash, drop
// a trailing one.
func cleanPath(p string) string {
	p = "/" + strings.Trim(p, "/")
	if p == "/" {
		return ""
	}
	return p
}

// stripSlug removes the publisher slug prefix from a path. The slug
// must match on a segment boundary.
func stripSlug(path, slug string) (string, bool) {
	if slug == "" {
		return path, true
	}
	if path == slug {
		return "", true
	}
	if strings.HasPrefix(path, slug+"/") {
		return path[len(slug):], true
	}
	return "", false
}

// matchTemplate matches a concrete path against an endpoint template,
// segment by segment. A ":name" segment captures the concrete segment;
// other segments must match literally. On success it returns the
// template with captures substituted, ready for the upstream call.
func matchTemplate(template, path string) (string, bool) {
	tmplSegs := splitSegments(template)
	pathSegs := splitSegments(path)

	if len(tmplSegs) != len(pathSegs) {
		return "", false
	}

	out := make([]string, len(tmplSegs))
	for i, seg := range tmplSegs {
		if strings.HasPrefix(seg, ":") {
			if pathSegs[i] == "" {
				return "", false
			}
			out[i] = pathSegs[i]
			continue
		}
		if seg != pathSegs[i] {
			return "", false
		}
		out[i] = seg
	}

	if len(out) == 0 {
		return "", true
	}
	return "/" + strings.Join(out, "/"), true
}

func splitSegments(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
