package pipeline

import (
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/conneroisu/assetc/internal/backend"
)

// Request is the per-request state shared by the backends that run for one
// incoming request.
type Request struct {
	ID     string
	Method string
	URL    string
	// Path is the normalized request path: cleaned, mount prefix removed and
	// the index file appended to directory requests.
	Path     string
	Basename string
	// Matches counts the backends that produced output so far.
	Matches int
	// Active is the backend whose pipeline is running.
	Active *backend.Descriptor
}

// NewRequest builds the request state for method and rawURL.
func NewRequest(method, rawURL, mount, indexFile string) *Request {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	dir := p == "" || strings.HasSuffix(p, "/")
	p = path.Clean("/" + p)

	if m := normalizeMount(mount); m != "" {
		switch {
		case p == m:
			p = "/"
			dir = true
		case strings.HasPrefix(p, m+"/"):
			p = p[len(m):]
		}
	}
	if dir && indexFile != "" {
		p = path.Join(p, indexFile)
	}

	return &Request{
		ID:       uuid.NewString(),
		Method:   method,
		URL:      rawURL,
		Path:     p,
		Basename: path.Base(p),
	}
}

func normalizeMount(mount string) string {
	m := strings.Trim(mount, "/")
	if m == "" {
		return ""
	}
	return path.Clean("/" + m)
}
