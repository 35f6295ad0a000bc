package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/assetc/internal/pipeline"
)

// staticFiles serves compiled artifacts from the destination roots. The
// first root holding the file wins.
type staticFiles struct {
	roots []string
	mount string
	index string
}

func (s staticFiles) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.mounted(r.URL.Path) {
		http.NotFound(w, r)
		return
	}

	rel := pipeline.NewRequest(r.Method, r.URL.Path, s.mount, s.index).Path
	for _, root := range s.roots {
		f, err := os.Open(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			continue
		}
		info, err := f.Stat()
		if err != nil || info.IsDir() {
			_ = f.Close()
			continue
		}
		http.ServeContent(w, r, info.Name(), info.ModTime(), f)
		_ = f.Close()
		return
	}
	http.NotFound(w, r)
}

func (s staticFiles) mounted(p string) bool {
	m := strings.Trim(s.mount, "/")
	if m == "" {
		return true
	}
	m = "/" + m
	return p == m || strings.HasPrefix(p, m+"/")
}
