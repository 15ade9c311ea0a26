/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package site

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/ssiautomations/website/httpserver/middleware"
	"github.com/ssiautomations/website/log"
)

const (
	indexFile    = "index.html"
	notFoundFile = "404.html"
)

// staticHandler serves an exported site: "/about" resolves to about.html or about/index.html,
// unknown paths get 404.html when the export has one.
type staticHandler struct {
	fsys       fs.FS
	fileServer http.Handler
}

func newStaticHandler(dir string) *staticHandler {
	fsys := os.DirFS(dir)
	return &staticHandler{fsys: fsys, fileServer: http.FileServer(http.FS(fsys))}
}

func (h *staticHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		rw.Header().Set("Allow", "GET, HEAD")
		http.Error(rw, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	name, ok := h.resolve(r.URL.Path)
	if !ok {
		h.serveNotFound(rw, r)
		return
	}
	if name == r.URL.Path {
		h.fileServer.ServeHTTP(rw, r)
		return
	}
	r2 := r.Clone(r.Context())
	r2.URL.Path = name
	h.fileServer.ServeHTTP(rw, r2)
}

// resolve maps a URL path to a URL path of an existing file.
func (h *staticHandler) resolve(urlPath string) (string, bool) {
	clean := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	if clean == "" {
		clean = "."
	}
	if !fs.ValidPath(clean) {
		return "", false
	}

	candidates := []string{clean}
	if clean != "." && !strings.HasSuffix(clean, ".html") {
		candidates = append(candidates, clean+".html")
	}
	for _, c := range candidates {
		info, err := fs.Stat(h.fsys, c)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			if c == clean {
				return urlPath, true
			}
			return "/" + c, true
		}
		if _, err = fs.Stat(h.fsys, path.Join(c, indexFile)); err == nil {
			// FileServer serves index.html for directories and redirects to the trailing slash form.
			return urlPath, true
		}
	}
	return "", false
}

func (h *staticHandler) serveNotFound(rw http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.fsys, notFoundFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			middleware.LoggerOrDisabled(r.Context()).Error("error reading 404 page", log.Error(err))
		}
		http.NotFound(rw, r)
		return
	}
	rw.Header().Set("Content-Type", "text/html; charset=utf-8")
	rw.WriteHeader(http.StatusNotFound)
	if r.Method != http.MethodHead {
		_, _ = rw.Write(data)
	}
}
