package api

import (
	"errors"
	"io/fs"
	"net/http"
)

// spaFileSystem serves a built single-page frontend, falling back to
// index.html for paths the router resolves client-side.
type spaFileSystem struct {
	root http.FileSystem
}

// Open opens the named file. If the file does not exist, it falls back to index.html.
func (s *spaFileSystem) Open(name string) (http.File, error) {
	f, err := s.root.Open(name)
	if errors.Is(err, fs.ErrNotExist) {
		return s.root.Open("index.html")
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// NewSPAHandler serves the frontend found in fsys.
func NewSPAHandler(fsys fs.FS) http.Handler {
	return http.FileServer(&spaFileSystem{root: http.FS(fsys)})
}
