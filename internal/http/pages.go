package httpserver

import (
	"bytes"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"path/filepath"
	"regexp"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

var pageNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func (s *Server) registerPages() {
	static := http.StripPrefix("/static/", http.FileServer(filesOnly{http.Dir(s.cfg.StaticDir)}))
	s.router.Handle("/static/*", static)

	s.router.Get("/sw.js", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, s.cfg.ServiceWorkerPath)
	})
	s.router.Get("/manifest.json", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, filepath.Join(s.cfg.StaticDir, "manifest.json"))
	})

	s.router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		s.renderPage(w, r, "index")
	})
	s.router.Get("/{page}", func(w http.ResponseWriter, r *http.Request) {
		s.renderPage(w, r, chi.URLParam(r, "page"))
	})
}

// filesOnly hides directories so the file server never renders a listing.
type filesOnly struct {
	root http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.root.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, fs.ErrNotExist
	}
	return file, nil
}

// renderPage executes TEMPLATE_DIR/<name>.html. Templates are parsed per
// request so edits show up without a restart.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, name string) {
	if !pageNamePattern.MatchString(name) {
		http.NotFound(w, r)
		return
	}

	tmpl, err := template.ParseFiles(filepath.Join(s.cfg.TemplateDir, name+".html"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		s.logger.Error("parse page template", zap.String("page", name), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, nil); err != nil {
		s.logger.Error("render page", zap.String("page", name), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
