package server

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"net/url"

	"github.com/gogpu/ggar"
	"github.com/gogpu/ggar/handoff"
	"github.com/gogpu/ggar/store"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type viewerPage struct {
	DesignID   string
	TextureURL string
	Width      int
	Height     int
	Background string
}

// viewer renders the AR page for ?designId=. Any failure to find the design
// renders the unavailable page.
func (s *Server) viewer(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get(handoff.ParamDesignID)
	snap, err := s.svc.Lookup(r.Context(), id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			ggar.Logger().Error("server: viewer lookup", "design_id", id, "error", err)
		}
		s.render(w, http.StatusNotFound, "unavailable.html", nil)
		return
	}
	s.render(w, http.StatusOK, "viewer.html", viewerPage{
		DesignID:   snap.ID,
		TextureURL: "/api/designs/" + url.PathEscape(snap.ID) + "/texture.png",
		Width:      snap.Canvas.Width,
		Height:     snap.Canvas.Height,
		Background: snap.Canvas.Background,
	})
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		ggar.Logger().Error("server: render page", "page", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
