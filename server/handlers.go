package server

import (
	"encoding/json"
	"errors"
	"image/png"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gogpu/ggar"
	"github.com/gogpu/ggar/codec"
	"github.com/gogpu/ggar/compose"
	"github.com/gogpu/ggar/design"
	"github.com/gogpu/ggar/store"
)

// StateUnavailable is the state reported for missing or expired designs.
const StateUnavailable = "unavailable"

type handoffResponse struct {
	DesignID string `json:"designId"`
	URL      string `json:"url"`
	QR       string `json:"qr"`
}

type errorResponse struct {
	State string `json:"state,omitempty"`
	Error string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= http.StatusInternalServerError {
		ggar.Logger().Error("server: request failed",
			"path", r.URL.Path, "error", err, "request_id", middleware.GetReqID(r.Context()))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeUnavailable(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, errorResponse{State: StateUnavailable})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok\n")
}

func (s *Server) createHandoff(w http.ResponseWriter, r *http.Request) {
	var snap design.Snapshot
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err := dec.Decode(&snap); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if snap.Canvas == (design.Canvas{}) {
		snap.Canvas = design.DefaultCanvas()
	}
	snap.NormalizeText()

	prepared := s.svc.Prepare(&snap)
	if err := s.comp.Admit(prepared); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	ticket, err := s.svc.Handoff(r.Context(), prepared)
	switch {
	case err == nil:
	case errors.Is(err, design.ErrInvalidSnapshot), errors.Is(err, store.ErrInvalidID):
		writeError(w, r, http.StatusBadRequest, err)
		return
	case errors.Is(err, store.ErrExists):
		writeError(w, r, http.StatusConflict, err)
		return
	default:
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, handoffResponse{
		DesignID: ticket.DesignID,
		URL:      ticket.Code.URL,
		QR:       ticket.Code.DataURI(),
	})
}

// lookup fetches the design named by the {id} route parameter. It writes
// the response and returns nil when the design is unavailable.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) *design.Snapshot {
	snap, err := s.svc.Lookup(r.Context(), chi.URLParam(r, "id"))
	switch {
	case err == nil:
		return snap
	case errors.Is(err, store.ErrNotFound):
		writeUnavailable(w)
	default:
		writeError(w, r, http.StatusInternalServerError, err)
	}
	return nil
}

func (s *Server) getDesign(w http.ResponseWriter, r *http.Request) {
	snap := s.lookup(w, r)
	if snap == nil {
		return
	}
	data, err := codec.Encode(snap)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(data)
}

func (s *Server) deleteDesign(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Forget(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) texturePNG(w http.ResponseWriter, r *http.Request) {
	snap := s.lookup(w, r)
	if snap == nil {
		return
	}
	bmp, err := s.comp.Compose(r.Context(), snap)
	switch {
	case err == nil:
	case errors.Is(err, compose.ErrResourceNotReady):
		w.Header().Set("Retry-After", "1")
		writeError(w, r, http.StatusServiceUnavailable, err)
		return
	default:
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, bmp); err != nil {
		ggar.Logger().Warn("server: write texture", "design_id", snap.ID, "error", err)
	}
}

func (s *Server) qrPNG(w http.ResponseWriter, r *http.Request) {
	snap := s.lookup(w, r)
	if snap == nil {
		return
	}
	code, err := s.svc.Code(snap.ID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(code.PNG)
}
