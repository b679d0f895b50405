package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/fractalglass/pkg/errors"
	"github.com/matzehuels/fractalglass/pkg/preset"
	"github.com/matzehuels/fractalglass/pkg/settings"
)

// savePresetRequest is the body of POST /api/presets. With Session set the
// preset captures that session's current settings; otherwise Settings are
// applied on top of the defaults.
type savePresetRequest struct {
	Name     string         `json:"name"`
	Session  string         `json:"session,omitempty"`
	Settings map[string]any `json:"settings,omitempty"`
}

func (s *Server) presetsEnabled(w http.ResponseWriter, r *http.Request) bool {
	if s.presets == nil {
		s.writeError(w, r, errors.New(errors.ErrCodeUnsupported, "presets are not configured"))
		return false
	}
	return true
}

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	if !s.presetsEnabled(w, r) {
		return
	}
	all, err := s.presets.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if all == nil {
		all = []preset.Preset{}
	}
	writeJSON(w, http.StatusOK, all)
}

func (s *Server) handleSavePreset(w http.ResponseWriter, r *http.Request) {
	if !s.presetsEnabled(w, r) {
		return
	}
	var req savePresetRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "preset body"))
		return
	}

	st := s.defaults()
	if req.Session != "" {
		sess, err := s.sessions.Get(r.Context(), req.Session)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		st = sess.Controller().Settings()
	}
	if err := st.Apply(req.Settings); err != nil {
		s.writeError(w, r, err)
		return
	}

	p, err := s.presets.Save(r.Context(), req.Name, st)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("preset saved", "name", p.Name)
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetPreset(w http.ResponseWriter, r *http.Request) {
	if !s.presetsEnabled(w, r) {
		return
	}
	p, err := s.presets.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePreset(w http.ResponseWriter, r *http.Request) {
	if !s.presetsEnabled(w, r) {
		return
	}
	if err := s.presets.Delete(r.Context(), chi.URLParam(r, "name")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleApplyPreset replaces the session's settings with the preset's and
// schedules a render.
func (s *Server) handleApplyPreset(w http.ResponseWriter, r *http.Request) {
	if !s.presetsEnabled(w, r) {
		return
	}
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	p, err := s.presets.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sess.Controller().Update(func(st *settings.Settings) { *st = p.Settings })
	writeJSON(w, http.StatusAccepted, infoFor(sess))
}
