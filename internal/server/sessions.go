package server

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/fractalglass/pkg/buildinfo"
	"github.com/matzehuels/fractalglass/pkg/controller"
	"github.com/matzehuels/fractalglass/pkg/errors"
	"github.com/matzehuels/fractalglass/pkg/pipeline"
	"github.com/matzehuels/fractalglass/pkg/session"
	"github.com/matzehuels/fractalglass/pkg/settings"
	"github.com/matzehuels/fractalglass/pkg/source"
)

// sessionInfo is the JSON view of a session.
type sessionInfo struct {
	ID        string            `json:"id"`
	Settings  settings.Settings `json:"settings"`
	HasImage  bool              `json:"has_image"`
	ImageName string            `json:"image_name,omitempty"`
	Renders   uint64            `json:"renders"`
	Pending   bool              `json:"pending"`
	ExpiresAt time.Time         `json:"expires_at"`
}

func infoFor(sess *session.Session) sessionInfo {
	c := sess.Controller()
	info := sessionInfo{
		ID:        sess.ID,
		Settings:  c.Settings(),
		Renders:   c.Last().Seq,
		Pending:   c.Pending(),
		ExpiresAt: sess.ExpiresAt(),
	}
	if img := c.Image(); !img.Empty() {
		info.HasImage = true
		info.ImageName = img.Name
	}
	return info
}

// renderEvent is the data of an SSE "rendered" event.
type renderEvent struct {
	Seq      uint64            `json:"seq"`
	Settings settings.Settings `json:"settings"`
	Strips   int               `json:"strips"`
	Millis   float64           `json:"ms"`
}

func eventFor(snap controller.Snapshot) renderEvent {
	return renderEvent{
		Seq:      snap.Seq,
		Settings: snap.Settings,
		Strips:   snap.Strips,
		Millis:   float64(snap.Duration.Microseconds()) / 1000,
	}
}

// lookup resolves the {id} path parameter and extends the session's life.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "id")
	if err := errors.ValidateSessionID(id); err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	sess, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	sess.Touch()
	return sess, true
}

func (s *Server) handleDefaults(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"settings": s.defaults(),
		"fields":   settings.Fields,
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, buildinfo.Get())
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var img *source.Image
	if isMultipart(r) {
		var err error
		img, err = s.readUpload(w, r, false)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	sess := s.newSession()
	if err := s.sessions.Set(r.Context(), sess); err != nil {
		sess.Close()
		s.writeError(w, r, err)
		return
	}
	if img != nil {
		sess.Controller().SetImage(img)
	}
	s.logger.Info("session created", "id", sess.ID, "image", img != nil)
	w.Header().Set("Location", "/api/sessions/"+sess.ID)
	writeJSON(w, http.StatusCreated, infoFor(sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, infoFor(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if err := s.sessions.Delete(r.Context(), sess.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("session closed", "id", sess.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetImage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	img, err := s.readUpload(w, r, true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sess.Controller().SetImage(img)
	s.logger.Debug("image replaced", "id", sess.ID, "name", img.Name, "bytes", len(img.Data))
	writeJSON(w, http.StatusAccepted, infoFor(sess))
}

// handlePatchSettings applies {"key": value} pairs. Values may be JSON
// numbers and booleans, or the strings an input element reports.
func (s *Server) handlePatchSettings(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var values map[string]any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := dec.Decode(&values); err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "settings body"))
		return
	}
	for k, v := range values {
		if str, isStr := v.(string); isStr {
			parsed, err := settings.ParseValue(k, str)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			values[k] = parsed
		}
	}
	if err := sess.Controller().Apply(values); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, infoFor(sess))
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(sess.Preview())
}

// handleExport renders the latest snapshot through the pipeline. Before
// the first render it uses the current settings and image.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	format := strings.ToLower(chi.URLParam(r, "format"))
	if err := pipeline.ValidateFormat(format); err != nil {
		s.writeError(w, r, err)
		return
	}

	c := sess.Controller()
	snap := c.Last()
	st, img := snap.Settings, snap.Image
	if snap.Seq == 0 {
		st, img = c.Settings(), c.Image()
	}
	if img.Empty() {
		s.writeError(w, r, errors.New(errors.ErrCodeNoImage, "no image selected"))
		return
	}

	opts := s.exportOptions(format)
	opts.Input.Image = img
	opts.Settings = st
	opts.Page = format == pipeline.FormatHTML && r.URL.Query().Has("page")
	opts.Refresh = r.URL.Query().Has("refresh")

	res, err := s.runner.Execute(r.Context(), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data := res.Artifacts[format]
	w.Header().Set("Content-Type", pipeline.ContentTypes[format])
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="fractal-glass.%s"`, format))
	if len(res.CacheInfo.Hits) > 0 {
		w.Header().Set("X-Cache", "hit")
	} else {
		w.Header().Set("X-Cache", "miss")
	}
	_, _ = w.Write(data)
}

// handleEvents streams a "rendered" event after every render of the
// session until the client goes away or the session closes.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, r, errors.New(errors.ErrCodeUnsupported, "streaming not supported"))
		return
	}

	events, cancel := sess.Subscribe()
	defer cancel()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeEvent(w, "ready", infoFor(sess))
	flusher.Flush()

	keepAlive := time.NewTicker(15 * time.Second)
	defer keepAlive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case snap, open := <-events:
			if !open {
				writeEvent(w, "closed", map[string]string{"id": sess.ID})
				flusher.Flush()
				return
			}
			sess.Touch()
			writeEvent(w, "rendered", eventFor(snap))
			flusher.Flush()
		case <-keepAlive.C:
			_, _ = io.WriteString(w, ": keep-alive\n\n")
			flusher.Flush()
		}
	}
}

func writeEvent(w io.Writer, name string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// readUpload reads the multipart "image" field. With required unset a
// missing field yields a nil image and no error.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, required bool) (*source.Image, error) {
	max := s.cfg.Server.MaxUploadBytes()
	if max > 0 {
		// Leave room for the multipart envelope; the file itself is checked
		// against max below.
		r.Body = http.MaxBytesReader(w, r.Body, max+1<<20)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if stderrors.As(err, &tooBig) {
			return nil, errors.New(errors.ErrCodeTooLarge, "upload exceeds %d bytes", max)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse upload")
	}
	file, hdr, err := r.FormFile("image")
	if stderrors.Is(err, http.ErrMissingFile) {
		if required {
			return nil, errors.New(errors.ErrCodeInvalidInput, "missing \"image\" field")
		}
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read upload")
	}
	defer file.Close()

	if err := errors.ValidateUpload(hdr.Filename, hdr.Size, max); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read upload")
	}
	img, err := source.New(hdr.Filename, hdr.Header.Get("Content-Type"), data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidImage, err, "upload %s", hdr.Filename)
	}
	if _, _, err := img.Size(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidImage, err, "decode %s", hdr.Filename)
	}
	return img, nil
}
