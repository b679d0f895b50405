package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/fractalglass/pkg/buildinfo"
	"github.com/matzehuels/fractalglass/pkg/config"
	"github.com/matzehuels/fractalglass/pkg/controls"
	"github.com/matzehuels/fractalglass/pkg/errors"
	"github.com/matzehuels/fractalglass/pkg/preset"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 255 / w), G: 90, B: uint8(y * 255 / h), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Controller.Debounce = config.Duration{Duration: 10 * time.Millisecond}
	cfg.Render.Width = 200
	return cfg
}

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	s := New(testConfig(), opts...)
	t.Cleanup(func() { s.Close() })
	return s
}

func uploadBody(t *testing.T, name string, data []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", name)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(data)
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func do(t *testing.T, h http.Handler, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func doJSON(t *testing.T, h http.Handler, method, path string, v any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return do(t, h, method, path, bytes.NewReader(data), "application/json")
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) errors.Code {
	t.Helper()
	return decode[errorBody](t, rec).Error.Code
}

func createSession(t *testing.T, h http.Handler, withImage bool) sessionInfo {
	t.Helper()
	var rec *httptest.ResponseRecorder
	if withImage {
		body, ct := uploadBody(t, "test.png", testPNG(t, 40, 20))
		rec = do(t, h, http.MethodPost, "/api/sessions", body, ct)
	} else {
		rec = do(t, h, http.MethodPost, "/api/sessions", nil, "")
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: %d %s", rec.Code, rec.Body.String())
	}
	return decode[sessionInfo](t, rec)
}

// waitFor polls the session until cond holds.
func waitFor(t *testing.T, h http.Handler, id string, cond func(sessionInfo) bool) sessionInfo {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		rec := do(t, h, http.MethodGet, "/api/sessions/"+id, nil, "")
		info := decode[sessionInfo](t, rec)
		if cond(info) {
			return info
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not reached, last info %+v", info)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestIndex(t *testing.T) {
	h := newTestServer(t).Handler()
	rec := do(t, h, http.MethodGet, "/", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{`id="controlsPanel"`, controls.Placeholder, `id="fileInput"`, ".cell {", "EventSource"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestDefaults(t *testing.T) {
	h := newTestServer(t).Handler()
	rec := do(t, h, http.MethodGet, "/api/defaults", nil, "")
	got := decode[struct {
		Settings map[string]any  `json:"settings"`
		Fields   []map[string]any `json:"fields"`
	}](t, rec)
	if got.Settings["steps"] != float64(33) || len(got.Fields) != 9 {
		t.Errorf("defaults = %+v", got)
	}
}

func TestVersion(t *testing.T) {
	h := newTestServer(t).Handler()
	got := decode[buildinfo.Info](t, do(t, h, http.MethodGet, "/api/version", nil, ""))
	if got.Version == "" || got.GoVersion == "" {
		t.Errorf("version = %+v", got)
	}
}

func TestSessionLifecycle(t *testing.T) {
	h := newTestServer(t).Handler()
	info := createSession(t, h, true)
	if !info.HasImage || info.ImageName != "test.png" {
		t.Fatalf("info = %+v", info)
	}

	waitFor(t, h, info.ID, func(i sessionInfo) bool { return i.Renders >= 1 })

	rec := doJSON(t, h, http.MethodPatch, "/api/sessions/"+info.ID+"/settings",
		map[string]any{"steps": 20, "flip": "true"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("patch: %d %s", rec.Code, rec.Body.String())
	}
	if got := decode[sessionInfo](t, rec); got.Settings.Steps != 20 || !got.Settings.Flip {
		t.Errorf("patched settings = %+v", got.Settings)
	}
	waitFor(t, h, info.ID, func(i sessionInfo) bool { return i.Renders >= 2 && !i.Pending })

	rec = do(t, h, http.MethodGet, "/api/sessions/"+info.ID+"/preview", nil, "")
	if n := strings.Count(rec.Body.String(), `class="cell"`); n != 20 {
		t.Errorf("preview has %d cells, want 20", n)
	}

	rec = do(t, h, http.MethodGet, "/api/sessions/"+info.ID+"/effect.svg", nil, "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/svg+xml" {
		t.Fatalf("export: %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "<svg") {
		t.Error("export is not an SVG document")
	}

	rec = do(t, h, http.MethodGet, "/api/sessions/"+info.ID+"/effect.png", nil, "")
	if rec.Code != http.StatusOK || !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Errorf("png export: %d", rec.Code)
	}

	rec = do(t, h, http.MethodDelete, "/api/sessions/"+info.ID, nil, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/api/sessions/"+info.ID, nil, "")
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != errors.ErrCodeSessionNotFound {
		t.Errorf("get deleted: %d %s", rec.Code, rec.Body.String())
	}
}

func TestReplaceImage(t *testing.T) {
	h := newTestServer(t).Handler()
	info := createSession(t, h, false)
	if info.HasImage {
		t.Fatal("session should start without an image")
	}

	rec := do(t, h, http.MethodGet, "/api/sessions/"+info.ID+"/effect.png", nil, "")
	if rec.Code != http.StatusConflict || errorCode(t, rec) != errors.ErrCodeNoImage {
		t.Errorf("export without image: %d %s", rec.Code, rec.Body.String())
	}

	body, ct := uploadBody(t, "b.png", testPNG(t, 16, 16))
	rec = do(t, h, http.MethodPut, "/api/sessions/"+info.ID+"/image", body, ct)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("put image: %d %s", rec.Code, rec.Body.String())
	}
	waitFor(t, h, info.ID, func(i sessionInfo) bool { return i.HasImage && i.Renders == 1 })

	rec = do(t, h, http.MethodPut, "/api/sessions/"+info.ID+"/image", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("put without multipart: %d", rec.Code)
	}
}

func TestUploadErrors(t *testing.T) {
	cfg := testConfig()
	cfg.Server.MaxUploadMB = 1
	s := New(cfg)
	defer s.Close()
	h := s.Handler()

	tests := []struct {
		name   string
		file   string
		data   []byte
		status int
		code   errors.Code
	}{
		{"not an image", "x.png", []byte("definitely not a png"), http.StatusBadRequest, errors.ErrCodeInvalidImage},
		{"bad extension", "x.exe", testPNG(t, 4, 4), http.StatusBadRequest, errors.ErrCodeInvalidImage},
		{"too large", "big.png", bytes.Repeat([]byte{1}, 3<<19), http.StatusRequestEntityTooLarge, errors.ErrCodeTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := uploadBody(t, tt.file, tt.data)
			rec := do(t, h, http.MethodPost, "/api/sessions", body, ct)
			if rec.Code != tt.status || errorCode(t, rec) != tt.code {
				t.Errorf("got %d %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestPatchErrors(t *testing.T) {
	h := newTestServer(t).Handler()
	info := createSession(t, h, false)
	path := "/api/sessions/" + info.ID + "/settings"

	rec := doJSON(t, h, http.MethodPatch, path, map[string]any{"bogus": 1})
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != errors.ErrCodeInvalidSetting {
		t.Errorf("unknown key: %d %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, h, http.MethodPatch, path, map[string]any{"flip": 3})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("type error: %d", rec.Code)
	}
	for _, body := range []map[string]any{{"steps": "abc"}, {"baseFrequency": "x"}, {"shimmer": "maybe"}} {
		rec = doJSON(t, h, http.MethodPatch, path, body)
		if rec.Code != http.StatusBadRequest || errorCode(t, rec) != errors.ErrCodeInvalidSetting {
			t.Errorf("unparseable %v: %d %s", body, rec.Code, rec.Body.String())
		}
	}
	rec = do(t, h, http.MethodPatch, path, strings.NewReader("{"), "application/json")
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != errors.ErrCodeInvalidInput {
		t.Errorf("bad json: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPatch, path, map[string]any{"steps": 1000})
	if got := decode[sessionInfo](t, rec); got.Settings.Steps != 64 {
		t.Errorf("steps = %d, want clamped 64", got.Settings.Steps)
	}
}

func TestSessionNotFound(t *testing.T) {
	h := newTestServer(t).Handler()
	tests := []struct {
		path   string
		status int
	}{
		{"/api/sessions/0123abcd", http.StatusNotFound},
		{"/api/sessions/not-hex!", http.StatusBadRequest},
		{"/api/sessions/0123abcd/events", http.StatusNotFound},
	}
	for _, tt := range tests {
		if rec := do(t, h, http.MethodGet, tt.path, nil, ""); rec.Code != tt.status {
			t.Errorf("%s: %d, want %d", tt.path, rec.Code, tt.status)
		}
	}
}

func TestExportUnknownFormat(t *testing.T) {
	h := newTestServer(t).Handler()
	info := createSession(t, h, true)
	rec := do(t, h, http.MethodGet, "/api/sessions/"+info.ID+"/effect.gif", nil, "")
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != errors.ErrCodeInvalidFormat {
		t.Errorf("got %d %s", rec.Code, rec.Body.String())
	}
}

func TestEvents(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()
	info := createSession(t, s.Handler(), true)
	waitFor(t, s.Handler(), info.ID, func(i sessionInfo) bool { return i.Renders >= 1 })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/sessions/"+info.ID+"/events", nil)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if ct := res.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type %q", ct)
	}

	lines := bufio.NewScanner(res.Body)
	next := func(prefix string) string {
		for lines.Scan() {
			if l := lines.Text(); strings.HasPrefix(l, prefix) {
				return strings.TrimPrefix(l, prefix)
			}
		}
		t.Fatalf("stream ended before %q: %v", prefix, lines.Err())
		return ""
	}

	if ev := next("event: "); ev != "ready" {
		t.Fatalf("first event %q", ev)
	}
	rec := doJSON(t, s.Handler(), http.MethodPatch, "/api/sessions/"+info.ID+"/settings", map[string]any{"hue": 45})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("patch: %d", rec.Code)
	}
	for {
		if next("event: ") == "rendered" {
			break
		}
	}
	var ev renderEvent
	if err := json.Unmarshal([]byte(next("data: ")), &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Settings.Hue != 45 || ev.Seq < 2 {
		t.Errorf("event = %+v", ev)
	}
}

func TestPresets(t *testing.T) {
	store := preset.NewFileStore(filepath.Join(t.TempDir(), "presets.toml"))
	h := newTestServer(t, WithPresets(store)).Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/presets", map[string]any{
		"name":     "warm",
		"settings": map[string]any{"hue": 30, "shimmer": false},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("save: %d %s", rec.Code, rec.Body.String())
	}
	saved := decode[preset.Preset](t, rec)
	if saved.Settings.Hue != 30 || saved.Settings.Shimmer || saved.Settings.Steps != 33 {
		t.Errorf("saved = %+v", saved.Settings)
	}

	rec = do(t, h, http.MethodGet, "/api/presets", nil, "")
	if list := decode[[]preset.Preset](t, rec); len(list) != 1 || list[0].Name != "warm" {
		t.Errorf("list = %+v", list)
	}

	info := createSession(t, h, false)
	rec = do(t, h, http.MethodPost, "/api/sessions/"+info.ID+"/preset/warm", nil, "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("apply: %d %s", rec.Code, rec.Body.String())
	}
	if got := decode[sessionInfo](t, rec); got.Settings.Hue != 30 {
		t.Errorf("applied settings = %+v", got.Settings)
	}

	if rec := doJSON(t, h, http.MethodPatch, "/api/sessions/"+info.ID+"/settings", map[string]any{"steps": 50}); rec.Code != http.StatusAccepted {
		t.Fatalf("patch: %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodPost, "/api/presets", map[string]any{"name": "from-session", "session": info.ID})
	if got := decode[preset.Preset](t, rec); got.Settings.Steps != 50 || got.Settings.Hue != 30 {
		t.Errorf("captured = %+v", got.Settings)
	}

	rec = do(t, h, http.MethodGet, "/api/presets/nope", nil, "")
	if rec.Code != http.StatusNotFound || errorCode(t, rec) != errors.ErrCodePresetNotFound {
		t.Errorf("missing preset: %d %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, h, http.MethodPost, "/api/presets", map[string]any{"name": "../evil"})
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != errors.ErrCodeInvalidName {
		t.Errorf("bad name: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, h, http.MethodDelete, "/api/presets/warm", nil, "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete: %d", rec.Code)
	}
}

func TestPresetsDisabled(t *testing.T) {
	h := newTestServer(t).Handler()
	rec := do(t, h, http.MethodGet, "/api/presets", nil, "")
	if rec.Code != http.StatusNotImplemented || errorCode(t, rec) != errors.ErrCodeUnsupported {
		t.Errorf("got %d %s", rec.Code, rec.Body.String())
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code errors.Code
		want int
	}{
		{errors.ErrCodeInvalidSetting, http.StatusBadRequest},
		{errors.ErrCodeInvalidName, http.StatusBadRequest},
		{errors.ErrCodeTooLarge, http.StatusRequestEntityTooLarge},
		{errors.ErrCodeNoImage, http.StatusConflict},
		{errors.ErrCodePresetNotFound, http.StatusNotFound},
		{errors.ErrCodeUnsupported, http.StatusNotImplemented},
		{errors.ErrCodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(errors.New(tt.code, "x")); got != tt.want {
			t.Errorf("statusFor(%s) = %d, want %d", tt.code, got, tt.want)
		}
	}
	if got := statusFor(io.EOF); got != http.StatusInternalServerError {
		t.Errorf("uncoded error = %d", got)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	s := New(testConfig())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/api/defaults"
	var res *http.Response
	for i := 0; i < 50; i++ {
		if res, err = http.Get(url); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not stop")
	}
}
