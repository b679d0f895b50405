package server

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/matzehuels/fractalglass/pkg/controls"
	"github.com/matzehuels/fractalglass/pkg/sink"
)

type pageData struct {
	Title       string
	Stylesheet  template.CSS
	Panel       template.HTML
	Placeholder string
	Formats     []string
}

var pageTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>{{.Stylesheet}}
    body { margin: 0; font-family: system-ui, sans-serif; background: #111; color: #eee; }
    .app { display: grid; grid-template-columns: 1fr 280px; height: 100vh; }
    .stage { position: relative; display: flex; align-items: center; justify-content: center; }
    #preview { width: 100%; height: 100%; }
    .placeholder { color: #888; }
    .controls-panel { padding: 16px; background: #1b1b1b; overflow-y: auto; }
    .controls-panel h3 { margin: 16px 0 8px; font-size: 13px; text-transform: uppercase; color: #aaa; }
    .control-group { display: flex; flex-direction: column; margin-bottom: 10px; font-size: 13px; }
    .toolbar { margin-bottom: 12px; display: flex; flex-wrap: wrap; gap: 6px; }
    .toolbar a, .toolbar label { color: #9cf; font-size: 13px; cursor: pointer; }
    #fileInput { display: none; }
</style>
</head>
<body>
<div class="app">
  <div class="stage">
    <div id="preview"><p class="placeholder">{{.Placeholder}}</p></div>
  </div>
  <div>
    <div class="controls-panel">
      <div class="toolbar">
        <label for="fileInput">Upload image</label>
        <input type="file" id="fileInput" accept="image/*">
        {{range .Formats}}<a data-format="{{.}}" href="#">{{.}}</a>
        {{end}}
      </div>
    </div>
    {{.Panel}}
  </div>
</div>
<script>
(() => {
  let id = sessionStorage.getItem("fractalglass-session");
  let events = null;

  async function call(method, path, body) {
    const init = { method };
    if (body instanceof FormData) {
      init.body = body;
    } else if (body !== undefined) {
      init.body = JSON.stringify(body);
      init.headers = { "Content-Type": "application/json" };
    }
    const res = await fetch(path, init);
    if (!res.ok) {
      const err = await res.json().catch(() => ({}));
      throw new Error((err.error && err.error.message) || res.statusText);
    }
    return res.status === 204 ? null : res.json();
  }

  async function ensureSession() {
    if (id) {
      try { return await call("GET", "/api/sessions/" + id); } catch (e) { id = null; }
    }
    const info = await call("POST", "/api/sessions");
    id = info.id;
    sessionStorage.setItem("fractalglass-session", id);
    return info;
  }

  function connect() {
    if (events) events.close();
    events = new EventSource("/api/sessions/" + id + "/events");
    events.addEventListener("rendered", async (e) => {
      const ev = JSON.parse(e.data);
      const res = await fetch("/api/sessions/" + id + "/preview");
      document.getElementById("preview").innerHTML = await res.text();
      syncControls(ev.settings);
    });
    events.addEventListener("closed", () => { id = null; sessionStorage.removeItem("fractalglass-session"); });
  }

  function syncControls(settings) {
    document.querySelectorAll("#controlsPanel input").forEach((input) => {
      const v = settings[input.dataset.key];
      if (v === undefined) return;
      if (input.type === "checkbox") input.checked = v; else input.value = v;
      const label = document.querySelector('label[for="' + input.id + '"]');
      if (label) label.textContent = label.textContent.split(":")[0] + ": " + v;
    });
  }

  document.querySelectorAll("#controlsPanel input").forEach((input) => {
    input.addEventListener("input", () => {
      const value = input.type === "checkbox" ? input.checked : Number(input.value);
      const label = document.querySelector('label[for="' + input.id + '"]');
      if (label) label.textContent = label.textContent.split(":")[0] + ": " + value;
      call("PATCH", "/api/sessions/" + id + "/settings", { [input.dataset.key]: value }).catch(console.error);
    });
  });

  document.getElementById("fileInput").addEventListener("change", (e) => {
    const file = e.target.files[0];
    if (!file) return;
    const form = new FormData();
    form.append("image", file);
    call("PUT", "/api/sessions/" + id + "/image", form).catch((err) => alert(err.message));
  });

  document.querySelectorAll("a[data-format]").forEach((a) => {
    a.addEventListener("click", (e) => {
      e.preventDefault();
      const q = a.dataset.format === "html" ? "?page" : "";
      window.open("/api/sessions/" + id + "/effect." + a.dataset.format + q, "_blank");
    });
  });

  ensureSession().then((info) => { syncControls(info.settings); connect(); }).catch(console.error);
})();
</script>
</body>
</html>
`))

// handleIndex serves the preview page. The panel starts from the default
// settings; the script syncs it to the session once connected.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Title:       "Fractal Glass",
		Stylesheet:  template.CSS(sink.Stylesheet),
		Panel:       template.HTML(controls.NewPanel(s.defaults(), nil).HTML()),
		Placeholder: controls.Placeholder,
		Formats:     []string{"svg", "png", "html", "json"},
	}
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
