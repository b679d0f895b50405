package controls

import (
	"strings"
	"testing"

	"github.com/matzehuels/fractalglass/pkg/settings"
)

func TestNewPanelLayout(t *testing.T) {
	p := NewPanel(settings.Defaults(), nil)

	if len(p.Groups) != 2 || p.Groups[0].Title != "Settings" || p.Groups[1].Title != "Coloring" {
		t.Fatalf("groups = %+v", p.Groups)
	}

	var ids []string
	for _, w := range p.Widgets() {
		ids = append(ids, w.ID)
	}
	want := "flip-toggle shimmer-toggle steps scale baseFrequency numOctaves hue saturation brightness"
	if got := strings.Join(ids, " "); got != want {
		t.Errorf("ids = %q, want %q", got, want)
	}

	toggles := 0
	for _, w := range p.Widgets() {
		if w.Kind == KindToggle {
			toggles++
		}
	}
	if toggles != 2 || len(p.Widgets()) != 9 {
		t.Errorf("toggles = %d, widgets = %d", toggles, len(p.Widgets()))
	}
}

func TestWidgetText(t *testing.T) {
	p := NewPanel(settings.Defaults(), nil)
	tests := []struct {
		id, want string
	}{
		{"steps", "Steps: 33"},
		{"baseFrequency", "Frequency: 0.05"},
		{"shimmer-toggle", "Shimmer: true"},
		{"hue", "Hue: 0"},
	}
	for _, tt := range tests {
		w, ok := p.Widget(tt.id)
		if !ok {
			t.Fatalf("widget %q missing", tt.id)
		}
		if got := w.Text(); got != tt.want {
			t.Errorf("%s: Text() = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestWidgetChangeEmitsParsedValue(t *testing.T) {
	var gotKey string
	var gotVal any
	p := NewPanel(settings.Defaults(), func(key string, v any) { gotKey, gotVal = key, v })

	tests := []struct {
		id, raw string
		key     string
		want    any
	}{
		{"steps", "40", "steps", 40},
		{"baseFrequency", "0.12", "baseFrequency", 0.12},
		{"flip-toggle", "on", "flip", true},
		{"shimmer-toggle", "", "shimmer", false},
		{"hue", "-90", "hue", -90},
	}
	for _, tt := range tests {
		w, _ := p.Widget(tt.id)
		if err := w.Change(tt.raw); err != nil {
			t.Fatalf("%s: %v", tt.id, err)
		}
		if gotKey != tt.key || gotVal != tt.want {
			t.Errorf("%s: emitted (%q, %v), want (%q, %v)", tt.id, gotKey, gotVal, tt.key, tt.want)
		}
	}

	w, _ := p.Widget("steps")
	if err := w.Change("many"); err == nil {
		t.Error("expected parse error")
	}
}

func TestWidgetToggleAndNudge(t *testing.T) {
	var got any
	s := settings.Defaults()
	p := NewPanel(s, func(_ string, v any) { got = v })

	flip, _ := p.Widget("flip-toggle")
	flip.Toggle()
	if got != true {
		t.Errorf("Toggle emitted %v", got)
	}

	steps, _ := p.Widget("steps")
	if !steps.Nudge(2) || got != 35 {
		t.Errorf("Nudge(2) emitted %v", got)
	}

	freq, _ := p.Widget("baseFrequency")
	if !freq.Nudge(1) || got != 0.06 {
		t.Errorf("Nudge(1) emitted %v", got)
	}

	s.Steps = 64
	top, _ := NewPanel(s, nil).Widget("steps")
	if top.Nudge(1) {
		t.Error("Nudge past max should report no change")
	}
	if flip.Nudge(1) {
		t.Error("Nudge on a toggle should do nothing")
	}
}

func TestWidgetEqualIgnoresCallback(t *testing.T) {
	a := NewPanel(settings.Defaults(), nil).Widgets()[2]
	b := NewPanel(settings.Defaults(), func(string, any) {}).Widgets()[2]
	if !a.Equal(b) {
		t.Error("widgets differing only in callback should be equal")
	}
	b.Value = 34
	if a.Equal(b) {
		t.Error("different values should not be equal")
	}
}

func TestMemo(t *testing.T) {
	s := settings.Defaults()
	var m Memo

	w, _ := NewPanel(s, nil).Widget("steps")
	first := m.Render(w)
	m.Render(w)
	s.Hue = 90 // unrelated change
	w, _ = NewPanel(s, nil).Widget("steps")
	m.Render(w)
	if m.Renders() != 1 {
		t.Errorf("renders = %d, want 1", m.Renders())
	}

	s.Steps = 20
	w, _ = NewPanel(s, nil).Widget("steps")
	second := m.Render(w)
	if m.Renders() != 2 {
		t.Errorf("renders = %d, want 2", m.Renders())
	}
	if first == second {
		t.Error("output should change with the value")
	}
	if !strings.Contains(second, `value="20"`) {
		t.Errorf("default Draw should render HTML, got %s", second)
	}
}

func TestMemoCustomDraw(t *testing.T) {
	m := Memo{Draw: func(w Widget) string { return "[" + w.Text() + "]" }}
	s := settings.Defaults()
	w, _ := NewPanel(s, func(string, any) {}).Widget("flip-toggle")
	if got := m.Render(w); got != "[Flip: false]" {
		t.Errorf("Render = %q", got)
	}
	// A fresh callback is not a prop change.
	w, _ = NewPanel(s, func(string, any) {}).Widget("flip-toggle")
	m.Render(w)
	if m.Renders() != 1 {
		t.Errorf("renders = %d, want 1", m.Renders())
	}
}

func TestPanelHTML(t *testing.T) {
	s := settings.Defaults()
	out := string(NewPanel(s, nil).HTML())

	for _, want := range []string{
		`<div class="controls-panel" id="controlsPanel">`,
		`<h3>Settings</h3>`,
		`<div id="coloring-options">`,
		`<label for="steps">Steps: 33</label>`,
		`<input type="range" id="steps" data-key="steps" min="12" max="64" step="1" value="33">`,
		`<input type="range" id="baseFrequency" data-key="baseFrequency" min="0" max="0.2" step="0.01" value="0.05">`,
		`<input type="checkbox" id="shimmer-toggle" data-key="shimmer" checked>`,
		`<input type="checkbox" id="flip-toggle" data-key="flip">`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("panel missing %q", want)
		}
	}
	if strings.Index(out, "Coloring") < strings.Index(out, "numOctaves") {
		t.Error("Coloring group should follow the Settings group")
	}
}
