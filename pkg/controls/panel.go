package controls

import (
	"bytes"
	"html"

	"github.com/matzehuels/fractalglass/pkg/settings"
)

// Group is a titled run of widgets.
type Group struct {
	Title   string
	ID      string // optional element id of the container
	Widgets []Widget
}

// Panel is the full control panel.
type Panel struct {
	Groups []Group
}

var layout = []struct {
	title, id string
	keys      []string
}{
	{"Settings", "", []string{
		settings.KeyFlip, settings.KeyShimmer, settings.KeySteps,
		settings.KeyScale, settings.KeyBaseFrequency, settings.KeyNumOctaves,
	}},
	{"Coloring", "coloring-options", []string{
		settings.KeyHue, settings.KeySaturation, settings.KeyBrightness,
	}},
}

// NewPanel builds the widgets for s. Every interaction calls onChange with
// the widget's settings key and the parsed value.
func NewPanel(s settings.Settings, onChange func(key string, v any)) Panel {
	var p Panel
	for _, g := range layout {
		group := Group{Title: g.title, ID: g.id}
		for _, key := range g.keys {
			group.Widgets = append(group.Widgets, newWidget(s, key, onChange))
		}
		p.Groups = append(p.Groups, group)
	}
	return p
}

func newWidget(s settings.Settings, key string, onChange func(string, any)) Widget {
	f, _ := settings.Lookup(key)
	v, _ := s.Get(key)
	w := Widget{
		Label: f.Label,
		ID:    key,
		Key:   key,
		Kind:  KindRange,
		Min:   f.Min,
		Max:   f.Max,
		Step:  f.Step,
		Value: v,
	}
	if f.Kind == settings.KindBool {
		w.Kind = KindToggle
		w.ID = key + "-toggle"
	}
	if onChange != nil {
		w.OnChange = func(v any) { onChange(key, v) }
	}
	return w
}

// Widgets returns all widgets in display order.
func (p Panel) Widgets() []Widget {
	var out []Widget
	for _, g := range p.Groups {
		out = append(out, g.Widgets...)
	}
	return out
}

// Widget returns the widget with the given element id.
func (p Panel) Widget(id string) (Widget, bool) {
	for _, w := range p.Widgets() {
		if w.ID == id {
			return w, true
		}
	}
	return Widget{}, false
}

// HTML renders the panel as the #controlsPanel element.
func (p Panel) HTML() []byte {
	var buf bytes.Buffer
	buf.WriteString(`<div class="controls-panel" id="controlsPanel">` + "\n")
	for _, g := range p.Groups {
		buf.WriteString("<h3>" + html.EscapeString(g.Title) + "</h3>\n")
		if g.ID != "" {
			buf.WriteString(`<div id="` + html.EscapeString(g.ID) + `">` + "\n")
		}
		for _, w := range g.Widgets {
			w.writeHTML(&buf)
		}
		if g.ID != "" {
			buf.WriteString("</div>\n")
		}
	}
	buf.WriteString("</div>\n")
	return buf.Bytes()
}
