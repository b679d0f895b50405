// Package controls describes the effect's control panel: labeled inputs
// bound to settings fields, grouped the way the panel displays them.
//
// Widgets are plain values. They hold no state beyond their props and
// report every interaction through their OnChange callback; the owner
// decides what to do with the value.
package controls

import (
	"bytes"
	"fmt"
	"html"
	"math"

	"github.com/matzehuels/fractalglass/pkg/settings"
)

// Placeholder is shown instead of the effect until an image is selected.
const Placeholder = "Please upload an image to see the effect."

// Kind is the input type of a widget.
type Kind string

const (
	KindToggle Kind = "checkbox"
	KindRange  Kind = "range"
)

// Widget is one labeled input.
type Widget struct {
	Label string
	ID    string // element id
	Key   string // settings key
	Kind  Kind
	Min   float64
	Max   float64
	Step  float64
	Value any

	OnChange func(v any)
}

// Text returns the label line, "Label: value".
func (w Widget) Text() string {
	return w.Label + ": " + settings.FormatValue(w.Value)
}

// Equal compares props. Callbacks are ignored.
func (w Widget) Equal(o Widget) bool {
	return w.Label == o.Label && w.ID == o.ID && w.Key == o.Key && w.Kind == o.Kind &&
		w.Min == o.Min && w.Max == o.Max && w.Step == o.Step && w.Value == o.Value
}

// Change parses raw the way the input reports it and emits the result.
func (w Widget) Change(raw string) error {
	v, err := settings.ParseValue(w.Key, raw)
	if err != nil {
		return err
	}
	w.emit(v)
	return nil
}

// Toggle emits the negated value of a toggle.
func (w Widget) Toggle() {
	if b, ok := w.Value.(bool); ok && w.Kind == KindToggle {
		w.emit(!b)
	}
}

// Nudge moves a range by n steps, staying inside [Min, Max], and emits the
// new value. It returns false when the value would not change.
func (w Widget) Nudge(n int) bool {
	if w.Kind != KindRange {
		return false
	}
	var cur float64
	switch v := w.Value.(type) {
	case int:
		cur = float64(v)
	case float64:
		cur = v
	default:
		return false
	}
	next := math.Min(math.Max(cur+float64(n)*w.Step, w.Min), w.Max)
	if next == cur {
		return false
	}
	if _, isInt := w.Value.(int); isInt {
		w.emit(int(math.Round(next)))
	} else if inv := math.Round(1 / w.Step); inv >= 1 {
		// Snap to the step grid so repeated nudges do not accumulate error.
		w.emit(math.Round(next*inv) / inv)
	} else {
		w.emit(next)
	}
	return true
}

func (w Widget) emit(v any) {
	if w.OnChange != nil {
		w.OnChange(v)
	}
}

// HTML renders the widget as a .control-group element.
func (w Widget) HTML() []byte {
	var buf bytes.Buffer
	w.writeHTML(&buf)
	return buf.Bytes()
}

func (w Widget) writeHTML(buf *bytes.Buffer) {
	id := html.EscapeString(w.ID)
	buf.WriteString(`<div class="control-group">`)
	fmt.Fprintf(buf, `<label for="%s">%s</label>`, id, html.EscapeString(w.Text()))
	if w.Kind == KindToggle {
		checked := ""
		if b, _ := w.Value.(bool); b {
			checked = " checked"
		}
		fmt.Fprintf(buf, `<input type="checkbox" id="%s" data-key="%s"%s>`, id, html.EscapeString(w.Key), checked)
	} else {
		fmt.Fprintf(buf, `<input type="range" id="%s" data-key="%s" min="%s" max="%s" step="%s" value="%s">`,
			id, html.EscapeString(w.Key),
			settings.FormatValue(w.Min), settings.FormatValue(w.Max), settings.FormatValue(w.Step),
			settings.FormatValue(w.Value))
	}
	buf.WriteString("</div>\n")
}

// Memo caches a widget's rendering and re-renders only when its props change.
// Draw produces the output; a nil Draw renders the widget's HTML.
type Memo struct {
	Draw func(Widget) string

	last    Widget
	out     string
	valid   bool
	renders int
}

// Render returns the drawing of w, reusing the previous output when w is
// Equal to the last widget drawn.
func (m *Memo) Render(w Widget) string {
	if m.valid && m.last.Equal(w) {
		return m.out
	}
	if m.Draw != nil {
		m.out = m.Draw(w)
	} else {
		m.out = string(w.HTML())
	}
	m.last, m.valid = w, true
	m.renders++
	return m.out
}

// Renders returns how many times the widget was actually rendered.
func (m *Memo) Renders() int { return m.renders }
