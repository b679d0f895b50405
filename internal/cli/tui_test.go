package cli

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/matzehuels/fractalglass/pkg/controller"
	"github.com/matzehuels/fractalglass/pkg/effect"
	"github.com/matzehuels/fractalglass/pkg/settings"
	"github.com/matzehuels/fractalglass/pkg/source"
)

func testImage(t *testing.T) *source.Image {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		for y := 0; y < 20; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 6), G: 80, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	src, err := source.New("test.png", "image/png", buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	return src
}

func newTestPanel(t *testing.T) (panelModel, *controller.Controller) {
	t.Helper()
	ctrl := controller.New(&effect.Recorder{}, controller.WithDelay(0))
	t.Cleanup(ctrl.Close)
	return newPanelModel(context.Background(), ctrl, make(chan renderedMsg)), ctrl
}

func key(s string) tea.KeyMsg {
	switch s {
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m panelModel, keys ...string) panelModel {
	for _, k := range keys {
		next, _ := m.Update(key(k))
		m = next.(panelModel)
	}
	return m
}

func TestPanelNudgeAndToggle(t *testing.T) {
	m, ctrl := newTestPanel(t)

	m = press(m, " ")
	if !ctrl.Settings().Flip {
		t.Error("space on the first widget did not toggle flip")
	}

	m = press(m, "down", "down", "right")
	if got := ctrl.Settings().Steps; got != 34 {
		t.Errorf("steps after right = %d, want 34", got)
	}
	m = press(m, "L", "L", "L")
	if got := ctrl.Settings().Steps; got != 64 {
		t.Errorf("steps after three +10 nudges = %d, want 64 (clamped)", got)
	}
	m = press(m, "left")
	if got := ctrl.Settings().Steps; got != 63 {
		t.Errorf("steps after left = %d, want 63", got)
	}

	if !strings.Contains(m.View(), "Steps: 63") {
		t.Error("view does not show the committed steps value")
	}

	m = press(m, "r")
	if got := ctrl.Settings(); got != settings.Defaults() {
		t.Errorf("settings after reset = %s", got)
	}
}

func TestPanelRedrawsOnlyChangedWidgets(t *testing.T) {
	m, _ := newTestPanel(t)
	const steps = 2 // index of Steps in display order

	m.View()
	m.View()
	for i, memo := range m.memos {
		if memo.Renders() != 1 {
			t.Errorf("widget %d drawn %d times over two frames, want 1", i, memo.Renders())
		}
	}

	m = press(m, "down", "down", "right")
	m.View()
	if got := m.memos[steps].Renders(); got != 2 {
		t.Errorf("steps widget drawn %d times after a change, want 2", got)
	}
	if got := m.memos[0].Renders(); got != 1 {
		t.Errorf("flip widget drawn %d times, want 1", got)
	}
}

func TestPanelCursorWraps(t *testing.T) {
	m, _ := newTestPanel(t)
	m = press(m, "up")
	if want := len(settings.Fields) - 1; m.cursor != want {
		t.Errorf("cursor after up from top = %d, want %d", m.cursor, want)
	}
	m = press(m, "down")
	if m.cursor != 0 {
		t.Errorf("cursor after wrapping down = %d, want 0", m.cursor)
	}
}

func TestPanelQuit(t *testing.T) {
	m, _ := newTestPanel(t)
	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}

func TestPanelPickAndExport(t *testing.T) {
	m, ctrl := newTestPanel(t)
	img := testImage(t)
	m.pick = func(context.Context) (*source.Image, error) { return img, nil }
	m.export = func(context.Context) (string, error) { return "", errors.New("disk full") }

	if !strings.Contains(m.View(), "upload an image") {
		t.Error("view without an image does not show the placeholder")
	}

	next, cmd := m.Update(key("o"))
	m = next.(panelModel)
	next, _ = m.Update(cmd())
	m = next.(panelModel)
	if ctrl.Image() != img {
		t.Error("picked image was not set on the controller")
	}
	if m.busy {
		t.Error("panel still busy after pick")
	}

	next, cmd = m.Update(key("e"))
	m = next.(panelModel)
	next, _ = m.Update(cmd())
	m = next.(panelModel)
	if !strings.Contains(m.status, "disk full") {
		t.Errorf("status = %q, want export error", m.status)
	}
}

func TestPanelShowsRender(t *testing.T) {
	m, _ := newTestPanel(t)
	m.ctrl.SetImage(testImage(t))

	s := settings.Defaults()
	s.Steps = 12
	thumb, err := thumbnail(m.ctrl.Image(), previewRows)
	if err != nil {
		t.Fatal(err)
	}
	next, _ := m.Update(renderedMsg{
		snap:   controller.Snapshot{Seq: 1, Settings: s, Strips: 12},
		strips: effect.New().Layout(s),
		thumb:  thumb,
	})
	view := next.(panelModel).View()
	if !strings.Contains(view, "#1 · 12 strips") {
		t.Errorf("view missing render status:\n%s", view)
	}
}

func TestStripPreview(t *testing.T) {
	thumb, err := thumbnail(testImage(t), previewRows)
	if err != nil {
		t.Fatal(err)
	}
	s := settings.Defaults()
	s.Steps = 16
	out := stripPreview(thumb, effect.New().Layout(s))
	if lines := strings.Split(out, "\n"); len(lines) != previewRows {
		t.Errorf("preview has %d rows, want %d", len(lines), previewRows)
	}
	if stripPreview(nil, nil) != "" {
		t.Error("empty preview is not empty")
	}
}

func TestAdjustColor(t *testing.T) {
	c := colorful.Color{R: 0.8, G: 0.3, B: 0.2}

	same := adjustColor(c, effect.ColorAdjust{HueRotate: 0, Saturate: 100, Brightness: 100})
	if !same.AlmostEqualRgb(c) {
		t.Errorf("identity adjust changed %v to %v", c, same)
	}

	gray := adjustColor(c, effect.ColorAdjust{Saturate: 0, Brightness: 100})
	if _, s, _ := gray.Hsv(); s > 1e-6 {
		t.Errorf("saturate(0) left saturation %g", s)
	}

	dark := adjustColor(c, effect.ColorAdjust{Saturate: 100, Brightness: 0})
	if _, _, v := dark.Hsv(); v > 1e-6 {
		t.Errorf("brightness(0) left value %g", v)
	}

	h0, _, _ := c.Hsv()
	h1, _, _ := adjustColor(c, effect.ColorAdjust{HueRotate: 120, Saturate: 100, Brightness: 100}).Hsv()
	if d := h1 - h0; d < 119 || d > 121 {
		t.Errorf("hue-rotate(120) moved hue by %g", d)
	}
}
