package cli

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/matzehuels/fractalglass/pkg/config"
	"github.com/matzehuels/fractalglass/pkg/controller"
	"github.com/matzehuels/fractalglass/pkg/controls"
	"github.com/matzehuels/fractalglass/pkg/effect"
	"github.com/matzehuels/fractalglass/pkg/pipeline"
	"github.com/matzehuels/fractalglass/pkg/session"
	"github.com/matzehuels/fractalglass/pkg/settings"
	"github.com/matzehuels/fractalglass/pkg/source"
)

// previewRows is the height of the strip preview in terminal rows.
const previewRows = 8

var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
	groupTitleStyle   = lipgloss.NewStyle().Foreground(colorGray).Bold(true).MarginTop(1)
)

type tuiOpts struct {
	pick    bool
	resume  bool
	preset  string
	save    string
	noCache bool
}

// tuiCommand opens the terminal control panel.
func (c *CLI) tuiCommand() *cobra.Command {
	var opts tuiOpts

	cmd := &cobra.Command{
		Use:   "tui [IMAGE]",
		Short: "Adjust the effect interactively in the terminal",
		Long: `Tui opens a control panel for the effect. Every change re-renders the
strip preview after a short quiet period. Press e to export the current state,
o to choose another image, and q to quit.

The panel remembers its last image and settings; pass --resume to continue
where you left off.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runTUI(cmd.Context(), args, &opts)
		},
	}

	cmd.Flags().BoolVar(&opts.pick, "pick", false, "choose the image with the system file dialog")
	cmd.Flags().BoolVar(&opts.resume, "resume", false, "restore the last panel state")
	cmd.Flags().StringVar(&opts.preset, "preset", "", "start from a saved preset")
	cmd.Flags().StringVar(&opts.save, "save", "", "save the final settings as this preset on quit")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "bypass the render cache when exporting")

	return cmd
}

func (c *CLI) runTUI(ctx context.Context, args []string, opts *tuiOpts) error {
	logger := loggerFromContext(ctx)

	state, err := session.NewCLIStore(c.sessionDir())
	if err != nil {
		return err
	}

	s := c.Config.Defaults.Clamp()
	var img *source.Image
	if opts.resume {
		st, err := state.LoadState(ctx)
		switch {
		case err == nil:
			s = st.Settings
			if img, err = st.Restore(); err != nil {
				logger.Warn("saved image unreadable", "err", err)
			}
		case errors.Is(err, session.ErrNotFound):
			logger.Info("nothing to resume")
		default:
			return err
		}
	}
	if opts.preset != "" {
		store, err := c.openPresets(ctx)
		if err != nil {
			return err
		}
		p, err := store.Get(ctx, opts.preset)
		store.Close()
		if err != nil {
			return err
		}
		s = p.Settings
	}
	switch {
	case len(args) == 1:
		if img, err = source.Load(args[0]); err != nil {
			return err
		}
	case opts.pick:
		img, err = source.Choose(ctx)
		if errors.Is(err, source.ErrCanceled) {
			return nil
		}
		if err != nil {
			return err
		}
	}

	runner, err := c.newRunner(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	rec := &effect.Recorder{}
	renders := make(chan renderedMsg, 1)
	thumbs := &thumbCache{}
	ctrl := controller.New(rec,
		controller.WithSettings(s),
		controller.WithDelay(c.Config.Controller.Debounce.Duration),
		controller.WithEngine(c.engine()),
		controller.OnRender(func(snap controller.Snapshot) {
			msg := renderedMsg{snap: snap, strips: rec.Strips(), thumb: thumbs.get(snap.Image)}
			// Keep only the newest render for the UI.
			select {
			case <-renders:
			default:
			}
			renders <- msg
		}),
	)
	defer ctrl.Close()
	if img != nil {
		ctrl.SetImage(img)
	}

	m := newPanelModel(ctx, ctrl, renders)
	m.export = func(ctx context.Context) (string, error) {
		return c.exportCurrent(ctx, runner, ctrl)
	}
	if _, err := tea.NewProgram(m, tea.WithContext(ctx)).Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}

	st := session.State{Settings: ctrl.Settings(), UpdatedAt: time.Now()}
	if cur := ctrl.Image(); !cur.Empty() {
		st.ImageName, st.Image = cur.Name, cur.DataURL()
	}
	if err := state.SaveState(context.WithoutCancel(ctx), st); err != nil {
		logger.Warn("could not save panel state", "err", err)
	}

	if opts.save != "" {
		store, err := c.openPresets(context.WithoutCancel(ctx))
		if err != nil {
			return err
		}
		defer store.Close()
		p, err := store.Save(context.WithoutCancel(ctx), opts.save, ctrl.Settings())
		if err != nil {
			return err
		}
		printSuccess("Saved preset %s", StyleHighlight.Render(p.Name))
	}
	return ctx.Err()
}

// sessionDir is where the panel keeps its resumable state.
func (c *CLI) sessionDir() string {
	dir, err := config.DataDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "sessions")
}

// exportCurrent renders the controller's state in the configured formats
// next to the source image.
func (c *CLI) exportCurrent(ctx context.Context, runner *pipeline.Runner, ctrl *controller.Controller) (string, error) {
	img := ctrl.Image()
	if img.Empty() {
		return "", fmt.Errorf("no image selected")
	}
	var po pipeline.Options
	c.renderDefaults(&po)
	po.Input = pipeline.Input{Image: img}
	po.Settings = ctrl.Settings()

	result, err := runner.Execute(ctx, po)
	if err != nil {
		return "", err
	}
	name := img.Name
	if name == "" {
		name = "image"
	}
	paths := outputPaths("", name, po.Formats)
	written := make([]string, 0, len(po.Formats))
	for _, f := range po.Formats {
		if err := writeFile(paths[f], result.Artifacts[f]); err != nil {
			return "", err
		}
		written = append(written, paths[f])
	}
	return strings.Join(written, ", "), nil
}

// thumbCache holds the thumbnail of the last image seen. It is only used
// from the controller's render callback, which never runs concurrently.
type thumbCache struct {
	img   *source.Image
	thumb *image.NRGBA
}

func (t *thumbCache) get(img *source.Image) *image.NRGBA {
	if img != t.img {
		t.img, t.thumb = img, nil
		if th, err := thumbnail(img, previewRows); err == nil {
			t.thumb = th
		}
	}
	return t.thumb
}

// =============================================================================
// panelModel - Interactive control panel
// =============================================================================

type (
	renderedMsg struct {
		snap   controller.Snapshot
		strips []effect.Strip
		thumb  *image.NRGBA
	}
	pickedMsg struct {
		img *source.Image
		err error
	}
	exportedMsg struct {
		paths string
		err   error
	}
)

// panelModel is the bubbletea model for the control panel. Widgets are
// rebuilt from the controller's settings on every view, so the panel always
// shows the committed values.
type panelModel struct {
	ctx     context.Context
	ctrl    *controller.Controller
	renders <-chan renderedMsg
	export  func(context.Context) (string, error)
	pick    func(context.Context) (*source.Image, error)

	// One memo per widget in display order; shared by model copies.
	memos []*controls.Memo

	cursor int
	last   renderedMsg
	status string
	busy   bool
}

func newPanelModel(ctx context.Context, ctrl *controller.Controller, renders <-chan renderedMsg) panelModel {
	memos := make([]*controls.Memo, len(settings.Fields))
	for i := range memos {
		memos[i] = &controls.Memo{Draw: widgetGauge}
	}
	return panelModel{
		ctx:     ctx,
		ctrl:    ctrl,
		renders: renders,
		pick:    source.Choose,
		memos:   memos,
	}
}

func (m panelModel) panel() controls.Panel {
	return controls.NewPanel(m.ctrl.Settings(), func(key string, v any) {
		_ = m.ctrl.Set(key, v)
	})
}

func (m panelModel) widgets() []controls.Widget {
	return m.panel().Widgets()
}

func waitForRender(ch <-chan renderedMsg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func (m panelModel) Init() tea.Cmd {
	return waitForRender(m.renders)
}

func (m panelModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case renderedMsg:
		m.last = msg
		return m, waitForRender(m.renders)
	case pickedMsg:
		m.busy = false
		switch {
		case errors.Is(msg.err, source.ErrCanceled):
			m.status = ""
		case msg.err != nil:
			m.status = "open failed: " + msg.err.Error()
		default:
			m.ctrl.SetImage(msg.img)
			m.status = "opened " + msg.img.Name
		}
		return m, nil
	case exportedMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "export failed: " + msg.err.Error()
		} else {
			m.status = "exported " + msg.paths
		}
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m panelModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	widgets := m.widgets()
	w := widgets[m.cursor]

	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.ctrl.Flush()
		return m, tea.Quit
	case "up", "k":
		m.cursor = (m.cursor - 1 + len(widgets)) % len(widgets)
	case "down", "j", "tab":
		m.cursor = (m.cursor + 1) % len(widgets)
	case "left", "h":
		w.Nudge(-1)
	case "right", "l":
		w.Nudge(1)
	case "shift+left", "H":
		w.Nudge(-10)
	case "shift+right", "L":
		w.Nudge(10)
	case " ", "enter":
		w.Toggle()
	case "r":
		m.ctrl.Update(func(s *settings.Settings) { *s = settings.Defaults() })
		m.status = "reset to defaults"
	case "o":
		if m.busy {
			return m, nil
		}
		m.busy, m.status = true, "choosing image..."
		ctx, pick := m.ctx, m.pick
		return m, func() tea.Msg {
			img, err := pick(ctx)
			return pickedMsg{img: img, err: err}
		}
	case "e":
		if m.busy || m.export == nil {
			return m, nil
		}
		m.busy, m.status = true, "exporting..."
		ctx, export := m.ctx, m.export
		return m, func() tea.Msg {
			paths, err := export(ctx)
			return exportedMsg{paths: paths, err: err}
		}
	}
	return m, nil
}

func (m panelModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Fractal Glass"))
	if img := m.ctrl.Image(); !img.Empty() {
		b.WriteString("  " + listDimStyle.Render(img.Name))
	}
	b.WriteString("\n\n")

	if m.ctrl.Image().Empty() {
		b.WriteString(listDimStyle.Render(controls.Placeholder))
		b.WriteString("\n")
	} else if m.last.snap.Seq > 0 {
		b.WriteString(stripPreview(m.last.thumb, m.last.strips))
		b.WriteString("\n")
		state := "rendered"
		if m.ctrl.Pending() {
			state = "pending"
		}
		b.WriteString(listDimStyle.Render(fmt.Sprintf("#%d · %d strips · %s · %s",
			m.last.snap.Seq, m.last.snap.Strips, m.last.snap.Duration.Round(time.Microsecond), state)))
		b.WriteString("\n")
	} else {
		b.WriteString(listDimStyle.Render("rendering..."))
		b.WriteString("\n")
	}

	i := 0
	for _, g := range m.panel().Groups {
		b.WriteString(groupTitleStyle.Render(g.Title))
		b.WriteString("\n")
		for _, w := range g.Widgets {
			b.WriteString(m.widgetLine(i, w))
			b.WriteString("\n")
			i++
		}
	}

	b.WriteString("\n")
	if m.status != "" {
		b.WriteString(StyleHighlight.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(listDimStyle.Render("↑/↓ select  ←/→ adjust  ⇧ ×10  space toggle  r reset  o open  e export  q quit"))
	return b.String()
}

// widgetLine renders the i-th widget. The gauge goes through the widget's
// memo, so only widgets whose value changed are redrawn.
func (m panelModel) widgetLine(i int, w controls.Widget) string {
	cursor, style := "  ", listNormalStyle
	if i == m.cursor {
		cursor, style = "▸ ", listSelectedStyle
	}
	gauge := widgetGauge(w)
	if i < len(m.memos) {
		gauge = m.memos[i].Render(w)
	}
	return cursor + style.Render(w.Text()) + "  " + gauge
}

// widgetGauge draws the part of a widget line right of its label.
func widgetGauge(w controls.Widget) string {
	var g string
	switch {
	case w.Kind == controls.KindRange:
		g = rangeBar(w)
	case w.Value == true:
		g = StyleSuccess.Render("on")
	default:
		g = listDimStyle.Render("off")
	}
	if w.Key == settings.KeyHue {
		if hue, ok := w.Value.(int); ok {
			g += " " + hueSwatch(hue)
		}
	}
	return g
}

// rangeBar draws the position of a range widget between its bounds.
func rangeBar(w controls.Widget) string {
	const width = 20
	var v float64
	switch x := w.Value.(type) {
	case int:
		v = float64(x)
	case float64:
		v = x
	}
	pos := 0
	if span := w.Max - w.Min; span > 0 {
		pos = int((v - w.Min) / span * width)
	}
	pos = min(max(pos, 0), width)
	return listDimStyle.Render("[") + StyleHighlight.Render(strings.Repeat("━", pos)) +
		listDimStyle.Render(strings.Repeat("─", width-pos)+"]")
}
