package sink

import (
	"bytes"
	"fmt"
	"html"
	"sync"

	"github.com/matzehuels/fractalglass/pkg/effect"
	"github.com/matzehuels/fractalglass/pkg/settings"
)

// Stylesheet styles the HTML fragment. The source image is set once on the
// wrapper as --fg-source and inherited by every cell.
var Stylesheet = `
    .wrapper { display: flex; justify-content: center; align-items: stretch; width: 100%; height: 100%; overflow: hidden; }
    .cell { position: relative; height: 100%; background-image: var(--fg-source); background-size: cover; background-repeat: no-repeat; }
    .shimmer { position: absolute; inset: 0; pointer-events: none; background: ` + cssGradient(ShimmerStops) + `; }`

// HTMLOption configures an HTML surface.
type HTMLOption func(*HTML)

// WithHTMLFilterID sets the id of the hidden displacement filter. It must
// match the id the engine references in each strip's filter chain.
func WithHTMLFilterID(id string) HTMLOption {
	return func(h *HTML) {
		if id != "" {
			h.filterID = id
		}
	}
}

// WithHTMLPage wraps the fragment in a complete document with the stylesheet.
func WithHTMLPage(title string) HTMLOption {
	return func(h *HTML) { h.page = true; h.title = title }
}

// WithHTMLHeight sets the CSS height of the wrapper in a full page.
func WithHTMLHeight(css string) HTMLOption { return func(h *HTML) { h.height = css } }

// HTML is a Surface that mirrors the DOM tree of the browser effect.
//
// Strips are built into a back buffer between Clear and SetFilterParams and
// swapped in as a whole, so Bytes never shows a half-built render.
type HTML struct {
	mu       sync.Mutex
	filterID string
	page     bool
	title    string
	height   string
	strips   []effect.Strip
	params   effect.FilterParams

	pending  []effect.Strip
	building bool
}

// NewHTML creates an empty HTML surface.
func NewHTML(opts ...HTMLOption) *HTML {
	h := &HTML{
		filterID: effect.DefaultFilterID,
		height:   "80vh",
		params:   effect.Params(settings.Defaults()),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Clear implements effect.Surface. It starts a new back buffer.
func (h *HTML) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending = h.pending[:0]
	h.building = true
}

// AddStrip implements effect.Surface.
func (h *HTML) AddStrip(s effect.Strip) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending = append(h.pending, s)
	h.building = true
}

// SetFilterParams implements effect.Surface. It publishes the strips added
// since Clear together with p.
func (h *HTML) SetFilterParams(p effect.FilterParams) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.params = p
	if h.building {
		h.strips, h.pending = h.pending, h.strips[:0]
		h.building = false
	}
}

// Bytes serialises the surface as a fragment, or as a page with WithHTMLPage.
func (h *HTML) Bytes() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf bytes.Buffer
	if h.page {
		fmt.Fprintf(&buf, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n", html.EscapeString(h.title))
		fmt.Fprintf(&buf, "<style>%s\n    body { margin: 0; background: #111; }\n    .wrapper { height: %s; }\n</style>\n</head>\n<body>\n",
			Stylesheet, html.EscapeString(h.height))
	}
	h.writeFragment(&buf)
	if h.page {
		buf.WriteString("</body>\n</html>\n")
	}
	return buf.Bytes()
}

func (h *HTML) writeFragment(buf *bytes.Buffer) {
	if len(h.strips) == 0 {
		buf.WriteString(`<div class="wrapper" id="wrapper"></div>` + "\n")
	} else {
		fmt.Fprintf(buf, `<div class="wrapper" id="wrapper" style="--fg-source: url('%s')">`+"\n", h.strips[0].Image.DataURL())
		for _, s := range h.strips {
			writeHTMLCell(buf, s)
		}
		buf.WriteString("</div>\n")
	}
	WriteHiddenFilter(buf, h.filterID, h.params)
}

func writeHTMLCell(buf *bytes.Buffer, s effect.Strip) {
	flip := "scaleX(1)"
	if s.Flipped {
		flip = "scaleX(-1)"
	}
	fmt.Fprintf(buf, `  <div class="cell" style="background-position: %s%% 50%%; transform: %s; filter: %s; width: %s%%">`,
		num(s.Offset), flip, html.EscapeString(s.Filter), num(s.Width))
	if s.Shimmer {
		buf.WriteString(`<div class="shimmer"></div>`)
	}
	buf.WriteString("</div>\n")
}

// WriteHiddenFilter writes the zero-size <svg> holding the shared
// turbulence/displacement filter referenced by the cells.
func WriteHiddenFilter(buf *bytes.Buffer, id string, p effect.FilterParams) {
	fmt.Fprintf(buf, `<svg width="0" height="0"><filter id="%s">`, html.EscapeString(id))
	fmt.Fprintf(buf, `<feTurbulence type="turbulence" baseFrequency="%s" numOctaves="%d" result="turbulence"/>`,
		num(p.BaseFrequency), p.NumOctaves)
	fmt.Fprintf(buf, `<feDisplacementMap in2="turbulence" in="SourceGraphic" scale="%d" xChannelSelector="R" yChannelSelector="G"/>`,
		p.Scale)
	buf.WriteString("</filter></svg>\n")
}

var _ effect.Surface = (*HTML)(nil)
