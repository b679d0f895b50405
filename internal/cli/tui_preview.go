package cli

import (
	"image"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/matzehuels/fractalglass/pkg/effect"
	"github.com/matzehuels/fractalglass/pkg/source"
)

// thumbWidth is the horizontal resolution the strip preview samples from.
const thumbWidth = 96

// thumbnail decodes img and shrinks it to thumbWidth x rows.
func thumbnail(img *source.Image, rows int) (*image.NRGBA, error) {
	decoded, err := img.Decode()
	if err != nil {
		return nil, err
	}
	return imaging.Resize(decoded, thumbWidth, rows, imaging.Box), nil
}

// stripPreview draws one terminal column per strip. Each column samples the
// thumbnail at the strip's background offset and applies the strip's color
// adjustment, so the bar follows steps, offsets and coloring live.
func stripPreview(thumb *image.NRGBA, strips []effect.Strip) string {
	if thumb == nil || len(strips) == 0 {
		return ""
	}
	b := thumb.Bounds()
	rows := make([]strings.Builder, b.Dy())
	for _, s := range strips {
		x := b.Min.X + int(math.Round(s.Offset/100*float64(b.Dx()-1)))
		x = min(max(x, b.Min.X), b.Max.X-1)
		for y := range rows {
			c, _ := colorful.MakeColor(thumb.NRGBAAt(x, b.Min.Y+y))
			c = adjustColor(c, s.Color)
			cell := "█"
			if s.Shimmer && y == 0 {
				cell = "▀"
			}
			rows[y].WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(c.Hex())).Render(cell))
		}
	}
	lines := make([]string, len(rows))
	for i := range rows {
		lines[i] = rows[i].String()
	}
	return strings.Join(lines, "\n")
}

// adjustColor approximates the CSS hue-rotate, saturate and brightness
// filters in HSV space.
func adjustColor(c colorful.Color, a effect.ColorAdjust) colorful.Color {
	h, s, v := c.Hsv()
	h = math.Mod(h+float64(a.HueRotate)+360, 360)
	s = clamp01(s * float64(a.Saturate) / 100)
	v = clamp01(v * float64(a.Brightness) / 100)
	return colorful.Hsv(h, s, v).Clamped()
}

func clamp01(f float64) float64 {
	return math.Min(math.Max(f, 0), 1)
}

// hueSwatch renders a short bar showing how the hue setting shifts a
// reference red.
func hueSwatch(hue int) string {
	var b strings.Builder
	for i := 0; i < 6; i++ {
		c := colorful.Hsv(math.Mod(float64(hue+i*60)+720, 360), 0.7, 0.9)
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(c.Hex())).Render("■"))
	}
	return b.String()
}
