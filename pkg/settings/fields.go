package settings

import "math"

// Kind is the value type of a settings field.
type Kind string

const (
	KindInt   Kind = "int"
	KindFloat Kind = "float"
	KindBool  Kind = "bool"
)

// Field describes one settings field: its key, display label, type and range.
// Toggles have a zero range.
type Field struct {
	Key   string  `json:"key"`
	Label string  `json:"label"`
	Kind  Kind    `json:"kind"`
	Min   float64 `json:"min,omitempty"`
	Max   float64 `json:"max,omitempty"`
	Step  float64 `json:"step,omitempty"`
}

// Fields lists every settings field in display order.
var Fields = []Field{
	{Key: KeyFlip, Label: "Flip", Kind: KindBool},
	{Key: KeyShimmer, Label: "Shimmer", Kind: KindBool},
	{Key: KeySteps, Label: "Steps", Kind: KindInt, Min: 12, Max: 64, Step: 1},
	{Key: KeyScale, Label: "Scale", Kind: KindInt, Min: 0, Max: 40, Step: 1},
	{Key: KeyBaseFrequency, Label: "Frequency", Kind: KindFloat, Min: 0, Max: 0.2, Step: 0.01},
	{Key: KeyNumOctaves, Label: "Octaves", Kind: KindInt, Min: 0, Max: 8, Step: 1},
	{Key: KeyHue, Label: "Hue", Kind: KindInt, Min: -180, Max: 180, Step: 1},
	{Key: KeySaturation, Label: "Saturation", Kind: KindInt, Min: -100, Max: 100, Step: 1},
	{Key: KeyBrightness, Label: "Brightness", Kind: KindInt, Min: -100, Max: 100, Step: 1},
}

// Lookup returns the descriptor for key.
func Lookup(key string) (Field, bool) {
	for _, f := range Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// Keys returns all field keys in display order.
func Keys() []string {
	keys := make([]string, len(Fields))
	for i, f := range Fields {
		keys[i] = f.Key
	}
	return keys
}

func (f Field) clamp(v float64) float64 {
	return math.Min(math.Max(v, f.Min), f.Max)
}
