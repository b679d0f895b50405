// Package settings defines the configuration object that drives the fractal
// glass effect.
//
// A [Settings] value is a plain struct: the effect engine reads it, the
// controller owns it, and control widgets edit it one field at a time through
// [Settings.Set]. The valid range of every field is data, not convention; see
// [Fields]. Anything that accepts values from outside a widget (TOML files,
// HTTP requests, flags, presets) goes through [Settings.Clamp] or
// [Settings.Validate] so the ranges always hold.
package settings

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Field keys. These double as the identifiers used by the HTTP API, the TOML
// files and the control widgets.
const (
	KeySteps         = "steps"
	KeyHue           = "hue"
	KeySaturation    = "saturation"
	KeyBrightness    = "brightness"
	KeyFlip          = "flip"
	KeyShimmer       = "shimmer"
	KeyBaseFrequency = "baseFrequency"
	KeyNumOctaves    = "numOctaves"
	KeyScale         = "scale"
)

// Settings is the single mutable configuration object driving rendering.
type Settings struct {
	Steps         int     `toml:"steps" json:"steps" bson:"steps"`
	Hue           int     `toml:"hue" json:"hue" bson:"hue"`
	Saturation    int     `toml:"saturation" json:"saturation" bson:"saturation"`
	Brightness    int     `toml:"brightness" json:"brightness" bson:"brightness"`
	Flip          bool    `toml:"flip" json:"flip" bson:"flip"`
	Shimmer       bool    `toml:"shimmer" json:"shimmer" bson:"shimmer"`
	BaseFrequency float64 `toml:"baseFrequency" json:"baseFrequency" bson:"baseFrequency"`
	NumOctaves    int     `toml:"numOctaves" json:"numOctaves" bson:"numOctaves"`
	Scale         int     `toml:"scale" json:"scale" bson:"scale"`
}

// Defaults returns the settings a new session starts with.
func Defaults() Settings {
	return Settings{
		Steps:         33,
		Hue:           0,
		Saturation:    0,
		Brightness:    0,
		Flip:          false,
		Shimmer:       true,
		BaseFrequency: 0.05,
		NumOctaves:    4,
		Scale:         20,
	}
}

// Get returns the value of the field named key.
// Integer fields are returned as int, baseFrequency as float64 and toggles as bool.
func (s Settings) Get(key string) (any, error) {
	switch key {
	case KeySteps:
		return s.Steps, nil
	case KeyHue:
		return s.Hue, nil
	case KeySaturation:
		return s.Saturation, nil
	case KeyBrightness:
		return s.Brightness, nil
	case KeyFlip:
		return s.Flip, nil
	case KeyShimmer:
		return s.Shimmer, nil
	case KeyBaseFrequency:
		return s.BaseFrequency, nil
	case KeyNumOctaves:
		return s.NumOctaves, nil
	case KeyScale:
		return s.Scale, nil
	}
	return nil, &UnknownFieldError{Key: key}
}

// Set writes value into the field named key, clamping numbers to the field's
// range. Numeric fields accept any Go integer or float type (JSON decoding
// yields float64); integer fields round to the nearest integer. Toggles only
// accept bool.
func (s *Settings) Set(key string, value any) error {
	f, ok := Lookup(key)
	if !ok {
		return &UnknownFieldError{Key: key}
	}

	if f.Kind == KindBool {
		b, ok := value.(bool)
		if !ok {
			return &TypeError{Key: key, Want: f.Kind, Got: value}
		}
		if key == KeyFlip {
			s.Flip = b
		} else {
			s.Shimmer = b
		}
		return nil
	}

	n, ok := toFloat(value)
	if !ok || math.IsNaN(n) {
		return &TypeError{Key: key, Want: f.Kind, Got: value}
	}
	n = f.clamp(n)

	switch key {
	case KeySteps:
		s.Steps = int(math.Round(n))
	case KeyHue:
		s.Hue = int(math.Round(n))
	case KeySaturation:
		s.Saturation = int(math.Round(n))
	case KeyBrightness:
		s.Brightness = int(math.Round(n))
	case KeyBaseFrequency:
		s.BaseFrequency = n
	case KeyNumOctaves:
		s.NumOctaves = int(math.Round(n))
	case KeyScale:
		s.Scale = int(math.Round(n))
	}
	return nil
}

// Apply sets several fields at once. It stops at the first failing key and
// leaves s unchanged in that case.
func (s *Settings) Apply(values map[string]any) error {
	next := *s
	for _, f := range Fields {
		v, ok := values[f.Key]
		if !ok {
			continue
		}
		if err := next.Set(f.Key, v); err != nil {
			return err
		}
	}
	for k := range values {
		if _, ok := Lookup(k); !ok {
			return &UnknownFieldError{Key: k}
		}
	}
	*s = next
	return nil
}

// Clamp returns a copy of s with every numeric field forced into its range.
func (s Settings) Clamp() Settings {
	out := s
	for _, f := range Fields {
		if f.Kind == KindBool {
			continue
		}
		v, _ := s.Get(f.Key)
		if err := out.Set(f.Key, v); err != nil {
			// NaN frequency; fall back to the default.
			d, _ := Defaults().Get(f.Key)
			_ = out.Set(f.Key, d)
		}
	}
	return out
}

// Validate reports the first field that lies outside its range.
func (s Settings) Validate() error {
	for _, f := range Fields {
		if f.Kind == KindBool {
			continue
		}
		v, _ := s.Get(f.Key)
		n, _ := toFloat(v)
		if n < f.Min || n > f.Max || math.IsNaN(n) {
			return &RangeError{Key: f.Key, Value: n, Min: f.Min, Max: f.Max}
		}
	}
	return nil
}

// Map returns the settings keyed by field key, in the shape accepted by Apply.
func (s Settings) Map() map[string]any {
	m := make(map[string]any, len(Fields))
	for _, f := range Fields {
		m[f.Key], _ = s.Get(f.Key)
	}
	return m
}

// String renders the settings as "key=value" pairs in field order.
func (s Settings) String() string {
	parts := make([]string, 0, len(Fields))
	for _, f := range Fields {
		v, _ := s.Get(f.Key)
		parts = append(parts, f.Key+"="+FormatValue(v))
	}
	return strings.Join(parts, " ")
}

// ParseValue parses a raw string for the field named key into the Go type the
// field holds: int, float64 or bool. Range is not enforced here; Set clamps.
func ParseValue(key, raw string) (any, error) {
	f, ok := Lookup(key)
	if !ok {
		return nil, &UnknownFieldError{Key: key}
	}
	raw = strings.TrimSpace(raw)

	switch f.Kind {
	case KindBool:
		switch strings.ToLower(raw) {
		case "on", "checked":
			return true, nil
		case "off", "":
			return false, nil
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, &ParseError{Key: key, Raw: raw, Err: err}
		}
		return b, nil
	case KindFloat:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, &ParseError{Key: key, Raw: raw, Err: err}
		}
		return v, nil
	default:
		v, err := strconv.Atoi(raw)
		if err != nil {
			// Range inputs occasionally report "12.0".
			fv, ferr := strconv.ParseFloat(raw, 64)
			if ferr != nil {
				return nil, &ParseError{Key: key, Raw: raw, Err: err}
			}
			return int(math.Round(fv)), nil
		}
		return v, nil
	}
}

// FormatValue renders a field value the way the controls display it.
func FormatValue(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(v)
	}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}
