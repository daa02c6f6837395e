package config

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/teslashibe/go-pacvision/pkg/capture"
	"github.com/teslashibe/go-pacvision/pkg/frame"
	"github.com/teslashibe/go-pacvision/pkg/localize"
)

// Apply updates fields from a flat option map. Keys are case-insensitive.
// Unknown keys and unconvertible values are reported together; valid keys
// are still applied.
func (c *Config) Apply(params map[string]interface{}) error {
	var problems []string

	// Stable order so errors read the same on every run
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := c.applyOne(strings.ToLower(key), params[key]); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", key, err))
		}
	}

	if len(problems) > 0 {
		return &ConfigError{Field: "apply", Message: strings.Join(problems, "; ")}
	}
	return nil
}

func (c *Config) applyOne(key string, value interface{}) error {
	var err error
	switch key {
	case KeyGridWidth:
		c.GridWidth, err = cast.ToIntE(value)
	case KeyGridHeight:
		c.GridHeight, err = cast.ToIntE(value)
	case KeyPadTop:
		c.Padding.Top, err = cast.ToIntE(value)
	case KeyPadBottom:
		c.Padding.Bottom, err = cast.ToIntE(value)
	case KeyPadLeft:
		c.Padding.Left, err = cast.ToIntE(value)
	case KeyPadRight:
		c.Padding.Right, err = cast.ToIntE(value)
	case KeyCaptureRegion:
		c.CaptureRegion, err = toRegion(value)
	case KeyReplayDir:
		c.ReplayDir, err = cast.ToStringE(value)
	case KeyWallColors:
		c.WallColors, err = toColors(value)
	case KeyPathColor:
		c.PathColor, err = toColor(value)
	case KeyPelletColors:
		c.PelletColors, err = toColors(value)
	case KeyColorTolerance:
		c.ColorTolerance, err = cast.ToFloat64E(value)
	case KeyIgnoreAreas:
		c.IgnoreAreas, err = toRects(value)
	case KeyCharacterClass:
		c.CharacterClass, err = cast.ToStringE(value)
	case KeyTieBreak:
		c.TieBreak, err = cast.ToStringE(value)
	case KeyTemplateDir:
		c.TemplateDir, err = cast.ToStringE(value)
	case KeyMatchThreshold:
		c.MatchThreshold, err = cast.ToFloat64E(value)
	case KeyMapCaptureDuration:
		c.MapCaptureDuration, err = toDuration(value)
	case KeyMapCaptureInterval:
		c.MapCaptureInterval, err = toDuration(value)
	case KeyTargetFPS:
		c.TargetFPS, err = cast.ToIntE(value)
	case KeyLogLevel:
		c.LogLevel, err = cast.ToStringE(value)
	case KeyLogFormat:
		c.LogFormat, err = cast.ToStringE(value)
	case KeyDebug:
		c.Debug, err = cast.ToBoolE(value)
	case KeyDashboardPort:
		c.DashboardPort, err = cast.ToStringE(value)
	case KeyLogDir:
		c.LogDir, err = cast.ToStringE(value)
	default:
		return fmt.Errorf("unknown option")
	}
	return err
}

// ToMap returns the configuration as a flat option map, the inverse of Apply.
func (c Config) ToMap() map[string]interface{} {
	return map[string]interface{}{
		KeyGridWidth:  c.GridWidth,
		KeyGridHeight: c.GridHeight,
		KeyPadTop:     c.Padding.Top,
		KeyPadBottom:  c.Padding.Bottom,
		KeyPadLeft:    c.Padding.Left,
		KeyPadRight:   c.Padding.Right,
		KeyCaptureRegion: map[string]interface{}{
			"top":    c.CaptureRegion.Top,
			"left":   c.CaptureRegion.Left,
			"width":  c.CaptureRegion.Width,
			"height": c.CaptureRegion.Height,
		},
		KeyReplayDir:          c.ReplayDir,
		KeyWallColors:         fromColors(c.WallColors),
		KeyPathColor:          fromColor(c.PathColor),
		KeyPelletColors:       fromColors(c.PelletColors),
		KeyColorTolerance:     c.ColorTolerance,
		KeyIgnoreAreas:        fromRects(c.IgnoreAreas),
		KeyCharacterClass:     c.CharacterClass,
		KeyTieBreak:           c.TieBreak,
		KeyTemplateDir:        c.TemplateDir,
		KeyMatchThreshold:     c.MatchThreshold,
		KeyMapCaptureDuration: c.MapCaptureDuration.String(),
		KeyMapCaptureInterval: c.MapCaptureInterval.String(),
		KeyTargetFPS:          c.TargetFPS,
		KeyLogLevel:           c.LogLevel,
		KeyLogFormat:          c.LogFormat,
		KeyDebug:              c.Debug,
		KeyDashboardPort:      c.DashboardPort,
		KeyLogDir:             c.LogDir,
	}
}

// toColor accepts a [b, g, r] list or an "#rrggbb" hex string.
func toColor(v interface{}) (frame.BGR, error) {
	if s, ok := v.(string); ok {
		return parseHex(s)
	}

	ints, err := toInts(v)
	if err != nil {
		return frame.BGR{}, err
	}
	if len(ints) != 3 {
		return frame.BGR{}, fmt.Errorf("color needs 3 channels, got %d", len(ints))
	}
	for _, n := range ints {
		if n < 0 || n > 255 {
			return frame.BGR{}, fmt.Errorf("channel %d out of range 0-255", n)
		}
	}
	return frame.BGR{B: uint8(ints[0]), G: uint8(ints[1]), R: uint8(ints[2])}, nil
}

func toColors(v interface{}) ([]frame.BGR, error) {
	items, err := toSlice(v)
	if err != nil {
		return nil, err
	}
	out := make([]frame.BGR, 0, len(items))
	for i, item := range items {
		c, err := toColor(item)
		if err != nil {
			return nil, fmt.Errorf("color %d: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// parseHex reads "#rrggbb" (RGB order, as color pickers show it) into BGR.
func parseHex(s string) (frame.BGR, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return frame.BGR{}, fmt.Errorf("hex color %q must have 6 digits", s)
	}
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return frame.BGR{}, fmt.Errorf("hex color %q: %w", s, err)
	}
	return frame.BGR{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n)}, nil
}

func fromColor(c frame.BGR) []int {
	return []int{int(c.B), int(c.G), int(c.R)}
}

func fromColors(cs []frame.BGR) [][]int {
	out := make([][]int, len(cs))
	for i, c := range cs {
		out[i] = fromColor(c)
	}
	return out
}

// toRects accepts a list of [x, y, w, h] lists.
func toRects(v interface{}) ([]localize.Rect, error) {
	items, err := toSlice(v)
	if err != nil {
		return nil, err
	}
	out := make([]localize.Rect, 0, len(items))
	for i, item := range items {
		ints, err := toInts(item)
		if err != nil {
			return nil, fmt.Errorf("area %d: %w", i, err)
		}
		if len(ints) != 4 {
			return nil, fmt.Errorf("area %d needs x, y, w, h", i)
		}
		out = append(out, localize.Rect{X: ints[0], Y: ints[1], W: ints[2], H: ints[3]})
	}
	return out, nil
}

func fromRects(rs []localize.Rect) [][]int {
	out := make([][]int, len(rs))
	for i, r := range rs {
		out[i] = []int{r.X, r.Y, r.W, r.H}
	}
	return out
}

// toRegion accepts a {top, left, width, height} map or a 4-element list in that order.
func toRegion(v interface{}) (capture.Region, error) {
	if m, err := cast.ToStringMapE(v); err == nil {
		var r capture.Region
		var errs []string
		for k, val := range m {
			n, err := cast.ToIntE(val)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", k, err))
				continue
			}
			switch strings.ToLower(k) {
			case "top":
				r.Top = n
			case "left":
				r.Left = n
			case "width":
				r.Width = n
			case "height":
				r.Height = n
			default:
				errs = append(errs, fmt.Sprintf("%s: unknown field", k))
			}
		}
		if len(errs) > 0 {
			sort.Strings(errs)
			return capture.Region{}, fmt.Errorf("%s", strings.Join(errs, ", "))
		}
		return r, nil
	}

	ints, err := toInts(v)
	if err != nil {
		return capture.Region{}, err
	}
	if len(ints) != 4 {
		return capture.Region{}, fmt.Errorf("region needs top, left, width, height")
	}
	return capture.Region{Top: ints[0], Left: ints[1], Width: ints[2], Height: ints[3]}, nil
}

func toInts(v interface{}) ([]int, error) {
	items, err := toSlice(v)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(items))
	for i, item := range items {
		if out[i], err = cast.ToIntE(item); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// toSlice flattens any slice kind into []interface{}; YAML gives []interface{}
// while defaults carry typed slices such as [][]int.
func toSlice(v interface{}) ([]interface{}, error) {
	if items, ok := v.([]interface{}); ok {
		return items, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

// toDuration accepts "3s" style strings or a number of seconds.
func toDuration(v interface{}) (time.Duration, error) {
	switch v.(type) {
	case int, int64, int32, float64, float32, uint, uint64:
		secs, err := cast.ToFloat64E(v)
		if err != nil {
			return 0, err
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	return cast.ToDurationE(v)
}
