package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

type (
	Mode     string
	Position string
)

const (
	ModeSingle Mode = "single"
	ModeTiled  Mode = "tiled"
)

const (
	PosTopLeft     Position = "tl"
	PosTopRight    Position = "tr"
	PosBottomLeft  Position = "bl"
	PosBottomRight Position = "br"
	PosCenter      Position = "center"
)

// старый словарь команд бота тоже принимаем
var modeAliases = map[string]Mode{
	"single": ModeSingle,
	"one":    ModeSingle,
	"tiled":  ModeTiled,
	"tile":   ModeTiled,
	"multi":  ModeTiled,
}

var positionAliases = map[string]Position{
	"tl":           PosTopLeft,
	"top-left":     PosTopLeft,
	"tr":           PosTopRight,
	"top-right":    PosTopRight,
	"bl":           PosBottomLeft,
	"bottom-left":  PosBottomLeft,
	"br":           PosBottomRight,
	"bottom-right": PosBottomRight,
	"center":       PosCenter,
	"c":            PosCenter,
}

const (
	MinSize = 10
	MaxSize = 500
)

// Settings is the per-user watermark configuration. A value handed out by the
// settings store always passes Validate.
type Settings struct {
	Text     string   `json:"text"`
	Color    RGB      `json:"color"`
	Size     int      `json:"size"`
	Mode     Mode     `json:"mode"`
	Position Position `json:"position"`
}

func DefaultSettings() Settings {
	return Settings{
		Text:     "Watermark",
		Color:    RGB{R: 0xFF, G: 0xFF, B: 0xFF},
		Size:     40,
		Mode:     ModeSingle,
		Position: PosBottomRight,
	}
}

func (s Settings) Validate() error {
	if err := ValidateText(s.Text); err != nil {
		return err
	}
	if err := ValidateSize(s.Size); err != nil {
		return err
	}
	if _, err := ParseMode(string(s.Mode)); err != nil {
		return err
	}
	if _, err := ParsePosition(string(s.Position)); err != nil {
		return err
	}
	return nil
}

func ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrInvalidText
	}
	return nil
}

func ValidateSize(size int) error {
	if size < MinSize || size > MaxSize {
		return ErrInvalidSize
	}
	return nil
}

func ParseMode(raw string) (Mode, error) {
	m, ok := modeAliases[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return "", ErrInvalidMode
	}
	return m, nil
}

func ParsePosition(raw string) (Position, error) {
	p, ok := positionAliases[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return "", ErrInvalidPosition
	}
	return p, nil
}

// SettingsPatch carries a field-level write. Nil fields are left untouched.
type SettingsPatch struct {
	Text     *string `json:"text,omitempty"`
	Color    *string `json:"color,omitempty"`
	Size     *int    `json:"size,omitempty"`
	Mode     *string `json:"mode,omitempty"`
	Position *string `json:"position,omitempty"`
}

func (p SettingsPatch) Empty() bool {
	return p.Text == nil && p.Color == nil && p.Size == nil && p.Mode == nil && p.Position == nil
}

// Apply validates every provided field first and only then writes them, so a
// rejected patch never leaves s half-updated.
func (p SettingsPatch) Apply(s *Settings) error {
	next := *s

	if p.Text != nil {
		if err := ValidateText(*p.Text); err != nil {
			return err
		}
		next.Text = *p.Text
	}
	if p.Color != nil {
		c, err := ParseColor(*p.Color)
		if err != nil {
			return err
		}
		next.Color = c
	}
	if p.Size != nil {
		if err := ValidateSize(*p.Size); err != nil {
			return err
		}
		next.Size = *p.Size
	}
	if p.Mode != nil {
		m, err := ParseMode(*p.Mode)
		if err != nil {
			return err
		}
		next.Mode = m
	}
	if p.Position != nil {
		pos, err := ParsePosition(*p.Position)
		if err != nil {
			return err
		}
		next.Position = pos
	}

	*s = next
	return nil
}

// Value/Scan - снапшот настроек хранится в jsonb колонке задачи
func (s Settings) Value() (driver.Value, error) {
	res, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal Settings to JSONB: %w", err)
	}
	return res, nil
}

func (s *Settings) Scan(value any) error {
	if value == nil {
		*s = DefaultSettings()
		return nil
	}

	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("invalid type for Settings")
	}

	if err := json.Unmarshal(b, s); err != nil {
		return fmt.Errorf("failed to unmarshal JSONB to Settings: %w", err)
	}
	return nil
}

//--------------------

// RGB is a watermark color. Text form is #rrggbb.
type RGB struct {
	R, G, B uint8
}

// ParseColor accepts #RRGGBB and #RGB, with or without the leading '#'.
func ParseColor(raw string) (RGB, error) {
	str := strings.TrimPrefix(strings.TrimSpace(raw), "#")
	switch len(str) {
	case 3:
		str = string([]byte{str[0], str[0], str[1], str[1], str[2], str[2]})
	case 6:
	default:
		return RGB{}, ErrInvalidColor
	}

	v, err := strconv.ParseUint(str, 16, 32)
	if err != nil {
		return RGB{}, ErrInvalidColor
	}
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// NRGBA returns the color with the given straight alpha.
func (c RGB) NRGBA(alpha uint8) color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: alpha}
}

func (c RGB) MarshalText() ([]byte, error) {
	return []byte(c.Hex()), nil
}

func (c *RGB) UnmarshalText(b []byte) error {
	parsed, err := ParseColor(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
