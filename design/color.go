package design

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
)

// ErrInvalidColor is returned for colour strings that are not hex colours.
var ErrInvalidColor = errors.New("design: invalid color")

// ParseColor parses "#RGB", "#RGBA", "#RRGGBB" or "#RRGGBBAA".
// The leading '#' is optional.
//
// The result is exact 8-bit NRGBA; gg.Hex goes through float64 and maps
// malformed input to black, so it is not used here.
func ParseColor(s string) (color.NRGBA, error) {
	hex := s
	if hex != "" && hex[0] == '#' {
		hex = hex[1:]
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil || hex[0] == '+' || hex[0] == '-' {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	n := uint32(v)
	switch len(hex) {
	case 3:
		return color.NRGBA{R: nib(n >> 8), G: nib(n >> 4), B: nib(n), A: 0xFF}, nil
	case 4:
		return color.NRGBA{R: nib(n >> 12), G: nib(n >> 8), B: nib(n >> 4), A: nib(n)}, nil
	case 6:
		return color.NRGBA{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n), A: 0xFF}, nil
	case 8:
		return color.NRGBA{R: uint8(n >> 24), G: uint8(n >> 16), B: uint8(n >> 8), A: uint8(n)}, nil
	}
	return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
}

// nib expands the low 4 bits of n to 8 bits.
func nib(n uint32) uint8 {
	return uint8(n&0xF) * 0x11
}

// ColorOr parses s, returning def when s is empty.
func ColorOr(s string, def color.NRGBA) (color.NRGBA, error) {
	if s == "" {
		return def, nil
	}
	return ParseColor(s)
}

func validColor(s string, optional bool) error {
	if s == "" && optional {
		return nil
	}
	_, err := ParseColor(s)
	return err
}
