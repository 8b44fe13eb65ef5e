// Package codec converts design snapshots to and from the versioned JSON
// payload exchanged between sessions.
//
// The current format is 1.0. Decode accepts any 1.x payload, ignoring
// fields it does not know, and the legacy 0.9 payload, which had no canvas
// and no per-element rotation or opacity. Anything else is refused with an
// error that says which of the two went wrong: the payload is malformed,
// or its version is not supported.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/ggar/design"
)

// LegacyVersion is the pre-canvas payload version still accepted by Decode.
const LegacyVersion = "0.9"

// ErrorKind classifies decode failures.
type ErrorKind int

const (
	// Malformed means the payload is not a valid snapshot document.
	Malformed ErrorKind = iota + 1
	// UnsupportedVersion means the payload is well formed but carries a
	// version this decoder does not accept.
	UnsupportedVersion
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case Malformed:
		return "malformed"
	case UnsupportedVersion:
		return "unsupported version"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Sentinels for errors.Is. Every *DecodeError matches the sentinel of its
// kind.
var (
	ErrMalformed          = errors.New("codec: malformed payload")
	ErrUnsupportedVersion = errors.New("codec: unsupported version")
)

// DecodeError describes why a payload was rejected.
type DecodeError struct {
	Kind ErrorKind
	// Version is the payload version, when one was read.
	Version string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Kind == UnsupportedVersion {
		return fmt.Sprintf("codec: unsupported version %q", e.Version)
	}
	if e.Err != nil {
		return "codec: malformed payload: " + e.Err.Error()
	}
	return "codec: malformed payload"
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e.Kind.
func (e *DecodeError) Is(target error) bool {
	switch target {
	case ErrMalformed:
		return e.Kind == Malformed
	case ErrUnsupportedVersion:
		return e.Kind == UnsupportedVersion
	}
	return false
}

func malformed(format string, args ...any) error {
	return &DecodeError{Kind: Malformed, Err: fmt.Errorf(format, args...)}
}

// Encode serialises s as a current-version payload. s is validated and
// left unmodified; the payload carries FormatVersion regardless of
// s.Version. Text content is written byte for byte.
func Encode(s *design.Snapshot) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("codec: encode: %w", err)
	}
	out := s.Clone()
	out.Version = design.FormatVersion
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("codec: encode: %w", err)
	}
	return data, nil
}

// header holds the fields read before the version is known.
type header struct {
	Version *string `json:"version"`
	ID      *string `json:"designId"`
}

// Decode parses a payload. Errors are *DecodeError values matching
// ErrMalformed or ErrUnsupportedVersion.
func Decode(data []byte) (*design.Snapshot, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, malformed("not a JSON object")
	}
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, malformed("%w", err)
	}
	if h.Version == nil {
		return nil, malformed("missing version")
	}
	if h.ID == nil || *h.ID == "" {
		return nil, malformed("missing designId")
	}

	version := *h.Version
	var legacy bool
	switch {
	case version == LegacyVersion:
		legacy = true
	case isCurrentMajor(version):
	default:
		return nil, &DecodeError{Kind: UnsupportedVersion, Version: version}
	}

	var s design.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, &DecodeError{Kind: Malformed, Version: version, Err: err}
	}
	if legacy {
		upgradeLegacy(&s)
	}
	if err := s.Validate(); err != nil {
		return nil, &DecodeError{Kind: Malformed, Version: version, Err: err}
	}
	return &s, nil
}

// isCurrentMajor reports whether v is "1" or "1.<digits>".
func isCurrentMajor(v string) bool {
	curMajor, _, _ := strings.Cut(design.FormatVersion, ".")
	major, minor, hasMinor := strings.Cut(v, ".")
	if major != curMajor {
		return false
	}
	if !hasMinor {
		return true
	}
	if minor == "" {
		return false
	}
	for i := 0; i < len(minor); i++ {
		if minor[i] < '0' || minor[i] > '9' {
			return false
		}
	}
	return true
}

// upgradeLegacy fills what 0.9 payloads did not carry. Rotation decodes to
// zero and opacity to one on its own.
func upgradeLegacy(s *design.Snapshot) {
	def := design.DefaultCanvas()
	if s.Canvas.Width == 0 {
		s.Canvas.Width = def.Width
	}
	if s.Canvas.Height == 0 {
		s.Canvas.Height = def.Height
	}
	if s.Canvas.Background == "" {
		s.Canvas.Background = def.Background
	}
	s.Version = design.FormatVersion
}
