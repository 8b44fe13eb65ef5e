package handoff

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/makiuchi-d/gozxing"
	zxqrcode "github.com/makiuchi-d/gozxing/qrcode"

	"github.com/gogpu/ggar/codec"
	"github.com/gogpu/ggar/design"
)

var (
	// ErrUnrecognized is returned for scanned text that is neither a design
	// payload nor a handoff URL.
	ErrUnrecognized = errors.New("handoff: unrecognized code")
	// ErrNoCode is returned when an image contains no readable QR code.
	ErrNoCode = errors.New("handoff: no QR code in image")
)

// Source says how a scanned value was understood.
type Source int

const (
	// FromPayload is a self-contained design payload.
	FromPayload Source = iota + 1
	// FromReference is a JSON object naming a design id.
	FromReference
	// FromURL is a handoff URL.
	FromURL
)

func (s Source) String() string {
	switch s {
	case FromPayload:
		return "payload"
	case FromReference:
		return "reference"
	case FromURL:
		return "url"
	default:
		return "unknown"
	}
}

// Result is a decoded handoff code.
type Result struct {
	DesignID string
	// Snapshot is set only for self-contained payloads. Otherwise the
	// design must be fetched from a store by DesignID.
	Snapshot *design.Snapshot
	Source   Source
}

// Decoder interprets scanned handoff codes.
type Decoder struct {
	// TryHarder spends more time looking for codes in images.
	TryHarder bool
}

// NewDecoder returns a decoder that tries hard on images.
func NewDecoder() *Decoder {
	return &Decoder{TryHarder: true}
}

// Decode interprets scanned text. A full design payload is tried first,
// then a JSON object carrying a designId, then a URL with a designId query
// parameter. Anything else is ErrUnrecognized.
func (d *Decoder) Decode(scanned string) (*Result, error) {
	s := strings.TrimSpace(scanned)
	if s == "" {
		return nil, ErrUnrecognized
	}
	if s[0] == '{' {
		if snap, err := codec.Decode([]byte(s)); err == nil {
			return &Result{DesignID: snap.ID, Snapshot: snap, Source: FromPayload}, nil
		}
		var ref struct {
			DesignID string `json:"designId"`
		}
		if err := json.Unmarshal([]byte(s), &ref); err == nil && codec.ValidID(ref.DesignID) {
			return &Result{DesignID: ref.DesignID, Source: FromReference}, nil
		}
		return nil, fmt.Errorf("%w: JSON without a usable designId", ErrUnrecognized)
	}
	if id, ok := designIDFromURL(s); ok {
		if !codec.ValidID(id) {
			return nil, fmt.Errorf("%w: invalid design id in URL", ErrUnrecognized)
		}
		return &Result{DesignID: id, Source: FromURL}, nil
	}
	return nil, ErrUnrecognized
}

// DecodeImage finds a QR code in img and decodes its text.
func (d *Decoder) DecodeImage(img image.Image) (*Result, error) {
	text, err := d.Scan(img)
	if err != nil {
		return nil, err
	}
	return d.Decode(text)
}

// Scan returns the raw text of the QR code in img.
func (d *Decoder) Scan(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoCode, err)
	}
	var hints map[gozxing.DecodeHintType]interface{}
	if d.TryHarder {
		hints = map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		}
	}
	res, err := zxqrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoCode, err)
	}
	return res.GetText(), nil
}
