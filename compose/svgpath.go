package compose

import (
	"errors"
	"fmt"
	"strings"

	"github.com/srwiley/oksvg"
	"golang.org/x/image/math/fixed"
)

// ErrPathSyntax is returned for malformed SVG path data.
var ErrPathSyntax = errors.New("compose: invalid path data")

type segOp byte

const (
	opMove segOp = iota
	opLine
	opQuad
	opCubic
	opClose
)

// segment is one absolute path command. pts holds 1 (move, line),
// 2 (quad) or 3 (cubic) points as x, y pairs.
type segment struct {
	op  segOp
	pts [6]float64
}

// parsePath converts SVG path data to absolute segments. Every path command
// is accepted; elliptical arcs arrive as cubic segments. Coordinates are
// quantised to 1/64 of a path unit.
func parsePath(d string) ([]segment, error) {
	if strings.TrimSpace(d) == "" {
		return nil, fmt.Errorf("%w: empty", ErrPathSyntax)
	}
	var pc oksvg.PathCursor
	if err := pc.CompilePath(d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPathSyntax, err)
	}
	var rec segmentRecorder
	pc.Path.AddTo(&rec)
	if len(rec.segs) == 0 {
		return nil, fmt.Errorf("%w: no drawable commands", ErrPathSyntax)
	}
	return rec.segs, nil
}

// segmentRecorder implements rasterx.Adder.
type segmentRecorder struct {
	segs []segment
}

func pt(p fixed.Point26_6) (float64, float64) {
	return float64(p.X) / 64, float64(p.Y) / 64
}

func (r *segmentRecorder) Start(a fixed.Point26_6) {
	x, y := pt(a)
	r.segs = append(r.segs, segment{op: opMove, pts: [6]float64{x, y}})
}

func (r *segmentRecorder) Line(b fixed.Point26_6) {
	x, y := pt(b)
	r.segs = append(r.segs, segment{op: opLine, pts: [6]float64{x, y}})
}

func (r *segmentRecorder) QuadBezier(b, c fixed.Point26_6) {
	x1, y1 := pt(b)
	x, y := pt(c)
	r.segs = append(r.segs, segment{op: opQuad, pts: [6]float64{x1, y1, x, y}})
}

func (r *segmentRecorder) CubeBezier(b, c, d fixed.Point26_6) {
	x1, y1 := pt(b)
	x2, y2 := pt(c)
	x, y := pt(d)
	r.segs = append(r.segs, segment{op: opCubic, pts: [6]float64{x1, y1, x2, y2, x, y}})
}

// Stop ends a subpath. Only explicit closes are recorded.
func (r *segmentRecorder) Stop(closeLoop bool) {
	if closeLoop {
		r.segs = append(r.segs, segment{op: opClose})
	}
}
