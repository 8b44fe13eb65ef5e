// Package handoff moves a design from the session that edits it to an AR
// viewer session.
//
// The editing side stores the snapshot and shows a QR code for the URL
// {base}/ar-view?designId={id}&t={token}. The viewing side scans the code,
// extracts the design id and reads the snapshot back from the store:
//
//	svc := handoff.NewService(st, enc, "https://shop.example")
//	ticket, err := svc.Handoff(ctx, snapshot) // editor
//	...
//	snap, err := svc.Open(ctx, scannedText)   // viewer
//
// Codes may also carry the whole payload (Encoder.EncodeSnapshot) when no
// shared store is reachable.
package handoff

import (
	"context"
	"fmt"
	"time"

	"github.com/gogpu/ggar"
	"github.com/gogpu/ggar/codec"
	"github.com/gogpu/ggar/design"
	"github.com/gogpu/ggar/store"
)

// Ticket is the result of a handoff.
type Ticket struct {
	DesignID string
	Snapshot *design.Snapshot
	Code     *Code
}

// Service runs both sides of the handoff protocol over one store.
type Service struct {
	store store.Store
	enc   *Encoder
	dec   *Decoder
	base  string
	now   func() time.Time
}

// NewService returns a service storing designs in st and building URLs
// under base.
func NewService(st store.Store, enc *Encoder, base string) *Service {
	return &Service{store: st, enc: enc, dec: NewDecoder(), base: base, now: time.Now}
}

// Encoder returns the service's code encoder.
func (h *Service) Encoder() *Encoder {
	return h.enc
}

// Base returns the base URL of handoff links.
func (h *Service) Base() string {
	return h.base
}

// Prepare returns the snapshot Handoff would store for s: a copy with a
// freshly minted id when s has none, CreatedAt set to now when zero, and
// the current format version. s itself is not modified.
func (h *Service) Prepare(s *design.Snapshot) *design.Snapshot {
	snap := s.Clone()
	now := h.now()
	if snap.ID == "" {
		snap.ID = codec.MintID(now)
	}
	if snap.CreatedAt == 0 {
		snap.CreatedAt = now.UnixMilli()
	}
	snap.Version = design.FormatVersion
	return snap
}

// Handoff renders the handoff code for s and then stores it, so a design
// is never stored without a code pointing at it. See Prepare for the
// defaults applied; s itself is not modified.
func (h *Service) Handoff(ctx context.Context, s *design.Snapshot) (*Ticket, error) {
	snap := h.Prepare(s)
	if !codec.ValidID(snap.ID) {
		return nil, fmt.Errorf("%w: %q", store.ErrInvalidID, snap.ID)
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	code, err := h.enc.Encode(snap.ID, h.base)
	if err != nil {
		return nil, err
	}
	if err := h.store.Put(ctx, snap.ID, snap); err != nil {
		return nil, err
	}
	ggar.Logger().Info("handoff: design stored", "design_id", snap.ID, "url", code.URL)
	return &Ticket{DesignID: snap.ID, Snapshot: snap, Code: code}, nil
}

// Code renders a fresh handoff code for an already stored design.
func (h *Service) Code(id string) (*Code, error) {
	return h.enc.Encode(id, h.base)
}

// Lookup returns the design stored under id. Errors wrap store.ErrNotFound for
// missing and expired designs.
func (h *Service) Lookup(ctx context.Context, id string) (*design.Snapshot, error) {
	return h.store.Get(ctx, id)
}

// Forget removes the design stored under id.
func (h *Service) Forget(ctx context.Context, id string) error {
	return h.store.Delete(ctx, id)
}

// Open resolves scanned text to a design. Self-contained payloads are
// returned directly; references and URLs are looked up in the store.
func (h *Service) Open(ctx context.Context, scanned string) (*design.Snapshot, error) {
	res, err := h.dec.Decode(scanned)
	if err != nil {
		return nil, err
	}
	if res.Snapshot != nil {
		return res.Snapshot, nil
	}
	snap, err := h.store.Get(ctx, res.DesignID)
	if err != nil {
		ggar.Logger().Debug("handoff: design unavailable", "design_id", res.DesignID, "error", err)
		return nil, err
	}
	return snap, nil
}
