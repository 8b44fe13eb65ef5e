// Package ggar composes 2D product designs into textures and hands them off
// to a second device for an augmented-reality view.
//
// # Overview
//
// A design is an ordered set of elements (text, images, vector graphics and
// QR codes) laid out on a fixed product canvas. The pipeline is:
//
//	design.Snapshot -> compose.Compositor -> *image.RGBA -> texture.Adapter -> 3D material
//
// For handoff, the same snapshot is encoded by package codec, stored under its
// design identifier in a store.Store and referenced by a URL that package
// handoff renders as a QR code. The viewer decodes the scanned value back into
// the identifier, loads the snapshot and runs the compositor again.
//
// # Packages
//
//   - design: data model (Snapshot, Canvas, Text, Image, Graphic, QRCode)
//   - compose: deterministic rasterisation, resource resolution, request coalescing
//   - texture: marker-based material lookup and atomic texture substitution
//   - codec: versioned JSON payloads and design identifier minting
//   - store: ephemeral key-value storage with read-time expiry (memory, SQLite)
//   - handoff: handoff URLs and QR encode/decode
//   - server: HTTP surface for handoff and the AR viewer page
//
// # Logging
//
// ggar produces no log output unless SetLogger is called.
package ggar

// Version is the current version of the module.
const Version = "0.3.0"
