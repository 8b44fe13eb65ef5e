// Package compose rasterises a design.Snapshot into a single bitmap.
//
// Composition is deterministic: once every image source has been resolved,
// the same snapshot always produces pixel-identical output. The steps are:
//
//  1. Resolve every image source, waiting at most the configured timeout.
//     A source that is not ready fails the whole composition with
//     ErrResourceNotReady; elements are never silently dropped.
//  2. Fill the canvas background.
//  3. Draw each element in paint order (texts, images, graphics, QR codes;
//     insertion order within a category) into its own gg layer, then place
//     the layer on the canvas with its rotation and opacity. Anything outside
//     the canvas is clipped.
//
// The bitmap is only returned once fully composed, so callers never observe
// a partial layer set.
//
// DefaultLoader reads data URIs only unless it is given FileRoots or Hosts,
// and caps every image by encoded bytes and declared pixels. Compositor.Admit
// checks a snapshot against the size limits and source policy without
// loading anything, for use where designs enter the system.
//
// Coalescer applies the discard-superseded rule for rapid successive
// requests: only the result of the most recently issued request reaches
// the Sink.
package compose
