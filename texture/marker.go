// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package texture

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMaterialMarkerNotFound means no material in the scene carries the
// design-surface marker. It is a binding error in the model or the
// adapter configuration.
var ErrMaterialMarkerNotFound = errors.New("texture: material marker not found")

// Marker identifies design-surface materials. A material matches when its
// name equals Name, or when its current texture source contains
// SourceContains. Empty fields never match.
type Marker struct {
	Name           string `yaml:"name" json:"name,omitempty" env:"NAME"`
	SourceContains string `yaml:"source_contains" json:"sourceContains,omitempty" env:"SOURCE_CONTAINS"`
}

// IsZero reports whether m can match nothing.
func (m Marker) IsZero() bool {
	return m.Name == "" && m.SourceContains == ""
}

// String describes the marker for error messages.
func (m Marker) String() string {
	switch {
	case m.Name != "" && m.SourceContains != "":
		return fmt.Sprintf("name %q or source containing %q", m.Name, m.SourceContains)
	case m.Name != "":
		return fmt.Sprintf("name %q", m.Name)
	default:
		return fmt.Sprintf("source containing %q", m.SourceContains)
	}
}

// Matches reports whether mat carries the marker.
func (m Marker) Matches(mat *Material) bool {
	if mat == nil {
		return false
	}
	if m.Name != "" && mat.Name == m.Name {
		return true
	}
	if m.SourceContains == "" {
		return false
	}
	tex := mat.Texture()
	return tex != nil && strings.Contains(tex.Source, m.SourceContains)
}

// Slot is a handle to one design-surface material found by Find.
type Slot struct {
	Node     *Node
	Material *Material
}

// Find returns every material in scene matching marker, in tree order.
// A material shared by several nodes is returned once.
func Find(scene *Scene, marker Marker) ([]Slot, error) {
	if marker.IsZero() {
		return nil, fmt.Errorf("%w: empty marker", ErrMaterialMarkerNotFound)
	}
	var slots []Slot
	seen := make(map[*Material]struct{})
	scene.Walk(func(n *Node) {
		for _, mat := range n.Materials {
			if _, dup := seen[mat]; dup || !marker.Matches(mat) {
				continue
			}
			seen[mat] = struct{}{}
			slots = append(slots, Slot{Node: n, Material: mat})
		}
	})
	if len(slots) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMaterialMarkerNotFound, marker)
	}
	return slots, nil
}
