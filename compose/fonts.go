package compose

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/gogpu/ggar"
)

// Built-in font families.
const (
	FamilySans       = "sans"
	FamilySansBold   = "sans-bold"
	FamilySansItalic = "sans-italic"
	FamilyMono       = "mono"
)

// FontBook maps font family names to parsed font sources.
// Sources are parsed lazily on first use and shared by every face.
// FontBook is safe for concurrent use.
type FontBook struct {
	mu      sync.Mutex
	data    map[string][]byte
	sources map[string]*text.FontSource
}

// NewFontBook returns a book holding the embedded Go fonts.
func NewFontBook() *FontBook {
	return &FontBook{
		data: map[string][]byte{
			FamilySans:       goregular.TTF,
			FamilySansBold:   gobold.TTF,
			FamilySansItalic: goitalic.TTF,
			FamilyMono:       gomono.TTF,
		},
		sources: make(map[string]*text.FontSource),
	}
}

// Register adds or replaces a family from TTF/OTF data.
func (b *FontBook) Register(family string, data []byte) {
	family = strings.ToLower(family)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[family] = data
	if src, ok := b.sources[family]; ok {
		_ = src.Close()
		delete(b.sources, family)
	}
}

// LoadDir registers every .ttf and .otf file in dir under its base name
// without extension, lowercased. It returns the number of fonts registered.
func (b *FontBook) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("compose: read font dir: %w", err)
	}
	n := 0
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".ttf" && ext != ".otf") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return n, fmt.Errorf("compose: read font %s: %w", e.Name(), err)
		}
		b.Register(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())), data)
		n++
	}
	return n, nil
}

// Families returns the registered family names.
func (b *FontBook) Families() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.data))
	for name := range b.data {
		out = append(out, name)
	}
	return out
}

// Face returns a face of family at size pixels. Unknown families fall back
// to FamilySans.
func (b *FontBook) Face(family string, size float64) (text.Face, error) {
	src, err := b.source(strings.ToLower(family))
	if err != nil {
		return nil, err
	}
	return src.Face(size), nil
}

func (b *FontBook) source(family string) (*text.FontSource, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if family == "" {
		family = FamilySans
	}
	if _, ok := b.data[family]; !ok {
		ggar.Logger().Debug("compose: unknown font family, using sans", "family", family)
		family = FamilySans
	}
	if src, ok := b.sources[family]; ok {
		return src, nil
	}
	src, err := text.NewFontSource(b.data[family])
	if err != nil {
		return nil, fmt.Errorf("compose: parse font %q: %w", family, err)
	}
	b.sources[family] = src
	return src, nil
}

// Close releases every parsed font source.
func (b *FontBook) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for name, src := range b.sources {
		_ = src.Close()
		delete(b.sources, name)
	}
	return nil
}
