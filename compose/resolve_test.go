package compose

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

func TestResolverCaches(t *testing.T) {
	var calls atomic.Int32
	r := NewResolver(LoaderFunc(func(_ context.Context, src string) (image.Image, error) {
		calls.Add(1)
		return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
	}))
	srcs := []string{"a.png", "b.png"}
	for i := 0; i < 3; i++ {
		got, err := r.Resolve(context.Background(), srcs)
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("Resolve() returned %d images, want 2", len(got))
		}
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("loader called %d times, want 2", n)
	}
	if _, ok := r.Cached("a.png"); !ok {
		t.Error("a.png not cached")
	}
}

func TestResolverEvicts(t *testing.T) {
	r := NewResolver(nil, WithCacheSize(2))
	for _, src := range []string{"a", "b", "c"} {
		r.Put(src, image.NewRGBA(image.Rect(0, 0, 1, 1)))
	}
	if _, ok := r.Cached("a"); ok {
		t.Error("oldest entry survived eviction")
	}
	for _, src := range []string{"b", "c"} {
		if _, ok := r.Cached(src); !ok {
			t.Errorf("%s evicted, want kept", src)
		}
	}
}

func TestResolverAllOrNothing(t *testing.T) {
	r := NewResolver(LoaderFunc(func(_ context.Context, src string) (image.Image, error) {
		if src == "bad" {
			return nil, errors.New("boom")
		}
		return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
	}), WithParallelism(1))
	got, err := r.Resolve(context.Background(), []string{"good", "bad"})
	if !errors.Is(err, ErrResourceNotReady) {
		t.Fatalf("Resolve() error = %v, want ErrResourceNotReady", err)
	}
	if !strings.Contains(err.Error(), "bad") {
		t.Errorf("error %q does not name the source", err)
	}
	if got != nil {
		t.Errorf("Resolve() = %v, want nil on failure", got)
	}
}

func TestResolverNilImage(t *testing.T) {
	r := NewResolver(LoaderFunc(func(context.Context, string) (image.Image, error) {
		return nil, nil
	}))
	if _, err := r.Resolve(context.Background(), []string{"x"}); !errors.Is(err, ErrResourceNotReady) {
		t.Errorf("Resolve() error = %v, want ErrResourceNotReady", err)
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 3, 2))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDefaultLoaderHTTP(t *testing.T) {
	data := pngBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/img.png" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	l := &DefaultLoader{Client: srv.Client(), Hosts: []string{"127.0.0.1"}}
	img, err := l.Load(context.Background(), srv.URL+"/img.png")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 3 || b.Dy() != 2 {
		t.Errorf("bounds = %v, want 3x2", b)
	}
	if _, err := l.Load(context.Background(), srv.URL+"/missing.png"); err == nil {
		t.Error("Load(missing) expected error")
	}
}

func TestDefaultLoaderFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "img.png")
	if err := os.WriteFile(path, pngBytes(t), 0o600); err != nil {
		t.Fatal(err)
	}
	l := &DefaultLoader{FileRoots: []string{dir}}
	for _, src := range []string{path, "file://" + path} {
		if _, err := l.Load(context.Background(), src); err != nil {
			t.Errorf("Load(%q) error = %v", src, err)
		}
	}
}

func TestDefaultLoaderSourcePolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secret.png")
	if err := os.WriteFile(path, pngBytes(t), 0o600); err != nil {
		t.Fatal(err)
	}
	other := t.TempDir()

	tests := []struct {
		name   string
		loader *DefaultLoader
		src    string
	}{
		{name: "file by default", loader: &DefaultLoader{}, src: path},
		{name: "file url by default", loader: &DefaultLoader{}, src: "file://" + path},
		{name: "file outside roots", loader: &DefaultLoader{FileRoots: []string{other}}, src: path},
		{name: "dot-dot escape", loader: &DefaultLoader{FileRoots: []string{other}}, src: filepath.Join(other, "..", filepath.Base(dir), "secret.png")},
		{name: "http by default", loader: &DefaultLoader{}, src: "http://169.254.169.254/latest"},
		{name: "host not listed", loader: &DefaultLoader{Hosts: []string{"cdn.example"}}, src: "https://internal.example/a.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.loader.Allowed(tt.src); !errors.Is(err, ErrSourceNotAllowed) {
				t.Errorf("Allowed(%q) = %v, want ErrSourceNotAllowed", tt.src, err)
			}
			if _, err := tt.loader.Load(context.Background(), tt.src); !errors.Is(err, ErrSourceNotAllowed) {
				t.Errorf("Load(%q) error = %v, want ErrSourceNotAllowed", tt.src, err)
			}
		})
	}

	ok := &DefaultLoader{Hosts: []string{"cdn.example"}}
	for _, src := range []string{"data:image/png;base64,AAAA", "https://cdn.example/a.png", "https://CDN.example:443/b.png"} {
		if err := ok.Allowed(src); err != nil {
			t.Errorf("Allowed(%q) = %v, want nil", src, err)
		}
	}
}

func TestDefaultLoaderRedirectLeavesHosts(t *testing.T) {
	inner := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(pngBytes(t))
	}))
	defer inner.Close()
	outer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, inner.URL+"/img.png", http.StatusFound)
	}))
	defer outer.Close()

	// Only the outer server's host:port is allowed; the redirect target
	// differs by port.
	host := strings.TrimPrefix(outer.URL, "http://")
	l := &DefaultLoader{Hosts: []string{host}}
	if _, err := l.Load(context.Background(), outer.URL+"/start"); !errors.Is(err, ErrSourceNotAllowed) {
		t.Errorf("Load(redirect) error = %v, want ErrSourceNotAllowed", err)
	}
}

func TestDefaultLoaderBudgets(t *testing.T) {
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes(t))

	if _, err := (&DefaultLoader{MaxPixels: 4}).Load(context.Background(), uri); !errors.Is(err, ErrImageTooLarge) {
		t.Errorf("Load(3x2, MaxPixels 4) error = %v, want ErrImageTooLarge", err)
	}
	if _, err := (&DefaultLoader{MaxBytes: 8}).Load(context.Background(), uri); !errors.Is(err, ErrImageTooLarge) {
		t.Errorf("Load(MaxBytes 8) error = %v, want ErrImageTooLarge", err)
	}
	if _, err := (&DefaultLoader{MaxPixels: 6}).Load(context.Background(), uri); err != nil {
		t.Errorf("Load(3x2, MaxPixels 6) error = %v", err)
	}
}

func TestResolverAllowed(t *testing.T) {
	r := NewResolver(nil)
	if err := r.Allowed("/etc/passwd"); !errors.Is(err, ErrSourceNotAllowed) {
		t.Errorf("Allowed(file) = %v, want ErrSourceNotAllowed", err)
	}
	r.Put("mem://logo", image.NewRGBA(image.Rect(0, 0, 1, 1)))
	if err := r.Allowed("mem://logo"); err != nil {
		t.Errorf("Allowed(cached) = %v, want nil", err)
	}
	custom := NewResolver(LoaderFunc(func(context.Context, string) (image.Image, error) { return nil, nil }))
	if err := custom.Allowed("/etc/passwd"); err != nil {
		t.Errorf("Allowed() with a custom loader = %v, want nil", err)
	}
}

func TestDecodeDataURI(t *testing.T) {
	got, err := decodeDataURI("data:text/plain,a%20b")
	if err != nil || string(got) != "a b" {
		t.Errorf("decodeDataURI(plain) = %q, %v", got, err)
	}
	got, err = decodeDataURI("data:text/plain;base64,aGk=")
	if err != nil || string(got) != "hi" {
		t.Errorf("decodeDataURI(base64) = %q, %v", got, err)
	}
	if _, err := decodeDataURI("data:nocomma"); err == nil {
		t.Error("decodeDataURI(no comma) expected error")
	}
}

func TestShortSource(t *testing.T) {
	long := "data:image/png;base64," + strings.Repeat("A", 100)
	if got := shortSource(long); len(got) != 35 {
		t.Errorf("shortSource(long) length = %d, want 35", len(got))
	}
	if got := shortSource("a.png"); got != "a.png" {
		t.Errorf("shortSource(a.png) = %q", got)
	}
}
