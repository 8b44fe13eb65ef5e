package server

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/ggar/codec"
	"github.com/gogpu/ggar/compose"
	"github.com/gogpu/ggar/design"
	"github.com/gogpu/ggar/handoff"
	"github.com/gogpu/ggar/internal/config"
	"github.com/gogpu/ggar/store"
)

type fixture struct {
	srv   *httptest.Server
	store *store.Memory
	now   time.Time
}

func newFixture(t *testing.T, comp *compose.Compositor) *fixture {
	t.Helper()
	f := &fixture{now: time.UnixMilli(1700000000000)}
	f.store = store.NewMemory(
		store.WithClock(func() time.Time { return f.now }),
		store.WithMaxAge(time.Hour),
	)
	enc, err := handoff.NewEncoder(handoff.DefaultOptions())
	require.NoError(t, err)
	f.srv = httptest.NewServer(New(handoff.NewService(f.store, enc, "https://shop.example"), comp))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readAll(t *testing.T, r io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	return b
}

func (f *fixture) put(t *testing.T, id string) *design.Snapshot {
	t.Helper()
	s := design.New(id, 1700000000000, design.Canvas{Width: 688, Height: 280, Background: "#FFFFFF"})
	s.AddText(design.Text{Frame: design.At(10, 10, 200, 40), Content: "Hello", FontSize: 24})
	require.NoError(t, f.store.Put(context.Background(), id, s))
	return s
}

const postBody = `{
  "canvas": {"width": 688, "height": 280, "background": "#FFFFFF"},
  "texts": [{"frame": {"x": 10, "y": 10, "width": 200, "height": 40}, "content": "Hello", "fontSize": 24}]
}`

func TestHealthz(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok\n", string(readAll(t, resp.Body)))
	assert.NotEmpty(t, resp.Header.Get("Content-Type"))
}

func TestCreateHandoff(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.do(t, http.MethodPost, "/api/handoff", postBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var got handoffResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.True(t, strings.HasPrefix(got.DesignID, "design_"), got.DesignID)
	assert.True(t, strings.HasPrefix(got.URL, "https://shop.example/ar-view?designId="+got.DesignID+"&t="), got.URL)
	assert.True(t, strings.HasPrefix(got.QR, "data:image/png;base64,"))

	stored, err := f.store.Get(context.Background(), got.DesignID)
	require.NoError(t, err)
	assert.Equal(t, "Hello", stored.Texts[0].Content)
	assert.Equal(t, 1.0, stored.Texts[0].Frame.Opacity)
}

func TestCreateHandoffDefaultCanvas(t *testing.T) {
	f := newFixture(t, nil)
	resp := f.do(t, http.MethodPost, "/api/handoff", `{}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var got handoffResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))

	stored, err := f.store.Get(context.Background(), got.DesignID)
	require.NoError(t, err)
	assert.Equal(t, design.DefaultCanvas(), stored.Canvas)
}

func TestCreateHandoffErrors(t *testing.T) {
	f := newFixture(t, nil)
	f.put(t, "design_taken")

	tests := map[string]struct {
		body string
		want int
	}{
		"not json":      {`{"canvas":`, http.StatusBadRequest},
		"invalid":       {`{"texts":[{"frame":{"x":0,"y":0,"width":10,"height":10},"content":"x","fontSize":0}]}`, http.StatusBadRequest},
		"bad id":        {`{"designId":"a b"}`, http.StatusBadRequest},
		"already taken": {`{"designId":"design_taken"}`, http.StatusConflict},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			resp := f.do(t, http.MethodPost, "/api/handoff", tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
			var e errorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
			assert.NotEmpty(t, e.Error)
		})
	}
}

func TestCreateHandoffRejectsServerSources(t *testing.T) {
	f := newFixture(t, nil)
	for _, src := range []string{"/etc/passwd", "file:///etc/hosts", "http://169.254.169.254/latest/meta-data"} {
		body := `{"images":[{"frame":{"x":0,"y":0,"width":4,"height":4},"source":` + strconv.Quote(src) + `}]}`
		resp := f.do(t, http.MethodPost, "/api/handoff", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, src)
		var e errorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
		assert.Contains(t, e.Error, "not allowed", src)
	}
	assert.Equal(t, 0, f.store.Len(), "rejected designs must not be stored")
}

func TestCreateHandoffRejectsOversize(t *testing.T) {
	f := newFixture(t, nil)
	body := `{"canvas":{"width":1048576,"height":1048576,"background":"#FFFFFF"}}`
	resp := f.do(t, http.MethodPost, "/api/handoff", body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	small := newFixture(t, compose.New(compose.WithLimits(design.Limits{MaxCanvas: 512})))
	resp = small.do(t, http.MethodPost, "/api/handoff", postBody)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "688px canvas over a 512px limit")
}

func TestCreateHandoffNormalizesText(t *testing.T) {
	f := newFixture(t, nil)
	body := `{"texts":[{"frame":{"x":0,"y":0,"width":50,"height":20},"content":"cafe\u0301","fontSize":12}]}`
	resp := f.do(t, http.MethodPost, "/api/handoff", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var got handoffResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	stored, err := f.store.Get(context.Background(), got.DesignID)
	require.NoError(t, err)
	assert.Equal(t, "caf\u00e9", stored.Texts[0].Content)
}

func TestGetDesign(t *testing.T) {
	f := newFixture(t, nil)
	want := f.put(t, "design_123")

	resp := f.do(t, http.MethodGet, "/api/designs/design_123", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	got, err := codec.Decode(readAll(t, resp.Body))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestUnavailable(t *testing.T) {
	f := newFixture(t, nil)
	f.put(t, "design_old")
	f.now = f.now.Add(2 * time.Hour)

	for _, path := range []string{
		"/api/designs/design_missing",
		"/api/designs/design_old",
		"/api/designs/design_missing/texture.png",
		"/api/designs/design_missing/qr.png",
	} {
		resp := f.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		var e errorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
		assert.Equal(t, StateUnavailable, e.State, path)
	}
}

func TestDeleteDesign(t *testing.T) {
	f := newFixture(t, nil)
	f.put(t, "design_1")

	resp := f.do(t, http.MethodDelete, "/api/designs/design_1", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = f.do(t, http.MethodGet, "/api/designs/design_1", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = f.do(t, http.MethodDelete, "/api/designs/design_1", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode, "deleting twice is fine")
}

func TestTexturePNG(t *testing.T) {
	f := newFixture(t, nil)
	f.put(t, "design_tex")

	resp := f.do(t, http.MethodGet, "/api/designs/design_tex/texture.png", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 688, 280), img.Bounds())
	r, g, b, a := img.At(600, 250).RGBA()
	assert.Equal(t, [4]uint32{0xFFFF, 0xFFFF, 0xFFFF, 0xFFFF}, [4]uint32{r, g, b, a})
}

func TestTextureNotReady(t *testing.T) {
	comp := compose.New(
		compose.WithResourceTimeout(50*time.Millisecond),
		compose.WithResolver(compose.NewResolver(compose.LoaderFunc(
			func(context.Context, string) (image.Image, error) { return nil, errors.New("offline") },
		))),
	)
	f := newFixture(t, comp)
	s := design.New("design_img", 1, design.DefaultCanvas())
	s.AddImage(design.Image{Frame: design.At(0, 0, 10, 10), Source: "https://cdn.example/a.png"})
	require.NoError(t, f.store.Put(context.Background(), s.ID, s))

	resp := f.do(t, http.MethodGet, "/api/designs/design_img/texture.png", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))
}

func TestQRPNG(t *testing.T) {
	f := newFixture(t, nil)
	f.put(t, "design_qr")

	resp := f.do(t, http.MethodGet, "/api/designs/design_qr/qr.png", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 300, img.Bounds().Dx())

	res, err := handoff.NewDecoder().DecodeImage(img)
	require.NoError(t, err)
	assert.Equal(t, "design_qr", res.DesignID)
}

func TestViewer(t *testing.T) {
	f := newFixture(t, nil)
	f.put(t, "design_123")

	resp := f.do(t, http.MethodGet, "/ar-view?designId=design_123&t=456", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	body := string(readAll(t, resp.Body))
	assert.Contains(t, body, `data-design-id="design_123"`)
	assert.Contains(t, body, `src="/api/designs/design_123/texture.png"`)
	assert.Contains(t, body, `width="688"`)
}

func TestViewerUnavailable(t *testing.T) {
	f := newFixture(t, nil)
	f.put(t, "design_old")
	f.now = f.now.Add(2 * time.Hour)

	for _, path := range []string{
		"/ar-view",
		"/ar-view?designId=",
		"/ar-view?designId=design_missing",
		"/ar-view?designId=design_old",
		"/ar-view?designId=%3Cscript%3E",
	} {
		resp := f.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		body := string(readAll(t, resp.Body))
		assert.Contains(t, body, "Design unavailable", path)
		assert.NotContains(t, body, "<script>", path)
	}
}

func TestRecoverer(t *testing.T) {
	s := New(handoff.NewService(store.NewMemory(), mustEncoder(t), "https://x"), nil)
	s.router.Get("/panic", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func mustEncoder(t *testing.T) *handoff.Encoder {
	t.Helper()
	enc, err := handoff.NewEncoder(handoff.DefaultOptions())
	require.NoError(t, err)
	return enc
}

func TestServeShutsDown(t *testing.T) {
	s := New(handoff.NewService(store.NewMemory(), mustEncoder(t), "https://x"), nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln, config.Server{ShutdownTimeout: time.Second}) }()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + ln.Addr().String() + "/healthz")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestRunListenError(t *testing.T) {
	s := New(handoff.NewService(store.NewMemory(), mustEncoder(t), "https://x"), nil)
	err := s.Run(context.Background(), config.Server{Addr: "bad-address"})
	assert.Error(t, err)
}
