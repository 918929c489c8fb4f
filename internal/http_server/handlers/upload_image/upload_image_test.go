package upload_image

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cxbootcamp/premiers/internal/http_server/middleware/authn"
	"github.com/cxbootcamp/premiers/internal/lib/jwt"
)

const secret = "test-secret"

type fakeStore struct {
	gotExt         string
	gotContentType string
}

func (f *fakeStore) Save(_ context.Context, data []byte, ext string, contentType string) (string, string, error) {
	f.gotExt = ext
	f.gotContentType = contentType
	return "name.png", "https://static.example/name.png", nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func do(t *testing.T, store Store, body []byte, contentType string, maxBytes int64) *httptest.ResponseRecorder {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := authn.New(secret)(New(log, store, maxBytes))

	pair, err := jwt.NewPair(1, secret, time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/static/image", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return rec
}

func TestUploadOK(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	rec := do(t, store, pngBytes(t), "image/png", 1<<20)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if store.gotExt != "png" || store.gotContentType != "image/png" {
		t.Fatalf("detected format not forwarded: ext=%q ct=%q", store.gotExt, store.gotContentType)
	}
}

func TestUploadRejectsNonImageContentType(t *testing.T) {
	t.Parallel()

	rec := do(t, &fakeStore{}, pngBytes(t), "application/octet-stream", 1<<20)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUploadRejectsUndecodableBody(t *testing.T) {
	t.Parallel()

	rec := do(t, &fakeStore{}, []byte("definitely not an image"), "image/png", 1<<20)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("claimed image type must still decode, status = %d", rec.Code)
	}
}

func TestUploadRejectsOversizedBody(t *testing.T) {
	t.Parallel()

	rec := do(t, &fakeStore{}, pngBytes(t), "image/png", 8)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
}
