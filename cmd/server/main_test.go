package main

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mseiller/test-buddy-extract/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		Port:                  "0",
		MaxUploadBytes:        50 << 20,
		MaxPDFBytes:           15 << 20,
		MaxImageBytes:         10 << 20,
		MaxOfficeBytes:        20 << 20,
		MaxSpreadsheetBytes:   20 << 20,
		MaxTextBytes:          5 << 20,
		MaxConcurrentRequests: 4,
		MaxOCRConcurrent:      2,
		RateLimitEvery:        time.Millisecond,
		RateLimitBurst:        100,
		HealthDegradeRatio:    0.9,
		OCRModel:              "test-model",
		OCRMaxTokens:          256,
		OCRRequestTimeout:     time.Second,
		MetricsWindow:         time.Hour,
		AlertErrorRate:        0.5,
		AlertLatency:          time.Minute,
		AlertMinSamples:       1000,
		MonitoringSweepTick:   time.Minute,
	}
}

func newTestHandler() http.Handler {
	return newServer(testConfig(), zerolog.Nop()).handler()
}

func multipartBody(t *testing.T, field, filename, contentType string, data []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestExtractNoFile(t *testing.T) {
	h := newTestHandler()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("notfile", "x")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/extract", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "No file provided" {
		t.Fatalf("unexpected error body: %v", body)
	}
}

func TestExtractPlainText(t *testing.T) {
	h := newTestHandler()

	r, ct := multipartBody(t, "file", "notes.txt", "text/plain", []byte("hello world"))
	req := httptest.NewRequest(http.MethodPost, "/extract", r)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["text"] != "hello world" || body["success"] != true {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestExtractCSVTransform(t *testing.T) {
	h := newTestHandler()

	r, ct := multipartBody(t, "file", "data.csv", "text/csv", []byte("a,b,c"))
	req := httptest.NewRequest(http.MethodPost, "/extract", r)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "a | b | c") {
		t.Fatalf("transform missing: %s", rec.Body.String())
	}
}

func TestExtractUnsupportedType(t *testing.T) {
	h := newTestHandler()

	r, ct := multipartBody(t, "file", "archive.tar.gz", "application/gzip", []byte{0x1f, 0x8b, 0x08, 0x00})
	req := httptest.NewRequest(http.MethodPost, "/extract", r)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestExtractGIFRejectedBeforeOCR(t *testing.T) {
	h := newTestHandler()

	// Routed to the image strategy by extension, rejected by validation. No
	// OCR credential is configured, so reaching the client would surface a
	// 500 instead of the 400 asserted here.
	r, ct := multipartBody(t, "file", "anim.jpg", "image/gif", []byte("GIF89a....."))
	req := httptest.NewRequest(http.MethodPost, "/extract", r)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Only JPEG and PNG") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestExtractGIFExtensionRejectedAsImage(t *testing.T) {
	h := newTestHandler()

	// Neither .gif nor image/gif is registered, but the image strategy still
	// owns the rejection so the response names the supported formats.
	r, ct := multipartBody(t, "file", "photo.gif", "image/gif", []byte("GIF89a....."))
	req := httptest.NewRequest(http.MethodPost, "/extract", r)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Only JPEG and PNG") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestHandler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "healthy" {
		t.Fatalf("unexpected health: %v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestHandler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := body["system"]; !ok {
		t.Fatalf("system metrics missing: %v", body)
	}
}

func TestRateLimitExceeded(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitEvery = time.Hour
	cfg.RateLimitBurst = 1
	h := newServer(cfg, zerolog.Nop()).handler()

	for i := 0; i < 2; i++ {
		r, ct := multipartBody(t, "file", "notes.txt", "text/plain", []byte("hi"))
		req := httptest.NewRequest(http.MethodPost, "/extract", r)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if i == 0 && rec.Code != http.StatusOK {
			t.Fatalf("first request should pass, got %d", rec.Code)
		}
		if i == 1 {
			if rec.Code != http.StatusTooManyRequests {
				t.Fatalf("second request should be limited, got %d", rec.Code)
			}
			if rec.Header().Get("Retry-After") == "" {
				t.Fatal("Retry-After header missing")
			}
		}
	}
}
