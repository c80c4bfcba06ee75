package image

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/mseiller/test-buddy-extract/internal/extract"
)

type stubOCR struct {
	text    string
	err     *extract.Error
	gotURL  string
	calls   int
	lastCtx context.Context
}

func (s *stubOCR) ExtractText(ctx context.Context, imageDataURL string) (string, *extract.Error) {
	s.calls++
	s.gotURL = imageDataURL
	s.lastCtx = ctx
	return s.text, s.err
}

func TestExtractBuildsDataURL(t *testing.T) {
	ocr := &stubOCR{text: "hello"}
	e := New(ocr)

	payload := []byte{0x89, 'P', 'N', 'G'}
	f := extract.File{
		Name:        "scan.png",
		ContentType: "image/png",
		Size:        int64(len(payload)),
		Data:        payload,
	}

	res, err := e.Extract(context.Background(), f)
	if err != nil {
		t.Fatalf("extract error: %+v", err)
	}

	wantPrefix := "data:image/png;base64,"
	if !strings.HasPrefix(ocr.gotURL, wantPrefix) {
		t.Fatalf("bad data URL prefix: %q", ocr.gotURL)
	}
	if got := strings.TrimPrefix(ocr.gotURL, wantPrefix); got != base64.StdEncoding.EncodeToString(payload) {
		t.Fatalf("payload not base64 encoded: %q", got)
	}

	if res.Text != "hello" {
		t.Fatalf("got %q", res.Text)
	}
	if res.Metadata["fileName"] != "scan.png" || res.Metadata["fileSize"] != "4" {
		t.Fatalf("metadata: %+v", res.Metadata)
	}
}

func TestExtractEmptyTextIsBadRequest(t *testing.T) {
	e := New(&stubOCR{text: "   \n  "})

	_, err := e.Extract(context.Background(), extract.File{ContentType: "image/jpeg", Data: []byte{1}})
	if err == nil || err.Kind != extract.KindNoTextContent {
		t.Fatalf("expected no_text_content, got %+v", err)
	}
	if err.HTTPStatus != 400 {
		t.Fatalf("expected 400 for an unreadable image, got %d", err.HTTPStatus)
	}
}

func TestExtractPropagatesClientError(t *testing.T) {
	want := extract.NewError(extract.KindUpstreamUnavailable,
		"The text recognition service is temporarily unavailable. Please try again.")
	e := New(&stubOCR{err: want})

	_, err := e.Extract(context.Background(), extract.File{ContentType: "image/jpeg", Data: []byte{1}})
	if err != want {
		t.Fatalf("expected client error passed through, got %+v", err)
	}
}

func TestExtractUsesSniffedTypeWhenDeclaredMissing(t *testing.T) {
	ocr := &stubOCR{text: "x"}
	e := New(ocr)

	_, err := e.Extract(context.Background(), extract.File{SniffedType: "image/jpeg", Data: []byte{1}})
	if err != nil {
		t.Fatalf("extract error: %+v", err)
	}
	if !strings.HasPrefix(ocr.gotURL, "data:image/jpeg;base64,") {
		t.Fatalf("sniffed type not used: %q", ocr.gotURL)
	}
}
