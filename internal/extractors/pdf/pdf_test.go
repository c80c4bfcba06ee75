package pdf

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mseiller/test-buddy-extract/internal/extract"
)

type stubDocParser struct {
	doc   DocText
	err   error
	calls int
}

func (s *stubDocParser) Parse(data []byte) (DocText, error) {
	s.calls++
	return s.doc, s.err
}

type stubPageParser struct {
	pages []string
	err   error
	calls int
}

func (s *stubPageParser) Pages(data []byte) ([]string, error) {
	s.calls++
	return s.pages, s.err
}

func TestPrimarySuccess(t *testing.T) {
	primary := &stubDocParser{doc: DocText{
		Text:  "Chapter one.\n\nChapter two.",
		Pages: 2,
		Info:  map[string]string{"title": "Sample"},
	}}
	fallback := &stubPageParser{}
	e := New(primary, fallback)

	res, err := e.Extract(context.Background(), extract.File{Data: []byte("%PDF")})
	if err != nil {
		t.Fatalf("extract error: %+v", err)
	}
	if res.Method != extract.MethodPrimary {
		t.Fatalf("expected primary method, got %q", res.Method)
	}
	if res.PageCount != 2 || res.Info["title"] != "Sample" {
		t.Fatalf("metadata lost: %+v", res)
	}
	if fallback.calls != 0 {
		t.Fatal("fallback ran after a successful primary parse")
	}
}

func TestPrimaryEmptyTextDoesNotFallThrough(t *testing.T) {
	primary := &stubDocParser{doc: DocText{Text: "   \n\n  ", Pages: 3}}
	fallback := &stubPageParser{pages: []string{"should not be read"}}
	e := New(primary, fallback)

	_, err := e.Extract(context.Background(), extract.File{Data: []byte("%PDF")})
	if err == nil || err.Kind != extract.KindNoTextContent {
		t.Fatalf("expected no_text_content, got %+v", err)
	}
	if err.HTTPStatus != 422 {
		t.Fatalf("expected 422, got %d", err.HTTPStatus)
	}
	if err.Pages != 3 {
		t.Fatalf("page count lost: %d", err.Pages)
	}
	if fallback.calls != 0 {
		t.Fatal("fallback ran on a successful parse with no text")
	}
}

func TestPasswordErrorShortCircuits(t *testing.T) {
	primary := &stubDocParser{err: errors.New("pdfcpu: please provide the correct password")}
	fallback := &stubPageParser{pages: []string{"text"}}
	e := New(primary, fallback)

	_, err := e.Extract(context.Background(), extract.File{Data: []byte("%PDF")})
	if err == nil || err.Kind != extract.KindPasswordProtected {
		t.Fatalf("expected password_protected, got %+v", err)
	}
	if err.HTTPStatus != 403 {
		t.Fatalf("expected 403, got %d", err.HTTPStatus)
	}
	if fallback.calls != 0 {
		t.Fatal("fallback ran on a password-protected document")
	}
}

func TestStructuralFailureTriggersFallback(t *testing.T) {
	primary := &stubDocParser{err: errors.New("xref table missing")}
	fallback := &stubPageParser{pages: []string{"First page.", "Second page."}}
	e := New(primary, fallback)

	res, err := e.Extract(context.Background(), extract.File{Data: []byte("%PDF")})
	if err != nil {
		t.Fatalf("extract error: %+v", err)
	}
	if res.Method != extract.MethodFallback {
		t.Fatalf("expected fallback method, got %q", res.Method)
	}
	if res.PageCount != 2 {
		t.Fatalf("expected 2 pages, got %d", res.PageCount)
	}

	first := strings.Index(res.Text, "--- Page 1 ---")
	second := strings.Index(res.Text, "--- Page 2 ---")
	if first < 0 || second < 0 || second < first {
		t.Fatalf("page headers missing or out of order:\n%s", res.Text)
	}
	if !strings.Contains(res.Text, "First page.") || !strings.Contains(res.Text, "Second page.") {
		t.Fatalf("page text missing:\n%s", res.Text)
	}
}

func TestBothParsersFail(t *testing.T) {
	primary := &stubDocParser{err: errors.New("xref table missing")}
	fallback := &stubPageParser{err: errors.New("Invalid PDF structure")}
	e := New(primary, fallback)

	_, err := e.Extract(context.Background(), extract.File{Data: []byte("junk")})
	if err == nil || err.Kind != extract.KindCorrupted {
		t.Fatalf("expected corrupted, got %+v", err)
	}
	if err.Method != extract.MethodFallback {
		t.Fatalf("failure should name the fallback, got %q", err.Method)
	}
	if primary.calls != 1 || fallback.calls != 1 {
		t.Fatalf("each parser should run exactly once: primary=%d fallback=%d", primary.calls, fallback.calls)
	}
}

func TestFallbackEmptyText(t *testing.T) {
	primary := &stubDocParser{err: errors.New("xref table missing")}
	fallback := &stubPageParser{pages: []string{"", "  "}}
	e := New(primary, fallback)

	_, err := e.Extract(context.Background(), extract.File{Data: []byte("%PDF")})
	if err == nil || err.Kind != extract.KindNoTextContent {
		t.Fatalf("expected no_text_content, got %+v", err)
	}
	if err.Method != extract.MethodFallback {
		t.Fatalf("expected fallback method, got %q", err.Method)
	}
	if err.Pages != 2 {
		t.Fatalf("expected 2 pages, got %d", err.Pages)
	}
}
