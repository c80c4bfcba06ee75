package vision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mseiller/test-buddy-extract/internal/extract"
)

func newTestClient(url string) *Client {
	c := NewClient("test-key", "vision-model", 512, 0.1, 5*time.Second)
	c.APIURL = url
	return c
}

func TestExtractTextRequestShape(t *testing.T) {
	var captured struct {
		auth string
		body map[string]any
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&captured.body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Receipt total: $42  "}}]}`))
	}))
	defer srv.Close()

	text, xerr := newTestClient(srv.URL).ExtractText(context.Background(), "data:image/png;base64,AAAA")
	if xerr != nil {
		t.Fatalf("extract error: %+v", xerr)
	}
	if text != "Receipt total: $42" {
		t.Fatalf("content not trimmed: %q", text)
	}

	if captured.auth != "Bearer test-key" {
		t.Fatalf("bad auth header %q", captured.auth)
	}
	if captured.body["model"] != "vision-model" {
		t.Fatalf("bad model %v", captured.body["model"])
	}
	if captured.body["max_tokens"] != float64(512) {
		t.Fatalf("bad max_tokens %v", captured.body["max_tokens"])
	}

	msgs, ok := captured.body["messages"].([]any)
	if !ok || len(msgs) != 2 {
		t.Fatalf("expected system+user messages, got %v", captured.body["messages"])
	}
	system := msgs[0].(map[string]any)
	if system["role"] != "system" || !strings.Contains(system["content"].(string), "Return only the extracted text") {
		t.Fatalf("bad system message %v", system)
	}
	user := msgs[1].(map[string]any)
	parts := user["content"].([]any)
	imagePart := parts[1].(map[string]any)
	urlObj := imagePart["image_url"].(map[string]any)
	if urlObj["url"] != "data:image/png;base64,AAAA" {
		t.Fatalf("data URL not forwarded: %v", urlObj["url"])
	}
}

func TestExtractTextMissingKeySkipsNetwork(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.APIKey = "  "

	_, xerr := c.ExtractText(context.Background(), "data:image/png;base64,AAAA")
	if xerr == nil || xerr.Kind != extract.KindConfigurationMissing {
		t.Fatalf("expected configuration_missing, got %+v", xerr)
	}
	if calls != 0 {
		t.Fatalf("network was reached %d times without a credential", calls)
	}
}

func TestExtractTextUpstreamFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"http error", http.StatusBadGateway, `upstream exploded`},
		{"inline error", http.StatusOK, `{"error":{"code":429,"message":"rate limited"}}`},
		{"empty choices", http.StatusOK, `{"choices":[]}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, xerr := newTestClient(srv.URL).ExtractText(context.Background(), "data:image/png;base64,AAAA")
			if xerr == nil || xerr.Kind != extract.KindUpstreamUnavailable {
				t.Fatalf("expected upstream_unavailable, got %+v", xerr)
			}
			if xerr.HTTPStatus != 500 {
				t.Fatalf("expected 500, got %d", xerr.HTTPStatus)
			}
			if strings.Contains(xerr.Message, "exploded") || strings.Contains(xerr.Message, "rate limited") {
				t.Fatalf("upstream detail leaked into user message: %q", xerr.Message)
			}
			if xerr.Original == "" {
				t.Fatal("diagnostic detail missing from Original")
			}
		})
	}
}
