package convert

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestConvertPlainText(t *testing.T) {
	text, meta, err := Convert(context.Background(), []byte("hello world"), "text/plain", 0, 0)
	if err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
	if text != "hello world" {
		t.Fatalf("unexpected text %q", text)
	}
	if meta["content_type"] == "" {
		t.Fatal("expected content_type metadata")
	}
}

func TestConvertHTMLKeepsHeadings(t *testing.T) {
	html := []byte("<html><body><h1>Title</h1><p>Body text.</p></body></html>")
	text, _, err := Convert(context.Background(), html, "text/html", 0, 0)
	if err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
	if !strings.Contains(text, "Title") || !strings.Contains(text, "Body text") {
		t.Fatalf("expected rendered markdown to retain content, got %q", text)
	}
}

func TestConvertOversizeFails(t *testing.T) {
	_, _, err := Convert(context.Background(), []byte("0123456789"), "text/plain", 5, 0)
	if err == nil || err.Class != FailureOversize {
		t.Fatalf("expected FailureOversize, got %v", err)
	}
}

func TestConvertUnsupportedType(t *testing.T) {
	// A PNG file signature — binary, not text-like.
	raw := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0}
	_, _, err := Convert(context.Background(), raw, "", 0, 0)
	if err == nil || err.Class != FailureUnsupported {
		t.Fatalf("expected FailureUnsupported, got %v", err)
	}
}

func TestConvertTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := Convert(ctx, []byte("short"), "text/plain", 0, time.Second)
	if err == nil || err.Class != FailureTimeout {
		t.Fatalf("expected FailureTimeout, got %v", err)
	}
}
