// Package convert turns raw document bytes into plain text (§4.5). MIME
// sniffing is delegated to github.com/gabriel-vasile/mimetype; HTML is
// rendered to Markdown (preserving heading structure for the Chunker's
// structured mode) via github.com/JohannesKaufmann/html-to-markdown/v2.
// Plain text and Markdown pass through unchanged. Size and wall-clock bounds
// are enforced with a limited reader and context.WithTimeout, grounded on
// the teacher's ingestion.Pipeline.fetch, which bounds fetches the same way
// via http.Client.Timeout.
package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/gabriel-vasile/mimetype"
)

// FailureClass classifies why a conversion failed (§4.5's "exception
// class"), carried in ConversionFailed so the Orchestrator can turn it into
// a fallback document.
type FailureClass string

const (
	FailureOversize    FailureClass = "oversize"
	FailureTimeout     FailureClass = "timeout"
	FailureUnsupported FailureClass = "unsupported_type"
	FailureMalformed   FailureClass = "malformed"
)

// ConversionFailed is returned instead of text+metadata when conversion
// cannot produce usable text. The Orchestrator synthesizes a document body
// describing the failure so downstream search can still surface the file's
// existence, name, and parent (§4.5).
type ConversionFailed struct {
	Class FailureClass
	Desc  string
}

func (e *ConversionFailed) Error() string {
	return fmt.Sprintf("convert: %s: %s", e.Class, e.Desc)
}

// supportedTextLike lists MIME prefixes convertible to plain text without a
// dedicated extractor. Anything else is FailureUnsupported — extending this
// list (e.g. PDF, DOCX) is future work, not required by any configured
// source adapter today.
var supportedTextLike = []string{
	"text/",
	"application/json",
	"application/xml",
	"application/x-yaml",
}

// Convert sniffs raw's MIME type (mimeHint is advisory — a Content-Type
// header or file extension — and is overridden by sniffing when they
// disagree) and returns plain text plus metadata (`content_type`,
// `original_size_bytes`). Enforces maxSize and timeout; both surface as a
// *ConversionFailed, never a generic error, so the Orchestrator can always
// classify the failure.
func Convert(ctx context.Context, raw []byte, mimeHint string, maxSize int64, timeout time.Duration) (string, map[string]string, *ConversionFailed) {
	if maxSize > 0 && int64(len(raw)) > maxSize {
		return "", nil, &ConversionFailed{Class: FailureOversize, Desc: fmt.Sprintf("%d bytes exceeds max_size %d", len(raw), maxSize)}
	}

	done := make(chan struct{})
	var text string
	var meta map[string]string
	var failure *ConversionFailed

	cctx, cancel := context.WithTimeout(ctx, timeoutOrDefault(timeout))
	defer cancel()

	go func() {
		defer close(done)
		text, meta, failure = convertSync(raw, mimeHint)
	}()

	select {
	case <-done:
		return text, meta, failure
	case <-cctx.Done():
		return "", nil, &ConversionFailed{Class: FailureTimeout, Desc: "conversion exceeded timeout"}
	}
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return 30 * time.Second
	}
	return d
}

func convertSync(raw []byte, mimeHint string) (string, map[string]string, *ConversionFailed) {
	mtype := mimetype.Detect(raw)
	contentType := mtype.String()
	if contentType == "" {
		contentType = mimeHint
	}

	meta := map[string]string{
		"content_type":        contentType,
		"original_size_bytes": fmt.Sprintf("%d", len(raw)),
	}

	switch {
	case mtype.Is("text/html") || strings.Contains(mimeHint, "html"):
		text, err := htmlToText(raw)
		if err != nil {
			return "", nil, &ConversionFailed{Class: FailureMalformed, Desc: err.Error()}
		}
		return text, meta, nil

	case isTextLike(contentType):
		return string(raw), meta, nil

	default:
		return "", nil, &ConversionFailed{Class: FailureUnsupported, Desc: fmt.Sprintf("unsupported MIME type %q", contentType)}
	}
}

func isTextLike(contentType string) bool {
	for _, prefix := range supportedTextLike {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}

// htmlToText renders HTML to Markdown, keeping heading (`#`) structure so
// the Chunker's structured mode has section boundaries to split on.
func htmlToText(raw []byte) (string, error) {
	out, err := md.ConvertString(string(raw))
	if err != nil {
		return "", fmt.Errorf("html-to-markdown: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// BoundedReader returns an io.Reader that stops after limit+1 bytes, for
// adapters that stream bytes from a network source before handing them to
// Convert. It never returns an error of its own; reading limit+1 bytes is
// how a caller (see ReadAllBounded) detects an over-limit stream.
func BoundedReader(r io.Reader, limit int64) io.Reader {
	return io.LimitReader(r, limit+1)
}

// ReadAllBounded reads all of r up to limit+1 bytes and errs if the result
// exceeds limit, so callers never buffer an unbounded stream before Convert
// even sees it.
func ReadAllBounded(r io.Reader, limit int64) ([]byte, error) {
	buf := &bytes.Buffer{}
	n, err := io.Copy(buf, BoundedReader(r, limit))
	if err != nil {
		return nil, fmt.Errorf("convert: read: %w", err)
	}
	if n > limit {
		return nil, fmt.Errorf("convert: stream exceeded %d bytes", limit)
	}
	return buf.Bytes(), nil
}
