// Package docid derives the stable identifiers the rest of the system keys
// everything on: a Document's id from its (source_type, source_name, url)
// triple, and a content hash used to detect change. Both functions are pure
// and unconfigurable — the same inputs must yield the same outputs across
// working directories, symlink resolutions, and process restarts.
package docid

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// DocumentID returns a stable identifier for the tuple (sourceType,
// sourceName, rawURL). sourceType is lower-cased; sourceName is used
// verbatim; rawURL is canonicalized first (see canonicalizeURL). The result
// is the hex-encoded SHA-256 of the three fields joined by ":".
func DocumentID(sourceType, sourceName, rawURL string) string {
	parts := strings.Join([]string{
		strings.ToLower(sourceType),
		sourceName,
		canonicalizeURL(rawURL),
	}, ":")
	sum := sha256.Sum256([]byte(parts))
	return hex.EncodeToString(sum[:])
}

// ContentHash returns the hex-encoded SHA-256 of the UTF-8 bytes of text.
// This is the authoritative change detector: two Documents with identical
// content always have the same ContentHash regardless of how they were
// fetched.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// canonicalizeURL normalizes rawURL so that equivalent references to the
// same upstream object collapse to the same string:
//   - file:// URLs are resolved to their real path (symlinks followed) so
//     that the same file reached via two different symlinks, or via an
//     absolute vs. relative path, produces one canonical form.
//   - other schemes are parsed and re-serialized, which normalizes percent
//     escaping and removes a redundant default port.
//   - a trailing slash is preserved only when the original path ends in one
//     (signalling a directory); it is never added.
func canonicalizeURL(rawURL string) string {
	trailingSlash := strings.HasSuffix(rawURL, "/") && rawURL != "/"

	if p, ok := strings.CutPrefix(rawURL, "file://"); ok {
		real, err := filepath.EvalSymlinks(p)
		if err != nil {
			// Path does not exist (e.g. a deletion event): fall back to a
			// lexically cleaned absolute path so the ID is still stable.
			abs, absErr := filepath.Abs(p)
			if absErr != nil {
				abs = filepath.Clean(p)
			}
			real = abs
		}
		canon := "file://" + filepath.ToSlash(real)
		if trailingSlash && !strings.HasSuffix(canon, "/") {
			canon += "/"
		}
		return canon
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	decodedPath, err := url.PathUnescape(u.Path)
	if err == nil {
		u.Path = decodedPath
	}
	u.Host = stripDefaultPort(u)
	canon := u.String()
	if trailingSlash && !strings.HasSuffix(canon, "/") {
		canon += "/"
	}
	return canon
}

// stripDefaultPort removes ":80" from http URLs and ":443" from https URLs
// so that explicit and implicit default ports canonicalize identically.
func stripDefaultPort(u *url.URL) string {
	host := u.Host
	switch {
	case u.Scheme == "http" && strings.HasSuffix(host, ":80"):
		return strings.TrimSuffix(host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(host, ":443"):
		return strings.TrimSuffix(host, ":443")
	default:
		return host
	}
}

// LocalFileURL builds the file:// URL form used for local-file sources,
// resolving path to its real, absolute form first so DocumentID is stable
// regardless of the symlink or relative path used to reach it.
func LocalFileURL(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if info, statErr := os.Lstat(abs); statErr == nil && info.Mode()&os.ModeSymlink != 0 {
		if real, evalErr := filepath.EvalSymlinks(abs); evalErr == nil {
			abs = real
		}
	}
	return "file://" + filepath.ToSlash(abs)
}
