package lsp

import (
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
)

// URIToPath converts a file URI to an absolute local path. Other schemes
// yield "".
func URIToPath(uri string) string {
	if uri == "" {
		return ""
	}
	parsed, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	if parsed.Scheme != "" && parsed.Scheme != "file" {
		return ""
	}
	path := parsed.Path
	if parsed.Scheme == "" {
		path = uri
	}
	if unescaped, err := url.PathUnescape(path); err == nil {
		path = unescaped
	}
	// file:///C:/x arrives as /C:/x.
	if runtime.GOOS == "windows" && len(path) >= 3 && path[0] == '/' && path[2] == ':' {
		path = path[1:]
	}
	path = filepath.FromSlash(path)
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path
}

// PathToURI converts a local path to a file URI.
func PathToURI(path string) string {
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	slashed := filepath.ToSlash(path)
	if !strings.HasPrefix(slashed, "/") {
		slashed = "/" + slashed
	}
	u := url.URL{Scheme: "file", Path: slashed}
	return u.String()
}

// canonicalURI normalizes file URIs so that differently escaped spellings of
// the same path share one document. Other schemes are kept verbatim.
func canonicalURI(uri string) string {
	if uri == "" {
		return ""
	}
	if !strings.HasPrefix(uri, "file:") {
		return uri
	}
	path := URIToPath(uri)
	if path == "" {
		return uri
	}
	return PathToURI(path)
}
