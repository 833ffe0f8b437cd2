package lsp

import (
	"net/url"
	"path/filepath"
	"strings"
)

// PathToURI converts an absolute file path to a file:// URI, escaping
// special characters the way servers expect.
func PathToURI(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}

// URIToPath converts a file:// URI back to a local path. Anything that is
// not a file URI comes back unchanged.
func URIToPath(uri string) string {
	if !strings.HasPrefix(uri, "file://") {
		return uri
	}
	u, err := url.Parse(uri)
	if err != nil {
		return strings.TrimPrefix(uri, "file://")
	}
	return filepath.FromSlash(u.Path)
}
