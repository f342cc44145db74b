package lsp

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestURIRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "my pages", "index.chtl")
	uri := PathToURI(path)
	assert.Contains(t, uri, "my%20pages")
	assert.Equal(t, path, URIToPath(uri))
}

func TestCanonicalURI(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a b.chtl")
	want := PathToURI(path)
	assert.Equal(t, want, canonicalURI(want))
	assert.Equal(t, "untitled:Untitled-1", canonicalURI("untitled:Untitled-1"))
	assert.Empty(t, canonicalURI(""))
	assert.Empty(t, URIToPath("untitled:Untitled-1"))
}
