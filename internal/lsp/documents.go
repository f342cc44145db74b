package lsp

import (
	"sort"
	"sync"

	"chtl/internal/session"
)

// documentStore holds the text of open documents. It is the snapshot source
// the validation manager reads at fire time and compares against before
// publishing.
type documentStore struct {
	mu   sync.RWMutex
	docs map[string]session.Document
}

func newDocumentStore() *documentStore {
	return &documentStore{docs: make(map[string]session.Document)}
}

func (d *documentStore) Document(uri string) (session.Document, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	doc, ok := d.docs[uri]
	return doc, ok
}

func (d *documentStore) open(uri string, version int, text string) session.Document {
	doc := session.Document{URI: uri, Version: version, Text: text}
	d.mu.Lock()
	d.docs[uri] = doc
	d.mu.Unlock()
	return doc
}

// change applies edits to an open document. Unknown documents start from
// empty text so a full-sync change still recovers them.
func (d *documentStore) change(uri string, version int, changes []textDocumentContentChangeEvent) session.Document {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc := d.docs[uri]
	doc.URI = uri
	doc.Version = version
	doc.Text = applyChanges(doc.Text, changes)
	d.docs[uri] = doc
	return doc
}

// save records the saved text when the client includes it. It reports false
// for documents that are not open.
func (d *documentStore) save(uri string, text *string) (session.Document, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, ok := d.docs[uri]
	if !ok {
		return session.Document{}, false
	}
	if text != nil {
		doc.Text = *text
		d.docs[uri] = doc
	}
	return doc, true
}

func (d *documentStore) close(uri string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.docs[uri]
	delete(d.docs, uri)
	return ok
}

func (d *documentStore) uris() []string {
	d.mu.RLock()
	out := make([]string, 0, len(d.docs))
	for uri := range d.docs {
		out = append(out, uri)
	}
	d.mu.RUnlock()
	sort.Strings(out)
	return out
}
