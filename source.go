package arbor

import (
	"fmt"
	"os"
	"sync"

	"github.com/jward/arbor/internal/parse"
)

// Source is the content of a file together with its modification stamp.
// Stamps are hashes of the content, so two reads of the same bytes always
// agree no matter where they came from.
type Source struct {
	Content []byte
	Stamp   uint64
}

// SourceProvider reads file contents for analysis.
type SourceProvider interface {
	Contents(path string) (Source, error)
}

// DiskProvider reads files from the local filesystem.
type DiskProvider struct{}

func (DiskProvider) Contents(path string) (Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Source{}, err
	}
	return Source{Content: data, Stamp: parse.Stamp(data)}, nil
}

// Edit replaces Length bytes at Offset with Replacement.
type Edit struct {
	Offset      int
	Length      int
	Replacement string
}

// OverlayProvider serves in-memory content for files being edited and
// falls back to a base provider for everything else.
type OverlayProvider struct {
	base SourceProvider

	mu       sync.Mutex
	overlays map[string][]byte
}

// NewOverlayProvider layers overlays over base. A nil base reads from disk.
func NewOverlayProvider(base SourceProvider) *OverlayProvider {
	if base == nil {
		base = DiskProvider{}
	}
	return &OverlayProvider{base: base, overlays: make(map[string][]byte)}
}

// Add sets the overlay content of path, replacing any previous overlay.
func (p *OverlayProvider) Add(path, content string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.overlays[path] = []byte(content)
}

// Change applies edits, in order, to the overlay of path. Each edit's range
// refers to the content produced by the edits before it. No edit is
// applied when any of them is out of range.
func (p *OverlayProvider) Change(path string, edits ...Edit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	content, ok := p.overlays[path]
	if !ok {
		return fmt.Errorf("arbor: change %s: no overlay", path)
	}
	for i, ed := range edits {
		if ed.Offset < 0 || ed.Length < 0 || ed.Offset > len(content) || ed.Length > len(content)-ed.Offset {
			return fmt.Errorf("arbor: change %s: edit %d: range %d+%d outside content of length %d",
				path, i, ed.Offset, ed.Length, len(content))
		}
		next := make([]byte, 0, len(content)-ed.Length+len(ed.Replacement))
		next = append(next, content[:ed.Offset]...)
		next = append(next, ed.Replacement...)
		next = append(next, content[ed.Offset+ed.Length:]...)
		content = next
	}
	p.overlays[path] = content
	return nil
}

// Remove drops the overlay of path so reads fall through to the base.
func (p *OverlayProvider) Remove(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.overlays, path)
}

// HasOverlay reports whether path has overlay content.
func (p *OverlayProvider) HasOverlay(path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.overlays[path]
	return ok
}

func (p *OverlayProvider) Contents(path string) (Source, error) {
	p.mu.Lock()
	content, ok := p.overlays[path]
	p.mu.Unlock()
	if ok {
		return Source{Content: content, Stamp: parse.Stamp(content)}, nil
	}
	return p.base.Contents(path)
}

// ContentChange is one entry of an UpdateContent call. Build it with
// AddContent, ChangeContent or RemoveContent.
type ContentChange struct {
	kind    changeKind
	content string
	edits   []Edit
}

type changeKind int

const (
	addContent changeKind = iota
	changeContent
	removeContent
)

// AddContent replaces the file's content with an overlay.
func AddContent(content string) ContentChange {
	return ContentChange{kind: addContent, content: content}
}

// ChangeContent edits the file's existing overlay.
func ChangeContent(edits ...Edit) ContentChange {
	return ContentChange{kind: changeContent, edits: edits}
}

// RemoveContent drops the file's overlay, reverting to the content on disk.
func RemoveContent() ContentChange {
	return ContentChange{kind: removeContent}
}

func (p *OverlayProvider) apply(path string, c ContentChange) error {
	switch c.kind {
	case addContent:
		p.Add(path, c.content)
	case changeContent:
		return p.Change(path, c.edits...)
	case removeContent:
		p.Remove(path)
	}
	return nil
}
