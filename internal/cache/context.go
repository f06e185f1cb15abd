package cache

import (
	"bufio"
	"cmp"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/jward/arbor/internal/ast"
)

const (
	endLibraryTag = "</end-library>"
	endCacheTag   = "</end-cache>"
)

// ErrMissingSentinel is returned by ReadCache when the stream ends before
// its closing sentinel line.
var ErrMissingSentinel = errors.New("expected " + endCacheTag + " but found EOF")

// Context maps files to libraries and unresolved units within one analysis
// root. It is safe for concurrent use.
type Context struct {
	id string

	mu         sync.Mutex
	libraries  map[string]*Library
	unresolved map[string]*ast.Node
}

// NewContext returns an empty context identified by id, normally the
// analysis root path.
func NewContext(id string) *Context {
	return &Context{
		id:         id,
		libraries:  make(map[string]*Library),
		unresolved: make(map[string]*ast.Node),
	}
}

func (c *Context) ID() string { return c.id }

// CacheLibrary inserts or replaces lib. Caching a resolved library drops
// the unresolved units of its source files.
func (c *Context) CacheLibrary(lib *Library) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.libraries[lib.File] = lib
	if lib.resolved {
		for _, f := range lib.SourceFiles {
			delete(c.unresolved, f)
		}
	}
}

// CacheUnresolvedUnit inserts or replaces the parsed unit for file.
func (c *Context) CacheUnresolvedUnit(file string, unit *ast.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unresolved[file] = unit
}

// DiscardLibraries drops everything.
func (c *Context) DiscardLibraries() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.libraries)
	clear(c.unresolved)
}

// DiscardLibrary removes lib and the unresolved units of its files.
func (c *Context) DiscardLibrary(lib *Library) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discardLocked(lib)
}

func (c *Context) discardLocked(lib *Library) {
	delete(c.libraries, lib.File)
	delete(c.unresolved, lib.File)
	for _, f := range lib.SourceFiles {
		delete(c.unresolved, f)
	}
}

// DiscardLibraryAndReferencingLibraries removes lib and, transitively, every
// cached library importing a removed one. It returns the removed libraries,
// lib first.
func (c *Context) DiscardLibraryAndReferencingLibraries(lib *Library) []*Library {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		removed []*Library
		visited = make(map[string]bool)
		pending = []*Library{lib}
	)
	for len(pending) > 0 {
		next := pending[0]
		pending = pending[1:]
		if visited[next.File] {
			continue
		}
		visited[next.File] = true
		c.discardLocked(next)
		removed = append(removed, next)
		pending = append(pending, c.importingLocked(next.File)...)
	}
	return removed
}

// CachedLibraries returns every cached library ordered by file.
func (c *Context) CachedLibraries() []*Library {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sortedLocked()
}

func (c *Context) sortedLocked() []*Library {
	out := make([]*Library, 0, len(c.libraries))
	for _, lib := range c.libraries {
		out = append(out, lib)
	}
	slices.SortFunc(out, func(a, b *Library) int { return cmp.Compare(a.File, b.File) })
	return out
}

// CachedLibrary returns the library defined by file, or nil.
func (c *Context) CachedLibrary(file string) *Library {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.libraries[file]
}

// CachedUnit returns lib's resolved unit for file if there is one, else the
// unresolved unit, else nil. lib may be nil.
func (c *Context) CachedUnit(lib *Library, file string) *ast.Node {
	if lib != nil {
		if u := lib.ResolvedUnit(file); u != nil {
			return u
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unresolved[file]
}

// UnresolvedFiles returns the files with a parsed but unresolved unit,
// sorted.
func (c *Context) UnresolvedFiles() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.unresolved))
	for f := range c.unresolved {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// LibrariesContaining returns the library defined by path; failing that,
// the libraries that source path; failing that, the libraries with a source
// file under the directory path. The result is never nil.
func (c *Context) LibrariesContaining(path string) []*Library {
	c.mu.Lock()
	defer c.mu.Unlock()

	if lib, ok := c.libraries[path]; ok {
		return []*Library{lib}
	}
	result := []*Library{}
	for _, lib := range c.sortedLocked() {
		if lib.Sources(path) {
			result = append(result, lib)
		}
	}
	if len(result) > 0 {
		return result
	}

	prefix := strings.TrimSuffix(path, "/") + "/"
	for _, lib := range c.sortedLocked() {
		for _, f := range lib.SourceFiles {
			if strings.HasPrefix(f, prefix) {
				result = append(result, lib)
				break
			}
		}
	}
	return result
}

// LibrariesImporting returns the cached libraries that import file.
func (c *Context) LibrariesImporting(file string) []*Library {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.importingLocked(file)
}

func (c *Context) importingLocked(file string) []*Library {
	result := []*Library{}
	for _, lib := range c.sortedLocked() {
		if lib.Imports(file) {
			result = append(result, lib)
		}
	}
	return result
}

// WriteCache writes one block per resolved library followed by the
// end-of-cache sentinel. Unresolved libraries are skipped so a reload
// re-analyzes them instead of serving partial state.
//
//	/src/A.java
//	source /src/A.java
//	import /src/B.java
//	stamp 9f3a01c2 /src/A.java
//	</end-library>
//	</end-cache>
func (c *Context) WriteCache(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, lib := range c.CachedLibraries() {
		if !lib.IsResolved() {
			continue
		}
		fmt.Fprintln(bw, lib.File)
		for _, f := range lib.SourceFiles {
			fmt.Fprintln(bw, "source", f)
		}
		for _, f := range lib.ImportedFiles {
			fmt.Fprintln(bw, "import", f)
		}
		stamped := make([]string, 0, len(lib.Stamps))
		for f := range lib.Stamps {
			stamped = append(stamped, f)
		}
		slices.Sort(stamped)
		for _, f := range stamped {
			fmt.Fprintf(bw, "stamp %x %s\n", lib.Stamps[f], f)
		}
		fmt.Fprintln(bw, endLibraryTag)
	}
	fmt.Fprintln(bw, endCacheTag)
	return bw.Flush()
}

// ReadCache loads library blocks written by WriteCache into the context.
// Loaded libraries are not resolved; callers compare stamps to decide what
// to re-analyze first.
func (c *Context) ReadCache(r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var loaded []*Library
	for {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return fmt.Errorf("read cache: %w", err)
			}
			return fmt.Errorf("read cache: %w", ErrMissingSentinel)
		}
		path := sc.Text()
		if path == endCacheTag {
			break
		}
		lib, err := readLibrary(sc, path)
		if err != nil {
			return fmt.Errorf("read cache: %w", err)
		}
		loaded = append(loaded, lib)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, lib := range loaded {
		c.libraries[lib.File] = lib
	}
	return nil
}

func readLibrary(sc *bufio.Scanner, path string) (*Library, error) {
	lib := &Library{File: path, Stamps: make(map[string]uint64)}
	for sc.Scan() {
		line := sc.Text()
		if line == endLibraryTag {
			return lib, nil
		}
		tag, rest, _ := strings.Cut(line, " ")
		switch tag {
		case "source":
			lib.SourceFiles = append(lib.SourceFiles, rest)
		case "import":
			lib.ImportedFiles = append(lib.ImportedFiles, rest)
		case "stamp":
			hex, file, ok := strings.Cut(rest, " ")
			if !ok {
				return nil, fmt.Errorf("library %s: malformed stamp line %q", path, line)
			}
			v, err := strconv.ParseUint(hex, 16, 64)
			if err != nil {
				return nil, fmt.Errorf("library %s: stamp for %s: %w", path, file, err)
			}
			lib.Stamps[file] = v
		default:
			return nil, fmt.Errorf("library %s: unexpected line %q", path, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("library %s: %w", path, ErrMissingSentinel)
}
