// Package parse turns Java and TypeScript source into ast trees using
// tree-sitter grammars.
package parse

import (
	"context"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jward/arbor/internal/ast"
	sitter "github.com/smacker/go-tree-sitter"
)

// DefaultCacheSize is the number of parsed trees kept when no size is
// configured.
const DefaultCacheSize = 256

// ErrUnsupported is returned for a language or file extension with no
// grammar.
var ErrUnsupported = errors.New("unsupported language")

// Parser parses source into ast trees. Trees are cached by a hash of the
// language and content; every caller receives its own clone, so a returned
// tree may be mutated freely. A Parser is safe for concurrent use.
type Parser struct {
	cache *lru.Cache[uint64, *ast.Node]
}

// NewParser returns a parser caching up to cacheSize trees. A size of zero
// or less selects DefaultCacheSize.
func NewParser(cacheSize int) (*Parser, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[uint64, *ast.Node](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("parse: create cache: %w", err)
	}
	return &Parser{cache: cache}, nil
}

// Stamp returns the content stamp used to detect changed files.
func Stamp(src []byte) uint64 {
	return xxhash.Sum64(src)
}

func cacheKey(lang string, src []byte) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(lang)
	_, _ = d.Write([]byte{0})
	_, _ = d.Write(src)
	return d.Sum64()
}

// ParseFile parses src using the language implied by path's extension.
func (p *Parser) ParseFile(ctx context.Context, path string, src []byte) (*ast.Node, error) {
	lang, ok := LanguageForFile(path)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupported)
	}
	return p.Parse(ctx, lang, src)
}

// Parse parses src as lang and returns a CompilationUnit. Syntax errors do
// not fail the parse; they appear as SyntaxError nodes in the tree.
func (p *Parser) Parse(ctx context.Context, lang string, src []byte) (*ast.Node, error) {
	g, ok := grammarFor(lang)
	if !ok {
		return nil, fmt.Errorf("%q: %w", lang, ErrUnsupported)
	}

	key := cacheKey(lang, src)
	if cached, ok := p.cache.Get(key); ok {
		return ast.Clone(cached), nil
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(g.language())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse: tree-sitter parse failed: %w", err)
	}
	defer tree.Close()

	c := &converter{g: g, lang: lang, src: src}
	unit := c.convert(tree.RootNode())
	p.cache.Add(key, unit)
	return ast.Clone(unit), nil
}

// Len returns the number of cached trees.
func (p *Parser) Len() int {
	return p.cache.Len()
}

// SyntaxErrors returns the SyntaxError nodes under root in source order,
// skipping errors nested inside another error.
func SyntaxErrors(root *ast.Node) []*ast.Node {
	var out []*ast.Node
	ast.Inspect(root, func(n *ast.Node) bool {
		if n == nil {
			return false
		}
		if n.Kind() == ast.KindSyntaxError {
			out = append(out, n)
			return false
		}
		return true
	})
	return out
}
