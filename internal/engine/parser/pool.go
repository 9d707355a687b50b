package parser

import (
	"sync"
	"sync/atomic"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
)

// ParserPool recycles tree-sitter parsers for one grammar.
//
//	sp := pool.Get()
//	defer pool.Put(sp)
//	tree := sp.Parse(source, nil)
//
// Safe for concurrent use.
type ParserPool struct {
	lang   *sitter.Language
	pool   sync.Pool
	leased atomic.Int64
}

// NewParserPool creates a pool for lang. The language must outlive the pool.
func NewParserPool(lang *sitter.Language) *ParserPool {
	p := &ParserPool{lang: lang}
	p.pool = sync.Pool{
		New: func() any {
			sp := sitter.NewParser()
			_ = sp.SetLanguage(lang)
			return sp
		},
	}
	return p
}

// NewJavaParserPool returns a pool for the Java grammar.
func NewJavaParserPool() *ParserPool {
	return NewParserPool(sitter.NewLanguage(tree_sitter_java.Language()))
}

func (p *ParserPool) Get() *sitter.Parser {
	sp := p.pool.Get().(*sitter.Parser)
	_ = sp.SetLanguage(p.lang)
	p.leased.Add(1)
	return sp
}

// Put resets sp and returns it to the pool. sp must not be used afterwards.
func (p *ParserPool) Put(sp *sitter.Parser) {
	if sp == nil {
		return
	}
	p.leased.Add(-1)
	sp.Reset()
	p.pool.Put(sp)
}

// Leased returns the number of parsers currently handed out.
func (p *ParserPool) Leased() int {
	return int(p.leased.Load())
}
