package parser

import (
	"sync"
	"testing"
)

func TestParserPool_GetPut(t *testing.T) {
	pool := NewJavaParserPool()

	sp := pool.Get()
	if sp == nil {
		t.Fatal("expected non-nil parser from pool")
	}
	if got := pool.Leased(); got != 1 {
		t.Fatalf("expected 1 leased parser, got %d", got)
	}
	pool.Put(sp)
	if got := pool.Leased(); got != 0 {
		t.Fatalf("expected 0 leased parsers, got %d", got)
	}
}

func TestParserPool_PutNil(t *testing.T) {
	pool := NewJavaParserPool()
	pool.Put(nil)
	if got := pool.Leased(); got != 0 {
		t.Fatalf("Put(nil) changed the lease count to %d", got)
	}
}

func TestParserPool_ParsesJava(t *testing.T) {
	pool := NewJavaParserPool()
	sp := pool.Get()
	defer pool.Put(sp)

	tree := sp.Parse([]byte("package a.b;\nclass C {}\n"), nil)
	if tree == nil {
		t.Fatal("expected a parse tree")
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.Kind() != "program" {
		t.Fatalf("expected program root, got %q", root.Kind())
	}
	if root.HasError() {
		t.Fatal("unexpected syntax error")
	}
}

func TestParserPool_Concurrent(t *testing.T) {
	pool := NewJavaParserPool()
	reader := NewJavaPackageReader(t.TempDir(), pool)

	var wg sync.WaitGroup
	errs := make(chan string, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := reader.Parse([]byte("package x.y;\n")); got != "x.y" {
				errs <- got
			}
		}()
	}
	wg.Wait()
	close(errs)
	for got := range errs {
		t.Errorf("concurrent parse returned %q", got)
	}
	if pool.Leased() != 0 {
		t.Fatalf("parsers leaked: %d", pool.Leased())
	}
}
