package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"querysync/internal/core/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJavaPackageReader_Parse(t *testing.T) {
	reader := NewJavaPackageReader(t.TempDir(), nil)

	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"scoped", "package com.foo.bar;\n\nclass A {}\n", "com.foo.bar"},
		{"single identifier", "package foo;\nclass A {}\n", "foo"},
		{"leading comment", "// Copyright\n/* block */\npackage com.c;\n", "com.c"},
		{"annotated", "@Deprecated\npackage com.annotated;\n", "com.annotated"},
		{"default package", "class A {}\n", ""},
		{"empty", "", ""},
		{"package keyword in body only", "class A { String s = \"package x;\"; }\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reader.Parse([]byte(tt.source)))
		})
	}
	assert.Zero(t, reader.pool.Leased())
}

func writeSource(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func TestJavaPackageReader_ReadPackage(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "java/com/test/Class1.java", "package com.test;\nclass Class1 {}\n")
	writeSource(t, root, "java/com/test/Other.kt", "package com.kotlin\n")
	reader := NewJavaPackageReader(root, nil)

	pkg, err := reader.ReadPackage("java/com/test/Class1.java")
	require.NoError(t, err)
	assert.Equal(t, "com.test", pkg)

	pkg, err = reader.ReadPackage("java/com/test/Other.kt")
	require.NoError(t, err)
	assert.Empty(t, pkg, "only Java sources are parsed")

	_, err = reader.ReadPackage("java/com/test/Missing.java")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestJavaPackageReader_CacheInvalidatedOnChange(t *testing.T) {
	root := t.TempDir()
	rel := "java/com/a/A.java"
	writeSource(t, root, rel, "package com.a;\n")
	reader := NewJavaPackageReader(root, nil)

	pkg, err := reader.ReadPackage(rel)
	require.NoError(t, err)
	assert.Equal(t, "com.a", pkg)

	writeSource(t, root, rel, "package com.changed;\n")
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(filepath.Join(root, filepath.FromSlash(rel)), later, later))

	pkg, err = reader.ReadPackage(rel)
	require.NoError(t, err)
	assert.Equal(t, "com.changed", pkg)
}

type stubReader struct {
	pkg string
	err error
}

func (s stubReader) ReadPackage(string) (string, error) { return s.pkg, s.err }

func TestChainedPackageReader(t *testing.T) {
	notFound := errors.New(errors.CodeNotFound, "gone")

	tests := []struct {
		name    string
		chain   ChainedPackageReader
		want    string
		wantErr bool
	}{
		{"first wins", ChainedPackageReader{stubReader{pkg: "a"}, stubReader{pkg: "b"}}, "a", false},
		{"empty falls through", ChainedPackageReader{stubReader{}, stubReader{pkg: "b"}}, "b", false},
		{"not found falls through", ChainedPackageReader{stubReader{err: notFound}, stubReader{pkg: "b"}}, "b", false},
		{"os not exist falls through", ChainedPackageReader{stubReader{err: fmt.Errorf("open: %w", os.ErrNotExist)}, stubReader{pkg: "b"}}, "b", false},
		{"other errors stop", ChainedPackageReader{stubReader{err: fmt.Errorf("boom")}, stubReader{pkg: "b"}}, "", true},
		{"nothing found", ChainedPackageReader{stubReader{}}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.chain.ReadPackage("java/com/x/X.java")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWorkspacePackageReader(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "java/com/declared/A.java", "package org.elsewhere;\n")
	writeSource(t, root, "java/com/nodecl/B.java", "class B {}\n")
	reader := NewWorkspacePackageReader(root)

	pkg, err := reader.ReadPackage("java/com/declared/A.java")
	require.NoError(t, err)
	assert.Equal(t, "org.elsewhere", pkg)

	pkg, err = reader.ReadPackage("java/com/nodecl/B.java")
	require.NoError(t, err)
	assert.Equal(t, "com.nodecl", pkg, "falls back to the directory layout")

	pkg, err = reader.ReadPackage("java/com/missing/C.java")
	require.NoError(t, err)
	assert.Equal(t, "com.missing", pkg)
}
