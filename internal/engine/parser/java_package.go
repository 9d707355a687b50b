// Package parser reads declared packages from source files. It is the
// fallback for sources whose package the build graph cannot resolve.
package parser

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"querysync/internal/core/errors"
	"querysync/internal/shared/util"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

type cachedPackage struct {
	modTime time.Time
	size    int64
	pkg     string
}

// JavaPackageReader parses the package declaration of .java files below a
// workspace root. Other files read as "". Results are cached until the file's
// size or modification time changes.
type JavaPackageReader struct {
	root  string
	pool  *ParserPool
	cache *packageCache
}

func NewJavaPackageReader(workspaceRoot string, pool *ParserPool) *JavaPackageReader {
	if pool == nil {
		pool = NewJavaParserPool()
	}
	return &JavaPackageReader{
		root:  workspaceRoot,
		pool:  pool,
		cache: newPackageCache(defaultPackageCacheSize),
	}
}

func (r *JavaPackageReader) ReadPackage(path string) (string, error) {
	rel := util.NormalizeRelPath(path)
	if !strings.EqualFold(filepath.Ext(rel), ".java") {
		return "", nil
	}
	abs := filepath.Join(r.root, filepath.FromSlash(rel))

	info, err := os.Stat(abs)
	if err != nil {
		r.cache.forget(rel)
		return "", r.readError(err, rel)
	}
	cached, ok := r.cache.get(rel)
	if ok && cached.size == info.Size() && cached.modTime.Equal(info.ModTime()) {
		return cached.pkg, nil
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		return "", r.readError(err, rel)
	}
	pkg := r.Parse(content)

	r.cache.put(rel, cachedPackage{modTime: info.ModTime(), size: info.Size(), pkg: pkg})
	return pkg, nil
}

func (r *JavaPackageReader) readError(err error, rel string) error {
	code := errors.CodeInternal
	if os.IsNotExist(err) {
		code = errors.CodeNotFound
	}
	return errors.AddContext(errors.Wrap(err, code, "read source file"), errors.CtxPath, rel)
}

// Parse returns the package declared by Java source, or "" when there is
// none.
func (r *JavaPackageReader) Parse(content []byte) string {
	sp := r.pool.Get()
	defer r.pool.Put(sp)

	tree := sp.Parse(content, nil)
	if tree == nil {
		return ""
	}
	defer tree.Close()

	root := tree.RootNode()
	for i := uint(0); i < root.ChildCount(); i++ {
		child := root.Child(i)
		if child.Kind() != "package_declaration" {
			continue
		}
		return packageName(child, content)
	}
	return ""
}

// packageName takes the identifier of a package_declaration, skipping any
// annotations in front of it.
func packageName(node *sitter.Node, source []byte) string {
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		switch child.Kind() {
		case "scoped_identifier", "identifier":
			return strings.Join(strings.Fields(text(child, source)), "")
		}
	}
	return ""
}

func text(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return string(source[node.StartByte():node.EndByte()])
}
