package project

import (
	"log/slog"
	"path"
	"sort"
	"strings"

	"querysync/internal/core/errors"
	"querysync/internal/engine/graph"
	"querysync/internal/engine/workspace"
	"querysync/internal/shared/util"
)

// PackageReader returns the package a source file declares, or "" when it
// declares none.
type PackageReader interface {
	ReadPackage(path string) (string, error)
}

// MapPackageReader serves packages from a fixed path -> package map.
type MapPackageReader map[string]string

func (m MapPackageReader) ReadPackage(p string) (string, error) {
	return m[util.NormalizeRelPath(p)], nil
}

// graphPackageReader resolves a package from a java_package declaration,
// then from the fallback reader, and only then from the graph's hint.
type graphPackageReader struct {
	data     *graph.Data
	fallback PackageReader
}

func (r graphPackageReader) ReadPackage(p string) (string, error) {
	if pkg, ok := r.data.PackageOf(p); ok {
		return pkg, nil
	}
	if r.fallback != nil {
		pkg, err := r.fallback.ReadPackage(p)
		if err != nil || pkg != "" {
			return pkg, err
		}
	}
	pkg, _ := r.data.PackageHint(p)
	return pkg, nil
}

// Converter turns build graph data into a Project.
type Converter struct {
	reader      PackageReader
	importRoots []string
	excludeDirs []string
	logger      *slog.Logger
}

// NewConverter builds a Converter over workspace-relative import roots and
// exclude directories. reader may be nil when every package is resolvable
// from the graph.
func NewConverter(reader PackageReader, importRoots, excludeDirs []string, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	roots := make([]string, len(importRoots))
	for i, r := range importRoots {
		roots[i] = util.NormalizeRelPath(r)
	}
	excludes := make([]string, len(excludeDirs))
	for i, ex := range excludeDirs {
		excludes[i] = util.NormalizeRelPath(ex)
	}
	return &Converter{reader: reader, importRoots: roots, excludeDirs: excludes, logger: logger}
}

// NewConverterForDefinition uses the import roots and exclude directories of def.
func NewConverterForDefinition(def *workspace.ProjectDefinition, reader PackageReader, logger *slog.Logger) *Converter {
	return NewConverter(reader, def.ImportRoots(), def.ExcludeDirs(), logger)
}

// CalculateRootSources maps each import root to its source roots: directory
// relative to the import root -> package prefix.
//
// Files are visited in path order. A file whose directory lies under a source
// root already found for its import root is covered by it and ignored, so
// the first file of a directory decides its package and sibling conflicts
// resolve in favour of the lexicographically earlier directory.
func (c *Converter) CalculateRootSources(paths []string) (map[string]map[string]string, error) {
	reader := c.reader
	if reader == nil {
		reader = MapPackageReader(nil)
	}
	return c.rootSources(paths, reader)
}

func (c *Converter) rootSources(paths []string, reader PackageReader) (map[string]map[string]string, error) {
	sorted := make([]string, 0, len(paths))
	for _, p := range paths {
		sorted = append(sorted, util.NormalizeRelPath(p))
	}
	sort.Strings(sorted)

	result := make(map[string]map[string]string)
	for _, p := range sorted {
		root, ok := workspace.LongestRoot(c.importRoots, p)
		if !ok {
			return nil, errors.AddContext(
				errors.New(errors.CodeProjectConversion, "source file is not under any import root"),
				errors.CtxPath, p,
			)
		}
		dir := util.RelativeTo(path.Dir(p), root)

		entries := result[root]
		if entries == nil {
			entries = make(map[string]string)
			result[root] = entries
		}
		if covered(entries, dir) {
			continue
		}

		pkg, err := reader.ReadPackage(p)
		if err != nil {
			return nil, errors.AddContext(
				errors.Wrap(err, errors.CodeProjectConversion, "read package"),
				errors.CtxPath, p,
			)
		}
		sourceRoot, prefix := stripPackage(dir, pkg)
		entries[sourceRoot] = prefix
		c.logger.Debug("source root",
			"import_root", root,
			"dir", sourceRoot,
			"prefix", prefix,
			"from", p,
		)
	}
	return result, nil
}

func covered(entries map[string]string, dir string) bool {
	for sourceRoot := range entries {
		if util.HasPathPrefix(dir, sourceRoot) {
			return true
		}
	}
	return false
}

// stripPackage removes trailing directory components that match trailing
// package components. What is left of dir is the source root, what is left
// of pkg its prefix.
func stripPackage(dir, pkg string) (string, string) {
	var dirParts, pkgParts []string
	if dir != "" {
		dirParts = strings.Split(dir, "/")
	}
	if pkg != "" {
		pkgParts = strings.Split(pkg, ".")
	}
	for len(dirParts) > 0 && len(pkgParts) > 0 && dirParts[len(dirParts)-1] == pkgParts[len(pkgParts)-1] {
		dirParts = dirParts[:len(dirParts)-1]
		pkgParts = pkgParts[:len(pkgParts)-1]
	}
	return strings.Join(dirParts, "/"), strings.Join(pkgParts, ".")
}

// CreateProject emits a single workspace module with one content entry per
// import root. A java_package declared in the graph wins, then the
// converter's reader, then the graph's package hint.
func (c *Converter) CreateProject(data *graph.Data) (*Project, error) {
	rootSources, err := c.rootSources(data.SourcePaths(), graphPackageReader{data: data, fallback: c.reader})
	if err != nil {
		return nil, err
	}

	module := Module{Name: WorkspaceModuleName}
	for _, root := range c.importRoots {
		entry := ContentEntry{
			Root:    ContentRoot{Base: BaseWorkspace, Path: root},
			Sources: []SourceFolder{},
		}
		for dir, prefix := range rootSources[root] {
			entry.Sources = append(entry.Sources, SourceFolder{
				Path:          util.JoinRel(root, dir),
				PackagePrefix: prefix,
			})
		}
		sort.Slice(entry.Sources, func(i, j int) bool { return entry.Sources[i].Path < entry.Sources[j].Path })

		for _, ex := range c.excludeDirs {
			if util.HasPathPrefix(ex, root) {
				entry.Excludes = append(entry.Excludes, ex)
			}
		}
		module.ContentEntries = append(module.ContentEntries, entry)
	}
	return &Project{Modules: []Module{module}}, nil
}
