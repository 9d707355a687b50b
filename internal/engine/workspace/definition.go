// Package workspace holds the user's project definition: which parts of a
// monorepo participate in the IDE project and in which languages.
package workspace

import (
	"strings"

	"querysync/internal/core/errors"
	"querysync/internal/engine/query"
	"querysync/internal/shared/util"

	"github.com/gobwas/glob"
)

// ProjectDefinition is immutable once built; every With* method returns a copy.
type ProjectDefinition struct {
	importRoots     []string
	excludeDirs     []string
	excludePatterns []string
	excludeGlobs    []glob.Glob
	languages       []LanguageClass
}

// NewProjectDefinition validates and normalizes workspace-relative import
// roots and exclude directories.
func NewProjectDefinition(importRoots, excludeDirs []string, languages []LanguageClass) (*ProjectDefinition, error) {
	roots, err := normalizeDirs("import root", importRoots)
	if err != nil {
		return nil, err
	}
	if len(roots) == 0 {
		return nil, errors.New(errors.CodeValidationError, "at least one import root is required")
	}
	excludes, err := normalizeDirs("exclude dir", excludeDirs)
	if err != nil {
		return nil, err
	}

	seen := make(map[LanguageClass]bool, len(languages))
	langs := make([]LanguageClass, 0, len(languages))
	for _, lang := range languages {
		if _, ok := languageSpecs[lang]; !ok {
			return nil, errors.Newf(errors.CodeValidationError, "unsupported language class %q", lang)
		}
		if seen[lang] {
			continue
		}
		seen[lang] = true
		langs = append(langs, lang)
	}
	if len(langs) == 0 {
		return nil, errors.New(errors.CodeValidationError, "at least one language class is required")
	}

	return &ProjectDefinition{
		importRoots: roots,
		excludeDirs: excludes,
		languages:   langs,
	}, nil
}

func normalizeDirs(kind string, dirs []string) ([]string, error) {
	out := make([]string, 0, len(dirs))
	seen := make(map[string]bool, len(dirs))
	for _, raw := range dirs {
		if util.IsEscapingPath(strings.TrimSpace(raw)) {
			return nil, errors.Newf(errors.CodeValidationError, "%s %q must be workspace-relative", kind, raw)
		}
		dir := util.NormalizeRelPath(raw)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		out = append(out, dir)
	}
	return out, nil
}

// WithExcludePatterns returns a copy that also excludes paths matching any of
// the given globs. Patterns use '/' as separator, so "**/testdata" matches a
// testdata directory at any depth.
func (d *ProjectDefinition) WithExcludePatterns(patterns ...string) (*ProjectDefinition, error) {
	next := *d
	next.excludePatterns = append([]string(nil), d.excludePatterns...)
	next.excludeGlobs = append([]glob.Glob(nil), d.excludeGlobs...)
	for _, raw := range patterns {
		pattern := strings.TrimSpace(raw)
		if pattern == "" {
			continue
		}
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, errors.AddContext(errors.Wrap(err, errors.CodeValidationError, "invalid exclude pattern"), "pattern", pattern)
		}
		next.excludePatterns = append(next.excludePatterns, pattern)
		next.excludeGlobs = append(next.excludeGlobs, g)
	}
	return &next, nil
}

func (d *ProjectDefinition) ImportRoots() []string {
	return append([]string(nil), d.importRoots...)
}

func (d *ProjectDefinition) ExcludeDirs() []string {
	return append([]string(nil), d.excludeDirs...)
}

func (d *ProjectDefinition) ExcludePatterns() []string {
	return append([]string(nil), d.excludePatterns...)
}

func (d *ProjectDefinition) Languages() []LanguageClass {
	return append([]LanguageClass(nil), d.languages...)
}

func (d *ProjectDefinition) IncludesLanguage(lang LanguageClass) bool {
	for _, l := range d.languages {
		if l == lang {
			return true
		}
	}
	return false
}

// LanguageForKind returns the included language owning a rule kind.
func (d *ProjectDefinition) LanguageForKind(kind string) (LanguageClass, bool) {
	for _, l := range d.languages {
		if l.HasRuleKind(kind) {
			return l, true
		}
	}
	return "", false
}

// ImportRootFor returns the most specific import root containing p.
func (d *ProjectDefinition) ImportRootFor(p string) (string, bool) {
	return LongestRoot(d.importRoots, p)
}

// IsExcluded reports whether p lies under an exclude directory or any of its
// ancestors matches an exclude pattern.
func (d *ProjectDefinition) IsExcluded(p string) bool {
	p = util.NormalizeRelPath(p)
	for _, ex := range d.excludeDirs {
		if util.HasPathPrefix(p, ex) {
			return true
		}
	}
	if len(d.excludeGlobs) == 0 {
		return false
	}
	for candidate := p; candidate != ""; candidate = parentDir(candidate) {
		for _, g := range d.excludeGlobs {
			if g.Match(candidate) {
				return true
			}
		}
	}
	return false
}

// IsIncluded reports whether p is inside an import root and not excluded.
func (d *ProjectDefinition) IsIncluded(p string) bool {
	if _, ok := d.ImportRootFor(p); !ok {
		return false
	}
	return !d.IsExcluded(p)
}

// QuerySpec derives the coarse dependency query covering every import root.
func (d *ProjectDefinition) QuerySpec() query.Spec {
	includes := make([]string, 0, len(d.importRoots))
	for _, root := range d.importRoots {
		includes = append(includes, query.RecursivePattern(root))
	}
	excludes := make([]string, 0, len(d.excludeDirs))
	for _, ex := range d.excludeDirs {
		excludes = append(excludes, query.RecursivePattern(ex))
	}
	return query.NewSpec(includes, excludes)
}

// LongestRoot returns the most specific entry of roots that equals or
// contains p.
func LongestRoot(roots []string, p string) (string, bool) {
	best := ""
	found := false
	for _, root := range roots {
		if !util.HasPathPrefix(p, root) {
			continue
		}
		if !found || len(root) > len(best) {
			best = root
			found = true
		}
	}
	return best, found
}

func parentDir(p string) string {
	idx := strings.LastIndex(p, "/")
	if idx < 0 {
		return ""
	}
	return p[:idx]
}
