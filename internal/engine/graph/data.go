// Package graph summarizes a query result into the build graph of the
// project: which targets participate, which source files they own and which
// package each source file claims.
package graph

import (
	"sort"

	"querysync/internal/engine/query"
	"querysync/internal/engine/workspace"
)

// Target is one project rule after filtering by language and location.
type Target struct {
	Label            query.Label
	Kind             string
	Language         workspace.LanguageClass
	Sources          []string
	GeneratedSources []query.Label
	Deps             []query.Label
	DeclaredPackage  string
}

// Data is immutable once returned by Parser.Parse. Accessors return copies.
type Data struct {
	targets        map[query.Label]Target
	sourceOwners   map[string][]query.Label
	sourcePackages map[string]string
	packageHints   map[string]string
	sources        []string
	externalDeps   []query.Label
}

// Stats counts the graph contents for logging and metrics.
type Stats struct {
	Targets          int
	Sources          int
	GeneratedSources int
	ExternalDeps     int
}

func (t Target) clone() Target {
	t.Sources = append([]string(nil), t.Sources...)
	t.GeneratedSources = append([]query.Label(nil), t.GeneratedSources...)
	t.Deps = append([]query.Label(nil), t.Deps...)
	return t
}

func (d *Data) Target(l query.Label) (Target, bool) {
	t, ok := d.targets[l]
	if !ok {
		return Target{}, false
	}
	return t.clone(), true
}

// Targets returns the project targets ordered by label.
func (d *Data) Targets() []Target {
	out := make([]Target, 0, len(d.targets))
	for _, t := range d.targets {
		out = append(out, t.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label.String() < out[j].Label.String() })
	return out
}

// SourcePaths returns every project source file in lexicographic order.
func (d *Data) SourcePaths() []string {
	return append([]string(nil), d.sources...)
}

// OwnersOf returns the targets listing path in their srcs.
func (d *Data) OwnersOf(path string) []query.Label {
	return append([]query.Label(nil), d.sourceOwners[path]...)
}

// PackageOf returns the package a rule declares for a source file through
// java_package.
func (d *Data) PackageOf(path string) (string, bool) {
	pkg, ok := d.sourcePackages[path]
	return pkg, ok
}

// PackageHint returns a guess at the package of a source file, taken from the
// directory layout or the custom_package of its rule. Use it only when the
// file cannot be read.
func (d *Data) PackageHint(path string) (string, bool) {
	pkg, ok := d.packageHints[path]
	return pkg, ok
}

// SourcePackages returns a copy of the source path -> package index.
func (d *Data) SourcePackages() map[string]string {
	out := make(map[string]string, len(d.sourcePackages))
	for k, v := range d.sourcePackages {
		out[k] = v
	}
	return out
}

// ExternalDeps returns dependencies that are not project targets, such as
// third-party jars or targets outside the import roots.
func (d *Data) ExternalDeps() []query.Label {
	return append([]query.Label(nil), d.externalDeps...)
}

func (d *Data) Stats() Stats {
	generated := 0
	for _, t := range d.targets {
		generated += len(t.GeneratedSources)
	}
	return Stats{
		Targets:          len(d.targets),
		Sources:          len(d.sources),
		GeneratedSources: generated,
		ExternalDeps:     len(d.externalDeps),
	}
}
