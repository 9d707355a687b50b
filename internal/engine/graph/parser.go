package graph

import (
	"log/slog"
	"path"
	"sort"
	"strings"

	"querysync/internal/core/errors"
	"querysync/internal/engine/query"
	"querysync/internal/engine/workspace"
	"querysync/internal/shared/util"
)

// Parser builds Data from a query Summary for one project definition.
type Parser struct {
	def    *workspace.ProjectDefinition
	logger *slog.Logger
}

func NewParser(def *workspace.ProjectDefinition, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{def: def, logger: logger}
}

// Parse is a pure function of the summary. Rules are visited in label order,
// so when two targets claim the same source with different declared
// packages the first label wins.
func (p *Parser) Parse(summary *query.Summary) (*Data, error) {
	d := &Data{
		targets:        make(map[query.Label]Target),
		sourceOwners:   make(map[string][]query.Label),
		sourcePackages: make(map[string]string),
		packageHints:   make(map[string]string),
	}
	skippedKinds := make(map[string]int)

	for _, rule := range summary.Rules() {
		if rule.Label.IsExternal() {
			continue
		}
		lang, ok := p.def.LanguageForKind(rule.Kind)
		if !ok {
			skippedKinds[rule.Kind]++
			continue
		}
		if !p.def.IsIncluded(rule.Label.Package) {
			continue
		}

		target := Target{
			Label:           rule.Label,
			Kind:            rule.Kind,
			Language:        lang,
			Deps:            append([]query.Label(nil), rule.Deps...),
			DeclaredPackage: rule.DeclaredPackage,
		}

		for _, src := range rule.Sources {
			if _, ok := summary.SourceFile(src); ok {
				path, include, err := p.sourcePath(rule.Label, src, lang)
				if err != nil {
					return nil, err
				}
				if !include {
					continue
				}
				target.Sources = append(target.Sources, path)
				d.sourceOwners[path] = append(d.sourceOwners[path], rule.Label)
				d.recordPackage(rule, path)
				continue
			}
			if _, ok := summary.GeneratedFile(src); ok {
				if lang.IsSource(src.Name) || strings.HasSuffix(src.Name, ".srcjar") {
					target.GeneratedSources = append(target.GeneratedSources, src)
				}
				continue
			}
			p.logger.Debug("ignoring non-file source", "target", rule.Label.String(), "src", src.String())
		}

		d.targets[rule.Label] = target
	}

	for kind, n := range skippedKinds {
		p.logger.Debug("skipped rules of unsupported kind", "kind", kind, "count", n)
	}

	d.sources = util.SortedStringKeys(d.sourceOwners)
	d.externalDeps = collectExternalDeps(d.targets)

	if cycle := findCycle(d.targets); len(cycle) > 0 {
		labels := make([]string, len(cycle))
		for i, l := range cycle {
			labels[i] = l.String()
		}
		return nil, errors.AddContext(
			errors.New(errors.CodeBuildGraph, "dependency cycle between project targets"),
			errors.CtxLabel, strings.Join(labels, " -> "),
		)
	}
	return d, nil
}

// sourcePath validates a source file of rule. include is false for files
// that belong to another language or an excluded directory.
func (p *Parser) sourcePath(rule, src query.Label, lang workspace.LanguageClass) (string, bool, error) {
	if src.IsExternal() {
		return "", false, sourceError("source file in external repository", rule, src.String())
	}
	raw := src.Path()
	if util.IsEscapingPath(raw) {
		return "", false, sourceError("malformed source path", rule, raw)
	}
	path := util.NormalizeRelPath(raw)
	if !lang.IsSource(path) || p.def.IsExcluded(path) {
		return "", false, nil
	}
	if _, ok := p.def.ImportRootFor(path); !ok {
		return "", false, sourceError("source outside every import root", rule, path)
	}
	return path, true, nil
}

func sourceError(msg string, rule query.Label, path string) error {
	return (&errors.DomainError{Code: errors.CodeBuildGraph, Message: msg}).
		WithContext(errors.CtxLabel, rule.String()).
		WithContext(errors.CtxPath, path)
}

// recordPackage indexes what the graph knows about the package of a source
// of rule. A java_package declaration is authoritative for sources in the
// rule's own directory. The directory convention and custom_package only
// yield hints, which lose to the package statement of the file itself.
func (d *Data) recordPackage(rule query.Rule, p string) {
	sameDir := inPackageDir(rule.Label, p)
	if _, seen := d.sourcePackages[p]; !seen && sameDir && rule.DeclaredPackage != "" {
		d.sourcePackages[p] = rule.DeclaredPackage
	}
	if _, seen := d.packageHints[p]; seen {
		return
	}
	if pkg := workspace.InferPackage(p); pkg != "" {
		d.packageHints[p] = pkg
	} else if sameDir && rule.CustomPackage != "" {
		d.packageHints[p] = rule.CustomPackage
	}
}

func inPackageDir(rule query.Label, p string) bool {
	dir := path.Dir(p)
	if dir == "." {
		dir = ""
	}
	return dir == rule.Package
}

func collectExternalDeps(targets map[query.Label]Target) []query.Label {
	seen := make(map[query.Label]bool)
	var out []query.Label
	for _, t := range targets {
		for _, dep := range t.Deps {
			if _, internal := targets[dep]; internal || seen[dep] {
				continue
			}
			seen[dep] = true
			out = append(out, dep)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// findCycle returns the first dependency cycle among project targets, walking
// labels and deps in sorted order so the reported cycle is deterministic.
func findCycle(targets map[query.Label]Target) []query.Label {
	labels := make([]query.Label, 0, len(targets))
	for l := range targets {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i].String() < labels[j].String() })

	visited := make(map[query.Label]bool)
	onStack := make(map[query.Label]bool)
	var cycle []query.Label

	var visit func(curr query.Label, path []query.Label) bool
	visit = func(curr query.Label, path []query.Label) bool {
		visited[curr] = true
		onStack[curr] = true
		path = append(path, curr)

		deps := append([]query.Label(nil), targets[curr].Deps...)
		sort.Slice(deps, func(i, j int) bool { return deps[i].String() < deps[j].String() })
		for _, next := range deps {
			if _, ok := targets[next]; !ok {
				continue
			}
			if onStack[next] {
				for i, l := range path {
					if l == next {
						cycle = append(append([]query.Label(nil), path[i:]...), next)
						return true
					}
				}
			} else if !visited[next] && visit(next, path) {
				return true
			}
		}

		onStack[curr] = false
		return false
	}

	for _, l := range labels {
		if !visited[l] && visit(l, nil) {
			return cycle
		}
	}
	return nil
}
