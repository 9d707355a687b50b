// Package query turns the output of a coarse build-system query into an
// immutable Summary of rules, source files and generated files.
package query

import (
	"bufio"
	"encoding/json"
	stderrors "errors"
	"io"
	"sort"
	"strconv"
	"strings"

	"querysync/internal/core/errors"
)

const (
	TypeRule          = "RULE"
	TypeSourceFile    = "SOURCE_FILE"
	TypeGeneratedFile = "GENERATED_FILE"
)

// Rule is the digest of one rule target. Slices are shared with the Summary
// and must not be modified.
type Rule struct {
	Label            Label   `json:"label" yaml:"label"`
	Kind             string  `json:"kind" yaml:"kind"`
	Sources          []Label `json:"sources,omitempty" yaml:"sources,omitempty"`
	Deps             []Label `json:"deps,omitempty" yaml:"deps,omitempty"`
	DeclaredPackage  string  `json:"declared_package,omitempty" yaml:"declared_package,omitempty"`
	CustomPackage    string  `json:"custom_package,omitempty" yaml:"custom_package,omitempty"`
	GeneratedOutputs []Label `json:"generated_outputs,omitempty" yaml:"generated_outputs,omitempty"`
}

type SourceFile struct {
	Label    Label  `json:"label" yaml:"label"`
	Location string `json:"location,omitempty" yaml:"location,omitempty"`
}

type GeneratedFile struct {
	Label          Label `json:"label" yaml:"label"`
	GeneratingRule Label `json:"generating_rule" yaml:"generating_rule"`
}

// Summary is built in one pass over the query output and never mutated.
type Summary struct {
	rules          map[Label]Rule
	sourceFiles    map[Label]SourceFile
	generatedFiles map[Label]GeneratedFile
}

// View is the serializable form of a Summary with every collection sorted
// by label.
type View struct {
	Rules          []Rule          `json:"rules" yaml:"rules"`
	SourceFiles    []SourceFile    `json:"source_files" yaml:"source_files"`
	GeneratedFiles []GeneratedFile `json:"generated_files" yaml:"generated_files"`
}

// Stats counts the targets of each type.
type Stats struct {
	Rules          int
	SourceFiles    int
	GeneratedFiles int
}

type wireTarget struct {
	Type          string             `json:"type"`
	Rule          *wireRule          `json:"rule"`
	SourceFile    *wireSourceFile    `json:"sourceFile"`
	GeneratedFile *wireGeneratedFile `json:"generatedFile"`
}

type wireRule struct {
	Name       string          `json:"name"`
	RuleClass  string          `json:"ruleClass"`
	Location   string          `json:"location"`
	Attribute  []wireAttribute `json:"attribute"`
	RuleOutput []string        `json:"ruleOutput"`
}

type wireAttribute struct {
	Name            string   `json:"name"`
	Type            string   `json:"type"`
	StringValue     *string  `json:"stringValue"`
	StringListValue []string `json:"stringListValue"`
}

type wireSourceFile struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

type wireGeneratedFile struct {
	Name           string `json:"name"`
	GeneratingRule string `json:"generatingRule"`
}

var depAttributes = map[string]bool{
	"deps":         true,
	"exports":      true,
	"runtime_deps": true,
}

// Summarize reads a stream of Bazel streamed_jsonproto Target records.
// Unknown target types (package groups, environment groups) are skipped.
func Summarize(r io.Reader) (*Summary, error) {
	s := &Summary{
		rules:          make(map[Label]Rule),
		sourceFiles:    make(map[Label]SourceFile),
		generatedFiles: make(map[Label]GeneratedFile),
	}

	dec := json.NewDecoder(bufio.NewReader(r))
	for record := 1; ; record++ {
		var t wireTarget
		if err := dec.Decode(&t); err != nil {
			if stderrors.Is(err, io.EOF) {
				break
			}
			return nil, errors.AddContext(
				errors.Wrap(err, errors.CodeQueryParse, "decode query record"),
				errors.CtxRecord, record,
			)
		}
		if err := s.add(t); err != nil {
			return nil, errors.AddContext(err, errors.CtxRecord, record)
		}
	}
	return s, nil
}

func (s *Summary) add(t wireTarget) error {
	switch t.Type {
	case TypeRule:
		if t.Rule == nil {
			return errors.Newf(errors.CodeQueryParse, "%s record without body", t.Type)
		}
		rule, err := convertRule(t.Rule)
		if err != nil {
			return err
		}
		s.rules[rule.Label] = rule
	case TypeSourceFile:
		if t.SourceFile == nil {
			return errors.Newf(errors.CodeQueryParse, "%s record without body", t.Type)
		}
		label, err := parseRecordLabel(t.SourceFile.Name)
		if err != nil {
			return err
		}
		s.sourceFiles[label] = SourceFile{Label: label, Location: stripLineColumn(t.SourceFile.Location)}
	case TypeGeneratedFile:
		if t.GeneratedFile == nil {
			return errors.Newf(errors.CodeQueryParse, "%s record without body", t.Type)
		}
		label, err := parseRecordLabel(t.GeneratedFile.Name)
		if err != nil {
			return err
		}
		gen, err := parseRecordLabel(t.GeneratedFile.GeneratingRule)
		if err != nil {
			return err
		}
		s.generatedFiles[label] = GeneratedFile{Label: label, GeneratingRule: gen}
	}
	return nil
}

func convertRule(w *wireRule) (Rule, error) {
	label, err := parseRecordLabel(w.Name)
	if err != nil {
		return Rule{}, err
	}
	if strings.TrimSpace(w.RuleClass) == "" {
		return Rule{}, errors.AddContext(errors.New(errors.CodeQueryParse, "rule without class"), errors.CtxLabel, w.Name)
	}
	rule := Rule{Label: label, Kind: w.RuleClass}

	seenDeps := make(map[Label]bool)
	for _, attr := range w.Attribute {
		switch {
		case attr.Name == "srcs":
			if rule.Sources, err = parseLabels(attr.StringListValue); err != nil {
				return Rule{}, errors.AddContext(err, errors.CtxLabel, w.Name)
			}
		case depAttributes[attr.Name]:
			deps, err := parseLabels(attr.StringListValue)
			if err != nil {
				return Rule{}, errors.AddContext(err, errors.CtxLabel, w.Name)
			}
			for _, dep := range deps {
				if seenDeps[dep] {
					continue
				}
				seenDeps[dep] = true
				rule.Deps = append(rule.Deps, dep)
			}
		case attr.Name == "java_package" && attr.StringValue != nil:
			rule.DeclaredPackage = strings.TrimSpace(*attr.StringValue)
		case attr.Name == "custom_package" && attr.StringValue != nil:
			rule.CustomPackage = strings.TrimSpace(*attr.StringValue)
		}
	}

	if rule.GeneratedOutputs, err = parseLabels(w.RuleOutput); err != nil {
		return Rule{}, errors.AddContext(err, errors.CtxLabel, w.Name)
	}
	return rule, nil
}

func parseLabels(raw []string) ([]Label, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]Label, 0, len(raw))
	for _, r := range raw {
		l, err := parseRecordLabel(r)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func parseRecordLabel(raw string) (Label, error) {
	l, err := ParseLabel(raw)
	if err != nil {
		return Label{}, errors.AddContext(errors.Wrap(err, errors.CodeQueryParse, "invalid label"), errors.CtxLabel, raw)
	}
	return l, nil
}

// stripLineColumn turns "java/com/A.java:1:1" into "java/com/A.java".
func stripLineColumn(location string) string {
	for i := 0; i < 2; i++ {
		idx := strings.LastIndex(location, ":")
		if idx < 0 {
			break
		}
		if _, err := strconv.Atoi(location[idx+1:]); err != nil {
			break
		}
		location = location[:idx]
	}
	return location
}

func (s *Summary) Rule(l Label) (Rule, bool) {
	r, ok := s.rules[l]
	return r, ok
}

func (s *Summary) SourceFile(l Label) (SourceFile, bool) {
	f, ok := s.sourceFiles[l]
	return f, ok
}

func (s *Summary) GeneratedFile(l Label) (GeneratedFile, bool) {
	f, ok := s.generatedFiles[l]
	return f, ok
}

// Rules returns every rule ordered by label.
func (s *Summary) Rules() []Rule {
	out := make([]Rule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label.String() < out[j].Label.String() })
	return out
}

func (s *Summary) Stats() Stats {
	return Stats{
		Rules:          len(s.rules),
		SourceFiles:    len(s.sourceFiles),
		GeneratedFiles: len(s.generatedFiles),
	}
}

func (s *Summary) View() View {
	v := View{
		Rules:          s.Rules(),
		SourceFiles:    make([]SourceFile, 0, len(s.sourceFiles)),
		GeneratedFiles: make([]GeneratedFile, 0, len(s.generatedFiles)),
	}
	for _, f := range s.sourceFiles {
		v.SourceFiles = append(v.SourceFiles, f)
	}
	sort.Slice(v.SourceFiles, func(i, j int) bool {
		return v.SourceFiles[i].Label.String() < v.SourceFiles[j].Label.String()
	})
	for _, f := range s.generatedFiles {
		v.GeneratedFiles = append(v.GeneratedFiles, f)
	}
	sort.Slice(v.GeneratedFiles, func(i, j int) bool {
		return v.GeneratedFiles[i].Label.String() < v.GeneratedFiles[j].Label.String()
	})
	return v
}

func (s *Summary) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.View())
}
