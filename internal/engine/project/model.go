// Package project holds the IDE-facing project model and the conversion from
// a build graph into it.
package project

import (
	"slices"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// WorkspaceModuleName is the name of the single module CreateProject emits.
const WorkspaceModuleName = ".workspace"

// Base says what a ContentRoot path is relative to.
type Base string

const (
	BaseWorkspace Base = "WORKSPACE"
	BaseProject   Base = "PROJECT"
)

type ContentRoot struct {
	Base Base   `json:"base" yaml:"base"`
	Path string `json:"path" yaml:"path"`
}

type SourceFolder struct {
	Path          string `json:"path" yaml:"path"`
	PackagePrefix string `json:"package_prefix" yaml:"package_prefix"`
	IsGenerated   bool   `json:"is_generated" yaml:"is_generated"`
}

// ContentEntry is one source root of a module. Sources are sorted by path
// and unique.
type ContentEntry struct {
	Root     ContentRoot    `json:"root" yaml:"root"`
	Sources  []SourceFolder `json:"sources" yaml:"sources"`
	Excludes []string       `json:"excludes,omitempty" yaml:"excludes,omitempty"`
}

type Module struct {
	Name           string         `json:"name" yaml:"name"`
	ContentEntries []ContentEntry `json:"content_entries" yaml:"content_entries"`
}

// Project is treated as a value. Transforms return a new Project, or the
// same pointer when nothing changed, and never modify their input.
type Project struct {
	Modules []Module `json:"modules" yaml:"modules"`
}

// Clone returns a deep copy.
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	out := &Project{Modules: make([]Module, len(p.Modules))}
	for i, m := range p.Modules {
		out.Modules[i] = m.clone()
	}
	return out
}

func (m Module) clone() Module {
	entries := make([]ContentEntry, len(m.ContentEntries))
	for i, e := range m.ContentEntries {
		entries[i] = ContentEntry{
			Root:     e.Root,
			Sources:  slices.Clone(e.Sources),
			Excludes: slices.Clone(e.Excludes),
		}
	}
	return Module{Name: m.Name, ContentEntries: entries}
}

// Equal reports structural equality. Nil and empty slices compare equal.
func (p *Project) Equal(other *Project) bool {
	if p == nil || other == nil {
		return p == other
	}
	return slices.EqualFunc(p.Modules, other.Modules, func(a, b Module) bool {
		return a.Name == b.Name && slices.EqualFunc(a.ContentEntries, b.ContentEntries, func(x, y ContentEntry) bool {
			return x.Root == y.Root && slices.Equal(x.Sources, y.Sources) && slices.Equal(x.Excludes, y.Excludes)
		})
	})
}

// Fingerprint hashes the project contents. Structurally equal projects share
// a fingerprint.
func (p *Project) Fingerprint() uint64 {
	h := xxhash.New()
	write := func(s string) {
		_, _ = h.WriteString(s)
		_, _ = h.Write([]byte{0})
	}
	if p == nil {
		return h.Sum64()
	}
	for _, m := range p.Modules {
		write("module")
		write(m.Name)
		for _, e := range m.ContentEntries {
			write("entry")
			write(string(e.Root.Base))
			write(e.Root.Path)
			for _, s := range e.Sources {
				write(s.Path)
				write(s.PackagePrefix)
				write(strconv.FormatBool(s.IsGenerated))
			}
			for _, ex := range e.Excludes {
				write("exclude")
				write(ex)
			}
		}
	}
	return h.Sum64()
}

// FingerprintHex is Fingerprint rendered for storage and display.
func (p *Project) FingerprintHex() string {
	return strconv.FormatUint(p.Fingerprint(), 16)
}

// Stats counts the model contents.
type Stats struct {
	Modules          int
	ContentEntries   int
	SourceFolders    int
	GeneratedFolders int
}

func (p *Project) Stats() Stats {
	var s Stats
	if p == nil {
		return s
	}
	s.Modules = len(p.Modules)
	for _, m := range p.Modules {
		s.ContentEntries += len(m.ContentEntries)
		for _, e := range m.ContentEntries {
			for _, src := range e.Sources {
				s.SourceFolders++
				if src.IsGenerated {
					s.GeneratedFolders++
				}
			}
		}
	}
	return s
}
