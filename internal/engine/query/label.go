package query

import (
	"fmt"
	"path"
	"strings"
)

// Label identifies a build target, e.g. //java/com/test:Class1.java.
// Repo is empty for the main repository.
type Label struct {
	Repo    string
	Package string
	Name    string
}

// ParseLabel accepts //pkg:name, //pkg, @repo//pkg:name and the canonical
// @@//pkg:name form printed with --consistent_labels.
func ParseLabel(raw string) (Label, error) {
	s := strings.TrimSpace(raw)
	var l Label

	if strings.HasPrefix(s, "@") {
		s = strings.TrimLeft(s, "@")
		idx := strings.Index(s, "//")
		if idx < 0 {
			return Label{}, fmt.Errorf("malformed label %q: missing //", raw)
		}
		l.Repo = s[:idx]
		s = s[idx:]
	}
	if !strings.HasPrefix(s, "//") {
		return Label{}, fmt.Errorf("malformed label %q: must be absolute", raw)
	}
	s = strings.TrimPrefix(s, "//")

	if idx := strings.Index(s, ":"); idx >= 0 {
		l.Package = s[:idx]
		l.Name = s[idx+1:]
	} else {
		l.Package = s
		l.Name = path.Base(s)
	}
	if l.Name == "" || l.Name == "." || l.Name == "/" {
		return Label{}, fmt.Errorf("malformed label %q: empty target name", raw)
	}
	if strings.HasPrefix(l.Package, "/") || strings.HasSuffix(l.Package, "/") {
		return Label{}, fmt.Errorf("malformed label %q: bad package path", raw)
	}
	return l, nil
}

// MustParseLabel panics on malformed input. Intended for tests and constants.
func MustParseLabel(raw string) Label {
	l, err := ParseLabel(raw)
	if err != nil {
		panic(err)
	}
	return l
}

func (l Label) String() string {
	repo := ""
	if l.Repo != "" {
		repo = "@" + l.Repo
	}
	return fmt.Sprintf("%s//%s:%s", repo, l.Package, l.Name)
}

// IsExternal reports whether the label lives outside the main repository.
func (l Label) IsExternal() bool {
	return l.Repo != ""
}

// Path returns the workspace-relative file path a file label denotes.
func (l Label) Path() string {
	if l.Package == "" {
		return l.Name
	}
	return l.Package + "/" + l.Name
}

func (l Label) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Label) UnmarshalText(text []byte) error {
	parsed, err := ParseLabel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// RecursivePattern returns the target pattern matching every target below dir.
func RecursivePattern(dir string) string {
	if dir == "" {
		return "//...:*"
	}
	return "//" + dir + "/...:*"
}
