package query

import "strings"

// DefaultFlags select the streamed JSON output the summarizer reads.
var DefaultFlags = []string{
	"--output=streamed_jsonproto",
	"--relative_locations=true",
	"--consistent_labels=true",
}

// Spec is an immutable query request.
type Spec struct {
	includes []string
	excludes []string
	flags    []string
}

func NewSpec(includes, excludes []string, flags ...string) Spec {
	if len(flags) == 0 {
		flags = DefaultFlags
	}
	return Spec{
		includes: append([]string(nil), includes...),
		excludes: append([]string(nil), excludes...),
		flags:    append([]string(nil), flags...),
	}
}

func (s Spec) Includes() []string { return append([]string(nil), s.includes...) }
func (s Spec) Excludes() []string { return append([]string(nil), s.excludes...) }
func (s Spec) Flags() []string    { return append([]string(nil), s.flags...) }

// Expression renders the query, e.g. (//a/...:* + //b/...:*) - //a/x/...:*.
func (s Spec) Expression() string {
	if len(s.includes) == 0 {
		return ""
	}
	expr := "(" + strings.Join(s.includes, " + ") + ")"
	for _, ex := range s.excludes {
		expr += " - " + ex
	}
	return expr
}

func (s Spec) String() string {
	return strings.TrimSpace(strings.Join(s.flags, " ") + " " + s.Expression())
}
