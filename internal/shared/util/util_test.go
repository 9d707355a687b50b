package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizeRelPath(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Empty", input: "", expected: ""},
		{name: "Dot", input: ".", expected: ""},
		{name: "Trim", input: "  ./java/com/test  ", expected: "java/com/test"},
		{name: "Relative", input: "java/../javatests", expected: "javatests"},
		{name: "TrailingSlash", input: "java/com/", expected: "java/com"},
		{name: "Backslashes", input: `java\com\test`, expected: "java/com/test"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := NormalizeRelPath(tc.input); got != tc.expected {
				t.Fatalf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestHasPathPrefix(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		path     string
		prefix   string
		expected bool
	}{
		{name: "Exact", path: "java/com", prefix: "java/com", expected: true},
		{name: "Nested", path: "java/com/test", prefix: "java/com", expected: true},
		{name: "Neighbor", path: "java/commons", prefix: "java/com", expected: false},
		{name: "Shorter", path: "java", prefix: "java/com", expected: false},
		{name: "WorkspaceRoot", path: "java/com", prefix: "", expected: true},
		{name: "RelativePrefix", path: "./java/com/test", prefix: "java/com", expected: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := HasPathPrefix(tc.path, tc.prefix); got != tc.expected {
				t.Fatalf("expected %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestRelativeToAndJoinRel(t *testing.T) {
	if got := RelativeTo("java/com/test/sub", "java/com/test"); got != "sub" {
		t.Fatalf("expected sub, got %q", got)
	}
	if got := RelativeTo("java/com/test", "java/com/test"); got != "" {
		t.Fatalf("expected empty relative path, got %q", got)
	}
	if got := RelativeTo("java/com", ""); got != "java/com" {
		t.Fatalf("expected java/com, got %q", got)
	}
	if got := JoinRel("java/com/test", "", "repackaged"); got != "java/com/test/repackaged" {
		t.Fatalf("unexpected join %q", got)
	}
	if got := JoinRel("java/com/test", ""); got != "java/com/test" {
		t.Fatalf("unexpected join %q", got)
	}
}

func TestIsEscapingPath(t *testing.T) {
	for _, p := range []string{"/abs/path", "java/../../etc", ".."} {
		if !IsEscapingPath(p) {
			t.Errorf("expected %q to escape", p)
		}
	}
	for _, p := range []string{"java/com/A.java", "a..b/c"} {
		if IsEscapingPath(p) {
			t.Errorf("expected %q not to escape", p)
		}
	}
}

func TestWriteFileWithDirs(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "tmp", "nested", "query.txt")
	if err := WriteFileWithDirs(target, []byte("//java/..."), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "//java/..." {
		t.Fatalf("unexpected content %q", data)
	}
}
