package workspace

import (
	"path"
	"strings"
)

// sourceRootMarkers are directory names after which directories map onto
// package components, e.g. java/com/foo or src/main/java/com/foo.
var sourceRootMarkers = map[string]bool{
	"java":      true,
	"javatests": true,
	"kotlin":    true,
}

// InferPackage derives a package name from a source file's directory using
// the java/ and javatests/ layout conventions. It returns "" when no marker
// directory is present.
func InferPackage(filePath string) string {
	dir := path.Dir(strings.ReplaceAll(filePath, "\\", "/"))
	if dir == "." || dir == "/" {
		return ""
	}
	parts := strings.Split(strings.Trim(dir, "/"), "/")
	for i, part := range parts {
		if sourceRootMarkers[part] {
			return strings.Join(parts[i+1:], ".")
		}
	}
	return ""
}
