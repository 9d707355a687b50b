package parser

import (
	stderrors "errors"
	"io/fs"

	"querysync/internal/core/errors"
	"querysync/internal/engine/project"
	"querysync/internal/engine/workspace"
)

// DirectoryPackageReader infers packages from the java/ and javatests/
// directory layout without touching the file.
type DirectoryPackageReader struct{}

func (DirectoryPackageReader) ReadPackage(path string) (string, error) {
	return workspace.InferPackage(path), nil
}

// ChainedPackageReader asks each reader in turn and returns the first
// non-empty package. Missing files are skipped; other errors stop the chain.
type ChainedPackageReader []project.PackageReader

func (c ChainedPackageReader) ReadPackage(path string) (string, error) {
	for _, r := range c {
		pkg, err := r.ReadPackage(path)
		if err != nil {
			if errors.IsCode(err, errors.CodeNotFound) || stderrors.Is(err, fs.ErrNotExist) {
				continue
			}
			return "", err
		}
		if pkg != "" {
			return pkg, nil
		}
	}
	return "", nil
}

// NewWorkspacePackageReader reads declarations from Java sources under
// workspaceRoot and falls back to the directory layout.
func NewWorkspacePackageReader(workspaceRoot string) project.PackageReader {
	return ChainedPackageReader{
		NewJavaPackageReader(workspaceRoot, nil),
		DirectoryPackageReader{},
	}
}
