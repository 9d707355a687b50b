package project

import (
	"path/filepath"

	"querysync/internal/shared/util"
)

// AddGenSrcContentEntry adds one content entry rooted at cacheRelativePath to
// every module, holding a generated source folder per directory in dirs.
// Only the base name of each directory is used. With no directories the
// input pointer is returned unchanged; otherwise p is left untouched and a
// new Project is returned.
func AddGenSrcContentEntry(p *Project, cacheRelativePath string, dirs []string) *Project {
	if len(dirs) == 0 || p == nil {
		return p
	}
	root := util.NormalizeRelPath(cacheRelativePath)

	sources := make([]SourceFolder, 0, len(dirs))
	for _, dir := range dirs {
		sources = append(sources, SourceFolder{
			Path:        util.JoinRel(root, filepath.Base(filepath.Clean(dir))),
			IsGenerated: true,
		})
	}

	out := p.Clone()
	for i := range out.Modules {
		out.Modules[i].ContentEntries = append(out.Modules[i].ContentEntries, ContentEntry{
			Root:    ContentRoot{Base: BaseProject, Path: root},
			Sources: append([]SourceFolder(nil), sources...),
		})
	}
	return out
}
