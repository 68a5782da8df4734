package project

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// ArtifactDirs returns every bin and obj directory under dir. Matches are
// pruned, so nested output directories are not listed twice.
func ArtifactDirs(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == dir {
				return fs.SkipAll
			}
			return err
		}
		if !d.IsDir() || path == dir {
			return nil
		}
		switch d.Name() {
		case "bin", "obj":
			out = append(out, path)
			return fs.SkipDir
		case ".git", ArtifactsDir:
			return fs.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "scanning %s", dir)
	}
	return out, nil
}
