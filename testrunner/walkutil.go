package testrunner

import (
	"os"
	"path/filepath"
	"strings"
)

// walkAndProcessFiles walks a path (file or directory) and invokes onFile for each file.
// Files found inside directories are reported with fromDir set. VCS, vendor and dot
// directories below root are skipped.
func walkAndProcessFiles(root string, onFile func(p string, fromDir bool) error) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return onFile(root, false)
	}

	return filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if p == root {
				return nil
			}

			name := info.Name()
			if name == "vendor" || name == ".git" || name == "node_modules" || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}

			return nil
		}

		return onFile(p, true)
	})
}
