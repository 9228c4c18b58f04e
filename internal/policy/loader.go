package policy

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LoadFiles reads .rego modules from paths. A directory is walked for
// .rego files; a file is read as is.
func LoadFiles(paths ...string) ([]Module, error) {
	var modules []Module
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat policy path: %w", err)
		}

		if !info.IsDir() {
			m, err := readModule(p)
			if err != nil {
				return nil, err
			}
			modules = append(modules, m)
			continue
		}

		var found []Module
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".rego") {
				return nil
			}
			m, err := readModule(path)
			if err != nil {
				return err
			}
			found = append(found, m)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk policy dir %s: %w", p, err)
		}
		sort.Slice(found, func(i, j int) bool { return found[i].Name < found[j].Name })
		modules = append(modules, found...)
	}
	return modules, nil
}

func readModule(path string) (Module, error) {
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Module{}, fmt.Errorf("read policy %s: %w", path, err)
	}
	return Module{Name: path, Source: string(content)}, nil
}
