package engine

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/viant/imagespider/imaging"
)

// Enumerate walks root recursively and returns every regular file in
// lexical order. Hidden directories are not descended into. Filtering is
// left to the decoder so rejected files show up in the report.
func Enumerate(root string) ([]string, error) {
	return enumerate(root, nil)
}

// EnumerateImages is Enumerate restricted to recognised image extensions.
func EnumerateImages(root string) ([]string, error) {
	return enumerate(root, imaging.Accepts)
}

func enumerate(root string, accept func(string) bool) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if accept == nil || accept(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("engine: enumerate %s: %w", root, err)
	}
	return paths, nil
}
