package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/negproof/negproof/internal/imageio"
)

// DiscoverScans resolves a mix of files and directories into the sorted
// list of loadable scans. Non-image files inside directories are skipped
// silently; a named file with an unsupported extension is an error.
func DiscoverScans(args []string, recursive bool, includePatterns, excludePatterns []string) ([]string, error) {
	var scans []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			files, err := discoverInDirectory(arg, recursive, includePatterns, excludePatterns)
			if err != nil {
				return nil, err
			}
			scans = append(scans, files...)
			continue
		}

		if !imageio.IsSupported(arg) {
			return nil, fmt.Errorf("unsupported scan format: %s", arg)
		}
		if shouldInclude(arg, includePatterns, excludePatterns) {
			scans = append(scans, arg)
		}
	}

	sort.Strings(scans)
	return scans, nil
}

func discoverInDirectory(dir string, recursive bool, includePatterns, excludePatterns []string) ([]string, error) {
	var files []string

	walkFn := func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if !recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if imageio.IsSupported(path) && shouldInclude(path, includePatterns, excludePatterns) {
			files = append(files, path)
		}
		return nil
	}

	return files, filepath.Walk(dir, walkFn)
}

// shouldInclude applies exclude patterns first, then requires a match
// against the include patterns when any are given.
func shouldInclude(path string, includePatterns, excludePatterns []string) bool {
	if matchesAny(path, excludePatterns) {
		return false
	}
	if len(includePatterns) == 0 {
		return true
	}
	return matchesAny(path, includePatterns)
}

func matchesAny(path string, patterns []string) bool {
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
