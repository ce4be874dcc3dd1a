package project

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/gabriel-vasile/mimetype"
)

// Options filters a Collect walk.
type Options struct {
	// Include patterns use doublestar syntax. Empty includes everything.
	Include     []string
	Exclude     []string
	MaxFileSize int64
}

var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
}

// Collect walks root and returns text files keyed by slash-separated
// path relative to root. Binary and oversized files are skipped.
func Collect(ctx context.Context, root string, opts Options) (map[string]string, error) {
	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("collect %s: not a directory", root)
	}

	var mu sync.Mutex
	files := map[string]string{}
	conf := fastwalk.Config{Follow: false}

	err = fastwalk.Walk(&conf, root, func(p string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != root && skipDirs[d.Name()] {
				return fastwalk.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if !matches(rel, opts.Include, true) || matches(rel, opts.Exclude, false) {
			return nil
		}

		info, err := d.Info()
		if err != nil || info.Size() > maxSize {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil || !isText(data) {
			return nil
		}

		mu.Lock()
		files[rel] = string(data)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", root, err)
	}
	return files, nil
}

func matches(rel string, patterns []string, empty bool) bool {
	if len(patterns) == 0 {
		return empty
	}
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func isText(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	mtype := mimetype.Detect(data)
	for m := mtype; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "text/") {
			return true
		}
	}
	switch mtype.String() {
	case "application/json", "application/xml", "application/javascript":
		return true
	}
	return false
}
