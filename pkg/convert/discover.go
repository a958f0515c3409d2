package convert

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

var (
	headerExts = map[string]bool{".h": true, ".hpp": true, ".hh": true}
	sourceExts = map[string]bool{".cpp": true, ".cc": true, ".cxx": true}
)

// IsHeader reports whether path has a header extension.
func IsHeader(path string) bool {
	return headerExts[strings.ToLower(filepath.Ext(path))]
}

// IsSource reports whether path has a source extension.
func IsSource(path string) bool {
	return sourceExts[strings.ToLower(filepath.Ext(path))]
}

// Discovery finds the headers and sources below a root directory
type Discovery struct {
	root    string
	include []glob.Glob
	exclude []glob.Glob
	// skip is a directory never descended into, usually the output
	skip string
}

// NewDiscovery compiles include and exclude patterns. Patterns match slash
// separated paths relative to root.
func NewDiscovery(root string, include, exclude []string) (*Discovery, error) {
	d := &Discovery{root: root}
	for _, p := range include {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, err
		}
		d.include = append(d.include, g)
	}
	for _, p := range exclude {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, err
		}
		d.exclude = append(d.exclude, g)
	}
	return d, nil
}

// Skip excludes a directory from the walk.
func (d *Discovery) Skip(dir string) {
	d.skip = filepath.Clean(dir)
}

// Match reports whether a path relative to the root is converted.
func (d *Discovery) Match(rel string) bool {
	rel = filepath.ToSlash(rel)
	if !IsHeader(rel) && !IsSource(rel) {
		return false
	}
	for _, g := range d.exclude {
		if g.Match(rel) {
			return false
		}
	}
	if len(d.include) == 0 {
		return true
	}
	for _, g := range d.include {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// Files walks the root and returns matching headers and sources in
// lexical order.
func (d *Discovery) Files() (headers, sources []string, err error) {
	err = filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if d.skip != "" && path != d.root && filepath.Clean(path) == d.skip {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(d.root, path)
		if err != nil {
			return err
		}
		if !d.Match(rel) {
			return nil
		}
		if IsHeader(path) {
			headers = append(headers, path)
		} else {
			sources = append(sources, path)
		}
		return nil
	})
	return headers, sources, err
}
