package pipeline

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultInclude matches package-insert files anywhere under the root.
var DefaultInclude = []string{"**/*.xml", "**/*.sgml"}

type compiledPattern struct {
	pattern string
	glob    glob.Glob
}

func compilePatterns(patterns []string) ([]compiledPattern, error) {
	out := make([]compiledPattern, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", p, err)
		}
		out = append(out, compiledPattern{pattern: p, glob: g})
		// "**/*.xml" should also match files at the root.
		if rest, ok := strings.CutPrefix(p, "**/"); ok {
			if g, err := glob.Compile(rest, '/'); err == nil {
				out = append(out, compiledPattern{pattern: rest, glob: g})
			}
		}
	}
	return out, nil
}

// ValidatePatterns reports the first pattern that does not compile.
func ValidatePatterns(patterns []string) error {
	_, err := compilePatterns(patterns)
	return err
}

// Input is one document to process. Data may be nil, in which case the
// file at Path is read.
type Input struct {
	Name        string
	Path        string
	Data        []byte
	ContentHash string
}

// Discovery finds package-insert files under a root directory.
type Discovery struct {
	root    string
	include []compiledPattern
	ignore  []compiledPattern
}

// NewDiscovery compiles the include and ignore globs. An empty include
// list means DefaultInclude.
func NewDiscovery(root string, include, ignore []string) (*Discovery, error) {
	if len(include) == 0 {
		include = DefaultInclude
	}
	inc, err := compilePatterns(include)
	if err != nil {
		return nil, err
	}
	ign, err := compilePatterns(ignore)
	if err != nil {
		return nil, err
	}
	return &Discovery{root: root, include: inc, ignore: ign}, nil
}

// Root returns the directory being discovered.
func (d *Discovery) Root() string { return d.root }

// Matches reports whether a root-relative, slash-separated path is
// included and not ignored.
func (d *Discovery) Matches(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	if matchAny(relPath, d.ignore) || matchAny(relPath+"/**", d.ignore) {
		return false
	}
	return matchAny(relPath, d.include)
}

func matchAny(path string, patterns []compiledPattern) bool {
	for _, cp := range patterns {
		if cp.glob.Match(path) {
			return true
		}
	}
	return false
}

// Discover walks the root and returns matching files in lexical order.
// Files whose content hash was already seen are dropped and counted as
// duplicates.
func (d *Discovery) Discover() (inputs []Input, duplicates int, err error) {
	seen := make(map[string]string)
	err = filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(d.root, path)
		if err != nil {
			return err
		}
		if !d.Matches(rel) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		hash := ContentHashHex(data)
		if _, dup := seen[hash]; dup {
			duplicates++
			return nil
		}
		seen[hash] = path
		inputs = append(inputs, Input{Name: filepath.ToSlash(rel), Path: path, ContentHash: hash})
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("discover %s: %w", d.root, err)
	}
	return inputs, duplicates, nil
}
