package discover

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/DeusData/declgraph/internal/analyzer"
	"github.com/DeusData/declgraph/internal/lang"
)

// IgnoreFileName is the per-project ignore file read from the root.
const IgnoreFileName = ".declgraphignore"

// IGNORE_PATTERNS are directory names to skip during discovery.
var IGNORE_PATTERNS = map[string]bool{
	".cache": true, ".claude": true, ".eclipse": true, ".git": true,
	".gradle": true, ".hg": true, ".idea": true, ".kotlin": true,
	".maven": true, ".svn": true, ".tmp": true, ".vs": true,
	".vscode": true, "bin": true, "build": true, "coverage": true,
	"dist": true, "node_modules": true, "obj": true, "out": true,
	"target": true, "temp": true, "tmp": true, "vendor": true,
}

// IGNORE_SUFFIXES are file suffixes to skip.
var IGNORE_SUFFIXES = map[string]bool{
	".tmp": true, "~": true, ".class": true, ".orig": true,
}

// FileInfo represents a discovered source file.
type FileInfo struct {
	Path     string        // absolute path
	RelPath  string        // relative to repo root, slash-separated
	Language lang.Language // detected language
}

// Options configures file discovery.
type Options struct {
	// IgnoreFile overrides <root>/.declgraphignore.
	IgnoreFile string
	// Exclude are doublestar globs matched against the slash-separated
	// relative path of every file and directory.
	Exclude []string
}

// excluded reports whether rel (or, for directories, its bare name)
// matches one of the globs.
func excluded(name, rel string, patterns []string) bool {
	for _, pattern := range patterns {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
		if !strings.Contains(pattern, "/") {
			if matched, _ := doublestar.Match(pattern, name); matched {
				return true
			}
		}
	}
	return false
}

// shouldSkipDir returns true if the directory should be skipped during discovery.
func shouldSkipDir(name, rel string, patterns []string) bool {
	if IGNORE_PATTERNS[name] {
		return true
	}
	return excluded(name, rel, patterns)
}

// Discover walks a repository and returns all Kotlin source files in
// lexical path order.
func Discover(ctx context.Context, repoPath string, opts *Options) ([]FileInfo, error) {
	repoPath, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ignPath := filepath.Join(repoPath, IgnoreFileName)
	var patterns []string
	if opts != nil {
		patterns = append(patterns, opts.Exclude...)
		if opts.IgnoreFile != "" {
			ignPath = opts.IgnoreFile
		}
	}
	extra, _ := loadIgnoreFile(ignPath)
	patterns = append(patterns, extra...)
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("discover: invalid exclude pattern %q", p)
		}
	}

	var files []FileInfo

	err = filepath.Walk(repoPath, func(path string, info os.FileInfo, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if walkErr != nil {
			return filepath.SkipDir
		}

		rel, _ := filepath.Rel(repoPath, path)
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if rel != "." && shouldSkipDir(info.Name(), rel, patterns) {
				return filepath.SkipDir
			}
			return nil
		}

		for suffix := range IGNORE_SUFFIXES {
			if strings.HasSuffix(path, suffix) {
				return nil
			}
		}
		if excluded(info.Name(), rel, patterns) {
			return nil
		}

		l, ok := lang.LanguageForExtension(filepath.Ext(path))
		if !ok || l != lang.Kotlin {
			return nil
		}
		files = append(files, FileInfo{
			Path:     path,
			RelPath:  rel,
			Language: l,
		})
		return nil
	})

	return files, err
}

// Load reads the discovered files into analyzer inputs keyed by their
// relative paths. Cancellation is checked between files.
func Load(ctx context.Context, files []FileInfo) ([]analyzer.SourceFile, error) {
	out := make([]analyzer.SourceFile, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, fmt.Errorf("discover: read %s: %w", f.RelPath, err)
		}
		out = append(out, analyzer.SourceFile{Path: f.RelPath, Content: data})
	}
	return out, nil
}

func loadIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			patterns = append(patterns, line)
		}
	}
	return patterns, scanner.Err()
}
