// Package analyzer runs a batch of source files through parsing, declaration
// extraction and the usage graph.
//
// Per-file work is a pure function of (path, bytes) and runs on a bounded
// worker pool; each file's declarations are collected into the graph as soon
// as they are extracted, and one reconciliation finalizes the graph after
// every file has been seen.
package analyzer

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"github.com/DeusData/declgraph/internal/extract"
	"github.com/DeusData/declgraph/internal/fqn"
	"github.com/DeusData/declgraph/internal/graph"
	"github.com/DeusData/declgraph/internal/lang"
	"github.com/DeusData/declgraph/internal/model"
	"github.com/DeusData/declgraph/internal/parser"
	"github.com/DeusData/declgraph/internal/resolve"
)

// SourceFile is one input file: a project-relative path and its raw bytes.
type SourceFile struct {
	Path    string
	Content []byte
}

// Options tune a run.
type Options struct {
	// Workers bounds parallel file analysis. Zero means runtime.NumCPU().
	Workers int
	// IsTestFile excludes files from extraction. Nil keeps every file.
	IsTestFile func(path string) bool
	// TolerateSyntaxErrors extracts from trees with error regions instead
	// of reporting the file as unparseable.
	TolerateSyntaxErrors bool
	// Metrics, when set, receives per-file and per-run observations.
	Metrics *Metrics
}

// Result is the outcome of a run.
type Result struct {
	// Files holds one result per input file, in input order.
	Files     []model.AnalysisResult
	Graph     *graph.ProjectGraph
	Conflicts []model.Conflict
	Elapsed   time.Duration
}

// ParseErrors returns the results of files that failed to parse.
func (r *Result) ParseErrors() []model.AnalysisResult {
	var out []model.AnalysisResult
	for _, f := range r.Files {
		if f.ParseError != "" {
			out = append(out, f)
		}
	}
	return out
}

// Analyzer analyzes Kotlin sources. It is safe for concurrent use.
type Analyzer struct {
	language  lang.Language
	extractor *extract.Extractor
	opts      Options
}

// New builds an Analyzer. builtins replaces the language's built-in type
// allowlist when non-nil. An error means the pattern set failed to compile.
func New(language lang.Language, builtins []string, opts Options) (*Analyzer, error) {
	spec := lang.ForLanguage(language)
	if spec == nil || language != lang.Kotlin {
		return nil, fmt.Errorf("analyzer: unsupported language %q", language)
	}
	if builtins == nil {
		builtins = spec.BuiltinTypes
	}
	ex, err := extract.New(resolve.New(builtins))
	if err != nil {
		return nil, fmt.Errorf("analyzer: %w", err)
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Analyzer{language: language, extractor: ex, opts: opts}, nil
}

// Close releases the compiled patterns.
func (a *Analyzer) Close() {
	a.extractor.Close()
}

// AnalyzeFile parses and extracts one file. A file that does not parse
// yields no declarations and a ParseError; other files are unaffected.
func (a *Analyzer) AnalyzeFile(f SourceFile) model.AnalysisResult {
	res := model.AnalysisResult{
		Path:         f.Path,
		Imports:      []string{},
		Declarations: []model.Declaration{},
		ContentHash:  ContentHash(f.Content),
	}
	if a.opts.IsTestFile != nil && a.opts.IsTestFile(f.Path) {
		res.Skipped = true
		return res
	}

	tree, err := parser.Parse(a.language, f.Content)
	if err != nil {
		res.ParseError = err.Error()
		return res
	}
	defer tree.Close()

	if se := parser.CheckSyntax(tree); se != nil {
		if !a.opts.TolerateSyntaxErrors {
			res.ParseError = se.Error()
			return res
		}
		res.Diagnostics = append(res.Diagnostics, se.Error())
	}

	fd := a.extractor.Extract(f.Path, tree, f.Content)
	res.PackageName = fd.PackageName
	if len(fd.Imports) > 0 {
		res.Imports = fd.Imports
	}
	if len(fd.Declarations) > 0 {
		res.Declarations = fd.Declarations
	}
	if !fqn.MatchesDir(fd.PackageName, f.Path) {
		res.Diagnostics = append(res.Diagnostics,
			fmt.Sprintf("package %s does not match directory %s", fd.PackageName, fqn.DirPackage(f.Path)))
	}
	return res
}

// Run analyzes files and returns the finalized graph. Cancellation is
// checked between files; a cancelled run returns ctx.Err() together with
// the results of the files that completed.
func (a *Analyzer) Run(ctx context.Context, files []SourceFile) (*Result, error) {
	t := time.Now()
	workers := a.opts.Workers
	if workers > len(files) && len(files) > 0 {
		workers = len(files)
	}
	slog.Info("analyzer.start", "files", len(files), "workers", workers)

	g := graph.New()
	results := make([]model.AnalysisResult, len(files))
	done := make([]bool, len(files))

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, f := range files {
		if gctx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			r := a.AnalyzeFile(f)
			a.opts.Metrics.observeFile(r, time.Since(start))
			if r.ParseError != "" {
				slog.Warn("analyzer.file.parse_err", "path", r.Path, "err", r.ParseError)
			}
			results[i] = r
			done[i] = true
			if len(r.Declarations) == 0 {
				return nil
			}
			if err := g.Collect(r.Path, r.Declarations); err != nil {
				return fmt.Errorf("collect %s: %w", r.Path, err)
			}
			return nil
		})
	}
	err := eg.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		partial := make([]model.AnalysisResult, 0, len(files))
		for i, ok := range done {
			if ok {
				partial = append(partial, results[i])
			}
		}
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		slog.Warn("analyzer.cancelled", "completed", len(partial), "files", len(files), "err", err)
		return &Result{Files: partial, Elapsed: time.Since(t)}, err
	}

	if err := g.Reconcile(ctx); err != nil {
		return &Result{Files: results, Elapsed: time.Since(t)}, err
	}

	conflicts := g.Conflicts()
	for _, c := range conflicts {
		slog.Warn("analyzer.conflict", "fqn", c.FQN, "paths", c.Paths)
	}
	elapsed := time.Since(t)
	a.opts.Metrics.observeRun(g.Len(), len(conflicts), elapsed)
	slog.Info("analyzer.done",
		"files", len(files),
		"declarations", g.Len(),
		"conflicts", len(conflicts),
		"elapsed", elapsed,
	)
	return &Result{Files: results, Graph: g, Conflicts: conflicts, Elapsed: elapsed}, nil
}

// ContentHash is the hex xxh3 digest recorded as AnalysisResult.ContentHash.
func ContentHash(content []byte) string {
	h := xxh3.New()
	_, _ = h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}
