// Package pipeline runs one project analysis end to end: configuration,
// discovery, loading, analysis and, when a store is attached, persistence.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/DeusData/declgraph/internal/analyzer"
	"github.com/DeusData/declgraph/internal/config"
	"github.com/DeusData/declgraph/internal/discover"
	"github.com/DeusData/declgraph/internal/lang"
	"github.com/DeusData/declgraph/internal/store"
)

// Options tune a pipeline run.
type Options struct {
	// Config overrides <repo>/.declgraph.yaml.
	Config *config.Config
	// Metrics, when set, is passed to the analyzer.
	Metrics *analyzer.Metrics
}

// Pipeline analyzes one repository.
type Pipeline struct {
	ctx         context.Context
	Store       *store.Store // nil skips persistence
	RepoPath    string
	ProjectName string
	opts        Options
}

// New creates a new Pipeline.
func New(ctx context.Context, s *store.Store, repoPath string, opts Options) *Pipeline {
	if abs, err := filepath.Abs(repoPath); err == nil {
		repoPath = abs
	}
	return &Pipeline{
		ctx:         ctx,
		Store:       s,
		RepoPath:    repoPath,
		ProjectName: ProjectNameFromPath(repoPath),
		opts:        opts,
	}
}

// ProjectNameFromPath derives a unique project name from an absolute path
// by replacing path separators with dashes and trimming the leading dash.
func ProjectNameFromPath(absPath string) string {
	cleaned := filepath.ToSlash(filepath.Clean(absPath))
	name := strings.ReplaceAll(cleaned, "/", "-")
	name = strings.TrimLeft(name, "-")
	if name == "" {
		return "root"
	}
	return name
}

// Run discovers and analyzes every Kotlin file under RepoPath and, when a
// store is attached, replaces the project's stored graph with the result.
func (p *Pipeline) Run() (*analyzer.Result, error) {
	t := time.Now()
	slog.Info("pipeline.start", "project", p.ProjectName, "path", p.RepoPath)

	if err := p.ctx.Err(); err != nil {
		return nil, err
	}

	cfg := p.opts.Config
	if cfg == nil {
		var err error
		if cfg, err = config.Load(p.RepoPath); err != nil {
			return nil, err
		}
	}

	files, err := discover.Discover(p.ctx, p.RepoPath, &discover.Options{Exclude: cfg.Exclude})
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	slog.Info("pipeline.discovered", "files", len(files))

	srcs, err := discover.Load(p.ctx, files)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	suffixes, dirs := cfg.EffectiveTestPatterns(lang.Kotlin)
	a, err := analyzer.New(lang.Kotlin, cfg.AllBuiltins(lang.Kotlin), analyzer.Options{
		Workers:              cfg.EffectiveWorkers(),
		IsTestFile:           analyzer.TestFilePredicate(suffixes, dirs),
		TolerateSyntaxErrors: cfg.EffectiveTolerateSyntaxErrors(),
		Metrics:              p.opts.Metrics,
	})
	if err != nil {
		return nil, err
	}
	defer a.Close()

	res, err := a.Run(p.ctx, srcs)
	if err != nil {
		return res, fmt.Errorf("analyze: %w", err)
	}

	if p.Store != nil {
		if err := p.Store.SaveGraph(p.ProjectName, p.RepoPath, res.Graph, res.Files); err != nil {
			return res, fmt.Errorf("save: %w", err)
		}
	}

	slog.Info("pipeline.done",
		"project", p.ProjectName,
		"files", len(res.Files),
		"declarations", res.Graph.Len(),
		"conflicts", len(res.Conflicts),
		"parse_errors", len(res.ParseErrors()),
		"elapsed", time.Since(t),
	)
	return res, nil
}
