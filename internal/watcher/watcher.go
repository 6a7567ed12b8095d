// Package watcher re-analyzes stored projects whose Kotlin sources no
// longer match the content hashes recorded by their last analysis.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/DeusData/declgraph/internal/analyzer"
	"github.com/DeusData/declgraph/internal/config"
	"github.com/DeusData/declgraph/internal/discover"
	"github.com/DeusData/declgraph/internal/store"
)

const (
	baseInterval = 1 * time.Second
	maxInterval  = 60 * time.Second
)

// fileStamp caches the hash of a file for as long as its mtime and size
// stay the same.
type fileStamp struct {
	modTime time.Time
	size    int64
	hash    string
}

type projectState struct {
	stamps   map[string]fileStamp
	interval time.Duration
	nextPoll time.Time
}

// AnalyzeFunc re-runs the analysis of one stored project.
type AnalyzeFunc func(ctx context.Context, projectName, rootPath string) error

// Watcher polls stored projects and re-analyzes those whose sources differ
// from what the store recorded.
type Watcher struct {
	store     *store.Store
	analyzeFn AnalyzeFunc
	projects  map[string]*projectState
	ctx       context.Context
}

// New creates a Watcher.
func New(s *store.Store, analyzeFn AnalyzeFunc) *Watcher {
	return &Watcher{
		store:     s,
		analyzeFn: analyzeFn,
		projects:  make(map[string]*projectState),
		ctx:       context.Background(),
	}
}

// Run blocks until ctx is cancelled, polling every project whose interval
// has elapsed.
func (w *Watcher) Run(ctx context.Context) {
	w.ctx = ctx
	ticker := time.NewTicker(baseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.pollAll()
		}
	}
}

func (w *Watcher) pollAll() {
	projects, err := w.store.ListProjects()
	if err != nil {
		slog.Warn("watcher.list_projects", "err", err)
		return
	}

	now := time.Now()
	for _, proj := range projects {
		state, ok := w.projects[proj.Name]
		if !ok {
			state = &projectState{}
			w.projects[proj.Name] = state
		}
		if now.Before(state.nextPoll) {
			continue
		}
		w.pollProject(proj, state)
	}
}

// pollProject hashes the project's sources and compares them with the
// hashes stored by the last analysis. Any added, removed or edited file
// triggers a full re-analysis; a file that was only touched does not.
func (w *Watcher) pollProject(proj *store.Project, state *projectState) {
	if _, err := os.Stat(proj.RootPath); err != nil {
		slog.Warn("watcher.root_gone", "project", proj.Name, "path", proj.RootPath)
		state.nextPoll = time.Now().Add(maxInterval)
		return
	}

	stamps, err := hashSources(w.ctx, proj.RootPath, state.stamps)
	if err != nil {
		slog.Warn("watcher.hash", "project", proj.Name, "err", err)
		state.nextPoll = time.Now().Add(maxInterval)
		return
	}
	state.stamps = stamps
	state.interval = pollInterval(len(stamps))
	state.nextPoll = time.Now().Add(state.interval)

	stored, err := w.store.FileHashes(proj.Name)
	if err != nil {
		slog.Warn("watcher.stored_hashes", "project", proj.Name, "err", err)
		return
	}
	changed := changedFiles(stored, stamps)
	if len(changed) == 0 {
		return
	}

	slog.Info("watcher.changed", "project", proj.Name, "files", len(changed), "first", changed[0])
	if err := w.analyzeFn(w.ctx, proj.Name, proj.RootPath); err != nil {
		// The store still holds the old hashes, so the next poll retries.
		slog.Warn("watcher.analyze", "project", proj.Name, "err", err)
	}
}

// hashSources returns the content hash of every Kotlin file the pipeline
// would analyze under root, honouring the project's exclude globs. Hashes
// in prev are reused for files whose mtime and size are unchanged.
func hashSources(ctx context.Context, root string, prev map[string]fileStamp) (map[string]fileStamp, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	files, err := discover.Discover(ctx, root, &discover.Options{Exclude: cfg.Exclude})
	if err != nil {
		return nil, err
	}

	stamps := make(map[string]fileStamp, len(files))
	for _, f := range files {
		info, err := os.Stat(f.Path)
		if err != nil {
			continue
		}
		st := fileStamp{modTime: info.ModTime(), size: info.Size()}
		if old, ok := prev[f.RelPath]; ok && old.modTime.Equal(st.modTime) && old.size == st.size {
			st.hash = old.hash
		} else {
			content, err := os.ReadFile(f.Path)
			if err != nil {
				continue
			}
			st.hash = analyzer.ContentHash(content)
		}
		stamps[f.RelPath] = st
	}
	return stamps, nil
}

// changedFiles lists, sorted, the paths that were added, removed or edited
// relative to the stored hashes.
func changedFiles(stored map[string]string, current map[string]fileStamp) []string {
	var out []string
	for path, st := range current {
		if h, ok := stored[path]; !ok || h != st.hash {
			out = append(out, path)
		}
	}
	for path := range stored {
		if _, ok := current[path]; !ok {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}

// pollInterval grows with project size: 1s plus 1s per 500 files, capped
// at maxInterval.
func pollInterval(fileCount int) time.Duration {
	d := baseInterval + time.Duration(fileCount/500)*time.Second
	if d > maxInterval {
		d = maxInterval
	}
	return d
}
