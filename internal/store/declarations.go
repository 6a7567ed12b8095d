package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/DeusData/declgraph/internal/graph"
	"github.com/DeusData/declgraph/internal/model"
)

// SaveGraph replaces everything stored for project with a finalized graph
// and the per-file results it was built from. The write is atomic.
func (s *Store) SaveGraph(project, rootPath string, g *graph.ProjectGraph, results []model.AnalysisResult) error {
	if g.State() != graph.Finalized {
		return fmt.Errorf("save graph: graph is %s, not finalized", g.State())
	}
	if abs, err := filepath.Abs(rootPath); err == nil {
		rootPath = abs
	}

	return s.WithTransaction(func(tx *Store) error {
		if err := tx.DeleteProject(project); err != nil {
			return fmt.Errorf("clear project: %w", err)
		}
		if err := tx.upsertProject(Project{
			Name:             project,
			IndexedAt:        Now(),
			RootPath:         rootPath,
			FileCount:        len(results),
			DeclarationCount: g.Len(),
		}); err != nil {
			return fmt.Errorf("upsert project: %w", err)
		}
		if err := tx.insertFiles(project, results); err != nil {
			return err
		}
		if err := tx.insertDeclarations(project, g); err != nil {
			return err
		}
		return tx.insertConflicts(project, g.Conflicts())
	})
}

func (s *Store) insertFiles(project string, results []model.AnalysisResult) error {
	stmt, err := s.q.Prepare(`INSERT OR REPLACE INTO files (project, rel_path, content_hash, package, parse_error, skipped)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare files: %w", err)
	}
	defer stmt.Close()
	for _, r := range results {
		if _, err := stmt.Exec(project, r.Path, r.ContentHash, r.PackageName, r.ParseError, r.Skipped); err != nil {
			return fmt.Errorf("insert file %s: %w", r.Path, err)
		}
	}
	return nil
}

func (s *Store) insertDeclarations(project string, g *graph.ProjectGraph) error {
	declStmt, err := s.q.Prepare(`INSERT INTO declarations
		(project, fqn, name, kind, package, file_path, start_line, end_line, dup_index, is_primary, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare declarations: %w", err)
	}
	defer declStmt.Close()
	useStmt, err := s.q.Prepare(`INSERT OR IGNORE INTO uses (project, source_fqn, target_fqn) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare uses: %w", err)
	}
	defer useStmt.Close()

	for _, fqn := range g.Keys() {
		for i, d := range g.Duplicates(fqn) {
			body, err := json.Marshal(d)
			if err != nil {
				return fmt.Errorf("marshal %s: %w", fqn, err)
			}
			if _, err := declStmt.Exec(project, d.FQN, d.Name, string(d.Kind), d.PackageName,
				d.Path, d.StartLine, d.EndLine, i, i == 0, string(body)); err != nil {
				return fmt.Errorf("insert declaration %s: %w", fqn, err)
			}
			for _, target := range d.Uses {
				if _, err := useStmt.Exec(project, d.FQN, target); err != nil {
					return fmt.Errorf("insert use %s -> %s: %w", fqn, target, err)
				}
			}
		}
	}
	return nil
}

func (s *Store) insertConflicts(project string, conflicts []model.Conflict) error {
	for _, c := range conflicts {
		paths, err := json.Marshal(c.Paths)
		if err != nil {
			return fmt.Errorf("marshal conflict %s: %w", c.FQN, err)
		}
		if _, err := s.q.Exec(`INSERT OR REPLACE INTO conflicts (project, fqn, paths) VALUES (?, ?, ?)`,
			project, c.FQN, string(paths)); err != nil {
			return fmt.Errorf("insert conflict %s: %w", c.FQN, err)
		}
	}
	return nil
}

// LoadDeclaration returns the primary declaration stored for fqn.
func (s *Store) LoadDeclaration(project, fqn string) (model.Declaration, error) {
	var body string
	err := s.q.QueryRow(`SELECT body FROM declarations WHERE project=? AND fqn=? AND is_primary=1`,
		project, fqn).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Declaration{}, fmt.Errorf("declaration %q in %q: %w", fqn, project, ErrNotFound)
	}
	if err != nil {
		return model.Declaration{}, fmt.Errorf("load declaration: %w", err)
	}
	return unmarshalDeclaration(body)
}

// LoadDuplicates returns every declaration stored for fqn, primary first.
func (s *Store) LoadDuplicates(project, fqn string) ([]model.Declaration, error) {
	rows, err := s.q.Query(`SELECT body FROM declarations WHERE project=? AND fqn=?
		ORDER BY dup_index`, project, fqn)
	if err != nil {
		return nil, fmt.Errorf("load duplicates: %w", err)
	}
	defer rows.Close()
	var out []model.Declaration
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		d, err := unmarshalDeclaration(body)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UsersOf returns the FQNs of declarations that use fqn, sorted. It also
// answers for names declared outside the project.
func (s *Store) UsersOf(project, fqn string) ([]string, error) {
	return s.queryStrings(`SELECT source_fqn FROM uses WHERE project=? AND target_fqn=? ORDER BY source_fqn`,
		project, fqn)
}

// DependenciesOf returns the FQNs used by fqn, sorted.
func (s *Store) DependenciesOf(project, fqn string) ([]string, error) {
	return s.queryStrings(`SELECT target_fqn FROM uses WHERE project=? AND source_fqn=? ORDER BY target_fqn`,
		project, fqn)
}

// Conflicts returns the duplicate-FQN conflicts stored for project, sorted by FQN.
func (s *Store) Conflicts(project string) ([]model.Conflict, error) {
	rows, err := s.q.Query(`SELECT fqn, paths FROM conflicts WHERE project=? ORDER BY fqn`, project)
	if err != nil {
		return nil, fmt.Errorf("conflicts: %w", err)
	}
	defer rows.Close()
	out := []model.Conflict{}
	for rows.Next() {
		var c model.Conflict
		var paths string
		if err := rows.Scan(&c.FQN, &paths); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(paths), &c.Paths); err != nil {
			return nil, fmt.Errorf("decode conflict %s: %w", c.FQN, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) queryStrings(query string, args ...any) ([]string, error) {
	rows, err := s.q.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func unmarshalDeclaration(body string) (model.Declaration, error) {
	var d model.Declaration
	if err := json.Unmarshal([]byte(body), &d); err != nil {
		return model.Declaration{}, fmt.Errorf("decode declaration: %w", err)
	}
	return d, nil
}
