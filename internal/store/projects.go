package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// Project represents an analyzed project.
type Project struct {
	Name             string `json:"name"`
	IndexedAt        string `json:"indexed_at"`
	RootPath         string `json:"root_path"`
	FileCount        int    `json:"file_count"`
	DeclarationCount int    `json:"declaration_count"`
}

// FileRecord is the stored outcome of analyzing one file.
type FileRecord struct {
	RelPath     string `json:"rel_path"`
	ContentHash string `json:"content_hash"`
	Package     string `json:"package,omitempty"`
	ParseError  string `json:"parse_error,omitempty"`
	Skipped     bool   `json:"skipped,omitempty"`
}

// upsertProject creates or updates a project record.
func (s *Store) upsertProject(p Project) error {
	_, err := s.q.Exec(`
		INSERT INTO projects (name, indexed_at, root_path, file_count, declaration_count) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET indexed_at=excluded.indexed_at, root_path=excluded.root_path,
			file_count=excluded.file_count, declaration_count=excluded.declaration_count`,
		p.Name, p.IndexedAt, p.RootPath, p.FileCount, p.DeclarationCount)
	return err
}

// GetProject returns a project by name.
func (s *Store) GetProject(name string) (*Project, error) {
	var p Project
	err := s.q.QueryRow(`SELECT name, indexed_at, root_path, file_count, declaration_count
		FROM projects WHERE name=?`, name).
		Scan(&p.Name, &p.IndexedAt, &p.RootPath, &p.FileCount, &p.DeclarationCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProjects returns all stored projects.
func (s *Store) ListProjects() ([]*Project, error) {
	rows, err := s.q.Query(`SELECT name, indexed_at, root_path, file_count, declaration_count
		FROM projects ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []*Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.Name, &p.IndexedAt, &p.RootPath, &p.FileCount, &p.DeclarationCount); err != nil {
			return nil, err
		}
		result = append(result, &p)
	}
	return result, rows.Err()
}

// DeleteProject deletes a project and all associated data (CASCADE).
func (s *Store) DeleteProject(name string) error {
	_, err := s.q.Exec("DELETE FROM projects WHERE name=?", name)
	return err
}

// Files returns the stored per-file records of a project, sorted by path.
func (s *Store) Files(project string) ([]FileRecord, error) {
	rows, err := s.q.Query(`SELECT rel_path, content_hash, package, parse_error, skipped
		FROM files WHERE project=? ORDER BY rel_path`, project)
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	defer rows.Close()
	var result []FileRecord
	for rows.Next() {
		var f FileRecord
		if err := rows.Scan(&f.RelPath, &f.ContentHash, &f.Package, &f.ParseError, &f.Skipped); err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

// FileHashes returns rel_path to content hash for a project.
func (s *Store) FileHashes(project string) (map[string]string, error) {
	files, err := s.Files(project)
	if err != nil {
		return nil, err
	}
	result := make(map[string]string, len(files))
	for _, f := range files {
		result[f.RelPath] = f.ContentHash
	}
	return result, nil
}
