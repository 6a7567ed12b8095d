package store

import (
	"fmt"
	"regexp"
	"strings"
)

// SearchParams defines structured search parameters.
type SearchParams struct {
	Project     string
	NamePattern string // glob on the simple name, e.g. "*Service"
	FQNPattern  string // regex on the FQN
	Kind        string // exact kind, e.g. "Interface"
	Limit       int
	Offset      int
}

// SearchResult is one matching primary declaration.
type SearchResult struct {
	FQN       string `json:"fqn"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Path      string `json:"path"`
	StartLine int    `json:"start_line"`
	UsedBy    int    `json:"used_by"`
}

// SearchOutput wraps results with pagination info.
type SearchOutput struct {
	Results []*SearchResult `json:"results"`
	Total   int             `json:"total"`
}

// Search finds primary declarations by name glob, kind and FQN regex.
func (s *Store) Search(params SearchParams) (*SearchOutput, error) {
	if params.Limit <= 0 {
		params.Limit = 50
	}

	var fqnRe *regexp.Regexp
	if params.FQNPattern != "" {
		re, err := regexp.Compile(params.FQNPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid fqn pattern: %w", err)
		}
		fqnRe = re
	}

	query := `SELECT d.fqn, d.name, d.kind, d.file_path, d.start_line,
		(SELECT COUNT(*) FROM uses u WHERE u.project=d.project AND u.target_fqn=d.fqn)
		FROM declarations d WHERE d.project=? AND d.is_primary=1`
	args := []any{params.Project}
	if params.NamePattern != "" {
		query += ` AND d.name LIKE ?`
		args = append(args, globToLike(params.NamePattern))
	}
	if params.Kind != "" {
		query += ` AND d.kind=?`
		args = append(args, params.Kind)
	}
	query += ` ORDER BY d.fqn`

	rows, err := s.q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var all []*SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.FQN, &r.Name, &r.Kind, &r.Path, &r.StartLine, &r.UsedBy); err != nil {
			return nil, err
		}
		if fqnRe != nil && !fqnRe.MatchString(r.FQN) {
			continue
		}
		all = append(all, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	total := len(all)
	start := params.Offset
	if start > total {
		start = total
	}
	end := start + params.Limit
	if end > total {
		end = total
	}
	return &SearchOutput{Results: all[start:end], Total: total}, nil
}

// globToLike converts a glob pattern to SQL LIKE pattern.
func globToLike(pattern string) string {
	result := strings.ReplaceAll(pattern, "**", "%")
	result = strings.ReplaceAll(result, "*", "%")
	result = strings.ReplaceAll(result, "?", "_")
	return result
}
