package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/declgraph/internal/store"
)

func (s *Server) handleGetDeclaration(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}

	qn := getStringArg(args, "qualified_name")
	if qn == "" {
		return errResult("qualified_name is required"), nil
	}

	d, project, err := s.findDeclaration(qn, getStringArg(args, "project"))
	if err != nil {
		return errResult(err.Error()), nil
	}

	dups, err := s.store.LoadDuplicates(project, qn)
	if err != nil {
		return errResult(fmt.Sprintf("load duplicates: %v", err)), nil
	}
	others := make([]string, 0, len(dups))
	for i, dup := range dups {
		if i > 0 {
			others = append(others, dup.Path)
		}
	}

	return jsonResult(map[string]any{
		"project":     project,
		"declaration": d,
		"duplicates":  others,
	}), nil
}

func (s *Server) handleFindUsages(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}

	qn := getStringArg(args, "qualified_name")
	if qn == "" {
		return errResult("qualified_name is required"), nil
	}
	project, err := s.resolveProject(getStringArg(args, "project"))
	if err != nil {
		return errResult(err.Error()), nil
	}
	depth := clamp(getIntArg(args, "depth", 1), 1, 5)

	if depth == 1 {
		users, err := s.store.UsersOf(project, qn)
		if err != nil {
			return errResult(fmt.Sprintf("users of: %v", err)), nil
		}
		return jsonResult(map[string]any{
			"project":        project,
			"qualified_name": qn,
			"used_by":        users,
		}), nil
	}

	res, summary, err := s.store.Impact(project, qn, depth)
	if err != nil {
		return errResult(fmt.Sprintf("impact: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"project":        project,
		"qualified_name": qn,
		"depth":          depth,
		"hops":           res.Visited,
		"edges":          res.Edges,
		"impact_summary": summary,
	}), nil
}

func (s *Server) handleListConflicts(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	project, err := s.resolveProject(getStringArg(args, "project"))
	if err != nil {
		return errResult(err.Error()), nil
	}
	conflicts, err := s.store.Conflicts(project)
	if err != nil {
		return errResult(fmt.Sprintf("conflicts: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"project":   project,
		"conflicts": conflicts,
	}), nil
}

func (s *Server) handleSearchDeclarations(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	project, err := s.resolveProject(getStringArg(args, "project"))
	if err != nil {
		return errResult(err.Error()), nil
	}

	out, err := s.store.Search(store.SearchParams{
		Project:     project,
		NamePattern: getStringArg(args, "name_pattern"),
		FQNPattern:  getStringArg(args, "fqn_pattern"),
		Kind:        getStringArg(args, "kind"),
		Limit:       clamp(getIntArg(args, "limit", 50), 1, 200),
		Offset:      clamp(getIntArg(args, "offset", 0), 0, 1<<30),
	})
	if err != nil {
		return errResult(fmt.Sprintf("search: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"project": project,
		"total":   out.Total,
		"results": out.Results,
	}), nil
}
