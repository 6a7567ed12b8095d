package tools

import (
	"context"
	"fmt"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/declgraph/internal/pipeline"
)

func (s *Server) handleAnalyzeProject(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}

	repoPath := getStringArg(args, "repo_path")
	if repoPath == "" {
		return errResult("repo_path is required"), nil
	}
	if info, statErr := os.Stat(repoPath); statErr != nil || !info.IsDir() {
		return errResult(fmt.Sprintf("not a directory: %s", repoPath)), nil
	}

	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	p := pipeline.New(ctx, s.store, repoPath, pipeline.Options{Metrics: s.metrics})
	res, err := p.Run()
	if err != nil {
		return errResult(fmt.Sprintf("analysis failed: %v", err)), nil
	}

	parseErrors := make([]map[string]string, 0)
	for _, f := range res.ParseErrors() {
		parseErrors = append(parseErrors, map[string]string{"path": f.Path, "error": f.ParseError})
	}
	return jsonResult(map[string]any{
		"project":      p.ProjectName,
		"files":        len(res.Files),
		"declarations": res.Graph.Len(),
		"conflicts":    len(res.Conflicts),
		"parse_errors": parseErrors,
		"elapsed_ms":   res.Elapsed.Milliseconds(),
	}), nil
}

// Reanalyze re-runs the pipeline for a stored project. It shares the lock
// used by analyze_project so the watcher never races a tool call.
func (s *Server) Reanalyze(ctx context.Context, projectName, rootPath string) error {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	p := pipeline.New(ctx, s.store, rootPath, pipeline.Options{Metrics: s.metrics})
	p.ProjectName = projectName
	_, err := p.Run()
	return err
}
