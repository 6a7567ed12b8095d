package tools

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) handleGetCodeSnippet(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
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

	if d.StartLine == 0 || d.EndLine == 0 {
		return errResult("declaration has no line range"), nil
	}

	proj, err := s.store.GetProject(project)
	if err != nil {
		return errResult(fmt.Sprintf("project not found: %s", project)), nil
	}

	absPath := filepath.Join(proj.RootPath, filepath.FromSlash(d.Path))

	source, readErr := readLines(absPath, d.StartLine, d.EndLine)
	if readErr != nil {
		return errResult(fmt.Sprintf("read file: %v", readErr)), nil
	}

	return jsonResult(map[string]any{
		"qualified_name": d.FQN,
		"kind":           d.Kind,
		"file_path":      absPath,
		"start_line":     d.StartLine,
		"end_line":       d.EndLine,
		"source":         source,
	}), nil
}

// readLines reads specific lines from a file, returning them with line numbers.
func readLines(path string, startLine, endLine int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if lineNum > endLine {
			break
		}
		if lineNum >= startLine {
			fmt.Fprintf(&sb, "%4d | %s\n", lineNum, scanner.Text())
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan: %w", err)
	}

	if sb.Len() == 0 {
		return "", fmt.Errorf("no lines found in range %d-%d (file has %d lines)", startLine, endLine, lineNum)
	}

	return sb.String(), nil
}
