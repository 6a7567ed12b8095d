package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/declgraph/internal/analyzer"
	"github.com/DeusData/declgraph/internal/model"
	"github.com/DeusData/declgraph/internal/store"
)

// Version is reported in the MCP implementation info.
var Version = "0.1.0"

// Server wraps the MCP server with tool handlers.
type Server struct {
	mcp     *mcp.Server
	store   *store.Store
	metrics *analyzer.Metrics
	indexMu sync.Mutex
}

// NewServer creates a new MCP server with all tools registered. metrics may
// be nil.
func NewServer(s *store.Store, metrics *analyzer.Metrics) *Server {
	srv := &Server{
		store:   s,
		metrics: metrics,
		mcp: mcp.NewServer(
			&mcp.Implementation{
				Name:    "declgraph",
				Version: Version,
			},
			nil,
		),
	}
	srv.registerTools()
	return srv
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

func (s *Server) registerTools() {
	s.mcp.AddTool(&mcp.Tool{
		Name:        "analyze_project",
		Description: "Analyze a Kotlin project: extract every top-level class, interface, enum and object declaration, resolve the types each one uses to fully-qualified names, derive the reverse used-by relation and store the graph for querying. Replaces any previous analysis of the same path.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"repo_path": {
					"type": "string",
					"description": "Absolute path to the project root"
				}
			},
			"required": ["repo_path"]
		}`),
	}, s.handleAnalyzeProject)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "get_declaration",
		Description: "Return the stored record of a declaration by fully-qualified name: kind, visibility, annotations, supertypes, members, functions, uses and used_by. Duplicate declarations of the same name are listed by path.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"qualified_name": {
					"type": "string",
					"description": "Fully-qualified name, e.g. 'com.example.UserService'"
				},
				"project": {
					"type": "string",
					"description": "Project name (optional; all projects are searched when omitted)"
				}
			},
			"required": ["qualified_name"]
		}`),
	}, s.handleGetDeclaration)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "find_usages",
		Description: "List the declarations that use a fully-qualified name. With depth > 1 the used-by relation is followed transitively and each hop gets a risk label (1 = CRITICAL, 2 = HIGH, 3 = MEDIUM, deeper = LOW). Works for names declared outside the project too.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"qualified_name": {
					"type": "string",
					"description": "Fully-qualified name to find usages of"
				},
				"project": {
					"type": "string",
					"description": "Project name (optional when only one project is stored)"
				},
				"depth": {
					"type": "integer",
					"description": "Transitive depth (1-5, default 1)"
				}
			},
			"required": ["qualified_name"]
		}`),
	}, s.handleFindUsages)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "list_conflicts",
		Description: "List fully-qualified names declared in more than one file, with the paths of every declaration.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"project": {
					"type": "string",
					"description": "Project name (optional when only one project is stored)"
				}
			}
		}`),
	}, s.handleListConflicts)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "search_declarations",
		Description: "Search stored declarations by simple-name glob, kind and fully-qualified-name regex. Returns FQN, kind, location and used-by count.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"project": {
					"type": "string",
					"description": "Project name (optional when only one project is stored)"
				},
				"name_pattern": {
					"type": "string",
					"description": "Glob on the simple name (e.g. '*Service')"
				},
				"fqn_pattern": {
					"type": "string",
					"description": "Regex on the fully-qualified name (e.g. '^com\\.example\\.billing\\.')"
				},
				"kind": {
					"type": "string",
					"description": "Declaration kind",
					"enum": ["Class", "Interface", "Enum", "Object", "SealedClass", "DataClass", "Annotation"]
				},
				"limit": {
					"type": "integer",
					"description": "Max results (default 50, max 200)"
				},
				"offset": {
					"type": "integer",
					"description": "Results to skip (default 0)"
				}
			}
		}`),
	}, s.handleSearchDeclarations)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "get_code_snippet",
		Description: "Return the source text of a declaration by fully-qualified name, read from disk using the stored path and line range.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"qualified_name": {
					"type": "string",
					"description": "Fully-qualified name of the declaration"
				},
				"project": {
					"type": "string",
					"description": "Project name (optional)"
				}
			},
			"required": ["qualified_name"]
		}`),
	}, s.handleGetCodeSnippet)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "list_projects",
		Description: "List all analyzed projects with their analysis timestamp, root path, file and declaration counts.",
		InputSchema: json.RawMessage(`{"type": "object"}`),
	}, s.handleListProjects)

	s.mcp.AddTool(&mcp.Tool{
		Name:        "delete_project",
		Description: "Delete an analyzed project and all its stored data. This action is irreversible.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"project_name": {
					"type": "string",
					"description": "Name of the project to delete"
				}
			},
			"required": ["project_name"]
		}`),
	}, s.handleDeleteProject)
}

// jsonResult marshals data to JSON and returns as tool result.
func jsonResult(data any) *mcp.CallToolResult {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return errResult("json marshal err=" + err.Error())
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(b)},
		},
	}
}

// errResult returns a tool result indicating an error.
func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}

// parseArgs unmarshals the raw JSON arguments into a map.
func parseArgs(req *mcp.CallToolRequest) (map[string]any, error) {
	if req.Params == nil || len(req.Params.Arguments) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(req.Params.Arguments, &m); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	return m, nil
}

// getStringArg extracts a string argument from parsed args.
func getStringArg(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// getIntArg extracts an integer argument with a default value.
func getIntArg(args map[string]any, key string, defaultVal int) int {
	v, ok := args[key]
	if !ok {
		return defaultVal
	}
	f, ok := v.(float64) // JSON numbers decode as float64
	if !ok {
		return defaultVal
	}
	return int(f)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// resolveProject returns the named project, or the only stored project when
// name is empty.
func (s *Server) resolveProject(name string) (string, error) {
	if name != "" {
		if _, err := s.store.GetProject(name); err != nil {
			return "", err
		}
		return name, nil
	}
	projects, err := s.store.ListProjects()
	if err != nil {
		return "", fmt.Errorf("list projects: %w", err)
	}
	switch len(projects) {
	case 0:
		return "", errors.New("no projects analyzed yet; run analyze_project first")
	case 1:
		return projects[0].Name, nil
	default:
		return "", fmt.Errorf("%d projects stored; pass project", len(projects))
	}
}

// findDeclaration loads fqn from project, or from the first project that
// declares it when project is empty.
func (s *Server) findDeclaration(fqn, project string) (model.Declaration, string, error) {
	if project != "" {
		d, err := s.store.LoadDeclaration(project, fqn)
		return d, project, err
	}
	projects, err := s.store.ListProjects()
	if err != nil {
		return model.Declaration{}, "", fmt.Errorf("list projects: %w", err)
	}
	for _, p := range projects {
		d, err := s.store.LoadDeclaration(p.Name, fqn)
		if err == nil {
			return d, p.Name, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return model.Declaration{}, "", err
		}
	}
	return model.Declaration{}, "", fmt.Errorf("declaration not found: %s", fqn)
}
