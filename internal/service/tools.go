package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cloo-solutions/coursepilot/internal/domain"
)

// ToolDefinition describes one callable capability to the LLM: a name plus a
// JSON-schema parameter object.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Tool is a named capability the orchestrator can execute on the LLM's
// behalf. Execute returns user-facing text for the LLM plus the citations of
// whatever was retrieved.
type Tool interface {
	Definition() ToolDefinition
	Execute(ctx context.Context, args json.RawMessage) (string, []domain.Citation, error)
}

// ToolRegistry maps tool names to tools and tracks the citations of the most
// recent execution (last-call-wins) until the orchestrator consumes them.
type ToolRegistry struct {
	mu        sync.Mutex
	order     []string
	tools     map[string]Tool
	citations []domain.Citation
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// Register adds a tool. Re-registering a name replaces the prior tool.
func (r *ToolRegistry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := t.Definition().Name
	if _, ok := r.tools[name]; !ok {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
}

// Definitions returns all tool definitions in registration order.
func (r *ToolRegistry) Definitions() []ToolDefinition {
	r.mu.Lock()
	defer r.mu.Unlock()

	defs := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Execute runs the named tool and records its citations, replacing any
// citations from a prior call. An unknown name is an invocation fault.
func (r *ToolRegistry) Execute(ctx context.Context, name string, args json.RawMessage) (string, error) {
	r.mu.Lock()
	tool, ok := r.tools[name]
	r.mu.Unlock()
	if !ok {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeInvalidOperation,
			fmt.Sprintf("unknown tool %q", name), domain.ErrUnknownTool)
	}

	text, citations, err := tool.Execute(ctx, args)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.citations = citations
	r.mu.Unlock()

	return text, nil
}

// ConsumeCitations returns the pending citation set and clears it.
func (r *ToolRegistry) ConsumeCitations() []domain.Citation {
	r.mu.Lock()
	defer r.mu.Unlock()

	citations := r.citations
	r.citations = nil
	return citations
}

// SearchStore is the slice of the vector store the search tool needs.
type SearchStore interface {
	Search(ctx context.Context, input SearchInput) ([]*ChunkSearchResult, error)
}

// CourseSearchTool exposes filtered semantic search over course content.
type CourseSearchTool struct {
	store SearchStore
}

func NewCourseSearchTool(store SearchStore) *CourseSearchTool {
	return &CourseSearchTool{store: store}
}

func (t *CourseSearchTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        "search_course_content",
		Description: "Search course materials with optional course and lesson filters",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "What to search for in the course content",
				},
				"course_name": map[string]any{
					"type":        "string",
					"description": "Course title, partial names and acronyms are resolved",
				},
				"lesson_number": map[string]any{
					"type":        "integer",
					"description": "Specific lesson number to search within",
				},
			},
			"required": []string{"query"},
		},
	}
}

type courseSearchArgs struct {
	Query        string `json:"query"`
	CourseName   string `json:"course_name"`
	LessonNumber *int   `json:"lesson_number"`
}

// Execute runs the search and formats the results for the LLM. Retrieval
// outcomes (course not found, nothing matching) come back as explanatory
// text, not errors; only malformed arguments are invocation faults.
func (t *CourseSearchTool) Execute(ctx context.Context, args json.RawMessage) (string, []domain.Citation, error) {
	var params courseSearchArgs
	if err := json.Unmarshal(args, &params); err != nil {
		return "", nil, domain.NewDomainErrorWithCause(domain.ErrCodeInvalidOperation, "malformed tool arguments", err)
	}
	if strings.TrimSpace(params.Query) == "" {
		return "", nil, domain.NewDomainErrorWithCause(domain.ErrCodeInvalidOperation,
			"missing required argument: query", domain.ErrInvalidToolCall)
	}

	results, err := t.store.Search(ctx, SearchInput{
		Query:        params.Query,
		CourseName:   params.CourseName,
		LessonNumber: params.LessonNumber,
	})
	if err != nil {
		if errors.Is(err, domain.ErrCourseNotFound) {
			return fmt.Sprintf("No course found matching '%s'.", params.CourseName), nil, nil
		}
		return "", nil, err
	}

	if len(results) == 0 {
		return formatEmptyResult(params), nil, nil
	}

	blocks := make([]string, 0, len(results))
	citations := make([]domain.Citation, 0, len(results))
	for _, r := range results {
		citation := domain.Citation{
			CourseTitle:  r.CourseTitle,
			LessonNumber: r.LessonNumber,
			Link:         r.Link,
		}
		citations = append(citations, citation)
		blocks = append(blocks, fmt.Sprintf("[%s]\n%s", citation.Display(), r.Content))
	}

	return strings.Join(blocks, "\n\n"), citations, nil
}

func formatEmptyResult(params courseSearchArgs) string {
	var scope strings.Builder
	scope.WriteString("No relevant content found")
	if params.CourseName != "" {
		fmt.Fprintf(&scope, " in course '%s'", params.CourseName)
	}
	if params.LessonNumber != nil {
		fmt.Fprintf(&scope, " in lesson %d", *params.LessonNumber)
	}
	scope.WriteString(".")
	return scope.String()
}
