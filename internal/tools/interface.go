// Package tools defines the retrieval capabilities the generation loop can
// invoke, plus the closed registry that dispatches them by name. Each tool
// satisfies Eino's tool contract (Info + InvokableRun) so its schema can be
// bound directly to the chat model, and additionally tracks the source
// citations produced by its most recent invocation.
package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// Source is one citation entry recorded by a tool invocation: a display
// label and an optional link to the cited lesson or course.
type Source struct {
	// Text is the display label, e.g. "Introduction to ML - Lesson 1".
	Text string
	// Link is the lesson URL, falling back to the course URL, or empty.
	Link string
}

// ExecutionError reports an unexpected failure while executing a registered
// tool, including dispatch to an unknown tool name. The orchestrator
// converts it into an observation string rather than aborting the query.
type ExecutionError struct {
	// Tool is the tool name that failed or was unknown.
	Tool string
	// Err is the underlying failure, nil for unknown-tool dispatch.
	Err error
}

func (e *ExecutionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("tool %q not found", e.Tool)
	}
	return fmt.Sprintf("tool %q failed: %v", e.Tool, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// CourseTool is the interface all retrieval tools must satisfy. It extends
// the Eino invokable contract with a Name accessor for registry dispatch and
// a TakeSources accessor that returns and clears the citations recorded by
// the most recent invocation.
type CourseTool interface {
	tool.InvokableTool

	// Name returns the unique tool name registered with the model.
	Name() string

	// Description returns the LLM-facing description of the tool.
	Description() string

	// TakeSources returns the ordered source list recorded by the last
	// invocation and resets it, so each invocation's citations are captured
	// exactly once.
	TakeSources() []Source
}

// Registry is a closed mapping from capability name to tool, validated at
// construction rather than resolved per call. Execute is serialised so the
// per-invocation source capture stays coherent when independent user
// queries run concurrently.
type Registry struct {
	// mu serialises Execute across concurrent queries.
	mu sync.Mutex
	// tools maps tool name to implementation.
	tools map[string]CourseTool
	// order preserves registration order for schema listing.
	order []string
}

// NewRegistry validates and indexes the given tools. Duplicate or empty
// names are a startup error, never a per-call surprise.
func NewRegistry(courseTools ...CourseTool) (*Registry, error) {
	r := &Registry{tools: make(map[string]CourseTool, len(courseTools))}
	for _, t := range courseTools {
		name := t.Name()
		if name == "" {
			return nil, fmt.Errorf("tools: tool with empty name")
		}
		if _, dup := r.tools[name]; dup {
			return nil, fmt.Errorf("tools: duplicate tool name %q", name)
		}
		r.tools[name] = t
		r.order = append(r.order, name)
	}
	return r, nil
}

// Infos returns the Eino tool schemas for every registered tool, in
// registration order, for binding to the chat model.
func (r *Registry) Infos(ctx context.Context) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(r.order))
	for _, name := range r.order {
		info, err := r.tools[name].Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tools: schema for %q: %w", name, err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Execute dispatches one tool call by name and returns the observation text
// plus the sources recorded by that invocation. Unknown names and tool
// failures return an *ExecutionError.
func (r *Registry) Execute(ctx context.Context, name, argumentsInJSON string) (string, []Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tools[name]
	if !ok {
		return "", nil, &ExecutionError{Tool: name}
	}

	observation, err := t.InvokableRun(ctx, argumentsInJSON)
	sources := t.TakeSources()
	if err != nil {
		return "", nil, &ExecutionError{Tool: name, Err: err}
	}
	return observation, sources, nil
}
