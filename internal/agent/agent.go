// Package agent runs the multi-round tool-calling protocol between session
// history, the retrieval tools, and the external chat model. The model is an
// opaque oracle: each round it either requests a tool or returns final text,
// and the loop must terminate correctly whichever branch it takes. Tool
// calls and their results live only in a transient per-query context — the
// persistent session records just the user query and the final answer.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"github.com/coursechat/coursechat-go/internal/budget"
	"github.com/coursechat/coursechat-go/internal/logging"
	"github.com/coursechat/coursechat-go/internal/metrics"
	"github.com/coursechat/coursechat-go/internal/session"
	"github.com/coursechat/coursechat-go/internal/tools"
)

// systemPrompt establishes the assistant's persona and tool protocol. It is
// sent with every query; per-session context arrives as message history.
const systemPrompt = `You are an AI assistant specialized in course materials and educational content, with access to tools for course information.

Available Tools:
1. **search_course_content**: for searching specific course content and materials
2. **get_course_outline**: for course structure — title, course link, and the full lesson list

Tool Usage Guidelines:
- Use search_course_content for questions about specific course content or detailed educational materials
- Use get_course_outline for questions about course structure, lesson lists, or syllabus information
- You may make additional tool calls after seeing initial results, up to the round limit
- Synthesize tool results into accurate, fact-based responses
- If tools yield no results, state this clearly without offering alternatives

Response Protocol:
- General knowledge questions: answer from existing knowledge without searching
- Course-specific questions: search first, then answer
- No meta-commentary: provide direct answers only — no reasoning process, search explanations, or mention of "search results"

All responses must be brief, educational, clear, and example-supported where that aids understanding. Provide only the direct answer to what was asked.`

// noResponseText is the fallback answer when the round limit is reached
// while the model is still requesting tools and has produced no text.
const noResponseText = "No response generated"

// DefaultMaxToolRounds bounds how many tool-calling rounds one query may
// spend before the loop forces termination.
const DefaultMaxToolRounds = 2

// APIError reports a network, authentication, or protocol failure talking
// to the external generation model. Fatal for the current query: it is the
// only error class surfaced to the end user as a hard failure.
type APIError struct {
	// Err is the underlying transport or protocol failure.
	Err error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("agent: generation API failure: %v", e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// Answer is the result of one completed query.
type Answer struct {
	// Text is the model's final natural-language answer.
	Text string

	// Sources is the ordered citation list aggregated across every tool
	// call made while answering this query.
	Sources []tools.Source
}

// Config holds the dependencies required to construct an Orchestrator.
type Config struct {
	// ChatModel is the LLM backend constructed by the provider factory.
	ChatModel model.ToolCallingChatModel

	// Registry is the closed tool registry; its schemas are bound to the
	// model at construction time.
	Registry *tools.Registry

	// Sessions is the optional bounded history store. If nil, each query is
	// stateless.
	Sessions *session.Manager

	// MaxToolRounds bounds tool-calling rounds per query. Defaults to
	// DefaultMaxToolRounds if zero.
	MaxToolRounds int

	// MaxContextTokens is the estimated token budget for the model input.
	// History is trimmed oldest-first to fit. Defaults to
	// budget.DefaultMaxContextTokens if zero.
	MaxContextTokens int

	// ModelRPS rate-limits calls to the generation API (requests/second
	// across all rounds and queries). Zero disables limiting.
	ModelRPS float64

	// ModelTimeout bounds the wall-clock time of one query's model calls.
	// Zero means no timeout.
	ModelTimeout time.Duration

	// Metrics is the optional instrument set. If nil, counting is skipped.
	Metrics *metrics.Metrics
}

// Orchestrator coordinates one query at a time through the tool-calling
// state machine. Safe for concurrent use across independent queries.
type Orchestrator struct {
	// chatModel is the tool-bound model used for every round.
	chatModel model.ToolCallingChatModel

	// registry dispatches tool calls by name.
	registry *tools.Registry

	// sessions is the optional history store.
	sessions *session.Manager

	// maxToolRounds bounds rounds per query.
	maxToolRounds int

	// maxContextTokens is the input token budget.
	maxContextTokens int

	// limiter throttles generation API calls; nil when unlimited.
	limiter *rate.Limiter

	// timeout bounds one query's model calls; zero means none.
	timeout time.Duration

	// metrics is the optional instrument set.
	metrics *metrics.Metrics
}

// New constructs an Orchestrator, binding the registry's tool schemas to
// the chat model so misconfigured tools fail at startup rather than on the
// first query.
func New(ctx context.Context, cfg *Config) (*Orchestrator, error) {
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("agent: ChatModel must not be nil")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("agent: Registry must not be nil")
	}

	infos, err := cfg.Registry.Infos(ctx)
	if err != nil {
		return nil, fmt.Errorf("agent: %w", err)
	}
	bound, err := cfg.ChatModel.WithTools(infos)
	if err != nil {
		return nil, fmt.Errorf("agent: failed to bind tools: %w", err)
	}

	rounds := cfg.MaxToolRounds
	if rounds <= 0 {
		rounds = DefaultMaxToolRounds
	}
	maxCtx := cfg.MaxContextTokens
	if maxCtx <= 0 {
		maxCtx = budget.DefaultMaxContextTokens
	}

	var limiter *rate.Limiter
	if cfg.ModelRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.ModelRPS), 1)
	}

	return &Orchestrator{
		chatModel:        bound,
		registry:         cfg.Registry,
		sessions:         cfg.Sessions,
		maxToolRounds:    rounds,
		maxContextTokens: maxCtx,
		limiter:          limiter,
		timeout:          cfg.ModelTimeout,
		metrics:          cfg.Metrics,
	}, nil
}

// Query answers one user query, letting the model decide whether to search
// before answering. Only the query and the final answer are appended to the
// session; the intermediate tool context is discarded when the query
// completes. sessionID may be empty for a stateless query.
func (o *Orchestrator) Query(ctx context.Context, sessionID, query string) (*Answer, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	messages, err := o.buildMessages(ctx, sessionID, query)
	if err != nil {
		return nil, err
	}

	resp, err := o.generate(ctx, messages)
	if err != nil {
		o.countQuery(metrics.OutcomeError)
		return nil, err
	}

	var sources []tools.Source
	rounds := 0
	for len(resp.ToolCalls) > 0 && rounds < o.maxToolRounds {
		rounds++
		if o.metrics != nil {
			o.metrics.ToolRoundsTotal.Inc()
		}

		// The assistant's tool request and every result join the transient
		// per-query context; the model sees them on the next round.
		messages = append(messages, resp)
		for _, call := range resp.ToolCalls {
			observation, callSources := o.executeCall(ctx, call)
			sources = append(sources, callSources...)
			messages = append(messages, schema.ToolMessage(observation, call.ID))
		}

		resp, err = o.generate(ctx, messages)
		if err != nil {
			o.countQuery(metrics.OutcomeError)
			return nil, err
		}
	}

	// If the round limit was hit while the model still wanted tools, fall
	// back to whatever text the last response carried.
	text := resp.Content
	if text == "" {
		text = noResponseText
	}

	o.persistTurns(ctx, sessionID, query, text)
	o.countQuery(metrics.OutcomeOK)

	return &Answer{Text: text, Sources: sources}, nil
}

// executeCall runs one tool call and converts any execution failure —
// including an unknown tool name — into an observation string the model can
// react to, never a crash.
func (o *Orchestrator) executeCall(ctx context.Context, call schema.ToolCall) (string, []tools.Source) {
	observation, callSources, err := o.registry.Execute(ctx, call.Function.Name, call.Function.Arguments)
	if err != nil {
		if o.metrics != nil {
			o.metrics.ToolErrorsTotal.Inc()
		}
		logging.FromContext(ctx).Warn("tool execution failed",
			slog.String("tool", call.Function.Name),
			slog.Any("error", err),
		)
		return fmt.Sprintf("Tool execution error: %v", err), nil
	}
	return observation, callSources
}

// generate performs one rate-limited call to the generation API.
func (o *Orchestrator) generate(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, &APIError{Err: err}
		}
	}

	resp, err := o.chatModel.Generate(ctx, messages)
	if err != nil {
		return nil, &APIError{Err: err}
	}
	return resp, nil
}

// buildMessages assembles system prompt + trimmed session history + the
// current user query.
func (o *Orchestrator) buildMessages(ctx context.Context, sessionID, query string) ([]*schema.Message, error) {
	var historyMsgs []*schema.Message
	if o.sessions != nil && sessionID != "" {
		turns, err := o.sessions.History(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("agent: failed to load history: %w", err)
		}
		for _, t := range turns {
			switch t.Role {
			case session.RoleUser:
				historyMsgs = append(historyMsgs, schema.UserMessage(t.Content))
			case session.RoleAssistant:
				historyMsgs = append(historyMsgs, schema.AssistantMessage(t.Content, nil))
			}
		}
	}

	fixed := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(query),
	}

	before := len(historyMsgs)
	historyMsgs = budget.TrimHistory(fixed, historyMsgs, o.maxContextTokens)
	if dropped := before - len(historyMsgs); dropped > 0 {
		logging.FromContext(ctx).Warn("dropped history turns to fit context window",
			slog.Int("dropped", dropped),
			slog.Int("retained", len(historyMsgs)),
			slog.Int("max_tokens", o.maxContextTokens),
		)
	}

	messages := make([]*schema.Message, 0, len(historyMsgs)+2)
	messages = append(messages, fixed[0])
	messages = append(messages, historyMsgs...)
	messages = append(messages, fixed[1])
	return messages, nil
}

// persistTurns appends the user query and the final answer to the session.
// Persistence failures are non-fatal — the answer still reaches the caller.
func (o *Orchestrator) persistTurns(ctx context.Context, sessionID, query, answer string) {
	if o.sessions == nil || sessionID == "" {
		return
	}
	if err := o.sessions.AppendTurn(ctx, sessionID, session.RoleUser, query); err != nil {
		logging.FromContext(ctx).Warn("failed to persist user turn", slog.Any("error", err))
	}
	if err := o.sessions.AppendTurn(ctx, sessionID, session.RoleAssistant, answer); err != nil {
		logging.FromContext(ctx).Warn("failed to persist assistant turn", slog.Any("error", err))
	}
}

// countQuery increments the query outcome counter when metrics are wired.
func (o *Orchestrator) countQuery(outcome string) {
	if o.metrics != nil {
		o.metrics.QueriesTotal.WithLabelValues(outcome).Inc()
	}
}
