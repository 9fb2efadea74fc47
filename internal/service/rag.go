package service

import (
	"context"
	"encoding/json"

	"github.com/cloo-solutions/coursepilot/internal/domain"
	"github.com/cloo-solutions/coursepilot/internal/telemetry"
)

// ChatMessage is one prior conversation turn in a chat request.
type ChatMessage struct {
	Role    string
	Content string
}

// ToolCallRequest is the LLM asking for one tool execution.
type ToolCallRequest struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ToolOutput carries one executed tool's text back to the LLM.
type ToolOutput struct {
	CallID  string
	Content string
}

// ChatRequest describes one call to the tool-calling LLM. When ToolCalls and
// ToolOutputs are set, the request is the second phase: the prior assistant
// tool round plus its results are replayed ahead of the final answer.
type ChatRequest struct {
	System      string
	Messages    []ChatMessage
	Tools       []ToolDefinition
	ToolCalls   []ToolCallRequest
	ToolOutputs []ToolOutput
}

// ChatResult is the LLM's reply: free text, or one round of tool calls.
type ChatResult struct {
	Text      string
	ToolCalls []ToolCallRequest
}

// ChatClient is the tool-calling LLM boundary.
type ChatClient interface {
	GenerateChat(ctx context.Context, req ChatRequest) (*ChatResult, error)
}

// Answer is the orchestrator's result for one query.
type Answer struct {
	SessionID string
	Text      string
	Citations []domain.Citation
}

const systemPrompt = `You are an AI assistant for course materials. You can search the course ` +
	`content with the search_course_content tool.

Use the tool only for questions about specific course content or lesson details, at most one ` +
	`search per question. Answer general knowledge questions directly without searching. If a ` +
	`search returns nothing relevant, say so.

Keep answers brief, accurate and grounded in the retrieved content. Do not mention the search ` +
	`process itself.`

// RAGService drives the two-phase decide/search/answer protocol: one LLM
// call with the tool schema attached, at most one round of tool execution,
// then one closing LLM call. It never loops further even if the second
// response asks for more tools, keeping cost and latency bounded.
type RAGService struct {
	chat     ChatClient
	registry *ToolRegistry
	sessions *SessionStore
}

func NewRAGService(chat ChatClient, registry *ToolRegistry, sessions *SessionStore) *RAGService {
	return &RAGService{
		chat:     chat,
		registry: registry,
		sessions: sessions,
	}
}

// Query answers one question, optionally within an existing session. A new
// session is created when sessionID is empty. Upstream faults propagate and
// leave the session history untouched for this turn.
func (s *RAGService) Query(ctx context.Context, question, sessionID string) (*Answer, error) {
	if question == "" {
		return nil, domain.ErrEmptyQuery
	}
	if sessionID == "" {
		sessionID = s.sessions.CreateSession()
	}

	ctx, span := telemetry.StartSpan(ctx, "RAGService.Query", telemetry.SpanAttributes{
		SessionID: sessionID,
		Operation: "query",
	})
	defer span.End()

	messages := append(s.chatHistory(sessionID), ChatMessage{Role: RoleUser, Content: question})

	first, err := s.chat.GenerateChat(ctx, ChatRequest{
		System:   systemPrompt,
		Messages: messages,
		Tools:    s.registry.Definitions(),
	})
	if err != nil {
		span.SetError(err)
		return nil, domain.ErrGenerationFailed.WithCause(err)
	}

	answer := &Answer{SessionID: sessionID}

	if len(first.ToolCalls) == 0 {
		answer.Text = first.Text
	} else {
		answer.Text, answer.Citations, err = s.runToolRound(ctx, messages, first.ToolCalls)
		if err != nil {
			return nil, err
		}
	}

	s.sessions.AddExchange(sessionID, question, answer.Text)
	return answer, nil
}

// runToolRound executes the requested tool calls and issues the second,
// final LLM call with their outputs. A failing tool aborts only that call;
// the LLM is told execution failed and still produces an answer.
func (s *RAGService) runToolRound(ctx context.Context, messages []ChatMessage, calls []ToolCallRequest) (string, []domain.Citation, error) {
	outputs := make([]ToolOutput, 0, len(calls))
	for _, call := range calls {
		telemetry.AddBreadcrumb(ctx, "tool", "executing "+call.Name)
		text, err := s.registry.Execute(ctx, call.Name, call.Arguments)
		if err != nil {
			text = "Tool execution failed: " + err.Error()
		}
		outputs = append(outputs, ToolOutput{CallID: call.ID, Content: text})
	}

	citations := s.registry.ConsumeCitations()

	// No tools attached: the second response must be the final answer.
	second, err := s.chat.GenerateChat(ctx, ChatRequest{
		System:      systemPrompt,
		Messages:    messages,
		ToolCalls:   calls,
		ToolOutputs: outputs,
	})
	if err != nil {
		return "", nil, domain.ErrGenerationFailed.WithCause(err)
	}

	return second.Text, citations, nil
}

func (s *RAGService) chatHistory(sessionID string) []ChatMessage {
	history := s.sessions.GetHistory(sessionID)
	messages := make([]ChatMessage, 0, len(history)+1)
	for _, m := range history {
		messages = append(messages, ChatMessage{Role: m.Role, Content: m.Content})
	}
	return messages
}
