package openaicompat

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nulzo/llm-gateway/internal/provider"
	"github.com/nulzo/llm-gateway/pkg/api"
)

type chatRequest struct {
	Model           string         `json:"model"`
	Messages        []chatMessage  `json:"messages"`
	Tools           []chatTool     `json:"tools,omitempty"`
	MaxTokens       int            `json:"max_tokens,omitempty"`
	Temperature     *float64       `json:"temperature,omitempty"`
	Stream          bool           `json:"stream"`
	StreamOptions   *streamOptions `json:"stream_options,omitempty"`
	ReasoningEffort string         `json:"reasoning_effort,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type chatMessage struct {
	Role       string     `json:"role"`
	Content    any        `json:"content"` // string or []contentPart
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type toolCall struct {
	Index    int          `json:"index"`
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type,omitempty"`
	Function callFunction `json:"function"`
}

type callFunction struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content          string     `json:"content"`
			ReasoningContent string     `json:"reasoning_content"`
			ToolCalls        []toolCall `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *chunkUsage `json:"usage"`
}

type chunkUsage struct {
	PromptTokens            int `json:"prompt_tokens"`
	CompletionTokens        int `json:"completion_tokens"`
	CompletionTokensDetails struct {
		ReasoningTokens int `json:"reasoning_tokens"`
	} `json:"completion_tokens_details"`
}

func (a *Adapter) buildRequest(req *api.StreamRequest) (chatRequest, error) {
	out := chatRequest{
		Model:         upstreamModel(req.Model),
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		Stream:        true,
		StreamOptions: &streamOptions{IncludeUsage: true},
	}
	if req.System != "" {
		out.Messages = append(out.Messages, chatMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		msgs, err := fromMessage(m)
		if err != nil {
			return chatRequest{}, err
		}
		out.Messages = append(out.Messages, msgs...)
	}
	for _, t := range req.Tools {
		out.Tools = append(out.Tools, chatTool{
			Type: "function",
			Function: toolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	out.ReasoningEffort = effortString(req.Reasoning)
	return out, nil
}

// upstreamModel strips a provider prefix if the caller left one on.
func upstreamModel(id string) string {
	if _, rest, found := strings.Cut(id, "/"); found {
		return rest
	}
	return id
}

// fromMessage converts one canonical message, possibly into several wire
// messages: each tool_result block becomes its own role "tool" message.
func fromMessage(m api.Message) ([]chatMessage, error) {
	if m.Content.Blocks == nil {
		return []chatMessage{{Role: string(m.Role), Content: m.Content.Text}}, nil
	}

	var out []chatMessage
	msg := chatMessage{Role: string(m.Role)}
	var parts []contentPart

	for _, b := range m.Content.Blocks {
		switch b.Type {
		case api.BlockText:
			parts = append(parts, contentPart{Type: "text", Text: b.Text})
		case api.BlockImage:
			if b.Image == nil {
				return nil, fmt.Errorf("openaicompat: image block without payload")
			}
			parts = append(parts, contentPart{
				Type:     "image_url",
				ImageURL: &imageURL{URL: fmt.Sprintf("data:%s;base64,%s", b.Image.MediaType, b.Image.Data)},
			})
		case api.BlockToolUse:
			if b.ToolUse == nil {
				return nil, fmt.Errorf("openaicompat: tool_use block without payload")
			}
			args, err := json.Marshal(b.ToolUse.Arguments)
			if err != nil {
				return nil, fmt.Errorf("openaicompat: marshal tool arguments: %w", err)
			}
			msg.ToolCalls = append(msg.ToolCalls, toolCall{
				ID:       b.ToolUse.ID,
				Type:     "function",
				Function: callFunction{Name: b.ToolUse.Name, Arguments: string(args)},
			})
		case api.BlockToolResult:
			if b.ToolResult == nil {
				return nil, fmt.Errorf("openaicompat: tool_result block without payload")
			}
			output := b.ToolResult.Output
			if b.ToolResult.IsError {
				output = "error: " + output
			}
			out = append(out, chatMessage{
				Role:       "tool",
				ToolCallID: b.ToolResult.CallID,
				Content:    output,
			})
		default:
			return nil, fmt.Errorf("openaicompat: unsupported block type %q", b.Type)
		}
	}

	if len(parts) > 0 || len(msg.ToolCalls) > 0 {
		if len(parts) > 0 {
			msg.Content = parts
		} else {
			msg.Content = ""
		}
		out = append([]chatMessage{msg}, out...)
	}
	return out, nil
}

// effortString maps the canonical reasoning request onto reasoning_effort.
// A raw token budget picks the smallest level whose budget covers it so the
// request is never quietly shrunk.
func effortString(r api.ReasoningEffort) string {
	if !r.Enabled() {
		return ""
	}
	if r.Tokens > 0 {
		switch {
		case r.Tokens <= provider.BudgetLow:
			return "low"
		case r.Tokens <= provider.BudgetMedium:
			return "medium"
		default:
			return "high"
		}
	}
	switch r.Level {
	case api.EffortLow:
		return "low"
	case api.EffortMedium:
		return "medium"
	default:
		// high and max both map to the strongest available setting.
		return "high"
	}
}

// toolCallAccumulator reassembles streamed tool calls, which arrive as an id
// and name first, then argument fragments, all keyed by choice index.
type toolCallAccumulator struct {
	calls map[int]*pendingCall
	order []int
}

type pendingCall struct {
	id   string
	name string
	args []byte
}

func newToolCallAccumulator() *toolCallAccumulator {
	return &toolCallAccumulator{calls: make(map[int]*pendingCall)}
}

// feed consumes one tool-call fragment and returns the events it produces.
func (a *toolCallAccumulator) feed(tc toolCall) []api.Event {
	var events []api.Event
	entry, ok := a.calls[tc.Index]
	if !ok {
		entry = &pendingCall{id: tc.ID, name: tc.Function.Name}
		a.calls[tc.Index] = entry
		a.order = append(a.order, tc.Index)
		events = append(events, api.ToolUseStart(entry.id, entry.name))
	} else {
		if entry.id == "" {
			entry.id = tc.ID
		}
		if entry.name == "" {
			entry.name = tc.Function.Name
		}
	}
	if tc.Function.Arguments != "" {
		entry.args = append(entry.args, tc.Function.Arguments...)
		events = append(events, api.ToolUseDelta(entry.id, tc.Function.Arguments))
	}
	return events
}

// finish closes every open call with its reassembled arguments, in the order
// the calls started. Unparseable arguments end the sequence with a single
// error event; ok reports whether every call closed cleanly.
func (a *toolCallAccumulator) finish() (events []api.Event, ok bool) {
	events = make([]api.Event, 0, len(a.order))
	for _, idx := range a.order {
		entry := a.calls[idx]
		args := map[string]any{}
		if len(entry.args) > 0 {
			if err := json.Unmarshal(entry.args, &args); err != nil {
				events = append(events, api.Errorf("openaicompat: tool call %s arguments unparseable: %v", entry.id, err))
				return events, false
			}
		}
		events = append(events, api.ToolUseStop(entry.id, entry.name, args))
	}
	return events, true
}
