package anthropic

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nulzo/llm-gateway/internal/provider"
	"github.com/nulzo/llm-gateway/pkg/api"
)

// defaultMaxTokens applies when the caller sets no output budget; the
// messages API requires one.
const defaultMaxTokens = 4096

type messagesRequest struct {
	Model       string         `json:"model"`
	Messages    []wireMessage  `json:"messages"`
	System      string         `json:"system,omitempty"`
	Tools       []wireTool     `json:"tools,omitempty"`
	MaxTokens   int            `json:"max_tokens"`
	Temperature *float64       `json:"temperature,omitempty"`
	Stream      bool           `json:"stream"`
	Thinking    *thinkingParam `json:"thinking,omitempty"`
}

type thinkingParam struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens"`
}

type wireMessage struct {
	Role    string      `json:"role"`
	Content []wireBlock `json:"content"`
}

type wireBlock struct {
	Type string `json:"type"`

	Text string `json:"text,omitempty"`

	Source *imageSource `json:"source,omitempty"`

	// tool_use fields.
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`

	// tool_result fields.
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type wireTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

type streamEvent struct {
	Type         string        `json:"type"`
	Index        int           `json:"index"`
	Message      *messageStart `json:"message,omitempty"`
	ContentBlock *wireBlock    `json:"content_block,omitempty"`
	Delta        *eventDelta   `json:"delta,omitempty"`
	Usage        *wireUsage    `json:"usage,omitempty"`
	Error        *wireError    `json:"error,omitempty"`
}

type messageStart struct {
	Usage wireUsage `json:"usage"`
}

type eventDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	Thinking    string `json:"thinking,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	StopReason  string `json:"stop_reason,omitempty"`
}

type wireUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type wireError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func buildRequest(req *api.StreamRequest) (messagesRequest, error) {
	out := messagesRequest{
		Model:       upstreamModel(req.Model),
		System:      req.System,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      true,
	}
	if out.MaxTokens == 0 {
		out.MaxTokens = defaultMaxTokens
	}

	for _, m := range req.Messages {
		if m.Role == api.RoleSystem {
			if out.System != "" {
				out.System += "\n"
			}
			out.System += m.Content.Text
			continue
		}
		msg, err := fromMessage(m)
		if err != nil {
			return messagesRequest{}, err
		}
		if len(msg.Content) > 0 {
			out.Messages = append(out.Messages, msg)
		}
	}

	for _, t := range req.Tools {
		schema := t.Parameters
		if schema == nil {
			schema = map[string]any{"type": "object"}
		}
		out.Tools = append(out.Tools, wireTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		})
	}

	// Thinking tokens count against max_tokens here, so the output budget is
	// grown by the reasoning budget rather than quietly lending it out.
	if budget := provider.ReasoningBudget(req.Reasoning); budget > 0 {
		out.Thinking = &thinkingParam{Type: "enabled", BudgetTokens: budget}
		out.MaxTokens = provider.InflateMaxTokens(out.MaxTokens, budget)
	}
	return out, nil
}

func upstreamModel(id string) string {
	if _, rest, found := strings.Cut(id, "/"); found {
		return rest
	}
	return id
}

// fromMessage maps canonical roles onto the two-role messages API: tool
// results travel as tool_result blocks in a user message.
func fromMessage(m api.Message) (wireMessage, error) {
	role := "user"
	if m.Role == api.RoleAssistant {
		role = "assistant"
	}
	msg := wireMessage{Role: role}

	if m.Content.Blocks == nil {
		if m.Content.Text != "" {
			msg.Content = append(msg.Content, wireBlock{Type: "text", Text: m.Content.Text})
		}
		return msg, nil
	}

	for _, b := range m.Content.Blocks {
		switch b.Type {
		case api.BlockText:
			msg.Content = append(msg.Content, wireBlock{Type: "text", Text: b.Text})
		case api.BlockImage:
			if b.Image == nil {
				return wireMessage{}, fmt.Errorf("anthropic: image block without payload")
			}
			msg.Content = append(msg.Content, wireBlock{
				Type:   "image",
				Source: &imageSource{Type: "base64", MediaType: b.Image.MediaType, Data: b.Image.Data},
			})
		case api.BlockToolUse:
			if b.ToolUse == nil {
				return wireMessage{}, fmt.Errorf("anthropic: tool_use block without payload")
			}
			msg.Content = append(msg.Content, wireBlock{
				Type:  "tool_use",
				ID:    b.ToolUse.ID,
				Name:  b.ToolUse.Name,
				Input: b.ToolUse.Arguments,
			})
		case api.BlockToolResult:
			if b.ToolResult == nil {
				return wireMessage{}, fmt.Errorf("anthropic: tool_result block without payload")
			}
			msg.Content = append(msg.Content, wireBlock{
				Type:      "tool_result",
				ToolUseID: b.ToolResult.CallID,
				Content:   b.ToolResult.Output,
				IsError:   b.ToolResult.IsError,
			})
		default:
			return wireMessage{}, fmt.Errorf("anthropic: unsupported block type %q", b.Type)
		}
	}
	return msg, nil
}

// streamState tracks open content blocks by index across the
// content_block_start/delta/stop protocol.
type streamState struct {
	blocks     map[int]*openBlock
	stopReason string
	failed     bool
	done       bool
}

type openBlock struct {
	kind string // "text", "thinking", "tool_use"
	id   string
	name string
	args []byte
}

func newStreamState() *streamState {
	return &streamState{blocks: make(map[int]*openBlock)}
}

func (s *streamState) consume(event streamEvent) []api.Event {
	switch event.Type {
	case "message_start":
		if event.Message != nil && event.Message.Usage.InputTokens > 0 {
			return []api.Event{api.UsageUpdate(api.Usage{PromptTokens: event.Message.Usage.InputTokens})}
		}

	case "content_block_start":
		if event.ContentBlock == nil {
			return nil
		}
		block := &openBlock{kind: event.ContentBlock.Type, id: event.ContentBlock.ID, name: event.ContentBlock.Name}
		s.blocks[event.Index] = block
		if block.kind == "tool_use" {
			return []api.Event{api.ToolUseStart(block.id, block.name)}
		}

	case "content_block_delta":
		block := s.blocks[event.Index]
		if event.Delta == nil || block == nil {
			return nil
		}
		switch event.Delta.Type {
		case "text_delta":
			return []api.Event{api.ContentDelta(event.Delta.Text)}
		case "thinking_delta":
			return []api.Event{api.ThinkingDelta(event.Delta.Thinking)}
		case "input_json_delta":
			block.args = append(block.args, event.Delta.PartialJSON...)
			return []api.Event{api.ToolUseDelta(block.id, event.Delta.PartialJSON)}
		}

	case "content_block_stop":
		block := s.blocks[event.Index]
		if block == nil {
			return nil
		}
		delete(s.blocks, event.Index)
		if block.kind != "tool_use" {
			return nil
		}
		args := map[string]any{}
		if len(block.args) > 0 {
			if err := json.Unmarshal(block.args, &args); err != nil {
				s.failed = true
				return []api.Event{api.Errorf("anthropic: tool call %s arguments unparseable: %v", block.id, err)}
			}
		}
		return []api.Event{api.ToolUseStop(block.id, block.name, args)}

	case "message_delta":
		var events []api.Event
		if event.Usage != nil && event.Usage.OutputTokens > 0 {
			events = append(events, api.UsageUpdate(api.Usage{CompletionTokens: event.Usage.OutputTokens}))
		}
		if event.Delta != nil && event.Delta.StopReason != "" {
			s.stopReason = event.Delta.StopReason
		}
		return events

	case "message_stop":
		s.done = true

	case "error":
		s.failed = true
		if event.Error != nil {
			return []api.Event{api.Errorf("anthropic: %s: %s", event.Error.Type, event.Error.Message)}
		}
		return []api.Event{api.Errorf("anthropic: upstream stream error")}
	}
	return nil
}

// finish emits the terminal complete event unless the stream already failed.
func (s *streamState) finish() []api.Event {
	if s.failed {
		return nil
	}
	return []api.Event{api.Complete(mapStopReason(s.stopReason))}
}

func mapStopReason(reason string) string {
	switch reason {
	case "", "end_turn", "stop_sequence":
		return "stop"
	case "tool_use":
		return "tool_use"
	case "max_tokens":
		return "max_tokens"
	default:
		return reason
	}
}
