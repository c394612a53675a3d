package clicmd

import (
	"encoding/json"

	"github.com/nulzo/llm-gateway/pkg/api"
)

// cliLine is one stream-json output line. The CLI emits assistant message
// snapshots and a final result line.
type cliLine struct {
	Type    string      `json:"type"`
	Subtype string      `json:"subtype"`
	Message *cliMessage `json:"message"`
	Result  string      `json:"result"`
	IsError bool        `json:"is_error"`
	Usage   *cliUsage   `json:"usage"`
}

type cliMessage struct {
	Content []cliBlock `json:"content"`
}

type cliBlock struct {
	Type     string         `json:"type"`
	Text     string         `json:"text,omitempty"`
	Thinking string         `json:"thinking,omitempty"`
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name,omitempty"`
	Input    map[string]any `json:"input,omitempty"`
}

type cliUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type streamState struct {
	terminal bool
}

func newStreamState() *streamState { return &streamState{} }

func (s *streamState) consume(line []byte) []api.Event {
	var parsed cliLine
	if err := json.Unmarshal(line, &parsed); err != nil {
		return nil
	}

	switch parsed.Type {
	case "assistant":
		if parsed.Message == nil {
			return nil
		}
		var events []api.Event
		for _, block := range parsed.Message.Content {
			switch block.Type {
			case "text":
				if block.Text != "" {
					events = append(events, api.ContentDelta(block.Text))
				}
			case "thinking":
				if block.Thinking != "" {
					events = append(events, api.ThinkingDelta(block.Thinking))
				}
			case "tool_use":
				args := "{}"
				if len(block.Input) > 0 {
					if raw, err := json.Marshal(block.Input); err == nil {
						args = string(raw)
					}
				}
				input := block.Input
				if input == nil {
					input = map[string]any{}
				}
				events = append(events,
					api.ToolUseStart(block.ID, block.Name),
					api.ToolUseDelta(block.ID, args),
					api.ToolUseStop(block.ID, block.Name, input),
				)
			}
		}
		return events

	case "result":
		s.terminal = true
		var events []api.Event
		if parsed.Usage != nil {
			events = append(events, api.UsageUpdate(api.Usage{
				PromptTokens:     parsed.Usage.InputTokens,
				CompletionTokens: parsed.Usage.OutputTokens,
			}))
		}
		if parsed.IsError {
			msg := parsed.Result
			if msg == "" {
				msg = parsed.Subtype
			}
			return append(events, api.Errorf("clicmd: %s", msg))
		}
		return append(events, api.Complete("stop"))
	}
	return nil
}
