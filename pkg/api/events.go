package api

import "fmt"

// EventType tags the canonical streaming event variants. For a given tool-call
// id exactly one tool_use_start precedes any tool_use_delta and exactly one
// tool_use_stop follows it carrying the reassembled arguments. usage_update may
// appear any number of times. A stream ends in exactly one of complete|error
// unless it was cancelled, in which case the channel closes with no terminal
// event at all.
type EventType string

const (
	EventContentDelta  EventType = "content_delta"
	EventThinkingDelta EventType = "thinking_delta"
	EventToolUseStart  EventType = "tool_use_start"
	EventToolUseDelta  EventType = "tool_use_delta"
	EventToolUseStop   EventType = "tool_use_stop"
	EventUsageUpdate   EventType = "usage_update"
	EventComplete      EventType = "complete"
	EventError         EventType = "error"
)

// Event is one vendor-agnostic unit of streamed model output.
type Event struct {
	Type EventType `json:"type"`

	// Delta carries text for content_delta and thinking_delta.
	Delta string `json:"delta,omitempty"`

	ToolCall *ToolCallEvent `json:"tool_call,omitempty"`
	Usage    *Usage         `json:"usage,omitempty"`

	// StopReason is set on complete ("stop", "tool_use", "max_tokens", ...).
	StopReason string `json:"stop_reason,omitempty"`

	Model    string `json:"model,omitempty"`
	Provider string `json:"provider,omitempty"`

	// Message is the human-readable failure description on error.
	Message string `json:"message,omitempty"`

	// Err preserves the underlying error for in-process classification. It
	// never crosses the wire.
	Err error `json:"-"`
}

type ToolCallEvent struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	// ArgumentsDelta is one JSON fragment on tool_use_delta.
	ArgumentsDelta string `json:"arguments_delta,omitempty"`
	// Arguments is the fully reassembled argument object, set on tool_use_stop.
	Arguments map[string]any `json:"arguments,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	ReasoningTokens  int `json:"reasoning_tokens,omitempty"`
}

// Terminal reports whether the event ends its stream.
func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

// Output reports whether the event carries model output the caller can
// observe. Usage reports don't count: the fallback router may still advance
// past a candidate that only produced usage updates.
func (e Event) Output() bool {
	switch e.Type {
	case EventContentDelta, EventThinkingDelta, EventToolUseStart, EventToolUseDelta, EventToolUseStop:
		return true
	}
	return false
}

func ContentDelta(text string) Event {
	return Event{Type: EventContentDelta, Delta: text}
}

func ThinkingDelta(text string) Event {
	return Event{Type: EventThinkingDelta, Delta: text}
}

func ToolUseStart(id, name string) Event {
	return Event{Type: EventToolUseStart, ToolCall: &ToolCallEvent{ID: id, Name: name}}
}

func ToolUseDelta(id, fragment string) Event {
	return Event{Type: EventToolUseDelta, ToolCall: &ToolCallEvent{ID: id, ArgumentsDelta: fragment}}
}

func ToolUseStop(id, name string, args map[string]any) Event {
	return Event{Type: EventToolUseStop, ToolCall: &ToolCallEvent{ID: id, Name: name, Arguments: args}}
}

func UsageUpdate(u Usage) Event {
	usage := u
	return Event{Type: EventUsageUpdate, Usage: &usage}
}

func Complete(stopReason string) Event {
	return Event{Type: EventComplete, StopReason: stopReason}
}

func ErrorEvent(err error) Event {
	return Event{Type: EventError, Message: err.Error(), Err: err}
}

func Errorf(format string, args ...any) Event {
	err := fmt.Errorf(format, args...)
	return Event{Type: EventError, Message: err.Error(), Err: err}
}
