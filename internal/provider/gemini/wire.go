package gemini

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/nulzo/llm-gateway/internal/provider"
	"github.com/nulzo/llm-gateway/pkg/api"
)

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	Tools             []toolDecl        `json:"tools,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text             string            `json:"text,omitempty"`
	Thought          bool              `json:"thought,omitempty"`
	InlineData       *inlineData       `json:"inlineData,omitempty"`
	FunctionCall     *functionCall     `json:"functionCall,omitempty"`
	FunctionResponse *functionResponse `json:"functionResponse,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type functionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type functionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type toolDecl struct {
	FunctionDeclarations []functionDecl `json:"functionDeclarations"`
}

type functionDecl struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type generationConfig struct {
	MaxOutputTokens int             `json:"maxOutputTokens,omitempty"`
	Temperature     *float64        `json:"temperature,omitempty"`
	ThinkingConfig  *thinkingConfig `json:"thinkingConfig,omitempty"`
}

type thinkingConfig struct {
	ThinkingBudget  int  `json:"thinkingBudget"`
	IncludeThoughts bool `json:"includeThoughts"`
}

type streamChunk struct {
	Candidates []struct {
		Content      *content `json:"content"`
		FinishReason string   `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *usageMetadata `json:"usageMetadata"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	ThoughtsTokenCount   int `json:"thoughtsTokenCount"`
}

func buildRequest(req *api.StreamRequest) (generateRequest, error) {
	out := generateRequest{}
	if req.System != "" {
		out.SystemInstruction = &content{Parts: []part{{Text: req.System}}}
	}

	// Tool results reference the original call by function name, so track
	// which name each call id belongs to while walking the conversation.
	callNames := map[string]string{}

	for _, m := range req.Messages {
		if m.Role == api.RoleSystem {
			if out.SystemInstruction == nil {
				out.SystemInstruction = &content{}
			}
			out.SystemInstruction.Parts = append(out.SystemInstruction.Parts, part{Text: m.Content.Text})
			continue
		}
		c, err := fromMessage(m, callNames)
		if err != nil {
			return generateRequest{}, err
		}
		if len(c.Parts) > 0 {
			out.Contents = append(out.Contents, c)
		}
	}

	for _, t := range req.Tools {
		decl := functionDecl{Name: t.Name, Description: t.Description, Parameters: t.Parameters}
		if len(out.Tools) == 0 {
			out.Tools = []toolDecl{{}}
		}
		out.Tools[0].FunctionDeclarations = append(out.Tools[0].FunctionDeclarations, decl)
	}

	cfg := &generationConfig{MaxOutputTokens: req.MaxTokens, Temperature: req.Temperature}
	// Thought tokens draw from maxOutputTokens, so the output budget grows by
	// the reasoning budget instead of shrinking the visible answer.
	if budget := provider.ReasoningBudget(req.Reasoning); budget > 0 {
		cfg.ThinkingConfig = &thinkingConfig{ThinkingBudget: budget, IncludeThoughts: true}
		if cfg.MaxOutputTokens > 0 {
			cfg.MaxOutputTokens = provider.InflateMaxTokens(cfg.MaxOutputTokens, budget)
		}
	}
	if cfg.MaxOutputTokens > 0 || cfg.Temperature != nil || cfg.ThinkingConfig != nil {
		out.GenerationConfig = cfg
	}
	return out, nil
}

func fromMessage(m api.Message, callNames map[string]string) (content, error) {
	role := "user"
	if m.Role == api.RoleAssistant {
		role = "model"
	}
	c := content{Role: role}

	if m.Content.Blocks == nil {
		if m.Content.Text != "" {
			c.Parts = append(c.Parts, part{Text: m.Content.Text})
		}
		return c, nil
	}

	for _, b := range m.Content.Blocks {
		switch b.Type {
		case api.BlockText:
			c.Parts = append(c.Parts, part{Text: b.Text})
		case api.BlockImage:
			if b.Image == nil {
				return content{}, fmt.Errorf("gemini: image block without payload")
			}
			c.Parts = append(c.Parts, part{InlineData: &inlineData{MIMEType: b.Image.MediaType, Data: b.Image.Data}})
		case api.BlockToolUse:
			if b.ToolUse == nil {
				return content{}, fmt.Errorf("gemini: tool_use block without payload")
			}
			callNames[b.ToolUse.ID] = b.ToolUse.Name
			c.Parts = append(c.Parts, part{FunctionCall: &functionCall{Name: b.ToolUse.Name, Args: b.ToolUse.Arguments}})
		case api.BlockToolResult:
			if b.ToolResult == nil {
				return content{}, fmt.Errorf("gemini: tool_result block without payload")
			}
			name := callNames[b.ToolResult.CallID]
			if name == "" {
				name = b.ToolResult.CallID
			}
			response := map[string]any{"output": b.ToolResult.Output}
			if b.ToolResult.IsError {
				response = map[string]any{"error": b.ToolResult.Output}
			}
			c.Parts = append(c.Parts, part{FunctionResponse: &functionResponse{Name: name, Response: response}})
		default:
			return content{}, fmt.Errorf("gemini: unsupported block type %q", b.Type)
		}
	}
	return c, nil
}

// streamState flattens part-based chunks into the canonical event order.
// Function calls arrive whole in a single part; each one becomes a synthetic
// start/delta/stop triple with a generated call id.
type streamState struct {
	finish    string
	sawTool   bool
	newCallID func() string
}

func jsonFragment(args map[string]any) (string, error) {
	if len(args) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return "{}", err
	}
	return string(raw), nil
}

func newStreamState() *streamState {
	return &streamState{newCallID: func() string { return "call_" + uuid.NewString() }}
}

func (s *streamState) consume(chunk streamChunk) []api.Event {
	var events []api.Event

	if chunk.UsageMetadata != nil {
		events = append(events, api.UsageUpdate(api.Usage{
			PromptTokens:     chunk.UsageMetadata.PromptTokenCount,
			CompletionTokens: chunk.UsageMetadata.CandidatesTokenCount,
			ReasoningTokens:  chunk.UsageMetadata.ThoughtsTokenCount,
		}))
	}
	if len(chunk.Candidates) == 0 {
		return events
	}
	candidate := chunk.Candidates[0]
	if candidate.Content != nil {
		for _, p := range candidate.Content.Parts {
			switch {
			case p.FunctionCall != nil:
				s.sawTool = true
				id := s.newCallID()
				args, _ := jsonFragment(p.FunctionCall.Args)
				events = append(events,
					api.ToolUseStart(id, p.FunctionCall.Name),
					api.ToolUseDelta(id, args),
					api.ToolUseStop(id, p.FunctionCall.Name, p.FunctionCall.Args),
				)
			case p.Thought:
				events = append(events, api.ThinkingDelta(p.Text))
			case p.Text != "":
				events = append(events, api.ContentDelta(p.Text))
			}
		}
	}
	if candidate.FinishReason != "" {
		s.finish = candidate.FinishReason
	}
	return events
}

func (s *streamState) stopReason() string {
	switch s.finish {
	case "MAX_TOKENS":
		return "max_tokens"
	case "", "STOP":
		if s.sawTool {
			return "tool_use"
		}
		return "stop"
	default:
		return s.finish
	}
}
