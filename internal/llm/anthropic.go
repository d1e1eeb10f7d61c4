package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/fyrsmithlabs/agentgraph/internal/state"
	"github.com/fyrsmithlabs/agentgraph/internal/tools"
)

// Anthropic is a Messages API backend.
type Anthropic struct {
	client anthropic.Client
	cfg    Config
}

// NewAnthropic builds an Anthropic backend from cfg.
func NewAnthropic(cfg Config, extra ...option.RequestOption) *Anthropic {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	opts = append(opts, extra...)

	return &Anthropic{client: anthropic.NewClient(opts...), cfg: cfg}
}

// Invoke sends one Messages request.
func (a *Anthropic) Invoke(ctx context.Context, messages []state.Message, toolset []tools.Descriptor) (state.Message, error) {
	params := a.buildParams(messages, toolset)

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		status := 0
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
		if cerr := classify(ctx, a.cfg.BaseURL, err, status); cerr != nil {
			return state.Message{}, cerr
		}
		return state.Message{}, fmt.Errorf("anthropic invoke: %w", err)
	}
	return convertAnthropicResponse(msg), nil
}

func (a *Anthropic) buildParams(messages []state.Message, toolset []tools.Descriptor) anthropic.MessageNewParams {
	var system []string
	converted := make([]anthropic.MessageParam, 0, len(messages))

	for _, m := range pairToolCalls(messages) {
		switch m.Role {
		case state.RoleSystem:
			system = append(system, m.Text())
		case state.RoleHuman:
			converted = append(converted, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Text())))
		case state.RoleAssistant:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.ToolCalls)+1)
			text := m.Content
			if text == "" && len(m.ToolCalls) == 0 {
				text = m.Text()
			}
			if text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(text))
			}
			for _, tc := range m.ToolCalls {
				input := tc.Arguments
				if len(input) == 0 {
					input = json.RawMessage("{}")
				}
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    tc.ID,
						Name:  tc.Name,
						Input: input,
					},
				})
			}
			if len(blocks) == 0 {
				continue
			}
			converted = append(converted, anthropic.NewAssistantMessage(blocks...))
		case state.RoleTool:
			converted = append(converted, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false),
			))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.cfg.Model),
		MaxTokens: int64(a.cfg.MaxTokens),
		Messages:  converted,
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}
	if a.cfg.Temperature > 0 {
		params.Temperature = anthropic.Float(a.cfg.Temperature)
	}
	if len(toolset) > 0 {
		params.Tools = convertAnthropicTools(toolset)
	}
	return params
}

func convertAnthropicTools(toolset []tools.Descriptor) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(toolset))
	for i, t := range toolset {
		out[i] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Type:       "object",
					Properties: t.Parameters["properties"],
					Required:   requiredFields(t.Parameters),
				},
			},
		}
	}
	return out
}

func requiredFields(params map[string]any) []string {
	switch req := params["required"].(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func convertAnthropicResponse(msg *anthropic.Message) state.Message {
	out := state.NewMessage(state.RoleAssistant, "")
	var text strings.Builder

	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(b.Text)
			out.Blocks = append(out.Blocks, state.Block{Type: state.BlockText, Text: b.Text})
		case anthropic.ToolUseBlock:
			args, _ := b.Input.MarshalJSON()
			out.ToolCalls = append(out.ToolCalls, state.ToolCall{ID: b.ID, Name: b.Name, Arguments: args})
			out.Blocks = append(out.Blocks, state.Block{Type: state.BlockToolUse, Name: b.Name})
		}
	}
	out.Content = text.String()
	if len(out.ToolCalls) == 0 {
		// Plain replies need no structured form.
		out.Blocks = nil
	}
	return out
}

var _ Backend = (*Anthropic)(nil)
