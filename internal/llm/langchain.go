package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/fyrsmithlabs/agentgraph/internal/state"
	"github.com/fyrsmithlabs/agentgraph/internal/tools"
)

// ErrEmptyResponse is returned when a backend produces no choices.
var ErrEmptyResponse = errors.New("empty response from model")

// LangChain is a backend over any langchaingo model.
type LangChain struct {
	model llms.Model
	cfg   Config
}

// NewLangChain builds an OpenAI-compatible backend from cfg.
func NewLangChain(cfg Config) (*LangChain, error) {
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating openai client: %w", err)
	}
	return NewLangChainModel(model, cfg), nil
}

// NewLangChainModel wraps an existing langchaingo model.
func NewLangChainModel(model llms.Model, cfg Config) *LangChain {
	return &LangChain{model: model, cfg: cfg}
}

// Invoke sends one GenerateContent request.
func (l *LangChain) Invoke(ctx context.Context, messages []state.Message, toolset []tools.Descriptor) (state.Message, error) {
	if l.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.Timeout)
		defer cancel()
	}

	var opts []llms.CallOption
	if l.cfg.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(l.cfg.Temperature))
	}
	if l.cfg.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(l.cfg.MaxTokens))
	}
	if len(toolset) > 0 {
		opts = append(opts, llms.WithTools(convertLangChainTools(toolset)))
	}

	resp, err := l.model.GenerateContent(ctx, convertLangChainMessages(messages), opts...)
	if err != nil {
		if cerr := classify(ctx, l.cfg.BaseURL, err, 0); cerr != nil {
			return state.Message{}, cerr
		}
		return state.Message{}, fmt.Errorf("langchain invoke: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return state.Message{}, ErrEmptyResponse
	}

	choice := resp.Choices[0]
	out := state.Assistant(choice.Content)
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		out.ToolCalls = append(out.ToolCalls, state.ToolCall{
			ID:        tc.ID,
			Name:      tc.FunctionCall.Name,
			Arguments: []byte(tc.FunctionCall.Arguments),
		})
	}
	if len(out.ToolCalls) > 0 {
		if choice.Content != "" {
			out.Blocks = append(out.Blocks, state.Block{Type: state.BlockText, Text: choice.Content})
		}
		for _, tc := range out.ToolCalls {
			out.Blocks = append(out.Blocks, state.Block{Type: state.BlockToolUse, Name: tc.Name})
		}
	}
	return out, nil
}

func convertLangChainMessages(messages []state.Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, m := range pairToolCalls(messages) {
		switch m.Role {
		case state.RoleSystem:
			out = append(out, llms.TextParts(llms.ChatMessageTypeSystem, m.Text()))
		case state.RoleHuman:
			out = append(out, llms.TextParts(llms.ChatMessageTypeHuman, m.Text()))
		case state.RoleAssistant:
			mc := llms.MessageContent{Role: llms.ChatMessageTypeAI}
			if m.Content != "" || len(m.ToolCalls) == 0 {
				mc.Parts = append(mc.Parts, llms.TextContent{Text: m.Text()})
			}
			for _, tc := range m.ToolCalls {
				mc.Parts = append(mc.Parts, llms.ToolCall{
					ID:   tc.ID,
					Type: "function",
					FunctionCall: &llms.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
			out = append(out, mc)
		case state.RoleTool:
			out = append(out, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: m.ToolCallID,
					Content:    m.Content,
				}},
			})
		}
	}
	return out
}

func convertLangChainTools(toolset []tools.Descriptor) []llms.Tool {
	out := make([]llms.Tool, len(toolset))
	for i, t := range toolset {
		out[i] = llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return out
}

var _ Backend = (*LangChain)(nil)
