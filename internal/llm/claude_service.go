// Package llm binds the orchestration loop's completion contract to the
// Anthropic Claude API.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/advisor/internal/common"
	"github.com/ternarybob/advisor/internal/interfaces"
)

// ClaudeService implements interfaces.LLMService over the Anthropic API.
type ClaudeService struct {
	logger  arbor.ILogger
	client  anthropic.Client
	timeout time.Duration
}

// NewClaudeService creates the Claude completion backend.
func NewClaudeService(cfg *common.ClaudeConfig, logger arbor.ILogger) (*ClaudeService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required (set ANTHROPIC_API_KEY or claude.api_key in config)")
	}

	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", cfg.Timeout, err)
	}

	service := &ClaudeService{
		logger:  logger,
		client:  anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		timeout: timeout,
	}

	logger.Debug().
		Dur("timeout", timeout).
		Msg("Claude LLM service initialized successfully")

	return service, nil
}

// Complete sends one completion round: conversation, tool schemas, and the
// tier's token budgets. The system prompt and the last tool schema carry
// cache-control markers so repeated rounds of the same conversation reuse
// the prompt cache.
func (s *ClaudeService) Complete(ctx context.Context, req *interfaces.CompletionRequest) (*interfaces.CompletionResponse, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("messages cannot be empty for completion")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params, err := s.buildParams(req)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	resp, err := s.client.Messages.New(timeoutCtx, params)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("model", req.Model).
			Int("message_count", len(req.Messages)).
			Msg("Claude completion failed")
		return nil, fmt.Errorf("Claude API call failed: %w", err)
	}

	result := &interfaces.CompletionResponse{
		StopReason: interfaces.StopEnd,
	}
	if resp.StopReason == anthropic.StopReasonToolUse {
		result.StopReason = interfaces.StopToolUse
	}

	for _, block := range resp.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			result.Content = append(result.Content, interfaces.ContentBlock{Text: variant.Text})
		case anthropic.ToolUseBlock:
			result.Content = append(result.Content, interfaces.ContentBlock{
				ToolUse: &interfaces.ToolUseBlock{
					ID:    variant.ID,
					Name:  variant.Name,
					Input: json.RawMessage(variant.JSON.Input.Raw()),
				},
			})
		}
	}

	s.logger.Debug().
		Str("model", req.Model).
		Str("stop_reason", string(result.StopReason)).
		Int("blocks", len(result.Content)).
		Dur("duration", time.Since(startTime)).
		Msg("Claude completion finished")

	return result, nil
}

func (s *ClaudeService) buildParams(req *interfaces.CompletionRequest) (anthropic.MessageNewParams, error) {
	messages, err := convertMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxOutputTokens),
		Messages:  messages,
	}

	if req.System != "" {
		params.System = []anthropic.TextBlockParam{
			{
				Text:         req.System,
				CacheControl: anthropic.NewCacheControlEphemeralParam(),
			},
		}
	}

	if req.ThinkingBudget > 0 {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(int64(req.ThinkingBudget))
	}

	params.Tools = convertTools(req.Tools)

	return params, nil
}

// convertMessages maps conversation turns into the provider's message
// format, preserving chronological order. Assistant turns with tool-use
// blocks and user turns with tool results round-trip through typed blocks.
func convertMessages(messages []interfaces.Message) ([]anthropic.MessageParam, error) {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		switch {
		case len(msg.ToolResults) > 0:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.ToolResults))
			for _, tr := range msg.ToolResults {
				blocks = append(blocks, anthropic.NewToolResultBlock(tr.ToolUseID, tr.Content, tr.IsError))
			}
			out = append(out, anthropic.NewUserMessage(blocks...))

		case len(msg.ToolUses) > 0:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.ToolUses)+1)
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tu := range msg.ToolUses {
				blocks = append(blocks, anthropic.NewToolUseBlock(tu.ID, tu.Input, tu.Name))
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))

		case msg.Role == "assistant":
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))

		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no user or assistant messages to send")
	}
	return out, nil
}

// convertTools maps tool schemas to provider tool params. The last tool
// carries the cache-control marker; the schema list is byte-stable per
// conversation so the full tool block caches as one prefix.
func convertTools(tools []interfaces.ToolSchema) []anthropic.ToolUnionParam {
	if len(tools) == 0 {
		return nil
	}
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for i, t := range tools {
		tool := anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: t.InputSchema["properties"],
			},
		}
		if required, ok := t.InputSchema["required"].([]string); ok {
			tool.InputSchema.Required = required
		}
		if i == len(tools)-1 {
			tool.CacheControl = anthropic.NewCacheControlEphemeralParam()
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &tool})
	}
	return out
}

// HealthCheck exercises the API with a minimal single-token probe.
func (s *ClaudeService) HealthCheck(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	resp, err := s.Complete(probeCtx, &interfaces.CompletionRequest{
		Model:           string(anthropic.ModelClaude3_5HaikuLatest),
		MaxOutputTokens: 16,
		Messages:        []interfaces.Message{{Role: "user", Content: "ping"}},
	})
	if err != nil {
		return fmt.Errorf("Claude probe failed: %w", err)
	}

	for _, block := range resp.Content {
		if strings.TrimSpace(block.Text) != "" {
			return nil
		}
	}
	return fmt.Errorf("Claude probe returned empty response")
}

// Close releases resources. The client needs no explicit cleanup.
func (s *ClaudeService) Close() error {
	s.logger.Debug().Msg("Closing Claude LLM service")
	return nil
}
