// Package agent runs the tool-use orchestration loop: conversation plus
// tool schemas go to the model, requested tool calls execute against the
// aggregator and repositories, results feed back, and the cycle repeats
// until the model stops asking for tools or the round ceiling is hit.
package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/advisor/internal/interfaces"
	"github.com/ternarybob/advisor/internal/models"
	"github.com/ternarybob/advisor/internal/router"
)

const (
	// historyTurns bounds how much stored conversation is replayed.
	historyTurns = 20

	apologyText      = "I'm sorry, I ran into a problem completing that request. Please try again in a moment."
	maxRoundsText    = "I wasn't able to finish working through that within my step limit. Try asking a narrower question."
	defaultMaxRounds = 10
)

const systemPrompt = `You are a conversational financial analyst. You have tools for quotes, news, fundamentals, factor grades, technical indicators, price history, watchlists, portfolios, price alerts, and prediction markets. Use them to ground every claim in current data rather than recalling figures from memory. Be direct and quantitative, cite the numbers you fetched, and never present an estimate as a fetched fact. You provide analysis, not licensed financial advice, and should note material uncertainty when it exists.`

// Loop drives multi-round tool-use conversations.
type Loop struct {
	llm       interfaces.LLMService
	registry  *ToolRegistry
	router    *router.ModelRouter
	storage   interfaces.StorageManager
	maxRounds int
	logger    arbor.ILogger

	// OnToolStart fires before each tool execution, OnFinalText with the
	// assistant's final reply. Both are optional typing-indicator style
	// hooks for the transport layer.
	OnToolStart func(name string)
	OnFinalText func(text string)
}

func NewLoop(llm interfaces.LLMService, registry *ToolRegistry, modelRouter *router.ModelRouter, storage interfaces.StorageManager, maxRounds int, logger arbor.ILogger) *Loop {
	if maxRounds <= 0 {
		maxRounds = defaultMaxRounds
	}
	return &Loop{
		llm:       llm,
		registry:  registry,
		router:    modelRouter,
		storage:   storage,
		maxRounds: maxRounds,
		logger:    logger,
	}
}

// HandleMessage processes one user message end to end: route a tier, replay
// stored history, run the tool loop, persist both turns, and return the
// assistant's reply.
func (l *Loop) HandleMessage(ctx context.Context, userID, channelID, content, forceTier string) string {
	hasPortfolio := false
	if holdings, err := l.storage.PortfolioStorage().GetHoldings(ctx, userID); err == nil && len(holdings) > 0 {
		hasPortfolio = true
	}

	tier := l.router.Route(content, forceTier, hasPortfolio)
	entry := l.router.Entry(tier)

	l.logger.Debug().
		Str("user", userID).
		Str("tier", string(tier)).
		Str("model", entry.Model).
		Msg("Handling message")

	messages := l.loadHistory(ctx, userID, channelID)
	messages = append(messages, interfaces.Message{Role: "user", Content: content})

	l.appendTurn(ctx, userID, channelID, models.RoleUser, content)

	reply := l.run(ctx, userID, tier, &interfaces.CompletionRequest{
		Model:           entry.Model,
		MaxOutputTokens: entry.MaxOutputTokens,
		ThinkingBudget:  entry.ThinkingBudget,
		System:          systemPrompt,
		Messages:        messages,
		Tools:           l.registry.Schemas(),
	})

	l.appendTurn(ctx, userID, channelID, models.RoleAssistant, reply)

	if l.OnFinalText != nil {
		l.OnFinalText(reply)
	}
	return reply
}

// run executes the round loop against an already-assembled request.
func (l *Loop) run(ctx context.Context, userID string, tier router.Tier, req *interfaces.CompletionRequest) string {
	deepRecorded := false

	for round := 1; round <= l.maxRounds; round++ {
		resp, err := l.llm.Complete(ctx, req)
		if err != nil {
			l.logger.Error().Err(err).Int("round", round).Msg("Completion failed")
			return apologyText
		}
		if tier == router.TierDeep && !deepRecorded {
			l.router.Budget().RecordCall()
			deepRecorded = true
		}

		if resp.StopReason != interfaces.StopToolUse {
			return extractText(resp)
		}

		toolUses := collectToolUses(resp)
		if len(toolUses) == 0 {
			return extractText(resp)
		}

		l.logger.Debug().
			Int("round", round).
			Int("tool_calls", len(toolUses)).
			Msg("Executing requested tools")

		results := l.executeAll(ctx, userID, toolUses)

		req.Messages = append(req.Messages,
			interfaces.Message{
				Role:     "assistant",
				Content:  extractText(resp),
				ToolUses: toolUses,
			},
			interfaces.Message{
				Role:        "user",
				ToolResults: results,
			},
		)
	}

	l.logger.Warn().Int("max_rounds", l.maxRounds).Msg("Round ceiling reached")
	return maxRoundsText
}

// executeAll runs the round's tool calls concurrently. Results are placed
// by request index so correlation order always matches the model's request
// order regardless of completion order.
func (l *Loop) executeAll(ctx context.Context, userID string, toolUses []interfaces.ToolUseBlock) []interfaces.ToolResult {
	results := make([]interfaces.ToolResult, len(toolUses))
	var wg sync.WaitGroup
	for i, tu := range toolUses {
		if l.OnToolStart != nil {
			l.OnToolStart(tu.Name)
		}
		wg.Add(1)
		go func(i int, tu interfaces.ToolUseBlock) {
			defer wg.Done()
			content, isErr := l.registry.Execute(ctx, userID, tu.Name, tu.Input)
			results[i] = interfaces.ToolResult{
				ToolUseID: tu.ID,
				Content:   content,
				IsError:   isErr,
			}
		}(i, tu)
	}
	wg.Wait()
	return results
}

func (l *Loop) loadHistory(ctx context.Context, userID, channelID string) []interfaces.Message {
	turns, err := l.storage.ConversationStorage().GetTurns(ctx, userID, channelID, historyTurns)
	if err != nil {
		l.logger.Warn().Err(err).Msg("Failed to load conversation history")
		return nil
	}
	messages := make([]interfaces.Message, 0, len(turns))
	for _, turn := range turns {
		messages = append(messages, interfaces.Message{
			Role:    string(turn.Role),
			Content: turn.Content,
		})
	}
	return messages
}

func (l *Loop) appendTurn(ctx context.Context, userID, channelID string, role models.TurnRole, content string) {
	turn := &models.ConversationTurn{
		ID:        uuid.NewString(),
		UserID:    userID,
		ChannelID: channelID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := l.storage.ConversationStorage().AppendTurn(ctx, turn); err != nil {
		l.logger.Warn().Err(err).Msg("Failed to persist conversation turn")
	}
}

// ClearConversation drops the stored history for one (user, channel).
func (l *Loop) ClearConversation(ctx context.Context, userID, channelID string) error {
	return l.storage.ConversationStorage().ClearTurns(ctx, userID, channelID)
}

func collectToolUses(resp *interfaces.CompletionResponse) []interfaces.ToolUseBlock {
	var uses []interfaces.ToolUseBlock
	for _, block := range resp.Content {
		if block.ToolUse != nil {
			uses = append(uses, *block.ToolUse)
		}
	}
	return uses
}

func extractText(resp *interfaces.CompletionResponse) string {
	var text string
	for _, block := range resp.Content {
		if block.ToolUse == nil && block.Text != "" {
			if text != "" {
				text += "\n"
			}
			text += block.Text
		}
	}
	return text
}

// RunOnce executes a single non-conversational prompt through the full tool
// loop and returns the final text. Briefing jobs use this to compose
// scheduled summaries with live data.
func (l *Loop) RunOnce(ctx context.Context, userID, prompt string, tier router.Tier) (string, error) {
	entry := l.router.Entry(tier)
	reply := l.run(ctx, userID, tier, &interfaces.CompletionRequest{
		Model:           entry.Model,
		MaxOutputTokens: entry.MaxOutputTokens,
		ThinkingBudget:  entry.ThinkingBudget,
		System:          systemPrompt,
		Messages:        []interfaces.Message{{Role: "user", Content: prompt}},
		Tools:           l.registry.Schemas(),
	})
	if reply == apologyText {
		return "", fmt.Errorf("briefing completion failed")
	}
	return reply, nil
}
