package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/advisor/internal/aggregator"
	"github.com/ternarybob/advisor/internal/grades"
	"github.com/ternarybob/advisor/internal/interfaces"
	"github.com/ternarybob/advisor/internal/models"
)

// ToolHandler executes one tool call for one user and returns the JSON
// payload fed back to the model.
type ToolHandler func(ctx context.Context, userID string, input json.RawMessage) (string, error)

type registeredTool struct {
	schema  interfaces.ToolSchema
	handler ToolHandler
}

// ToolRegistry maps tool names to first-class handlers with validated input
// schemas. It is built once at startup; Schemas returns the same ordered
// list every call so the serialized tool block stays byte-stable for
// prompt caching.
type ToolRegistry struct {
	order    []string
	tools    map[string]registeredTool
	validate *validator.Validate
	logger   arbor.ILogger
}

// Renderer is optional chart rendering; nil disables the render_chart tool.
func NewToolRegistry(data *aggregator.Service, engine *grades.Engine, storage interfaces.StorageManager, renderer interfaces.ChartRenderer, logger arbor.ILogger) *ToolRegistry {
	r := &ToolRegistry{
		tools:    make(map[string]registeredTool),
		validate: validator.New(),
		logger:   logger,
	}
	r.registerAll(data, engine, storage, renderer)
	return r
}

func (r *ToolRegistry) register(schema interfaces.ToolSchema, handler ToolHandler) {
	r.order = append(r.order, schema.Name)
	r.tools[schema.Name] = registeredTool{schema: schema, handler: handler}
}

// Schemas returns the tool definitions in registration order.
func (r *ToolRegistry) Schemas() []interfaces.ToolSchema {
	out := make([]interfaces.ToolSchema, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].schema)
	}
	return out
}

// Execute runs one named tool. An unknown name and a handler failure both
// come back as error-shaped results for the model, not as Go errors; the
// loop never aborts on a single bad tool call.
func (r *ToolRegistry) Execute(ctx context.Context, userID, name string, input json.RawMessage) (string, bool) {
	tool, ok := r.tools[name]
	if !ok {
		return fmt.Sprintf("Unknown tool: %s", name), true
	}

	result, err := tool.handler(ctx, userID, input)
	if err != nil {
		r.logger.Warn().Str("tool", name).Err(err).Msg("Tool execution failed")
		payload, _ := json.Marshal(map[string]string{
			"error": fmt.Sprintf("%s failed: %s", name, err.Error()),
		})
		return string(payload), true
	}
	return result, false
}

func (r *ToolRegistry) decode(input json.RawMessage, dest any) error {
	if len(input) > 0 {
		if err := json.Unmarshal(input, dest); err != nil {
			return fmt.Errorf("invalid input: %w", err)
		}
	}
	if err := r.validate.Struct(dest); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	return nil
}

func asJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func symbolSchema(description string) interfaces.ToolSchema {
	return interfaces.ToolSchema{
		Description: description,
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"symbol": map[string]any{
					"type":        "string",
					"description": "Ticker symbol, e.g. AAPL",
				},
			},
			"required": []string{"symbol"},
		},
	}
}

type symbolInput struct {
	Symbol string `json:"symbol" validate:"required,alphanum,max=10"`
}

func (r *ToolRegistry) registerAll(data *aggregator.Service, engine *grades.Engine, storage interfaces.StorageManager, renderer interfaces.ChartRenderer) {
	quoteSchema := symbolSchema("Get the current price, change, and volume for a stock symbol.")
	quoteSchema.Name = "get_quote"
	r.register(quoteSchema, func(ctx context.Context, userID string, input json.RawMessage) (string, error) {
		var in symbolInput
		if err := r.decode(input, &in); err != nil {
			return "", err
		}
		quote, err := data.GetQuote(ctx, in.Symbol)
		if err != nil {
			return "", err
		}
		if err := storage.QueryStatStorage().RecordQuery(ctx, userID, strings.ToUpper(in.Symbol)); err != nil {
			r.logger.Warn().Err(err).Msg("Failed to record symbol query")
		}
		return asJSON(quote)
	})

	r.register(interfaces.ToolSchema{
		Name:        "get_company_news",
		Description: "Get recent news articles for one or more stock symbols, with sentiment scores when available.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"symbols": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Ticker symbols to fetch news for",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum articles to return, default 10",
				},
			},
			"required": []string{"symbols"},
		},
	}, func(ctx context.Context, userID string, input json.RawMessage) (string, error) {
		var in struct {
			Symbols []string `json:"symbols" validate:"required,min=1,dive,alphanum,max=10"`
			Limit   int      `json:"limit" validate:"min=0,max=50"`
		}
		if err := r.decode(input, &in); err != nil {
			return "", err
		}
		if in.Limit == 0 {
			in.Limit = 10
		}
		return asJSON(data.GetNews(ctx, in.Symbols, in.Limit))
	})

	fundSchema := symbolSchema("Get valuation, growth, and profitability fundamentals for a stock symbol.")
	fundSchema.Name = "get_fundamentals"
	r.register(fundSchema, func(ctx context.Context, userID string, input json.RawMessage) (string, error) {
		var in symbolInput
		if err := r.decode(input, &in); err != nil {
			return "", err
		}
		f, err := data.GetFundamentals(ctx, in.Symbol)
		if err != nil {
			return "", err
		}
		return asJSON(f)
	})

	gradeSchema := symbolSchema("Compute peer-relative factor grades (Value, Growth, Profitability, Momentum, EPS Revisions) and a composite rating for a stock symbol.")
	gradeSchema.Name = "get_factor_grades"
	r.register(gradeSchema, func(ctx context.Context, userID string, input json.RawMessage) (string, error) {
		var in symbolInput
		if err := r.decode(input, &in); err != nil {
			return "", err
		}
		fg, err := engine.ComputeGrades(ctx, in.Symbol)
		if err != nil {
			return "", err
		}
		return asJSON(fg)
	})

	techSchema := symbolSchema("Get technical indicators (SMA 20/50/200, RSI 14, EMA 12/26, MACD) for a stock symbol.")
	techSchema.Name = "get_technical_indicators"
	r.register(techSchema, func(ctx context.Context, userID string, input json.RawMessage) (string, error) {
		var in symbolInput
		if err := r.decode(input, &in); err != nil {
			return "", err
		}
		return asJSON(data.GetTechnicalIndicators(ctx, in.Symbol))
	})

	r.register(interfaces.ToolSchema{
		Name:        "get_price_history",
		Description: "Get daily price bars for a stock symbol, oldest first.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"symbol": map[string]any{
					"type":        "string",
					"description": "Ticker symbol",
				},
				"days": map[string]any{
					"type":        "integer",
					"description": "Number of trading days, default 30",
				},
			},
			"required": []string{"symbol"},
		},
	}, func(ctx context.Context, userID string, input json.RawMessage) (string, error) {
		var in struct {
			Symbol string `json:"symbol" validate:"required,alphanum,max=10"`
			Days   int    `json:"days" validate:"min=0,max=1000"`
		}
		if err := r.decode(input, &in); err != nil {
			return "", err
		}
		if in.Days == 0 {
			in.Days = 30
		}
		return asJSON(data.GetPriceHistory(ctx, in.Symbol, in.Days))
	})

	r.register(interfaces.ToolSchema{
		Name:        "manage_watchlist",
		Description: "List, add to, or remove from the user's watchlist.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"action": map[string]any{
					"type":        "string",
					"enum":        []string{"list", "add", "remove"},
					"description": "Operation to perform",
				},
				"symbol": map[string]any{
					"type":        "string",
					"description": "Ticker symbol, required for add and remove",
				},
			},
			"required": []string{"action"},
		},
	}, func(ctx context.Context, userID string, input json.RawMessage) (string, error) {
		var in struct {
			Action string `json:"action" validate:"required,oneof=list add remove"`
			Symbol string `json:"symbol" validate:"omitempty,alphanum,max=10"`
		}
		if err := r.decode(input, &in); err != nil {
			return "", err
		}
		wl := storage.WatchlistStorage()
		switch in.Action {
		case "add":
			if in.Symbol == "" {
				return "", fmt.Errorf("symbol is required for add")
			}
			entry := &models.WatchlistEntry{
				ID:      uuid.NewString(),
				UserID:  userID,
				Symbol:  strings.ToUpper(in.Symbol),
				AddedAt: time.Now(),
			}
			if err := wl.AddToWatchlist(ctx, entry); err != nil {
				return "", err
			}
			return asJSON(map[string]string{"status": "added", "symbol": entry.Symbol})
		case "remove":
			if in.Symbol == "" {
				return "", fmt.Errorf("symbol is required for remove")
			}
			removed, err := wl.RemoveFromWatchlist(ctx, userID, strings.ToUpper(in.Symbol))
			if err != nil {
				return "", err
			}
			if !removed {
				return asJSON(map[string]string{"status": "not_found", "symbol": strings.ToUpper(in.Symbol)})
			}
			return asJSON(map[string]string{"status": "removed", "symbol": strings.ToUpper(in.Symbol)})
		default:
			entries, err := wl.GetWatchlist(ctx, userID)
			if err != nil {
				return "", err
			}
			symbols := make([]string, 0, len(entries))
			for _, e := range entries {
				symbols = append(symbols, e.Symbol)
			}
			return asJSON(map[string]any{"symbols": symbols})
		}
	})

	r.register(interfaces.ToolSchema{
		Name:        "get_portfolio",
		Description: "Get the user's holdings with current values, plus portfolio health (value-weighted rating and sector concentration).",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	}, func(ctx context.Context, userID string, input json.RawMessage) (string, error) {
		holdings, err := storage.PortfolioStorage().GetHoldings(ctx, userID)
		if err != nil {
			return "", err
		}
		if len(holdings) == 0 {
			return asJSON(map[string]any{"holdings": []any{}})
		}
		owned := make([]models.Holding, len(holdings))
		for i, h := range holdings {
			owned[i] = *h
		}
		health, err := engine.PortfolioHealth(ctx, owned)
		if err != nil {
			return "", err
		}
		return asJSON(health)
	})

	r.register(interfaces.ToolSchema{
		Name:        "set_price_alert",
		Description: "Create a one-shot price alert that notifies the user when a symbol crosses a threshold.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"symbol": map[string]any{
					"type":        "string",
					"description": "Ticker symbol",
				},
				"condition": map[string]any{
					"type":        "string",
					"enum":        []string{"above", "below", "changePercent"},
					"description": "Trigger condition; changePercent compares the absolute daily move",
				},
				"threshold": map[string]any{
					"type":        "number",
					"description": "Price level, or percent for changePercent",
				},
			},
			"required": []string{"symbol", "condition", "threshold"},
		},
	}, func(ctx context.Context, userID string, input json.RawMessage) (string, error) {
		var in struct {
			Symbol    string  `json:"symbol" validate:"required,alphanum,max=10"`
			Condition string  `json:"condition" validate:"required,oneof=above below changePercent"`
			Threshold float64 `json:"threshold" validate:"required"`
		}
		if err := r.decode(input, &in); err != nil {
			return "", err
		}
		alert := &models.PriceAlert{
			ID:        uuid.NewString(),
			UserID:    userID,
			Symbol:    strings.ToUpper(in.Symbol),
			Condition: models.AlertCondition(in.Condition),
			Threshold: in.Threshold,
			Active:    true,
			CreatedAt: time.Now(),
		}
		if err := storage.AlertStorage().InsertAlert(ctx, alert); err != nil {
			return "", err
		}
		return asJSON(map[string]string{"status": "created", "alert_id": alert.ID})
	})

	r.register(interfaces.ToolSchema{
		Name:        "get_prediction_markets",
		Description: "Get active prediction markets ranked by volume, with implied probabilities.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum markets to return, default 10",
				},
			},
		},
	}, func(ctx context.Context, userID string, input json.RawMessage) (string, error) {
		var in struct {
			Limit int `json:"limit" validate:"min=0,max=50"`
		}
		if err := r.decode(input, &in); err != nil {
			return "", err
		}
		if in.Limit == 0 {
			in.Limit = 10
		}
		return asJSON(data.GetPredictionMarkets(ctx, in.Limit))
	})

	if renderer != nil {
		r.register(interfaces.ToolSchema{
			Name:        "render_chart",
			Description: "Render a price chart image for a stock symbol and return a delivery confirmation.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"symbol": map[string]any{
						"type":        "string",
						"description": "Ticker symbol",
					},
					"days": map[string]any{
						"type":        "integer",
						"description": "History window in trading days, default 90",
					},
				},
				"required": []string{"symbol"},
			},
		}, func(ctx context.Context, userID string, input json.RawMessage) (string, error) {
			var in struct {
				Symbol string `json:"symbol" validate:"required,alphanum,max=10"`
				Days   int    `json:"days" validate:"min=0,max=1000"`
			}
			if err := r.decode(input, &in); err != nil {
				return "", err
			}
			if in.Days == 0 {
				in.Days = 90
			}
			img, err := renderer.RenderChart(ctx, map[string]any{
				"symbol": strings.ToUpper(in.Symbol),
				"days":   in.Days,
			})
			if err != nil {
				return "", err
			}
			return asJSON(map[string]any{"status": "rendered", "bytes": len(img)})
		})
	}
}
