package interfaces

import "context"

// Messenger is the consumed delivery channel. SendDirectMessage returns an
// error when the recipient cannot be reached (e.g. DMs disabled); callers
// are expected to fall back to the shared channel.
type Messenger interface {
	SendDirectMessage(ctx context.Context, chatID int64, text string) error
	SendToChannel(ctx context.Context, text string) error
}

// ChartRenderer is the consumed chart backend, invoked only as a tool-call
// side effect, never on the reasoning path.
type ChartRenderer interface {
	RenderChart(ctx context.Context, spec map[string]any) ([]byte, error)
}
