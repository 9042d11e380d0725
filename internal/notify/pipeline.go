// Package notify formats, deduplicates, targets, and delivers notifications.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/advisor/internal/interfaces"
	"github.com/ternarybob/advisor/internal/models"
)

var urgencyPrefixes = map[models.Urgency]string{
	models.UrgencyLow:      "",
	models.UrgencyMedium:   "📌 ",
	models.UrgencyHigh:     "⚠️ ",
	models.UrgencyCritical: "🚨 ",
}

// Pipeline dispatches notifications: dedup by content hash inside the
// configured window, resolve recipients, deliver per preference, then log
// the hash post-dispatch to seed the window for subsequent duplicates.
type Pipeline struct {
	storage     interfaces.StorageManager
	messenger   interfaces.Messenger
	dedupWindow time.Duration
	logger      arbor.ILogger

	now func() time.Time
}

func NewPipeline(storage interfaces.StorageManager, messenger interfaces.Messenger, dedupWindow time.Duration, logger arbor.ILogger) *Pipeline {
	return &Pipeline{
		storage:     storage,
		messenger:   messenger,
		dedupWindow: dedupWindow,
		logger:      logger,
		now:         time.Now,
	}
}

// Dispatch delivers one notification and returns how many recipients got
// it. A duplicate inside the dedup window returns 0 without delivering.
// Delivery errors are isolated per recipient; one unreachable user never
// blocks the rest.
func (p *Pipeline) Dispatch(ctx context.Context, n *models.Notification) (int, error) {
	hash := n.ContentHash()

	seen, err := p.storage.NotificationLogStorage().SeenSince(ctx, hash, p.now().Add(-p.dedupWindow))
	if err != nil {
		return 0, fmt.Errorf("dedup lookup failed: %w", err)
	}
	if seen {
		p.logger.Debug().
			Str("hash", hash).
			Str("title", n.Title).
			Msg("Suppressing duplicate notification")
		return 0, nil
	}

	recipients, err := p.resolveRecipients(ctx, n)
	if err != nil {
		return 0, err
	}

	text := p.format(n)
	delivered := 0
	channelSent := false
	for _, user := range recipients {
		if p.deliverTo(ctx, user, text, &channelSent) {
			delivered++
		}
	}

	record := &models.NotificationRecord{
		ID:           uuid.NewString(),
		ContentHash:  hash,
		Type:         n.Type,
		Symbol:       n.Symbol,
		Title:        n.Title,
		Delivered:    delivered,
		DispatchedAt: p.now(),
	}
	if err := p.storage.NotificationLogStorage().LogNotification(ctx, record); err != nil {
		p.logger.Warn().Err(err).Str("hash", hash).Msg("Failed to log dispatched notification")
	}

	p.logger.Info().
		Str("type", string(n.Type)).
		Str("symbol", n.Symbol).
		Int("delivered", delivered).
		Msg("Notification dispatched")

	return delivered, nil
}

// resolveRecipients picks targets: explicit ids first, then the symbol's
// watchers, then broadcast to every user.
func (p *Pipeline) resolveRecipients(ctx context.Context, n *models.Notification) ([]*models.UserProfile, error) {
	users := p.storage.UserStorage()

	if len(n.TargetUserIDs) > 0 {
		var out []*models.UserProfile
		for _, id := range n.TargetUserIDs {
			user, err := users.GetUser(ctx, id)
			if err != nil {
				p.logger.Warn().Str("user", id).Err(err).Msg("Skipping unknown notification target")
				continue
			}
			out = append(out, user)
		}
		return out, nil
	}

	if n.Symbol != "" {
		ids, err := p.storage.WatchlistStorage().UsersWatching(ctx, strings.ToUpper(n.Symbol))
		if err != nil {
			return nil, fmt.Errorf("watcher lookup failed: %w", err)
		}
		var out []*models.UserProfile
		for _, id := range ids {
			user, err := users.GetUser(ctx, id)
			if err != nil {
				continue
			}
			out = append(out, user)
		}
		return out, nil
	}

	return users.ListUsers(ctx)
}

// deliverTo sends to one user honoring their delivery preference. A failed
// direct message falls back to the shared channel, which is sent at most
// once per dispatch.
func (p *Pipeline) deliverTo(ctx context.Context, user *models.UserProfile, text string, channelSent *bool) bool {
	if user.Preference == models.DeliverDirect && user.ChatID != 0 {
		err := p.messenger.SendDirectMessage(ctx, user.ChatID, text)
		if err == nil {
			return true
		}
		p.logger.Warn().
			Str("user", user.UserID).
			Err(err).
			Msg("Direct message failed, falling back to channel")
	}

	if *channelSent {
		return true
	}
	if err := p.messenger.SendToChannel(ctx, text); err != nil {
		p.logger.Error().Str("user", user.UserID).Err(err).Msg("Channel delivery failed")
		return false
	}
	*channelSent = true
	return true
}

func (p *Pipeline) format(n *models.Notification) string {
	var b strings.Builder
	b.WriteString(urgencyPrefixes[n.Urgency])
	b.WriteString("*")
	b.WriteString(n.Title)
	b.WriteString("*")
	if n.Symbol != "" {
		b.WriteString(" [")
		b.WriteString(n.Symbol)
		b.WriteString("]")
	}
	if n.Description != "" {
		b.WriteString("\n")
		b.WriteString(n.Description)
	}
	return b.String()
}

// PurgeLog removes dispatch records older than the retention cutoff.
func (p *Pipeline) PurgeLog(ctx context.Context, retention time.Duration) (int, error) {
	return p.storage.NotificationLogStorage().PurgeOlderThan(ctx, p.now().Add(-retention))
}
