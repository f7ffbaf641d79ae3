package service

import (
	"context"
	"log/slog"
	"strings"

	"fusionforge/internal/middleware"
	"fusionforge/internal/models"
	"fusionforge/internal/observability"
)

// Decision is a moderation gate outcome for one submitted layer.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionPending  Decision = "pending"
	DecisionRejected Decision = "rejected"
)

// ContentFilter decides whether a layer's content is publishable under auto
// moderation. Implementations are pluggable; the gate treats any error as
// "undecided" and falls back to pending.
type ContentFilter interface {
	Filter(ctx context.Context, layer *models.Layer) (bool, error)
}

// ModerationGate decides how a submitted layer enters a post: visible
// immediately, queued for the owner, or refused outright.
type ModerationGate struct {
	filter ContentFilter
}

// NewModerationGate creates a new moderation gate. filter may be nil; auto
// mode then always queues.
func NewModerationGate(filter ContentFilter) *ModerationGate {
	return &ModerationGate{filter: filter}
}

// Review returns the decision for layer under post's moderation mode. Auto
// mode fails safe: if the filter is missing or errors, the layer is queued
// rather than published.
func (g *ModerationGate) Review(ctx context.Context, post *models.FusionPost, layer *models.Layer) Decision {
	decision := g.review(ctx, post, layer)
	observability.ModerationDecisions.WithLabelValues(string(post.ModerationMode), string(decision)).Inc()
	return decision
}

func (g *ModerationGate) review(ctx context.Context, post *models.FusionPost, layer *models.Layer) Decision {
	switch post.ModerationMode {
	case models.ModerationNone:
		return DecisionApproved
	case models.ModerationPreApprove:
		return DecisionPending
	case models.ModerationAuto:
		if g.filter == nil {
			middleware.Logger.WarnContext(ctx, "auto moderation without a content filter, queueing layer",
				slog.Uint64("post_id", uint64(post.ID)))
			return DecisionPending
		}
		ok, err := g.filter.Filter(ctx, layer)
		if err != nil {
			middleware.Logger.WarnContext(ctx, "content filter unavailable, queueing layer",
				slog.Uint64("post_id", uint64(post.ID)), slog.String("error", err.Error()))
			return DecisionPending
		}
		if !ok {
			return DecisionRejected
		}
		return DecisionApproved
	default:
		// An unknown mode should never have been persisted; queue rather
		// than publish.
		return DecisionPending
	}
}

// KeywordFilter is a reference content filter rejecting layers whose text
// contains any blocked keyword. Production deployments plug in their own
// ContentFilter; this one backs dev and seed environments.
type KeywordFilter struct {
	blocked []string
}

// NewKeywordFilter creates a keyword filter from a blocklist.
func NewKeywordFilter(blocked ...string) *KeywordFilter {
	lowered := make([]string, 0, len(blocked))
	for _, w := range blocked {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			lowered = append(lowered, w)
		}
	}
	return &KeywordFilter{blocked: lowered}
}

func (f *KeywordFilter) Filter(_ context.Context, layer *models.Layer) (bool, error) {
	content := strings.ToLower(layer.Content)
	for _, w := range f.blocked {
		if strings.Contains(content, w) {
			return false, nil
		}
	}
	return true, nil
}
