// Package assistant answers free-text project questions. It prefers an
// external completion service and falls back to a fixed rule table when the
// service is not configured or a call fails.
package assistant

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/heinrichuk/pmoai/internal/models"
)

// ErrEmptyCompletion is returned by a Completer whose response had no text.
var ErrEmptyCompletion = errors.New("completion has no text")

// Completer calls an external completion service once, without retrying.
type Completer interface {
	Name() string
	Complete(ctx context.Context, system, user string) (string, error)
}

// WorkstreamSource supplies the statuses quoted in the system prompt.
type WorkstreamSource interface {
	Workstreams() []models.Workstream
}

// Gateway routes queries to a Completer or the fallback table.
type Gateway struct {
	completer Completer
	source    WorkstreamSource
	timeout   time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewGateway builds a gateway. A nil completer means no external service is
// configured and every answer comes from the fallback table.
func NewGateway(completer Completer, source WorkstreamSource, timeout time.Duration, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		completer: completer,
		source:    source,
		timeout:   timeout,
		logger:    logger.Named("assistant"),
		now:       time.Now,
	}
}

// Configured reports whether answers may come from an external service.
func (g *Gateway) Configured() bool {
	return g.completer != nil
}

// Answer never fails: any problem with the external service is logged and
// answered from the fallback table instead.
func (g *Gateway) Answer(ctx context.Context, query string) models.ChatMessage {
	if g.completer == nil {
		g.logger.Warn("completion service not configured, using fallback", zap.String("reason", "unconfigured"))
		return g.reply(Fallback(query))
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var workstreams []models.Workstream
	if g.source != nil {
		workstreams = g.source.Workstreams()
	}

	text, err := g.completer.Complete(ctx, SystemPrompt(workstreams), query)
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyCompletion
	}
	if err != nil {
		g.logger.Error("completion failed, using fallback",
			zap.String("provider", g.completer.Name()),
			zap.Bool("timeout", errors.Is(err, context.DeadlineExceeded)),
			zap.Error(err),
		)
		return g.reply(Fallback(query))
	}
	return g.reply(text)
}

func (g *Gateway) reply(content string) models.ChatMessage {
	return models.NewAssistantMessage(content, g.now().Round(0))
}
