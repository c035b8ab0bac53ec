package notifications

import (
	"context"

	"github.com/angelmondragon/shopchat-core/pkg/logger"
)

// LogPusher records owner pushes in the log. Used until a push transport is configured.
type LogPusher struct {
	logg *logger.Logger
}

func NewLogPusher(logg *logger.Logger) *LogPusher {
	return &LogPusher{logg: logg}
}

func (p *LogPusher) Push(ctx context.Context, token, title, body string) error {
	p.logg.Info(p.logg.WithFields(ctx, map[string]any{
		"push_title": title,
		"push_body":  body,
	}), "owner push")
	return nil
}
