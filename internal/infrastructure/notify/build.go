package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/erp/stocksync/internal/infrastructure/config"
)

// Build assembles the channels enabled in cfg. The log channel is always
// present so reports are never silently dropped.
func Build(ctx context.Context, cfg config.NotifyConfig, logger *zap.Logger) (*MultiChannel, error) {
	multi := NewMultiChannel(NewLogChannel(logger))

	if cfg.Email.Enabled {
		multi.channels = append(multi.channels, NewEmailChannel(cfg.Email, logger))
	}
	if cfg.SNS.Enabled {
		ch, err := NewSNSChannel(ctx, cfg.SNS, logger)
		if err != nil {
			return nil, err
		}
		multi.channels = append(multi.channels, ch)
	}
	return multi, nil
}
