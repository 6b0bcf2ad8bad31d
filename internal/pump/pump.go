// Package pump keeps the broadcast feed flowing. Feed sessions only emit
// when a request activates them, while simulated fills accumulate with no
// client involved, so a self-addressed client re-issues a feed request on
// a fixed interval to flush what has buffered.
package pump

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/YangLiliang/minivenue/internal/rpc"
)

type Pump struct {
	client   *rpc.FeedClient
	interval time.Duration
	logger   *slog.Logger
}

func New(client *rpc.FeedClient, interval time.Duration, logger *slog.Logger) *Pump {
	return &Pump{client: client, interval: interval, logger: logger}
}

// Run issues one feed exchange per tick until ctx ends. Each exchange is
// opened, read to EOF, and discarded; failures are logged and the next
// tick tries again.
func (p *Pump) Run(ctx context.Context) {
	p.logger.Info("loopback feed pump starting", slog.Duration("interval", p.interval))
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.exchange(ctx); err != nil && ctx.Err() == nil {
				p.logger.Warn("feed exchange failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (p *Pump) exchange(ctx context.Context) error {
	stream, err := p.client.OpenFeed(ctx)
	if err != nil {
		return err
	}
	for {
		if _, err := stream.Recv(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
