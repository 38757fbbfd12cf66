package blocks

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/DimaJoyti/auction-driver/pkg/logger"
)

// HeaderSource yields chain heads, typically backed by an ethclient
type HeaderSource interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// Poller feeds a Stream from a HeaderSource at a fixed interval, publishing
// only when the head number changed.
type Poller struct {
	source   HeaderSource
	stream   *Stream
	interval time.Duration
	logger   *logger.Logger
}

// NewPoller creates a poller for the given stream
func NewPoller(source HeaderSource, stream *Stream, interval time.Duration, log *logger.Logger) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	return &Poller{
		source:   source,
		stream:   stream,
		interval: interval,
		logger:   log.Named("block-poller"),
	}
}

// Run polls until the context is cancelled, then closes the stream
func (p *Poller) Run(ctx context.Context) {
	defer p.stream.Close()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var lastNumber uint64
	if current := p.stream.Current(); current != nil && current.Number != nil {
		lastNumber = current.Number.Uint64()
	}

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Stopping block poller")
			return
		case <-ticker.C:
		}

		header, err := p.source.HeaderByNumber(ctx, nil)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("Failed to fetch chain head", zap.Error(err))
			continue
		}
		if header == nil || header.Number == nil {
			p.logger.Warn("Chain head has no block number")
			continue
		}
		number := header.Number.Uint64()
		if number == lastNumber {
			continue
		}
		lastNumber = number
		p.stream.Publish(header)
		p.logger.Debug("Published new chain head", zap.Uint64("block", number))
	}
}
