package net

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ChannelPool hands out one shared Channel per address
type ChannelPool struct {
	opts     *ChannelOptions
	channels sync.Map // address -> *Channel

	// mu serializes building, replacing and closing across the whole pool.
	// Lookups of live channels never take it.
	mu     sync.Mutex
	closed bool

	shutdownGrace       time.Duration
	shutdownConcurrency int
	logger              zerolog.Logger

	built            atomic.Uint64
	replaced         atomic.Uint64
	shutdownTimeouts atomic.Uint64
}

// PoolOptions for creating a channel pool
type PoolOptions struct {
	MaxFrameSize        int
	IdleTimeout         time.Duration
	ShutdownGrace       time.Duration
	ShutdownConcurrency int
	Logger              *zerolog.Logger
}

// DefaultPoolOptions returns default pool options
func DefaultPoolOptions(maxFrameSize int) *PoolOptions {
	return &PoolOptions{
		MaxFrameSize:        maxFrameSize,
		IdleTimeout:         DefaultIdleTimeout,
		ShutdownGrace:       DefaultShutdownGrace,
		ShutdownConcurrency: 8,
	}
}

// NewChannelPool creates a new, empty channel pool
func NewChannelPool(opts *PoolOptions) (*ChannelPool, error) {
	if opts == nil {
		return nil, errors.New("options cannot be nil")
	}

	if opts.MaxFrameSize <= 0 {
		return nil, errors.New("max frame size must be positive")
	}
	if opts.IdleTimeout < 0 || opts.ShutdownGrace <= 0 || opts.ShutdownConcurrency <= 0 {
		return nil, errors.New("invalid pool timing configuration")
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &ChannelPool{
		opts: &ChannelOptions{
			MaxFrameSize: opts.MaxFrameSize,
			IdleTimeout:  opts.IdleTimeout,
		},
		shutdownGrace:       opts.ShutdownGrace,
		shutdownConcurrency: opts.ShutdownConcurrency,
		logger:              logger.With().Str("component", "channel-pool").Logger(),
	}, nil
}

// GetChannel returns the channel for address, building it on first use and
// rebuilding it if the stored one has shut down.
func (p *ChannelPool) GetChannel(address string) (*Channel, error) {
	// Fast path: live channel already stored
	if v, ok := p.channels.Load(address); ok {
		if ch := v.(*Channel); !ch.IsShutdown() {
			return ch, nil
		}
	}

	return p.buildOrReplace(address)
}

// buildOrReplace stores a fresh channel for address unless another caller
// already did.
func (p *ChannelPool) buildOrReplace(address string) (*Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	v, exists := p.channels.Load(address)
	if exists && !v.(*Channel).IsShutdown() {
		return v.(*Channel), nil
	}

	ch, err := NewChannel(address, p.opts)
	if err != nil {
		return nil, err
	}
	p.built.Add(1)

	if !exists {
		p.channels.Store(address, ch)
		p.logger.Debug().
			Str("address", address).
			Str("channel_id", ch.ID()).
			Msg("built channel")
		return ch, nil
	}

	old := v.(*Channel)
	if !p.channels.CompareAndSwap(address, old, ch) {
		// Unreachable while every writer holds mu
		ch.closeFn()
		return nil, fmt.Errorf("channel for %s changed during replacement", address)
	}
	p.replaced.Add(1)
	p.logger.Info().
		Str("address", address).
		Str("old_channel_id", old.ID()).
		Str("channel_id", ch.ID()).
		Msg("replaced shut down channel")

	return ch, nil
}

// Close shuts down every channel in the pool and empties it. Each channel
// gets the grace period to finish; stragglers are logged and abandoned.
// Calling Close again is a no-op.
func (p *ChannelPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var channels []*Channel
	p.channels.Range(func(_, v any) bool {
		channels = append(channels, v.(*Channel))
		return true
	})

	var g errgroup.Group
	g.SetLimit(p.shutdownConcurrency)
	for _, ch := range channels {
		g.Go(func() error {
			err := ch.Shutdown(p.shutdownGrace)
			switch {
			case err == nil:
			case errors.Is(err, ErrShutdownTimeout):
				p.shutdownTimeouts.Add(1)
				p.logger.Warn().
					Err(err).
					Str("address", ch.Address()).
					Str("channel_id", ch.ID()).
					Dur("grace", p.shutdownGrace).
					Msg("abandoning channel that did not shut down in time")
			default:
				p.logger.Warn().
					Err(err).
					Str("address", ch.Address()).
					Str("channel_id", ch.ID()).
					Msg("channel shutdown failed")
			}
			// Errors are absorbed so every channel gets its shutdown
			return nil
		})
	}
	g.Wait()

	p.channels.Clear()
	p.logger.Info().Int("channels", len(channels)).Msg("channel pool closed")

	return nil
}

// Len returns the number of stored channels
func (p *ChannelPool) Len() int {
	n := 0
	p.channels.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Stats returns pool statistics
func (p *ChannelPool) Stats() PoolStats {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()

	return PoolStats{
		Channels:         p.Len(),
		Built:            p.built.Load(),
		Replaced:         p.replaced.Load(),
		ShutdownTimeouts: p.shutdownTimeouts.Load(),
		Closed:           closed,
	}
}

// PoolStats represents pool statistics
type PoolStats struct {
	Channels         int
	Built            uint64
	Replaced         uint64
	ShutdownTimeouts uint64
	Closed           bool
}
