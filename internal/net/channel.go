package net

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

const (
	// DefaultIdleTimeout is how long a channel may sit unused before the
	// transport drops its connection and goes back to idle.
	DefaultIdleTimeout = 60 * time.Second

	// DefaultShutdownGrace bounds how long Close waits for one channel.
	DefaultShutdownGrace = time.Second
)

// Channel is a shareable handle to a lazily connecting gRPC channel
type Channel struct {
	id        string
	address   string
	target    string
	opts      ChannelOptions
	conn      *grpc.ClientConn
	createdAt time.Time

	// closeFn tears down conn; tests swap it to simulate a stuck transport.
	closeFn func() error
}

// ChannelOptions for building a new channel
type ChannelOptions struct {
	MaxFrameSize int
	IdleTimeout  time.Duration
}

// DefaultChannelOptions returns default channel options
func DefaultChannelOptions(maxFrameSize int) *ChannelOptions {
	return &ChannelOptions{
		MaxFrameSize: maxFrameSize,
		IdleTimeout:  DefaultIdleTimeout,
	}
}

// ParseAddress splits a host:port address and validates both parts
func ParseAddress(address string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return "", 0, fmt.Errorf("%w %q: %v", ErrInvalidAddress, address, err)
	}

	if host == "" {
		return "", 0, fmt.Errorf("%w %q: missing host", ErrInvalidAddress, address)
	}
	if strings.ContainsAny(host, " \t\r\n/?#@") {
		return "", 0, fmt.Errorf("%w %q: malformed host", ErrInvalidAddress, address)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("%w %q: bad port %q", ErrInvalidAddress, address, portStr)
	}

	return host, port, nil
}

// NewChannel builds a plaintext channel to address. No connection is made
// until the channel is first used.
func NewChannel(address string, opts *ChannelOptions) (*Channel, error) {
	if opts == nil {
		return nil, errors.New("options cannot be nil")
	}

	host, port, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}

	target := "dns:///" + net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := grpc.NewClient(target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithIdleTimeout(opts.IdleTimeout),
		grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(opts.MaxFrameSize)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build channel to %s: %w", address, err)
	}

	return &Channel{
		id:        uuid.NewString(),
		address:   address,
		target:    target,
		opts:      *opts,
		conn:      conn,
		createdAt: time.Now(),
		closeFn:   conn.Close,
	}, nil
}

// ID returns the unique identifier assigned when the channel was built
func (c *Channel) ID() string {
	return c.id
}

// Address returns the address the channel was requested for
func (c *Channel) Address() string {
	return c.address
}

// Target returns the gRPC dial target
func (c *Channel) Target() string {
	return c.target
}

// Options returns a copy of the transport options
func (c *Channel) Options() ChannelOptions {
	return c.opts
}

// Conn returns the underlying client connection for use with generated stubs
func (c *Channel) Conn() *grpc.ClientConn {
	return c.conn
}

// CreatedAt returns when the channel was built
func (c *Channel) CreatedAt() time.Time {
	return c.createdAt
}

// State returns the current connectivity state
func (c *Channel) State() connectivity.State {
	return c.conn.GetState()
}

// IsShutdown reports whether the channel has been permanently shut down.
// Idle, connecting, ready and failing channels all count as open.
func (c *Channel) IsShutdown() bool {
	return c.conn.GetState() == connectivity.Shutdown
}

// Shutdown closes the channel and waits up to grace for it to finish.
// On timeout the close keeps running in the background and
// ErrShutdownTimeout is returned.
func (c *Channel) Shutdown(grace time.Duration) error {
	if c.IsShutdown() {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- c.closeFn()
	}()

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case err := <-done:
		// Canceled means someone else already closed it
		if err != nil && status.Code(err) != codes.Canceled {
			return fmt.Errorf("failed to close channel to %s: %w", c.address, err)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: %s after %v", ErrShutdownTimeout, c.address, grace)
	}
}
