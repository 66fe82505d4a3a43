// Package net provides the channel primitives used by clients to talk to
// remote peers.
//
// Key components:
// - Channel: a lazily connecting gRPC channel bound to one host:port
// - ChannelPool: at most one live Channel per address, rebuilt once it shuts down
package net
