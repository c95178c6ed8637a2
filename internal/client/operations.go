package client

import (
	"context"

	"github.com/oriys/vbucket/internal/tracing"
	"github.com/oriys/vbucket/internal/wire"
)

// MGet enqueues one GET request per key, all but the last as the quiet
// GETQ variant and the last as GETK, so a single trailing response (or
// purge) terminates the batch (spec.md §4.4).
func (c *Client) MGet(ctx context.Context, keys [][]byte) error {
	return c.mget(ctx, keys, nil)
}

// MGetByKey is MGet routed by hashkey rather than each individual key,
// co-locating the batch on one server.
func (c *Client) MGetByKey(ctx context.Context, hashkey []byte, keys [][]byte) error {
	return c.mget(ctx, keys, hashkey)
}

func (c *Client) mget(ctx context.Context, keys [][]byte, hashkey []byte) error {
	_, finish := tracing.StartOp(ctx, "vbucket.mget", hashkey)
	var err error
	defer func() { finish(err) }()

	for i, key := range keys {
		op := wire.OpGetQ
		if i == len(keys)-1 {
			op = wire.OpGetK
		}
		pkt := wire.NewRequest(op, 0, 0, 0, nil, key, nil)
		if _, err = c.enqueue(ctx, key, hashkey, pkt); err != nil {
			return err
		}
	}
	return nil
}

// Store enqueues one SET-family request (spec.md §4.4).
func (c *Client) Store(ctx context.Context, op StoreOp, key, value []byte, flags, expiration uint32, cas uint64) error {
	return c.storeByKey(ctx, op, nil, key, value, flags, expiration, cas)
}

// StoreByKey is Store routed by hashkey.
func (c *Client) StoreByKey(ctx context.Context, op StoreOp, hashkey, key, value []byte, flags, expiration uint32, cas uint64) error {
	return c.storeByKey(ctx, op, hashkey, key, value, flags, expiration, cas)
}

func (c *Client) storeByKey(ctx context.Context, op StoreOp, hashkey, key, value []byte, flags, expiration uint32, cas uint64) error {
	_, finish := tracing.StartOp(ctx, "vbucket.store", key)
	var extras []byte
	if op.hasFlagsExtras() {
		extras = wire.StoreExtras(flags, expiration)
	}
	pkt := wire.NewRequest(op.opcode(), 0, 0, cas, extras, key, value)
	_, err := c.enqueue(ctx, key, hashkey, pkt)
	finish(err)
	return err
}

// Arithmetic enqueues one INCREMENT/DECREMENT request.
func (c *Client) Arithmetic(ctx context.Context, increment bool, key []byte, delta, initial uint64, expiration uint32) error {
	return c.arithmeticByKey(ctx, increment, nil, key, delta, initial, expiration)
}

// ArithmeticByKey is Arithmetic routed by hashkey.
func (c *Client) ArithmeticByKey(ctx context.Context, increment bool, hashkey, key []byte, delta, initial uint64, expiration uint32) error {
	return c.arithmeticByKey(ctx, increment, hashkey, key, delta, initial, expiration)
}

func (c *Client) arithmeticByKey(ctx context.Context, increment bool, hashkey, key []byte, delta, initial uint64, expiration uint32) error {
	_, finish := tracing.StartOp(ctx, "vbucket.arithmetic", key)
	op := wire.OpDecrement
	if increment {
		op = wire.OpIncrement
	}
	extras := wire.ArithmeticExtras(delta, initial, expiration)
	pkt := wire.NewRequest(op, 0, 0, 0, extras, key, nil)
	_, err := c.enqueue(ctx, key, hashkey, pkt)
	finish(err)
	return err
}

// Remove enqueues one DELETE request.
func (c *Client) Remove(ctx context.Context, key []byte, cas uint64) error {
	return c.removeByKey(ctx, nil, key, cas)
}

// RemoveByKey is Remove routed by hashkey.
func (c *Client) RemoveByKey(ctx context.Context, hashkey, key []byte, cas uint64) error {
	return c.removeByKey(ctx, hashkey, key, cas)
}

func (c *Client) removeByKey(ctx context.Context, hashkey, key []byte, cas uint64) error {
	_, finish := tracing.StartOp(ctx, "vbucket.remove", key)
	pkt := wire.NewRequest(wire.OpDelete, 0, 0, cas, nil, key, nil)
	_, err := c.enqueue(ctx, key, hashkey, pkt)
	finish(err)
	return err
}

// TapCluster opens a TAP stream to every server in the current
// configuration, each tagged with a fresh stream id, optionally running
// the event loop until all streams close (spec.md §4.4).
func (c *Client) TapCluster(ctx context.Context, filter []byte, flags uint32, block bool) error {
	_, finish := tracing.StartOp(ctx, "vbucket.tap_cluster", nil)
	var err error
	defer func() { finish(err) }()

	for _, s := range c.servers {
		name := newTapStreamID()
		pkt := wire.NewRequest(wire.OpTapConnect, 0, 0, 0, wire.TapConnectExtras(flags), []byte(name), filter)
		seq := c.nextSeq()
		if err = s.Enqueue(ctx, seq, pkt); err != nil {
			return err
		}
	}
	if block {
		err = c.Execute(ctx)
		return err
	}
	return nil
}
