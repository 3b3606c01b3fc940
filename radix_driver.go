package gcra

import (
	"context"

	"github.com/mediocregopher/radix/v3"
)

// RadixClient is a Client backed by a radix Client (pool/cluster/sentinel).
// radix/v3 has no context support, so a context is only checked before a
// command is dispatched.
type RadixClient struct {
	client radix.Client
}

// NewRadixClient builds a pool-backed Client with the given size and options.
func NewRadixClient(network, addr string, size int, opts ...radix.PoolOpt) (*RadixClient, error) {
	pool, err := radix.NewPool(network, addr, size, opts...)
	if err != nil {
		return nil, err
	}
	return &RadixClient{client: pool}, nil
}

// WrapRadix adapts an existing radix Client.
func WrapRadix(client radix.Client) *RadixClient {
	return &RadixClient{client: client}
}

func (c *RadixClient) do(ctx context.Context, action radix.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.client.Do(action)
}

// ScriptLoad registers src and returns its SHA.
func (c *RadixClient) ScriptLoad(ctx context.Context, src string) (string, error) {
	var sha string
	if err := c.do(ctx, radix.Cmd(&sha, "SCRIPT", "LOAD", src)); err != nil {
		return "", err
	}
	return sha, nil
}

// EvalSha runs a loaded script. NOSCRIPT replies match ErrNoScript.
func (c *RadixClient) EvalSha(ctx context.Context, sha string, keys []string, args ...interface{}) ([]interface{}, error) {
	var reply []interface{}
	err := c.do(ctx, radix.FlatCmd(&reply, "EVALSHA", sha, len(keys), keys, args))
	if err != nil {
		return nil, noScript(err)
	}
	return reply, nil
}

// Get returns the string value of key.
func (c *RadixClient) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	mn := radix.MaybeNil{Rcv: &value}
	if err := c.do(ctx, radix.Cmd(&mn, "GET", key)); err != nil {
		return "", false, err
	}
	if mn.Nil {
		return "", false, nil
	}
	return value, true, nil
}

// Del removes key.
func (c *RadixClient) Del(ctx context.Context, key string) error {
	return c.do(ctx, radix.Cmd(nil, "DEL", key))
}

// Ping checks connectivity.
func (c *RadixClient) Ping(ctx context.Context) error {
	return c.do(ctx, radix.Cmd(nil, "PING"))
}

// Close shuts down the underlying client.
func (c *RadixClient) Close() error {
	return c.client.Close()
}
