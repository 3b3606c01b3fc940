package gcra

import "context"

// Client is the store surface the limiter needs: script registration and
// invocation by SHA, plus plain GET/DEL for inspection and resets.
//
// EvalSha must return an error matching ErrNoScript when the store does not
// know sha. Get reports found=false for a missing key.
type Client interface {
	ScriptLoad(ctx context.Context, src string) (string, error)
	EvalSha(ctx context.Context, sha string, keys []string, args ...interface{}) ([]interface{}, error)
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Del(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}
