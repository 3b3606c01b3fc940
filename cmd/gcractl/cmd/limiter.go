package cmd

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/sagarsuperuser/gcra"
	"github.com/sagarsuperuser/gcra/internal/config"
)

func (a *app) newClient() (gcra.Client, error) {
	addr := a.v.GetString("redis.addr")
	switch driver := a.v.GetString("redis.driver"); driver {
	case "radix", "":
		return gcra.NewRadixClient(a.v.GetString("redis.network"), addr, a.v.GetInt("redis.pool_size"))
	case "goredis", "go-redis":
		return gcra.NewGoRedisClient(&redis.UniversalOptions{
			Addrs:    []string{addr},
			PoolSize: a.v.GetInt("redis.pool_size"),
		}), nil
	default:
		return nil, fmt.Errorf("unknown driver %q (want radix or goredis)", driver)
	}
}

// withLimiter dials the store, runs fn and closes the connection.
func (a *app) withLimiter(fn func(l *gcra.Limiter) error) error {
	client, err := a.newClient()
	if err != nil {
		return fmt.Errorf("redis client: %w", err)
	}
	defer client.Close()

	l := gcra.NewLimiter(client,
		gcra.WithPrefix(a.v.GetString("prefix")),
		gcra.WithLogger(a.log),
	)
	return fn(l)
}

// specFlags are the flags describing a RateSpec on the command line.
type specFlags struct {
	policy string
	rate   int64
	burst  int64
	period time.Duration
	cost   int64
}

func (f *specFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.policy, "policy", "", "named policy from the policies file")
	fs.Int64Var(&f.rate, "rate", 0, "tokens refilled per period")
	fs.Int64Var(&f.burst, "burst", -1, "bucket size (default: rate)")
	fs.DurationVar(&f.period, "period", time.Second, "refill period")
	fs.Int64Var(&f.cost, "cost", 1, "tokens the request costs")
}

func (f *specFlags) spec(a *app, cmd *cobra.Command) (gcra.RateSpec, error) {
	var spec gcra.RateSpec
	if f.policy != "" {
		path := a.v.GetString("policies")
		if path == "" {
			return spec, fmt.Errorf("--policy needs a policies file (--policies or GCRA_POLICIES)")
		}
		file, err := config.Load(path)
		if err != nil {
			return spec, fmt.Errorf("load policies: %w", err)
		}
		if spec, err = file.Lookup(f.policy); err != nil {
			return spec, err
		}
	} else {
		spec = gcra.Every(f.rate, f.period)
	}
	if f.burst >= 0 && (f.policy == "" || cmd.Flags().Changed("burst")) {
		spec.Burst = f.burst
	}
	if f.policy == "" || cmd.Flags().Changed("cost") {
		spec.Cost = f.cost
	}
	return spec, spec.Validate()
}
