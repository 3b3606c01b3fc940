package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/sagarsuperuser/gcra"
)

type loadReport struct {
	Calls   int
	Granted int64
	Denied  int
	Partial int
	Elapsed time.Duration
}

// ideal is the most tokens the bucket can hand out over the run.
func (r loadReport) ideal(spec gcra.RateSpec) float64 {
	ei := spec.EmissionInterval()
	if ei <= 0 {
		return float64(r.Calls)
	}
	return float64(spec.Burst) + float64(r.Elapsed)/float64(ei)
}

// runLoad offers requests at qps for d and tallies the decisions. The
// pacing is client side; the limit itself is enforced by the store.
func runLoad(ctx context.Context, l *gcra.Limiter, key string, spec gcra.RateSpec, qps float64, d time.Duration) (loadReport, error) {
	pacer := rate.NewLimiter(rate.Limit(qps), 1)
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	var rep loadReport
	start := time.Now()
	for {
		if err := pacer.Wait(ctx); err != nil {
			break
		}
		res, err := l.Allow(ctx, key, spec)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return rep, err
		}
		rep.Calls++
		rep.Granted += res.Allowed
		switch {
		case !res.OK():
			rep.Denied++
		case res.Partial():
			rep.Partial++
		}
	}
	rep.Elapsed = time.Since(start)
	return rep, nil
}

func newLoadCmd(a *app) *cobra.Command {
	var (
		sf       specFlags
		qps      float64
		duration time.Duration
	)
	cmd := &cobra.Command{
		Use:   "load [KEY]",
		Short: "Offer paced traffic to a key and report what the limiter granted",
		Long: `load issues requests at a fixed rate for a while and compares the number
of granted tokens with what the bucket allows in that time. Without KEY a
fresh random key is used.`,
		Example: `  gcractl load --rate 100 --period 1s --qps 500 --duration 5s`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := sf.spec(a, cmd)
			if err != nil {
				return err
			}
			key := "load:" + uuid.NewString()
			if len(args) == 1 {
				key = args[0]
			}
			return a.withLimiter(func(l *gcra.Limiter) error {
				if err := l.Init(cmd.Context()); err != nil {
					return err
				}
				rep, err := runLoad(cmd.Context(), l, key, spec, qps, duration)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(),
					"key=%s calls=%d granted=%d denied=%d partial=%d elapsed=%s ideal=%.1f\n",
					key, rep.Calls, rep.Granted, rep.Denied, rep.Partial, rep.Elapsed.Round(time.Millisecond), rep.ideal(spec))
				return nil
			})
		},
	}
	sf.register(cmd)
	cmd.Flags().Float64Var(&qps, "qps", 100, "requests offered per second")
	cmd.Flags().DurationVar(&duration, "duration", 5*time.Second, "how long to run")
	return cmd
}
