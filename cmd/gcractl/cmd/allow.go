package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sagarsuperuser/gcra"
)

func newAllowCmd(a *app) *cobra.Command {
	var sf specFlags
	cmd := &cobra.Command{
		Use:   "allow KEY",
		Short: "Spend tokens from a key's bucket",
		Example: `  gcractl allow user:42 --rate 10 --period 1s
  gcractl allow user:42 --policy api --cost 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := sf.spec(a, cmd)
			if err != nil {
				return err
			}
			return a.withLimiter(func(l *gcra.Limiter) error {
				res, err := l.Allow(cmd.Context(), args[0], spec)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", args[0], res)
				return nil
			})
		},
	}
	sf.register(cmd)
	return cmd
}

func newPeekCmd(a *app) *cobra.Command {
	var sf specFlags
	cmd := &cobra.Command{
		Use:   "peek KEY",
		Short: "Show a key's bucket without spending tokens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := sf.spec(a, cmd)
			if err != nil {
				return err
			}
			return a.withLimiter(func(l *gcra.Limiter) error {
				res, err := l.Peek(cmd.Context(), args[0], spec)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s available=%d %s\n", args[0], res.Remaining, res)
				return nil
			})
		},
	}
	sf.register(cmd)
	return cmd
}

func newResetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset KEY...",
		Short: "Forget the state of one or more keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withLimiter(func(l *gcra.Limiter) error {
				for _, key := range args {
					if err := l.Reset(cmd.Context(), key); err != nil {
						return fmt.Errorf("reset %s: %w", key, err)
					}
					a.log.Info().Str("key", l.Key(key)).Msg("reset")
				}
				return nil
			})
		},
	}
}
