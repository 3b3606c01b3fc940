// Package cmd provides the gcractl commands.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sagarsuperuser/gcra"
)

// Execute runs the root command.
func Execute() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries what every subcommand needs once flags and config are read.
type app struct {
	v   *viper.Viper
	log zerolog.Logger
}

// NewRootCmd builds the command tree with its own viper instance.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	var cfgFile string

	root := &cobra.Command{
		Use:   "gcractl",
		Short: "Inspect and exercise GCRA rate limits stored in Redis",
		Long: `gcractl talks to the Redis instance that holds GCRA limiter state.

Settings come from flags, GCRA_* environment variables
(GCRA_REDIS_ADDR=10.0.0.1:6379) or a YAML config file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.initConfig(cfgFile); err != nil {
				return err
			}
			a.log = setupLogger(cmd.ErrOrStderr(), a.v.GetString("log_level"))
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./gcractl.yaml if present)")
	pf.String("redis-addr", "127.0.0.1:6379", "redis address")
	pf.String("redis-network", "tcp", "redis network")
	pf.Int("pool-size", 4, "redis connection pool size")
	pf.String("driver", "radix", "redis driver: radix or goredis")
	pf.String("prefix", gcra.DefaultPrefix, "key namespace")
	pf.String("log-level", "warn", "log level")
	pf.String("policies", "", "policy file for --policy")

	for key, flag := range map[string]string{
		"redis.addr":      "redis-addr",
		"redis.network":   "redis-network",
		"redis.pool_size": "pool-size",
		"redis.driver":    "driver",
		"prefix":          "prefix",
		"log_level":       "log-level",
		"policies":        "policies",
	} {
		_ = a.v.BindPFlag(key, pf.Lookup(flag))
	}

	root.AddCommand(
		newAllowCmd(a),
		newPeekCmd(a),
		newResetCmd(a),
		newLoadCmd(a),
	)
	return root
}

func (a *app) initConfig(cfgFile string) error {
	if cfgFile != "" {
		a.v.SetConfigFile(cfgFile)
	} else {
		a.v.SetConfigName("gcractl")
		a.v.SetConfigType("yaml")
		a.v.AddConfigPath(".")
	}
	a.v.SetEnvPrefix("GCRA")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func setupLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(lvl)
}
