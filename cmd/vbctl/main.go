// Command vbctl is a thin demonstration CLI over the client package. It
// is not part of the core library — see spec.md §1's Non-goal excluding
// option parsing and command-line tools from the core.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/oriys/vbucket/internal/client"
	"github.com/oriys/vbucket/internal/config"
	"github.com/oriys/vbucket/internal/logging"
	"github.com/oriys/vbucket/internal/metrics"
	"github.com/oriys/vbucket/internal/tracing"
)

var (
	host       string
	bucket     string
	username   string
	password   string
	configPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vbctl",
		Short: "vbctl - demo CLI for the vbucket client library",
	}
	rootCmd.PersistentFlags().StringVar(&host, "host", "127.0.0.1:8091", "bootstrap host:port")
	rootCmd.PersistentFlags().StringVar(&bucket, "bucket", "default", "bucket name")
	rootCmd.PersistentFlags().StringVar(&username, "user", "", "SASL username")
	rootCmd.PersistentFlags().StringVar(&password, "pass", "", "SASL password")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (its bootstrap settings and VBC_* env vars take precedence over flags)")

	rootCmd.AddCommand(getCmd(), setCmd(), mgetCmd(), tapCmd(), metricsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig builds the client configuration from defaults, an optional
// --config file, then environment overrides, in that order — the same
// precedence the host process applies to its own settings.
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configPath != "" {
		fileCfg, err := config.LoadFromFile(configPath)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}
	config.LoadFromEnv(cfg)
	return cfg, nil
}

// newClient builds a Client from the resolved configuration and, when
// tracing is enabled, starts the OTLP exporter. The returned cleanup
// func shuts tracing down and must be deferred by every command.
func newClient(ctx context.Context) (*client.Client, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, func() {}, err
	}
	if cfg.Bootstrap.Host != "" {
		host = cfg.Bootstrap.Host
	}
	if cfg.Bootstrap.Bucket != "" {
		bucket = cfg.Bootstrap.Bucket
	}
	if cfg.Bootstrap.Username != "" {
		username = cfg.Bootstrap.Username
	}
	if cfg.Bootstrap.Password != "" {
		password = cfg.Bootstrap.Password
	}
	logging.InitStructured(cfg.Logging.Format, cfg.Logging.Level)

	cleanup := func() {}
	if cfg.Tracing.Enabled {
		shutdown, err := tracing.Init(ctx, cfg.Tracing.Endpoint, cfg.Tracing.ServiceName, cfg.Tracing.SampleRate)
		if err != nil {
			return nil, cleanup, fmt.Errorf("tracing: %w", err)
		}
		cleanup = func() { _ = shutdown(ctx) }
	}

	c, err := client.Create(cfg, host, username, password, bucket)
	if err != nil {
		return nil, cleanup, err
	}
	return c, cleanup, nil
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Fetch a single key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, cleanup, err := newClient(ctx)
			if err != nil {
				return err
			}
			defer cleanup()
			c.SetCallbacks(client.Callbacks{
				Get: func(_ any, err error, key, value []byte, flags uint32, cas uint64) {
					if err != nil {
						fmt.Printf("%s: %v\n", key, err)
						return
					}
					fmt.Printf("%s = %s (flags=%d cas=%d)\n", key, value, flags, cas)
				},
			})
			if err := c.Connect(ctx); err != nil {
				return err
			}
			defer c.Destroy()
			if err := c.MGet(ctx, [][]byte{[]byte(args[0])}); err != nil {
				return err
			}
			return c.Execute(ctx)
		},
	}
}

func mgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mget <key>...",
		Short: "Fetch multiple keys in one quiet batch",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, cleanup, err := newClient(ctx)
			if err != nil {
				return err
			}
			defer cleanup()
			c.SetCallbacks(client.Callbacks{
				Get: func(_ any, err error, key, value []byte, flags uint32, cas uint64) {
					if err != nil {
						fmt.Printf("%s: %v\n", key, err)
						return
					}
					fmt.Printf("%s = %s\n", key, value)
				},
			})
			if err := c.Connect(ctx); err != nil {
				return err
			}
			defer c.Destroy()
			keys := make([][]byte, len(args))
			for i, a := range args {
				keys[i] = []byte(a)
			}
			if err := c.MGet(ctx, keys); err != nil {
				return err
			}
			return c.Execute(ctx)
		},
	}
}

func setCmd() *cobra.Command {
	var expiration int
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a key/value pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, cleanup, err := newClient(ctx)
			if err != nil {
				return err
			}
			defer cleanup()
			c.SetCallbacks(client.Callbacks{
				Store: func(_ any, err error, key []byte, cas uint64) {
					if err != nil {
						fmt.Printf("%s: %v\n", key, err)
						return
					}
					fmt.Printf("%s stored (cas=%d)\n", key, cas)
				},
			})
			if err := c.Connect(ctx); err != nil {
				return err
			}
			defer c.Destroy()
			if err := c.Store(ctx, client.StoreSet, []byte(args[0]), []byte(args[1]), 0, uint32(expiration), 0); err != nil {
				return err
			}
			return c.Execute(ctx)
		},
	}
	cmd.Flags().IntVar(&expiration, "expiration", 0, "expiration in seconds")
	return cmd
}

func tapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tap",
		Short: "Open a TAP stream to every server and print mutations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, cleanup, err := newClient(ctx)
			if err != nil {
				return err
			}
			defer cleanup()
			c.SetCallbacks(client.Callbacks{
				TapMutation: func(_ any, key, data []byte, flags, exp uint32, cas uint64, vbucket uint16) {
					fmt.Printf("vb=%d %s = %s\n", vbucket, key, data)
				},
			})
			if err := c.Connect(ctx); err != nil {
				return err
			}
			defer c.Destroy()
			return c.TapCluster(ctx, nil, 0, true)
		},
	}
}

func metricsCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Serve the Prometheus /metrics endpoint for a running client's counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, cleanup, err := newClient(ctx)
			if err != nil {
				return err
			}
			defer cleanup()
			defer c.Destroy()

			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			logging.Op().Info("serving metrics", "addr", addr)
			srv := &http.Server{Addr: addr, Handler: mux}
			go func() {
				<-ctx.Done()
				_ = srv.Close()
			}()
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":9464", "listen address for the /metrics endpoint")
	return cmd
}

func init() {
	logging.InitStructured("text", "info")
}
