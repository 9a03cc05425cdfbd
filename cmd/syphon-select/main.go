package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"syphon-bridge/internal/app"
	"syphon-bridge/internal/config"
	"syphon-bridge/internal/logging"
	"syphon-bridge/pkg/client"
	sig "syphon-bridge/pkg/signal"
	"syphon-bridge/pkg/syphon"
)

type rootOptions struct {
	configPath string
	url        string

	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	opts := &rootOptions{}
	root := newRootCmd(opts)
	err := root.Execute()
	if opts.logger != nil {
		_ = opts.logger.Sync()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:           "syphon-select",
		Short:         "Browse and select servers of a remote directory",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if opts.url != "" {
				cfg.Consumer.URL = opts.url
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			opts.cfg, opts.logger = cfg, logger
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file")
	root.PersistentFlags().StringVar(&opts.url, "url", "", "directory websocket URL")

	root.AddCommand(
		newListCmd(opts),
		newWatchCmd(opts),
		newGUICmd(opts),
	)
	return root
}

func newListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the servers currently in the directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.cfg.Consumer.FetchTimeout)
			defer cancel()

			servers, err := client.FetchServers(ctx, opts.cfg.Consumer.URL, client.WithLogger(opts.logger))
			if err != nil {
				return err
			}
			for _, s := range servers {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", s.UUID, syphon.FormatName(s))
			}
			return nil
		},
	}
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print directory notifications as JSON lines until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()

			dialCtx, dialCancel := context.WithTimeout(ctx, opts.cfg.Consumer.FetchTimeout)
			c, err := client.Dial(dialCtx, opts.cfg.Consumer.URL, client.WithLogger(opts.logger))
			dialCancel()
			if err != nil {
				return err
			}
			defer c.Close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			lines := make(chan sig.Notification, 64)
			for _, ch := range syphon.Channels {
				c.On(ch, func(n sig.Notification) {
					select {
					case lines <- n:
					case <-ctx.Done():
					}
				})
			}

			for {
				select {
				case n := <-lines:
					if err := enc.Encode(struct {
						Channel syphon.Channel `json:"channel"`
						sig.Notification
					}{n.Channel, n}); err != nil {
						return err
					}
				case <-c.Done():
					return client.ErrClosed
				case <-ctx.Done():
					return nil
				}
			}
		},
	}
}

func newGUICmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "gui",
		Short: "Open the selector window",
		RunE: func(cmd *cobra.Command, args []string) error {
			app.RunMainGUI(opts.cfg, nil, opts.logger)
			return nil
		},
	}
}

func signalAwareContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
