package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"syphon-bridge/internal/app"
	"syphon-bridge/internal/config"
	"syphon-bridge/internal/logging"
	"syphon-bridge/internal/producer"
	"syphon-bridge/pkg/discovery"
	"syphon-bridge/pkg/syphon"
	"syphon-bridge/pkg/utils"
)

type rootOptions struct {
	configPath string

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
		Use:           "syphon-directory",
		Short:         "Publish the local video server directory to consumers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
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

	root.AddCommand(
		newServeCmd(opts),
		newBeaconCmd(opts),
		newConfigCmd(opts),
		newGUICmd(opts),
	)
	return root
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var listen, source string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the directory over the boundary channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				opts.cfg.Listen = listen
			}
			if source != "" {
				opts.cfg.Source = source
			}
			if err := config.Validate(opts.cfg); err != nil {
				return err
			}

			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()

			p, err := start(opts)
			if err != nil {
				return err
			}
			opts.logger.Info("consumers connect to", zap.String("url", p.URL()))
			return p.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "override the listen address")
	cmd.Flags().StringVar(&source, "source", "", "override the native source (discovery, screen, memory)")
	return cmd
}

func newBeaconCmd(opts *rootOptions) *cobra.Command {
	var appName, name string
	cmd := &cobra.Command{
		Use:   "beacon",
		Short: "Announce a server to discovery directories on the network",
		RunE: func(cmd *cobra.Command, args []string) error {
			b := opts.cfg.Beacon
			if appName != "" {
				b.AppName = appName
			}
			if name != "" {
				b.Name = name
			}
			if b.UUID == "" {
				b.UUID = utils.GenID()
			}
			if b.Target == "" {
				b.Target = discovery.BroadcastTarget(opts.cfg.Discovery.Port)
			}

			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()

			server := syphon.Description{UUID: b.UUID, AppName: b.AppName, Name: b.Name}
			opts.logger.Info("announcing",
				zap.String("uuid", server.UUID),
				zap.String("name", syphon.FormatName(server)),
				zap.String("target", b.Target),
				zap.String("host", discovery.LocalIPv4()),
			)
			return discovery.RunBeacon(ctx, b.Target, b.Interval, server)
		},
	}
	cmd.Flags().StringVar(&appName, "app", "", "application name to announce")
	cmd.Flags().StringVar(&name, "name", "", "server name to announce")
	return cmd
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "print",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := config.Render(opts.cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	})
	return cmd
}

func newGUICmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "gui",
		Short: "Serve the directory and open its window",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalAwareContext(cmd.Context())
			defer cancel()

			p, err := start(opts)
			if err != nil {
				return err
			}
			done := make(chan error, 1)
			go func() { done <- p.Run(ctx) }()

			cfg := *opts.cfg
			cfg.Consumer.URL = p.URL()
			app.RunMainGUI(&cfg, p, opts.logger)

			cancel()
			return <-done
		},
	}
}

func start(opts *rootOptions) (*producer.Producer, error) {
	native, err := producer.NewSource(opts.cfg, opts.logger)
	if err != nil {
		return nil, err
	}
	return producer.Start(opts.cfg, native, opts.logger)
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
