package main

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/psaab/srxmerge/pkg/api"
	"github.com/psaab/srxmerge/pkg/cli"
	"github.com/psaab/srxmerge/pkg/configstore"
	"github.com/psaab/srxmerge/pkg/grpcapi"
	"github.com/psaab/srxmerge/pkg/logging"
	"github.com/psaab/srxmerge/pkg/merge"
	"github.com/psaab/srxmerge/pkg/metrics"
)

func newServeCmd() *cobra.Command {
	var (
		httpAddr, httpsAddr, grpcAddr string
		configFile, certDir           string
		apiKeys                       []string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configuration store over HTTP and gRPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rec := metrics.NewRecorder()
			events := logging.NewEventBuffer(1000)
			merger := merge.New(
				merge.WithLogger(logger),
				merge.WithObserver(rec),
				merge.WithObserver(events),
			)
			store := configstore.New(configFile, configstore.WithMerger(merger), configstore.WithLogger(logger))
			if err := store.Load(ctx); err != nil {
				return err
			}

			var auth *api.AuthConfig
			if len(apiKeys) > 0 {
				auth = &api.AuthConfig{APIKeys: make(map[string]bool, len(apiKeys))}
				for _, k := range apiKeys {
					auth.APIKeys[k] = true
				}
			}
			httpSrv, err := api.NewServer(api.Config{
				Addr:      httpAddr,
				HTTPSAddr: httpsAddr,
				TLS:       httpsAddr != "",
				CertDir:   certDir,
				Auth:      auth,
				Store:     store,
				Merger:    merger,
				Recorder:  rec,
				Events:    events,
				Logger:    logger,
			})
			if err != nil {
				return err
			}

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return httpSrv.Run(ctx) })
			if grpcAddr != "" {
				grpcSrv := grpcapi.NewServer(grpcAddr, grpcapi.Config{
					Store:  store,
					Merger: merger,
					Events: events,
					Logger: logger,
				})
				g.Go(func() error { return grpcSrv.Run(ctx) })
			}
			err = g.Wait()
			logger.Info("shutting down")
			return err
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http", "127.0.0.1:8080", "HTTP API listen address")
	cmd.Flags().StringVar(&httpsAddr, "https", "", "HTTPS API listen address with a self-signed certificate")
	cmd.Flags().StringVar(&certDir, "cert-dir", "", "directory for the self-signed certificate")
	cmd.Flags().StringVar(&grpcAddr, "grpc", "127.0.0.1:50051", "gRPC listen address (empty to disable)")
	cmd.Flags().StringVar(&configFile, "config", "", "active configuration file (empty keeps it in memory)")
	cmd.Flags().StringSliceVar(&apiKeys, "api-key", nil, "require one of these keys on API requests")
	return cmd
}

func newShellCmd() *cobra.Command {
	var configFile, historyFile string
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive Junos-style configuration shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			merger := merge.New(merge.WithLogger(logger))
			store := configstore.New(configFile, configstore.WithMerger(merger), configstore.WithLogger(logger))
			if err := store.Load(cmd.Context()); err != nil {
				return err
			}
			var opts []cli.Option
			if historyFile != "" {
				opts = append(opts, cli.WithHistoryFile(historyFile))
			}
			return cli.New(store, merger, opts...).Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "active configuration file (empty keeps it in memory)")
	cmd.Flags().StringVar(&historyFile, "history-file", "", "persist command history")
	return cmd
}
