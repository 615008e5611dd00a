package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/plaenen/graphstore/pkg/engine"
	"github.com/plaenen/graphstore/pkg/middleware"
	"github.com/plaenen/graphstore/pkg/observability"
	"github.com/plaenen/graphstore/pkg/runner"
	"github.com/plaenen/graphstore/pkg/store"
	"github.com/plaenen/graphstore/pkg/store/sqlite"
	"github.com/plaenen/graphstore/pkg/transport"
)

func serveCmd() *cobra.Command {
	var embedded bool
	var snapshotInterval uint64

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the graph store engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			tel, err := observability.Init(ctx, observability.Config{
				ServiceName:    "graphd",
				ServiceVersion: "dev",
				Environment:    viper.GetString("environment"),
				Logger:         logger,
			})
			if err != nil {
				return err
			}
			defer tel.Shutdown(context.Background())

			var bus *transport.NatsBus
			var embeddedSrv *transport.EmbeddedServer
			if embedded {
				bus, embeddedSrv, err = transport.NewEmbeddedBus("")
				if err != nil {
					return err
				}
				defer embeddedSrv.Shutdown()
				logger.Info("embedded NATS started", "url", embeddedSrv.URL())
			} else {
				bus, err = transport.NewNatsBus(natsConfig(ctx, logger))
				if err != nil {
					return err
				}
			}
			defer bus.Close()

			db, err := sqlite.New(sqlite.WithDSN(viper.GetString("db.path")))
			if err != nil {
				return err
			}
			defer db.Close()

			eng := engine.New(bus,
				engine.WithLogger(logger),
				engine.WithMetrics(tel.Metrics),
				engine.WithSnapshotStore(db),
				engine.WithContentStore(db),
				engine.WithSnapshotStrategy(store.NewIntervalSnapshotStrategy(snapshotInterval)),
				engine.WithMiddleware(
					middleware.RecoveryMiddleware(logger),
					middleware.LoggingMiddleware(logger),
					middleware.TracingMiddleware(tel.Tracer("graphd")),
					middleware.ValidationMiddleware(),
				),
			)

			mirror := newMirrorService(eng, db, logger)
			r := runner.New(
				[]runner.Service{mirror},
				runner.WithLogger(logger),
			)
			logger.Info("graphd serving", "db", viper.GetString("db.path"))
			return r.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&embedded, "embedded", false, "run an embedded NATS server")
	cmd.Flags().Uint64Var(&snapshotInterval, "snapshot-interval", 100, "snapshot every N events (0 disables)")
	return cmd
}

