package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"

	cmdutil "github.com/heysubinoy/quotakv/cmd"
	"github.com/heysubinoy/quotakv/internal/api"
	"github.com/heysubinoy/quotakv/internal/logr"
	"github.com/heysubinoy/quotakv/internal/store"
	"github.com/heysubinoy/quotakv/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

func main() {
	// Configure ^C to terminate program
	ctx, cancel := context.WithCancel(context.Background())
	cmdutil.CatchCtrlC(cancel)

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		cmdutil.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	var (
		configPath string
		loggerCfg  logr.Config
	)

	cmd := &cobra.Command{
		Use:           "kvd",
		Short:         "quotakv daemon",
		Long:          "kvd serves a capacity-bounded in-memory key-value store over HTTP and, optionally, gRPC.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			logger, err := logr.New(&loggerCfg)
			if err != nil {
				return err
			}
			httpLn, grpcLn, err := listen(cfg)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), logger, cfg, prometheus.DefaultRegisterer, httpLn, grpcLn)
		},
	}
	cmd.SetOut(out)
	cmd.SetArgs(args)

	cmd.Flags().StringVar(&configPath, "config", "", "Path to YAML config file")
	logr.LoadConfigFromFlags(cmd.Flags(), &loggerCfg)

	if err := cmdutil.SetFlagsFromEnvVariables(cmd.Flags()); err != nil {
		return err
	}
	return cmd.ExecuteContext(ctx)
}

// listen opens the HTTP listener and, if configured, the gRPC listener.
func listen(cfg *config.Config) (httpLn, grpcLn net.Listener, err error) {
	httpLn, err = net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen on %s: %w", cfg.HTTPAddr, err)
	}
	if cfg.GRPCAddr == "" {
		return httpLn, nil, nil
	}
	grpcLn, err = net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		httpLn.Close()
		return nil, nil, fmt.Errorf("failed to listen on %s: %w", cfg.GRPCAddr, err)
	}
	return httpLn, grpcLn, nil
}

// serve builds the store and runs the HTTP server, and the gRPC server when
// grpcLn is non-nil, until ctx is cancelled or one of them fails.
func serve(ctx context.Context, logger logr.Logger, cfg *config.Config, reg prometheus.Registerer, httpLn, grpcLn net.Listener) error {
	// The single store instance shared by every transport.
	memStore := store.NewMemStore(cfg.Capacity)
	instrumented, err := store.NewInstrumentedStore(memStore, reg)
	if err != nil {
		httpLn.Close()
		if grpcLn != nil {
			grpcLn.Close()
		}
		return fmt.Errorf("registering store metrics: %w", err)
	}

	srv := api.NewServer(instrumented, cfg.Endpoint, logger)
	router := api.NewRouter(logger, srv, api.RouterConfig{
		EnableRequestLogging: cfg.LogRequests(),
		Gatherer:             gathererFor(reg),
		Stats:                instrumented,
	})

	logger.Info("starting store", "capacity", cfg.Capacity, "endpoint", cfg.Endpoint)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return api.ServeHTTP(ctx, logger, httpLn, router)
	})
	if grpcLn != nil {
		grpcServer := grpc.NewServer()
		api.RegisterKVService(grpcServer, api.NewGRPCServer(instrumented, logger))
		g.Go(func() error {
			return api.ServeGRPC(ctx, logger, grpcLn, grpcServer)
		})
	}
	return g.Wait()
}

// gathererFor returns the gatherer matching reg, so /metrics exposes the
// collectors the store registered.
func gathererFor(reg prometheus.Registerer) prometheus.Gatherer {
	if g, ok := reg.(prometheus.Gatherer); ok {
		return g
	}
	return prometheus.DefaultGatherer
}
