package main

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/xtding233/marble-bag/internal/api"
	"github.com/xtding233/marble-bag/internal/config"
	"github.com/xtding233/marble-bag/internal/registry"
)

type options struct {
	configDir     string
	listen        string
	grpcListen    string
	watchInterval time.Duration
	verbose       bool
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := pflag.NewFlagSet("marble-bag", pflag.ContinueOnError)
	fs.StringVar(&o.configDir, "config-dir", "./config", "base directory holding bags/default.yaml")
	fs.StringVar(&o.listen, "listen", ":8080", "HTTP listen address")
	fs.StringVar(&o.grpcListen, "grpc-listen", ":9090", "gRPC health listen address, empty to disable")
	fs.DurationVar(&o.watchInterval, "watch-interval", 2*time.Second, "config poll interval, 0 to disable hot reload")
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "development logging")
	return o, fs.Parse(args)
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(2)
	}
	log, err := newLogger(opts.verbose)
	if err != nil {
		os.Stderr.WriteString("init logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(opts, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(opts options, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(opts.configDir)
	specs, err := loader.Load()
	if err != nil {
		return err
	}
	bags := registry.New(log.Named("registry"))
	if err := bags.Apply(specs); err != nil {
		return err
	}
	log.Info("bags loaded", zap.Int("count", len(specs)), zap.String("config_dir", opts.configDir))

	if opts.watchInterval > 0 {
		w := config.NewWatcher(loader, opts.watchInterval, func(specs []config.BagSpec) {
			if err := bags.Apply(specs); err != nil {
				log.Warn("apply reloaded config", zap.Error(err))
			}
		}, log.Named("watch"))
		go w.Run(ctx)
	}

	errCh := make(chan error, 2)

	var healthSrv *health.Server
	var grpcSrv *grpc.Server
	if opts.grpcListen != "" {
		lis, err := net.Listen("tcp", opts.grpcListen)
		if err != nil {
			return err
		}
		grpcSrv = grpc.NewServer()
		healthSrv = health.NewServer()
		healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		healthpb.RegisterHealthServer(grpcSrv, healthSrv)
		go func() {
			log.Info("grpc health listening", zap.String("addr", opts.grpcListen))
			errCh <- grpcSrv.Serve(lis)
		}()
	}

	srv := api.NewServer(bags, opts.listen, log.Named("api"))
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if healthSrv != nil {
		healthSrv.Shutdown()
		grpcSrv.GracefulStop()
	}
	return srv.Stop(shutdownCtx)
}
