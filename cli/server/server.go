package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pai-dev/pai-go/cli/options"
	"github.com/pai-dev/pai-go/pkg/config"
	"github.com/pai-dev/pai-go/pkg/index"
	"github.com/pai-dev/pai-go/pkg/network"
	"github.com/pai-dev/pai-go/pkg/rpc"
	"github.com/pai-dev/pai-go/pkg/services/metrics"
	"github.com/pai-dev/pai-go/pkg/services/search"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

// NewCommands returns the 'node' and 'rpc-node' commands.
func NewCommands() []*cli.Command {
	cfgFlags := []cli.Flag{
		options.ConfigFile,
		options.Debug,
		options.ForceTimestampLogs,
	}
	return []*cli.Command{
		{
			Name:      "node",
			Usage:     "Start the device manager (message-bus mode)",
			UsageText: "pai-go node [--config-file file] [-d] [--force-timestamp-logs]",
			Action:    startServer,
			Flags:     cfgFlags,
		},
		{
			Name:      "rpc-node",
			Usage:     "Start the device manager (RPC dispatcher mode)",
			UsageText: "pai-go rpc-node [--config-file file] [-d] [--force-timestamp-logs]",
			Action:    startRPCServer,
			Flags:     cfgFlags,
		},
	}
}

func newGraceContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	signal.Notify(stop, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()
	return ctx
}

// indexSetup holds the search collaborator pieces shared by both modes.
type indexSetup struct {
	index   *index.Index
	cache   *index.Cache
	crawler *index.Crawler
	search  *search.Service
	roots   []string
}

func setupIndex(cfg config.IndexConfiguration, log *zap.Logger) (*indexSetup, error) {
	x := index.New()
	var cache *index.Cache
	if cfg.CachePath != "" {
		var err error
		cache, err = index.OpenCache(cfg.CachePath)
		if err != nil {
			return nil, err
		}
		if err := cache.Restore(x); err != nil {
			_ = cache.Close()
			return nil, fmt.Errorf("failed to restore index cache: %w", err)
		}
		log.Info("restored index cache",
			zap.String("path", cfg.CachePath),
			zap.Int("terms", x.Len()))
	}
	svc, err := search.New(x, log)
	if err != nil {
		if cache != nil {
			_ = cache.Close()
		}
		return nil, err
	}
	return &indexSetup{
		index:   x,
		cache:   cache,
		crawler: index.NewCrawler(log),
		search:  svc,
		roots:   cfg.Roots,
	}, nil
}

func (is *indexSetup) start(ctx context.Context, interval time.Duration) {
	if len(is.roots) > 0 {
		go is.crawler.Run(ctx, is.roots, interval, is.index, is.cache)
	}
}

func (is *indexSetup) close(log *zap.Logger) {
	if is.cache == nil {
		return
	}
	if err := is.cache.Persist(is.index); err != nil {
		log.Warn("failed to persist index cache", zap.Error(err))
	}
	if err := is.cache.Close(); err != nil {
		log.Warn("failed to close index cache", zap.Error(err))
	}
}

func startServer(ctx *cli.Context) error {
	return runNode(ctx, func(serv *network.Server, is *indexSetup, log *zap.Logger) (network.FrameHandler, func(), error) {
		return network.NewRouter(serv, is.search, log), func() {}, nil
	})
}

func startRPCServer(ctx *cli.Context) error {
	return runNode(ctx, func(serv *network.Server, is *indexSetup, log *zap.Logger) (network.FrameHandler, func(), error) {
		dispatcher := rpc.NewDispatcher(log)
		table := rpc.NewInflight()
		services := []rpc.Service{
			rpc.NewRegistrationService(dispatcher, serv.Registry(), table, log),
			rpc.NewFortuneService(),
			rpc.NewSearchService(is.search),
		}
		for _, svc := range services {
			if err := dispatcher.AddService(svc); err != nil {
				return nil, nil, fmt.Errorf("failed to register service endpoints: %w", err)
			}
		}
		handler := rpc.NewDispatchHandler(dispatcher, table, log)
		return handler, handler.Shutdown, nil
	})
}

func runNode(ctx *cli.Context, mkHandler func(*network.Server, *indexSetup, *zap.Logger) (network.FrameHandler, func(), error)) error {
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return cli.Exit(err, 1)
	}
	log, _, logCloser, err := options.HandleLoggingParams(ctx, cfg.ApplicationConfiguration)
	if err != nil {
		return cli.Exit(err, 1)
	}
	if logCloser != nil {
		defer func() { _ = logCloser() }()
	}

	grace, cancel := context.WithCancel(newGraceContext())
	defer cancel()

	appCfg := cfg.ApplicationConfiguration
	is, err := setupIndex(appCfg.Index, log)
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer is.close(log)
	is.start(grace, time.Duration(appCfg.Index.CrawlInterval)*time.Second)

	prometheus := metrics.NewPrometheusService(appCfg.Prometheus, log)
	pprof := metrics.NewPprofService(appCfg.Pprof, log)
	if err := prometheus.Start(); err != nil {
		return cli.Exit(fmt.Errorf("failed to start Prometheus service: %w", err), 1)
	}
	defer prometheus.ShutDown()
	if err := pprof.Start(); err != nil {
		return cli.Exit(fmt.Errorf("failed to start Pprof service: %w", err), 1)
	}
	defer pprof.ShutDown()

	serv, err := network.NewServer(network.ServerConfig{
		BindAddress: appCfg.ListenAddress(),
	}, log)
	if err != nil {
		return cli.Exit(fmt.Errorf("failed to create network server: %w", err), 1)
	}
	handler, stopHandler, err := mkHandler(serv, is, log)
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer stopHandler()
	serv.SetHandler(handler)
	setPaiGoVersion(config.Version)

	errChan := make(chan error, 1)
	go serv.Start(errChan)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, sighup)
	signal.Notify(sigCh, sigusr1)

	var (
		shutdownErr error
		graceDone   = grace.Done()
	)
Main:
	for {
		select {
		case err := <-errChan:
			shutdownErr = fmt.Errorf("server error: %w", err)
			serv.Shutdown()
		case <-graceDone:
			graceDone = nil
			serv.Shutdown()
		case sig := <-sigCh:
			log.Info("signal received", zap.Stringer("name", sig))
			switch sig {
			case sighup:
				// Force a crawl pass outside the regular schedule.
				go is.crawler.Run(grace, is.roots, 0, is.index, is.cache)
			case sigusr1:
				if is.cache != nil {
					if err := is.cache.Persist(is.index); err != nil {
						log.Warn("failed to persist index cache", zap.Error(err))
					}
				}
			}
		case <-serv.Done():
			break Main
		}
	}
	if shutdownErr != nil {
		return cli.Exit(shutdownErr, 1)
	}
	return nil
}
