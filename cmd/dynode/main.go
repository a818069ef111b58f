// Command dynode is the gateway entrypoint: it loads the static config,
// wires the cache, health, and sync-analyzer components into a proxy
// Service, and serves inbound HTTP until an OS signal requests shutdown.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/urfave/cli.v1"

	"github.com/dynode-wallet/dynode/cacherules"
	"github.com/dynode-wallet/dynode/cachestore"
	"github.com/dynode-wallet/dynode/config"
	"github.com/dynode-wallet/dynode/healthmonitor"
	"github.com/dynode-wallet/dynode/internal/logger"
	"github.com/dynode-wallet/dynode/proxy"
	"github.com/dynode-wallet/dynode/shutdown"
	"github.com/dynode-wallet/dynode/syncanalyzer"
)

var log = logger.NewModuleLogger(logger.ModuleProxy)

var configFileFlag = cli.StringFlag{
	Name:  "config",
	Usage: "path to the gateway TOML config file",
	Value: "dynode.toml",
}

func main() {
	app := cli.NewApp()
	app.Name = "dynode"
	app.Usage = "multi-chain RPC proxy gateway"
	app.Flags = []cli.Flag{configFileFlag}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	cfg, err := config.Load(ctx.String(configFileFlag.Name))
	if err != nil {
		return err
	}

	rules := cacherules.New(cfg.Cache.Rules)
	cache := cachestore.New(cfg.Cache.MaxMemoryMB<<20, rules)
	health := healthmonitor.New(cfg.AdaptiveMonitoring)
	current := syncanalyzer.NewCurrentURLStore()
	router := proxy.NewConfigRouter(cfg)
	metrics := proxy.NewMetrics(prometheus.DefaultRegisterer)

	svc := proxy.NewService(router, cache, health, current, metrics, cfg.ProxySplitBatches)
	handler := proxy.NewHTTPHandler(svc)

	coord := shutdown.New()
	shutdown.ListenForSignals(coord)

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: handler}
	coord.Go(func() {
		log.Infow("gateway listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorw("http server exited with error", "err", err)
		}
	})

	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler()}
	coord.Go(func() {
		log.Infow("metrics endpoint listening", "addr", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorw("metrics server exited with error", "err", err)
		}
	})

	<-coord.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("graceful http shutdown failed", "err", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Errorw("graceful metrics shutdown failed", "err", err)
	}
	coord.Join(15 * time.Second)
	return nil
}
