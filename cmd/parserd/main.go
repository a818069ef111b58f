// Command parserd is the parser daemon entrypoint. Given --chain it runs
// only that chain; absent, it runs every chain with an existing
// parser_state row. For each selected chain it wires a ChainTraits
// provider, parser state service, and stream producer facade into a
// parser.Loop, then supervises all chains' loops until an OS signal
// requests shutdown.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-redis/redis/v7"
	"github.com/pkg/errors"
	"gopkg.in/urfave/cli.v1"

	"github.com/dynode-wallet/dynode/chainprovider"
	"github.com/dynode-wallet/dynode/config"
	"github.com/dynode-wallet/dynode/internal/logger"
	"github.com/dynode-wallet/dynode/parser"
	"github.com/dynode-wallet/dynode/parserstate"
	"github.com/dynode-wallet/dynode/shutdown"
	"github.com/dynode-wallet/dynode/streamproducer"
)

var log = logger.NewModuleLogger(logger.ModuleParser)

const restartDelay = 5 * time.Second

var configFileFlag = cli.StringFlag{
	Name:  "config",
	Usage: "path to the parser TOML config file",
	Value: "dynode.toml",
}

var chainFlag = cli.StringFlag{
	Name:  "chain",
	Usage: "run only this chain; absent, parserd runs every chain with an existing parser_state row",
}

func main() {
	app := cli.NewApp()
	app.Name = "parserd"
	app.Usage = "multi-chain block and transaction parser"
	app.Flags = []cli.Flag{configFileFlag, chainFlag}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// selectChains implements spec.md §6's chain selector: an explicit
// --chain flag runs only that chain; absent, parserd runs every chain
// with an existing parser_state row.
func selectChains(selected string, durable parserstate.DurableStore) ([]string, error) {
	if selected != "" {
		return []string{selected}, nil
	}
	return durable.ListChains()
}

// resolveLoopConfig builds parser.Config from the static TOML config,
// overridden per-key by whatever is present in the ConfigKey overlay
// (spec.md §6's "cache of config"), so an operator can retune the parser
// without a redeploy.
func resolveLoopConfig(cfg *config.Config, store config.ConfigStore) (parser.Config, error) {
	loopCfg := parser.Config{
		DefaultTimeout:        cfg.ParserDefaultTimeout,
		PersistInterval:       cfg.ParserPersistInterval,
		CatchupReloadInterval: cfg.ParserCatchupReloadInterval,
	}

	if v, ok, err := store.Get(config.KeyParserCatchupReloadInterval); err != nil {
		return parser.Config{}, err
	} else if ok {
		n, err := v.AsInt64()
		if err != nil {
			return parser.Config{}, err
		}
		loopCfg.CatchupReloadInterval = n
	}

	if v, ok, err := store.Get(config.KeyParserPersistInterval); err != nil {
		return parser.Config{}, err
	} else if ok {
		d, err := v.AsDuration()
		if err != nil {
			return parser.Config{}, err
		}
		loopCfg.PersistInterval = d
	}

	return loopCfg, nil
}

func run(ctx *cli.Context) error {
	cfg, err := config.Load(ctx.String(configFileFlag.Name))
	if err != nil {
		return err
	}

	durable, err := parserstate.OpenGormStore(cfg.DatabaseDSN)
	if err != nil {
		return errors.Wrap(err, "open parser state database")
	}
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	fast := parserstate.NewRedisStore(redisClient)
	configStore := config.NewRedisConfigStore(redisClient)
	stream, err := streamproducer.New(streamproducer.DefaultConfig(cfg.KafkaBrokers, cfg.RetryMaxDelay))
	if err != nil {
		return errors.Wrap(err, "connect stream producer")
	}
	defer stream.Close()

	coord := shutdown.New()
	shutdown.ListenForSignals(coord)

	loopCfg, err := resolveLoopConfig(cfg, configStore)
	if err != nil {
		return errors.Wrap(err, "resolve parser config overrides")
	}

	chains, err := selectChains(ctx.String(chainFlag.Name), durable)
	if err != nil {
		return errors.Wrap(err, "select chains")
	}

	started := 0
	for _, chainName := range chains {
		cc, ok := cfg.Chains[chainName]
		if !ok || !cc.IsEnabled || len(cc.Upstreams) == 0 {
			log.Warnw("skipping chain with no enabled config or upstreams", "chain", chainName)
			continue
		}
		chain := chainName
		state := parserstate.New(durable, fast)
		provider := chainprovider.NewEVMProvider(chain, chainprovider.NewHTTPRPCClient(cc.Upstreams[0].URL))
		loop := parser.New(chain, state, provider, stream, coord, loopCfg)
		sup := parser.NewSupervisor(chain, loop, coord, restartDelay)

		coord.Go(func() {
			log.Infow("parser loop starting", "chain", chain)
			sup.Run(context.Background())
			log.Infow("parser loop stopped", "chain", chain)
		})
		started++
	}

	if started == 0 {
		return errors.New("no enabled chains with configured upstreams found")
	}

	<-coord.Done()
	coord.Join(30 * time.Second)
	return nil
}
