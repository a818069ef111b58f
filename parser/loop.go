// Package parser is the per-chain parser daemon task described in
// spec.md §4.9: an outer polling loop that advances a chain's
// current_block by planning and executing ranges against the chain's
// upstream, publishing results on the stream producer facade.
package parser

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/dynode-wallet/dynode/blockplan"
	"github.com/dynode-wallet/dynode/chainprovider"
	"github.com/dynode-wallet/dynode/internal/logger"
	"github.com/dynode-wallet/dynode/parserstate"
	"github.com/dynode-wallet/dynode/shutdown"
	"github.com/dynode-wallet/dynode/streamproducer"
)

var log = logger.NewModuleLogger(logger.ModuleParser)

// Config tunes one chain's loop, generalized from the per-chain fields of
// parserstate.Row plus the daemon-wide defaults in config.Config.
type Config struct {
	DefaultTimeout        time.Duration
	PersistInterval       time.Duration
	CatchupReloadInterval int64
}

// Publisher is the subset of streamproducer.Facade the loop needs, narrowed
// so tests can fake it without a live Kafka connection.
type Publisher interface {
	PublishBlocks(chain string, blockNumbers []uint64) error
	PublishTransactions(payload streamproducer.TransactionsPayload) error
}

// Loop runs one chain's parser task. Per spec.md §5's concurrency map,
// parser-state is owned exclusively by this task; nothing else writes it.
type Loop struct {
	chain    string
	state    *parserstate.Service
	provider chainprovider.ChainTraits
	stream   Publisher
	coord    *shutdown.Coordinator
	cfg      Config
}

// New builds a Loop for chain.
func New(chain string, state *parserstate.Service, provider chainprovider.ChainTraits, stream Publisher, coord *shutdown.Coordinator, cfg Config) *Loop {
	return &Loop{chain: chain, state: state, provider: provider, stream: stream, coord: coord, cfg: cfg}
}

// Start runs the outer loop of spec.md §4.9 until shutdown or a fatal
// error. It always persists state on exit, mirroring the `persist_state`
// tail of the pseudocode regardless of which branch broke the loop.
func (l *Loop) Start(ctx context.Context) error {
	if err := l.state.Init(l.chain); err != nil {
		return errors.Wrapf(err, "init parser state for chain %q", l.chain)
	}

	lastPersist := time.Now()
	var loopErr error

	for {
		if l.coord.Flipped() {
			break
		}

		if time.Since(lastPersist) >= l.cfg.PersistInterval {
			if err := l.state.PersistState(l.chain); err != nil {
				log.Warnw("periodic persist failed, will retry next interval", "chain", l.chain, "err", err)
			}
			lastPersist = time.Now()
		}

		row := l.state.GetState(l.chain)
		timeout := blockplan.TimeoutForState(int64(row.ParallelBlocks), time.Duration(row.TimeoutBetweenBlocks)*time.Millisecond, l.cfg.DefaultTimeout)

		if !row.IsEnabled {
			if shutdown.SleepOrShutdown(l.coord, timeout) {
				break
			}
			continue
		}

		if err := l.refreshTip(ctx, timeout); err != nil {
			log.Errorw("tip refresh failed", "chain", l.chain, "err", err)
			if shutdown.SleepOrShutdown(l.coord, timeout*5) {
				break
			}
			continue
		}

		if fatal := l.processBlocks(ctx, timeout); fatal != nil {
			loopErr = fatal
			break
		}
	}

	if err := l.state.PersistState(l.chain); err != nil {
		log.Errorw("final persist on exit failed", "chain", l.chain, "err", err)
	}
	return loopErr
}

// refreshTip implements spec.md §4.9's refresh_tip: on success, updates
// latest_block and, if current_block is still zero, seeds it to the tip.
func (l *Loop) refreshTip(ctx context.Context, timeout time.Duration) error {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tip, err := l.provider.GetBlockLatestNumber(callCtx)
	if err != nil {
		return errors.Wrap(err, "fetch upstream tip")
	}

	if err := l.state.SetLatestBlock(l.chain, int64(tip)); err != nil {
		return errors.Wrap(err, "persist latest block")
	}

	if l.state.GetCurrentBlock(l.chain) == 0 {
		if err := l.state.SetCurrentBlock(l.chain, int64(tip)); err != nil {
			return errors.Wrap(err, "seed current block to tip")
		}
	}
	return nil
}

// processBlocks loops plan_next_block/execute_plan until the plan returns
// nil, a reload-tip boundary is crossed, or shutdown, per spec.md §4.9. A
// non-nil return is fatal and ends the whole loop; the supervisor restarts
// it. Crossing a reload-tip boundary just returns nil: the outer loop's
// next iteration calls refresh_tip again on its own.
func (l *Loop) processBlocks(ctx context.Context, timeout time.Duration) error {
	for {
		if l.coord.Flipped() {
			return nil
		}

		row := l.state.GetState(l.chain)
		plan := blockplan.PlanNextBlock(blockplan.State{
			AwaitBlocks:       int64(row.AwaitBlocks),
			QueueBehindBlocks: int64(row.QueueBehindBlocks),
			ParallelBlocks:    int64(row.ParallelBlocks),
		}, row.CurrentBlock, row.LatestBlock)
		if plan == nil {
			return nil
		}

		if err := l.executePlan(ctx, timeout, plan); err != nil {
			if isFatalPublishErr(err) {
				return err
			}
			log.Errorw("block range processing failed, retrying", "chain", l.chain, "range", plan.Range.EndBlock, "err", err)
			if shutdown.SleepOrShutdown(l.coord, timeout) {
				return nil
			}
			continue
		}

		if blockplan.ShouldReloadCatchup(plan.Range.Remaining, plan.Range.EndBlock, l.cfg.CatchupReloadInterval) {
			return nil
		}
	}
}

// executePlan implements spec.md §4.9's Enqueue/Parse branches.
// current_block only advances after the stream publish acknowledges, so a
// crash between publish and the next persist re-publishes the same range
// on restart — the at-least-once guarantee of spec.md §4.9.
func (l *Loop) executePlan(ctx context.Context, timeout time.Duration, plan *blockplan.Plan) error {
	switch plan.Kind {
	case blockplan.Enqueue:
		if err := l.stream.PublishBlocks(l.chain, plan.Range.Blocks); err != nil {
			return &publishFatalErr{errors.Wrap(err, "publish block queue")}
		}
		if err := l.state.SetCurrentBlock(l.chain, plan.Range.EndBlock); err != nil {
			return errors.Wrap(err, "advance current block after enqueue")
		}
		log.Infow("block add to queue", "chain", l.chain, "end_block", plan.Range.EndBlock, "count", len(plan.Range.Blocks))
		return nil

	case blockplan.Parse:
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		txs, err := l.provider.GetTransactionsInBlocks(callCtx, plan.Range.Blocks)
		if err != nil {
			return errors.Wrap(err, "fetch transactions in block range")
		}

		if len(txs) > 0 {
			raw := make([]interface{}, len(txs))
			for i, tx := range txs {
				raw[i] = tx
			}
			payload := streamproducer.TransactionsPayload{Chain: l.chain, Blocks: plan.Range.Blocks, Transactions: raw}
			if err := l.stream.PublishTransactions(payload); err != nil {
				return &publishFatalErr{errors.Wrap(err, "publish transactions payload")}
			}
		}

		if err := l.state.SetCurrentBlock(l.chain, plan.Range.EndBlock); err != nil {
			return errors.Wrap(err, "advance current block after parse")
		}
		log.Infow("block complete", "chain", l.chain, "end_block", plan.Range.EndBlock, "tx_count", len(txs))
		return nil

	default:
		return errors.Errorf("unknown plan kind %d", plan.Kind)
	}
}

// publishFatalErr marks an error surfaced by the stream facade after it
// has already exhausted retry_max_delay, per the StreamPublishFailure
// disposition in spec.md §7: such a failure is fatal to the loop, not a
// retry-same-range condition like a block-parse error.
type publishFatalErr struct{ error }

func isFatalPublishErr(err error) bool {
	_, ok := err.(*publishFatalErr)
	return ok
}
