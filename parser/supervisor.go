package parser

import (
	"context"
	"time"

	"github.com/dynode-wallet/dynode/shutdown"
)

// Supervisor restarts a chain's Loop after a fatal error, recording it into
// the chain's Status cache, per spec.md §4.9's supervisor paragraph. One
// Supervisor owns exactly one chain's Loop and Status, matching the
// no-cross-chain-sharing rule of spec.md §5.
type Supervisor struct {
	chain  string
	loop   *Loop
	coord  *shutdown.Coordinator
	status *Status

	restartDelay time.Duration
}

// NewSupervisor wraps loop with restart-on-fatal-error semantics.
func NewSupervisor(chain string, loop *Loop, coord *shutdown.Coordinator, restartDelay time.Duration) *Supervisor {
	return &Supervisor{chain: chain, loop: loop, coord: coord, status: NewStatus(), restartDelay: restartDelay}
}

// Status exposes the chain's deduplicated fatal-error history.
func (s *Supervisor) Status() *Status { return s.status }

// Run drives Loop.Start, restarting it after restartDelay whenever it
// returns a fatal error, until shutdown flips the coordinator's latch.
func (s *Supervisor) Run(ctx context.Context) {
	for {
		if s.coord.Flipped() {
			return
		}

		err := s.loop.Start(ctx)
		if err == nil {
			return
		}

		log.Errorw("parser loop exited with fatal error, restarting", "chain", s.chain, "err", err)
		s.status.Record(err.Error())

		if shutdown.SleepOrShutdown(s.coord, s.restartDelay) {
			return
		}
	}
}
