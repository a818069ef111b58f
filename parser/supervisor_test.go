package parser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynode-wallet/dynode/chainprovider"
	"github.com/dynode-wallet/dynode/shutdown"
)

func TestSupervisorRestartsAfterFatalError(t *testing.T) {
	coord := shutdown.New()
	provider := &fakeProvider{tip: 100, txs: []chainprovider.Transaction{{Hash: "0xabc", BlockNumber: 51}}}
	publisher := &fakePublisher{publishErr: assertErr("kafka unavailable")}
	loop := newTestLoop(t, provider, publisher, coord, 0, 50)

	sup := NewSupervisor("ethereum", loop, coord, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		sup.Run(context.Background())
		close(done)
	}()

	time.Sleep(60 * time.Millisecond)
	coord.Shutdown()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not exit after shutdown")
	}

	entries := sup.Status().Entries()
	require.NotEmpty(t, entries, "fatal publish error should have been recorded")
	assert.Contains(t, entries[0].Message, "kafka unavailable")
	assert.GreaterOrEqual(t, entries[0].Count, 1)
}
