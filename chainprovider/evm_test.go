package chainprovider

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCaller struct {
	blockNumber string
	blocks      map[string]string // hex block number -> raw JSON block
}

func (f *fakeCaller) CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	switch method {
	case "eth_blockNumber":
		*(result.(*string)) = f.blockNumber
		return nil
	case "eth_getBlockByNumber":
		raw := f.blocks[args[0].(string)]
		return json.Unmarshal([]byte(raw), result)
	}
	return nil
}

func TestGetBlockLatestNumber(t *testing.T) {
	caller := &fakeCaller{blockNumber: "0x10"}
	p := NewEVMProvider("ethereum", caller)

	n, err := p.GetBlockLatestNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(16), n)
}

func TestGetTransactionsInBlocks(t *testing.T) {
	caller := &fakeCaller{blocks: map[string]string{
		"0x65": `{"number":"0x65","transactions":[{"hash":"0xabc"},{"hash":"0xdef"}]}`,
	}}
	p := NewEVMProvider("ethereum", caller)

	txs, err := p.GetTransactionsInBlocks(context.Background(), []uint64{101})
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "0xabc", txs[0].Hash)
	assert.Equal(t, uint64(101), txs[0].BlockNumber)
}

func TestGetChain(t *testing.T) {
	p := NewEVMProvider("ethereum", &fakeCaller{})
	assert.Equal(t, "ethereum", p.GetChain())
}
