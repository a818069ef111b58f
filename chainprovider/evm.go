package chainprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

// RPCCaller is the minimal client contract an EVM-family provider forwards
// calls through, matching client/bridge_client.go's
// CallContext(ctx, &result, method, args...) shape.
type RPCCaller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// EVMProvider implements ChainTraits for EVM-family chains (Ethereum and
// its close relatives) over a plain JSON-RPC caller.
type EVMProvider struct {
	chain  string
	client RPCCaller
}

// NewEVMProvider builds an EVM-family ChainTraits implementation.
func NewEVMProvider(chain string, client RPCCaller) *EVMProvider {
	return &EVMProvider{chain: chain, client: client}
}

func (p *EVMProvider) GetChain() string { return p.chain }

// GetBlockLatestNumber calls eth_blockNumber and decodes the 0x-prefixed
// hex result, per spec.md §4.9's refresh_tip.
func (p *EVMProvider) GetBlockLatestNumber(ctx context.Context) (uint64, error) {
	var hexNumber string
	if err := p.client.CallContext(ctx, &hexNumber, "eth_blockNumber"); err != nil {
		return 0, errors.Wrap(err, "eth_blockNumber")
	}
	return parseHexUint(hexNumber)
}

// GetTransactionsInBlocks fetches each block by number (with full
// transaction objects) and flattens their transaction lists, per spec.md
// §4.9's process_blocks Parse branch.
func (p *EVMProvider) GetTransactionsInBlocks(ctx context.Context, blocks []uint64) ([]Transaction, error) {
	var out []Transaction
	for _, number := range blocks {
		var block struct {
			Number       string            `json:"number"`
			Transactions []json.RawMessage `json:"transactions"`
		}
		hexNumber := "0x" + strconv.FormatUint(number, 16)
		if err := p.client.CallContext(ctx, &block, "eth_getBlockByNumber", hexNumber, true); err != nil {
			return nil, errors.Wrapf(err, "eth_getBlockByNumber(%d)", number)
		}
		for _, raw := range block.Transactions {
			var tx struct {
				Hash string `json:"hash"`
			}
			if err := json.Unmarshal(raw, &tx); err != nil {
				return nil, errors.Wrapf(err, "decode transaction in block %d", number)
			}
			out = append(out, Transaction{Hash: tx.Hash, BlockNumber: number, Raw: raw})
		}
	}
	return out, nil
}

func parseHexUint(hexStr string) (uint64, error) {
	if len(hexStr) < 3 || hexStr[0] != '0' || hexStr[1] != 'x' {
		return 0, fmt.Errorf("malformed hex quantity %q", hexStr)
	}
	return strconv.ParseUint(hexStr[2:], 16, 64)
}

var _ ChainTraits = (*EVMProvider)(nil)
