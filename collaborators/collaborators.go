// Package collaborators declares interface-only contracts for the
// out-of-scope domains named in spec.md §1 — independent services that
// share the database, cache, and message bus but are not part of this
// core. No implementation lives here; a real deployment wires concrete
// adapters from other services into these interfaces at daemon init, the
// way node/service.go's ServiceContext resolves registered Services by
// type.
package collaborators

import "context"

// Signer assembles and signs per-chain transaction payloads (BCS/Move/EVM/
// Cosmos/etc.). Out of scope per spec.md §1.
type Signer interface {
	Sign(ctx context.Context, chain string, unsignedTx []byte) (signedTx []byte, err error)
}

// PriceOracle ingests price/market data. Out of scope per spec.md §1.
type PriceOracle interface {
	LatestPrice(ctx context.Context, assetID string) (priceUSD float64, err error)
}

// FiatOnRamp adapts fiat on-ramp webhook events. Out of scope per spec.md §1.
type FiatOnRamp interface {
	HandleWebhook(ctx context.Context, provider string, payload []byte) error
}

// ReferralScorer computes referral reward scoring. Out of scope per
// spec.md §1.
type ReferralScorer interface {
	Score(ctx context.Context, referrerID, refereeID string) (points int64, err error)
}

// SwapRouter routes swap-provider requests. Out of scope per spec.md §1.
type SwapRouter interface {
	Quote(ctx context.Context, fromAssetID, toAssetID string, amount string) (quote interface{}, err error)
}

// WalletConnectSessions handles wallet-connect session state. Out of scope
// per spec.md §1.
type WalletConnectSessions interface {
	Approve(ctx context.Context, sessionID string) error
}

// ExplorerLinker formats block-explorer URLs. Out of scope per spec.md §1.
type ExplorerLinker interface {
	TransactionURL(chain, txHash string) string
}
