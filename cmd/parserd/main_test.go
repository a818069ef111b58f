package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynode-wallet/dynode/config"
	"github.com/dynode-wallet/dynode/parserstate"
)

type fakeDurable struct{ chains []string }

func (f *fakeDurable) Get(chain string) (parserstate.Row, error) { return parserstate.Row{}, nil }
func (f *fakeDurable) Upsert(row parserstate.Row) error          { return nil }
func (f *fakeDurable) ListChains() ([]string, error)             { return f.chains, nil }

func TestSelectChainsHonorsExplicitFlag(t *testing.T) {
	durable := &fakeDurable{chains: []string{"ethereum", "polygon"}}

	chains, err := selectChains("solana", durable)
	require.NoError(t, err)
	assert.Equal(t, []string{"solana"}, chains, "an explicit --chain must run only that chain, ignoring existing rows")
}

func TestSelectChainsFallsBackToExistingRows(t *testing.T) {
	durable := &fakeDurable{chains: []string{"ethereum", "polygon"}}

	chains, err := selectChains("", durable)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ethereum", "polygon"}, chains)
}

type fakeConfigStore struct{ values map[config.ConfigKey]config.ConfigValue }

func (f *fakeConfigStore) Get(key config.ConfigKey) (config.ConfigValue, bool, error) {
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeConfigStore) Set(key config.ConfigKey, value config.ConfigValue) error {
	f.values[key] = value
	return nil
}

func TestResolveLoopConfigUsesStaticConfigWhenNoOverride(t *testing.T) {
	cfg := &config.Config{ParserCatchupReloadInterval: 1000, ParserPersistInterval: 30 * time.Second}
	store := &fakeConfigStore{values: map[config.ConfigKey]config.ConfigValue{}}

	loopCfg, err := resolveLoopConfig(cfg, store)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), loopCfg.CatchupReloadInterval)
	assert.Equal(t, 30*time.Second, loopCfg.PersistInterval)
}

func TestResolveLoopConfigAppliesOverrides(t *testing.T) {
	cfg := &config.Config{ParserCatchupReloadInterval: 1000, ParserPersistInterval: 30 * time.Second}
	store := &fakeConfigStore{values: map[config.ConfigKey]config.ConfigValue{
		config.KeyParserCatchupReloadInterval: config.IntValue(500),
		config.KeyParserPersistInterval:       config.DurationValue(10 * time.Second),
	}}

	loopCfg, err := resolveLoopConfig(cfg, store)
	require.NoError(t, err)
	assert.Equal(t, int64(500), loopCfg.CatchupReloadInterval)
	assert.Equal(t, 10*time.Second, loopCfg.PersistInterval)
}
