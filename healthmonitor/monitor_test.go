package healthmonitor

import (
	"testing"
	"time"

	"github.com/dynode-wallet/dynode/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.AdaptiveMonitoringConfig {
	return config.AdaptiveMonitoringConfig{
		Enabled:           true,
		Window:            60 * time.Second,
		MinSamples:        4,
		ErrorThreshold:    0.5,
		RecoveryThreshold: 0.2,
		Cooldown:          60 * time.Second,
		MinSwitchInterval: 5 * time.Second,
	}
}

func TestRecordAttemptBlocksAfterThreshold(t *testing.T) {
	m := New(testConfig())

	m.RecordAttempt("ethereum", "a", true)
	m.RecordAttempt("ethereum", "a", true)
	m.RecordAttempt("ethereum", "a", false)
	snap := m.RecordAttempt("ethereum", "a", false)

	assert.True(t, snap.BlockedNow)
	assert.Equal(t, 4, snap.Total)
	assert.Equal(t, 2, snap.Errors)
}

func TestReorderURLsPutsBlockedLast(t *testing.T) {
	m := New(testConfig())
	m.RecordAttempt("ethereum", "a", true)
	m.RecordAttempt("ethereum", "a", true)
	m.RecordAttempt("ethereum", "a", false)
	m.RecordAttempt("ethereum", "a", false)

	ordered := m.ReorderURLs("ethereum", []string{"a", "b", "c"})
	assert.Equal(t, []string{"b", "c", "a"}, ordered)
}

func TestReorderURLsIdempotentWithoutIntervening(t *testing.T) {
	m := New(testConfig())
	m.RecordAttempt("ethereum", "a", true)
	m.RecordAttempt("ethereum", "a", true)
	m.RecordAttempt("ethereum", "a", false)
	m.RecordAttempt("ethereum", "a", false)

	first := m.ReorderURLs("ethereum", []string{"a", "b", "c"})
	second := m.ReorderURLs("ethereum", []string{"a", "b", "c"})
	assert.Equal(t, first, second)
}

func TestHostNotBlockedBelowThreshold(t *testing.T) {
	m := New(testConfig())
	m.RecordAttempt("ethereum", "a", true)
	snap := m.RecordAttempt("ethereum", "a", false)
	assert.False(t, snap.BlockedNow)
}

func TestAllowSwitchAfterSuccessOnlyWhenBlocked(t *testing.T) {
	m := New(testConfig())

	_, ok := m.AllowSwitchAfterSuccess("ethereum", "a", "b")
	assert.False(t, ok, "not blocked yet, no switch allowed")

	m.RecordAttempt("ethereum", "a", true)
	m.RecordAttempt("ethereum", "a", true)
	m.RecordAttempt("ethereum", "a", false)
	m.RecordAttempt("ethereum", "a", false)

	snap, ok := m.AllowSwitchAfterSuccess("ethereum", "a", "b")
	require.True(t, ok)
	assert.True(t, snap.BlockedNow)
}

func TestAllowSwitchThrottledByMinSwitchInterval(t *testing.T) {
	m := New(testConfig())
	m.RecordAttempt("ethereum", "a", true)
	m.RecordAttempt("ethereum", "a", true)
	m.RecordAttempt("ethereum", "a", false)
	m.RecordAttempt("ethereum", "a", false)

	m.MarkSwitch("ethereum")
	_, ok := m.AllowSwitchAfterSuccess("ethereum", "a", "b")
	assert.False(t, ok, "switch should be throttled by min_switch_interval")
}

func TestChainsAreIndependentForHealth(t *testing.T) {
	m := New(testConfig())
	m.RecordAttempt("ethereum", "a", true)
	m.RecordAttempt("ethereum", "a", true)
	m.RecordAttempt("ethereum", "a", false)
	m.RecordAttempt("ethereum", "a", false)

	snap := m.RecordAttempt("solana", "a", false)
	assert.False(t, snap.BlockedNow, "solana's host 'a' must not share ethereum's window")
}
