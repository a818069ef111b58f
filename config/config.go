// Package config holds the static configuration file format and the
// runtime-tunable ConfigKey overlay described in spec.md §6.
package config

import (
	"os"
	"time"

	"github.com/naoina/toml"
	"github.com/pkg/errors"
)

// AdaptiveMonitoringConfig tunes the C5 health monitor.
type AdaptiveMonitoringConfig struct {
	Enabled            bool          `toml:"enabled"`
	Window             time.Duration `toml:"window"`
	MinSamples         int           `toml:"min_samples"`
	ErrorThreshold     float64       `toml:"error_threshold"`
	RecoveryThreshold  float64       `toml:"recovery_threshold"`
	Cooldown           time.Duration `toml:"cooldown"`
	MinSwitchInterval  time.Duration `toml:"min_switch_interval"`
}

// NodeMonitoringConfig tunes the C4 upstream sync analyzer.
type NodeMonitoringConfig struct {
	LatencyThreshold        *time.Duration    `toml:"latency_threshold,omitempty"`
	LatencyThresholdPercent *float64          `toml:"latency_threshold_percent,omitempty"`
	BlockDelayThreshold     map[string]uint64 `toml:"block_delay_threshold"`
}

// BlockDelayThresholdFor returns the configured threshold for chain, or a
// conservative default of 3 blocks when the chain is not listed.
func (n NodeMonitoringConfig) BlockDelayThresholdFor(chain string) uint64 {
	if v, ok := n.BlockDelayThreshold[chain]; ok {
		return v
	}
	return 3
}

// CacheRule mirrors spec.md §3's CacheRule.
type CacheRule struct {
	Path       string                 `toml:"path,omitempty"`
	Method     string                 `toml:"method,omitempty"`
	RPCMethod  string                 `toml:"rpc_method,omitempty"`
	Params     map[string]interface{} `toml:"params,omitempty"`
	TTLSeconds uint64                 `toml:"ttl_seconds"`
}

// CacheConfig holds the memory budget and per-chain rule sets.
type CacheConfig struct {
	MaxMemoryMB int                    `toml:"max_memory_mb"`
	Rules       map[string][]CacheRule `toml:"rules"`
}

// Upstream describes one RPC endpoint for a chain.
type Upstream struct {
	URL  string `toml:"url"`
	Host string `toml:"host"`
}

// ChainConfig configures one chain's gateway routing and parser behavior.
type ChainConfig struct {
	Host                 string        `toml:"host"`
	Upstreams            []Upstream    `toml:"upstreams"`
	AwaitBlocks          int32         `toml:"await_blocks"`
	TimeoutBetweenBlocks time.Duration `toml:"timeout_between_blocks"`
	QueueBehindBlocks    int32         `toml:"queue_behind_blocks"`
	ParallelBlocks       int32         `toml:"parallel_blocks"`
	IsEnabled            bool          `toml:"is_enabled"`
}

// Config is the static configuration file format, decoded with naoina/toml
// the way gxp/config.go's DefaultConfig is structured in the teacher.
type Config struct {
	HTTPAddr                    string                   `toml:"http_addr"`
	MetricsAddr                 string                   `toml:"metrics_addr"`
	DatabaseDSN                 string                   `toml:"database_dsn"`
	RedisAddr                   string                   `toml:"redis_addr"`
	KafkaBrokers                []string                 `toml:"kafka_brokers"`
	ParserCatchupReloadInterval int64                    `toml:"parser_catchup_reload_interval"`
	ParserPersistInterval       time.Duration            `toml:"parser_persist_interval"`
	ParserDefaultTimeout        time.Duration            `toml:"parser_default_timeout"`
	ProxySplitBatches           bool                     `toml:"proxy_split_batches"`
	RetryMaxDelay               time.Duration            `toml:"retry_max_delay"`
	AdaptiveMonitoring          AdaptiveMonitoringConfig `toml:"adaptive_monitoring"`
	NodeMonitoring              NodeMonitoringConfig     `toml:"node_monitoring"`
	Cache                       CacheConfig              `toml:"cache"`
	Chains                      map[string]ChainConfig   `toml:"chains"`
}

// DefaultConfig mirrors gxp/config.go's package-level DefaultConfig var:
// sane defaults that a loaded file overrides field by field.
var DefaultConfig = Config{
	HTTPAddr:                    ":8545",
	MetricsAddr:                 ":9090",
	ParserCatchupReloadInterval: 1000,
	ParserPersistInterval:       30 * time.Second,
	ParserDefaultTimeout:        3 * time.Second,
	RetryMaxDelay:               30 * time.Second,
	AdaptiveMonitoring: AdaptiveMonitoringConfig{
		Enabled:           true,
		Window:            60 * time.Second,
		MinSamples:        10,
		ErrorThreshold:    0.5,
		RecoveryThreshold: 0.2,
		Cooldown:          60 * time.Second,
		MinSwitchInterval: 5 * time.Second,
	},
	Cache: CacheConfig{
		MaxMemoryMB: 256,
	},
}

// Load reads and decodes a TOML config file on top of DefaultConfig.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open config file %q", path)
	}
	defer f.Close()

	if err := toml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, errors.Wrapf(err, "decode config file %q", path)
	}
	return &cfg, nil
}
