// Package streamproducer is the publish-only message bus facade described
// in spec.md §4.11, backed by Shopify/sarama the way
// datasync/chaindatafetcher/kafka/{config,repository}.go wires it in the
// teacher repo.
package streamproducer

import (
	"encoding/json"
	"time"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"

	"github.com/dynode-wallet/dynode/internal/logger"
)

var log = logger.NewModuleLogger(logger.ModuleStream)

const (
	QueueObservedPrices = "observed_prices_worker"
	QueuePricer         = "pricer_worker"
	QueueCharts         = "charts_worker"
)

// Config mirrors datasync/chaindatafetcher/kafka.KafkaConfig.
type Config struct {
	SaramaConfig *sarama.Config
	Brokers      []string
	RetryMaxDelay time.Duration
}

// DefaultConfig mirrors kafka.GetDefaultKafkaConfig.
func DefaultConfig(brokers []string, retryMaxDelay time.Duration) *Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Version = sarama.V2_1_0_0
	return &Config{SaramaConfig: cfg, Brokers: brokers, RetryMaxDelay: retryMaxDelay}
}

// Facade publishes typed payloads onto the bus with acknowledged delivery
// and retry/backoff, per spec.md §4.11.
type Facade struct {
	producer      sarama.SyncProducer
	retryMaxDelay time.Duration
}

// New connects a synchronous sarama producer, generalized from
// kafka.NewRepository in the teacher.
func New(cfg *Config) (*Facade, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, cfg.SaramaConfig)
	if err != nil {
		return nil, errors.Wrap(err, "connect kafka producer")
	}
	return &Facade{producer: producer, retryMaxDelay: cfg.RetryMaxDelay}, nil
}

// newWithProducer builds a Facade around an already-constructed producer,
// used by tests to inject a mock.
func newWithProducer(producer sarama.SyncProducer, retryMaxDelay time.Duration) *Facade {
	return &Facade{producer: producer, retryMaxDelay: retryMaxDelay}
}

// Close releases the underlying producer connection.
func (f *Facade) Close() error {
	return f.producer.Close()
}

// PublishBlocks publishes a block-number list for enqueueing, per
// spec.md §4.11.
func (f *Facade) PublishBlocks(chain string, blockNumbers []uint64) error {
	return f.publishWithRetry(blockQueueName(chain), blockNumbers)
}

// PublishTransactions publishes a parsed transaction batch, per spec.md §4.11.
func (f *Facade) PublishTransactions(payload TransactionsPayload) error {
	return f.publishWithRetry(blockQueueName(payload.Chain), payload)
}

// PublishRewardsEvents publishes reward notification events. Order within
// the call is preserved by sending sequentially, per spec.md §4.11.
func (f *Facade) PublishRewardsEvents(payloads []RewardsNotificationPayload) error {
	for _, p := range payloads {
		if err := f.publishWithRetry(QueuePricer, p); err != nil {
			return err
		}
	}
	return nil
}

// publishWithRetry retries transient errors with exponential backoff up to
// retry_max_delay, per spec.md §4.11 and the StreamPublishFailure
// disposition in spec.md §7.
func (f *Facade) publishWithRetry(topic string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "marshal stream payload")
	}

	msg := &sarama.ProducerMessage{Topic: topic, Value: sarama.ByteEncoder(body)}

	backoff := 100 * time.Millisecond
	start := time.Now()
	var lastErr error
	for {
		_, _, err := f.producer.SendMessage(msg)
		if err == nil {
			return nil
		}
		lastErr = err

		elapsed := time.Since(start)
		if elapsed >= f.retryMaxDelay {
			log.Errorw("stream publish failed after retry_max_delay", "topic", topic, "elapsed", elapsed, "err", err)
			return errors.Wrapf(lastErr, "publish to %q failed after %s", topic, elapsed)
		}

		log.Warnw("stream publish failed, retrying", "topic", topic, "backoff", backoff, "err", err)
		time.Sleep(backoff)
		backoff *= 2
		if backoff > f.retryMaxDelay {
			backoff = f.retryMaxDelay
		}
	}
}
