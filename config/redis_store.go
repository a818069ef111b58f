package config

import (
	"encoding/json"

	"github.com/go-redis/redis/v7"
	"github.com/pkg/errors"
)

// RedisConfigStore is the ConfigStore implementation backed by go-redis,
// the "cache of config" named alongside parser_state in spec.md §6 —
// runtime overrides of the otherwise-static TOML config, looked up once
// at daemon startup.
type RedisConfigStore struct {
	client *redis.Client
	prefix string
}

// NewRedisConfigStore wraps an already-connected redis client.
func NewRedisConfigStore(client *redis.Client) *RedisConfigStore {
	return &RedisConfigStore{client: client, prefix: "config_key:"}
}

func (s *RedisConfigStore) key(key ConfigKey) string { return s.prefix + string(key) }

// Get returns the override for key, or ok=false if none is set.
func (s *RedisConfigStore) Get(key ConfigKey) (ConfigValue, bool, error) {
	raw, err := s.client.Get(s.key(key)).Bytes()
	if err == redis.Nil {
		return ConfigValue{}, false, nil
	}
	if err != nil {
		return ConfigValue{}, false, errors.Wrapf(err, "get config key %q", key)
	}
	var value ConfigValue
	if err := json.Unmarshal(raw, &value); err != nil {
		return ConfigValue{}, false, errors.Wrapf(err, "decode config key %q", key)
	}
	return value, true, nil
}

// Set writes an override for key.
func (s *RedisConfigStore) Set(key ConfigKey, value ConfigValue) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encode config key %q", key)
	}
	return errors.Wrapf(s.client.Set(s.key(key), raw, 0).Err(), "set config key %q", key)
}

var _ ConfigStore = (*RedisConfigStore)(nil)
