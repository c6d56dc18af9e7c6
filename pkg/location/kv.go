package location

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// KeyValue is the subset of nats.KeyValue the store uses.
type KeyValue interface {
	Get(key string) (nats.KeyValueEntry, error)
	Put(key string, value []byte) (uint64, error)
}

// KVStore keeps values in a NATS JetStream key-value bucket.
type KVStore struct {
	kv     KeyValue
	logger *zap.Logger
}

var _ Store = (*KVStore)(nil)

// NewKVStore wraps a bucket. internal/nats.KeyValue opens or creates one.
func NewKVStore(kv KeyValue, logger *zap.Logger) (*KVStore, error) {
	if kv == nil {
		return nil, fmt.Errorf("key-value bucket is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KVStore{kv: kv, logger: logger}, nil
}

// kvKey maps a location key onto the NATS key alphabet. Location keys may
// contain characters NATS rejects, so they are stored base64url-encoded.
func kvKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entry, err := s.kv.Get(kvKey(key))
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) || errors.Is(err, nats.ErrKeyDeleted) {
			return nil, notFound(key)
		}
		return nil, fmt.Errorf("failed to read location %q: %w", key, err)
	}
	return entry.Value(), nil
}

func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	rev, err := s.kv.Put(kvKey(key), value)
	if err != nil {
		return fmt.Errorf("failed to write location %q: %w", key, err)
	}
	s.logger.Debug("Stored location value",
		zap.String("key", key),
		zap.Uint64("revision", rev),
		zap.Int("size", len(value)))
	return nil
}
