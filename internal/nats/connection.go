// Package nats opens the JetStream key-value bucket that backs the NATS
// location store.
package nats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// ConnectionConfig describes how to reach NATS and which bucket holds
// location values.
type ConnectionConfig struct {
	URL  string
	Name string

	// MaxReconnects of -1 reconnects forever.
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration

	// Token takes precedence over Username/Password.
	Token    string
	Username string
	Password string

	Bucket string
	// History is how many revisions of each key the bucket keeps when it is created.
	History uint8
}

// DefaultConnectionConfig returns the settings used by the heartcore CLI.
func DefaultConnectionConfig(url string) *ConnectionConfig {
	return &ConnectionConfig{
		URL:           url,
		Name:          "heartcore",
		MaxReconnects: 10,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
		Bucket:        "HEARTCORE_LOCATIONS",
		History:       5,
	}
}

func (c *ConnectionConfig) options(logger *zap.Logger) []nats.Option {
	opts := []nats.Option{
		nats.Name(c.Name),
		nats.MaxReconnects(c.MaxReconnects),
		nats.ReconnectWait(c.ReconnectWait),
		nats.Timeout(c.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			logger.Debug("NATS connection closed")
		}),
	}
	switch {
	case c.Token != "":
		opts = append(opts, nats.Token(c.Token))
	case c.Username != "" && c.Password != "":
		opts = append(opts, nats.UserInfo(c.Username, c.Password))
	}
	return opts
}

// Connect dials NATS, giving up when ctx is done. A connection that completes
// after ctx is done is closed.
func Connect(ctx context.Context, config *ConnectionConfig, logger *zap.Logger) (*nats.Conn, error) {
	if config == nil {
		return nil, fmt.Errorf("connection config cannot be nil")
	}
	if config.URL == "" {
		return nil, fmt.Errorf("NATS URL cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	type dialed struct {
		conn *nats.Conn
		err  error
	}
	done := make(chan dialed, 1)
	go func() {
		conn, err := nats.Connect(config.URL, config.options(logger)...)
		done <- dialed{conn, err}
	}()

	select {
	case d := <-done:
		if d.err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", d.err)
		}
		return d.conn, nil
	case <-ctx.Done():
		go func() {
			if d := <-done; d.conn != nil {
				d.conn.Close()
			}
		}()
		return nil, fmt.Errorf("connection cancelled: %w", ctx.Err())
	}
}

// KeyValue opens bucket, creating it when it does not exist yet.
func KeyValue(conn *nats.Conn, bucket string, logger *zap.Logger) (nats.KeyValue, error) {
	return keyValue(conn, &ConnectionConfig{Bucket: bucket, History: 5}, logger)
}

// OpenBucket opens or creates the bucket named in config.
func OpenBucket(conn *nats.Conn, config *ConnectionConfig, logger *zap.Logger) (nats.KeyValue, error) {
	if config == nil {
		return nil, fmt.Errorf("connection config cannot be nil")
	}
	return keyValue(conn, config, logger)
}

func keyValue(conn *nats.Conn, config *ConnectionConfig, logger *zap.Logger) (nats.KeyValue, error) {
	if conn == nil {
		return nil, fmt.Errorf("connection is nil")
	}
	if config.Bucket == "" {
		return nil, fmt.Errorf("bucket name cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	kv, err := js.KeyValue(config.Bucket)
	switch {
	case err == nil:
		return kv, nil
	case !errors.Is(err, nats.ErrBucketNotFound):
		return nil, fmt.Errorf("failed to open bucket %q: %w", config.Bucket, err)
	}

	logger.Info("Creating key-value bucket", zap.String("bucket", config.Bucket))
	kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
		Bucket:      config.Bucket,
		Description: "Heartcore location values",
		History:     config.History,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket %q: %w", config.Bucket, err)
	}
	return kv, nil
}

// Close drains conn, falling back to a hard close when draining fails.
func Close(conn *nats.Conn) error {
	if conn == nil {
		return nil
	}
	if err := conn.Drain(); err != nil {
		conn.Close()
		return fmt.Errorf("error draining connection: %w", err)
	}
	return nil
}

// IsConnected reports whether conn is open and connected.
func IsConnected(conn *nats.Conn) bool {
	return conn != nil && conn.IsConnected()
}
