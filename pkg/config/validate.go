package config

import (
	"errors"
	"fmt"
)

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the loaded configuration. Credentials are not required
// here; commands that talk to Heartcore check them when building a client.
func (c *Config) Validate() error {
	var errs []error

	if c.Throttle.Limit < 1 {
		errs = append(errs, &ValidationError{Field: "throttle.limit", Message: "must be at least 1"})
	}
	if c.Throttle.Interval <= 0 {
		errs = append(errs, &ValidationError{Field: "throttle.interval", Message: "must be positive"})
	}
	if c.Heartcore.Timeout <= 0 {
		errs = append(errs, &ValidationError{Field: "heartcore.timeout", Message: "must be positive"})
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendNATS:
		if c.Store.NATS.URL == "" {
			errs = append(errs, &ValidationError{Field: "store.nats.url", Message: "is required"})
		}
	case BackendRedis:
		if c.Store.Redis.Addr == "" {
			errs = append(errs, &ValidationError{Field: "store.redis.addr", Message: "is required"})
		}
	case BackendBlob:
		if c.Store.Blob.ConnectionString == "" {
			errs = append(errs, &ValidationError{Field: "store.azblob.connection_string", Message: "is required"})
		}
	default:
		errs = append(errs, &ValidationError{Field: "store.backend", Message: "must be one of: memory, nats, redis, azblob"})
	}

	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, &ValidationError{Field: "tracing.sample_ratio", Message: "must be between 0 and 1"})
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, &ValidationError{Field: "log.level", Message: "must be one of: debug, info, warn, error"})
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, &ValidationError{Field: "log.format", Message: "must be one of: json, console"})
	}

	return errors.Join(errs...)
}
