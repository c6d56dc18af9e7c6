package concurrency

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"
)

// ConfigSource records which input decided a limit.
type ConfigSource string

const (
	ConfigSourceEnvVar     ConfigSource = "environment_variable"
	ConfigSourceAutoDetect ConfigSource = "auto_detect"
	ConfigSourceDefault    ConfigSource = "default"
)

// Environment variables read by LoadConfig.
const (
	EnvThrottleLimit    = "HEARTCORE_THROTTLE_LIMIT"
	EnvThrottleInterval = "HEARTCORE_THROTTLE_INTERVAL"
	EnvMaxConcurrent    = "HEARTCORE_MAX_CONCURRENT"
)

// Config holds the outbound request limits for one process.
type Config struct {
	Throttle       ThrottleConfig
	MaxConcurrent  int
	ThrottleSource ConfigSource
	Source         ConfigSource
	IsKubernetes   bool
	EffectiveCPUs  int
}

// LoadConfig reads the throttle and concurrency limits. Explicit environment
// values win; otherwise MaxConcurrent is derived from the CPU count.
func LoadConfig() *Config {
	cfg := &Config{
		Throttle:       DefaultThrottleConfig(),
		ThrottleSource: ConfigSourceDefault,
		IsKubernetes:   os.Getenv("KUBERNETES_SERVICE_HOST") != "",
		EffectiveCPUs:  runtime.GOMAXPROCS(0),
	}

	if n, ok := positiveInt(EnvThrottleLimit); ok {
		cfg.Throttle.Limit = n
		cfg.ThrottleSource = ConfigSourceEnvVar
	}
	if d, ok := positiveDuration(EnvThrottleInterval); ok {
		cfg.Throttle.Interval = d
		cfg.ThrottleSource = ConfigSourceEnvVar
	}

	cfg.Source = ConfigSourceEnvVar
	n, ok := positiveInt(EnvMaxConcurrent)
	if !ok {
		n = autoMaxConcurrent(cfg.IsKubernetes, cfg.EffectiveCPUs)
		cfg.Source = ConfigSourceAutoDetect
	}
	cfg.MaxConcurrent = max(n, 1)
	return cfg
}

// Fetches are I/O bound, so the cap is a multiple of the CPU count with a
// floor. Pods get a smaller multiple since their CPU quota is usually tight.
func autoMaxConcurrent(inCluster bool, cpus int) int {
	if inCluster {
		return max(cpus*4, 8)
	}
	return max(cpus*8, 16)
}

func positiveInt(key string) (int, bool) {
	n, err := strconv.Atoi(os.Getenv(key))
	return n, err == nil && n > 0
}

// positiveDuration accepts Go durations ("500ms") or bare milliseconds ("1000").
func positiveDuration(key string) (time.Duration, bool) {
	raw := os.Getenv(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		ms, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return 0, false
		}
		d = time.Duration(ms) * time.Millisecond
	}
	return d, d > 0
}

func (c *Config) String() string {
	return fmt.Sprintf("throttle=%d/%s max_concurrent=%d (%s, throttle %s) k8s=%t cpus=%d",
		c.Throttle.Limit, c.Throttle.Interval, c.MaxConcurrent,
		c.Source, c.ThrottleSource, c.IsKubernetes, c.EffectiveCPUs)
}
