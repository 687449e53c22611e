// Package config centralizes the pipeline's tunables behind Viper, so the
// CLI and embedding applications share one set of defaults with environment
// overrides (INTAKE_* keys).
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Viper keys for pipeline tunables.
const (
	KeyBatchSize         = "batch_size"
	KeyConcurrency       = "concurrency"
	KeyBatchDelay        = "batch_delay"
	KeyRetryDelay        = "retry_delay"
	KeyProgressThreshold = "progress_threshold"
	KeyProgressInterval  = "progress_interval"
	KeyWebhookURL        = "webhook_url"
)

// Defaults chosen for backend request-rate tolerance, not CPU parallelism.
const (
	DefaultBatchSize         = 50
	DefaultConcurrency       = 5
	DefaultBatchDelay        = 500 * time.Millisecond
	DefaultRetryDelay        = 250 * time.Millisecond
	DefaultProgressThreshold = 200
	DefaultProgressInterval  = 100
)

// Init registers defaults and binds INTAKE_* environment variables.
// Safe to call more than once.
func Init() {
	viper.SetEnvPrefix("INTAKE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault(KeyBatchSize, DefaultBatchSize)
	viper.SetDefault(KeyConcurrency, DefaultConcurrency)
	viper.SetDefault(KeyBatchDelay, DefaultBatchDelay)
	viper.SetDefault(KeyRetryDelay, DefaultRetryDelay)
	viper.SetDefault(KeyProgressThreshold, DefaultProgressThreshold)
	viper.SetDefault(KeyProgressInterval, DefaultProgressInterval)
}

// BatchSize returns the number of rows per batch.
func BatchSize() int {
	return viper.GetInt(KeyBatchSize)
}

// Concurrency returns the bounded worker count per batch.
func Concurrency() int {
	return viper.GetInt(KeyConcurrency)
}

// BatchDelay returns the pause between successive batches.
func BatchDelay() time.Duration {
	return viper.GetDuration(KeyBatchDelay)
}

// RetryDelay returns the pause before each record in the retry pass.
func RetryDelay() time.Duration {
	return viper.GetDuration(KeyRetryDelay)
}

// ProgressThreshold returns the minimum input size that triggers progress
// notifications.
func ProgressThreshold() int {
	return viper.GetInt(KeyProgressThreshold)
}

// ProgressInterval returns how many processed rows separate progress
// notifications.
func ProgressInterval() int {
	return viper.GetInt(KeyProgressInterval)
}

// WebhookURL returns the notification webhook endpoint, if configured.
func WebhookURL() string {
	return viper.GetString(KeyWebhookURL)
}
