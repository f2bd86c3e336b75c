// internal/workers/seller-approval/validate-batch/config.go
package validatebatch

import "time"

const DefaultMaxBatchSize = 100

type Config struct {
	Timeout      time.Duration
	MaxBatchSize int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:      10 * time.Second,
		MaxBatchSize: DefaultMaxBatchSize,
	}
}
