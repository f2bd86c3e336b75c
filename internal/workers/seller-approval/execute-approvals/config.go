// internal/workers/seller-approval/execute-approvals/config.go
package executeapprovals

import "time"

type Config struct {
	// Timeout bounds the whole approval loop of one job.
	Timeout          time.Duration
	StopOnFirstError bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 5 * time.Minute,
	}
}
