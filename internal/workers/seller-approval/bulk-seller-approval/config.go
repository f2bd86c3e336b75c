// internal/workers/seller-approval/bulk-seller-approval/config.go
package bulksellerapproval

import "time"

type Config struct {
	// Timeout bounds a whole run, fetch to report.
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Minute,
	}
}
