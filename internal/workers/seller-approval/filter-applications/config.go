// internal/workers/seller-approval/filter-applications/config.go
package filterapplications

import "time"

type Config struct {
	Timeout      time.Duration
	RecentWindow time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout:      10 * time.Second,
		RecentWindow: 7 * 24 * time.Hour,
	}
}
