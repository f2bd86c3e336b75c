// internal/workers/seller-approval/build-batch-report/config.go
package buildbatchreport

import "time"

type Config struct {
	Timeout time.Duration
	// SinkTimeout bounds each report publication.
	SinkTimeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout:     30 * time.Second,
		SinkTimeout: 5 * time.Second,
	}
}
